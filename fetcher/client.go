// Package fetcher fetches target pages through a remote rendering/proxy
// service, retrying with backoff and escalating capability tiers.
package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/aluiziolira/go-price-watch/config"
	"github.com/aluiziolira/go-price-watch/models"
	"github.com/gocolly/colly/v2"
)

// Query parameters understood by the proxy service.
const (
	paramAPIKey  = "api_key"
	paramURL     = "url"
	paramRender  = "render"
	paramPremium = "premium"
	paramWait    = "wait"
	paramScroll  = "scroll"
	paramCountry = "country_code"
	paramDevice  = "device_type"
)

// Client issues proxied fetches. One collector per tier keeps the
// per-attempt timeout independent between cheap and rendered fetches.
type Client struct {
	cfg        config.Config
	apiKey     string
	collectors [models.MaxTier + 1]*colly.Collector
	Metrics    *Metrics

	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient builds a client configured from cfg.
func NewClient(cfg *config.Config, apiKey string, metrics *Metrics) (*Client, error) {
	if _, err := url.Parse(cfg.ProxyEndpoint); err != nil {
		return nil, fmt.Errorf("parse proxy endpoint: %w", err)
	}

	c := &Client{
		cfg:     *cfg,
		apiKey:  apiKey,
		Metrics: metrics,
		sleep:   sleepContext,
	}
	for tier := models.TierBaseline; tier <= models.MaxTier; tier++ {
		c.collectors[tier] = newCollector(cfg, cfg.TierTimeout(tier))
	}
	return c, nil
}

func newCollector(cfg *config.Config, timeout time.Duration) *colly.Collector {
	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(timeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})
	return collector
}

// WithTransport replaces the HTTP transport of every tier.
func (c *Client) WithTransport(rt http.RoundTripper) {
	for _, collector := range c.collectors {
		collector.WithTransport(rt)
	}
}

// Fetch retrieves rawURL starting at tier start. Each tier gets
// AttemptsPerTier attempts before the client escalates to the next one.
// Expected failures are reported in the result, never as a panic or error.
func (c *Client) Fetch(ctx context.Context, rawURL string, start models.Tier) models.FetchResult {
	if start < models.TierBaseline || start > models.MaxTier {
		start = models.TierBaseline
	}

	begin := time.Now()
	attempts := 0
	var last models.FetchResult

	for tier := start; tier <= models.MaxTier; tier++ {
		if tier > start {
			c.Metrics.IncEscalation(tier)
			slog.Warn("escalating fetch tier",
				slog.String("url", rawURL),
				slog.String("tier", tier.String()),
				slog.Int("attempts", attempts),
			)
		}

		for i := 0; i < c.cfg.AttemptsPerTier; i++ {
			if attempts > 0 {
				c.Metrics.IncRetries()
				if err := c.sleep(ctx, c.backoff(attempts)); err != nil {
					return models.FetchResult{Outcome: models.OutcomeFatal, Tier: tier, Attempts: attempts, Duration: time.Since(begin), Err: err}
				}
			}
			if err := ctx.Err(); err != nil {
				return models.FetchResult{Outcome: models.OutcomeFatal, Tier: tier, Attempts: attempts, Duration: time.Since(begin), Err: err}
			}

			attempts++
			res := c.Attempt(ctx, c.request(rawURL, tier))
			res.Attempts = attempts

			switch res.Outcome {
			case models.OutcomeSuccess:
				res.Duration = time.Since(begin)
				return res
			case models.OutcomeFatal:
				slog.Error("fetch failed",
					slog.String("url", rawURL),
					slog.String("tier", tier.String()),
					slog.Any("error", res.Err),
				)
				res.Duration = time.Since(begin)
				return res
			}

			slog.Warn("fetch attempt failed",
				slog.String("url", rawURL),
				slog.String("tier", tier.String()),
				slog.Int("attempt", attempts),
				slog.Int("status", res.StatusCode),
				slog.String("category", errorTypeLabel(res.Err)),
			)
			last = res
		}
	}

	slog.Error("fetch exhausted",
		slog.String("url", rawURL),
		slog.Int("attempts", attempts),
		slog.Any("error", last.Err),
	)
	last.Err = ErrExhausted{Attempts: attempts, Err: last.Err}
	last.Duration = time.Since(begin)
	return last
}

// Attempt performs exactly one proxied request.
func (c *Client) Attempt(ctx context.Context, req models.FetchRequest) models.FetchResult {
	start := time.Now()
	res := models.FetchResult{Tier: req.Tier, Attempts: 1}
	if err := ctx.Err(); err != nil {
		res.Outcome = models.OutcomeFatal
		res.Err = err
		return res
	}

	target, err := c.proxyURL(req)
	if err != nil {
		res.Outcome = models.OutcomeFatal
		res.Err = ErrBadRequest{Err: err}
		c.Metrics.IncError(errorTypeLabel(res.Err))
		return res
	}

	collector := c.collectors[req.Tier].Clone()

	var (
		status   int
		body     []byte
		header   http.Header
		visitErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
		if r.Headers != nil {
			header = r.Headers.Clone()
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		visitErr = err
		if r != nil {
			status = r.StatusCode
			body = r.Body
		}
	})

	slog.Debug("fetch attempt",
		slog.String("url", req.URL),
		slog.String("tier", req.Tier.String()),
	)
	if err := collector.Visit(target); err != nil && visitErr == nil {
		visitErr = err
	}

	res.StatusCode = status
	res.Header = header
	res.Duration = time.Since(start)

	if classified := classifyResponse(visitErr, status, body, c.cfg.SoftFailures); classified != nil {
		res.Err = classified
		res.Outcome = models.OutcomeFatal
		if retryable(classified) {
			res.Outcome = models.OutcomeRetryable
		}
		c.Metrics.IncError(errorTypeLabel(classified))
	} else {
		res.Outcome = models.OutcomeSuccess
		res.Body = body
	}

	c.Metrics.ObserveAttempt(req.Tier, res.Outcome, res.Duration)
	return res
}

func (c *Client) request(rawURL string, tier models.Tier) models.FetchRequest {
	req := models.FetchRequest{
		URL:     rawURL,
		Tier:    tier,
		Timeout: c.cfg.TierTimeout(tier),
	}
	if tier >= models.TierRendered {
		req.Wait = c.cfg.RenderWait
		req.Scroll = c.cfg.Scroll
	}
	return req
}

func (c *Client) proxyURL(req models.FetchRequest) (string, error) {
	if c.apiKey == "" {
		return "", errors.New("proxy api key is empty")
	}
	target, err := url.Parse(req.URL)
	if err != nil {
		return "", fmt.Errorf("parse target url: %w", err)
	}
	if (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		return "", fmt.Errorf("target url %q must be absolute http(s)", req.URL)
	}
	if req.Tier < models.TierBaseline || req.Tier > models.MaxTier {
		return "", fmt.Errorf("unknown tier %d", req.Tier)
	}

	endpoint, err := url.Parse(c.cfg.ProxyEndpoint)
	if err != nil {
		return "", fmt.Errorf("parse proxy endpoint: %w", err)
	}
	q := endpoint.Query()
	q.Set(paramAPIKey, c.apiKey)
	q.Set(paramURL, req.URL)
	if c.cfg.Country != "" {
		q.Set(paramCountry, c.cfg.Country)
	}
	if c.cfg.Device != "" {
		q.Set(paramDevice, c.cfg.Device)
	}
	if req.Tier >= models.TierRendered {
		q.Set(paramRender, "true")
		if req.Wait > 0 {
			q.Set(paramWait, strconv.FormatInt(req.Wait.Milliseconds(), 10))
		}
		if req.Scroll {
			q.Set(paramScroll, "true")
		}
	}
	if req.Tier == models.TierResidential {
		q.Set(paramPremium, "true")
	}
	endpoint.RawQuery = q.Encode()
	return endpoint.String(), nil
}

// backoff grows linearly with the number of attempts made so far.
func (c *Client) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	delay := c.cfg.RetryBackoff * time.Duration(attempt)
	if max := c.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

func classifyResponse(err error, statusCode int, body []byte, markers []string) error {
	if classified := classifyError(err, statusCode); classified != nil {
		return classified
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return ErrProviderFailure{Marker: "empty body"}
	}
	lower := bytes.ToLower(body)
	for _, marker := range markers {
		if marker == "" {
			continue
		}
		if bytes.Contains(lower, bytes.ToLower([]byte(marker))) {
			return ErrProviderFailure{Marker: marker}
		}
	}
	return nil
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}

	if statusCode != 0 {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		switch {
		case statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices:
			return nil
		case statusCode == http.StatusForbidden:
			return ErrForbidden{Err: wrapped}
		case statusCode == http.StatusNotFound:
			return ErrNotFound{Err: wrapped}
		case statusCode == http.StatusTooManyRequests:
			return ErrRateLimited{Err: wrapped}
		case statusCode >= http.StatusInternalServerError:
			return ErrServer{Err: wrapped}
		case statusCode >= http.StatusBadRequest:
			return ErrBadRequest{Err: wrapped}
		}
	}

	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || collectorError(err) {
		return err
	}
	// A transport failure with no status, such as a connection dropped
	// mid-response, is worth another attempt.
	return ErrConnection{Err: err}
}

// collectorError reports whether colly refused the request before sending it.
func collectorError(err error) bool {
	for _, target := range []error{
		colly.ErrForbiddenDomain,
		colly.ErrMissingURL,
		colly.ErrMaxDepth,
		colly.ErrForbiddenURL,
		colly.ErrNoURLFiltersMatch,
		colly.ErrAlreadyVisited,
		colly.ErrRobotsTxtBlocked,
		colly.ErrNoPattern,
		colly.ErrEmptyProxyURL,
		colly.ErrQueueFull,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
