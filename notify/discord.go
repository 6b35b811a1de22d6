package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aluiziolira/go-price-watch/models"
	"github.com/gocolly/colly/v2"
)

const (
	embedColor      = 5814783
	defaultUsername = "RAM Bot"
	defaultTitle    = "Daily RAM Deal (32GB DDR5 6000+ CL30)"
)

// WebhookError is a non-2xx answer from the webhook.
type WebhookError struct {
	StatusCode int
	Body       string
}

func (e WebhookError) Error() string {
	return fmt.Sprintf("webhook returned status %d: %s", e.StatusCode, e.Body)
}

type webhookPayload struct {
	Username string  `json:"username,omitempty"`
	Embeds   []embed `json:"embeds"`
}

type embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url,omitempty"`
	Color       int          `json:"color"`
	Timestamp   string       `json:"timestamp,omitempty"`
	Fields      []embedField `json:"fields"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// Discord posts an embed to a Discord webhook.
type Discord struct {
	webhookURL string
	collector  *colly.Collector
	Username   string
	Title      string

	now func() time.Time
}

// NewDiscord builds a notifier for webhookURL.
func NewDiscord(webhookURL string, timeout time.Duration) (*Discord, error) {
	if webhookURL == "" {
		return nil, errors.New("webhook url cannot be empty")
	}
	collector := colly.NewCollector(colly.AllowURLRevisit())
	collector.IgnoreRobotsTxt = true
	collector.ParseHTTPErrorResponse = true
	if timeout > 0 {
		collector.SetRequestTimeout(timeout)
	}
	return &Discord{
		webhookURL: webhookURL,
		collector:  collector,
		Username:   defaultUsername,
		Title:      defaultTitle,
		now:        time.Now,
	}, nil
}

// WithTransport replaces the HTTP transport used for the webhook.
func (d *Discord) WithTransport(rt http.RoundTripper) {
	d.collector.WithTransport(rt)
}

// Notify posts report. Any non-2xx status is returned as a WebhookError.
func (d *Discord) Notify(ctx context.Context, report models.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(d.payload(report))
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	collector := d.collector.Clone()
	var (
		status   int
		respBody []byte
		postErr  error
	)
	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		respBody = r.Body
	})
	collector.OnError(func(r *colly.Response, err error) {
		postErr = err
	})

	hdr := http.Header{}
	hdr.Set("Content-Type", "application/json")
	if err := collector.Request(http.MethodPost, d.webhookURL, bytes.NewReader(body), nil, hdr); err != nil && postErr == nil {
		postErr = err
	}
	if postErr != nil {
		return fmt.Errorf("post webhook: %w", postErr)
	}
	if status < 200 || status >= 300 {
		return WebhookError{StatusCode: status, Body: string(respBody)}
	}
	return nil
}

func (d *Discord) payload(report models.Report) webhookPayload {
	w := report.Winner
	description := "The current cheapest listing."
	if w.Source != "" {
		description = fmt.Sprintf("The current cheapest listing, found on %s.", w.Source)
	}
	return webhookPayload{
		Username: d.Username,
		Embeds: []embed{{
			Title:       d.Title,
			Description: description,
			URL:         w.URL,
			Color:       embedColor,
			Timestamp:   d.now().UTC().Format(time.RFC3339),
			Fields: []embedField{
				{Name: "Product", Value: w.Name},
				{Name: "Price", Value: "**$" + w.Price.StringFixed(2) + "**", Inline: true},
				{Name: "Average", Value: "$" + report.Average.StringFixed(2), Inline: true},
				{Name: "Trend", Value: trendLabel(report.Trend), Inline: true},
				{Name: "Samples", Value: samplesLabel(report.Samples), Inline: true},
			},
		}},
	}
}

func trendLabel(t models.Trend) string {
	switch t {
	case models.TrendFalling:
		return "📉 falling"
	case models.TrendRising:
		return "📈 rising"
	default:
		return "➖ flat"
	}
}

func samplesLabel(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}
