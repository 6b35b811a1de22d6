package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/aluiziolira/go-price-watch/models"
	"github.com/shopspring/decimal"
)

// Price selection policies for rows that expose several price tokens.
const (
	SelectMin = "min"
	SelectMax = "max"
)

// Source is one listing page (or set of pages) searched for the cheapest match.
type Source struct {
	Name           string   `yaml:"name"`
	URLs           []string `yaml:"urls"`
	Pages          int      `yaml:"pages"`
	RequiredTokens []string `yaml:"required_tokens"`
	ExcludedTokens []string `yaml:"excluded_tokens"`
	MinPrice       string   `yaml:"min_price"`
}

// PageURLs expands the {page} placeholder into one URL per page, keeping
// the configured order.
func (s Source) PageURLs() []string {
	pages := s.Pages
	if pages <= 0 {
		pages = 1
	}
	var out []string
	for _, raw := range s.URLs {
		if !strings.Contains(raw, "{page}") {
			out = append(out, raw)
			continue
		}
		for p := 1; p <= pages; p++ {
			out = append(out, strings.ReplaceAll(raw, "{page}", fmt.Sprint(p)))
		}
	}
	return out
}

// Floor returns the source-specific floor, falling back to def.
func (s Source) Floor(def decimal.Decimal) decimal.Decimal {
	if s.MinPrice == "" {
		return def
	}
	v, err := decimal.NewFromString(s.MinPrice)
	if err != nil {
		return def
	}
	return v
}

// Config holds price-watch configuration.
type Config struct {
	ProxyEndpoint   string
	Country         string
	Device          string
	RenderWait      time.Duration
	Scroll          bool
	StartTier       models.Tier
	AttemptsPerTier int
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration
	Timeout         time.Duration
	RenderTimeout   time.Duration
	SoftFailures    []string
	UserAgent       string

	PriceFloor      decimal.Decimal
	PriceSelection  string
	RowSelectors    []string
	PriceSelectors  []string
	EndpointPattern string
	EndpointCache   int

	HistoryFile  string
	HistoryLimit int
	Timezone     string

	Sources     []Source
	Parallelism int

	ReportFile   string
	ReportFormat string // csv, json, or dual
	Pushgateway  string
	DryRun       bool
	Verbose      bool
}

// DefaultConfig returns defaults tuned for a daily DDR5 memory deal check.
func DefaultConfig() *Config {
	return &Config{
		ProxyEndpoint:   "https://api.scraperapi.com/",
		Country:         "ca",
		Device:          "desktop",
		RenderWait:      5 * time.Second,
		Scroll:          true,
		StartTier:       models.TierBaseline,
		AttemptsPerTier: 2,
		RetryBackoff:    5 * time.Second,
		RetryBackoffMax: 30 * time.Second,
		Timeout:         30 * time.Second,
		RenderTimeout:   90 * time.Second,
		SoftFailures: []string{
			"quota exhausted",
			"rate limited",
			"failed to render",
			"request failed. you will not be charged",
			"verify you are human",
			"security check",
		},
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		PriceFloor:     decimal.NewFromInt(50),
		PriceSelection: SelectMin,
		RowSelectors: []string{
			"tr.tr__product",
			"[class*=product-row]",
			"[class*=product-card]",
			"li[class*=product]",
			"article[class*=product]",
		},
		PriceSelectors: []string{
			"td.td__price",
			"[class*=price]",
		},
		EndpointPattern: `/qapi/[A-Za-z0-9_\-/]+(?:\?[^"'\s<>]*)?`,
		EndpointCache:   64,
		HistoryFile:     "data/price_history.json",
		HistoryLimit:    30,
		Timezone:        "America/Toronto",
		Sources: []Source{
			{
				Name:           "pcpartpicker-ca",
				URLs:           []string{"https://ca.pcpartpicker.com/products/memory/#L=25,300&S=6000,9600&X=0,100522&Z=32768002&sort=price&page={page}"},
				Pages:          1,
				RequiredTokens: []string{"32 GB", "DDR5"},
			},
		},
		Parallelism:  2,
		ReportFormat: "csv",
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.ProxyEndpoint == "" {
		return fmt.Errorf("proxy endpoint cannot be empty")
	}
	parsedURL, err := url.Parse(c.ProxyEndpoint)
	if err != nil {
		return fmt.Errorf("invalid proxy endpoint: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("proxy endpoint must include a host")
	}

	if c.StartTier < models.TierBaseline || c.StartTier > models.MaxTier {
		return fmt.Errorf("start tier %d out of range", c.StartTier)
	}
	if c.AttemptsPerTier <= 0 {
		return fmt.Errorf("attempts per tier must be positive")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.RenderTimeout <= 0 {
		return fmt.Errorf("render timeout must be positive")
	}
	if c.RenderWait < 0 {
		return fmt.Errorf("render wait cannot be negative")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	if c.PriceFloor.IsNegative() {
		return fmt.Errorf("price floor cannot be negative")
	}
	if c.PriceSelection != SelectMin && c.PriceSelection != SelectMax {
		return fmt.Errorf("price selection must be min or max")
	}
	if len(c.RowSelectors) == 0 {
		return fmt.Errorf("row selectors cannot be empty")
	}
	if c.EndpointPattern != "" {
		if _, err := regexp.Compile(c.EndpointPattern); err != nil {
			return fmt.Errorf("invalid endpoint pattern: %w", err)
		}
	}
	if c.EndpointCache <= 0 {
		return fmt.Errorf("endpoint cache size must be positive")
	}

	if c.HistoryFile == "" {
		return fmt.Errorf("history file cannot be empty")
	}
	if c.HistoryLimit < 2 {
		return fmt.Errorf("history limit must be at least 2")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}

	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source is required")
	}
	for i, src := range c.Sources {
		if src.Name == "" {
			return fmt.Errorf("source %d: name cannot be empty", i)
		}
		if len(src.URLs) == 0 {
			return fmt.Errorf("source %s: at least one url is required", src.Name)
		}
		for _, raw := range src.URLs {
			u, err := url.Parse(raw)
			if err != nil || u.Host == "" {
				return fmt.Errorf("source %s: invalid url %q", src.Name, raw)
			}
		}
		if src.MinPrice != "" {
			if _, err := decimal.NewFromString(src.MinPrice); err != nil {
				return fmt.Errorf("source %s: invalid min price: %w", src.Name, err)
			}
		}
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}

	if c.ReportFile != "" && c.ReportFormat != "csv" && c.ReportFormat != "json" && c.ReportFormat != "dual" {
		return fmt.Errorf("report format must be csv, json, or dual")
	}
	if c.Pushgateway != "" {
		if u, err := url.Parse(c.Pushgateway); err != nil || u.Host == "" {
			return fmt.Errorf("invalid pushgateway url %q", c.Pushgateway)
		}
	}

	return nil
}

// Location returns the time zone used to decide the calendar day of a run.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// TierTimeout returns the per-attempt timeout for a tier. Rendered tiers
// wait for JavaScript and get the longer budget.
func (c *Config) TierTimeout(t models.Tier) time.Duration {
	if t >= models.TierRendered {
		return c.RenderTimeout
	}
	return c.Timeout
}
