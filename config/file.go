package config

import (
	"fmt"
	"os"
	"time"

	"github.com/aluiziolira/go-price-watch/models"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the YAML layout. Pointer fields distinguish "unset"
// from zero values so the file only overrides what it names.
type fileConfig struct {
	Proxy struct {
		Endpoint        *string  `yaml:"endpoint"`
		Country         *string  `yaml:"country"`
		Device          *string  `yaml:"device"`
		RenderWait      *string  `yaml:"render_wait"`
		Scroll          *bool    `yaml:"scroll"`
		StartTier       *string  `yaml:"start_tier"`
		AttemptsPerTier *int     `yaml:"attempts_per_tier"`
		RetryBackoff    *string  `yaml:"retry_backoff"`
		RetryBackoffMax *string  `yaml:"retry_backoff_max"`
		Timeout         *string  `yaml:"timeout"`
		RenderTimeout   *string  `yaml:"render_timeout"`
		SoftFailures    []string `yaml:"soft_failures"`
	} `yaml:"proxy"`
	Extract struct {
		PriceFloor      *string  `yaml:"price_floor"`
		PriceSelection  *string  `yaml:"price_selection"`
		RowSelectors    []string `yaml:"row_selectors"`
		PriceSelectors  []string `yaml:"price_selectors"`
		EndpointPattern *string  `yaml:"endpoint_pattern"`
	} `yaml:"extract"`
	History struct {
		File     *string `yaml:"file"`
		Limit    *int    `yaml:"limit"`
		Timezone *string `yaml:"timezone"`
	} `yaml:"history"`
	Parallelism *int     `yaml:"parallelism"`
	Sources     []Source `yaml:"sources"`
}

// LoadFile overlays the YAML file at path onto cfg.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return fc.apply(cfg)
}

func (fc *fileConfig) apply(cfg *Config) error {
	p := fc.Proxy
	setString(&cfg.ProxyEndpoint, p.Endpoint)
	setString(&cfg.Country, p.Country)
	setString(&cfg.Device, p.Device)
	if p.Scroll != nil {
		cfg.Scroll = *p.Scroll
	}
	if p.StartTier != nil {
		tier, ok := models.ParseTier(*p.StartTier)
		if !ok {
			return fmt.Errorf("unknown start tier %q", *p.StartTier)
		}
		cfg.StartTier = tier
	}
	if p.AttemptsPerTier != nil {
		cfg.AttemptsPerTier = *p.AttemptsPerTier
	}
	durations := []struct {
		raw *string
		dst *time.Duration
		key string
	}{
		{p.RenderWait, &cfg.RenderWait, "render_wait"},
		{p.RetryBackoff, &cfg.RetryBackoff, "retry_backoff"},
		{p.RetryBackoffMax, &cfg.RetryBackoffMax, "retry_backoff_max"},
		{p.Timeout, &cfg.Timeout, "timeout"},
		{p.RenderTimeout, &cfg.RenderTimeout, "render_timeout"},
	}
	for _, d := range durations {
		if d.raw == nil {
			continue
		}
		v, err := time.ParseDuration(*d.raw)
		if err != nil {
			return fmt.Errorf("proxy.%s: %w", d.key, err)
		}
		*d.dst = v
	}
	if len(p.SoftFailures) > 0 {
		cfg.SoftFailures = p.SoftFailures
	}

	e := fc.Extract
	if e.PriceFloor != nil {
		floor, err := decimal.NewFromString(*e.PriceFloor)
		if err != nil {
			return fmt.Errorf("extract.price_floor: %w", err)
		}
		cfg.PriceFloor = floor
	}
	setString(&cfg.PriceSelection, e.PriceSelection)
	setString(&cfg.EndpointPattern, e.EndpointPattern)
	if len(e.RowSelectors) > 0 {
		cfg.RowSelectors = e.RowSelectors
	}
	if len(e.PriceSelectors) > 0 {
		cfg.PriceSelectors = e.PriceSelectors
	}

	setString(&cfg.HistoryFile, fc.History.File)
	setString(&cfg.Timezone, fc.History.Timezone)
	if fc.History.Limit != nil {
		cfg.HistoryLimit = *fc.History.Limit
	}

	if fc.Parallelism != nil {
		cfg.Parallelism = *fc.Parallelism
	}
	if len(fc.Sources) > 0 {
		cfg.Sources = fc.Sources
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
