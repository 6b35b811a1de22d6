// Package models defines data structures shared by the price-discovery pipeline.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candidate is one parsed product/price observation from a single source page.
type Candidate struct {
	Name   string          `csv:"name" json:"name"`
	Price  decimal.Decimal `csv:"price" json:"price"`
	URL    string          `csv:"url" json:"url"`
	Source string          `csv:"source" json:"source"`
}

// Document is a fetched page handed to the extraction engine. Floor, when
// valid, replaces the configured price floor for this page's source.
type Document struct {
	URL       string
	Source    string
	Body      []byte
	Tier      Tier
	FetchedAt time.Time
	Floor     decimal.NullDecimal
}
