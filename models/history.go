package models

import "github.com/shopspring/decimal"

// DateLayout is the calendar-day format used for history entries.
const DateLayout = "2006-01-02"

// HistoryEntry is the winning price observed on one calendar day.
type HistoryEntry struct {
	Date  string          `json:"date"`
	Price decimal.Decimal `json:"price"`
}

// History is ordered by date, oldest first.
type History []HistoryEntry

// Clone returns an independent copy.
func (h History) Clone() History {
	if h == nil {
		return nil
	}
	out := make(History, len(h))
	copy(out, h)
	return out
}

// Trend is the day-over-day price direction.
type Trend string

const (
	TrendFalling Trend = "falling"
	TrendRising  Trend = "rising"
	TrendFlat    Trend = "flat"
)
