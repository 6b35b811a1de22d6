// Package history keeps the bounded daily series of winning prices and
// derives the average and day-over-day trend.
package history

import (
	"sort"
	"time"

	"github.com/aluiziolira/go-price-watch/models"
	"github.com/shopspring/decimal"
)

// DefaultLimit is the number of daily entries retained.
const DefaultLimit = 30

// Stats summarises a history right after a price was recorded.
type Stats struct {
	Average decimal.Decimal
	Trend   models.Trend
	Samples int
}

// Day formats t as a calendar day in loc.
func Day(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(models.DateLayout)
}

// Record adds price for today and returns the updated history with its stats.
// h must be ordered by date. Today's entry is placed by date, so a day
// already present is overwritten and an earlier day (after a clock or time
// zone change) never lands after a later one. The trend compares against the
// entry preceding today, and only the newest limit entries are kept. h itself
// is not modified.
func Record(h models.History, price decimal.Decimal, today string, limit int) (models.History, Stats) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	updated := h.Clone()
	i := sort.Search(len(updated), func(i int) bool { return updated[i].Date >= today })
	if i < len(updated) && updated[i].Date == today {
		updated[i].Price = price
	} else {
		updated = append(updated, models.HistoryEntry{})
		copy(updated[i+1:], updated[i:])
		updated[i] = models.HistoryEntry{Date: today, Price: price}
	}

	trend := models.TrendFlat
	if i > 0 {
		prev := updated[i-1].Price
		switch {
		case price.LessThan(prev):
			trend = models.TrendFalling
		case price.GreaterThan(prev):
			trend = models.TrendRising
		}
	}

	if len(updated) > limit {
		updated = append(models.History(nil), updated[len(updated)-limit:]...)
	}

	return updated, Stats{
		Average: Average(updated),
		Trend:   trend,
		Samples: len(updated),
	}
}

// Average is the arithmetic mean of every entry's price.
func Average(h models.History) decimal.Decimal {
	if len(h) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, e := range h {
		sum = sum.Add(e.Price)
	}
	return sum.Div(decimal.NewFromInt(int64(len(h))))
}
