// Package notify delivers the result of a run to a human.
package notify

import (
	"context"
	"log/slog"

	"github.com/aluiziolira/go-price-watch/models"
)

// Notifier delivers a run report.
type Notifier interface {
	Notify(ctx context.Context, report models.Report) error
}

// LogNotifier writes the report to the structured log. It backs dry runs.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(ctx context.Context, report models.Report) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "deal found",
		slog.String("product", report.Winner.Name),
		slog.String("price", report.Winner.Price.StringFixed(2)),
		slog.String("url", report.Winner.URL),
		slog.String("source", report.Winner.Source),
		slog.String("average", report.Average.StringFixed(2)),
		slog.String("trend", string(report.Trend)),
		slog.Int("samples", report.Samples),
	)
	return nil
}
