package parser

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aluiziolira/go-price-watch/config"
	"github.com/aluiziolira/go-price-watch/models"
)

// Fetcher retrieves a URL through the escalating fetch client.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, start models.Tier) models.FetchResult
}

// Result is the outcome of one extraction pass. Skipped counts rows or
// records that looked like products but lacked a name or a valid price.
type Result struct {
	Strategy   string
	Candidates []models.Candidate
	Skipped    int
}

// Strategy is one independent way of reading candidates out of a document.
// A strategy never fails: malformed rows are skipped and counted.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, doc *models.Document) Result
}

// Engine tries strategies in priority order and keeps the first one that
// yields at least one candidate.
type Engine struct {
	strategies []Strategy
	metrics    *Metrics
}

// NewEngine builds an engine over strategies, highest priority first.
func NewEngine(metrics *Metrics, strategies ...Strategy) *Engine {
	return &Engine{strategies: strategies, metrics: metrics}
}

// NewDefaultEngine wires the endpoint, DOM and regex strategies from cfg.
func NewDefaultEngine(cfg *config.Config, fetcher Fetcher, metrics *Metrics) (*Engine, error) {
	policy := PolicyFromConfig(cfg)
	endpoint, err := NewEndpointStrategy(fetcher, cfg.EndpointPattern, policy, cfg.EndpointCache)
	if err != nil {
		return nil, fmt.Errorf("endpoint strategy: %w", err)
	}
	return NewEngine(metrics,
		endpoint,
		NewDOMStrategy(cfg.RowSelectors, cfg.PriceSelectors, policy),
		NewRegexStrategy(cfg.RowSelectors, policy),
	), nil
}

// Extract runs the strategies against doc. Skipped is the total across every
// strategy that was tried.
func (e *Engine) Extract(ctx context.Context, doc *models.Document) Result {
	skipped := 0
	for _, s := range e.strategies {
		if ctx.Err() != nil {
			break
		}
		res := s.Extract(ctx, doc)
		res.Strategy = s.Name()
		skipped += res.Skipped
		e.metrics.AddSkipped(s.Name(), res.Skipped)

		if len(res.Candidates) > 0 {
			e.metrics.IncStrategy(s.Name())
			slog.Debug("extraction strategy matched",
				slog.String("strategy", s.Name()),
				slog.String("url", doc.URL),
				slog.Int("candidates", len(res.Candidates)),
				slog.Int("skipped", skipped),
			)
			res.Skipped = skipped
			return res
		}
	}

	e.metrics.IncStrategy("none")
	slog.Warn("no extraction strategy produced candidates",
		slog.String("url", doc.URL),
		slog.Int("skipped", skipped),
	)
	return Result{Skipped: skipped}
}
