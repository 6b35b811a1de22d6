// Package discovery runs one end-to-end price discovery: fetch every source,
// extract and rank candidates, pick the global winner, update the history
// and notify.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-price-watch/config"
	"github.com/aluiziolira/go-price-watch/history"
	"github.com/aluiziolira/go-price-watch/models"
	"github.com/aluiziolira/go-price-watch/notify"
	"github.com/aluiziolira/go-price-watch/parser"
	"github.com/aluiziolira/go-price-watch/pipeline"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Extractor turns a fetched document into candidates.
type Extractor interface {
	Extract(ctx context.Context, doc *models.Document) parser.Result
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithMetrics records run metrics on m.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithReport writes every globally ranked candidate to w.
func WithReport(w pipeline.OutputWriter) Option {
	return func(o *Orchestrator) { o.report = w }
}

// WithClock overrides the clock used to date history entries.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithRunID fixes the run identifier instead of generating one.
func WithRunID(id string) Option {
	return func(o *Orchestrator) { o.runID = id }
}

// Orchestrator drives one run. The configuration is copied at construction
// and never changes afterwards.
type Orchestrator struct {
	cfg      config.Config
	fetcher  parser.Fetcher
	engine   Extractor
	store    history.Store
	notifier notify.Notifier
	report   pipeline.OutputWriter
	metrics  *Metrics

	now   func() time.Time
	runID string
}

// New builds an orchestrator.
func New(cfg config.Config, fetcher parser.Fetcher, engine Extractor, store history.Store, notifier notify.Notifier, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		fetcher:  fetcher,
		engine:   engine,
		store:    store,
		notifier: notifier,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.runID == "" {
		o.runID = uuid.NewString()
	}
	return o
}

// RunID identifies the run in results and reports.
func (o *Orchestrator) RunID() string { return o.runID }

type sourceOutcome struct {
	result     models.SourceResult
	candidates []models.Candidate
}

// Run executes the discovery. Finding no deal is a normal outcome reported
// through RunResult.Found; the returned error is only set when ctx ends the
// run early.
func (o *Orchestrator) Run(ctx context.Context) (*models.RunResult, error) {
	logger := slog.Default()
	result := &models.RunResult{RunID: o.runID, StartTime: o.now()}

	past, err := o.store.Load(ctx)
	if err != nil {
		logger.Warn("history unavailable, starting empty", slog.Any("error", err))
		past = models.History{}
	}

	outcomes := make([]sourceOutcome, len(o.cfg.Sources))
	g := new(errgroup.Group)
	g.SetLimit(max(o.cfg.Parallelism, 1))
	for i, src := range o.cfg.Sources {
		g.Go(func() error {
			outcomes[i] = o.discover(ctx, logger, src)
			return nil
		})
	}
	_ = g.Wait()

	var merged []models.Candidate
	for _, out := range outcomes {
		result.Sources = append(result.Sources, out.result)
		merged = append(merged, out.candidates...)
		if o.metrics != nil {
			o.metrics.SourceCandidates.WithLabelValues(out.result.Source).Set(float64(len(out.candidates)))
		}
	}
	if err := ctx.Err(); err != nil {
		result.EndTime = o.now()
		return result, err
	}

	ranked := pipeline.Rank(merged, pipeline.Constraints{Floor: decimal.Zero})
	result.Ranked = ranked.Candidates
	o.writeReport(logger, ranked.Candidates)

	winner, ok := ranked.Winner()
	if !ok {
		logger.Info("no deal found", slog.Int("sources", len(o.cfg.Sources)))
		o.countRun(OutcomeNoWinner)
		result.History = past
		result.EndTime = o.now()
		return result, nil
	}
	result.Found = true

	today := history.Day(o.now(), o.cfg.Location())
	updated, stats := history.Record(past, winner.Price, today, o.cfg.HistoryLimit)
	result.History = updated
	report := models.Report{
		Winner:  winner,
		Average: stats.Average,
		Trend:   stats.Trend,
		Samples: stats.Samples,
	}
	result.Report = &report

	logger.Info("winner selected",
		slog.String("product", winner.Name),
		slog.String("price", winner.Price.StringFixed(2)),
		slog.String("source", winner.Source),
		slog.String("trend", string(stats.Trend)),
		slog.Int("samples", stats.Samples),
	)

	if o.cfg.DryRun {
		logger.Info("dry run, history not persisted")
	} else if err := o.store.Save(ctx, updated); err != nil {
		logger.Error("persist history", slog.Any("error", err))
		if o.metrics != nil {
			o.metrics.PersistErrors.Inc()
		}
	}

	if err := o.notifier.Notify(ctx, report); err != nil {
		logger.Error("notify", slog.Any("error", err))
		if o.metrics != nil {
			o.metrics.NotifyErrors.Inc()
		}
	}

	o.countRun(OutcomeWinner)
	if o.metrics != nil {
		o.metrics.WinnerPrice.Set(winner.Price.InexactFloat64())
		o.metrics.AveragePrice.Set(stats.Average.InexactFloat64())
		o.metrics.HistorySamples.Set(float64(stats.Samples))
	}
	result.EndTime = o.now()
	return result, nil
}

// discover walks a source's pages in order and stops at the first page
// whose candidates survive ranking.
func (o *Orchestrator) discover(ctx context.Context, logger *slog.Logger, src config.Source) sourceOutcome {
	out := sourceOutcome{result: models.SourceResult{Source: src.Name}}
	constraints := pipeline.ConstraintsFor(src, &o.cfg)
	logger = logger.With(slog.String("source", src.Name))

	for _, pageURL := range src.PageURLs() {
		if ctx.Err() != nil {
			break
		}
		fetched := o.fetcher.Fetch(ctx, pageURL, o.cfg.StartTier)
		out.result.Pages++
		out.result.Attempts += fetched.Attempts
		out.result.Tier = fetched.Tier
		if !fetched.OK() {
			logger.Warn("no document", slog.String("url", pageURL), slog.Any("error", fetched.Err))
			continue
		}

		doc := &models.Document{
			URL:       pageURL,
			Source:    src.Name,
			Body:      fetched.Body,
			Tier:      fetched.Tier,
			FetchedAt: o.now(),
			Floor:     decimal.NewNullDecimal(constraints.Floor),
		}
		extracted := o.engine.Extract(ctx, doc)
		out.result.SkippedRows += extracted.Skipped

		ranked := pipeline.Rank(extracted.Candidates, constraints)
		logger.Debug("page ranked",
			slog.String("url", pageURL),
			slog.String("strategy", extracted.Strategy),
			slog.Int("extracted", len(extracted.Candidates)),
			slog.Int("kept", len(ranked.Candidates)),
			slog.Any("rejected", ranked.Rejected),
		)
		if _, ok := ranked.Winner(); ok {
			out.result.Strategy = extracted.Strategy
			out.result.Candidates = len(ranked.Candidates)
			out.result.Found = true
			out.candidates = ranked.Candidates
			return out
		}
	}

	logger.Info("source yielded no candidates", slog.Int("pages", out.result.Pages))
	return out
}

func (o *Orchestrator) writeReport(logger *slog.Logger, ranked []models.Candidate) {
	if o.report == nil || len(ranked) == 0 {
		return
	}
	if err := o.report.Write(ranked); err != nil {
		logger.Error("write report", slog.Any("error", fmt.Errorf("run %s: %w", o.runID, err)))
	}
}

func (o *Orchestrator) countRun(outcome string) {
	if o.metrics != nil {
		o.metrics.RunsTotal.WithLabelValues(outcome).Inc()
	}
}
