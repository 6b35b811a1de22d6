package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/aluiziolira/go-price-watch/config"
	"github.com/aluiziolira/go-price-watch/discovery"
	"github.com/aluiziolira/go-price-watch/fetcher"
	"github.com/aluiziolira/go-price-watch/history"
	"github.com/aluiziolira/go-price-watch/models"
	"github.com/aluiziolira/go-price-watch/notify"
	"github.com/aluiziolira/go-price-watch/parser"
	"github.com/aluiziolira/go-price-watch/pipeline"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/shopspring/decimal"
)

type options struct {
	configFile  string
	envFile     string
	verbose     bool
	dryRun      bool
	report      string
	format      string
	pushgateway string
	startTier   string
	attempts    int
	floor       string
	selection   string
	historyFile string
	parallel    int
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, fs, err := parseFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	logger, level := newLogger(opts.verbose)
	runID := uuid.NewString()
	slog.SetDefault(logger.With(slog.String("run_id", runID)))
	slog.SetLogLoggerLevel(level.Level())

	cfg, err := buildConfig(opts, fs)
	if err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		return 1
	}

	secrets, err := config.LoadSecrets(!cfg.DryRun, opts.envFile)
	if err != nil {
		slog.Error("missing credentials", slog.Any("error", err))
		return 1
	}

	reg := prometheus.NewRegistry()
	client, err := fetcher.NewClient(cfg, secrets.ProxyAPIKey, fetcher.NewMetrics(reg))
	if err != nil {
		slog.Error("initialising fetch client", slog.Any("error", err))
		return 1
	}
	engine, err := parser.NewDefaultEngine(cfg, client, parser.NewMetrics(reg))
	if err != nil {
		slog.Error("initialising extraction engine", slog.Any("error", err))
		return 1
	}

	var notifier notify.Notifier = notify.LogNotifier{}
	if !cfg.DryRun {
		discord, err := notify.NewDiscord(secrets.WebhookURL, cfg.Timeout)
		if err != nil {
			slog.Error("initialising notifier", slog.Any("error", err))
			return 1
		}
		notifier = discord
	}

	runOpts := []discovery.Option{
		discovery.WithMetrics(discovery.NewMetrics(reg)),
		discovery.WithRunID(runID),
	}
	var writer pipeline.OutputWriter
	if cfg.ReportFile != "" {
		writer, err = pipeline.NewWriter(cfg.ReportFormat, cfg.ReportFile)
		if err != nil {
			slog.Error("creating report writer", slog.Any("error", err))
			return 1
		}
		defer func() {
			if err := writer.Close(); err != nil {
				slog.Error("close report writer", slog.Any("error", err))
			}
		}()
		runOpts = append(runOpts, discovery.WithReport(writer))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting price discovery",
		slog.Int("sources", len(cfg.Sources)),
		slog.String("start_tier", cfg.StartTier.String()),
		slog.String("history", cfg.HistoryFile),
		slog.Bool("dry_run", cfg.DryRun),
	)

	orchestrator := discovery.New(*cfg, client, engine, history.NewFileStore(cfg.HistoryFile), notifier, runOpts...)
	startTime := time.Now()
	result, err := orchestrator.Run(ctx)
	if err != nil {
		slog.Warn("run interrupted", slog.Any("error", err))
	}

	if writer != nil && result != nil && len(result.Ranked) > 0 {
		if err := writer.Validate(); err != nil {
			slog.Error("report validation failed", slog.Any("error", err))
		}
	}

	if cfg.Pushgateway != "" {
		pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := push.New(cfg.Pushgateway, "pricewatch").Gatherer(reg).PushContext(pushCtx)
		cancel()
		if err != nil {
			slog.Error("push metrics", slog.Any("error", err))
		}
	}

	if result != nil {
		printSummary(result, time.Since(startTime), cfg.ReportFile)
	}
	return 0
}

func parseFlags(args []string) (*options, *flag.FlagSet, error) {
	def := config.DefaultConfig()
	opts := &options{}
	fs := flag.NewFlagSet("pricewatch", flag.ContinueOnError)

	fs.StringVar(&opts.configFile, "config", "", "YAML configuration file")
	fs.StringVar(&opts.envFile, "env-file", ".env", "Dotenv file with PROXY_API_KEY and DISCORD_WEBHOOK")
	fs.BoolVar(&opts.verbose, "v", false, "Enable verbose logging")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "Log the deal instead of posting it and leave history untouched")
	fs.StringVar(&opts.report, "report", "", "Write ranked candidates to this file")
	fs.StringVar(&opts.format, "report-format", def.ReportFormat, "Report format: csv, json, or dual")
	fs.StringVar(&opts.pushgateway, "pushgateway", "", "Prometheus Pushgateway URL")
	fs.StringVar(&opts.startTier, "start-tier", def.StartTier.String(), "First fetch tier: baseline, rendered, or residential")
	fs.IntVar(&opts.attempts, "attempts-per-tier", def.AttemptsPerTier, "Fetch attempts before escalating to the next tier")
	fs.StringVar(&opts.floor, "floor", def.PriceFloor.String(), "Minimum plausible price")
	fs.StringVar(&opts.selection, "selection", def.PriceSelection, "Row price policy: min or max")
	fs.StringVar(&opts.historyFile, "history", def.HistoryFile, "Price history file")
	fs.IntVar(&opts.parallel, "parallel", def.Parallelism, "Sources fetched concurrently")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return opts, fs, nil
}

// buildConfig layers defaults, the YAML file, PRICEWATCH_* variables and
// explicitly set flags, in that order.
func buildConfig(opts *options, fs *flag.FlagSet) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if opts.configFile != "" {
		if err := config.LoadFile(opts.configFile, cfg); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	var flagErr error
	fs.Visit(func(f *flag.Flag) {
		if flagErr != nil {
			return
		}
		flagErr = applyFlag(cfg, opts, f.Name)
	})
	if flagErr != nil {
		return nil, flagErr
	}
	cfg.Verbose = opts.verbose

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *config.Config) error {
	if value, ok := config.EnvString("PRICEWATCH_PROXY_ENDPOINT"); ok {
		cfg.ProxyEndpoint = value
	}
	if value, ok := config.EnvString("PRICEWATCH_HISTORY_FILE"); ok {
		cfg.HistoryFile = value
	}
	if value, ok := config.EnvString("PRICEWATCH_TIMEZONE"); ok {
		cfg.Timezone = value
	}
	if value, ok := config.EnvString("PRICEWATCH_PUSHGATEWAY"); ok {
		cfg.Pushgateway = value
	}
	if value, ok, err := config.EnvInt("PRICEWATCH_PARALLEL"); err != nil {
		return err
	} else if ok {
		cfg.Parallelism = value
	}
	if value, ok, err := config.EnvInt("PRICEWATCH_ATTEMPTS_PER_TIER"); err != nil {
		return err
	} else if ok {
		cfg.AttemptsPerTier = value
	}
	if value, ok, err := config.EnvDuration("PRICEWATCH_RENDER_TIMEOUT"); err != nil {
		return err
	} else if ok {
		cfg.RenderTimeout = value
	}
	if value, ok, err := config.EnvBool("PRICEWATCH_DRY_RUN"); err != nil {
		return err
	} else if ok {
		cfg.DryRun = value
	}
	return nil
}

func applyFlag(cfg *config.Config, opts *options, name string) error {
	switch name {
	case "dry-run":
		cfg.DryRun = opts.dryRun
	case "report":
		cfg.ReportFile = opts.report
	case "report-format":
		cfg.ReportFormat = strings.ToLower(opts.format)
	case "pushgateway":
		cfg.Pushgateway = opts.pushgateway
	case "start-tier":
		tier, ok := models.ParseTier(strings.ToLower(opts.startTier))
		if !ok {
			return fmt.Errorf("unknown start tier %q", opts.startTier)
		}
		cfg.StartTier = tier
	case "attempts-per-tier":
		cfg.AttemptsPerTier = opts.attempts
	case "floor":
		floor, err := decimal.NewFromString(opts.floor)
		if err != nil {
			return fmt.Errorf("invalid floor %q: %w", opts.floor, err)
		}
		cfg.PriceFloor = floor
	case "selection":
		cfg.PriceSelection = strings.ToLower(opts.selection)
	case "history":
		cfg.HistoryFile = opts.historyFile
	case "parallel":
		cfg.Parallelism = opts.parallel
	}
	return nil
}

func printSummary(result *models.RunResult, duration time.Duration, reportFile string) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Price discovery complete")

	for _, src := range result.Sources {
		status := "no candidates"
		if src.Found {
			status = fmt.Sprintf("%d candidates via %s", src.Candidates, src.Strategy)
		}
		fmt.Printf("  %-14s %s (pages %d, attempts %d, tier %s, skipped rows %d)\n",
			src.Source+":", status, src.Pages, src.Attempts, src.Tier, src.SkippedRows)
	}

	if result.Report == nil {
		fmt.Println("  No deal found.")
	} else {
		r := result.Report
		fmt.Printf("  Winner:        %s\n", r.Winner.Name)
		fmt.Printf("  Price:         $%s\n", r.Winner.Price.StringFixed(2))
		fmt.Printf("  Link:          %s\n", r.Winner.URL)
		fmt.Printf("  Average:       $%s over %d days\n", r.Average.StringFixed(2), r.Samples)
		fmt.Printf("  Trend:         %s\n", r.Trend)
	}
	fmt.Printf("  Ranked:        %d\n", len(result.Ranked))
	fmt.Printf("  Duration:      %v\n", duration)
	if reportFile != "" {
		fmt.Printf("  Report file:   %s\n", reportFile)
	}
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
