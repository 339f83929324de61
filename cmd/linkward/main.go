package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/shelfmark/linkward/internal/checker"
	"github.com/shelfmark/linkward/internal/classify"
	"github.com/shelfmark/linkward/internal/config"
	"github.com/shelfmark/linkward/internal/domain/item"
	"github.com/shelfmark/linkward/internal/fetch"
	"github.com/shelfmark/linkward/internal/obs"
	"github.com/shelfmark/linkward/internal/ratelimit"
	"github.com/shelfmark/linkward/internal/report"
	pg "github.com/shelfmark/linkward/internal/repository/postgres"
)

const version = "0.2.0"

type flags struct {
	configPath  string
	dryRun      bool
	limit       int
	domain      string
	recheck     bool
	verbose     bool
	concurrency int
}

func parseFlags() flags {
	var f flags
	pflag.StringVar(&f.configPath, "config", "", "path to YAML config file")
	pflag.BoolVar(&f.dryRun, "dry-run", false, "run the pipeline without persisting anything")
	pflag.IntVar(&f.limit, "limit", 0, "cap the number of items to check (0 = all)")
	pflag.StringVar(&f.domain, "domain", "", "only check URLs containing this substring")
	pflag.BoolVar(&f.recheck, "recheck", false, "ignore the freshness window and re-check everything")
	pflag.BoolVar(&f.verbose, "verbose", false, "per-item progress on stdout log")
	pflag.IntVar(&f.concurrency, "concurrency", 0, "override the global concurrency cap")
	pflag.Parse()
	return f
}

func main() {
	f := parseFlags()

	root, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(f.configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if f.verbose && cfg.Log.Level == "info" {
		cfg.Log.Level = "debug"
	}
	if f.concurrency > 0 {
		cfg.Checker.Concurrency = f.concurrency
	}

	l, err := obs.NewLogger(cfg.Log.AsLoggerConfig("linkward", version))
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = l.Sync() }()

	if err := run(root, cfg, f, l); err != nil {
		l.Error("batch failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, f flags, l *zap.Logger) error {
	db, err := pg.New(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer db.Close()

	if cfg.Server.MetricsAddr != "" {
		ms := obs.BootstrapMetricsServer(cfg.Server.MetricsAddr, func(ctx context.Context) error {
			hctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
			defer cancel()
			return db.Pool.Ping(hctx)
		}, l)
		defer func() {
			shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = ms.Shutdown(shCtx)
		}()
	}

	items := pg.NewItemRepo(db)
	history := pg.NewHistoryRepo(db)

	var sink checker.ResultSink = pg.NewResultSink(items, history, pg.NewTransactor(db, l))
	if f.dryRun {
		l.Info("dry run: results will not be persisted")
		sink = checker.DryRunSink{}
	}

	skipHosts := cfg.Patterns.SkipHosts
	if len(skipHosts) == 0 {
		skipHosts = classify.DefaultSkipHosts
	}
	skipList := classify.NewSkipList(skipHosts)

	limiter := ratelimit.New(ratelimit.Config{
		PerDomain:   cfg.Checker.DomainConcurrency,
		MinInterval: cfg.Checker.DomainInterval(),
	})

	client := fetch.NewHTTPClient(fetch.ClientConfig{
		Timeout:      cfg.Checker.Timeout,
		MaxRedirects: cfg.HTTP.MaxRedirects,
		VerifyTLS:    cfg.HTTP.VerifyTLS,
	})
	fetcher := fetch.New(client, fetch.Config{
		Timeout:         cfg.Checker.Timeout,
		UserAgent:       cfg.HTTP.UserAgent,
		Accept:          cfg.HTTP.Accept,
		BodySampleLimit: cfg.Checker.BodySampleLimit,
	})

	classifier := classify.NewContentClassifier(classify.ContentConfig{
		Soft404Patterns: cfg.Patterns.Soft404,
		LoginPatterns:   cfg.Patterns.Login,
	})

	runner := checker.NewRunner(l, items, sink, limiter, fetcher, classifier, skipList,
		checker.RetryPolicy{
			MaxAttempts: cfg.Checker.RetryAttempts,
			BaseDelay:   cfg.Checker.RetryDelay,
		},
		checker.Config{
			Concurrency: cfg.Checker.Concurrency,
			Verbose:     f.verbose,
		},
	)

	sum, err := runner.Run(ctx, item.Filter{
		Domain:  f.domain,
		Limit:   f.limit,
		Recheck: f.recheck,
		MaxAge:  cfg.Checker.RecheckWindow,
	})
	if err != nil {
		return err
	}

	report.Write(os.Stdout, sum)
	return nil
}
