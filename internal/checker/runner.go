package checker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/shelfmark/linkward/internal/classify"
	"github.com/shelfmark/linkward/internal/domain/item"
	"github.com/shelfmark/linkward/internal/domain/linkcheck"
	"github.com/shelfmark/linkward/internal/fetch"
	"github.com/shelfmark/linkward/internal/ratelimit"
)

var (
	mTargets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linkward_targets_total", Help: "Targets processed",
	})
	mSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linkward_skipped_total", Help: "Targets on the skip list",
	})
	mBroken = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linkward_broken_total", Help: "Targets persisted as broken",
	})
	mRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linkward_retries_total", Help: "Extra fetch attempts",
	})
	mFetchDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "linkward_fetch_duration_seconds",
		Help:    "Fetch latency per attempt",
		Buckets: prometheus.DefBuckets,
	})
)

// Fetcher is the single-attempt HTTP probe.
type Fetcher interface {
	Do(ctx context.Context, url string) fetch.Outcome
}

type Config struct {
	Concurrency int
	Verbose     bool
}

// SkippedItem records a target excluded from checking.
type SkippedItem struct {
	ItemID   string
	URL      string
	Hostname string
}

// BrokenItem is one entry of the broken-links report.
type BrokenItem struct {
	ItemID   string
	URL      string
	Hostname string
	Status   linkcheck.Status
	HTTPCode int
	Soft404  bool
}

// Summary aggregates one batch run for reporting.
type Summary struct {
	BatchID      uuid.UUID
	Total        int
	ByStatus     map[linkcheck.Status]int
	SoftNotFound int
	Skipped      []SkippedItem
	Broken       []BrokenItem
	Domains      []ratelimit.DomainStats
	Elapsed      time.Duration
}

// Runner fans the work list out under the global concurrency cap while each
// attempt passes through the per-domain limiter.
type Runner struct {
	log        *zap.Logger
	items      item.Repo
	sink       ResultSink
	limiter    *ratelimit.DomainLimiter
	fetcher    Fetcher
	classifier *classify.ContentClassifier
	skipList   *classify.SkipList
	retry      RetryPolicy
	cfg        Config
	clock      func() time.Time
}

func NewRunner(
	log *zap.Logger,
	items item.Repo,
	sink ResultSink,
	limiter *ratelimit.DomainLimiter,
	fetcher Fetcher,
	classifier *classify.ContentClassifier,
	skipList *classify.SkipList,
	retry RetryPolicy,
	cfg Config,
) *Runner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 20
	}
	return &Runner{
		log:        log,
		items:      items,
		sink:       sink,
		limiter:    limiter,
		fetcher:    fetcher,
		classifier: classifier,
		skipList:   skipList,
		retry:      retry,
		cfg:        cfg,
		clock:      time.Now,
	}
}

// Run pulls the work list and checks every target. Individual link failures
// are data; only a work-list read or persistence failure aborts the run.
func (r *Runner) Run(ctx context.Context, filter item.Filter) (*Summary, error) {
	targets, err := r.items.ListCheckable(ctx, filter)
	if err != nil {
		return nil, err
	}

	sum := &Summary{
		BatchID:  uuid.New(),
		Total:    len(targets),
		ByStatus: make(map[linkcheck.Status]int),
	}
	r.log.Info("batch start",
		zap.String("batch_id", sum.BatchID.String()),
		zap.Int("targets", len(targets)),
		zap.Int("concurrency", r.cfg.Concurrency),
	)

	start := r.clock()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		fatalErr error
	)
	sem := semaphore.NewWeighted(int64(r.cfg.Concurrency))
	done := 0

	for _, t := range targets {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(t item.Target) {
			defer wg.Done()
			defer sem.Release(1)

			res, skipped, err := r.checkOne(ctx, sum.BatchID, t)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if fatalErr == nil && ctx.Err() == nil {
					fatalErr = err
					cancel()
				}
				return
			}
			done++
			mTargets.Inc()
			if skipped != nil {
				sum.Skipped = append(sum.Skipped, *skipped)
				mSkipped.Inc()
				r.progress(done, sum.Total, t.URL, "skipped")
				return
			}
			sum.ByStatus[res.Status]++
			if res.SoftNotFound {
				sum.SoftNotFound++
			}
			if collapsed := linkcheck.Collapse(res); collapsed == item.StoredBroken {
				mBroken.Inc()
				code := 0
				if res.HTTPStatus != nil {
					code = *res.HTTPStatus
				}
				sum.Broken = append(sum.Broken, BrokenItem{
					ItemID:   t.ID,
					URL:      t.URL,
					Hostname: hostnameOf(r.skipList, t.URL),
					Status:   res.Status,
					HTTPCode: code,
					Soft404:  res.SoftNotFound,
				})
			}
			r.progress(done, sum.Total, t.URL, string(res.Status))
		}(t)
	}

	wg.Wait()
	sum.Elapsed = r.clock().Sub(start)
	sum.Domains = r.limiter.Snapshot()

	if fatalErr != nil {
		return sum, fatalErr
	}
	if err := ctx.Err(); err != nil {
		// External cancellation (signal); partial progress already persisted
		// stays valid.
		r.log.Warn("batch interrupted", zap.Error(err))
	}
	r.log.Info("batch done",
		zap.Int("checked", done-len(sum.Skipped)),
		zap.Int("skipped", len(sum.Skipped)),
		zap.Int("broken", len(sum.Broken)),
		zap.Duration("elapsed", sum.Elapsed),
	)
	return sum, nil
}

// checkOne drives a single target to completion: classify the URL, then the
// attempt loop, then persistence. A nil result with a non-nil SkippedItem
// means the target never entered the fetcher.
func (r *Runner) checkOne(ctx context.Context, batchID uuid.UUID, t item.Target) (*linkcheck.Result, *SkippedItem, error) {
	info := r.skipList.Inspect(t.URL)

	if !info.Valid {
		res := &linkcheck.Result{
			BatchID:   batchID,
			ItemID:    t.ID,
			URL:       t.URL,
			Status:    linkcheck.StatusBroken,
			ErrorKind: strPtr(info.Reason),
			Attempts:  0,
			CheckedAt: r.clock().UTC(),
		}
		if err := r.sink.Record(ctx, res); err != nil {
			return nil, nil, err
		}
		return res, nil, nil
	}
	if info.Skip {
		return nil, &SkippedItem{ItemID: t.ID, URL: t.URL, Hostname: info.Hostname}, nil
	}

	var (
		out    fetch.Outcome
		status linkcheck.Status
		diag   classify.Diagnostics
	)
	attempt := 0
	for {
		attempt++
		if err := r.limiter.Acquire(ctx, info.Hostname); err != nil {
			return nil, nil, err
		}
		out = r.fetcher.Do(ctx, t.URL)
		status, diag = r.classifier.Classify(out)
		broken := diag.SoftNotFound || (status != linkcheck.StatusOK && status != linkcheck.StatusLoginRequired)
		r.limiter.Release(info.Hostname, broken)
		mFetchDur.Observe(out.Elapsed.Seconds())

		if !r.retry.ShouldRetry(attempt, status) {
			break
		}
		mRetries.Inc()
		r.log.Debug("transient failure, retrying",
			zap.String("url", t.URL),
			zap.String("status", string(status)),
			zap.Int("attempt", attempt),
		)
		if err := sleepCtx(ctx, r.retry.Delay(attempt)); err != nil {
			return nil, nil, err
		}
	}

	res := buildResult(batchID, t, out, status, diag, attempt, r.clock().UTC())
	if err := r.sink.Record(ctx, res); err != nil {
		return nil, nil, err
	}
	return res, nil, nil
}

func buildResult(batchID uuid.UUID, t item.Target, out fetch.Outcome, status linkcheck.Status, diag classify.Diagnostics, attempts int, at time.Time) *linkcheck.Result {
	res := &linkcheck.Result{
		BatchID:      batchID,
		ItemID:       t.ID,
		URL:          t.URL,
		Status:       status,
		Redirected:   out.Redirected,
		SoftNotFound: diag.SoftNotFound,
		Attempts:     attempts,
		CheckedAt:    at,
	}
	if out.Responded() {
		code := out.StatusCode
		res.HTTPStatus = &code
		if out.ContentLength >= 0 {
			cl := out.ContentLength
			res.ContentLength = &cl
		}
	} else {
		res.ErrorKind = strPtr(out.ErrKind)
		res.ErrorMessage = strPtr(out.ErrMsg)
	}
	if out.Redirected {
		res.FinalURL = strPtr(out.FinalURL)
	}
	if out.Elapsed > 0 {
		ms := out.Elapsed.Milliseconds()
		res.ResponseTimeMs = &ms
	}
	return res
}

func (r *Runner) progress(done, total int, url, status string) {
	fields := []zap.Field{
		zap.Int("done", done),
		zap.Int("total", total),
		zap.String("url", url),
		zap.String("status", status),
	}
	if r.cfg.Verbose {
		r.log.Info("checked", fields...)
	} else {
		r.log.Debug("checked", fields...)
	}
}

func hostnameOf(s *classify.SkipList, rawURL string) string {
	info := s.Inspect(rawURL)
	return info.Hostname
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func strPtr(s string) *string { return &s }
