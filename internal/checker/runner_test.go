package checker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shelfmark/linkward/internal/classify"
	"github.com/shelfmark/linkward/internal/domain/item"
	"github.com/shelfmark/linkward/internal/domain/linkcheck"
	"github.com/shelfmark/linkward/internal/fetch"
	"github.com/shelfmark/linkward/internal/ratelimit"
)

type fakeItems struct {
	targets []item.Target
	err     error
}

func (f *fakeItems) ListCheckable(context.Context, item.Filter) ([]item.Target, error) {
	return f.targets, f.err
}

func (f *fakeItems) SetLinkStatus(context.Context, string, item.StoredStatus, time.Time) error {
	return nil
}

type memSink struct {
	mu      sync.Mutex
	results []*linkcheck.Result
	err     error
}

func (s *memSink) Record(_ context.Context, r *linkcheck.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.results = append(s.results, r)
	return nil
}

func (s *memSink) byItem(id string) *linkcheck.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.results {
		if r.ItemID == id {
			return r
		}
	}
	return nil
}

func (s *memSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

// scriptedFetcher returns canned outcomes per URL, indexed by call number.
type scriptedFetcher struct {
	mu     sync.Mutex
	calls  map[string]int
	script func(url string, call int) fetch.Outcome
}

func newScriptedFetcher(script func(url string, call int) fetch.Outcome) *scriptedFetcher {
	return &scriptedFetcher{calls: make(map[string]int), script: script}
}

func (f *scriptedFetcher) Do(_ context.Context, url string) fetch.Outcome {
	f.mu.Lock()
	f.calls[url]++
	n := f.calls[url]
	f.mu.Unlock()
	return f.script(url, n)
}

func (f *scriptedFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func okOutcome(url string) fetch.Outcome {
	return fetch.Outcome{
		URL: url, StatusCode: 200,
		ContentType: "text/html",
		BodySample:  "<html><body>fine</body></html>",
		Elapsed:     5 * time.Millisecond,
	}
}

func newTestRunner(items item.Repo, sink ResultSink, fetcher Fetcher, retry RetryPolicy) *Runner {
	return NewRunner(
		zap.NewNop(),
		items,
		sink,
		ratelimit.New(ratelimit.Config{PerDomain: 2}),
		fetcher,
		classify.NewContentClassifier(classify.ContentConfig{}),
		classify.NewSkipList([]string{"skiplisted.com"}),
		retry,
		Config{Concurrency: 4},
	)
}

func TestRunner_HTTP404PersistsBroken(t *testing.T) {
	items := &fakeItems{targets: []item.Target{{ID: "i1", URL: "https://example.com/404page"}}}
	sink := &memSink{}
	fetcher := newScriptedFetcher(func(url string, _ int) fetch.Outcome {
		return fetch.Outcome{URL: url, StatusCode: 404, ContentType: "text/html", Elapsed: time.Millisecond}
	})

	sum, err := newTestRunner(items, sink, fetcher, DefaultRetryPolicy()).Run(context.Background(), item.Filter{})
	require.NoError(t, err)

	res := sink.byItem("i1")
	require.NotNil(t, res)
	assert.Equal(t, linkcheck.StatusBroken, res.Status)
	require.NotNil(t, res.HTTPStatus)
	assert.Equal(t, 404, *res.HTTPStatus)
	assert.Equal(t, item.StoredBroken, linkcheck.Collapse(res))
	assert.Len(t, sum.Broken, 1)
}

func TestRunner_Soft404SurfacedAsBroken(t *testing.T) {
	items := &fakeItems{targets: []item.Target{{ID: "i1", URL: "https://example.com/article"}}}
	sink := &memSink{}
	fetcher := newScriptedFetcher(func(url string, _ int) fetch.Outcome {
		out := okOutcome(url)
		out.BodySample = "<html><body>This page doesn't exist</body></html>"
		return out
	})

	sum, err := newTestRunner(items, sink, fetcher, DefaultRetryPolicy()).Run(context.Background(), item.Filter{})
	require.NoError(t, err)

	res := sink.byItem("i1")
	require.NotNil(t, res)
	assert.Equal(t, linkcheck.StatusOK, res.Status)
	assert.True(t, res.SoftNotFound)
	assert.Equal(t, item.StoredBroken, linkcheck.Collapse(res))
	require.Len(t, sum.Broken, 1)
	assert.True(t, sum.Broken[0].Soft404)
}

func TestRunner_SkipListedNeverFetchedNorPersisted(t *testing.T) {
	items := &fakeItems{targets: []item.Target{{ID: "i1", URL: "https://skiplisted.com/post"}}}
	sink := &memSink{}
	fetcher := newScriptedFetcher(func(url string, _ int) fetch.Outcome { return okOutcome(url) })

	sum, err := newTestRunner(items, sink, fetcher, DefaultRetryPolicy()).Run(context.Background(), item.Filter{})
	require.NoError(t, err)

	assert.Zero(t, fetcher.callCount("https://skiplisted.com/post"))
	assert.Zero(t, sink.count())
	require.Len(t, sum.Skipped, 1)
	assert.Equal(t, "skiplisted.com", sum.Skipped[0].Hostname)
}

func TestRunner_SubdomainOfSkippedHostIsSkipped(t *testing.T) {
	items := &fakeItems{targets: []item.Target{{ID: "i1", URL: "https://www.skiplisted.com/x"}}}
	sink := &memSink{}
	fetcher := newScriptedFetcher(func(url string, _ int) fetch.Outcome { return okOutcome(url) })

	sum, err := newTestRunner(items, sink, fetcher, DefaultRetryPolicy()).Run(context.Background(), item.Filter{})
	require.NoError(t, err)
	assert.Zero(t, sink.count())
	assert.Len(t, sum.Skipped, 1)
}

func TestRunner_InvalidURLShortCircuits(t *testing.T) {
	items := &fakeItems{targets: []item.Target{{ID: "i1", URL: "not a url"}}}
	sink := &memSink{}
	fetcher := newScriptedFetcher(func(url string, _ int) fetch.Outcome { return okOutcome(url) })

	sum, err := newTestRunner(items, sink, fetcher, DefaultRetryPolicy()).Run(context.Background(), item.Filter{})
	require.NoError(t, err)

	assert.Zero(t, fetcher.callCount("not a url"))
	res := sink.byItem("i1")
	require.NotNil(t, res)
	assert.Equal(t, linkcheck.StatusBroken, res.Status)
	require.NotNil(t, res.ErrorKind)
	assert.Equal(t, classify.KindInvalidURL, *res.ErrorKind)
	assert.Zero(t, res.Attempts)
	assert.Len(t, sum.Broken, 1)
}

func TestRunner_TransientFailureRetriedOnce(t *testing.T) {
	const u = "https://flaky.example.com/a"
	items := &fakeItems{targets: []item.Target{{ID: "i1", URL: u}}}
	sink := &memSink{}
	fetcher := newScriptedFetcher(func(url string, call int) fetch.Outcome {
		if call == 1 {
			return fetch.Outcome{URL: url, ErrKind: fetch.ErrKindTimeout, ErrMsg: "request timed out"}
		}
		return okOutcome(url)
	})

	retry := RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond}
	_, err := newTestRunner(items, sink, fetcher, retry).Run(context.Background(), item.Filter{})
	require.NoError(t, err)

	assert.Equal(t, 2, fetcher.callCount(u))
	res := sink.byItem("i1")
	require.NotNil(t, res)
	assert.Equal(t, linkcheck.StatusOK, res.Status)
	assert.Equal(t, 2, res.Attempts)
	require.NotNil(t, res.HTTPStatus)
	assert.Equal(t, 200, *res.HTTPStatus)
	assert.Nil(t, res.ErrorKind, "only the final attempt's diagnostics survive")
}

func TestRunner_RetryBounded(t *testing.T) {
	const u = "https://down.example.com/a"
	items := &fakeItems{targets: []item.Target{{ID: "i1", URL: u}}}
	sink := &memSink{}
	fetcher := newScriptedFetcher(func(url string, _ int) fetch.Outcome {
		return fetch.Outcome{URL: url, ErrKind: fetch.ErrKindTimeout, ErrMsg: "request timed out"}
	})

	retry := RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond}
	_, err := newTestRunner(items, sink, fetcher, retry).Run(context.Background(), item.Filter{})
	require.NoError(t, err)

	assert.Equal(t, 2, fetcher.callCount(u))
	require.Equal(t, 1, sink.count(), "exactly one final result per target")
	res := sink.byItem("i1")
	assert.Equal(t, linkcheck.StatusTimeout, res.Status)
}

func TestRunner_DryRunCountsStable(t *testing.T) {
	targets := []item.Target{
		{ID: "i1", URL: "https://a.example.com/ok"},
		{ID: "i2", URL: "https://b.example.com/404"},
		{ID: "i3", URL: "https://skiplisted.com/x"},
	}
	script := func(url string, _ int) fetch.Outcome {
		if url == "https://b.example.com/404" {
			return fetch.Outcome{URL: url, StatusCode: 404, ContentType: "text/html"}
		}
		return okOutcome(url)
	}

	run := func() *Summary {
		items := &fakeItems{targets: targets}
		sum, err := newTestRunner(items, DryRunSink{}, newScriptedFetcher(script), DefaultRetryPolicy()).
			Run(context.Background(), item.Filter{})
		require.NoError(t, err)
		return sum
	}

	a, b := run(), run()
	assert.Equal(t, a.ByStatus, b.ByStatus)
	assert.Equal(t, a.Total, b.Total)
	assert.Equal(t, len(a.Skipped), len(b.Skipped))
	assert.Equal(t, len(a.Broken), len(b.Broken))
}

func TestRunner_SinkErrorIsFatal(t *testing.T) {
	items := &fakeItems{targets: []item.Target{{ID: "i1", URL: "https://a.example.com/x"}}}
	sinkErr := errors.New("db gone")
	sink := &memSink{err: sinkErr}
	fetcher := newScriptedFetcher(func(url string, _ int) fetch.Outcome { return okOutcome(url) })

	_, err := newTestRunner(items, sink, fetcher, DefaultRetryPolicy()).Run(context.Background(), item.Filter{})
	assert.ErrorIs(t, err, sinkErr)
}

func TestRunner_ListErrorIsFatal(t *testing.T) {
	listErr := errors.New("cannot open item store")
	items := &fakeItems{err: listErr}
	fetcher := newScriptedFetcher(func(url string, _ int) fetch.Outcome { return okOutcome(url) })

	_, err := newTestRunner(items, &memSink{}, fetcher, DefaultRetryPolicy()).Run(context.Background(), item.Filter{})
	assert.ErrorIs(t, err, listErr)
}

func TestRunner_ManyTargetsAllComplete(t *testing.T) {
	var targets []item.Target
	for i := 0; i < 30; i++ {
		targets = append(targets, item.Target{
			ID:  fmt.Sprintf("item-%d", i),
			URL: fmt.Sprintf("https://host%d.example.com/p", i%5),
		})
	}

	items := &fakeItems{targets: targets}
	sink := &memSink{}
	fetcher := newScriptedFetcher(func(url string, _ int) fetch.Outcome { return okOutcome(url) })

	sum, err := newTestRunner(items, sink, fetcher, DefaultRetryPolicy()).Run(context.Background(), item.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 30, sum.Total)
	assert.Equal(t, 30, sink.count())
	assert.Equal(t, 30, sum.ByStatus[linkcheck.StatusOK])
}
