package checker

import (
	"context"

	"github.com/shelfmark/linkward/internal/domain/linkcheck"
)

// ResultSink persists one completed check: an audit row plus the
// denormalized status on the parent item.
type ResultSink interface {
	Record(ctx context.Context, r *linkcheck.Result) error
}

// DryRunSink discards results. Swapped in by --dry-run so the whole pipeline
// runs without touching stored data.
type DryRunSink struct{}

func (DryRunSink) Record(context.Context, *linkcheck.Result) error { return nil }
