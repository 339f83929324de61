package linkcheck

import "context"

// HistoryRepo appends completed results to the audit trail.
type HistoryRepo interface {
	Insert(ctx context.Context, r *Result) error
	ListByItem(ctx context.Context, itemID string, limit int) ([]*Result, error)
}
