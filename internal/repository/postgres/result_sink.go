package postgres

import (
	"context"
	"fmt"

	"github.com/shelfmark/linkward/internal/domain/item"
	"github.com/shelfmark/linkward/internal/domain/linkcheck"
)

// ResultSink writes one completed check atomically: the history row and the
// item's denormalized status land in the same transaction. Re-running a
// check appends another row and overwrites the current status, so the
// operation is idempotent on retry.
type ResultSink struct {
	Items      item.Repo
	History    linkcheck.HistoryRepo
	Transactor Transactor
}

func NewResultSink(items item.Repo, history linkcheck.HistoryRepo, tx Transactor) *ResultSink {
	return &ResultSink{Items: items, History: history, Transactor: tx}
}

func (s *ResultSink) Record(ctx context.Context, res *linkcheck.Result) error {
	return s.Transactor.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.History.Insert(txCtx, res); err != nil {
			return fmt.Errorf("insert history: %w", err)
		}
		if err := s.Items.SetLinkStatus(txCtx, res.ItemID, linkcheck.Collapse(res), res.CheckedAt); err != nil {
			return fmt.Errorf("update item status: %w", err)
		}
		return nil
	})
}
