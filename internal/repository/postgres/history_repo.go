package postgres

import (
	"context"
	"fmt"

	"github.com/shelfmark/linkward/internal/domain/linkcheck"
)

var _ linkcheck.HistoryRepo = (*HistoryRepoImpl)(nil)

type HistoryRepoImpl struct{ db *DB }

func NewHistoryRepo(db *DB) *HistoryRepoImpl { return &HistoryRepoImpl{db: db} }

const (
	qHistoryInsert = `
INSERT INTO link_check_history
  (batch_id, item_id, url, status, http_status, final_url, redirected,
   error_kind, error_message, response_time_ms, soft_not_found,
   content_length, attempts, checked_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
RETURNING id;
`

	qHistoryByItem = `
SELECT id, batch_id, item_id, url, status, http_status, final_url, redirected,
       error_kind, error_message, response_time_ms, soft_not_found,
       content_length, attempts, checked_at
FROM link_check_history
WHERE item_id = $1
ORDER BY checked_at DESC
LIMIT $2;
`
)

func (r *HistoryRepoImpl) Insert(ctx context.Context, res *linkcheck.Result) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)
	return eq.QueryRow(ctx, qHistoryInsert,
		res.BatchID, res.ItemID, res.URL, string(res.Status),
		res.HTTPStatus, res.FinalURL, res.Redirected,
		res.ErrorKind, res.ErrorMessage, res.ResponseTimeMs,
		res.SoftNotFound, res.ContentLength, res.Attempts, res.CheckedAt,
	).Scan(&res.ID)
}

func (r *HistoryRepoImpl) ListByItem(ctx context.Context, itemID string, limit int) ([]*linkcheck.Result, error) {
	if limit <= 0 {
		limit = 50
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, qHistoryByItem, itemID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := make([]*linkcheck.Result, 0, limit)
	for rows.Next() {
		var res linkcheck.Result
		var status string
		if err := rows.Scan(
			&res.ID, &res.BatchID, &res.ItemID, &res.URL, &status,
			&res.HTTPStatus, &res.FinalURL, &res.Redirected,
			&res.ErrorKind, &res.ErrorMessage, &res.ResponseTimeMs,
			&res.SoftNotFound, &res.ContentLength, &res.Attempts, &res.CheckedAt,
		); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		res.Status = linkcheck.Status(status)
		out = append(out, &res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
