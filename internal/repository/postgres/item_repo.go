package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/shelfmark/linkward/internal/domain/item"
)

var _ item.Repo = (*ItemRepoImpl)(nil)

type ItemRepoImpl struct{ db *DB }

func NewItemRepo(db *DB) *ItemRepoImpl { return &ItemRepoImpl{db: db} }

const (
	qListCheckable = `
SELECT id, url
FROM items
WHERE url IS NOT NULL AND url <> ''
  AND ($1 = '' OR url ILIKE '%' || $1 || '%')
  AND ($2 OR last_link_check IS NULL OR last_link_check < $3)
ORDER BY last_link_check ASC NULLS FIRST, id
LIMIT NULLIF($4, 0);
`

	qSetLinkStatus = `
UPDATE items
SET link_status = $2, last_link_check = $3
WHERE id = $1;
`
)

func (r *ItemRepoImpl) ListCheckable(ctx context.Context, f item.Filter) ([]item.Target, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	cutoff := time.Now().UTC().Add(-f.MaxAge)
	rows, err := r.db.Pool.Query(ctx, qListCheckable, f.Domain, f.Recheck, cutoff, f.Limit)
	if err != nil {
		return nil, fmt.Errorf("query checkable items: %w", err)
	}
	defer rows.Close()

	var out []item.Target
	for rows.Next() {
		var t item.Target
		if err := rows.Scan(&t.ID, &t.URL); err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (r *ItemRepoImpl) SetLinkStatus(ctx context.Context, id string, status item.StoredStatus, checkedAt time.Time) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)
	cmd, err := eq.Exec(ctx, qSetLinkStatus, id, string(status), checkedAt)
	if err != nil {
		return fmt.Errorf("update link status: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
