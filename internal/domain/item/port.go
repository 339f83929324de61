package item

import (
	"context"
	"time"
)

type Repo interface {
	ListCheckable(ctx context.Context, f Filter) ([]Target, error)
	SetLinkStatus(ctx context.Context, id string, status StoredStatus, checkedAt time.Time) error
}
