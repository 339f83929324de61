package item

import "time"

// Target is the unit of work handed to the checker: one saved item and the
// URL it points at.
type Target struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// StoredStatus is the denormalized status written back onto the item record.
type StoredStatus string

const (
	StoredOK            StoredStatus = "ok"
	StoredBroken        StoredStatus = "broken"
	StoredLoginRequired StoredStatus = "login_required"
	StoredUnchecked     StoredStatus = "unchecked"
)

// Filter narrows the work list pulled from the item store.
type Filter struct {
	// Domain keeps only URLs containing this substring.
	Domain string
	// Limit caps the number of targets; 0 means no cap.
	Limit int
	// Recheck ignores the freshness window and re-checks everything.
	Recheck bool
	// MaxAge is the freshness window: items checked within it are skipped
	// unless Recheck is set.
	MaxAge time.Duration
}
