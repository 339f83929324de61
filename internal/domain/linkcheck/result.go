package linkcheck

import (
	"time"

	"github.com/google/uuid"

	"github.com/shelfmark/linkward/internal/domain/item"
)

// Status is the full diagnostic classification of one completed check.
type Status string

const (
	StatusOK              Status = "ok"
	StatusBroken          Status = "broken"
	StatusRedirect        Status = "redirect"
	StatusTimeout         Status = "timeout"
	StatusDNSError        Status = "dns_error"
	StatusSSLError        Status = "ssl_error"
	StatusConnectionError Status = "connection_error"
	StatusBlocked         Status = "blocked"
	StatusLoginRequired   Status = "login_required"
	StatusUnknown         Status = "unknown"
)

// Result is the final outcome of checking one target. Retries collapse into
// a single Result carrying the last attempt's diagnostics.
type Result struct {
	ID             int64
	BatchID        uuid.UUID
	ItemID         string
	URL            string
	Status         Status
	HTTPStatus     *int
	FinalURL       *string
	Redirected     bool
	ErrorKind      *string
	ErrorMessage   *string
	ResponseTimeMs *int64
	SoftNotFound   bool
	ContentLength  *int64
	Attempts       int
	CheckedAt      time.Time
}

// Collapse maps the diagnostic status down to the three-valued field stored
// on the item. Anything not positively confirmed reachable counts as broken.
func Collapse(r *Result) item.StoredStatus {
	if r.SoftNotFound {
		return item.StoredBroken
	}
	switch r.Status {
	case StatusOK:
		return item.StoredOK
	case StatusLoginRequired:
		return item.StoredLoginRequired
	default:
		return item.StoredBroken
	}
}
