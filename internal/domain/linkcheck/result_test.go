package linkcheck

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shelfmark/linkward/internal/domain/item"
)

func TestCollapse_Totality(t *testing.T) {
	all := []Status{
		StatusOK, StatusBroken, StatusRedirect, StatusTimeout, StatusDNSError,
		StatusSSLError, StatusConnectionError, StatusBlocked,
		StatusLoginRequired, StatusUnknown,
	}

	want := map[Status]item.StoredStatus{
		StatusOK:              item.StoredOK,
		StatusBroken:          item.StoredBroken,
		StatusRedirect:        item.StoredBroken,
		StatusTimeout:         item.StoredBroken,
		StatusDNSError:        item.StoredBroken,
		StatusSSLError:        item.StoredBroken,
		StatusConnectionError: item.StoredBroken,
		StatusBlocked:         item.StoredBroken,
		StatusLoginRequired:   item.StoredLoginRequired,
		StatusUnknown:         item.StoredBroken,
	}

	for _, st := range all {
		got := Collapse(&Result{Status: st})
		assert.Equal(t, want[st], got, "status %s", st)
		assert.Contains(t, []item.StoredStatus{
			item.StoredOK, item.StoredBroken, item.StoredLoginRequired,
		}, got)
	}
}

func TestCollapse_SoftNotFoundOverridesOK(t *testing.T) {
	got := Collapse(&Result{Status: StatusOK, SoftNotFound: true})
	assert.Equal(t, item.StoredBroken, got)
}
