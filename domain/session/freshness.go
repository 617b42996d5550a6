package session

import (
	"time"

	"github.com/vinayh/lifecal-web/domain/profile"
)

// DefaultTTL is how long a cached profile stays fresh. The time-based
// branch is a backstop; the usual invalidation triggers are an identity
// change or an explicit write.
const DefaultTTL = 120 * time.Second

// Cache is the manager's record of the last successful profile read or
// write.
type Cache struct {
	Record    *profile.Record
	FetchedAt time.Time
}

// Stale reports whether the cached profile must be refetched for the
// given identity: no cached record, no fetch timestamp, a uid mismatch
// (account switch), or TTL expiry. A uid mismatch is stale no matter how
// recent the cache is.
func Stale(c *Cache, uid string, ttl time.Duration, now time.Time) bool {
	if c == nil || c.Record == nil || c.FetchedAt.IsZero() {
		return true
	}
	if c.Record.UID != uid {
		return true
	}
	return now.Sub(c.FetchedAt) > ttl
}
