package pool

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropy   = ulid.Monotonic(rand.Reader, 0)
	entropyMu sync.Mutex
)

func newEntryID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// entry wraps a live resource with the bookkeeping the pool needs to
// enforce reuse limits and idle-age expiry. One entry owns exactly one
// resource for its entire lifetime; it is discarded, never recycled, once
// its resource is freed.
type entry[R any] struct {
	id         string
	resource   R
	usedCount  int
	usedLatest time.Time
}

func newEntry[R any](resource R, now time.Time) *entry[R] {
	return &entry[R]{
		id:         newEntryID(),
		resource:   resource,
		usedCount:  0,
		usedLatest: now,
	}
}
