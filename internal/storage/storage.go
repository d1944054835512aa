// Package storage implements the keyspace: numbered logical databases that map
// keys to versioned, typed slots with millisecond expiry.
//
// Nothing in this package locks. The engine owns a single critical section and
// every call into a Keyspace or Database must happen while holding it.
package storage

import (
	"time"

	"github.com/pkg/errors"
)

type ExpiryStatus int

const (
	// ExpNotFound means that the key does not exist
	ExpNotFound ExpiryStatus = -2
	// ExpNoTimeout means that the key exists, but it does not have a TTL
	ExpNoTimeout ExpiryStatus = -1
	// ExpActive means that the key has an active lifetime
	ExpActive ExpiryStatus = 1
)

var (
	ErrDBIndex         = errors.New("DB index is out of range")
	ErrNoSuchKey       = errors.New("no such key")
	ErrVersionRegress  = errors.New("slot version did not increase")
	ErrSameObject      = errors.New("source and destination objects are the same")
	ErrKeyExists       = errors.New("target key exists")
	ErrInvalidDatabase = errors.New("invalid database count")
)

// Keyspace owns all logical databases, the shared version clock and the time source
type Keyspace struct {
	dbs      []*Database
	version  uint64
	now      func() time.Time
	onExpire func(db int, key string)
}

// New creates a keyspace with n empty databases
func New(n int) (*Keyspace, error) {
	if n <= 0 {
		return nil, ErrInvalidDatabase
	}

	ks := &Keyspace{
		dbs: make([]*Database, n),
		now: time.Now,
	}
	for i := range ks.dbs {
		ks.dbs[i] = newDatabase(i, ks)
	}
	return ks, nil
}

// DB returns database i
func (ks *Keyspace) DB(i int) (*Database, error) {
	if i < 0 || i >= len(ks.dbs) {
		return nil, ErrDBIndex
	}
	return ks.dbs[i], nil
}

// Len returns the number of databases
func (ks *Keyspace) Len() int {
	return len(ks.dbs)
}

// SetClock replaces the time source. Used by tests to move time deterministically
func (ks *Keyspace) SetClock(now func() time.Time) {
	ks.now = now
}

// Now returns the current time of the keyspace clock
func (ks *Keyspace) Now() time.Time {
	return ks.now()
}

// NowMs returns the current time in unix milliseconds
func (ks *Keyspace) NowMs() int64 {
	return ks.now().UnixMilli()
}

// OnExpire registers a hook called whenever a key is removed because its TTL elapsed
func (ks *Keyspace) OnExpire(fn func(db int, key string)) {
	ks.onExpire = fn
}

// nextVersion hands out strictly increasing versions shared by all databases,
// so a key moved between databases never reuses a version
func (ks *Keyspace) nextVersion() uint64 {
	ks.version++
	return ks.version
}

// FlushAll empties every database
func (ks *Keyspace) FlushAll() {
	for _, db := range ks.dbs {
		db.Flush()
	}
}

// Swap exchanges the contents of two databases. Watches on both are invalidated
func (ks *Keyspace) Swap(a, b int) error {
	da, err := ks.DB(a)
	if err != nil {
		return err
	}
	dbb, err := ks.DB(b)
	if err != nil {
		return err
	}
	if a == b {
		return nil
	}

	da.data, dbb.data = dbb.data, da.data
	da.keys, dbb.keys = dbb.keys, da.keys
	da.volatile, dbb.volatile = dbb.volatile, da.volatile

	da.invalidateWatched()
	dbb.invalidateWatched()
	return nil
}
