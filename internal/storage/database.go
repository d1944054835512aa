package storage

import (
	"github.com/eternalApril/moonmock/internal/glob"
	"github.com/google/btree"
)

// Database is one logical keyspace
type Database struct {
	id       int
	ks       *Keyspace
	data     map[string]*Slot
	keys     *btree.BTreeG[string] // ordered index for KEYS, SCAN and RANDOMKEY
	volatile map[string]struct{}   // keys carrying a TTL, sampled by the active sweep

	watched    map[string]int    // key -> number of clients watching it
	tombstones map[string]uint64 // version of the last removal of a watched key

	cursors     map[uint64]string // SCAN cursor -> last key it returned
	cursorOrder []uint64
	lastCursor  uint64
}

// maxScanCursors bounds the resumable SCAN cursors kept per database. The oldest
// is forgotten first
const maxScanCursors = 1024

func newDatabase(id int, ks *Keyspace) *Database {
	return &Database{
		id:         id,
		ks:         ks,
		data:       make(map[string]*Slot),
		keys:       newKeyIndex(),
		volatile:   make(map[string]struct{}),
		watched:    make(map[string]int),
		tombstones: make(map[string]uint64),
		cursors:    make(map[uint64]string),
	}
}

func newKeyIndex() *btree.BTreeG[string] {
	return btree.NewG[string](32, func(a, b string) bool { return a < b })
}

// ID returns the database index
func (db *Database) ID() int {
	return db.id
}

// Len returns the number of slots, including expired ones not yet swept
func (db *Database) Len() int {
	return len(db.data)
}

// VolatileLen returns the number of keys with a TTL
func (db *Database) VolatileLen() int {
	return len(db.volatile)
}

// Lookup returns the live slot for key. An expired slot is deleted and reported absent
func (db *Database) Lookup(key string) (*Slot, bool) {
	slot, ok := db.data[key]
	if !ok {
		return nil, false
	}
	if IsExpired(slot, db.ks.NowMs()) {
		db.expire(key)
		return nil, false
	}
	return slot, true
}

// Get returns the live value for key
func (db *Database) Get(key string) (Value, bool) {
	slot, ok := db.Lookup(key)
	if !ok {
		return nil, false
	}
	return slot.Value, true
}

// Exists reports whether key holds a live value
func (db *Database) Exists(key string) bool {
	_, ok := db.Lookup(key)
	return ok
}

// Set inserts or replaces the value of key. Any TTL is cleared unless keepTTL is set
func (db *Database) Set(key string, v Value, keepTTL bool) error {
	slot, ok := db.Lookup(key)
	if !ok {
		db.data[key] = &Slot{Value: v, Version: db.ks.nextVersion()}
		db.keys.ReplaceOrInsert(key)
		return nil
	}

	slot.Value = v
	if !keepTTL && slot.ExpireAt != 0 {
		slot.ExpireAt = 0
		delete(db.volatile, key)
	}
	return db.bump(slot)
}

// Touch records a mutation of key: its version is bumped and the slot is removed
// when its value became empty. It returns true when the slot was removed
func (db *Database) Touch(key string) (bool, error) {
	slot, ok := db.data[key]
	if !ok {
		return false, nil
	}
	if slot.Value.Empty() {
		db.remove(key)
		return true, nil
	}
	return false, db.bump(slot)
}

// Delete removes key. It returns false when the key was absent
func (db *Database) Delete(key string) bool {
	if _, ok := db.Lookup(key); !ok {
		return false
	}
	db.remove(key)
	return true
}

// Rename moves the slot at src (value and TTL) to dst, replacing dst
func (db *Database) Rename(src, dst string) error {
	slot, ok := db.Lookup(src)
	if !ok {
		return ErrNoSuchKey
	}
	if src == dst {
		return nil
	}

	expireAt := slot.ExpireAt
	db.remove(src)
	db.Delete(dst)

	moved := &Slot{Value: slot.Value, ExpireAt: expireAt, Version: db.ks.nextVersion()}
	db.data[dst] = moved
	db.keys.ReplaceOrInsert(dst)
	if expireAt != 0 {
		db.volatile[dst] = struct{}{}
	}
	return nil
}

// MoveTo moves key into other keeping its TTL. It fails when key is absent or
// already exists in other
func (db *Database) MoveTo(other *Database, key string) error {
	slot, ok := db.Lookup(key)
	if !ok {
		return ErrNoSuchKey
	}
	if other == db {
		return ErrSameObject
	}
	if other.Exists(key) {
		return ErrKeyExists
	}

	db.remove(key)
	other.data[key] = &Slot{Value: slot.Value, ExpireAt: slot.ExpireAt, Version: db.ks.nextVersion()}
	other.keys.ReplaceOrInsert(key)
	if slot.ExpireAt != 0 {
		other.volatile[key] = struct{}{}
	}
	return nil
}

// Flush removes every key
func (db *Database) Flush() {
	db.data = make(map[string]*Slot)
	db.keys = newKeyIndex()
	db.volatile = make(map[string]struct{})
	db.invalidateWatched()
}

// KeysMatching returns the live keys matching pattern in byte order.
// The result is a snapshot taken at call time
func (db *Database) KeysMatching(pattern string) []string {
	candidates := make([]string, 0, db.keys.Len())
	if glob.IsLiteral(pattern) {
		if _, ok := db.data[pattern]; ok {
			candidates = append(candidates, pattern)
		}
	} else {
		db.keys.Ascend(func(k string) bool {
			candidates = append(candidates, k)
			return true
		})
	}

	result := candidates[:0]
	for _, k := range candidates {
		if !glob.Match(pattern, k) {
			continue
		}
		if db.Exists(k) {
			result = append(result, k)
		}
	}
	return result
}

// Scan visits about count keys in byte order, resuming after the last key the
// cursor returned, so keys removed between calls never shift the walk. It
// returns the next cursor (0 when the walk is complete) and the live visited
// keys accepted by match. An unknown cursor ends the walk
func (db *Database) Scan(cursor uint64, count int, match func(key string, v Value) bool) (uint64, []string) {
	if count <= 0 {
		count = 10
	}

	var (
		visited []string
		more    bool
	)
	visit := func(k string) bool {
		if len(visited) == count {
			more = true
			return false
		}
		visited = append(visited, k)
		return true
	}
	if cursor == 0 {
		db.keys.Ascend(visit)
	} else {
		last, ok := db.cursors[cursor]
		if !ok {
			return 0, nil
		}
		db.keys.AscendGreaterOrEqual(last, func(k string) bool {
			if k == last {
				return true
			}
			return visit(k)
		})
	}

	var next uint64
	if more {
		next = db.saveCursor(visited[len(visited)-1])
	}

	result := make([]string, 0, len(visited))
	for _, k := range visited {
		v, ok := db.Get(k)
		if !ok {
			continue
		}
		if match == nil || match(k, v) {
			result = append(result, k)
		}
	}
	return next, result
}

func (db *Database) saveCursor(last string) uint64 {
	db.lastCursor++
	id := db.lastCursor
	db.cursors[id] = last
	db.cursorOrder = append(db.cursorOrder, id)
	if len(db.cursorOrder) > maxScanCursors {
		delete(db.cursors, db.cursorOrder[0])
		db.cursorOrder = db.cursorOrder[1:]
	}
	return id
}

// KeyAt returns the key at ordinal position i of the ordered index
func (db *Database) KeyAt(i int) (string, bool) {
	var (
		pos   int
		found string
		ok    bool
	)
	db.keys.Ascend(func(k string) bool {
		if pos == i {
			found, ok = k, true
			return false
		}
		pos++
		return true
	})
	return found, ok
}

// Watch registers interest of one client in key
func (db *Database) Watch(key string) {
	db.watched[key]++
}

// Unwatch drops one client's interest in key
func (db *Database) Unwatch(key string) {
	n := db.watched[key] - 1
	if n > 0 {
		db.watched[key] = n
		return
	}
	delete(db.watched, key)
	delete(db.tombstones, key)
}

// Version returns the current version of key for optimistic concurrency checks.
// An absent key reports the version of its last removal while watched, or 0
func (db *Database) Version(key string) uint64 {
	if slot, ok := db.Lookup(key); ok {
		return slot.Version
	}
	return db.tombstones[key]
}

// invalidateWatched bumps the version of every watched key
func (db *Database) invalidateWatched() {
	for key := range db.watched {
		v := db.ks.nextVersion()
		if slot, ok := db.data[key]; ok {
			slot.Version = v
		}
		db.tombstones[key] = v
	}
}

func (db *Database) bump(slot *Slot) error {
	next := db.ks.nextVersion()
	if next <= slot.Version {
		return ErrVersionRegress
	}
	slot.Version = next
	return nil
}

func (db *Database) remove(key string) {
	delete(db.data, key)
	delete(db.volatile, key)
	db.keys.Delete(key)
	if db.watched[key] > 0 {
		db.tombstones[key] = db.ks.nextVersion()
	}
}
