package storage

// IsExpired reports whether slot carries an expiry instant at or before nowMs
func IsExpired(slot *Slot, nowMs int64) bool {
	return slot.ExpireAt != 0 && nowMs >= slot.ExpireAt
}

// SetExpire sets the absolute expiry of key in unix milliseconds.
// A deadline that is already due deletes the key immediately, without the expire hook
func (db *Database) SetExpire(key string, atMs int64) bool {
	slot, ok := db.Lookup(key)
	if !ok {
		return false
	}

	if atMs <= db.ks.NowMs() {
		db.remove(key)
		return true
	}

	slot.ExpireAt = atMs
	db.volatile[key] = struct{}{}
	db.bump(slot) //nolint:errcheck
	return true
}

// Persist removes the expiration of key, making it eternal.
// Returns true if a TTL was removed
func (db *Database) Persist(key string) bool {
	slot, ok := db.Lookup(key)
	if !ok || slot.ExpireAt == 0 {
		return false
	}

	slot.ExpireAt = 0
	delete(db.volatile, key)
	db.bump(slot) //nolint:errcheck
	return true
}

// Expiry returns the absolute expiry of key and status as ExpiryStatus
func (db *Database) Expiry(key string) (int64, ExpiryStatus) {
	slot, ok := db.Lookup(key)
	if !ok {
		return 0, ExpNotFound
	}
	if slot.ExpireAt == 0 {
		return 0, ExpNoTimeout
	}
	return slot.ExpireAt, ExpActive
}

// DeleteExpired checks up to limit keys carrying a TTL and removes the expired ones.
// It returns how many keys were checked and how many were removed
func (db *Database) DeleteExpired(limit int) (checked, expired int) {
	if len(db.volatile) == 0 {
		return 0, 0
	}

	now := db.ks.NowMs()

	// go map iteration is randomized by design
	for key := range db.volatile {
		checked++
		if slot, ok := db.data[key]; ok && IsExpired(slot, now) {
			db.expire(key)
			expired++
		}

		if checked >= limit {
			break
		}
	}

	return checked, expired
}

// expire removes a key whose TTL elapsed and reports it to the expire hook
func (db *Database) expire(key string) {
	db.remove(key)
	if db.ks.onExpire != nil {
		db.ks.onExpire(db.id, key)
	}
}
