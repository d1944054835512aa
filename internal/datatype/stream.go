package datatype

import (
	"math"
	"slices"
	"strings"

	"github.com/eternalApril/moonmock/internal/storage"
	"github.com/google/btree"
)

// StreamEntry is one stream record. Fields holds names and values interleaved
type StreamEntry struct {
	ID     StreamID
	Fields []string
}

func entryLess(a, b *StreamEntry) bool {
	return a.ID.Less(b.ID)
}

// Stream is an append-only log of entries ordered by ID
type Stream struct {
	entries      *btree.BTreeG[*StreamEntry]
	lastID       StreamID
	maxDeletedID StreamID
	entriesAdded uint64
	groups       map[string]*Group
}

func NewStream() *Stream {
	return &Stream{
		entries: btree.NewG[*StreamEntry](32, entryLess),
		groups:  make(map[string]*Group),
	}
}

func (s *Stream) Kind() storage.Kind { return storage.KindStream }

// Empty is always false: a stream survives the deletion of all its entries
func (s *Stream) Empty() bool { return false }

func (s *Stream) Clone() storage.Value {
	c := &Stream{
		entries:      s.entries.Clone(),
		lastID:       s.lastID,
		maxDeletedID: s.maxDeletedID,
		entriesAdded: s.entriesAdded,
		groups:       make(map[string]*Group, len(s.groups)),
	}
	for name, g := range s.groups {
		c.groups[name] = g.clone()
	}
	return c
}

func (s *Stream) Len() int {
	return s.entries.Len()
}

func (s *Stream) LastID() StreamID {
	return s.lastID
}

func (s *Stream) MaxDeletedID() StreamID {
	return s.maxDeletedID
}

func (s *Stream) EntriesAdded() uint64 {
	return s.entriesAdded
}

// First returns the entry with the lowest ID
func (s *Stream) First() (*StreamEntry, bool) {
	return s.entries.Min()
}

// Last returns the entry with the highest ID
func (s *Stream) Last() (*StreamEntry, bool) {
	return s.entries.Max()
}

// Get returns the entry with the given ID
func (s *Stream) Get(id StreamID) (*StreamEntry, bool) {
	return s.entries.Get(&StreamEntry{ID: id})
}

// NextID resolves the ID argument of XADD: "*", "<ms>-*", "<ms>" or "<ms>-<seq>".
// The result is strictly greater than the last ID of the stream
func (s *Stream) NextID(spec string, nowMs int64) (StreamID, error) {
	last := s.lastID

	if spec == "*" {
		ms := uint64(max(nowMs, 0))
		if ms > last.Ms {
			return StreamID{Ms: ms}, nil
		}
		next, ok := last.Next()
		if !ok {
			return StreamID{}, ErrStreamExhausted
		}
		return next, nil
	}

	if msPart, ok := strings.CutSuffix(spec, "-*"); ok {
		id, err := ParseStreamID(msPart, 0)
		if err != nil || strings.Contains(msPart, "-") {
			return StreamID{}, ErrStreamIDInvalid
		}
		switch {
		case id.Ms < last.Ms:
			return StreamID{}, ErrStreamIDSmall
		case id.Ms == last.Ms && (last.Ms > 0 || last.Seq > 0 || s.entriesAdded > 0):
			if last.Seq == math.MaxUint64 {
				return StreamID{}, ErrStreamIDSmall
			}
			return StreamID{Ms: id.Ms, Seq: last.Seq + 1}, nil
		case id.Ms == 0:
			return StreamID{Seq: 1}, nil
		}
		return id, nil
	}

	id, err := ParseStreamID(spec, 0)
	if err != nil {
		return StreamID{}, err
	}
	if id.IsZero() {
		return StreamID{}, ErrStreamIDZero
	}
	if !last.Less(id) {
		return StreamID{}, ErrStreamIDSmall
	}
	return id, nil
}

// Append adds an entry. id must come from NextID
func (s *Stream) Append(id StreamID, fields []string) {
	s.entries.ReplaceOrInsert(&StreamEntry{ID: id, Fields: fields})
	s.lastID = id
	s.entriesAdded++
}

// SetLastID moves the last generated ID, as XSETID does
func (s *Stream) SetLastID(id StreamID, entriesAdded int64, maxDeleted *StreamID) error {
	if last, ok := s.entries.Max(); ok && id.Less(last.ID) {
		return ErrStreamSetIDSmall
	}
	s.lastID = id
	if entriesAdded >= 0 {
		s.entriesAdded = uint64(entriesAdded)
	}
	if maxDeleted != nil {
		s.maxDeletedID = *maxDeleted
	}
	return nil
}

// Delete removes entries by ID and returns how many existed
func (s *Stream) Delete(ids ...StreamID) int {
	n := 0
	for _, id := range ids {
		if _, ok := s.entries.Delete(&StreamEntry{ID: id}); ok {
			n++
			if s.maxDeletedID.Less(id) {
				s.maxDeletedID = id
			}
		}
	}
	return n
}

// Range returns entries with IDs between start and end inclusive, at most count
// of them when count is positive
func (s *Stream) Range(start, end StreamID, count int, reverse bool) []*StreamEntry {
	out := []*StreamEntry{}
	if end.Less(start) {
		return out
	}
	visit := func(e *StreamEntry) bool {
		if count > 0 && len(out) >= count {
			return false
		}
		out = append(out, e)
		return true
	}
	if reverse {
		s.entries.DescendLessOrEqual(&StreamEntry{ID: end}, func(e *StreamEntry) bool {
			if e.ID.Less(start) {
				return false
			}
			return visit(e)
		})
		return out
	}
	s.entries.AscendGreaterOrEqual(&StreamEntry{ID: start}, func(e *StreamEntry) bool {
		if end.Less(e.ID) {
			return false
		}
		return visit(e)
	})
	return out
}

// After returns entries with IDs strictly greater than id
func (s *Stream) After(id StreamID, count int) []*StreamEntry {
	next, ok := id.Next()
	if !ok {
		return []*StreamEntry{}
	}
	return s.Range(next, MaxStreamID, count, false)
}

// trimWhile removes entries from the head while cond holds, stopping after limit
// removals when limit is positive
func (s *Stream) trimWhile(cond func(e *StreamEntry) bool, limit int) int {
	var doomed []StreamID
	s.entries.Ascend(func(e *StreamEntry) bool {
		if !cond(e) || (limit > 0 && len(doomed) >= limit) {
			return false
		}
		doomed = append(doomed, e.ID)
		return true
	})
	return s.Delete(doomed...)
}

// TrimMaxLen keeps at most maxLen entries and returns how many were removed
func (s *Stream) TrimMaxLen(maxLen int64, limit int) int {
	excess := int64(s.entries.Len()) - maxLen
	if excess <= 0 {
		return 0
	}
	seen := int64(0)
	return s.trimWhile(func(*StreamEntry) bool {
		seen++
		return seen <= excess
	}, limit)
}

// TrimMinID removes entries with IDs lower than minID
func (s *Stream) TrimMinID(minID StreamID, limit int) int {
	return s.trimWhile(func(e *StreamEntry) bool {
		return e.ID.Less(minID)
	}, limit)
}

// CreateGroup registers a consumer group that will deliver entries after lastID
func (s *Stream) CreateGroup(name string, lastID StreamID, entriesRead int64) error {
	if _, ok := s.groups[name]; ok {
		return ErrStreamGroupExists
	}
	s.groups[name] = newGroup(name, lastID, entriesRead)
	return nil
}

func (s *Stream) Group(name string) (*Group, bool) {
	g, ok := s.groups[name]
	return g, ok
}

// DestroyGroup removes a group with its consumers and pending entries
func (s *Stream) DestroyGroup(name string) bool {
	if _, ok := s.groups[name]; !ok {
		return false
	}
	delete(s.groups, name)
	return true
}

// Groups returns the consumer groups ordered by name
func (s *Stream) Groups() []*Group {
	out := make([]*Group, 0, len(s.groups))
	for _, g := range s.groups {
		out = append(out, g)
	}
	slices.SortFunc(out, func(a, b *Group) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Lag returns how many entries g has not been delivered yet, false when it
// cannot be known because entries were deleted
func (s *Stream) Lag(g *Group) (int64, bool) {
	if s.entriesAdded == 0 {
		return 0, true
	}
	if g.EntriesRead >= 0 && s.maxDeletedID.IsZero() {
		return int64(s.entriesAdded) - g.EntriesRead, true
	}
	if !g.LastDelivered.Less(s.lastID) {
		return 0, true
	}
	return 0, false
}

// ReadGroup delivers entries never delivered to g to consumer, starting after the
// group's last delivered ID. Unless noAck, each entry becomes pending for consumer
func (s *Stream) ReadGroup(g *Group, consumer string, count int, noAck bool, nowMs int64) []*StreamEntry {
	c := g.touchConsumer(consumer, nowMs)
	entries := s.After(g.LastDelivered, count)
	if len(entries) == 0 {
		return entries
	}
	c.ActiveAt = nowMs

	for _, e := range entries {
		g.LastDelivered = e.ID
		if !noAck {
			g.addPending(e.ID, consumer, nowMs)
		}
	}
	if g.EntriesRead >= 0 && s.maxDeletedID.IsZero() {
		g.EntriesRead += int64(len(entries))
	} else if s.maxDeletedID.IsZero() || !g.LastDelivered.Less(s.lastID) {
		g.EntriesRead = int64(s.entriesAdded) - int64(len(s.After(g.LastDelivered, 0)))
	}
	return entries
}

// ReadPending replays the entries already pending for consumer with IDs after
// start. Entries deleted from the stream come back with nil fields
func (s *Stream) ReadPending(g *Group, consumer string, start StreamID, count int, nowMs int64) []*StreamEntry {
	c := g.touchConsumer(consumer, nowMs)
	out := []*StreamEntry{}
	from, ok := start.Next()
	if !ok {
		return out
	}
	for _, p := range g.PendingRange(from, MaxStreamID, 0, consumer, 0, nowMs) {
		if count > 0 && len(out) >= count {
			break
		}
		p.DeliveredAt = nowMs
		p.Deliveries++
		if e, ok := s.Get(p.ID); ok {
			out = append(out, e)
		} else {
			out = append(out, &StreamEntry{ID: p.ID})
		}
	}
	if len(out) > 0 {
		c.ActiveAt = nowMs
	}
	return out
}

// ClaimOptions are the XCLAIM modifiers
type ClaimOptions struct {
	MinIdle    int64
	IdleMs     *int64
	TimeMs     *int64
	RetryCount *int64
	Force      bool
	JustID     bool
}

// Claim transfers ownership of pending entries to consumer. Entries no longer in
// the stream are dropped from the pending list and not returned
func (s *Stream) Claim(g *Group, consumer string, ids []StreamID, opts ClaimOptions, nowMs int64) []*StreamEntry {
	deliveredAt := nowMs
	switch {
	case opts.IdleMs != nil:
		deliveredAt = nowMs - *opts.IdleMs
	case opts.TimeMs != nil:
		deliveredAt = *opts.TimeMs
	}

	c := g.touchConsumer(consumer, nowMs)
	out := []*StreamEntry{}
	for _, id := range ids {
		p, pending := g.Pending(id)
		entry, exists := s.Get(id)
		if !pending {
			if !opts.Force || !exists {
				continue
			}
			p = g.addPending(id, consumer, nowMs)
			p.Deliveries = 0
		}
		if !exists {
			g.removePending(id)
			continue
		}
		if opts.MinIdle > 0 && nowMs-p.DeliveredAt < opts.MinIdle {
			continue
		}

		p.Consumer = consumer
		p.DeliveredAt = deliveredAt
		if opts.RetryCount != nil {
			p.Deliveries = *opts.RetryCount
		} else if !opts.JustID {
			p.Deliveries++
		}
		c.ActiveAt = nowMs
		out = append(out, entry)
	}
	return out
}

// AutoClaim scans pending entries from start and claims those idle for at least
// minIdle. It returns the cursor for the next call, the claimed entries and the
// IDs that were pending but no longer exist in the stream
func (s *Stream) AutoClaim(g *Group, consumer string, minIdle int64, start StreamID, count int, justID bool, nowMs int64) (StreamID, []*StreamEntry, []StreamID) {
	c := g.touchConsumer(consumer, nowMs)
	claimed := []*StreamEntry{}
	deleted := []StreamID{}

	// at most count*10 pending entries are inspected per call
	budget := count * 10
	next := MinStreamID
	var candidates []*PendingEntry
	g.pel.AscendGreaterOrEqual(&PendingEntry{ID: start}, func(p *PendingEntry) bool {
		if len(candidates) >= budget {
			next = p.ID
			return false
		}
		candidates = append(candidates, p)
		return true
	})

	for _, p := range candidates {
		if len(claimed) >= count {
			next = p.ID
			break
		}
		entry, exists := s.Get(p.ID)
		if !exists {
			g.removePending(p.ID)
			deleted = append(deleted, p.ID)
			continue
		}
		if nowMs-p.DeliveredAt < minIdle {
			continue
		}
		p.Consumer = consumer
		p.DeliveredAt = nowMs
		if !justID {
			p.Deliveries++
		}
		c.ActiveAt = nowMs
		claimed = append(claimed, entry)
	}
	return next, claimed, deleted
}
