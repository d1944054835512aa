package datatype

import (
	"slices"
	"strings"

	"github.com/google/btree"
)

// PendingEntry is an entry delivered to a consumer and not acknowledged yet
type PendingEntry struct {
	ID          StreamID
	Consumer    string
	DeliveredAt int64 // unix ms of the last delivery
	Deliveries  int64
}

// Consumer is a named reader inside a group
type Consumer struct {
	Name     string
	SeenAt   int64 // last time the consumer attempted an interaction
	ActiveAt int64 // last successful interaction, 0 when never
}

// Group is a stream consumer group with its pending entries list
type Group struct {
	Name          string
	LastDelivered StreamID
	EntriesRead   int64 // -1 when unknown
	pel           *btree.BTreeG[*PendingEntry]
	consumers     map[string]*Consumer
}

func newGroup(name string, lastID StreamID, entriesRead int64) *Group {
	return &Group{
		Name:          name,
		LastDelivered: lastID,
		EntriesRead:   entriesRead,
		pel:           btree.NewG[*PendingEntry](32, func(a, b *PendingEntry) bool { return a.ID.Less(b.ID) }),
		consumers:     make(map[string]*Consumer),
	}
}

func (g *Group) clone() *Group {
	c := newGroup(g.Name, g.LastDelivered, g.EntriesRead)
	g.pel.Ascend(func(p *PendingEntry) bool {
		cp := *p
		c.pel.ReplaceOrInsert(&cp)
		return true
	})
	for name, cons := range g.consumers {
		cc := *cons
		c.consumers[name] = &cc
	}
	return c
}

// CreateConsumer adds a consumer and reports whether it is new
func (g *Group) CreateConsumer(name string, nowMs int64) bool {
	if _, ok := g.consumers[name]; ok {
		return false
	}
	g.consumers[name] = &Consumer{Name: name, SeenAt: nowMs}
	return true
}

// DeleteConsumer removes a consumer and its pending entries. It returns how many
// pending entries it had
func (g *Group) DeleteConsumer(name string) int {
	if _, ok := g.consumers[name]; !ok {
		return 0
	}
	var owned []StreamID
	g.pel.Ascend(func(p *PendingEntry) bool {
		if p.Consumer == name {
			owned = append(owned, p.ID)
		}
		return true
	})
	for _, id := range owned {
		g.removePending(id)
	}
	delete(g.consumers, name)
	return len(owned)
}

// Consumers returns the consumers ordered by name
func (g *Group) Consumers() []*Consumer {
	out := make([]*Consumer, 0, len(g.consumers))
	for _, c := range g.consumers {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b *Consumer) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// PendingCount returns the number of pending entries, for one consumer when
// consumer is not empty
func (g *Group) PendingCount(consumer string) int {
	if consumer == "" {
		return g.pel.Len()
	}
	n := 0
	g.pel.Ascend(func(p *PendingEntry) bool {
		if p.Consumer == consumer {
			n++
		}
		return true
	})
	return n
}

func (g *Group) touchConsumer(name string, nowMs int64) *Consumer {
	c, ok := g.consumers[name]
	if !ok {
		c = &Consumer{Name: name}
		g.consumers[name] = c
	}
	c.SeenAt = nowMs
	return c
}

func (g *Group) Pending(id StreamID) (*PendingEntry, bool) {
	return g.pel.Get(&PendingEntry{ID: id})
}

func (g *Group) addPending(id StreamID, consumer string, nowMs int64) *PendingEntry {
	p, ok := g.Pending(id)
	if !ok {
		p = &PendingEntry{ID: id}
		g.pel.ReplaceOrInsert(p)
	}
	p.Consumer = consumer
	p.DeliveredAt = nowMs
	p.Deliveries++
	return p
}

func (g *Group) removePending(id StreamID) bool {
	_, ok := g.pel.Delete(&PendingEntry{ID: id})
	return ok
}

// Ack removes ids from the pending list and returns how many were pending
func (g *Group) Ack(ids ...StreamID) int {
	n := 0
	for _, id := range ids {
		if g.removePending(id) {
			n++
		}
	}
	return n
}

// PendingRange lists pending entries between start and end inclusive, at most
// count when positive, optionally only those of consumer and idle for at least
// minIdle milliseconds
func (g *Group) PendingRange(start, end StreamID, count int, consumer string, minIdle int64, nowMs int64) []*PendingEntry {
	out := []*PendingEntry{}
	if end.Less(start) {
		return out
	}
	g.pel.AscendGreaterOrEqual(&PendingEntry{ID: start}, func(p *PendingEntry) bool {
		if end.Less(p.ID) || (count > 0 && len(out) >= count) {
			return false
		}
		if consumer != "" && p.Consumer != consumer {
			return true
		}
		if minIdle > 0 && nowMs-p.DeliveredAt < minIdle {
			return true
		}
		out = append(out, p)
		return true
	})
	return out
}

// PendingSummary returns the smallest and greatest pending IDs and the number of
// pending entries per consumer, ordered by consumer name
func (g *Group) PendingSummary() (first, last StreamID, perConsumer []ConsumerPending) {
	counts := make(map[string]int)
	if p, ok := g.pel.Min(); ok {
		first = p.ID
	}
	if p, ok := g.pel.Max(); ok {
		last = p.ID
	}
	g.pel.Ascend(func(p *PendingEntry) bool {
		counts[p.Consumer]++
		return true
	})
	for name, n := range counts {
		perConsumer = append(perConsumer, ConsumerPending{Consumer: name, Count: n})
	}
	slices.SortFunc(perConsumer, func(a, b ConsumerPending) int { return strings.Compare(a.Consumer, b.Consumer) })
	return first, last, perConsumer
}

// ConsumerPending is one row of the XPENDING summary
type ConsumerPending struct {
	Consumer string
	Count    int
}
