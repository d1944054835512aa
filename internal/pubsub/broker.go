// Package pubsub routes published messages to channel, pattern and shard-channel
// subscribers.
package pubsub

import (
	"slices"
	"sync"

	"github.com/eternalApril/moonmock/internal/glob"
)

// Kind tells which registry produced a delivery
type Kind string

const (
	KindMessage  Kind = "message"
	KindPMessage Kind = "pmessage"
	KindSMessage Kind = "smessage"
)

// Message is a single delivery. Pattern is set for pattern subscriptions only
type Message struct {
	Kind    Kind
	Pattern string
	Channel string
	Payload string
}

// Subscriber receives deliveries. Deliver must not block and reports whether
// the message was accepted
type Subscriber interface {
	Deliver(msg Message) bool
}

type subscription struct {
	sub Subscriber
	seq uint64
}

// registry maps a channel or pattern to its subscribers in registration order
type registry map[string][]subscription

func (r registry) add(name string, s subscription) bool {
	for _, existing := range r[name] {
		if existing.sub == s.sub {
			return false
		}
	}
	r[name] = append(r[name], s)
	return true
}

func (r registry) remove(name string, sub Subscriber) bool {
	list := r[name]
	for i, s := range list {
		if s.sub != sub {
			continue
		}
		list = slices.Delete(list, i, i+1)
		if len(list) == 0 {
			delete(r, name)
		} else {
			r[name] = list
		}
		return true
	}
	return false
}

// names returns the registry keys matching pattern, or all when pattern is empty
func (r registry) names(pattern string) []string {
	out := []string{}
	for name := range r {
		if pattern == "" || glob.Match(pattern, name) {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

// state is what one subscriber is subscribed to, in subscription order
type state struct {
	channels []string
	patterns []string
	shards   []string
}

// Broker holds the subscription registries
type Broker struct {
	mu       sync.RWMutex
	channels registry
	patterns registry
	shards   registry
	subs     map[Subscriber]*state
	seq      uint64
}

func NewBroker() *Broker {
	return &Broker{
		channels: make(registry),
		patterns: make(registry),
		shards:   make(registry),
		subs:     make(map[Subscriber]*state),
	}
}

func (b *Broker) stateOf(sub Subscriber) *state {
	st, ok := b.subs[sub]
	if !ok {
		st = &state{}
		b.subs[sub] = st
	}
	return st
}

func (b *Broker) dropIfIdle(sub Subscriber) {
	if st, ok := b.subs[sub]; ok && len(st.channels)+len(st.patterns)+len(st.shards) == 0 {
		delete(b.subs, sub)
	}
}

func (b *Broker) next() subscription {
	b.seq++
	return subscription{seq: b.seq}
}

// Subscribe registers sub on channel. It returns the number of channels and
// patterns sub is subscribed to afterwards
func (b *Broker) Subscribe(sub Subscriber, channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.next()
	s.sub = sub
	st := b.stateOf(sub)
	if b.channels.add(channel, s) {
		st.channels = append(st.channels, channel)
	}
	return len(st.channels) + len(st.patterns)
}

// Unsubscribe removes sub from channel and returns its remaining count
func (b *Broker) Unsubscribe(sub Subscriber, channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := b.stateOf(sub)
	if b.channels.remove(channel, sub) {
		st.channels = slices.DeleteFunc(st.channels, func(c string) bool { return c == channel })
	}
	n := len(st.channels) + len(st.patterns)
	b.dropIfIdle(sub)
	return n
}

// PSubscribe registers sub on a glob pattern
func (b *Broker) PSubscribe(sub Subscriber, pattern string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.next()
	s.sub = sub
	st := b.stateOf(sub)
	if b.patterns.add(pattern, s) {
		st.patterns = append(st.patterns, pattern)
	}
	return len(st.channels) + len(st.patterns)
}

// PUnsubscribe removes sub from pattern
func (b *Broker) PUnsubscribe(sub Subscriber, pattern string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := b.stateOf(sub)
	if b.patterns.remove(pattern, sub) {
		st.patterns = slices.DeleteFunc(st.patterns, func(p string) bool { return p == pattern })
	}
	n := len(st.channels) + len(st.patterns)
	b.dropIfIdle(sub)
	return n
}

// SSubscribe registers sub on a shard channel. Shard subscriptions are counted
// separately from the others
func (b *Broker) SSubscribe(sub Subscriber, channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.next()
	s.sub = sub
	st := b.stateOf(sub)
	if b.shards.add(channel, s) {
		st.shards = append(st.shards, channel)
	}
	return len(st.shards)
}

// SUnsubscribe removes sub from a shard channel
func (b *Broker) SUnsubscribe(sub Subscriber, channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := b.stateOf(sub)
	if b.shards.remove(channel, sub) {
		st.shards = slices.DeleteFunc(st.shards, func(c string) bool { return c == channel })
	}
	n := len(st.shards)
	b.dropIfIdle(sub)
	return n
}

// Subscriptions returns the channels, patterns and shard channels of sub in
// subscription order
func (b *Broker) Subscriptions(sub Subscriber) (channels, patterns, shards []string) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	st, ok := b.subs[sub]
	if !ok {
		return nil, nil, nil
	}
	return slices.Clone(st.channels), slices.Clone(st.patterns), slices.Clone(st.shards)
}

// Count returns the number of channel and pattern subscriptions of sub
func (b *Broker) Count(sub Subscriber) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	st, ok := b.subs[sub]
	if !ok {
		return 0
	}
	return len(st.channels) + len(st.patterns)
}

// ShardCount returns the number of shard channel subscriptions of sub
func (b *Broker) ShardCount(sub Subscriber) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	st, ok := b.subs[sub]
	if !ok {
		return 0
	}
	return len(st.shards)
}

// Subscribers returns how many subscribers hold at least one subscription
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// RemoveAll drops every subscription of sub
func (b *Broker) RemoveAll(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.subs[sub]
	if !ok {
		return
	}
	for _, c := range st.channels {
		b.channels.remove(c, sub)
	}
	for _, p := range st.patterns {
		b.patterns.remove(p, sub)
	}
	for _, c := range st.shards {
		b.shards.remove(c, sub)
	}
	delete(b.subs, sub)
}

// Publish delivers payload to the exact subscribers of channel, then to every
// pattern subscriber whose pattern matches, each group in registration order.
// It returns how many deliveries were accepted
func (b *Broker) Publish(channel, payload string) int {
	b.mu.RLock()
	targets := make([]subscription, 0, len(b.channels[channel]))
	targets = append(targets, b.channels[channel]...)

	type patternHit struct {
		subscription
		pattern string
	}
	var hits []patternHit
	for pattern, list := range b.patterns {
		if !glob.Match(pattern, channel) {
			continue
		}
		for _, s := range list {
			hits = append(hits, patternHit{subscription: s, pattern: pattern})
		}
	}
	b.mu.RUnlock()

	slices.SortFunc(hits, func(x, y patternHit) int {
		switch {
		case x.seq < y.seq:
			return -1
		case x.seq > y.seq:
			return 1
		}
		return 0
	})

	n := 0
	for _, s := range targets {
		if s.sub.Deliver(Message{Kind: KindMessage, Channel: channel, Payload: payload}) {
			n++
		}
	}
	for _, h := range hits {
		if h.sub.Deliver(Message{Kind: KindPMessage, Pattern: h.pattern, Channel: channel, Payload: payload}) {
			n++
		}
	}
	return n
}

// SPublish delivers payload to the subscribers of a shard channel
func (b *Broker) SPublish(channel, payload string) int {
	b.mu.RLock()
	targets := slices.Clone(b.shards[channel])
	b.mu.RUnlock()

	n := 0
	for _, s := range targets {
		if s.sub.Deliver(Message{Kind: KindSMessage, Channel: channel, Payload: payload}) {
			n++
		}
	}
	return n
}

// Channels lists active channels matching pattern, all of them when pattern is empty
func (b *Broker) Channels(pattern string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.channels.names(pattern)
}

// ShardChannels lists active shard channels matching pattern
func (b *Broker) ShardChannels(pattern string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.shards.names(pattern)
}

// NumSub returns the number of exact subscribers of channel
func (b *Broker) NumSub(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.channels[channel])
}

// ShardNumSub returns the number of subscribers of a shard channel
func (b *Broker) ShardNumSub(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.shards[channel])
}

// NumPat returns the number of distinct patterns with at least one subscriber
func (b *Broker) NumPat() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.patterns)
}
