package datatype

import (
	"slices"

	"github.com/eternalApril/moonmock/internal/storage"
	"golang.org/x/exp/rand"
)

// Set is an unordered collection of unique byte strings
type Set struct {
	members map[string]struct{}
}

func NewSet(members ...string) *Set {
	s := &Set{members: make(map[string]struct{}, len(members))}
	for _, m := range members {
		s.members[m] = struct{}{}
	}
	return s
}

func (s *Set) Kind() storage.Kind { return storage.KindSet }

func (s *Set) Empty() bool { return len(s.members) == 0 }

func (s *Set) Clone() storage.Value {
	return NewSet(s.Members()...)
}

func (s *Set) Len() int {
	return len(s.members)
}

// Add inserts members and returns how many were new
func (s *Set) Add(members ...string) int {
	added := 0
	for _, m := range members {
		if _, ok := s.members[m]; !ok {
			s.members[m] = struct{}{}
			added++
		}
	}
	return added
}

// Remove deletes members and returns how many existed
func (s *Set) Remove(members ...string) int {
	removed := 0
	for _, m := range members {
		if _, ok := s.members[m]; ok {
			delete(s.members, m)
			removed++
		}
	}
	return removed
}

func (s *Set) Has(member string) bool {
	_, ok := s.members[member]
	return ok
}

// Members returns every member in byte order
func (s *Set) Members() []string {
	out := make([]string, 0, len(s.members))
	for m := range s.members {
		out = append(out, m)
	}
	slices.Sort(out)
	return out
}

// Pop removes and returns up to count random members
func (s *Set) Pop(rng *rand.Rand, count int64) []string {
	picked := sample(rng, s.Members(), count)
	s.Remove(picked...)
	return picked
}

// RandomMembers returns random members without removing them. A negative count
// allows repeats
func (s *Set) RandomMembers(rng *rand.Rand, count int64) []string {
	return sample(rng, s.Members(), count)
}

// Union returns the members present in any of sets. nil entries stand for
// missing keys
func Union(sets []*Set) *Set {
	out := NewSet()
	for _, s := range sets {
		if s == nil {
			continue
		}
		for m := range s.members {
			out.members[m] = struct{}{}
		}
	}
	return out
}

// Inter returns the members present in every one of sets
func Inter(sets []*Set) *Set {
	out := NewSet()
	if len(sets) == 0 {
		return out
	}
	for _, s := range sets {
		if s == nil || s.Empty() {
			return out
		}
	}

	smallest := sets[0]
	for _, s := range sets[1:] {
		if s.Len() < smallest.Len() {
			smallest = s
		}
	}
next:
	for m := range smallest.members {
		for _, s := range sets {
			if !s.Has(m) {
				continue next
			}
		}
		out.members[m] = struct{}{}
	}
	return out
}

// Diff returns the members of the first set absent from all the others
func Diff(sets []*Set) *Set {
	out := NewSet()
	if len(sets) == 0 || sets[0] == nil {
		return out
	}
next:
	for m := range sets[0].members {
		for _, s := range sets[1:] {
			if s != nil && s.Has(m) {
				continue next
			}
		}
		out.members[m] = struct{}{}
	}
	return out
}
