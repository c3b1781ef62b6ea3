// Package membership implements set algebra over ring members: the union,
// intersection, and difference operations the gather/consensus state
// machine runs on proc_list and failed_list, plus lowest-member election.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package membership

import (
	"sort"

	"golang.org/x/exp/maps"

	"github.com/momentics/totem-srp/api"
)

// Set is an unordered collection of distinct members.
type Set struct {
	m map[api.NodeID]struct{}
}

// NewSet builds a Set from ids, deduplicating.
func NewSet(ids ...api.NodeID) *Set {
	s := &Set{m: make(map[api.NodeID]struct{}, len(ids))}
	for _, id := range ids {
		s.m[id] = struct{}{}
	}
	return s
}

// Add inserts id, returning true if it was not already present.
func (s *Set) Add(id api.NodeID) bool {
	if _, ok := s.m[id]; ok {
		return false
	}
	s.m[id] = struct{}{}
	return true
}

// Remove deletes id, returning true if it was present.
func (s *Set) Remove(id api.NodeID) bool {
	if _, ok := s.m[id]; !ok {
		return false
	}
	delete(s.m, id)
	return true
}

// Contains reports whether id is a member of s.
func (s *Set) Contains(id api.NodeID) bool {
	_, ok := s.m[id]
	return ok
}

// Len returns the number of distinct members.
func (s *Set) Len() int { return len(s.m) }

// Sorted returns the members in ascending NodeID order.
func (s *Set) Sorted() []api.NodeID {
	ids := maps.Keys(s.m)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Equal reports whether s and o contain exactly the same members.
func (s *Set) Equal(o *Set) bool {
	if len(s.m) != len(o.m) {
		return false
	}
	for id := range s.m {
		if _, ok := o.m[id]; !ok {
			return false
		}
	}
	return true
}

// Subset reports whether every member of s is also a member of o.
func (s *Set) Subset(o *Set) bool {
	for id := range s.m {
		if _, ok := o.m[id]; !ok {
			return false
		}
	}
	return true
}

// Union returns a new Set containing every member of s or o.
func (s *Set) Union(o *Set) *Set {
	out := NewSet(s.Sorted()...)
	for id := range o.m {
		out.m[id] = struct{}{}
	}
	return out
}

// Intersect returns a new Set containing members present in both s and o.
func (s *Set) Intersect(o *Set) *Set {
	out := &Set{m: make(map[api.NodeID]struct{})}
	for id := range s.m {
		if _, ok := o.m[id]; ok {
			out.m[id] = struct{}{}
		}
	}
	return out
}

// Difference returns a new Set of members in s but not in o.
func (s *Set) Difference(o *Set) *Set {
	out := &Set{m: make(map[api.NodeID]struct{})}
	for id := range s.m {
		if _, ok := o.m[id]; !ok {
			out.m[id] = struct{}{}
		}
	}
	return out
}

// Merge folds join-message proc_list/failed_list reports from every
// gathered member into a single consensus membership list: the union of
// everyone's proc_list, minus anyone reported failed by any member.
func Merge(procLists [][]api.NodeID, failedLists [][]api.NodeID) []api.NodeID {
	proc := &Set{m: make(map[api.NodeID]struct{})}
	for _, list := range procLists {
		for _, id := range list {
			proc.m[id] = struct{}{}
		}
	}
	failed := &Set{m: make(map[api.NodeID]struct{})}
	for _, list := range failedLists {
		for _, id := range list {
			failed.m[id] = struct{}{}
		}
	}
	return proc.Difference(failed).Sorted()
}

// Lowest returns the numerically lowest NodeID in ids, and false if ids is
// empty. The lowest member drives tie-breaking during gather consensus.
func Lowest(ids []api.NodeID) (api.NodeID, bool) {
	if len(ids) == 0 {
		return 0, false
	}
	lowest := ids[0]
	for _, id := range ids[1:] {
		if id < lowest {
			lowest = id
		}
	}
	return lowest, true
}
