// Package history resolves time-versioned reference rows (employees,
// extension ranges) to the version that was valid at a given instant.
package history

import (
	"sort"
	"time"
)

// Slice is one version of an entity and the interval it was valid in.
// A nil Until means the slice is still open.
type Slice[T any] struct {
	From   time.Time
	Until  *time.Time
	Entity T
}

// Contains reports whether ts falls in the slice.
func (s *Slice[T]) Contains(ts time.Time) bool {
	if ts.Before(s.From) {
		return false
	}
	return s.Until == nil || !ts.After(*s.Until)
}

// Timeline is the ordered version history of one identity group, newest
// slice first. Slices are contiguous and never overlap.
type Timeline[T any] struct {
	GroupID int64
	Slices  []Slice[T]
}

// FindMatch returns the version valid at ts. A timestamp before the oldest
// version yields no match; the oldest version is never used as a default.
func (t *Timeline[T]) FindMatch(ts time.Time) (T, bool) {
	return t.FindMatchWhere(ts, nil)
}

// FindMatchWhere is FindMatch restricted by keep, typically a location
// check. When the version valid at ts fails keep there is no match; older
// versions are not consulted.
func (t *Timeline[T]) FindMatchWhere(ts time.Time, keep func(T) bool) (T, bool) {
	var zero T
	if t == nil {
		return zero, false
	}
	for i := range t.Slices {
		s := &t.Slices[i]
		if !s.Contains(ts) {
			continue
		}
		if keep != nil && !keep(s.Entity) {
			return zero, false
		}
		return s.Entity, true
	}
	return zero, false
}

// Build groups rows by identity group and turns each group into a
// timeline. Within a group, the slice started at version k ends one
// nanosecond before the next newer version starts; the newest is open.
func Build[T any](rows []T, group func(T) int64, validFrom func(T) time.Time) map[int64]*Timeline[T] {
	byGroup := make(map[int64][]T)
	for _, r := range rows {
		g := group(r)
		byGroup[g] = append(byGroup[g], r)
	}

	out := make(map[int64]*Timeline[T], len(byGroup))
	for g, members := range byGroup {
		sort.SliceStable(members, func(i, j int) bool {
			return validFrom(members[i]).After(validFrom(members[j]))
		})

		tl := &Timeline[T]{GroupID: g, Slices: make([]Slice[T], len(members))}
		for k, m := range members {
			tl.Slices[k] = Slice[T]{From: validFrom(m), Entity: m}
			if k > 0 {
				until := tl.Slices[k-1].From.Add(-time.Nanosecond)
				tl.Slices[k].Until = &until
			}
		}
		out[g] = tl
	}
	return out
}
