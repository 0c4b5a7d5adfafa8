package history

import "time"

// Index makes timelines addressable by textual keys (an extension, an auth
// code) as well as by group id. Several keys may point at the same group;
// slices are built once per group.
type Index[T any] struct {
	timelines map[int64]*Timeline[T]
	keys      map[string][]int64
	keysOf    func(T) []string
}

// NewIndex builds the timelines for rows and registers every key returned by
// keysOf for each row.
func NewIndex[T any](rows []T, group func(T) int64, validFrom func(T) time.Time, keysOf func(T) []string) *Index[T] {
	idx := &Index[T]{
		timelines: Build(rows, group, validFrom),
		keys:      make(map[string][]int64),
		keysOf:    keysOf,
	}
	for _, r := range rows {
		g := group(r)
		for _, k := range keysOf(r) {
			if k == "" {
				continue
			}
			idx.addKey(k, g)
		}
	}
	return idx
}

func (idx *Index[T]) addKey(key string, group int64) {
	for _, g := range idx.keys[key] {
		if g == group {
			return
		}
	}
	idx.keys[key] = append(idx.keys[key], group)
}

// Timeline returns the timeline of a group.
func (idx *Index[T]) Timeline(group int64) (*Timeline[T], bool) {
	if idx == nil {
		return nil, false
	}
	tl, ok := idx.timelines[group]
	return tl, ok
}

// HasHistory reports whether any version was ever registered under key.
func (idx *Index[T]) HasHistory(key string) bool {
	if idx == nil {
		return false
	}
	return len(idx.keys[key]) > 0
}

// Find returns the version valid at ts among the groups reachable by key.
// A group only answers if its version valid at ts still carries key and
// passes keep.
func (idx *Index[T]) Find(key string, ts time.Time, keep func(T) bool) (T, bool) {
	var zero T
	if idx == nil {
		return zero, false
	}
	for _, g := range idx.keys[key] {
		e, ok := idx.timelines[g].FindMatchWhere(ts, func(e T) bool {
			return idx.carries(e, key) && (keep == nil || keep(e))
		})
		if ok {
			return e, true
		}
	}
	return zero, false
}

func (idx *Index[T]) carries(e T, key string) bool {
	for _, k := range idx.keysOf(e) {
		if k == key {
			return true
		}
	}
	return false
}

// Len returns the number of groups.
func (idx *Index[T]) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.timelines)
}
