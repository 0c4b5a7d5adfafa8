package rating

import (
	"sort"
	"sync"

	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/database/models"
)

// DirectionInternal labels internal calls in the counters, which otherwise
// use models.CallDirection names.
const DirectionInternal = "internal"

// RatedKey groups rated records.
type RatedKey struct {
	Direction string
	Type      string
}

// Stats counts rated and quarantined records. It is safe for concurrent use.
type Stats struct {
	mu          sync.Mutex
	rated       map[RatedKey]uint64
	quarantined map[models.QuarantineKind]uint64
}

// NewStats creates empty counters.
func NewStats() *Stats {
	return &Stats{
		rated:       make(map[RatedKey]uint64),
		quarantined: make(map[models.QuarantineKind]uint64),
	}
}

// Record counts one outcome.
func (s *Stats) Record(o Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o.Quarantine != nil {
		s.quarantined[o.Quarantine.Kind]++
		return
	}
	if o.Record == nil {
		return
	}
	dir := o.Record.Direction.String()
	if o.Record.Internal {
		dir = DirectionInternal
	}
	s.rated[RatedKey{Direction: dir, Type: o.Record.TelephonyTypeName}]++
}

// RatedCount is one rated counter.
type RatedCount struct {
	RatedKey
	Count uint64
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Rated       []RatedCount
	Quarantined map[models.QuarantineKind]uint64
}

// Total returns the number of rated records.
func (s Snapshot) Total() uint64 {
	var n uint64
	for _, r := range s.Rated {
		n += r.Count
	}
	return n
}

// Snapshot copies the counters. Rated counters are sorted by direction, then
// type.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Rated:       make([]RatedCount, 0, len(s.rated)),
		Quarantined: make(map[models.QuarantineKind]uint64, len(s.quarantined)),
	}
	for k, n := range s.rated {
		snap.Rated = append(snap.Rated, RatedCount{RatedKey: k, Count: n})
	}
	for k, n := range s.quarantined {
		snap.Quarantined[k] = n
	}
	sort.Slice(snap.Rated, func(i, j int) bool {
		a, b := snap.Rated[i], snap.Rated[j]
		if a.Direction != b.Direction {
			return a.Direction < b.Direction
		}
		return a.Type < b.Type
	})
	return snap
}
