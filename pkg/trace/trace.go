// Package trace parses Value-Change-Dump files and answers temporal
// queries (value_at / next_change / prev_change) over the resulting
// per-symbol event timelines. A TraceStore is built once and is
// immutable and safely shared by reference afterward.
package trace

import (
	"sort"

	"github.com/bespoke-silicon-group/accelerator-debugger/pkg/value"
)

// Event is a single recorded change of a symbol's value at a point in
// simulation time.
type Event struct {
	Time  uint64
	Value value.Value
}

// timeline stores one symbol's events as parallel arrays so that
// value_at/next_change/prev_change can binary-search the times slice
// without touching the (potentially interned, larger) values slice.
type timeline struct {
	times  []uint64
	values []value.Value
}

// TraceStore is the immutable, queryable form of a parsed VCD file.
type TraceStore struct {
	names     []string // index -> hierarchical name
	index     map[string]int
	timelines []timeline
	endTime   uint64
	timescale float64 // ps per raw VCD tick, relative to the requested scale
}

// Options configure TraceStore construction.
type Options struct {
	// SigList restricts retained symbols to these fully-qualified
	// hierarchical names. Nil/empty retains every symbol in the file.
	SigList []string
	// RequestedScale is the external timescale unit ("ps" by
	// default) that all returned times are expressed in.
	RequestedScale string
	// CachePath, if set, is a sibling cache file consulted before
	// parsing and (re)written after a successful parse.
	CachePath string
	// Regen forces a re-parse and cache overwrite even if a valid
	// cache file exists.
	Regen bool
}

// Names returns every retained hierarchical signal name, in
// declaration order. Used by --dump-siglist.
func (t *TraceStore) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// EndTime is the time of the last recorded event in the trace.
func (t *TraceStore) EndTime() uint64 { return t.endTime }

// Symbol resolves a hierarchical name to its internal symbol index.
func (t *TraceStore) Symbol(name string) (int, bool) {
	idx, ok := t.index[name]
	return idx, ok
}

// ValueAt returns the value of the latest event with time <= at, or
// Undefined if the symbol has no such event (which cannot happen
// after fill-in, since every retained symbol has at least (0, 'x')).
func (t *TraceStore) ValueAt(idx int, at uint64) value.Value {
	tl := t.timelines[idx]
	i := sort.Search(len(tl.times), func(i int) bool { return tl.times[i] > at })
	if i == 0 {
		return value.Undefined
	}
	return tl.values[i-1]
}

// NextChange returns the first event strictly after at, if any.
func (t *TraceStore) NextChange(idx int, at uint64) (Event, bool) {
	tl := t.timelines[idx]
	i := sort.Search(len(tl.times), func(i int) bool { return tl.times[i] > at })
	if i >= len(tl.times) {
		return Event{}, false
	}
	return Event{Time: tl.times[i], Value: tl.values[i]}, true
}

// PrevChange returns the last event strictly before at, if any.
func (t *TraceStore) PrevChange(idx int, at uint64) (Event, bool) {
	tl := t.timelines[idx]
	i := sort.Search(len(tl.times), func(i int) bool { return tl.times[i] >= at })
	if i == 0 {
		return Event{}, false
	}
	return Event{Time: tl.times[i-1], Value: tl.values[i-1]}, true
}

// Events returns a copy of a symbol's full event timeline.
func (t *TraceStore) Events(idx int) []Event {
	tl := t.timelines[idx]
	out := make([]Event, len(tl.times))
	for i := range tl.times {
		out[i] = Event{Time: tl.times[i], Value: tl.values[i]}
	}
	return out
}
