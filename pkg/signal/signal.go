// Package signal binds a hierarchical name to a TraceStore symbol and
// the current Value observed at the model's sim_time cursor.
package signal

import (
	"strings"

	"github.com/bespoke-silicon-group/accelerator-debugger/pkg/trace"
	"github.com/bespoke-silicon-group/accelerator-debugger/pkg/value"
)

// Signal is one named wire or bus tracked by a module.
type Signal struct {
	HierName    string
	DisplayName string
	symbolIdx   int
	store       *trace.TraceStore
	Current     value.Value
}

// Bind resolves hierName against store, returning a Signal whose
// Current value is initially Undefined until the first RefreshAt.
func Bind(store *trace.TraceStore, hierName string) (*Signal, error) {
	idx, ok := store.Symbol(hierName)
	if !ok {
		return nil, &trace.SignalsMissing{Names: []string{hierName}}
	}
	return &Signal{
		HierName:  hierName,
		symbolIdx: idx,
		store:     store,
		Current:   value.Undefined,
	}, nil
}

// RefreshAt sets Current to the trace's value at t and returns it.
func (s *Signal) RefreshAt(t uint64) value.Value {
	s.Current = s.store.ValueAt(s.symbolIdx, t)
	return s.Current
}

// ValueAt queries the backing trace without mutating Current.
func (s *Signal) ValueAt(t uint64) value.Value {
	return s.store.ValueAt(s.symbolIdx, t)
}

// NextChange delegates to the backing trace store.
func (s *Signal) NextChange(t uint64) (trace.Event, bool) {
	return s.store.NextChange(s.symbolIdx, t)
}

// PrevChange delegates to the backing trace store.
func (s *Signal) PrevChange(t uint64) (trace.Event, bool) {
	return s.store.PrevChange(s.symbolIdx, t)
}

// AssignDisplayNames computes the shortest-unique display suffix for
// each signal in a module: start with the last dotted component, and
// extend depth (last 2, then 3, ...) until every name in the group is
// distinct. The [msb:lsb] slice, if any, was already stripped from
// HierName at trace-parse time.
func AssignDisplayNames(signals []*Signal) {
	depth := 1
	for {
		seen := map[string]int{}
		for _, s := range signals {
			seen[suffix(s.HierName, depth)]++
		}
		collision := false
		for _, count := range seen {
			if count > 1 {
				collision = true
				break
			}
		}
		for _, s := range signals {
			s.DisplayName = suffix(s.HierName, depth)
		}
		if !collision {
			return
		}
		depth++
		maxDepth := 0
		for _, s := range signals {
			if d := len(strings.Split(s.HierName, ".")); d > maxDepth {
				maxDepth = d
			}
		}
		if depth > maxDepth {
			return // names genuinely not distinguishable; leave full depth
		}
	}
}

func suffix(hierName string, depth int) string {
	parts := strings.Split(hierName, ".")
	if depth >= len(parts) {
		return hierName
	}
	return strings.Join(parts[len(parts)-depth:], ".")
}
