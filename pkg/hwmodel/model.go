package hwmodel

import (
	"fmt"

	"github.com/bespoke-silicon-group/accelerator-debugger/pkg/trace"
)

// OutOfRange is returned when a requested sim_time lies outside
// [0, end_time], or before sim_time for Update and after it for
// RUpdate. Alignment of the requested time with edge_time is not
// checked.
type OutOfRange struct {
	Requested, EndTime uint64
}

func (e *OutOfRange) Error() string {
	return fmt.Sprintf("time %d is out of range [0, %d]", e.Requested, e.EndTime)
}

// DebugModel drives a fixed, ordered set of DebugModule instances
// through simulation time, keeping every module's notion of "now" in
// lockstep with a single sim_time cursor.
type DebugModel struct {
	modules  []Module
	edgeTime uint64
	simTime  uint64
	endTime  uint64
}

// New binds every module against store and establishes edgeTime as
// the model's clock period.
func New(modules []Module, store *trace.TraceStore, edgeTime uint64) (*DebugModel, error) {
	for _, m := range modules {
		if err := m.Bind(store); err != nil {
			return nil, err
		}
	}
	return &DebugModel{
		modules:  modules,
		edgeTime: edgeTime,
		endTime:  store.EndTime(),
	}, nil
}

func (dm *DebugModel) Modules() []Module  { return dm.modules }
func (dm *DebugModel) SimTime() uint64    { return dm.simTime }
func (dm *DebugModel) EndTime() uint64    { return dm.endTime }
func (dm *DebugModel) EdgeTime() uint64   { return dm.edgeTime }

// Module looks up a bound module by its declared name.
func (dm *DebugModel) Module(name string) (Module, bool) {
	for _, m := range dm.modules {
		if m.Name() == name {
			return m, true
		}
	}
	return nil, false
}

// SignalDict aggregates every module's SignalDict under its own name,
// forming the evaluation environment for breakpoint predicates.
func (dm *DebugModel) SignalDict() map[string]map[string]int64 {
	out := make(map[string]map[string]int64, len(dm.modules))
	for _, m := range dm.modules {
		out[m.Name()] = m.SignalDict()
	}
	return out
}

// Edge advances sim_time by exactly one edge_time, driving every
// module's Edge in declaration order.
func (dm *DebugModel) Edge() error {
	to := dm.simTime + dm.edgeTime
	if to > dm.endTime {
		return &OutOfRange{Requested: to, EndTime: dm.endTime}
	}
	for _, m := range dm.modules {
		if err := m.Edge(dm.simTime, to); err != nil {
			return err
		}
	}
	dm.simTime = to
	return nil
}

// Update moves sim_time forward to an arbitrary target, driving every
// module's Update in declaration order. target must be at or after
// sim_time and at or before end_time.
func (dm *DebugModel) Update(target uint64) error {
	if target < dm.simTime || target > dm.endTime {
		return &OutOfRange{Requested: target, EndTime: dm.endTime}
	}
	for _, m := range dm.modules {
		if err := m.Update(dm.simTime, target); err != nil {
			return err
		}
	}
	dm.simTime = target
	return nil
}

// RUpdate moves sim_time backward to an arbitrary target, driving
// every module's RUpdate in declaration order. target must be at or
// before sim_time and at or after 0.
func (dm *DebugModel) RUpdate(target uint64) error {
	if target > dm.simTime {
		return &OutOfRange{Requested: target, EndTime: dm.endTime}
	}
	for _, m := range dm.modules {
		if err := m.RUpdate(dm.simTime, target); err != nil {
			return err
		}
	}
	dm.simTime = target
	return nil
}

// Jump dispatches to Update or RUpdate depending on the direction of
// travel relative to the current sim_time.
func (dm *DebugModel) Jump(target uint64) error {
	if target >= dm.simTime {
		return dm.Update(target)
	}
	return dm.RUpdate(target)
}
