package hwmodel

import (
	"fmt"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/bespoke-silicon-group/accelerator-debugger/pkg/signal"
	"github.com/bespoke-silicon-group/accelerator-debugger/pkg/trace"
	"github.com/bespoke-silicon-group/accelerator-debugger/pkg/value"
)

// ErrOutOfBounds is raised when a write targets an address at or
// beyond a Memory module's configured size.
type ErrOutOfBounds struct {
	Module  string
	Address uint64
	Size    uint64
}

func (e *ErrOutOfBounds) Error() string {
	return fmt.Sprintf("module %s: write to address %d is out of bounds (size %d)", e.Module, e.Address, e.Size)
}

// AddrRange is an inclusive address range, used to express a
// Memory module's tracked segments. A single address is Lo == Hi.
type AddrRange struct {
	Lo, Hi uint64
}

func (r AddrRange) contains(addr uint64) bool { return addr >= r.Lo && addr <= r.Hi }

// MemoryConfig declares a Memory module before binding.
type MemoryConfig struct {
	Name        string
	AddrName    string
	WDataName   string
	EnableName  string
	EnableLevel bool // true = active high, false = active low
	Size        *uint64
	Segments    []AddrRange
	ShowSignals bool
}

// Memory reconstructs addressed storage by replaying enabled writes
// observed over the trace.
type Memory struct {
	cfg   MemoryConfig
	addr  *signal.Signal
	wdata *signal.Signal
	en    *signal.Signal

	enableLevel value.Value
	mem         map[uint64]value.Value
}

// NewMemory declares a Memory module; Bind must be called before use.
func NewMemory(cfg MemoryConfig) *Memory {
	return &Memory{cfg: cfg, mem: map[uint64]value.Value{}}
}

func (m *Memory) Name() string { return m.cfg.Name }

func (m *Memory) Bind(store *trace.TraceStore) error {
	var err error
	if m.addr, err = signal.Bind(store, m.cfg.AddrName); err != nil {
		return fmt.Errorf("module %s: %w", m.cfg.Name, err)
	}
	if m.wdata, err = signal.Bind(store, m.cfg.WDataName); err != nil {
		return fmt.Errorf("module %s: %w", m.cfg.Name, err)
	}
	if m.en, err = signal.Bind(store, m.cfg.EnableName); err != nil {
		return fmt.Errorf("module %s: %w", m.cfg.Name, err)
	}
	lvl := "0"
	if m.cfg.EnableLevel {
		lvl = "1"
	}
	m.enableLevel = value.MustNew(lvl)
	signal.AssignDisplayNames([]*signal.Signal{m.addr, m.wdata, m.en})
	return nil
}

func (m *Memory) Signals() []*signal.Signal {
	return []*signal.Signal{m.addr, m.wdata, m.en}
}

func (m *Memory) SignalDict() map[string]int64 {
	dict := signalDict(m.Signals())
	return dict
}

// tracked reports whether addr falls within the module's configured
// tracking range: segments (if any) constrain both display and writes
// per the Memory module's write policy; otherwise a configured size
// bounds a dense address space; with neither, every address is
// tracked and allocated lazily.
func (m *Memory) tracked(addr uint64) bool {
	if len(m.cfg.Segments) > 0 {
		for _, seg := range m.cfg.Segments {
			if seg.contains(addr) {
				return true
			}
		}
		return false
	}
	if m.cfg.Size != nil {
		return addr < *m.cfg.Size
	}
	return true
}

func (m *Memory) write(addr uint64, v value.Value) error {
	if m.cfg.Size != nil && addr >= *m.cfg.Size {
		return &ErrOutOfBounds{Module: m.cfg.Name, Address: addr, Size: *m.cfg.Size}
	}
	if !m.tracked(addr) {
		return nil
	}
	m.mem[addr] = v
	return nil
}

func (m *Memory) enabled(v value.Value) bool { return v.Equal(m.enableLevel) }

// Edge refreshes all three signals at curr+dt and, if the enable
// signal now asserts, performs one write.
func (m *Memory) Edge(from, to uint64) error {
	m.addr.RefreshAt(to)
	m.wdata.RefreshAt(to)
	m.en.RefreshAt(to)
	if m.enabled(m.en.Current) {
		if addrInt, ok := m.addr.Current.AsInt(); ok {
			if err := m.write(addrInt.Uint64(), m.wdata.Current); err != nil {
				return err
			}
		}
	}
	return nil
}

// Update is the forward-skip path: it hunts only the enable signal's
// own change events between from and to, replaying a write at each
// enable assertion, instead of stepping edge by edge.
func (m *Memory) Update(from, to uint64) error {
	t := from
	for {
		ev, ok := m.en.NextChange(t)
		if !ok || ev.Time > to {
			break
		}
		t = ev.Time
		if m.enabled(ev.Value) {
			addrVal := m.addr.ValueAt(t)
			wdataVal := m.wdata.ValueAt(t)
			if addrInt, ok := addrVal.AsInt(); ok {
				if err := m.write(addrInt.Uint64(), wdataVal); err != nil {
					return err
				}
			}
		}
	}
	m.addr.RefreshAt(to)
	m.wdata.RefreshAt(to)
	m.en.RefreshAt(to)
	return nil
}

// RUpdate is the backward-skip path. For every enable-assertion event
// in (to, from] it restores the address it targeted to the value of
// the last write strictly before that event (or 'x' if none), using
// the same enable-change hunting as Update, then settles the three
// signals at to.
func (m *Memory) RUpdate(from, to uint64) error {
	t := from + 1 // PrevChange is strict; include an event at exactly from
	for {
		ev, ok := m.en.PrevChange(t)
		if !ok || ev.Time <= to {
			break
		}
		t = ev.Time
		if m.enabled(ev.Value) {
			addrVal := m.addr.ValueAt(t)
			if addrInt, ok := addrVal.AsInt(); ok {
				addr := addrInt.Uint64()
				restored := m.priorWriteValue(addr, t)
				if err := m.write(addr, restored); err != nil {
					return err
				}
			}
		}
	}
	m.addr.RefreshAt(to)
	m.wdata.RefreshAt(to)
	m.en.RefreshAt(to)
	return nil
}

// priorWriteValue scans backward through enable-assertion events
// strictly before t, returning the wdata of the first one that
// targeted addr, or Undefined if none exists.
func (m *Memory) priorWriteValue(addr uint64, beforeT uint64) value.Value {
	t := beforeT
	for {
		ev, ok := m.en.PrevChange(t)
		if !ok {
			return value.Undefined
		}
		t = ev.Time
		if !m.enabled(ev.Value) {
			continue
		}
		addrVal := m.addr.ValueAt(t)
		addrInt, ok := addrVal.AsInt()
		if !ok || addrInt.Uint64() != addr {
			continue
		}
		return m.wdata.ValueAt(t)
	}
}

// Render produces a multi-column address/value table when the module
// tracks a dense, size-bounded space with no explicit segments;
// otherwise it lists only the tracked addresses that have been
// written so far.
func (m *Memory) Render() string {
	t := table.NewWriter()
	t.SetTitle(m.cfg.Name)
	t.AppendHeader(table.Row{"Address", "Value"})

	addrs := make([]uint64, 0, len(m.mem))
	for a := range m.mem {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })

	if m.cfg.Size != nil && len(m.cfg.Segments) == 0 {
		for a := uint64(0); a < *m.cfg.Size; a++ {
			v, ok := m.mem[a]
			if !ok {
				v = value.Undefined
			}
			t.AppendRow(table.Row{a, v.AsHex()})
		}
	} else {
		for _, a := range addrs {
			t.AppendRow(table.Row{a, m.mem[a].AsHex()})
		}
	}

	out := t.Render()
	if m.cfg.ShowSignals {
		out += "\n" + renderSignalTable(m.cfg.Name+" signals", m.Signals())
	}
	return out
}
