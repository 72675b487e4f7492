// Package hwmodel implements the DebugModule variants (Basic, Memory,
// Core) and the DebugModel that drives them through simulation time.
package hwmodel

import (
	"fmt"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/bespoke-silicon-group/accelerator-debugger/pkg/signal"
	"github.com/bespoke-silicon-group/accelerator-debugger/pkg/trace"
)

// Module is the common surface every DebugModule variant exposes.
type Module interface {
	Name() string
	Bind(store *trace.TraceStore) error
	Signals() []*signal.Signal
	SignalDict() map[string]int64
	Edge(from, to uint64) error
	Update(from, to uint64) error
	RUpdate(from, to uint64) error
	Render() string
}

// Basic is a read-only mirror of N signals at sim_time.
type Basic struct {
	name        string
	signalNames []string
	signals     []*signal.Signal
}

// NewBasic declares a Basic module; Bind must be called before use.
func NewBasic(name string, signalNames []string) *Basic {
	return &Basic{name: name, signalNames: append([]string(nil), signalNames...)}
}

func (b *Basic) Name() string { return b.name }

// Bind resolves every declared signal name against store and computes
// unique display names.
func (b *Basic) Bind(store *trace.TraceStore) error {
	b.signals = make([]*signal.Signal, 0, len(b.signalNames))
	for _, name := range b.signalNames {
		sig, err := signal.Bind(store, name)
		if err != nil {
			return fmt.Errorf("module %s: %w", b.name, err)
		}
		b.signals = append(b.signals, sig)
	}
	signal.AssignDisplayNames(b.signals)
	return nil
}

func (b *Basic) Signals() []*signal.Signal { return b.signals }

// SignalDict refreshes nothing; it reports the last-refreshed value
// of every signal as a signed integer (0 if currently undefined).
func (b *Basic) SignalDict() map[string]int64 {
	return signalDict(b.signals)
}

func signalDict(signals []*signal.Signal) map[string]int64 {
	dict := make(map[string]int64, len(signals))
	for _, s := range signals {
		dict[s.DisplayName] = intOrZero(s.Current)
	}
	return dict
}

// Edge, Update, and RUpdate all shortcut to the same operation for a
// Basic module: set every signal's value to value_at(target).
func (b *Basic) Edge(from, to uint64) error    { return b.refresh(to) }
func (b *Basic) Update(from, to uint64) error  { return b.refresh(to) }
func (b *Basic) RUpdate(from, to uint64) error { return b.refresh(to) }

func (b *Basic) refresh(at uint64) error {
	for _, s := range b.signals {
		s.RefreshAt(at)
	}
	return nil
}

// Render produces the module's text serialization, printed by the
// "info" command; no change-notification hook calls it.
func (b *Basic) Render() string { return renderSignalTable(b.name, b.signals) }

func renderSignalTable(title string, signals []*signal.Signal) string {
	sorted := append([]*signal.Signal(nil), signals...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].DisplayName < sorted[j].DisplayName })

	t := table.NewWriter()
	t.SetTitle(title)
	t.AppendHeader(table.Row{"Signal", "Hex", "Bits"})
	for _, s := range sorted {
		t.AppendRow(table.Row{s.DisplayName, s.Current.AsHex(), s.Current.AsStr()})
	}
	return t.Render()
}
