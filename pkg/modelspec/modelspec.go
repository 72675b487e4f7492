// Package modelspec declares named hardware models — lists of
// modules and their constituent signal names — and builds the
// concrete hwmodel.Module instances for a session before the trace
// is bound.
package modelspec

import (
	"fmt"
	"strings"

	"github.com/bespoke-silicon-group/accelerator-debugger/pkg/hwmodel"
)

// ModuleKind selects a DebugModule variant for one declared module.
type ModuleKind int

const (
	KindBasic ModuleKind = iota
	KindMemory
	KindCore
)

// ModuleSpec declares one module before binding.
type ModuleSpec struct {
	Name        string
	Kind        ModuleKind
	Signals     []string
	PCSignal    string          // Core only
	AddrSignal  string          // Memory only
	WDataSignal string          // Memory only
	EnableSignal string         // Memory only
	EnableLevel bool            // Memory only
	Size        *uint64         // Memory only
	Segments    []hwmodel.AddrRange
	ShowSignals bool
}

// Spec is a named, ordered collection of module declarations.
type Spec struct {
	Name    string
	EdgeTime uint64
	Modules []ModuleSpec
}

// Registry holds every named model known to the CLI, keyed
// case-insensitively.
type Registry struct {
	byName map[string]Builder
}

// Builder constructs a Spec from opaque --model-arg KEY=VALUE pairs.
type Builder func(args map[string]string) (*Spec, error)

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: map[string]Builder{}}
}

// Register adds a named model builder. Lookup is case-insensitive.
func (r *Registry) Register(name string, build Builder) {
	r.byName[strings.ToLower(name)] = build
}

// Build resolves name and invokes its builder with args.
func (r *Registry) Build(name string, args map[string]string) (*Spec, error) {
	build, ok := r.byName[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("modelspec: unknown model %q", name)
	}
	return build(args)
}

// Names lists every registered model name.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	return out
}

// Modules materializes the declared ModuleSpecs as bindable
// hwmodel.Module instances, in declaration order.
func (s *Spec) Modules() ([]hwmodel.Module, error) {
	out := make([]hwmodel.Module, 0, len(s.Modules))
	for _, m := range s.Modules {
		switch m.Kind {
		case KindBasic:
			out = append(out, hwmodel.NewBasic(m.Name, m.Signals))
		case KindCore:
			out = append(out, hwmodel.NewCore(m.Name, m.Signals, m.PCSignal))
		case KindMemory:
			out = append(out, hwmodel.NewMemory(hwmodel.MemoryConfig{
				Name:        m.Name,
				AddrName:    m.AddrSignal,
				WDataName:   m.WDataSignal,
				EnableName:  m.EnableSignal,
				EnableLevel: m.EnableLevel,
				Size:        m.Size,
				Segments:    m.Segments,
				ShowSignals: m.ShowSignals,
			}))
		default:
			return nil, fmt.Errorf("modelspec: module %s has unknown kind %d", m.Name, m.Kind)
		}
	}
	return out, nil
}

// ParseArgs turns repeated --model-arg KEY=VALUE flags into a map.
func ParseArgs(raw []string) (map[string]string, error) {
	out := make(map[string]string, len(raw))
	for _, kv := range raw {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			return nil, fmt.Errorf("modelspec: --model-arg %q is not KEY=VALUE", kv)
		}
		out[parts[0]] = parts[1]
	}
	return out, nil
}
