// Package breakpoint compiles and evaluates boolean predicates over a
// DebugModel's signal dictionary, giving the command dispatcher a
// "run until condition" primitive.
package breakpoint

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Env is the evaluation environment handed to expr: a nested map of
// module name -> signal name -> signed integer value.
type Env map[string]map[string]int64

// Breakpoint is one compiled predicate, identified by a monotonically
// increasing ID that is never reused even after deletion.
type Breakpoint struct {
	ID      int
	Source  string
	program *vm.Program
}

// Engine holds the live set of breakpoints and the next ID to assign.
type Engine struct {
	next    int
	active  map[int]*Breakpoint
	order   []int // insertion order, for evaluation and listing
}

// New returns an empty breakpoint engine.
func New() *Engine {
	return &Engine{active: map[int]*Breakpoint{}}
}

// exprOptions compiles against sample's shape and requires a boolean
// result. expr parses both and/or/not and &&/||/! natively, so
// predicates can be written in either style without extra options.
func exprOptions(sample Env) []expr.Option {
	return []expr.Option{
		expr.Env(sample),
		expr.AsBool(),
	}
}

// Set compiles source against a representative environment (so a
// typo or unknown signal name is reported immediately, rather than
// the first time the breakpoint would fire) and, on success, adds it
// to the active set.
func (e *Engine) Set(source string, sample Env) (int, error) {
	program, err := expr.Compile(source, exprOptions(sample)...)
	if err != nil {
		return 0, fmt.Errorf("breakpoint: %w", err)
	}
	if _, err := expr.Run(program, sample); err != nil {
		return 0, fmt.Errorf("breakpoint: %w", err)
	}

	e.next++
	id := e.next
	e.active[id] = &Breakpoint{ID: id, Source: source, program: program}
	e.order = append(e.order, id)
	return id, nil
}

// Delete removes a breakpoint by ID. It is not an error to delete an
// ID that does not exist or was already deleted.
func (e *Engine) Delete(id int) {
	delete(e.active, id)
	for i, existing := range e.order {
		if existing == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

// List returns every active breakpoint in creation order.
func (e *Engine) List() []*Breakpoint {
	out := make([]*Breakpoint, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.active[id])
	}
	return out
}

// Len reports the number of active breakpoints.
func (e *Engine) Len() int { return len(e.active) }

// Check evaluates every active breakpoint, in creation order, against
// env and returns the first one that is satisfied, if any.
func (e *Engine) Check(env Env) (*Breakpoint, error) {
	for _, id := range e.order {
		bp := e.active[id]
		out, err := expr.Run(bp.program, env)
		if err != nil {
			return nil, fmt.Errorf("breakpoint %d: %w", bp.ID, err)
		}
		if hit, ok := out.(bool); ok && hit {
			return bp, nil
		}
	}
	return nil, nil
}
