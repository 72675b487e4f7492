package hwmodel

import "github.com/bespoke-silicon-group/accelerator-debugger/pkg/value"

// intOrZero projects a Value to int64 for the breakpoint engine's
// environment, falling back to 0 when the value is not fully defined.
func intOrZero(v value.Value) int64 {
	n, ok := v.AsInt()
	if !ok {
		return 0
	}
	return n.Int64()
}
