package hwmodel

import (
	"fmt"

	"github.com/bespoke-silicon-group/accelerator-debugger/pkg/signal"
	"github.com/bespoke-silicon-group/accelerator-debugger/pkg/trace"
)

// Core is a Basic module augmented with a designated program-counter
// signal, used by the source-line correlation path to resolve the
// currently executing address.
type Core struct {
	Basic
	pcName string
	pc     *signal.Signal
}

// NewCore declares a Core module; pcName must also appear in signalNames.
func NewCore(name string, signalNames []string, pcName string) *Core {
	return &Core{Basic: *NewBasic(name, signalNames), pcName: pcName}
}

func (c *Core) Bind(store *trace.TraceStore) error {
	if err := c.Basic.Bind(store); err != nil {
		return err
	}
	for _, s := range c.Basic.signals {
		if s.HierName == c.pcName {
			c.pc = s
			return nil
		}
	}
	return fmt.Errorf("module %s: pc signal %q not among declared signals", c.name, c.pcName)
}

// PC returns the signal designated as the program counter.
func (c *Core) PC() *signal.Signal { return c.pc }

// PCAddress returns the current PC value as an address, if defined.
func (c *Core) PCAddress() (uint64, bool) {
	n, ok := c.pc.Current.AsInt()
	if !ok {
		return 0, false
	}
	return n.Uint64(), true
}
