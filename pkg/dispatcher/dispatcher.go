// Package dispatcher is the external-collaborator command loop: it
// parses interactive commands, drives the core (DebugModel,
// breakpoint.Engine, dwarfinfo.Resolver), and renders results as
// plain text. The core itself never depends on this package.
package dispatcher

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/bespoke-silicon-group/accelerator-debugger/internal/replline"
	"github.com/bespoke-silicon-group/accelerator-debugger/pkg/breakpoint"
	"github.com/bespoke-silicon-group/accelerator-debugger/pkg/dwarfinfo"
	"github.com/bespoke-silicon-group/accelerator-debugger/pkg/hwmodel"
)

type command struct {
	pattern *regexp.Regexp
	handle  func(d *Dispatcher, m []string) (string, error)
}

var commandTable = []command{
	{regexp.MustCompile(`^(?:fedge|f)(?:\s+(\d+))?$`), (*Dispatcher).cmdFedge},
	{regexp.MustCompile(`^(?:redge|r)(?:\s+(\d+))?$`), (*Dispatcher).cmdRedge},
	{regexp.MustCompile(`^(?:step|s)\s+(\S+)(?:\s+(\d+))?$`), (*Dispatcher).cmdStep},
	{regexp.MustCompile(`^(?:rstep|rs)\s+(\S+)(?:\s+(\d+))?$`), (*Dispatcher).cmdRstep},
	{regexp.MustCompile(`^(?:break|b)\s+(.+)$`), (*Dispatcher).cmdBreak},
	{regexp.MustCompile(`^(?:lsbrk|l)$`), (*Dispatcher).cmdLsbrk},
	{regexp.MustCompile(`^(?:delete|d)\s+(\d+)$`), (*Dispatcher).cmdDelete},
	{regexp.MustCompile(`^run(?:\s+(\d+))?$`), (*Dispatcher).cmdRun},
	{regexp.MustCompile(`^(?:jump|j)\s+(\d+)$`), (*Dispatcher).cmdJump},
	{regexp.MustCompile(`^(?:where|w)\s+(\S+)(?:\s+(\d+))?$`), (*Dispatcher).cmdWhere},
	{regexp.MustCompile(`^(?:info|i)\s+(\S+)$`), (*Dispatcher).cmdInfo},
	{regexp.MustCompile(`^(?:modules|m)$`), (*Dispatcher).cmdModules},
	{regexp.MustCompile(`^traceback$`), (*Dispatcher).cmdTraceback},
	{regexp.MustCompile(`^clear$`), (*Dispatcher).cmdClear},
	{regexp.MustCompile(`^help$`), (*Dispatcher).cmdHelp},
	{regexp.MustCompile(`^(?:quit|exit|q)$`), (*Dispatcher).cmdQuit},
	{regexp.MustCompile(`^debugger$`), (*Dispatcher).cmdDebugger},
}

// Dispatcher owns the session's core state and the REPL reader.
type Dispatcher struct {
	model      *hwmodel.DebugModel
	breakpoints *breakpoint.Engine
	dwarf      *dwarfinfo.Resolver

	reader  *replline.Reader
	output  io.Writer
	lastCmd string
	quit    bool
}

// New builds a dispatcher over an already-bound DebugModel. dwarf may
// be nil when no --binary was configured.
func New(model *hwmodel.DebugModel, dwarf *dwarfinfo.Resolver, reader *replline.Reader, output io.Writer) *Dispatcher {
	return &Dispatcher{
		model:       model,
		breakpoints: breakpoint.New(),
		dwarf:       dwarf,
		reader:      reader,
		output:      output,
	}
}

// Run drives the interactive loop until quit, EOF, or cancellation.
func (d *Dispatcher) Run() error {
	fmt.Fprintln(d.output, "accelerator-debugger — type 'help' for commands")
	for !d.quit {
		line, err := d.reader.ReadLine()
		if err == io.EOF || err == replline.ErrCancelled {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			line = d.lastCmd
		}
		if line == "" {
			continue
		}
		d.lastCmd = line

		out, err := d.dispatch(line)
		if err != nil {
			fmt.Fprintf(d.output, "ERROR: %v\n", err)
			continue
		}
		if out != "" {
			fmt.Fprintln(d.output, out)
		}
	}
	return nil
}

func (d *Dispatcher) dispatch(line string) (string, error) {
	for _, c := range commandTable {
		if m := c.pattern.FindStringSubmatch(line); m != nil {
			return c.handle(d, m)
		}
	}
	return "", inputErrorf("unrecognized command %q (type 'help')", line)
}

func parseCount(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, inputErrorf("invalid count %q", s)
	}
	return n, nil
}

func (d *Dispatcher) cmdFedge(m []string) (string, error) {
	n, err := parseCount(m[1], 1)
	if err != nil {
		return "", err
	}
	return d.advanceEdges(n)
}

func (d *Dispatcher) cmdRedge(m []string) (string, error) {
	n, err := parseCount(m[1], 1)
	if err != nil {
		return "", err
	}
	return d.reverseEdges(n)
}

// advanceEdges walks forward n edges, stopping early at a satisfied
// breakpoint or at end_time, per the stepping-loop rule in §4.5/§4.6.
func (d *Dispatcher) advanceEdges(n int) (string, error) {
	if d.breakpoints.Len() == 0 {
		target := d.model.SimTime() + uint64(n)*d.model.EdgeTime()
		if target > d.model.EndTime() {
			target = d.model.EndTime()
		}
		if err := d.model.Update(target); err != nil {
			return "", err
		}
		return d.timeStatus(), nil
	}
	for i := 0; i < n; i++ {
		if d.model.SimTime() >= d.model.EndTime() {
			return "end of simulation reached", nil
		}
		if err := d.model.Edge(); err != nil {
			return "", err
		}
		if bp, err := d.breakpoints.Check(d.envSnapshot()); err != nil {
			return "", err
		} else if bp != nil {
			return fmt.Sprintf("Hit breakpoint %d at time %d", bp.ID, d.model.SimTime()), nil
		}
	}
	return d.timeStatus(), nil
}

func (d *Dispatcher) reverseEdges(n int) (string, error) {
	target := int64(d.model.SimTime()) - int64(n)*int64(d.model.EdgeTime())
	if target < 0 {
		target = 0
	}
	if err := d.model.RUpdate(uint64(target)); err != nil {
		return "", err
	}
	return d.timeStatus(), nil
}

func (d *Dispatcher) timeStatus() string {
	return fmt.Sprintf("sim_time = %d / %d", d.model.SimTime(), d.model.EndTime())
}

func (d *Dispatcher) envSnapshot() breakpoint.Env {
	env := breakpoint.Env{}
	for name, signals := range d.model.SignalDict() {
		env[name] = signals
	}
	return env
}

func (d *Dispatcher) cmdBreak(m []string) (string, error) {
	id, err := d.breakpoints.Set(strings.TrimSpace(m[1]), d.envSnapshot())
	if err != nil {
		return "", &InputError{Msg: err.Error()}
	}
	return fmt.Sprintf("breakpoint %d: %s", id, m[1]), nil
}

func (d *Dispatcher) cmdLsbrk([]string) (string, error) {
	bps := d.breakpoints.List()
	if len(bps) == 0 {
		return "no breakpoints", nil
	}
	var b strings.Builder
	for _, bp := range bps {
		fmt.Fprintf(&b, "%d: %s\n", bp.ID, bp.Source)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (d *Dispatcher) cmdDelete(m []string) (string, error) {
	id, _ := strconv.Atoi(m[1])
	d.breakpoints.Delete(id)
	return fmt.Sprintf("deleted breakpoint %d", id), nil
}

func (d *Dispatcher) cmdRun(m []string) (string, error) {
	var target uint64 = d.model.EndTime()
	if m[1] != "" {
		t, err := strconv.ParseUint(m[1], 10, 64)
		if err != nil {
			return "", inputErrorf("invalid time %q", m[1])
		}
		target = t
	}
	if d.breakpoints.Len() == 0 {
		if err := d.model.Update(target); err != nil {
			return "", err
		}
		return d.timeStatus(), nil
	}
	// target may not be edge_time-aligned with sim_time (it only has to
	// be a valid trace time, per §4.4); floor-divide so the edge count
	// below can never ask Edge() to step past target, mirroring
	// runtime.py's run()/fedge() split (edges = (end-curr)//edge_time).
	if target <= d.model.SimTime() {
		return d.timeStatus(), nil
	}
	edges := int((target - d.model.SimTime()) / d.model.EdgeTime())
	return d.advanceEdges(edges)
}

func (d *Dispatcher) cmdJump(m []string) (string, error) {
	t, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return "", inputErrorf("invalid time %q", m[1])
	}
	if t > d.model.EndTime() {
		return "", inputErrorf("time %d exceeds end_time %d", t, d.model.EndTime())
	}
	if err := d.model.Jump(t); err != nil {
		return "", err
	}
	return d.timeStatus(), nil
}

func (d *Dispatcher) cmdModules([]string) (string, error) {
	var b strings.Builder
	for _, mod := range d.model.Modules() {
		fmt.Fprintln(&b, mod.Name())
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (d *Dispatcher) cmdInfo(m []string) (string, error) {
	mod, ok := d.model.Module(m[1])
	if !ok {
		return "", inputErrorf("unknown module %q", m[1])
	}
	return mod.Render(), nil
}

func (d *Dispatcher) cmdClear([]string) (string, error) {
	fmt.Fprint(d.output, "\033[2J\033[H")
	return "", nil
}

func (d *Dispatcher) cmdHelp([]string) (string, error) {
	return strings.TrimRight(`commands:
  fedge [n] / f        advance n edges (default 1)
  redge [n] / r        reverse n edges
  step <loc> [n] / s   advance until source-line change at loc
  rstep <loc> [n] / rs reverse-step
  break <expr> / b     add breakpoint
  lsbrk / l            list breakpoints
  delete <id> / d      remove breakpoint
  run [t]              advance to t or end, honoring breakpoints
  jump <t> / j         set sim_time to t, ignoring breakpoints
  where <loc> [n] / w  source around pc (no disassembly)
  info <module> / i    pretty-print module
  modules / m          list modules
  traceback            reverse until first clean cycle
  clear, help, quit    ui utilities`, "\n"), nil
}

func (d *Dispatcher) cmdQuit([]string) (string, error) {
	d.quit = true
	return "", nil
}

func (d *Dispatcher) cmdDebugger([]string) (string, error) {
	return "already in the debugger", nil
}

// cmdTraceback steps backward one edge at a time and reports the most
// recent edge (scanning backward from sim_time) whose module-wide
// signal dictionary contains no x-valued integer signal.
func (d *Dispatcher) cmdTraceback([]string) (string, error) {
	for t := d.model.SimTime(); ; {
		if d.allDefined() {
			return fmt.Sprintf("clean cycle at time %d", t), nil
		}
		if t == 0 {
			return "no clean cycle found before time 0", nil
		}
		t -= d.model.EdgeTime()
		if err := d.model.RUpdate(t); err != nil {
			return "", err
		}
	}
}

func (d *Dispatcher) allDefined() bool {
	for _, mod := range d.model.Modules() {
		for _, sig := range mod.Signals() {
			if _, ok := sig.Current.AsInt(); !ok {
				return false
			}
		}
	}
	return true
}
