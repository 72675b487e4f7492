package dispatcher_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bespoke-silicon-group/accelerator-debugger/internal/replline"
	"github.com/bespoke-silicon-group/accelerator-debugger/pkg/dispatcher"
	"github.com/bespoke-silicon-group/accelerator-debugger/pkg/hwmodel"
	"github.com/bespoke-silicon-group/accelerator-debugger/pkg/trace"
)

const sessionVCD = `$scope module top $end
$var wire 1 ! clk $end
$var wire 1 " rst $end
$upscope $end
$enddefinitions $end
#0
0!
0"
#10
1!
#20
0!
1"
#30
1!
`

func buildModel(t *testing.T) *hwmodel.DebugModel {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "session.vcd")
	if err := os.WriteFile(path, []byte(sessionVCD), 0644); err != nil {
		t.Fatal(err)
	}
	ts, err := trace.Build(path, trace.Options{CachePath: filepath.Join(dir, "trace.cached")})
	if err != nil {
		t.Fatalf("trace.Build: %v", err)
	}
	modules := []hwmodel.Module{hwmodel.NewBasic("top", []string{"top.clk", "top.rst"})}
	dm, err := hwmodel.New(modules, ts, 10)
	if err != nil {
		t.Fatalf("hwmodel.New: %v", err)
	}
	return dm
}

func runSession(t *testing.T, commands string) string {
	t.Helper()
	dm := buildModel(t)
	var output bytes.Buffer
	reader := replline.NewReader(&replline.Config{Input: strings.NewReader(commands), Output: &output})
	d := dispatcher.New(dm, nil, reader, &output)
	if err := d.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return output.String()
}

const coreSessionVCD = `$scope module cpu $end
$var wire 8 ! pc $end
$upscope $end
$enddefinitions $end
#0
b00000000 !
#10
b00000100 !
`

func buildCoreModel(t *testing.T) *hwmodel.DebugModel {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "core.vcd")
	if err := os.WriteFile(path, []byte(coreSessionVCD), 0644); err != nil {
		t.Fatal(err)
	}
	ts, err := trace.Build(path, trace.Options{CachePath: filepath.Join(dir, "trace.cached")})
	if err != nil {
		t.Fatalf("trace.Build: %v", err)
	}
	modules := []hwmodel.Module{hwmodel.NewCore("cpu", []string{"cpu.pc"}, "cpu.pc")}
	dm, err := hwmodel.New(modules, ts, 10)
	if err != nil {
		t.Fatalf("hwmodel.New: %v", err)
	}
	return dm
}

func runCoreSession(t *testing.T, commands string) string {
	t.Helper()
	dm := buildCoreModel(t)
	var output bytes.Buffer
	reader := replline.NewReader(&replline.Config{Input: strings.NewReader(commands), Output: &output})
	d := dispatcher.New(dm, nil, reader, &output)
	if err := d.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return output.String()
}

func TestSessionAdvanceAndBreakpoint(t *testing.T) {
	out := runSession(t, strings.Join([]string{
		"modules",
		"fedge 1",
		"break top.rst == 1",
		"fedge 5",
		"delete 1",
		"run",
		"quit",
	}, "\n")+"\n")

	if !strings.Contains(out, "top") {
		t.Errorf("expected 'modules' output to list the top module, got:\n%s", out)
	}
	if !strings.Contains(out, "sim_time = 10 / 30") {
		t.Errorf("expected fedge 1 to land at sim_time 10, got:\n%s", out)
	}
	if !strings.Contains(out, "breakpoint 1: top.rst == 1") {
		t.Errorf("expected breakpoint confirmation, got:\n%s", out)
	}
	if !strings.Contains(out, "Hit breakpoint 1 at time 20") {
		t.Errorf("expected the breakpoint to halt fedge 5 at time 20, got:\n%s", out)
	}
	if !strings.Contains(out, "deleted breakpoint 1") {
		t.Errorf("expected delete confirmation, got:\n%s", out)
	}
	if !strings.Contains(out, "sim_time = 30 / 30") {
		t.Errorf("expected run (breakpoint-free) to reach end_time, got:\n%s", out)
	}
}

// TestRunToNonEdgeAlignedTargetHaltsGracefully covers a breakpoint-
// armed "run" whose target time (25) doesn't land on an edge_time=10
// boundary from sim_time=0 — cmdRun must floor-divide the edge count
// rather than loop Edge() until sim_time reaches target, which would
// otherwise try to step past target and fault.
func TestRunToNonEdgeAlignedTargetHaltsGracefully(t *testing.T) {
	out := runSession(t, strings.Join([]string{
		"break top.clk == 9", // never true; keeps the breakpoint path active without halting early
		"run 25",
		"quit",
	}, "\n")+"\n")

	if !strings.Contains(out, "sim_time = 20 / 30") {
		t.Errorf("expected run 25 (floor-divided to 2 edges) to land at sim_time 20, got:\n%s", out)
	}
	if strings.Contains(out, "ERROR") {
		t.Errorf("expected no error from a non-edge-aligned run target, got:\n%s", out)
	}
}

func TestUnrecognizedCommandReportsErrorAndKeepsStateUnchanged(t *testing.T) {
	out := runSession(t, "bogus-command\nfedge 0\nquit\n")
	if !strings.Contains(out, "ERROR: unrecognized command") {
		t.Errorf("expected an ERROR line for an unrecognized command, got:\n%s", out)
	}
	if !strings.Contains(out, "sim_time = 0 / 30") {
		t.Errorf("expected sim_time to stay at 0 after an unrecognized command, got:\n%s", out)
	}
}

func TestEmptyLineRepeatsPreviousCommand(t *testing.T) {
	out := runSession(t, "fedge 1\n\nquit\n")
	// Each "fedge 1" advances sim_time by one edge (10); the blank line
	// should repeat it, landing on sim_time 20, not 10.
	if !strings.Contains(out, "sim_time = 20 / 30") {
		t.Errorf("expected the blank line to repeat 'fedge 1' reaching sim_time 20, got:\n%s", out)
	}
}

func TestInfoRendersModuleTable(t *testing.T) {
	out := runSession(t, "info top\nquit\n")
	if !strings.Contains(out, "top") {
		t.Errorf("expected info top to render a table titled 'top', got:\n%s", out)
	}
}

func TestInfoUnknownModuleIsInputError(t *testing.T) {
	out := runSession(t, "info nope\nquit\n")
	if !strings.Contains(out, "ERROR: unknown module") {
		t.Errorf("expected an ERROR for an unknown module, got:\n%s", out)
	}
}

func TestStepWithoutBinaryIsBinaryError(t *testing.T) {
	out := runCoreSession(t, "step cpu 1\nquit\n")
	if !strings.Contains(out, "ERROR: no binary configured") {
		t.Errorf("expected step without --binary to report a binary error, got:\n%s", out)
	}
}

func TestWhereWithoutBinaryIsBinaryError(t *testing.T) {
	out := runCoreSession(t, "where cpu\nquit\n")
	if !strings.Contains(out, "ERROR: no binary configured") {
		t.Errorf("expected where without --binary to report a binary error, got:\n%s", out)
	}
}

func TestWhereOnNonCoreModuleIsInputError(t *testing.T) {
	out := runSession(t, "where top\nquit\n")
	if !strings.Contains(out, "ERROR: module \"top\" is not a Core module") {
		t.Errorf("expected where on a Basic module to report an input error, got:\n%s", out)
	}
}

func TestJumpIgnoresBreakpoints(t *testing.T) {
	out := runSession(t, strings.Join([]string{
		"break top.rst == 1",
		"jump 30",
		"quit",
	}, "\n")+"\n")
	if !strings.Contains(out, "sim_time = 30 / 30") {
		t.Errorf("expected jump to reach time 30 ignoring the active breakpoint, got:\n%s", out)
	}
	if strings.Contains(out, "Hit breakpoint") {
		t.Errorf("jump must not honor breakpoints, got:\n%s", out)
	}
}
