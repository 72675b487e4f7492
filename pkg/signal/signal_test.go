package signal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bespoke-silicon-group/accelerator-debugger/pkg/trace"
)

const sampleVCD = `$scope module top $end
$scope module a $end
$var wire 1 ! clk $end
$upscope $end
$scope module b $end
$var wire 1 " clk $end
$upscope $end
$upscope $end
$enddefinitions $end
#0
0!
0"
#10
1!
`

func buildStore(t *testing.T) *trace.TraceStore {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.vcd")
	if err := os.WriteFile(path, []byte(sampleVCD), 0644); err != nil {
		t.Fatal(err)
	}
	ts, err := trace.Build(path, trace.Options{CachePath: filepath.Join(dir, "trace.cached")})
	if err != nil {
		t.Fatalf("trace.Build: %v", err)
	}
	return ts
}

func TestBindAndRefresh(t *testing.T) {
	ts := buildStore(t)
	sig, err := Bind(ts, "top.a.clk")
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if sig.Current.AsStr() != "x" {
		t.Errorf("Current before any refresh should be Undefined, got %q", sig.Current.AsStr())
	}

	if v := sig.RefreshAt(10); v.AsStr() != "1" {
		t.Errorf("RefreshAt(10) = %q, want %q", v.AsStr(), "1")
	}
	if sig.Current.AsStr() != "1" {
		t.Errorf("Current after RefreshAt(10) = %q, want %q", sig.Current.AsStr(), "1")
	}
}

func TestBindUnknownSignal(t *testing.T) {
	ts := buildStore(t)
	if _, err := Bind(ts, "top.nonexistent"); err == nil {
		t.Errorf("expected an error binding an unknown hierarchical name")
	}
}

func TestAssignDisplayNamesDisambiguatesOnCollision(t *testing.T) {
	ts := buildStore(t)
	a, err := Bind(ts, "top.a.clk")
	if err != nil {
		t.Fatalf("Bind a: %v", err)
	}
	b, err := Bind(ts, "top.b.clk")
	if err != nil {
		t.Fatalf("Bind b: %v", err)
	}

	AssignDisplayNames([]*Signal{a, b})

	if a.DisplayName == b.DisplayName {
		t.Fatalf("colliding leaf names %q should have been disambiguated", a.DisplayName)
	}
	if a.DisplayName != "a.clk" || b.DisplayName != "b.clk" {
		t.Errorf("DisplayNames = %q, %q; want \"a.clk\", \"b.clk\"", a.DisplayName, b.DisplayName)
	}
}

func TestAssignDisplayNamesNoCollision(t *testing.T) {
	ts := buildStore(t)
	a, err := Bind(ts, "top.a.clk")
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}

	AssignDisplayNames([]*Signal{a})
	if a.DisplayName != "clk" {
		t.Errorf("DisplayName with no collision = %q, want %q", a.DisplayName, "clk")
	}
}

func TestNextChangeAndPrevChangeDelegate(t *testing.T) {
	ts := buildStore(t)
	sig, err := Bind(ts, "top.a.clk")
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}

	ev, ok := sig.NextChange(0)
	if !ok || ev.Time != 10 {
		t.Errorf("NextChange(0) = %+v, %v; want time 10", ev, ok)
	}

	prev, ok := sig.PrevChange(10)
	if !ok || prev.Time != 0 {
		t.Errorf("PrevChange(10) = %+v, %v; want time 0", prev, ok)
	}
}
