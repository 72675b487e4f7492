package trace

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleVCD = `$scope module top $end
$var wire 1 ! clk $end
$upscope $end
$enddefinitions $end
#0
0!
#10
1!
#20
0!
`

func writeVCD(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.vcd")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseAndLookup(t *testing.T) {
	path := writeVCD(t, sampleVCD)
	ts, err := Build(path, Options{CachePath: filepath.Join(t.TempDir(), "trace.cached")})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	idx, ok := ts.Symbol("top.clk")
	if !ok {
		t.Fatalf("symbol top.clk not found")
	}

	if v := ts.ValueAt(idx, 5); v.AsStr() != "0" {
		t.Errorf("value_at(5) = %q, want %q", v.AsStr(), "0")
	}
	if v := ts.ValueAt(idx, 10); v.AsStr() != "1" {
		t.Errorf("value_at(10) = %q, want %q", v.AsStr(), "1")
	}

	ev, ok := ts.NextChange(idx, 5)
	if !ok || ev.Time != 10 || ev.Value.AsStr() != "1" {
		t.Errorf("next_change(5) = %+v, %v; want (10, '1'), true", ev, ok)
	}

	prev, ok := ts.PrevChange(idx, 20)
	if !ok || prev.Time != 10 || prev.Value.AsStr() != "1" {
		t.Errorf("prev_change(20) = %+v, %v; want (10, '1'), true", prev, ok)
	}

	if ts.EndTime() != 20 {
		t.Errorf("EndTime() = %d, want 20", ts.EndTime())
	}
}

func TestFillInForUntoggledSymbol(t *testing.T) {
	content := `$scope module top $end
$var wire 1 ! clk $end
$var wire 1 " rst $end
$upscope $end
$enddefinitions $end
#0
0!
#10
1!
`
	path := writeVCD(t, content)
	ts, err := Build(path, Options{CachePath: filepath.Join(t.TempDir(), "trace.cached")})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	idx, ok := ts.Symbol("top.rst")
	if !ok {
		t.Fatalf("symbol top.rst not found")
	}
	if v := ts.ValueAt(idx, 0); v.AsStr() != "x" {
		t.Errorf("untoggled signal should read 'x' at time 0, got %q", v.AsStr())
	}
}

// TestAliasedCodeReplaysToEveryName covers a VCD file where two
// hierarchical names share one code (the $var form explicitly permits
// this, e.g. a renamed or tied wire) — both names must replay the
// same event timeline, not just whichever $var line parsed last.
func TestAliasedCodeReplaysToEveryName(t *testing.T) {
	content := `$scope module top $end
$var wire 1 ! clk $end
$var wire 1 ! clk_alias $end
$upscope $end
$enddefinitions $end
#0
0!
#10
1!
#20
0!
`
	path := writeVCD(t, content)
	ts, err := Build(path, Options{CachePath: filepath.Join(t.TempDir(), "trace.cached")})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	clkIdx, ok := ts.Symbol("top.clk")
	if !ok {
		t.Fatalf("symbol top.clk not found")
	}
	aliasIdx, ok := ts.Symbol("top.clk_alias")
	if !ok {
		t.Fatalf("symbol top.clk_alias not found")
	}

	for _, at := range []uint64{0, 10, 20} {
		clkVal := ts.ValueAt(clkIdx, at)
		aliasVal := ts.ValueAt(aliasIdx, at)
		if clkVal.AsStr() != aliasVal.AsStr() {
			t.Errorf("value_at(%d): top.clk = %q but top.clk_alias = %q, want equal", at, clkVal.AsStr(), aliasVal.AsStr())
		}
	}
	if aliasVal := ts.ValueAt(aliasIdx, 10); aliasVal.AsStr() != "1" {
		t.Errorf("top.clk_alias at t=10 = %q, want %q (should replay clk's own timeline, not fill-in 'x')", aliasVal.AsStr(), "1")
	}
}

func TestSignalsMissing(t *testing.T) {
	path := writeVCD(t, sampleVCD)
	_, err := Build(path, Options{
		SigList:   []string{"top.clk", "top.nonexistent"},
		CachePath: filepath.Join(t.TempDir(), "trace.cached"),
	})
	var missing *SignalsMissing
	if err == nil {
		t.Fatalf("expected SignalsMissing error")
	}
	if !asSignalsMissing(err, &missing) {
		t.Fatalf("expected *SignalsMissing, got %T: %v", err, err)
	}
}

func asSignalsMissing(err error, target **SignalsMissing) bool {
	if sm, ok := err.(*SignalsMissing); ok {
		*target = sm
		return true
	}
	return false
}

func TestCacheRoundTrip(t *testing.T) {
	path := writeVCD(t, sampleVCD)
	cachePath := filepath.Join(t.TempDir(), "trace.cached")

	first, err := Build(path, Options{CachePath: cachePath})
	if err != nil {
		t.Fatalf("first Build: %v", err)
	}

	second, err := Build(path, Options{CachePath: cachePath})
	if err != nil {
		t.Fatalf("second Build (from cache): %v", err)
	}

	if second.EndTime() != first.EndTime() {
		t.Errorf("cached EndTime() = %d, want %d", second.EndTime(), first.EndTime())
	}
	idx, ok := second.Symbol("top.clk")
	if !ok {
		t.Fatalf("cached store lost symbol top.clk")
	}
	if v := second.ValueAt(idx, 10); v.AsStr() != "1" {
		t.Errorf("cached value_at(10) = %q, want %q", v.AsStr(), "1")
	}
}
