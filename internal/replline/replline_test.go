package replline

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadLineFromPipedInput(t *testing.T) {
	input := strings.NewReader("fedge 10\nrun\n")
	var output bytes.Buffer
	r := NewReader(&Config{Prompt: "> ", Input: input, Output: &output})

	line, err := r.ReadLine()
	if err != nil {
		t.Fatalf("ReadLine: %v", err)
	}
	if line != "fedge 10" {
		t.Errorf("ReadLine() = %q, want %q", line, "fedge 10")
	}

	line, err = r.ReadLine()
	if err != nil {
		t.Fatalf("ReadLine: %v", err)
	}
	if line != "run" {
		t.Errorf("ReadLine() = %q, want %q", line, "run")
	}

	if _, err := r.ReadLine(); err != io.EOF {
		t.Errorf("ReadLine() at end of input = %v, want io.EOF", err)
	}
}

func TestReadLineRecordsHistory(t *testing.T) {
	input := strings.NewReader("break mem.addr == 5\nlsbrk\n")
	var output bytes.Buffer
	r := NewReader(&Config{Input: input, Output: &output})

	r.ReadLine()
	r.ReadLine()

	hist := r.GetHistory()
	if len(hist) != 2 || hist[0] != "break mem.addr == 5" || hist[1] != "lsbrk" {
		t.Errorf("GetHistory() = %v", hist)
	}
}

func TestReadLineSkipsConsecutiveDuplicateHistory(t *testing.T) {
	input := strings.NewReader("fedge\nfedge\nrun\n")
	var output bytes.Buffer
	r := NewReader(&Config{Input: input, Output: &output})

	r.ReadLine()
	r.ReadLine()
	r.ReadLine()

	hist := r.GetHistory()
	if len(hist) != 2 {
		t.Fatalf("GetHistory() = %v, want 2 entries (consecutive duplicate collapsed)", hist)
	}
	if hist[0] != "fedge" || hist[1] != "run" {
		t.Errorf("GetHistory() = %v", hist)
	}
}

func TestHistoryPersistsAcrossReaders(t *testing.T) {
	dir := t.TempDir()
	histFile := filepath.Join(dir, "history")

	first := NewReader(&Config{Input: strings.NewReader("step pc\n"), Output: &bytes.Buffer{}, HistoryFile: histFile})
	first.ReadLine()

	second := NewReader(&Config{Input: strings.NewReader(""), Output: &bytes.Buffer{}, HistoryFile: histFile})
	hist := second.GetHistory()
	if len(hist) != 1 || hist[0] != "step pc" {
		t.Errorf("history loaded from disk = %v, want [\"step pc\"]", hist)
	}
}

func TestSetPromptChangesNextReadLinePrompt(t *testing.T) {
	input := strings.NewReader("run\n")
	var output bytes.Buffer
	r := NewReader(&Config{Prompt: "(dbg) ", Input: input, Output: &output})
	r.SetPrompt(">> ")
	r.ReadLine()
	if !strings.HasPrefix(output.String(), ">> ") {
		t.Errorf("output = %q, want prefix %q", output.String(), ">> ")
	}
}
