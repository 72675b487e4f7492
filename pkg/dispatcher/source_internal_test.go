package dispatcher

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSourceFile(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prog.c")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSourceWindowMarksCurrentLine(t *testing.T) {
	path := writeSourceFile(t, "int a;", "int b;", "int c;", "int d;", "int e;")

	out, err := sourceWindow(path, 3, 1)
	if err != nil {
		t.Fatalf("sourceWindow: %v", err)
	}
	want := "int b;\nint c; <----\nint d;\n"
	if out != want {
		t.Errorf("sourceWindow(3, 1) = %q, want %q", out, want)
	}
}

func TestSourceWindowClampsAtFileBoundaries(t *testing.T) {
	path := writeSourceFile(t, "int a;", "int b;", "int c;")

	out, err := sourceWindow(path, 1, 5)
	if err != nil {
		t.Fatalf("sourceWindow: %v", err)
	}
	want := "int a; <----\nint b;\nint c;\n"
	if out != want {
		t.Errorf("sourceWindow(1, 5) = %q, want %q", out, want)
	}
}

func TestSourceWindowMissingFile(t *testing.T) {
	if _, err := sourceWindow(filepath.Join(t.TempDir(), "nonexistent.c"), 1, 1); err == nil {
		t.Fatalf("expected an error reading a nonexistent source file")
	}
}
