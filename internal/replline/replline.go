// Package replline provides line editing, history, and raw-mode
// cancellation handling for the interactive command loop.
package replline

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"
)

// ErrCancelled is returned by ReadLine when the user interrupts input
// with Ctrl-C, Ctrl-Q, or Ctrl-D on an empty line while raw mode is
// active.
var ErrCancelled = errors.New("replline: input cancelled")

// history owns the command log: its in-memory ring, the on-disk
// sibling file it round-trips to, and the one trimming rule both
// sides share. Folding load/save/trim behind one receiver (rather
// than Reader methods each re-deriving the trim bound) is what lets
// NewReader, AddHistory, and recordHistory stay thin calls into the
// same place.
type history struct {
	lines  []string
	path   string
	maxLen int
}

func (h *history) trim() {
	if len(h.lines) > h.maxLen {
		h.lines = h.lines[len(h.lines)-h.maxLen:]
	}
}

func (h *history) add(line string) {
	h.lines = append(h.lines, line)
	h.trim()
	if h.path != "" {
		_ = h.save()
	}
}

func (h *history) load() error {
	if h.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(h.path), 0755); err != nil {
		return err
	}
	data, err := os.ReadFile(h.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			h.lines = append(h.lines, line)
		}
	}
	h.trim()
	return nil
}

func (h *history) save() error {
	if err := os.MkdirAll(filepath.Dir(h.path), 0755); err != nil {
		return err
	}
	return os.WriteFile(h.path, []byte(strings.Join(h.lines, "\n")), 0644)
}

// Reader provides readline functionality with history and, when its
// input is a terminal, trusted-key cancellation.
type Reader struct {
	input      io.Reader
	output     io.Writer
	prompt     string
	hist       history
	scanner    *bufio.Scanner
	rawFD      int
	isTerminal bool
}

// Config holds readline configuration.
type Config struct {
	Prompt      string
	HistoryFile string
	MaxHistory  int
	Input       io.Reader
	Output      io.Writer
}

// NewReader creates a new readline reader.
func NewReader(config *Config) *Reader {
	if config.Input == nil {
		config.Input = os.Stdin
	}
	if config.Output == nil {
		config.Output = os.Stdout
	}
	maxHistory := config.MaxHistory
	if maxHistory == 0 {
		maxHistory = 1000
	}

	r := &Reader{
		input:   config.Input,
		output:  config.Output,
		prompt:  config.Prompt,
		hist:    history{path: config.HistoryFile, maxLen: maxHistory},
		scanner: bufio.NewScanner(config.Input),
	}

	if f, ok := config.Input.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		r.rawFD = int(f.Fd())
		r.isTerminal = true
	}

	_ = r.hist.load()
	return r
}

// ReadLine reads a single command line. On a terminal it watches for
// Ctrl-C, Ctrl-D, and Ctrl-Q while raw mode is active and returns
// ErrCancelled instead of the partial line, per the cancellation
// model; otherwise it falls back to plain buffered scanning, which is
// all a piped or scripted input stream needs.
func (r *Reader) ReadLine() (string, error) {
	fmt.Fprint(r.output, r.prompt)

	if r.isTerminal {
		line, err := r.readLineRaw()
		if err != nil {
			return "", err
		}
		r.recordHistory(line)
		return line, nil
	}

	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	line := r.scanner.Text()
	r.recordHistory(line)
	return line, nil
}

func (r *Reader) recordHistory(line string) {
	last := len(r.hist.lines)
	if line != "" && (last == 0 || r.hist.lines[last-1] != line) {
		r.hist.add(line)
	}
}

// readLineRaw reads byte by byte in raw mode so Ctrl-C/D/Q can be
// intercepted before the line buffer driver sees them, while still
// supporting backspace and a conventional Enter-to-submit flow.
func (r *Reader) readLineRaw() (string, error) {
	oldState, err := term.MakeRaw(r.rawFD)
	if err != nil {
		return "", err
	}
	defer term.Restore(r.rawFD, oldState)

	buf := make([]byte, 1)
	var line []byte
	for {
		if _, err := r.input.Read(buf); err != nil {
			return "", err
		}
		switch buf[0] {
		case 0x03, 0x11: // Ctrl-C, Ctrl-Q
			fmt.Fprint(r.output, "\r\n")
			return "", ErrCancelled
		case 0x04: // Ctrl-D
			if len(line) == 0 {
				fmt.Fprint(r.output, "\r\n")
				return "", ErrCancelled
			}
		case '\r', '\n':
			fmt.Fprint(r.output, "\r\n")
			return string(line), nil
		case 0x7f, 0x08: // backspace / delete
			if len(line) > 0 {
				line = line[:len(line)-1]
				fmt.Fprint(r.output, "\b \b")
			}
		default:
			line = append(line, buf[0])
			fmt.Fprint(r.output, string(buf[0]))
		}
	}
}

// AddHistory adds a line to history, persisting it if a history file
// is configured.
func (r *Reader) AddHistory(line string) { r.hist.add(line) }

// GetHistory returns the command history.
func (r *Reader) GetHistory() []string { return r.hist.lines }

// SetPrompt changes the prompt shown before the next ReadLine.
func (r *Reader) SetPrompt(prompt string) { r.prompt = prompt }
