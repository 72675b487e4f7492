package trace

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bespoke-silicon-group/accelerator-debugger/pkg/value"
	"github.com/ulikunitz/xz"
)

// Build parses (or loads from cache) the VCD file at path, applying
// opts. The returned TraceStore is immutable.
func Build(path string, opts Options) (*TraceStore, error) {
	if opts.CachePath == "" {
		opts.CachePath = path + ".cached"
	}

	if !opts.Regen {
		if ts, err := loadCache(opts.CachePath, path); err == nil {
			return filterSigList(ts, opts.SigList)
		}
	}

	// The cache always holds the full store; SigList is applied after.
	full := opts
	full.SigList = nil
	ts, err := parseFile(path, full)
	if err != nil {
		return nil, err
	}

	_ = saveCache(opts.CachePath, ts) // best-effort; cache write failures are not fatal

	return filterSigList(ts, opts.SigList)
}

func openDecompressed(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &Fatal{Path: path, Err: err}
	}
	if !strings.HasSuffix(path, ".xz") {
		return f, nil
	}

	zr, err := xz.NewReader(bufio.NewReader(f))
	if err != nil {
		f.Close()
		return nil, &Fatal{Path: path, Err: fmt.Errorf("xz header: %w", err)}
	}
	return &xzCloser{r: zr, f: f}, nil
}

// xzCloser adapts an xz.Reader (no Close method) to io.ReadCloser by
// closing the underlying compressed file.
type xzCloser struct {
	r *xz.Reader
	f *os.File
}

func (x *xzCloser) Read(p []byte) (int, error) { return x.r.Read(p) }
func (x *xzCloser) Close() error                { return x.f.Close() }

func parseFile(path string, opts Options) (*TraceStore, error) {
	rc, err := openDecompressed(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	wantSet := map[string]bool{}
	for _, n := range opts.SigList {
		wantSet[n] = true
	}
	wantAll := len(wantSet) == 0

	var scopeStack []string
	// codeNamesByCode holds every retained hierarchical name sharing a VCD
	// code: the $var form allows several declarations to alias one
	// code, and every alias must replay the same event timeline.
	codeNamesByCode := map[string][]string{}
	nameToCode := map[string]string{}
	nameOrder := []string{}
	var pendingTimescale []string
	timescale := 1.0 // ps-per-tick default until $timescale seen
	haveTimescale := false

	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	lineNo := 0
	inHeader := true

	var curTime uint64
	tlTimes := map[string][]uint64{}
	tlVals := map[string][]value.Value{}

	appendEvent := func(code string, v value.Value) {
		for _, name := range codeNamesByCode[code] {
			tlTimes[name] = append(tlTimes[name], curTime)
			tlVals[name] = append(tlVals[name], v)
		}
	}

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if inHeader {
			switch {
			case strings.HasPrefix(line, "$scope"):
				fields := strings.Fields(line)
				if len(fields) >= 3 {
					scopeStack = append(scopeStack, fields[2])
				}
			case strings.HasPrefix(line, "$upscope"):
				if len(scopeStack) > 0 {
					scopeStack = scopeStack[:len(scopeStack)-1]
				}
			case strings.HasPrefix(line, "$var"):
				fields := strings.Fields(line)
				// $var TYPE SIZE CODE NAME... $end
				if len(fields) < 5 {
					return nil, &ParseError{Line: lineNo, Msg: "malformed $var"}
				}
				code := fields[3]
				rawName := strings.Join(fields[4:len(fields)-1], " ")
				name := stripRange(rawName)
				full := name
				if len(scopeStack) > 0 {
					full = strings.Join(scopeStack, ".") + "." + name
				}
				if wantAll || wantSet[full] {
					if _, exists := nameToCode[full]; !exists {
						nameToCode[full] = code
						nameOrder = append(nameOrder, full)
						codeNamesByCode[code] = append(codeNamesByCode[code], full)
					}
				}
			case strings.HasPrefix(line, "$timescale"):
				fields := strings.Fields(line)
				if len(fields) >= 3 && fields[len(fields)-1] == "$end" {
					ts, err := parseTimescale(fields[1:len(fields)-1], opts.RequestedScale)
					if err != nil {
						return nil, err
					}
					timescale = ts
					haveTimescale = true
				} else {
					pendingTimescale = []string{} // multi-line form; gathered by the case below
					if len(fields) > 1 {
						pendingTimescale = append(pendingTimescale, fields[1:]...)
					}
				}
			case pendingTimescale != nil && !haveTimescale && !strings.HasPrefix(line, "$"):
				pendingTimescale = append(pendingTimescale, strings.Fields(line)...)
			case strings.HasPrefix(line, "$end") && pendingTimescale != nil && !haveTimescale:
				ts, err := parseTimescale(pendingTimescale, opts.RequestedScale)
				if err != nil {
					return nil, err
				}
				timescale = ts
				haveTimescale = true
			case strings.HasPrefix(line, "$enddefinitions"):
				inHeader = false
				if !haveTimescale {
					// No explicit $timescale: default to 1 raw unit == requested unit.
					ts, err := parseTimescale([]string{"1"}, opts.RequestedScale)
					if err == nil {
						timescale = ts
					}
				}
				if !wantAll {
					missing := missingNames(wantSet, nameToCode)
					if len(missing) > 0 {
						return nil, &SignalsMissing{Names: missing}
					}
				}
			}
			continue
		}

		// Event section.
		switch line[0] {
		case '#':
			raw, err := parseUintSafe(line[1:])
			if err != nil {
				return nil, &ParseError{Line: lineNo, Msg: "bad time marker " + line}
			}
			curTime = scaledTime(raw, timescale)
		case '0', '1', 'x', 'X', 'z', 'Z':
			if len(line) < 2 {
				continue
			}
			code := line[1:]
			v, err := value.New(line[:1])
			if err != nil {
				return nil, &ParseError{Line: lineNo, Msg: err.Error()}
			}
			appendEvent(code, v)
		case 'b', 'B':
			parts := strings.Fields(line)
			if len(parts) != 2 {
				continue
			}
			v, err := value.New(parts[0][1:])
			if err != nil {
				return nil, &ParseError{Line: lineNo, Msg: err.Error()}
			}
			appendEvent(parts[1], v)
		case 'r', 'R':
			parts := strings.Fields(line)
			if len(parts) != 2 {
				continue
			}
			v, err := realToValue(parts[0][1:])
			if err != nil {
				continue // unsupported real literal; ignore per "unknown keywords ignored"
			}
			appendEvent(parts[1], v)
		default:
			// Unknown keyword or directive: ignored.
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("trace: reading %s: %w", path, err)
	}

	ts := &TraceStore{
		index:     map[string]int{},
		timescale: timescale,
	}
	for _, name := range nameOrder {
		times := tlTimes[name]
		vals := tlVals[name]
		if len(times) == 0 {
			times = []uint64{0}
			vals = []value.Value{value.Undefined}
		}
		idx := len(ts.names)
		ts.names = append(ts.names, name)
		ts.index[name] = idx
		ts.timelines = append(ts.timelines, timeline{times: times, values: vals})
		if last := times[len(times)-1]; last > ts.endTime {
			ts.endTime = last
		}
	}

	return ts, nil
}

func missingNames(want map[string]bool, have map[string]string) []string {
	var missing []string
	for name := range want {
		if _, ok := have[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

func stripRange(name string) string {
	if i := strings.IndexByte(name, '['); i >= 0 {
		return name[:i]
	}
	return name
}

func scaledTime(raw uint64, scale float64) uint64 {
	return uint64(float64(raw) * scale)
}

func parseUintSafe(s string) (uint64, error) {
	var n uint64
	if s == "" {
		return 0, fmt.Errorf("empty")
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("not a digit: %q", s)
		}
		n = n*10 + uint64(c-'0')
	}
	return n, nil
}

func realToValue(s string) (value.Value, error) {
	var f float64
	if _, err := fmt.Sscanf(s, "%g", &f); err != nil {
		return value.Value{}, err
	}
	return value.FromInt(uint64(int64(f)), 64), nil
}

// filterSigList narrows a cached (unfiltered) TraceStore down to the
// requested siglist, failing with SignalsMissing if any are absent.
func filterSigList(ts *TraceStore, sigList []string) (*TraceStore, error) {
	if len(sigList) == 0 {
		return ts, nil
	}
	out := &TraceStore{
		index:     map[string]int{},
		timescale: ts.timescale,
		endTime:   ts.endTime,
	}
	var missing []string
	for _, name := range sigList {
		idx, ok := ts.index[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		out.index[name] = len(out.names)
		out.names = append(out.names, name)
		out.timelines = append(out.timelines, ts.timelines[idx])
	}
	if len(missing) > 0 {
		return nil, &SignalsMissing{Names: missing}
	}
	return out, nil
}
