// Package dwarfinfo correlates addresses against an optional ELF
// binary's DWARF debug information, giving the command dispatcher
// file/line/function answers for "where" and source-level "step".
//
// This is the one domain concern kept on the standard library: no
// third-party DWARF/ELF reader appears anywhere in the retrieved
// corpus, and debug/elf + debug/dwarf already cover the subset this
// debugger needs.
package dwarfinfo

import (
	"debug/dwarf"
	"debug/elf"
	"fmt"
	"sort"
)

// ErrBinaryRequired is returned by Load when it is given an empty
// path, i.e. no binary was configured via --binary.
var ErrBinaryRequired = fmt.Errorf("dwarfinfo: no binary configured")

// Location is a resolved source position.
type Location struct {
	File     string
	Line     int
	Function string
}

// Resolver answers address-to-source queries against one ELF binary's
// DWARF line and function tables.
type Resolver struct {
	path    string
	dwarf   *dwarf.Data
	lines   []lineEntry
	funcs   []funcEntry
}

type lineEntry struct {
	addr uint64
	file string
	line int
}

type funcEntry struct {
	lowPC, highPC uint64
	name          string
}

// Load opens path as an ELF binary and indexes its DWARF line and
// function tables. A nil *Resolver with ErrBinaryRequired is the
// expected zero value when no --binary flag was given; callers should
// check for that sentinel rather than treating it as a hard failure.
func Load(path string) (*Resolver, error) {
	if path == "" {
		return nil, ErrBinaryRequired
	}
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dwarfinfo: open %s: %w", path, err)
	}
	defer f.Close()

	data, err := f.DWARF()
	if err != nil {
		return nil, fmt.Errorf("dwarfinfo: no DWARF data in %s: %w", path, err)
	}

	r := &Resolver{path: path, dwarf: data}
	if err := r.indexLines(); err != nil {
		return nil, err
	}
	if err := r.indexFuncs(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Resolver) indexLines() error {
	reader := r.dwarf.Reader()
	for {
		entry, err := reader.Next()
		if err != nil {
			return fmt.Errorf("dwarfinfo: reading compile units: %w", err)
		}
		if entry == nil {
			break
		}
		if entry.Tag != dwarf.TagCompileUnit {
			continue
		}
		lr, err := r.dwarf.LineReader(entry)
		if err != nil || lr == nil {
			continue
		}
		var le dwarf.LineEntry
		for {
			if err := lr.Next(&le); err != nil {
				break
			}
			r.lines = append(r.lines, lineEntry{addr: le.Address, file: le.File.Name, line: le.Line})
		}
	}
	sort.Slice(r.lines, func(i, j int) bool { return r.lines[i].addr < r.lines[j].addr })
	return nil
}

func (r *Resolver) indexFuncs() error {
	reader := r.dwarf.Reader()
	for {
		entry, err := reader.Next()
		if err != nil {
			return fmt.Errorf("dwarfinfo: reading functions: %w", err)
		}
		if entry == nil {
			break
		}
		if entry.Tag != dwarf.TagSubprogram {
			continue
		}
		name, _ := entry.Val(dwarf.AttrName).(string)
		low, lowOK := entry.Val(dwarf.AttrLowpc).(uint64)
		if name == "" || !lowOK {
			continue
		}
		high := low
		if hv := entry.Val(dwarf.AttrHighpc); hv != nil {
			switch v := hv.(type) {
			case uint64:
				high = v
				if high < low { // DWARF4+ encodes highpc as an offset from lowpc
					high = low + v
				}
			case int64:
				high = low + uint64(v)
			}
		}
		r.funcs = append(r.funcs, funcEntry{lowPC: low, highPC: high, name: name})
	}
	sort.Slice(r.funcs, func(i, j int) bool { return r.funcs[i].lowPC < r.funcs[j].lowPC })
	return nil
}

// Resolve maps an address to its nearest source line at or below it.
func (r *Resolver) Resolve(addr uint64) (Location, bool) {
	i := sort.Search(len(r.lines), func(i int) bool { return r.lines[i].addr > addr })
	if i == 0 {
		return Location{}, false
	}
	entry := r.lines[i-1]
	loc := Location{File: entry.file, Line: entry.line}
	if fn, ok := r.functionAt(addr); ok {
		loc.Function = fn
	}
	return loc, true
}

func (r *Resolver) functionAt(addr uint64) (string, bool) {
	i := sort.Search(len(r.funcs), func(i int) bool { return r.funcs[i].lowPC > addr })
	if i == 0 {
		return "", false
	}
	f := r.funcs[i-1]
	if addr >= f.lowPC && addr < f.highPC {
		return f.name, true
	}
	return "", false
}

// NextLineAddress returns the lowest indexed address strictly greater
// than addr that begins a new source line.
func (r *Resolver) NextLineAddress(addr uint64) (uint64, bool) {
	i := sort.Search(len(r.lines), func(i int) bool { return r.lines[i].addr > addr })
	if i >= len(r.lines) {
		return 0, false
	}
	return r.lines[i].addr, true
}
