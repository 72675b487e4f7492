package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bespoke-silicon-group/accelerator-debugger/internal/replline"
	"github.com/bespoke-silicon-group/accelerator-debugger/pkg/dispatcher"
	"github.com/bespoke-silicon-group/accelerator-debugger/pkg/dwarfinfo"
	"github.com/bespoke-silicon-group/accelerator-debugger/pkg/hwmodel"
	"github.com/bespoke-silicon-group/accelerator-debugger/pkg/modelspec"
	"github.com/bespoke-silicon-group/accelerator-debugger/pkg/trace"
)

var (
	regen        bool
	dumpSiglist  string
	binaryPath   string
	modelArgsRaw []string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "hwdbg <INPUT> <MODEL>",
	Short: "interactive post-mortem debugger for hardware simulation traces",
	Long: `hwdbg replays a Value-Change-Dump trace against a named hardware
model and lets you step forward and backward through simulation time,
inspect module state, and set conditional breakpoints over live
signal values.`,
	Args: cobra.ExactArgs(2),
	RunE: runDebugger,
}

func init() {
	rootCmd.Flags().BoolVar(&regen, "regen", false, "force re-parse of the trace and overwrite its cache")
	rootCmd.Flags().StringVar(&dumpSiglist, "dump-siglist", "", "dump every hierarchical signal name to FILE and exit")
	rootCmd.Flags().StringVar(&binaryPath, "binary", "", "ELF binary for DWARF source correlation")
	rootCmd.Flags().StringArrayVar(&modelArgsRaw, "model-arg", nil, "KEY=VALUE passed opaquely to the model constructor (repeatable)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug-level logging")
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func runDebugger(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	inputPath, modelName := args[0], args[1]

	modelArgs, err := modelspec.ParseArgs(modelArgsRaw)
	if err != nil {
		return usageExit(2, err)
	}

	registry := modelspec.Builtin()
	spec, err := registry.Build(modelName, modelArgs)
	if err != nil {
		return usageExit(2, fmt.Errorf("%w (known models: %s)", err, strings.Join(registry.Names(), ", ")))
	}

	modules, err := spec.Modules()
	if err != nil {
		return usageExit(1, err)
	}

	// Fail fast on a missing signal before the session starts, matching
	// debugger.py's VCDData(args.INPUT, siglist=model.signal_names, ...).
	// --dump-siglist bypasses this: it wants every hierarchical name in
	// the file, not just the ones this model declares.
	var sigList []string
	if dumpSiglist == "" {
		sigList = modelSignalNames(spec)
	}

	ts, err := trace.Build(inputPath, trace.Options{
		CachePath: inputPath + ".cached",
		Regen:     regen,
		SigList:   sigList,
	})
	if err != nil {
		if fe := asFatalIOError(err); fe != nil {
			logger.Error("fatal I/O error parsing trace", "path", inputPath, "err", fe)
			return usageExit(1, fe)
		}
		logger.Error("failed to parse trace", "path", inputPath, "err", err)
		return usageExit(1, err)
	}

	if dumpSiglist != "" {
		return dumpSignalNames(ts, dumpSiglist)
	}

	model, err := hwmodel.New(modules, ts, spec.EdgeTime)
	if err != nil {
		logger.Error("failed to bind model to trace", "model", modelName, "err", err)
		return usageExit(1, err)
	}

	var resolver *dwarfinfo.Resolver
	if binaryPath != "" {
		resolver, err = dwarfinfo.Load(binaryPath)
		if err != nil {
			logger.Error("failed to load binary", "path", binaryPath, "err", err)
			return usageExit(1, err)
		}
	}

	reader := replline.NewReader(&replline.Config{
		Prompt: "hwdbg> ",
		Input:  os.Stdin,
		Output: os.Stdout,
	})
	disp := dispatcher.New(model, resolver, reader, os.Stdout)
	return disp.Run()
}

// modelSignalNames collects every hierarchical signal name a spec's
// modules reference, including the Memory-only addr/wdata/enable
// fields that a ModuleSpec doesn't also repeat in Signals.
func modelSignalNames(spec *modelspec.Spec) []string {
	seen := map[string]bool{}
	var out []string
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		out = append(out, name)
	}
	for _, m := range spec.Modules {
		for _, name := range m.Signals {
			add(name)
		}
		if m.Kind == modelspec.KindMemory {
			add(m.AddrSignal)
			add(m.WDataSignal)
			add(m.EnableSignal)
		}
	}
	return out
}

// asFatalIOError reports whether err (or something it wraps) is a
// *trace.Fatal — an irrecoverable I/O error on the input, as opposed
// to a well-formed file with bad VCD content. The caller terminates
// immediately in that case; nothing else in this process holds a
// scoped resource at this point, since trace.Build closes the files
// it opened before the error reaches here.
func asFatalIOError(err error) error {
	var fe *trace.Fatal
	if errors.As(err, &fe) {
		return fe
	}
	return nil
}

func dumpSignalNames(ts *trace.TraceStore, path string) error {
	var b strings.Builder
	for _, name := range ts.Names() {
		b.WriteString(name)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return usageExit(1, err)
	}
	return nil
}

// usageExit prints err to stderr and terminates with code, matching
// §6's exit-code contract: 1 for input errors, 2 for usage errors.
func usageExit(code int, err error) error {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(code)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
}
