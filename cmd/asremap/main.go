package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"asremap/internal/config"
	"asremap/internal/observ"
	"asremap/internal/prof"
	"asremap/internal/version"
)

// app carries the state shared by every subcommand of one invocation.
type app struct {
	cfg     config.Config
	timer   *observ.Timer
	prof    *prof.Session
	cleanup func(failed bool)
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

// run executes the CLI with args. Errors are printed to stderr by cobra.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	if a.cleanup != nil {
		a.cleanup(err != nil)
	}
	if perr := a.prof.Stop(); perr != nil {
		fmt.Fprintf(stderr, "profiling: %v\n", perr)
	}
	return err
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "asremap",
		Short: "Address space remapping for IR module snapshots",
		Long: `asremap rewrites every pointer address space of a module through a remap
function, rebuilding globals, constants and instructions that mention them.`,
		Version:           version.Version,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "path to asremap.toml (default: search upward from the working directory)")
	pf.String("color", "auto", "colorize output (auto|on|off)")
	pf.Bool("quiet", false, "suppress non-essential output")
	pf.Bool("timings", false, "show timing information")
	pf.String("trace", "", "trace output file (- for stderr)")
	pf.String("trace-level", "", "trace level (off|error|phase|detail|debug)")
	pf.String("trace-mode", "", "trace storage mode (stream|ring|both)")
	pf.String("trace-format", "", "trace format (auto|text|ndjson)")
	pf.String("cpu-profile", "", "write a CPU profile to file")
	pf.String("mem-profile", "", "write a heap profile to file on exit")
	pf.String("runtime-trace", "", "write a Go runtime trace to file")

	root.AddCommand(
		newRemapCmd(a),
		newDumpCmd(a),
		newVerifyCmd(a),
		newVersionCmd(),
	)
	return root
}

// setup loads the configuration, applies flag overrides and starts tracing.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	flags := cmd.Root().PersistentFlags()

	cfgPath, err := flags.GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	if cfgPath != "" {
		a.cfg, err = config.LoadFile(cfgPath)
	} else {
		var wd string
		if wd, err = os.Getwd(); err == nil {
			a.cfg, err = config.Load(wd)
		}
	}
	if err != nil {
		return err
	}

	colorMode, err := flags.GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	if err := applyColorMode(colorMode, cmd.OutOrStdout()); err != nil {
		return err
	}

	timings, err := flags.GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}
	if timings {
		a.timer = observ.NewTimer()
	}

	if a.prof, err = setupProfiling(cmd); err != nil {
		return err
	}

	cleanup, err := setupTracing(cmd, a.cfg.Trace)
	if err != nil {
		return err
	}
	a.cleanup = cleanup
	return nil
}

func quiet(cmd *cobra.Command) bool {
	q, err := cmd.Root().PersistentFlags().GetBool("quiet")
	return err == nil && q
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
