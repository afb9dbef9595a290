package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"asremap/internal/ir"
	"asremap/internal/observ"
	"asremap/internal/remap"
	"asremap/internal/snapshot"
	"asremap/internal/trace"
	"asremap/internal/ui"
)

type remapOptions struct {
	output   string
	mode     string
	generic  int64
	report   string
	jobs     int
	noVerify bool
	ui       string
}

// fileReport is one line of the remap report.
type fileReport struct {
	File    string      `json:"file" yaml:"file"`
	Output  string      `json:"output,omitempty" yaml:"output,omitempty"`
	Changed bool        `json:"changed" yaml:"changed"`
	Stats   remap.Stats `json:"stats" yaml:"stats"`
	Error   string      `json:"error,omitempty" yaml:"error,omitempty"`
}

// fileJob is one input with its resolved output path and settings.
type fileJob struct {
	input       string
	output      string
	fn          remap.Func
	checkBefore bool
	checkAfter  bool
	emit        func(ui.Event)
}

func newRemapCmd(a *app) *cobra.Command {
	var opts remapOptions
	cmd := &cobra.Command{
		Use:   "remap IN...",
		Short: "Rewrite the address spaces of one or more module snapshots",
		Long: `Remap loads each snapshot, rewrites every address space through the
configured remap function and writes the result to -o. With several inputs
-o names a directory. Without -o nothing is written and only the report is
printed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runRemap(cmd, args, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output snapshot (directory when several inputs are given)")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "remap mode (all|reserved|table|identity), overrides asremap.toml")
	cmd.Flags().Int64Var(&opts.generic, "generic", 0, "address space that remapped pointers end up in, overrides asremap.toml")
	cmd.Flags().StringVar(&opts.report, "report", "text", "report format (text|yaml|json)")
	cmd.Flags().IntVarP(&opts.jobs, "jobs", "j", runtime.GOMAXPROCS(0), "number of files processed concurrently")
	cmd.Flags().BoolVar(&opts.noVerify, "no-verify", false, "skip structural verification before and after the pass")
	cmd.Flags().StringVar(&opts.ui, "ui", "auto", "show live progress (auto|on|off)")
	return cmd
}

func (a *app) runRemap(cmd *cobra.Command, args []string, opts remapOptions) error {
	format := strings.ToLower(opts.report)
	switch format {
	case "text", "yaml", "json":
	default:
		return fmt.Errorf("unsupported report format %q (must be text, yaml or json)", opts.report)
	}
	if opts.jobs < 1 {
		return fmt.Errorf("--jobs must be at least 1, got %d", opts.jobs)
	}
	mode, err := readUIMode(opts.ui)
	if err != nil {
		return err
	}

	rc := a.cfg.Remap
	if cmd.Flags().Changed("mode") {
		rc.Mode = opts.mode
	}
	if cmd.Flags().Changed("generic") {
		rc.Generic = opts.generic
	}
	fn, err := rc.Func()
	if err != nil {
		return err
	}

	jobs, err := planJobs(args, opts.output)
	if err != nil {
		return err
	}
	for i := range jobs {
		jobs[i].fn = fn
		jobs[i].checkBefore = a.cfg.Verify.Before && !opts.noVerify
		jobs[i].checkAfter = a.cfg.Verify.After && !opts.noVerify
	}

	ctx, span := trace.Start(cmd.Context(), trace.ScopeDriver, "remap")
	reports := make([]fileReport, len(jobs))
	timers := make([]*observ.Timer, len(jobs))
	process := func(emit func(ui.Event)) error {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.jobs)
		for i, job := range jobs {
			job.emit = emit
			g.Go(func() error {
				reports[i], timers[i] = remapFile(gctx, job)
				return nil
			})
		}
		return g.Wait()
	}
	if shouldUseTUI(mode, cmd.OutOrStdout(), len(jobs)) {
		err = runWithProgress(cmd.OutOrStdout(), "remap", args, process)
	} else {
		err = process(func(ui.Event) {})
	}
	if err != nil {
		span.End("failed")
		return err
	}

	failed := 0
	for _, r := range reports {
		if r.Error != "" {
			failed++
		}
	}
	span.End(fmt.Sprintf("%d files, %d failed", len(jobs), failed))

	if a.timer != nil {
		for i, t := range timers {
			mergeTimings(a.timer, filepath.Base(jobs[i].input), t)
		}
	}

	out := cmd.OutOrStdout()
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(reports); err != nil {
			return err
		}
		if err := enc.Close(); err != nil {
			return err
		}
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return err
		}
	default:
		printRemapReport(out, reports, quiet(cmd))
	}
	if a.timer != nil {
		fmt.Fprint(cmd.ErrOrStderr(), a.timer.Summary())
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(jobs))
	}
	return nil
}

// planJobs resolves the output path of every input.
func planJobs(inputs []string, output string) ([]fileJob, error) {
	jobs := make([]fileJob, len(inputs))
	for i, in := range inputs {
		jobs[i].input = in
	}
	switch {
	case output == "":
	case len(inputs) == 1:
		jobs[0].output = output
	default:
		if err := os.MkdirAll(output, 0o755); err != nil {
			return nil, err
		}
		seen := make(map[string]string, len(inputs))
		for i, in := range inputs {
			base := filepath.Base(in)
			if prev, dup := seen[base]; dup {
				return nil, fmt.Errorf("inputs %s and %s would both be written to %s", prev, in, filepath.Join(output, base))
			}
			seen[base] = in
			jobs[i].output = filepath.Join(output, base)
		}
	}
	return jobs, nil
}

// remapFile runs the whole pipeline for one snapshot. Failures are
// reported, not returned, so that the other files still get processed.
func remapFile(ctx context.Context, job fileJob) (fileReport, *observ.Timer) {
	t := observ.NewTimer()
	rep := fileReport{File: job.input, Output: job.output}
	ctx, span := trace.Start(ctx, trace.ScopeDriver, "file "+job.input)

	stage := ui.StageRead
	emit := func(st ui.Stage, status ui.Status) {
		stage = st
		if job.emit != nil {
			job.emit(ui.Event{File: job.input, Stage: st, Status: status})
		}
	}
	fail := func(err error) (fileReport, *observ.Timer) {
		rep.Error = err.Error()
		emit(stage, ui.StatusError)
		span.End("failed")
		return rep, t
	}

	emit(ui.StageRead, ui.StatusWorking)
	idx := t.Begin("read")
	m, err := snapshot.ReadFile(job.input)
	t.End(idx, "")
	if err != nil {
		return fail(err)
	}

	if job.checkBefore {
		emit(ui.StageVerify, ui.StatusWorking)
		idx = t.Begin("verify input")
		err = ir.Verify(m)
		t.End(idx, "")
		if err != nil {
			return fail(fmt.Errorf("input does not verify: %w", err))
		}
	}

	emit(ui.StageRemap, ui.StatusWorking)
	idx = t.Begin("remap")
	res, err := remap.Run(ctx, m, job.fn)
	note := "unchanged"
	if res.Changed {
		note = fmt.Sprintf("%d globals", res.Stats.GlobalsRewritten)
	}
	t.End(idx, note)
	if err != nil {
		return fail(err)
	}
	rep.Changed, rep.Stats = res.Changed, res.Stats

	if job.checkAfter && res.Changed {
		emit(ui.StageVerify, ui.StatusWorking)
		idx = t.Begin("verify output")
		err = ir.Verify(m)
		t.End(idx, "")
		if err != nil {
			return fail(fmt.Errorf("output does not verify: %w", err))
		}
	}

	if job.output != "" {
		emit(ui.StageWrite, ui.StatusWorking)
		idx = t.Begin("write")
		err = snapshot.WriteFile(job.output, m)
		t.End(idx, "")
		if err != nil {
			return fail(err)
		}
	}
	emit(stage, ui.StatusDone)
	span.End(note)
	return rep, t
}

func mergeTimings(dst *observ.Timer, prefix string, src *observ.Timer) {
	if src == nil {
		return
	}
	for _, p := range src.Report().Phases {
		d := time.Duration(p.DurationMS * float64(time.Millisecond))
		dst.Add(prefix+" "+p.Name, d, p.Note)
	}
}

func printRemapReport(out io.Writer, reports []fileReport, quiet bool) {
	for _, r := range reports {
		switch {
		case r.Error != "":
			fmt.Fprintf(out, "%s %s: %s\n", failColor.Sprint("FAIL"), r.File, r.Error)
		case quiet:
		case !r.Changed:
			fmt.Fprintf(out, "%s %s: no address space changes\n", skipColor.Sprint("same"), r.File)
		default:
			s := r.Stats
			fmt.Fprintf(out, "%s %s: %d globals, %d types, %d constant casts folded, %d casts removed, %d intrinsics renamed, %d merged\n",
				okColor.Sprint("ok  "), r.File,
				s.GlobalsRewritten, s.TypesRemapped, s.ConstCastsFolded, s.InstrCastsRemoved,
				s.IntrinsicsRenamed, s.IntrinsicsMerged)
		}
	}
}
