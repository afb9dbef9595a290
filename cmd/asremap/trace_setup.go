package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"asremap/internal/config"
	"asremap/internal/trace"
)

// setupTracing merges the trace flags over cfg and attaches the resulting
// tracer to the command context. The returned cleanup flushes the tracer and,
// when the command failed, dumps the ring buffer to stderr.
func setupTracing(cmd *cobra.Command, cfg config.TraceConfig) (func(failed bool), error) {
	root := cmd.Root()

	for _, f := range []struct {
		name string
		dst  *string
	}{
		{"trace", &cfg.Output},
		{"trace-level", &cfg.Level},
		{"trace-mode", &cfg.Mode},
		{"trace-format", &cfg.Format},
	} {
		if !root.PersistentFlags().Changed(f.name) {
			continue
		}
		v, err := root.PersistentFlags().GetString(f.name)
		if err != nil {
			return nil, fmt.Errorf("failed to get %s flag: %w", f.name, err)
		}
		*f.dst = v
	}

	level, err := trace.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	// An explicit output without a level means the caller wants to see
	// something.
	if level == trace.LevelOff && root.PersistentFlags().Changed("trace") {
		level = trace.LevelPhase
	}
	if level == trace.LevelOff {
		cmd.SetContext(trace.WithTracer(cmd.Context(), trace.Nop))
		return func(bool) {}, nil
	}

	mode, err := trace.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	format, err := trace.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}

	tracer, err := trace.New(trace.Config{
		Level:      level,
		Mode:       mode,
		Format:     format,
		OutputPath: cfg.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	ctx := trace.WithTracer(cmd.Context(), tracer)
	cmd.SetContext(ctx)
	root.SetContext(ctx)

	cleanup := func(failed bool) {
		if ring, ok := tracer.(*trace.RingTracer); ok && failed {
			fmt.Fprintln(cmd.ErrOrStderr(), "trace: last events before failure")
			if err := ring.Dump(cmd.ErrOrStderr(), trace.FormatText); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "trace: dump error: %v\n", err)
			}
		}
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: close error: %v\n", err)
		}
	}
	return cleanup, nil
}
