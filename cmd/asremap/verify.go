package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"asremap/internal/ir"
	"asremap/internal/snapshot"
	"asremap/internal/trace"
)

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify IN...",
		Short: "Check the structural invariants of module snapshots",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, span := trace.Start(cmd.Context(), trace.ScopeDriver, "verify")
			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range args {
				var idx int
				if a.timer != nil {
					idx = a.timer.Begin(path)
				}
				err := verifyFile(path)
				if a.timer != nil {
					a.timer.End(idx, "")
				}
				if err != nil {
					failed++
					trace.Point(trace.FromContext(ctx), trace.ScopeDriver, "invalid", path, trace.CurrentSpan(ctx))
					fmt.Fprintf(out, "%s %s\n%v\n", failColor.Sprint("FAIL"), path, err)
					continue
				}
				if !quiet(cmd) {
					fmt.Fprintf(out, "%s %s\n", okColor.Sprint("ok  "), path)
				}
			}
			span.End(fmt.Sprintf("%d failed", failed))
			if a.timer != nil {
				fmt.Fprint(cmd.ErrOrStderr(), a.timer.Summary())
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d snapshots failed verification", failed, len(args))
			}
			return nil
		},
	}
}

func verifyFile(path string) error {
	m, err := snapshot.ReadFile(path)
	if err != nil {
		return err
	}
	return ir.Verify(m)
}
