package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"asremap/internal/ir"
	"asremap/internal/snapshot"
	"asremap/internal/trace"
)

func newDumpCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dump IN",
		Short: "Print a module snapshot as text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, span := trace.Start(cmd.Context(), trace.ScopeDriver, "dump "+args[0])
			defer span.End("")

			var idx int
			if a.timer != nil {
				idx = a.timer.Begin("read")
			}
			m, err := snapshot.ReadFile(args[0])
			if a.timer != nil {
				a.timer.End(idx, "")
			}
			if err != nil {
				return err
			}
			if err := ir.Dump(cmd.OutOrStdout(), m); err != nil {
				return fmt.Errorf("dump %s: %w", args[0], err)
			}
			if a.timer != nil {
				fmt.Fprint(cmd.ErrOrStderr(), a.timer.Summary())
			}
			return nil
		},
	}
}
