package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flemma-dev/flemma-core/internal/config"
)

func buildDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor <config.yaml>",
		Short: "Load and validate a configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return fmt.Errorf("config invalid: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "config OK")
			fmt.Fprintf(out, "  autopilot.enabled=%v autopilot.max_turns=%d\n", cfg.Autopilot.Enabled, cfg.Autopilot.MaxTurns)
			fmt.Fprintf(out, "  approval.skill_allowlist=%v approval.require_approval=%v\n", cfg.Approval.SkillAllowlist, cfg.Approval.RequireApproval)
			fmt.Fprintf(out, "  sink.flush_interval=%s\n", cfg.Sink.FlushInterval)
			fmt.Fprintf(out, "  logging.level=%s logging.format=%s\n", cfg.Logging.Level, cfg.Logging.Format)
			return nil
		},
	}
	return cmd
}
