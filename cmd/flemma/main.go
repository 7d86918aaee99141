// Package main provides the flemma CLI, a small dev harness that
// exercises the parse → process → prompt pipeline without an editor
// host attached.
//
// Mirrors cmd/nexus/main.go's subcommand structure: a root cobra.Command
// with build-time version info and SilenceUsage, each subcommand built
// by its own buildXCmd function.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "flemma",
		Short:        "Flemma document pipeline dev harness",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	root.AddCommand(buildParseCmd(), buildPromptCmd(), buildDoctorCmd())
	return root
}
