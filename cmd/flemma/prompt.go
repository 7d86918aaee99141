package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flemma-dev/flemma-core/internal/autopilot"
	"github.com/flemma-dev/flemma-core/internal/config"
	"github.com/flemma-dev/flemma-core/internal/evaluator"
	"github.com/flemma-dev/flemma-core/internal/runtime"
)

func buildPromptCmd() *cobra.Command {
	var trace bool
	var sessionStorePath string

	cmd := &cobra.Command{
		Use:   "prompt <file>",
		Short: "Compile a document into the provider-facing prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read document: %w", err)
			}

			provider := newTracerProvider()
			cfg, err := config.Parse("")
			if err != nil {
				return fmt.Errorf("load default config: %w", err)
			}
			rt, err := runtime.New(cfg, autopilot.Hooks{}, runtime.Options{
				Tracer:           tracerFromProvider(provider, trace),
				SessionStorePath: sessionStorePath,
			})
			if err != nil {
				return fmt.Errorf("initialize runtime: %w", err)
			}
			defer rt.Close()

			doc := rt.ParseCached(args[0], strings.Split(string(data), "\n"))
			result, _ := rt.RunPipeline(args[0], doc, evaluator.NewContext(args[0]), nil)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	cmd.Flags().BoolVar(&trace, "trace", false, "construct a TracerProvider and emit parser.parse spans")
	cmd.Flags().StringVar(&sessionStorePath, "session-store", "", "persist the request ledger to a SQLite file instead of memory")
	return cmd
}
