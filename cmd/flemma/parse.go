package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flemma-dev/flemma-core/internal/codeblock"
	"github.com/flemma-dev/flemma-core/internal/parser"
)

func buildParseCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse a document and print its diagnostics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read document: %w", err)
			}
			doc := parser.Parse(strings.Split(string(data), "\n"), codeblock.NewDefaultRegistry())

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(doc.Diagnostics)
			}

			fmt.Fprintf(out, "%d message(s), %d diagnostic(s)\n", len(doc.Messages), len(doc.Diagnostics))
			for _, d := range doc.Diagnostics {
				fmt.Fprintf(out, "  [%s] %s: %s\n", d.Severity, d.Type, d.Message)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print diagnostics as JSON")
	return cmd
}
