package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tokamak-network/ai-tokamak/internal/buildinfo"
)

func newVersionCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(buildinfo.Info())
			}
			_, err := fmt.Fprintln(w, buildinfo.String())
			return err
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print build information as JSON")
	return cmd
}
