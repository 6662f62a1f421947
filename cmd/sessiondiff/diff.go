package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/godsownf/sessiondiff/pkg/capture"
)

func newDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <requests-a.json> <requests-b.json>",
		Short: "Diff two captured request sets by content fingerprint",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := capture.LoadRequests(args[0])
			if err != nil {
				return err
			}
			b, err := capture.LoadRequests(args[1])
			if err != nil {
				return err
			}

			result := capture.Diff(a, b)
			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding diff result: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			fmt.Fprintf(cmd.ErrOrStderr(), "added: %d, removed: %d\n",
				len(result.Added), len(result.Removed))
			return nil
		},
	}
}
