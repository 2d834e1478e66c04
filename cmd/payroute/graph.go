package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newGraphCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the flow topology as a Mermaid flowchart",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, router, _, err := a.setup()
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(router.Graph().Nodes())
			}

			_, err = fmt.Fprint(cmd.OutOrStdout(), router.Mermaid())
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print node descriptions as JSON")

	return cmd
}
