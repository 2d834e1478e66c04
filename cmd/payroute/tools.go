package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newToolsCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools offered by the configured MCP servers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, router, _, err := a.setup()
			if err != nil {
				return err
			}

			descs, err := router.Tools(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				enc.SetEscapeHTML(false)
				return enc.Encode(descs)
			}

			if len(descs) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "(no tools)")
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPROVIDER\tPARAMETERS\tDESCRIPTION")
			for _, d := range descs {
				params := make([]string, 0, len(d.InputSchema.Properties))
				for name, p := range d.InputSchema.Properties {
					params = append(params, name+":"+string(p.Kind))
				}
				sort.Strings(params)
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.Name, d.Provider, strings.Join(params, ","), d.Description)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print descriptors as JSON")

	return cmd
}
