package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newRunCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "run <utterance>",
		Short: "Run one utterance through the flow",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := strings.TrimSpace(strings.Join(args, " "))
			if input == "" {
				return errors.New("utterance is empty")
			}

			_, router, _, err := a.setup()
			if err != nil {
				return err
			}

			res, err := router.RunSync(cmd.Context(), input)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				enc.SetEscapeHTML(false)
				return enc.Encode(res)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), res.Output())
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full run result as JSON")

	return cmd
}
