package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"mewbot/internal/components"
)

func init() {
	componentsCmd := &cobra.Command{
		Use:   "components",
		Short: "List the implementations available to bot definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "KIND\tIMPLEMENTATION\tDESCRIPTION")
			for _, reg := range components.NewRegistry().Registrations() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", reg.Kind, reg.Name, reg.Description)
			}
			return w.Flush()
		},
	}
	rootCmd.AddCommand(componentsCmd)
}
