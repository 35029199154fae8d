package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"mewbot/internal/components"
	"mewbot/internal/loader"
	"mewbot/internal/store"
	"mewbot/internal/telemetry"
)

func init() {
	validateCmd := &cobra.Command{
		Use:   "validate <bot.yaml>...",
		Short: "Check bot definitions without connecting to any service",
		Long: `Load bot definitions exactly as 'run' would, against a throwaway in-memory
store, and report wiring problems such as events nothing consumes.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.NewSQLiteStore(":memory:")
			if err != nil {
				return err
			}
			defer st.Close()

			b, err := loader.LoadFiles(components.NewRegistry(), loader.Options{
				Name: viper.GetString("bot.name"),
				Deps: loader.Dependencies{Store: st, Logger: telemetry.Component("validate")},
			}, args...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, w := range b.Validate() {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			fmt.Fprintf(out, "%s: %d io configs, %d inputs, %d outputs, %d behaviours\n",
				b.Name(), len(b.IOConfigs()), len(b.Inputs()), len(b.Outputs()), len(b.Behaviours()))
			return nil
		},
	}
	rootCmd.AddCommand(validateCmd)
}
