package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mewbot/internal/config"
	"mewbot/internal/deps"
	"mewbot/internal/telemetry"
)

func init() {
	installDepsCmd := &cobra.Command{
		Use:   "install-deps [dir]",
		Short: "Install Python requirement files found under dir",
		Long: `Install every requirements-*.txt in dir and every requirements.txt below
it with the configured installer (deps.installer, default "python3 -m pip").
Exits 0 on success and 1 otherwise.`,
		Args: cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			installer := deps.Installer{
				Command: config.Installer(),
				Stdout:  cmd.OutOrStdout(),
				Stderr:  cmd.ErrOrStderr(),
				Logger:  telemetry.Component("deps"),
			}
			ok, err := installer.Install(cmd.Context(), root)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			}
			if !ok {
				exit(1)
				return
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Dependencies installed")
		},
	}
	rootCmd.AddCommand(installDepsCmd)
}
