package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"voltray/internal/config"
)

func newResolveCommandCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve-command",
		Short: "Print the mixer command the tray would open",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.ensureApp(cmd)
			if err != nil {
				return err
			}
			cmdline, ok := config.ResolveVolumeCommand(app.Store())
			if !ok {
				return ErrNoVolumeCommand
			}
			fmt.Fprintln(cmd.OutOrStdout(), cmdline)
			return nil
		},
	}
}

func newLaunchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:       "launch <mixer|custom>",
		Short:     "Start the mixer program or the custom middle-click command",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"mixer", "custom"},
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.ensureApp(cmd)
			if err != nil {
				return err
			}
			var pid int
			if args[0] == "mixer" {
				pid, err = app.LaunchVolumeCommand()
			} else {
				pid, err = app.RunCustomCommand()
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Started %s (pid %d)\n", args[0], pid)
			return nil
		},
	}
}
