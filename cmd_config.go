package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"voltray/internal/accel"
	"voltray/internal/action"
	"voltray/internal/config"
	"voltray/internal/prefs"
)

func newPathCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "path",
		Short:       "Print the configuration file path",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ctx.configPath()
			if path == "" {
				path = config.DefaultPath()
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show every effective setting, hotkey and device channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.ensureApp(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			store := app.Store()

			settings := newSettingsTable(out, "Settings", "Key", "Kind", "Value", "Source")
			for _, spec := range config.Schema {
				v, stored := store.Lookup(config.GlobalSection, spec.Key)
				if !stored || v.Kind() != spec.Kind {
					settings.fallback(spec.Key, spec.Kind, spec.Default, "default")
					continue
				}
				settings.add(spec.Key, spec.Kind, v, "file")
			}
			settings.writeTo(out)

			hk := store.Settings().Hotkeys
			hotkeys := newSettingsTable(out, "Hotkeys", "Action", "Accelerator", "Keycode", "Mods").alignNumeric(2, 3)
			for _, a := range action.All {
				b := hk.Bindings[a]
				hotkeys.add(a.Label(), app.Codec().HardwareToCanonical(b.Keycode, accel.Modifier(b.Mods)), b.Keycode, b.Mods)
			}
			hotkeys.writeTo(out)

			devices := newSettingsTable(out, "Device channels", "Device", "Channel")
			for _, d := range store.Devices() {
				devices.add(d, store.Channel(d))
			}
			if !devices.empty() {
				devices.writeTo(out)
			}
			return nil
		},
	}
}

func newGetCommand(ctx *commandContext) *cobra.Command {
	var device string
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print the effective value of one setting",
		Long:  "Print the effective value of a global setting, or with --device the channel stored for that device (key Channel).",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.ensureApp(cmd)
			if err != nil {
				return err
			}
			key := strings.TrimSpace(args[0])
			out := cmd.OutOrStdout()
			if device != "" || key == config.ChannelKey {
				if device == "" {
					device = app.Store().Settings().Device
				}
				if key != config.ChannelKey {
					return fmt.Errorf("device sections only hold %s", config.ChannelKey)
				}
				fmt.Fprintln(out, app.Store().Channel(device))
				return nil
			}
			spec, ok := config.LookupSpec(key)
			if !ok {
				return fmt.Errorf("unknown setting %q", key)
			}
			v, stored := app.Store().Lookup(config.GlobalSection, key)
			if !stored || v.Kind() != spec.Kind {
				v = spec.Default
			}
			fmt.Fprintln(out, v.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&device, "device", "", "Device section to read")
	return cmd
}

func newSetCommand(ctx *commandContext) *cobra.Command {
	var device string
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting and apply it",
		Long: "Change a global setting, or with --device the channel of that device (key Channel).\n" +
			"VolMeterColor takes three components in [0,1] separated by ';' or ','.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.ensureApp(cmd)
			if err != nil {
				return err
			}
			key, raw := strings.TrimSpace(args[0]), args[1]
			return withTransaction(cmd, app, func(tx *prefs.Transaction) error {
				return stageSetting(tx, app, key, raw, device)
			})
		},
	}
	cmd.Flags().StringVar(&device, "device", "", "Device section to write")
	return cmd
}

func stageSetting(tx *prefs.Transaction, app *App, key, raw, device string) error {
	if device != "" || key == config.ChannelKey {
		if key != config.ChannelKey {
			return fmt.Errorf("device sections only hold %s", config.ChannelKey)
		}
		if device == "" {
			device = app.Store().Settings().Device
		}
		return tx.StageChannel(device, raw)
	}
	spec, ok := config.LookupSpec(key)
	if !ok {
		return fmt.Errorf("unknown setting %q", key)
	}
	v, err := config.ParseValue(spec.Kind, raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if key == config.KeyVolMeterColor {
		list, _ := config.As[[]float64](v)
		if len(list) != 3 {
			return fmt.Errorf("%s needs 3 components, got %d", key, len(list))
		}
		return tx.StageMeterColor([3]float64(list))
	}
	for _, a := range action.All {
		if key == a.KeycodeKey() || key == a.ModsKey() {
			return fmt.Errorf("%s is written through hotkey bindings; use `voltray bind %s <accelerator>`", key, a)
		}
	}
	return tx.Stage(config.GlobalSection, key, v)
}

func newBindCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "bind <mute|up|down> [accelerator]",
		Short: "Set or clear a global volume hotkey",
		Long:  "Bind a hotkey to an accelerator such as <Control><Alt>m. Omitting the accelerator clears the binding.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.ensureApp(cmd)
			if err != nil {
				return err
			}
			target, err := action.Parse(args[0])
			if err != nil {
				return err
			}
			text := accel.None
			if len(args) == 2 {
				a, err := accel.Decode(args[1])
				if err != nil {
					return err
				}
				if _, _, err := app.Codec().CanonicalToHardware(a.String()); err != nil {
					return err
				}
				text = a.String()
			}
			return withTransaction(cmd, app, func(tx *prefs.Transaction) error {
				return tx.StageAccelerator(target, text)
			})
		},
	}
}

func newResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Replace every setting with the built-in defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.ensureApp(cmd)
			if err != nil {
				return err
			}
			cs, err := app.Reset()
			reportChanges(cmd, cs, err)
			return err
		},
	}
}

// withTransaction stages edits through fn and commits them, discarding the
// transaction when staging fails.
func withTransaction(cmd *cobra.Command, app *App, fn func(tx *prefs.Transaction) error) error {
	tx, err := app.Open()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return errors.Join(err, app.Discard(tx))
	}
	cs, err := app.Commit(tx)
	reportChanges(cmd, cs, err)
	return err
}

// reportChanges tells the user what was applied and whether it reached the
// config file.
func reportChanges(cmd *cobra.Command, cs prefs.ChangeSet, err error) {
	out := cmd.OutOrStdout()
	var saveErr *config.SaveError
	unsaved := errors.As(err, &saveErr)
	switch {
	case cs.Empty() && unsaved:
		fmt.Fprintln(out, "Not saved.")
	case cs.Empty():
		fmt.Fprintln(out, "No changes.")
	case unsaved:
		fmt.Fprintf(out, "Applied (not saved): %s\n", cs.String())
	default:
		fmt.Fprintf(out, "Saved. Applied: %s\n", cs.String())
	}
}
