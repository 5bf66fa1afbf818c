package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"voltray/internal/config"
	"voltray/internal/sessionlog"
	"voltray/internal/termkeys"
)

func newRootCommand(notices *sessionlog.Collector) *cobra.Command {
	var configFlag string
	var logLevelFlag string

	ctx := newCommandContext(&configFlag, notices)

	rootCmd := &cobra.Command{
		Use:           "voltray",
		Short:         "Voltray preferences and hotkey tool",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.setupLogging(cmd, logLevelFlag); err != nil {
				return err
			}
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				slog.Warn("[WARN-CLI] could not read .env file", "error", err)
			}
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureApp(cmd)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "error", "Log level written to stderr (debug, info, warn, error)")

	rootCmd.AddCommand(newPathCommand(ctx))
	rootCmd.AddCommand(newShowCommand(ctx))
	rootCmd.AddCommand(newGetCommand(ctx))
	rootCmd.AddCommand(newSetCommand(ctx))
	rootCmd.AddCommand(newBindCommand(ctx))
	rootCmd.AddCommand(newResetCommand(ctx))
	rootCmd.AddCommand(newCaptureCommand(ctx))
	rootCmd.AddCommand(newWatchCommand(ctx))
	rootCmd.AddCommand(newResolveCommandCommand(ctx))
	rootCmd.AddCommand(newLaunchCommand(ctx))

	return rootCmd
}

type commandContext struct {
	configFlag *string
	notices    *sessionlog.Collector

	appOnce sync.Once
	app     *App
	appErr  error
}

func newCommandContext(configFlag *string, notices *sessionlog.Collector) *commandContext {
	return &commandContext{configFlag: configFlag, notices: notices}
}

// setupLogging writes records at level and above to stderr and collects
// every warning for the end-of-run summary.
func (c *commandContext) setupLogging(cmd *cobra.Command, level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	base := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: lvl})
	var notify sessionlog.NoticeFunc
	if c.notices != nil {
		notify = c.notices.Add
	}
	slog.SetDefault(slog.New(sessionlog.NewTeeHandler(base, slog.LevelWarn, notify)))
	return nil
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

// ensureApp loads the config once per invocation. An unreadable file is not
// fatal: it has already been logged and every read falls back to defaults.
func (c *commandContext) ensureApp(cmd *cobra.Command) (*App, error) {
	c.appOnce.Do(func() {
		app := NewApp(c.configPath(), termkeys.NewKeymap(), cmd.OutOrStdout())
		for _, warning := range config.ConsumeDefaultPathWarnings() {
			slog.Warn("[WARN-CLI] " + warning)
		}
		var loadErr *config.LoadError
		if err := app.Load(); err != nil && !errors.As(err, &loadErr) {
			c.appErr = err
			return
		}
		c.app = app
	})
	return c.app, c.appErr
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
