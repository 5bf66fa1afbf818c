package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"

	"voltray/internal/action"
	"voltray/internal/config"
	"voltray/internal/hotkeys"
	"voltray/internal/workerutil"
	"voltray/internal/wsserver"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Apply config file edits as they happen",
		Long: "Watch the config file, reload it on every change and apply what changed.\n" +
			"With --listen, every applied change is also pushed to WebSocket clients at ws://<addr>/ws.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.ensureApp(cmd)
			if err != nil {
				return err
			}
			return runWatch(cmd, app, listen)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Serve a change feed on this loopback address (e.g. 127.0.0.1:7823)")
	return cmd
}

func runWatch(cmd *cobra.Command, app *App, listen string) (err error) {
	runCtx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	out := cmd.OutOrStdout()

	manager := hotkeys.NewManager(nil, func(a action.Action, step int) {
		slog.Info("[INFO-HOTKEY] hotkey fired", "action", a, "step", step)
	})
	if armErr := app.ArmHotkeys(manager); armErr != nil {
		slog.Warn("[WARN-CLI] some hotkeys could not be armed", "error", armErr)
	}
	defer func() {
		err = errors.Join(err, app.Shutdown())
	}()

	if listen != "" {
		hub := wsserver.NewHub(wsserver.HubOptions{Addr: listen})
		if startErr := hub.Start(runCtx); startErr != nil {
			return startErr
		}
		app.SetFeed(hub)
		defer func() {
			app.SetFeed(nil)
			if stopErr := hub.Stop(); stopErr != nil {
				slog.Warn("[WARN-CLI] change feed shutdown failed", "error", stopErr)
			}
		}()
		fmt.Fprintf(out, "Change feed at %s\n", hub.URL())
	}

	path := app.Store().Path()
	if mkErr := os.MkdirAll(filepath.Dir(path), 0o700); mkErr != nil {
		return fmt.Errorf("create config directory: %w", mkErr)
	}

	// One pending reload is enough: Reload always reads the latest file.
	changes := make(chan struct{}, 1)
	var wg sync.WaitGroup
	workerutil.RunWithPanicRecovery(runCtx, "config-reload", &wg, func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				return
			case <-changes:
				cs, reloadErr := app.Reload()
				if reloadErr != nil {
					slog.Warn("[WARN-CLI] reload finished with errors", "error", reloadErr)
				}
				if !cs.Empty() {
					fmt.Fprintf(out, "Reloaded. Applied: %s\n", cs.String())
				}
			}
		}
	}, workerutil.RecoveryOptions{
		OnFatal: func(worker string, maxRetries int) {
			cancel()
		},
	})

	fmt.Fprintf(out, "Watching %s\n", path)
	watchErr := config.Watch(runCtx, path, func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	})
	cancel()
	wg.Wait()
	return watchErr
}
