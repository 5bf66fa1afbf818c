package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"voltray/internal/action"
	"voltray/internal/capture"
	"voltray/internal/singleinstance"
	"voltray/internal/termkeys"
)

func newCaptureCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "capture <mute|up|down>",
		Short: "Record a hotkey by pressing it",
		Long: "Put the terminal in raw mode and record the next key combination as the hotkey.\n" +
			"Esc cancels without changes; Ctrl+C clears the binding.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.ensureApp(cmd)
			if err != nil {
				return err
			}
			target, err := action.Parse(args[0])
			if err != nil {
				return err
			}
			return runCapture(cmd, app, target)
		},
	}
}

func runCapture(cmd *cobra.Command, app *App, target action.Action) error {
	lock, err := singleinstance.TryLock(singleinstance.DefaultName())
	if errors.Is(err, singleinstance.ErrAlreadyRunning) {
		return errors.New("another hotkey capture is already running")
	}
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			slog.Warn("[WARN-CLI] failed to release capture lock", "error", err)
		}
	}()

	in, out := cmd.InOrStdin(), cmd.OutOrStdout()
	ctl, err := app.EnableCapture(newTerminalGrabber(in), &terminalSurface{out: out})
	if err != nil {
		return err
	}
	tx, err := app.Open()
	if err != nil {
		return err
	}
	if err := app.StartCapture(target, tx); err != nil {
		return errors.Join(err, app.Discard(tx))
	}

	loopErr := pumpKeys(cmd.Context(), ctl, in)
	if ctl.Session().State != capture.Committed {
		fmt.Fprintln(out, "Capture cancelled; nothing changed.")
		return errors.Join(loopErr, app.Discard(tx))
	}
	cs, err := app.Commit(tx)
	fmt.Fprintf(out, "%s: %s\n", target.Label(), tx.Accelerator(target))
	reportChanges(cmd, cs, err)
	return errors.Join(loopErr, err)
}

// pumpKeys feeds decoded terminal input to ctl until the session ends. End of
// input or cancellation aborts the capture.
func pumpKeys(ctx context.Context, ctl *capture.Controller, in io.Reader) error {
	done := make(chan struct{})
	defer close(done)
	chunks, readErrs := readChunks(in, done)

	var errs []error
	for ctl.Active() {
		select {
		case <-ctx.Done():
			errs = append(errs, ctl.Abort(), ctx.Err())
		case err := <-readErrs:
			if !errors.Is(err, io.EOF) {
				errs = append(errs, fmt.Errorf("read keys: %w", err))
			}
			errs = append(errs, ctl.Abort())
		case chunk := <-chunks:
			for _, ev := range termkeys.Decode(chunk) {
				if !ctl.Active() {
					break
				}
				if ev.IsEscape() {
					errs = append(errs, ctl.Dismiss())
					continue
				}
				errs = append(errs, ctl.KeyPress(ev.Keycode, ev.State, 0), ctl.KeyRelease())
			}
		}
	}
	return errors.Join(errs...)
}

// readChunks reads in on a goroutine. The goroutine exits at the first read
// error or once done is closed and its pending send is abandoned.
func readChunks(in io.Reader, done <-chan struct{}) (<-chan []byte, <-chan error) {
	chunks := make(chan []byte)
	errs := make(chan error, 1)
	go func() {
		buf := make([]byte, 64)
		for {
			n, err := in.Read(buf)
			if n > 0 {
				select {
				case chunks <- bytes.Clone(buf[:n]):
				case <-done:
					return
				}
			}
			if err != nil {
				errs <- err
				return
			}
		}
	}()
	return chunks, errs
}
