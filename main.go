// Command voltray manages the preferences of the voltray volume tray: the
// persisted settings file, the global volume hotkeys, and the helper programs
// the tray launches.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"voltray/internal/sessionlog"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one CLI invocation and returns the process exit code. Warnings
// logged along the way are printed as a summary after the command finishes.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	previous := slog.Default()
	defer slog.SetDefault(previous)

	notices := sessionlog.NewCollector(0)
	cmd := newRootCommand(notices)
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if collected, dropped := notices.Drain(); len(collected) > 0 {
		fmt.Fprint(stderr, sessionlog.Summary(collected, dropped))
	}
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(stderr, err)
		}
		return 1
	}
	return 0
}
