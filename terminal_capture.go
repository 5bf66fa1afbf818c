package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"voltray/internal/action"
	"voltray/internal/capture"
)

// errNotTerminal is returned by Grab when stdin cannot be put in raw mode.
var errNotTerminal = errors.New("stdin is not a terminal")

// terminalGrabber takes exclusive ownership of the keyboard by switching the
// controlling terminal to raw mode. Ctrl+C then arrives as a key press
// instead of a signal.
type terminalGrabber struct {
	fd    int
	state *term.State
}

func (g *terminalGrabber) Grab() error {
	if g.fd < 0 || !term.IsTerminal(g.fd) {
		return errNotTerminal
	}
	state, err := term.MakeRaw(g.fd)
	if err != nil {
		return fmt.Errorf("enter raw mode: %w", err)
	}
	g.state = state
	return nil
}

func (g *terminalGrabber) Ungrab() error {
	if g.state == nil {
		return nil
	}
	state := g.state
	g.state = nil
	return term.Restore(g.fd, state)
}

// newTerminalGrabber is a test seam.
var newTerminalGrabber = func(in io.Reader) capture.Grabber {
	f, ok := in.(*os.File)
	if !ok {
		return &terminalGrabber{fd: -1}
	}
	return &terminalGrabber{fd: int(f.Fd())}
}

// terminalSurface is the capture prompt. Lines end in \r\n because output
// post-processing is off in raw mode.
type terminalSurface struct {
	out io.Writer
}

func (s *terminalSurface) Present(target action.Action) {
	fmt.Fprintf(s.out, "Press the new shortcut for %s (Esc cancels, Ctrl+C clears the binding)\r\n", target.Label())
}

func (s *terminalSurface) Preview(text string) {
	fmt.Fprintf(s.out, "  %s\r\n", text)
}

func (s *terminalSurface) Dismiss() {
	fmt.Fprint(s.out, "\r\n")
}
