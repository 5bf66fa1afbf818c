// Package capture records a key combination for one hotkey target while
// holding an exclusive keyboard grab.
//
// Step is a pure transition function over (Session, Event) that returns the
// side effects to perform; Controller performs them and guarantees the grab
// is released on every exit path.
package capture

import (
	"errors"
	"fmt"

	"voltray/internal/accel"
	"voltray/internal/action"
)

var (
	// ErrInvalidTarget rejects a capture for anything other than the three
	// hotkey targets. It is raised before any grab is attempted.
	ErrInvalidTarget = action.ErrUnknown
	// ErrGrabUnavailable reports that exclusive keyboard ownership was denied.
	ErrGrabUnavailable = errors.New("could not grab the keyboard")
	// ErrCaptureBusy rejects a second capture while one is in progress.
	ErrCaptureBusy = errors.New("a hotkey capture is already in progress")
	// ErrUnexpectedEvent reports an event that is not valid in the current state.
	ErrUnexpectedEvent = errors.New("unexpected capture event")
)

// State is the lifecycle position of a capture session.
type State int

const (
	Idle State = iota
	Grabbing
	Listening
	Committed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Grabbing:
		return "grabbing"
	case Listening:
		return "listening"
	case Committed:
		return "committed"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Session is the state of one capture. The zero value is Idle.
type Session struct {
	ID        string
	Target    action.Action
	State     State
	Candidate string // canonical accelerator text of the last key press
	Pressed   bool   // at least one key press observed
	GrabHeld  bool
}

// Active reports whether the session still owns (or is acquiring) the grab.
func (s Session) Active() bool {
	return s.State == Grabbing || s.State == Listening
}

// Event drives a transition.
type Event interface {
	event()
}

// Begin requests a capture for Target.
type Begin struct {
	ID     string
	Target action.Action
}

// GrabResult reports the outcome of the Grab effect. A nil Err means the
// grab is held.
type GrabResult struct {
	Err error
}

// KeyPressed carries the canonical text of a key-down event.
type KeyPressed struct {
	Text string
}

// KeyReleased is any key-up event.
type KeyReleased struct{}

// Dismissed means the capture surface was closed externally.
type Dismissed struct{}

// Abort cancels the session from the owning side (shutdown, error).
type Abort struct{}

func (Begin) event()       {}
func (GrabResult) event()  {}
func (KeyPressed) event()  {}
func (KeyReleased) event() {}
func (Dismissed) event()   {}
func (Abort) event()       {}

// EffectKind names a side effect the caller must perform.
type EffectKind int

const (
	EffectGrab EffectKind = iota
	EffectUngrab
	EffectPresent
	EffectPreview
	EffectStage
	EffectDismiss
	EffectReport
)

func (k EffectKind) String() string {
	switch k {
	case EffectGrab:
		return "grab"
	case EffectUngrab:
		return "ungrab"
	case EffectPresent:
		return "present"
	case EffectPreview:
		return "preview"
	case EffectStage:
		return "stage"
	case EffectDismiss:
		return "dismiss"
	case EffectReport:
		return "report"
	default:
		return fmt.Sprintf("EffectKind(%d)", int(k))
	}
}

// Effect is one side effect. Target and Text are set for Present, Preview
// and Stage; Err is set for Report.
type Effect struct {
	Kind   EffectKind
	Target action.Action
	Text   string
	Err    error
}

// Step computes the next session and the effects to perform, in order. On
// error the returned session equals s unless the error itself is a
// transition (a failed grab returns to Idle with a Report effect).
func Step(s Session, ev Event) (Session, []Effect, error) {
	switch ev := ev.(type) {
	case Begin:
		if s.Active() {
			return s, nil, ErrCaptureBusy
		}
		if !ev.Target.Valid() {
			return s, nil, fmt.Errorf("%w: %v", ErrInvalidTarget, ev.Target)
		}
		next := Session{ID: ev.ID, Target: ev.Target, State: Grabbing}
		return next, []Effect{{Kind: EffectGrab, Target: ev.Target}}, nil

	case GrabResult:
		if s.State != Grabbing {
			return s, nil, unexpected(s, ev)
		}
		if ev.Err != nil {
			err := fmt.Errorf("%w: %w", ErrGrabUnavailable, ev.Err)
			return Session{}, []Effect{{Kind: EffectReport, Target: s.Target, Err: err}}, err
		}
		next := s
		next.State = Listening
		next.GrabHeld = true
		return next, []Effect{{Kind: EffectPresent, Target: s.Target}}, nil

	case KeyPressed:
		if s.State != Listening {
			return s, nil, unexpected(s, ev)
		}
		text := ev.Text
		if accel.IsAbortCombination(text) {
			text = accel.None
		}
		next := s
		next.Candidate = text
		next.Pressed = true
		return next, []Effect{{Kind: EffectPreview, Target: s.Target, Text: text}}, nil

	case KeyReleased:
		if s.State != Listening {
			return s, nil, unexpected(s, ev)
		}
		if !s.Pressed {
			// Release of a key held down before the grab started.
			return s, nil, nil
		}
		next := s
		next.State = Committed
		next.GrabHeld = false
		return next, []Effect{
			{Kind: EffectUngrab},
			{Kind: EffectStage, Target: s.Target, Text: s.Candidate},
			{Kind: EffectDismiss},
		}, nil

	case Dismissed:
		if !s.Active() {
			return s, nil, unexpected(s, ev)
		}
		return cancel(s), releaseEffects(s, false), nil

	case Abort:
		if !s.Active() {
			return s, nil, unexpected(s, ev)
		}
		return cancel(s), releaseEffects(s, true), nil
	}
	return s, nil, fmt.Errorf("%w: %T", ErrUnexpectedEvent, ev)
}

func cancel(s Session) Session {
	next := s
	next.State = Cancelled
	next.GrabHeld = false
	next.Candidate = ""
	return next
}

// releaseEffects undoes whatever s acquired. A dismissed surface is already
// gone, so only an abort dismisses it.
func releaseEffects(s Session, dismiss bool) []Effect {
	var out []Effect
	if s.GrabHeld {
		out = append(out, Effect{Kind: EffectUngrab})
	}
	if dismiss && s.State == Listening {
		out = append(out, Effect{Kind: EffectDismiss})
	}
	return out
}

func unexpected(s Session, ev Event) error {
	return fmt.Errorf("%w: %T in state %s", ErrUnexpectedEvent, ev, s.State)
}
