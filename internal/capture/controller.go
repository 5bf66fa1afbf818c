package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"voltray/internal/accel"
	"voltray/internal/action"
)

// Grabber acquires and releases exclusive keyboard ownership.
type Grabber interface {
	Grab() error
	Ungrab() error
}

// Surface is the modal capture dialog.
type Surface interface {
	Present(target action.Action)
	Preview(text string)
	Dismiss()
}

// Stager receives the recorded accelerator text when a capture commits.
type Stager interface {
	StageAccelerator(target action.Action, text string) error
}

// Translator turns a raw key-down event into canonical accelerator text.
// *accel.Codec implements it.
type Translator interface {
	RawToCanonical(keycode int, state accel.Modifier, group int) (string, error)
}

// Controller owns at most one capture session and executes the effects Step
// returns. Grabber and Surface must not call back into the Controller
// synchronously.
type Controller struct {
	mu         sync.Mutex
	grabber    Grabber
	surface    Surface
	translator Translator

	session  Session
	stager   Stager
	grabHeld bool
}

// NewController creates a Controller. A nil surface is allowed.
func NewController(grabber Grabber, surface Surface, translator Translator) *Controller {
	return &Controller{grabber: grabber, surface: surface, translator: translator}
}

// Session returns a snapshot of the current session.
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Active reports whether a capture is in progress.
func (c *Controller) Active() bool {
	return c.Session().Active()
}

// Activate handles a pointer activation on a hotkey field named name. Only a
// primary-button double click starts a capture; it reports whether one did.
func (c *Controller) Activate(name string, button, clicks int, stager Stager) (bool, error) {
	if button != 1 || clicks != 2 {
		return false, nil
	}
	target, err := action.Parse(name)
	if err != nil {
		return false, fmt.Errorf("%w: %q", ErrInvalidTarget, name)
	}
	if err := c.Start(target, stager); err != nil {
		return false, err
	}
	return true, nil
}

// Start grabs the keyboard and presents the capture surface for target. A
// failed grab leaves the controller idle and returns ErrGrabUnavailable.
func (c *Controller) Start(target action.Action, stager Stager) error {
	if stager == nil {
		return errors.New("capture: stager is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.releaseOnPanic()

	if c.session.Active() {
		slog.Debug("[DEBUG-CAPTURE] rejecting capture while another is active",
			"active", c.session.ID, "target", c.session.Target, "requested", target)
		return ErrCaptureBusy
	}
	c.stager = stager
	return c.handle(Begin{ID: uuid.NewString(), Target: target})
}

// KeyPress records a key-down event as the current candidate. Translation
// failures are logged and the previous candidate is kept.
func (c *Controller) KeyPress(keycode int, state accel.Modifier, group int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.releaseOnPanic()

	if c.session.State != Listening {
		return unexpected(c.session, KeyPressed{})
	}
	text, err := c.translator.RawToCanonical(keycode, state, group)
	if err != nil {
		slog.Warn("[WARN-CAPTURE] ignoring untranslatable key", "keycode", keycode, "state", state, "error", err)
		return nil
	}
	return c.handle(KeyPressed{Text: text})
}

// KeyRelease commits the candidate after at least one key press. The grab is
// released before the candidate is staged, so a staging failure still frees
// the keyboard.
func (c *Controller) KeyRelease() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.releaseOnPanic()
	return c.handle(KeyReleased{})
}

// Dismiss cancels the capture after the surface was closed externally.
func (c *Controller) Dismiss() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.releaseOnPanic()
	return c.handle(Dismissed{})
}

// Abort cancels any capture in progress. It is a no-op when idle.
func (c *Controller) Abort() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.releaseOnPanic()
	if !c.session.Active() {
		return nil
	}
	return c.handle(Abort{})
}

// handle applies ev and runs the resulting effects. Caller holds c.mu.
func (c *Controller) handle(ev Event) error {
	next, effects, stepErr := Step(c.session, ev)
	c.session = next
	runErr := c.run(effects)
	if !c.session.Active() {
		// Safety net: a finished session never holds the grab.
		runErr = errors.Join(runErr, c.release())
		c.stager = nil
	}
	return errors.Join(stepErr, runErr)
}

func (c *Controller) run(effects []Effect) error {
	var errs []error
	for _, eff := range effects {
		switch eff.Kind {
		case EffectGrab:
			grabErr := c.grabber.Grab()
			if grabErr == nil {
				c.grabHeld = true
			}
			errs = append(errs, c.handle(GrabResult{Err: grabErr}))
		case EffectUngrab:
			errs = append(errs, c.release())
		case EffectPresent:
			if c.surface != nil {
				c.surface.Present(eff.Target)
			}
		case EffectPreview:
			if c.surface != nil {
				c.surface.Preview(eff.Text)
			}
		case EffectStage:
			if c.stager == nil {
				errs = append(errs, errors.New("capture: no stager for committed session"))
				continue
			}
			if err := c.stager.StageAccelerator(eff.Target, eff.Text); err != nil {
				errs = append(errs, fmt.Errorf("stage %s binding: %w", eff.Target, err))
				continue
			}
			slog.Debug("[DEBUG-CAPTURE] staged binding", "session", c.session.ID, "target", eff.Target, "accelerator", eff.Text)
		case EffectDismiss:
			if c.surface != nil {
				c.surface.Dismiss()
			}
		case EffectReport:
			slog.Warn("[WARN-CAPTURE] capture aborted", "target", eff.Target, "error", eff.Err)
		}
	}
	return errors.Join(errs...)
}

// release drops the grab if this controller holds it. It runs at most once
// per acquired grab.
func (c *Controller) release() error {
	if !c.grabHeld {
		return nil
	}
	c.grabHeld = false
	if err := c.grabber.Ungrab(); err != nil {
		slog.Warn("[WARN-CAPTURE] failed to release keyboard grab", "error", err)
		return fmt.Errorf("release keyboard grab: %w", err)
	}
	return nil
}

// releaseOnPanic frees the grab and resets the session before re-panicking.
// Caller holds c.mu.
func (c *Controller) releaseOnPanic() {
	r := recover()
	if r == nil {
		return
	}
	slog.Error("[ERROR-CAPTURE] panic during capture, releasing keyboard grab",
		"session", c.session.ID, "state", c.session.State, "panic", r)
	if err := c.release(); err != nil {
		slog.Error("[ERROR-CAPTURE] grab release after panic failed", "error", err)
	}
	c.session = cancel(c.session)
	c.stager = nil
	panic(r)
}
