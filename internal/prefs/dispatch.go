package prefs

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// Handler reacts to a committed change in one domain. It receives the whole
// ChangeSet so handlers can skip work another domain already covers.
type Handler func(cs ChangeSet) error

// Dispatcher forwards a ChangeSet to the collaborators registered per domain.
type Dispatcher struct {
	mu       sync.Mutex
	handlers map[Domain][]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: map[Domain][]Handler{}}
}

// Register adds h for domain d. Handlers of one domain run in registration
// order.
func (d *Dispatcher) Register(domain Domain, h Handler) {
	if h == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[domain] = append(d.handlers[domain], h)
}

// Dispatch runs the handlers of every domain in cs, in dispatch order. A
// failing or panicking handler does not stop the others; all errors are
// joined.
func (d *Dispatcher) Dispatch(cs ChangeSet) error {
	d.mu.Lock()
	snapshot := make(map[Domain][]Handler, len(d.handlers))
	for k, v := range d.handlers {
		snapshot[k] = append([]Handler(nil), v...)
	}
	d.mu.Unlock()

	var errs []error
	for _, domain := range cs.Domains() {
		for _, h := range snapshot[domain] {
			if err := runHandler(domain, h, cs); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", domain, err))
			}
		}
	}
	return errors.Join(errs...)
}

func runHandler(domain Domain, h Handler, cs ChangeSet) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("[ERROR-PREFS] change handler panicked",
				"domain", domain,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h(cs)
}
