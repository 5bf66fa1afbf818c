// Package prefs batches preference edits into a transaction, commits them to
// the config store and reports which collaborators must react.
package prefs

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"

	"voltray/internal/accel"
	"voltray/internal/action"
	"voltray/internal/config"
)

var (
	// ErrTransactionOpen is returned by Open while another transaction is
	// outstanding.
	ErrTransactionOpen = errors.New("a preferences transaction is already open")
	// ErrTransactionClosed is returned when a committed or discarded
	// transaction is used again.
	ErrTransactionClosed = errors.New("preferences transaction is closed")
	// ErrKindMismatch rejects a staged value whose kind differs from the
	// schema kind of the key.
	ErrKindMismatch = errors.New("value kind does not match setting")
	// ErrInvalidUTF8 rejects text the config file cannot store.
	ErrInvalidUTF8 = errors.New("text is not valid UTF-8")
)

// Coordinator owns the single outstanding transaction against a store.
type Coordinator struct {
	mu      sync.Mutex
	store   *config.Store
	codec   *accel.Codec
	current *Transaction
}

func NewCoordinator(store *config.Store, codec *accel.Codec) *Coordinator {
	return &Coordinator{store: store, codec: codec}
}

// Open snapshots the store and starts a transaction.
func (c *Coordinator) Open() (*Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		return nil, fmt.Errorf("%w (id %s)", ErrTransactionOpen, c.current.id)
	}

	base := c.store.Clone()
	accels := make(map[action.Action]string, len(action.All))
	for _, a := range action.All {
		keycode := config.Get(base, config.GlobalSection, a.KeycodeKey(), -1)
		mods := config.Get(base, config.GlobalSection, a.ModsKey(), 0)
		accels[a] = c.codec.HardwareToCanonical(keycode, accel.Modifier(mods))
	}

	tx := &Transaction{
		id:           uuid.NewString(),
		owner:        c,
		base:         base,
		accels:       accels,
		staged:       map[fieldKey]config.Value{},
		stagedAccels: map[action.Action]string{},
	}
	c.current = tx
	slog.Debug("[DEBUG-PREFS] transaction opened", "id", tx.id)
	return tx, nil
}

// Discard drops every staged edit. The store is untouched.
func (c *Coordinator) Discard(tx *Transaction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.closeLocked(tx); err != nil {
		return err
	}
	slog.Debug("[DEBUG-PREFS] transaction discarded", "id", tx.id)
	return nil
}

// Commit writes every staged value to the store, saves it, and returns the
// domains whose values changed. When Save fails the in-memory store is still
// updated and the ChangeSet is returned together with the *config.SaveError.
func (c *Coordinator) Commit(tx *Transaction) (ChangeSet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.closeLocked(tx); err != nil {
		return ChangeSet{}, err
	}

	tx.mu.Lock()
	staged := maps.Clone(tx.staged)
	stagedAccels := maps.Clone(tx.stagedAccels)
	tx.mu.Unlock()

	var cs ChangeSet
	for _, fk := range slices.SortedFunc(maps.Keys(staged), compareFieldKeys) {
		v := staged[fk]
		if !v.Equal(effectiveValue(tx.base, fk.section, fk.key)) {
			if d, ok := DomainOf(fk.section, fk.key); ok {
				cs.Add(d)
			}
		}
		c.store.SetValue(fk.section, fk.key, v)
	}

	for _, a := range action.All {
		text, ok := stagedAccels[a]
		if !ok {
			continue
		}
		keycode, mods, err := c.codec.CanonicalToHardware(text)
		if err != nil {
			slog.Warn("[WARN-PREFS] staged hotkey cannot be armed, storing as unbound",
				"action", a, "accelerator", text, "error", err)
			keycode, mods = -1, 0
		}
		oldKey := config.Get(tx.base, config.GlobalSection, a.KeycodeKey(), -1)
		oldMods := config.Get(tx.base, config.GlobalSection, a.ModsKey(), 0)
		if keycode != oldKey || int(mods) != oldMods {
			cs.Add(HotkeyRebind)
		}
		config.Set(c.store, config.GlobalSection, a.KeycodeKey(), keycode)
		config.Set(c.store, config.GlobalSection, a.ModsKey(), int(mods))
	}

	slog.Debug("[DEBUG-PREFS] transaction committed", "id", tx.id, "changes", cs.String())
	if err := c.store.Save(); err != nil {
		return cs, err
	}
	return cs, nil
}

func (c *Coordinator) closeLocked(tx *Transaction) error {
	if tx == nil || tx.owner != c {
		return fmt.Errorf("%w: transaction does not belong to this coordinator", ErrTransactionClosed)
	}
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.closed || c.current != tx {
		return fmt.Errorf("%w (id %s)", ErrTransactionClosed, tx.id)
	}
	tx.closed = true
	c.current = nil
	return nil
}

type fieldKey struct {
	section string
	key     string
}

func compareFieldKeys(a, b fieldKey) int {
	return cmp.Or(cmp.Compare(a.section, b.section), cmp.Compare(a.key, b.key))
}

// Transaction is one preferences-edit session. Reads see staged values over
// the snapshot taken at Open.
type Transaction struct {
	id    string
	owner *Coordinator
	base  *config.Store

	mu           sync.Mutex
	closed       bool
	accels       map[action.Action]string
	staged       map[fieldKey]config.Value
	stagedAccels map[action.Action]string
}

// ID identifies the transaction in logs.
func (tx *Transaction) ID() string { return tx.id }

// Stage records an edit. Global schema keys must match their schema kind;
// an int is accepted for a double key.
func (tx *Transaction) Stage(section, key string, v config.Value) error {
	if !v.Valid() || section == "" || key == "" {
		return fmt.Errorf("stage %s.%s: invalid value", section, key)
	}
	if text, _ := config.As[string](v); !utf8.ValidString(section) || !utf8.ValidString(key) || !utf8.ValidString(text) {
		return fmt.Errorf("stage %q.%q: %w", section, key, ErrInvalidUTF8)
	}
	if section == config.GlobalSection {
		if spec, ok := config.LookupSpec(key); ok && spec.Kind != v.Kind() &&
			!(spec.Kind == config.KindDouble && v.Kind() == config.KindInt) {
			return fmt.Errorf("%w: %s is %s, got %s", ErrKindMismatch, key, spec.Kind, v.Kind())
		}
	}
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.closed {
		return fmt.Errorf("%w (id %s)", ErrTransactionClosed, tx.id)
	}
	tx.staged[fieldKey{section, key}] = v
	return nil
}

// StageChannel records a channel edit for device.
func (tx *Transaction) StageChannel(device, channel string) error {
	if device == "" || device == config.GlobalSection {
		return fmt.Errorf("stage channel: invalid device name %q", device)
	}
	return tx.Stage(device, config.ChannelKey, config.StringValue(channel))
}

// StageMeterColor records a meter color edit, clamping each component. A NaN
// component takes the default color's component.
func (tx *Transaction) StageMeterColor(rgb [3]float64) error {
	list := make([]float64, len(rgb))
	for i, c := range rgb {
		if math.IsNaN(c) {
			c = config.DefaultMeterColor[i]
		}
		list[i] = min(1, max(0, c))
	}
	return tx.Stage(config.GlobalSection, config.KeyVolMeterColor, config.DoubleListValue(list))
}

// StageAccelerator records a hotkey edit from the capture machine. Malformed
// text is staged as "no binding".
func (tx *Transaction) StageAccelerator(target action.Action, text string) error {
	if !target.Valid() {
		return fmt.Errorf("%w: %v", action.ErrUnknown, target)
	}
	canonical := accel.None
	if a, err := accel.Decode(text); err != nil {
		slog.Warn("[WARN-PREFS] malformed accelerator staged as unbound", "action", target, "accelerator", text, "error", err)
	} else {
		canonical = a.String()
	}
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.closed {
		return fmt.Errorf("%w (id %s)", ErrTransactionClosed, tx.id)
	}
	tx.stagedAccels[target] = canonical
	return nil
}

// Value returns the staged value for (section, key), else the snapshot value.
func (tx *Transaction) Value(section, key string) (config.Value, bool) {
	tx.mu.Lock()
	v, ok := tx.staged[fieldKey{section, key}]
	tx.mu.Unlock()
	if ok {
		return v, true
	}
	v = effectiveValue(tx.base, section, key)
	return v, v.Valid()
}

// Accelerator returns the staged accelerator text for target, else the
// snapshot text.
func (tx *Transaction) Accelerator(target action.Action) string {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if text, ok := tx.stagedAccels[target]; ok {
		return text
	}
	if text, ok := tx.accels[target]; ok {
		return text
	}
	return accel.None
}

// Snapshot returns the pre-edit store. Callers must not mutate it.
func (tx *Transaction) Snapshot() *config.Store { return tx.base }
