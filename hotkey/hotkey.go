// Package hotkey registers a global keyboard shortcut with gohook.
package hotkey

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	hook "github.com/robotn/gohook"
)

// ErrInvalidCombo is returned by ParseCombo.
var ErrInvalidCombo = errors.New("hotkey: invalid combo")

// ErrRunning is returned when Start is called twice.
var ErrRunning = errors.New("hotkey: already running")

var modifierAliases = map[string]string{
	"ctrl":    "ctrl",
	"control": "ctrl",
	"shift":   "shift",
	"alt":     "alt",
	"option":  "alt",
	"opt":     "alt",
	"cmd":     "cmd",
	"command": "cmd",
	"super":   "cmd",
	"meta":    "cmd",
}

var modifierOrder = []string{"ctrl", "alt", "shift", "cmd"}

// Combo is a normalized shortcut: modifiers in a fixed order, then one key.
type Combo struct {
	Modifiers []string
	Key       string
}

// ParseCombo parses strings like "ctrl+shift+m".
func ParseCombo(s string) (Combo, error) {
	var c Combo
	seen := make(map[string]bool)

	for part := range strings.SplitSeq(strings.ToLower(s), "+") {
		part = strings.TrimSpace(part)
		if part == "" {
			return Combo{}, fmt.Errorf("%w: empty key in %q", ErrInvalidCombo, s)
		}
		if mod, ok := modifierAliases[part]; ok {
			if seen[mod] {
				return Combo{}, fmt.Errorf("%w: repeated %s in %q", ErrInvalidCombo, mod, s)
			}
			seen[mod] = true
			continue
		}
		if c.Key != "" {
			return Combo{}, fmt.Errorf("%w: more than one key in %q", ErrInvalidCombo, s)
		}
		c.Key = part
	}

	if c.Key == "" {
		return Combo{}, fmt.Errorf("%w: no key in %q", ErrInvalidCombo, s)
	}
	if len(seen) == 0 {
		return Combo{}, fmt.Errorf("%w: %q needs a modifier", ErrInvalidCombo, s)
	}
	for _, mod := range modifierOrder {
		if seen[mod] {
			c.Modifiers = append(c.Modifiers, mod)
		}
	}
	return c, nil
}

// Keys returns the key names in gohook's registration order.
func (c Combo) Keys() []string {
	return append(slices.Clone(c.Modifiers), c.Key)
}

func (c Combo) String() string {
	return strings.Join(c.Keys(), "+")
}

// Manager owns the global hook. Only one Manager should run per process.
type Manager struct {
	combo   Combo
	onPress func()
	log     *slog.Logger

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

// NewManager creates a Manager that calls onPress for every key-down of
// combo.
func NewManager(combo Combo, onPress func(), logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		combo:   combo,
		onPress: onPress,
		log:     logger.With("component", "hotkey"),
	}
}

// Start registers the shortcut and begins processing events.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return ErrRunning
	}

	hook.Register(hook.KeyDown, m.combo.Keys(), func(hook.Event) {
		m.log.Debug("hotkey pressed", "combo", m.combo.String())
		m.onPress()
	})

	events := hook.Start()
	m.done = make(chan struct{})
	go func(done chan struct{}) {
		<-hook.Process(events)
		close(done)
	}(m.done)

	m.running = true
	m.log.Info("hotkey registered", "combo", m.combo.String())
	return nil
}

// Stop unregisters the hook. Safe to call when not running.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	hook.End()
	<-m.done
	m.running = false
}
