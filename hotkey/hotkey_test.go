package hotkey

import (
	"errors"
	"slices"
	"testing"
)

func TestParseCombo(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"ctrl+shift+m", "ctrl+shift+m", false},
		{"Shift+Ctrl+M", "ctrl+shift+m", false},
		{"control + option + space", "ctrl+alt+space", false},
		{"cmd+shift+f9", "shift+cmd+f9", false},
		{"super+k", "cmd+k", false},
		{"m", "", true},
		{"ctrl+shift", "", true},
		{"ctrl+a+b", "", true},
		{"ctrl+ctrl+m", "", true},
		{"ctrl++m", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			c, err := ParseCombo(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidCombo) {
					t.Errorf("ParseCombo(%q) error = %v, want ErrInvalidCombo", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCombo(%q) error = %v", tt.input, err)
			}
			if got := c.String(); got != tt.want {
				t.Errorf("ParseCombo(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestComboKeys(t *testing.T) {
	c, err := ParseCombo("alt+ctrl+m")
	if err != nil {
		t.Fatal(err)
	}
	keys := c.Keys()
	if !slices.Equal(keys, []string{"ctrl", "alt", "m"}) {
		t.Errorf("Keys() = %v", keys)
	}

	// Keys returns a copy.
	keys[0] = "x"
	if c.Modifiers[0] != "ctrl" {
		t.Error("Keys() aliases Modifiers")
	}
}

func TestManagerStopWithoutStart(t *testing.T) {
	c, _ := ParseCombo("ctrl+shift+m")
	m := NewManager(c, func() {}, nil)
	m.Stop()
	m.Stop()
}
