package langdetect

import (
	"errors"
	"testing"
)

func TestDetect(t *testing.T) {
	d, err := New(Config{Languages: []string{"en", "de", "fr", "es"}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tests := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{"english", "The quarterly numbers look much better than we expected.", "en", true},
		{"german", "Wir sollten die Ergebnisse morgen noch einmal besprechen.", "de", true},
		{"french", "Nous devons terminer la présentation avant vendredi prochain.", "fr", true},
		{"spanish", "Necesitamos revisar el presupuesto antes de la reunión.", "es", true},
		{"too short", "ok", "", false},
		{"whitespace only", "                    ", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := d.Detect(tt.text)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Detect(%q) = %q, %v; want %q, %v", tt.text, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := New(Config{Languages: []string{"en", "xx"}}); !errors.Is(err, ErrUnknownLanguage) {
		t.Errorf("New(xx) = %v, want ErrUnknownLanguage", err)
	}
	if _, err := New(Config{Languages: []string{"en"}}); err == nil {
		t.Error("New with one language succeeded")
	}
}

func TestName(t *testing.T) {
	tests := map[string]string{
		"en":   "English",
		"DE":   "German",
		"zz":   "",
		"":     "",
		"  fr ": "French",
	}
	for code, want := range tests {
		if got := Name(code); got != want {
			t.Errorf("Name(%q) = %q, want %q", code, got, want)
		}
	}
}
