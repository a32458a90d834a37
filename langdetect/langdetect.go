// Package langdetect guesses the language of transcript text with lingua.
package langdetect

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pemistahl/lingua-go"
)

// ErrUnknownLanguage is returned by New for an unrecognized ISO 639-1 code.
var ErrUnknownLanguage = errors.New("langdetect: unknown language")

// DefaultMinLength is the shortest text, in runes, worth classifying.
const DefaultMinLength = 12

// Config holds configuration for a Detector.
// Zero values are replaced with sensible defaults.
type Config struct {
	// Languages restricts detection to these ISO 639-1 codes. Empty means
	// every language lingua knows, which costs more memory.
	Languages []string

	MinLength int

	// MinRelativeDistance makes the detector abstain when the top two
	// candidates are closer than this (0 to 0.99).
	MinRelativeDistance float64
}

// Detector classifies text. It is safe for concurrent use.
type Detector struct {
	detector  lingua.LanguageDetector
	minLength int
}

// New builds a Detector.
func New(cfg Config) (*Detector, error) {
	if cfg.MinLength <= 0 {
		cfg.MinLength = DefaultMinLength
	}

	builder := lingua.NewLanguageDetectorBuilder()
	var b lingua.LanguageDetectorBuilder
	if len(cfg.Languages) == 0 {
		b = builder.FromAllLanguages()
	} else {
		langs := make([]lingua.Language, 0, len(cfg.Languages))
		for _, code := range cfg.Languages {
			lang, err := parse(code)
			if err != nil {
				return nil, err
			}
			langs = append(langs, lang)
		}
		if len(langs) < 2 {
			return nil, fmt.Errorf("langdetect: need at least two languages, got %d", len(langs))
		}
		b = builder.FromLanguages(langs...)
	}
	if cfg.MinRelativeDistance > 0 {
		b = b.WithMinimumRelativeDistance(cfg.MinRelativeDistance)
	}

	return &Detector{detector: b.Build(), minLength: cfg.MinLength}, nil
}

// Detect returns the lower-case ISO 639-1 code of text. ok is false when
// the text is too short or no language is reliable.
func (d *Detector) Detect(text string) (code string, ok bool) {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < d.minLength {
		return "", false
	}
	lang, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return "", false
	}
	return strings.ToLower(lang.IsoCode639_1().String()), true
}

// Name returns the English name of an ISO 639-1 code, or "" if unknown.
func Name(code string) string {
	lang, err := parse(code)
	if err != nil {
		return ""
	}
	return lang.String()
}

func parse(code string) (lingua.Language, error) {
	iso := lingua.GetIsoCode639_1FromValue(strings.ToUpper(strings.TrimSpace(code)))
	lang := lingua.GetLanguageFromIsoCode639_1(iso)
	if lang == lingua.Unknown {
		return lingua.Unknown, fmt.Errorf("%w: %q", ErrUnknownLanguage, code)
	}
	return lang, nil
}
