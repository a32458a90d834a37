// Package transcript keeps the ordered, id-keyed view of a live transcript
// and applies update, correction and status merges to it.
package transcript

import (
	"strings"

	"golang.org/x/text/language"
)

// Kind is the delivery kind of an entry.
type Kind string

const (
	KindUpdate     Kind = "update"
	KindFinal      Kind = "final"
	KindCorrection Kind = "correction"
)

// CorrectionState tracks server-side correction progress for an entry.
type CorrectionState string

const (
	CorrectionNone       CorrectionState = "none"
	CorrectionCorrecting CorrectionState = "correcting"
	CorrectionCorrected  CorrectionState = "corrected"
)

// Message types that carry transcript content.
const (
	TypeUpdate       = "update"
	TypeFinal        = "final"
	TypeCorrection   = "correction"
	TypeStatusUpdate = "status_update"
)

// IsTranscriptType reports whether t is one of the transcript-bearing types.
func IsTranscriptType(t string) bool {
	switch t {
	case TypeUpdate, TypeFinal, TypeCorrection, TypeStatusUpdate:
		return true
	}
	return false
}

// Message is an inbound transcript event as delivered by the remote service.
type Message struct {
	Type             string `json:"type"`
	ID               string `json:"message_id"`
	Speaker          string `json:"speaker"`
	SourceText       string `json:"transcription"`
	TranslatedText   string `json:"translation"`
	SourceLanguage   string `json:"source_language"`
	TargetLanguage   string `json:"target_language"`
	IsFinalized      bool   `json:"isfinalize"`
	CorrectionStatus string `json:"correction_status,omitempty"`
	IsBackfill       bool   `json:"is_backfill,omitempty"`
}

// Version is the text of an entry before a correction replaced it.
type Version struct {
	SourceText     string `json:"sourceText"`
	TranslatedText string `json:"translatedText"`
}

// Entry is one line of the transcript.
type Entry struct {
	ID              string          `json:"id"`
	Speaker         string          `json:"speaker"`
	SourceText      string          `json:"sourceText"`
	TranslatedText  string          `json:"translatedText"`
	SourceLanguage  string          `json:"sourceLanguage"`
	TargetLanguage  string          `json:"targetLanguage"`
	IsFinalized     bool            `json:"isFinalized"`
	Kind            Kind            `json:"kind"`
	CorrectionState CorrectionState `json:"correctionState"`
	PriorVersion    *Version        `json:"priorVersion,omitempty"`
	IsBackfill      bool            `json:"isBackfill"`
}

// ParseCorrectionState maps a wire status to a CorrectionState.
// Unknown or empty values map to CorrectionNone.
func ParseCorrectionState(s string) CorrectionState {
	switch CorrectionState(strings.ToLower(strings.TrimSpace(s))) {
	case CorrectionCorrecting:
		return CorrectionCorrecting
	case CorrectionCorrected:
		return CorrectionCorrected
	}
	return CorrectionNone
}

// CanonicalLanguage normalises a BCP 47 tag ("en-us" -> "en-US").
// Tags that do not parse are returned unchanged.
func CanonicalLanguage(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ""
	}
	t, err := language.Parse(tag)
	if err != nil {
		return tag
	}
	return t.String()
}

func kindOf(msgType string) Kind {
	switch msgType {
	case TypeFinal:
		return KindFinal
	case TypeCorrection:
		return KindCorrection
	}
	return KindUpdate
}
