package transcript

import "slices"

// Ledger holds transcript entries in first-seen order with O(1) lookup by id.
// Entries never move once inserted. A Ledger is not safe for concurrent use;
// its owner serializes access.
type Ledger struct {
	entries []Entry
	index   map[string]int
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{index: make(map[string]int)}
}

// Upsert applies msg and returns the full ordered list after the mutation.
// Messages without an id or with a non-transcript type leave the ledger
// untouched.
func (l *Ledger) Upsert(msg Message) []Entry {
	if msg.ID == "" || !IsTranscriptType(msg.Type) {
		return l.Entries()
	}

	pos, ok := l.index[msg.ID]
	if !ok {
		l.index[msg.ID] = len(l.entries)
		l.entries = append(l.entries, newEntry(msg))
		return l.Entries()
	}

	merge(&l.entries[pos], msg)
	return l.Entries()
}

// Get returns the entry with the given id.
func (l *Ledger) Get(id string) (Entry, bool) {
	pos, ok := l.index[id]
	if !ok {
		return Entry{}, false
	}
	return l.entries[pos], true
}

// Entries returns a copy of all entries in first-seen order.
func (l *Ledger) Entries() []Entry {
	return slices.Clone(l.entries)
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	return len(l.entries)
}

// Clear removes all entries.
func (l *Ledger) Clear() {
	l.entries = l.entries[:0]
	clear(l.index)
}

func newEntry(msg Message) Entry {
	e := Entry{
		ID:              msg.ID,
		Speaker:         msg.Speaker,
		SourceText:      msg.SourceText,
		TranslatedText:  msg.TranslatedText,
		SourceLanguage:  CanonicalLanguage(msg.SourceLanguage),
		TargetLanguage:  CanonicalLanguage(msg.TargetLanguage),
		IsFinalized:     msg.IsFinalized,
		Kind:            kindOf(msg.Type),
		CorrectionState: ParseCorrectionState(msg.CorrectionStatus),
		IsBackfill:      msg.IsBackfill,
	}
	if msg.Type == TypeCorrection && msg.CorrectionStatus == "" {
		e.CorrectionState = CorrectionCorrected
	}
	return e
}

func merge(e *Entry, msg Message) {
	switch msg.Type {
	case TypeStatusUpdate:
		e.CorrectionState = ParseCorrectionState(msg.CorrectionStatus)

	case TypeCorrection:
		// Re-applying the same correction must not replace the snapshot
		// with the corrected text.
		if e.SourceText != msg.SourceText || e.TranslatedText != msg.TranslatedText {
			e.PriorVersion = &Version{
				SourceText:     e.SourceText,
				TranslatedText: e.TranslatedText,
			}
		}
		e.SourceText = msg.SourceText
		e.TranslatedText = msg.TranslatedText
		e.Kind = KindCorrection
		e.CorrectionState = CorrectionCorrected

	default:
		e.SourceText = msg.SourceText
		e.TranslatedText = msg.TranslatedText
		e.SourceLanguage = CanonicalLanguage(msg.SourceLanguage)
		e.TargetLanguage = CanonicalLanguage(msg.TargetLanguage)
		e.IsFinalized = msg.IsFinalized
		e.Kind = kindOf(msg.Type)
	}
}
