// Package schema describes the note type wordsync writes into.
//
// Fields are addressed by position, never by name: AnkiConnect may localize
// field labels, so every name-dependent artifact (card templates, search
// queries) is derived from the resolved field list.
package schema

// Field positions of the fixed 8-slot layout.
const (
	Text = iota
	Phonetic
	Context
	Paraphrase
	Translation
	Pronounce
	URL
	Date
)

// TemplateName is the name of the single card template.
const TemplateName = "Saladict Cloze"

// Fields is an ordered list of field names.
type Fields []string

// DefaultFields returns the field list a freshly created note type uses.
func DefaultFields() Fields {
	return Fields{
		"Text",
		"Phonetic",
		"Context",
		"Paraphrase",
		"Translation",
		"Pronounce",
		"url",
		"Date",
	}
}

// Name returns the field name at position i, or "" when the list is shorter.
func (f Fields) Name(i int) string {
	if i < 0 || i >= len(f) {
		return ""
	}
	return f[i]
}

// Equal reports whether both lists name the same fields in the same order.
func (f Fields) Equal(other Fields) bool {
	if len(f) != len(other) {
		return false
	}
	for i := range f {
		if f[i] != other[i] {
			return false
		}
	}
	return true
}
