// Package fields converts captured words into the field map of the note type.
//
// Fields are written by position (see package schema), so localized field
// names resolved from the server are honoured without any name lookups here.
package fields

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kalambet/wordsync/internal/enrichment"
	"github.com/kalambet/wordsync/internal/notebook"
	"github.com/kalambet/wordsync/internal/schema"
)

// Escape selects which word-supplied fields are HTML-escaped. Unescaped
// fields pass markup through to the card as-is.
type Escape struct {
	Context     bool
	Translation bool
	Note        bool
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// EscapeHTML escapes text the way a text node is serialized into HTML.
func EscapeHTML(text string) string {
	return htmlEscaper.Replace(text)
}

// Multiline trims text, optionally escapes it, and turns newlines into <br/>.
func Multiline(text string, escape bool) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if escape {
		text = EscapeHTML(text)
	}
	return strings.ReplaceAll(strings.TrimSpace(text), "\n", "<br/>")
}

// Emphasize wraps every occurrence of headword in context with <b> tags and
// then applies Multiline, so with escape set the emphasis markup is escaped
// along with the rest of the context. An empty context yields the headword
// in raw <b> tags.
func Emphasize(context, headword string, escape bool) string {
	marked := context
	if headword != "" {
		marked = strings.ReplaceAll(context, headword, "<b>"+headword+"</b>")
	}
	if out := Multiline(marked, escape); out != "" {
		return out
	}
	return "<b>" + headword + "</b>"
}

// Phonetics renders pronunciations as label+phonetic pairs joined by commas.
func Phonetics(enr *enrichment.Result) string {
	if enr == nil {
		return ""
	}
	out := make([]string, len(enr.Pronunciations))
	for i, p := range enr.Pronunciations {
		out[i] = p.Label + p.Phonetic
	}
	return strings.Join(out, ",")
}

// SoundFilename is the media file name used for a word's audio.
func SoundFilename(w notebook.Word) string {
	return w.Text + ".mp3"
}

// UpdateFields returns the fields derived from the word alone (text, context,
// translation, url and date), as written by an update.
func UpdateFields(w notebook.Word, f schema.Fields, esc Escape) map[string]string {
	m := make(map[string]string, len(f))
	set(m, f, schema.Text, w.Text)
	set(m, f, schema.Context, Emphasize(w.Context, w.Text, esc.Context))
	set(m, f, schema.Translation, Multiline(w.Translation, esc.Translation))
	set(m, f, schema.URL, w.URL)
	set(m, f, schema.Date, strconv.FormatInt(w.Date, 10))
	return m
}

// Map returns the full field map for a word. A nil enrichment leaves the
// enrichment-derived fields empty; refusing to create such a note is the
// caller's decision.
func Map(w notebook.Word, enr *enrichment.Result, f schema.Fields, esc Escape) map[string]string {
	m := UpdateFields(w, f, esc)

	var definitions []string
	if enr != nil {
		definitions = enr.Definitions
	}
	set(m, f, schema.Phonetic, Phonetics(enr))
	set(m, f, schema.Paraphrase, Multiline(strings.Join(definitions, "\n"), true))

	// Slot 5 is the card's hint section: the sound tag plus the word's note.
	var hint []string
	if enr.FirstAudioURL() != "" {
		hint = append(hint, fmt.Sprintf("[sound:%s]", SoundFilename(w)))
	}
	if note := Multiline(w.Note, esc.Note); note != "" {
		hint = append(hint, note)
	}
	set(m, f, schema.Pronounce, strings.Join(hint, "<br/>"))
	return m
}

func set(m map[string]string, f schema.Fields, pos int, value string) {
	if name := f.Name(pos); name != "" {
		m[name] = value
	}
}

// Tags splits a tag string on ASCII and full-width commas, dropping blanks.
func Tags(s string) []string {
	tags := []string{}
	for _, t := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '，' }) {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
