package ankiconnect

import (
	"context"
	"errors"
)

// Note is the payload of an addNote call.
type Note struct {
	DeckName  string            `json:"deckName"`
	ModelName string            `json:"modelName"`
	Fields    map[string]string `json:"fields"`
	Options   NoteOptions       `json:"options"`
	Tags      []string          `json:"tags"`
	Audio     []Media           `json:"audio,omitempty"`
}

// NoteOptions controls duplicate detection on the server side.
type NoteOptions struct {
	AllowDuplicate bool   `json:"allowDuplicate"`
	DuplicateScope string `json:"duplicateScope"`
}

// Media is an audio attachment downloaded by AnkiConnect into the collection.
type Media struct {
	URL      string   `json:"url"`
	Filename string   `json:"filename"`
	SkipHash string   `json:"skipHash,omitempty"`
	Fields   []string `json:"fields"`
}

// CardTemplate is one card template of a note type.
type CardTemplate struct {
	Name  string `json:"Name"`
	Front string `json:"Front"`
	Back  string `json:"Back"`
}

// Model describes a note type to create.
type Model struct {
	Name          string
	Fields        []string
	CSS           string
	CardTemplates []CardTemplate
}

// TemplateSides holds the front and back of one template for updateModelTemplates.
type TemplateSides struct {
	Front string `json:"Front"`
	Back  string `json:"Back"`
}

// Version probes the server. A null result counts as no server.
func (c *Client) Version(ctx context.Context) (int, error) {
	var v *int
	if err := c.Call(ctx, "version", nil, &v); err != nil {
		return 0, err
	}
	if v == nil {
		return 0, errors.New("ankiconnect: version returned null")
	}
	return *v, nil
}

// DeckNames lists all deck names.
func (c *Client) DeckNames(ctx context.Context) ([]string, error) {
	var names []string
	err := c.Call(ctx, "deckNames", nil, &names)
	return names, err
}

// ModelNames lists all note type names.
func (c *Client) ModelNames(ctx context.Context) ([]string, error) {
	var names []string
	err := c.Call(ctx, "modelNames", nil, &names)
	return names, err
}

// CreateDeck creates a deck and returns its id.
func (c *Client) CreateDeck(ctx context.Context, name string) (int64, error) {
	var id int64
	err := c.Call(ctx, "createDeck", map[string]any{"deck": name}, &id)
	return id, err
}

// CreateModel creates a note type.
func (c *Client) CreateModel(ctx context.Context, m Model) error {
	return c.Call(ctx, "createModel", map[string]any{
		"modelName":     m.Name,
		"inOrderFields": m.Fields,
		"css":           m.CSS,
		"cardTemplates": m.CardTemplates,
	}, nil)
}

// UpdateModelTemplates replaces the named templates of a note type.
func (c *Client) UpdateModelTemplates(ctx context.Context, model string, templates map[string]TemplateSides) error {
	return c.Call(ctx, "updateModelTemplates", map[string]any{
		"model": map[string]any{
			"name":      model,
			"templates": templates,
		},
	}, nil)
}

// FindNotes runs an Anki search query and returns matching note ids.
func (c *Client) FindNotes(ctx context.Context, query string) ([]int64, error) {
	var ids []int64
	err := c.Call(ctx, "findNotes", map[string]any{"query": query}, &ids)
	return ids, err
}

// AddNote creates a note. The returned id is 0 when the server answers null.
func (c *Client) AddNote(ctx context.Context, n Note) (int64, error) {
	var id *int64
	if err := c.Call(ctx, "addNote", map[string]any{"note": n}, &id); err != nil {
		return 0, err
	}
	if id == nil {
		return 0, nil
	}
	return *id, nil
}

// UpdateNoteFields overwrites the given fields of an existing note.
func (c *Client) UpdateNoteFields(ctx context.Context, id int64, fields map[string]string) error {
	return c.Call(ctx, "updateNoteFields", map[string]any{
		"note": map[string]any{
			"id":     id,
			"fields": fields,
		},
	}, nil)
}

// Sync triggers an AnkiWeb sync.
func (c *Client) Sync(ctx context.Context) error {
	return c.Call(ctx, "sync", nil, nil)
}

// ModelFieldNames lists the field names of a note type in order.
func (c *Client) ModelFieldNames(ctx context.Context, model string) ([]string, error) {
	var names []string
	err := c.Call(ctx, "modelFieldNames", map[string]any{"modelName": model}, &names)
	return names, err
}
