package anki

// Note is the payload for addNote/updateNote calls. Create-only attributes
// (deck, model, options) stay empty on updates; updates carry the note id.
type Note struct {
	ID        int64             `json:"id,omitempty"`
	DeckName  string            `json:"deckName,omitempty"`
	ModelName string            `json:"modelName,omitempty"`
	Fields    map[string]string `json:"fields"`
	Tags      []string          `json:"tags"`
	Audio     []AudioAttachment `json:"audio"`
	Options   *NoteOptions      `json:"options,omitempty"`
}

// AudioAttachment stores a media file alongside the note.
type AudioAttachment struct {
	Data           string   `json:"data"`
	DeleteExisting bool     `json:"deleteExisting"`
	Filename       string   `json:"filename"`
	Fields         []string `json:"fields,omitempty"`
}

// NoteOptions control duplicate handling on note creation.
type NoteOptions struct {
	AllowDuplicate        bool                   `json:"allowDuplicate"`
	DuplicateScope        string                 `json:"duplicateScope,omitempty"`
	DuplicateScopeOptions *DuplicateScopeOptions `json:"duplicateScopeOptions,omitempty"`
}

// DuplicateScopeOptions narrow the duplicate scope to a deck subtree.
type DuplicateScopeOptions struct {
	CheckChildren bool   `json:"checkChildren"`
	DeckName      string `json:"deckName,omitempty"`
}

// NoteInfo is the notesInfo result for one note.
type NoteInfo struct {
	NoteID int64                `json:"noteId"`
	Fields map[string]FieldData `json:"fields"`
	Tags   []string             `json:"tags"`
}

// FieldData is a single field value in a notesInfo result.
type FieldData struct {
	Value string `json:"value"`
}

// PermissionResult is the requestPermission response payload.
type PermissionResult struct {
	Permission    string `json:"permission"`
	RequireAPIKey bool   `json:"requireApikey"`
	Version       int    `json:"version"`
}
