// Package anki is the AnkiConnect client: a JSON action envelope over HTTP
// with a cached permission handshake.
package anki

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// androidMarker appears in error output of the Android AnkiConnect variant,
// which answers requestPermission with malformed JSON.
const androidMarker = "com.google.gson.stream.MalformedJsonException"

const protocolVersion = 6

// Client talks to a single AnkiConnect endpoint. Safe for concurrent use.
type Client struct {
	url        string
	httpClient *http.Client

	mu                sync.Mutex
	key               string
	permissionGranted bool
	androidVariant    bool
}

func NewClient(url, key string, timeout time.Duration) *Client {
	return &Client{
		url:        url,
		key:        key,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// AndroidVariant reports whether the endpoint was detected as the Android
// implementation. Such endpoints cannot update notes or drive UI focus.
func (c *Client) AndroidVariant() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.androidVariant
}

func (c *Client) SetKey(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.key = key
}

// ResetPermission drops the cached handshake so the next call renegotiates.
func (c *Client) ResetPermission() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.permissionGranted = false
}

type envelope struct {
	Action  string `json:"action"`
	Version int    `json:"version"`
	Key     string `json:"key,omitempty"`
	Params  any    `json:"params,omitempty"`
}

// subAction is one entry of a multi call.
type subAction struct {
	Action string `json:"action"`
	Params any    `json:"params,omitempty"`
	Key    string `json:"key,omitempty"`
}

type multiParams struct {
	Actions []subAction `json:"actions"`
}

// RequestPermission performs the cached handshake. The Android variant is
// detected here and treated as granted.
func (c *Client) RequestPermission(ctx context.Context) error {
	c.mu.Lock()
	granted := c.permissionGranted
	c.mu.Unlock()
	if granted {
		return nil
	}

	var result PermissionResult
	err := c.post(ctx, "requestPermission", nil, &result)
	if err != nil {
		if !strings.Contains(err.Error(), androidMarker) {
			return err
		}

		c.mu.Lock()
		c.androidVariant = true
		c.permissionGranted = true
		c.mu.Unlock()
		return nil
	}

	if result.Permission != "granted" {
		return errors.New("Anki permission not granted")
	}

	c.mu.Lock()
	c.permissionGranted = true
	c.mu.Unlock()
	return nil
}

// invoke runs the permission handshake and then the action itself.
func (c *Client) invoke(ctx context.Context, action string, params any, out any) error {
	if err := c.RequestPermission(ctx); err != nil {
		return err
	}
	return c.post(ctx, action, params, out)
}

// post sends one envelope and decodes its result, aggregating the top-level
// error with any per-action errors of a multi call.
func (c *Client) post(ctx context.Context, action string, params any, out any) error {
	c.mu.Lock()
	key := c.key
	c.mu.Unlock()

	if key != "" && action == "multi" {
		if multi, ok := params.(multiParams); ok {
			for i := range multi.Actions {
				multi.Actions[i].Key = key
			}
			params = multi
		}
	}

	payload, err := json.Marshal(envelope{
		Action:  action,
		Version: protocolVersion,
		Key:     key,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("Request failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	var response struct {
		Result json.RawMessage `json:"result"`
		Error  *string         `json:"error"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return fmt.Errorf("failed to parse response: %v - %s", err, string(body))
	}

	var messages []string
	seen := make(map[string]struct{})
	addError := func(message string) {
		if message == "" {
			return
		}
		if _, dup := seen[message]; dup {
			return
		}
		seen[message] = struct{}{}
		messages = append(messages, message)
	}

	if response.Error != nil {
		addError(*response.Error)
	}

	if action == "multi" && len(response.Result) > 0 {
		var entries []json.RawMessage
		if err := json.Unmarshal(response.Result, &entries); err == nil {
			for _, entry := range entries {
				var sub struct {
					Error *string `json:"error"`
				}
				if err := json.Unmarshal(entry, &sub); err == nil && sub.Error != nil {
					addError(*sub.Error)
				}
			}
		}
	}

	if len(messages) > 0 {
		return errors.New(strings.Join(messages, "; "))
	}

	if out != nil && len(response.Result) > 0 {
		if err := json.Unmarshal(response.Result, out); err != nil {
			return fmt.Errorf("failed to parse result: %w", err)
		}
	}

	return nil
}

// DecksAndModels fetches deck and note type names in one multi call.
func (c *Client) DecksAndModels(ctx context.Context) ([]string, []string, error) {
	var entries []json.RawMessage
	err := c.invoke(ctx, "multi", multiParams{
		Actions: []subAction{{Action: "deckNames"}, {Action: "modelNames"}},
	}, &entries)
	if err != nil {
		return nil, nil, err
	}
	if len(entries) != 2 {
		return nil, nil, fmt.Errorf("unexpected multi result size: %d", len(entries))
	}

	decks, err := multiStrings(entries[0])
	if err != nil {
		return nil, nil, err
	}
	models, err := multiStrings(entries[1])
	if err != nil {
		return nil, nil, err
	}

	return decks, models, nil
}

// multiStrings accepts both multi result shapes: a raw string array or a
// {result, error} wrapper around one.
func multiStrings(entry json.RawMessage) ([]string, error) {
	var values []string
	if err := json.Unmarshal(entry, &values); err == nil {
		return values, nil
	}

	var wrapped struct {
		Result []string `json:"result"`
	}
	if err := json.Unmarshal(entry, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse multi result entry: %w", err)
	}
	return wrapped.Result, nil
}

// ModelFieldNames returns the field names of a note type in template order.
func (c *Client) ModelFieldNames(ctx context.Context, modelName string) ([]string, error) {
	var fields []string
	err := c.invoke(ctx, "modelFieldNames", map[string]any{"modelName": modelName}, &fields)
	return fields, err
}

// FindNotes runs a search query and returns matching note ids.
func (c *Client) FindNotes(ctx context.Context, query string) ([]int64, error) {
	var ids []int64
	err := c.invoke(ctx, "findNotes", map[string]any{"query": query}, &ids)
	return ids, err
}

// NotesInfo fetches fields and tags for the given note ids.
func (c *Client) NotesInfo(ctx context.Context, ids []int64) ([]NoteInfo, error) {
	var infos []NoteInfo
	err := c.invoke(ctx, "notesInfo", map[string]any{"notes": ids}, &infos)
	return infos, err
}

// AddNote creates a note and returns its id. A falsy result without an error
// yields id 0; the caller decides how to report it.
func (c *Client) AddNote(ctx context.Context, note Note) (int64, error) {
	var result json.RawMessage
	if err := c.invoke(ctx, "addNote", map[string]any{"note": note}, &result); err != nil {
		return 0, err
	}

	var id int64
	if err := json.Unmarshal(result, &id); err != nil {
		return 0, nil
	}
	return id, nil
}

// UpdateNote rewrites an existing note's fields, tags and media.
func (c *Client) UpdateNote(ctx context.Context, note Note) error {
	return c.invoke(ctx, "updateNote", map[string]any{"note": note}, nil)
}

// UpdateNoteFields rewrites only the fields (and media) of an existing note.
func (c *Client) UpdateNoteFields(ctx context.Context, note Note) error {
	return c.invoke(ctx, "updateNoteFields", map[string]any{"note": note}, nil)
}

// StoreMediaFile uploads base64 audio data and returns the stored file name.
func (c *Client) StoreMediaFile(ctx context.Context, filename, data string) (string, error) {
	var stored string
	err := c.invoke(ctx, "storeMediaFile", map[string]any{
		"filename": filename,
		"data":     data,
	}, &stored)
	if err != nil {
		return "", err
	}
	if stored == "" {
		stored = filename
	}
	return stored, nil
}

// SelectedNotes returns the note ids currently selected in the browse UI.
func (c *Client) SelectedNotes(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := c.invoke(ctx, "guiSelectedNotes", nil, &ids)
	return ids, err
}

// SelectNote focuses the given note in the browse UI.
func (c *Client) SelectNote(ctx context.Context, id int64) error {
	return c.invoke(ctx, "guiSelectNote", map[string]any{"note": id}, nil)
}

// DeselectNotes clears the browse UI selection by focusing a note id that
// cannot exist.
func (c *Client) DeselectNotes(ctx context.Context) error {
	return c.invoke(ctx, "guiSelectNote", map[string]any{"note": "1"}, nil)
}

// Browse opens the browse UI with the given query.
func (c *Client) Browse(ctx context.Context, query string) ([]int64, error) {
	var ids []int64
	err := c.invoke(ctx, "guiBrowse", map[string]any{"query": query}, &ids)
	return ids, err
}
