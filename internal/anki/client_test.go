package anki

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Action  string          `json:"action"`
	Version int             `json:"version"`
	Key     string          `json:"key"`
	Params  json.RawMessage `json:"params"`
}

func newTestServer(t *testing.T, handler func(recordedRequest) string) (*httptest.Server, *[]recordedRequest) {
	t.Helper()

	var requests []recordedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req recordedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		requests = append(requests, req)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(handler(req)))
	}))
	t.Cleanup(server.Close)

	return server, &requests
}

func grantingHandler(next func(recordedRequest) string) func(recordedRequest) string {
	return func(req recordedRequest) string {
		if req.Action == "requestPermission" {
			return `{"result":{"permission":"granted","requireApikey":false,"version":6},"error":null}`
		}
		return next(req)
	}
}

func TestEnvelopeShape(t *testing.T) {
	server, requests := newTestServer(t, grantingHandler(func(recordedRequest) string {
		return `{"result":["Front","Back"],"error":null}`
	}))

	client := NewClient(server.URL, "secret", time.Second)

	fields, err := client.ModelFieldNames(context.Background(), "Basic")
	require.NoError(t, err)
	require.Equal(t, []string{"Front", "Back"}, fields)

	require.Len(t, *requests, 2)
	call := (*requests)[1]
	require.Equal(t, "modelFieldNames", call.Action)
	require.Equal(t, 6, call.Version)
	require.Equal(t, "secret", call.Key)
	require.JSONEq(t, `{"modelName":"Basic"}`, string(call.Params))
}

func TestPermissionCachedAcrossCalls(t *testing.T) {
	server, requests := newTestServer(t, grantingHandler(func(recordedRequest) string {
		return `{"result":[],"error":null}`
	}))

	client := NewClient(server.URL, "", time.Second)

	_, err := client.FindNotes(context.Background(), "deck:test")
	require.NoError(t, err)
	_, err = client.FindNotes(context.Background(), "deck:test")
	require.NoError(t, err)

	permissionCalls := 0
	for _, req := range *requests {
		if req.Action == "requestPermission" {
			permissionCalls++
		}
	}
	require.Equal(t, 1, permissionCalls)
}

func TestPermissionDenied(t *testing.T) {
	server, _ := newTestServer(t, func(recordedRequest) string {
		return `{"result":{"permission":"denied"},"error":null}`
	})

	client := NewClient(server.URL, "", time.Second)

	_, err := client.FindNotes(context.Background(), "deck:test")
	require.EqualError(t, err, "Anki permission not granted")
}

func TestAndroidVariantDetection(t *testing.T) {
	server, _ := newTestServer(t, func(req recordedRequest) string {
		if req.Action == "requestPermission" {
			return `{"result":null,"error":"com.google.gson.stream.MalformedJsonException: Use JsonReader.setLenient(true)"}`
		}
		return `{"result":[1,2],"error":null}`
	})

	client := NewClient(server.URL, "", time.Second)

	ids, err := client.FindNotes(context.Background(), "deck:test")
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2}, ids)
	require.True(t, client.AndroidVariant())
}

func TestMultiErrorAggregation(t *testing.T) {
	server, _ := newTestServer(t, grantingHandler(func(recordedRequest) string {
		return `{"result":[{"result":null,"error":"deck missing"},{"result":null,"error":"model missing"},{"result":null,"error":"deck missing"}],"error":null}`
	}))

	client := NewClient(server.URL, "", time.Second)

	_, _, err := client.DecksAndModels(context.Background())
	require.EqualError(t, err, "deck missing; model missing")
}

func TestDecksAndModelsRawArrays(t *testing.T) {
	server, requests := newTestServer(t, grantingHandler(func(recordedRequest) string {
		return `{"result":[["Default","Mining"],["Basic","Cloze"]],"error":null}`
	}))

	client := NewClient(server.URL, "key123", time.Second)

	decks, models, err := client.DecksAndModels(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"Default", "Mining"}, decks)
	require.Equal(t, []string{"Basic", "Cloze"}, models)

	// the key is copied into every multi sub-action
	call := (*requests)[1]
	var params struct {
		Actions []struct {
			Action string `json:"action"`
			Key    string `json:"key"`
		} `json:"actions"`
	}
	require.NoError(t, json.Unmarshal(call.Params, &params))
	require.Len(t, params.Actions, 2)
	for _, action := range params.Actions {
		require.Equal(t, "key123", action.Key)
	}
}

func TestAddNoteFalsyResult(t *testing.T) {
	server, _ := newTestServer(t, grantingHandler(func(recordedRequest) string {
		return `{"result":null,"error":null}`
	}))

	client := NewClient(server.URL, "", time.Second)

	id, err := client.AddNote(context.Background(), Note{Fields: map[string]string{"Front": "x"}})
	require.NoError(t, err)
	require.Zero(t, id)
}

func TestAddNoteReturnsID(t *testing.T) {
	server, requests := newTestServer(t, grantingHandler(func(recordedRequest) string {
		return `{"result":1496198395707,"error":null}`
	}))

	client := NewClient(server.URL, "", time.Second)

	note := Note{
		DeckName:  "Mining",
		ModelName: "Basic",
		Fields:    map[string]string{"Front": "text"},
		Tags:      []string{"audio"},
		Audio:     []AudioAttachment{{Data: "QQ==", DeleteExisting: true, Filename: "clip.mp3", Fields: []string{""}}},
		Options: &NoteOptions{
			AllowDuplicate: false,
			DuplicateScope: "deck",
			DuplicateScopeOptions: &DuplicateScopeOptions{
				CheckChildren: false,
				DeckName:      "Mining",
			},
		},
	}

	id, err := client.AddNote(context.Background(), note)
	require.NoError(t, err)
	require.Equal(t, int64(1496198395707), id)

	call := (*requests)[1]
	var params struct {
		Note map[string]json.RawMessage `json:"note"`
	}
	require.NoError(t, json.Unmarshal(call.Params, &params))
	require.Contains(t, params.Note, "deckName")
	require.Contains(t, params.Note, "options")
	require.NotContains(t, params.Note, "id")
}

func TestUpdateNoteOmitsCreateOnlyAttributes(t *testing.T) {
	server, requests := newTestServer(t, grantingHandler(func(recordedRequest) string {
		return `{"result":null,"error":null}`
	}))

	client := NewClient(server.URL, "", time.Second)

	err := client.UpdateNote(context.Background(), Note{
		ID:     42,
		Fields: map[string]string{"Front": "text"},
		Tags:   []string{},
		Audio:  []AudioAttachment{},
	})
	require.NoError(t, err)

	call := (*requests)[1]
	var params struct {
		Note map[string]json.RawMessage `json:"note"`
	}
	require.NoError(t, json.Unmarshal(call.Params, &params))
	require.Contains(t, params.Note, "id")
	require.NotContains(t, params.Note, "deckName")
	require.NotContains(t, params.Note, "options")
}

func TestRequestFailureStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	client := NewClient(server.URL, "", time.Second)

	err := client.RequestPermission(context.Background())
	require.EqualError(t, err, "Request failed with status 502")
}

func TestStoreMediaFile(t *testing.T) {
	server, _ := newTestServer(t, grantingHandler(func(recordedRequest) string {
		return `{"result":"clip (1).mp3","error":null}`
	}))

	client := NewClient(server.URL, "", time.Second)

	stored, err := client.StoreMediaFile(context.Background(), "clip.mp3", "QQ==")
	require.NoError(t, err)
	require.Equal(t, "clip (1).mp3", stored)
}
