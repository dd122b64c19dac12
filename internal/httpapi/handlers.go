package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/MimeLyc/whispercard/internal/actions"
	"github.com/MimeLyc/whispercard/internal/subtitle"
	"github.com/MimeLyc/whispercard/internal/timeutil"
	"github.com/MimeLyc/whispercard/pkg/file"
	"github.com/MimeLyc/whispercard/pkg/log"
)

var subtitleExts = []string{".srt", ".vtt"}

type loadMediaRequest struct {
	Path string `json:"path"`
	// Duration is the host-reported audio duration as HH:MM:SS; it bounds
	// padding clamps on the loaded document.
	Duration string `json:"duration,omitempty"`
}

type loadMediaResponse struct {
	Audio    string `json:"audio"`
	Subtitle string `json:"subtitle,omitempty"`
	Lines    int    `json:"lines"`
	Restored int    `json:"restored,omitempty"`
}

// handleMedia binds an audio file from disk and, when a subtitle file with
// the same base name sits next to it, loads that document as well.
func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req loadMediaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	data, err := os.ReadFile(req.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Duration != "" {
		s.store.SetDuration(float64(timeutil.TimeStringToSeconds(req.Duration)))
	}

	resp := loadMediaResponse{Audio: filepath.Base(req.Path)}
	if sibling, ok := findSubtitleFor(req.Path); ok {
		raw, err := os.ReadFile(sibling)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		collection, err := s.store.Load(filepath.Base(sibling), string(raw), formatForName(sibling))
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		resp.Subtitle = filepath.Base(sibling)
		resp.Lines = collection.Len()
		resp.Restored = s.restoreStored(r.Context(), filepath.Base(sibling))
	}

	if err := s.source.Replace(r.Context(), filepath.Base(req.Path), data); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// findSubtitleFor pairs an audio path with the subtitle file next to it:
// first the exact base name with a known extension, then a case-insensitive
// directory scan.
func findSubtitleFor(audioPath string) (string, bool) {
	for _, ext := range subtitleExts {
		candidate := file.ReplaceExt(audioPath, ext)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}
	return file.FindSibling(filepath.Dir(audioPath), audioPath, subtitleExts)
}

// restoreStored overlays the persisted payload for a document, when one
// exists. A read failure only logs; the freshly parsed lines stay usable.
func (s *Server) restoreStored(ctx context.Context, documentName string) int {
	if s.payloads == nil {
		return 0
	}
	stored, ok, err := s.payloads.GetSubtitles(ctx, documentName)
	if err != nil {
		log.Warn("Failed to read stored subtitles for %s: %v", documentName, err)
		return 0
	}
	if !ok {
		return 0
	}
	return s.store.ApplyStored(stored)
}

type subtitlesResponse struct {
	Document string          `json:"document"`
	Language string          `json:"language,omitempty"`
	Lines    []subtitle.Line `json:"lines"`
}

func (s *Server) handleSubtitles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	collection := s.store.Collection()
	resp := subtitlesResponse{
		Document: s.store.DocumentName(),
		Lines:    []subtitle.Line{},
	}
	if collection != nil {
		resp.Lines = collection.Lines()
		resp.Language = collection.Language.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

type actionRequest struct {
	Action         string   `json:"action"`
	IDs            []string `json:"ids"`
	MergeSubtitles bool     `json:"merge_subtitles"`
	SkipUpdates    bool     `json:"skip_updates"`
	KeepPauseState bool     `json:"keep_pause_state"`
	IgnoreSkipKeys bool     `json:"ignore_skip_keys"`
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	action, ok := actionByName(req.Action)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown action: "+req.Action)
		return
	}

	lines, missing := s.resolveLines(req.IDs)
	if len(missing) > 0 {
		writeError(w, http.StatusNotFound, "unknown line id(s): "+strings.Join(missing, ", "))
		return
	}

	opts := actions.DefaultOptions()
	opts.MergeSubtitles = req.MergeSubtitles
	opts.SkipUpdates = req.SkipUpdates
	opts.KeepPauseState = req.KeepPauseState
	opts.IgnoreSkipKeys = req.IgnoreSkipKeys

	if err := s.dispatcher.Dispatch(r.Context(), action, lines, opts); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) resolveLines(ids []string) ([]subtitle.Line, []string) {
	collection := s.store.Collection()
	lines := make([]subtitle.Line, 0, len(ids))
	missing := make([]string, 0)
	for _, id := range ids {
		if collection == nil {
			missing = append(missing, id)
			continue
		}
		line, ok := collection.Get(id)
		if !ok {
			missing = append(missing, id)
			continue
		}
		lines = append(lines, line)
	}
	return lines, missing
}

type statusResponse struct {
	Document     string        `json:"document"`
	Audio        string        `json:"audio"`
	Chapters     []chapterInfo `json:"chapters"`
	ExportActive bool          `json:"export_active"`
	Bookmarked   []string      `json:"bookmarked"`
	ForMerge     []string      `json:"for_merge"`
}

type chapterInfo struct {
	Label string `json:"label"`
	Start string `json:"start"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	chapters := s.source.Chapters()
	infos := make([]chapterInfo, 0, len(chapters))
	for _, chapter := range chapters {
		infos = append(infos, chapterInfo{Label: chapter.Label, Start: chapter.StartText})
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Document:     s.store.DocumentName(),
		Audio:        s.source.AudioName(),
		Chapters:     infos,
		ExportActive: s.dispatcher.ExportActive(),
		Bookmarked:   s.dispatcher.Bookmarked(),
		ForMerge:     s.dispatcher.ForMerge(),
	})
}

func actionByName(name string) (actions.Action, bool) {
	for _, action := range actions.All() {
		if string(action) == name {
			return action, true
		}
	}
	return actions.ActionNone, false
}

func formatForName(name string) subtitle.Format {
	if strings.EqualFold(filepath.Ext(name), ".vtt") {
		return subtitle.FormatVTT
	}
	return subtitle.FormatSRT
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
