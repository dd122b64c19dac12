// Package export drives batch card creation against the remote note service:
// settings verification, update lookup, per-group audio extraction and note
// population, and run finalization.
package export

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/MimeLyc/whispercard/internal/anki"
	"github.com/MimeLyc/whispercard/internal/config"
	"github.com/MimeLyc/whispercard/internal/extract"
	"github.com/MimeLyc/whispercard/internal/subtitle"
	"github.com/MimeLyc/whispercard/internal/timeutil"
	"github.com/MimeLyc/whispercard/pkg/file"
	"github.com/MimeLyc/whispercard/pkg/log"
)

// emptyFieldPlaceholder keeps an allowed-empty key field non-blank.
const emptyFieldPlaceholder = "&#8203;"

// Connector is the subset of the note service client the exporter drives.
type Connector interface {
	AndroidVariant() bool
	ResetPermission()
	DecksAndModels(ctx context.Context) ([]string, []string, error)
	ModelFieldNames(ctx context.Context, modelName string) ([]string, error)
	FindNotes(ctx context.Context, query string) ([]int64, error)
	NotesInfo(ctx context.Context, ids []int64) ([]anki.NoteInfo, error)
	AddNote(ctx context.Context, note anki.Note) (int64, error)
	UpdateNote(ctx context.Context, note anki.Note) error
	StoreMediaFile(ctx context.Context, filename, data string) (string, error)
	SelectedNotes(ctx context.Context) ([]int64, error)
	SelectNote(ctx context.Context, id int64) error
	DeselectNotes(ctx context.Context) error
}

// Engine produces audio buffers for line groups.
type Engine interface {
	Extract(ctx context.Context, lines []subtitle.Line, opts extract.Options) ([]byte, error)
	CleanOutputs() error
}

// Source names the loaded documents. Empty names mean nothing is loaded.
type Source interface {
	SubtitleName() string
	AudioName() string
}

// FailureError aggregates per-group failures of a finished run.
type FailureError struct {
	Count int
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("%d Export(s) failed", e.Count)
}

// Exporter runs export jobs. One exporter serves one settings object.
type Exporter struct {
	cfg    *config.Settings
	client Connector
	engine Engine
	source Source

	// OnProgress receives completion percentages during a run.
	OnProgress func(percent int)
	// OnMergeExported fires after a fully successful merge run.
	OnMergeExported func()

	mu         sync.Mutex
	lastCardID int64
}

func NewExporter(cfg *config.Settings, client Connector, engine Engine, source Source) *Exporter {
	return &Exporter{cfg: cfg, client: client, engine: engine, source: source}
}

// LastCardID is the id of the most recently created or updated card.
func (e *Exporter) LastCardID() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastCardID
}

func (e *Exporter) setLastCardID(id int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastCardID = id
}

// verification is the outcome of checking the configured remote targets.
type verification struct {
	valid  bool
	fields []string
}

// verify checks deck, note type and configured fields against the remote
// service, clearing each offending setting. A transport failure clears all
// targets and resets the permission handshake.
func (e *Exporter) verify(ctx context.Context) (verification, error) {
	if e.cfg.AnkiURL == "" || e.cfg.AnkiDeck == "" || e.cfg.AnkiModel == "" {
		return verification{}, nil
	}

	result := verification{valid: true}

	decks, models, err := e.client.DecksAndModels(ctx)
	if err != nil {
		e.cfg.ResetAnkiTargets()
		e.client.ResetPermission()
		return verification{}, fmt.Errorf("Failed to verify Anki settings: %v", err)
	}

	if !contains(decks, e.cfg.AnkiDeck) {
		e.cfg.AnkiDeck = ""
		result.valid = false
	}
	if !contains(models, e.cfg.AnkiModel) {
		e.cfg.AnkiModel = ""
		result.valid = false
	}

	if !result.valid {
		return result, nil
	}

	fields, err := e.client.ModelFieldNames(ctx, e.cfg.AnkiModel)
	if err != nil {
		e.cfg.ResetAnkiTargets()
		e.client.ResetPermission()
		return verification{}, fmt.Errorf("Failed to verify Anki settings: %v", err)
	}

	if e.cfg.AnkiSentenceField != "" && !contains(fields, e.cfg.AnkiSentenceField) {
		e.cfg.AnkiSentenceField = ""
		result.valid = false
	}
	if e.cfg.AnkiSoundField != "" && !contains(fields, e.cfg.AnkiSoundField) {
		e.cfg.AnkiSoundField = ""
		result.valid = false
	}
	// A card needs at least one of a content field or an audio field.
	if e.cfg.AnkiSentenceField == "" && e.cfg.AnkiSoundField == "" {
		result.valid = false
	}

	result.fields = fields
	return result, nil
}

// lookupUpdateTarget finds the card added today that an update run rewrites.
func (e *Exporter) lookupUpdateTarget(ctx context.Context) (*anki.NoteInfo, error) {
	query := fmt.Sprintf("added:1 %q %q", "deck:"+e.cfg.AnkiDeck, "note:"+e.cfg.AnkiModel)

	ids, err := e.client.FindNotes(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("Failed to get card for update: %v", err)
	}
	if len(ids) == 0 {
		return nil, errors.New("Failed to get card for update: No card added today")
	}

	infos, err := e.client.NotesInfo(ctx, []int64{ids[len(ids)-1]})
	if err != nil {
		return nil, fmt.Errorf("Failed to get card for update: %v", err)
	}
	if len(infos) == 0 {
		return nil, errors.New("Failed to get card for update: Data for last added card not available")
	}

	return &infos[0], nil
}

// begin saves and clears the browse UI selection so note focusing during the
// run cannot touch user-selected notes. Returns the note to restore.
func (e *Exporter) begin(ctx context.Context) int64 {
	if e.client.AndroidVariant() {
		return 0
	}

	selected, err := e.client.SelectedNotes(ctx)
	if err != nil || len(selected) == 0 {
		return 0
	}

	if err := e.client.DeselectNotes(ctx); err != nil {
		log.Warn("failed to clear note selection: %v", err)
	}

	return selected[len(selected)-1]
}

// finalize restores UI selection and purges leftover audio buffers.
func (e *Exporter) finalize(ctx context.Context, restoreNote int64) {
	if err := e.engine.CleanOutputs(); err != nil {
		log.Warn("failed to clean audio buffers: %v", err)
	}

	if restoreNote != 0 {
		if err := e.client.SelectNote(ctx, restoreNote); err != nil {
			log.Debug("failed to restore note selection: %v", err)
		}
	}
}

// Run executes the job. It returns ErrAborted when canceled, a FailureError
// when some groups failed, nil when every group exported.
func (e *Exporter) Run(ctx context.Context, job *Job) error {
	subtitleName := e.source.SubtitleName()
	if subtitleName == "" || len(job.Groups) == 0 {
		return nil
	}

	check, err := e.verify(ctx)
	if err != nil {
		return err
	}

	blockedUpdate := job.Update && e.client.AndroidVariant()
	if !check.valid || blockedUpdate {
		var reasons []string
		if !check.valid {
			reasons = append(reasons, "Anki settings are invalid")
		}
		if blockedUpdate {
			reasons = append(reasons, "Your AnkiConnect does not support updates")
		}
		return errors.New(strings.Join(reasons, "; "))
	}

	var updateTarget *anki.NoteInfo
	if job.Update {
		updateTarget, err = e.lookupUpdateTarget(ctx)
		if err != nil {
			return err
		}
	}

	restoreNote := e.begin(ctx)

	baseSubtitleName := file.BaseName(subtitleName)
	baseAudioName := file.BaseName(e.source.AudioName())
	prefix := e.filenamePrefix(baseSubtitleName)
	total := len(job.Groups)

	failures := 0
	aborted := false

	for i, group := range job.Groups {
		if ctx.Err() != nil {
			aborted = true
			break
		}

		err := e.exportGroup(ctx, job, group, prefix, baseSubtitleName, baseAudioName, check.fields, updateTarget)
		if err != nil {
			if errors.Is(err, extract.ErrAborted) || ctx.Err() != nil {
				aborted = true
				break
			}

			log.Warn("Failed to create card for subtitle(s) %s: %v", groupIDs(group), err)
			failures++
		}

		if e.OnProgress != nil {
			percent := timeutil.Percentage(i+1, total)
			if percent > 100 {
				percent = 100
			}
			e.OnProgress(percent)
		}
	}

	e.finalize(context.WithoutCancel(ctx), restoreNote)

	if aborted {
		return extract.ErrAborted
	}
	if failures > 0 {
		return &FailureError{Count: failures}
	}

	if job.Merge && e.cfg.AnkiClearMergedSelection && e.OnMergeExported != nil {
		e.OnMergeExported()
	}

	return nil
}

// exportGroup creates or updates one card from one line group.
func (e *Exporter) exportGroup(
	ctx context.Context,
	job *Job,
	group []subtitle.Line,
	prefix, baseSubtitleName, baseAudioName string,
	fields []string,
	updateTarget *anki.NoteInfo,
) error {
	if len(group) == 0 {
		return errors.New("cannot process note because it is empty")
	}

	audioFileName := prefix + "-" + group[0].ID
	if len(group) > 1 {
		audioFileName += "-" + group[len(group)-1].ID
	}
	audioFileName += "." + string(e.cfg.ExportAudioFormat)

	sentences := make([]string, 0, len(group))
	for _, line := range group {
		sentences = append(sentences, strings.TrimSpace(line.Text))
	}
	sentenceContent := strings.Join(sentences, "<br/>")

	audioContent := ""
	if e.cfg.AnkiSoundField != "" && baseAudioName != "" {
		buffer, err := e.engine.Extract(ctx, group, extract.Options{ForExport: true, KeepFiles: true})
		if err != nil {
			return err
		}
		audioContent = base64.StdEncoding.EncodeToString(buffer)
	}

	tags := e.deriveTags(updateTarget, baseSubtitleName, baseAudioName)

	note := anki.Note{
		Fields: map[string]string{},
		Tags:   tags,
		Audio:  []anki.AudioAttachment{},
	}
	if updateTarget != nil {
		note.ID = updateTarget.NoteID
	} else {
		note.DeckName = e.cfg.AnkiDeck
		note.ModelName = e.cfg.AnkiModel
		note.Options = e.duplicateOptions()
	}

	for _, field := range fields {
		asSentence := field == e.cfg.AnkiSentenceField && sentenceContent != ""
		asAudio := field == e.cfg.AnkiSoundField && audioContent != ""

		existing := ""
		if updateTarget != nil {
			existing = updateTarget.Fields[field].Value
		}

		if !asSentence && !asAudio {
			note.Fields[field] = existing
			continue
		}

		value := ""
		if asSentence {
			value = sentenceContent
		}

		if asAudio {
			finalFileName := audioFileName

			if e.client.AndroidVariant() {
				stored, err := e.client.StoreMediaFile(ctx, audioFileName, audioContent)
				if err != nil {
					return err
				}
				finalFileName = stored
			} else {
				note.Audio = []anki.AudioAttachment{{
					Data:           audioContent,
					DeleteExisting: true,
					Filename:       audioFileName,
					Fields:         []string{""},
				}}
			}

			value = fieldValue(config.FieldModeAfter, value, "[sound:"+finalFileName+"]")
		}

		note.Fields[field] = fieldValue(e.cfg.ExportFieldMode, existing, value)
	}

	if len(fields) > 0 && strings.TrimSpace(note.Fields[fields[0]]) == "" {
		if e.emptyKeyFieldAllowed() {
			note.Fields[fields[0]] = fieldValue(e.cfg.ExportFieldMode, "", emptyFieldPlaceholder)
		} else {
			return errors.New("cannot process note because it is empty")
		}
	}

	if updateTarget != nil {
		if err := e.client.UpdateNote(ctx, note); err != nil {
			return err
		}
		e.setLastCardID(updateTarget.NoteID)
		return nil
	}

	id, err := e.client.AddNote(ctx, note)
	if err != nil {
		return err
	}
	if id == 0 {
		return errors.New("Got failure response")
	}
	e.setLastCardID(id)

	return nil
}

// deriveTags merges the update target's tags, the derived document tags and
// the static tag list, keeping first-seen order.
func (e *Exporter) deriveTags(updateTarget *anki.NoteInfo, baseSubtitleName, baseAudioName string) []string {
	tags := make([]string, 0, 4)
	seen := make(map[string]struct{})
	add := func(tag string) {
		if tag == "" {
			return
		}
		if _, dup := seen[tag]; dup {
			return
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}

	if updateTarget != nil {
		for _, tag := range updateTarget.Tags {
			add(tag)
		}
	}

	if e.cfg.AnkiAddSubtitleTag {
		add(file.TagName(baseSubtitleName))
	}
	if e.cfg.AnkiAddAudioTag && baseAudioName != "" {
		add(file.TagName(baseAudioName))
	}
	for _, tag := range e.cfg.TagList() {
		add(tag)
	}

	return tags
}

func (e *Exporter) duplicateOptions() *anki.NoteOptions {
	mode := e.cfg.AnkiDuplicateMode
	if mode == config.DuplicateDisabled {
		return &anki.NoteOptions{AllowDuplicate: true}
	}

	options := &anki.NoteOptions{
		AllowDuplicate: false,
		DuplicateScope: "collection",
		DuplicateScopeOptions: &anki.DuplicateScopeOptions{
			CheckChildren: mode == config.DuplicateSubdeck,
		},
	}
	if mode == config.DuplicateDeck || mode == config.DuplicateSubdeck {
		options.DuplicateScope = "deck"
	}
	if mode == config.DuplicateDeck {
		options.DuplicateScopeOptions.DeckName = e.cfg.AnkiDeck
	}

	return options
}

func (e *Exporter) emptyKeyFieldAllowed() bool {
	return e.cfg.AnkiDuplicateMode == config.DuplicateDisabled && e.cfg.AnkiAllowEmptyKeyField
}

// filenamePrefix namespaces exported audio files by their subtitle document.
func (e *Exporter) filenamePrefix(baseSubtitleName string) string {
	if e.cfg.ExportHashedFilenames {
		sum := sha256.Sum256([]byte(baseSubtitleName))
		return hex.EncodeToString(sum[:])[:16]
	}
	return file.SanitizeName(baseSubtitleName, 64)
}

// fieldValue combines an existing field value with new content per the
// configured placement mode.
func fieldValue(mode config.FieldMode, existing, value string) string {
	switch mode {
	case config.FieldModeBefore:
		if value != "" && existing != "" {
			return value + "<br/>" + existing
		}
		return value + existing
	case config.FieldModeAfter:
		if value != "" && existing != "" {
			return existing + "<br/>" + value
		}
		return existing + value
	default:
		return value
	}
}

func contains(values []string, value string) bool {
	for _, candidate := range values {
		if candidate == value {
			return true
		}
	}
	return false
}

func groupIDs(group []subtitle.Line) string {
	ids := make([]string, 0, len(group))
	for _, line := range group {
		ids = append(ids, line.ID)
	}
	return strings.Join(ids, ", ")
}
