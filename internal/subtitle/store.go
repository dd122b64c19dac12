package subtitle

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/MimeLyc/whispercard/internal/config"
	"github.com/MimeLyc/whispercard/internal/timeutil"
	"github.com/MimeLyc/whispercard/pkg/log"
)

// Persister stores the full subtitle payload for a document. A failed
// write is reported but never rolls back the in-memory state.
type Persister interface {
	PutSubtitles(ctx context.Context, documentName string, lines []Line) error
}

// TextLookup resolves the source text span for a line ID against the
// external book-text tree. Implemented by booktext.Tree.
type TextLookup interface {
	TextForLine(id string) (string, bool)
}

// Store owns the active line collection. All mutations run on a single
// logical thread; only the persistence step of Edit is asynchronous.
type Store struct {
	cfg     *config.Settings
	persist Persister

	documentName string
	collection   *Collection
	duration     float64

	// alignDelay gives the external source tree time to settle before
	// Align queries it.
	alignDelay time.Duration

	// OnPersistError receives failures of the fire-and-forget persistence
	// step of Edit.
	OnPersistError func(error)
}

func NewStore(cfg *config.Settings, persist Persister) *Store {
	return &Store{
		cfg:        cfg,
		persist:    persist,
		alignDelay: 100 * time.Millisecond,
		OnPersistError: func(err error) {
			log.Warn("%v", err)
		},
	}
}

// SetDuration records the media duration used as the upper clamp bound.
// Zero means unknown; the upper bound is then left open.
func (s *Store) SetDuration(seconds float64) {
	s.duration = math.Max(0, seconds)
}

func (s *Store) Duration() float64 {
	return s.duration
}

func (s *Store) Collection() *Collection {
	return s.collection
}

func (s *Store) DocumentName() string {
	return s.documentName
}

// Load parses rawText and replaces the active collection wholesale. On a
// parse failure the previous collection is left untouched.
func (s *Store) Load(documentName, rawText string, format Format) (*Collection, error) {
	var cues []cue
	var err error

	switch format {
	case FormatSRT, FormatPlain:
		cues, err = parseSRT(rawText)
	case FormatVTT:
		cues, err = parseVTT(rawText)
		for i := range cues {
			cues[i].id = strconv.Itoa(i + 1)
		}
	default:
		return nil, &ParseError{Format: format, Message: "file needs to be .srt, .txt or .vtt"}
	}
	if err != nil {
		return nil, err
	}

	collection := newCollection(format)
	for index, c := range cues {
		start, end := s.effectiveTimes(c.start, c.end)
		text := trimText(c.text)

		collection.add(Line{
			ID:                   c.id,
			SubIndex:             index,
			OriginalStartSeconds: c.start,
			OriginalEndSeconds:   c.end,
			OriginalText:         text,
			StartSeconds:         start,
			EndSeconds:           end,
			StartTime:            timeutil.ToTimeStamp(start),
			EndTime:              timeutil.ToTimeStamp(end),
			Text:                 text,
		})
	}
	collection.Language = detectLanguage(collection.Lines())

	s.collection = collection
	s.documentName = documentName

	log.Info("Loaded %d subtitle line(s) from %s", collection.Len(), documentName)

	return collection, nil
}

// ApplyStored overlays previously persisted edits onto the loaded
// collection. Lines match by id; the parsed original fields stay
// authoritative, only effective text and timing come from the stored
// payload. Returns the number of lines updated.
func (s *Store) ApplyStored(lines []Line) int {
	if s.collection == nil {
		return 0
	}

	applied := 0
	for _, stored := range lines {
		current, ok := s.collection.Get(stored.ID)
		if !ok {
			continue
		}
		current.Text = stored.Text
		current.StartSeconds = stored.StartSeconds
		current.EndSeconds = stored.EndSeconds
		current.StartTime = stored.StartTime
		current.EndTime = stored.EndTime
		current.AdjustedStartSeconds = stored.AdjustedStartSeconds
		current.AdjustedEndSeconds = stored.AdjustedEndSeconds
		if s.collection.set(current) {
			applied++
		}
	}

	if applied > 0 {
		log.Info("Restored %d persisted subtitle line(s) for %s", applied, s.documentName)
	}
	return applied
}

// EditRequest carries the new effective text and, optionally, manual
// timing for one line.
type EditRequest struct {
	Text   string
	Timing *Timing
}

// Edit replaces the effective text/timing of one line. Original text and
// timing are preserved. Persistence runs fire-and-forget; its failure is
// reported through OnPersistError.
func (s *Store) Edit(ctx context.Context, id string, req EditRequest) (Line, error) {
	line, ok := s.collection.Get(id)
	if !ok {
		return Line{}, fmt.Errorf("no subtitle with id %s", id)
	}

	line.Text = trimText(req.Text)

	if req.Timing != nil {
		start := math.Max(0, req.Timing.StartSeconds)
		end := math.Max(0, req.Timing.EndSeconds)
		if s.duration > 0 {
			end = timeutil.Between(0, s.duration, end)
		}
		if start > end {
			return Line{}, fmt.Errorf("invalid timing: start %s after end %s",
				timeutil.FormatSeconds(start), timeutil.FormatSeconds(end))
		}

		paddedStart, paddedEnd := s.effectiveTimes(line.OriginalStartSeconds, line.OriginalEndSeconds)

		line.StartSeconds = start
		line.EndSeconds = end
		line.StartTime = timeutil.ToTimeStamp(start)
		line.EndTime = timeutil.ToTimeStamp(end)
		line.AdjustedStartSeconds = nil
		line.AdjustedEndSeconds = nil
		if start != paddedStart {
			line.AdjustedStartSeconds = &start
		}
		if end != paddedEnd {
			line.AdjustedEndSeconds = &end
		}
	}

	s.collection.set(line)
	s.persistAsync(ctx)

	return line, nil
}

// RestoreResult reports which lines a restore actually changed. Only the
// TimeChanged subset needs external re-synchronization.
type RestoreResult struct {
	Changed     []Line
	TimeChanged []Line
}

// Restore recomputes effective timing from the original values plus the
// current global padding and resets text to the original. Lines already
// at their effective values are left alone and not reported.
func (s *Store) Restore(ctx context.Context, ids []string) (RestoreResult, error) {
	var ret RestoreResult

	for _, id := range ids {
		line, ok := s.collection.Get(id)
		if !ok {
			continue
		}

		start, end := s.effectiveTimes(line.OriginalStartSeconds, line.OriginalEndSeconds)
		hasTextDiff := line.Text != line.OriginalText
		hasTimeDiff := (line.AdjustedStartSeconds != nil && *line.AdjustedStartSeconds != start) ||
			(line.AdjustedEndSeconds != nil && *line.AdjustedEndSeconds != end)

		line.AdjustedStartSeconds = nil
		line.AdjustedEndSeconds = nil

		if !hasTextDiff && !hasTimeDiff {
			s.collection.set(line)
			continue
		}

		line.StartSeconds = start
		line.EndSeconds = end
		line.StartTime = timeutil.ToTimeStamp(start)
		line.EndTime = timeutil.ToTimeStamp(end)
		line.Text = line.OriginalText
		s.collection.set(line)

		ret.Changed = append(ret.Changed, line)
		if hasTimeDiff {
			ret.TimeChanged = append(ret.TimeChanged, line)
		}
	}

	if len(ret.Changed) == 0 {
		return ret, nil
	}

	return ret, s.persistNow(ctx)
}

// Align re-extracts the text of the targeted lines from the external
// source tree and replaces the effective text where it drifted. Original
// text and timing never change. Returns only the lines that changed.
func (s *Store) Align(ctx context.Context, ids []string, lookup TextLookup) ([]Line, error) {
	// let the source tree reach a stable, queryable state
	select {
	case <-time.After(s.alignDelay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var changed []Line

	for _, id := range ids {
		line, ok := s.collection.Get(id)
		if !ok {
			continue
		}

		extracted, found := lookup.TextForLine(id)
		if !found {
			continue
		}
		if extracted == line.Text || extracted == line.OriginalText {
			continue
		}

		line.Text = extracted
		s.collection.set(line)
		changed = append(changed, line)
	}

	if len(changed) == 0 {
		return nil, nil
	}

	return changed, s.persistNow(ctx)
}

// effectiveTimes applies the global padding and clamps into the valid
// range: the lower bound is always 0, the upper bound is the media
// duration when known.
func (s *Store) effectiveTimes(originalStart, originalEnd float64) (float64, float64) {
	start := math.Max(0, originalStart+s.cfg.StartPaddingSeconds())

	end := originalEnd + s.cfg.EndPaddingSeconds()
	if s.duration > 0 {
		end = timeutil.Between(0, s.duration, end)
	} else {
		end = math.Max(0, end)
	}

	// padding must never invert a line
	if start > end {
		start = end
	}

	return start, end
}

func (s *Store) persistAsync(ctx context.Context) {
	if s.persist == nil || !s.cfg.SubtitlesEnablePersist {
		return
	}

	name := s.documentName
	lines := s.collection.Lines()
	go func() {
		if err := s.persist.PutSubtitles(context.WithoutCancel(ctx), name, lines); err != nil {
			s.OnPersistError(fmt.Errorf("Failed to persist subtitles - %v", err))
		}
	}()
}

func (s *Store) persistNow(ctx context.Context) error {
	if s.persist == nil || !s.cfg.SubtitlesEnablePersist {
		return nil
	}

	if err := s.persist.PutSubtitles(ctx, s.documentName, s.collection.Lines()); err != nil {
		return fmt.Errorf("Failed to persist subtitles - %v", err)
	}
	return nil
}

func trimText(text string) string {
	return strings.TrimSpace(text)
}
