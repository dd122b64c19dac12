package actions

import (
	"context"
	"fmt"
	"sync"

	"github.com/MimeLyc/whispercard/internal/export"
	"github.com/MimeLyc/whispercard/internal/subtitle"
	"github.com/MimeLyc/whispercard/pkg/log"
)

// PlayRequest asks the host player to act on a line run.
type PlayRequest struct {
	Action         Action
	Lines          []subtitle.Line
	SkipUpdates    bool
	KeepPauseState bool
}

// PlaybackController is implemented by the host player.
type PlaybackController interface {
	TogglePause()
	Skip(action Action)
	PlayLine(request PlayRequest)
}

// Clipboard receives copied subtitle text.
type Clipboard interface {
	WriteText(text string) error
}

// Editor opens the host's edit flow for a line; the host applies the result
// through the subtitle store.
type Editor interface {
	EditLine(ctx context.Context, line subtitle.Line) error
}

// ExportRunner runs export jobs and remembers the last touched card.
type ExportRunner interface {
	Run(ctx context.Context, job *export.Job) error
	LastCardID() int64
}

// CardBrowser opens the note UI for a search query.
type CardBrowser interface {
	Browse(ctx context.Context, query string) ([]int64, error)
}

// Options tune a single dispatch.
type Options struct {
	// MergeSubtitles exports all given lines as one card.
	MergeSubtitles bool
	SkipUpdates    bool
	KeepPauseState bool
	// PersistAlignment persists align results (subject to the persist
	// setting).
	PersistAlignment bool
	// IgnoreSkipKeys overrides the skip-key suppression for this call.
	IgnoreSkipKeys bool
}

// DefaultOptions matches an unconfigured key binding.
func DefaultOptions() Options {
	return Options{PersistAlignment: true}
}

// Dispatcher executes actions. At most one export job is active at a time;
// a second export request while one runs is ignored, and cancel only acts on
// a live, not yet signaled job.
type Dispatcher struct {
	store    *subtitle.Store
	playback PlaybackController
	clip     Clipboard
	editor   Editor
	exporter ExportRunner
	browser  CardBrowser

	mu             sync.Mutex
	bookText       subtitle.TextLookup
	bookmarks      map[string]struct{}
	mergeSet       map[string]struct{}
	showBookmarked bool
	showMerge      bool
	skipKeys       bool
	recording      bool
	exportCancel   context.CancelFunc
	exportDone     <-chan struct{}
}

func NewDispatcher(
	store *subtitle.Store,
	playback PlaybackController,
	clip Clipboard,
	editor Editor,
	exporter ExportRunner,
	browser CardBrowser,
) *Dispatcher {
	return &Dispatcher{
		store:     store,
		playback:  playback,
		clip:      clip,
		editor:    editor,
		exporter:  exporter,
		browser:   browser,
		bookmarks: make(map[string]struct{}),
		mergeSet:  make(map[string]struct{}),
	}
}

// SetBookText installs the lookup used by the align action. A nil lookup
// disables aligning.
func (d *Dispatcher) SetBookText(lookup subtitle.TextLookup) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bookText = lookup
}

// SetSkipKeys suppresses dispatches while a host input field has focus.
func (d *Dispatcher) SetSkipKeys(value bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.skipKeys = value
}

// SetRecording blocks playback actions while a live capture runs.
func (d *Dispatcher) SetRecording(value bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recording = value
}

// Bookmarked returns the bookmarked line ids.
func (d *Dispatcher) Bookmarked() []string { return d.selection(&d.bookmarks) }

// ForMerge returns the line ids queued for a merge export.
func (d *Dispatcher) ForMerge() []string { return d.selection(&d.mergeSet) }

func (d *Dispatcher) selection(set *map[string]struct{}) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]string, 0, len(*set))
	for id := range *set {
		ids = append(ids, id)
	}
	return ids
}

// ShowBookmarkedOnly reports the bookmark menu filter state.
func (d *Dispatcher) ShowBookmarkedOnly() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.showBookmarked
}

// ShowForMergeOnly reports the merge menu filter state.
func (d *Dispatcher) ShowForMergeOnly() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.showMerge
}

// ClearMergeSelection empties the merge selection, used after a clean merge
// export.
func (d *Dispatcher) ClearMergeSelection() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mergeSet = make(map[string]struct{})
}

// ExportActive reports whether an export job is currently running.
func (d *Dispatcher) ExportActive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.exportCancel != nil
}

// Dispatch executes one action over the given lines.
func (d *Dispatcher) Dispatch(ctx context.Context, action Action, lines []subtitle.Line, opts Options) error {
	d.mu.Lock()
	suppressed := d.skipKeys && !opts.IgnoreSkipKeys
	recording := d.recording
	exporting := d.exportCancel != nil
	d.mu.Unlock()

	if action == ActionNone || len(lines) == 0 || suppressed {
		return nil
	}

	switch action {
	case ActionTogglePlayback:
		if !recording {
			d.playback.TogglePause()
		}

	case ActionRewind, ActionRewindAlt, ActionFastForward, ActionFastForwardAlt:
		if !recording {
			d.playback.Skip(action)
		}

	case ActionRestartPlayback, ActionTogglePlayPause, ActionTogglePlaybackLoop:
		if !recording {
			d.playback.PlayLine(PlayRequest{
				Action:         action,
				Lines:          lines,
				SkipUpdates:    opts.SkipUpdates,
				KeepPauseState: opts.KeepPauseState,
			})
		}

	case ActionToggleBookmark:
		d.toggle(&d.bookmarks, lines[0].ID)

	case ActionToggleShowBookmarked:
		d.mu.Lock()
		d.showBookmarked = !d.showBookmarked
		d.mu.Unlock()

	case ActionToggleMerge:
		d.toggle(&d.mergeSet, lines[0].ID)

	case ActionToggleShowForMerge:
		d.mu.Lock()
		d.showMerge = !d.showMerge
		d.mu.Unlock()

	case ActionEditSubtitle:
		if !exporting && d.editor != nil {
			return d.editor.EditLine(ctx, lines[0])
		}

	case ActionAlignSubtitle:
		d.mu.Lock()
		lookup := d.bookText
		d.mu.Unlock()

		if exporting || lookup == nil {
			return nil
		}

		_, err := d.store.Align(ctx, lineIDs(lines), lookup)
		if err != nil {
			return fmt.Errorf("Failed to align: %v", err)
		}

	case ActionRestoreSubtitle:
		if !exporting {
			_, err := d.store.Restore(ctx, lineIDs(lines))
			return err
		}

	case ActionCopySubtitle:
		if err := d.clip.WriteText(lines[0].Text); err != nil {
			log.Warn("failed to copy subtitle: %v", err)
		}

	case ActionPreviousSubtitle, ActionNextSubtitle:
		if !recording {
			d.playNeighbor(action, lines[0], opts)
		}

	case ActionExportNew, ActionExportUpdate:
		if exporting {
			return nil
		}
		return d.runExport(ctx, action, lines, opts)

	case ActionOpenLastExportedCard:
		if exporting {
			return nil
		}
		if id := d.exporter.LastCardID(); id != 0 {
			if _, err := d.browser.Browse(ctx, fmt.Sprintf("nid:%d", id)); err != nil {
				return err
			}
		}

	case ActionCancelExport:
		d.mu.Lock()
		cancel := d.exportCancel
		d.exportCancel = nil
		d.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	}

	return nil
}

func (d *Dispatcher) toggle(set *map[string]struct{}, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := (*set)[id]; ok {
		delete(*set, id)
	} else {
		(*set)[id] = struct{}{}
	}
}

// playNeighbor restarts playback on the adjacent line, clamped at either end.
func (d *Dispatcher) playNeighbor(action Action, current subtitle.Line, opts Options) {
	collection := d.store.Collection()
	if collection == nil || collection.Len() == 0 {
		return
	}

	index := current.SubIndex
	if action == ActionPreviousSubtitle {
		index--
	} else {
		index++
	}
	if index < 0 {
		index = 0
	}
	if index > collection.Len()-1 {
		index = collection.Len() - 1
	}

	target, ok := collection.At(index)
	if !ok {
		return
	}

	d.playback.PlayLine(PlayRequest{
		Action:         ActionRestartPlayback,
		Lines:          []subtitle.Line{target},
		SkipUpdates:    opts.SkipUpdates,
		KeepPauseState: true,
	})
}

// runExport claims the export slot, runs the job and releases the slot.
func (d *Dispatcher) runExport(ctx context.Context, action Action, lines []subtitle.Line, opts Options) error {
	groups := export.SingleGroups(lines)
	if opts.MergeSubtitles {
		groups = [][]subtitle.Line{lines}
	}
	job := export.NewJob(groups, action == ActionExportUpdate, opts.MergeSubtitles)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	d.mu.Lock()
	if d.exportCancel != nil {
		d.mu.Unlock()
		cancel()
		return nil
	}
	d.exportCancel = cancel
	d.exportDone = done
	d.mu.Unlock()

	defer func() {
		cancel()
		close(done)
		d.mu.Lock()
		d.exportCancel = nil
		d.exportDone = nil
		d.mu.Unlock()
	}()

	return d.exporter.Run(runCtx, job)
}

func lineIDs(lines []subtitle.Line) []string {
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ID)
	}
	return ids
}
