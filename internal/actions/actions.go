// Package actions maps the closed user action vocabulary onto the subtitle
// store, the export orchestrator and the host player.
package actions

// Action is one entry of the closed action vocabulary. Values double as the
// user-facing labels, so they are stable.
type Action string

const (
	ActionNone                 Action = "None"
	ActionTogglePlayback       Action = "Toggle playback"
	ActionRewind               Action = "Rewind"
	ActionRewindAlt            Action = "Rewind #2"
	ActionFastForward          Action = "Fast-Forward"
	ActionFastForwardAlt       Action = "Fast-Forward #2"
	ActionRestartPlayback      Action = "Restart playback"
	ActionTogglePlayPause      Action = "Toggle play and pause"
	ActionTogglePlaybackLoop   Action = "Toggle playback loop"
	ActionToggleBookmark       Action = "Toggle bookmark"
	ActionToggleShowBookmarked Action = "Toggle menu bookmark filter"
	ActionToggleMerge          Action = "Toggle for merge"
	ActionToggleShowForMerge   Action = "Toggle menu merge filter"
	ActionAlignSubtitle        Action = "Align with book text"
	ActionEditSubtitle         Action = "Edit subtitle"
	ActionRestoreSubtitle      Action = "Restore original text and time"
	ActionCopySubtitle         Action = "Copy subtitle"
	ActionPreviousSubtitle     Action = "Go to previous subtitle"
	ActionNextSubtitle         Action = "Go to next subtitle"
	ActionExportNew            Action = "Create new card"
	ActionExportUpdate         Action = "Update last created card"
	ActionOpenLastExportedCard Action = "Open last exported card"
	ActionCancelExport         Action = "Cancel Export"
)

// All lists the vocabulary in menu order.
func All() []Action {
	return []Action{
		ActionNone,
		ActionTogglePlayback,
		ActionRewind,
		ActionRewindAlt,
		ActionFastForward,
		ActionFastForwardAlt,
		ActionRestartPlayback,
		ActionTogglePlayPause,
		ActionTogglePlaybackLoop,
		ActionToggleBookmark,
		ActionToggleShowBookmarked,
		ActionToggleMerge,
		ActionToggleShowForMerge,
		ActionAlignSubtitle,
		ActionEditSubtitle,
		ActionRestoreSubtitle,
		ActionCopySubtitle,
		ActionPreviousSubtitle,
		ActionNextSubtitle,
		ActionExportNew,
		ActionExportUpdate,
		ActionOpenLastExportedCard,
		ActionCancelExport,
	}
}
