package export

import (
	"github.com/google/uuid"

	"github.com/MimeLyc/whispercard/internal/subtitle"
)

// Job is one export run: an ordered list of line groups, each becoming a
// single card (or a single update of the last created card).
type Job struct {
	ID     string
	Groups [][]subtitle.Line
	// Update rewrites the most recently added card instead of creating.
	Update bool
	// Merge marks a run whose single group was built from the merge
	// selection.
	Merge bool
}

// NewJob wraps the given line groups. Groups keep their order; lines inside a
// group keep theirs.
func NewJob(groups [][]subtitle.Line, update, merge bool) *Job {
	return &Job{
		ID:     uuid.NewString(),
		Groups: groups,
		Update: update,
		Merge:  merge,
	}
}

// SingleGroups splits lines into one group per line, the non-merge shape.
func SingleGroups(lines []subtitle.Line) [][]subtitle.Line {
	groups := make([][]subtitle.Line, 0, len(lines))
	for _, line := range lines {
		groups = append(groups, []subtitle.Line{line})
	}
	return groups
}
