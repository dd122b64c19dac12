package ffmpeg

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/MimeLyc/whispercard/internal/timeutil"
	"github.com/MimeLyc/whispercard/pkg/log"
)

// Chapter is a named position inside the loaded audio file.
type Chapter struct {
	Key          string
	Label        string
	StartSeconds float64
	StartText    string
}

var (
	chapterTimeRegex  = regexp.MustCompile(`(?i)chapter.+start (\d+\.\d+), end`)
	chapterLabelRegex = regexp.MustCompile(`(?i)title.+:(.+)`)
)

// chapterScanner consumes toolchain log lines pairwise: a chapter timing line
// followed by its title line.
type chapterScanner struct {
	waitingForTime bool
	pendingStart   float64
	chapters       []Chapter
}

func newChapterScanner() *chapterScanner {
	return &chapterScanner{waitingForTime: true}
}

func (s *chapterScanner) consume(line string) {
	if s.waitingForTime {
		match := chapterTimeRegex.FindStringSubmatch(line)
		if len(match) != 2 {
			return
		}

		start, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			return
		}

		s.pendingStart = start
		s.waitingForTime = false
		return
	}

	match := chapterLabelRegex.FindStringSubmatch(line)
	if len(match) != 2 {
		return
	}

	label := strings.TrimSpace(match[1])
	s.chapters = append(s.chapters, Chapter{
		Key:          fmt.Sprintf("%s_%s", label, timeutil.FormatSeconds(s.pendingStart)),
		Label:        label,
		StartSeconds: s.pendingStart,
		StartText:    timeutil.ToTimeString(s.pendingStart),
	})

	s.waitingForTime = true
	s.pendingStart = 0
}

// Chapters probes the loaded input buffer and parses chapter markers out of
// the toolchain's diagnostic output. Probe failures yield an empty list.
func Chapters(ctx context.Context, tc Toolchain, ext string) []Chapter {
	if !tc.Loaded() {
		return nil
	}

	scanner := newChapterScanner()
	unsubscribe := tc.Subscribe(func(event LogEvent) {
		scanner.consume(event.Message)
	})
	defer unsubscribe()

	// Probing has no output file, so the run itself reports an error.
	if err := tc.Exec(ctx, []string{"-hide_banner", "-y", "-i", InputName(ext)}); err != nil {
		log.Debug("chapter probe finished: %v", err)
	}

	return scanner.chapters
}
