package subtitle

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var srtTimeRegex = regexp.MustCompile(`(\d{2}):(\d{2}):(\d{2})[,.](\d{3}) --> (\d{2}):(\d{2}):(\d{2})[,.](\d{3})`)

// parseSRT reads the numbered block format:
//
//	<id>
//	<start> --> <end>
//	<text...>
//	<blank>
//
// IDs are taken verbatim from the source. Plain-text input reuses this
// parser.
func parseSRT(raw string) ([]cue, error) {
	var cues []cue

	scanner := bufio.NewScanner(strings.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	current := cue{}
	state := "index" // possible values: "index", "time", "text"
	var textLines []string

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch state {
		case "index":
			if line == "" {
				continue
			}
			if _, err := strconv.Atoi(line); err != nil {
				continue // skip non-index lines
			}
			current.id = line
			state = "time"

		case "time":
			if line == "" {
				continue
			}
			start, end, err := parseSRTTime(line)
			if err != nil {
				return nil, &ParseError{Format: FormatSRT, Message: "failed to parse time", Cause: err}
			}
			current.start = start
			current.end = end
			state = "text"
			textLines = nil

		case "text":
			if line == "" {
				// subtitle text ends
				if len(textLines) > 0 {
					current.text = strings.Join(textLines, "\n")
					cues = append(cues, current)
					current = cue{}
				}
				state = "index"
				textLines = nil
			} else {
				textLines = append(textLines, line)
			}
		}
	}

	// handle the last block when the input has no trailing blank line
	if state == "text" && len(textLines) > 0 {
		current.text = strings.Join(textLines, "\n")
		cues = append(cues, current)
	}

	if err := scanner.Err(); err != nil {
		return nil, &ParseError{Format: FormatSRT, Message: "failed to read input", Cause: err}
	}

	return cues, nil
}

func parseSRTTime(timeString string) (float64, float64, error) {
	matches := srtTimeRegex.FindStringSubmatch(timeString)
	if len(matches) != 9 {
		return 0, 0, fmt.Errorf("invalid time format: %s", timeString)
	}

	parse := func(hours, minutes, seconds, milliseconds string) float64 {
		h, _ := strconv.Atoi(hours)
		m, _ := strconv.Atoi(minutes)
		s, _ := strconv.Atoi(seconds)
		ms, _ := strconv.Atoi(milliseconds)

		return float64(h)*3600 + float64(m)*60 + float64(s) + float64(ms)/1000
	}

	return parse(matches[1], matches[2], matches[3], matches[4]),
		parse(matches[5], matches[6], matches[7], matches[8]),
		nil
}
