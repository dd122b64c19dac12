package subtitle

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var vttTimeRegex = regexp.MustCompile(`(?:(\d+):)?(\d{2}):(\d{2})[.,](\d{3})`)

// parseVTT reads the cue-track format: a timing line
// "<start> --> <end>" followed by text lines. Cue identifiers, the WEBVTT
// header and NOTE/STYLE/REGION blocks are skipped; callers assign 1-based
// sequential IDs.
func parseVTT(raw string) ([]cue, error) {
	var cues []cue

	scanner := bufio.NewScanner(strings.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var current *cue
	var textLines []string
	skipBlock := false

	flush := func() {
		if current != nil {
			current.text = strings.Join(textLines, "\n")
			cues = append(cues, *current)
		}
		current = nil
		textLines = nil
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" {
			flush()
			skipBlock = false
			continue
		}

		if skipBlock {
			continue
		}

		if current != nil {
			textLines = append(textLines, line)
			continue
		}

		if strings.HasPrefix(line, "WEBVTT") ||
			strings.HasPrefix(line, "NOTE") ||
			strings.HasPrefix(line, "STYLE") ||
			strings.HasPrefix(line, "REGION") {
			skipBlock = true
			continue
		}

		if strings.Contains(line, "-->") {
			start, end, err := parseVTTTime(line)
			if err != nil {
				return nil, &ParseError{Format: FormatVTT, Message: "failed to parse cue timing", Cause: err}
			}
			current = &cue{start: start, end: end}
		}
		// anything else before a timing line is a cue identifier; ignored
	}

	flush()

	if err := scanner.Err(); err != nil {
		return nil, &ParseError{Format: FormatVTT, Message: "failed to read input", Cause: err}
	}

	return cues, nil
}

func parseVTTTime(timeString string) (float64, float64, error) {
	parts := strings.SplitN(timeString, "-->", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid cue timing: %s", timeString)
	}

	start, err := parseVTTStamp(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}
	// trailing cue settings after the end stamp are allowed
	end, err := parseVTTStamp(strings.Fields(strings.TrimSpace(parts[1]))[0])
	if err != nil {
		return 0, 0, err
	}

	return start, end, nil
}

func parseVTTStamp(stamp string) (float64, error) {
	matches := vttTimeRegex.FindStringSubmatch(stamp)
	if matches == nil {
		return 0, fmt.Errorf("invalid cue timestamp: %s", stamp)
	}

	h := 0
	if matches[1] != "" {
		h, _ = strconv.Atoi(matches[1])
	}
	m, _ := strconv.Atoi(matches[2])
	s, _ := strconv.Atoi(matches[3])
	ms, _ := strconv.Atoi(matches[4])

	return float64(h)*3600 + float64(m)*60 + float64(s) + float64(ms)/1000, nil
}
