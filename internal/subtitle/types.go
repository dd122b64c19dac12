package subtitle

import "fmt"

// Format identifies the input dialect of a subtitle document.
type Format string

const (
	FormatSRT   Format = "srt"
	FormatVTT   Format = "vtt"
	FormatPlain Format = "txt"
)

// Line represents a single timed text span. OriginalText and the original
// second values are the immutable source of truth; Text and the effective
// second values are what edits, padding and alignment act on.
type Line struct {
	ID                   string   `json:"id"`
	SubIndex             int      `json:"subIndex"`
	OriginalStartSeconds float64  `json:"originalStartSeconds"`
	OriginalEndSeconds   float64  `json:"originalEndSeconds"`
	OriginalText         string   `json:"originalText"`
	StartSeconds         float64  `json:"startSeconds"`
	EndSeconds           float64  `json:"endSeconds"`
	StartTime            string   `json:"startTime"`
	EndTime              string   `json:"endTime"`
	AdjustedStartSeconds *float64 `json:"adjustedStartSeconds,omitempty"`
	AdjustedEndSeconds   *float64 `json:"adjustedEndSeconds,omitempty"`
	Text                 string   `json:"text"`
}

// Timing carries manual start/end values for an edit.
type Timing struct {
	StartSeconds float64
	EndSeconds   float64
}

// ParseError is returned when subtitle input cannot be parsed. The
// collection held by the store is left unchanged.
type ParseError struct {
	Format  Format
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to parse %s subtitles: %s: %v", e.Format, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to parse %s subtitles: %s", e.Format, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// cue is one parsed block before padding and identity assignment.
type cue struct {
	id    string
	start float64
	end   float64
	text  string
}
