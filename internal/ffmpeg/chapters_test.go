package ffmpeg

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChapterScanner(t *testing.T) {
	scanner := newChapterScanner()

	lines := []string{
		"Input #0, mov,mp4,m4a, from 'audio_input.m4b':",
		"    Chapter #0:0: start 0.000000, end 1525.000000",
		"      title           : Prologue",
		"    Chapter #0:1: start 1525.000000, end 3061.500000",
		"      title           : Chapter One",
	}
	for _, line := range lines {
		scanner.consume(line)
	}

	require.Len(t, scanner.chapters, 2)
	require.Equal(t, "Prologue", scanner.chapters[0].Label)
	require.Equal(t, 0.0, scanner.chapters[0].StartSeconds)
	require.Equal(t, "00:00:00", scanner.chapters[0].StartText)
	require.Equal(t, "Chapter One", scanner.chapters[1].Label)
	require.Equal(t, 1525.0, scanner.chapters[1].StartSeconds)
	require.Equal(t, "00:25:25", scanner.chapters[1].StartText)
	require.Equal(t, "Chapter One_1525", scanner.chapters[1].Key)
}

func TestChapterScannerIgnoresUnrelatedLines(t *testing.T) {
	scanner := newChapterScanner()

	scanner.consume("Duration: 01:02:03.04, start: 0.000000, bitrate: 64 kb/s")
	scanner.consume("      title           : orphan title before any chapter")

	require.Empty(t, scanner.chapters)
}
