package ffmpeg

import (
	"fmt"
	"strconv"

	"github.com/MimeLyc/whispercard/internal/config"
	"github.com/MimeLyc/whispercard/internal/timeutil"
)

var codecByFormat = map[config.AudioFormat]string{
	config.FormatOGG:  "libvorbis",
	config.FormatOpus: "opus",
	config.FormatMP3:  "libmp3lame",
}

// Codec maps an audio format to its encoder, defaulting to mp3.
func Codec(format config.AudioFormat) string {
	if codec, ok := codecByFormat[format]; ok {
		return codec
	}
	return "libmp3lame"
}

// TrimArgs builds the argument list that cuts [startSeconds, endSeconds) out
// of the input buffer into output. Export runs add the bitrate flag.
func TrimArgs(input string, startSeconds, endSeconds float64, format config.AudioFormat, bitrate int, forExport bool, output string) []string {
	args := []string{
		"-hide_banner",
		"-y",
		"-ss", timeutil.FormatSeconds(startSeconds),
		"-i", input,
		"-t", timeutil.FormatSeconds(endSeconds - startSeconds),
	}
	args = append(args, encodeArgs(format, bitrate, forExport)...)

	return append(args, output)
}

// ConcatArgs builds the argument list joining the given trimmed segments into
// finalOutput via the concat filter.
func ConcatArgs(segments []string, format config.AudioFormat, bitrate int, forExport bool, finalOutput string) []string {
	args := []string{"-hide_banner", "-y"}

	filter := ""
	for i, segment := range segments {
		args = append(args, "-i", segment)
		filter += fmt.Sprintf("[%d:a]", i)
	}

	filter += fmt.Sprintf("concat=n=%d:v=0:a=1", len(segments))
	args = append(args, "-filter_complex", filter)
	args = append(args, encodeArgs(format, bitrate, forExport)...)

	return append(args, finalOutput)
}

func encodeArgs(format config.AudioFormat, bitrate int, forExport bool) []string {
	var args []string

	if format == config.FormatOpus {
		args = append(args, "-strict", "-2")
	}

	args = append(args, "-vn", "-acodec", Codec(format))

	if forExport {
		args = append(args, "-b:a", strconv.Itoa(bitrate)+"k")
	}

	return append(args, "-write_xing", "0")
}
