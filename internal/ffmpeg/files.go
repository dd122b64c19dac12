package ffmpeg

import (
	"fmt"
	"strings"
)

const (
	inputPrefix  = "audio_input"
	outputPrefix = "audio_output"
)

// InputName is the input buffer name for an audio file extension.
func InputName(ext string) string {
	return inputPrefix + "." + strings.TrimPrefix(ext, ".")
}

// SegmentName is the per-line trim output buffer name.
func SegmentName(index int, format string) string {
	return fmt.Sprintf("%s_%d.%s", outputPrefix, index, format)
}

// FinalOutputName is the buffer holding the finished audio: the single trim
// output when one line was cut, otherwise the concatenated result.
func FinalOutputName(segments int, format string) string {
	if segments == 1 {
		return SegmentName(0, format)
	}
	return outputPrefix + "." + format
}

// CleanFiles removes output buffers, and input buffers too when cleanInput is
// set. Individual delete failures are ignored.
func CleanFiles(tc Toolchain, cleanInput bool) error {
	if !tc.Loaded() {
		return nil
	}

	names, err := tc.ListDir()
	if err != nil {
		return err
	}

	for _, name := range names {
		if strings.HasPrefix(name, outputPrefix) || (cleanInput && strings.HasPrefix(name, inputPrefix)) {
			_ = tc.DeleteFile(name)
		}
	}

	return nil
}

// PutAudioFile replaces the input namespace with the given audio content.
// A nil payload just clears the namespace.
func PutAudioFile(tc Toolchain, ext string, data []byte) error {
	if !tc.Loaded() {
		return nil
	}

	if err := CleanFiles(tc, true); err != nil {
		return fmt.Errorf("failed to update toolchain files - %w", err)
	}

	if data == nil {
		return nil
	}

	if err := tc.WriteFile(InputName(ext), data); err != nil {
		return fmt.Errorf("failed to update toolchain files - %w", err)
	}

	return nil
}
