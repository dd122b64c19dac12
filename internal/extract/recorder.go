package extract

import (
	"context"

	"github.com/MimeLyc/whispercard/internal/config"
	"github.com/MimeLyc/whispercard/internal/subtitle"
)

// PlaybackTap captures the host player's output while it plays the given
// lines, returning the encoded buffer.
type PlaybackTap interface {
	Capture(ctx context.Context, lines []subtitle.Line, bitrate int) ([]byte, error)
}

// Recorder extracts audio by replaying lines through a playback tap.
type Recorder struct {
	cfg *config.Settings
	tap PlaybackTap
}

func NewRecorder(cfg *config.Settings, tap PlaybackTap) *Recorder {
	return &Recorder{cfg: cfg, tap: tap}
}

func (r *Recorder) Extract(ctx context.Context, lines []subtitle.Line, _ Options) ([]byte, error) {
	if len(lines) == 0 {
		return nil, ErrNoBuffer
	}

	buffer, err := r.tap.Capture(ctx, lines, r.cfg.ExportAudioBitrate)
	if err != nil {
		return nil, classify(ctx, err)
	}
	if err := aborted(ctx); err != nil {
		return nil, err
	}
	if len(buffer) == 0 {
		return nil, ErrNoBuffer
	}

	return buffer, nil
}
