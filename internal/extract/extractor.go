// Package extract turns ordered subtitle lines into a single audio buffer,
// either by transcoding the loaded file or by capturing live playback.
package extract

import (
	"context"
	"sync"

	"github.com/MimeLyc/whispercard/internal/config"
	"github.com/MimeLyc/whispercard/internal/ffmpeg"
	"github.com/MimeLyc/whispercard/internal/subtitle"
	"github.com/MimeLyc/whispercard/pkg/log"
)

// Options control a single extraction run.
type Options struct {
	// ForExport enables the configured export bitrate.
	ForExport bool
	// KeepFiles leaves the output namespace in place for the caller to
	// clean up after a batch of runs.
	KeepFiles bool
}

// Extractor produces one audio buffer for an ordered run of subtitle lines.
type Extractor interface {
	Extract(ctx context.Context, lines []subtitle.Line, opts Options) ([]byte, error)
}

// Transcoder cuts line ranges out of the loaded audio file with the
// toolchain and concatenates them when more than one line is requested.
type Transcoder struct {
	cfg *config.Settings
	tc  ffmpeg.Toolchain

	mu       sync.Mutex
	inputExt string
}

func NewTranscoder(cfg *config.Settings, tc ffmpeg.Toolchain) *Transcoder {
	return &Transcoder{cfg: cfg, tc: tc, inputExt: "mp3"}
}

// Init prepares the toolchain. On failure the configured processor is
// switched to the recorder strategy before the error is returned.
func (t *Transcoder) Init(ctx context.Context) error {
	if err := t.tc.Init(ctx); err != nil {
		t.cfg.ExportAudioProcessor = config.ProcessorRecorder
		return &InitError{Cause: err}
	}
	return nil
}

// SetInputExt records the extension of the currently loaded audio file.
func (t *Transcoder) SetInputExt(ext string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputExt = ext
}

func (t *Transcoder) InputExt() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inputExt
}

func (t *Transcoder) Extract(ctx context.Context, lines []subtitle.Line, opts Options) ([]byte, error) {
	if len(lines) == 0 {
		return nil, ErrNoBuffer
	}

	format := string(t.cfg.ExportAudioFormat)
	input := ffmpeg.InputName(t.InputExt())
	finalOutput := ffmpeg.FinalOutputName(len(lines), format)

	if t.cfg.EnableFFMPEGLog {
		unsubscribe := t.tc.Subscribe(func(event ffmpeg.LogEvent) {
			log.Debug("toolchain: %s", event.Message)
		})
		defer unsubscribe()
	}

	var (
		segments []string
		buffer   []byte
		failure  error
	)

	for i, line := range lines {
		if failure = aborted(ctx); failure != nil {
			break
		}

		output := ffmpeg.SegmentName(i, format)
		args := ffmpeg.TrimArgs(input, line.StartSeconds, line.EndSeconds, t.cfg.ExportAudioFormat, t.cfg.ExportAudioBitrate, opts.ForExport, output)
		segments = append(segments, output)

		if err := t.tc.Exec(ctx, args); err != nil {
			failure = classify(ctx, err)
			break
		}
	}

	if failure == nil && len(lines) > 1 {
		args := ffmpeg.ConcatArgs(segments, t.cfg.ExportAudioFormat, t.cfg.ExportAudioBitrate, opts.ForExport, finalOutput)
		if err := t.tc.Exec(ctx, args); err != nil {
			failure = classify(ctx, err)
		}
	}

	if failure == nil {
		data, err := t.tc.ReadFile(finalOutput)
		if err != nil {
			failure = classify(ctx, err)
		} else {
			buffer = data
		}
	}

	if !opts.KeepFiles {
		if err := ffmpeg.CleanFiles(t.tc, false); err != nil {
			log.Warn("failed to clean output buffers: %v", err)
		}
	}

	if failure != nil {
		return nil, failure
	}
	if err := aborted(ctx); err != nil {
		return nil, err
	}
	if len(buffer) == 0 {
		return nil, ErrNoBuffer
	}

	return buffer, nil
}

// CleanOutputs purges the output namespace after a batch of KeepFiles runs.
func (t *Transcoder) CleanOutputs() error {
	return ffmpeg.CleanFiles(t.tc, false)
}
