package extract

import (
	"context"

	"github.com/MimeLyc/whispercard/internal/config"
	"github.com/MimeLyc/whispercard/internal/subtitle"
)

// Engine routes extraction runs to the strategy the settings select.
type Engine struct {
	cfg        *config.Settings
	transcoder *Transcoder
	recorder   *Recorder
}

func NewEngine(cfg *config.Settings, transcoder *Transcoder, recorder *Recorder) *Engine {
	return &Engine{cfg: cfg, transcoder: transcoder, recorder: recorder}
}

func (e *Engine) Transcoder() *Transcoder { return e.transcoder }

// UsesToolchain reports whether the current settings select the transcoder.
func (e *Engine) UsesToolchain() bool {
	return e.cfg.ExportAudioProcessor == config.ProcessorFFMPEG
}

func (e *Engine) Extract(ctx context.Context, lines []subtitle.Line, opts Options) ([]byte, error) {
	if e.UsesToolchain() {
		return e.transcoder.Extract(ctx, lines, opts)
	}
	return e.recorder.Extract(ctx, lines, opts)
}

// CleanOutputs removes leftover output buffers after a KeepFiles batch.
func (e *Engine) CleanOutputs() error {
	return e.transcoder.CleanOutputs()
}

var _ Extractor = (*Engine)(nil)
