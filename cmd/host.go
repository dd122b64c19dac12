package main

import (
	"context"
	"fmt"

	"github.com/MimeLyc/whispercard/internal/actions"
	"github.com/MimeLyc/whispercard/internal/subtitle"
	"github.com/MimeLyc/whispercard/pkg/log"
)

// The host player, clipboard and editor are integration points owned by the
// embedding application. The standalone binary logs playback requests and
// rejects capture, so only the ffmpeg processor produces audio here.

type hostPlayback struct{}

func (hostPlayback) TogglePause() {
	log.Info("Playback: toggle pause")
}

func (hostPlayback) Skip(action actions.Action) {
	log.Info("Playback: %s", action)
}

func (hostPlayback) PlayLine(request actions.PlayRequest) {
	if len(request.Lines) == 0 {
		return
	}
	log.Info("Playback: play line %s", request.Lines[0].ID)
}

type hostClipboard struct{}

func (hostClipboard) WriteText(text string) error {
	log.Info("Clipboard: %q", text)
	return nil
}

type hostEditor struct{}

func (hostEditor) EditLine(_ context.Context, line subtitle.Line) error {
	log.Info("Edit requested for line %s", line.ID)
	return nil
}

// hostTap is the recorder strategy's capture source. Without an attached
// player there is nothing to record from.
type hostTap struct{}

func (hostTap) Capture(context.Context, []subtitle.Line, int) ([]byte, error) {
	return nil, fmt.Errorf("no playback capture attached")
}
