// Package media manages the active audio document and the artifacts derived
// from it: toolchain input buffer, chapter markers and cover art.
package media

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/MimeLyc/whispercard/internal/config"
	"github.com/MimeLyc/whispercard/internal/extract"
	"github.com/MimeLyc/whispercard/internal/ffmpeg"
	"github.com/MimeLyc/whispercard/internal/subtitle"
	"github.com/MimeLyc/whispercard/pkg/log"
)

const coverBuffer = "cover.jpg"

// Source is the currently loaded audio document. New artifacts are built
// before the previous ones are released, so readers never observe a half
// replaced state.
type Source struct {
	cfg        *config.Settings
	tc         ffmpeg.Toolchain
	transcoder *extract.Transcoder
	store      *subtitle.Store

	mu        sync.Mutex
	audioName string
	chapters  []ffmpeg.Chapter
	cover     []byte
}

func NewSource(cfg *config.Settings, tc ffmpeg.Toolchain, transcoder *extract.Transcoder, store *subtitle.Store) *Source {
	return &Source{cfg: cfg, tc: tc, transcoder: transcoder, store: store}
}

// SubtitleName names the loaded subtitle document, empty when none.
func (s *Source) SubtitleName() string {
	return s.store.DocumentName()
}

// AudioName names the loaded audio document, empty when none.
func (s *Source) AudioName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audioName
}

// Chapters returns the chapter markers of the loaded audio file.
func (s *Source) Chapters() []ffmpeg.Chapter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ffmpeg.Chapter(nil), s.chapters...)
}

// Cover returns the extracted cover art, nil when unavailable.
func (s *Source) Cover() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cover
}

// Replace loads a new audio document: initializes the toolchain when the
// transcoder strategy is selected, swaps the input buffer and rebuilds the
// derived artifacts. Partial failures are joined into one error; the parts
// that succeeded stay bound.
func (s *Source) Replace(ctx context.Context, name string, data []byte) error {
	var failures []string

	if s.cfg.ExportAudioProcessor == config.ProcessorFFMPEG {
		if err := s.transcoder.Init(ctx); err != nil {
			failures = append(failures, fmt.Sprintf("FFMPEG failure: %v", err))
		}
	}

	ext := extension(name)

	if err := ffmpeg.PutAudioFile(s.tc, ext, data); err != nil {
		failures = append(failures, err.Error())
	}
	s.transcoder.SetInputExt(ext)

	var chapters []ffmpeg.Chapter
	var cover []byte

	if s.tc.Loaded() {
		if s.cfg.PlayerEnableChapters {
			chapters = ffmpeg.Chapters(ctx, s.tc, ext)
		}
		if s.cfg.PlayerEnableCover {
			extracted, err := s.extractCover(ctx, ext)
			if err != nil {
				failures = append(failures, fmt.Sprintf("Cover failure: %v", err))
			} else {
				cover = extracted
			}
		}
	}

	s.mu.Lock()
	s.audioName = name
	s.chapters = chapters
	s.cover = cover
	s.mu.Unlock()

	if len(failures) > 0 {
		return errors.New(strings.Join(failures, "; "))
	}

	return nil
}

// Clear unloads the audio document and purges every derived artifact.
func (s *Source) Clear() error {
	s.mu.Lock()
	s.audioName = ""
	s.chapters = nil
	s.cover = nil
	s.mu.Unlock()

	return ffmpeg.PutAudioFile(s.tc, "", nil)
}

// extractCover copies the embedded cover stream into a scratch buffer and
// reads it back.
func (s *Source) extractCover(ctx context.Context, ext string) ([]byte, error) {
	args := []string{"-hide_banner", "-y", "-i", ffmpeg.InputName(ext), "-an", "-c:v", "copy", coverBuffer}
	if err := s.tc.Exec(ctx, args); err != nil {
		return nil, err
	}

	data, err := s.tc.ReadFile(coverBuffer)
	if err != nil {
		return nil, err
	}

	if err := s.tc.DeleteFile(coverBuffer); err != nil {
		log.Debug("failed to drop cover buffer: %v", err)
	}

	return data, nil
}

func extension(name string) string {
	if idx := strings.LastIndex(name, "."); idx >= 0 && idx < len(name)-1 {
		return name[idx+1:]
	}
	return "mp3"
}
