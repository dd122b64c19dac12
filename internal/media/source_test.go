package media

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/whispercard/internal/config"
	"github.com/MimeLyc/whispercard/internal/extract"
	"github.com/MimeLyc/whispercard/internal/ffmpeg"
	"github.com/MimeLyc/whispercard/internal/subtitle"
)

type scriptedToolchain struct {
	mu      sync.Mutex
	loaded  bool
	initErr error
	files   map[string][]byte
	execs   [][]string
	logs    []func(ffmpeg.LogEvent)

	// chapterLines are replayed to subscribers on probe runs.
	chapterLines []string
	coverData    []byte
}

func newScriptedToolchain() *scriptedToolchain {
	return &scriptedToolchain{loaded: true, files: make(map[string][]byte)}
}

func (s *scriptedToolchain) Init(context.Context) error {
	if s.initErr != nil {
		return s.initErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = true
	return nil
}

func (s *scriptedToolchain) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

func (s *scriptedToolchain) WriteFile(name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[name] = data
	return nil
}

func (s *scriptedToolchain) ReadFile(name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[name]
	if !ok {
		return nil, fmt.Errorf("no such buffer: %s", name)
	}
	return data, nil
}

func (s *scriptedToolchain) ListDir() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.files))
	for name := range s.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *scriptedToolchain) DeleteFile(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, name)
	return nil
}

func (s *scriptedToolchain) Exec(_ context.Context, args []string) error {
	s.mu.Lock()
	s.execs = append(s.execs, args)
	listeners := append(([]func(ffmpeg.LogEvent))(nil), s.logs...)
	isProbe := args[len(args)-1] != "cover.jpg"
	if !isProbe && s.coverData != nil {
		s.files["cover.jpg"] = s.coverData
	}
	s.mu.Unlock()

	if isProbe {
		for _, line := range s.chapterLines {
			for _, fn := range listeners {
				fn(ffmpeg.LogEvent{Type: "stderr", Message: line})
			}
		}
	}
	return nil
}

func (s *scriptedToolchain) Subscribe(fn func(ffmpeg.LogEvent)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, fn)
	return func() {}
}

func (s *scriptedToolchain) Terminate() {}

func newTestSource(cfg *config.Settings, tc ffmpeg.Toolchain) *Source {
	store := subtitle.NewStore(cfg, nil)
	return NewSource(cfg, tc, extract.NewTranscoder(cfg, tc), store)
}

func TestReplaceBindsInputAndArtifacts(t *testing.T) {
	cfg := config.Default()
	tc := newScriptedToolchain()
	tc.coverData = []byte{0xff, 0xd8}
	tc.chapterLines = []string{
		"    Chapter #0:0: start 0.000000, end 10.000000",
		"      title           : Intro",
	}
	source := newTestSource(cfg, tc)

	err := source.Replace(context.Background(), "book.m4b", []byte{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, "book.m4b", source.AudioName())

	data, err := tc.ReadFile("audio_input.m4b")
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, data)

	chapters := source.Chapters()
	require.Len(t, chapters, 1)
	require.Equal(t, "Intro", chapters[0].Label)

	require.Equal(t, []byte{0xff, 0xd8}, source.Cover())

	// cover buffer does not linger in the namespace
	names, _ := tc.ListDir()
	require.Equal(t, []string{"audio_input.m4b"}, names)
}

func TestReplaceDisabledArtifacts(t *testing.T) {
	cfg := config.Default()
	cfg.PlayerEnableChapters = false
	cfg.PlayerEnableCover = false
	tc := newScriptedToolchain()
	source := newTestSource(cfg, tc)

	err := source.Replace(context.Background(), "book.mp3", []byte{1})
	require.NoError(t, err)
	require.Empty(t, source.Chapters())
	require.Nil(t, source.Cover())

	// only the input write ran, no probe or cover extraction
	require.Empty(t, tc.execs)
}

func TestReplaceSwapsPreviousInput(t *testing.T) {
	cfg := config.Default()
	cfg.PlayerEnableCover = false
	cfg.PlayerEnableChapters = false
	tc := newScriptedToolchain()
	source := newTestSource(cfg, tc)

	require.NoError(t, source.Replace(context.Background(), "first.mp3", []byte{1}))
	require.NoError(t, source.Replace(context.Background(), "second.ogg", []byte{2}))

	names, _ := tc.ListDir()
	require.Equal(t, []string{"audio_input.ogg"}, names)
	require.Equal(t, "second.ogg", source.AudioName())
}

func TestReplaceInitFailureJoinsErrors(t *testing.T) {
	cfg := config.Default()
	cfg.ExportAudioProcessor = config.ProcessorFFMPEG
	cfg.PlayerEnableCover = false
	cfg.PlayerEnableChapters = false
	tc := newScriptedToolchain()
	tc.loaded = false
	tc.initErr = fmt.Errorf("binary missing")
	source := newTestSource(cfg, tc)

	err := source.Replace(context.Background(), "book.mp3", []byte{1})
	require.Error(t, err)
	require.Contains(t, err.Error(), "FFMPEG failure: ")

	// failed init falls back to the recorder strategy but the document
	// still binds
	require.Equal(t, config.ProcessorRecorder, cfg.ExportAudioProcessor)
	require.Equal(t, "book.mp3", source.AudioName())
}

func TestClearReleasesEverything(t *testing.T) {
	cfg := config.Default()
	cfg.PlayerEnableCover = false
	cfg.PlayerEnableChapters = false
	tc := newScriptedToolchain()
	source := newTestSource(cfg, tc)

	require.NoError(t, source.Replace(context.Background(), "book.mp3", []byte{1}))
	require.NoError(t, source.Clear())

	require.Empty(t, source.AudioName())
	names, _ := tc.ListDir()
	require.Empty(t, names)
}
