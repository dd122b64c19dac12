package extract

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/whispercard/internal/config"
	"github.com/MimeLyc/whispercard/internal/ffmpeg"
	"github.com/MimeLyc/whispercard/internal/subtitle"
)

type fakeToolchain struct {
	mu      sync.Mutex
	loaded  bool
	initErr error
	execErr error
	files   map[string][]byte
	execs   [][]string

	// cancel aborts the run's context after this many exec calls.
	cancelAfter int
	cancel      context.CancelFunc
}

func newFakeToolchain() *fakeToolchain {
	return &fakeToolchain{loaded: true, files: make(map[string][]byte), cancelAfter: -1}
}

func (f *fakeToolchain) Init(context.Context) error {
	if f.initErr != nil {
		return f.initErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loaded = true
	return nil
}

func (f *fakeToolchain) Loaded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loaded
}

func (f *fakeToolchain) WriteFile(name string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[name] = data
	return nil
}

func (f *fakeToolchain) ReadFile(name string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[name]
	if !ok {
		return nil, fmt.Errorf("no such buffer: %s", name)
	}
	return data, nil
}

func (f *fakeToolchain) ListDir() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.files))
	for name := range f.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (f *fakeToolchain) DeleteFile(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, name)
	return nil
}

func (f *fakeToolchain) Exec(ctx context.Context, args []string) error {
	f.mu.Lock()
	f.execs = append(f.execs, args)
	count := len(f.execs)
	output := args[len(args)-1]
	f.files[output] = []byte(output)
	f.mu.Unlock()

	if f.cancelAfter >= 0 && count >= f.cancelAfter && f.cancel != nil {
		f.cancel()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.execErr
}

func (f *fakeToolchain) Subscribe(func(ffmpeg.LogEvent)) func() { return func() {} }

func (f *fakeToolchain) Terminate() {}

func (f *fakeToolchain) execCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.execs)
}

func lines(ranges ...[2]float64) []subtitle.Line {
	result := make([]subtitle.Line, 0, len(ranges))
	for i, r := range ranges {
		result = append(result, subtitle.Line{
			ID:           fmt.Sprintf("%d", i+1),
			SubIndex:     i,
			StartSeconds: r[0],
			EndSeconds:   r[1],
		})
	}
	return result
}

func TestTranscoderSingleLineSkipsConcat(t *testing.T) {
	tc := newFakeToolchain()
	transcoder := NewTranscoder(config.Default(), tc)

	buffer, err := transcoder.Extract(context.Background(), lines([2]float64{1, 2}), Options{ForExport: true})
	require.NoError(t, err)
	require.Equal(t, []byte("audio_output_0.mp3"), buffer)
	require.Equal(t, 1, tc.execCount())
	require.Equal(t, "-ss", tc.execs[0][2])
	require.Equal(t, "1", tc.execs[0][3])
}

func TestTranscoderMultiLineConcats(t *testing.T) {
	tc := newFakeToolchain()
	transcoder := NewTranscoder(config.Default(), tc)

	buffer, err := transcoder.Extract(context.Background(), lines([2]float64{0, 1}, [2]float64{2, 3}), Options{ForExport: true})
	require.NoError(t, err)
	require.Equal(t, []byte("audio_output.mp3"), buffer)
	require.Equal(t, 3, tc.execCount())

	concat := tc.execs[2]
	require.Contains(t, concat, "-filter_complex")
	require.Contains(t, concat, "[0:a][1:a]concat=n=2:v=0:a=1")
	require.Equal(t, "audio_output.mp3", concat[len(concat)-1])
}

func TestTranscoderCleansOutputsAfterRun(t *testing.T) {
	tc := newFakeToolchain()
	tc.files["audio_input.mp3"] = []byte{1}
	transcoder := NewTranscoder(config.Default(), tc)

	_, err := transcoder.Extract(context.Background(), lines([2]float64{0, 1}), Options{})
	require.NoError(t, err)

	names, _ := tc.ListDir()
	require.Equal(t, []string{"audio_input.mp3"}, names)
}

func TestTranscoderKeepFiles(t *testing.T) {
	tc := newFakeToolchain()
	transcoder := NewTranscoder(config.Default(), tc)

	_, err := transcoder.Extract(context.Background(), lines([2]float64{0, 1}), Options{KeepFiles: true})
	require.NoError(t, err)

	names, _ := tc.ListDir()
	require.Equal(t, []string{"audio_output_0.mp3"}, names)

	require.NoError(t, transcoder.CleanOutputs())
	names, _ = tc.ListDir()
	require.Empty(t, names)
}

func TestTranscoderAbortStopsFurtherCalls(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tc := newFakeToolchain()
	tc.cancelAfter = 1
	tc.cancel = cancel
	transcoder := NewTranscoder(config.Default(), tc)

	_, err := transcoder.Extract(ctx, lines([2]float64{0, 1}, [2]float64{2, 3}, [2]float64{4, 5}), Options{})
	require.ErrorIs(t, err, ErrAborted)
	require.Equal(t, 1, tc.execCount())
}

func TestTranscoderExecFailure(t *testing.T) {
	tc := newFakeToolchain()
	tc.execErr = errors.New("encoder blew up")
	transcoder := NewTranscoder(config.Default(), tc)

	_, err := transcoder.Extract(context.Background(), lines([2]float64{0, 1}), Options{})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrAborted)
	require.Contains(t, err.Error(), "Audio creation failed - ")

	// failed runs still clean the output namespace
	names, _ := tc.ListDir()
	require.Empty(t, names)
}

func TestTranscoderEmptyBuffer(t *testing.T) {
	tc := newFakeToolchain()
	transcoder := NewTranscoder(config.Default(), tc)

	_, err := transcoder.Extract(context.Background(), nil, Options{})
	require.ErrorIs(t, err, ErrNoBuffer)
}

func TestTranscoderInitFailureFallsBackToRecorder(t *testing.T) {
	cfg := config.Default()
	cfg.ExportAudioProcessor = config.ProcessorFFMPEG
	tc := newFakeToolchain()
	tc.initErr = errors.New("binary missing")
	transcoder := NewTranscoder(cfg, tc)

	err := transcoder.Init(context.Background())
	require.Error(t, err)

	var initErr *InitError
	require.ErrorAs(t, err, &initErr)
	require.Equal(t, config.ProcessorRecorder, cfg.ExportAudioProcessor)
}

type fakeTap struct {
	buffer []byte
	err    error
}

func (f fakeTap) Capture(context.Context, []subtitle.Line, int) ([]byte, error) {
	return f.buffer, f.err
}

func TestRecorderReturnsCapturedBuffer(t *testing.T) {
	recorder := NewRecorder(config.Default(), fakeTap{buffer: []byte{1, 2, 3}})

	buffer, err := recorder.Extract(context.Background(), lines([2]float64{0, 1}), Options{})
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, buffer)
}

func TestRecorderEmptyCapture(t *testing.T) {
	recorder := NewRecorder(config.Default(), fakeTap{})

	_, err := recorder.Extract(context.Background(), lines([2]float64{0, 1}), Options{})
	require.ErrorIs(t, err, ErrNoBuffer)
}

func TestEngineSelectsStrategy(t *testing.T) {
	cfg := config.Default()
	cfg.ExportAudioProcessor = config.ProcessorRecorder
	tc := newFakeToolchain()
	engine := NewEngine(cfg, NewTranscoder(cfg, tc), NewRecorder(cfg, fakeTap{buffer: []byte{7}}))

	buffer, err := engine.Extract(context.Background(), lines([2]float64{0, 1}), Options{})
	require.NoError(t, err)
	require.Equal(t, []byte{7}, buffer)
	require.Equal(t, 0, tc.execCount())

	cfg.ExportAudioProcessor = config.ProcessorFFMPEG
	buffer, err = engine.Extract(context.Background(), lines([2]float64{0, 1}), Options{})
	require.NoError(t, err)
	require.Equal(t, []byte("audio_output_0.mp3"), buffer)
}
