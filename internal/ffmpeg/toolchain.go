// Package ffmpeg wraps an ffmpeg binary behind a named-buffer toolchain used
// by the audio segmentation engine.
package ffmpeg

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/MimeLyc/whispercard/pkg/log"
)

// LogEvent is a single line of toolchain output.
type LogEvent struct {
	Type    string
	Message string
}

// Toolchain is the audio processing collaborator. Implementations expose a
// flat namespace of named buffers plus command execution over them.
type Toolchain interface {
	// Init prepares the toolchain. It is fallible, cached and safe to call
	// concurrently; after a failure a later call retries.
	Init(ctx context.Context) error
	Loaded() bool
	WriteFile(name string, data []byte) error
	ReadFile(name string) ([]byte, error)
	ListDir() ([]string, error)
	DeleteFile(name string) error
	Exec(ctx context.Context, args []string) error
	// Subscribe registers a log listener and returns its unsubscribe func.
	Subscribe(fn func(LogEvent)) func()
	Terminate()
}

// ExecToolchain shells out to a real ffmpeg binary over a scratch directory.
type ExecToolchain struct {
	binary string
	dir    string

	initGroup singleflight.Group

	mu      sync.Mutex
	loaded  bool
	nextSub int
	subs    map[int]func(LogEvent)
}

// NewExecToolchain builds a toolchain around the given ffmpeg binary and
// scratch directory. Init must be called before any other operation.
func NewExecToolchain(binary, dir string) *ExecToolchain {
	return &ExecToolchain{
		binary: binary,
		dir:    dir,
		subs:   make(map[int]func(LogEvent)),
	}
}

func (t *ExecToolchain) Init(ctx context.Context) error {
	if t.Loaded() {
		return nil
	}

	_, err, _ := t.initGroup.Do("init", func() (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resolved, err := exec.LookPath(t.binary)
		if err != nil {
			return nil, fmt.Errorf("binary %q not found: %w", t.binary, err)
		}

		if err := os.MkdirAll(t.dir, 0o755); err != nil {
			return nil, fmt.Errorf("scratch dir: %w", err)
		}

		t.mu.Lock()
		t.binary = resolved
		t.loaded = true
		t.mu.Unlock()

		log.Debug("audio toolchain ready: %s", resolved)

		return nil, nil
	})

	return err
}

func (t *ExecToolchain) Loaded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loaded
}

func (t *ExecToolchain) WriteFile(name string, data []byte) error {
	return os.WriteFile(filepath.Join(t.dir, name), data, 0o644)
}

func (t *ExecToolchain) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(t.dir, name))
}

func (t *ExecToolchain) ListDir() ([]string, error) {
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}

	return names, nil
}

func (t *ExecToolchain) DeleteFile(name string) error {
	return os.Remove(filepath.Join(t.dir, name))
}

// Exec runs the binary with the given arguments inside the scratch directory
// and forwards each diagnostic line to subscribed log listeners.
func (t *ExecToolchain) Exec(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, t.binary, args...)
	cmd.Dir = t.dir

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return err
	}

	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		t.emit(LogEvent{Type: "stderr", Message: scanner.Text()})
	}

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}

	return nil
}

func (t *ExecToolchain) Subscribe(fn func(LogEvent)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextSub
	t.nextSub++
	t.subs[id] = fn

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.subs, id)
	}
}

func (t *ExecToolchain) Terminate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.loaded = false
}

func (t *ExecToolchain) emit(event LogEvent) {
	t.mu.Lock()
	listeners := make([]func(LogEvent), 0, len(t.subs))
	for _, fn := range t.subs {
		listeners = append(listeners, fn)
	}
	t.mu.Unlock()

	for _, fn := range listeners {
		fn(event)
	}
}
