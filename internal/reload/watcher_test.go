package reload

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, dirs []string, debounce time.Duration) (*atomic.Int32, context.CancelFunc, chan error) {
	t.Helper()
	var calls atomic.Int32
	w, err := New(dirs, debounce, func() { calls.Add(1) }, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	return &calls, cancel, done
}

func TestWatcher_DebouncesBurst(t *testing.T) {
	dir := t.TempDir()
	calls, cancel, done := startWatcher(t, []string{dir}, 100*time.Millisecond)
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	// Give the watcher loop a moment to start.
	time.Sleep(50 * time.Millisecond)
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte{byte('a' + i)}, 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "one burst, one callback")

	require.NoError(t, os.Remove(filepath.Join(dir, "index.html")))
	require.Eventually(t, func() bool { return calls.Load() == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_IgnoresScratchFiles(t *testing.T) {
	dir := t.TempDir()
	calls, cancel, done := startWatcher(t, []string{dir}, 50*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".index.html.swp"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html~"), []byte("x"), 0o644))
	time.Sleep(300 * time.Millisecond)
	assert.Zero(t, calls.Load())

	cancel()
	require.NoError(t, <-done)
}

func TestNew_Errors(t *testing.T) {
	_, err := New(nil, 0, func() {}, nil)
	assert.ErrorIs(t, err, ErrNoDirs)

	_, err = New([]string{filepath.Join(t.TempDir(), "missing")}, 0, func() {}, nil)
	assert.Error(t, err)
}

func TestRelevant(t *testing.T) {
	tests := []struct {
		name string
		op   fsnotify.Op
		want bool
	}{
		{name: "/app/index.html", op: fsnotify.Write, want: true},
		{name: "/app/config.yaml", op: fsnotify.Create, want: true},
		{name: "/app/old.html", op: fsnotify.Remove, want: true},
		{name: "/app/moved.html", op: fsnotify.Rename, want: true},
		{name: "/app/index.html", op: fsnotify.Chmod, want: false},
		{name: "/app/.hidden", op: fsnotify.Write, want: false},
		{name: "/app/file.tmp", op: fsnotify.Write, want: false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, relevant(fsnotify.Event{Name: tt.name, Op: tt.op}), "%s %s", tt.op, tt.name)
	}
}
