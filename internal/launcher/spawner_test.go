package launcher

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
}

func TestExecSpawner_PassesWorkerEnv(t *testing.T) {
	requireShell(t)
	script := `[ "$ALCHEMIST_LISTENER_FD" = 3 ] && [ "$ALCHEMIST_WORKER_ID" = 2 ] && [ "$ALCHEMIST_WORKERS" = 4 ] && [ "$0" = main:app ] && exit 7; exit 9`
	sp := &ExecSpawner{Path: "/bin/sh", Args: []string{"-c", script}}

	proc, err := sp.Spawn(WorkerSpec{ID: 2, Workers: 4, EntryPoint: "main:app"})
	require.NoError(t, err)
	assert.Positive(t, proc.Pid())

	code, err := proc.Wait()
	require.NoError(t, err)
	assert.Equal(t, 7, code)
}

func TestExecSpawner_InheritsListenerAsFD3(t *testing.T) {
	requireShell(t)
	f, err := os.CreateTemp(t.TempDir(), "listener")
	require.NoError(t, err)
	defer f.Close()

	// fd 3 in the child refers to the file handed over in ExtraFiles.
	sp := &ExecSpawner{Path: "/bin/sh", Args: []string{"-c", `echo inherited >&3`}}
	proc, err := sp.Spawn(WorkerSpec{ID: 0, Workers: 1, EntryPoint: "main:app", Listener: f})
	require.NoError(t, err)
	code, err := proc.Wait()
	require.NoError(t, err)
	require.Equal(t, 0, code)

	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	assert.Equal(t, "inherited\n", string(data))
}

func TestExecSpawner_SignalAndKill(t *testing.T) {
	requireShell(t)
	ready := filepath.Join(t.TempDir(), "ready")
	script := `trap 'exit 0' TERM; touch "$READY"; while :; do sleep 0.05; done`

	sp := &ExecSpawner{
		Path: "/bin/sh",
		Args: []string{"-c", script},
		Env:  append(os.Environ(), "READY="+ready),
	}

	t.Run("SIGTERM exits cleanly", func(t *testing.T) {
		proc, err := sp.Spawn(WorkerSpec{EntryPoint: "main:app", Workers: 1})
		require.NoError(t, err)
		require.Eventually(t, func() bool {
			_, err := os.Stat(ready)
			return err == nil
		}, 5*time.Second, 10*time.Millisecond)

		require.NoError(t, proc.Signal(syscall.SIGTERM))
		code, err := proc.Wait()
		require.NoError(t, err)
		assert.Equal(t, 0, code)
	})

	t.Run("Kill reports -1", func(t *testing.T) {
		proc, err := sp.Spawn(WorkerSpec{EntryPoint: "main:app", Workers: 1})
		require.NoError(t, err)
		require.NoError(t, proc.Kill())
		code, err := proc.Wait()
		require.NoError(t, err)
		assert.Equal(t, -1, code)
	})
}

func TestExecSpawner_MissingBinary(t *testing.T) {
	sp := &ExecSpawner{Path: filepath.Join(t.TempDir(), "nope")}
	_, err := sp.Spawn(WorkerSpec{ID: 1, EntryPoint: "main:app"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start worker 1")
}
