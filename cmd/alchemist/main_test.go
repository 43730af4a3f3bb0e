package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// envRunMain makes the test binary behave as alchemist, for the master
// and for every worker it re-executes.
const envRunMain = "ALCHEMIST_TEST_RUN_MAIN"

const startupTimeout = 15 * time.Second

func TestMain(m *testing.M) {
	if os.Getenv(envRunMain) == "1" {
		main()
		return
	}
	os.Exit(m.Run())
}

// alchemist returns a command running the test binary as alchemist with a
// private config dir, an app dir holding index.html and an in-memory store.
// PORT is removed from the inherited environment and set only when port is
// non-empty.
func alchemist(t *testing.T, port string, args ...string) *exec.Cmd {
	t.Helper()
	appDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(appDir, "index.html"), []byte("<h1>CV Alchemist</h1>"), 0o644))

	env := make([]string, 0, len(os.Environ())+8)
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "PORT=") || strings.HasPrefix(kv, "CV_ALCHEMIST_") {
			continue
		}
		env = append(env, kv)
	}
	env = append(env,
		envRunMain+"=1",
		"CV_ALCHEMIST_CONFIG_DIR="+t.TempDir(),
		"CV_ALCHEMIST_APP_DIR="+appDir,
		"CV_ALCHEMIST_STORE_BACKEND=memory",
		"GOOGLE_CLOUD_PROJECT=alchemist-test",
		"GOOGLE_APPLICATION_CREDENTIALS="+filepath.Join(t.TempDir(), "missing.json"),
	)
	if port != "" {
		env = append(env, "PORT="+port)
	}

	cmd := exec.Command(os.Args[0], args...)
	cmd.Env = env
	return cmd
}

// lockedBuffer collects child stderr while the test reads it.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// process tracks a started command until it exits. The exit is observed
// once and shared by wait and stop.
type process struct {
	cmd    *exec.Cmd
	exited chan struct{}
	err    error
}

// watch must be called after cmd.Start.
func watch(cmd *exec.Cmd) *process {
	p := &process{cmd: cmd, exited: make(chan struct{})}
	go func() {
		p.err = cmd.Wait()
		close(p.exited)
	}()
	return p
}

// wait reports whether the process exited within timeout, and its exit
// error.
func (p *process) wait(timeout time.Duration) (bool, error) {
	select {
	case <-p.exited:
		return true, p.err
	case <-time.After(timeout):
		return false, nil
	}
}

// stop kills the process if it is still running and waits for it.
func (p *process) stop() {
	select {
	case <-p.exited:
		return
	default:
	}
	_ = p.cmd.Process.Kill()
	<-p.exited
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	require.True(t, errors.As(err, &exitErr), "unexpected error: %v", err)
	return exitErr.ExitCode()
}

func TestServe_AcceptsAndAnswers(t *testing.T) {
	port := freePort(t)
	var stderr lockedBuffer
	cmd := alchemist(t, fmt.Sprint(port), "serve", "--host", "127.0.0.1", "--graceful-timeout", "5s")
	cmd.Stderr = &stderr
	require.NoError(t, cmd.Start())

	proc := watch(cmd)
	t.Cleanup(proc.stop)

	url := fmt.Sprintf("http://127.0.0.1:%d/healthz", port)
	client := &http.Client{Timeout: time.Second}

	var resp *http.Response
	require.Eventually(t, func() bool {
		r, err := client.Get(url)
		if err != nil {
			return false
		}
		resp = r
		return true
	}, startupTimeout, 50*time.Millisecond, "no answer on port %d; stderr:\n%s", port, &stderr)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Status string `json:"status"`
		Worker int    `json:"worker"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.GreaterOrEqual(t, body.Worker, 0)
	assert.Less(t, body.Worker, 4)

	index, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/", port))
	require.NoError(t, err)
	index.Body.Close()
	assert.Equal(t, http.StatusOK, index.StatusCode)

	require.NoError(t, cmd.Process.Signal(syscall.SIGTERM))
	ok, err := proc.wait(10 * time.Second)
	require.True(t, ok, "master did not exit after SIGTERM; stderr:\n%s", &stderr)
	assert.Equal(t, 0, exitCode(t, err), "stderr:\n%s", &stderr)
}

func TestProcess_StopAfterExit(t *testing.T) {
	cmd := alchemist(t, "", "version")
	require.NoError(t, cmd.Start())
	proc := watch(cmd)

	ok, err := proc.wait(startupTimeout)
	require.True(t, ok)
	require.NoError(t, err)

	stopped := make(chan struct{})
	go func() {
		proc.stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("stop blocked on a process that already exited")
	}
}

func TestServe_PortAbsent(t *testing.T) {
	var stderr bytes.Buffer
	cmd := alchemist(t, "", "serve")
	cmd.Stderr = &stderr
	err := cmd.Run()

	assert.Equal(t, 1, exitCode(t, err))
	assert.Contains(t, stderr.String(), "PORT is not set")
}

func TestServe_UnknownEntryPoint(t *testing.T) {
	var stderr bytes.Buffer
	cmd := alchemist(t, fmt.Sprint(freePort(t)), "serve", "missing:app")
	cmd.Stderr = &stderr
	err := cmd.Run()

	assert.NotEqual(t, 0, exitCode(t, err))
	assert.Contains(t, stderr.String(), "missing:app")
}
