package launcher

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
)

// Environment handed to every worker.
const (
	EnvListenerFD = "ALCHEMIST_LISTENER_FD"
	EnvWorkerID   = "ALCHEMIST_WORKER_ID"
	EnvWorkers    = "ALCHEMIST_WORKERS"

	// listenerFD is the descriptor number of ExtraFiles[0] in the child.
	listenerFD = 3
)

// WorkerSpec describes one worker to spawn.
type WorkerSpec struct {
	ID         int
	Workers    int
	EntryPoint string
	// Listener is the shared socket; the child sees it as fd 3.
	Listener *os.File
}

// Process is a running worker.
type Process interface {
	Pid() int
	// Wait blocks until the process exits and returns its exit code.
	// A process killed by a signal reports -1.
	Wait() (int, error)
	Signal(sig os.Signal) error
	Kill() error
}

// Spawner starts worker processes.
type Spawner interface {
	Spawn(spec WorkerSpec) (Process, error)
}

// ExecSpawner starts workers as child processes of the current binary.
type ExecSpawner struct {
	// Path is the executable. Empty means os.Executable().
	Path string
	// Args precede the entry point on the worker command line.
	Args []string
	// Env is the complete base environment. Nil means os.Environ().
	Env    []string
	Stdout io.Writer
	Stderr io.Writer
}

// Spawn starts the worker with the listener as fd 3.
func (s *ExecSpawner) Spawn(spec WorkerSpec) (Process, error) {
	path := s.Path
	if path == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve executable: %w", err)
		}
		path = exe
	}

	args := append(append([]string(nil), s.Args...), spec.EntryPoint)
	cmd := exec.Command(path, args...)

	env := s.Env
	if env == nil {
		env = os.Environ()
	}
	cmd.Env = append(append([]string(nil), env...),
		EnvListenerFD+"="+strconv.Itoa(listenerFD),
		EnvWorkerID+"="+strconv.Itoa(spec.ID),
		EnvWorkers+"="+strconv.Itoa(spec.Workers),
	)
	if spec.Listener != nil {
		cmd.ExtraFiles = []*os.File{spec.Listener}
	}
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	setProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start worker %d: %w", spec.ID, err)
	}
	return &execProcess{cmd: cmd}, nil
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) Pid() int { return p.cmd.Process.Pid }

func (p *execProcess) Wait() (int, error) {
	err := p.cmd.Wait()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

func (p *execProcess) Signal(sig os.Signal) error { return p.cmd.Process.Signal(sig) }

func (p *execProcess) Kill() error { return p.cmd.Process.Kill() }
