package launcher

import (
	"errors"
	"os"
	"sync"
	"syscall"
	"time"
)

// fakeBehavior decides how a spawned fake process acts.
type fakeBehavior struct {
	exitNow    bool
	exitCode   int
	ignoreTerm bool
}

type fakeSpawner struct {
	mu      sync.Mutex
	procs   []*fakeProcess
	err     error
	onSpawn func(spec WorkerSpec, n int) fakeBehavior
}

func (s *fakeSpawner) Spawn(spec WorkerSpec) (Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}

	var b fakeBehavior
	if s.onSpawn != nil {
		b = s.onSpawn(spec, len(s.procs))
	}
	p := &fakeProcess{
		spec:       spec,
		pid:        1000 + len(s.procs),
		ignoreTerm: b.ignoreTerm,
		done:       make(chan struct{}),
	}
	if b.exitNow {
		p.exit(b.exitCode)
	}
	s.procs = append(s.procs, p)
	return p, nil
}

func (s *fakeSpawner) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.procs)
}

func (s *fakeSpawner) all() []*fakeProcess {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*fakeProcess(nil), s.procs...)
}

type fakeProcess struct {
	spec       WorkerSpec
	pid        int
	ignoreTerm bool

	done chan struct{}
	once sync.Once
	code int

	mu      sync.Mutex
	signals []os.Signal
	killed  bool
}

func (p *fakeProcess) exit(code int) {
	p.once.Do(func() {
		p.code = code
		close(p.done)
	})
}

func (p *fakeProcess) Pid() int { return p.pid }

func (p *fakeProcess) Wait() (int, error) {
	<-p.done
	return p.code, nil
}

func (p *fakeProcess) Signal(sig os.Signal) error {
	select {
	case <-p.done:
		return os.ErrProcessDone
	default:
	}
	p.mu.Lock()
	p.signals = append(p.signals, sig)
	p.mu.Unlock()
	if sig == syscall.SIGTERM && !p.ignoreTerm {
		p.exit(0)
	}
	return nil
}

func (p *fakeProcess) Kill() error {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()
	p.exit(-1)
	return nil
}

func (p *fakeProcess) gotTerm() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.signals {
		if s == syscall.SIGTERM {
			return true
		}
	}
	return false
}

func (p *fakeProcess) wasKilled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

func (p *fakeProcess) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// recordingMetrics counts collector calls.
type recordingMetrics struct {
	mu          sync.Mutex
	transitions []PoolState
	started     int
	exited      int
	restarts    map[int]int
	reloads     int
	reloadErrs  int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{restarts: make(map[int]int)}
}

func (m *recordingMetrics) PoolStateTransition(from, to PoolState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, to)
}

func (m *recordingMetrics) WorkerStarted(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started++
}

func (m *recordingMetrics) WorkerExited(id int, code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exited++
}

func (m *recordingMetrics) WorkerRestart(id int, delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restarts[id]++
}

func (m *recordingMetrics) Reload(duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reloads++
	if err != nil {
		m.reloadErrs++
	}
}

type metricsSnapshot struct {
	transitions []PoolState
	started     int
	exited      int
	restarts    map[int]int
	reloads     int
	reloadErrs  int
}

func (m *recordingMetrics) snapshot() metricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	restarts := make(map[int]int, len(m.restarts))
	for k, v := range m.restarts {
		restarts[k] = v
	}
	return metricsSnapshot{
		transitions: append([]PoolState(nil), m.transitions...),
		started:     m.started,
		exited:      m.exited,
		restarts:    restarts,
		reloads:     m.reloads,
		reloadErrs:  m.reloadErrs,
	}
}

var errSpawn = errors.New("exec format error")
