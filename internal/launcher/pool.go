package launcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/cvalchemist/internal/apps"
)

// Pool owns the listening socket and a fixed set of worker slots.
type Pool struct {
	cfg      Config
	spawner  Spawner
	metrics  MetricsCollector
	logger   *zap.Logger
	registry *apps.Registry

	backoffBase time.Duration
	backoffMax  time.Duration
	stableAfter time.Duration

	started  atomic.Bool
	ready    chan struct{}
	stopped  chan struct{}
	reloadMu sync.Mutex

	mu       sync.RWMutex
	state    PoolState
	listener net.Listener
	slots    []*slot
}

type slot struct {
	id     int
	reload chan chan error
	status WorkerStatus
}

type exitResult struct {
	code int
	err  error
}

// NewPool validates cfg and checks the entry point against the registry.
// No socket is opened until Run.
func NewPool(cfg Config, opts ...Option) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pool{
		cfg:         cfg,
		metrics:     NewNoopMetricsCollector(),
		logger:      zap.NewNop(),
		registry:    apps.Default,
		backoffBase: DefaultBackoffBase,
		backoffMax:  DefaultBackoffMax,
		stableAfter: DefaultStableAfter,
		ready:       make(chan struct{}),
		stopped:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	ep, err := apps.ParseEntryPoint(cfg.EntryPoint)
	if err != nil {
		return nil, err
	}
	if _, err := p.registry.Lookup(ep); err != nil {
		return nil, err
	}

	if p.spawner == nil {
		p.spawner = &ExecSpawner{
			Path: cfg.Executable,
			Args: cfg.WorkerArgs,
			Env:  append(os.Environ(), cfg.Env...),
		}
	}

	p.slots = make([]*slot, cfg.Workers)
	for i := range p.slots {
		p.slots[i] = &slot{
			id:     i,
			reload: make(chan chan error),
			status: WorkerStatus{ID: i, State: WorkerStarting, LastExit: -1},
		}
	}
	return p, nil
}

// Run binds the socket, spawns the workers and supervises them until ctx
// is cancelled or a worker fails to boot. A cancelled ctx returns nil.
func (p *Pool) Run(ctx context.Context) error {
	if !p.started.CompareAndSwap(false, true) {
		return ErrPoolStarted
	}
	defer close(p.stopped)

	ln, err := net.Listen("tcp", p.cfg.address())
	if err != nil {
		p.setState(PoolTerminated)
		return fmt.Errorf("%w %s: %v", ErrBind, p.cfg.address(), err)
	}
	file, err := ln.(*net.TCPListener).File()
	if err != nil {
		ln.Close()
		p.setState(PoolTerminated)
		return fmt.Errorf("%w: dup listener: %v", ErrBind, err)
	}

	p.mu.Lock()
	p.listener = ln
	p.mu.Unlock()
	p.setState(PoolListening)
	p.logger.Info("listening",
		zap.String("addr", ln.Addr().String()),
		zap.Int("workers", p.cfg.Workers),
		zap.String("entrypoint", p.cfg.EntryPoint))
	close(p.ready)

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range p.slots {
		g.Go(func() error {
			return p.supervise(gctx, s, file)
		})
	}
	err = g.Wait()

	file.Close()
	ln.Close()
	p.setState(PoolTerminated)
	if err != nil {
		p.logger.Error("pool aborted", zap.Error(err))
		return err
	}
	p.logger.Info("pool stopped")
	return nil
}

// supervise keeps one slot occupied until ctx is done.
func (p *Pool) supervise(ctx context.Context, s *slot, file *os.File) error {
	attempt := 0
	for {
		proc, exited, err := p.start(s, file)
		if err != nil {
			return fmt.Errorf("%w: worker %d: %v", ErrWorkerBoot, s.id, err)
		}
		startedAt := time.Now()

	running:
		for {
			select {
			case <-ctx.Done():
				p.stop(s, proc, exited)
				return nil

			case done := <-s.reload:
				next, nextExited, err := p.start(s, file)
				if err != nil {
					done <- err
					p.stop(s, proc, exited)
					return fmt.Errorf("%w: worker %d: %v", ErrWorkerBoot, s.id, err)
				}
				p.stop(s, proc, exited)
				p.markRunning(s, next)
				proc, exited = next, nextExited
				startedAt = time.Now()
				attempt = 0
				done <- nil

			case res := <-exited:
				p.recordExit(s, res)
				if ctx.Err() != nil {
					return nil
				}
				if fatalExit(res.code) {
					return fmt.Errorf("%w: worker %d exited with code %d", ErrWorkerBoot, s.id, res.code)
				}
				if time.Since(startedAt) >= p.stableAfter {
					attempt = 0
				}
				delay := ExponentialBackoff(attempt, p.backoffBase, p.backoffMax)
				attempt++
				p.metrics.WorkerRestart(s.id, delay)
				p.logger.Warn("worker crashed, restarting",
					zap.Int("worker", s.id),
					zap.Int("code", res.code),
					zap.Duration("backoff", delay))
				if !p.wait(ctx, s, delay) {
					return nil
				}
				p.mu.Lock()
				s.status.Restarts++
				p.mu.Unlock()
				break running
			}
		}
	}
}

// wait sleeps for d while answering reload requests. It reports false if
// ctx ended first.
func (p *Pool) wait(ctx context.Context, s *slot, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case done := <-s.reload:
			// Nothing is running; the respawn after the timer is the replacement.
			done <- nil
		case <-timer.C:
			return true
		}
	}
}

func (p *Pool) start(s *slot, file *os.File) (Process, <-chan exitResult, error) {
	p.mu.Lock()
	s.status.State = WorkerStarting
	p.mu.Unlock()

	proc, err := p.spawner.Spawn(WorkerSpec{
		ID:         s.id,
		Workers:    p.cfg.Workers,
		EntryPoint: p.cfg.EntryPoint,
		Listener:   file,
	})
	if err != nil {
		return nil, nil, err
	}

	exited := make(chan exitResult, 1)
	go func() {
		code, err := proc.Wait()
		exited <- exitResult{code: code, err: err}
	}()

	p.markRunning(s, proc)
	p.metrics.WorkerStarted(s.id)
	p.logger.Info("worker started", zap.Int("worker", s.id), zap.Int("pid", proc.Pid()))
	return proc, exited, nil
}

func (p *Pool) markRunning(s *slot, proc Process) {
	p.mu.Lock()
	s.status.PID = proc.Pid()
	s.status.State = WorkerRunning
	s.status.StartedAt = time.Now()
	p.mu.Unlock()
}

func (p *Pool) recordExit(s *slot, res exitResult) {
	p.metrics.WorkerExited(s.id, res.code)
	p.mu.Lock()
	s.status.State = WorkerExited
	s.status.LastExit = res.code
	p.mu.Unlock()
	if res.err != nil {
		p.logger.Warn("worker wait failed", zap.Int("worker", s.id), zap.Error(res.err))
	}
}

// stop sends SIGTERM and escalates to SIGKILL after GracefulTimeout.
// It returns once the process has exited.
func (p *Pool) stop(s *slot, proc Process, exited <-chan exitResult) {
	pid := proc.Pid()
	if err := proc.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		p.logger.Debug("sigterm failed", zap.Int("worker", s.id), zap.Error(err))
	}

	timer := time.NewTimer(p.cfg.GracefulTimeout)
	defer timer.Stop()

	var res exitResult
	select {
	case res = <-exited:
	case <-timer.C:
		p.logger.Warn("worker ignored SIGTERM, killing",
			zap.Int("worker", s.id),
			zap.Int("pid", pid),
			zap.Duration("graceful_timeout", p.cfg.GracefulTimeout))
		if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			p.logger.Debug("kill failed", zap.Int("worker", s.id), zap.Error(err))
		}
		res = <-exited
	}

	// A reload may already have put the replacement's PID in the slot.
	p.mu.Lock()
	if s.status.PID == pid {
		s.status.State = WorkerExited
		s.status.LastExit = res.code
	}
	p.mu.Unlock()
	p.metrics.WorkerExited(s.id, res.code)
	p.logger.Info("worker stopped", zap.Int("worker", s.id), zap.Int("pid", pid), zap.Int("code", res.code))
}

// Reload replaces every worker one at a time. Each replacement is spawned
// before its predecessor receives SIGTERM.
func (p *Pool) Reload(ctx context.Context) error {
	if p.State() != PoolListening {
		return ErrPoolNotListening
	}

	p.reloadMu.Lock()
	defer p.reloadMu.Unlock()

	begin := time.Now()
	err := p.reload(ctx)
	p.metrics.Reload(time.Since(begin), err)
	if err != nil {
		p.logger.Error("reload failed", zap.Error(err))
		return err
	}
	p.logger.Info("reload complete", zap.Duration("took", time.Since(begin)))
	return nil
}

func (p *Pool) reload(ctx context.Context) error {
	for _, s := range p.slots {
		done := make(chan error, 1)
		select {
		case s.reload <- done:
		case <-p.stopped:
			return ErrPoolNotListening
		case <-ctx.Done():
			return ctx.Err()
		}
		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("reload worker %d: %w", s.id, err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Ready is closed once the socket is bound and workers are being spawned.
func (p *Pool) Ready() <-chan struct{} {
	return p.ready
}

// Done is closed when Run returns.
func (p *Pool) Done() <-chan struct{} {
	return p.stopped
}

// State returns the pool state.
func (p *Pool) State() PoolState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Addr returns the bound address, or nil before Run binds.
func (p *Pool) Addr() net.Addr {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.listener == nil {
		return nil
	}
	return p.listener.Addr()
}

// Workers returns a snapshot of every slot.
func (p *Pool) Workers() []WorkerStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]WorkerStatus, len(p.slots))
	for i, s := range p.slots {
		out[i] = s.status
	}
	return out
}

func (p *Pool) setState(to PoolState) {
	p.mu.Lock()
	from := p.state
	p.state = to
	p.mu.Unlock()
	if from != to {
		p.metrics.PoolStateTransition(from, to)
		p.logger.Debug("pool state", zap.Stringer("from", from), zap.Stringer("to", to))
	}
}
