package launcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"
)

// InheritedListener returns the socket the master passed to this worker.
func InheritedListener() (net.Listener, error) {
	raw := os.Getenv(EnvListenerFD)
	if raw == "" {
		return nil, fmt.Errorf("%w: %s is not set", ErrNoInheritedListener, EnvListenerFD)
	}
	fd, err := strconv.Atoi(raw)
	if err != nil || fd < listenerFD {
		return nil, fmt.Errorf("%w: %s=%q", ErrNoInheritedListener, EnvListenerFD, raw)
	}

	f := os.NewFile(uintptr(fd), "alchemist-listener")
	if f == nil {
		return nil, fmt.Errorf("%w: fd %d", ErrNoInheritedListener, fd)
	}
	defer f.Close()

	ln, err := net.FileListener(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoInheritedListener, err)
	}
	return ln, nil
}

// WorkerID returns the slot number the master assigned, or 0.
func WorkerID() int {
	id, err := strconv.Atoi(os.Getenv(EnvWorkerID))
	if err != nil || id < 0 {
		return 0
	}
	return id
}

// WorkerCount returns the pool size the master advertised, or 1.
func WorkerCount() int {
	n, err := strconv.Atoi(os.Getenv(EnvWorkers))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// Serve runs h on ln until ctx is cancelled, then drains in-flight
// requests for at most shutdownTimeout.
func Serve(ctx context.Context, ln net.Listener, h http.Handler, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	if serveErr := <-errCh; serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) && err == nil {
		err = serveErr
	}
	return err
}
