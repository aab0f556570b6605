package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var ErrAlreadyRunning = errors.New("proctor session already running")

const defaultProbeTimeout = 180 * time.Millisecond

// RuntimeSocketPath is the control socket of the session owner for this user.
func RuntimeSocketPath() (string, error) {
	runtimeDir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if runtimeDir == "" {
		return "", errors.New("XDG_RUNTIME_DIR is not set")
	}
	return filepath.Join(runtimeDir, "proctor.sock"), nil
}

type AcquireOptions struct {
	ProbeTimeout time.Duration
	Retries      int
	// OnStale runs after an unresponsive socket has been unlinked.
	OnStale func(context.Context) error
}

// Owner is the listening side of the control socket. Only one process
// per runtime dir holds it at a time.
type Owner struct {
	net.Listener

	path      string
	closeOnce sync.Once
	closeErr  error
}

func (o *Owner) Path() string { return o.path }

// Close stops accepting and unlinks the socket. It is safe to call more
// than once.
func (o *Owner) Close() error {
	o.closeOnce.Do(func() {
		o.closeErr = o.Listener.Close()
		if err := os.Remove(o.path); err != nil && !errors.Is(err, os.ErrNotExist) && o.closeErr == nil {
			o.closeErr = err
		}
	})
	return o.closeErr
}

// Acquire takes ownership of path. A responsive owner yields
// ErrAlreadyRunning; a dead socket file is removed and the listen retried.
// An owner that accepts but does not answer in time is left alone.
func Acquire(ctx context.Context, path string, opts AcquireOptions) (*Owner, error) {
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = defaultProbeTimeout
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("ensure runtime socket dir: %w", err)
	}

	for attempt := 0; attempt <= opts.Retries; attempt++ {
		listener, err := net.Listen("unix", path)
		if err == nil {
			_ = os.Chmod(path, 0o600)
			return &Owner{Listener: listener, path: path}, nil
		}
		if !isAddrInUse(err) {
			return nil, fmt.Errorf("listen unix %s: %w", path, err)
		}

		alive, probeErr := Probe(ctx, path, opts.ProbeTimeout)
		if alive {
			return nil, ErrAlreadyRunning
		}
		if probeErr != nil {
			return nil, fmt.Errorf("probe existing socket %s: %w", path, probeErr)
		}

		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale socket %s: %w", path, err)
		}
		if opts.OnStale != nil {
			_ = opts.OnStale(ctx)
		}

		if attempt < opts.Retries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(25*(attempt+1)) * time.Millisecond):
			}
		}
	}

	return nil, fmt.Errorf("failed to acquire socket %s after %d retries", path, opts.Retries)
}

func isAddrInUse(err error) bool {
	return err != nil && strings.Contains(err.Error(), "address already in use")
}
