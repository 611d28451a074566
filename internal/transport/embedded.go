package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/nao1215/tornago"
)

// DefaultTorStartupTimeout bounds the bootstrap of an embedded daemon.
const DefaultTorStartupTimeout = 3 * time.Minute

// torDaemon is the part of a running Tor process that direct fetches need.
type torDaemon interface {
	SocksAddr() string
	Stop() error
}

// torLauncher starts a daemon and blocks until it has bootstrapped.
type torLauncher func(startupTimeout time.Duration) (torDaemon, error)

// launchTor starts a tornago daemon on OS-assigned ports.
func launchTor(startupTimeout time.Duration) (torDaemon, error) {
	launchCfg, err := tornago.NewTorLaunchConfig(
		tornago.WithTorSocksAddr(":0"),
		tornago.WithTorControlAddr(":0"),
		tornago.WithTorStartupTimeout(startupTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("tor launch config: %w", err)
	}
	process, err := tornago.StartTorDaemon(launchCfg)
	if err != nil {
		return nil, err
	}
	return process, nil
}

// EmbeddedTor routes direct fetches through a Tor daemon owned by the
// process. Use it when a forum blocks the caller's address and no
// external proxy is available. Bootstrapping takes minutes.
type EmbeddedTor struct {
	mu             sync.Mutex
	daemon         torDaemon
	startupTimeout time.Duration
	launch         torLauncher
}

// EmbeddedTorOption configures an EmbeddedTor.
type EmbeddedTorOption func(*EmbeddedTor)

// WithStartupTimeout bounds the daemon bootstrap.
func WithStartupTimeout(timeout time.Duration) EmbeddedTorOption {
	return func(e *EmbeddedTor) {
		if timeout > 0 {
			e.startupTimeout = timeout
		}
	}
}

// withLauncher replaces the tornago launcher.
func withLauncher(launch torLauncher) EmbeddedTorOption {
	return func(e *EmbeddedTor) {
		e.launch = launch
	}
}

// NewEmbeddedTor prepares a daemon. Nothing runs until Start.
func NewEmbeddedTor(opts ...EmbeddedTorOption) *EmbeddedTor {
	e := &EmbeddedTor{
		startupTimeout: DefaultTorStartupTimeout,
		launch:         launchTor,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start bootstraps the daemon. If ctx ends first Start returns ctx.Err()
// and the daemon is stopped as soon as its launch completes.
func (e *EmbeddedTor) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.daemon != nil {
		return ErrTorAlreadyRunning
	}

	type launched struct {
		daemon torDaemon
		err    error
	}
	done := make(chan launched, 1)
	go func() {
		d, err := e.launch(e.startupTimeout)
		done <- launched{daemon: d, err: err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if l := <-done; l.err == nil {
				_ = l.daemon.Stop() //nolint:errcheck // nobody is left to report to
			}
		}()
		return ctx.Err()
	case l := <-done:
		if l.err != nil {
			return fmt.Errorf("%w: %w", ErrTorStartup, l.err)
		}
		e.daemon = l.daemon
		return nil
	}
}

// Stop shuts the daemon down. Stopping an idle EmbeddedTor is a no-op.
func (e *EmbeddedTor) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.daemon == nil {
		return nil
	}
	err := e.daemon.Stop()
	e.daemon = nil
	return err
}

// SocksAddr returns the daemon's SOCKS5 address, or "" when it is not running.
func (e *EmbeddedTor) SocksAddr() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.daemon == nil {
		return ""
	}
	return e.daemon.SocksAddr()
}

// IsRunning reports whether Start succeeded and Stop has not been called.
func (e *EmbeddedTor) IsRunning() bool {
	return e.SocksAddr() != ""
}

// NewHTTPClient creates a direct-fetch client routed through the daemon.
// Any ProxyAddress in opts is replaced.
func (e *EmbeddedTor) NewHTTPClient(opts Options) (*http.Client, error) {
	addr := e.SocksAddr()
	if addr == "" {
		return nil, ErrTorNotRunning
	}

	opts.ProxyAddress = addr
	return NewHTTPClient(opts)
}
