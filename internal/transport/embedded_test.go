package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"
)

// fakeDaemon stands in for a bootstrapped Tor process.
type fakeDaemon struct {
	addr    string
	stopped atomic.Int32
}

func (d *fakeDaemon) SocksAddr() string { return d.addr }

func (d *fakeDaemon) Stop() error {
	d.stopped.Add(1)
	return nil
}

func launcherFor(d *fakeDaemon) torLauncher {
	return func(time.Duration) (torDaemon, error) {
		return d, nil
	}
}

func TestNewEmbeddedTor(t *testing.T) {
	t.Parallel()

	t.Run("creates with default timeout", func(t *testing.T) {
		t.Parallel()

		embedded := NewEmbeddedTor()
		if embedded.startupTimeout != DefaultTorStartupTimeout {
			t.Errorf("expected default timeout %v, got %v", DefaultTorStartupTimeout, embedded.startupTimeout)
		}
	})

	t.Run("applies WithStartupTimeout", func(t *testing.T) {
		t.Parallel()

		embedded := NewEmbeddedTor(WithStartupTimeout(5 * time.Minute))
		if embedded.startupTimeout != 5*time.Minute {
			t.Errorf("expected timeout 5m, got %v", embedded.startupTimeout)
		}
	})

	t.Run("passes the startup timeout to the launcher", func(t *testing.T) {
		t.Parallel()

		var got time.Duration
		embedded := NewEmbeddedTor(WithStartupTimeout(time.Minute), withLauncher(func(d time.Duration) (torDaemon, error) {
			got = d
			return &fakeDaemon{addr: "127.0.0.1:9050"}, nil
		}))
		if err := embedded.Start(t.Context()); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if got != time.Minute {
			t.Errorf("launcher timeout = %v, want 1m", got)
		}
	})
}

func TestEmbeddedTor_NotStarted(t *testing.T) {
	t.Parallel()

	embedded := NewEmbeddedTor()
	if embedded.IsRunning() {
		t.Error("expected IsRunning to be false before start")
	}
	if embedded.SocksAddr() != "" {
		t.Error("expected empty SocksAddr before start")
	}
	if err := embedded.Stop(); err != nil {
		t.Errorf("Stop() on idle instance = %v, want nil", err)
	}
	if _, err := embedded.NewHTTPClient(Options{}); !errors.Is(err, ErrTorNotRunning) {
		t.Errorf("NewHTTPClient() error = %v, want ErrTorNotRunning", err)
	}
}

func TestEmbeddedTor_Lifecycle(t *testing.T) {
	t.Parallel()

	daemon := &fakeDaemon{addr: "127.0.0.1:9050"}
	embedded := NewEmbeddedTor(withLauncher(launcherFor(daemon)))

	if err := embedded.Start(t.Context()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !embedded.IsRunning() || embedded.SocksAddr() != daemon.addr {
		t.Errorf("after Start: running=%v addr=%q", embedded.IsRunning(), embedded.SocksAddr())
	}
	if err := embedded.Start(t.Context()); !errors.Is(err, ErrTorAlreadyRunning) {
		t.Errorf("second Start() error = %v, want ErrTorAlreadyRunning", err)
	}

	if err := embedded.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := embedded.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
	if n := daemon.stopped.Load(); n != 1 {
		t.Errorf("daemon stopped %d times, want 1", n)
	}
	if embedded.IsRunning() {
		t.Error("expected IsRunning to be false after Stop")
	}
}

func TestEmbeddedTor_StartFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("bootstrap timed out")
	embedded := NewEmbeddedTor(withLauncher(func(time.Duration) (torDaemon, error) {
		return nil, boom
	}))

	err := embedded.Start(t.Context())
	if !errors.Is(err, ErrTorStartup) || !errors.Is(err, boom) {
		t.Errorf("Start() error = %v, want ErrTorStartup wrapping the cause", err)
	}
	if embedded.IsRunning() {
		t.Error("expected IsRunning to be false after failed start")
	}
}

func TestEmbeddedTor_StartCancelled(t *testing.T) {
	t.Parallel()

	daemon := &fakeDaemon{addr: "127.0.0.1:9050"}
	release := make(chan struct{})
	embedded := NewEmbeddedTor(withLauncher(func(time.Duration) (torDaemon, error) {
		<-release
		return daemon, nil
	}))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if err := embedded.Start(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Start() error = %v, want context.Canceled", err)
	}
	close(release)

	deadline := time.Now().Add(2 * time.Second)
	for daemon.stopped.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := daemon.stopped.Load(); n != 1 {
		t.Errorf("late daemon stopped %d times, want 1", n)
	}
	if embedded.IsRunning() {
		t.Error("expected IsRunning to be false after cancelled start")
	}
}

func TestEmbeddedTor_NewHTTPClientUsesDaemon(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	greeting := make(chan byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 1)
		if _, err := io.ReadFull(conn, buf); err == nil {
			greeting <- buf[0]
		}
	}()

	embedded := NewEmbeddedTor(withLauncher(launcherFor(&fakeDaemon{addr: ln.Addr().String()})))
	if err := embedded.Start(t.Context()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = embedded.Stop() })

	client, err := embedded.NewHTTPClient(Options{Timeout: 2 * time.Second, ProxyAddress: "10.0.0.1:1080", UserAgent: "ua"})
	if err != nil {
		t.Fatalf("NewHTTPClient() error = %v", err)
	}

	// The fake daemon never answers the handshake, so the request fails
	// after the SOCKS5 greeting has been sent to it.
	if resp, err := client.Get("http://forum.example/thread/1-a/index1.html"); err == nil {
		resp.Body.Close()
		t.Fatal("Get() succeeded, want a proxy failure")
	}

	select {
	case v := <-greeting:
		if v != 0x05 {
			t.Errorf("first byte = %#x, want SOCKS5 version 0x05", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("daemon address received no connection")
	}
}
