package mailer

import (
	"context"
	"errors"
	"net"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestDiagnosticsRunsOnce(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	d := NewDiagnostics("smtp.kartarkiv.test", 587, time.Second, time.Second, zap.New(core))

	var lookups atomic.Int32
	var dials atomic.Int32
	d.lookupHost = func(ctx context.Context, host string) ([]string, error) {
		lookups.Add(1)
		return []string{"192.0.2.10"}, nil
	}
	d.dial = func(ctx context.Context, network, address string) (net.Conn, error) {
		dials.Add(1)
		client, server := net.Pipe()
		_ = server.Close()
		return client, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Run(context.Background())
		}()
	}
	wg.Wait()

	if got := lookups.Load(); got != 1 {
		t.Fatalf("lookups = %d, want 1", got)
	}
	if got := dials.Load(); got != 1 {
		t.Fatalf("dials = %d, want 1", got)
	}
	if got := logs.FilterMessage("smtp dns lookup resolved").Len(); got != 1 {
		t.Fatalf("dns log entries = %d, want 1", got)
	}
	if got := logs.FilterMessage("smtp tcp probe connected").Len(); got != 1 {
		t.Fatalf("probe log entries = %d, want 1", got)
	}
}

// Not parallel: the goroutine count must not include other tests.
func TestDiagnosticsStartSpawnsSingleGoroutine(t *testing.T) {
	d := NewDiagnostics("smtp.kartarkiv.test", 587, time.Second, time.Second, zap.NewNop())

	release := make(chan struct{})
	var lookups atomic.Int32
	d.lookupHost = func(ctx context.Context, host string) ([]string, error) {
		lookups.Add(1)
		<-release
		return []string{"192.0.2.10"}, nil
	}
	d.dial = func(ctx context.Context, network, address string) (net.Conn, error) {
		<-release
		return nil, errors.New("connection refused")
	}

	before := runtime.NumGoroutine()
	const calls = 100
	for i := 0; i < calls; i++ {
		d.Start(context.Background())
	}
	// Run plus its lookup and dial workers.
	if grown := runtime.NumGoroutine() - before; grown > 10 {
		close(release)
		t.Fatalf("goroutines grew by %d after %d Start calls, want a single run", grown, calls)
	}

	close(release)
	deadline := time.Now().Add(2 * time.Second)
	for lookups.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := lookups.Load(); got != 1 {
		t.Fatalf("lookups = %d, want 1", got)
	}
}

func TestDiagnosticsLogsFailuresWithoutPanicking(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	d := NewDiagnostics("smtp.kartarkiv.test", 587, 20*time.Millisecond, 20*time.Millisecond, zap.New(core))

	d.lookupHost = func(ctx context.Context, host string) ([]string, error) {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	d.dial = func(ctx context.Context, network, address string) (net.Conn, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	d.Run(context.Background())

	if got := logs.FilterMessage("smtp dns lookup failed").Len(); got != 1 {
		t.Fatalf("dns failure log entries = %d, want 1", got)
	}
	if got := logs.FilterMessage("smtp tcp probe timed out").Len(); got != 1 {
		t.Fatalf("probe timeout log entries = %d, want 1", got)
	}
}

func TestDiagnosticsNilIsSafe(t *testing.T) {
	t.Parallel()

	var d *Diagnostics
	d.Run(context.Background())
	d.Start(context.Background())
}

func TestIsTimeout(t *testing.T) {
	t.Parallel()

	if !isTimeout(context.Background(), context.DeadlineExceeded) {
		t.Fatal("deadline exceeded should count as timeout")
	}
	if isTimeout(context.Background(), errors.New("refused")) {
		t.Fatal("plain error should not count as timeout")
	}
}
