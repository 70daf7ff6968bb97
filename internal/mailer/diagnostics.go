package mailer

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultDNSTimeout   = 3 * time.Second
	defaultProbeTimeout = 3 * time.Second
)

// Diagnostics logs DNS and TCP reachability of the SMTP host. It runs at most
// once per instance and its outcome never affects delivery.
type Diagnostics struct {
	host         string
	port         int
	dnsTimeout   time.Duration
	probeTimeout time.Duration
	logger       *zap.Logger

	lookupHost func(ctx context.Context, host string) ([]string, error)
	dial       func(ctx context.Context, network, address string) (net.Conn, error)

	started atomic.Bool
	once    sync.Once
}

func NewDiagnostics(host string, port int, dnsTimeout, probeTimeout time.Duration, logger *zap.Logger) *Diagnostics {
	if dnsTimeout <= 0 {
		dnsTimeout = defaultDNSTimeout
	}
	if probeTimeout <= 0 {
		probeTimeout = defaultProbeTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	dialer := &net.Dialer{}
	return &Diagnostics{
		host:         host,
		port:         port,
		dnsTimeout:   dnsTimeout,
		probeTimeout: probeTimeout,
		logger:       logger,
		lookupHost:   net.DefaultResolver.LookupHost,
		dial:         dialer.DialContext,
	}
}

// Start runs the diagnostics in the background on first call. Later calls
// do not spawn anything.
func (d *Diagnostics) Start(ctx context.Context) {
	if d == nil || !d.started.CompareAndSwap(false, true) {
		return
	}
	go d.Run(context.WithoutCancel(ctx))
}

// Run performs the lookup and probe concurrently and blocks until both have
// been logged. Later calls return immediately.
func (d *Diagnostics) Run(ctx context.Context) {
	if d == nil {
		return
	}
	d.once.Do(func() { d.run(ctx) })
}

func (d *Diagnostics) run(ctx context.Context) {
	address := net.JoinHostPort(d.host, strconv.Itoa(d.port))
	logger := d.logger.With(zap.String("smtpHost", d.host), zap.Int("smtpPort", d.port))

	var g errgroup.Group
	g.Go(func() error {
		lookupCtx, cancel := context.WithTimeout(ctx, d.dnsTimeout)
		defer cancel()

		addrs, err := d.lookupHost(lookupCtx, d.host)
		if err != nil {
			logger.Warn("smtp dns lookup failed", zap.Error(err), zap.Bool("timeout", isTimeout(lookupCtx, err)))
			return nil
		}
		logger.Info("smtp dns lookup resolved", zap.Strings("addresses", addrs))
		return nil
	})
	g.Go(func() error {
		probeCtx, cancel := context.WithTimeout(ctx, d.probeTimeout)
		defer cancel()

		started := time.Now()
		conn, err := d.dial(probeCtx, "tcp", address)
		if err != nil {
			if isTimeout(probeCtx, err) {
				logger.Warn("smtp tcp probe timed out", zap.Duration("timeout", d.probeTimeout))
				return nil
			}
			logger.Warn("smtp tcp probe failed", zap.Error(err))
			return nil
		}
		_ = conn.Close()
		logger.Info("smtp tcp probe connected", zap.Duration("elapsed", time.Since(started)))
		return nil
	})
	_ = g.Wait()
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
