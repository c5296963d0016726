package gateway

import (
	"context"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rawgate/rawgate/internal/logger"
	"github.com/rawgate/rawgate/internal/netio"
	"github.com/rawgate/rawgate/internal/sched"
	"github.com/rawgate/rawgate/pkg/metrics"
)

// Config configures the gateway's HTTP front-end, per spec.md §4.8/§6.
type Config struct {
	Bind string

	// XattrPrefix selects which request headers are forwarded to the
	// back-end as xattrs (default "X-oio-chunk-meta-").
	XattrPrefix string

	// ReadDeadline bounds each per-connection read, per spec.md §4.8's
	// "read 32KiB at a time with a 1s read deadline".
	ReadDeadline time.Duration
}

func (c Config) withDefaults() Config {
	if c.XattrPrefix == "" {
		c.XattrPrefix = "X-oio-chunk-meta-"
	}
	if c.ReadDeadline == 0 {
		c.ReadDeadline = time.Second
	}
	return c
}

// Server is the gateway's HTTP front-end: it accepts connections and
// serves PUT/GET/DELETE requests against a Backend, one transaction per
// request, per spec.md §4.8's dispatch table.
type Server struct {
	cfg     Config
	backend Backend
	metrics *metrics.GatewayMetrics

	ln      *netio.Listener
	running atomic.Bool
	conns   sched.Group
}

// NewServer constructs a Server dispatching requests to backend. Pass
// metrics.NewGatewayMetrics() (or nil) to SetMetrics to record
// per-request counters; a nil *GatewayMetrics is a no-op.
func NewServer(cfg Config, backend Backend) *Server {
	return &Server{cfg: cfg.withDefaults(), backend: backend}
}

// SetMetrics attaches m (possibly nil) to record per-request counters.
func (s *Server) SetMetrics(m *metrics.GatewayMetrics) { s.metrics = m }

// Listen binds cfg.Bind. Call Serve afterward to run the accept loop;
// split from ListenAndServe so callers (tests, a daemon reporting
// readiness) can observe the bound address before requests arrive.
func (s *Server) Listen() error {
	ln, err := netio.Listen(s.cfg.Bind, 128)
	if err != nil {
		return err
	}
	s.ln = ln
	return nil
}

// Addr returns the listener's bound address. Valid only after Listen.
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Serve accepts connections on the already-bound listener until ctx is
// cancelled, serving each on its own task.
func (s *Server) Serve(ctx context.Context) error {
	s.running.Store(true)
	defer s.ln.Close()

	sched.Spawn(ctx, "gateway-shutdown-watcher", func(ctx context.Context) {
		<-ctx.Done()
		s.running.Store(false)
		_ = s.ln.Close()
	})

	for s.running.Load() {
		ch, err := s.ln.Accept(0)
		if err != nil {
			if !s.running.Load() {
				break
			}
			logger.Warn("gateway accept failed", "error", err)
			continue
		}
		s.conns.Go(ctx, "gateway-conn", func(ctx context.Context) {
			s.serveConn(ctx, ch)
		})
	}

	s.conns.Wait()
	return nil
}

// ListenAndServe binds cfg.Bind and runs Serve until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// serveConn runs the per-connection request loop: read one request,
// dispatch it to completion, repeat until the peer closes or a parse
// error occurs, per spec.md §4.8. Every request on the connection shares
// one trace id so a drive-side RPC failure and the client-facing error it
// produced can be correlated in the logs.
func (s *Server) serveConn(ctx context.Context, ch *netio.Channel) {
	defer ch.Close()

	lc := logger.NewLogContext(clientIPOf(ch))
	lc.TraceID = uuid.NewString()
	ctx = logger.WithContext(ctx, lc)

	for {
		if err := s.serveOneRequest(ctx, ch); err != nil {
			if err != errConnClosed {
				logger.DebugCtx(ctx, "gateway connection closed", "error", err)
			}
			return
		}
	}
}

// clientIPOf returns ch's remote host without its port, or "" if the
// connection has no usable remote address (e.g. a test pipe).
func clientIPOf(ch *netio.Channel) string {
	host, _, err := net.SplitHostPort(ch.RemoteAddr().String())
	if err != nil {
		return ch.RemoteAddr().String()
	}
	return host
}

func (s *Server) xattrKey(headerName string) (string, bool) {
	if !strings.HasPrefix(strings.ToLower(headerName), strings.ToLower(s.cfg.XattrPrefix)) {
		return "", false
	}
	return headerName[len(s.cfg.XattrPrefix):], true
}
