package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rawgate/rawgate/internal/netio"
	"github.com/rawgate/rawgate/internal/tracing"
	"github.com/rawgate/rawgate/pkg/httpcodec"
	"github.com/rawgate/rawgate/pkg/status"
)

// requestResult summarizes one completed request for metrics purposes.
type requestResult struct {
	bytes   int64
	outcome string
}

// errConnClosed signals serveConn that the peer closed the connection
// between requests (not a protocol error worth logging).
var errConnClosed = errors.New("gateway: connection closed by peer")

// reasonPhrase is the minimal set of reason phrases the gateway emits;
// anything outside the table falls back to a generic phrase.
var reasonPhrase = map[int]string{
	100: "Continue",
	200: "OK",
	201: "Created",
	400: "Bad Request",
	403: "Forbidden",
	404: "Not Found",
	406: "Not Acceptable",
	500: "Internal Server Error",
	501: "Not Implemented",
	502: "Bad Gateway",
	503: "Service Unavailable",
}

func reasonFor(code int) string {
	if r, ok := reasonPhrase[code]; ok {
		return r
	}
	return "Status"
}

// serveOneRequest reads and fully serves one HTTP request on ch, per
// spec.md §4.8's dispatch table. It returns errConnClosed when the peer
// closed the connection before sending a start line (the normal way a
// keep-alive connection ends).
func (s *Server) serveOneRequest(ctx context.Context, ch *netio.Channel) error {
	deadline := requestDeadline(s.cfg.ReadDeadline)
	reader := httpcodec.NewReader(connReader{ch: ch, deadline: deadline})

	sl, err := reader.ReadStartLine(true)
	if err != nil {
		return errConnClosed
	}
	if err := reader.ReadHeaders(); err != nil {
		return fmt.Errorf("gateway: read headers: %w", err)
	}

	chunkID, ok := parseChunkID(sl.Target)
	if !ok {
		s.drainAndRespond(ctx, ch, reader, deadline, status.New(status.InternalError, 400, "missing chunk id"), 400)
		return nil
	}

	start := time.Now()
	var op string
	var result requestResult
	switch sl.Method {
	case "PUT":
		op = "put"
		spanCtx, span := tracing.StartSpan(ctx, "gateway.put")
		result = s.handlePut(spanCtx, ch, reader, deadline, chunkID)
		finishSpan(span, result)
	case "GET":
		op = "get"
		spanCtx, span := tracing.StartSpan(ctx, "gateway.get")
		result = s.handleGet(spanCtx, ch, reader, deadline, chunkID)
		finishSpan(span, result)
	case "DELETE":
		op = "delete"
		spanCtx, span := tracing.StartSpan(ctx, "gateway.delete")
		result = s.handleDelete(spanCtx, ch, reader, deadline, chunkID)
		finishSpan(span, result)
	default:
		s.drainAndRespond(ctx, ch, reader, deadline, status.New(status.Unsupported, 501, "method not managed"), 406)
		return nil
	}
	s.metrics.Observe(op, result.outcome, result.bytes, start)
	return nil
}

// finishSpan annotates span with the request's outcome and ends it.
func finishSpan(span trace.Span, result requestResult) {
	span.SetAttributes(attribute.String("rawgate.outcome", result.outcome), attribute.Int64("rawgate.bytes", result.bytes))
	if result.outcome != "ok" {
		span.SetStatus(codes.Error, result.outcome)
	}
	span.End()
}

// parseChunkID extracts the chunk id as the last non-empty path segment
// of target, per spec.md §4.8. An empty or missing path is rejected.
func parseChunkID(target string) (string, bool) {
	path := target
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	segments := strings.Split(path, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" {
			return segments[i], true
		}
	}
	return "", false
}

// forwardedXattrs collects the request headers matching cfg.XattrPrefix
// into a plain map, stripping the prefix from each key.
func (s *Server) forwardedXattrs(reader *httpcodec.Reader) map[string]string {
	var out map[string]string
	for _, h := range reader.Headers() {
		if key, ok := s.xattrKey(h.Name); ok {
			if out == nil {
				out = make(map[string]string)
			}
			out[key] = h.Value
		}
	}
	return out
}

func expectsContinue(reader *httpcodec.Reader) bool {
	v, ok := reader.HeaderValue("Expect")
	return ok && strings.EqualFold(strings.TrimSpace(v), "100-continue")
}

// drainBody discards any remaining request body so the connection stays
// in sync for the next keep-alive request.
func drainBody(reader *httpcodec.Reader) {
	for reader.State() != httpcodec.Done {
		if _, err := reader.ReadBody(); err != nil {
			return
		}
	}
}

// reply100Continue emits a bare "100 Continue" interim response with no
// headers or body, the way an HTTP/1.1 server tells its peer to proceed
// with the request body.
func reply100Continue(ch *netio.Channel, deadline int64) error {
	_, err := connWriter{ch: ch, deadline: deadline}.Write([]byte("HTTP/1.1 100 Continue\r\n\r\n"))
	return err
}

// writeStatus emits a response with a small JSON body describing st, per
// spec.md §7's {"status": <int>, "message": "<string>"} error schema.
func writeStatus(ch *netio.Channel, deadline int64, httpCode int, st *status.Status) error {
	body := fmt.Sprintf(`{"status":%d,"message":%q}`, st.Code, st.Message)
	w := httpcodec.NewWriter(connWriter{ch: ch, deadline: deadline}, int64(len(body)), nil)
	if err := w.WriteStatusLine(httpCode, reasonFor(httpCode)); err != nil {
		return err
	}
	if err := w.WriteHeader("Content-Type", "application/json"); err != nil {
		return err
	}
	if err := w.WriteHeadersDone(); err != nil {
		return err
	}
	if _, err := w.Write([]byte(body)); err != nil {
		return err
	}
	return w.Finish()
}

// drainAndRespond discards the request body (if any) and writes a single
// JSON status response, for error paths reached before a back-end
// transaction was started.
func (s *Server) drainAndRespond(ctx context.Context, ch *netio.Channel, reader *httpcodec.Reader, deadline int64, st *status.Status, httpCode int) {
	if reader.State() == httpcodec.Headers {
		_ = reader.ReadHeaders()
	}
	drainBody(reader)
	_ = writeStatus(ch, deadline, httpCode, st)
}

func statusFromErr(err error) *status.Status {
	var st *status.Status
	if errors.As(err, &st) {
		return st
	}
	return status.Wrap(status.InternalError, status.CodeInternal, "internal error", err)
}
