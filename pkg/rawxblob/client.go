// Package rawxblob implements the HTTP RAWX back-end: it issues PUT,
// GET, and DELETE requests against a remote RAWX node using the same
// httpcodec.Writer/Reader pair the gateway front-end uses for its own
// HTTP surface, per spec.md §4.3's note that both roles share the
// reusable codec pieces.
package rawxblob

import (
	"context"
	"crypto/md5"
	"fmt"
	"hash"
	"time"

	"github.com/rawgate/rawgate/internal/netio"
	"github.com/rawgate/rawgate/pkg/httpcodec"
	"github.com/rawgate/rawgate/pkg/status"
	"github.com/rawgate/rawgate/pkg/txstate"
)

// Config configures one RAWX node endpoint.
type Config struct {
	Addr           string
	DialDeadline   time.Duration
	RequestDeadline time.Duration
}

func (c Config) withDefaults() Config {
	if c.DialDeadline == 0 {
		c.DialDeadline = 5 * time.Second
	}
	if c.RequestDeadline == 0 {
		c.RequestDeadline = 10 * time.Second
	}
	return c
}

// Backend issues HTTP requests against a single RAWX node.
type Backend struct {
	cfg Config
}

// New constructs a Backend targeting cfg.Addr.
func New(cfg Config) *Backend {
	cfg = cfg.withDefaults()
	return &Backend{cfg: cfg}
}

func (b *Backend) dial() (*netio.Channel, error) {
	deadline := time.Now().Add(b.cfg.DialDeadline).UnixMilli()
	return netio.Connect(b.cfg.Addr, deadline)
}

// connWriter/connReader adapt *netio.Channel's deadline-based API to the
// plain io.Reader/io.Writer httpcodec expects, applying a fixed
// per-call deadline derived from Config.RequestDeadline.
type connWriter struct {
	ch       *netio.Channel
	deadline int64
}

func (w connWriter) Write(p []byte) (int, error) {
	if err := w.ch.SendVectored([][]byte{p}, w.deadline); err != nil {
		return 0, err
	}
	return len(p), nil
}

type connReader struct {
	ch       *netio.Channel
	deadline int64
}

func (r connReader) Read(p []byte) (int, error) {
	n, outcome, err := r.ch.Read(p, r.deadline)
	if err != nil {
		return n, err
	}
	if outcome == netio.OutcomeEOF {
		return n, fmt.Errorf("rawxblob: connection closed")
	}
	return n, nil
}

func requestDeadline(d time.Duration) int64 {
	return time.Now().Add(d).UnixMilli()
}

// xattrHeaderPrefix is the default header family the gateway forwards as
// back-end xattrs, per spec.md §4.8/§6.
const xattrHeaderPrefix = "X-oio-chunk-meta-"

// UploadResult carries the byte count and checksum accumulated while
// streaming an Upload's body, mirroring the manifest entry every other
// back-end reports at Commit.
type UploadResult struct {
	Bytes int64
	MD5   string
}

// Upload is the RAWX HTTP back-end's Upload transaction: Prepare opens a
// connection and starts a chunked PUT request; Write streams body
// bytes; Commit finishes the request and reads the response status.
type Upload struct {
	txstate.Machine

	backend *Backend
	chunkID string

	conn   *netio.Channel
	writer *httpcodec.Writer
	reader *httpcodec.Reader

	hasher hash.Hash
	bytes  int64
	xattrs map[string]string
}

// NewUpload constructs an Upload for chunkID.
func (b *Backend) NewUpload(chunkID string) *Upload {
	return &Upload{backend: b, chunkID: chunkID, hasher: md5.New()}
}

// SetXattr records one xattr key/value to be forwarded as an
// X-oio-chunk-meta-<key> header to the RAWX node. Must be called before
// Prepare.
func (u *Upload) SetXattr(key, value string) {
	if u.xattrs == nil {
		u.xattrs = make(map[string]string)
	}
	u.xattrs[key] = value
}

func (u *Upload) deadline() int64 { return requestDeadline(u.backend.cfg.RequestDeadline) }

// Prepare dials the RAWX node and writes the PUT request line and
// headers, leaving the connection ready for Write to stream the body.
func (u *Upload) Prepare(ctx context.Context) error {
	if err := u.Machine.EnterPrepared(); err != nil {
		return err
	}
	ch, err := u.backend.dial()
	if err != nil {
		_ = u.Machine.EnterDone()
		return status.Wrap(status.NetworkError, status.CodeInternal, "dial rawx failed", err)
	}
	u.conn = ch
	u.writer = httpcodec.NewWriter(connWriter{ch: ch, deadline: u.deadline()}, httpcodec.ContentLengthChunked, nil)
	if err := u.writer.WriteRequestLine("PUT", "/"+u.chunkID); err != nil {
		_ = u.Machine.EnterDone()
		return status.Wrap(status.NetworkError, status.CodeInternal, "write request line failed", err)
	}
	for k, v := range u.xattrs {
		if err := u.writer.WriteHeader(xattrHeaderPrefix+k, v); err != nil {
			_ = u.Machine.EnterDone()
			return status.Wrap(status.NetworkError, status.CodeInternal, "write xattr header failed", err)
		}
	}
	if err := u.writer.WriteHeadersDone(); err != nil {
		_ = u.Machine.EnterDone()
		return status.Wrap(status.NetworkError, status.CodeInternal, "write headers failed", err)
	}
	return nil
}

// Write streams one body chunk to the RAWX node.
func (u *Upload) Write(ctx context.Context, buf []byte) error {
	if err := u.Machine.RequirePrepared(); err != nil {
		return err
	}
	if _, err := u.writer.Write(buf); err != nil {
		return status.Wrap(status.NetworkError, status.CodeInternal, "write body failed", err)
	}
	_, _ = u.hasher.Write(buf)
	u.bytes += int64(len(buf))
	return nil
}

// Commit finishes the chunked body and reads the RAWX node's response.
// A non-2xx status is mapped to Already/NotFound/NetworkError following
// the same convention the gateway applies to its own clients.
func (u *Upload) Commit(ctx context.Context) (UploadResult, error) {
	if err := u.Machine.RequirePrepared(); err != nil {
		return UploadResult{}, err
	}
	defer u.conn.Close()

	if err := u.writer.Finish(); err != nil {
		_ = u.Machine.EnterDone()
		return UploadResult{}, status.Wrap(status.NetworkError, status.CodeInternal, "finish request failed", err)
	}

	u.reader = httpcodec.NewReader(connReader{ch: u.conn, deadline: u.deadline()})
	sl, err := u.reader.ReadStartLine(false)
	if err != nil {
		_ = u.Machine.EnterDone()
		return UploadResult{}, status.Wrap(status.NetworkError, status.CodeInternal, "read status line failed", err)
	}
	if err := u.reader.ReadHeaders(); err != nil {
		_ = u.Machine.EnterDone()
		return UploadResult{}, status.Wrap(status.NetworkError, status.CodeInternal, "read response headers failed", err)
	}
	for u.reader.State() != httpcodec.Done {
		if _, err := u.reader.ReadBody(); err != nil {
			_ = u.Machine.EnterDone()
			return UploadResult{}, status.Wrap(status.NetworkError, status.CodeInternal, "read response body failed", err)
		}
	}

	if err := u.Machine.EnterDone(); err != nil {
		return UploadResult{}, err
	}
	if err := statusForHTTPCode(sl.Code); err != nil {
		return UploadResult{}, err
	}
	return UploadResult{Bytes: u.bytes, MD5: fmt.Sprintf("%x", u.hasher.Sum(nil))}, nil
}

// Abort closes the connection without finishing the request.
func (u *Upload) Abort(ctx context.Context) error {
	if err := u.Machine.RequireNotDone(); err != nil {
		return err
	}
	if u.conn != nil {
		_ = u.conn.Close()
	}
	return u.Machine.EnterDone()
}

func statusForHTTPCode(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == 404:
		return status.ErrNotFound
	case code == 406:
		return status.ErrAlreadyExists
	default:
		return status.New(status.NetworkError, status.CodeInternal, fmt.Sprintf("rawx replied %d", code))
	}
}
