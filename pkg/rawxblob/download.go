package rawxblob

import (
	"context"

	"github.com/rawgate/rawgate/internal/netio"
	"github.com/rawgate/rawgate/pkg/httpcodec"
	"github.com/rawgate/rawgate/pkg/status"
	"github.com/rawgate/rawgate/pkg/txstate"
)

// Download is the RAWX HTTP back-end's Download transaction: Prepare
// issues a GET and reads the response headers; Read streams the
// response body.
type Download struct {
	txstate.Machine

	backend *Backend
	chunkID string

	conn   *netio.Channel
	reader *httpcodec.Reader

	started   bool
	ranged    bool
	remaining int64
	pending   []byte
}

// NewDownload constructs a Download for chunkID.
func (b *Backend) NewDownload(chunkID string) *Download {
	return &Download{backend: b, chunkID: chunkID}
}

func (d *Download) deadline() int64 { return requestDeadline(d.backend.cfg.RequestDeadline) }

// Prepare issues the GET request and reads the response status and
// headers, failing NotFound on a 404 response.
func (d *Download) Prepare(ctx context.Context) error {
	if err := d.Machine.EnterPrepared(); err != nil {
		return err
	}
	ch, err := d.backend.dial()
	if err != nil {
		_ = d.Machine.EnterDone()
		return status.Wrap(status.NetworkError, status.CodeInternal, "dial rawx failed", err)
	}
	d.conn = ch

	w := httpcodec.NewWriter(connWriter{ch: ch, deadline: d.deadline()}, 0, nil)
	if err := w.WriteRequestLine("GET", "/"+d.chunkID); err != nil {
		_ = d.Machine.EnterDone()
		return status.Wrap(status.NetworkError, status.CodeInternal, "write request line failed", err)
	}
	if err := w.WriteHeadersDone(); err != nil {
		_ = d.Machine.EnterDone()
		return status.Wrap(status.NetworkError, status.CodeInternal, "write headers failed", err)
	}
	if err := w.Finish(); err != nil {
		_ = d.Machine.EnterDone()
		return status.Wrap(status.NetworkError, status.CodeInternal, "finish request failed", err)
	}

	d.reader = httpcodec.NewReader(connReader{ch: ch, deadline: d.deadline()})
	sl, err := d.reader.ReadStartLine(false)
	if err != nil {
		_ = d.Machine.EnterDone()
		return status.Wrap(status.NetworkError, status.CodeInternal, "read status line failed", err)
	}
	if err := d.reader.ReadHeaders(); err != nil {
		_ = d.Machine.EnterDone()
		return status.Wrap(status.NetworkError, status.CodeInternal, "read response headers failed", err)
	}
	if sl.Code == 404 {
		_ = d.Machine.EnterDone()
		return status.ErrNotFound
	}
	if sl.Code < 200 || sl.Code >= 300 {
		_ = d.Machine.EnterDone()
		return statusForHTTPCode(sl.Code)
	}
	return nil
}

// SetRange narrows the Download to [offset, offset+size), discarding the
// leading offset bytes of the already-open response body. Allowed only
// in Prepared before the first Read, per spec.md §4.4.
func (d *Download) SetRange(offset, size int64) error {
	if err := d.Machine.RequirePrepared(); err != nil {
		return err
	}
	if d.started {
		return status.New(status.InternalError, status.CodeInternal, "set_range called after read")
	}
	if offset < 0 || size < 0 {
		return status.New(status.Forbidden, status.CodeForbiddenRange, "negative range")
	}
	if total := d.reader.ContentLength(); total >= 0 && offset+size > total {
		return status.ErrNoData
	}

	var skipped int64
	for skipped < offset {
		b, err := d.reader.ReadBody()
		if err != nil {
			return status.Wrap(status.NetworkError, status.CodeInternal, "range skip failed", err)
		}
		if len(b) == 0 {
			break
		}
		if skipped+int64(len(b)) > offset {
			cut := offset - skipped
			d.pending = append([]byte(nil), b[cut:]...)
			skipped = offset
			break
		}
		skipped += int64(len(b))
	}
	if skipped < offset {
		return status.ErrNoData
	}

	d.ranged = true
	d.remaining = size
	return nil
}

// Read returns the next body slice, or a nil slice once the response is
// fully consumed.
func (d *Download) Read(ctx context.Context) ([]byte, error) {
	if err := d.Machine.RequirePrepared(); err != nil {
		return nil, err
	}
	d.started = true
	if d.ranged && d.remaining <= 0 {
		return nil, nil
	}

	var b []byte
	if len(d.pending) > 0 {
		b = d.pending
		d.pending = nil
	} else {
		var err error
		b, err = d.reader.AppendBody(nil)
		if err != nil {
			return nil, status.Wrap(status.NetworkError, status.CodeInternal, "read body failed", err)
		}
	}
	if d.ranged {
		if int64(len(b)) > d.remaining {
			b = b[:d.remaining]
		}
		d.remaining -= int64(len(b))
	}
	return b, nil
}

// IsEOF reports whether the response body has been fully consumed or,
// for a ranged Download, whether the requested range has been fully
// delivered.
func (d *Download) IsEOF() bool {
	if d.ranged && d.remaining <= 0 {
		return true
	}
	return d.reader != nil && d.reader.State() == httpcodec.Done
}

// Commit closes the connection.
func (d *Download) Commit(ctx context.Context) error {
	if d.conn != nil {
		_ = d.conn.Close()
	}
	return d.Machine.EnterDone()
}

// Abort closes the connection without finishing the read.
func (d *Download) Abort(ctx context.Context) error {
	if d.conn != nil {
		_ = d.conn.Close()
	}
	return d.Machine.EnterDone()
}
