package rawxblob

import (
	"context"

	"github.com/rawgate/rawgate/internal/netio"
	"github.com/rawgate/rawgate/pkg/httpcodec"
	"github.com/rawgate/rawgate/pkg/status"
	"github.com/rawgate/rawgate/pkg/txstate"
)

// Removal is the RAWX HTTP back-end's Removal transaction: Prepare
// dials and sends a DELETE request, Commit reads the response status.
type Removal struct {
	txstate.Machine

	backend *Backend
	chunkID string

	conn *netio.Channel
}

// NewRemoval constructs a Removal for chunkID.
func (b *Backend) NewRemoval(chunkID string) *Removal {
	return &Removal{backend: b, chunkID: chunkID}
}

func (r *Removal) deadline() int64 { return requestDeadline(r.backend.cfg.RequestDeadline) }

// Prepare dials the RAWX node and writes the DELETE request.
func (r *Removal) Prepare(ctx context.Context) error {
	if err := r.Machine.EnterPrepared(); err != nil {
		return err
	}
	ch, err := r.backend.dial()
	if err != nil {
		_ = r.Machine.EnterDone()
		return status.Wrap(status.NetworkError, status.CodeInternal, "dial rawx failed", err)
	}
	r.conn = ch

	w := httpcodec.NewWriter(connWriter{ch: ch, deadline: r.deadline()}, 0, nil)
	if err := w.WriteRequestLine("DELETE", "/"+r.chunkID); err != nil {
		_ = r.Machine.EnterDone()
		return status.Wrap(status.NetworkError, status.CodeInternal, "write request line failed", err)
	}
	if err := w.WriteHeadersDone(); err != nil {
		_ = r.Machine.EnterDone()
		return status.Wrap(status.NetworkError, status.CodeInternal, "write headers failed", err)
	}
	if err := w.Finish(); err != nil {
		_ = r.Machine.EnterDone()
		return status.Wrap(status.NetworkError, status.CodeInternal, "finish request failed", err)
	}
	return nil
}

// Commit reads the RAWX node's response and maps its status, failing
// NotFound on a 404 response.
func (r *Removal) Commit(ctx context.Context) error {
	if err := r.Machine.RequirePrepared(); err != nil {
		return err
	}
	defer r.conn.Close()

	reader := httpcodec.NewReader(connReader{ch: r.conn, deadline: r.deadline()})
	sl, err := reader.ReadStartLine(false)
	if err != nil {
		_ = r.Machine.EnterDone()
		return status.Wrap(status.NetworkError, status.CodeInternal, "read status line failed", err)
	}
	if err := reader.ReadHeaders(); err != nil {
		_ = r.Machine.EnterDone()
		return status.Wrap(status.NetworkError, status.CodeInternal, "read response headers failed", err)
	}
	for reader.State() != httpcodec.Done {
		if _, err := reader.ReadBody(); err != nil {
			_ = r.Machine.EnterDone()
			return status.Wrap(status.NetworkError, status.CodeInternal, "read response body failed", err)
		}
	}

	if err := r.Machine.EnterDone(); err != nil {
		return err
	}
	return statusForHTTPCode(sl.Code)
}

// Abort closes the connection without waiting for a response.
func (r *Removal) Abort(ctx context.Context) error {
	if r.conn != nil {
		_ = r.conn.Close()
	}
	return r.Machine.EnterDone()
}
