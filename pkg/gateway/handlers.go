package gateway

import (
	"context"
	"fmt"

	"github.com/rawgate/rawgate/internal/logger"
	"github.com/rawgate/rawgate/internal/netio"
	"github.com/rawgate/rawgate/pkg/httpcodec"
	"github.com/rawgate/rawgate/pkg/status"
)

// handlePut implements spec.md §4.8's upload dispatch: reply_100 (if the
// client asked for it), Prepare, stream body chunks into Write, then
// Commit and report the resulting byte count and checksum.
func (s *Server) handlePut(ctx context.Context, ch *netio.Channel, reader *httpcodec.Reader, deadline int64, chunkID string) requestResult {
	if expectsContinue(reader) {
		if err := reply100Continue(ch, deadline); err != nil {
			logger.DebugCtx(ctx, "gateway: reply 100 continue failed", "error", err)
			return requestResult{outcome: "network_error"}
		}
	}

	upload := s.backend.NewUpload(chunkID)
	for k, v := range s.forwardedXattrs(reader) {
		upload.SetXattr(k, v)
	}

	if err := upload.Prepare(ctx); err != nil {
		st := statusFromErr(err)
		drainBody(reader)
		_ = writeStatus(ch, deadline, st.Kind.HTTPStatus(), st)
		return requestResult{outcome: st.Kind.String()}
	}

	for reader.State() != httpcodec.Done {
		buf, err := reader.ReadBody()
		if err != nil {
			_ = upload.Abort(ctx)
			_ = writeStatus(ch, deadline, 500, status.Wrap(status.InternalError, status.CodeInternal, "read body failed", err))
			return requestResult{outcome: "network_error"}
		}
		if len(buf) == 0 {
			continue
		}
		if err := upload.Write(ctx, buf); err != nil {
			_ = upload.Abort(ctx)
			st := statusFromErr(err)
			_ = writeStatus(ch, deadline, st.Kind.HTTPStatus(), st)
			return requestResult{outcome: st.Kind.String()}
		}
	}

	result, err := upload.Commit(ctx)
	if err != nil {
		st := statusFromErr(err)
		_ = writeStatus(ch, deadline, st.Kind.HTTPStatus(), st)
		return requestResult{outcome: st.Kind.String()}
	}

	body := fmt.Sprintf(`{"stream":{"bytes":%d,"md5":%q}}`, result.Bytes, result.MD5)
	w := httpcodec.NewWriter(connWriter{ch: ch, deadline: deadline}, int64(len(body)), nil)
	if err := w.WriteStatusLine(201, reasonFor(201)); err != nil {
		return requestResult{bytes: result.Bytes, outcome: "network_error"}
	}
	if err := w.WriteHeader("Content-Type", "application/json"); err != nil {
		return requestResult{bytes: result.Bytes, outcome: "network_error"}
	}
	if err := w.WriteHeadersDone(); err != nil {
		return requestResult{bytes: result.Bytes, outcome: "network_error"}
	}
	if _, err := w.Write([]byte(body)); err != nil {
		return requestResult{bytes: result.Bytes, outcome: "network_error"}
	}
	_ = w.Finish()
	return requestResult{bytes: result.Bytes, outcome: "ok"}
}

// handleGet implements spec.md §4.8's download dispatch: Prepare, reply
// 200 with a chunked body, then stream Read until IsEOF before Commit.
func (s *Server) handleGet(ctx context.Context, ch *netio.Channel, reader *httpcodec.Reader, deadline int64, chunkID string) requestResult {
	drainBody(reader)

	download := s.backend.NewDownload(chunkID)
	if err := download.Prepare(ctx); err != nil {
		st := statusFromErr(err)
		_ = writeStatus(ch, deadline, st.Kind.HTTPStatus(), st)
		return requestResult{outcome: st.Kind.String()}
	}

	w := httpcodec.NewWriter(connWriter{ch: ch, deadline: deadline}, httpcodec.ContentLengthChunked, nil)
	if err := w.WriteStatusLine(200, reasonFor(200)); err != nil {
		_ = download.Abort(ctx)
		return requestResult{outcome: "network_error"}
	}
	if err := w.WriteHeadersDone(); err != nil {
		_ = download.Abort(ctx)
		return requestResult{outcome: "network_error"}
	}

	var bytes int64
	for !download.IsEOF() {
		buf, err := download.Read(ctx)
		if err != nil {
			_ = download.Abort(ctx)
			return requestResult{bytes: bytes, outcome: "network_error"}
		}
		if len(buf) == 0 {
			continue
		}
		bytes += int64(len(buf))
		if _, err := w.Write(buf); err != nil {
			_ = download.Abort(ctx)
			return requestResult{bytes: bytes, outcome: "network_error"}
		}
	}

	if err := w.Finish(); err != nil {
		_ = download.Abort(ctx)
		return requestResult{bytes: bytes, outcome: "network_error"}
	}
	_ = download.Commit(ctx)
	return requestResult{bytes: bytes, outcome: "ok"}
}

// handleDelete implements spec.md §4.8's removal dispatch: Prepare,
// reply_100 (if asked for), Commit, then report success or failure.
func (s *Server) handleDelete(ctx context.Context, ch *netio.Channel, reader *httpcodec.Reader, deadline int64, chunkID string) requestResult {
	drainBody(reader)

	removal := s.backend.NewRemoval(chunkID)
	if err := removal.Prepare(ctx); err != nil {
		st := statusFromErr(err)
		_ = writeStatus(ch, deadline, st.Kind.HTTPStatus(), st)
		return requestResult{outcome: st.Kind.String()}
	}

	if expectsContinue(reader) {
		if err := reply100Continue(ch, deadline); err != nil {
			logger.DebugCtx(ctx, "gateway: reply 100 continue failed", "error", err)
			return requestResult{outcome: "network_error"}
		}
	}

	if err := removal.Commit(ctx); err != nil {
		st := statusFromErr(err)
		_ = writeStatus(ch, deadline, 500, st)
		return requestResult{outcome: st.Kind.String()}
	}
	_ = writeStatus(ch, deadline, 200, status.New(status.OK, 200, "removed"))
	return requestResult{outcome: "ok"}
}
