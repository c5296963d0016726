package gateway

import (
	"fmt"
	"time"

	"github.com/rawgate/rawgate/internal/netio"
)

// connWriter/connReader adapt *netio.Channel's deadline-based API to the
// plain io.Reader/io.Writer httpcodec expects, the same pattern
// pkg/rawxblob uses for its own HTTP client role.
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
		return n, fmt.Errorf("gateway: connection closed")
	}
	return n, nil
}

func requestDeadline(d time.Duration) int64 {
	return time.Now().Add(d).UnixMilli()
}
