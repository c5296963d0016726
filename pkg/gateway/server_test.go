package gateway

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rawgate/rawgate/pkg/localblob"
)

// startTestServer boots a Server over a LocalBackend rooted at a fresh
// temp directory and returns its bound address; the server is stopped
// through t.Cleanup.
func startTestServer(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	store, err := localblob.New(localblob.Config{DocRoot: dir})
	require.NoError(t, err)

	backend := NewLocalBackend(store, 0)
	srv := NewServer(Config{Bind: "127.0.0.1:0", ReadDeadline: 2 * time.Second}, backend)
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = srv.Serve(ctx)
	}()
	t.Cleanup(cancel)

	return srv.Addr().String()
}

func TestParseChunkID(t *testing.T) {
	id, ok := parseChunkID("/abc123")
	require.True(t, ok)
	require.Equal(t, "abc123", id)

	id, ok = parseChunkID("/v1/chunks/abc123?x=1")
	require.True(t, ok)
	require.Equal(t, "abc123", id)

	_, ok = parseChunkID("/")
	require.False(t, ok)

	_, ok = parseChunkID("")
	require.False(t, ok)
}

func TestGatewayUploadDownloadDelete(t *testing.T) {
	addr := startTestServer(t)

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	body := "hello rawgate"
	fmt.Fprintf(conn, "PUT /chunk1 HTTP/1.1\r\nContent-Length: %d\r\n\r\n%s", len(body), body)
	resp := readHTTPResponse(t, conn)
	require.Contains(t, resp, "201")
	require.Contains(t, resp, `"bytes":13`)

	conn2, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn2.Close()
	fmt.Fprintf(conn2, "GET /chunk1 HTTP/1.1\r\n\r\n")
	resp2 := readHTTPResponse(t, conn2)
	require.Contains(t, resp2, "200")
	require.Contains(t, resp2, body)

	conn3, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn3.Close()
	fmt.Fprintf(conn3, "DELETE /chunk1 HTTP/1.1\r\n\r\n")
	resp3 := readHTTPResponse(t, conn3)
	require.Contains(t, resp3, "200")
}

func TestGatewayDownloadMissingChunkReturns404(t *testing.T) {
	addr := startTestServer(t)

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()
	fmt.Fprintf(conn, "GET /does-not-exist HTTP/1.1\r\n\r\n")
	resp := readHTTPResponse(t, conn)
	require.Contains(t, resp, "404")
}

func readHTTPResponse(t *testing.T, conn net.Conn) string {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	br := bufio.NewReader(conn)
	buf := make([]byte, 0, 4096)
	tmp := make([]byte, 4096)
	for {
		n, err := br.Read(tmp)
		buf = append(buf, tmp[:n]...)
		if err != nil {
			break
		}
		if n < len(tmp) {
			break
		}
	}
	return string(buf)
}
