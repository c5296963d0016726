package rawxblob

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeRawx spawns a bare TCP listener that reads one HTTP/1.1 request and
// replies with a canned status and body, mimicking a RAWX node without
// depending on httpcodec on the server side.
func fakeRawx(t *testing.T, status string, body string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		buf := make([]byte, 4096)
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		for {
			n, err := conn.Read(buf)
			if err != nil {
				return
			}
			if n > 0 {
				break
			}
		}

		resp := "HTTP/1.1 " + status + "\r\n" +
			"Content-Length: " + itoa(len(body)) + "\r\n" +
			"\r\n" + body
		_, _ = conn.Write([]byte(resp))
	}()

	return ln.Addr().String()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func TestUploadAgainstFakeRawx(t *testing.T) {
	ctx := context.Background()
	addr := fakeRawx(t, "200 OK", "")

	b := New(Config{Addr: addr})
	up := b.NewUpload("chunk0")
	require.NoError(t, up.Prepare(ctx))
	require.NoError(t, up.Write(ctx, []byte("hello world")))
	result, err := up.Commit(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 11, result.Bytes)
}

func TestUploadAgainstFakeRawxAlreadyExists(t *testing.T) {
	ctx := context.Background()
	addr := fakeRawx(t, "406 Not Acceptable", "")

	b := New(Config{Addr: addr})
	up := b.NewUpload("chunk0")
	require.NoError(t, up.Prepare(ctx))
	require.NoError(t, up.Write(ctx, []byte("x")))
	_, err := up.Commit(ctx)
	require.Error(t, err)
}

func TestDownloadAgainstFakeRawx(t *testing.T) {
	ctx := context.Background()
	addr := fakeRawx(t, "200 OK", "hello world")

	b := New(Config{Addr: addr})
	down := b.NewDownload("chunk0")
	require.NoError(t, down.Prepare(ctx))

	var got []byte
	for !down.IsEOF() {
		chunk, err := down.Read(ctx)
		require.NoError(t, err)
		if chunk == nil {
			break
		}
		got = append(got, chunk...)
	}
	require.NoError(t, down.Commit(ctx))
	require.Equal(t, "hello world", string(got))
}

func TestDownloadAgainstFakeRawxNotFound(t *testing.T) {
	ctx := context.Background()
	addr := fakeRawx(t, "404 Not Found", "")

	b := New(Config{Addr: addr})
	down := b.NewDownload("missing")
	err := down.Prepare(ctx)
	require.Error(t, err)
}

func TestRemovalAgainstFakeRawx(t *testing.T) {
	ctx := context.Background()
	addr := fakeRawx(t, "200 OK", "")

	b := New(Config{Addr: addr})
	rem := b.NewRemoval("chunk0")
	require.NoError(t, rem.Prepare(ctx))
	require.NoError(t, rem.Commit(ctx))
}
