package httpcodec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInlineRequestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 11, nil)
	require.NoError(t, w.WriteRequestLine("PUT", "/OPENIO/0000/chunk0"))
	require.NoError(t, w.WriteHeader("X-Oio-Chunk-Meta-Chunk-Id", "chunk0"))
	require.NoError(t, w.WriteHeadersDone())
	n, err := w.Write([]byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, 11, n)
	require.NoError(t, w.Finish())

	r := NewReader(&buf)
	sl, err := r.ReadStartLine(true)
	require.NoError(t, err)
	assert.Equal(t, "PUT", sl.Method)
	assert.Equal(t, "/OPENIO/0000/chunk0", sl.Target)

	require.NoError(t, r.ReadHeaders())
	assert.False(t, r.IsChunked())
	assert.Equal(t, int64(11), r.ContentLength())
	v, ok := r.HeaderValue("x-oio-chunk-meta-chunk-id")
	assert.True(t, ok)
	assert.Equal(t, "chunk0", v)

	var body []byte
	for r.State() != Done {
		b, err := r.AppendBody(body)
		require.NoError(t, err)
		body = b
	}
	assert.Equal(t, "hello world", string(body))
}

func TestChunkedUploadAABB(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, ContentLengthChunked, nil)
	require.NoError(t, w.WriteRequestLine("PUT", "/OPENIO/0000/chunk1"))
	require.NoError(t, w.WriteHeadersDone())
	_, err := w.Write([]byte("AA"))
	require.NoError(t, err)
	_, err = w.Write([]byte("BB"))
	require.NoError(t, err)
	require.NoError(t, w.Finish())

	r := NewReader(&buf)
	_, err = r.ReadStartLine(true)
	require.NoError(t, err)
	require.NoError(t, r.ReadHeaders())
	assert.True(t, r.IsChunked())

	var body []byte
	for r.State() != Done {
		b, err := r.AppendBody(body)
		require.NoError(t, err)
		body = b
	}
	assert.Equal(t, "AABB", string(body))
}

func TestChunkedWithTrailers(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, ContentLengthChunked, []string{"X-Oio-Chunk-Meta-Chunk-Hash"})
	require.NoError(t, w.WriteStatusLine(200, "OK"))
	require.NoError(t, w.WriteHeadersDone())
	_, err := w.Write([]byte("payload"))
	require.NoError(t, err)
	w.SetTrailer("X-Oio-Chunk-Meta-Chunk-Hash", "deadbeef")
	require.NoError(t, w.Finish())

	r := NewReader(&buf)
	sl, err := r.ReadStartLine(false)
	require.NoError(t, err)
	assert.Equal(t, 200, sl.Code)
	require.NoError(t, r.ReadHeaders())

	var body []byte
	for r.State() != Done {
		b, err := r.AppendBody(body)
		require.NoError(t, err)
		body = b
	}
	assert.Equal(t, "payload", string(body))

	trailers := r.Trailers()
	require.Len(t, trailers, 1)
	assert.Equal(t, "X-Oio-Chunk-Meta-Chunk-Hash", trailers[0].Name)
	assert.Equal(t, "deadbeef", trailers[0].Value)
}

func TestSingle100ContinueAccepted(t *testing.T) {
	raw := "HTTP/1.1 100 Continue\r\n\r\nHTTP/1.1 201 Created\r\nContent-Length: 0\r\n\r\n"
	r := NewReader(bytes.NewBufferString(raw))
	sl, err := r.ReadStartLine(false)
	require.NoError(t, err)
	assert.Equal(t, 201, sl.Code)
	assert.True(t, r.SawContinue())
}

func TestRepeated100ContinueRejected(t *testing.T) {
	raw := "HTTP/1.1 100 Continue\r\n\r\nHTTP/1.1 100 Continue\r\n\r\nHTTP/1.1 201 Created\r\n\r\n"
	r := NewReader(bytes.NewBufferString(raw))
	_, err := r.ReadStartLine(false)
	assert.Error(t, err)
}

func TestWriteOverflowsContentLengthRejected(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 2, nil)
	require.NoError(t, w.WriteStatusLine(200, "OK"))
	require.NoError(t, w.WriteHeadersDone())
	_, err := w.Write([]byte("abc"))
	assert.Error(t, err)
}

func TestFinishShortBodyRejected(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 5, nil)
	require.NoError(t, w.WriteStatusLine(200, "OK"))
	require.NoError(t, w.WriteHeadersDone())
	_, err := w.Write([]byte("ab"))
	require.NoError(t, err)
	assert.Error(t, w.Finish())
}
