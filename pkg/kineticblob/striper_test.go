package kineticblob

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlockKeyRoundTrip(t *testing.T) {
	key := blockKey("chunk0", 2, 1048576)
	assert.Equal(t, "chunk0-2-1048576", key)

	idx, size, ok := parseBlockKey("chunk0", key)
	assert.True(t, ok)
	assert.Equal(t, 2, idx)
	assert.Equal(t, 1048576, size)
}

func TestParseBlockKeySkipsManifestKey(t *testing.T) {
	_, _, ok := parseBlockKey("chunk0", manifestKey("chunk0"))
	assert.False(t, ok)
}

func TestParseBlockKeySkipsMalformedKey(t *testing.T) {
	_, _, ok := parseBlockKey("chunk0", "chunk0-not-a-size-x")
	assert.False(t, ok)

	_, _, ok = parseBlockKey("chunk0", "chunk0-nodash")
	assert.False(t, ok)

	_, _, ok = parseBlockKey("other-chunk", "chunk0-0-10")
	assert.False(t, ok)
}

func TestManifestKeyLayout(t *testing.T) {
	assert.Equal(t, "chunk0-#", manifestKey("chunk0"))
}

func TestManifestJSONRoundTrip(t *testing.T) {
	m := ManifestEntry{Bytes: 42, MD5: "deadbeef"}
	data, err := manifestJSON(m)
	assert.NoError(t, err)

	got, err := parseManifestJSON(data)
	assert.NoError(t, err)
	assert.Equal(t, m, got)
}
