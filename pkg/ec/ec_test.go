package ec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	s, err := NewScheme(4, 2)
	require.NoError(t, err)

	data := bytes.Repeat([]byte("0123456789abcdef"), 256) // 4096 bytes, divides evenly
	shards, err := s.Encode(data)
	require.NoError(t, err)
	require.Len(t, shards, 6)

	// Drop two shards (within parity tolerance) to exercise reconstruction.
	shards[1] = nil
	shards[4] = nil

	got, err := s.Decode(shards, len(data))
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestNewSchemeRejectsInvalidCounts(t *testing.T) {
	_, err := NewScheme(0, 2)
	require.Error(t, err)
}
