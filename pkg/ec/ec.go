// Package ec wraps klauspost/reedsolomon behind the encode(k,m,data) ->
// fragments / decode(fragments) -> data interface spec.md treats as an
// external black box — this package never reimplements the Reed-Solomon
// math itself, per SPEC_FULL.md §2's "Erasure coding black box" addition.
package ec

import (
	"bytes"
	"fmt"

	"github.com/klauspost/reedsolomon"
)

// Scheme is one (data, parity) shard configuration, reused across every
// Encode/Decode call for a given EC target set.
type Scheme struct {
	DataShards   int
	ParityShards int
}

// NewScheme validates the shard counts spec.md's EC mode requires.
func NewScheme(dataShards, parityShards int) (Scheme, error) {
	if dataShards <= 0 || parityShards < 0 {
		return Scheme{}, fmt.Errorf("ec: invalid shard counts (data=%d, parity=%d)", dataShards, parityShards)
	}
	return Scheme{DataShards: dataShards, ParityShards: parityShards}, nil
}

// Encode splits data into DataShards data fragments plus ParityShards
// parity fragments, each the same length, per the Reed-Solomon FEC
// scheme. The caller assigns one fragment to each target in the set.
func (s Scheme) Encode(data []byte) ([][]byte, error) {
	enc, err := reedsolomon.New(s.DataShards, s.ParityShards)
	if err != nil {
		return nil, fmt.Errorf("ec: new encoder: %w", err)
	}
	shards, err := enc.Split(data)
	if err != nil {
		return nil, fmt.Errorf("ec: split: %w", err)
	}
	if err := enc.Encode(shards); err != nil {
		return nil, fmt.Errorf("ec: encode: %w", err)
	}
	return shards, nil
}

// Decode reconstructs the original data from a set of fragments, some of
// which may be nil (missing/unreadable from a failed target), and
// returns exactly originalSize bytes.
func (s Scheme) Decode(shards [][]byte, originalSize int) ([]byte, error) {
	enc, err := reedsolomon.New(s.DataShards, s.ParityShards)
	if err != nil {
		return nil, fmt.Errorf("ec: new encoder: %w", err)
	}
	if err := enc.Reconstruct(shards); err != nil {
		return nil, fmt.Errorf("ec: reconstruct: %w", err)
	}
	var buf bytes.Buffer
	if err := enc.Join(&buf, shards, originalSize); err != nil {
		return nil, fmt.Errorf("ec: join: %w", err)
	}
	return buf.Bytes(), nil
}

// TotalShards is DataShards + ParityShards, the number of targets an EC
// target set needs.
func (s Scheme) TotalShards() int { return s.DataShards + s.ParityShards }
