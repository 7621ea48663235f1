// Package fec implements the optional, off-by-default forward-error-
// correction layer: Reed-Solomon shard/parity coding over a window of a
// transfer's chunks, letting a receiver reconstruct a bounded number of
// lost or corrupt chunks without a NACK round trip.
package fec

import (
	"github.com/klauspost/reedsolomon"

	"github.com/kcenon/ftscore/internal/ftserrors"
)

// Encoder produces parity shards from a fixed-size group of data shards.
type Encoder struct {
	k, r int
	rs   reedsolomon.Encoder
}

// NewEncoder builds an encoder for k data shards and r parity shards.
func NewEncoder(k, r int) (*Encoder, error) {
	if k < 1 || k > 256 {
		return nil, ftserrors.New(ftserrors.KindInvalidConfiguration, "fec data shard count out of [1, 256]")
	}
	if r < 1 || r > 256 {
		return nil, ftserrors.New(ftserrors.KindInvalidConfiguration, "fec parity shard count out of [1, 256]")
	}

	rs, err := reedsolomon.New(k, r)
	if err != nil {
		return nil, ftserrors.Wrap(ftserrors.KindInternalError, "construct reed-solomon encoder", err)
	}
	return &Encoder{k: k, r: r, rs: rs}, nil
}

// Encode returns r parity shards for the given k equal-length data
// shards, leaving dataShards untouched.
func (e *Encoder) Encode(dataShards [][]byte) ([][]byte, error) {
	if len(dataShards) != e.k {
		return nil, ftserrors.New(ftserrors.KindInvalidConfiguration, "fec encode: data shard count mismatch")
	}
	if len(dataShards) > 0 {
		shardSize := len(dataShards[0])
		for _, shard := range dataShards {
			if len(shard) != shardSize {
				return nil, ftserrors.New(ftserrors.KindInvalidConfiguration, "fec encode: shard size mismatch")
			}
		}
	}

	parityShards := make([][]byte, e.r)
	for i := range parityShards {
		if len(dataShards) > 0 {
			parityShards[i] = make([]byte, len(dataShards[0]))
		}
	}

	allShards := make([][]byte, e.k+e.r)
	copy(allShards[:e.k], dataShards)
	copy(allShards[e.k:], parityShards)

	if err := e.rs.Encode(allShards); err != nil {
		return nil, ftserrors.Wrap(ftserrors.KindInternalError, "fec encode", err)
	}
	return allShards[e.k:], nil
}

// Parameters returns the configured (k, r).
func (e *Encoder) Parameters() (k, r int) { return e.k, e.r }
