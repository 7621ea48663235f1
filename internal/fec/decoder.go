package fec

import (
	"github.com/klauspost/reedsolomon"

	"github.com/kcenon/ftscore/internal/ftserrors"
)

// Decoder reconstructs missing shards from a fixed-size group of data
// plus parity shards.
type Decoder struct {
	k, r int
	rs   reedsolomon.Encoder
}

// NewDecoder builds a decoder matching an Encoder's (k, r).
func NewDecoder(k, r int) (*Decoder, error) {
	if k < 1 || k > 256 {
		return nil, ftserrors.New(ftserrors.KindInvalidConfiguration, "fec data shard count out of [1, 256]")
	}
	if r < 1 || r > 256 {
		return nil, ftserrors.New(ftserrors.KindInvalidConfiguration, "fec parity shard count out of [1, 256]")
	}

	rs, err := reedsolomon.New(k, r)
	if err != nil {
		return nil, ftserrors.Wrap(ftserrors.KindInternalError, "construct reed-solomon decoder", err)
	}
	return &Decoder{k: k, r: r, rs: rs}, nil
}

// Reconstruct fills in nil entries of shards (len k+r) in place. Fails
// if more than r shards are missing.
func (d *Decoder) Reconstruct(shards [][]byte) error {
	if len(shards) != d.k+d.r {
		return ftserrors.New(ftserrors.KindInvalidConfiguration, "fec reconstruct: shard count mismatch")
	}

	missing := 0
	for _, shard := range shards {
		if shard == nil {
			missing++
		}
	}
	if missing > d.r {
		return ftserrors.New(ftserrors.KindMissingChunks, "fec reconstruct: too many missing shards to recover")
	}
	if missing == 0 {
		return nil
	}

	if err := d.rs.Reconstruct(shards); err != nil {
		return ftserrors.Wrap(ftserrors.KindInternalError, "fec reconstruct", err)
	}
	return nil
}

// Parameters returns the configured (k, r).
func (d *Decoder) Parameters() (k, r int) { return d.k, d.r }
