// Package compress implements the Compressor adapter (spec §4.5): a
// per-chunk LZ4 transform with Disabled/Enabled/Adaptive modes and a
// magic-byte/trial-ratio heuristic for the adaptive case. No example
// repo in the retrieval pack carries a compression library (see
// DESIGN.md); github.com/pierrec/lz4/v4 is used as the concrete
// backend because the specification names LZ4 explicitly.
package compress

import (
	"bytes"
	"io"

	"github.com/pierrec/lz4/v4"

	"github.com/kcenon/ftscore/internal/ftsconfig"
	"github.com/kcenon/ftscore/internal/ftserrors"
)

const trialSize = 4 * 1024

// minTrialRatio is the minimum compress-ratio the adaptive heuristic
// requires before committing to compressing the full chunk.
const minTrialRatio = 1.1

// Compressor transforms chunk payloads under a fixed mode and level.
type Compressor struct {
	mode  ftsconfig.CompressionMode
	level ftsconfig.CompressionLevel
}

// New constructs a Compressor for the given mode/level.
func New(mode ftsconfig.CompressionMode, level ftsconfig.CompressionLevel) *Compressor {
	return &Compressor{mode: mode, level: level}
}

func (c *Compressor) lz4CompressionLevel() lz4.CompressionLevel {
	if c.level == ftsconfig.CompressionHigh {
		return lz4.Level9
	}
	return lz4.Fast
}

// Compress compresses b, returning the compressed bytes and whether
// compression was actually applied (false means the caller should send
// b verbatim with the COMPRESSED flag clear).
func (c *Compressor) Compress(b []byte) (out []byte, compressed bool, err error) {
	switch c.mode {
	case ftsconfig.CompressionDisabled:
		return b, false, nil
	case ftsconfig.CompressionEnabled:
		return c.compressRaw(b)
	case ftsconfig.CompressionAdaptive:
		return c.compressAdaptive(b)
	default:
		return b, false, nil
	}
}

func (c *Compressor) compressAdaptive(b []byte) ([]byte, bool, error) {
	prefixLen := trialSize
	if prefixLen > len(b) {
		prefixLen = len(b)
	}
	if isPrecompressed(b[:prefixLen]) {
		return b, false, nil
	}

	trialOut, err := lz4Compress(b[:prefixLen], c.lz4CompressionLevel())
	if err != nil {
		return nil, false, ftserrors.Wrap(ftserrors.KindCompressionFailure, "trial compression", err)
	}
	if prefixLen == 0 || float64(prefixLen)/float64(len(trialOut)+1) < minTrialRatio {
		return b, false, nil
	}

	return c.compressRaw(b)
}

func (c *Compressor) compressRaw(b []byte) ([]byte, bool, error) {
	out, err := lz4Compress(b, c.lz4CompressionLevel())
	if err != nil {
		return nil, false, ftserrors.Wrap(ftserrors.KindCompressionFailure, "lz4 compress", err)
	}
	return out, true, nil
}

// Decompress expands b to exactly originalLen bytes.
func (c *Compressor) Decompress(b []byte, originalLen int) ([]byte, error) {
	out, err := lz4Decompress(b, originalLen)
	if err != nil {
		return nil, ftserrors.Wrap(ftserrors.KindDecompressionFailure, "lz4 decompress", err)
	}
	if len(out) != originalLen {
		return nil, ftserrors.New(ftserrors.KindDecompressionFailure, "decompressed size mismatch")
	}
	return out, nil
}

// IsCompressible runs the same adaptive heuristic used by Compress
// without performing the full compression, for callers that just want
// the yes/no decision (spec §6 Compressor trait).
func (c *Compressor) IsCompressible(b []byte) bool {
	prefixLen := trialSize
	if prefixLen > len(b) {
		prefixLen = len(b)
	}
	if isPrecompressed(b[:prefixLen]) {
		return false
	}
	trialOut, err := lz4Compress(b[:prefixLen], c.lz4CompressionLevel())
	if err != nil || prefixLen == 0 {
		return false
	}
	return float64(prefixLen)/float64(len(trialOut)+1) >= minTrialRatio
}

func lz4Compress(b []byte, level lz4.CompressionLevel) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if err := w.Apply(lz4.CompressionLevelOption(level)); err != nil {
		return nil, err
	}
	if _, err := w.Write(b); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func lz4Decompress(b []byte, originalLen int) ([]byte, error) {
	if originalLen == 0 {
		return []byte{}, nil
	}
	r := lz4.NewReader(bytes.NewReader(b))
	out := make([]byte, originalLen)
	n, err := io.ReadFull(r, out)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	return out[:n], nil
}
