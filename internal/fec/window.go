package fec

import (
	"github.com/kcenon/ftscore/internal/chunker"
	"github.com/kcenon/ftscore/internal/ftserrors"
)

// Window groups a run of a transfer's data chunks for joint FEC coding.
// EncodeWindow takes size data chunks and produces parity parity
// shards; DecodeWindow reconstructs up to parity missing chunks of the
// window from the shards that remain. The transfer coordinators do not
// use Window: lost chunks on the wire are recovered by NACK and
// retransmission only.
type Window struct {
	encoder *Encoder
	decoder *Decoder
	size    int
	parity  int
}

// NewWindow builds a Window of size data chunks producing parity
// parity chunks.
func NewWindow(size, parity int) (*Window, error) {
	enc, err := NewEncoder(size, parity)
	if err != nil {
		return nil, err
	}
	dec, err := NewDecoder(size, parity)
	if err != nil {
		return nil, err
	}
	return &Window{encoder: enc, decoder: dec, size: size, parity: parity}, nil
}

// Size reports the configured data/parity chunk counts.
func (w *Window) Size() (dataChunks, parityChunks int) { return w.size, w.parity }

func padded(chunks []chunker.Chunk) [][]byte {
	maxLen := 0
	for _, c := range chunks {
		if len(c.Payload) > maxLen {
			maxLen = len(c.Payload)
		}
	}
	out := make([][]byte, len(chunks))
	for i, c := range chunks {
		buf := make([]byte, maxLen)
		copy(buf, c.Payload)
		out[i] = buf
	}
	return out
}

// EncodeWindow computes parity shards for a window of chunks, padding
// each chunk's payload to the window's longest member (Reed-Solomon
// requires equal-length shards; the original lengths are recovered from
// each chunk's own header on reconstruction).
func (w *Window) EncodeWindow(chunks []chunker.Chunk) ([][]byte, error) {
	if len(chunks) != w.size {
		return nil, invalidWindowSize(w.size, len(chunks))
	}
	return w.encoder.Encode(padded(chunks))
}

// DecodeWindow reconstructs missing data shards in a window given its
// present data chunks (nil for missing ones, in index order) and parity
// shards, returning the recovered payloads truncated to origLengths.
func (w *Window) DecodeWindow(dataShards [][]byte, parityShards [][]byte, origLengths []uint32) ([][]byte, error) {
	if len(dataShards) != w.size || len(parityShards) != w.parity || len(origLengths) != w.size {
		return nil, invalidWindowSize(w.size, len(dataShards))
	}

	all := make([][]byte, w.size+w.parity)
	copy(all[:w.size], dataShards)
	copy(all[w.size:], parityShards)

	if err := w.decoder.Reconstruct(all); err != nil {
		return nil, err
	}

	recovered := make([][]byte, w.size)
	for i := 0; i < w.size; i++ {
		recovered[i] = all[i][:origLengths[i]]
	}
	return recovered, nil
}

func invalidWindowSize(want, got int) error {
	return ftserrors.New(ftserrors.KindInvalidConfiguration, "fec window: expected a fixed chunk count")
}
