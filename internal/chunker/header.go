// Package chunker implements the chunk data model, the fixed-header wire
// codec, and the lazy file splitter (spec §3, §4.2, §4.3).
package chunker

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/google/uuid"

	"github.com/kcenon/ftscore/internal/ftserrors"
)

// TransferId is a 128-bit opaque identifier, generated client-side per
// transfer and stable across pauses and resumes.
type TransferId [16]byte

// NewTransferId generates a fresh random TransferId.
func NewTransferId() TransferId {
	return TransferId(uuid.New())
}

func (id TransferId) String() string {
	return uuid.UUID(id).String()
}

// Hex returns the lowercase hex encoding used for resume-state filenames
// (spec §6: "<transfer_id_hex>.json").
func (id TransferId) Hex() string {
	return hex.EncodeToString(id[:])
}

// ParseTransferId parses a TransferId previously produced by String/Hex.
func ParseTransferId(s string) (TransferId, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return TransferId{}, ftserrors.Wrap(ftserrors.KindInvalidConfiguration, "malformed transfer id", err)
	}
	return TransferId(u), nil
}

// Flags is the per-chunk bitset.
type Flags uint32

const (
	FlagFirstChunk Flags = 1 << iota
	FlagLastChunk
	FlagCompressed
	FlagEncrypted
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// Header is the per-chunk metadata carried on the wire and held in
// memory (spec §3 ChunkHeader).
type Header struct {
	TransferId     TransferId
	ChunkIndex     uint64
	TotalChunks    uint64
	ChunkOffset    uint64
	PayloadLength  uint32
	OriginalLength uint32
	Flags          Flags
	CRC32          uint32
}

// HeaderSize is the fixed on-wire size of an encoded Header: 16 (id) + 8*3
// (index/total/offset) + 4*2 (lengths) + 4 (flags) + 4 (crc32) = 56 bytes.
const HeaderSize = 16 + 8 + 8 + 8 + 4 + 4 + 4 + 4

// Encode writes h in the stable big-endian field order spec §3/§6 fixes.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:16], h.TransferId[:])
	binary.BigEndian.PutUint64(buf[16:24], h.ChunkIndex)
	binary.BigEndian.PutUint64(buf[24:32], h.TotalChunks)
	binary.BigEndian.PutUint64(buf[32:40], h.ChunkOffset)
	binary.BigEndian.PutUint32(buf[40:44], h.PayloadLength)
	binary.BigEndian.PutUint32(buf[44:48], h.OriginalLength)
	binary.BigEndian.PutUint32(buf[48:52], uint32(h.Flags))
	binary.BigEndian.PutUint32(buf[52:56], h.CRC32)
	return buf
}

// AADBytes returns the header fields used as AEAD associated data,
// excluding crc32 and payload_length (spec §4.5: those cover on-wire
// bytes computed after the cipher runs).
func (h Header) AADBytes() []byte {
	buf := make([]byte, 16+8+8+8+4+4)
	copy(buf[0:16], h.TransferId[:])
	binary.BigEndian.PutUint64(buf[16:24], h.ChunkIndex)
	binary.BigEndian.PutUint64(buf[24:32], h.TotalChunks)
	binary.BigEndian.PutUint64(buf[32:40], h.ChunkOffset)
	binary.BigEndian.PutUint32(buf[40:44], h.OriginalLength)
	binary.BigEndian.PutUint32(buf[44:48], uint32(h.Flags))
	return buf
}

// DecodeHeader parses a Header from buf and validates total_chunks != 0
// and chunk_index < total_chunks (an empty file travels as one chunk
// with total_chunks 1, so zero is always rejected). Callers should
// further validate payload_length against protocol bounds before
// reading the payload.
func DecodeHeader(buf []byte) (Header, []byte, error) {
	if len(buf) < 56 {
		return Header{}, nil, ftserrors.New(ftserrors.KindProtocolError, "truncated chunk header")
	}
	var h Header
	copy(h.TransferId[:], buf[0:16])
	h.ChunkIndex = binary.BigEndian.Uint64(buf[16:24])
	h.TotalChunks = binary.BigEndian.Uint64(buf[24:32])
	h.ChunkOffset = binary.BigEndian.Uint64(buf[32:40])
	h.PayloadLength = binary.BigEndian.Uint32(buf[40:44])
	h.OriginalLength = binary.BigEndian.Uint32(buf[44:48])
	h.Flags = Flags(binary.BigEndian.Uint32(buf[48:52]))
	h.CRC32 = binary.BigEndian.Uint32(buf[52:56])

	if h.TotalChunks == 0 {
		return Header{}, nil, ftserrors.New(ftserrors.KindProtocolError, "total_chunks must be non-zero")
	}
	if h.ChunkIndex >= h.TotalChunks {
		return Header{}, nil, ftserrors.New(ftserrors.KindInvalidChunkIndex, "chunk_index >= total_chunks")
	}
	return h, buf[56:], nil
}
