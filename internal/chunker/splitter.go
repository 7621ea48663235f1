package chunker

import (
	"io"
	"os"

	"github.com/kcenon/ftscore/internal/checksum"
	"github.com/kcenon/ftscore/internal/ftsconfig"
	"github.com/kcenon/ftscore/internal/ftserrors"
)

// Chunk is a Header paired with its on-the-wire-ready payload (the
// compressor/cipher adapters run after the splitter; Payload here holds
// the raw original bytes).
type Chunk struct {
	Header  Header
	Payload []byte
}

// ValidateChunkSize enforces spec §4.3's bound.
func ValidateChunkSize(size int64) error {
	if size < ftsconfig.MinChunkSize || size > ftsconfig.MaxChunkSize {
		return ftserrors.New(ftserrors.KindInvalidChunkSize, "chunk size out of [64 KiB, 1 MiB] bounds")
	}
	return nil
}

// Splitter produces an ordered, lazy sequence of chunks from a file. It
// is single-pass and forward-only, reading exactly one chunk's worth of
// I/O per Next call, mirroring the teacher's streaming Chunker.
type Splitter struct {
	id            TransferId
	f             *os.File
	nominalSize   int64
	fileSize      int64
	totalChunks   uint64
	nextIndex     uint64
	emittedEmpty  bool
	closed        bool
}

// NewSplitter opens filePath read-only and prepares to split it into
// chunks of nominalChunkSize bytes.
func NewSplitter(id TransferId, filePath string, nominalChunkSize int64) (*Splitter, error) {
	if err := ValidateChunkSize(nominalChunkSize); err != nil {
		return nil, err
	}

	f, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ftserrors.Wrap(ftserrors.KindFileNotFound, filePath, err)
		}
		return nil, ftserrors.Wrap(ftserrors.KindFileAccessDenied, filePath, err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ftserrors.Wrap(ftserrors.KindFileAccessDenied, filePath, err)
	}
	fileSize := stat.Size()

	total := uint64(1)
	if fileSize > 0 {
		total = uint64((fileSize + nominalChunkSize - 1) / nominalChunkSize)
	}

	return &Splitter{
		id:          id,
		f:           f,
		nominalSize: nominalChunkSize,
		fileSize:    fileSize,
		totalChunks: total,
	}, nil
}

// TotalChunks returns ceil(file_size/nominal_chunk_size), or 1 for an
// empty file.
func (s *Splitter) TotalChunks() uint64 { return s.totalChunks }

// FileSize returns the size observed at open time.
func (s *Splitter) FileSize() int64 { return s.fileSize }

// Next returns the next chunk in index order, or io.EOF once exhausted.
// Calling Next again after io.EOF returns InvalidChunkIndex.
func (s *Splitter) Next() (Chunk, error) {
	if s.closed {
		return Chunk{}, ftserrors.New(ftserrors.KindInvalidChunkIndex, "splitter exhausted")
	}

	if s.fileSize == 0 {
		if s.emittedEmpty {
			s.closed = true
			return Chunk{}, io.EOF
		}
		s.emittedEmpty = true
		h := Header{
			TransferId:     s.id,
			ChunkIndex:     0,
			TotalChunks:    1,
			ChunkOffset:    0,
			PayloadLength:  0,
			OriginalLength: 0,
			Flags:          FlagFirstChunk | FlagLastChunk,
			CRC32:          checksum.CRC32(nil),
		}
		return Chunk{Header: h, Payload: nil}, nil
	}

	if s.nextIndex >= s.totalChunks {
		s.closed = true
		return Chunk{}, io.EOF
	}

	idx := s.nextIndex
	offset := int64(idx) * s.nominalSize
	remaining := s.fileSize - offset
	readSize := s.nominalSize
	if remaining < readSize {
		readSize = remaining
	}

	buf := make([]byte, readSize)
	if readSize > 0 {
		if _, err := io.ReadFull(s.f, buf); err != nil {
			return Chunk{}, ftserrors.Wrap(ftserrors.KindFileAccessDenied, "chunk read", err)
		}
	}

	s.nextIndex++

	var flags Flags
	if idx == 0 {
		flags |= FlagFirstChunk
	}
	if idx == s.totalChunks-1 {
		flags |= FlagLastChunk
	}

	h := Header{
		TransferId:     s.id,
		ChunkIndex:     idx,
		TotalChunks:    s.totalChunks,
		ChunkOffset:    uint64(offset),
		PayloadLength:  uint32(len(buf)),
		OriginalLength: uint32(len(buf)),
		Flags:          flags,
		CRC32:          checksum.CRC32(buf),
	}
	return Chunk{Header: h, Payload: buf}, nil
}

// Close releases the underlying file handle.
func (s *Splitter) Close() error {
	s.closed = true
	return s.f.Close()
}

// ReadChunk reads a single chunk by index without maintaining streaming
// state, used by retransmission when a NACK names a specific index.
func ReadChunk(id TransferId, filePath string, chunkIndex uint64, nominalChunkSize int64, fileSize int64, totalChunks uint64) (Chunk, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return Chunk{}, ftserrors.Wrap(ftserrors.KindFileNotFound, filePath, err)
	}
	defer f.Close()

	if chunkIndex >= totalChunks {
		return Chunk{}, ftserrors.New(ftserrors.KindInvalidChunkIndex, "chunk index out of range")
	}

	offset := int64(chunkIndex) * nominalChunkSize
	remaining := fileSize - offset
	readSize := nominalChunkSize
	if remaining < readSize {
		readSize = remaining
	}
	if readSize < 0 {
		readSize = 0
	}

	buf := make([]byte, readSize)
	if readSize > 0 {
		if _, err := f.ReadAt(buf, offset); err != nil && err != io.EOF {
			return Chunk{}, ftserrors.Wrap(ftserrors.KindFileAccessDenied, "chunk read", err)
		}
	}

	var flags Flags
	if chunkIndex == 0 {
		flags |= FlagFirstChunk
	}
	if chunkIndex == totalChunks-1 {
		flags |= FlagLastChunk
	}

	h := Header{
		TransferId:     id,
		ChunkIndex:     chunkIndex,
		TotalChunks:    totalChunks,
		ChunkOffset:    uint64(offset),
		PayloadLength:  uint32(len(buf)),
		OriginalLength: uint32(len(buf)),
		Flags:          flags,
		CRC32:          checksum.CRC32(buf),
	}
	return Chunk{Header: h, Payload: buf}, nil
}
