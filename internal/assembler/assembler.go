// Package assembler implements the Chunk Assembler (spec §4.4): it
// accepts chunks for a transfer in any order, writes them into a sparse
// temporary file, and finalizes with a whole-file hash check and an
// atomic rename.
package assembler

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kcenon/ftscore/internal/checksum"
	"github.com/kcenon/ftscore/internal/chunker"
	"github.com/kcenon/ftscore/internal/ftserrors"
)

// session is one live assembly in progress, keyed by TransferId.
type session struct {
	mu          sync.Mutex
	transferID  chunker.TransferId
	finalPath   string
	tempPath    string
	file        *os.File
	fileSize    int64
	totalChunks uint64
	bitmap      *chunker.Bitmap
	bytesWritten int64
	closed      bool
}

// Assembler manages concurrently-active assembly sessions. Different
// sessions proceed in parallel; each session's own state is guarded by
// its own mutex (spec §4.4 step 2).
type Assembler struct {
	mu       sync.Mutex
	sessions map[chunker.TransferId]*session
	destDir  string
}

// New creates an Assembler that writes finalized files under destDir.
func New(destDir string) *Assembler {
	return &Assembler{
		sessions: make(map[chunker.TransferId]*session),
		destDir:  destDir,
	}
}

// RootDir returns the directory finalized files are written into.
func (a *Assembler) RootDir() string {
	return a.destDir
}

func tempName() string {
	var buf [8]byte
	_, _ = rand.Read(buf[:])
	return ".tmp_" + hex.EncodeToString(buf[:])
}

// StartSession creates a sparse temporary file and allocates a bitmap
// for a new transfer. Fails with AlreadyInitialized if the id is live.
func (a *Assembler) StartSession(id chunker.TransferId, filename string, fileSize int64, totalChunks uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.sessions[id]; exists {
		return ftserrors.New(ftserrors.KindAlreadyInitialized, "assembly session already active")
	}

	tempPath := filepath.Join(a.destDir, tempName())
	f, err := os.OpenFile(tempPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return ftserrors.Wrap(ftserrors.KindFileWriteError, "create temp file", err)
	}
	if fileSize > 0 {
		if err := f.Truncate(fileSize); err != nil {
			f.Close()
			os.Remove(tempPath)
			return ftserrors.Wrap(ftserrors.KindFileWriteError, "preallocate temp file", err)
		}
	}

	a.sessions[id] = &session{
		transferID:  id,
		finalPath:   filepath.Join(a.destDir, filename),
		tempPath:    tempPath,
		file:        f,
		fileSize:    fileSize,
		totalChunks: totalChunks,
		bitmap:      chunker.NewBitmap(totalChunks),
	}
	return nil
}

func (a *Assembler) get(id chunker.TransferId) (*session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.sessions[id]
	if !ok {
		return nil, ftserrors.New(ftserrors.KindNotInitialized, "no active assembly session for transfer")
	}
	return s, nil
}

// ProcessChunk validates and writes c into its session's temp file.
// Duplicate chunks (already-set bit) return success silently.
func (a *Assembler) ProcessChunk(c chunker.Chunk) error {
	s, err := a.get(c.Header.TransferId)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c.Header.ChunkIndex >= s.totalChunks {
		return ftserrors.New(ftserrors.KindInvalidChunkIndex, "chunk_index >= total_chunks")
	}
	if s.bitmap.Has(c.Header.ChunkIndex) {
		return nil // duplicate, idempotent
	}
	if !checksum.VerifyCRC32(c.Payload, c.Header.CRC32) {
		return ftserrors.New(ftserrors.KindChunkChecksumError, fmt.Sprintf("chunk %d failed CRC verification", c.Header.ChunkIndex))
	}

	if len(c.Payload) > 0 {
		if _, err := s.file.WriteAt(c.Payload, int64(c.Header.ChunkOffset)); err != nil {
			return ftserrors.Wrap(ftserrors.KindFileWriteError, "chunk write", err)
		}
	}

	s.bitmap.Set(c.Header.ChunkIndex)
	s.bytesWritten += int64(len(c.Payload))
	return nil
}

// IsComplete reports whether every chunk of the named transfer has
// arrived.
func (a *Assembler) IsComplete(id chunker.TransferId) (bool, error) {
	s, err := a.get(id)
	if err != nil {
		return false, err
	}
	return s.bitmap.IsComplete(), nil
}

// MissingChunks returns the unset bit indices, used to build resume
// responses.
func (a *Assembler) MissingChunks(id chunker.TransferId) ([]uint64, error) {
	s, err := a.get(id)
	if err != nil {
		return nil, err
	}
	return s.bitmap.Missing(), nil
}

// Finalize closes the temp file, optionally verifies its SHA-256 against
// expectedSHA256, and atomically renames it to the final path. Any
// failure removes the session and its temp file.
func (a *Assembler) Finalize(id chunker.TransferId, expectedSHA256 *[32]byte) error {
	s, err := a.get(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if !s.bitmap.IsComplete() {
		s.file.Close()
		s.closed = true
		incompletePath := s.tempPath
		s.mu.Unlock()
		a.removeSession(id, incompletePath)
		return ftserrors.New(ftserrors.KindMissingChunks, "cannot finalize: chunks still missing")
	}
	closeErr := s.file.Close()
	s.closed = true
	tempPath, finalPath := s.tempPath, s.finalPath
	s.mu.Unlock()

	if closeErr != nil {
		a.removeSession(id, tempPath)
		return ftserrors.Wrap(ftserrors.KindFileWriteError, "close temp file", closeErr)
	}

	if expectedSHA256 != nil {
		got, err := checksum.SHA256File(tempPath)
		if err != nil {
			a.removeSession(id, tempPath)
			return err
		}
		if !checksum.VerifySHA256(got, *expectedSHA256) {
			a.removeSession(id, tempPath)
			return ftserrors.New(ftserrors.KindFileHashMismatch, "finalized file hash does not match expected sha256")
		}
	}

	_ = os.Remove(finalPath) // remove any preexisting file at the target
	if err := os.Rename(tempPath, finalPath); err != nil {
		a.removeSession(id, tempPath)
		return ftserrors.Wrap(ftserrors.KindFileWriteError, "rename temp file", err)
	}

	a.mu.Lock()
	delete(a.sessions, id)
	a.mu.Unlock()
	return nil
}

// CancelSession closes and removes the temp file, discarding the
// session.
func (a *Assembler) CancelSession(id chunker.TransferId) error {
	a.mu.Lock()
	s, ok := a.sessions[id]
	if ok {
		delete(a.sessions, id)
	}
	a.mu.Unlock()
	if !ok {
		return ftserrors.New(ftserrors.KindNotInitialized, "no active assembly session for transfer")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.file.Close()
		s.closed = true
	}
	return os.Remove(s.tempPath)
}

func (a *Assembler) removeSession(id chunker.TransferId, tempPath string) {
	a.mu.Lock()
	delete(a.sessions, id)
	a.mu.Unlock()
	os.Remove(tempPath)
}
