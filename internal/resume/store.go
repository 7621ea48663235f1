package resume

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kcenon/ftscore/internal/chunker"
	"github.com/kcenon/ftscore/internal/ftserrors"
	"github.com/kcenon/ftscore/internal/observability"
)

// zlog returns the process-wide logger's fluent zerolog builder.
func zlog() *zerolog.Logger { return observability.Default().Zerolog() }

// entry is the in-memory cache slot for one transfer: the live state
// plus a count of bitmap mutations since the last checkpoint flush.
type entry struct {
	mu             sync.Mutex
	state          State
	dirtySinceSave int
}

// Store is a directory of per-transfer JSON state files backed by an
// in-memory cache. Writes to a given transfer_id are serialized
// through that transfer's entry lock; the cache map itself is guarded
// by a separate reader-writer lock (spec §4.7: "one in-memory cache
// protected by a reader-writer lock; writes are serialized per id").
type Store struct {
	dir                string
	checkpointInterval int
	ttl                time.Duration

	cacheMu sync.RWMutex
	cache   map[chunker.TransferId]*entry

	// Metrics, if set, times every checkpoint flush.
	Metrics *observability.Metrics
}

// New opens (creating if absent) a resume store rooted at dir.
func New(dir string, checkpointInterval int, ttl time.Duration) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, ftserrors.Wrap(ftserrors.KindFileWriteError, "create resume directory", err)
	}
	return &Store{
		dir:                dir,
		checkpointInterval: checkpointInterval,
		ttl:                ttl,
		cache:              make(map[chunker.TransferId]*entry),
	}, nil
}

func (s *Store) path(id chunker.TransferId) string {
	return filepath.Join(s.dir, id.Hex()+".json")
}

// SaveState writes state to disk immediately via a temp-file-then-
// rename swap, ensuring a reader never observes a partially written
// record (grounded on the pack's chunk-assembler spill-file idiom).
func (s *Store) SaveState(state State) error {
	e := s.entryFor(state.TransferId)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = state
	e.dirtySinceSave = 0
	return s.flushLocked(state)
}

func (s *Store) flushLocked(state State) error {
	if s.Metrics != nil {
		start := time.Now()
		defer func() { s.Metrics.ResumeCheckpointDuration.Observe(time.Since(start).Seconds()) }()
	}

	data, err := json.Marshal(state)
	if err != nil {
		return ftserrors.Wrap(ftserrors.KindInternalError, "marshal resume state", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return ftserrors.Wrap(ftserrors.KindFileWriteError, "create resume temp file", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return ftserrors.Wrap(ftserrors.KindFileWriteError, "write resume temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return ftserrors.Wrap(ftserrors.KindFileWriteError, "close resume temp file", err)
	}
	if err := os.Rename(tmpPath, s.path(state.TransferId)); err != nil {
		os.Remove(tmpPath)
		return ftserrors.Wrap(ftserrors.KindFileWriteError, "rename resume state into place", err)
	}
	return nil
}

// LoadState reads a transfer's state, populating the cache. It fails
// with KindNotInitialized if no record exists for id.
func (s *Store) LoadState(id chunker.TransferId) (State, error) {
	s.cacheMu.RLock()
	if e, ok := s.cache[id]; ok {
		s.cacheMu.RUnlock()
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.state, nil
	}
	s.cacheMu.RUnlock()

	data, err := os.ReadFile(s.path(id))
	if os.IsNotExist(err) {
		return State{}, ftserrors.New(ftserrors.KindNotInitialized, "no resume state for transfer")
	}
	if err != nil {
		return State{}, ftserrors.Wrap(ftserrors.KindFileWriteError, "read resume state", err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, ftserrors.Wrap(ftserrors.KindInternalError, "unmarshal resume state", err)
	}

	e := s.entryFor(id)
	e.mu.Lock()
	e.state = state
	e.mu.Unlock()
	return state, nil
}

func (s *Store) entryFor(id chunker.TransferId) *entry {
	s.cacheMu.RLock()
	e, ok := s.cache[id]
	s.cacheMu.RUnlock()
	if ok {
		return e
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if e, ok := s.cache[id]; ok {
		return e
	}
	e = &entry{}
	s.cache[id] = e
	return e
}

// HasState reports whether a record exists for id, checking the cache
// first and falling back to a filesystem stat.
func (s *Store) HasState(id chunker.TransferId) bool {
	s.cacheMu.RLock()
	_, ok := s.cache[id]
	s.cacheMu.RUnlock()
	if ok {
		return true
	}
	_, err := os.Stat(s.path(id))
	return err == nil
}

// DeleteState removes a transfer's record from disk and cache.
func (s *Store) DeleteState(id chunker.TransferId) error {
	s.cacheMu.Lock()
	delete(s.cache, id)
	s.cacheMu.Unlock()

	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return ftserrors.Wrap(ftserrors.KindFileWriteError, "delete resume state", err)
	}
	return nil
}

// MarkChunkReceived sets the chunk's bit and advances last_activity,
// flushing to disk every checkpointInterval calls (spec §4.7).
func (s *Store) MarkChunkReceived(id chunker.TransferId, index uint64) error {
	e := s.entryFor(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	bitmap := e.state.Bitmap()
	bitmap.Set(index)
	e.state.ChunkBitmap = bitmap.Serialize()
	e.state.LastActivity = time.Now()
	e.dirtySinceSave++

	if e.dirtySinceSave >= s.checkpointInterval {
		e.dirtySinceSave = 0
		return s.flushLocked(e.state)
	}
	return nil
}

// MarkChunksReceived is the batched variant of MarkChunkReceived,
// updating the bitmap once for the whole slice before checkpointing.
func (s *Store) MarkChunksReceived(id chunker.TransferId, indices []uint64) error {
	e := s.entryFor(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	bitmap := e.state.Bitmap()
	for _, idx := range indices {
		bitmap.Set(idx)
	}
	e.state.ChunkBitmap = bitmap.Serialize()
	e.state.LastActivity = time.Now()
	e.dirtySinceSave += len(indices)

	if e.dirtySinceSave >= s.checkpointInterval {
		e.dirtySinceSave = 0
		return s.flushLocked(e.state)
	}
	return nil
}

// UpdateTransferredBytes adds delta to the transfer's running byte
// count.
func (s *Store) UpdateTransferredBytes(id chunker.TransferId, delta uint64) error {
	e := s.entryFor(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.TransferredBytes += delta
	e.state.LastActivity = time.Now()
	return nil
}

// MissingChunks returns the indices not yet marked received.
func (s *Store) MissingChunks(id chunker.TransferId) []uint64 {
	e := s.entryFor(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Bitmap().Missing()
}

// IsChunkReceived reports whether index is marked received.
func (s *Store) IsChunkReceived(id chunker.TransferId, index uint64) bool {
	e := s.entryFor(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Bitmap().Has(index)
}

// ListResumableTransfers scans the store directory and returns every
// transfer_id with a persisted record.
func (s *Store) ListResumableTransfers() ([]chunker.TransferId, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, ftserrors.Wrap(ftserrors.KindFileWriteError, "list resume directory", err)
	}
	var ids []chunker.TransferId
	for _, de := range entries {
		name := de.Name()
		if filepath.Ext(name) != ".json" {
			continue
		}
		id, err := chunker.ParseTransferId(name[:len(name)-len(".json")])
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// CleanupExpiredStates deletes every record whose last_activity is
// older than the store's TTL, returning the count removed.
func (s *Store) CleanupExpiredStates() (int, error) {
	ids, err := s.ListResumableTransfers()
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-s.ttl)
	removed := 0
	for _, id := range ids {
		state, err := s.LoadState(id)
		if err != nil {
			continue
		}
		if state.LastActivity.Before(cutoff) {
			if err := s.DeleteState(id); err != nil {
				zlog().Warn().Str("transfer_id", id.String()).Err(err).Msg("resume state cleanup failed")
				continue
			}
			removed++
		}
	}
	return removed, nil
}
