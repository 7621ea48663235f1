// Package resume implements the Resume Store (spec §4.7): a directory
// of TransferState JSON records, one file per transfer_id, with
// checkpointed bitmap updates and TTL-based garbage collection.
package resume

import (
	"encoding/json"
	"time"

	"github.com/kcenon/ftscore/internal/chunker"
)

// State is the persistent record for one transfer (spec §3
// TransferState).
type State struct {
	TransferId       chunker.TransferId `json:"transfer_id"`
	Filename         string             `json:"filename"`
	TotalSize        uint64             `json:"total_size"`
	TotalChunks      uint64             `json:"total_chunks"`
	TransferredBytes uint64             `json:"transferred_bytes"`
	ChunkBitmap      []byte             `json:"chunk_bitmap"`
	SHA256           string             `json:"sha256"`
	StartedAt        time.Time          `json:"started_at"`
	LastActivity     time.Time          `json:"last_activity"`
}

// wireState is State's JSON-safe shape; TransferId marshals as its
// canonical string form rather than a raw byte array.
type wireState struct {
	TransferId       string    `json:"transfer_id"`
	Filename         string    `json:"filename"`
	TotalSize        uint64    `json:"total_size"`
	TotalChunks      uint64    `json:"total_chunks"`
	TransferredBytes uint64    `json:"transferred_bytes"`
	ChunkBitmap      []byte    `json:"chunk_bitmap"`
	SHA256           string    `json:"sha256"`
	StartedAt        time.Time `json:"started_at"`
	LastActivity     time.Time `json:"last_activity"`
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireState{
		TransferId:       s.TransferId.String(),
		Filename:         s.Filename,
		TotalSize:        s.TotalSize,
		TotalChunks:      s.TotalChunks,
		TransferredBytes: s.TransferredBytes,
		ChunkBitmap:      s.ChunkBitmap,
		SHA256:           s.SHA256,
		StartedAt:        s.StartedAt,
		LastActivity:     s.LastActivity,
	})
}

func (s *State) UnmarshalJSON(data []byte) error {
	var w wireState
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	id, err := chunker.ParseTransferId(w.TransferId)
	if err != nil {
		return err
	}
	s.TransferId = id
	s.Filename = w.Filename
	s.TotalSize = w.TotalSize
	s.TotalChunks = w.TotalChunks
	s.TransferredBytes = w.TransferredBytes
	s.ChunkBitmap = w.ChunkBitmap
	s.SHA256 = w.SHA256
	s.StartedAt = w.StartedAt
	s.LastActivity = w.LastActivity
	return nil
}

// Bitmap reconstructs the live Bitmap represented by ChunkBitmap.
func (s State) Bitmap() *chunker.Bitmap {
	return chunker.LoadBitmap(s.TotalChunks, s.ChunkBitmap)
}
