// Package server implements the server-side session manager: an
// in-memory registry of per-transfer Session records, a connection
// cap, a SQLite-backed directory for completed/
// historical sessions, and an admission hook for incoming upload and
// download requests.
package server

import (
	"time"

	"github.com/kcenon/ftscore/internal/chunker"
	"github.com/kcenon/ftscore/internal/protocol"
)

// Direction is which way bytes flow relative to the server.
type Direction int

const (
	DirectionUpload Direction = iota
	DirectionDownload
)

func (d Direction) String() string {
	if d == DirectionUpload {
		return "UPLOAD"
	}
	return "DOWNLOAD"
}

// Session is the server's bookkeeping record for one transfer,
// independent of the live Transport connection carrying it.
type Session struct {
	ID          chunker.TransferId
	RemoteAddr  string
	Filename    string
	FileSize    int64
	ChunkSize   int64
	TotalChunks uint64
	Direction   Direction
	State       protocol.TransferState
	StartTime   time.Time
	UpdateTime  time.Time
	Metadata    map[string]string
}
