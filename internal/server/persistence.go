package server

import (
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kcenon/ftscore/internal/chunker"
	"github.com/kcenon/ftscore/internal/ftserrors"
	"github.com/kcenon/ftscore/internal/protocol"
)

// PersistentStore is the SQLite-backed session directory: a durable
// record of transfers that survives server restarts, independent of
// the resume store's per-chunk bitmap state.
type PersistentStore struct {
	db *sql.DB
}

// NewPersistentStore opens (creating if needed) the session database
// at dbPath and ensures its schema exists.
func NewPersistentStore(dbPath string) (*PersistentStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, ftserrors.Wrap(ftserrors.KindInternalError, "open session database", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	ps := &PersistentStore{db: db}
	if err := ps.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return ps, nil
}

func (ps *PersistentStore) initSchema() error {
	const schema = `
		CREATE TABLE IF NOT EXISTS sessions (
			transfer_id TEXT PRIMARY KEY,
			remote_addr TEXT NOT NULL,
			filename TEXT NOT NULL,
			file_size INTEGER NOT NULL,
			chunk_size INTEGER NOT NULL,
			total_chunks INTEGER NOT NULL,
			direction TEXT NOT NULL,
			state TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			metadata TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_state ON sessions(state);
	`
	if _, err := ps.db.Exec(schema); err != nil {
		return ftserrors.Wrap(ftserrors.KindInternalError, "initialize session schema", err)
	}
	return nil
}

// Save persists (inserting or replacing) a session row.
func (ps *PersistentStore) Save(session *Session) error {
	metadataJSON, err := json.Marshal(session.Metadata)
	if err != nil {
		return ftserrors.Wrap(ftserrors.KindInternalError, "marshal session metadata", err)
	}

	const query = `
		INSERT OR REPLACE INTO sessions
		(transfer_id, remote_addr, filename, file_size, chunk_size, total_chunks,
		 direction, state, created_at, updated_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = ps.db.Exec(query,
		hex.EncodeToString(session.ID[:]),
		session.RemoteAddr,
		session.Filename,
		session.FileSize,
		session.ChunkSize,
		session.TotalChunks,
		session.Direction.String(),
		session.State.String(),
		session.StartTime,
		session.UpdateTime,
		string(metadataJSON),
	)
	if err != nil {
		return ftserrors.Wrap(ftserrors.KindInternalError, "save session", err)
	}
	return nil
}

// Load retrieves a session row by transfer ID.
func (ps *PersistentStore) Load(id chunker.TransferId) (*Session, error) {
	var (
		remoteAddr   string
		filename     string
		fileSize     int64
		chunkSize    int64
		totalChunks  uint64
		directionStr string
		stateStr     string
		createdAt    time.Time
		updatedAt    time.Time
		metadataJSON string
	)

	const query = `
		SELECT remote_addr, filename, file_size, chunk_size, total_chunks,
		       direction, state, created_at, updated_at, metadata
		FROM sessions WHERE transfer_id = ?
	`
	err := ps.db.QueryRow(query, hex.EncodeToString(id[:])).Scan(
		&remoteAddr, &filename, &fileSize, &chunkSize, &totalChunks,
		&directionStr, &stateStr, &createdAt, &updatedAt, &metadataJSON,
	)
	if err == sql.ErrNoRows {
		return nil, ftserrors.New(ftserrors.KindNotInitialized, "session not found")
	} else if err != nil {
		return nil, ftserrors.Wrap(ftserrors.KindInternalError, "load session", err)
	}

	dir := DirectionUpload
	if directionStr == "DOWNLOAD" {
		dir = DirectionDownload
	}

	session := &Session{
		ID:          id,
		RemoteAddr:  remoteAddr,
		Filename:    filename,
		FileSize:    fileSize,
		ChunkSize:   chunkSize,
		TotalChunks: totalChunks,
		Direction:   dir,
		State:       stateFromString(stateStr),
		StartTime:   createdAt,
		UpdateTime:  updatedAt,
		Metadata:    make(map[string]string),
	}
	if metadataJSON != "" {
		if err := json.Unmarshal([]byte(metadataJSON), &session.Metadata); err != nil {
			return nil, ftserrors.Wrap(ftserrors.KindInternalError, "unmarshal session metadata", err)
		}
	}
	return session, nil
}

// Delete removes a session row.
func (ps *PersistentStore) Delete(id chunker.TransferId) error {
	result, err := ps.db.Exec("DELETE FROM sessions WHERE transfer_id = ?", hex.EncodeToString(id[:]))
	if err != nil {
		return ftserrors.Wrap(ftserrors.KindInternalError, "delete session", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return ftserrors.Wrap(ftserrors.KindInternalError, "delete session", err)
	}
	if rows == 0 {
		return ftserrors.New(ftserrors.KindNotInitialized, "session not found")
	}
	return nil
}

// Close closes the underlying database handle.
func (ps *PersistentStore) Close() error {
	return ps.db.Close()
}

func stateFromString(s string) protocol.TransferState {
	switch s {
	case "Pending":
		return protocol.Pending
	case "Accepted":
		return protocol.Accepted
	case "Transferring":
		return protocol.Transferring
	case "Assembling":
		return protocol.Assembling
	case "Paused":
		return protocol.Paused
	case "Completing":
		return protocol.Completing
	case "Completed":
		return protocol.Completed
	case "Failed":
		return protocol.Failed
	case "Cancelled":
		return protocol.Cancelled
	default:
		return protocol.Pending
	}
}
