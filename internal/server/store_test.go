package server

import (
	"testing"
	"time"

	"github.com/kcenon/ftscore/internal/chunker"
	"github.com/kcenon/ftscore/internal/ftserrors"
	"github.com/kcenon/ftscore/internal/protocol"
)

func newTestSession(t *testing.T, b byte, state protocol.TransferState) *Session {
	t.Helper()
	var id chunker.TransferId
	id[0] = b
	return &Session{
		ID:         id,
		Filename:   "file.bin",
		FileSize:   1024,
		State:      state,
		StartTime:  time.Now(),
		UpdateTime: time.Now(),
		Metadata:   map[string]string{},
	}
}

func TestSessionStoreAddGetDelete(t *testing.T) {
	store := NewSessionStore()
	s := newTestSession(t, 1, protocol.Pending)

	if err := store.Add(s); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := store.Add(s); ftserrors.KindOf(err) != ftserrors.KindAlreadyInitialized {
		t.Errorf("expected duplicate Add to fail with KindAlreadyInitialized, got %v", err)
	}

	got, err := store.Get(s.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Filename != "file.bin" {
		t.Errorf("Get returned wrong session: %+v", got)
	}

	if err := store.Delete(s.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(s.ID); err == nil {
		t.Error("expected Get to fail after Delete")
	}
}

func TestSessionStoreListFiltersAndPaginates(t *testing.T) {
	store := NewSessionStore()
	for i := 0; i < 5; i++ {
		state := protocol.Transferring
		if i%2 == 0 {
			state = protocol.Completed
		}
		store.Add(newTestSession(t, byte(i+1), state))
	}

	completed := protocol.Completed
	results, total := store.List(&completed, 0, 0)
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(results) != 3 {
		t.Errorf("len(results) = %d, want 3", len(results))
	}

	all, total := store.List(nil, 2, 0)
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(all) != 2 {
		t.Errorf("paginated len = %d, want 2", len(all))
	}
}

func TestSessionStoreCleanupOldSessions(t *testing.T) {
	store := NewSessionStore()
	old := newTestSession(t, 1, protocol.Completed)
	old.UpdateTime = time.Now().Add(-48 * time.Hour)
	store.Add(old)

	recent := newTestSession(t, 2, protocol.Completed)
	store.Add(recent)

	active := newTestSession(t, 3, protocol.Transferring)
	active.UpdateTime = time.Now().Add(-48 * time.Hour)
	store.Add(active)

	removed := store.CleanupOldSessions(24 * time.Hour)
	if removed != 1 {
		t.Errorf("removed = %d, want 1 (only the old completed session)", removed)
	}
	if store.Count() != 2 {
		t.Errorf("Count() = %d, want 2", store.Count())
	}
}
