package server

import (
	"sync/atomic"

	"github.com/kcenon/ftscore/internal/ftserrors"
)

// PolicyDecision is the result of evaluating an incoming request
// against the server's admission policy.
type PolicyDecision struct {
	Allow  bool
	Reason string // policy-denial reason, e.g. "extension not permitted"
}

// PolicyFunc is invoked for every incoming UPLOAD_REQUEST and
// DOWNLOAD_REQUEST, letting the caller allow/deny by filename
// extension, size, or path-traversal check before a transfer
// coordinator is ever spawned.
type PolicyFunc func(dir Direction, filename string, fileSize int64) PolicyDecision

// Manager counts incoming transport connections against a configured
// cap: AdmitConnection fails with KindConnectionFailed
// ("ConnectionLimitReached") once the cap is reached. Manager itself
// spawns no sessions and writes no CONNECT_ACK to a rejected peer.
type Manager struct {
	maxConnections int32
	active         int32

	store  *SessionStore
	policy PolicyFunc
}

// NewManager builds a Manager backed by store, admitting at most
// maxConnections concurrent transport connections.
func NewManager(store *SessionStore, maxConnections int) *Manager {
	return &Manager{maxConnections: int32(maxConnections), store: store}
}

// SetPolicy installs the admission hook for incoming transfer requests.
// A nil policy allows everything.
func (m *Manager) SetPolicy(fn PolicyFunc) {
	m.policy = fn
}

// AdmitConnection reserves one connection slot. Callers must call
// ReleaseConnection exactly once after the connection closes.
func (m *Manager) AdmitConnection() error {
	for {
		cur := atomic.LoadInt32(&m.active)
		if cur >= m.maxConnections {
			return ftserrors.New(ftserrors.KindConnectionFailed, "ConnectionLimitReached")
		}
		if atomic.CompareAndSwapInt32(&m.active, cur, cur+1) {
			return nil
		}
	}
}

// ReleaseConnection frees a slot reserved by AdmitConnection.
func (m *Manager) ReleaseConnection() {
	atomic.AddInt32(&m.active, -1)
}

// ActiveConnections reports the current connection count.
func (m *Manager) ActiveConnections() int {
	return int(atomic.LoadInt32(&m.active))
}

// Evaluate runs the admission policy for an incoming upload or
// download request. With no policy installed, every request is
// allowed.
func (m *Manager) Evaluate(dir Direction, filename string, fileSize int64) PolicyDecision {
	if m.policy == nil {
		return PolicyDecision{Allow: true}
	}
	return m.policy(dir, filename, fileSize)
}

// Sessions exposes the manager's underlying session registry.
func (m *Manager) Sessions() *SessionStore {
	return m.store
}
