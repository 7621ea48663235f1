package protocol

import (
	"sync"

	"github.com/kcenon/ftscore/internal/ftserrors"
)

// SessionState is the client session FSM's state (spec §4.9).
type SessionState int

const (
	Disconnected SessionState = iota
	Connecting
	Connected
	Reconnecting
	Disconnecting
)

func (s SessionState) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Reconnecting:
		return "Reconnecting"
	case Disconnecting:
		return "Disconnecting"
	default:
		return "Unknown"
	}
}

// sessionTransitions enumerates the legal client session edges.
var sessionTransitions = map[SessionState]map[SessionState]bool{
	Disconnected:  {Connecting: true},
	Connecting:    {Connected: true, Disconnected: true},
	Connected:     {Disconnecting: true, Reconnecting: true},
	Reconnecting:  {Connected: true, Disconnected: true},
	Disconnecting: {Disconnected: true},
}

// SessionFSM drives the client session state machine.
type SessionFSM struct {
	mu    sync.Mutex
	state SessionState
}

// NewSessionFSM starts a session in Disconnected.
func NewSessionFSM() *SessionFSM {
	return &SessionFSM{state: Disconnected}
}

// State returns the current state.
func (f *SessionFSM) State() SessionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Transition moves to next if the edge is legal, else returns a
// typed protocol error.
func (f *SessionFSM) Transition(next SessionState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !sessionTransitions[f.state][next] {
		return ftserrors.New(ftserrors.KindProtocolError, "illegal session state transition: "+f.state.String()+" -> "+next.String())
	}
	f.state = next
	return nil
}

// TransferState is the per-transfer FSM state (spec §4.9). The sender
// view uses Transferring; the receiver view uses Assembling in its
// place — both share this enum since exactly one of the two is valid
// at a time for a given role.
type TransferState int

const (
	Pending TransferState = iota
	Accepted
	Transferring
	Assembling
	Paused
	Completing
	Completed
	Failed
	Cancelled
)

func (s TransferState) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Accepted:
		return "Accepted"
	case Transferring:
		return "Transferring"
	case Assembling:
		return "Assembling"
	case Paused:
		return "Paused"
	case Completing:
		return "Completing"
	case Completed:
		return "Completed"
	case Failed:
		return "Failed"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

var transferTransitions = map[TransferState]map[TransferState]bool{
	Pending:      {Accepted: true, Failed: true, Cancelled: true},
	Accepted:     {Transferring: true, Assembling: true, Cancelled: true},
	Transferring: {Paused: true, Completing: true, Failed: true, Cancelled: true},
	Assembling:   {Paused: true, Completing: true, Failed: true, Cancelled: true},
	Paused:       {Transferring: true, Assembling: true, Cancelled: true},
	Completing:   {Completed: true, Failed: true},
	Completed:    {},
	Failed:       {},
	Cancelled:    {},
}

// TransferFSM drives one transfer's lifecycle.
type TransferFSM struct {
	mu    sync.Mutex
	state TransferState
}

// NewTransferFSM starts a transfer in Pending.
func NewTransferFSM() *TransferFSM {
	return &TransferFSM{state: Pending}
}

func (f *TransferFSM) State() TransferState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *TransferFSM) Transition(next TransferState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !transferTransitions[f.state][next] {
		return ftserrors.New(ftserrors.KindProtocolError, "illegal transfer state transition: "+f.state.String()+" -> "+next.String())
	}
	f.state = next
	return nil
}

// IsTerminal reports whether the transfer has reached a state with no
// further legal transitions.
func (f *TransferFSM) IsTerminal() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(transferTransitions[f.state]) == 0
}
