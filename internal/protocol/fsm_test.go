package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSessionFSMHappyPath(t *testing.T) {
	f := NewSessionFSM()
	require.NoError(t, f.Transition(Connecting))
	require.NoError(t, f.Transition(Connected))
	require.NoError(t, f.Transition(Disconnecting))
	require.NoError(t, f.Transition(Disconnected))
	require.Equal(t, Disconnected, f.State())
}

func TestSessionFSMRejectsIllegalEdge(t *testing.T) {
	f := NewSessionFSM()
	err := f.Transition(Connected)
	require.Error(t, err)
	require.Equal(t, Disconnected, f.State())
}

func TestSessionFSMReconnectPath(t *testing.T) {
	f := NewSessionFSM()
	require.NoError(t, f.Transition(Connecting))
	require.NoError(t, f.Transition(Connected))
	require.NoError(t, f.Transition(Reconnecting))
	require.NoError(t, f.Transition(Connected))
}

func TestTransferFSMSenderHappyPath(t *testing.T) {
	f := NewTransferFSM()
	require.NoError(t, f.Transition(Accepted))
	require.NoError(t, f.Transition(Transferring))
	require.NoError(t, f.Transition(Paused))
	require.NoError(t, f.Transition(Transferring))
	require.NoError(t, f.Transition(Completing))
	require.NoError(t, f.Transition(Completed))
	require.True(t, f.IsTerminal())
}

func TestTransferFSMReceiverUsesAssembling(t *testing.T) {
	f := NewTransferFSM()
	require.NoError(t, f.Transition(Accepted))
	require.NoError(t, f.Transition(Assembling))
	require.NoError(t, f.Transition(Completing))
	require.NoError(t, f.Transition(Completed))
}

func TestTransferFSMCancelFromTransferring(t *testing.T) {
	f := NewTransferFSM()
	require.NoError(t, f.Transition(Accepted))
	require.NoError(t, f.Transition(Transferring))
	require.NoError(t, f.Transition(Cancelled))
	require.True(t, f.IsTerminal())
}

func TestTransferFSMRejectsTransitionFromTerminal(t *testing.T) {
	f := NewTransferFSM()
	require.NoError(t, f.Transition(Accepted))
	require.NoError(t, f.Transition(Cancelled))
	require.Error(t, f.Transition(Transferring))
}
