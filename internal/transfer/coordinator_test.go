package transfer

import (
	"bytes"
	"encoding/hex"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kcenon/ftscore/internal/assembler"
	"github.com/kcenon/ftscore/internal/checksum"
	"github.com/kcenon/ftscore/internal/chunker"
	"github.com/kcenon/ftscore/internal/ftsconfig"
	"github.com/kcenon/ftscore/internal/observability"
	"github.com/kcenon/ftscore/internal/protocol"
	"github.com/kcenon/ftscore/internal/resume"
)

func readAckFrom(conn net.Conn) func() (protocol.MessageType, []byte, error) {
	return func() (protocol.MessageType, []byte, error) {
		frame, err := protocol.ReadFrame(conn)
		if err != nil {
			return 0, nil, err
		}
		return frame.Type, frame.Payload, nil
	}
}

func TestSendReceiveRoundTripSmallFile(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()

	content := bytes.Repeat([]byte("hello ftscore "), 10_000) // a few chunks worth
	srcPath := filepath.Join(srcDir, "report.bin")
	require.NoError(t, os.WriteFile(srcPath, content, 0o644))

	id := chunker.NewTransferId()
	splitter, err := chunker.NewSplitter(id, srcPath, ftsconfig.MinChunkSize)
	require.NoError(t, err)
	defer splitter.Close()

	asm := assembler.New(destDir)
	require.NoError(t, asm.StartSession(id, "report.bin", int64(len(content)), splitter.TotalChunks()))

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	metrics := observability.NewMetrics()

	sender := NewSenderCoordinator(splitter, Pipeline{}, 3)
	sender.Metrics = metrics
	require.NoError(t, sender.FSM().Transition(protocol.Accepted))

	receiver := NewReceiverCoordinator(asm, nil, Pipeline{})
	receiver.Metrics = metrics
	require.NoError(t, receiver.FSM().Transition(protocol.Accepted))
	require.NoError(t, receiver.FSM().Transition(protocol.Assembling))

	serverDone := make(chan error, 1)
	go func() {
		for i := uint64(0); i < splitter.TotalChunks(); i++ {
			frame, err := protocol.ReadFrame(serverConn)
			if err != nil {
				serverDone <- err
				return
			}
			msg, err := protocol.DecodeChunkData(frame.Payload)
			if err != nil {
				serverDone <- err
				return
			}
			replyType, replyPayload := receiver.HandleChunk(id, msg)
			if err := protocol.WriteFrame(serverConn, replyType, replyPayload); err != nil {
				serverDone <- err
				return
			}
		}
		serverDone <- nil
	}()

	err = sender.SendAll(t.Context(), clientConn, nil, readAckFrom(clientConn))
	require.NoError(t, err)
	require.NoError(t, <-serverDone)

	complete, err := asm.IsComplete(id)
	require.NoError(t, err)
	require.True(t, complete)

	want := checksum.SHA256(content)
	require.NoError(t, receiver.Finalize(id, hex.EncodeToString(want[:])))

	got, err := os.ReadFile(filepath.Join(destDir, "report.bin"))
	require.NoError(t, err)
	require.Equal(t, content, got)
}

func TestSendReceiveWithResumeSkipsAlreadyReceivedChunks(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()
	resumeDir := t.TempDir()

	content := bytes.Repeat([]byte("resume-me-"), 20_000)
	srcPath := filepath.Join(srcDir, "data.bin")
	require.NoError(t, os.WriteFile(srcPath, content, 0o644))

	id := chunker.NewTransferId()
	splitter, err := chunker.NewSplitter(id, srcPath, ftsconfig.MinChunkSize)
	require.NoError(t, err)
	defer splitter.Close()
	totalChunks := splitter.TotalChunks()
	require.Greater(t, totalChunks, uint64(1))

	store, err := resume.New(resumeDir, 10, 0)
	require.NoError(t, err)
	require.NoError(t, store.MarkChunkReceived(id, 0))

	asm := assembler.New(destDir)
	require.NoError(t, asm.StartSession(id, "data.bin", int64(len(content)), totalChunks))
	first, err := chunker.ReadChunk(id, srcPath, 0, ftsconfig.MinChunkSize, int64(len(content)), totalChunks)
	require.NoError(t, err)
	require.NoError(t, asm.ProcessChunk(first))

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	sender := NewSenderCoordinator(splitter, Pipeline{}, 3)
	require.NoError(t, sender.FSM().Transition(protocol.Accepted))
	receiver := NewReceiverCoordinator(asm, store, Pipeline{})
	require.NoError(t, receiver.FSM().Transition(protocol.Accepted))
	require.NoError(t, receiver.FSM().Transition(protocol.Assembling))

	received := 0
	serverDone := make(chan error, 1)
	go func() {
		for uint64(received) < totalChunks-1 {
			frame, err := protocol.ReadFrame(serverConn)
			if err != nil {
				serverDone <- err
				return
			}
			msg, err := protocol.DecodeChunkData(frame.Payload)
			if err != nil {
				serverDone <- err
				return
			}
			replyType, replyPayload := receiver.HandleChunk(id, msg)
			if err := protocol.WriteFrame(serverConn, replyType, replyPayload); err != nil {
				serverDone <- err
				return
			}
			received++
		}
		serverDone <- nil
	}()

	skip := func(index uint64) bool { return index == 0 }
	err = sender.SendAll(t.Context(), clientConn, skip, readAckFrom(clientConn))
	require.NoError(t, err)
	require.NoError(t, <-serverDone)
	require.Equal(t, int(totalChunks-1), received)

	complete, err := asm.IsComplete(id)
	require.NoError(t, err)
	require.True(t, complete)
}

func TestSendAllFailsWhenRetryBudgetExhausted(t *testing.T) {
	srcDir := t.TempDir()
	content := []byte("short file")
	srcPath := filepath.Join(srcDir, "f.bin")
	require.NoError(t, os.WriteFile(srcPath, content, 0o644))

	id := chunker.NewTransferId()
	splitter, err := chunker.NewSplitter(id, srcPath, ftsconfig.MinChunkSize)
	require.NoError(t, err)
	defer splitter.Close()

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	sender := NewSenderCoordinator(splitter, Pipeline{}, 2)
	require.NoError(t, sender.FSM().Transition(protocol.Accepted))

	go func() {
		for {
			frame, err := protocol.ReadFrame(serverConn)
			if err != nil {
				return
			}
			msg, err := protocol.DecodeChunkData(frame.Payload)
			if err != nil {
				return
			}
			nack := protocol.ChunkNack{TransferId: id, ChunkIndex: msg.Header.ChunkIndex, Reason: "simulated failure"}
			if err := protocol.WriteFrame(serverConn, protocol.MsgChunkNack, nack.Encode()); err != nil {
				return
			}
		}
	}()

	err = sender.SendAll(t.Context(), clientConn, nil, readAckFrom(clientConn))
	require.Error(t, err)
}
