// Command ftsclient is a thin example driver for uploading a single
// file to an ftsserver instance over QUIC. It exists to exercise the
// library packages end to end, not as a production client.
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/kcenon/ftscore/internal/checksum"
	"github.com/kcenon/ftscore/internal/chunker"
	"github.com/kcenon/ftscore/internal/compress"
	"github.com/kcenon/ftscore/internal/ftsconfig"
	"github.com/kcenon/ftscore/internal/observability"
	"github.com/kcenon/ftscore/internal/protocol"
	"github.com/kcenon/ftscore/internal/ratelimit"
	"github.com/kcenon/ftscore/internal/transfer"
	"github.com/kcenon/ftscore/internal/transportquic"
)

// zlog returns the process logger's fluent zerolog builder.
func zlog() *zerolog.Logger { return observability.Default().Zerolog() }

func main() {
	addr := flag.String("addr", "127.0.0.1:9443", "ftsserver address")
	file := flag.String("file", "", "path of the file to upload")
	chunkSize := flag.Int("chunk-size", ftsconfig.MaxChunkSize, "chunk size in bytes")
	bandwidthLimit := flag.Float64("bandwidth-limit", 0, "upload rate limit in bytes/sec, 0 disables")
	jaegerEndpoint := flag.String("jaeger-endpoint", "", "Jaeger collector endpoint, empty disables tracing")
	flag.Parse()

	observability.SetDefault(observability.NewLogger("ftsclient", "dev", os.Stderr))

	if *file == "" {
		fmt.Fprintln(os.Stderr, "usage: ftsclient -file <path> [-addr host:port] [-chunk-size bytes] [-bandwidth-limit bytes/sec]")
		os.Exit(1)
	}

	shutdownTracing, err := observability.InitTracing(context.Background(), "ftsclient", *jaegerEndpoint)
	if err != nil {
		zlog().Warn().Err(err).Msg("tracing init failed, continuing without spans")
		shutdownTracing = func(context.Context) error { return nil }
	}
	defer shutdownTracing(context.Background())

	if err := upload(*addr, *file, *chunkSize, *bandwidthLimit); err != nil {
		zlog().Error().Err(err).Msg("upload failed")
		os.Exit(1)
	}
}

func upload(addr, path string, chunkSize int, bandwidthLimit float64) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	metrics := observability.NewMetrics()

	conn, err := transportquic.Dial(ctx, addr, &tls.Config{InsecureSkipVerify: true, NextProtos: []string{"ftscore"}})
	if err != nil {
		metrics.RecordConnection(false)
		return err
	}
	metrics.RecordConnection(true)
	connStart := time.Now()
	defer func() {
		conn.Close()
		metrics.RecordConnectionClose(time.Since(connStart).Seconds())
	}()

	stream, err := conn.OpenTransferStream(ctx)
	if err != nil {
		return err
	}
	defer stream.Close()

	id := chunker.NewTransferId()
	splitter, err := chunker.NewSplitter(id, path, int64(chunkSize))
	if err != nil {
		return err
	}
	defer splitter.Close()

	sha256, err := checksum.SHA256File(path)
	if err != nil {
		return err
	}

	req := protocol.UploadRequest{
		TransferId:  id,
		Filename:    path,
		FileSize:    uint64(splitter.FileSize()),
		TotalChunks: splitter.TotalChunks(),
		SHA256:      fmt.Sprintf("%x", sha256),
	}
	if err := protocol.WriteFrame(stream, protocol.MsgUploadRequest, req.Encode()); err != nil {
		return err
	}
	frame, err := protocol.ReadFrame(stream)
	if err != nil {
		return err
	}
	if frame.Type != protocol.MsgUploadAccept {
		return fmt.Errorf("server rejected upload (type %d)", frame.Type)
	}

	var limiter *ratelimit.TokenBucket
	if bandwidthLimit > 0 {
		limiter = ratelimit.NewTokenBucket(bandwidthLimit)
		limiter.Metrics = metrics
	}

	pipeline := transfer.Pipeline{
		Compressor: compress.New(ftsconfig.CompressionAdaptive, ftsconfig.CompressionFast),
		Limiter:    limiter,
	}
	coordinator := transfer.NewSenderCoordinator(splitter, pipeline, 5)
	coordinator.Metrics = metrics
	coordinator.OnChunkSent = func(index uint64) {
		zlog().Debug().Uint64("chunk_index", index).Msg("chunk acknowledged")
	}

	readAck := func() (protocol.MessageType, []byte, error) {
		f, err := protocol.ReadFrame(stream)
		if err != nil {
			return 0, nil, err
		}
		return f.Type, f.Payload, nil
	}

	transferStart := time.Now()
	metrics.RecordTransferStart()
	if err := coordinator.SendAll(ctx, stream, nil, readAck); err != nil {
		metrics.RecordTransferComplete(false, time.Since(transferStart).Seconds())
		return err
	}

	complete := protocol.UploadComplete{TransferId: id}
	if err := protocol.WriteFrame(stream, protocol.MsgUploadComplete, complete.Encode()); err != nil {
		metrics.RecordTransferComplete(false, time.Since(transferStart).Seconds())
		return err
	}
	metrics.RecordTransferComplete(true, time.Since(transferStart).Seconds())

	zlog().Info().Str("file", path).Uint64("chunks", splitter.TotalChunks()).Msg("upload complete")
	return nil
}
