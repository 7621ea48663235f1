// Command ftsserver is a thin example driver that accepts uploads over
// QUIC and assembles them to disk. It exists to exercise the library
// packages end to end, not as a production server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/kcenon/ftscore/internal/assembler"
	"github.com/kcenon/ftscore/internal/compress"
	"github.com/kcenon/ftscore/internal/ftsconfig"
	"github.com/kcenon/ftscore/internal/observability"
	"github.com/kcenon/ftscore/internal/protocol"
	"github.com/kcenon/ftscore/internal/quicutil"
	"github.com/kcenon/ftscore/internal/quota"
	"github.com/kcenon/ftscore/internal/server"
	"github.com/kcenon/ftscore/internal/server/dedup"
	"github.com/kcenon/ftscore/internal/transfer"
	"github.com/kcenon/ftscore/internal/transportquic"
)

// zlog returns the process logger's fluent zerolog builder.
func zlog() *zerolog.Logger { return observability.Default().Zerolog() }

func main() {
	listen := flag.String("listen", "127.0.0.1:9443", "QUIC listen address")
	destDir := flag.String("dest", "./ftsserver-data", "directory to assemble completed uploads into")
	storageQuota := flag.Int64("quota", 10<<30, "total storage quota in bytes")
	maxConnections := flag.Int("max-connections", 64, "maximum concurrent client connections")
	metricsAddr := flag.String("metrics-addr", "", "address to serve /metrics and /healthz on, empty disables")
	jaegerEndpoint := flag.String("jaeger-endpoint", "", "Jaeger collector endpoint, empty disables tracing")
	flag.Parse()

	observability.SetDefault(observability.NewLogger("ftsserver", "dev", os.Stderr))
	metrics := observability.NewMetrics()

	shutdownTracing, err := observability.InitTracing(context.Background(), "ftsserver", *jaegerEndpoint)
	if err != nil {
		zlog().Warn().Err(err).Msg("tracing init failed, continuing without spans")
		shutdownTracing = func(context.Context) error { return nil }
	}
	defer shutdownTracing(context.Background())

	if err := os.MkdirAll(*destDir, 0o755); err != nil {
		zlog().Fatal().Err(err).Msg("create destination directory")
	}

	certPEM, keyPEM, err := quicutil.GenerateSelfSignedCert()
	if err != nil {
		zlog().Fatal().Err(err).Msg("generate dev TLS certificate")
	}
	tlsConfig, err := quicutil.MakeTLSConfig(certPEM, keyPEM)
	if err != nil {
		zlog().Fatal().Err(err).Msg("build TLS config")
	}

	ln, err := transportquic.Listen(*listen, tlsConfig)
	if err != nil {
		zlog().Fatal().Err(err).Msg("listen")
	}
	defer ln.Close()

	store := server.NewSessionStore()
	manager := server.NewManager(store, *maxConnections)
	coordinator := quota.New(*storageQuota, int64(ftsconfig.MaxChunkSize)*4096, []float64{0.8, 0.95})
	coordinator.Metrics = metrics
	coordinator.OnThresholdCrossed(func(threshold, usagePercent float64) {
		zlog().Warn().Float64("threshold", threshold).Float64("usage_percent", usagePercent).Msg("storage quota threshold crossed")
	})
	asm := assembler.New(*destDir)

	dedupCache, err := dedup.Open(filepath.Join(*destDir, "dedup.db"))
	if err != nil {
		zlog().Fatal().Err(err).Msg("open dedup cache")
	}
	defer dedupCache.Close()

	if *metricsAddr != "" {
		go serveObservability(*metricsAddr, metrics, *destDir, ln)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go acceptLoop(ctx, ln, manager, coordinator, asm, dedupCache, metrics)

	zlog().Info().Str("addr", ln.Addr()).Msg("ftsserver listening")
	<-ctx.Done()
	zlog().Info().Msg("shutting down")
}

// serveObservability exposes the Prometheus /metrics endpoint and a
// /healthz check covering the transport listener and storage directory.
func serveObservability(addr string, metrics *observability.Metrics, destDir string, ln *transportquic.Listener) {
	checker := observability.NewHealthChecker("dev")
	checker.RegisterCheck("transport", observability.TransportListenerCheck(ln.Addr()))
	checker.RegisterCheck("disk_space", observability.DiskSpaceCheck(destDir, 1))

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/healthz", checker.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		zlog().Warn().Err(err).Msg("observability server stopped")
	}
}

func acceptLoop(ctx context.Context, ln *transportquic.Listener, manager *server.Manager, coordinator *quota.Coordinator, asm *assembler.Assembler, dedupCache *dedup.Cache, metrics *observability.Metrics) {
	for {
		conn, err := ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			zlog().Warn().Err(err).Msg("accept failed")
			continue
		}
		if err := manager.AdmitConnection(); err != nil {
			zlog().Warn().Str("remote", conn.RemoteAddr()).Msg("connection limit reached, rejecting")
			metrics.RecordConnection(false)
			conn.Close()
			continue
		}
		metrics.RecordConnection(true)
		go handleConnection(ctx, conn, manager, coordinator, asm, dedupCache, metrics)
	}
}

func handleConnection(ctx context.Context, conn *transportquic.Connection, manager *server.Manager, coordinator *quota.Coordinator, asm *assembler.Assembler, dedupCache *dedup.Cache, metrics *observability.Metrics) {
	defer manager.ReleaseConnection()
	defer conn.Close()

	connStart := time.Now()
	defer func() { metrics.RecordConnectionClose(time.Since(connStart).Seconds()) }()

	stream, err := conn.AcceptTransferStream(ctx)
	if err != nil {
		zlog().Warn().Err(err).Str("remote", conn.RemoteAddr()).Msg("accept stream failed")
		return
	}
	defer stream.Close()

	frame, err := protocol.ReadFrame(stream)
	if err != nil {
		zlog().Warn().Err(err).Msg("read request")
		return
	}

	switch frame.Type {
	case protocol.MsgListRequest:
		handleList(stream, frame.Payload, asm.RootDir())
		return
	case protocol.MsgUploadRequest:
		handleUpload(ctx, stream, frame.Payload, conn.RemoteAddr(), manager, coordinator, asm, dedupCache, metrics)
	default:
		zlog().Warn().Uint8("type", uint8(frame.Type)).Msg("unexpected opening frame")
	}
}

// handleList scans the server's storage directory and answers a
// LIST_REQUEST with a sorted LIST_RESPONSE.
func handleList(stream transfer.Transport, payload []byte, storageDir string) {
	req, err := protocol.DecodeListRequest(payload)
	if err != nil {
		zlog().Warn().Err(err).Msg("decode list request")
		return
	}

	files, err := server.ListDirectory(storageDir, req.SortField, req.SortOrder, req.Prefix)
	if err != nil {
		errMsg := protocol.ErrorMessage{Code: 1, Message: err.Error()}
		_ = protocol.WriteFrame(stream, protocol.MsgError, errMsg.Encode())
		return
	}

	resp := protocol.ListResponse{Files: files}
	if err := protocol.WriteFrame(stream, protocol.MsgListResponse, resp.Encode()); err != nil {
		zlog().Warn().Err(err).Msg("write list response")
	}
}

func handleUpload(ctx context.Context, stream transfer.Transport, payload []byte, remoteAddr string, manager *server.Manager, coordinator *quota.Coordinator, asm *assembler.Assembler, dedupCache *dedup.Cache, metrics *observability.Metrics) {
	req, err := protocol.DecodeUploadRequest(payload)
	if err != nil {
		zlog().Warn().Err(err).Msg("decode upload request")
		return
	}

	if err := coordinator.Reserve(req.Filename, int64(req.FileSize)); err != nil {
		reject := protocol.UploadReject{TransferId: req.TransferId, Reason: err.Error()}
		_ = protocol.WriteFrame(stream, protocol.MsgUploadReject, reject.Encode())
		return
	}

	if err := asm.StartSession(req.TransferId, req.Filename, int64(req.FileSize), req.TotalChunks); err != nil {
		coordinator.Release(int64(req.FileSize))
		reject := protocol.UploadReject{TransferId: req.TransferId, Reason: err.Error()}
		_ = protocol.WriteFrame(stream, protocol.MsgUploadReject, reject.Encode())
		return
	}

	accept := protocol.UploadAccept{TransferId: req.TransferId}
	if err := protocol.WriteFrame(stream, protocol.MsgUploadAccept, accept.Encode()); err != nil {
		return
	}

	transferStart := time.Now()
	metrics.RecordTransferStart()

	pipeline := transfer.Pipeline{Compressor: compress.New(ftsconfig.CompressionAdaptive, ftsconfig.CompressionFast)}
	receiver := transfer.NewReceiverCoordinator(asm, nil, pipeline)
	receiver.Dedup = dedupCache
	receiver.Metrics = metrics

	session := &server.Session{
		ID:          req.TransferId,
		RemoteAddr:  remoteAddr,
		Filename:    req.Filename,
		FileSize:    int64(req.FileSize),
		TotalChunks: req.TotalChunks,
		Direction:   server.DirectionUpload,
	}
	_ = manager.Sessions().Add(session)

	success := false
	defer func() { metrics.RecordTransferComplete(success, time.Since(transferStart).Seconds()) }()

	for {
		frame, err := protocol.ReadFrame(stream)
		if err != nil {
			zlog().Warn().Err(err).Msg("read frame")
			return
		}
		switch frame.Type {
		case protocol.MsgChunkData:
			chunkMsg, err := protocol.DecodeChunkData(frame.Payload)
			if err != nil {
				zlog().Warn().Err(err).Msg("decode chunk data")
				return
			}
			replyType, replyPayload := receiver.HandleChunk(req.TransferId, chunkMsg)
			if err := protocol.WriteFrame(stream, replyType, replyPayload); err != nil {
				return
			}
		case protocol.MsgUploadComplete:
			if err := receiver.Finalize(req.TransferId, req.SHA256); err != nil {
				zlog().Warn().Err(err).Str("transfer_id", fmt.Sprintf("%x", req.TransferId)).Msg("finalize failed")
				return
			}
			coordinator.Commit(req.Filename, int64(req.FileSize))
			_ = manager.Sessions().Delete(req.TransferId)
			success = true
			zlog().Info().Str("filename", req.Filename).Msg("upload finalized")
			return
		default:
			zlog().Warn().Uint8("type", uint8(frame.Type)).Msg("unexpected frame during upload")
			return
		}
	}
}
