package peer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ard1102/p2p/internal/dflog"
	"github.com/ard1102/p2p/internal/wire"
)

// TransferServer handles OBTAIN/REPLICATE requests by streaming file
// bytes from the local file store, per spec §4.7. One request per
// connection; no keep-alive.
type TransferServer struct {
	store *FileStore
	log   dflog.Logger
}

// NewTransferServer builds a TransferServer serving out of store.
func NewTransferServer(store *FileStore, log dflog.Logger) *TransferServer {
	if log == nil {
		log = dflog.NewNop()
	}
	return &TransferServer{store: store, log: log}
}

// Serve accepts connections on ln, each handled by its own worker that
// serves exactly one transfer request then closes, per spec §4.7/§5.
func (t *TransferServer) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		return ln.Close()
	})

	g.Go(func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("accept: %w", err)
			}
			g.Go(func() error {
				t.handleConn(conn)
				return nil
			})
		}
	})

	return g.Wait()
}

func (t *TransferServer) handleConn(conn net.Conn) {
	defer conn.Close()

	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)

	re, err := wire.ReadFrame(r)
	if err != nil {
		if !errors.Is(err, wire.ErrTruncated) {
			t.log.Warnf("transfer: frame read error from %s: %v", conn.RemoteAddr(), err)
		}
		return
	}

	var respType wire.Type
	switch wire.Type(re.Type) {
	case wire.TypeObtainRequest:
		respType = wire.TypeObtainResponse
	case wire.TypeReplicateRequest:
		respType = wire.TypeReplicateResponse
	default:
		t.writeError(w, wire.TypeObtainResponse, re, "", fmt.Sprintf("unknown message type: %s", re.Type))
		return
	}

	var req wire.TransferRequestPayload
	if err := wire.DecodePayload(re, &req); err != nil || req.FileName == "" {
		t.writeError(w, respType, re, "", "missing file_name")
		return
	}

	f, size, err := t.store.OpenShared(req.FileName)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			t.writeError(w, respType, re, req.FileName, "file_not_found")
			return
		}
		t.writeError(w, respType, re, req.FileName, err.Error())
		return
	}
	defer f.Close()

	now := time.Now().UnixMilli()
	resp := wire.NewEnvelope(respType, now, re.PeerID, re.RequestID, wire.TransferResponsePayload{
		Status:    "ok",
		FileName:  req.FileName,
		FileSize:  size,
		ChunkSize: DefaultChunkSize,
	})
	if err := wire.WriteFrame(w, resp); err != nil {
		t.log.Warnf("transfer: write response to %s: %v", conn.RemoteAddr(), err)
		return
	}

	// Switch to raw mode: stream exactly size bytes, sized by the
	// advertised file_size, never by EOF alone.
	if err := wire.StreamFile(conn, f, size, DefaultChunkSize); err != nil {
		t.log.Warnf("transfer: stream %s to %s: %v", req.FileName, conn.RemoteAddr(), err)
	}
}

func (t *TransferServer) writeError(w *bufio.Writer, respType wire.Type, re wire.RawEnvelope, fileName, errMsg string) {
	now := time.Now().UnixMilli()
	resp := wire.NewEnvelope(respType, now, re.PeerID, re.RequestID, wire.TransferResponsePayload{
		Status:   "error",
		Error:    errMsg,
		FileName: fileName,
	})
	if err := wire.WriteFrame(w, resp); err != nil {
		t.log.Warnf("transfer: write error response: %v", err)
	}
}
