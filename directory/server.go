// Package directory implements the authoritative indexing service: a
// TCP accept loop with one worker per connection dispatching
// REGISTRY_REQUEST and SEARCH_REQUEST messages against a shared Index,
// per spec §4.6. The accept-loop/worker shutdown shape uses
// golang.org/x/sync/errgroup in place of the teacher's
// grpc.Server.Serve/Stop, since this spec's transport is framed TCP,
// not gRPC (see DESIGN.md).
package directory

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ard1102/p2p/directory/metrics"
	"github.com/ard1102/p2p/internal/dflog"
	"github.com/ard1102/p2p/internal/wire"
	"github.com/ard1102/p2p/pkg/index"
	"github.com/ard1102/p2p/pkg/replication"
)

// Server is the directory's TCP listener plus its request handlers.
type Server struct {
	idx      *index.Index
	planner  *replication.Planner
	log      dflog.Logger
	metrics  *metrics.Metrics
	maxTasks int
}

// New constructs a Server over idx and planner. maxTasks bounds the
// replication tasks returned per registration (spec §4.3/§4.4).
func New(idx *index.Index, planner *replication.Planner, log dflog.Logger, m *metrics.Metrics, maxTasks int) *Server {
	if log == nil {
		log = dflog.NewNop()
	}
	if maxTasks <= 0 {
		maxTasks = replication.DefaultMaxTasks
	}
	return &Server{idx: idx, planner: planner, log: log, metrics: m, maxTasks: maxTasks}
}

// Serve accepts connections on ln until ctx is cancelled or Accept
// fails, running each connection's worker loop concurrently. It
// returns once every in-flight worker has exited.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
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
				s.handleConn(conn)
				return nil
			})
		}
	})

	return g.Wait()
}

// handleConn serially processes every framed request on one connection
// until a read error or close, per spec §4.6: connections are
// long-lived and may carry multiple request/response pairs.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	remoteHost, remotePortStr, _ := net.SplitHostPort(conn.RemoteAddr().String())
	remotePort, _ := strconv.Atoi(remotePortStr)

	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)

	for {
		re, err := wire.ReadFrame(r)
		if err != nil {
			if !errors.Is(err, wire.ErrTruncated) {
				s.log.Warnf("directory: frame read error from %s: %v", conn.RemoteAddr(), err)
			}
			return
		}

		resp := s.dispatch(re, remoteHost, remotePort)

		if err := wire.WriteFrame(w, resp); err != nil {
			s.log.Warnf("directory: write response to %s: %v", conn.RemoteAddr(), err)
			return
		}
	}
}

func (s *Server) dispatch(re wire.RawEnvelope, remoteHost string, remotePort int) wire.Envelope {
	now := time.Now().UnixMilli()

	switch wire.Type(re.Type) {
	case wire.TypeRegistryRequest:
		payload := s.handleRegistry(re, remoteHost, remotePort)
		return wire.NewEnvelope(wire.TypeRegistryResponse, now, re.PeerID, re.RequestID, payload)
	case wire.TypeSearchRequest:
		payload := s.handleSearch(re)
		return wire.NewEnvelope(wire.TypeSearchResponse, now, re.PeerID, re.RequestID, payload)
	default:
		if s.metrics != nil {
			s.metrics.IncUnknownType()
		}
		payload := wire.RegistryResponsePayload{
			Status: "error",
			Error:  fmt.Sprintf("unknown message type: %s", re.Type),
		}
		return wire.NewEnvelope(wire.TypeRegistryResponse, now, re.PeerID, re.RequestID, payload)
	}
}
