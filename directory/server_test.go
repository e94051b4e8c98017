package directory

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ard1102/p2p/directory/metrics"
	"github.com/ard1102/p2p/internal/dflog"
	"github.com/ard1102/p2p/internal/wire"
	"github.com/ard1102/p2p/pkg/index"
	"github.com/ard1102/p2p/pkg/replication"
)

// testServer starts a Server on an ephemeral loopback port and returns
// its address, stopping it when the test completes.
func testServer(t *testing.T, replicationFactor, maxTasks int) (string, *index.Index) {
	t.Helper()

	idx := index.New()
	planner := replication.New(idx, replicationFactor)
	srv := New(idx, planner, dflog.NewNop(), metrics.New(), maxTasks)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		<-done
	})

	return ln.Addr().String(), idx
}

func roundTrip(t *testing.T, addr string, req wire.Envelope) wire.RawEnvelope {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	w := bufio.NewWriter(conn)
	require.NoError(t, wire.WriteFrame(w, req))

	r := bufio.NewReader(conn)
	re, err := wire.ReadFrame(r)
	require.NoError(t, err)
	return re
}

// TestServer_RegisterAndSearch exercises end-to-end scenario 1: a peer
// registers one file and a search for it resolves to that peer.
func TestServer_RegisterAndSearch(t *testing.T) {
	addr, _ := testServer(t, 2, replication.DefaultMaxTasks)

	peerID := "peer1"
	req := wire.NewEnvelope(wire.TypeRegistryRequest, 1, &peerID, nil, map[string]interface{}{
		"peer":  map[string]interface{}{"host": "10.0.0.1", "port": 7101},
		"files": map[string]interface{}{"f.bin": map[string]interface{}{"size_bytes": 100}},
	})
	re := roundTrip(t, addr, req)

	var regResp wire.RegistryResponsePayload
	require.NoError(t, wire.DecodePayload(re, &regResp))
	assert.Equal(t, "ok", regResp.Status)
	assert.Equal(t, 1, regResp.RegisteredFiles)
	assert.False(t, regResp.ReplicationRequired, "sole registrant of its own file is never its own replication target")

	searchReq := wire.NewEnvelope(wire.TypeSearchRequest, 2, &peerID, nil, wire.SearchRequestPayload{Query: "f.bin"})
	re2 := roundTrip(t, addr, searchReq)

	var searchResp wire.SearchResponsePayload
	require.NoError(t, wire.DecodePayload(re2, &searchResp))
	assert.Equal(t, "ok", searchResp.Status)
	require.Len(t, searchResp.Results, 1)
	assert.Equal(t, "peer1", searchResp.Results[0].PeerID)
	assert.Equal(t, "10.0.0.1", searchResp.Results[0].Peer.Host)
}

// TestServer_RegistrationAttrsSurviveToSearch covers the host-attribute
// enrichment feature: an opaque attrs bag attached to payload.peer on
// registration must come back out on a later search for that peer's
// files, not be silently dropped.
func TestServer_RegistrationAttrsSurviveToSearch(t *testing.T) {
	addr, _ := testServer(t, 2, replication.DefaultMaxTasks)

	peerID := "peer1"
	req := wire.NewEnvelope(wire.TypeRegistryRequest, 1, &peerID, nil, map[string]interface{}{
		"peer": map[string]interface{}{
			"host":  "10.0.0.1",
			"port":  7101,
			"attrs": map[string]interface{}{"load1": 0.5, "free_bytes": 123456},
		},
		"files": map[string]interface{}{"f.bin": map[string]interface{}{"size_bytes": 100}},
	})
	roundTrip(t, addr, req)

	searchReq := wire.NewEnvelope(wire.TypeSearchRequest, 2, &peerID, nil, wire.SearchRequestPayload{Query: "f.bin"})
	re := roundTrip(t, addr, searchReq)

	var searchResp wire.SearchResponsePayload
	require.NoError(t, wire.DecodePayload(re, &searchResp))
	require.Len(t, searchResp.Results, 1)
	require.NotNil(t, searchResp.Results[0].Peer)
	require.NotNil(t, searchResp.Results[0].Peer.Attrs)
	assert.EqualValues(t, 0.5, searchResp.Results[0].Peer.Attrs["load1"])
	assert.EqualValues(t, 123456, searchResp.Results[0].Peer.Attrs["free_bytes"])
}

// TestServer_TwoPeersConvergeToReplicationFactor exercises end-to-end
// scenario 2: once a second peer registers, the directory hands back a
// replication task pointing the new peer at the file's existing holder.
func TestServer_TwoPeersConvergeToReplicationFactor(t *testing.T) {
	addr, idx := testServer(t, 2, replication.DefaultMaxTasks)

	peer1 := "peer1"
	req1 := wire.NewEnvelope(wire.TypeRegistryRequest, 1, &peer1, nil, map[string]interface{}{
		"peer":  map[string]interface{}{"host": "10.0.0.1", "port": 7101},
		"files": map[string]interface{}{"f.bin": map[string]interface{}{"size_bytes": 100}},
	})
	roundTrip(t, addr, req1)

	peer2 := "peer2"
	req2 := wire.NewEnvelope(wire.TypeRegistryRequest, 2, &peer2, nil, map[string]interface{}{
		"peer":  map[string]interface{}{"host": "10.0.0.2", "port": 7102},
		"files": map[string]interface{}{},
	})
	re := roundTrip(t, addr, req2)

	var resp wire.RegistryResponsePayload
	require.NoError(t, wire.DecodePayload(re, &resp))
	assert.True(t, resp.ReplicationRequired)
	require.Len(t, resp.ReplicationTasks, 1)
	assert.Equal(t, "f.bin", resp.ReplicationTasks[0].FileName)
	assert.Equal(t, "peer1", resp.ReplicationTasks[0].Source.PeerID)

	// The directory only offers the task; it never performs the copy
	// itself, so the index still shows a single serving (spec §4.3).
	assert.Equal(t, 1, idx.ServingCount("f.bin"))
}

// TestServer_SearchForUnknownFileReturnsEmptyResults covers the no-match
// search path.
func TestServer_SearchForUnknownFileReturnsEmptyResults(t *testing.T) {
	addr, _ := testServer(t, 2, replication.DefaultMaxTasks)

	peerID := "peer1"
	searchReq := wire.NewEnvelope(wire.TypeSearchRequest, 1, &peerID, nil, wire.SearchRequestPayload{Query: "missing.bin"})
	re := roundTrip(t, addr, searchReq)

	var resp wire.SearchResponsePayload
	require.NoError(t, wire.DecodePayload(re, &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Empty(t, resp.Results)
}

// TestServer_MalformedFrameClosesConnection covers end-to-end scenario
// 6: a non-JSON line yields a closed connection, not a crash.
func TestServer_MalformedFrameClosesConnection(t *testing.T) {
	addr, _ := testServer(t, 2, replication.DefaultMaxTasks)

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("not json at all\n"))
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	_, readErr := conn.Read(buf)
	assert.Error(t, readErr, "server must close the connection on a malformed frame rather than respond")
}

// TestServer_EmptyRegistrationHasZeroFilesAndNoTasks covers boundary
// B1: an empty shared directory registers with zero files.
func TestServer_EmptyRegistrationHasZeroFilesAndNoTasks(t *testing.T) {
	addr, _ := testServer(t, 2, replication.DefaultMaxTasks)

	peerID := "peer1"
	req := wire.NewEnvelope(wire.TypeRegistryRequest, 1, &peerID, nil, map[string]interface{}{
		"peer":  map[string]interface{}{"host": "10.0.0.1", "port": 7101},
		"files": map[string]interface{}{},
	})
	re := roundTrip(t, addr, req)

	var resp wire.RegistryResponsePayload
	require.NoError(t, wire.DecodePayload(re, &resp))
	assert.Equal(t, 0, resp.RegisteredFiles)
	assert.False(t, resp.ReplicationRequired)
	assert.Empty(t, resp.ReplicationTasks)
}
