package peer

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ard1102/p2p/internal/dflog"
	peermetrics "github.com/ard1102/p2p/peer/metrics"
)

// TestClient_ObtainWritesByteExactCopy covers spec invariant R3: the
// destination file byte-for-byte matches the source.
func TestClient_ObtainWritesByteExactCopy(t *testing.T) {
	sharedDir := t.TempDir()
	content := []byte("the quick brown fox jumps over the lazy dog")
	require.NoError(t, os.WriteFile(filepath.Join(sharedDir, "f.bin"), content, 0o644))

	addr := startTransferServer(t, sharedDir)
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	downloadDir := t.TempDir()
	store := &FileStore{SharedDir: t.TempDir(), DownloadDir: downloadDir, ReplicatedDir: t.TempDir()}
	client := NewClient("peer2", "", store, peermetrics.New(), dflog.NewNop())

	destPath, written, _, err := client.Obtain(host, port, "f.bin", "")
	require.NoError(t, err)
	assert.EqualValues(t, len(content), written)

	got, err := os.ReadFile(destPath)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

// TestClient_ObtainMissingFileReturnsError covers end-to-end scenario 4
// from the client's side of the transfer.
func TestClient_ObtainMissingFileReturnsError(t *testing.T) {
	sharedDir := t.TempDir()
	addr := startTransferServer(t, sharedDir)
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	store := &FileStore{SharedDir: t.TempDir(), DownloadDir: t.TempDir(), ReplicatedDir: t.TempDir()}
	client := NewClient("peer2", "", store, peermetrics.New(), dflog.NewNop())

	_, _, _, err = client.Obtain(host, port, "missing.bin", "")
	assert.Error(t, err)
}

// TestClient_ReplicateWritesIntoReplicatedDir covers the replicate path
// using a destination directory distinct from obtain's default.
func TestClient_ReplicateWritesIntoReplicatedDir(t *testing.T) {
	sharedDir := t.TempDir()
	content := []byte("replicated payload")
	require.NoError(t, os.WriteFile(filepath.Join(sharedDir, "r.bin"), content, 0o644))

	addr := startTransferServer(t, sharedDir)
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	replicatedDir := t.TempDir()
	store := &FileStore{SharedDir: t.TempDir(), DownloadDir: t.TempDir(), ReplicatedDir: replicatedDir}
	client := NewClient("peer3", "", store, peermetrics.New(), dflog.NewNop())

	destPath, written, _, err := client.Replicate(host, port, "r.bin", "")
	require.NoError(t, err)
	assert.EqualValues(t, len(content), written)
	assert.Equal(t, filepath.Join(replicatedDir, "r.bin"), destPath)
}
