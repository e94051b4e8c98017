// Package peer implements the client side of the protocol (register,
// search, obtain, replicate) and the peer transfer server that serves
// OBTAIN/REPLICATE requests by streaming file bytes, per spec §4.7/§4.8.
// The filesystem layout (shared/downloaded/replicated directories) is a
// collaborator contract per spec §1 — this package only enumerates and
// streams through it.
package peer

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultChunkSize is the advisory read/write buffer size communicated
// in transfer responses (spec §4.7).
const DefaultChunkSize = 64 * 1024

// FileStore enumerates and serves the on-disk contents of one peer's
// shared/downloaded/replicated directories.
type FileStore struct {
	SharedDir     string
	DownloadDir   string
	ReplicatedDir string
}

// SharedFile is one locally shared file's advertised name and size.
type SharedFile struct {
	Name string
	Size int64
}

// ListShared enumerates the peer's shared directory into
// name -> {size_bytes}, per spec §4.8 register().
func (fs *FileStore) ListShared() ([]SharedFile, error) {
	entries, err := os.ReadDir(fs.SharedDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list shared dir: %w", err)
	}

	var out []SharedFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, SharedFile{Name: e.Name(), Size: info.Size()})
	}
	return out, nil
}

// OpenShared resolves <shared_dir>/<file_name> for serving, returning
// its size and an open handle, or an error if it does not exist or is
// not a regular file (spec §4.7 step 3).
func (fs *FileStore) OpenShared(fileName string) (*os.File, int64, error) {
	path := filepath.Join(fs.SharedDir, fileName)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil, 0, os.ErrNotExist
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	return f, info.Size(), nil
}

// CreateDestination creates (or truncates) <dir>/<file_name> for
// writing received bytes into.
func (fs *FileStore) CreateDestination(dir, fileName string) (*os.File, string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, "", err
	}
	path := filepath.Join(dir, fileName)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, "", err
	}
	return f, path, nil
}
