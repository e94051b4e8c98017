// Package index implements the directory's authoritative, in-memory
// {file_name -> [peer]} and {peer_id -> peer_record} mapping, serving
// registration and search concurrently while preserving invariants
// I1-I4 from spec §3. The locking shape follows the teacher's
// scheduler/supervisor/peer/manager.go (a single RWMutex guarding a set
// of maps), generalized from a peer-only registry to the dual
// file-index/peer-registry this spec requires.
package index

import "sync"

// PeerRecord is the registry's stored identity for one peer.
type PeerRecord struct {
	PeerID string
	Host   string
	Port   int
	Attrs  map[string]interface{}
}

// Serving is one peer's advertisement of a file, with an opaque
// attribute bag.
type Serving struct {
	PeerID string
	Meta   interface{}
}

// EnrichedServing is a Serving joined against the current peer
// registry, as returned by PeersForFile.
type EnrichedServing struct {
	PeerID string
	Peer   PeerRecord
	Meta   interface{}
}

// Index is the directory's thread-safe catalog. All operations are
// linearizable with respect to one another (spec §4.2).
type Index struct {
	mu       sync.RWMutex
	peers    map[string]PeerRecord
	fileList map[string]map[string]Serving // file_name -> peer_id -> serving
}

// New returns an empty Index.
func New() *Index {
	return &Index{
		peers:    make(map[string]PeerRecord),
		fileList: make(map[string]map[string]Serving),
	}
}

// AddPeer inserts or replaces the registry record for peerID. Per spec
// §4.2, replacing a record does not remove files previously registered
// by that peer.
func (idx *Index) AddPeer(peerID string, record PeerRecord) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	record.PeerID = peerID
	idx.peers[peerID] = record
}

// RemovePeer atomically deletes the registry entry for peerID and
// sweeps it out of every file's serving list, dropping any file left
// with zero servings (I3, I4). No caller can observe the intermediate
// state where the registry entry is gone but a serving referencing it
// remains, because both steps happen while mu is held.
func (idx *Index) RemovePeer(peerID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.peers, peerID)
	for fileName, servings := range idx.fileList {
		if _, ok := servings[peerID]; ok {
			delete(servings, peerID)
			if len(servings) == 0 {
				delete(idx.fileList, fileName)
			}
		}
	}
}

// Peer returns the current registry record for peerID, if any.
func (idx *Index) Peer(peerID string) (PeerRecord, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	rec, ok := idx.peers[peerID]
	return rec, ok
}

// AddFile registers peerID as serving fileName. Idempotent: a repeat
// call for the same (peerID, fileName) is a no-op and does not
// overwrite the first-written meta (spec §9 Open Questions, §4.2).
func (idx *Index) AddFile(peerID, fileName string, meta interface{}) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	servings, ok := idx.fileList[fileName]
	if !ok {
		servings = make(map[string]Serving)
		idx.fileList[fileName] = servings
	}
	if _, exists := servings[peerID]; exists {
		return
	}
	servings[peerID] = Serving{PeerID: peerID, Meta: meta}
}

// RemoveFile removes peerID's serving of fileName, dropping the file
// entry entirely if that was its last serving (I4).
func (idx *Index) RemoveFile(peerID, fileName string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	servings, ok := idx.fileList[fileName]
	if !ok {
		return
	}
	delete(servings, peerID)
	if len(servings) == 0 {
		delete(idx.fileList, fileName)
	}
}

// PeersForFile returns every serving of fileName enriched with its
// current registry record. A serving whose peer_id is not (or no
// longer) in the registry is omitted — readers must never see a
// broken reference (spec §4.2).
func (idx *Index) PeersForFile(fileName string) []EnrichedServing {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	servings := idx.fileList[fileName]
	if len(servings) == 0 {
		return nil
	}
	out := make([]EnrichedServing, 0, len(servings))
	for _, s := range servings {
		rec, ok := idx.peers[s.PeerID]
		if !ok {
			continue
		}
		out = append(out, EnrichedServing{PeerID: s.PeerID, Peer: rec, Meta: s.Meta})
	}
	return out
}

// ListFiles returns every file name currently present (non-empty
// serving list), per I4.
func (idx *Index) ListFiles() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]string, 0, len(idx.fileList))
	for name := range idx.fileList {
		out = append(out, name)
	}
	return out
}

// ServingCount returns |servings(fileName)|, used by the replication
// planner without requiring a full PeersForFile enrichment pass.
func (idx *Index) ServingCount(fileName string) int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.fileList[fileName])
}

// IsServing reports whether peerID already serves fileName.
func (idx *Index) IsServing(fileName, peerID string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.fileList[fileName][peerID]
	return ok
}

// RawServings returns the unenriched serving list for fileName, in the
// planner's source-selection order (map iteration order — spec §4.3
// only requires scan-stability within a single call, which a single
// snapshot under RLock provides).
func (idx *Index) RawServings(fileName string) []Serving {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	servings := idx.fileList[fileName]
	if len(servings) == 0 {
		return nil
	}
	out := make([]Serving, 0, len(servings))
	for _, s := range servings {
		out = append(out, s)
	}
	return out
}

// AllPeerIDs returns every peer_id currently in the registry, used by
// the replication planner's select_targets scan.
func (idx *Index) AllPeerIDs() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]string, 0, len(idx.peers))
	for id := range idx.peers {
		out = append(out, id)
	}
	return out
}
