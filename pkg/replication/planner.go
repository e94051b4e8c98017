// Package replication implements the server-driven replication policy
// described in spec §4.3: on each registration, compute up to N
// file-copy tasks that push the target peer toward a configured
// replication factor. The filter-candidates-then-stop-at-a-bound shape
// is grounded on the teacher's scheduler/scheduler/scheduler.go
// filterParents loop, simplified to the spec's stateless greedy policy
// (no evaluator, no FSM — this planner has no notion of peer health or
// scheduling history).
package replication

import (
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gammazero/deque"

	"github.com/ard1102/p2p/internal/wire"
	"github.com/ard1102/p2p/pkg/index"
)

// DefaultMaxTasks is the default bound on tasks returned per
// registration (spec §4.3).
const DefaultMaxTasks = 5

// Planner computes replication tasks against an Index.
type Planner struct {
	idx               *index.Index
	replicationFactor int
}

// New returns a Planner with the given replication factor R >= 1.
func New(idx *index.Index, replicationFactor int) *Planner {
	if replicationFactor < 1 {
		replicationFactor = 1
	}
	return &Planner{idx: idx, replicationFactor: replicationFactor}
}

// CheckReplication reports whether fileName already has at least R
// distinct serving peers.
func (p *Planner) CheckReplication(fileName string) bool {
	return p.idx.ServingCount(fileName) >= p.replicationFactor
}

// SelectTargets returns the first count peers from the registry that
// are not already serving fileName and are not in exclude.
func (p *Planner) SelectTargets(fileName string, count int, exclude mapset.Set[string]) []string {
	if count <= 0 {
		return nil
	}
	if exclude == nil {
		exclude = mapset.NewThreadUnsafeSet[string]()
	}

	var out []string
	for _, peerID := range p.idx.AllPeerIDs() {
		if len(out) >= count {
			break
		}
		if exclude.Contains(peerID) {
			continue
		}
		if p.idx.IsServing(fileName, peerID) {
			continue
		}
		out = append(out, peerID)
	}
	return out
}

// BuildTasksFor scans list_files() and emits up to maxTasks replication
// tasks that would move targetPeerID toward serving every
// under-replicated file it does not already serve, sourcing each copy
// from the file's first serving; a file whose first serving has no
// usable host/port is skipped, other servings are not tried (spec
// §4.3; the hotspot
// potential of always picking sources[0] is accepted, not fixed — see
// spec §9 Open Questions).
func (p *Planner) BuildTasksFor(targetPeerID string, maxTasks int) []wire.ReplicationTask {
	if maxTasks <= 0 {
		maxTasks = DefaultMaxTasks
	}

	var pending deque.Deque[wire.ReplicationTask]
	for _, fileName := range p.idx.ListFiles() {
		if pending.Len() >= maxTasks {
			break
		}
		if p.CheckReplication(fileName) {
			continue
		}
		if p.idx.IsServing(fileName, targetPeerID) {
			continue
		}
		sources := p.idx.RawServings(fileName)
		if len(sources) == 0 {
			continue
		}
		source := sources[0]
		peerRec, ok := p.idx.Peer(source.PeerID)
		if !ok || peerRec.Host == "" || peerRec.Port == 0 {
			continue
		}
		pending.PushBack(wire.ReplicationTask{
			FileName: fileName,
			Source: wire.FilePeer{
				PeerID: peerRec.PeerID,
				Host:   peerRec.Host,
				Port:   peerRec.Port,
			},
		})
	}

	tasks := make([]wire.ReplicationTask, 0, pending.Len())
	for pending.Len() > 0 {
		tasks = append(tasks, pending.PopFront())
	}
	return tasks
}
