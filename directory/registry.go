package directory

import (
	"github.com/ard1102/p2p/internal/wire"
	"github.com/ard1102/p2p/pkg/index"
)

// handleRegistry applies one REGISTRY_REQUEST's mutations and returns
// the REGISTRY_RESPONSE payload, per spec §4.4.
func (s *Server) handleRegistry(re wire.RawEnvelope, remoteHost string, remotePort int) wire.RegistryResponsePayload {
	if re.PeerID == nil || *re.PeerID == "" {
		return wire.RegistryResponsePayload{Status: "error", Error: "missing peer_id"}
	}
	peerID := *re.PeerID

	var req wire.RegistryRequestPayload
	if err := wire.DecodePayload(re, &req); err != nil {
		return wire.RegistryResponsePayload{Status: "error", Error: "malformed payload: " + err.Error()}
	}

	// The peer-declared host/port always wins over the accepting
	// socket's remote address when present (spec §4.4 step 2).
	host, port := remoteHost, remotePort
	var attrs map[string]interface{}
	if req.Peer != nil {
		if req.Peer.Host != "" {
			host = req.Peer.Host
		}
		if req.Peer.Port != 0 {
			port = req.Peer.Port
		}
		attrs = req.Peer.Attrs
	}

	s.idx.AddPeer(peerID, index.PeerRecord{PeerID: peerID, Host: host, Port: port, Attrs: attrs})

	entries, err := wire.DecodeFileEntries(req.Files)
	if err != nil {
		return wire.RegistryResponsePayload{Status: "error", Error: "malformed files: " + err.Error()}
	}
	for _, e := range entries {
		s.idx.AddFile(peerID, e.Name, e.Meta)
	}

	tasks := s.planner.BuildTasksFor(peerID, s.maxTasks)

	if s.metrics != nil {
		s.metrics.IncRegistration()
	}

	resp := wire.RegistryResponsePayload{
		Status:              "ok",
		RegisteredFiles:     len(entries),
		ReplicationRequired: len(tasks) > 0,
	}
	if len(tasks) > 0 {
		resp.ReplicationTasks = tasks
	}
	return resp
}
