package directory

import (
	"time"

	"github.com/ard1102/p2p/internal/wire"
)

// handleSearch resolves one SEARCH_REQUEST against the index, per spec
// §4.5. query may be a bare string (the file_name) or an object with a
// file_name field.
func (s *Server) handleSearch(re wire.RawEnvelope) wire.SearchResponsePayload {
	start := time.Now()

	var req wire.SearchRequestPayload
	if err := wire.DecodePayload(re, &req); err != nil {
		return wire.SearchResponsePayload{Status: "error", Error: "malformed payload: " + err.Error()}
	}

	fileName := extractFileName(req.Query)
	if fileName == "" {
		return wire.SearchResponsePayload{Status: "error", Error: "missing file_name"}
	}

	servings := s.idx.PeersForFile(fileName)
	results := make([]wire.EnrichedServing, 0, len(servings))
	for _, es := range servings {
		results = append(results, wire.EnrichedServing{
			PeerID: es.PeerID,
			Peer: &wire.PeerRecord{
				PeerID: es.Peer.PeerID,
				Host:   es.Peer.Host,
				Port:   es.Peer.Port,
				Attrs:  es.Peer.Attrs,
			},
			Meta: es.Meta,
		})
	}

	if s.metrics != nil {
		s.metrics.ObserveSearch(time.Since(start))
	}

	return wire.SearchResponsePayload{Status: "ok", Results: results}
}

// extractFileName normalizes payload.query, which may be a bare string
// or an object carrying a file_name field.
func extractFileName(query interface{}) string {
	switch v := query.(type) {
	case string:
		return v
	case map[string]interface{}:
		if name, ok := v["file_name"].(string); ok {
			return name
		}
	}
	return ""
}
