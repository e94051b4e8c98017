// Package wire implements the control protocol's framed JSON-line codec
// and the raw byte-count transfer mode that follows it on the same
// connection.
package wire

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Version is the only control-protocol version this module speaks.
const Version = "1.0"

// Type identifies the kind of a framed control message.
type Type string

const (
	TypeRegistryRequest   Type = "REGISTRY_REQUEST"
	TypeRegistryResponse  Type = "REGISTRY_RESPONSE"
	TypeSearchRequest     Type = "SEARCH_REQUEST"
	TypeSearchResponse    Type = "SEARCH_RESPONSE"
	TypeObtainRequest     Type = "OBTAIN_REQUEST"
	TypeObtainResponse    Type = "OBTAIN_RESPONSE"
	TypeReplicateRequest  Type = "REPLICATE_REQUEST"
	TypeReplicateResponse Type = "REPLICATE_RESPONSE"
)

// Envelope is the framed-mode message wrapper described in spec §4.1.
// Payload is left as a raw message so each handler can decode it into
// the concrete request/response shape it expects.
type Envelope struct {
	Type      Type        `json:"type"`
	Timestamp int64       `json:"timestamp"`
	Version   string      `json:"version"`
	PeerID    *string     `json:"peer_id"`
	RequestID *string     `json:"request_id"`
	Payload   interface{} `json:"payload"`
}

// NewEnvelope builds an envelope with a generated request_id when none is
// supplied, matching "request_id: <string | null>" being informational.
func NewEnvelope(t Type, nowMs int64, peerID *string, requestID *string, payload interface{}) Envelope {
	if requestID == nil {
		id := uuid.NewString()
		requestID = &id
	}
	return Envelope{
		Type:      t,
		Timestamp: nowMs,
		Version:   Version,
		PeerID:    peerID,
		RequestID: requestID,
		Payload:   payload,
	}
}

// RawEnvelope is the shape read off the wire before a handler knows what
// concrete payload type to decode Payload into.
type RawEnvelope struct {
	Type      string  `json:"type"`
	Timestamp int64   `json:"timestamp"`
	Version   string  `json:"version"`
	PeerID    *string `json:"peer_id"`
	RequestID *string `json:"request_id"`
	Payload   []byte  `json:"-"`
}

// FilePeer is a network endpoint advertised in a registration or carried
// in a replication task's source field.
type FilePeer struct {
	PeerID string `json:"peer_id"`
	Host   string `json:"host"`
	Port   int    `json:"port"`
}

// ReplicationTask is the ephemeral task shape described in spec §3.
type ReplicationTask struct {
	FileName string   `json:"file_name"`
	Source   FilePeer `json:"source"`
}

// RegistryRequestPayload is payload.{peer,files} on REGISTRY_REQUEST.
// Files is decoded leniently: it may arrive as either a JSON object
// (name -> meta) or a JSON array of entries; callers should use
// DecodeFileEntries on the raw payload rather than unmarshalling this
// field directly, see files.go.
type RegistryRequestPayload struct {
	Peer  *RegisteredPeer `json:"peer"`
	Files json.RawMessage `json:"files"`
}

// RegisteredPeer is the peer-declared endpoint in payload.peer. Attrs is
// an opaque, best-effort attribute bag (e.g. host load, free disk
// space) carried through to the registry as display metadata only —
// never interpreted by the replication planner.
type RegisteredPeer struct {
	Host  string                 `json:"host"`
	Port  int                    `json:"port"`
	Attrs map[string]interface{} `json:"attrs,omitempty"`
}

// RegistryResponsePayload is the REGISTRY_RESPONSE payload.
type RegistryResponsePayload struct {
	Status              string            `json:"status"`
	Error               string            `json:"error,omitempty"`
	RegisteredFiles     int               `json:"registered_files"`
	ReplicationRequired bool              `json:"replication_required"`
	ReplicationTasks    []ReplicationTask `json:"replication_tasks,omitempty"`
}

// SearchRequestPayload is payload.query on SEARCH_REQUEST; Query may be a
// bare string or an object with file_name, handled in search.go.
type SearchRequestPayload struct {
	Query interface{} `json:"query"`
}

// EnrichedServing is one entry of a SEARCH_RESPONSE's results list.
type EnrichedServing struct {
	PeerID string      `json:"peer_id"`
	Peer   *PeerRecord `json:"peer"`
	Meta   interface{} `json:"meta"`
}

// PeerRecord mirrors the registry's stored peer record, as returned to
// search callers.
type PeerRecord struct {
	PeerID string                 `json:"peer_id"`
	Host   string                 `json:"host"`
	Port   int                    `json:"port"`
	Attrs  map[string]interface{} `json:"attrs,omitempty"`
}

// SearchResponsePayload is the SEARCH_RESPONSE payload.
type SearchResponsePayload struct {
	Status  string            `json:"status"`
	Error   string            `json:"error,omitempty"`
	Results []EnrichedServing `json:"results,omitempty"`
}

// TransferRequestPayload is payload.file_name on OBTAIN/REPLICATE_REQUEST.
type TransferRequestPayload struct {
	FileName string `json:"file_name"`
}

// TransferResponsePayload is the OBTAIN/REPLICATE_RESPONSE payload sent
// immediately before the raw byte stream.
type TransferResponsePayload struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	FileName  string `json:"file_name"`
	FileSize  int64  `json:"file_size,omitempty"`
	ChunkSize int    `json:"chunk_size,omitempty"`
}
