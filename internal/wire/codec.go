package wire

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"unicode/utf8"
)

// wireEnvelope is the on-the-wire JSON shape; Payload is deferred as raw
// JSON so callers can decode it into the concrete type their handler
// expects.
type wireEnvelope struct {
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Version   string          `json:"version"`
	PeerID    *string         `json:"peer_id"`
	RequestID *string         `json:"request_id"`
	Payload   json.RawMessage `json:"payload"`
}

// ReadFrame accumulates bytes up to and including the first '\n',
// decodes the preceding bytes as one JSON object, and returns the
// decoded envelope. Per spec §4.1: non-UTF-8 bytes or a JSON decode
// error or a missing "type" field yield ErrMalformed; a peer close
// before a newline arrives yields ErrTruncated.
func ReadFrame(r *bufio.Reader) (RawEnvelope, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		if err == io.EOF {
			if len(line) == 0 {
				return RawEnvelope{}, ErrTruncated
			}
			// Bytes were received but no trailing newline ever arrived.
			return RawEnvelope{}, ErrTruncated
		}
		return RawEnvelope{}, fmt.Errorf("read frame: %w", err)
	}

	// Strip the trailing delimiter; there must be no internal newlines
	// in a well-formed frame, so this is the only '\n' we expect.
	line = line[:len(line)-1]

	if !utf8.Valid(line) {
		return RawEnvelope{}, ErrMalformed
	}

	var we wireEnvelope
	if err := json.Unmarshal(line, &we); err != nil {
		return RawEnvelope{}, ErrMalformed
	}
	if we.Type == "" {
		return RawEnvelope{}, ErrMalformed
	}

	return RawEnvelope{
		Type:      we.Type,
		Timestamp: we.Timestamp,
		Version:   we.Version,
		PeerID:    we.PeerID,
		RequestID: we.RequestID,
		Payload:   we.Payload,
	}, nil
}

// DecodePayload unmarshals a RawEnvelope's payload into dst.
func DecodePayload(re RawEnvelope, dst interface{}) error {
	if len(re.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(re.Payload, dst)
}

// WriteFrame encodes env as one JSON object and writes it followed by a
// single trailing '\n'.
func WriteFrame(w *bufio.Writer, env Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	return w.Flush()
}
