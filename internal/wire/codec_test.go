package wire

import (
	"bufio"
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWriteReadFrame_RoundTrip covers invariant R1: encoding then
// decoding one envelope recovers the same type and payload.
func TestWriteReadFrame_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	peerID := "peer1"
	env := NewEnvelope(TypeSearchRequest, 1234, &peerID, nil, SearchRequestPayload{Query: "f.bin"})
	require.NoError(t, WriteFrame(w, env))

	r := bufio.NewReader(&buf)
	re, err := ReadFrame(r)
	require.NoError(t, err)

	assert.Equal(t, string(TypeSearchRequest), re.Type)
	assert.Equal(t, int64(1234), re.Timestamp)
	assert.Equal(t, Version, re.Version)
	require.NotNil(t, re.PeerID)
	assert.Equal(t, "peer1", *re.PeerID)
	require.NotNil(t, re.RequestID)

	var payload SearchRequestPayload
	require.NoError(t, DecodePayload(re, &payload))
	assert.Equal(t, "f.bin", payload.Query)
}

// TestWriteReadFrame_GeneratesRequestIDWhenOmitted covers NewEnvelope's
// default request_id behavior.
func TestWriteReadFrame_GeneratesRequestIDWhenOmitted(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	env := NewEnvelope(TypeSearchRequest, 0, nil, nil, SearchRequestPayload{Query: "f.bin"})
	require.NotNil(t, env.RequestID)
	require.NoError(t, WriteFrame(w, env))

	re, err := ReadFrame(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.NotNil(t, re.RequestID)
	assert.Equal(t, *env.RequestID, *re.RequestID)
}

// TestReadFrame_MalformedNonJSON covers the MALFORMED path for a line
// that isn't valid JSON at all.
func TestReadFrame_MalformedNonJSON(t *testing.T) {
	r := bufio.NewReader(bytes.NewBufferString("not json at all\n"))
	_, err := ReadFrame(r)
	assert.ErrorIs(t, err, ErrMalformed)
}

// TestReadFrame_MalformedMissingType covers the MALFORMED path for a
// well-formed JSON object missing the required "type" field.
func TestReadFrame_MalformedMissingType(t *testing.T) {
	r := bufio.NewReader(bytes.NewBufferString(`{"timestamp":1,"version":"1.0"}` + "\n"))
	_, err := ReadFrame(r)
	assert.ErrorIs(t, err, ErrMalformed)
}

// TestReadFrame_TruncatedOnEarlyClose covers the TRUNCATED path: the
// peer closes the connection before a newline-terminated frame arrives.
func TestReadFrame_TruncatedOnEarlyClose(t *testing.T) {
	pr, pw := io.Pipe()
	go func() {
		pw.Write([]byte(`{"type":"SEARCH_REQUEST"`)) // no trailing newline
		pw.Close()
	}()

	_, err := ReadFrame(bufio.NewReader(pr))
	assert.ErrorIs(t, err, ErrTruncated)
}

// TestReadFrame_TruncatedOnImmediateClose covers the TRUNCATED path
// when the peer closes before sending anything at all.
func TestReadFrame_TruncatedOnImmediateClose(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader(nil))
	_, err := ReadFrame(r)
	assert.ErrorIs(t, err, ErrTruncated)
}

// TestStreamReceiveFile_RoundTrip covers exact-byte raw-mode transfer.
func TestStreamReceiveFile_RoundTrip(t *testing.T) {
	content := []byte("the quick brown fox jumps over the lazy dog")

	var buf bytes.Buffer
	require.NoError(t, StreamFile(&buf, bytes.NewReader(content), int64(len(content)), 8))

	dst := &bytes.Buffer{}
	r := bufio.NewReader(&buf)
	n, err := ReceiveFile(dst, r, int64(len(content)), 8)
	require.NoError(t, err)
	assert.EqualValues(t, len(content), n)
	assert.Equal(t, content, dst.Bytes())
}

// TestReceiveFile_TruncatedSourceReturnsError covers B4's sibling case:
// a source that closes before size bytes have arrived must error, never
// silently accept fewer bytes.
func TestReceiveFile_TruncatedSourceReturnsError(t *testing.T) {
	short := bytes.NewReader([]byte("short"))
	dst := &bytes.Buffer{}

	_, err := ReceiveFile(dst, bufio.NewReader(short), 100, 8)
	assert.Error(t, err)
}

// TestStreamReceiveFile_ZeroByteFile covers boundary B4.
func TestStreamReceiveFile_ZeroByteFile(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, StreamFile(&buf, bytes.NewReader(nil), 0, 8))
	assert.Equal(t, 0, buf.Len())

	dst := &bytes.Buffer{}
	n, err := ReceiveFile(dst, bufio.NewReader(&buf), 0, 8)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}
