package wire

import "errors"

// ErrMalformed is returned when bytes preceding the first newline are
// not valid UTF-8 JSON, or decode to an object missing "type".
var ErrMalformed = errors.New("MALFORMED")

// ErrTruncated is returned when the peer closes the connection before a
// newline-terminated frame arrives.
var ErrTruncated = errors.New("TRUNCATED")
