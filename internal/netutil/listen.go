// Package netutil provides the TCP listen helpers and peer-id-derived
// port logic shared by the directory server and the peer transfer
// server. Adapted from the teacher's internal/rpc/server_listen.go,
// with the gRPC-specific Server wrapper dropped (see DESIGN.md).
package netutil

import (
	"fmt"
	"net"
	"regexp"
	"strconv"

	"github.com/ard1102/p2p/internal/dflog"
)

// Listen wraps net.Listen for a plain host:port address.
func Listen(host string, port int) (net.Listener, error) {
	return net.Listen("tcp", fmt.Sprintf("%s:%d", host, port))
}

// ListenWithPortRange tries to listen on a port between startPort and
// endPort, returning the listener and the port actually bound.
func ListenWithPortRange(log dflog.Logger, host string, startPort, endPort int) (net.Listener, int, error) {
	if endPort < startPort {
		endPort = startPort
	}
	for port := startPort; port <= endPort; port++ {
		listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", host, port))
		if err == nil && listener != nil {
			return listener, listener.Addr().(*net.TCPAddr).Port, nil
		}
		if log != nil {
			log.Warnf("listen %s:%d failed: %s", host, port, err)
		}
	}
	return nil, -1, fmt.Errorf("no available port to listen in range %d-%d", startPort, endPort)
}

var trailingDigits = regexp.MustCompile(`(\d+)$`)

// TransferPort derives a peer's transfer-server port from its numeric
// identity, per spec §4.7: basePort + (index-1) when peerID is suffixed
// with an integer, else basePort unchanged. Port derivation from a
// non-numeric identity is advisory only (spec §9 Open Questions) — it
// never fails, it just falls back to basePort.
func TransferPort(peerID string, basePort int) int {
	m := trailingDigits.FindStringSubmatch(peerID)
	if m == nil {
		return basePort
	}
	index, err := strconv.Atoi(m[1])
	if err != nil || index <= 0 {
		return basePort
	}
	return basePort + (index - 1)
}
