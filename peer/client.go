package peer

import (
	"bufio"
	"fmt"
	"net"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"

	"github.com/ard1102/p2p/internal/dflog"
	"github.com/ard1102/p2p/internal/wire"
	peermetrics "github.com/ard1102/p2p/peer/metrics"
)

// Client issues registration/search/obtain/replicate calls to the
// directory and to other peers, per spec §4.8.
type Client struct {
	PeerID          string
	DirectoryAddr   string
	ConnectTimeout  time.Duration
	ControlTimeout  time.Duration
	TransferTimeout time.Duration

	Store   *FileStore
	Metrics *peermetrics.Collector
	log     dflog.Logger
}

// NewClient builds a Client with spec §5's default timeouts (10s
// connect and control, 30s transfer).
func NewClient(peerID, directoryAddr string, store *FileStore, m *peermetrics.Collector, log dflog.Logger) *Client {
	if log == nil {
		log = dflog.NewNop()
	}
	return &Client{
		PeerID:          peerID,
		DirectoryAddr:   directoryAddr,
		ConnectTimeout:  10 * time.Second,
		ControlTimeout:  10 * time.Second,
		TransferTimeout: 30 * time.Second,
		Store:           store,
		Metrics:         m,
		log:             log,
	}
}

// dialControl opens a connection to the directory with the client's
// connect timeout, honoring spec §5's cancellation-on-timeout rule.
func (c *Client) dialControl() (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", c.DirectoryAddr, c.ConnectTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial directory %s: %w", c.DirectoryAddr, err)
	}
	return conn, nil
}

// Register enumerates Store.SharedDir and sends a REGISTRY_REQUEST
// advertising peerHost/peerPort, awaiting the REGISTRY_RESPONSE. If the
// response carries replication_tasks and performReplication is true,
// each task is replicated into Store.ReplicatedDir (failures are logged
// and skipped, not retried — spec §7), then register is invoked exactly
// once more with performReplication=false. That second registration
// again lists only Store.SharedDir, so files replicated into a separate
// ReplicatedDir are not advertised by it.
func (c *Client) Register(peerHost string, peerPort int, performReplication bool) (*wire.RegistryResponsePayload, error) {
	files, err := c.Store.ListShared()
	if err != nil {
		return nil, fmt.Errorf("enumerate shared files: %w", err)
	}

	filesPayload := make(map[string]interface{}, len(files))
	for _, f := range files {
		filesPayload[f.Name] = map[string]interface{}{"size_bytes": f.Size}
	}

	attrs := map[string]interface{}{}
	if avg, err := load.Avg(); err == nil {
		attrs["load1"] = avg.Load1
	}
	if usage, err := disk.Usage(c.Store.SharedDir); err == nil {
		attrs["free_bytes"] = usage.Free
	}

	reqPayload := map[string]interface{}{
		"peer": map[string]interface{}{
			"host": peerHost,
			"port": peerPort,
		},
		"files": filesPayload,
	}
	if len(attrs) > 0 {
		reqPayload["peer"].(map[string]interface{})["attrs"] = attrs
	}

	resp, err := c.roundTrip(wire.TypeRegistryRequest, reqPayload)
	if err != nil {
		return nil, err
	}

	var payload wire.RegistryResponsePayload
	if err := decodeResult(resp, &payload); err != nil {
		return nil, err
	}

	if performReplication && len(payload.ReplicationTasks) > 0 {
		var errs *multierror.Error
		for _, task := range payload.ReplicationTasks {
			if _, _, _, err := c.Replicate(task.Source.Host, task.Source.Port, task.FileName, ""); err != nil {
				c.log.Warnf("register: replicate task %s from %s failed: %v", task.FileName, task.Source.PeerID, err)
				errs = multierror.Append(errs, fmt.Errorf("%s: %w", task.FileName, err))
			}
		}
		if errs != nil {
			c.log.Warnf("register: %d replication task(s) failed: %v", errs.Len(), errs)
		}

		// Re-register exactly once with the current shared files; not
		// a retry loop (spec §7).
		return c.Register(peerHost, peerPort, false)
	}

	return &payload, nil
}

// Search issues a SEARCH_REQUEST for fileName and records elapsed wall
// time to the metrics collector as search_time, per spec §4.8.
func (c *Client) Search(fileName string) (*wire.SearchResponsePayload, error) {
	start := time.Now()
	resp, err := c.roundTrip(wire.TypeSearchRequest, map[string]interface{}{
		"query": fileName,
	})
	if c.Metrics != nil {
		c.Metrics.RecordSearch(time.Since(start))
	}
	if err != nil {
		return nil, err
	}

	var payload wire.SearchResponsePayload
	if err := decodeResult(resp, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// Obtain downloads fileName from host:port into destDir (default
// Store.DownloadDir when destDir is empty), per spec §4.8.
func (c *Client) Obtain(host string, port int, fileName, destDir string) (string, int64, time.Duration, error) {
	return c.transfer(wire.TypeObtainRequest, wire.TypeObtainResponse, host, port, fileName, destDir, c.Store.DownloadDir, "obtain")
}

// Replicate downloads fileName from host:port into destDir (default
// Store.ReplicatedDir when destDir is empty), per spec §4.8. Identical
// to Obtain except for message type and default destination directory.
func (c *Client) Replicate(host string, port int, fileName, destDir string) (string, int64, time.Duration, error) {
	return c.transfer(wire.TypeReplicateRequest, wire.TypeReplicateResponse, host, port, fileName, destDir, c.Store.ReplicatedDir, "replicate")
}

func (c *Client) transfer(reqType, respType wire.Type, host string, port int, fileName, destDir, defaultDir, op string) (string, int64, time.Duration, error) {
	if destDir == "" {
		destDir = defaultDir
	}

	start := time.Now()
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := net.DialTimeout("tcp", addr, c.ConnectTimeout)
	if err != nil {
		return "", 0, 0, fmt.Errorf("dial peer %s: %w", addr, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(c.TransferTimeout)); err != nil {
		return "", 0, 0, err
	}

	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)

	now := time.Now().UnixMilli()
	req := wire.NewEnvelope(reqType, now, &c.PeerID, nil, wire.TransferRequestPayload{FileName: fileName})
	if err := wire.WriteFrame(w, req); err != nil {
		return "", 0, 0, fmt.Errorf("send %s request: %w", op, err)
	}

	re, err := wire.ReadFrame(r)
	if err != nil {
		return "", 0, 0, fmt.Errorf("read %s response: %w", op, err)
	}

	var payload wire.TransferResponsePayload
	if err := wire.DecodePayload(re, &payload); err != nil {
		return "", 0, 0, fmt.Errorf("decode %s response: %w", op, err)
	}
	if payload.Status != "ok" {
		return "", 0, 0, fmt.Errorf("%s failed: %s", op, payload.Error)
	}

	dst, destPath, err := c.Store.CreateDestination(destDir, fileName)
	if err != nil {
		return "", 0, 0, fmt.Errorf("create destination: %w", err)
	}
	defer dst.Close()

	written, err := wire.ReceiveFile(dst, r, payload.FileSize, payload.ChunkSize)
	duration := time.Since(start)

	if c.Metrics != nil {
		c.Metrics.RecordTransfer(fileName, op, written, duration)
	}

	if err != nil {
		// Partial file remains on disk, per spec §7 — not removed.
		return destPath, written, duration, fmt.Errorf("%s: incomplete transfer: %w", op, err)
	}

	return destPath, written, duration, nil
}

// roundTrip sends one framed request and reads exactly one framed
// response, honoring the client's control timeout on the whole
// exchange, per spec §5.
func (c *Client) roundTrip(reqType wire.Type, payload interface{}) (wire.RawEnvelope, error) {
	conn, err := c.dialControl()
	if err != nil {
		return wire.RawEnvelope{}, err
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(c.ControlTimeout)); err != nil {
		return wire.RawEnvelope{}, err
	}

	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)

	var peerID *string
	if c.PeerID != "" {
		peerID = &c.PeerID
	}

	now := time.Now().UnixMilli()
	req := wire.NewEnvelope(reqType, now, peerID, nil, payload)
	if err := wire.WriteFrame(w, req); err != nil {
		return wire.RawEnvelope{}, fmt.Errorf("send request: %w", err)
	}

	re, err := wire.ReadFrame(r)
	if err != nil {
		return wire.RawEnvelope{}, fmt.Errorf("read response: %w", err)
	}
	return re, nil
}

func decodeResult(re wire.RawEnvelope, dst interface{}) error {
	if err := wire.DecodePayload(re, dst); err != nil {
		return fmt.Errorf("decode response payload: %w", err)
	}
	return nil
}
