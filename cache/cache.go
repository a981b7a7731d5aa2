// Package cache mirrors a host's per-day captures into a local directory.
// Staleness is decided by a size-only probe: a HEAD request supplies the
// authoritative remote byte length, and a capture is re-downloaded only when
// the local file's size differs. This is a deliberate best-effort contract;
// there is no checksum verification.
package cache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/solarlog/vbusmirror/pkg/model"
	"github.com/solarlog/vbusmirror/remote"
)

// Recorder receives the outcome of each size probe. The sqlite sync index
// implements it; a nil Recorder disables recording.
type Recorder interface {
	RecordCheck(datecode string, remoteSize, localSize int64, downloaded bool, at time.Time) error
}

// Manager materializes captures for one host.
type Manager struct {
	Client remote.Doer
	Host   string
	Dir    string // local directory holding <datecode>.vbus files
	Logger *slog.Logger
	Clock  clockwork.Clock
	Index  Recorder
}

// EnsureDir creates the cache directory. Idempotent; called once before the
// first sync.
func (m *Manager) EnsureDir() error {
	if err := os.MkdirAll(m.Dir, 0o755); err != nil {
		return &model.FilesystemError{Op: "mkdir", Path: m.Dir, Err: err}
	}
	return nil
}

// CapturePath returns the local path of a capture.
func (m *Manager) CapturePath(dc model.DateCode) string {
	return filepath.Join(m.Dir, dc.String()+".vbus")
}

// Sync brings one capture up to date. It probes the remote size with a HEAD
// request and, only on a size mismatch, downloads the full capture and
// replaces the local file wholesale. It reports whether a download happened.
func (m *Manager) Sync(ctx context.Context, dc model.DateCode) (bool, error) {
	datecode := dc.String()
	m.Logger.Debug("probing capture", "host", m.Host, "datecode", datecode)

	remoteSize, err := m.probe(ctx, datecode)
	if err != nil {
		return false, err
	}

	path := m.CapturePath(dc)
	localSize := int64(0)
	if fi, err := os.Stat(path); err == nil {
		localSize = fi.Size()
	} else if !os.IsNotExist(err) {
		return false, &model.FilesystemError{Op: "stat", Path: path, Err: err}
	}

	if localSize == remoteSize {
		m.Logger.Debug("capture up to date", "host", m.Host, "datecode", datecode, "size", localSize)
		return false, m.record(datecode, remoteSize, localSize, false)
	}

	m.Logger.Info("downloading capture",
		"host", m.Host, "datecode", datecode, "local_size", localSize, "remote_size", remoteSize)

	body, err := m.fetch(ctx, datecode)
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return false, &model.FilesystemError{Op: "write", Path: path, Err: err}
	}

	return true, m.record(datecode, remoteSize, int64(len(body)), true)
}

// probe issues the HEAD request and parses the content-length header.
func (m *Manager) probe(ctx context.Context, datecode string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, remote.CaptureURL(m.Host, datecode), nil)
	if err != nil {
		return 0, &model.TransportError{Host: m.Host, Op: "head", Err: err}
	}
	res, err := m.Client.Do(req)
	if err != nil {
		return 0, &model.TransportError{Host: m.Host, Op: "head", Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return 0, &model.TransportError{
			Host: m.Host, Op: "head",
			Err: fmt.Errorf("capture %s: status %s", datecode, res.Status),
		}
	}

	header := res.Header.Get("Content-Length")
	if header == "" {
		return 0, &model.ProtocolError{
			Host: m.Host, DateCode: datecode,
			Err: fmt.Errorf("missing content-length header"),
		}
	}
	size, err := strconv.ParseInt(header, 10, 64)
	if err != nil || size < 0 {
		return 0, &model.ProtocolError{
			Host: m.Host, DateCode: datecode,
			Err: fmt.Errorf("unparseable content-length %q", header),
		}
	}
	return size, nil
}

// fetch downloads the full capture body.
func (m *Manager) fetch(ctx context.Context, datecode string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remote.CaptureURL(m.Host, datecode), nil)
	if err != nil {
		return nil, &model.TransportError{Host: m.Host, Op: "get", Err: err}
	}
	res, err := m.Client.Do(req)
	if err != nil {
		return nil, &model.TransportError{Host: m.Host, Op: "get", Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &model.TransportError{
			Host: m.Host, Op: "get",
			Err: fmt.Errorf("capture %s: status %s", datecode, res.Status),
		}
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &model.TransportError{Host: m.Host, Op: "get", Err: err}
	}
	return body, nil
}

func (m *Manager) record(datecode string, remoteSize, localSize int64, downloaded bool) error {
	if m.Index == nil {
		return nil
	}
	return m.Index.RecordCheck(datecode, remoteSize, localSize, downloaded, m.Clock.Now())
}
