package app

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarlog/vbusmirror/pkg/store/sqlite"
	"github.com/solarlog/vbusmirror/resolve"
	"github.com/solarlog/vbusmirror/vbus"
)

// fakeLogger emulates one datalogger's embedded HTTP server and counts
// requests per method.
type fakeLogger struct {
	captures map[string][]byte // datecode -> capture bytes

	listGets    int
	captureHead int
	captureGets int
}

func (f *fakeLogger) Do(req *http.Request) (*http.Response, error) {
	res := &http.Response{
		StatusCode: 200,
		Status:     "200 OK",
		Header:     make(http.Header),
		Body:       io.NopCloser(bytes.NewReader(nil)),
	}

	path := req.URL.Path
	if path == "/log/" {
		f.listGets++
		var b strings.Builder
		b.WriteString("<html><body>")
		for dc := range f.captures {
			b.WriteString(`<a href="` + dc + `_packets.vbus">` + dc + `</a>`)
		}
		b.WriteString("</body></html>")
		res.Body = io.NopCloser(strings.NewReader(b.String()))
		return res, nil
	}

	dc := strings.TrimSuffix(strings.TrimPrefix(path, "/log/"), "_packets.vbus")
	body, ok := f.captures[dc]
	if !ok {
		res.StatusCode = 404
		res.Status = "404 Not Found"
		return res, nil
	}

	switch req.Method {
	case http.MethodHead:
		f.captureHead++
		res.Header.Set("Content-Length", strconv.Itoa(len(body)))
	case http.MethodGet:
		f.captureGets++
		res.Body = io.NopCloser(bytes.NewReader(body))
	}
	return res, nil
}

// captureFor builds one UTC day of records for the embedded Regler packet.
func captureFor(t *testing.T, day time.Time, tenths ...int16) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := vbus.NewWriter(&buf)
	for i, v := range tenths {
		payload := make([]byte, 14)
		payload[0] = byte(uint16(v))
		payload[1] = byte(uint16(v) >> 8)
		for j := 2; j < 8; j++ {
			payload[j] = 0xFF // sensors 2..4 absent
		}
		require.NoError(t, w.WriteRecord(&vbus.DataRecord{
			Timestamp: day.Add(time.Duration(i) * time.Minute),
			ID:        vbus.PacketID{Destination: 0x0010, Source: 0x7E11, Command: 0x0100},
			Data:      payload,
		}))
	}
	return buf.Bytes()
}

func testConfig(t *testing.T, srv *fakeLogger) (*Config, clockwork.Clock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2021, 6, 2, 8, 0, 0, 0, time.UTC))
	return &Config{
		Hosts:    []string{"logger.local"},
		Dir:      t.TempDir(),
		Timezone: "UTC",
		Strategy: resolve.StrategyBoundedDay,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:    clock,
		Client:   srv,
	}, clock
}

func TestRunSyncEndToEnd(t *testing.T) {
	day := time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC)
	srv := &fakeLogger{captures: map[string][]byte{
		"20210601": captureFor(t, day, 266, 270),
	}}
	cfg, _ := testConfig(t, srv)
	hostDir := filepath.Join(cfg.Dir, "logger.local")

	require.NoError(t, RunSync(context.Background(), cfg))

	t.Run("capture mirrored", func(t *testing.T) {
		got, err := os.ReadFile(filepath.Join(hostDir, "20210601.vbus"))
		require.NoError(t, err)
		assert.Equal(t, srv.captures["20210601"], got)
	})

	t.Run("output converted", func(t *testing.T) {
		out, err := os.ReadFile(filepath.Join(hostDir, "20210601.csv"))
		require.NoError(t, err)
		lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
		require.Len(t, lines, 3)
		assert.True(t, strings.HasPrefix(lines[0], "Datum\tTemperatur Sensor 1 [°C]"))
		assert.True(t, strings.HasPrefix(lines[1], "01.06.2021 12:00:00\t26.6"))
		assert.True(t, strings.HasPrefix(lines[2], "01.06.2021 12:01:00\t27.0"))
	})

	t.Run("index recorded", func(t *testing.T) {
		idx, err := sqlite.Open(filepath.Join(hostDir, sqlite.IndexFilename))
		require.NoError(t, err)
		defer idx.Close()

		lastSync, err := idx.GetMeta("last_sync_at")
		require.NoError(t, err)
		assert.NotEmpty(t, lastSync)

		captures, err := idx.Captures()
		require.NoError(t, err)
		require.Len(t, captures, 1)
		assert.Equal(t, 1, captures[0].Downloads)

		buckets, err := idx.Buckets()
		require.NoError(t, err)
		require.Len(t, buckets, 1)
		assert.Equal(t, "20210601", buckets[0].DateCode)
		assert.Equal(t, 2, buckets[0].RowCount)
		assert.True(t, buckets[0].Written)
	})

	t.Run("second run is a no-op", func(t *testing.T) {
		gets := srv.captureGets
		require.NoError(t, RunSync(context.Background(), cfg))
		assert.Equal(t, gets, srv.captureGets, "unchanged capture must not be re-fetched")
	})
}

func TestRunSyncRedownloadOnGrowth(t *testing.T) {
	day := time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC)
	srv := &fakeLogger{captures: map[string][]byte{
		"20210601": captureFor(t, day, 266),
	}}
	cfg, _ := testConfig(t, srv)
	hostDir := filepath.Join(cfg.Dir, "logger.local")

	require.NoError(t, RunSync(context.Background(), cfg))
	assert.Equal(t, 1, srv.captureGets)

	// The logger appended more records during the day.
	srv.captures["20210601"] = captureFor(t, day, 266, 270, 281)

	require.NoError(t, RunSync(context.Background(), cfg))
	assert.Equal(t, 2, srv.captureGets)

	out, err := os.ReadFile(filepath.Join(hostDir, "20210601.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "28.1")
}

func TestRunConvertOffline(t *testing.T) {
	day := time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC)
	srv := &fakeLogger{captures: map[string][]byte{
		"20210601": captureFor(t, day, 266),
	}}
	cfg, _ := testConfig(t, srv)
	hostDir := filepath.Join(cfg.Dir, "logger.local")

	require.NoError(t, RunSync(context.Background(), cfg))
	outPath := filepath.Join(hostDir, "20210601.csv")
	require.NoError(t, os.Remove(outPath))

	lists, heads := srv.listGets, srv.captureHead
	require.NoError(t, RunConvert(context.Background(), cfg))

	_, err := os.Stat(outPath)
	assert.NoError(t, err, "convert must regenerate the missing output")
	assert.Equal(t, lists, srv.listGets, "convert must not touch the network")
	assert.Equal(t, heads, srv.captureHead)
}

func TestRunSyncRollingWindow(t *testing.T) {
	day := time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC)
	srv := &fakeLogger{captures: map[string][]byte{
		"20210601": captureFor(t, day, 266),
	}}
	cfg, _ := testConfig(t, srv)
	cfg.Strategy = resolve.StrategyRollingWindow

	require.NoError(t, RunSync(context.Background(), cfg))

	out, err := os.ReadFile(filepath.Join(cfg.Dir, "logger.local", "20210601.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "2021-06-01T12:00:00Z\t26.6")
}
