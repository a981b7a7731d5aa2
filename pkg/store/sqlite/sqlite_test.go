package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarlog/vbusmirror/pkg/model"
)

func openIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Open(filepath.Join(t.TempDir(), "logger.local", IndexFilename))
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestMeta(t *testing.T) {
	idx := openIndex(t)

	v, err := idx.GetMeta("last_sync_at")
	require.NoError(t, err)
	assert.Equal(t, "", v)

	require.NoError(t, idx.SetMeta("last_sync_at", "2021-06-02T08:00:00Z"))
	require.NoError(t, idx.SetMeta("last_sync_at", "2021-06-02T09:00:00Z"))

	v, err = idx.GetMeta("last_sync_at")
	require.NoError(t, err)
	assert.Equal(t, "2021-06-02T09:00:00Z", v)

	v, err = idx.GetMeta("schema_version")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
}

func TestRecordCheck(t *testing.T) {
	idx := openIndex(t)
	t0 := time.Date(2021, 6, 2, 8, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)
	t2 := t0.Add(2 * time.Hour)

	require.NoError(t, idx.RecordCheck("20210601", 100, 100, true, t0))
	require.NoError(t, idx.RecordCheck("20210601", 100, 100, false, t1))

	captures, err := idx.Captures()
	require.NoError(t, err)
	require.Len(t, captures, 1)

	c := captures[0]
	assert.Equal(t, "20210601", c.DateCode)
	assert.Equal(t, int64(100), c.RemoteSize)
	assert.Equal(t, 1, c.Downloads)
	// The no-op probe refreshed the check stamp but not the modification stamp.
	assert.Equal(t, t0, c.ModifiedAt)
	assert.Equal(t, t1, c.CheckedAt)

	// A later download bumps both.
	require.NoError(t, idx.RecordCheck("20210601", 140, 140, true, t2))
	captures, err = idx.Captures()
	require.NoError(t, err)
	require.Len(t, captures, 1)
	assert.Equal(t, 2, captures[0].Downloads)
	assert.Equal(t, t2, captures[0].ModifiedAt)
	assert.Equal(t, int64(140), captures[0].RemoteSize)
}

func TestCapturesOrdering(t *testing.T) {
	idx := openIndex(t)
	now := time.Date(2021, 6, 2, 8, 0, 0, 0, time.UTC)

	require.NoError(t, idx.RecordCheck("20210602", 10, 10, false, now))
	require.NoError(t, idx.RecordCheck("20210531", 10, 10, false, now))
	require.NoError(t, idx.RecordCheck("20210601", 10, 10, false, now))

	captures, err := idx.Captures()
	require.NoError(t, err)
	require.Len(t, captures, 3)
	assert.Equal(t, "20210531", captures[0].DateCode)
	assert.Equal(t, "20210601", captures[1].DateCode)
	assert.Equal(t, "20210602", captures[2].DateCode)
}

func TestRecordBucket(t *testing.T) {
	idx := openIndex(t)
	now := time.Date(2021, 6, 2, 8, 0, 0, 0, time.UTC)

	require.NoError(t, idx.RecordBucket(model.BucketState{
		DateCode:    "20210601",
		Strategy:    "bounded-day",
		Sources:     []string{"20210531", "20210601"},
		RowCount:    1440,
		Written:     true,
		ConvertedAt: now,
	}))
	// Re-conversion replaces the row.
	require.NoError(t, idx.RecordBucket(model.BucketState{
		DateCode:    "20210601",
		Strategy:    "bounded-day",
		Sources:     []string{"20210531", "20210601"},
		RowCount:    1500,
		Written:     true,
		ConvertedAt: now.Add(time.Hour),
	}))

	buckets, err := idx.Buckets()
	require.NoError(t, err)
	require.Len(t, buckets, 1)

	b := buckets[0]
	assert.Equal(t, "20210601", b.DateCode)
	assert.Equal(t, "bounded-day", b.Strategy)
	assert.Equal(t, []string{"20210531", "20210601"}, b.Sources)
	assert.Equal(t, 1500, b.RowCount)
	assert.True(t, b.Written)
	assert.Equal(t, now.Add(time.Hour), b.ConvertedAt)
}

func TestOpenReusesExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logger.local", IndexFilename)

	idx, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, idx.SetMeta("probe", "1"))
	require.NoError(t, idx.Close())

	idx, err = Open(path)
	require.NoError(t, err)
	defer idx.Close()

	v, err := idx.GetMeta("probe")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
	assert.Equal(t, path, idx.Path())
}
