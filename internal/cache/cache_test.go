package cache

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type geo struct {
	Country string `json:"country"`
	ASN     int    `json:"asn"`
}

func newTestCache(t *testing.T, ttl time.Duration) (*Cache, *time.Time) {
	t.Helper()
	c, err := New(t.TempDir(), ttl, nil)
	require.NoError(t, err)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestSetGet(t *testing.T) {
	c, _ := newTestCache(t, time.Hour)

	require.NoError(t, c.Set(Key("ipgeo", "8.8.8.8"), geo{Country: "US", ASN: 15169}))

	var got geo
	assert.True(t, c.Get(Key("ipgeo", "8.8.8.8"), &got))
	assert.Equal(t, geo{Country: "US", ASN: 15169}, got)

	assert.False(t, c.Get(Key("ipgeo", "1.1.1.1"), &got))
}

func TestGetReadsFromDisk(t *testing.T) {
	c, _ := newTestCache(t, time.Hour)
	require.NoError(t, c.Set("whois:example.com", map[string]string{"registrar": "IANA"}))

	// A second cache over the same directory has an empty memory layer.
	other, err := New(c.dir, time.Hour, nil)
	require.NoError(t, err)
	other.now = c.now

	var got map[string]string
	require.True(t, other.Get("whois:example.com", &got))
	assert.Equal(t, "IANA", got["registrar"])
}

func TestExpiredEntriesMiss(t *testing.T) {
	c, now := newTestCache(t, time.Minute)
	require.NoError(t, c.Set("dns:example.com:A", []string{"93.184.216.34"}))

	*now = now.Add(2 * time.Minute)

	var got []string
	assert.False(t, c.Get("dns:example.com:A", &got))
	_, err := os.Stat(c.filename("dns:example.com:A"))
	assert.True(t, os.IsNotExist(err))
}

func TestGetOrFetch(t *testing.T) {
	c, _ := newTestCache(t, time.Hour)

	calls := 0
	fetch := func() (interface{}, error) {
		calls++
		return geo{Country: "DE"}, nil
	}

	var first, second geo
	require.NoError(t, c.GetOrFetch("ipgeo:5.5.5.5", &first, fetch))
	require.NoError(t, c.GetOrFetch("ipgeo:5.5.5.5", &second, fetch))

	assert.Equal(t, 1, calls)
	assert.Equal(t, "DE", first.Country)
	assert.Equal(t, first, second)
}

func TestGetOrFetchError(t *testing.T) {
	c, _ := newTestCache(t, time.Hour)

	var out geo
	err := c.GetOrFetch("ipgeo:x", &out, func() (interface{}, error) {
		return nil, errors.New("upstream down")
	})
	assert.EqualError(t, err, "upstream down")

	files, _ := filepath.Glob(filepath.Join(c.dir, "*.json"))
	assert.Empty(t, files)
}

func TestNilCacheAlwaysFetches(t *testing.T) {
	var c *Cache
	calls := 0
	var out string
	for i := 0; i < 2; i++ {
		require.NoError(t, c.GetOrFetch("k", &out, func() (interface{}, error) {
			calls++
			return "v", nil
		}))
	}
	assert.Equal(t, 2, calls)
	assert.Equal(t, "v", out)
	assert.NoError(t, c.Delete("k"))
	assert.Zero(t, c.Prune())
}

func TestDeleteAndPrune(t *testing.T) {
	c, now := newTestCache(t, time.Minute)
	require.NoError(t, c.Set("a", 1))
	require.NoError(t, c.Set("b", 2))
	require.NoError(t, c.Delete("a"))
	require.NoError(t, c.Delete("missing"))

	var n int
	assert.False(t, c.Get("a", &n))

	*now = now.Add(time.Hour)
	assert.Equal(t, 1, c.Prune())
	assert.False(t, c.Get("b", &n))
}
