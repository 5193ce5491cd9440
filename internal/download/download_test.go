package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/alecthomas/assert/v2"
	"go.uber.org/zap"
)

func TestTileName(t *testing.T) {
	for _, tc := range []struct {
		tile     Tile
		expected string
	}{
		{tile: Tile{Lat: 35, Lon: -107}, expected: "USGS_13_n35w107"},
		{tile: Tile{Lat: 5, Lon: 8}, expected: "USGS_13_n05e008"},
		{tile: Tile{Lat: -1, Lon: -80}, expected: "USGS_13_s01w080"},
	} {
		assert.Equal(t, tc.expected, tc.tile.Name())
	}
}

func TestParseBounds(t *testing.T) {
	bounds, err := ParseBounds("31.33, -109.05, 37, -103")
	assert.NoError(t, err)
	assert.Equal(t, Bounds{MinLat: 31.33, MinLon: -109.05, MaxLat: 37, MaxLon: -103}, bounds)

	for _, s := range []string{
		"",
		"1,2,3",
		"a,b,c,d",
		"37,-109,31,-103",
	} {
		_, err := ParseBounds(s)
		assert.Error(t, err, "%q", s)
	}
}

func TestBoundsTiles(t *testing.T) {
	assert.Equal(t, []Tile{
		{Lat: 34, Lon: -107},
		{Lat: 34, Lon: -106},
		{Lat: 35, Lon: -107},
		{Lat: 35, Lon: -106},
	}, Bounds{MinLat: 34.5, MinLon: -106.5, MaxLat: 35.5, MaxLon: -105.5}.Tiles())

	assert.Equal(t, 7*8, len(Bounds{MinLat: 31.33, MinLon: -109.05, MaxLat: 37, MaxLon: -103}.Tiles()))
}

func TestParseURLs(t *testing.T) {
	csv := strings.Join([]string{
		"title,downloadURL,size",
		"n36w107,https://example.com/a/USGS_13_n36w107_20220801.tif,1000",
		"n36w107 again,https://example.com/a/USGS_13_n36w107_20220801.tif,1000",
		"metadata,https://example.com/a/USGS_13_n36w107.xml,10",
		"n35w107,http://example.com/b/USGS_13_n35w107.tif",
	}, "\n")
	urls, err := ParseURLs(strings.NewReader(csv))
	assert.NoError(t, err)
	assert.Equal(t, []string{
		"https://example.com/a/USGS_13_n36w107_20220801.tif",
		"http://example.com/b/USGS_13_n35w107.tif",
	}, urls)
}

type testServer struct {
	*httptest.Server
	mutex    sync.Mutex
	requests []string
}

// newTestServer returns a server that serves files and responds 404 to
// everything else.
func newTestServer(t *testing.T, files map[string]string) *testServer {
	t.Helper()
	s := &testServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mutex.Lock()
		s.requests = append(s.requests, r.URL.Path)
		s.mutex.Unlock()
		switch body, ok := files[r.URL.Path]; {
		case !ok:
			http.NotFound(w, r)
		case body == "error":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			_, _ = w.Write([]byte(body))
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *testServer) Requests() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]string(nil), s.requests...)
}

func TestDownloaderTiles(t *testing.T) {
	server := newTestServer(t, map[string]string{
		"/13/USGS_13_n35w107_20220101.tif": "n35w107",
		"/13/USGS_13_n35w106_20240101.tif": "n35w106",
		"/13/USGS_13_n34w106_20240101.tif": "error",
	})
	dir := t.TempDir()
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "USGS_13_n34w107_20200101.tif"), []byte("present"), 0o644))

	downloader := New(dir,
		WithBaseURL(server.URL+"/13/"),
		WithDates([]string{"20240101", "20220101"}),
		WithMaxParallel(2),
		WithRate(0),
		WithLogger(zap.NewNop()),
	)
	result, err := downloader.Tiles(t.Context(), Bounds{MinLat: 34, MinLon: -107, MaxLat: 35, MaxLon: -106}.Tiles())
	assert.NoError(t, err)
	assert.Equal(t, []string{
		"USGS_13_n35w106_20240101.tif",
		"USGS_13_n35w107_20220101.tif",
	}, result.Downloaded)
	assert.Equal(t, []string{"USGS_13_n34w107_20200101.tif"}, result.Existing)
	assert.Equal(t, 1, len(result.Failed))
	assert.Equal(t, "USGS_13_n34w106", result.Failed[0].Name)

	data, err := os.ReadFile(filepath.Join(dir, "USGS_13_n35w107_20220101.tif"))
	assert.NoError(t, err)
	assert.Equal(t, "n35w107", string(data))

	entries, err := os.ReadDir(dir)
	assert.NoError(t, err)
	assert.Equal(t, 3, len(entries))

	// A second run fetches only the failed tile again.
	requests := len(server.Requests())
	result, err = downloader.Tiles(t.Context(), Bounds{MinLat: 34, MinLon: -107, MaxLat: 35, MaxLon: -106}.Tiles())
	assert.NoError(t, err)
	assert.Equal(t, 0, len(result.Downloaded))
	assert.Equal(t, 3, len(result.Existing))
	assert.Equal(t, 1, len(result.Failed))
	assert.Equal(t, []string{"/13/USGS_13_n34w106_20240101.tif"}, server.Requests()[requests:])
}

func TestDownloaderTiles_NotFound(t *testing.T) {
	server := newTestServer(t, nil)
	downloader := New(t.TempDir(),
		WithBaseURL(server.URL+"/"),
		WithDates([]string{"20240101", "20220101"}),
		WithLogger(zap.NewNop()),
	)
	result, err := downloader.Tiles(t.Context(), []Tile{{Lat: 35, Lon: -107}})
	assert.NoError(t, err)
	assert.Equal(t, 1, len(result.Failed))
	assert.IsError(t, result.Failed[0].Err, ErrNotFound)
	assert.Equal(t, []string{
		"/USGS_13_n35w107_20240101.tif",
		"/USGS_13_n35w107_20220101.tif",
	}, server.Requests())
}

func TestDownloaderURLs(t *testing.T) {
	server := newTestServer(t, map[string]string{
		"/a/one.tif":   "one",
		"/a/empty.tif": "",
	})
	dir := t.TempDir()
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "two.tif"), []byte("two"), 0o644))

	downloader := New(dir, WithLogger(zap.NewNop()))
	result, err := downloader.URLs(t.Context(), []string{
		server.URL + "/a/one.tif",
		server.URL + "/a/two.tif",
		server.URL + "/a/empty.tif",
		server.URL + "/a/missing.tif",
	})
	assert.NoError(t, err)
	assert.Equal(t, []string{"one.tif"}, result.Downloaded)
	assert.Equal(t, []string{"two.tif"}, result.Existing)
	assert.Equal(t, 2, len(result.Failed))
	assert.Equal(t, "empty.tif", result.Failed[0].Name)
	assert.Equal(t, "missing.tif", result.Failed[1].Name)

	_, err = os.Stat(filepath.Join(dir, "empty.tif"))
	assert.True(t, os.IsNotExist(err))
	matches, err := filepath.Glob(filepath.Join(dir, "*.part"))
	assert.NoError(t, err)
	assert.Equal(t, 0, len(matches))
}

func TestDownloaderCanceled(t *testing.T) {
	server := newTestServer(t, map[string]string{
		"/USGS_13_n35w107.tif": "n35w107",
	})
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err := New(t.TempDir(), WithBaseURL(server.URL+"/"), WithLogger(zap.NewNop())).Tiles(ctx, []Tile{{Lat: 35, Lon: -107}})
	assert.IsError(t, err, context.Canceled)
}
