// Package download fetches USGS 1/3 arc-second DEM tiles into a directory.
// Tiles that are already present are not fetched again.
package download

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	dem "github.com/wgmilleriii/go-dem"
)

// ErrNotFound is returned when the server has no file for a tile.
var ErrNotFound = eris.New("not found")

var tifURLRegexp = regexp.MustCompile(`https?:[^,\s]+\.tif`)

// A Tile is a one degree USGS tile, named by the floor of its latitude and
// longitude.
type Tile struct {
	Lat int
	Lon int
}

// Name returns t's file name prefix, e.g. USGS_13_n35w107.
func (t Tile) Name() string {
	ns, ew := 'n', 'e'
	if t.Lat < 0 {
		ns = 's'
	}
	if t.Lon < 0 {
		ew = 'w'
	}
	return fmt.Sprintf("USGS_13_%c%02d%c%03d", ns, abs(t.Lat), ew, abs(t.Lon))
}

func abs(i int) int {
	if i < 0 {
		return -i
	}
	return i
}

// A Bounds is a latitude and longitude bounding box.
type Bounds struct {
	MinLat float64
	MinLon float64
	MaxLat float64
	MaxLon float64
}

// ParseBounds parses "minLat,minLon,maxLat,maxLon".
func ParseBounds(s string) (Bounds, error) {
	fields := strings.Split(s, ",")
	if len(fields) != 4 {
		return Bounds{}, eris.Errorf("download: bounds %q: expected minLat,minLon,maxLat,maxLon", s)
	}
	var values [4]float64
	for i, field := range fields {
		value, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return Bounds{}, eris.Wrapf(err, "download: bounds %q", s)
		}
		values[i] = value
	}
	b := Bounds{MinLat: values[0], MinLon: values[1], MaxLat: values[2], MaxLon: values[3]}
	if b.MinLat > b.MaxLat || b.MinLon > b.MaxLon {
		return Bounds{}, eris.Errorf("download: bounds %q: minimum exceeds maximum", s)
	}
	return b, nil
}

// Tiles returns the tiles that intersect b, south to north and west to east.
func (b Bounds) Tiles() []Tile {
	var tiles []Tile
	for lat := int(math.Floor(b.MinLat)); lat <= int(math.Floor(b.MaxLat)); lat++ {
		for lon := int(math.Floor(b.MinLon)); lon <= int(math.Floor(b.MaxLon)); lon++ {
			tiles = append(tiles, Tile{Lat: lat, Lon: lon})
		}
	}
	return tiles
}

// ParseURLs returns the distinct GeoTIFF URLs found in r, one per line at
// most, in order of appearance. r is typically a CSV export of a product
// search.
func ParseURLs(r io.Reader) ([]string, error) {
	var urls []string
	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, 1<<20)
	for scanner.Scan() {
		u := tifURLRegexp.FindString(scanner.Text())
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}
	return urls, eris.Wrap(scanner.Err(), "download: read urls")
}

// A Failure is a file that could not be fetched.
type Failure struct {
	Name string
	Err  error
}

// A Result is the outcome of a download job.
type Result struct {
	Downloaded []string
	Existing   []string
	Failed     []Failure
}

// A Downloader fetches files into a directory.
type Downloader struct {
	dir         string
	baseURL     string
	dates       []string
	client      *http.Client
	limiter     *rate.Limiter
	maxParallel int
	logger      *zap.Logger
}

// An Option sets an option on a Downloader.
type Option func(*Downloader)

// WithBaseURL sets the URL that tile file names are appended to.
func WithBaseURL(baseURL string) Option {
	return func(d *Downloader) {
		d.baseURL = baseURL
	}
}

// WithDates sets the publication dates to try for each tile, in order. With
// no dates, tiles are fetched without a date suffix.
func WithDates(dates []string) Option {
	return func(d *Downloader) {
		d.dates = dates
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Downloader) {
		d.client = client
	}
}

// WithMaxParallel sets the maximum number of concurrent fetches.
func WithMaxParallel(maxParallel int) Option {
	return func(d *Downloader) {
		d.maxParallel = max(maxParallel, 1)
	}
}

// WithRate limits requests to r per second. A rate of zero or less is
// unlimited.
func WithRate(r float64) Option {
	return func(d *Downloader) {
		if r <= 0 {
			d.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		d.limiter = rate.NewLimiter(rate.Limit(r), 1)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Downloader) {
		d.logger = logger
	}
}

// New returns a new Downloader that writes into dir.
func New(dir string, options ...Option) *Downloader {
	d := &Downloader{
		dir:         dir,
		client:      &http.Client{Timeout: 10 * time.Minute},
		limiter:     rate.NewLimiter(rate.Inf, 1),
		maxParallel: 4,
		logger:      zap.L(),
	}
	for _, option := range options {
		option(d)
	}
	return d
}

// Tiles fetches every tile in tiles that has no raster in d's directory yet.
func (d *Downloader) Tiles(ctx context.Context, tiles []Tile) (*Result, error) {
	present, err := d.presentRasters()
	if err != nil {
		return nil, err
	}
	return d.run(ctx, len(tiles), func(ctx context.Context, g *errgroup.Group, c *collector, i int) {
		tile := tiles[i]
		if name, ok := findTile(present, tile); ok {
			c.existing(name)
			return
		}
		g.Go(func() error {
			name, err := d.fetchTile(ctx, tile)
			c.finish(tile.Name(), name, err)
			return nil
		})
	})
}

// URLs fetches every URL in urls whose file is not in d's directory yet.
func (d *Downloader) URLs(ctx context.Context, urls []string) (*Result, error) {
	return d.run(ctx, len(urls), func(ctx context.Context, g *errgroup.Group, c *collector, i int) {
		rawURL := urls[i]
		name, err := fileName(rawURL)
		if err != nil {
			c.finish(rawURL, "", err)
			return
		}
		if info, err := os.Stat(filepath.Join(d.dir, name)); err == nil && info.Size() > 0 {
			c.existing(name)
			return
		}
		g.Go(func() error {
			err := d.fetch(ctx, rawURL, name)
			c.finish(name, name, err)
			return nil
		})
	})
}

// run calls start for each of n jobs with a group that limits concurrency
// and a collector for the result. Individual failures do not stop the job.
func (d *Downloader) run(ctx context.Context, n int, start func(context.Context, *errgroup.Group, *collector, int)) (*Result, error) {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "download: create %s", d.dir)
	}

	c := &collector{
		logger: d.logger,
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.maxParallel)
	for i := range n {
		if gctx.Err() != nil {
			break
		}
		start(gctx, g, c, i)
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &c.result
	slices.Sort(result.Downloaded)
	slices.Sort(result.Existing)
	slices.SortFunc(result.Failed, func(a, b Failure) int {
		return strings.Compare(a.Name, b.Name)
	})
	d.logger.Info("download complete",
		zap.Int("downloaded", len(result.Downloaded)),
		zap.Int("existing", len(result.Existing)),
		zap.Int("failed", len(result.Failed)),
	)
	return result, nil
}

// A collector accumulates a Result from concurrent fetches.
type collector struct {
	mutex  sync.Mutex
	logger *zap.Logger
	result Result
}

func (c *collector) existing(name string) {
	c.logger.Debug("already present", zap.String("file", name))
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.result.Existing = append(c.result.Existing, name)
}

// finish records the outcome of fetching job into name.
func (c *collector) finish(job, name string, err error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if err != nil {
		c.logger.Warn("download failed", zap.String("job", job), zap.Error(err))
		c.result.Failed = append(c.result.Failed, Failure{Name: job, Err: err})
		return
	}
	c.logger.Info("downloaded", zap.String("file", name))
	c.result.Downloaded = append(c.result.Downloaded, name)
}

// presentRasters returns the names of the rasters in d's directory.
func (d *Downloader) presentRasters() ([]string, error) {
	names, err := dem.ListRasters(os.DirFS(d.dir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return names, err
}

// findTile returns the first of names that holds tile.
func findTile(names []string, tile Tile) (string, bool) {
	prefix := tile.Name()
	for _, name := range names {
		base := strings.TrimSuffix(name, filepath.Ext(name))
		if base == prefix || strings.HasPrefix(base, prefix+"_") {
			return name, true
		}
	}
	return "", false
}

// fetchTile fetches the first available dated file for tile and returns its
// name.
func (d *Downloader) fetchTile(ctx context.Context, tile Tile) (string, error) {
	if len(d.dates) == 0 {
		name := tile.Name() + ".tif"
		return name, d.fetch(ctx, d.baseURL+name, name)
	}
	for _, date := range d.dates {
		name := tile.Name() + "_" + date + ".tif"
		switch err := d.fetch(ctx, d.baseURL+name, name); {
		case errors.Is(err, ErrNotFound):
			d.logger.Debug("no file for date", zap.String("file", name))
		case err != nil:
			return "", err
		default:
			return name, nil
		}
	}
	return "", eris.Wrapf(ErrNotFound, "download: %s: no file for any date", tile.Name())
}

// fetch writes the body of rawURL to name in d's directory. The file only
// appears once it is complete.
func (d *Downloader) fetch(ctx context.Context, rawURL, name string) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return eris.Wrap(err, "download: build request")
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return eris.Wrapf(err, "download: %s", rawURL)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusForbidden:
		// S3 returns 403 for missing keys in public buckets.
		return eris.Wrapf(ErrNotFound, "download: %s", rawURL)
	default:
		return eris.Errorf("download: %s: status %d", rawURL, resp.StatusCode)
	}

	file, err := os.CreateTemp(d.dir, name+".*.part")
	if err != nil {
		return eris.Wrap(err, "download: create temporary file")
	}
	ok := false
	defer func() {
		if !ok {
			_ = file.Close()
			_ = os.Remove(file.Name())
		}
	}()

	n, err := io.Copy(file, resp.Body)
	if err != nil {
		return eris.Wrapf(err, "download: %s", rawURL)
	}
	if n == 0 {
		return eris.Errorf("download: %s: empty file", rawURL)
	}
	if err := file.Close(); err != nil {
		return eris.Wrapf(err, "download: close %s", file.Name())
	}
	if err := os.Rename(file.Name(), filepath.Join(d.dir, name)); err != nil {
		return eris.Wrapf(err, "download: rename %s", name)
	}
	ok = true
	return nil
}

// fileName returns the last path element of rawURL.
func fileName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", eris.Wrapf(err, "download: parse %q", rawURL)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return "", eris.Errorf("download: %q has no file name", rawURL)
	}
	return name, nil
}
