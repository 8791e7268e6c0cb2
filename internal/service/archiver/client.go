package archiver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"time"

	"ArchPull/internal/domain/models"
	drepo "ArchPull/internal/domain/repository"
	"ArchPull/internal/service/cache"
	xhttp "ArchPull/pkg/http"
	"ArchPull/pkg/logger"
	"ArchPull/pkg/util"
)

// utcOffsetSec shifts archived timestamps from the appliance's UTC epoch to
// the site wall clock (Pacific, 7 hours behind UTC). Request times are
// shifted into the UTC frame before formatting; response times get the
// inverse shift back.
const utcOffsetSec = 7 * 3600

var baseURLs = map[models.Server]string{
	models.ServerLCLS: "http://lcls-archapp.slac.stanford.edu/retrieval/data/getData.json?pv=",
	models.ServerSSRL: "http://spear-arch1.slac.stanford.edu/retrieval/data/getData.json?pv=",
}

// BaseURL returns the retrieval endpoint for a server.
func BaseURL(server models.Server) (string, error) {
	u, ok := baseURLs[server]
	if !ok {
		return "", fmt.Errorf("%w: unknown archiver server %q", models.ErrConfig, server)
	}
	return u, nil
}

// Option configures Client.
type Option func(*Client)

// Client fetches archived PV samples over HTTP. It implements
// repository.SampleSource.
type Client struct {
	http     *xhttp.Client
	cache    cache.BytesCache
	cacheTTL time.Duration
	log      *logger.Logger
	baseURL  string // overrides the server lookup when set
}

// New creates an archiver client.
func New(opts ...Option) *Client {
	c := &Client{
		http: xhttp.NewClient(),
		log:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.http = xhttp.NewClient(xhttp.WithTimeout(timeout))
	}
}

// WithCache enables response caching keyed by server/pv/window.
func WithCache(bc cache.BytesCache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = bc
		c.cacheTTL = ttl
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// WithBaseURL bypasses the server-to-endpoint lookup; used against local
// test appliances.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

// requestTime maps a wall-clock instant into the appliance's UTC query
// frame, the inverse of the shift applied to response timestamps.
func requestTime(t time.Time) string {
	return util.FormatArchiverTime(t.Add(-utcOffsetSec * time.Second))
}

// record is one archived point on the wire: split epoch plus value.
type record struct {
	Secs  int64   `json:"secs"`
	Nanos int64   `json:"nanos"`
	Val   float64 `json:"val"`
}

// chunk is one element of the response array; only the data list matters.
type chunk struct {
	Data []record `json:"data"`
}

var _ drepo.SampleSource = (*Client)(nil)

// Fetch retrieves one PV's samples over the window and extends coverage to
// both window edges. Any failure is a per-PV error the caller treats as
// non-fatal to the batch.
func (c *Client) Fetch(ctx context.Context, server models.Server, pv string, win models.TimeWindow) ([]models.Sample, error) {
	if err := win.Validate(); err != nil {
		return nil, err
	}
	base := c.baseURL
	if base == "" {
		var err error
		base, err = BaseURL(server)
		if err != nil {
			return nil, err
		}
	}

	reqURL := fmt.Sprintf("%s%s&from=%s&to=%s",
		base,
		url.QueryEscape(pv),
		requestTime(win.Start),
		requestTime(win.End),
	)

	body, err := c.fetchBody(ctx, server, pv, win, reqURL)
	if err != nil {
		return nil, &models.FetchError{PV: pv, Err: err}
	}

	var chunks []chunk
	if err := json.Unmarshal(body, &chunks); err != nil {
		return nil, &models.FetchError{PV: pv, Err: fmt.Errorf("decode json: %w", err)}
	}
	if len(chunks) == 0 || len(chunks[0].Data) == 0 {
		return nil, &models.FetchError{PV: pv, Err: fmt.Errorf("no samples in window")}
	}

	samples := make([]models.Sample, 0, len(chunks[0].Data)+2)
	for _, rec := range chunks[0].Data {
		samples = append(samples, models.Sample{
			Time: float64(rec.Secs) + float64(rec.Nanos)/1e9 + utcOffsetSec,
			Val:  rec.Val,
		})
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].Time < samples[j].Time })

	return clipToWindow(extendBoundaries(samples, win.StartSec(), win.EndSec()), win.StartSec(), win.EndSec()), nil
}

// fetchBody returns the raw response, served from cache when possible.
func (c *Client) fetchBody(ctx context.Context, server models.Server, pv string, win models.TimeWindow, reqURL string) ([]byte, error) {
	key := fmt.Sprintf("%s|%s|%s|%s",
		server, pv, util.FormatArchiverTime(win.Start), util.FormatArchiverTime(win.End))

	if c.cache != nil {
		if b, ok, err := c.cache.GetBytes(key); err == nil && ok {
			c.log.Debug("archiver cache hit", logger.String("pv", pv))
			return b, nil
		}
	}

	body, err := c.http.GetBytes(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.SetBytes(key, body, c.cacheTTL); err != nil {
			c.log.Warn("archiver cache store failed", logger.String("pv", pv), logger.Error(err))
		}
	}
	return body, nil
}

// extendBoundaries synthesizes samples at the exact window edges so every
// successfully fetched PV spans the full window for later interpolation.
// Input must be sorted by time.
func extendBoundaries(samples []models.Sample, start, end float64) []models.Sample {
	// value at start: last sample at or before start, else the earliest
	startIdx := sort.Search(len(samples), func(i int) bool { return samples[i].Time >= start })
	startVal := samples[0].Val
	if startIdx > 0 {
		startVal = samples[startIdx-1].Val
	}

	// value at end: first sample at or after end, else the latest
	endIdx := sort.Search(len(samples), func(i int) bool { return samples[i].Time >= end })
	endVal := samples[len(samples)-1].Val
	if endIdx < len(samples) {
		endVal = samples[endIdx].Val
	}

	out := make([]models.Sample, 0, len(samples)+2)
	out = append(out, samples...)
	out = append(out,
		models.Sample{Time: start, Val: startVal},
		models.Sample{Time: end, Val: endVal},
	)
	// stable keeps a genuine edge sample ahead of its synthesized twin, so
	// the duplicate filter drops the synthetic one
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}

// clipToWindow keeps samples inside [start, end] inclusive and drops
// duplicate timestamps, keeping the first occurrence.
func clipToWindow(samples []models.Sample, start, end float64) []models.Sample {
	out := make([]models.Sample, 0, len(samples))
	for _, s := range samples {
		if s.Time < start || s.Time > end {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Time == s.Time {
			continue
		}
		out = append(out, s)
	}
	return out
}
