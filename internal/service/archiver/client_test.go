package archiver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ArchPull/internal/domain/models"
	"ArchPull/internal/service/cache"
	"ArchPull/pkg/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// relRecord is a fake archived point, placed relative to the requested from
// parameter so the test data tracks whatever UTC interval the client asks
// for.
type relRecord struct {
	Offset int64
	Val    float64
}

func newFakeAppliance(t *testing.T, records map[string][]relRecord, hits *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			*hits++
		}
		from, ok := util.ParseArchiverTime(r.URL.Query().Get("from"))
		if !ok {
			http.Error(w, "bad from parameter", http.StatusBadRequest)
			return
		}
		pv := r.URL.Query().Get("pv")
		recs, ok := records[pv]
		if !ok {
			http.Error(w, "pv not archived", http.StatusNotFound)
			return
		}
		wire := make([]map[string]interface{}, 0, len(recs))
		for _, rec := range recs {
			wire = append(wire, map[string]interface{}{
				"secs":  from.Unix() + rec.Offset,
				"nanos": 0,
				"val":   rec.Val,
			})
		}
		resp := []map[string]interface{}{{"data": wire}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func testWindow(t *testing.T) models.TimeWindow {
	t.Helper()
	start, ok := util.ParseWallClock("06/05/2023 08:00:00")
	require.True(t, ok)
	return models.TimeWindow{Start: start, End: start.Add(10 * time.Minute)}
}

func TestFetchRequestWindowInUTCFrame(t *testing.T) {
	win := testWindow(t)
	var gotFrom, gotTo string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotFrom = r.URL.Query().Get("from")
		gotTo = r.URL.Query().Get("to")
		_, _ = w.Write([]byte(`[{"data":[{"secs":1,"nanos":0,"val":1}]}]`))
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL + "/retrieval/data/getData.json?pv="))
	_, err := c.Fetch(context.Background(), models.ServerLCLS, "PV:A", win)
	require.NoError(t, err)

	// the wall-clock window is queried in the appliance's UTC frame, 7 h
	// earlier, so the response shift lands samples back inside the window
	shift := -time.Duration(utcOffsetSec) * time.Second
	assert.Equal(t, util.FormatArchiverTime(win.Start.Add(shift)), gotFrom)
	assert.Equal(t, util.FormatArchiverTime(win.End.Add(shift)), gotTo)
}

func TestFetchKeepsSamplesInsideRequestedInterval(t *testing.T) {
	win := testWindow(t)
	srv := newFakeAppliance(t, map[string][]relRecord{
		"PV:A": {{Offset: 60, Val: 2}, {Offset: 120, Val: 3}},
	}, nil)
	defer srv.Close()

	c := New(WithBaseURL(srv.URL + "/retrieval/data/getData.json?pv="))
	samples, err := c.Fetch(context.Background(), models.ServerLCLS, "PV:A", win)
	require.NoError(t, err)

	// both served samples survive, at their wall-clock positions
	vals := make(map[float64]float64, len(samples))
	for _, s := range samples {
		vals[s.Time] = s.Val
	}
	assert.Equal(t, 2.0, vals[win.StartSec()+60])
	assert.Equal(t, 3.0, vals[win.StartSec()+120])
}

func TestFetchBoundaryExtension(t *testing.T) {
	win := testWindow(t)
	srv := newFakeAppliance(t, map[string][]relRecord{
		"PV:A": {
			{Offset: -30, Val: 1}, // before the window
			{Offset: 60, Val: 2},
			{Offset: 120, Val: 3},
			{Offset: 700, Val: 4}, // after the window
		},
	}, nil)
	defer srv.Close()

	c := New(WithBaseURL(srv.URL + "/retrieval/data/getData.json?pv="))
	samples, err := c.Fetch(context.Background(), models.ServerLCLS, "PV:A", win)
	require.NoError(t, err)

	// synthesized edges: start gets the last value before the window, end
	// gets the first value after it
	require.NotEmpty(t, samples)
	assert.InDelta(t, win.StartSec(), samples[0].Time, 1e-6)
	assert.Equal(t, 1.0, samples[0].Val)
	last := samples[len(samples)-1]
	assert.InDelta(t, win.EndSec(), last.Time, 1e-6)
	assert.Equal(t, 4.0, last.Val)

	// everything inside the window, sorted, unique
	for i, s := range samples {
		assert.GreaterOrEqual(t, s.Time, win.StartSec()-1e-6)
		assert.LessOrEqual(t, s.Time, win.EndSec()+1e-6)
		if i > 0 {
			assert.Greater(t, s.Time, samples[i-1].Time)
		}
	}
	assert.Len(t, samples, 4) // two interior + two synthesized edges
}

func TestFetchNoEarlierSampleUsesEarliest(t *testing.T) {
	win := testWindow(t)
	srv := newFakeAppliance(t, map[string][]relRecord{
		"PV:A": {{Offset: 60, Val: 7}, {Offset: 120, Val: 9}},
	}, nil)
	defer srv.Close()

	c := New(WithBaseURL(srv.URL + "/retrieval/data/getData.json?pv="))
	samples, err := c.Fetch(context.Background(), models.ServerLCLS, "PV:A", win)
	require.NoError(t, err)

	assert.InDelta(t, win.StartSec(), samples[0].Time, 1e-6)
	assert.Equal(t, 7.0, samples[0].Val) // earliest value stands in
	last := samples[len(samples)-1]
	assert.InDelta(t, win.EndSec(), last.Time, 1e-6)
	assert.Equal(t, 9.0, last.Val) // latest value stands in
}

func TestFetchUnknownPV(t *testing.T) {
	win := testWindow(t)
	srv := newFakeAppliance(t, map[string][]relRecord{}, nil)
	defer srv.Close()

	c := New(WithBaseURL(srv.URL + "/retrieval/data/getData.json?pv="))
	_, err := c.Fetch(context.Background(), models.ServerLCLS, "PV:NOPE", win)

	var fe *models.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "PV:NOPE", fe.PV)
}

func TestFetchEmptyResponse(t *testing.T) {
	win := testWindow(t)
	srv := newFakeAppliance(t, map[string][]relRecord{"PV:A": {}}, nil)
	defer srv.Close()

	c := New(WithBaseURL(srv.URL + "/retrieval/data/getData.json?pv="))
	_, err := c.Fetch(context.Background(), models.ServerLCLS, "PV:A", win)

	var fe *models.FetchError
	require.ErrorAs(t, err, &fe)
}

func TestFetchServesSecondCallFromCache(t *testing.T) {
	win := testWindow(t)
	hits := 0
	srv := newFakeAppliance(t, map[string][]relRecord{
		"PV:A": {{Offset: 60, Val: 7}, {Offset: 120, Val: 9}},
	}, &hits)
	defer srv.Close()

	c := New(
		WithBaseURL(srv.URL+"/retrieval/data/getData.json?pv="),
		WithCache(cache.NewTTLCache(), time.Minute),
	)

	first, err := c.Fetch(context.Background(), models.ServerLCLS, "PV:A", win)
	require.NoError(t, err)
	second, err := c.Fetch(context.Background(), models.ServerLCLS, "PV:A", win)
	require.NoError(t, err)

	assert.Equal(t, 1, hits)
	assert.Equal(t, first, second)
}

func TestFetchInvalidWindow(t *testing.T) {
	win := testWindow(t)
	win.End = win.Start
	c := New()
	_, err := c.Fetch(context.Background(), models.ServerLCLS, "PV:A", win)
	require.ErrorIs(t, err, models.ErrConfig)
}

func TestBaseURLUnknownServer(t *testing.T) {
	_, err := BaseURL(models.Server("ALS"))
	require.ErrorIs(t, err, models.ErrConfig)
	for _, s := range []models.Server{models.ServerLCLS, models.ServerSSRL} {
		u, err := BaseURL(s)
		require.NoError(t, err)
		assert.Contains(t, u, "getData.json?pv=")
	}
}
