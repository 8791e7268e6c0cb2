package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ArchPull/internal/domain/models"
	"ArchPull/internal/engine"
	"ArchPull/internal/usecase"
	"ArchPull/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	data map[string][]models.Sample
}

func (f *fakeSource) Fetch(_ context.Context, _ models.Server, pv string, _ models.TimeWindow) ([]models.Sample, error) {
	return f.data[pv], nil
}

func flatSeries(n int, val float64) []models.Sample {
	samples := make([]models.Sample, n)
	for i := range samples {
		samples[i] = models.Sample{Time: 1.6e9 + float64(i), Val: val}
	}
	return samples
}

func newTestServer(t *testing.T, src *fakeSource, pvs ...string) *echo.Echo {
	t.Helper()
	ret, err := usecase.New(src, engine.New(logger.Nop()), logger.Nop(), usecase.Params{
		PVs:       pvs,
		Server:    "LCLS",
		StartTime: "06/05/2023 08:00:00",
		EndTime:   "06/05/2023 09:00:00",
	})
	require.NoError(t, err)

	e := echo.New()
	NewHistoryEchoHandler(logger.Nop(), ret).RegisterRoutes(e)
	return e
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) envelope {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestAlignEndpoint(t *testing.T) {
	src := &fakeSource{data: map[string][]models.Sample{
		"PV:A": flatSeries(600, 5000),
		"PV:B": flatSeries(600, 6000),
	}}
	env := doJSON(t, newTestServer(t, src, "PV:A", "PV:B"), http.MethodPost, "/api/align", `{}`)

	assert.Equal(t, http.StatusOK, env.Status)
	var resp models.AlignResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, []string{"PV:A", "PV:B"}, resp.PVs)
	assert.NotEmpty(t, resp.RelTime)
	require.Len(t, resp.Vals, 2)
}

func TestAlignEndpointNoDataInRange(t *testing.T) {
	// base values sit below every default valid range, so trimming rejects
	// the whole window
	src := &fakeSource{data: map[string][]models.Sample{
		"PV:A": flatSeries(600, 5),
	}}
	env := doJSON(t, newTestServer(t, src, "PV:A"), http.MethodPost, "/api/align", `{}`)

	assert.Equal(t, http.StatusUnprocessableEntity, env.Status)
	assert.Contains(t, string(env.Data), "ERR_UNPROCESSABLE")
}

func TestSetBasePVEndpointUnknownName(t *testing.T) {
	src := &fakeSource{}
	env := doJSON(t, newTestServer(t, src, "PV:A"), http.MethodPut, "/api/basepv",
		`{"base_pv":"PV:NOPE"}`)

	assert.Equal(t, http.StatusBadRequest, env.Status)
	assert.Contains(t, string(env.Data), "ERR_BAD_REQUEST")
}

func TestConfigEndpoint(t *testing.T) {
	src := &fakeSource{}
	env := doJSON(t, newTestServer(t, src, "PV:A", "PV:B"), http.MethodGet, "/api/config", "")

	assert.Equal(t, http.StatusOK, env.Status)
	var resp models.ConfigResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "LCLS", resp.Server)
	assert.Equal(t, []string{"PV:A", "PV:B"}, resp.PVs)
	assert.Equal(t, 1.0, resp.DurationHour)
}
