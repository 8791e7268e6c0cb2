package api

import (
	"errors"

	"ArchPull/internal/domain/models"
	"ArchPull/internal/usecase"
	xhttp "ArchPull/pkg/http"
	xlogger "ArchPull/pkg/logger"

	"github.com/labstack/echo/v4"
)

// HistoryEchoHandler exposes retrieval and alignment over HTTP.
type HistoryEchoHandler struct {
	logger *xlogger.Logger
	ret    *usecase.Retriever
}

func NewHistoryEchoHandler(logger *xlogger.Logger, ret *usecase.Retriever) *HistoryEchoHandler {
	return &HistoryEchoHandler{logger: logger, ret: ret}
}

func (h *HistoryEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/history", h.History)
	g.POST("/align", h.Align)
	g.GET("/config", h.Config)
	g.PUT("/basepv", h.SetBasePV)
}

// History runs (or reuses) the batch fetch and reports per-PV counts.
func (h *HistoryEchoHandler) History(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	raw := h.ret.RawDataset()
	if raw == nil || req.Refetch {
		var err error
		raw, err = h.ret.GetHistory(c.Request().Context())
		if err != nil {
			h.logger.Error("get history failed", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, mapDomainError(err))
		}
	}

	resp := &models.HistoryResponse{
		Start:  raw.Window.Start.UTC().Format("01/02/2006 15:04:05"),
		End:    raw.Window.End.UTC().Format("01/02/2006 15:04:05"),
		Counts: make(map[string]int, len(raw.PVs)),
	}
	for _, pv := range raw.PVs {
		n := len(raw.Samples(pv))
		resp.Counts[pv] = n
		if n == 0 {
			if resp.Failures == nil {
				resp.Failures = make(map[string]string)
			}
			resp.Failures[pv] = "fetch failed or no samples in window"
		}
	}
	return xhttp.SuccessResponse(c, resp)
}

// Align runs alignment plus resampling and returns the aligned dataset.
func (h *HistoryEchoHandler) Align(c echo.Context) error {
	req := &models.AlignRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if req.Refetch {
		if _, err := h.ret.GetHistory(c.Request().Context()); err != nil {
			h.logger.Error("get history failed", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, mapDomainError(err))
		}
	}

	ds, err := h.ret.AlignHistory(c.Request().Context())
	if err != nil {
		h.logger.Error("align history failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, mapDomainError(err))
	}
	return xhttp.SuccessResponse(c, models.NewAlignResponse(ds))
}

// Config returns the current retriever configuration.
func (h *HistoryEchoHandler) Config(c echo.Context) error {
	return xhttp.SuccessResponse(c, &models.ConfigResponse{
		Server:       string(h.ret.Server()),
		PVs:          h.ret.PVs(),
		StartTime:    h.ret.StartTime().UTC().Format("01/02/2006 15:04:05"),
		EndTime:      h.ret.EndTime().UTC().Format("01/02/2006 15:04:05"),
		DurationHour: h.ret.DurationHour(),
		Align:        h.ret.AlignSetup(),
	})
}

// SetBasePV reconfigures the alignment reference and trim parameters.
func (h *HistoryEchoHandler) SetBasePV(c echo.Context) error {
	req := &models.SetBasePVRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	baseID := -1
	if req.BaseID != nil {
		baseID = *req.BaseID
	}
	ranges := make([]models.ValueRange, 0, len(req.ValRanges))
	for _, pair := range req.ValRanges {
		ranges = append(ranges, models.ValueRange{Low: pair[0], High: pair[1]})
	}
	trim := true
	if req.Trim != nil {
		trim = *req.Trim
	}

	if err := h.ret.SetBasePV(req.BasePV, baseID, ranges, req.BridgeSec, req.ResampleSec, trim); err != nil {
		h.logger.Error("set base pv failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, mapDomainError(err))
	}
	return xhttp.SuccessResponse(c, h.ret.AlignSetup())
}

// mapDomainError translates domain errors to HTTP app errors.
func mapDomainError(err error) error {
	switch {
	case errors.Is(err, models.ErrConfig):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrNoDataInRange), errors.Is(err, models.ErrEmptyTimeAxis):
		return xhttp.UnprocessableError(err.Error()).WithError(err)
	default:
		return xhttp.InternalError(err.Error()).WithError(err)
	}
}
