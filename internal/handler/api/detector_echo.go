package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"OutSift/internal/detector"
	models "OutSift/internal/domain/models"
	icache "OutSift/internal/service/cache"
	"OutSift/internal/service/ratelimit"
	"OutSift/internal/usecase"
	xhttp "OutSift/pkg/http"
	xlogger "OutSift/pkg/logger"
	xutil "OutSift/pkg/util"

	"github.com/labstack/echo/v4"
)

// DetectorEchoHandler exposes the evaluation loop over HTTP: score batches
// in, delayed truth in, lag-corrected gauges and archived history out.
type DetectorEchoHandler struct {
	logger *xlogger.Logger
	eval   *usecase.Evaluator
	cache  icache.BytesCache
	rl     *ratelimit.Limiter
}

func NewDetectorEchoHandler(logger *xlogger.Logger, eval *usecase.Evaluator) *DetectorEchoHandler {
	return &DetectorEchoHandler{logger: logger, eval: eval, rl: ratelimit.New()}
}

// SetCache injects a TTL cache for history responses.
func (h *DetectorEchoHandler) SetCache(c icache.BytesCache) { h.cache = c }

func (h *DetectorEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/predict", h.Predict)
	g.POST("/feedback", h.Feedback)
	g.GET("/metrics", h.Metrics)
	g.GET("/history", h.History)
	g.GET("/status", h.Status)
}

func (h *DetectorEchoHandler) Predict(c echo.Context) error {
	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":predict", 50, 25) {
		h.logger.Warn("predict rate_limited", xlogger.String("remote", c.RealIP()))
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limited")
	}

	preds, err := h.eval.Predict(c.Request().Context(), req.X, req.FeatureNames)
	if err != nil {
		h.logger.Error("predict usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, appError(err))
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"is_outlier": preds,
		"threshold":  h.eval.Session().Threshold(),
	})
}

func (h *DetectorEchoHandler) Feedback(c echo.Context) error {
	req := &models.FeedbackRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if err := h.eval.Feedback(c.Request().Context(), req.X, req.FeatureNames, req.Reward, req.Truth); err != nil {
		h.logger.Error("feedback usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, appError(err))
	}
	return xhttp.SuccessResponse(c, snapshotBody(h.eval))
}

// Metrics returns the gauge list in reporting order. The reported observation
// runs one step behind: its label may only just have arrived.
func (h *DetectorEchoHandler) Metrics(c echo.Context) error {
	gauges, err := h.eval.Report()
	if err != nil {
		h.logger.Error("report usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, appError(err))
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"detector": h.eval.Name(),
		"metrics":  gauges,
	})
}

func (h *DetectorEchoHandler) History(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":history", 5, 2) {
		h.logger.Warn("history rate_limited", xlogger.String("remote", c.RealIP()))
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limited")
	}

	now := time.Now()
	from := xhttp.ParseTimeDefault(req.From, now.Add(-24*time.Hour))
	to := xhttp.ParseTimeDefault(req.To, now)
	from, to = xutil.AlignWindow(from, to, time.Minute)

	cacheKey := "history:" + from.Format(time.RFC3339) + ":" + to.Format(time.RFC3339) + ":" + strconv.Itoa(req.Limit)
	if h.cache != nil {
		if b, ok, cerr := h.cache.GetBytes(cacheKey); cerr == nil && ok {
			var rows []*models.Observation
			if json.Unmarshal(b, &rows) == nil {
				return xhttp.ListResponse(c, rows, int64(len(rows)))
			}
		}
	}

	rows, err := h.eval.History(c.Request().Context(), from, to, req.Limit)
	if err != nil {
		h.logger.Error("history usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, appError(err))
	}
	if h.cache != nil {
		if b, merr := json.Marshal(rows); merr == nil {
			if cerr := h.cache.SetBytes(cacheKey, b, 15*time.Second); cerr != nil {
				h.logger.Warn("history cache_set_error", xlogger.Error(cerr))
			}
		}
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *DetectorEchoHandler) Status(c echo.Context) error {
	s := h.eval.Session()
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"detector":     h.eval.Name(),
		"state":        s.State().String(),
		"observations": s.N(),
		"labels":       s.LabelLen(),
		"threshold":    s.Threshold(),
		"roll_window":  s.RollWindow(),
	})
}

func snapshotBody(eval *usecase.Evaluator) map[string]interface{} {
	s := eval.Session()
	return map[string]interface{}{
		"detector":     eval.Name(),
		"observations": s.N(),
		"labels":       s.LabelLen(),
		"state":        s.State().String(),
	}
}

// appError maps detector sentinels to client errors; anything else is a 500.
func appError(err error) error {
	switch {
	case errors.Is(err, detector.ErrUnsupportedBatchSize):
		return xhttp.NewAppError("ERR_UNSUPPORTED_BATCH_SIZE", "", err.Error(), http.StatusBadRequest).WithError(err)
	case errors.Is(err, detector.ErrLabelLengthMismatch):
		return xhttp.NewAppError("ERR_LABEL_LENGTH_MISMATCH", "truth", err.Error(), http.StatusBadRequest).WithError(err)
	default:
		return err
	}
}
