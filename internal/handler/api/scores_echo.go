package api

import (
	"errors"

	"WalletScore/internal/domain/models"
	domrepo "WalletScore/internal/domain/repository"
	"WalletScore/internal/ingest"
	"WalletScore/internal/reporting"
	"WalletScore/internal/service/ratelimit"
	"WalletScore/internal/usecase"
	xhttp "WalletScore/pkg/http"
	xlogger "WalletScore/pkg/logger"
	"WalletScore/pkg/queue"

	"github.com/labstack/echo/v4"
)

// ScoresEchoHandler serves the latest run and accepts run and ad-hoc scoring requests.
type ScoresEchoHandler struct {
	logger  *xlogger.Logger
	store   domrepo.ScoreStore
	runner  *usecase.ScoreRunner
	queue   queue.Publisher
	limiter ratelimit.Limiter
	lo, hi  int
}

// HandlerOption configures ScoresEchoHandler.
type HandlerOption func(*ScoresEchoHandler)

// WithQueue makes POST /api/runs enqueue instead of running inline.
func WithQueue(q queue.Publisher) HandlerOption {
	return func(h *ScoresEchoHandler) { h.queue = q }
}

// WithLimiter rate limits POST /api/score.
func WithLimiter(l ratelimit.Limiter) HandlerOption {
	return func(h *ScoresEchoHandler) { h.limiter = l }
}

// WithScoreRange sets the bounds used for the distribution buckets.
func WithScoreRange(lo, hi int) HandlerOption {
	return func(h *ScoresEchoHandler) { h.lo, h.hi = lo, hi }
}

func NewScoresEchoHandler(logger *xlogger.Logger, store domrepo.ScoreStore, runner *usecase.ScoreRunner, opts ...HandlerOption) *ScoresEchoHandler {
	h := &ScoresEchoHandler{logger: logger, store: store, runner: runner, lo: 0, hi: 1000}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *ScoresEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/scores", h.ListScores)
	g.GET("/scores/:wallet", h.WalletScore)
	g.GET("/distribution", h.Distribution)
	g.GET("/runs/latest", h.LatestRun)
	g.POST("/runs", h.TriggerRun)

	var mw []echo.MiddlewareFunc
	if h.limiter != nil {
		mw = append(mw, ratelimit.Middleware(h.limiter, h.logger))
	}
	g.POST("/score", h.ScoreBatch, mw...)
}

func (h *ScoresEchoHandler) WalletScore(c echo.Context) error {
	req := &models.WalletScoreRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rec, err := h.store.GetScore(c.Request().Context(), req.Wallet)
	if err != nil {
		return h.storeError(c, err, "wallet "+req.Wallet+" has no score")
	}
	if !req.Explain {
		rec = brief(rec)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=30")
	return xhttp.SuccessResponse(c, rec)
}

func (h *ScoresEchoHandler) ListScores(c echo.Context) error {
	req := &models.ListScoresRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	f := domrepo.ScoreFilter{Limit: req.Limit, Offset: req.Offset}
	if v := xhttp.ParseIntDefault(c.QueryParam("min_score"), -1); v >= 0 {
		f.MinScore = &v
	}
	if v := xhttp.ParseIntDefault(c.QueryParam("max_score"), -1); v >= 0 {
		f.MaxScore = &v
	}
	if f.MinScore != nil && f.MaxScore != nil && *f.MinScore > *f.MaxScore {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("min_score must not exceed max_score"))
	}

	rows, total, err := h.store.ListScores(c.Request().Context(), f)
	if err != nil {
		return h.storeError(c, err, "no scoring run yet")
	}
	for i := range rows {
		rows[i] = *brief(&rows[i])
	}
	return xhttp.ListResponse(c, rows, total)
}

func (h *ScoresEchoHandler) Distribution(c echo.Context) error {
	ctx := c.Request().Context()
	run, err := h.store.LatestRun(ctx)
	if err != nil {
		return h.storeError(c, err, "no scoring run yet")
	}
	rows, _, err := h.store.ListScores(ctx, domrepo.ScoreFilter{})
	if err != nil {
		return h.storeError(c, err, "no scoring run yet")
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"run_id":  run.ID,
		"buckets": reporting.Distribution(rows, h.lo, h.hi, reporting.BucketWidth(h.lo, h.hi)),
	})
}

func (h *ScoresEchoHandler) LatestRun(c echo.Context) error {
	run, err := h.store.LatestRun(c.Request().Context())
	if err != nil {
		return h.storeError(c, err, "no scoring run yet")
	}
	return xhttp.SuccessResponse(c, run)
}

func (h *ScoresEchoHandler) TriggerRun(c echo.Context) error {
	ctx := c.Request().Context()
	if h.queue != nil {
		if err := h.queue.PublishMessage(ctx, usecase.ScoreRunJobType, usecase.RunRequest{Reason: "api"}); err != nil {
			h.logger.Error("enqueue run failed", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, xhttp.InternalError("could not enqueue run").WithError(err))
		}
		return xhttp.AcceptedResponse(c, models.RunAccepted{Queued: true})
	}

	res, err := h.runner.RunOnce(ctx)
	if err != nil {
		return h.runError(c, err)
	}
	return xhttp.SuccessResponse(c, models.RunAccepted{Run: &res.Summary})
}

func (h *ScoresEchoHandler) ScoreBatch(c echo.Context) error {
	req := &models.ScoreBatchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	txs := make([]models.Transaction, len(req.Records))
	for i, raw := range req.Records {
		tx, err := ingest.DecodeRecord(raw)
		if err != nil {
			h.logger.Debug("undecodable record in batch", xlogger.Int("index", i), xlogger.Error(err))
			continue
		}
		txs[i] = tx
	}

	res, err := h.runner.Score(c.Request().Context(), txs)
	if err != nil {
		return h.runError(c, err)
	}
	scores := res.Scores
	if !req.Explain {
		scores = make([]models.ScoreRecord, len(res.Scores))
		for i := range res.Scores {
			scores[i] = *brief(&res.Scores[i])
		}
	}
	return xhttp.SuccessResponse(c, models.ScoreBatchResponse{Stats: res.Summary.Stats, Scores: scores})
}

func (h *ScoresEchoHandler) storeError(c echo.Context, err error, notFound string) error {
	if errors.Is(err, domrepo.ErrNotFound) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError(notFound))
	}
	h.logger.Error("score store error", xlogger.String("route", c.Path()), xlogger.Error(err))
	return xhttp.InternalServerErrorResponse(c)
}

func (h *ScoresEchoHandler) runError(c echo.Context, err error) error {
	if errors.Is(err, usecase.ErrNoValidRecords) {
		return xhttp.AppErrorResponse(c, xhttp.UnprocessableError(err.Error()))
	}
	h.logger.Error("scoring run failed", xlogger.Error(err))
	return xhttp.InternalServerErrorResponse(c)
}

// brief drops the profile and term breakdown.
func brief(rec *models.ScoreRecord) *models.ScoreRecord {
	out := *rec
	out.Profile = nil
	out.Contributions = nil
	return &out
}
