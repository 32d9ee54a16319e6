package assets

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler wires HTTP endpoints for fixed assets and their schedules.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
	}
}

// MountRoutes registers asset routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Post("/{id}/schedule", h.generateSchedule)
	r.Post("/{id}/post-period", h.postPeriod)
	r.Post("/{id}/dispose", h.dispose)
}

func idParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

type createBody struct {
	Code             string           `json:"code" validate:"required"`
	Name             string           `json:"name" validate:"required"`
	CategoryID       int64            `json:"category_id" validate:"required"`
	BranchID         *int64           `json:"branch_id"`
	AcquiredAt       time.Time        `json:"acquired_at" validate:"required"`
	Cost             decimal.Decimal  `json:"cost" validate:"required"`
	UsefulLifeMonths *int             `json:"useful_life_months"`
	ResidualValue    *decimal.Decimal `json:"residual_value"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var body createBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	asset, err := h.service.CreateAsset(r.Context(), FixedAsset{
		Code:             body.Code,
		Name:             body.Name,
		CategoryID:       body.CategoryID,
		BranchID:         body.BranchID,
		AcquiredAt:       body.AcquiredAt,
		Cost:             body.Cost,
		UsefulLifeMonths: body.UsefulLifeMonths,
		ResidualValue:    body.ResidualValue,
	})
	if err != nil {
		h.logger.Warn("create asset", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, asset)
}

type assetResponse struct {
	Asset    FixedAsset    `json:"asset"`
	Schedule []ScheduleRow `json:"schedule"`
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid asset id")
		return
	}
	asset, rows, err := h.service.GetAsset(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, assetResponse{Asset: asset, Schedule: rows})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	assets, err := h.service.ListAssets(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, assets)
}

func (h *Handler) generateSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid asset id")
		return
	}
	rows, err := h.service.GenerateSchedule(r.Context(), id)
	if err != nil {
		h.logger.Warn("generate schedule", slog.Int64("asset_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rows)
}

type postPeriodBody struct {
	PeriodStart time.Time `json:"period_start" validate:"required"`
	PeriodEnd   time.Time `json:"period_end" validate:"required"`
}

func (h *Handler) postPeriod(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid asset id")
		return
	}
	var body postPeriodBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.PostPeriod(r.Context(), id, body.PeriodStart, body.PeriodEnd, shared.ActorFromContext(r.Context())); err != nil {
		h.logger.Warn("post depreciation period", slog.Int64("asset_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	asset, rows, err := h.service.GetAsset(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, assetResponse{Asset: asset, Schedule: rows})
}

func (h *Handler) dispose(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid asset id")
		return
	}
	if err := h.service.Dispose(r.Context(), id); err != nil {
		h.logger.Warn("dispose asset", slog.Int64("asset_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	asset, _, err := h.service.GetAsset(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, asset)
}
