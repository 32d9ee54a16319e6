package inventory

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for stock balances, movement history and the
// standalone movements (adjustments and transfers).
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

// MountRoutes registers inventory routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/items", h.listItems)
	r.Get("/items/{productID}/{warehouseID}", h.getItem)
	r.Get("/moves", h.listMoves)
	r.Post("/adjustments", h.adjust)
	r.Post("/transfers", h.transfer)
}

func int64Query(r *http.Request, key string) (int64, error) {
	return strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid product id")
		return
	}
	warehouseID, err := strconv.ParseInt(chi.URLParam(r, "warehouseID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid warehouse id")
		return
	}
	item, err := h.service.GetItem(r.Context(), productID, warehouseID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	warehouseID, err := int64Query(r, "warehouse_id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "warehouse_id is required")
		return
	}
	items, err := h.service.ListItems(r.Context(), warehouseID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) listMoves(w http.ResponseWriter, r *http.Request) {
	productID, err := int64Query(r, "product_id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "product_id is required")
		return
	}
	warehouseID, err := int64Query(r, "warehouse_id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "warehouse_id is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	moves, err := h.service.ListMoves(r.Context(), productID, warehouseID, limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, moves)
}

type adjustBody struct {
	ProductID   int64            `json:"product_id" validate:"required"`
	WarehouseID int64            `json:"warehouse_id" validate:"required"`
	Qty         decimal.Decimal  `json:"qty" validate:"required"`
	UnitCost    *decimal.Decimal `json:"unit_cost,omitempty"`
	Reason      string           `json:"reason"`
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	var body adjustBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	move, err := h.service.Adjust(r.Context(), MoveInput{
		ProductID:   body.ProductID,
		WarehouseID: body.WarehouseID,
		Qty:         body.Qty,
		UnitCost:    body.UnitCost,
		SourceKind:  "ADJUSTMENT",
		SourceID:    uuid.New(),
		MovedAt:     time.Now().UTC(),
	})
	if err != nil {
		h.logger.Warn("stock adjustment", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, move)
}

type transferBody struct {
	ProductID       int64           `json:"product_id" validate:"required"`
	FromWarehouseID int64           `json:"from_warehouse_id" validate:"required"`
	ToWarehouseID   int64           `json:"to_warehouse_id" validate:"required"`
	Qty             decimal.Decimal `json:"qty" validate:"required"`
}

type transferResponse struct {
	Outbound StockMove `json:"outbound"`
	Inbound  StockMove `json:"inbound"`
}

func (h *Handler) transfer(w http.ResponseWriter, r *http.Request) {
	var body transferBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	out, in, err := h.service.Transfer(r.Context(), TransferInput{
		ProductID:       body.ProductID,
		FromWarehouseID: body.FromWarehouseID,
		ToWarehouseID:   body.ToWarehouseID,
		Qty:             body.Qty,
		SourceKind:      "TRANSFER",
		SourceID:        uuid.New(),
		MovedAt:         time.Now().UTC(),
	})
	if err != nil {
		h.logger.Warn("stock transfer", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, transferResponse{Outbound: out, Inbound: in})
}
