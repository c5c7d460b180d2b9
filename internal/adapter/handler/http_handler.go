package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/PJB0911/SecKill-i/internal/core/domain"
	"github.com/PJB0911/SecKill-i/internal/core/service"
)

const startDateLayout = "2006-01-02 15:04:05"

type HTTPHandler struct {
	items   *service.ItemService
	promos  *service.PromoService
	orders  *service.OrderService
	logger  *zap.Logger
	timeout time.Duration
}

type PurchaseHTTPRequest struct {
	RequestID string `json:"request_id"`
	UserID    string `json:"user_id"`
	ItemID    int64  `json:"item_id"`
	Amount    int64  `json:"amount"`
}

type CreateItemHTTPRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int64           `json:"stock"`
	ImgURL      string          `json:"img_url"`
}

type CreatePromoHTTPRequest struct {
	ItemID  int64           `json:"item_id"`
	Name    string          `json:"name"`
	StartAt time.Time       `json:"start_at"`
	EndAt   time.Time       `json:"end_at"`
	Price   decimal.Decimal `json:"price"`
}

type ReceiptResponse struct {
	ID          string          `json:"id"`
	RequestID   string          `json:"request_id,omitempty"`
	UserID      string          `json:"user_id"`
	ItemID      int64           `json:"item_id"`
	Amount      int64           `json:"amount"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
	PromoID     int64           `json:"promo_id,omitempty"`
	PurchasedAt time.Time       `json:"purchased_at"`
}

type ItemResponse struct {
	ID          int64            `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Price       decimal.Decimal  `json:"price"`
	Stock       int64            `json:"stock"`
	Sales       int64            `json:"sales"`
	ImgURL      string           `json:"img_url"`
	PromoStatus int              `json:"promo_status"`
	PromoID     int64            `json:"promo_id,omitempty"`
	PromoPrice  *decimal.Decimal `json:"promo_price,omitempty"`
	StartDate   string           `json:"start_date,omitempty"`
}

type PromoResponse struct {
	ID      int64           `json:"id"`
	ItemID  int64           `json:"item_id"`
	Name    string          `json:"name"`
	StartAt time.Time       `json:"start_at"`
	EndAt   time.Time       `json:"end_at"`
	Price   decimal.Decimal `json:"price"`
}

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewHTTPHandler(items *service.ItemService, promos *service.PromoService, orders *service.OrderService, logger *zap.Logger, timeout time.Duration) *HTTPHandler {
	return &HTTPHandler{
		items:   items,
		promos:  promos,
		orders:  orders,
		logger:  logger,
		timeout: timeout,
	}
}

// Routes builds the router with the handler's middleware stack.
func (h *HTTPHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)
	if h.timeout > 0 {
		r.Use(middleware.Timeout(h.timeout))
	}

	r.Get("/health", h.HealthCheck)
	r.Post("/api/purchase", h.Purchase)

	r.Route("/item", func(r chi.Router) {
		r.Post("/create", h.CreateItem)
		r.Get("/get", h.GetItem)
		r.Get("/list", h.ListItems)
	})
	r.Post("/promo/create", h.CreatePromo)

	return r
}

func (h *HTTPHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req PurchaseHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, APIResponse{Message: "invalid request body"})
		return
	}

	receipt, err := h.orders.Purchase(r.Context(), domain.PurchaseRequest{
		IdempotencyKey: req.RequestID,
		UserID:         req.UserID,
		ItemID:         req.ItemID,
		Amount:         req.Amount,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: toReceiptResponse(*receipt)})
}

func (h *HTTPHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req CreateItemHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, APIResponse{Message: "invalid request body"})
		return
	}

	view, err := h.items.CreateItem(r.Context(), domain.Item{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		ImgURL:      req.ImgURL,
	}, req.Stock)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, APIResponse{Success: true, Data: toItemResponse(*view)})
}

func (h *HTTPHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, APIResponse{Message: "invalid id"})
		return
	}

	view, err := h.items.BuildView(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: toItemResponse(*view)})
}

func (h *HTTPHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	views, err := h.items.ListItems(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	out := make([]ItemResponse, len(views))
	for i, v := range views {
		out[i] = toItemResponse(v)
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: out})
}

func (h *HTTPHandler) CreatePromo(w http.ResponseWriter, r *http.Request) {
	var req CreatePromoHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, APIResponse{Message: "invalid request body"})
		return
	}

	promo, err := h.promos.CreatePromo(r.Context(), domain.Promo{
		ItemID:  req.ItemID,
		Name:    req.Name,
		StartAt: req.StartAt,
		EndAt:   req.EndAt,
		Price:   req.Price,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, APIResponse{Success: true, Data: PromoResponse{
		ID:      promo.ID,
		ItemID:  promo.ItemID,
		Name:    promo.Name,
		StartAt: promo.StartAt,
		EndAt:   promo.EndAt,
		Price:   promo.Price,
	}})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, domain.ErrItemNotFound):
		status = http.StatusNotFound
		message = "item not found"
	case errors.Is(err, domain.ErrInsufficientStock):
		status = http.StatusGone
		message = "sold out"
	case errors.Is(err, domain.ErrPurchasePending):
		status = http.StatusConflict
		message = "purchase pending"
	case errors.Is(err, domain.ErrTransientStore):
		status = http.StatusServiceUnavailable
		message = "temporarily unavailable, retry with the same request_id"
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, APIResponse{Message: message})
}

func (h *HTTPHandler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func toReceiptResponse(r domain.Receipt) ReceiptResponse {
	return ReceiptResponse{
		ID:          r.ID,
		RequestID:   r.IdempotencyKey,
		UserID:      r.UserID,
		ItemID:      r.ItemID,
		Amount:      r.Amount,
		UnitPrice:   r.UnitPrice,
		Total:       r.Total(),
		PromoID:     r.PromoID,
		PurchasedAt: r.PurchasedAt,
	}
}

func toItemResponse(v domain.ItemView) ItemResponse {
	resp := ItemResponse{
		ID:          v.ID,
		Title:       v.Title,
		Description: v.Description,
		Price:       v.Price,
		Stock:       v.Stock,
		Sales:       v.Sales,
		ImgURL:      v.ImgURL,
		PromoStatus: int(v.Promo.Status),
	}
	if v.HasPromo() {
		price := v.Promo.Price
		resp.PromoID = v.Promo.ID
		resp.PromoPrice = &price
		resp.StartDate = v.Promo.StartAt.Format(startDateLayout)
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
