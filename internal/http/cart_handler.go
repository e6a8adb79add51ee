package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/shoes_cart/internal/domain"
	"github.com/fjod/shoes_cart/internal/notify"
	"github.com/fjod/shoes_cart/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// CartManager is the cart store as seen by the HTTP layer.
type CartManager interface {
	Cart() domain.Cart
	AddProduct(ctx context.Context, productID int64) error
	RemoveProduct(ctx context.Context, productID int64) error
	UpdateProductAmount(ctx context.Context, req service.UpdateProductAmount) error
}

type NotificationSource interface {
	Drain() []notify.Notification
}

type CartHandler struct {
	cart    CartManager
	toasts  NotificationSource
	timeout time.Duration
	log     *logrus.Entry
}

func NewCartHandler(cart CartManager, toasts NotificationSource, timeout time.Duration, log *logrus.Entry) *CartHandler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CartHandler{
		cart:    cart,
		toasts:  toasts,
		timeout: timeout,
		log:     log,
	}
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
}

type UpdateAmountRequestDTO struct {
	Amount int `json:"amount"`
}

type CartResponse struct {
	Items domain.Cart     `json:"items"`
	Size  int             `json:"size"`
	Total decimal.Decimal `json:"total"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.respondCart(w, http.StatusOK)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		h.respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}

	if err := h.cart.AddProduct(ctx, req.ProductID); err != nil {
		h.handleCartError(w, err)
		return
	}

	h.respondCart(w, http.StatusCreated)
}

func (h *CartHandler) UpdateAmount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := h.productIDFromPath(w, r)
	if !ok {
		return
	}

	var req UpdateAmountRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	err := h.cart.UpdateProductAmount(ctx, service.UpdateProductAmount{ProductID: productID, Amount: req.Amount})
	if err != nil {
		h.handleCartError(w, err)
		return
	}

	h.respondCart(w, http.StatusOK)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := h.productIDFromPath(w, r)
	if !ok {
		return
	}

	if err := h.cart.RemoveProduct(ctx, productID); err != nil {
		h.handleCartError(w, err)
		return
	}

	h.respondCart(w, http.StatusOK)
}

func (h *CartHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	toasts := h.toasts.Drain()
	if toasts == nil {
		toasts = []notify.Notification{}
	}
	h.respondJSON(w, http.StatusOK, toasts)
}

func (h *CartHandler) productIDFromPath(w http.ResponseWriter, r *http.Request) (int64, bool) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || productID <= 0 {
		h.respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return 0, false
	}
	return productID, true
}

func (h *CartHandler) respondCart(w http.ResponseWriter, status int) {
	cart := h.cart.Cart()
	if cart == nil {
		cart = domain.Cart{}
	}
	h.respondJSON(w, status, CartResponse{
		Items: cart,
		Size:  cart.Size(),
		Total: cart.Total(),
	})
}

// handleCartError maps cart failure kinds to HTTP status codes. The message is
// the generic kind text; the shopper-facing text goes through the notifier.
func (h *CartHandler) handleCartError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrOutOfStock):
		h.respondError(w, http.StatusConflict, string(notify.KindOutOfStock), service.ErrOutOfStock.Error())
	case errors.Is(err, service.ErrRemovalFailed):
		h.respondError(w, http.StatusNotFound, string(notify.KindRemovalFailed), service.ErrRemovalFailed.Error())
	case errors.Is(err, service.ErrAdditionFailed):
		h.respondError(w, http.StatusBadGateway, string(notify.KindAdditionFailed), service.ErrAdditionFailed.Error())
	case errors.Is(err, service.ErrUpdateFailed):
		h.respondError(w, http.StatusBadGateway, string(notify.KindUpdateFailed), service.ErrUpdateFailed.Error())
	default:
		h.log.WithError(err).Error("unexpected cart error")
		h.respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (h *CartHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.WithError(err).Error("failed to encode response")
	}
}

func (h *CartHandler) respondError(w http.ResponseWriter, status int, code, message string) {
	h.respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
