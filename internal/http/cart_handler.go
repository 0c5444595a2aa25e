package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/service"
	"github.com/go-chi/chi/v5"
)

type CartService interface {
	GetSummary(ctx context.Context, sessionID string) (*domain.CartSummary, error)
	AddToCart(ctx context.Context, sessionID string, productID int64, quantity int) (service.AddResult, error)
	UpdateQuantity(ctx context.Context, sessionID string, productID int64, quantity int) (bool, error)
	RemoveItem(ctx context.Context, sessionID string, productID int64) (bool, error)
	ClearCart(ctx context.Context, sessionID string) error
	Count(ctx context.Context, sessionID string) (int, int, error)
}

type CartHandler struct {
	cart    CartService
	timeout time.Duration
}

func NewCartHandler(cart CartService, timeout time.Duration) *CartHandler {
	return &CartHandler{
		cart:    cart,
		timeout: timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  *int  `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CountResponse struct {
	ItemCount     int `json:"itemCount"`
	TotalQuantity int `json:"totalQuantity"`
}

type MutationResponse struct {
	Success bool                `json:"success"`
	Cart    *domain.CartSummary `json:"cart,omitempty"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	summary, err := h.cart.GetSummary(ctx, SessionID(r.Context()))
	if err != nil {
		handleCartError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (h *CartHandler) Count(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	count, total, err := h.cart.Count(ctx, SessionID(r.Context()))
	if err != nil {
		handleCartError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, CountResponse{ItemCount: count, TotalQuantity: total})
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	result, err := h.cart.AddToCart(ctx, SessionID(r.Context()), req.ProductID, quantity)
	if err != nil {
		respondJSON(w, cartErrorStatus(err), result)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	sessionID := SessionID(r.Context())
	found, err := h.cart.UpdateQuantity(ctx, sessionID, productID, req.Quantity)
	if err != nil {
		handleCartError(w, err)
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, "item_not_found", "product is not in the cart")
		return
	}
	h.respondMutation(ctx, w, sessionID)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	sessionID := SessionID(r.Context())
	removed, err := h.cart.RemoveItem(ctx, sessionID, productID)
	if err != nil {
		handleCartError(w, err)
		return
	}
	if !removed {
		respondError(w, http.StatusNotFound, "item_not_found", "product is not in the cart")
		return
	}
	h.respondMutation(ctx, w, sessionID)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.cart.ClearCart(ctx, SessionID(r.Context())); err != nil {
		handleCartError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, MutationResponse{Success: true})
}

func (h *CartHandler) respondMutation(ctx context.Context, w http.ResponseWriter, sessionID string) {
	summary, err := h.cart.GetSummary(ctx, sessionID)
	if err != nil {
		handleCartError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, MutationResponse{Success: true, Cart: summary})
}

func productIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return 0, false
	}
	return productID, true
}

func cartErrorStatus(err error) int {
	switch {
	case service.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, cache.ErrCartUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func handleCartError(w http.ResponseWriter, err error) {
	status := cartErrorStatus(err)
	switch status {
	case http.StatusBadRequest:
		respondError(w, status, "invalid_argument", err.Error())
	case http.StatusServiceUnavailable:
		respondError(w, status, "cart_unavailable", "cart is temporarily unavailable")
	case http.StatusGatewayTimeout:
		respondError(w, status, "timeout", "request timed out")
	default:
		respondError(w, status, "internal_error", "internal server error")
	}
}
