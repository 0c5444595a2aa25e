package http

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/storefront/internal/checkout"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/gateway"
	"github.com/fjod/storefront/internal/logger"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type Reconciler interface {
	Submit(ctx context.Context, sessionID string, req checkout.Request, mode checkout.ResponseMode) checkout.Outcome
	Challenge(ctx context.Context, sessionID string) (string, error)
	CompleteThreeDs(ctx context.Context, sessionID string, cb checkout.ThreeDsCallback, mode checkout.ResponseMode) checkout.Outcome
	CompleteHosted(ctx context.Context, sessionID string, flow domain.PaymentFlow, cb checkout.HostedCallback, mode checkout.ResponseMode) checkout.Outcome
	ConfirmOrder(ctx context.Context, paymentID, conversationID string, flow domain.PaymentFlow) domain.PaymentResult
}

type InstallmentLookup interface {
	LookupInstallments(ctx context.Context, bin string, amount decimal.Decimal) (*gateway.InstallmentOptions, error)
}

type CheckoutHandler struct {
	reconciler   Reconciler
	installments InstallmentLookup
	timeout      time.Duration
	failPath     string
	log          logrus.FieldLogger
}

func NewCheckoutHandler(reconciler Reconciler, installments InstallmentLookup, timeout time.Duration, failPath string, log logrus.FieldLogger) *CheckoutHandler {
	return &CheckoutHandler{
		reconciler:   reconciler,
		installments: installments,
		timeout:      timeout,
		failPath:     failPath,
		log:          log,
	}
}

// SubmitRequestDTO is the JSON body of a checkout submission.
type SubmitRequestDTO struct {
	PaymentMethod  string              `json:"payment_method"`
	ConversationID string              `json:"conversation_id"`
	Installment    int                 `json:"installment"`
	Buyer          domain.BuyerInfo    `json:"buyer"`
	Card           *domain.PaymentCard `json:"card,omitempty"`
}

func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	mode := ResponseMode(r.Context())
	sessionID := SessionID(r.Context())

	req, err := decodeSubmit(r)
	if err != nil {
		h.rejectInput(w, r, mode, "invalid_request", "checkout request could not be read")
		return
	}
	if req.Buyer.ID == "" {
		req.Buyer.ID = sessionID
	}
	if req.Buyer.IP == "" {
		req.Buyer.IP = clientIP(r)
	}

	h.writeOutcome(w, r, h.reconciler.Submit(ctx, sessionID, req, mode))
}

// Challenge serves the issuer's 3DS page stored at initialization.
func (h *CheckoutHandler) Challenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	html, err := h.reconciler.Challenge(ctx, SessionID(r.Context()))
	switch {
	case errors.Is(err, checkout.ErrNoPendingPayment):
		h.rejectNotFound(w, r, ResponseMode(r.Context()), "no_pending_payment", "there is no payment waiting for 3D Secure")
		return
	case err != nil:
		logger.FromContext(r.Context(), h.log).WithError(err).Error("failed to load 3DS challenge")
		respondError(w, http.StatusServiceUnavailable, checkout.CodeSessionUnavailable, "session store is temporarily unavailable")
		return
	}
	respondHTML(w, http.StatusOK, html)
}

func (h *CheckoutHandler) ThreeDsCallback(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := r.ParseForm(); err != nil {
		h.rejectInput(w, r, ResponseMode(r.Context()), "invalid_request", "callback could not be read")
		return
	}
	cb := checkout.ThreeDsCallback{
		Status:           r.Form.Get("status"),
		PaymentID:        r.Form.Get("paymentId"),
		ConversationData: r.Form.Get("conversationData"),
		ConversationID:   r.Form.Get("conversationId"),
		MDStatus:         r.Form.Get("mdStatus"),
		Signature:        r.Form.Get("signature"),
	}
	h.writeOutcome(w, r, h.reconciler.CompleteThreeDs(ctx, SessionID(r.Context()), cb, ResponseMode(r.Context())))
}

func (h *CheckoutHandler) HostedCallback(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	mode := ResponseMode(r.Context())
	flow, err := domain.ParsePaymentFlow(chi.URLParam(r, "flow"))
	if err != nil || !flow.IsHosted() {
		h.rejectNotFound(w, r, mode, "unknown_flow", "unknown payment callback")
		return
	}
	if err := r.ParseForm(); err != nil {
		h.rejectInput(w, r, mode, "invalid_request", "callback could not be read")
		return
	}
	cb := checkout.HostedCallback{
		Token:          r.Form.Get("token"),
		PaymentStatus:  r.Form.Get("paymentStatus"),
		PaymentID:      r.Form.Get("paymentId"),
		ConversationID: r.Form.Get("conversationId"),
		BasketID:       r.Form.Get("basketId"),
		Currency:       r.Form.Get("currency"),
		PaidPrice:      r.Form.Get("paidPrice"),
		Price:          r.Form.Get("price"),
		Signature:      r.Form.Get("signature"),
	}
	h.writeOutcome(w, r, h.reconciler.CompleteHosted(ctx, SessionID(r.Context()), flow, cb, mode))
}

func (h *CheckoutHandler) ConfirmOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	paymentID := chi.URLParam(r, "payment_id")
	if strings.TrimSpace(paymentID) == "" {
		respondError(w, http.StatusBadRequest, checkout.CodeValidation, "payment id is required")
		return
	}
	flow := domain.FlowDirectCard
	if method := r.URL.Query().Get("paymentMethod"); method != "" {
		parsed, err := domain.ParsePaymentFlow(method)
		if err != nil {
			respondError(w, http.StatusBadRequest, checkout.CodeValidation, err.Error())
			return
		}
		flow = parsed
	}

	result := h.reconciler.ConfirmOrder(ctx, paymentID, r.URL.Query().Get("conversationId"), flow)
	respondJSON(w, confirmStatus(result), result)
}

func (h *CheckoutHandler) Installments(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	amount, err := decimal.NewFromString(r.URL.Query().Get("amount"))
	if err != nil {
		respondError(w, http.StatusBadRequest, checkout.CodeValidation, gateway.ErrInvalidAmount.Error())
		return
	}

	opts, err := h.installments.LookupInstallments(ctx, r.URL.Query().Get("bin"), amount)
	if err != nil {
		var gwErr *gateway.GatewayError
		switch {
		case errors.Is(err, gateway.ErrInvalidBIN), errors.Is(err, gateway.ErrInvalidAmount):
			respondError(w, http.StatusBadRequest, checkout.CodeValidation, err.Error())
		case errors.As(err, &gwErr):
			respondError(w, http.StatusBadGateway, gwErr.Code, gwErr.Message)
		default:
			logger.FromContext(r.Context(), h.log).WithError(err).Warn("installment lookup failed")
			respondError(w, http.StatusBadGateway, gateway.CodeUnavailable, "installment options are unavailable")
		}
		return
	}
	respondJSON(w, http.StatusOK, opts)
}

func (h *CheckoutHandler) writeOutcome(w http.ResponseWriter, r *http.Request, out checkout.Outcome) {
	if out.IsRedirect() {
		http.Redirect(w, r, out.Location, out.StatusCode)
		return
	}
	respondJSON(w, out.StatusCode, out.Body)
}

func (h *CheckoutHandler) rejectInput(w http.ResponseWriter, r *http.Request, mode checkout.ResponseMode, code, message string) {
	if mode == checkout.ModeBrowser {
		http.Redirect(w, r, h.failURL(message), http.StatusFound)
		return
	}
	respondError(w, http.StatusBadRequest, code, message)
}

func (h *CheckoutHandler) rejectNotFound(w http.ResponseWriter, r *http.Request, mode checkout.ResponseMode, code, message string) {
	if mode == checkout.ModeBrowser {
		http.Redirect(w, r, h.failURL(message), http.StatusFound)
		return
	}
	respondError(w, http.StatusNotFound, code, message)
}

func (h *CheckoutHandler) failURL(message string) string {
	return h.failPath + "?" + url.Values{"errorMessage": {message}}.Encode()
}

func confirmStatus(result domain.PaymentResult) int {
	if result.IsSuccess() {
		return http.StatusOK
	}
	switch result.ErrorCode {
	case gateway.CodeTimeout:
		return http.StatusGatewayTimeout
	case gateway.CodeUnavailable:
		return http.StatusServiceUnavailable
	case gateway.CodeMalformedResponse:
		return http.StatusBadGateway
	default:
		return http.StatusUnprocessableEntity
	}
}

func decodeSubmit(r *http.Request) (checkout.Request, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var dto SubmitRequestDTO
		if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
			return checkout.Request{}, err
		}
		return checkout.Request{
			Flow:           domain.PaymentFlow(dto.PaymentMethod),
			ConversationID: dto.ConversationID,
			Buyer:          dto.Buyer,
			Card:           dto.Card,
			Installment:    dto.Installment,
		}, nil
	}

	if err := r.ParseForm(); err != nil {
		return checkout.Request{}, err
	}
	f := r.PostForm
	req := checkout.Request{
		Flow:           domain.PaymentFlow(f.Get("payment_method")),
		ConversationID: f.Get("conversation_id"),
		Installment:    1,
		Buyer: domain.BuyerInfo{
			Name:           f.Get("buyer_name"),
			Surname:        f.Get("buyer_surname"),
			Email:          f.Get("buyer_email"),
			Phone:          f.Get("buyer_phone"),
			IdentityNumber: f.Get("buyer_identity_number"),
			Address: domain.Address{
				ContactName: f.Get("contact_name"),
				Address:     f.Get("address"),
				City:        f.Get("city"),
				Country:     f.Get("country"),
				ZipCode:     f.Get("zip_code"),
			},
		},
	}
	if raw := f.Get("installment"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			// left out of range for validation to reject
			n = -1
		}
		req.Installment = n
	}
	if f.Get("card_number") != "" {
		req.Card = &domain.PaymentCard{
			HolderName:  f.Get("card_holder_name"),
			Number:      f.Get("card_number"),
			ExpireMonth: f.Get("expire_month"),
			ExpireYear:  f.Get("expire_year"),
			CVC:         f.Get("cvc"),
		}
	}
	return req, nil
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
