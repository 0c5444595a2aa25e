package http

import (
	"context"
	"net/http"

	"github.com/fjod/storefront/internal/checkout"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/gateway"
	"github.com/fjod/storefront/internal/service"
	"github.com/shopspring/decimal"
)

type CartMock struct {
	summary   *domain.CartSummary
	add       service.AddResult
	found     bool
	err       error
	sessionID string
	productID int64
	quantity  int
}

func (c *CartMock) GetSummary(ctx context.Context, sessionID string) (*domain.CartSummary, error) {
	c.sessionID = sessionID
	if c.err != nil {
		return nil, c.err
	}
	return c.summary, nil
}

func (c *CartMock) AddToCart(ctx context.Context, sessionID string, productID int64, quantity int) (service.AddResult, error) {
	c.sessionID, c.productID, c.quantity = sessionID, productID, quantity
	if c.err != nil {
		return service.AddResult{Success: false, Message: c.err.Error()}, c.err
	}
	return c.add, nil
}

func (c *CartMock) UpdateQuantity(ctx context.Context, sessionID string, productID int64, quantity int) (bool, error) {
	c.sessionID, c.productID, c.quantity = sessionID, productID, quantity
	return c.found, c.err
}

func (c *CartMock) RemoveItem(ctx context.Context, sessionID string, productID int64) (bool, error) {
	c.sessionID, c.productID = sessionID, productID
	return c.found, c.err
}

func (c *CartMock) ClearCart(ctx context.Context, sessionID string) error {
	c.sessionID = sessionID
	return c.err
}

func (c *CartMock) Count(ctx context.Context, sessionID string) (int, int, error) {
	c.sessionID = sessionID
	if c.err != nil {
		return 0, 0, c.err
	}
	return c.summary.ItemCount, c.summary.TotalQuantity, nil
}

type ReconcilerMock struct {
	outcome   checkout.Outcome
	html      string
	err       error
	confirmed domain.PaymentResult

	sessionID string
	request   checkout.Request
	mode      checkout.ResponseMode
	threeDs   checkout.ThreeDsCallback
	hosted    checkout.HostedCallback
	flow      domain.PaymentFlow
	paymentID string
	convID    string
}

func (m *ReconcilerMock) Submit(ctx context.Context, sessionID string, req checkout.Request, mode checkout.ResponseMode) checkout.Outcome {
	m.sessionID, m.request, m.mode = sessionID, req, mode
	return m.outcome
}

func (m *ReconcilerMock) Challenge(ctx context.Context, sessionID string) (string, error) {
	m.sessionID = sessionID
	return m.html, m.err
}

func (m *ReconcilerMock) CompleteThreeDs(ctx context.Context, sessionID string, cb checkout.ThreeDsCallback, mode checkout.ResponseMode) checkout.Outcome {
	m.sessionID, m.threeDs, m.mode = sessionID, cb, mode
	return m.outcome
}

func (m *ReconcilerMock) CompleteHosted(ctx context.Context, sessionID string, flow domain.PaymentFlow, cb checkout.HostedCallback, mode checkout.ResponseMode) checkout.Outcome {
	m.sessionID, m.flow, m.hosted, m.mode = sessionID, flow, cb, mode
	return m.outcome
}

func (m *ReconcilerMock) ConfirmOrder(ctx context.Context, paymentID, conversationID string, flow domain.PaymentFlow) domain.PaymentResult {
	m.paymentID, m.convID, m.flow = paymentID, conversationID, flow
	return m.confirmed
}

type InstallmentMock struct {
	opts   *gateway.InstallmentOptions
	err    error
	bin    string
	amount decimal.Decimal
	calls  int
}

func (m *InstallmentMock) LookupInstallments(ctx context.Context, bin string, amount decimal.Decimal) (*gateway.InstallmentOptions, error) {
	m.calls++
	m.bin, m.amount = bin, amount
	return m.opts, m.err
}

func withSession(r *http.Request, sessionID string, mode checkout.ResponseMode) *http.Request {
	ctx := context.WithValue(r.Context(), sessionKey, sessionID)
	ctx = context.WithValue(ctx, responseModeKey, mode)
	return r.WithContext(ctx)
}

func sampleSummary() *domain.CartSummary {
	return &domain.CartSummary{
		Items: []domain.CartSummaryItem{
			{ProductID: 1, Name: "Mug", Quantity: 2, UnitPrice: decimal.NewFromInt(50), EffectivePrice: decimal.NewFromInt(50), LineTotal: decimal.NewFromInt(100)},
		},
		Subtotal:      decimal.NewFromInt(100),
		Total:         decimal.NewFromInt(100),
		Currency:      "TRY",
		ItemCount:     1,
		TotalQuantity: 2,
	}
}
