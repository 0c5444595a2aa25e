package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func directSuccess() domain.PaymentResult {
	return domain.PaymentResult{
		Status:         domain.PaymentSuccess,
		PaymentID:      "pay-1",
		ConversationID: "conv-1",
		Price:          decimal.NewFromInt(300),
		PaidPrice:      decimal.NewFromInt(300),
		Currency:       "TRY",
		BasketID:       "B-01TESTID",
	}
}

func TestSubmit_DirectSuccess_JSON(t *testing.T) {
	f := setup(t)
	f.gw.DirectResult = directSuccess()

	out := f.rec.Submit(context.Background(), testSession, sampleRequest(domain.FlowDirectCard), ModeJSON)

	assert.Equal(t, domain.CheckoutSucceeded, out.State)
	assert.Equal(t, http.StatusOK, out.StatusCode)
	assert.False(t, out.IsRedirect())
	assert.Equal(t, StatusSuccess, out.Body.Status)
	assert.Equal(t, "pay-1", out.Body.PaymentID)
	assert.Equal(t, "pay-1", out.Body.OrderID)
	assert.Equal(t, "direct_card", out.Body.PaymentMethod)
	require.NotNil(t, out.Body.PaidPrice)
	assert.True(t, decimal.NewFromInt(300).Equal(*out.Body.PaidPrice))

	assert.Equal(t, 1, f.cart.Cleared)
	require.Len(t, f.pub.Events, 1)
	ev := f.pub.Events[0]
	assert.Equal(t, "pay-1", ev.OrderID)
	assert.Equal(t, testSession, ev.SessionID)
	assert.Equal(t, "direct_card", ev.PaymentMethod)
	require.Len(t, ev.Items, 1)
	assert.Equal(t, 3, ev.Items[0].Quantity)

	require.Len(t, f.gw.Attempts, 1)
	a := f.gw.Attempts[0]
	assert.Equal(t, "conv-1", a.ConversationID)
	assert.Equal(t, "B-01TESTID", a.BasketID)
	assert.False(t, a.Use3DS)
	assert.Empty(t, a.CallbackURL)
	assert.True(t, decimal.NewFromInt(300).Equal(a.Basket.Total))
}

func TestSubmit_DirectSuccess_Browser(t *testing.T) {
	f := setup(t)
	f.gw.DirectResult = directSuccess()

	out := f.rec.Submit(context.Background(), testSession, sampleRequest(domain.FlowDirectCard), ModeBrowser)

	assert.Equal(t, domain.CheckoutSucceeded, out.State)
	assert.True(t, out.IsRedirect())
	assert.Equal(t, http.StatusFound, out.StatusCode)
	assert.Equal(t, "/checkout/success?orderId=pay-1&paymentId=pay-1&paymentMethod=direct_card", out.Location)
	assert.Equal(t, 1, f.cart.Cleared)
}

func TestSubmit_FallbackOrderID(t *testing.T) {
	f := setup(t)
	res := directSuccess()
	res.PaymentID = ""
	f.gw.DirectResult = res

	out := f.rec.Submit(context.Background(), testSession, sampleRequest(domain.FlowDirectCard), ModeBrowser)

	assert.Equal(t, domain.CheckoutSucceeded, out.State)
	assert.Equal(t, "ORD-01TESTID", out.Body.OrderID)
	assert.Equal(t, "/checkout/success?orderId=ORD-01TESTID&paymentMethod=direct_card", out.Location)
}

func TestSubmit_GeneratesConversationID(t *testing.T) {
	f := setup(t)
	f.gw.DirectResult = directSuccess()
	req := sampleRequest(domain.FlowDirectCard)
	req.ConversationID = ""

	f.rec.Submit(context.Background(), testSession, req, ModeJSON)

	require.Len(t, f.gw.Attempts, 1)
	assert.NotEmpty(t, f.gw.Attempts[0].ConversationID)
}

func TestSubmit_DirectFailure(t *testing.T) {
	t.Run("json carries gateway message", func(t *testing.T) {
		f := setup(t)
		f.gw.DirectResult = domain.ErrorResult("conv-1", "10051", "Insufficient funds")

		out := f.rec.Submit(context.Background(), testSession, sampleRequest(domain.FlowDirectCard), ModeJSON)

		assert.Equal(t, domain.CheckoutFailed, out.State)
		assert.Equal(t, http.StatusBadRequest, out.StatusCode)
		assert.Equal(t, StatusFailure, out.Body.Status)
		assert.Equal(t, "10051", out.Body.ErrorCode)
		assert.Equal(t, "Insufficient funds", out.Body.Message)
		assert.Zero(t, f.cart.Cleared)
		assert.Empty(t, f.pub.Events)
	})

	t.Run("browser redirected with message", func(t *testing.T) {
		f := setup(t)
		f.gw.DirectResult = domain.ErrorResult("conv-1", "10051", "Insufficient funds")

		out := f.rec.Submit(context.Background(), testSession, sampleRequest(domain.FlowDirectCard), ModeBrowser)

		assert.Equal(t, domain.CheckoutFailed, out.State)
		assert.Equal(t, "/checkout/fail?errorMessage=Insufficient+funds", out.Location)
		assert.Zero(t, f.cart.Cleared)
	})

	t.Run("fallback message", func(t *testing.T) {
		f := setup(t)
		f.gw.DirectResult = domain.ErrorResult("conv-1", "", "")

		out := f.rec.Submit(context.Background(), testSession, sampleRequest(domain.FlowDirectCard), ModeJSON)

		assert.Equal(t, fallbackMessage("en"), out.Body.Message)
		assert.Equal(t, CodePaymentFailed, out.Body.ErrorCode)
	})

	t.Run("transport failure", func(t *testing.T) {
		f := setup(t)
		f.gw.DirectResult = domain.ErrorResult("conv-1", "gateway_timeout", "payment gateway did not respond in time")

		out := f.rec.Submit(context.Background(), testSession, sampleRequest(domain.FlowDirectCard), ModeJSON)

		assert.Equal(t, domain.CheckoutFailed, out.State)
		assert.Equal(t, "gateway_timeout", out.Body.ErrorCode)
	})
}

func TestSubmit_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Request)
	}{
		{"unknown flow", func(r *Request) { r.Flow = "cash" }},
		{"missing name", func(r *Request) { r.Buyer.Name = " " }},
		{"bad email", func(r *Request) { r.Buyer.Email = "ada" }},
		{"missing city", func(r *Request) { r.Buyer.Address.City = "" }},
		{"missing card", func(r *Request) { r.Card = nil }},
		{"short card number", func(r *Request) { r.Card.Number = "4111" }},
		{"bad month", func(r *Request) { r.Card.ExpireMonth = "13" }},
		{"bad cvc", func(r *Request) { r.Card.CVC = "12a" }},
		{"installment too high", func(r *Request) { r.Installment = 24 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			req := sampleRequest(domain.FlowDirectCard)
			tt.mutate(&req)

			out := f.rec.Submit(context.Background(), testSession, req, ModeJSON)

			assert.Equal(t, domain.CheckoutFailed, out.State)
			assert.Equal(t, http.StatusBadRequest, out.StatusCode)
			assert.Equal(t, CodeValidation, out.Body.ErrorCode)
			assert.Empty(t, f.gw.Attempts, "invalid input must never reach the gateway")
		})
	}
}

func TestValidate_HostedFlowNeedsNoCard(t *testing.T) {
	assert.NoError(t, validate(sampleRequest(domain.FlowCheckoutForm)))

	err := validate(Request{Flow: domain.FlowDirectCard})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "card is required")
}

func TestSubmit_CartProblems(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		f := setup(t)
		f.cart.Summary = &domain.CartSummary{}

		out := f.rec.Submit(context.Background(), testSession, sampleRequest(domain.FlowDirectCard), ModeJSON)

		assert.Equal(t, http.StatusBadRequest, out.StatusCode)
		assert.Equal(t, CodeCartEmpty, out.Body.ErrorCode)
		assert.Empty(t, f.gw.Attempts)
	})

	t.Run("unavailable", func(t *testing.T) {
		f := setup(t)
		f.cart.Err = cache.ErrCartUnavailable

		out := f.rec.Submit(context.Background(), testSession, sampleRequest(domain.FlowDirectCard), ModeJSON)

		assert.Equal(t, http.StatusServiceUnavailable, out.StatusCode)
		assert.Equal(t, CodeCartUnavailable, out.Body.ErrorCode)
		assert.Empty(t, f.gw.Attempts)
	})
}

func TestSubmit_SuccessSurvivesSideEffectFailures(t *testing.T) {
	f := setup(t)
	f.gw.DirectResult = directSuccess()
	f.cart.ClearErr = errors.New("redis down")
	f.pub.Err = errors.New("broker down")

	out := f.rec.Submit(context.Background(), testSession, sampleRequest(domain.FlowDirectCard), ModeJSON)

	assert.Equal(t, domain.CheckoutSucceeded, out.State)
	assert.Equal(t, http.StatusOK, out.StatusCode)
}

func TestSubmit_ThreeDsPending(t *testing.T) {
	f := setup(t)
	f.gw.ThreeDsResult = domain.PaymentResult{
		Status:         domain.PaymentRequiresThreeDs,
		PaymentID:      "pay-3ds",
		ConversationID: "conv-1",
		HTMLContent:    "<html>acs</html>",
	}

	t.Run("json", func(t *testing.T) {
		out := f.rec.Submit(context.Background(), testSession, sampleRequest(domain.FlowThreeDS), ModeJSON)

		assert.Equal(t, domain.CheckoutPendingThreeDs, out.State)
		assert.Equal(t, http.StatusOK, out.StatusCode)
		assert.Equal(t, StatusPending, out.Body.Status)
		assert.True(t, out.Body.Requires3DS)
		assert.Equal(t, "/checkout/3ds", out.Body.RedirectURL)

		raw, err := json.Marshal(out.Body)
		require.NoError(t, err)
		assert.NotContains(t, string(raw), "<html>", "challenge markup must not leak into JSON")
	})

	t.Run("browser", func(t *testing.T) {
		out := f.rec.Submit(context.Background(), testSession, sampleRequest(domain.FlowThreeDS), ModeBrowser)

		assert.Equal(t, domain.CheckoutPendingThreeDs, out.State)
		assert.Equal(t, "/checkout/3ds", out.Location)
	})

	html, err := f.rec.Challenge(context.Background(), testSession)
	require.NoError(t, err)
	assert.Equal(t, "<html>acs</html>", html)

	last := f.gw.Attempts[len(f.gw.Attempts)-1]
	assert.True(t, last.Use3DS)
	assert.Equal(t, "https://shop.example.com/checkout/3ds/callback", last.CallbackURL)
	assert.Zero(t, f.cart.Cleared, "cart stays until the payment is finalized")
}

func TestSubmit_ThreeDsInitFailureIs422(t *testing.T) {
	f := setup(t)
	f.gw.ThreeDsResult = domain.ErrorResult("conv-1", "5001", "Card not enrolled")

	out := f.rec.Submit(context.Background(), testSession, sampleRequest(domain.FlowThreeDS), ModeJSON)

	assert.Equal(t, domain.CheckoutFailed, out.State)
	assert.Equal(t, http.StatusUnprocessableEntity, out.StatusCode)
	_, err := f.rec.Challenge(context.Background(), testSession)
	assert.ErrorIs(t, err, ErrNoPendingPayment)
}

func TestSubmit_UnexpectedStatusForFlow(t *testing.T) {
	f := setup(t)
	f.gw.ThreeDsResult = directSuccess()

	out := f.rec.Submit(context.Background(), testSession, sampleRequest(domain.FlowThreeDS), ModeJSON)

	assert.Equal(t, domain.CheckoutFailed, out.State)
	assert.Equal(t, CodeUnexpectedStatus, out.Body.ErrorCode)
	assert.Zero(t, f.cart.Cleared)
}

func TestSubmit_SessionStoreDown(t *testing.T) {
	f := setup(t)
	f.gw.ThreeDsResult = domain.PaymentResult{Status: domain.PaymentRequiresThreeDs, PaymentID: "pay-3ds", HTMLContent: "<html/>"}
	f.mr.Close()

	out := f.rec.Submit(context.Background(), testSession, sampleRequest(domain.FlowThreeDS), ModeJSON)

	assert.Equal(t, domain.CheckoutFailed, out.State)
	assert.Equal(t, http.StatusServiceUnavailable, out.StatusCode)
	assert.Equal(t, CodeSessionUnavailable, out.Body.ErrorCode)
}

func TestSubmit_HostedPending(t *testing.T) {
	tests := []struct {
		flow  domain.PaymentFlow
		setup func(*MockGateway, domain.PaymentResult)
	}{
		{domain.FlowCheckoutForm, func(g *MockGateway, r domain.PaymentResult) { g.FormResult = r }},
		{domain.FlowWallet, func(g *MockGateway, r domain.PaymentResult) { g.WalletResult = r }},
		{domain.FlowWalletQuick, func(g *MockGateway, r domain.PaymentResult) { g.WalletResult = r }},
	}
	for _, tt := range tests {
		t.Run(tt.flow.String(), func(t *testing.T) {
			f := setup(t)
			tt.setup(f.gw, domain.PaymentResult{
				Status:      domain.PaymentRequiresHosted,
				Token:       "tok-1",
				RedirectURL: "https://pay.example.com/page?token=tok-1",
			})

			browser := f.rec.Submit(context.Background(), testSession, sampleRequest(tt.flow), ModeBrowser)
			assert.Equal(t, domain.CheckoutPendingHosted, browser.State)
			assert.Equal(t, "https://pay.example.com/page?token=tok-1", browser.Location)

			api := f.rec.Submit(context.Background(), testSession, sampleRequest(tt.flow), ModeJSON)
			assert.Equal(t, StatusPending, api.Body.Status)
			assert.Equal(t, "tok-1", api.Body.Token)
			assert.Equal(t, "https://pay.example.com/page?token=tok-1", api.Body.RedirectURL)

			var pending domain.PendingHostedSession
			require.NoError(t, f.sessions.Get(context.Background(), testSession, keyPendingHosted, &pending))
			assert.Equal(t, tt.flow, pending.Flow)
			assert.Equal(t, "tok-1", pending.Token)
			assert.Equal(t, "https://shop.example.com/checkout/callback/"+tt.flow.String(), f.gw.Attempts[0].CallbackURL)
		})
	}
}

func TestConfirmOrder_CredentialSelection(t *testing.T) {
	success := domain.PaymentResult{Status: domain.PaymentSuccess, PaymentID: "pay-q"}

	t.Run("quick wallet found on first attempt", func(t *testing.T) {
		f := setup(t)
		f.gw.Retrieve[domain.CredentialsQuickWallet] = success

		res := f.rec.ConfirmOrder(context.Background(), "pay-q", "conv-1", domain.FlowWalletQuick)

		assert.True(t, res.IsSuccess())
		assert.Equal(t, []domain.CredentialSet{domain.CredentialsQuickWallet}, f.gw.RetrieveCalls)
	})

	t.Run("quick wallet falls back to default", func(t *testing.T) {
		f := setup(t)
		f.gw.Retrieve[domain.CredentialsDefault] = success

		res := f.rec.ConfirmOrder(context.Background(), "pay-q", "conv-1", domain.FlowWalletQuick)

		assert.True(t, res.IsSuccess())
		assert.Equal(t, []domain.CredentialSet{domain.CredentialsQuickWallet, domain.CredentialsDefault}, f.gw.RetrieveCalls)
	})

	t.Run("other flows use default only", func(t *testing.T) {
		f := setup(t)

		res := f.rec.ConfirmOrder(context.Background(), "pay-q", "conv-1", domain.FlowWallet)

		assert.False(t, res.IsSuccess())
		assert.Equal(t, []domain.CredentialSet{domain.CredentialsDefault}, f.gw.RetrieveCalls)
	})
}

func TestResponseModeString(t *testing.T) {
	assert.Equal(t, "json", ModeJSON.String())
	assert.Equal(t, "browser", ModeBrowser.String())
}

func TestTransition(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	assert.NoError(t, f.rec.transition(ctx, domain.CheckoutSubmitted, domain.CheckoutPendingThreeDs))
	assert.NoError(t, f.rec.transition(ctx, domain.CheckoutSubmitted, domain.CheckoutPendingHosted))
	assert.NoError(t, f.rec.transition(ctx, domain.CheckoutPendingHosted, domain.CheckoutSucceeded))
	assert.ErrorIs(t, f.rec.transition(ctx, domain.CheckoutPendingThreeDs, domain.CheckoutPendingHosted), ErrIllegalTransition)
	assert.ErrorIs(t, f.rec.transition(ctx, domain.CheckoutFailed, domain.CheckoutSucceeded), ErrIllegalTransition)
}

func TestSucceed_FromTerminalStateIsRejected(t *testing.T) {
	f := setup(t)

	out := f.rec.succeed(context.Background(), domain.CheckoutFailed, testSession, ModeJSON, domain.FlowThreeDS, directSuccess(), sampleSummary())

	assert.Equal(t, domain.CheckoutFailed, out.State)
	assert.Equal(t, http.StatusInternalServerError, out.StatusCode)
	assert.Equal(t, CodeUnexpectedStatus, out.Body.ErrorCode)
	assert.Zero(t, f.cart.Cleared)
	assert.Empty(t, f.pub.Events)
}
