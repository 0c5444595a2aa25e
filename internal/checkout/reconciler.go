package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/logger"
	"github.com/fjod/storefront/internal/publisher"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

const (
	keyPendingThreeDs = "pending_3ds"
	keyPendingHosted  = "pending_hosted"

	orderPrefix  = "ORD-"
	basketPrefix = "B-"

	ThreeDsCallbackPath = "/checkout/3ds/callback"
	HostedCallbackPath  = "/checkout/callback/"
)

var (
	ErrNoPendingPayment  = errors.New("no pending payment for session")
	ErrIllegalTransition = errors.New("illegal checkout transition")
)

// Gateway is the part of the payment gateway client the reconciler drives.
type Gateway interface {
	InitializeDirectPayment(ctx context.Context, a domain.PaymentAttempt) domain.PaymentResult
	InitializeThreeDsPayment(ctx context.Context, a domain.PaymentAttempt) domain.PaymentResult
	FinalizeThreeDsPayment(ctx context.Context, paymentID, conversationID, conversationData string) domain.PaymentResult
	InitializeCheckoutForm(ctx context.Context, a domain.PaymentAttempt) domain.PaymentResult
	InitializeWalletPayment(ctx context.Context, a domain.PaymentAttempt) domain.PaymentResult
	RetrievePayment(ctx context.Context, paymentID, conversationID string, set domain.CredentialSet) domain.PaymentResult
	Secret(set domain.CredentialSet) (string, bool)
}

type Cart interface {
	GetSummary(ctx context.Context, sessionID string) (*domain.CartSummary, error)
	ClearCart(ctx context.Context, sessionID string) error
}

type Config struct {
	PublicBaseURL string
	SuccessPath   string
	FailPath      string
	ChallengePath string
	Locale        string
}

type Reconciler struct {
	gateway   Gateway
	cart      Cart
	sessions  cache.SessionStore
	publisher publisher.EventPublisher
	cfg       Config
	log       logrus.FieldLogger
	newID     func() string
	now       func() time.Time
}

func NewReconciler(gw Gateway, cart Cart, sessions cache.SessionStore, pub publisher.EventPublisher, cfg Config, log logrus.FieldLogger) *Reconciler {
	if pub == nil {
		pub = publisher.NoopPublisher{}
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	return &Reconciler{
		gateway:   gw,
		cart:      cart,
		sessions:  sessions,
		publisher: pub,
		cfg:       cfg,
		log:       log,
		newID:     func() string { return ulid.Make().String() },
		now:       time.Now,
	}
}

// Request is a checkout submission as received from the storefront.
type Request struct {
	Flow           domain.PaymentFlow
	ConversationID string
	Buyer          domain.BuyerInfo
	Card           *domain.PaymentCard
	Installment    int
}

// Submit starts a payment for the session's cart.
func (r *Reconciler) Submit(ctx context.Context, sessionID string, req Request, mode ResponseMode) Outcome {
	log := logger.FromContext(ctx, r.log).WithFields(logrus.Fields{"flow": req.Flow.String(), "mode": mode.String()})

	if err := validate(req); err != nil {
		return r.fail(ctx, domain.CheckoutSubmitted, mode, req.Flow,
			domain.ErrorResult(req.ConversationID, CodeValidation, err.Error()), http.StatusBadRequest)
	}

	summary, err := r.cart.GetSummary(ctx, sessionID)
	if err != nil {
		log.WithError(err).Error("failed to load cart for checkout")
		return r.fail(ctx, domain.CheckoutSubmitted, mode, req.Flow,
			domain.ErrorResult(req.ConversationID, CodeCartUnavailable, "cart is temporarily unavailable"), http.StatusServiceUnavailable)
	}
	if summary.IsEmpty() {
		return r.fail(ctx, domain.CheckoutSubmitted, mode, req.Flow,
			domain.ErrorResult(req.ConversationID, CodeCartEmpty, "cart is empty"), http.StatusBadRequest)
	}

	attempt := domain.PaymentAttempt{
		Flow:           req.Flow,
		ConversationID: req.ConversationID,
		BasketID:       basketPrefix + r.newID(),
		Buyer:          req.Buyer,
		Card:           req.Card,
		Installment:    req.Installment,
		Basket:         *summary,
		Use3DS:         req.Flow == domain.FlowThreeDS,
		CallbackURL:    r.callbackURL(req.Flow),
	}
	if attempt.ConversationID == "" {
		attempt.ConversationID = uuid.NewString()
	}
	log = log.WithFields(logrus.Fields{"conversation_id": attempt.ConversationID, "basket_id": attempt.BasketID})

	result := r.initialize(ctx, attempt)
	switch {
	case result.Status == domain.PaymentSuccess && attempt.Flow == domain.FlowDirectCard:
		return r.succeed(ctx, domain.CheckoutSubmitted, sessionID, mode, attempt.Flow, result, summary)

	case result.Status == domain.PaymentRequiresThreeDs && attempt.Flow == domain.FlowThreeDS:
		if err := r.transition(ctx, domain.CheckoutSubmitted, domain.CheckoutPendingThreeDs); err != nil {
			return r.rejectTransition(ctx, domain.CheckoutSubmitted, mode, attempt.Flow, attempt.ConversationID)
		}
		pending := domain.PendingThreeDsSession{
			PaymentID:      result.PaymentID,
			ConversationID: attempt.ConversationID,
			HTMLContent:    result.HTMLContent,
			BasketID:       attempt.BasketID,
			Total:          summary.Total,
		}
		if err := r.sessions.Put(ctx, sessionID, keyPendingThreeDs, pending); err != nil {
			log.WithError(err).Error("failed to save pending 3DS session")
			return r.fail(ctx, domain.CheckoutSubmitted, mode, attempt.Flow,
				domain.ErrorResult(attempt.ConversationID, CodeSessionUnavailable, "checkout session could not be saved"), http.StatusServiceUnavailable)
		}
		log.WithField("payment_id", result.PaymentID).Info("3DS challenge required")
		return r.pendingThreeDs(mode, result)

	case result.Status == domain.PaymentRequiresHosted && attempt.Flow.IsHosted():
		if err := r.transition(ctx, domain.CheckoutSubmitted, domain.CheckoutPendingHosted); err != nil {
			return r.rejectTransition(ctx, domain.CheckoutSubmitted, mode, attempt.Flow, attempt.ConversationID)
		}
		pending := domain.PendingHostedSession{
			Token:          result.Token,
			ConversationID: attempt.ConversationID,
			BasketID:       attempt.BasketID,
			Flow:           attempt.Flow,
		}
		if err := r.sessions.Put(ctx, sessionID, keyPendingHosted, pending); err != nil {
			log.WithError(err).Error("failed to save pending hosted session")
			return r.fail(ctx, domain.CheckoutSubmitted, mode, attempt.Flow,
				domain.ErrorResult(attempt.ConversationID, CodeSessionUnavailable, "checkout session could not be saved"), http.StatusServiceUnavailable)
		}
		log.Info("redirecting to hosted payment page")
		return r.pendingHosted(mode, result)

	case result.Status == domain.PaymentError:
		return r.fail(ctx, domain.CheckoutSubmitted, mode, attempt.Flow, result, 0)

	default:
		log.WithField("status", result.Status).Error("gateway returned a status the flow does not allow")
		return r.fail(ctx, domain.CheckoutSubmitted, mode, attempt.Flow,
			domain.ErrorResult(attempt.ConversationID, CodeUnexpectedStatus, ""), 0)
	}
}

func (r *Reconciler) initialize(ctx context.Context, a domain.PaymentAttempt) domain.PaymentResult {
	switch a.Flow {
	case domain.FlowDirectCard:
		return r.gateway.InitializeDirectPayment(ctx, a)
	case domain.FlowThreeDS:
		return r.gateway.InitializeThreeDsPayment(ctx, a)
	case domain.FlowCheckoutForm:
		return r.gateway.InitializeCheckoutForm(ctx, a)
	default:
		return r.gateway.InitializeWalletPayment(ctx, a)
	}
}

// Challenge returns the 3DS challenge page saved for the session.
func (r *Reconciler) Challenge(ctx context.Context, sessionID string) (string, error) {
	var pending domain.PendingThreeDsSession
	if err := r.sessions.Get(ctx, sessionID, keyPendingThreeDs, &pending); err != nil {
		if errors.Is(err, cache.ErrSessionMiss) {
			return "", ErrNoPendingPayment
		}
		return "", err
	}
	return pending.HTMLContent, nil
}

// ConfirmOrder re-queries a payment for the confirmation page. Quick-wallet payments are
// only known to the quick-wallet account, so that set is asked first and the default set
// only when it does not report success.
func (r *Reconciler) ConfirmOrder(ctx context.Context, paymentID, conversationID string, flow domain.PaymentFlow) domain.PaymentResult {
	if flow.CredentialSet() == domain.CredentialsQuickWallet {
		result := r.gateway.RetrievePayment(ctx, paymentID, conversationID, domain.CredentialsQuickWallet)
		if result.IsSuccess() {
			return result
		}
		logger.FromContext(ctx, r.log).WithFields(logrus.Fields{
			"payment_id": paymentID,
			"code":       result.ErrorCode,
		}).Info("quick wallet lookup failed, falling back to default credentials")
	}
	return r.gateway.RetrievePayment(ctx, paymentID, conversationID, domain.CredentialsDefault)
}

func (r *Reconciler) succeed(ctx context.Context, from domain.CheckoutState, sessionID string, mode ResponseMode,
	flow domain.PaymentFlow, result domain.PaymentResult, summary *domain.CartSummary) Outcome {
	if err := r.transition(ctx, from, domain.CheckoutSucceeded); err != nil {
		return r.rejectTransition(ctx, from, mode, flow, result.ConversationID)
	}

	orderID := result.PaymentID
	if orderID == "" {
		orderID = orderPrefix + r.newID()
	}
	log := logger.FromContext(ctx, r.log).WithFields(logrus.Fields{
		"order_id":        orderID,
		"payment_id":      result.PaymentID,
		"conversation_id": result.ConversationID,
		"flow":            flow.String(),
	})

	if summary == nil {
		if s, err := r.cart.GetSummary(ctx, sessionID); err == nil {
			summary = s
		}
	}
	if err := r.cart.ClearCart(ctx, sessionID); err != nil {
		log.WithError(err).Error("payment succeeded but cart could not be cleared")
	}
	if err := r.publisher.PublishCheckoutSucceeded(ctx, r.event(orderID, sessionID, flow, result, summary)); err != nil {
		log.WithError(err).Error("failed to publish checkout event")
	}
	log.Info("checkout succeeded")

	body := successBody(orderID, flow, result)
	if mode == ModeJSON {
		return jsonOutcome(domain.CheckoutSucceeded, http.StatusOK, body)
	}
	params := url.Values{}
	params.Set("orderId", orderID)
	if result.PaymentID != "" {
		params.Set("paymentId", result.PaymentID)
	}
	params.Set("paymentMethod", flow.String())
	return redirectOutcome(domain.CheckoutSucceeded, withQuery(r.cfg.SuccessPath, params), body)
}

// fail leaves the cart as it is. A zero status picks 422 for the 3DS flow and 400 otherwise.
// The failure is reported even when from has no legal move to FAILED; transition logs it.
func (r *Reconciler) fail(ctx context.Context, from domain.CheckoutState, mode ResponseMode,
	flow domain.PaymentFlow, result domain.PaymentResult, status int) Outcome {
	_ = r.transition(ctx, from, domain.CheckoutFailed)

	message := result.ErrorMessage
	if message == "" {
		message = fallbackMessage(r.cfg.Locale)
	}
	code := result.ErrorCode
	if code == "" {
		code = CodePaymentFailed
	}
	if status == 0 {
		status = http.StatusBadRequest
		if flow == domain.FlowThreeDS {
			status = http.StatusUnprocessableEntity
		}
	}

	logger.FromContext(ctx, r.log).WithFields(logrus.Fields{
		"flow":            flow.String(),
		"code":            code,
		"payment_id":      result.PaymentID,
		"conversation_id": result.ConversationID,
	}).Warn("checkout failed: " + message)

	body := Response{
		Status:         StatusFailure,
		Message:        message,
		ErrorCode:      code,
		OrderID:        result.PaymentID,
		PaymentID:      result.PaymentID,
		ConversationID: result.ConversationID,
		PaymentMethod:  flow.String(),
	}
	if mode == ModeJSON {
		return jsonOutcome(domain.CheckoutFailed, status, body)
	}
	params := url.Values{}
	if result.PaymentID != "" {
		params.Set("orderId", result.PaymentID)
	}
	params.Set("errorMessage", message)
	return redirectOutcome(domain.CheckoutFailed, withQuery(r.cfg.FailPath, params), body)
}

func (r *Reconciler) pendingThreeDs(mode ResponseMode, result domain.PaymentResult) Outcome {
	body := Response{
		Status:         StatusPending,
		Requires3DS:    true,
		RedirectURL:    r.cfg.ChallengePath,
		PaymentID:      result.PaymentID,
		ConversationID: result.ConversationID,
		PaymentMethod:  domain.FlowThreeDS.String(),
	}
	if mode == ModeJSON {
		return jsonOutcome(domain.CheckoutPendingThreeDs, http.StatusOK, body)
	}
	return redirectOutcome(domain.CheckoutPendingThreeDs, r.cfg.ChallengePath, body)
}

func (r *Reconciler) pendingHosted(mode ResponseMode, result domain.PaymentResult) Outcome {
	body := Response{
		Status:         StatusPending,
		RedirectURL:    result.RedirectURL,
		Token:          result.Token,
		ConversationID: result.ConversationID,
	}
	if mode == ModeJSON {
		return jsonOutcome(domain.CheckoutPendingHosted, http.StatusOK, body)
	}
	return redirectOutcome(domain.CheckoutPendingHosted, result.RedirectURL, body)
}

// transition is the single gate for checkout state changes.
func (r *Reconciler) transition(ctx context.Context, from, to domain.CheckoutState) error {
	if !domain.CanTransitionTo(from, to) {
		logger.FromContext(ctx, r.log).WithFields(logrus.Fields{"from": from, "to": to}).
			Error("illegal checkout transition")
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	return nil
}

func (r *Reconciler) rejectTransition(ctx context.Context, from domain.CheckoutState, mode ResponseMode,
	flow domain.PaymentFlow, conversationID string) Outcome {
	return r.fail(ctx, from, mode, flow,
		domain.ErrorResult(conversationID, CodeUnexpectedStatus, ""), http.StatusInternalServerError)
}

func (r *Reconciler) callbackURL(flow domain.PaymentFlow) string {
	switch {
	case flow == domain.FlowThreeDS:
		return r.cfg.PublicBaseURL + ThreeDsCallbackPath
	case flow.IsHosted():
		return r.cfg.PublicBaseURL + HostedCallbackPath + flow.String()
	}
	return ""
}

func (r *Reconciler) event(orderID, sessionID string, flow domain.PaymentFlow, result domain.PaymentResult, summary *domain.CartSummary) publisher.CheckoutSucceeded {
	ev := publisher.CheckoutSucceeded{
		OrderID:        orderID,
		SessionID:      sessionID,
		PaymentID:      result.PaymentID,
		ConversationID: result.ConversationID,
		BasketID:       result.BasketID,
		PaymentMethod:  flow.String(),
		PaidPrice:      result.PaidPrice,
		Currency:       result.Currency,
		CompletedAt:    r.now().UTC(),
	}
	if summary != nil {
		if ev.Currency == "" {
			ev.Currency = summary.Currency
		}
		if ev.PaidPrice.IsZero() {
			ev.PaidPrice = summary.Total
		}
		for _, it := range summary.Items {
			ev.Items = append(ev.Items, publisher.Item{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.EffectivePrice})
		}
	}
	return ev
}
