package checkout

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/logger"
	"github.com/fjod/storefront/internal/signature"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	threeDsStatusSuccess = "success"
	mdStatusAuthorized   = "1"
	hostedStatusSuccess  = "SUCCESS"
)

// ThreeDsCallback holds the fields the gateway sends back after the 3DS challenge.
type ThreeDsCallback struct {
	Status           string
	PaymentID        string
	ConversationData string
	ConversationID   string
	MDStatus         string
	Signature        string
}

// HostedCallback holds the signed fields of a checkout-form or wallet callback.
type HostedCallback struct {
	Token          string
	PaymentStatus  string
	PaymentID      string
	ConversationID string
	BasketID       string
	Currency       string
	PaidPrice      string
	Price          string
	Signature      string
}

// CompleteThreeDs finishes a 3DS payment. The pending payment is looked up by session, never by
// anything in the callback body, and is claimed before anything is verified so that a repeated
// callback cannot finalize the same payment twice.
func (r *Reconciler) CompleteThreeDs(ctx context.Context, sessionID string, cb ThreeDsCallback, mode ResponseMode) Outcome {
	flow := domain.FlowThreeDS
	from := domain.CheckoutPendingThreeDs
	log := logger.FromContext(ctx, r.log).WithFields(logrus.Fields{"flow": flow.String(), "payment_id": cb.PaymentID})

	var pending domain.PendingThreeDsSession
	if err := r.sessions.Take(ctx, sessionID, keyPendingThreeDs, &pending); err != nil {
		return r.missingPending(ctx, from, mode, flow, cb.ConversationID, err)
	}

	secret, ok := r.gateway.Secret(domain.CredentialsDefault)
	fields := signature.ThreeDsCallback{
		Status:           cb.Status,
		PaymentID:        cb.PaymentID,
		ConversationData: cb.ConversationData,
		ConversationID:   cb.ConversationID,
		MDStatus:         cb.MDStatus,
	}.Fields()
	if !ok || !signature.Verify(cb.Signature, fields, secret) {
		log.Warn("3DS callback signature mismatch")
		return r.fail(ctx, from, mode, flow,
			domain.ErrorResult(pending.ConversationID, CodeSignatureMismatch, "payment callback could not be verified"), 0)
	}
	if cb.PaymentID != pending.PaymentID || (cb.ConversationID != "" && cb.ConversationID != pending.ConversationID) {
		log.WithField("expected_payment_id", pending.PaymentID).Warn("3DS callback does not match pending payment")
		return r.fail(ctx, from, mode, flow,
			domain.ErrorResult(pending.ConversationID, CodePaymentMismatch, "payment callback does not match this checkout"), 0)
	}
	if cb.Status != threeDsStatusSuccess || cb.MDStatus != mdStatusAuthorized {
		log.WithField("md_status", cb.MDStatus).Info("3DS authentication was not completed")
		result := domain.ErrorResult(pending.ConversationID, CodeThreeDsFailed, "3D Secure authentication failed")
		result.PaymentID = pending.PaymentID
		return r.fail(ctx, from, mode, flow, result, 0)
	}

	result := r.gateway.FinalizeThreeDsPayment(ctx, pending.PaymentID, pending.ConversationID, cb.ConversationData)
	if !result.IsSuccess() {
		if result.PaymentID == "" {
			result.PaymentID = pending.PaymentID
		}
		return r.fail(ctx, from, mode, flow, result, 0)
	}
	if result.PaymentID == "" {
		result.PaymentID = pending.PaymentID
	}
	if result.BasketID == "" {
		result.BasketID = pending.BasketID
	}
	return r.succeed(ctx, from, sessionID, mode, flow, result, nil)
}

// CompleteHosted finishes a checkout-form or wallet payment. The callback is honored only when
// its token matches the session's pending payment and its signature verifies with the
// secret of the flow's credential set.
func (r *Reconciler) CompleteHosted(ctx context.Context, sessionID string, flow domain.PaymentFlow, cb HostedCallback, mode ResponseMode) Outcome {
	from := domain.CheckoutPendingHosted
	log := logger.FromContext(ctx, r.log).WithFields(logrus.Fields{"flow": flow.String(), "payment_id": cb.PaymentID})

	if !flow.IsHosted() {
		return r.fail(ctx, from, mode, flow,
			domain.ErrorResult(cb.ConversationID, CodeValidation, "payment method has no hosted callback"), http.StatusBadRequest)
	}

	var pending domain.PendingHostedSession
	if err := r.sessions.Take(ctx, sessionID, keyPendingHosted, &pending); err != nil {
		return r.missingPending(ctx, from, mode, flow, cb.ConversationID, err)
	}

	if pending.Flow != flow || cb.Token != pending.Token {
		log.Warn("hosted callback does not match pending payment")
		return r.fail(ctx, from, mode, flow,
			domain.ErrorResult(pending.ConversationID, CodePaymentMismatch, "payment callback does not match this checkout"), 0)
	}

	secret, ok := r.gateway.Secret(flow.CredentialSet())
	fields := signature.HostedResult{
		PaymentStatus:  cb.PaymentStatus,
		PaymentID:      cb.PaymentID,
		Currency:       cb.Currency,
		BasketID:       cb.BasketID,
		ConversationID: cb.ConversationID,
		PaidPrice:      cb.PaidPrice,
		Price:          cb.Price,
		Token:          cb.Token,
	}.Fields()
	if !ok || !signature.Verify(cb.Signature, fields, secret) {
		log.Warn("hosted callback signature mismatch")
		return r.fail(ctx, from, mode, flow,
			domain.ErrorResult(pending.ConversationID, CodeSignatureMismatch, "payment callback could not be verified"), 0)
	}

	if !strings.EqualFold(cb.PaymentStatus, hostedStatusSuccess) {
		result := domain.ErrorResult(pending.ConversationID, CodePaymentFailed, "")
		result.PaymentID = cb.PaymentID
		return r.fail(ctx, from, mode, flow, result, 0)
	}

	result := domain.PaymentResult{
		Status:         domain.PaymentSuccess,
		PaymentID:      cb.PaymentID,
		ConversationID: pending.ConversationID,
		Currency:       cb.Currency,
		BasketID:       cb.BasketID,
		Token:          cb.Token,
	}
	result.Price, _ = decimal.NewFromString(cb.Price)
	result.PaidPrice, _ = decimal.NewFromString(cb.PaidPrice)
	return r.succeed(ctx, from, sessionID, mode, flow, result, nil)
}

func (r *Reconciler) missingPending(ctx context.Context, from domain.CheckoutState, mode ResponseMode,
	flow domain.PaymentFlow, conversationID string, err error) Outcome {
	if errors.Is(err, cache.ErrSessionMiss) {
		return r.fail(ctx, from, mode, flow,
			domain.ErrorResult(conversationID, CodeSessionExpired, "no pending payment for this session"), 0)
	}
	logger.FromContext(ctx, r.log).WithError(err).Error("failed to load pending payment")
	return r.fail(ctx, from, mode, flow,
		domain.ErrorResult(conversationID, CodeSessionUnavailable, "checkout session is temporarily unavailable"), http.StatusServiceUnavailable)
}
