package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type PaymentFlow string

const (
	FlowDirectCard   PaymentFlow = "direct_card"
	FlowThreeDS      PaymentFlow = "three_ds"
	FlowCheckoutForm PaymentFlow = "checkout_form"
	FlowWallet       PaymentFlow = "wallet"
	FlowWalletQuick  PaymentFlow = "wallet_quick"
)

func ParsePaymentFlow(s string) (PaymentFlow, error) {
	switch f := PaymentFlow(s); f {
	case FlowDirectCard, FlowThreeDS, FlowCheckoutForm, FlowWallet, FlowWalletQuick:
		return f, nil
	}
	return "", fmt.Errorf("unknown payment flow %q", s)
}

// IsHosted reports whether the gateway hosts the payment page for the flow.
func (f PaymentFlow) IsHosted() bool {
	return f == FlowCheckoutForm || f == FlowWallet || f == FlowWalletQuick
}

func (f PaymentFlow) NeedsCard() bool {
	return f == FlowDirectCard || f == FlowThreeDS
}

// CredentialSet returns the gateway credentials a flow must be authenticated with.
func (f PaymentFlow) CredentialSet() CredentialSet {
	if f == FlowWalletQuick {
		return CredentialsQuickWallet
	}
	return CredentialsDefault
}

func (f PaymentFlow) String() string {
	return string(f)
}

type CredentialSet string

const (
	CredentialsDefault     CredentialSet = "default"
	CredentialsQuickWallet CredentialSet = "quick_wallet"
)

type Address struct {
	ContactName string `json:"contactName"`
	City        string `json:"city"`
	Country     string `json:"country"`
	Address     string `json:"address"`
	ZipCode     string `json:"zipCode"`
}

type BuyerInfo struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Surname        string  `json:"surname"`
	Email          string  `json:"email"`
	Phone          string  `json:"phone"`
	IdentityNumber string  `json:"identityNumber"`
	IP             string  `json:"ip"`
	Address        Address `json:"address"`
}

type PaymentCard struct {
	HolderName  string `json:"holderName"`
	Number      string `json:"number"`
	ExpireMonth string `json:"expireMonth"`
	ExpireYear  string `json:"expireYear"`
	CVC         string `json:"cvc"`
}

// PaymentAttempt is one call to the gateway; it lives only for the request that made it.
type PaymentAttempt struct {
	Flow           PaymentFlow
	ConversationID string
	BasketID       string
	Buyer          BuyerInfo
	Card           *PaymentCard
	Installment    int
	Basket         CartSummary
	Use3DS         bool
	CallbackURL    string
}

type PaymentStatus string

const (
	PaymentSuccess         PaymentStatus = "success"
	PaymentError           PaymentStatus = "error"
	PaymentRequiresThreeDs PaymentStatus = "requires_3ds"
	PaymentRequiresHosted  PaymentStatus = "requires_hosted"
)

// PaymentResult is the normalized outcome of any gateway interaction.
type PaymentResult struct {
	Status         PaymentStatus     `json:"status"`
	PaymentID      string            `json:"paymentId,omitempty"`
	ConversationID string            `json:"conversationId,omitempty"`
	FraudStatus    int               `json:"fraudStatus,omitempty"`
	Price          decimal.Decimal   `json:"price"`
	PaidPrice      decimal.Decimal   `json:"paidPrice"`
	Currency       string            `json:"currency,omitempty"`
	BasketID       string            `json:"basketId,omitempty"`
	ErrorCode      string            `json:"errorCode,omitempty"`
	ErrorMessage   string            `json:"errorMessage,omitempty"`
	RedirectURL    string            `json:"redirectUrl,omitempty"`
	HTMLContent    string            `json:"-"`
	Token          string            `json:"token,omitempty"`
	Details        map[string]string `json:"details,omitempty"`
}

func (r PaymentResult) IsSuccess() bool {
	return r.Status == PaymentSuccess
}

// ErrorResult builds an Error result; the conversation id is kept for correlation.
func ErrorResult(conversationID, code, message string) PaymentResult {
	return PaymentResult{
		Status:         PaymentError,
		ConversationID: conversationID,
		ErrorCode:      code,
		ErrorMessage:   message,
	}
}

// PendingThreeDsSession is the server-side state kept between a 3DS initialization and its callback.
type PendingThreeDsSession struct {
	PaymentID      string          `json:"paymentId"`
	ConversationID string          `json:"conversationId"`
	HTMLContent    string          `json:"htmlContent"`
	BasketID       string          `json:"basketId"`
	Total          decimal.Decimal `json:"total"`
}

// PendingHostedSession correlates a checkout-form or wallet callback with the session that started it.
type PendingHostedSession struct {
	Token          string      `json:"token"`
	ConversationID string      `json:"conversationId"`
	BasketID       string      `json:"basketId"`
	Flow           PaymentFlow `json:"flow"`
}
