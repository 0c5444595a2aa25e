package checkout

import (
	"net/http"
	"net/url"

	"github.com/fjod/storefront/internal/domain"
	"github.com/shopspring/decimal"
)

// ResponseMode is decided once per inbound request and tells the reconciler whether the
// caller wants a JSON body or a browser redirect.
type ResponseMode int

const (
	ModeBrowser ResponseMode = iota
	ModeJSON
)

func (m ResponseMode) String() string {
	if m == ModeJSON {
		return "json"
	}
	return "browser"
}

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusPending = "pending"
)

// Response is the JSON body sent to API callers.
type Response struct {
	Status         string           `json:"status"`
	Message        string           `json:"message,omitempty"`
	ErrorCode      string           `json:"errorCode,omitempty"`
	OrderID        string           `json:"orderId,omitempty"`
	PaymentID      string           `json:"paymentId,omitempty"`
	ConversationID string           `json:"conversationId,omitempty"`
	PaymentMethod  string           `json:"paymentMethod,omitempty"`
	BasketID       string           `json:"basketId,omitempty"`
	Price          *decimal.Decimal `json:"price,omitempty"`
	PaidPrice      *decimal.Decimal `json:"paidPrice,omitempty"`
	Currency       string           `json:"currency,omitempty"`
	FraudStatus    int              `json:"fraudStatus,omitempty"`
	Requires3DS    bool             `json:"requires3ds,omitempty"`
	RedirectURL    string           `json:"redirectUrl,omitempty"`
	Token          string           `json:"token,omitempty"`
}

// Outcome is what the HTTP layer must send back. In browser mode Location is set and
// StatusCode is a redirect; in JSON mode Body is written with StatusCode.
type Outcome struct {
	State      domain.CheckoutState
	Mode       ResponseMode
	StatusCode int
	Location   string
	Body       Response
}

func (o Outcome) IsRedirect() bool {
	return o.Mode == ModeBrowser && o.Location != ""
}

func jsonOutcome(state domain.CheckoutState, status int, body Response) Outcome {
	return Outcome{State: state, Mode: ModeJSON, StatusCode: status, Body: body}
}

func redirectOutcome(state domain.CheckoutState, location string, body Response) Outcome {
	return Outcome{State: state, Mode: ModeBrowser, StatusCode: http.StatusFound, Location: location, Body: body}
}

func withQuery(path string, params url.Values) string {
	if len(params) == 0 {
		return path
	}
	return path + "?" + params.Encode()
}

func successBody(orderID string, flow domain.PaymentFlow, r domain.PaymentResult) Response {
	body := Response{
		Status:         StatusSuccess,
		OrderID:        orderID,
		PaymentID:      r.PaymentID,
		ConversationID: r.ConversationID,
		PaymentMethod:  flow.String(),
		BasketID:       r.BasketID,
		Currency:       r.Currency,
		FraudStatus:    r.FraudStatus,
	}
	if !r.Price.IsZero() {
		price := r.Price
		body.Price = &price
	}
	if !r.PaidPrice.IsZero() {
		paid := r.PaidPrice
		body.PaidPrice = &paid
	}
	return body
}
