package gateway

import (
	"context"
	"strconv"

	"github.com/fjod/storefront/internal/domain"
)

const (
	channelWeb   = "WEB"
	groupProduct = "PRODUCT"
	itemPhysical = "PHYSICAL"
	itemCategory = "Storefront"
)

var hostedInstallments = []int{1, 2, 3, 6, 9}

func (c *Client) InitializeDirectPayment(ctx context.Context, a domain.PaymentAttempt) domain.PaymentResult {
	if a.Card == nil {
		return domain.ErrorResult(a.ConversationID, "card_required", "card details are required")
	}
	var resp paymentResponse
	if err := c.do(ctx, domain.CredentialsDefault, pathDirectPayment, c.paymentRequest(a), &resp); err != nil {
		return c.transportResult("direct_payment", a.ConversationID, err)
	}
	return mapPaymentResponse(resp, a.ConversationID)
}

// InitializeThreeDsPayment starts a 3DS payment; on success the result carries the decoded
// challenge page in HTMLContent.
func (c *Client) InitializeThreeDsPayment(ctx context.Context, a domain.PaymentAttempt) domain.PaymentResult {
	if a.Card == nil {
		return domain.ErrorResult(a.ConversationID, "card_required", "card details are required")
	}
	var resp paymentResponse
	if err := c.do(ctx, domain.CredentialsDefault, pathThreeDsInit, c.paymentRequest(a), &resp); err != nil {
		return c.transportResult("three_ds_initialize", a.ConversationID, err)
	}
	return mapThreeDsInitResponse(resp, a.ConversationID)
}

func (c *Client) FinalizeThreeDsPayment(ctx context.Context, paymentID, conversationID, conversationData string) domain.PaymentResult {
	req := threeDsAuthRequest{
		Locale:           c.locale,
		ConversationID:   conversationID,
		PaymentID:        paymentID,
		ConversationData: conversationData,
	}
	var resp paymentResponse
	if err := c.do(ctx, domain.CredentialsDefault, pathThreeDsAuth, req, &resp); err != nil {
		return c.transportResult("three_ds_finalize", conversationID, err)
	}
	return mapPaymentResponse(resp, conversationID)
}

func (c *Client) InitializeCheckoutForm(ctx context.Context, a domain.PaymentAttempt) domain.PaymentResult {
	req := c.paymentRequest(a)
	req.PaymentCard = nil
	req.Installment = 0
	req.EnabledInstallments = hostedInstallments
	var resp paymentResponse
	if err := c.do(ctx, domain.CredentialsDefault, pathCheckoutForm, req, &resp); err != nil {
		return c.transportResult("checkout_form_initialize", a.ConversationID, err)
	}
	return mapHostedInitResponse(resp, a.ConversationID, resp.PaymentPageURL)
}

// InitializeWalletPayment authenticates with the credential set of the attempt's flow, so a
// quick-wallet payment is only visible to the quick-wallet merchant account.
func (c *Client) InitializeWalletPayment(ctx context.Context, a domain.PaymentAttempt) domain.PaymentResult {
	req := c.paymentRequest(a)
	req.PaymentCard = nil
	req.Installment = 0
	req.EnabledInstallments = hostedInstallments
	var resp paymentResponse
	if err := c.do(ctx, a.Flow.CredentialSet(), pathWalletInit, req, &resp); err != nil {
		return c.transportResult("wallet_initialize", a.ConversationID, err)
	}
	return mapHostedInitResponse(resp, a.ConversationID, resp.PayWithIyzicoPageURL)
}

func (c *Client) RetrievePayment(ctx context.Context, paymentID, conversationID string, set domain.CredentialSet) domain.PaymentResult {
	req := retrieveRequest{
		Locale:         c.locale,
		ConversationID: conversationID,
		PaymentID:      paymentID,
	}
	var resp paymentResponse
	if err := c.do(ctx, set, pathPaymentDetail, req, &resp); err != nil {
		return c.transportResult("retrieve_payment", conversationID, err)
	}
	result := mapPaymentResponse(resp, conversationID)
	result.Details = flattenDetails(resp)
	if result.PaymentID == "" {
		result.PaymentID = paymentID
	}
	return result
}

func (c *Client) paymentRequest(a domain.PaymentAttempt) paymentRequest {
	currency := a.Basket.Currency
	if currency == "" {
		currency = c.currency
	}
	installment := a.Installment
	if installment < 1 {
		installment = 1
	}
	addr := toAddress(a.Buyer)
	req := paymentRequest{
		Locale:          c.locale,
		ConversationID:  a.ConversationID,
		Price:           a.Basket.Total,
		PaidPrice:       a.Basket.Total,
		Currency:        currency,
		Installment:     installment,
		BasketID:        a.BasketID,
		PaymentChannel:  channelWeb,
		PaymentGroup:    groupProduct,
		Buyer:           toBuyer(a.Buyer),
		ShippingAddress: addr,
		BillingAddress:  addr,
		BasketItems:     toBasketItems(a.Basket),
		CallbackURL:     a.CallbackURL,
	}
	if a.Card != nil {
		req.PaymentCard = &paymentCard{
			CardHolderName: a.Card.HolderName,
			CardNumber:     a.Card.Number,
			ExpireMonth:    a.Card.ExpireMonth,
			ExpireYear:     a.Card.ExpireYear,
			CVC:            a.Card.CVC,
		}
	}
	return req
}

func toBuyer(b domain.BuyerInfo) buyer {
	return buyer{
		ID:                  b.ID,
		Name:                b.Name,
		Surname:             b.Surname,
		GSMNumber:           b.Phone,
		Email:               b.Email,
		IdentityNumber:      b.IdentityNumber,
		RegistrationAddress: b.Address.Address,
		IP:                  b.IP,
		City:                b.Address.City,
		Country:             b.Address.Country,
		ZipCode:             b.Address.ZipCode,
	}
}

func toAddress(b domain.BuyerInfo) address {
	contact := b.Address.ContactName
	if contact == "" {
		contact = b.Name + " " + b.Surname
	}
	return address{
		ContactName: contact,
		City:        b.Address.City,
		Country:     b.Address.Country,
		Address:     b.Address.Address,
		ZipCode:     b.Address.ZipCode,
	}
}

// toBasketItems sends one line per cart item plus tax and shipping lines, so that the item
// prices add up to the charged total.
func toBasketItems(s domain.CartSummary) []basketItem {
	items := make([]basketItem, 0, len(s.Items)+2)
	for _, it := range s.Items {
		items = append(items, basketItem{
			ID:        strconv.FormatInt(it.ProductID, 10),
			Name:      it.Name,
			Category1: itemCategory,
			ItemType:  itemPhysical,
			Price:     it.LineTotal,
		})
	}
	if s.Tax.IsPositive() {
		items = append(items, basketItem{ID: "tax", Name: "Tax", Category1: itemCategory, ItemType: itemPhysical, Price: s.Tax})
	}
	if s.Shipping.IsPositive() {
		items = append(items, basketItem{ID: "shipping", Name: "Shipping", Category1: itemCategory, ItemType: itemPhysical, Price: s.Shipping})
	}
	return items
}
