package gateway

import (
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/fjod/storefront/internal/domain"
)

const (
	codePaymentFailed       = "payment_failed"
	codePaymentNotCompleted = "payment_not_completed"
	paymentStatusSuccess    = "SUCCESS"
)

func mapPaymentResponse(resp paymentResponse, conversationID string) domain.PaymentResult {
	conv := echoConversation(resp, conversationID)
	if resp.Status != statusSuccess {
		return failureResult(resp, conv)
	}
	if resp.PaymentStatus != "" && !strings.EqualFold(resp.PaymentStatus, paymentStatusSuccess) {
		r := domain.ErrorResult(conv, codePaymentNotCompleted, "payment is "+strings.ToLower(resp.PaymentStatus))
		r.PaymentID = resp.PaymentID
		return r
	}
	return domain.PaymentResult{
		Status:         domain.PaymentSuccess,
		PaymentID:      resp.PaymentID,
		ConversationID: conv,
		FraudStatus:    resp.FraudStatus,
		Price:          resp.Price,
		PaidPrice:      resp.PaidPrice,
		Currency:       resp.Currency,
		BasketID:       resp.BasketID,
	}
}

func mapThreeDsInitResponse(resp paymentResponse, conversationID string) domain.PaymentResult {
	conv := echoConversation(resp, conversationID)
	if resp.Status != statusSuccess {
		return failureResult(resp, conv)
	}
	html, err := base64.StdEncoding.DecodeString(resp.ThreeDSHTMLContent)
	if err != nil || len(html) == 0 || resp.PaymentID == "" {
		return domain.ErrorResult(conv, CodeMalformedResponse, "3DS initialization returned no challenge page")
	}
	return domain.PaymentResult{
		Status:         domain.PaymentRequiresThreeDs,
		PaymentID:      resp.PaymentID,
		ConversationID: conv,
		HTMLContent:    string(html),
	}
}

func mapHostedInitResponse(resp paymentResponse, conversationID, pageURL string) domain.PaymentResult {
	conv := echoConversation(resp, conversationID)
	if resp.Status != statusSuccess {
		return failureResult(resp, conv)
	}
	if resp.Token == "" || pageURL == "" {
		return domain.ErrorResult(conv, CodeMalformedResponse, "hosted payment initialization returned no token")
	}
	return domain.PaymentResult{
		Status:         domain.PaymentRequiresHosted,
		ConversationID: conv,
		Token:          resp.Token,
		RedirectURL:    pageURL,
		HTMLContent:    resp.CheckoutFormContent,
	}
}

func failureResult(resp paymentResponse, conversationID string) domain.PaymentResult {
	code := resp.ErrorCode
	if code == "" {
		code = codePaymentFailed
	}
	r := domain.ErrorResult(conversationID, code, resp.ErrorMessage)
	r.PaymentID = resp.PaymentID
	return r
}

func echoConversation(resp paymentResponse, conversationID string) string {
	if resp.ConversationID != "" {
		return resp.ConversationID
	}
	return conversationID
}

// flattenDetails lists the report fields of a retrieved payment under flat keys,
// item transactions as itemTransactions.{i}.{field}. Empty values are left out.
func flattenDetails(resp paymentResponse) map[string]string {
	details := make(map[string]string)
	put := func(key, value string) {
		if value != "" {
			details[key] = value
		}
	}

	put("paymentStatus", resp.PaymentStatus)
	put("currency", resp.Currency)
	put("basketId", resp.BasketID)
	put("cardType", resp.CardType)
	put("cardFamily", resp.CardFamily)
	put("lastFourDigits", resp.LastFourDigits)
	if resp.Installment > 0 {
		put("installment", strconv.Itoa(resp.Installment))
	}
	put("fraudStatus", strconv.Itoa(resp.FraudStatus))
	if !resp.PaidPrice.IsZero() {
		put("paidPrice", resp.PaidPrice.String())
	}

	for i, t := range resp.Transactions {
		prefix := "itemTransactions." + strconv.Itoa(i) + "."
		put(prefix+"itemId", t.ItemID)
		put(prefix+"paymentTransactionId", t.PaymentTransactionID)
		put(prefix+"transactionStatus", strconv.Itoa(t.TransactionStatus))
		put(prefix+"price", t.Price.String())
		put(prefix+"paidPrice", t.PaidPrice.String())
		put(prefix+"merchantPayoutAmount", t.MerchantPayoutAmount.String())
	}
	return details
}
