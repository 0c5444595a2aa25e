package checkout

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/fjod/storefront/internal/domain"
)

const (
	CodeValidation         = "validation_error"
	CodeCartEmpty          = "cart_empty"
	CodeCartUnavailable    = "cart_unavailable"
	CodeSessionUnavailable = "session_unavailable"
	CodeSessionExpired     = "session_expired"
	CodeSignatureMismatch  = "signature_mismatch"
	CodePaymentMismatch    = "payment_mismatch"
	CodeThreeDsFailed      = "three_ds_failed"
	CodeUnexpectedStatus   = "unexpected_gateway_status"
	CodePaymentFailed      = "payment_failed"

	maxInstallment = 12
)

var ErrValidation = errors.New("invalid checkout request")

var fallbackMessages = map[string]string{
	"tr": "Ödeme işlemi tamamlanamadı. Lütfen tekrar deneyin.",
	"en": "Your payment could not be completed. Please try again.",
}

func fallbackMessage(locale string) string {
	if msg, ok := fallbackMessages[strings.ToLower(locale)]; ok {
		return msg
	}
	return fallbackMessages["en"]
}

func validate(req Request) error {
	var problems []string
	add := func(cond bool, msg string) {
		if cond {
			problems = append(problems, msg)
		}
	}

	_, err := domain.ParsePaymentFlow(req.Flow.String())
	add(err != nil, "payment method is invalid")

	b := req.Buyer
	add(strings.TrimSpace(b.Name) == "", "buyer name is required")
	add(strings.TrimSpace(b.Surname) == "", "buyer surname is required")
	add(!strings.Contains(b.Email, "@"), "buyer email is invalid")
	add(strings.TrimSpace(b.IdentityNumber) == "", "buyer identity number is required")
	add(strings.TrimSpace(b.Address.Address) == "", "address is required")
	add(strings.TrimSpace(b.Address.City) == "", "city is required")
	add(strings.TrimSpace(b.Address.Country) == "", "country is required")
	add(req.Installment < 0 || req.Installment > maxInstallment, "installment is out of range")

	if req.Flow.NeedsCard() {
		if req.Card == nil {
			problems = append(problems, "card is required")
		} else {
			problems = append(problems, validateCard(*req.Card)...)
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
}

func validateCard(c domain.PaymentCard) []string {
	var problems []string
	number := strings.ReplaceAll(c.Number, " ", "")
	if len(number) < 12 || len(number) > 19 || !digits(number) {
		problems = append(problems, "card number is invalid")
	}
	if strings.TrimSpace(c.HolderName) == "" {
		problems = append(problems, "card holder name is required")
	}
	if month, err := strconv.Atoi(c.ExpireMonth); err != nil || len(c.ExpireMonth) > 2 || month < 1 || month > 12 {
		problems = append(problems, "card expiry month is invalid")
	}
	if (len(c.ExpireYear) != 2 && len(c.ExpireYear) != 4) || !digits(c.ExpireYear) {
		problems = append(problems, "card expiry year is invalid")
	}
	if (len(c.CVC) != 3 && len(c.CVC) != 4) || !digits(c.CVC) {
		problems = append(problems, "card cvc is invalid")
	}
	return problems
}

func digits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}
