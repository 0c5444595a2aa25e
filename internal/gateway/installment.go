package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/storefront/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const binLength = 6

var (
	ErrInvalidBIN    = errors.New("bin must be exactly 6 digits")
	ErrInvalidAmount = errors.New("amount must be positive")
)

// GatewayError is a business failure reported by the gateway itself.
type GatewayError struct {
	Code    string
	Message string
}

func (e *GatewayError) Error() string {
	if e.Message == "" {
		return "gateway error " + e.Code
	}
	return fmt.Sprintf("gateway error %s: %s", e.Code, e.Message)
}

type InstallmentPrice struct {
	Number           int             `json:"installmentNumber"`
	TotalPrice       decimal.Decimal `json:"totalPrice"`
	InstallmentPrice decimal.Decimal `json:"installmentPrice"`
}

type InstallmentDetail struct {
	BinNumber       string             `json:"binNumber"`
	CardType        string             `json:"cardType"`
	CardAssociation string             `json:"cardAssociation"`
	CardFamilyName  string             `json:"cardFamilyName"`
	BankName        string             `json:"bankName"`
	BankCode        int                `json:"bankCode"`
	Force3DS        bool               `json:"force3ds"`
	Prices          []InstallmentPrice `json:"installmentPrices"`
}

// InstallmentOptions is advisory; nothing in the checkout depends on it.
type InstallmentOptions struct {
	BIN     string              `json:"bin"`
	Price   decimal.Decimal     `json:"price"`
	Details []InstallmentDetail `json:"installmentDetails"`
}

func (c *Client) LookupInstallments(ctx context.Context, bin string, amount decimal.Decimal) (*InstallmentOptions, error) {
	if !validBIN(bin) {
		return nil, ErrInvalidBIN
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	req := installmentRequest{
		Locale:         c.locale,
		ConversationID: uuid.NewString(),
		BinNumber:      bin,
		Price:          amount,
	}
	var resp installmentResponse
	if err := c.do(ctx, domain.CredentialsDefault, pathInstallmentInfo, req, &resp); err != nil {
		return nil, fmt.Errorf("installment lookup failed: %w", err)
	}
	if resp.Status != statusSuccess {
		return nil, &GatewayError{Code: resp.ErrorCode, Message: resp.ErrorMessage}
	}

	opts := &InstallmentOptions{
		BIN:     bin,
		Price:   amount,
		Details: make([]InstallmentDetail, 0, len(resp.InstallmentDetails)),
	}
	for _, d := range resp.InstallmentDetails {
		detail := InstallmentDetail{
			BinNumber:       d.BinNumber,
			CardType:        d.CardType,
			CardAssociation: d.CardAssociation,
			CardFamilyName:  d.CardFamilyName,
			BankName:        d.BankName,
			BankCode:        d.BankCode,
			Force3DS:        d.Force3DS == 1,
			Prices:          make([]InstallmentPrice, 0, len(d.InstallmentPrices)),
		}
		for _, p := range d.InstallmentPrices {
			detail.Prices = append(detail.Prices, InstallmentPrice{
				Number:           p.InstallmentNumber,
				TotalPrice:       p.TotalPrice,
				InstallmentPrice: p.InstallmentPrice,
			})
		}
		opts.Details = append(opts.Details, detail)
	}
	return opts, nil
}

func validBIN(bin string) bool {
	if len(bin) != binLength {
		return false
	}
	for _, r := range bin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
