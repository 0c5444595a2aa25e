package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	MinQuantity = 1
	MaxQuantity = 100
)

// CartEntry is one product line of a session cart, stored as JSON in the cart hash.
type CartEntry struct {
	ProductID int64           `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	AddedAt   time.Time       `json:"addedAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Cart holds the entries of one session keyed by product id.
type Cart struct {
	SessionID string
	Entries   map[int64]CartEntry
}

func (c Cart) IsEmpty() bool {
	return len(c.Entries) == 0
}

type CartSummaryItem struct {
	ProductID      int64           `json:"productId"`
	Name           string          `json:"name"`
	Slug           string          `json:"slug"`
	Image          string          `json:"image,omitempty"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	EffectivePrice decimal.Decimal `json:"effectivePrice"`
	LineTotal      decimal.Decimal `json:"lineTotal"`
	AddedAt        time.Time       `json:"addedAt"`
}

// CartSummary is the derived view of a cart priced against the live catalog.
type CartSummary struct {
	Items                 []CartSummaryItem `json:"items"`
	Subtotal              decimal.Decimal   `json:"subtotal"`
	Tax                   decimal.Decimal   `json:"tax"`
	Shipping              decimal.Decimal   `json:"shipping"`
	Total                 decimal.Decimal   `json:"total"`
	Currency              string            `json:"currency"`
	ItemCount             int               `json:"itemCount"`
	TotalQuantity         int               `json:"totalQuantity"`
	UnavailableProductIDs []int64           `json:"unavailableProductIds,omitempty"`
}

func (s CartSummary) IsEmpty() bool {
	return len(s.Items) == 0
}
