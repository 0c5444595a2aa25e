package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/catalog"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/logger"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type CartService struct {
	store    cache.CartStore
	catalog  catalog.ProductFinder
	pricing  Pricing
	currency string
	log      logrus.FieldLogger
}

func NewCartService(store cache.CartStore, finder catalog.ProductFinder, pricing Pricing, currency string, log logrus.FieldLogger) *CartService {
	return &CartService{
		store:    store,
		catalog:  finder,
		pricing:  pricing,
		currency: currency,
		log:      log,
	}
}

// AddResult is what the storefront shows after an add-to-cart.
type AddResult struct {
	Success       bool            `json:"success"`
	Message       string          `json:"message"`
	Quantity      int             `json:"quantity,omitempty"`
	ItemCount     int             `json:"itemCount"`
	TotalQuantity int             `json:"totalQuantity"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Total         decimal.Decimal `json:"total"`
}

// GetSummary prices the session cart against the live catalog. Entries whose product no
// longer exists are left out of the totals and reported in UnavailableProductIDs.
func (s *CartService) GetSummary(ctx context.Context, sessionID string) (*domain.CartSummary, error) {
	cart, err := s.store.GetAll(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.CartEntry, 0, len(cart.Entries))
	for _, entry := range cart.Entries {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].AddedAt.Equal(entries[j].AddedAt) {
			return entries[i].ProductID < entries[j].ProductID
		}
		return entries[i].AddedAt.Before(entries[j].AddedAt)
	})

	summary := &domain.CartSummary{
		Items:    make([]domain.CartSummaryItem, 0, len(entries)),
		Subtotal: decimal.Zero,
		Currency: s.currency,
	}

	for _, entry := range entries {
		product, errFind := s.catalog.FindByID(ctx, entry.ProductID)
		if errors.Is(errFind, catalog.ErrProductNotFound) {
			logger.FromContext(ctx, s.log).WithField("product_id", entry.ProductID).
				Warn("cart entry references a product that no longer exists")
			summary.UnavailableProductIDs = append(summary.UnavailableProductIDs, entry.ProductID)
			continue
		}
		if errFind != nil {
			return nil, fmt.Errorf("failed to get product %d: %w", entry.ProductID, errFind)
		}

		effective := product.EffectivePrice()
		line := effective.Mul(decimal.NewFromInt(int64(entry.Quantity)))

		summary.Items = append(summary.Items, domain.CartSummaryItem{
			ProductID:      product.ID,
			Name:           product.Name,
			Slug:           product.Slug,
			Image:          product.Image,
			Quantity:       entry.Quantity,
			UnitPrice:      entry.UnitPrice,
			EffectivePrice: effective,
			LineTotal:      line,
			AddedAt:        entry.AddedAt,
		})
		summary.Subtotal = summary.Subtotal.Add(line)
		summary.TotalQuantity += entry.Quantity
	}

	summary.ItemCount = len(summary.Items)
	summary.Tax = s.pricing.Tax(summary.Subtotal)
	summary.Shipping = s.pricing.Shipping(summary.Subtotal)
	summary.Total = summary.Subtotal.Add(summary.Tax).Add(summary.Shipping)
	return summary, nil
}

func (s *CartService) AddToCart(ctx context.Context, sessionID string, productID int64, quantity int) (AddResult, error) {
	if productID <= 0 {
		return failed(ErrInvalidProductID), ErrInvalidProductID
	}
	if quantity < domain.MinQuantity || quantity > domain.MaxQuantity {
		return failed(ErrInvalidQuantity), ErrInvalidQuantity
	}

	product, err := s.catalog.FindByID(ctx, productID)
	if errors.Is(err, catalog.ErrProductNotFound) {
		return failed(ErrUnknownProduct), ErrUnknownProduct
	}
	if err != nil {
		return failed(err), fmt.Errorf("failed to validate product: %w", err)
	}

	stored, err := s.store.Upsert(ctx, sessionID, productID, quantity, product.EffectivePrice())
	if err != nil {
		logger.FromContext(ctx, s.log).WithError(err).Error("cart upsert failed")
		return failed(cache.ErrCartUnavailable), err
	}

	summary, err := s.GetSummary(ctx, sessionID)
	if err != nil {
		return failed(err), err
	}

	return AddResult{
		Success:       true,
		Message:       fmt.Sprintf("%s added to cart", product.Name),
		Quantity:      stored,
		ItemCount:     summary.ItemCount,
		TotalQuantity: summary.TotalQuantity,
		Subtotal:      summary.Subtotal,
		Total:         summary.Total,
	}, nil
}

// UpdateQuantity replaces the quantity of a line; a non-positive quantity removes it.
// It reports whether the line existed.
func (s *CartService) UpdateQuantity(ctx context.Context, sessionID string, productID int64, quantity int) (bool, error) {
	if productID <= 0 {
		return false, ErrInvalidProductID
	}
	if quantity > domain.MaxQuantity {
		return false, ErrInvalidQuantity
	}

	ok, err := s.store.SetQuantity(ctx, sessionID, productID, quantity)
	if err != nil {
		logger.FromContext(ctx, s.log).WithError(err).Error("cart update quantity failed")
		return false, err
	}
	return ok, nil
}

func (s *CartService) RemoveItem(ctx context.Context, sessionID string, productID int64) (bool, error) {
	if productID <= 0 {
		return false, ErrInvalidProductID
	}

	removed, err := s.store.Remove(ctx, sessionID, productID)
	if err != nil {
		logger.FromContext(ctx, s.log).WithError(err).Error("cart remove item failed")
		return false, err
	}
	return removed, nil
}

func (s *CartService) ClearCart(ctx context.Context, sessionID string) error {
	if err := s.store.Clear(ctx, sessionID); err != nil {
		logger.FromContext(ctx, s.log).WithError(err).Error("cart clear failed")
		return err
	}
	return nil
}

func (s *CartService) Count(ctx context.Context, sessionID string) (int, int, error) {
	count, err := s.store.Count(ctx, sessionID)
	if err != nil {
		return 0, 0, err
	}
	total, err := s.store.TotalQuantity(ctx, sessionID)
	if err != nil {
		return 0, 0, err
	}
	return count, total, nil
}

func failed(err error) AddResult {
	return AddResult{Success: false, Message: err.Error()}
}
