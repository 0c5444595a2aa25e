package cache

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	ErrCartUnavailable = errors.New("cart unavailable")
	ErrItemNotFound    = errors.New("item not found in cart")
	ErrSessionMiss     = errors.New("session value not found")
)

// CartStore is the per-session cart. Every operation is scoped to one session id.
type CartStore interface {
	Get(ctx context.Context, sessionID string, productID int64) (*domain.CartEntry, error)
	GetAll(ctx context.Context, sessionID string) (*domain.Cart, error)
	// Upsert adds quantity onto an existing entry or creates it, returning the stored quantity.
	Upsert(ctx context.Context, sessionID string, productID int64, quantity int, unitPrice decimal.Decimal) (int, error)
	// SetQuantity replaces the quantity; a non-positive quantity removes the entry.
	SetQuantity(ctx context.Context, sessionID string, productID int64, quantity int) (bool, error)
	Remove(ctx context.Context, sessionID string, productID int64) (bool, error)
	Clear(ctx context.Context, sessionID string) error
	Count(ctx context.Context, sessionID string) (int, error)
	TotalQuantity(ctx context.Context, sessionID string) (int, error)
}

// SessionStore keeps small JSON values scoped to one session, such as pending gateway sessions.
type SessionStore interface {
	Put(ctx context.Context, sessionID, key string, value any) error
	Get(ctx context.Context, sessionID, key string, dst any) error
	// Take returns the value and removes it atomically; concurrent callers get ErrSessionMiss.
	Take(ctx context.Context, sessionID, key string, dst any) error
	Delete(ctx context.Context, sessionID, key string) error
}

type Options struct {
	CartTTL    time.Duration
	SessionTTL time.Duration
}
