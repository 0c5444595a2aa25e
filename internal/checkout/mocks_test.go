package checkout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/logger"
	"github.com/fjod/storefront/internal/publisher"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const (
	testSession   = "sess-1"
	defaultSecret = "secret-default"
	quickSecret   = "secret-quick"
)

// MockGateway implements Gateway for testing
type MockGateway struct {
	mu sync.Mutex

	DirectResult   domain.PaymentResult
	ThreeDsResult  domain.PaymentResult
	FinalizeResult domain.PaymentResult
	FormResult     domain.PaymentResult
	WalletResult   domain.PaymentResult
	Retrieve       map[domain.CredentialSet]domain.PaymentResult
	Secrets        map[domain.CredentialSet]string

	Attempts      []domain.PaymentAttempt
	FinalizeCalls []string
	RetrieveCalls []domain.CredentialSet
}

func newMockGateway() *MockGateway {
	return &MockGateway{
		Secrets: map[domain.CredentialSet]string{
			domain.CredentialsDefault:     defaultSecret,
			domain.CredentialsQuickWallet: quickSecret,
		},
		Retrieve: map[domain.CredentialSet]domain.PaymentResult{},
	}
}

func (m *MockGateway) record(a domain.PaymentAttempt) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Attempts = append(m.Attempts, a)
}

func (m *MockGateway) InitializeDirectPayment(_ context.Context, a domain.PaymentAttempt) domain.PaymentResult {
	m.record(a)
	return m.DirectResult
}

func (m *MockGateway) InitializeThreeDsPayment(_ context.Context, a domain.PaymentAttempt) domain.PaymentResult {
	m.record(a)
	return m.ThreeDsResult
}

func (m *MockGateway) FinalizeThreeDsPayment(_ context.Context, paymentID, _, _ string) domain.PaymentResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FinalizeCalls = append(m.FinalizeCalls, paymentID)
	return m.FinalizeResult
}

func (m *MockGateway) InitializeCheckoutForm(_ context.Context, a domain.PaymentAttempt) domain.PaymentResult {
	m.record(a)
	return m.FormResult
}

func (m *MockGateway) InitializeWalletPayment(_ context.Context, a domain.PaymentAttempt) domain.PaymentResult {
	m.record(a)
	return m.WalletResult
}

func (m *MockGateway) RetrievePayment(_ context.Context, paymentID, conversationID string, set domain.CredentialSet) domain.PaymentResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RetrieveCalls = append(m.RetrieveCalls, set)
	if r, ok := m.Retrieve[set]; ok {
		return r
	}
	return domain.ErrorResult(conversationID, "not_found", "payment "+paymentID+" not found")
}

func (m *MockGateway) Secret(set domain.CredentialSet) (string, bool) {
	s, ok := m.Secrets[set]
	return s, ok
}

// MockCart implements Cart for testing
type MockCart struct {
	mu sync.Mutex

	Summary  *domain.CartSummary
	Err      error
	ClearErr error
	Cleared  int
}

func (m *MockCart) GetSummary(_ context.Context, _ string) (*domain.CartSummary, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	s := *m.Summary
	return &s, nil
}

func (m *MockCart) ClearCart(_ context.Context, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Cleared++
	return m.ClearErr
}

// MockPublisher records published events
type MockPublisher struct {
	mu sync.Mutex

	Events []publisher.CheckoutSucceeded
	Err    error
}

func (m *MockPublisher) PublishCheckoutSucceeded(_ context.Context, event publisher.CheckoutSucceeded) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
	return m.Err
}

func (m *MockPublisher) Close() error { return nil }

func sampleSummary() *domain.CartSummary {
	return &domain.CartSummary{
		Items: []domain.CartSummaryItem{{
			ProductID:      1,
			Name:           "Tea Pot",
			Quantity:       3,
			UnitPrice:      decimal.NewFromInt(100),
			EffectivePrice: decimal.NewFromInt(100),
			LineTotal:      decimal.NewFromInt(300),
		}},
		Subtotal:      decimal.NewFromInt(300),
		Tax:           decimal.Zero,
		Shipping:      decimal.Zero,
		Total:         decimal.NewFromInt(300),
		Currency:      "TRY",
		ItemCount:     1,
		TotalQuantity: 3,
	}
}

func sampleRequest(flow domain.PaymentFlow) Request {
	req := Request{
		Flow:           flow,
		ConversationID: "conv-1",
		Buyer: domain.BuyerInfo{
			ID:             "buyer-1",
			Name:           "Ada",
			Surname:        "Lovelace",
			Email:          "ada@example.com",
			IdentityNumber: "74300864791",
			IP:             "85.34.78.112",
			Address: domain.Address{
				City:    "Istanbul",
				Country: "Turkey",
				Address: "Nidakule Goztepe",
			},
		},
	}
	if flow.NeedsCard() {
		req.Card = &domain.PaymentCard{
			HolderName:  "Ada Lovelace",
			Number:      "5528790000000008",
			ExpireMonth: "12",
			ExpireYear:  "2030",
			CVC:         "123",
		}
	}
	return req
}

type fixture struct {
	gw       *MockGateway
	cart     *MockCart
	pub      *MockPublisher
	sessions *cache.RedisSessionStore
	mr       *miniredis.Miniredis
	rec      *Reconciler
}

func setup(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	f := &fixture{
		gw:       newMockGateway(),
		cart:     &MockCart{Summary: sampleSummary()},
		pub:      &MockPublisher{},
		sessions: cache.NewRedisSessionStore(client, 30*time.Minute),
		mr:       mr,
	}
	f.rec = NewReconciler(f.gw, f.cart, f.sessions, f.pub, Config{
		PublicBaseURL: "https://shop.example.com/",
		SuccessPath:   "/checkout/success",
		FailPath:      "/checkout/fail",
		ChallengePath: "/checkout/3ds",
		Locale:        "en",
	}, logger.Discard())
	f.rec.newID = func() string { return "01TESTID" }
	f.rec.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return f
}
