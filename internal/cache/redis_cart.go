package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const defaultCartTTL = 7 * 24 * time.Hour

// entryTimeLayout is fixed width so that stored timestamps compare correctly as strings inside Lua.
const entryTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// upsertScript performs the read-modify-write of one cart field inside Redis so that
// concurrent adds for the same product never lose an increment.
//
// KEYS[1] cart key
// ARGV: productId, quantity, unitPrice, now, mode ("add"|"set"), ttl ms, max quantity
var upsertScript = redis.NewScript(`
local raw = redis.call('HGET', KEYS[1], ARGV[1])
local qty = tonumber(ARGV[2])
local max = tonumber(ARGV[7])
local entry
if raw then
	entry = cjson.decode(raw)
	if ARGV[5] == 'add' then
		entry.quantity = entry.quantity + qty
		entry.unitPrice = ARGV[3]
	else
		entry.quantity = qty
	end
	entry.updatedAt = ARGV[4]
else
	if ARGV[5] ~= 'add' then
		return -1
	end
	entry = {productId = tonumber(ARGV[1]), quantity = qty, unitPrice = ARGV[3], addedAt = ARGV[4], updatedAt = ARGV[4]}
end
if entry.quantity > max then
	entry.quantity = max
end
redis.call('HSET', KEYS[1], ARGV[1], cjson.encode(entry))
redis.call('PEXPIRE', KEYS[1], ARGV[6])
return entry.quantity
`)

// clearBeforeScript deletes the entries of one cart last changed at or before a cutoff.
//
// KEYS[1] cart key
// ARGV: cutoff formatted with entryTimeLayout in UTC
var clearBeforeScript = redis.NewScript(`
local removed = 0
local values = redis.call('HGETALL', KEYS[1])
for i = 1, #values, 2 do
	local ok, entry = pcall(cjson.decode, values[i + 1])
	if ok and type(entry.updatedAt) == 'string' and entry.updatedAt <= ARGV[1] then
		redis.call('HDEL', KEYS[1], values[i])
		removed = removed + 1
	end
end
return removed
`)

func NewRedisCartStore(client *redis.Client, ttl time.Duration) *RedisCartStore {
	if ttl <= 0 {
		ttl = defaultCartTTL
	}
	return &RedisCartStore{
		client: client,
		ttl:    ttl,
		now:    time.Now,
	}
}

type RedisCartStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func (r *RedisCartStore) Get(ctx context.Context, sessionID string, productID int64) (*domain.CartEntry, error) {
	data, err := r.client.HGet(ctx, cartKey(sessionID), field(productID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: redis hget failed: %w", ErrCartUnavailable, err)
	}

	entry, err := decodeEntry(field(productID), data)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *RedisCartStore) GetAll(ctx context.Context, sessionID string) (*domain.Cart, error) {
	values, err := r.client.HGetAll(ctx, cartKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: redis hgetall failed: %w", ErrCartUnavailable, err)
	}

	cart := &domain.Cart{
		SessionID: sessionID,
		Entries:   make(map[int64]domain.CartEntry, len(values)),
	}
	for f, raw := range values {
		entry, errDecode := decodeEntry(f, []byte(raw))
		if errDecode != nil {
			return nil, errDecode
		}
		cart.Entries[entry.ProductID] = *entry
	}
	return cart, nil
}

func (r *RedisCartStore) Upsert(ctx context.Context, sessionID string, productID int64, quantity int, unitPrice decimal.Decimal) (int, error) {
	return r.run(ctx, sessionID, productID, quantity, unitPrice, "add")
}

func (r *RedisCartStore) SetQuantity(ctx context.Context, sessionID string, productID int64, quantity int) (bool, error) {
	if quantity <= 0 {
		return r.Remove(ctx, sessionID, productID)
	}

	stored, err := r.run(ctx, sessionID, productID, quantity, decimal.Zero, "set")
	if err != nil {
		return false, err
	}
	return stored > 0, nil
}

func (r *RedisCartStore) Remove(ctx context.Context, sessionID string, productID int64) (bool, error) {
	removed, err := r.client.HDel(ctx, cartKey(sessionID), field(productID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: redis hdel failed: %w", ErrCartUnavailable, err)
	}
	return removed > 0, nil
}

func (r *RedisCartStore) Clear(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, cartKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: redis delete failed: %w", ErrCartUnavailable, err)
	}
	return nil
}

// ClearBefore removes the entries whose last change is not after cutoff and returns how many
// were removed. Entries added or updated later survive.
func (r *RedisCartStore) ClearBefore(ctx context.Context, sessionID string, cutoff time.Time) (int, error) {
	removed, err := clearBeforeScript.Run(ctx, r.client,
		[]string{cartKey(sessionID)},
		cutoff.UTC().Format(entryTimeLayout),
	).Int()
	if err != nil {
		return 0, fmt.Errorf("%w: cart clear script failed: %w", ErrCartUnavailable, err)
	}
	return removed, nil
}

func (r *RedisCartStore) Count(ctx context.Context, sessionID string) (int, error) {
	n, err := r.client.HLen(ctx, cartKey(sessionID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: redis hlen failed: %w", ErrCartUnavailable, err)
	}
	return int(n), nil
}

func (r *RedisCartStore) TotalQuantity(ctx context.Context, sessionID string) (int, error) {
	cart, err := r.GetAll(ctx, sessionID)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, entry := range cart.Entries {
		total += entry.Quantity
	}
	return total, nil
}

func (r *RedisCartStore) run(ctx context.Context, sessionID string, productID int64, quantity int, unitPrice decimal.Decimal, mode string) (int, error) {
	stored, err := upsertScript.Run(ctx, r.client,
		[]string{cartKey(sessionID)},
		field(productID),
		quantity,
		unitPrice.String(),
		r.now().UTC().Format(entryTimeLayout),
		mode,
		r.ttl.Milliseconds(),
		domain.MaxQuantity,
	).Int()
	if err != nil {
		return 0, fmt.Errorf("%w: cart %s script failed: %w", ErrCartUnavailable, mode, err)
	}
	return stored, nil
}

// storedEntry skips the productId in the value: Lua's cjson writes large ids in exponent
// form, so the hash field is the only exact copy.
type storedEntry struct {
	domain.CartEntry
	ProductID json.RawMessage `json:"productId"`
}

func decodeEntry(productField string, data []byte) (*domain.CartEntry, error) {
	productID, err := strconv.ParseInt(productField, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid cart field %q: %w", ErrCartUnavailable, productField, err)
	}

	var stored storedEntry
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("%w: unmarshal cart entry failed: %w", ErrCartUnavailable, err)
	}
	entry := stored.CartEntry
	entry.ProductID = productID
	return &entry, nil
}

func cartKey(sessionID string) string {
	return fmt.Sprintf("cart:%s", sessionID)
}

func field(productID int64) string {
	return strconv.FormatInt(productID, 10)
}
