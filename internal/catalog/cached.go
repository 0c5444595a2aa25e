package catalog

import (
	"context"
	"strconv"

	"github.com/fjod/storefront/internal/domain"
	"golang.org/x/sync/singleflight"
)

// CachedFinder collapses concurrent lookups of the same product into one query.
type CachedFinder struct {
	next ProductFinder
	sfg  singleflight.Group
}

func NewCachedFinder(next ProductFinder) *CachedFinder {
	return &CachedFinder{next: next}
}

func (f *CachedFinder) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	v, err, _ := f.sfg.Do(strconv.FormatInt(id, 10), func() (interface{}, error) {
		return f.next.FindByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	// callers may mutate the product, hand each one its own copy
	p := *v.(*domain.Product)
	return &p, nil
}
