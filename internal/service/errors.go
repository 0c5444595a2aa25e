package service

import "errors"

var (
	ErrInvalidProductID = errors.New("product_id must be greater than 0")
	ErrInvalidQuantity  = errors.New("quantity must be between 1 and 100")
	ErrUnknownProduct   = errors.New("product not found")
)

// IsValidation reports whether err is caller input that never reached the store.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidProductID) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrUnknownProduct)
}
