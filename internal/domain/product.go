package domain

import "github.com/shopspring/decimal"

type Product struct {
	ID        int64               `db:"id"`
	Name      string              `db:"name"`
	Slug      string              `db:"slug"`
	Price     decimal.Decimal     `db:"price"`
	SalePrice decimal.NullDecimal `db:"sale_price"`
	Image     string              `db:"image"`
}

// EffectivePrice is the sale price when it is set and lower than the list price.
func (p Product) EffectivePrice() decimal.Decimal {
	if p.SalePrice.Valid && p.SalePrice.Decimal.IsPositive() && p.SalePrice.Decimal.LessThan(p.Price) {
		return p.SalePrice.Decimal
	}
	return p.Price
}
