// README: Common money value object used across modules.
package types

import "github.com/shopspring/decimal"

// DefaultCurrency is used when a listing, demand or match does not name one.
const DefaultCurrency = "KES"

type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

func NewMoney(amount decimal.Decimal, currency string) Money {
	if currency == "" {
		currency = DefaultCurrency
	}
	return Money{Amount: amount, Currency: currency}
}

// ParseDecimal parses a numeric string coming from storage; empty means absent.
func ParseDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// DecimalString renders an optional decimal for storage.
func DecimalString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}
