// README: Common value objects shared across modules.
package types

// ID is an opaque identifier for riders, drivers, rides and bids.
type ID string

// Point is a WGS84 coordinate pair in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Money is an amount in the smallest sensible unit of the deployment
// currency (whole rupees for the default PKR deployment).
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func Rupees(n int64) Money {
	return Money{Amount: n, Currency: "PKR"}
}

func (m Money) Add(n Money) Money {
	return Money{Amount: m.Amount + n.Amount, Currency: m.Currency}
}

func (m Money) IsZero() bool { return m.Amount == 0 }
