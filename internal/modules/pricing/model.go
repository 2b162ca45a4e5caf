// README: Rate card and fare breakdown definitions.
package pricing

import "context"

// Rate is the per-vehicle-class tariff. All amounts are whole currency
// units.
type Rate struct {
	VehicleType     string
	BaseFare        int64
	PerKm           int64
	PerMinute       int64
	BookingFee      int64
	MinimumFare     int64
	CancellationFee int64
	Currency        string
}

// Breakdown is the itemised result of a fare estimate.
type Breakdown struct {
	VehicleType     string  `json:"vehicle_type"`
	DistanceKm      float64 `json:"distance_km"`
	DurationMin     int64   `json:"duration_minutes"`
	BaseFare        int64   `json:"base_fare"`
	DistanceFare    int64   `json:"distance_fare"`
	TimeFare        int64   `json:"time_fare"`
	BookingFee      int64   `json:"booking_fee"`
	Subtotal        int64   `json:"subtotal"`
	SurgeMultiplier float64 `json:"surge_multiplier"`
	SurgeAmount     int64   `json:"surge_amount"`
	// BidAmount is the rider's upsale markup on top of the base total;
	// zero unless an offer tier is in effect.
	BidAmount int64  `json:"bid_amount"`
	Total     int64  `json:"total"`
	Currency  string `json:"currency"`
}

// defaultRates is the in-code fallback used when no rate row exists for a
// class (or the rate store is unreachable). Mirrors the launch tariff.
var defaultRates = map[string]Rate{
	"bike":     {VehicleType: "bike", BaseFare: 80, PerKm: 20, PerMinute: 2, BookingFee: 20, MinimumFare: 100, CancellationFee: 50, Currency: "PKR"},
	"rickshaw": {VehicleType: "rickshaw", BaseFare: 100, PerKm: 25, PerMinute: 3, BookingFee: 20, MinimumFare: 150, CancellationFee: 50, Currency: "PKR"},
	"car":      {VehicleType: "car", BaseFare: 150, PerKm: 35, PerMinute: 5, BookingFee: 50, MinimumFare: 300, CancellationFee: 100, Currency: "PKR"},
	"ac_car":   {VehicleType: "ac_car", BaseFare: 200, PerKm: 45, PerMinute: 6, BookingFee: 50, MinimumFare: 400, CancellationFee: 100, Currency: "PKR"},
}

// DefaultRate returns the fallback tariff for a class; unknown classes get
// the car tariff.
func DefaultRate(vehicleType string) Rate {
	if r, ok := defaultRates[vehicleType]; ok {
		return r
	}
	return defaultRates["car"]
}

// StaticRates serves the in-code tariff with no surge. Used when no
// rates table is configured.
type StaticRates struct{}

func (StaticRates) RateFor(ctx context.Context, vehicleType string) (Rate, error) {
	return DefaultRate(vehicleType), nil
}

func (StaticRates) ActiveSurge(ctx context.Context) (float64, error) {
	return 1.0, nil
}
