// README: Bid aggregate and negotiation status definitions.
package bidding

import (
	"time"

	"savari/internal/types"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusWithdrawn Status = "withdrawn"
	StatusCountered Status = "countered"
	StatusExpired   Status = "expired"
)

// Bid is a driver's priced, time-boxed offer against exactly one ride.
type Bid struct {
	ID       types.ID
	RideID   types.ID
	DriverID types.ID

	Amount     types.Money
	ETAMinutes int
	Note       string

	Status    Status
	ExpiresAt time.Time

	CounterAmount  *types.Money
	CounterMessage string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Open reports whether the bid still holds the driver's slot on the ride
// (at most one open bid per ride+driver).
func (b *Bid) Open() bool {
	return b.Status == StatusPending || b.Status == StatusCountered
}

// ExpiredAt reports whether the bid's TTL has lapsed at the given instant.
// Expiry is evaluated lazily; a bid past its TTL is dead even if no sweep
// has flipped its stored status yet.
func (b *Bid) ExpiredAt(now time.Time) bool {
	return b.Open() && now.After(b.ExpiresAt)
}

// Upsale tiers a rider may choose. The tier widens discovery and raises
// dispatch priority; fare math stays the base-fare engine plus the markup.
var UpsaleTiers = []int{0, 10, 20, 30, 50}

func ValidTier(pct int) bool {
	for _, t := range UpsaleTiers {
		if t == pct {
			return true
		}
	}
	return false
}

// RadiusBonusKm is the extra driver-search radius granted per tier.
func RadiusBonusKm(pct int) float64 {
	switch pct {
	case 10:
		return 2
	case 20:
		return 4
	case 30:
		return 6
	case 50:
		return 10
	default:
		return 0
	}
}

// CandidateCap is the maximum drivers surfaced for a tier.
func CandidateCap(pct int) int {
	switch {
	case pct >= 30:
		return 20
	case pct >= 10:
		return 15
	default:
		return 10
	}
}

// PriorityScore orders rides in driver-facing lists; strictly increasing
// in tier.
func PriorityScore(pct int) int {
	return 100 + 2*pct
}
