// README: Card settlement through Stripe PaymentIntents. Cash rides
// never reach this path; the ride service only charges on completion.
package payments

import (
	"context"
	"strings"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
	"go.uber.org/zap"

	"savari/internal/types"
)

type StripeClient struct {
	log *zap.Logger
}

func NewStripeClient(apiKey string, log *zap.Logger) *StripeClient {
	stripe.Key = apiKey
	return &StripeClient{log: log}
}

// Charge captures the final fare for a completed ride. The ride id goes
// into the intent metadata so support can reconcile disputes.
func (s *StripeClient) Charge(ctx context.Context, rideID, riderID types.ID, amount types.Money) error {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount.Amount * 100), // stripe wants minor units
		Currency: stripe.String(strings.ToLower(amount.Currency)),
		Confirm:  stripe.Bool(true),
	}
	params.Context = ctx
	params.AddMetadata("ride_id", string(rideID))
	params.AddMetadata("rider_id", string(riderID))

	pi, err := paymentintent.New(params)
	if err != nil {
		return err
	}
	s.log.Info("payment captured",
		zap.String("ride_id", string(rideID)),
		zap.String("payment_intent", pi.ID),
		zap.Int64("amount", amount.Amount))
	return nil
}
