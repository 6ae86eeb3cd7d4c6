package leads

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/client"
)

// StripeCharger collects the lead price as a confirmed test-mode
// PaymentIntent. The marketplace's unlock flow is a mock payment; the
// intent exists so the purchase shows up in the Stripe dashboard with
// the pair in its metadata.
type StripeCharger struct {
	api *client.API
}

func NewStripeCharger(secretKey string) *StripeCharger {
	api := &client.API{}
	api.Init(secretKey, nil)

	return &StripeCharger{api: api}
}

func (c *StripeCharger) Charge(ctx context.Context, companyID, requestID string, amountCents int64, currency string) (string, error) {
	params := &stripe.PaymentIntentParams{
		Params: stripe.Params{
			Context: ctx,
		},
		Amount:        stripe.Int64(amountCents),
		Currency:      stripe.String(currency),
		PaymentMethod: stripe.String("pm_card_visa"),
		Confirm:       stripe.Bool(true),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String(string(stripe.PaymentIntentAutomaticPaymentMethodsAllowRedirectsNever)),
		},
	}
	params.AddMetadata("company_id", companyID)
	params.AddMetadata("request_id", requestID)

	// Repeat attempts for the same pair, including from another
	// instance, collapse into the one intent.
	params.SetIdempotencyKey(fmt.Sprintf("lead-unlock-%s-%s", companyID, requestID))

	intent, err := c.api.PaymentIntents.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create payment intent: %w", err)
	}

	return intent.ID, nil
}
