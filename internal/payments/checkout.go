// Package payments creates Stripe checkout sessions for the paid rewrite.
package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
)

// Product sold at checkout.
const (
	ProductName = "Resume Optimization"
	UnitAmount  = 2999
	Currency    = stripe.CurrencyUSD
)

// ErrNotConfigured is returned when no Stripe key is set.
var ErrNotConfigured = errors.New("payment processor is not configured")

// Checkout creates a hosted payment page and returns its URL.
type Checkout interface {
	CreateSession(ctx context.Context, originURL string) (string, error)
}

// StripeCheckout is a Checkout backed by the Stripe API.
type StripeCheckout struct {
	api *client.API
}

// Option configures a StripeCheckout.
type Option func(*stripe.BackendConfig)

// WithBackendURL points the client at a different API host.
func WithBackendURL(url string) Option {
	return func(c *stripe.BackendConfig) {
		c.URL = stripe.String(url)
	}
}

// NewStripeCheckout returns a checkout for apiKey. An empty key yields a
// checkout whose every call fails with ErrNotConfigured.
func NewStripeCheckout(apiKey string, opts ...Option) *StripeCheckout {
	if apiKey == "" {
		return &StripeCheckout{}
	}

	cfg := &stripe.BackendConfig{
		LeveledLogger: &stripe.LeveledLogger{Level: stripe.LevelError},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	api := &client.API{}
	api.Init(apiKey, &stripe.Backends{
		API: stripe.GetBackendWithConfig(stripe.APIBackend, cfg),
	})
	return &StripeCheckout{api: api}
}

// Configured reports whether a key was supplied.
func (s *StripeCheckout) Configured() bool {
	return s.api != nil
}

// CreateSession creates a one-off card payment for the rewrite.
func (s *StripeCheckout) CreateSession(ctx context.Context, originURL string) (string, error) {
	if s.api == nil {
		return "", ErrNotConfigured
	}

	params := SessionParams(originURL)
	params.Context = ctx
	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

// SessionParams builds the checkout request. The customer returns to
// originURL with ?success=true or ?canceled=true.
func SessionParams(originURL string) *stripe.CheckoutSessionParams {
	return &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(string(Currency)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(ProductName),
					},
					UnitAmount: stripe.Int64(UnitAmount),
				},
				Quantity: stripe.Int64(1),
			},
		},
		Mode:                stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:          stripe.String(originURL + "?success=true"),
		CancelURL:           stripe.String(originURL + "?canceled=true"),
		AllowPromotionCodes: stripe.Bool(true),
		ConsentCollection: &stripe.CheckoutSessionConsentCollectionParams{
			Promotions: stripe.String("auto"),
		},
	}
}
