// Package stripegateway adapts the Stripe API to payments.Gateway.
package stripegateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/angelmondragon/hotelbooker-backend/internal/payments"
	pkgstripe "github.com/angelmondragon/hotelbooker-backend/pkg/stripe"
)

const defaultFailureReason = "Payment failed"

type intentAPI interface {
	Create(ctx context.Context, params *stripe.PaymentIntentCreateParams) (*stripe.PaymentIntent, error)
	Retrieve(ctx context.Context, id string, params *stripe.PaymentIntentRetrieveParams) (*stripe.PaymentIntent, error)
}

// Gateway implements payments.Gateway on Stripe payment intents.
type Gateway struct {
	intents        intentAPI
	signingSecret  string
	publishableKey string
}

// New builds a Gateway from an initialized Stripe client.
func New(client *pkgstripe.Client) (*Gateway, error) {
	if client == nil || client.API() == nil {
		return nil, errors.New("stripe client required")
	}
	return &Gateway{
		intents:        client.API().V1PaymentIntents,
		signingSecret:  client.SigningSecret(),
		publishableKey: client.PublishableKey(),
	}, nil
}

func (g *Gateway) CreateIntent(ctx context.Context, req payments.IntentRequest) (*payments.Intent, error) {
	params := &stripe.PaymentIntentCreateParams{
		Amount:      stripe.Int64(req.AmountMinor),
		Currency:    stripe.String(req.Currency),
		Description: stripe.String(req.Description),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	for key, value := range req.Metadata {
		params.AddMetadata(key, value)
	}
	intent, err := g.intents.Create(ctx, params)
	if err != nil {
		return nil, err
	}
	return toIntent(intent), nil
}

func (g *Gateway) RetrieveIntent(ctx context.Context, reference string) (*payments.Intent, error) {
	intent, err := g.intents.Retrieve(ctx, reference, nil)
	if err != nil {
		return nil, err
	}
	return toIntent(intent), nil
}

func (g *Gateway) VerifySignature(payload []byte, signature string) (*payments.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.signingSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", payments.ErrInvalidSignature, err)
	}
	return toEvent(event)
}

func (g *Gateway) ParseEvent(payload []byte) (*payments.Event, error) {
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return toEvent(event)
}

func (g *Gateway) PublishableKey() string {
	return g.publishableKey
}

func (g *Gateway) SignatureRequired() bool {
	return g.signingSecret != ""
}

func toIntent(intent *stripe.PaymentIntent) *payments.Intent {
	out := &payments.Intent{
		Reference:    intent.ID,
		ClientSecret: intent.ClientSecret,
		Status:       string(intent.Status),
	}
	if intent.LastPaymentError != nil {
		out.FailureReason = intent.LastPaymentError.Msg
	}
	return out
}

func toEvent(event stripe.Event) (*payments.Event, error) {
	if event.ID == "" {
		return nil, errors.New("event id missing")
	}
	out := &payments.Event{
		ID:   event.ID,
		Type: string(event.Type),
		Kind: payments.EventUnknown,
	}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		out.Kind = payments.EventSucceeded
	case stripe.EventTypePaymentIntentPaymentFailed:
		out.Kind = payments.EventPaymentFailed
	case stripe.EventTypePaymentIntentCanceled:
		out.Kind = payments.EventCanceled
	case stripe.EventTypePaymentIntentProcessing:
		out.Kind = payments.EventProcessing
	case stripe.EventTypeChargeRefunded:
		out.Kind = payments.EventRefunded
		if event.Data == nil {
			return nil, errors.New("event data missing")
		}
		out.Reference = event.GetObjectValue("payment_intent")
		if out.Reference == "" {
			return nil, errors.New("charge event missing payment intent")
		}
		return out, nil
	default:
		return out, nil
	}

	if event.Data == nil {
		return nil, errors.New("event data missing")
	}
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return nil, fmt.Errorf("decode payment intent: %w", err)
	}
	if intent.ID == "" {
		return nil, errors.New("payment intent id missing")
	}
	out.Reference = intent.ID
	if out.Kind == payments.EventPaymentFailed {
		out.FailureReason = defaultFailureReason
		if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
			out.FailureReason = intent.LastPaymentError.Msg
		}
	}
	return out, nil
}
