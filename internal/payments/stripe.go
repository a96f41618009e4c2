package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

var ErrInvalidPayload = errors.New("invalid webhook payload")

type Session struct {
	ID  string
	URL string
}

type CheckoutArgs struct {
	ProductName string
	Description string
	PriceCents  int
	OrderID     string
	OrderCode   string
}

// Notification is the part of a provider event the shop cares about.
type Notification struct {
	EventID   string
	Type      string
	SessionID string
	OrderID   string
	OrderCode string
}

func (n Notification) Completed() bool {
	return n.Type == "checkout.session.completed"
}

// Client wraps the Stripe SDK. webhookSecret may be empty: notifications are
// then parsed without signature verification, which is only acceptable for
// local development.
type Client struct {
	api           *client.API
	webhookSecret string
	baseURL       string // success/cancel redirects live under the app itself
}

func New(secretKey, webhookSecret, appBaseURL string) *Client {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &Client{api: api, webhookSecret: webhookSecret, baseURL: appBaseURL}
}

func (c *Client) CreateSession(ctx context.Context, args CheckoutArgs) (Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String("usd"),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(args.ProductName),
					Description: stripe.String(args.Description),
				},
				UnitAmount: stripe.Int64(int64(args.PriceCents)),
			},
			Quantity: stripe.Int64(1),
		}},
		SuccessURL: stripe.String(c.baseURL + "/success.html?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(c.baseURL + "/cancel.html"),
	}
	params.Context = ctx
	params.AddMetadata("order_id", args.OrderID)
	params.AddMetadata("order_code", args.OrderCode)

	s, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return Session{}, fmt.Errorf("stripe checkout session: %w", err)
	}
	return Session{ID: s.ID, URL: s.URL}, nil
}

// ParseNotification verifies and decodes a webhook delivery. With a configured
// secret the Stripe signature is enforced; without one the raw payload is
// trusted (dev only).
func (c *Client) ParseNotification(payload []byte, sigHeader string) (Notification, error) {
	var event stripe.Event
	if c.webhookSecret != "" && sigHeader != "" {
		ev, err := webhook.ConstructEvent(payload, sigHeader, c.webhookSecret)
		if err != nil {
			return Notification{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		event = ev
	} else if err := json.Unmarshal(payload, &event); err != nil {
		return Notification{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	n := Notification{EventID: event.ID, Type: string(event.Type)}
	if !n.Completed() {
		return n, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return Notification{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	n.SessionID = sess.ID
	n.OrderID = sess.Metadata["order_id"]
	n.OrderCode = sess.Metadata["order_code"]
	return n, nil
}
