package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

type stripeProvider struct {
	sc *client.API
}

// NewStripe returns a Provider backed by the Stripe API.
func NewStripe(secretKey string) Provider {
	return &stripeProvider{sc: client.New(secretKey, nil)}
}

func (p *stripeProvider) CreateCustomer(ctx context.Context, reference string) (*Customer, error) {
	cp := &stripe.CustomerParams{Description: stripe.String(reference)}
	cp.AddMetadata("owner", reference)
	cp.Context = ctx

	c, err := p.sc.Customers.New(cp)
	if err != nil {
		return nil, describe(err)
	}
	return &Customer{ID: c.ID}, nil
}

func (p *stripeProvider) CreateCheckoutSession(ctx context.Context, params *CheckoutParams) (*Session, error) {
	sp := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(params.SuccessURL),
		CancelURL:  stripe.String(params.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(params.PriceID), Quantity: stripe.Int64(1)},
		},
	}
	if params.CustomerID != "" {
		sp.Customer = stripe.String(params.CustomerID)
	}
	if params.ClientReference != "" {
		sp.ClientReferenceID = stripe.String(params.ClientReference)
	}
	sp.Context = ctx

	s, err := p.sc.CheckoutSessions.New(sp)
	if err != nil {
		return nil, describe(err)
	}
	return &Session{ID: s.ID, URL: s.URL}, nil
}

func (p *stripeProvider) CreatePortalSession(ctx context.Context, customerID, returnURL string) (*Session, error) {
	sp := &stripe.BillingPortalSessionParams{
		Customer: stripe.String(customerID),
	}
	if returnURL != "" {
		sp.ReturnURL = stripe.String(returnURL)
	}
	sp.Context = ctx

	s, err := p.sc.BillingPortalSessions.New(sp)
	if err != nil {
		return nil, describe(err)
	}
	return &Session{ID: s.ID, URL: s.URL}, nil
}

func (p *stripeProvider) ListSubscriptions(ctx context.Context, customerID string) ([]Subscription, error) {
	lp := &stripe.SubscriptionListParams{Customer: stripe.String(customerID)}
	lp.Context = ctx

	out := []Subscription{}
	iter := p.sc.Subscriptions.List(lp)
	for iter.Next() {
		s := iter.Subscription()
		sub := Subscription{
			ID:               s.ID,
			Status:           string(s.Status),
			CurrentPeriodEnd: time.Unix(s.CurrentPeriodEnd, 0).UTC(),
		}
		if s.Items != nil {
			for _, it := range s.Items.Data {
				item := SubscriptionItem{ID: it.ID}
				if it.Price != nil {
					item.PriceID = it.Price.ID
				}
				sub.Items = append(sub.Items, item)
			}
		}
		out = append(out, sub)
	}
	if err := iter.Err(); err != nil {
		return nil, describe(err)
	}
	return out, nil
}

func (p *stripeProvider) ReportUsage(ctx context.Context, subscriptionItemID string, quantity int64, at time.Time) (*UsageRecord, error) {
	up := &stripe.UsageRecordParams{
		SubscriptionItem: stripe.String(subscriptionItemID),
		Quantity:         stripe.Int64(quantity),
		Timestamp:        stripe.Int64(at.Unix()),
		Action:           stripe.String(string(stripe.UsageRecordActionIncrement)),
	}
	up.Context = ctx

	r, err := p.sc.UsageRecords.New(up)
	if err != nil {
		return nil, describe(err)
	}
	return &UsageRecord{
		ID:                 r.ID,
		SubscriptionItemID: r.SubscriptionItem,
		Quantity:           r.Quantity,
		Timestamp:          time.Unix(r.Timestamp, 0).UTC(),
	}, nil
}

func (p *stripeProvider) UsageSummaries(ctx context.Context, subscriptionItemID string) ([]UsageSummary, error) {
	lp := &stripe.UsageRecordSummaryListParams{SubscriptionItem: stripe.String(subscriptionItemID)}
	lp.Context = ctx

	out := []UsageSummary{}
	iter := p.sc.UsageRecordSummaries.List(lp)
	for iter.Next() {
		s := iter.UsageRecordSummary()
		sum := UsageSummary{ID: s.ID, Invoice: s.Invoice, TotalUsage: s.TotalUsage}
		if s.Period != nil {
			sum.PeriodFrom = time.Unix(s.Period.Start, 0).UTC()
			sum.PeriodTo = time.Unix(s.Period.End, 0).UTC()
		}
		out = append(out, sum)
	}
	if err := iter.Err(); err != nil {
		return nil, describe(err)
	}
	return out, nil
}

// describe keeps the provider's error code and message in the returned error.
func describe(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		return fmt.Errorf("stripe %s (status %d): %s: %w", se.Code, se.HTTPStatusCode, se.Msg, err)
	}
	return err
}
