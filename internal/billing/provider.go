// Package billing bridges subscription checkout, portal access and metered
// usage to the external payment provider. Locally it only remembers which
// provider customer belongs to which user or organization.
package billing

import (
	"context"
	"time"
)

// Provider is the subset of the payment provider the bridge calls.
type Provider interface {
	// CreateCustomer opens a customer record tagged with the owner reference.
	CreateCustomer(ctx context.Context, reference string) (*Customer, error)
	CreateCheckoutSession(ctx context.Context, params *CheckoutParams) (*Session, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (*Session, error)
	ListSubscriptions(ctx context.Context, customerID string) ([]Subscription, error)
	ReportUsage(ctx context.Context, subscriptionItemID string, quantity int64, at time.Time) (*UsageRecord, error)
	UsageSummaries(ctx context.Context, subscriptionItemID string) ([]UsageSummary, error)
}

type Customer struct {
	ID string `json:"id" validate:"required"`
}

type CheckoutParams struct {
	PriceID    string
	CustomerID string
	// ClientReference ties the session back to the caller's user or organization.
	ClientReference string
	SuccessURL      string
	CancelURL       string
}

// Session is a hosted provider page the caller is redirected to.
type Session struct {
	ID  string `json:"id" validate:"required"`
	URL string `json:"url" validate:"required,url"`
}

type Subscription struct {
	ID               string             `json:"id" validate:"required"`
	Status           string             `json:"status" validate:"required"`
	CurrentPeriodEnd time.Time          `json:"current_period_end"`
	Items            []SubscriptionItem `json:"items" validate:"dive"`
}

type SubscriptionItem struct {
	ID      string `json:"id" validate:"required"`
	PriceID string `json:"price_id"`
}

type UsageRecord struct {
	ID                 string    `json:"id" validate:"required"`
	SubscriptionItemID string    `json:"subscription_item_id" validate:"required"`
	Quantity           int64     `json:"quantity" validate:"gte=0"`
	Timestamp          time.Time `json:"timestamp"`
}

type UsageSummary struct {
	ID         string    `json:"id" validate:"required"`
	Invoice    string    `json:"invoice,omitempty"`
	TotalUsage int64     `json:"total_usage" validate:"gte=0"`
	PeriodFrom time.Time `json:"period_start"`
	PeriodTo   time.Time `json:"period_end"`
}
