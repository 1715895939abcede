package billing

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/comfydeploy/engine/internal/identity"
	"github.com/comfydeploy/engine/internal/models"
	appErr "github.com/comfydeploy/engine/pkg/errors"
	"github.com/comfydeploy/engine/pkg/logger"
	"github.com/comfydeploy/engine/pkg/validation"
)

// Plans maps a plan name to the provider price id.
type Plans map[string]string

// PriceID resolves plan, failing with an invalid-input error for unknown or
// unpriced plans.
func (p Plans) PriceID(plan string) (string, error) {
	id, ok := p[strings.ToLower(strings.TrimSpace(plan))]
	if !ok || id == "" {
		return "", appErr.Validation("plan", fmt.Sprintf("unknown plan %q, expected one of [%s]", plan, strings.Join(p.names(), " ")))
	}
	return id, nil
}

func (p Plans) names() []string {
	var names []string
	for name, id := range p {
		if id != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Accounts stores the provider customer of each user or organization.
type Accounts interface {
	GetForCaller(ctx context.Context, caller identity.Identity, dest *models.BillingAccount) error
	Link(ctx context.Context, acct *models.BillingAccount) error
	SetSubscriptionItem(ctx context.Context, accountID uuid.UUID, itemID string) error
}

// Bridge is the pass-through to the payment provider. The customer is always
// the caller's own account; provider failures come back as upstream errors
// and provider payloads are validated before use.
type Bridge struct {
	provider  Provider
	accounts  Accounts
	plans     Plans
	returnURL string
	now       func() time.Time
}

func NewBridge(provider Provider, accounts Accounts, plans Plans, returnURL string) *Bridge {
	return &Bridge{provider: provider, accounts: accounts, plans: plans, returnURL: returnURL, now: time.Now}
}

// CreateCheckoutSession starts a subscription checkout for the caller,
// opening a provider customer on first use.
func (b *Bridge) CreateCheckoutSession(ctx context.Context, caller identity.Identity, plan, successURL, cancelURL string) (*Session, error) {
	if !caller.Authenticated() {
		return nil, appErr.Unauthenticated()
	}
	priceID, err := b.plans.PriceID(plan)
	if err != nil {
		return nil, err
	}
	acct, err := b.ensureAccount(ctx, caller)
	if err != nil {
		return nil, err
	}
	logger.L().Info("create checkout session", zap.String("plan", plan), zap.String("user_id", caller.UserID), zap.String("org_id", caller.OrgID))

	s, err := b.provider.CreateCheckoutSession(ctx, &CheckoutParams{
		PriceID:         priceID,
		CustomerID:      acct.CustomerID,
		ClientReference: acct.Owner,
		SuccessURL:      b.orDefault(successURL),
		CancelURL:       b.orDefault(cancelURL),
	})
	if err != nil {
		return nil, b.upstream(err, "create checkout session failed")
	}
	if err := checked(s); err != nil {
		return nil, err
	}
	return s, nil
}

func (b *Bridge) CreatePortalSession(ctx context.Context, caller identity.Identity) (*Session, error) {
	acct, err := b.account(ctx, caller)
	if err != nil {
		return nil, err
	}
	s, err := b.provider.CreatePortalSession(ctx, acct.CustomerID, b.returnURL)
	if err != nil {
		return nil, b.upstream(err, "create billing portal session failed")
	}
	if err := checked(s); err != nil {
		return nil, err
	}
	return s, nil
}

// ListSubscriptions lists the caller's subscriptions and remembers the
// metered item of the first live one for usage reporting.
func (b *Bridge) ListSubscriptions(ctx context.Context, caller identity.Identity) ([]Subscription, error) {
	acct, err := b.account(ctx, caller)
	if err != nil {
		return nil, err
	}
	subs, err := b.provider.ListSubscriptions(ctx, acct.CustomerID)
	if err != nil {
		return nil, b.upstream(err, "list subscriptions failed")
	}
	for i := range subs {
		if err := checked(&subs[i]); err != nil {
			return nil, err
		}
	}

	if item := meteredItem(subs); item != "" && item != acct.SubscriptionItemID {
		if err := b.accounts.SetSubscriptionItem(ctx, acct.ID, item); err != nil {
			logger.L().Warn("record subscription item failed", zap.String("owner", acct.Owner), zap.Error(err))
		}
	}
	return subs, nil
}

// ReportUsage adds quantity to the owner's metered subscription item. It is
// called by the server when work completes, never with caller input.
func (b *Bridge) ReportUsage(ctx context.Context, owner identity.Identity, quantity int64) (*UsageRecord, error) {
	if quantity < 0 {
		return nil, appErr.Validation("quantity", "quantity must be at least 0")
	}
	itemID, err := b.subscriptionItem(ctx, owner)
	if err != nil {
		return nil, err
	}
	r, err := b.provider.ReportUsage(ctx, itemID, quantity, b.now())
	if err != nil {
		return nil, b.upstream(err, "report usage failed")
	}
	if err := checked(r); err != nil {
		return nil, err
	}
	return r, nil
}

func (b *Bridge) UsageSummaries(ctx context.Context, caller identity.Identity) ([]UsageSummary, error) {
	itemID, err := b.subscriptionItem(ctx, caller)
	if err != nil {
		return nil, err
	}
	sums, err := b.provider.UsageSummaries(ctx, itemID)
	if err != nil {
		return nil, b.upstream(err, "list usage summaries failed")
	}
	for i := range sums {
		if err := checked(&sums[i]); err != nil {
			return nil, err
		}
	}
	return sums, nil
}

func (b *Bridge) account(ctx context.Context, caller identity.Identity) (*models.BillingAccount, error) {
	if !caller.Authenticated() {
		return nil, appErr.Unauthenticated()
	}
	var acct models.BillingAccount
	if err := b.accounts.GetForCaller(ctx, caller, &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

func (b *Bridge) ensureAccount(ctx context.Context, caller identity.Identity) (*models.BillingAccount, error) {
	acct, err := b.account(ctx, caller)
	if err == nil || !appErr.IsCode(err, appErr.CodeNotFound) {
		return acct, err
	}

	owner := models.OwnerKey(caller.UserID, caller.OrgID)
	c, err := b.provider.CreateCustomer(ctx, owner)
	if err != nil {
		return nil, b.upstream(err, "create customer failed")
	}
	if err := checked(c); err != nil {
		return nil, err
	}
	acct = &models.BillingAccount{
		UserID:     caller.UserID,
		OrgID:      models.OrgRef(caller.OrgID),
		Owner:      owner,
		CustomerID: c.ID,
	}
	if err := b.accounts.Link(ctx, acct); err != nil {
		return nil, err
	}
	if acct.CustomerID != c.ID {
		logger.L().Warn("customer created concurrently, keeping the stored one",
			zap.String("owner", owner), zap.String("unused_customer", c.ID))
	}
	return acct, nil
}

func (b *Bridge) subscriptionItem(ctx context.Context, caller identity.Identity) (string, error) {
	acct, err := b.account(ctx, caller)
	if err != nil {
		return "", err
	}
	if acct.SubscriptionItemID == "" {
		return "", appErr.NotFound("subscription item")
	}
	return acct.SubscriptionItemID, nil
}

// meteredItem picks the first item of the first active or trialing subscription.
func meteredItem(subs []Subscription) string {
	for _, s := range subs {
		if (s.Status == "active" || s.Status == "trialing") && len(s.Items) > 0 {
			return s.Items[0].ID
		}
	}
	return ""
}

func (b *Bridge) orDefault(u string) string {
	if u == "" {
		return b.returnURL
	}
	return u
}

func (b *Bridge) upstream(err error, msg string) error {
	logger.L().Error(msg, zap.Error(err))
	return appErr.Upstream(err, msg)
}

// checked validates a provider payload against its contract.
func checked(v any) error {
	if err := validation.Struct(v); err != nil {
		logger.L().Error("billing provider returned a malformed payload", zap.Error(err))
		return err
	}
	return nil
}
