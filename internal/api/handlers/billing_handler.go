package handlers

import (
	"context"
	"net/http"

	"github.com/comfydeploy/engine/internal/api/types"
	"github.com/comfydeploy/engine/internal/billing"
	"github.com/comfydeploy/engine/internal/identity"
)

// Billing is the bridge to the payment provider. Every call acts on the
// caller's own billing account.
type Billing interface {
	CreateCheckoutSession(ctx context.Context, caller identity.Identity, plan, successURL, cancelURL string) (*billing.Session, error)
	CreatePortalSession(ctx context.Context, caller identity.Identity) (*billing.Session, error)
	ListSubscriptions(ctx context.Context, caller identity.Identity) ([]billing.Subscription, error)
	UsageSummaries(ctx context.Context, caller identity.Identity) ([]billing.UsageSummary, error)
}

type BillingHandler struct {
	bridge Billing
}

func NewBillingHandler(bridge Billing) *BillingHandler { return &BillingHandler{bridge: bridge} }

func (h *BillingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req types.CheckoutRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	s, err := h.bridge.CreateCheckoutSession(r.Context(), identity.FromContext(r.Context()), req.Plan, req.SuccessURL, req.CancelURL)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, s)
}

func (h *BillingHandler) Portal(w http.ResponseWriter, r *http.Request) {
	s, err := h.bridge.CreatePortalSession(r.Context(), identity.FromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, s)
}

func (h *BillingHandler) Subscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.bridge.ListSubscriptions(r.Context(), identity.FromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, subs)
}

func (h *BillingHandler) Usage(w http.ResponseWriter, r *http.Request) {
	sums, err := h.bridge.UsageSummaries(r.Context(), identity.FromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, sums)
}
