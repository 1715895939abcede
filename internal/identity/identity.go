// Package identity carries the caller identity resolved by the identity gate.
// Services receive an Identity explicitly; nothing reads it from ambient state.
package identity

import "context"

// Identity is the (user, organization) pair of the current caller. OrgID is
// empty when the caller acts in their personal scope.
type Identity struct {
	UserID string
	OrgID  string
}

// Anonymous is the zero identity.
var Anonymous = Identity{}

// Authenticated reports whether a user is present.
func (i Identity) Authenticated() bool { return i.UserID != "" }

// InOrg reports whether the caller acts within an organization.
func (i Identity) InOrg() bool { return i.OrgID != "" }

type ctxKey struct{}

// WithIdentity attaches id to ctx. Only the HTTP layer uses this to hand the
// gate's result to handlers.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by WithIdentity, or Anonymous.
func FromContext(ctx context.Context) Identity {
	if id, ok := ctx.Value(ctxKey{}).(Identity); ok {
		return id
	}
	return Anonymous
}
