package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/comfydeploy/engine/internal/identity"
	appErr "github.com/comfydeploy/engine/pkg/errors"
)

// Authenticator resolves a bearer credential into a caller identity.
type Authenticator interface {
	Authenticate(ctx context.Context, bearer string) (identity.Identity, error)
}

// MachineAuthenticator resolves a machine access token into the identity it was minted for.
type MachineAuthenticator interface {
	AuthenticateMachine(token string) (identity.Identity, error)
}

// Identify is the identity gate. Requests without credentials continue as
// anonymous; requests with bad credentials are rejected with 401.
func Identify(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, present, ok := bearer(r)
			if !present {
				next.ServeHTTP(w, r.WithContext(identity.WithIdentity(r.Context(), identity.Anonymous)))
				return
			}
			if !ok {
				writeError(w, r, appErr.Unauthenticated())
				return
			}

			id, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				writeError(w, r, err)
				return
			}
			next.ServeHTTP(w, identified(r, id))
		})
	}
}

// IdentifyMachine admits only requests carrying a valid machine access token.
func IdentifyMachine(auth MachineAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, _, ok := bearer(r)
			if !ok {
				writeError(w, r, appErr.Unauthenticated())
				return
			}
			id, err := auth.AuthenticateMachine(token)
			if err != nil {
				writeError(w, r, err)
				return
			}
			next.ServeHTTP(w, identified(r, id))
		})
	}
}

// bearer extracts the bearer token. present reports whether any Authorization
// header was sent; ok whether it was a well-formed bearer credential.
func bearer(r *http.Request) (token string, present, ok bool) {
	ah := strings.TrimSpace(r.Header.Get("Authorization"))
	if ah == "" {
		return "", false, false
	}
	if len(ah) < len("bearer ") || !strings.EqualFold(ah[:len("bearer ")], "bearer ") {
		return "", true, false
	}
	return ah[len("bearer "):], true, true
}

func identified(r *http.Request, id identity.Identity) *http.Request {
	if note, ok := r.Context().Value(accessNoteKey{}).(*accessNote); ok {
		note.userID, note.orgID = id.UserID, id.OrgID
	}
	return r.WithContext(identity.WithIdentity(r.Context(), id))
}
