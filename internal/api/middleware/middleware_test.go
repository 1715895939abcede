package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comfydeploy/engine/internal/api/types"
	"github.com/comfydeploy/engine/internal/cache"
	"github.com/comfydeploy/engine/internal/identity"
	appErr "github.com/comfydeploy/engine/pkg/errors"
)

type staticAuth map[string]identity.Identity

func (s staticAuth) Authenticate(_ context.Context, bearer string) (identity.Identity, error) {
	if id, ok := s[bearer]; ok {
		return id, nil
	}
	return identity.Anonymous, appErr.Unauthenticated()
}

type machineAuth map[string]identity.Identity

func (m machineAuth) AuthenticateMachine(token string) (identity.Identity, error) {
	if id, ok := m[token]; ok {
		return id, nil
	}
	return identity.Anonymous, appErr.Unauthenticated()
}

func echoIdentity() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(identity.FromContext(r.Context()))
	})
}

func TestIdentify(t *testing.T) {
	h := Identify(staticAuth{"good": {UserID: "u", OrgID: "o"}})(echoIdentity())

	tests := []struct {
		name   string
		header string
		status int
		want   identity.Identity
	}{
		{name: "anonymous", header: "", status: http.StatusOK, want: identity.Anonymous},
		{name: "bearer", header: "Bearer good", status: http.StatusOK, want: identity.Identity{UserID: "u", OrgID: "o"}},
		{name: "lowercase scheme", header: "bearer good", status: http.StatusOK, want: identity.Identity{UserID: "u", OrgID: "o"}},
		{name: "bad token", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "basic auth", header: "Basic dTpw", status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			require.Equal(t, tt.status, rr.Code)
			if tt.status != http.StatusOK {
				var resp types.APIResponse
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
				assert.Equal(t, "unauthenticated", resp.Error.Code)
				return
			}
			var got identity.Identity
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIdentifyMachineRequiresToken(t *testing.T) {
	h := IdentifyMachine(machineAuth{"machine-token": {UserID: "u", OrgID: "o"}})(echoIdentity())

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "machine token", header: "Bearer machine-token", status: http.StatusOK},
		{name: "missing", header: "", status: http.StatusUnauthorized},
		{name: "session or api key", header: "Bearer cd_secret", status: http.StatusUnauthorized},
		{name: "basic auth", header: "Basic dTpw", status: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/update-run", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			require.Equal(t, tt.status, rr.Code)
			if tt.status == http.StatusOK {
				var got identity.Identity
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
				assert.Equal(t, identity.Identity{UserID: "u", OrgID: "o"}, got)
			}
		})
	}
}

func TestRateLimitRejectsBurst(t *testing.T) {
	h := RateLimit(1, 2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code, "other visitors have their own bucket")
}

func TestRecoveryRendersEnvelope(t *testing.T) {
	h := RequestID(Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	var resp types.APIResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Meta.RequestID)
}

func TestPageCacheScopesAndRevalidates(t *testing.T) {
	pages := cache.NewMemory()
	calls := 0
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"caller":"` + identity.FromContext(r.Context()).UserID + `"}`))
	})
	h := PageCache(pages, time.Minute, func(r *http.Request) string { return r.URL.Path })(inner)

	get := func(id identity.Identity, etag string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/workflows/w1", nil)
		req = req.WithContext(identity.WithIdentity(req.Context(), id))
		if etag != "" {
			req.Header.Set("If-None-Match", etag)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	a := identity.Identity{UserID: "a"}
	first := get(a, "")
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	second := get(a, "")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, calls)

	notModified := get(a, first.Header().Get("ETag"))
	assert.Equal(t, http.StatusNotModified, notModified.Code)

	b := get(identity.Identity{UserID: "b"}, "")
	assert.Equal(t, "MISS", b.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"caller":"b"}`, b.Body.String())

	require.NoError(t, pages.Invalidate(context.Background(), "/workflows/w1"))
	assert.Equal(t, "MISS", get(a, "").Header().Get("X-Cache"))
	assert.Equal(t, 3, calls)
}

func TestRequestIDReusesWellFormedHeader(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "trace-42")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "trace-42", seen)
	assert.Equal(t, "trace-42", rr.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "bad id\nwith newline")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.NotEqual(t, "bad id\nwith newline", seen)
	assert.Len(t, seen, 36)
}
