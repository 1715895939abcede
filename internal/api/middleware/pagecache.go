package middleware

import (
	"bytes"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/comfydeploy/engine/internal/cache"
	"github.com/comfydeploy/engine/internal/identity"
	"github.com/comfydeploy/engine/pkg/logger"
	"github.com/comfydeploy/engine/pkg/utils"
)

// PageCache serves GET responses for authenticated callers from c, keyed by
// the path relative to the route mount and the caller's scope. Only 200
// responses are stored. Responses carry an ETag so clients can revalidate.
func PageCache(c cache.PageCache, ttl time.Duration, pathOf func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := identity.FromContext(r.Context())
			if r.Method != http.MethodGet || !caller.Authenticated() {
				next.ServeHTTP(w, r)
				return
			}
			path, scope := pathOf(r), scopeKey(caller)

			body, ok, err := c.Get(r.Context(), path, scope)
			if err != nil {
				logger.L().Warn("page cache read failed", zap.String("path", path), zap.Error(err))
			}
			if ok {
				w.Header().Set("X-Cache", "HIT")
				serveBody(w, r, body)
				return
			}

			rec := &bodyRecorder{header: http.Header{}, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			if rec.status == http.StatusOK {
				if err := c.Set(r.Context(), path, scope, rec.buf.Bytes(), ttl); err != nil {
					logger.L().Warn("page cache write failed", zap.String("path", path), zap.Error(err))
				}
			}

			for k, v := range rec.header {
				w.Header()[k] = v
			}
			w.Header().Set("X-Cache", "MISS")
			if rec.status != http.StatusOK {
				w.WriteHeader(rec.status)
				_, _ = w.Write(rec.buf.Bytes())
				return
			}
			serveBody(w, r, rec.buf.Bytes())
		})
	}
}

func scopeKey(id identity.Identity) string {
	if id.InOrg() {
		return "org:" + id.OrgID
	}
	return "user:" + id.UserID
}

func serveBody(w http.ResponseWriter, r *http.Request, body []byte) {
	etag := `"` + utils.SumSHA256Hex(body) + `"`
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

type bodyRecorder struct {
	header http.Header
	status int
	buf    bytes.Buffer
}

func (b *bodyRecorder) Header() http.Header { return b.header }

func (b *bodyRecorder) WriteHeader(code int) { b.status = code }

func (b *bodyRecorder) Write(p []byte) (int, error) { return b.buf.Write(p) }
