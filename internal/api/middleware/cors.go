package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS allows the configured origins. A single "*" allows any origin without credentials.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowAll := len(origins) == 1 && origins[0] == "*"
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID", "If-None-Match"},
		ExposedHeaders:   []string{"X-Request-ID", "ETag"},
		AllowCredentials: !allowAll,
		MaxAge:           300,
	})
}
