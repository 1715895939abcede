package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"

	"github.com/comfydeploy/engine/internal/api/handlers"
	mw "github.com/comfydeploy/engine/internal/api/middleware"
	"github.com/comfydeploy/engine/internal/cache"
)

type Dependencies struct {
	Auth mw.Authenticator
	// MachineAuth verifies the tokens machines present when reporting run progress.
	MachineAuth mw.MachineAuthenticator
	Pages cache.PageCache
	// PageTTL bounds how long a rendered workflow page is served from cache.
	PageTTL time.Duration

	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int

	HealthHandler      *handlers.HealthHandler
	WorkflowsHandler   *handlers.WorkflowsHandler
	DeploymentsHandler *handlers.DeploymentsHandler
	MachinesHandler    *handlers.MachinesHandler
	RunsHandler        *handlers.RunsHandler
	RegistryHandler    *handlers.RegistryHandler
	// BillingHandler is nil when no payment provider is configured.
	BillingHandler *handlers.BillingHandler
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.Recovery)
	r.Use(mw.Logging)
	r.Use(mw.CORS(dep.AllowedOrigins))
	r.Use(mw.RateLimit(dep.RateLimitRPS, dep.RateLimitBurst))
	r.Use(chimid.Compress(5))

	r.Get("/healthz", dep.HealthHandler.Liveness)
	r.Get("/readyz", dep.HealthHandler.Readiness)

	workflowPage := mw.PageCache(dep.Pages, dep.PageTTL, func(r *http.Request) string {
		return cache.WorkflowPath(chi.URLParam(r, "id"))
	})

	r.Route("/api/v1", func(api chi.Router) {
		api.Group(func(ur chi.Router) {
			ur.Use(mw.Identify(dep.Auth))

			ur.Route("/workflows", func(wr chi.Router) {
				wr.Get("/", dep.WorkflowsHandler.List)
				wr.Post("/", dep.WorkflowsHandler.Create)
				wr.With(workflowPage).Get("/{id}", dep.WorkflowsHandler.Get)
				wr.Post("/{id}/versions", dep.WorkflowsHandler.CreateVersion)
				wr.Get("/{id}/runs", dep.WorkflowsHandler.ListRuns)
				wr.Get("/{id}/deployments", dep.DeploymentsHandler.List)
				wr.Post("/{id}/deployments", dep.DeploymentsHandler.Upsert)
			})

			ur.Route("/machines", func(mr chi.Router) {
				mr.Get("/", dep.MachinesHandler.List)
				mr.Post("/", dep.MachinesHandler.Create)
				mr.Delete("/{id}", dep.MachinesHandler.Delete)
				mr.Post("/{id}/access", dep.MachinesHandler.Access)
			})

			ur.Route("/runs", func(rr chi.Router) {
				rr.Post("/", dep.RunsHandler.Create)
				rr.Get("/{id}", dep.RunsHandler.Get)
				rr.Get("/{id}/outputs", dep.RunsHandler.Outputs)
			})

			ur.Get("/checkpoints", dep.RegistryHandler.Checkpoints)
			ur.Get("/models", dep.RegistryHandler.Models)

			ur.Route("/api-keys", func(kr chi.Router) {
				kr.Get("/", dep.RegistryHandler.APIKeys)
				kr.Post("/", dep.RegistryHandler.CreateAPIKey)
				kr.Delete("/{id}", dep.RegistryHandler.RevokeAPIKey)
			})

			if dep.BillingHandler != nil {
				ur.Route("/billing", func(br chi.Router) {
					br.Post("/checkout", dep.BillingHandler.Checkout)
					br.Post("/portal", dep.BillingHandler.Portal)
					br.Get("/subscriptions", dep.BillingHandler.Subscriptions)
					br.Get("/usage", dep.BillingHandler.Usage)
				})
			}
		})

		// Machines report run progress with the access token minted for them.
		api.Group(func(mr chi.Router) {
			mr.Use(mw.IdentifyMachine(dep.MachineAuth))
			mr.Post("/update-run", dep.RunsHandler.Update)
		})
	})

	return r
}
