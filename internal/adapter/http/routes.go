package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"` + Version + `"}`))
		})

		// Routing
		r.Post("/route", h.Route)
		r.Post("/suggest", h.Suggest)
		r.Post("/query", h.QueryExperts)
		r.Get("/history", handleList(h.Engine.History))
		r.Get("/stats", h.Statistics)

		// Registry
		r.Get("/experts", handleList(h.listExperts))
		r.Post("/experts", handleCreate(maxRequestBodySize, h.addExpert, expertLocation))
		r.Get("/experts/{id}", handleGet(h.getExpert, "expert not found"))
		r.Delete("/experts/{id}", handleDelete(h.removeExpert, "expert not found"))
		r.Post("/experts/{id}/enable", h.EnableExpert)
		r.Post("/experts/{id}/disable", h.DisableExpert)
		r.Get("/domains", h.ListDomains)
		r.Get("/domains/{domain}/experts", handleListByParam("domain", h.domainExperts, "domain not found"))
		r.Post("/registry/export", h.ExportRegistry)
		r.Post("/registry/import", h.ImportRegistry)

		// Token dispatch
		r.Post("/orchestrator/run", h.Run)
		r.Post("/orchestrator/light-pull", h.LightPull)
		r.Get("/orchestrator/route-token", h.RouteToken)
		r.Get("/orchestrator/slots", h.Slots)
		r.Get("/dataset/examples", h.ListExamples)
	})
}
