package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/skylabel/internal/labeling"
)

// NewRouter creates a chi router with all API routes mounted.
// sseHandler, if non-nil, is mounted at GET /events.
func NewRouter(svc *labeling.Service, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(HolderMiddleware)

	r.Post("/holders", h.IssueHolder)
	r.Post("/holders/{holder}/release", h.ReleaseAll)

	// Routes acting on behalf of an annotator.
	r.Group(func(r chi.Router) {
		r.Use(RequireHolder)

		r.Get("/inventory", h.Inventory)

		r.Post("/leases/{filename}", h.AcquireLease)
		r.Put("/leases/{filename}/heartbeat", h.Heartbeat)
		r.Delete("/leases/{filename}", h.ReleaseLease)

		r.Post("/annotations", h.SubmitAnnotation)
		r.Post("/skips", h.MarkSkip)
	})

	r.Get("/leases/{filename}", h.LeaseInfo)

	// Annotation CRUD.
	r.Get("/annotations", h.ListAnnotations)
	r.Get("/annotations/{id}", h.GetAnnotation)
	r.Put("/annotations/{id}", h.UpdateAnnotation)
	r.Delete("/annotations/{id}", h.DeleteAnnotation)

	// Export.
	r.Get("/export/csv", h.ExportCSV)
	r.Get("/export/yolo", h.ExportYOLO)

	r.Get("/stats", h.Stats)

	r.Get("/reference/{kind}", h.ListReference)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
