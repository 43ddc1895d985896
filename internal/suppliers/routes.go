package suppliers

import "github.com/go-chi/chi/v5"

// MountRoutes attaches supplier routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/resolve-supplier", h.Resolve)
	r.Post("/update-supplier", h.Update)
	r.Get("/suppliers", h.List)
	r.Get("/suppliers/{id}", h.Show)
}
