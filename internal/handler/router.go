package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/DigitalNexo/Asesoria-la-Llave-V2-sub002/internal/middleware"
)

// SetupRouter wires the HTTP routes and middleware of the budget engine.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/public/budgets/{code}/accept", func(r chi.Router) {
		r.Get("/", h.PublicBudget)
		r.Post("/", h.AcceptBudget)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)

		r.Post("/calculations/{category}", h.Preview)

		r.Route("/budgets", func(r chi.Router) {
			r.Post("/", h.CreateBudget)
			r.Get("/", h.ListBudgets)
			r.Get("/export", h.ExportBudgets)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetBudget)
				r.Patch("/", h.UpdateBudget)
				r.Put("/items", h.ReplaceItems)
				r.Post("/recalculate", h.Recalculate)
				r.Post("/send", h.SendBudget)
				r.Post("/remind", h.RemindBudget)
				r.Post("/expire", h.ExpireBudget)
				r.Get("/logs", h.DeliveryLogs)
			})
		})

		r.Route("/budget-parameters", func(r chi.Router) {
			r.Get("/", h.ListParameters)
			r.Put("/", h.BulkUpdateParameters)
			r.Patch("/{id}", h.UpdateParameter)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
