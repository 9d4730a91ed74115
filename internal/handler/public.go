package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// PublicBudget returns the budget behind a public acceptance link. Expired
// budgets are still returned so the page can explain the situation.
func (h *Handler) PublicBudget(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	tok := r.URL.Query().Get("t")
	if tok == "" {
		http.Error(w, "falta el token de aceptación", http.StatusBadRequest)
		return
	}

	b, items, err := h.service.PublicBudget(r.Context(), code, tok)
	if err != nil {
		h.writeServiceError(w, err, "public budget error")
		return
	}
	writeJSON(w, http.StatusOK, toBudgetResponse(b, items))
}

// AcceptBudget records the client's acceptance of a budget.
func (h *Handler) AcceptBudget(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	tok := r.URL.Query().Get("t")
	if tok == "" {
		http.Error(w, "falta el token de aceptación", http.StatusBadRequest)
		return
	}

	b, err := h.service.AcceptBudget(r.Context(), code, tok, clientIP(r), r.UserAgent())
	if err != nil {
		h.writeServiceError(w, err, "accept budget error")
		return
	}
	writeJSON(w, http.StatusOK, toBudgetResponse(b, nil))
}
