package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/DigitalNexo/Asesoria-la-Llave-V2-sub002/internal/model"
	"github.com/DigitalNexo/Asesoria-la-Llave-V2-sub002/internal/repository"
)

type parameterResponse struct {
	ID        string           `json:"id"`
	Categoria string           `json:"categoria"`
	Grupo     string           `json:"grupo"`
	Clave     string           `json:"clave"`
	Etiqueta  string           `json:"etiqueta"`
	Valor     decimal.Decimal  `json:"valor"`
	Desde     *decimal.Decimal `json:"desde,omitempty"`
	Hasta     *decimal.Decimal `json:"hasta,omitempty"`
	Posicion  int              `json:"posicion"`
}

func toParameterResponse(p *model.Parameter) parameterResponse {
	return parameterResponse{
		ID:        p.ID.String(),
		Categoria: string(p.Category),
		Grupo:     p.Group,
		Clave:     p.Key,
		Etiqueta:  p.Label,
		Valor:     p.Value,
		Desde:     p.MinRange,
		Hasta:     p.MaxRange,
		Posicion:  p.Position,
	}
}

// ListParameters returns the active pricing parameters, optionally narrowed
// to the category named by the "categoria" query parameter.
func (h *Handler) ListParameters(w http.ResponseWriter, r *http.Request) {
	var category model.BudgetCategory
	if raw := r.URL.Query().Get("categoria"); raw != "" {
		c, ok := parseCategory(raw)
		if !ok {
			http.Error(w, "categoría desconocida", http.StatusBadRequest)
			return
		}
		category = c
	}

	params, err := h.service.ListParameters(r.Context(), category)
	if err != nil {
		h.writeServiceError(w, err, "list parameters error")
		return
	}

	resp := make([]parameterResponse, 0, len(params))
	for i := range params {
		resp = append(resp, toParameterResponse(&params[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

type updateParameterRequest struct {
	Valor    *decimal.Decimal `json:"valor"`
	Etiqueta *string          `json:"etiqueta"`
}

// UpdateParameter changes one pricing constant.
func (h *Handler) UpdateParameter(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req updateParameterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Valor == nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	p, err := h.service.UpdateParameter(r.Context(), id, *req.Valor, req.Etiqueta)
	if err != nil {
		h.writeServiceError(w, err, "update parameter error")
		return
	}
	writeJSON(w, http.StatusOK, toParameterResponse(p))
}

type bulkParameterRequest struct {
	Cambios []struct {
		ID    string          `json:"id"`
		Valor decimal.Decimal `json:"valor"`
	} `json:"cambios"`
}

// BulkUpdateParameters applies several parameter changes in one transaction.
func (h *Handler) BulkUpdateParameters(w http.ResponseWriter, r *http.Request) {
	var req bulkParameterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Cambios) == 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	updates := make([]repository.ParameterUpdate, 0, len(req.Cambios))
	for _, c := range req.Cambios {
		id, err := uuid.Parse(c.ID)
		if err != nil {
			http.Error(w, "identificador de parámetro no válido", http.StatusBadRequest)
			return
		}
		updates = append(updates, repository.ParameterUpdate{ID: id, Value: c.Valor})
	}

	n, err := h.service.BulkUpdateParameters(r.Context(), updates)
	if err != nil {
		h.writeServiceError(w, err, "bulk update parameters error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"actualizados": n})
}
