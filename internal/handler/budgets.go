package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DigitalNexo/Asesoria-la-Llave-V2-sub002/internal/model"
	"github.com/DigitalNexo/Asesoria-la-Llave-V2-sub002/internal/repository"
	"github.com/DigitalNexo/Asesoria-la-Llave-V2-sub002/internal/service"
	"github.com/DigitalNexo/Asesoria-la-Llave-V2-sub002/internal/validation"
)

type createBudgetRequest struct {
	Categoria   string          `json:"categoria"`
	Marca       string          `json:"marca"`
	Cliente     clientPayload   `json:"cliente"`
	ValidezDias int             `json:"validezDias"`
	Datos       json.RawMessage `json:"datos"`
}

// missingInput reports whether the calculator payload is absent. A JSON
// null decodes into a non-empty raw message and must be rejected too.
func missingInput(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// CreateBudget prices the calculator input and persists a draft budget.
func (h *Handler) CreateBudget(w http.ResponseWriter, r *http.Request) {
	var req createBudgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	category, ok := parseCategory(req.Categoria)
	if !ok {
		http.Error(w, "categoría desconocida", http.StatusBadRequest)
		return
	}
	if req.Cliente.Nombre == "" || req.Cliente.Email == "" {
		http.Error(w, "nombre y email del cliente son obligatorios", http.StatusBadRequest)
		return
	}
	if req.Cliente.NIF != "" && !validation.IsValidTaxID(req.Cliente.NIF) {
		http.Error(w, "NIF/CIF no válido", http.StatusUnprocessableEntity)
		return
	}
	if missingInput(req.Datos) {
		http.Error(w, "faltan los datos del cálculo", http.StatusBadRequest)
		return
	}

	b, items, err := h.service.CreateBudget(r.Context(), service.CreateBudgetRequest{
		Category:    category,
		Brand:       parseBrand(req.Marca),
		ClientName:  req.Cliente.Nombre,
		ClientTaxID: req.Cliente.NIF,
		ClientEmail: req.Cliente.Email,
		ClientPhone: req.Cliente.Telefono,
		ValidDays:   req.ValidezDias,
		Input:       req.Datos,
	})
	if err != nil {
		h.writeServiceError(w, err, "create budget error")
		return
	}

	writeJSON(w, http.StatusCreated, toBudgetResponse(b, items))
}

// GetBudget returns one budget with its lines.
func (h *Handler) GetBudget(w http.ResponseWriter, r *http.Request) {
	id, ok := parseBudgetID(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	b, items, err := h.service.GetBudget(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "get budget error")
		return
	}
	writeJSON(w, http.StatusOK, toBudgetResponse(b, items))
}

// budgetFilters reads the list filters off the query string.
func budgetFilters(r *http.Request) repository.BudgetFilters {
	q := r.URL.Query()
	f := repository.BudgetFilters{
		Status:   model.BudgetStatus(q.Get("estado")),
		Category: model.BudgetCategory(q.Get("categoria")),
		Series:   q.Get("serie"),
		Search:   q.Get("q"),
	}
	if v := q.Get("desde"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			f.From = &t
		}
	}
	if v := q.Get("hasta"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			end := t.AddDate(0, 0, 1)
			f.To = &end
		}
	}
	return f
}

// ListBudgets returns budgets matching the query filters, newest first.
func (h *Handler) ListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := h.service.ListBudgets(r.Context(), budgetFilters(r))
	if err != nil {
		h.writeServiceError(w, err, "list budgets error")
		return
	}

	resp := make([]budgetResponse, 0, len(budgets))
	for i := range budgets {
		resp = append(resp, toBudgetResponse(&budgets[i], nil))
	}
	writeJSON(w, http.StatusOK, resp)
}

// ExportBudgets streams the filtered budgets as a CSV download.
func (h *Handler) ExportBudgets(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="presupuestos.csv"`)
	if err := h.service.ExportCSV(r.Context(), budgetFilters(r), w); err != nil {
		h.logger.Error("export budgets error", zap.Error(err))
	}
}

type updateBudgetRequest struct {
	Cliente *struct {
		Nombre   *string `json:"nombre"`
		NIF      *string `json:"nif"`
		Email    *string `json:"email"`
		Telefono *string `json:"telefono"`
	} `json:"cliente"`
	ValidezDias *int `json:"validezDias"`
}

// UpdateBudget edits the header fields of a non-terminal budget.
func (h *Handler) UpdateBudget(w http.ResponseWriter, r *http.Request) {
	id, ok := parseBudgetID(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req updateBudgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	upd := service.UpdateBudgetRequest{ValidDays: req.ValidezDias}
	if req.Cliente != nil {
		if req.Cliente.NIF != nil && *req.Cliente.NIF != "" && !validation.IsValidTaxID(*req.Cliente.NIF) {
			http.Error(w, "NIF/CIF no válido", http.StatusUnprocessableEntity)
			return
		}
		upd.ClientName = req.Cliente.Nombre
		upd.ClientTaxID = req.Cliente.NIF
		upd.ClientEmail = req.Cliente.Email
		upd.ClientPhone = req.Cliente.Telefono
	}

	b, err := h.service.UpdateBudget(r.Context(), id, upd)
	if err != nil {
		h.writeServiceError(w, err, "update budget error")
		return
	}
	writeJSON(w, http.StatusOK, toBudgetResponse(b, nil))
}

// ReplaceItems swaps every line of a budget for the submitted manual lines.
func (h *Handler) ReplaceItems(w http.ResponseWriter, r *http.Request) {
	id, ok := parseBudgetID(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req struct {
		Lineas []service.ManualItem `json:"lineas"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	b, items, err := h.service.ReplaceItems(r.Context(), id, req.Lineas)
	if err != nil {
		h.writeServiceError(w, err, "replace items error")
		return
	}
	writeJSON(w, http.StatusOK, toBudgetResponse(b, items))
}

// Recalculate reprices a budget from fresh calculator input.
func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseBudgetID(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req struct {
		Datos json.RawMessage `json:"datos"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || missingInput(req.Datos) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	b, items, err := h.service.Recalculate(r.Context(), id, req.Datos)
	if err != nil {
		h.writeServiceError(w, err, "recalculate budget error")
		return
	}
	writeJSON(w, http.StatusOK, toBudgetResponse(b, items))
}

// SendBudget mails the budget to the client and marks it sent.
func (h *Handler) SendBudget(w http.ResponseWriter, r *http.Request) {
	id, ok := parseBudgetID(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	b, err := h.service.SendBudget(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "send budget error")
		return
	}
	writeJSON(w, http.StatusOK, toBudgetResponse(b, nil))
}

// RemindBudget sends a manual expiry reminder.
func (h *Handler) RemindBudget(w http.ResponseWriter, r *http.Request) {
	id, ok := parseBudgetID(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	b, err := h.service.RemindBudget(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "remind budget error")
		return
	}
	writeJSON(w, http.StatusOK, toBudgetResponse(b, nil))
}

// ExpireBudget archives a budget past its validity window.
func (h *Handler) ExpireBudget(w http.ResponseWriter, r *http.Request) {
	id, ok := parseBudgetID(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.ExpireBudget(r.Context(), id); err != nil {
		h.writeServiceError(w, err, "expire budget error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type deliveryLogResponse struct {
	Fecha        string `json:"fecha"`
	Tipo         string `json:"tipo"`
	Destinatario string `json:"destinatario"`
	Asunto       string `json:"asunto"`
	Resultado    string `json:"resultado"`
	Detalle      string `json:"detalle,omitempty"`
}

// DeliveryLogs returns the delivery history of a budget.
func (h *Handler) DeliveryLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := parseBudgetID(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	logs, err := h.service.DeliveryLogs(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "delivery logs error")
		return
	}

	resp := make([]deliveryLogResponse, 0, len(logs))
	for _, l := range logs {
		resp = append(resp, deliveryLogResponse{
			Fecha:        l.CreatedAt.UTC().Format(time.RFC3339),
			Tipo:         string(l.Kind),
			Destinatario: l.Recipient,
			Asunto:       l.Subject,
			Resultado:    string(l.Outcome),
			Detalle:      l.Detail,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Preview runs a calculation without persisting a budget.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	category, ok := parseCategory(chi.URLParam(r, "category"))
	if !ok {
		http.Error(w, "categoría desconocida", http.StatusBadRequest)
		return
	}

	var input json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	result, err := h.service.Preview(r.Context(), category, input)
	if err != nil {
		h.writeServiceError(w, err, "preview calculation error")
		return
	}

	lines := make([]itemResponse, 0, len(result.Items))
	for _, it := range result.Items {
		lines = append(lines, itemResponse{
			Concepto:       it.Concept,
			Categoria:      it.Category,
			Posicion:       it.Position,
			Cantidad:       it.Quantity,
			PrecioUnitario: it.UnitPrice,
			IVAPct:         it.TaxPct,
			BaseImponible:  it.Subtotal,
			Total:          it.Total,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"lineas":        lines,
		"baseImponible": result.Subtotal,
		"iva":           result.TaxTotal,
		"total":         result.Total,
	})
}
