// Package handler contains the HTTP API of the budget engine.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/DigitalNexo/Asesoria-la-Llave-V2-sub002/internal/middleware"
	"github.com/DigitalNexo/Asesoria-la-Llave-V2-sub002/internal/model"
	"github.com/DigitalNexo/Asesoria-la-Llave-V2-sub002/internal/pricing"
	"github.com/DigitalNexo/Asesoria-la-Llave-V2-sub002/internal/repository"
	"github.com/DigitalNexo/Asesoria-la-Llave-V2-sub002/internal/service"
)

// Service is the business-logic contract the HTTP handlers depend on.
type Service interface {
	Preview(ctx context.Context, category model.BudgetCategory, input json.RawMessage) (*pricing.Result, error)
	CreateBudget(ctx context.Context, req service.CreateBudgetRequest) (*model.Budget, []model.BudgetItem, error)
	GetBudget(ctx context.Context, id uuid.UUID) (*model.Budget, []model.BudgetItem, error)
	ListBudgets(ctx context.Context, f repository.BudgetFilters) ([]model.Budget, error)
	UpdateBudget(ctx context.Context, id uuid.UUID, req service.UpdateBudgetRequest) (*model.Budget, error)
	ReplaceItems(ctx context.Context, id uuid.UUID, lines []service.ManualItem) (*model.Budget, []model.BudgetItem, error)
	Recalculate(ctx context.Context, id uuid.UUID, input json.RawMessage) (*model.Budget, []model.BudgetItem, error)
	SendBudget(ctx context.Context, id uuid.UUID) (*model.Budget, error)
	RemindBudget(ctx context.Context, id uuid.UUID) (*model.Budget, error)
	ExpireBudget(ctx context.Context, id uuid.UUID) error
	PublicBudget(ctx context.Context, code, tok string) (*model.Budget, []model.BudgetItem, error)
	AcceptBudget(ctx context.Context, code, tok, ip, agent string) (*model.Budget, error)
	ListParameters(ctx context.Context, category model.BudgetCategory) ([]model.Parameter, error)
	UpdateParameter(ctx context.Context, id uuid.UUID, value decimal.Decimal, label *string) (*model.Parameter, error)
	BulkUpdateParameters(ctx context.Context, updates []repository.ParameterUpdate) (int, error)
	DeliveryLogs(ctx context.Context, budgetID uuid.UUID) ([]model.DeliveryLog, error)
	ExportCSV(ctx context.Context, f repository.BudgetFilters, w io.Writer) error
}

// Handler implements the HTTP API.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler creates the HTTP handler set.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

// writeServiceError maps domain errors onto HTTP status codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, repository.ErrBudgetNotFound), errors.Is(err, repository.ErrParameterNotFound):
		http.Error(w, "presupuesto o parámetro no encontrado", http.StatusNotFound)
	case errors.Is(err, service.ErrInvalidToken):
		http.Error(w, "token de aceptación no válido", http.StatusForbidden)
	case errors.Is(err, service.ErrExpired):
		http.Error(w, "el presupuesto ha caducado", http.StatusGone)
	case errors.Is(err, service.ErrAlreadyAccepted):
		http.Error(w, "el presupuesto ya fue aceptado", http.StatusBadRequest)
	case errors.Is(err, service.ErrManualOverride), errors.Is(err, service.ErrTerminalState):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, service.ErrUnknownCategory), errors.Is(err, pricing.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, pricing.ErrNoTier), errors.Is(err, pricing.ErrMissingParameter):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		h.logger.Error(logMsg, zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are gone; nothing left to do but drop it.
		return
	}
}

// clientIP prefers the first forwarded address over the socket peer.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if ip, _, found := strings.Cut(fwd, ","); found || ip != "" {
			return strings.TrimSpace(ip)
		}
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 {
		host = host[:i]
	}
	return host
}

type clientPayload struct {
	Nombre   string `json:"nombre"`
	NIF      string `json:"nif"`
	Email    string `json:"email"`
	Telefono string `json:"telefono"`
}

type discountPayload struct {
	Tipo  string          `json:"tipo"`
	Valor decimal.Decimal `json:"valor"`
}

type itemResponse struct {
	Concepto       string          `json:"concepto"`
	Categoria      string          `json:"categoria"`
	Posicion       int             `json:"posicion"`
	Cantidad       int             `json:"cantidad"`
	PrecioUnitario decimal.Decimal `json:"precioUnitario"`
	IVAPct         decimal.Decimal `json:"ivaPct"`
	BaseImponible  decimal.Decimal `json:"baseImponible"`
	Total          decimal.Decimal `json:"total"`
}

type acceptancePayload struct {
	Fecha  string `json:"fecha"`
	IP     string `json:"ip,omitempty"`
	Agente string `json:"agente,omitempty"`
}

type budgetResponse struct {
	ID             string             `json:"id"`
	Codigo         string             `json:"codigo"`
	Serie          string             `json:"serie"`
	Numero         int                `json:"numero"`
	Anio           int                `json:"anio"`
	Categoria      string             `json:"categoria"`
	Marca          string             `json:"marca"`
	Cliente        clientPayload      `json:"cliente"`
	FechaEmision   string             `json:"fechaEmision"`
	ValidezDias    int                `json:"validezDias"`
	FechaCaducidad string             `json:"fechaCaducidad"`
	BaseImponible  decimal.Decimal    `json:"baseImponible"`
	IVA            decimal.Decimal    `json:"iva"`
	Total          decimal.Decimal    `json:"total"`
	Descuento      *discountPayload   `json:"descuento,omitempty"`
	Estado         string             `json:"estado"`
	Aceptacion     *acceptancePayload `json:"aceptacion,omitempty"`
	Recordatorio   *string            `json:"recordatorioEnviado,omitempty"`
	EdicionManual  bool               `json:"edicionManual"`
	Lineas         []itemResponse     `json:"lineas,omitempty"`
}

func toBudgetResponse(b *model.Budget, items []model.BudgetItem) budgetResponse {
	resp := budgetResponse{
		ID:        b.ID.String(),
		Codigo:    b.Code,
		Serie:     b.Series,
		Numero:    b.Number,
		Anio:      b.Year,
		Categoria: string(b.Category),
		Marca:     string(b.Brand),
		Cliente: clientPayload{
			Nombre:   b.ClientName,
			NIF:      b.ClientTaxID,
			Email:    b.ClientEmail,
			Telefono: b.ClientPhone,
		},
		FechaEmision:   b.IssueDate.UTC().Format(time.RFC3339),
		ValidezDias:    b.ValidDays,
		FechaCaducidad: b.ExpiresAt.UTC().Format(time.RFC3339),
		BaseImponible:  b.Subtotal,
		IVA:            b.TaxTotal,
		Total:          b.Total,
		Estado:         string(b.Status),
		EdicionManual:  b.ManualOverride,
	}
	if b.DiscountType != nil && b.DiscountValue != nil {
		resp.Descuento = &discountPayload{Tipo: string(*b.DiscountType), Valor: *b.DiscountValue}
	}
	if b.AcceptedAt != nil {
		resp.Aceptacion = &acceptancePayload{
			Fecha:  b.AcceptedAt.UTC().Format(time.RFC3339),
			IP:     b.AcceptedByIP,
			Agente: b.AcceptedByAgent,
		}
	}
	if b.RemindSentAt != nil {
		s := b.RemindSentAt.UTC().Format(time.RFC3339)
		resp.Recordatorio = &s
	}
	for _, it := range items {
		resp.Lineas = append(resp.Lineas, itemResponse{
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
	return resp
}

func parseBudgetID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	return id, err == nil
}

func parseCategory(raw string) (model.BudgetCategory, bool) {
	c := model.BudgetCategory(strings.ToUpper(raw))
	return c, c.Valid()
}

// parseBrand defaults unknown brands to the main one.
func parseBrand(raw string) model.CompanyBrand {
	if model.CompanyBrand(raw) == model.BrandGestoriaOnline {
		return model.BrandGestoriaOnline
	}
	return model.BrandAsesoriaLaLlave
}
