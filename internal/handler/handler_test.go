package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/DigitalNexo/Asesoria-la-Llave-V2-sub002/internal/middleware"
	"github.com/DigitalNexo/Asesoria-la-Llave-V2-sub002/internal/model"
	"github.com/DigitalNexo/Asesoria-la-Llave-V2-sub002/internal/pricing"
	"github.com/DigitalNexo/Asesoria-la-Llave-V2-sub002/internal/repository"
	"github.com/DigitalNexo/Asesoria-la-Llave-V2-sub002/internal/service"
)

type stubService struct {
	budget *model.Budget
	items  []model.BudgetItem

	createErr error
	acceptErr error
	publicErr error

	previewResult *pricing.Result
	previewErr    error

	params    []model.Parameter
	paramsErr error

	lastFilters repository.BudgetFilters
}

func (s *stubService) Preview(ctx context.Context, category model.BudgetCategory, input json.RawMessage) (*pricing.Result, error) {
	return s.previewResult, s.previewErr
}

func (s *stubService) CreateBudget(ctx context.Context, req service.CreateBudgetRequest) (*model.Budget, []model.BudgetItem, error) {
	if s.createErr != nil {
		return nil, nil, s.createErr
	}
	return s.budget, s.items, nil
}

func (s *stubService) GetBudget(ctx context.Context, id uuid.UUID) (*model.Budget, []model.BudgetItem, error) {
	if s.budget == nil {
		return nil, nil, repository.ErrBudgetNotFound
	}
	return s.budget, s.items, nil
}

func (s *stubService) ListBudgets(ctx context.Context, f repository.BudgetFilters) ([]model.Budget, error) {
	s.lastFilters = f
	if s.budget == nil {
		return nil, nil
	}
	return []model.Budget{*s.budget}, nil
}

func (s *stubService) UpdateBudget(ctx context.Context, id uuid.UUID, req service.UpdateBudgetRequest) (*model.Budget, error) {
	return s.budget, nil
}

func (s *stubService) ReplaceItems(ctx context.Context, id uuid.UUID, lines []service.ManualItem) (*model.Budget, []model.BudgetItem, error) {
	return s.budget, s.items, nil
}

func (s *stubService) Recalculate(ctx context.Context, id uuid.UUID, input json.RawMessage) (*model.Budget, []model.BudgetItem, error) {
	return s.budget, s.items, nil
}

func (s *stubService) SendBudget(ctx context.Context, id uuid.UUID) (*model.Budget, error) {
	return s.budget, nil
}

func (s *stubService) RemindBudget(ctx context.Context, id uuid.UUID) (*model.Budget, error) {
	return s.budget, nil
}

func (s *stubService) ExpireBudget(ctx context.Context, id uuid.UUID) error {
	return nil
}

func (s *stubService) PublicBudget(ctx context.Context, code, tok string) (*model.Budget, []model.BudgetItem, error) {
	if s.publicErr != nil {
		return nil, nil, s.publicErr
	}
	return s.budget, s.items, nil
}

func (s *stubService) AcceptBudget(ctx context.Context, code, tok, ip, agent string) (*model.Budget, error) {
	if s.acceptErr != nil {
		return nil, s.acceptErr
	}
	return s.budget, nil
}

func (s *stubService) ListParameters(ctx context.Context, category model.BudgetCategory) ([]model.Parameter, error) {
	return s.params, s.paramsErr
}

func (s *stubService) UpdateParameter(ctx context.Context, id uuid.UUID, value decimal.Decimal, label *string) (*model.Parameter, error) {
	if len(s.params) == 0 {
		return nil, repository.ErrParameterNotFound
	}
	p := s.params[0]
	p.Value = value
	return &p, nil
}

func (s *stubService) BulkUpdateParameters(ctx context.Context, updates []repository.ParameterUpdate) (int, error) {
	return len(updates), nil
}

func (s *stubService) DeliveryLogs(ctx context.Context, budgetID uuid.UUID) ([]model.DeliveryLog, error) {
	return nil, nil
}

func (s *stubService) ExportCSV(ctx context.Context, f repository.BudgetFilters, w io.Writer) error {
	_, err := w.Write([]byte("codigo\n"))
	return err
}

func testBudget() *model.Budget {
	return &model.Budget{
		ID:          uuid.New(),
		Series:      "AL",
		Number:      12,
		Year:        2026,
		Code:        "AL-2026-0012",
		Category:    model.CategoryAutonomo,
		Brand:       model.BrandAsesoriaLaLlave,
		ClientName:  "Carmen Ruiz",
		ClientEmail: "carmen@example.com",
		IssueDate:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		ValidDays:   30,
		ExpiresAt:   time.Date(2026, 3, 31, 10, 0, 0, 0, time.UTC),
		Subtotal:    decimal.RequireFromString("95.00"),
		TaxTotal:    decimal.RequireFromString("19.95"),
		Total:       decimal.RequireFromString("114.95"),
		Status:      model.BudgetStatusSent,
	}
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	auth := middleware.NewAuthMiddleware("test-secret")

	return NewHandler(svc, logger, auth)
}

func TestAcceptBudget_StatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		acceptErr  error
		wantStatus int
	}{
		{"missing token", "/public/budgets/AL-2026-0012/accept", nil, http.StatusBadRequest},
		{"invalid token", "/public/budgets/AL-2026-0012/accept?t=bad", service.ErrInvalidToken, http.StatusForbidden},
		{"unknown code", "/public/budgets/AL-2026-9999/accept?t=tok", repository.ErrBudgetNotFound, http.StatusNotFound},
		{"expired", "/public/budgets/AL-2026-0012/accept?t=tok", service.ErrExpired, http.StatusGone},
		{"already accepted", "/public/budgets/AL-2026-0012/accept?t=tok", service.ErrAlreadyAccepted, http.StatusBadRequest},
		{"success", "/public/budgets/AL-2026-0012/accept?t=tok", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{budget: testBudget(), acceptErr: tt.acceptErr}
			h := newTestHandler(t, svc)
			router := h.SetupRouter()

			req := httptest.NewRequest(http.MethodPost, tt.url, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestPublicBudget_RequiresToken(t *testing.T) {
	svc := &stubService{budget: testBudget()}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodGet, "/public/budgets/AL-2026-0012/accept", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestStaffRoutes_RequireAuth(t *testing.T) {
	svc := &stubService{budget: testBudget()}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/budgets", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestCreateBudget_Validation(t *testing.T) {
	svc := &stubService{budget: testBudget()}
	h := newTestHandler(t, svc)

	tests := []struct {
		name       string
		body       createBudgetRequest
		wantStatus int
	}{
		{
			name: "unknown category",
			body: createBudgetRequest{
				Categoria: "SOCIEDADES",
				Cliente:   clientPayload{Nombre: "X", Email: "x@example.com"},
				Datos:     json.RawMessage(`{}`),
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "missing client",
			body: createBudgetRequest{
				Categoria: "AUTONOMO",
				Datos:     json.RawMessage(`{}`),
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "invalid tax id",
			body: createBudgetRequest{
				Categoria: "AUTONOMO",
				Cliente:   clientPayload{Nombre: "X", Email: "x@example.com", NIF: "12345678A"},
				Datos:     json.RawMessage(`{}`),
			},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name: "missing input",
			body: createBudgetRequest{
				Categoria: "AUTONOMO",
				Cliente:   clientPayload{Nombre: "X", Email: "x@example.com"},
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "null input",
			body: createBudgetRequest{
				Categoria: "AUTONOMO",
				Cliente:   clientPayload{Nombre: "X", Email: "x@example.com"},
				Datos:     json.RawMessage("null"),
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "success",
			body: createBudgetRequest{
				Categoria: "AUTONOMO",
				Cliente:   clientPayload{Nombre: "X", Email: "x@example.com", NIF: "12345678Z"},
				Datos:     json.RawMessage(`{"periodo":"TRIMESTRAL"}`),
			},
			wantStatus: http.StatusCreated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(tt.body)
			req := httptest.NewRequest(http.MethodPost, "/api/budgets", bytes.NewReader(body))
			rec := httptest.NewRecorder()

			h.CreateBudget(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestCreateBudget_PricingErrorsMapTo422(t *testing.T) {
	svc := &stubService{createErr: pricing.ErrNoTier}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(createBudgetRequest{
		Categoria: "AUTONOMO",
		Cliente:   clientPayload{Nombre: "X", Email: "x@example.com"},
		Datos:     json.RawMessage(`{"periodo":"TRIMESTRAL"}`),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/budgets", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.CreateBudget(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
}

func TestGetBudget_JSONResponse(t *testing.T) {
	b := testBudget()
	svc := &stubService{budget: b, items: []model.BudgetItem{{
		Concept:  "Contabilidad",
		Position: 1,
		Quantity: 1,
	}}}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/budgets/"+b.ID.String(), nil)
	req.Header.Set("Authorization", "Bearer "+h.authMiddleware.IssueToken("maria"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q, want application/json", ct)
	}

	var resp budgetResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Codigo != "AL-2026-0012" {
		t.Fatalf("codigo = %q, want AL-2026-0012", resp.Codigo)
	}
	if len(resp.Lineas) != 1 {
		t.Fatalf("lineas = %d, want 1", len(resp.Lineas))
	}
}

func TestListBudgets_QueryFilters(t *testing.T) {
	svc := &stubService{budget: testBudget()}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/budgets?estado=SENT&categoria=AUTONOMO&serie=AL&q=carmen", nil)
	req.Header.Set("Authorization", "Bearer "+h.authMiddleware.IssueToken("maria"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if svc.lastFilters.Status != model.BudgetStatusSent {
		t.Errorf("status filter = %q, want SENT", svc.lastFilters.Status)
	}
	if svc.lastFilters.Category != model.CategoryAutonomo {
		t.Errorf("category filter = %q, want AUTONOMO", svc.lastFilters.Category)
	}
	if svc.lastFilters.Series != "AL" {
		t.Errorf("series filter = %q, want AL", svc.lastFilters.Series)
	}
	if svc.lastFilters.Search != "carmen" {
		t.Errorf("search filter = %q, want carmen", svc.lastFilters.Search)
	}
}

func TestListParameters_CategoryOptional(t *testing.T) {
	svc := &stubService{params: []model.Parameter{{ID: uuid.New(), Key: "IVA_PCT"}}}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/budget-parameters", nil)
	req.Header.Set("Authorization", "Bearer "+h.authMiddleware.IssueToken("maria"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status without filter = %d, want %d", rec.Code, http.StatusOK)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/budget-parameters?categoria=SOCIEDADES", nil)
	req.Header.Set("Authorization", "Bearer "+h.authMiddleware.IssueToken("maria"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status with unknown category = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestExportBudgets_CSVHeaders(t *testing.T) {
	svc := &stubService{budget: testBudget()}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/budgets/export", nil)
	req.Header.Set("Authorization", "Bearer "+h.authMiddleware.IssueToken("maria"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv; charset=utf-8" {
		t.Fatalf("content-type = %q", ct)
	}
}
