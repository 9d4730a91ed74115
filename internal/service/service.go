// Package service implements the budget lifecycle logic: calculation,
// sequencing, delivery, acceptance and expiry.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/DigitalNexo/Asesoria-la-Llave-V2-sub002/internal/model"
	"github.com/DigitalNexo/Asesoria-la-Llave-V2-sub002/internal/notify"
	"github.com/DigitalNexo/Asesoria-la-Llave-V2-sub002/internal/pricing"
	"github.com/DigitalNexo/Asesoria-la-Llave-V2-sub002/internal/repository"
	"github.com/DigitalNexo/Asesoria-la-Llave-V2-sub002/internal/token"
)

var (
	// ErrUnknownCategory marks a category outside the four pricing domains.
	ErrUnknownCategory = errors.New("unknown budget category")
	// ErrInvalidToken marks an acceptance token that does not match the budget.
	ErrInvalidToken = errors.New("acceptance token does not match")
	// ErrExpired marks an operation against a budget past its expiry.
	ErrExpired = errors.New("budget has expired")
	// ErrAlreadyAccepted marks a second acceptance attempt.
	ErrAlreadyAccepted = errors.New("budget already accepted")
	// ErrManualOverride marks a recalculation of a manually edited budget.
	ErrManualOverride = errors.New("budget has manual line edits")
	// ErrTerminalState marks a mutation of an accepted or archived budget.
	ErrTerminalState = errors.New("budget is in a terminal state")
)

// Repository is the persistence contract the service depends on.
type Repository interface {
	Close() error
	CreateBudget(ctx context.Context, b *model.Budget, items []model.BudgetItem, mint func(code string, issue time.Time) string) error
	GetBudgetByID(ctx context.Context, id uuid.UUID) (*model.Budget, []model.BudgetItem, error)
	GetBudgetByCode(ctx context.Context, code string) (*model.Budget, []model.BudgetItem, error)
	ListBudgets(ctx context.Context, f repository.BudgetFilters) ([]model.Budget, error)
	UpdateBudgetHeader(ctx context.Context, b *model.Budget) error
	SaveCalculation(ctx context.Context, budgetID uuid.UUID, subtotal, taxTotal, total decimal.Decimal, items []model.BudgetItem, manual bool) error
	MarkSent(ctx context.Context, id uuid.UUID) error
	AcceptBudget(ctx context.Context, id uuid.UUID, at time.Time, ip, agent string) (bool, error)
	ExpireBudget(ctx context.Context, id uuid.UUID, now time.Time) error
	ListExpired(ctx context.Context, now time.Time) ([]model.Budget, error)
	ListDueForReminder(ctx context.Context, now time.Time, window time.Duration) ([]model.Budget, error)
	SetReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error
	ListParameters(ctx context.Context, category model.BudgetCategory) ([]model.Parameter, error)
	GetParameter(ctx context.Context, id uuid.UUID) (*model.Parameter, error)
	UpdateParameter(ctx context.Context, id uuid.UUID, value decimal.Decimal, label *string) (*model.Parameter, error)
	BulkUpdateParameters(ctx context.Context, updates []repository.ParameterUpdate) (int, error)
	CreateDeliveryLog(ctx context.Context, log *model.DeliveryLog) error
	ListDeliveryLogs(ctx context.Context, budgetID uuid.UUID) ([]model.DeliveryLog, error)
}

// Options carries the lifecycle knobs of the service.
type Options struct {
	Series         string
	ValidDays      int
	ReminderWindow time.Duration
	FrontendURL    string
	OfficeEmail    string
}

// Service carries the budget engine's business logic.
type Service struct {
	repo     Repository
	cache    *pricing.Cache
	codec    *token.Codec
	renderer notify.Renderer
	mailer   notify.Mailer
	logger   *zap.Logger
	opts     Options
	now      func() time.Time
}

// NewService wires the service with its collaborators.
func NewService(repo Repository, cache *pricing.Cache, codec *token.Codec, renderer notify.Renderer, mailer notify.Mailer, logger *zap.Logger, opts Options) *Service {
	if opts.Series == "" {
		opts.Series = "AL"
	}
	if opts.ValidDays <= 0 {
		opts.ValidDays = 30
	}
	if opts.ReminderWindow <= 0 {
		opts.ReminderWindow = 3 * 24 * time.Hour
	}
	return &Service{
		repo:     repo,
		cache:    cache,
		codec:    codec,
		renderer: renderer,
		mailer:   mailer,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
	}
}

// Close releases the service's resources.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// calculate dispatches the raw calculator input to the category's calculator
// against the current parameter snapshot.
func (s *Service) calculate(ctx context.Context, category model.BudgetCategory, input json.RawMessage) (*pricing.Result, error) {
	snap, err := s.cache.Snapshot(ctx, category)
	if err != nil {
		return nil, err
	}

	switch category {
	case model.CategoryAutonomo:
		var in pricing.AutonomoInput
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, fmt.Errorf("%w: %v", pricing.ErrInvalidInput, err)
		}
		return pricing.CalculateAutonomo(in, snap)
	case model.CategoryPyme:
		var in pricing.PymeInput
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, fmt.Errorf("%w: %v", pricing.ErrInvalidInput, err)
		}
		return pricing.CalculatePyme(in, snap)
	case model.CategoryRenta:
		var in pricing.RentaInput
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, fmt.Errorf("%w: %v", pricing.ErrInvalidInput, err)
		}
		return pricing.CalculateRenta(in, snap)
	case model.CategoryHerencias:
		var in pricing.HerenciasInput
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, fmt.Errorf("%w: %v", pricing.ErrInvalidInput, err)
		}
		return pricing.CalculateHerencias(in, snap)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
}

// Preview runs a calculation without persisting anything.
func (s *Service) Preview(ctx context.Context, category model.BudgetCategory, input json.RawMessage) (*pricing.Result, error) {
	return s.calculate(ctx, category, input)
}

// inputDiscount extracts the optional final discount from a calculator input
// so the budget header records what was applied.
func inputDiscount(raw json.RawMessage) (*model.DiscountType, *decimal.Decimal) {
	var probe struct {
		Discount *pricing.Discount `json:"descuento"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil || probe.Discount == nil {
		return nil, nil
	}
	t := probe.Discount.Type
	if t == "" {
		t = model.DiscountPercentage
	}
	v := probe.Discount.Value
	return &t, &v
}

// CreateBudgetRequest describes a new budget to price and persist.
type CreateBudgetRequest struct {
	Category    model.BudgetCategory
	Brand       model.CompanyBrand
	ClientName  string
	ClientTaxID string
	ClientEmail string
	ClientPhone string
	ValidDays   int
	Input       json.RawMessage
}

// CreateBudget prices the input, allocates the next code in the series and
// persists the budget as a draft with its acceptance token.
func (s *Service) CreateBudget(ctx context.Context, req CreateBudgetRequest) (*model.Budget, []model.BudgetItem, error) {
	if !req.Category.Valid() {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownCategory, req.Category)
	}

	result, err := s.calculate(ctx, req.Category, req.Input)
	if err != nil {
		return nil, nil, err
	}

	validDays := req.ValidDays
	if validDays <= 0 {
		validDays = s.opts.ValidDays
	}
	brand := req.Brand
	if brand == "" {
		brand = model.BrandAsesoriaLaLlave
	}

	issue := s.now().UTC()
	discountType, discountValue := inputDiscount(req.Input)
	b := &model.Budget{
		ID:            uuid.New(),
		Series:        s.opts.Series,
		Year:          issue.Year(),
		Category:      req.Category,
		Brand:         brand,
		ClientName:    req.ClientName,
		ClientTaxID:   req.ClientTaxID,
		ClientEmail:   req.ClientEmail,
		ClientPhone:   req.ClientPhone,
		IssueDate:     issue,
		ValidDays:     validDays,
		ExpiresAt:     issue.AddDate(0, 0, validDays),
		Subtotal:      result.Subtotal,
		TaxTotal:      result.TaxTotal,
		Total:         result.Total,
		DiscountType:  discountType,
		DiscountValue: discountValue,
		Status:        model.BudgetStatusDraft,
	}

	if err := s.repo.CreateBudget(ctx, b, result.Items, s.codec.Mint); err != nil {
		return nil, nil, err
	}
	s.logger.Info("budget created",
		zap.String("code", b.Code),
		zap.String("category", string(b.Category)),
		zap.String("total", b.Total.StringFixed(2)),
	)
	return b, attach(b.ID, result.Items), nil
}

// attach stamps the budget id onto freshly calculated items for the response.
func attach(budgetID uuid.UUID, items []model.BudgetItem) []model.BudgetItem {
	out := make([]model.BudgetItem, len(items))
	for i, it := range items {
		it.BudgetID = budgetID
		out[i] = it
	}
	return out
}

// GetBudget returns a budget and its items by id.
func (s *Service) GetBudget(ctx context.Context, id uuid.UUID) (*model.Budget, []model.BudgetItem, error) {
	return s.repo.GetBudgetByID(ctx, id)
}

// ListBudgets returns budgets matching the filters, newest first.
func (s *Service) ListBudgets(ctx context.Context, f repository.BudgetFilters) ([]model.Budget, error) {
	return s.repo.ListBudgets(ctx, f)
}

// UpdateBudgetRequest carries the editable header fields of a budget.
type UpdateBudgetRequest struct {
	ClientName  *string
	ClientTaxID *string
	ClientEmail *string
	ClientPhone *string
	ValidDays   *int
}

// UpdateBudget edits the header of a non-terminal budget. Changing the
// validity window moves the expiry; code and issue date never change, so the
// acceptance token stays valid.
func (s *Service) UpdateBudget(ctx context.Context, id uuid.UUID, req UpdateBudgetRequest) (*model.Budget, error) {
	b, _, err := s.repo.GetBudgetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s", ErrTerminalState, b.Status)
	}

	if req.ClientName != nil {
		b.ClientName = *req.ClientName
	}
	if req.ClientTaxID != nil {
		b.ClientTaxID = *req.ClientTaxID
	}
	if req.ClientEmail != nil {
		b.ClientEmail = *req.ClientEmail
	}
	if req.ClientPhone != nil {
		b.ClientPhone = *req.ClientPhone
	}
	if req.ValidDays != nil && *req.ValidDays > 0 {
		b.ValidDays = *req.ValidDays
		b.ExpiresAt = b.IssueDate.AddDate(0, 0, b.ValidDays)
	}

	if err := s.repo.UpdateBudgetHeader(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// ManualItem is one staff-edited line of a budget.
type ManualItem struct {
	Concept   string          `json:"concepto"`
	Category  string          `json:"categoria"`
	Quantity  int             `json:"cantidad"`
	UnitPrice decimal.Decimal `json:"precioUnitario"`
	TaxPct    decimal.Decimal `json:"ivaPct"`
}

// ReplaceItems replaces every line of a non-terminal budget with the given
// manual lines and recomputes the totals from them. The budget is marked as
// manually overridden and stops being recalculable.
func (s *Service) ReplaceItems(ctx context.Context, id uuid.UUID, lines []ManualItem) (*model.Budget, []model.BudgetItem, error) {
	b, _, err := s.repo.GetBudgetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if b.Status.Terminal() {
		return nil, nil, fmt.Errorf("%w: %s", ErrTerminalState, b.Status)
	}
	if len(lines) == 0 {
		return nil, nil, fmt.Errorf("%w: empty item list", pricing.ErrInvalidInput)
	}

	hundred := decimal.NewFromInt(100)
	subtotal := decimal.Zero
	taxTotal := decimal.Zero
	items := make([]model.BudgetItem, 0, len(lines))
	for i, ln := range lines {
		if ln.Quantity <= 0 {
			return nil, nil, fmt.Errorf("%w: non-positive quantity on line %d", pricing.ErrInvalidInput, i+1)
		}
		qty := decimal.NewFromInt(int64(ln.Quantity))
		lineSub := ln.UnitPrice.Mul(qty)
		lineTax := lineSub.Mul(ln.TaxPct).Div(hundred)
		subtotal = subtotal.Add(lineSub)
		taxTotal = taxTotal.Add(lineTax)
		items = append(items, model.BudgetItem{
			BudgetID:  id,
			Concept:   ln.Concept,
			Category:  ln.Category,
			Position:  i + 1,
			Quantity:  ln.Quantity,
			UnitPrice: ln.UnitPrice,
			TaxPct:    ln.TaxPct,
			Subtotal:  lineSub.Round(2),
			Total:     lineSub.Add(lineTax).Round(2),
		})
	}

	sub := subtotal.Round(2)
	tax := taxTotal.Round(2)
	total := sub.Add(tax)
	if total.IsNegative() {
		return nil, nil, fmt.Errorf("%w: negative total", pricing.ErrInvalidInput)
	}

	if err := s.repo.SaveCalculation(ctx, id, sub, tax, total, items, true); err != nil {
		return nil, nil, err
	}
	b.Subtotal, b.TaxTotal, b.Total = sub, tax, total
	b.ManualOverride = true
	return b, items, nil
}

// Recalculate reprices a non-terminal budget from fresh calculator input and
// the current parameters. Manually overridden budgets are refused.
func (s *Service) Recalculate(ctx context.Context, id uuid.UUID, input json.RawMessage) (*model.Budget, []model.BudgetItem, error) {
	b, _, err := s.repo.GetBudgetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if b.Status.Terminal() {
		return nil, nil, fmt.Errorf("%w: %s", ErrTerminalState, b.Status)
	}
	if b.ManualOverride {
		return nil, nil, ErrManualOverride
	}

	result, err := s.calculate(ctx, b.Category, input)
	if err != nil {
		return nil, nil, err
	}
	if err := s.repo.SaveCalculation(ctx, id, result.Subtotal, result.TaxTotal, result.Total, result.Items, false); err != nil {
		return nil, nil, err
	}

	b.DiscountType, b.DiscountValue = inputDiscount(input)
	b.Subtotal, b.TaxTotal, b.Total = result.Subtotal, result.TaxTotal, result.Total
	if b.DiscountType != nil {
		if err := s.repo.UpdateBudgetHeader(ctx, b); err != nil {
			return nil, nil, err
		}
	}
	return b, attach(b.ID, result.Items), nil
}

// PublicBudget returns a budget for the public acceptance page. The token
// must match; expired budgets are still viewable so the page can say so.
func (s *Service) PublicBudget(ctx context.Context, code, tok string) (*model.Budget, []model.BudgetItem, error) {
	b, items, err := s.repo.GetBudgetByCode(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	if !s.codec.Verify(b.Code, b.IssueDate, tok) {
		return nil, nil, ErrInvalidToken
	}
	return b, items, nil
}

// AcceptBudget records the client's acceptance of a budget. Exactly one
// acceptance can ever succeed; a valid token does not override expiry.
func (s *Service) AcceptBudget(ctx context.Context, code, tok, ip, agent string) (*model.Budget, error) {
	b, items, err := s.repo.GetBudgetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !s.codec.Verify(b.Code, b.IssueDate, tok) {
		return nil, ErrInvalidToken
	}
	if b.AcceptedAt != nil {
		return nil, ErrAlreadyAccepted
	}
	now := s.now().UTC()
	if b.Status == model.BudgetStatusArchived || !now.Before(b.ExpiresAt) {
		return nil, ErrExpired
	}

	ok, err := s.repo.AcceptBudget(ctx, b.ID, now, ip, agent)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost the race; re-read to tell a concurrent acceptance from expiry.
		fresh, _, err := s.repo.GetBudgetByID(ctx, b.ID)
		if err != nil {
			return nil, err
		}
		if fresh.AcceptedAt != nil {
			return nil, ErrAlreadyAccepted
		}
		return nil, ErrExpired
	}

	b.Status = model.BudgetStatusAccepted
	b.AcceptedAt = &now
	b.AcceptedByIP = ip
	b.AcceptedByAgent = agent
	s.logger.Info("budget accepted",
		zap.String("code", b.Code),
		zap.String("ip", ip),
	)

	// Notifications ride on a detached context so an impatient client
	// disconnect does not lose them.
	go s.notifyAccepted(context.WithoutCancel(ctx), b, items)

	return b, nil
}

// ExpireBudget archives a single budget past its validity window.
func (s *Service) ExpireBudget(ctx context.Context, id uuid.UUID) error {
	b, _, err := s.repo.GetBudgetByID(ctx, id)
	if err != nil {
		return err
	}
	if b.Status.Terminal() {
		return fmt.Errorf("%w: %s", ErrTerminalState, b.Status)
	}
	if s.now().UTC().Before(b.ExpiresAt) {
		return fmt.Errorf("budget %s is not past its expiry", b.Code)
	}
	return s.repo.ExpireBudget(ctx, id, s.now().UTC())
}

// ListParameters returns the active parameters, all of them when the
// category is empty.
func (s *Service) ListParameters(ctx context.Context, category model.BudgetCategory) ([]model.Parameter, error) {
	if category != "" && !category.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	return s.repo.ListParameters(ctx, category)
}

// UpdateParameter changes one pricing constant and drops every cached
// snapshot so the next calculation sees the new value.
func (s *Service) UpdateParameter(ctx context.Context, id uuid.UUID, value decimal.Decimal, label *string) (*model.Parameter, error) {
	p, err := s.repo.UpdateParameter(ctx, id, value, label)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate()
	s.logger.Info("parameter updated",
		zap.String("category", string(p.Category)),
		zap.String("key", p.Key),
		zap.String("value", p.Value.String()),
	)
	return p, nil
}

// BulkUpdateParameters applies several parameter changes atomically and
// invalidates the snapshot cache once.
func (s *Service) BulkUpdateParameters(ctx context.Context, updates []repository.ParameterUpdate) (int, error) {
	n, err := s.repo.BulkUpdateParameters(ctx, updates)
	if err != nil {
		return 0, err
	}
	s.cache.Invalidate()
	return n, nil
}

// DeliveryLogs returns the delivery history of a budget, newest first.
func (s *Service) DeliveryLogs(ctx context.Context, budgetID uuid.UUID) ([]model.DeliveryLog, error) {
	return s.repo.ListDeliveryLogs(ctx, budgetID)
}
