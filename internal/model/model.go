// Package model contains the domain entities of the budget engine.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BudgetStatus describes the lifecycle state of a budget.
type BudgetStatus string

const (
	BudgetStatusDraft    BudgetStatus = "DRAFT"
	BudgetStatusSent     BudgetStatus = "SENT"
	BudgetStatusAccepted BudgetStatus = "ACCEPTED"
	BudgetStatusArchived BudgetStatus = "ARCHIVED"
)

// Terminal reports whether no further transitions are allowed from the status.
func (s BudgetStatus) Terminal() bool {
	return s == BudgetStatusAccepted || s == BudgetStatusArchived
}

// BudgetCategory identifies one of the four pricing domains.
type BudgetCategory string

const (
	CategoryAutonomo  BudgetCategory = "AUTONOMO"
	CategoryPyme      BudgetCategory = "PYME"
	CategoryRenta     BudgetCategory = "RENTA"
	CategoryHerencias BudgetCategory = "HERENCIAS"
)

// Categories lists every pricing domain in seed order.
var Categories = []BudgetCategory{CategoryAutonomo, CategoryPyme, CategoryRenta, CategoryHerencias}

// Valid reports whether the category is one of the known pricing domains.
func (c BudgetCategory) Valid() bool {
	switch c {
	case CategoryAutonomo, CategoryPyme, CategoryRenta, CategoryHerencias:
		return true
	}
	return false
}

// DiscountType distinguishes a percentage discount from a fixed subtraction.
type DiscountType string

const (
	DiscountPercentage DiscountType = "PORCENTAJE"
	DiscountFixed      DiscountType = "FIJO"
)

// CompanyBrand identifies the brand a budget is issued under.
type CompanyBrand string

const (
	BrandAsesoriaLaLlave CompanyBrand = "ASESORIA_LA_LLAVE"
	BrandGestoriaOnline  CompanyBrand = "GESTORIA_ONLINE"
)

// Budget is a priced offer issued to a prospective or existing client.
// Code is unique and immutable after creation; AcceptedAt is the single
// source of truth for "already accepted".
type Budget struct {
	ID       uuid.UUID
	Series   string
	Number   int
	Year     int
	Code     string
	Category BudgetCategory
	Brand    CompanyBrand

	ClientName  string
	ClientTaxID string
	ClientEmail string
	ClientPhone string

	IssueDate time.Time
	ValidDays int
	ExpiresAt time.Time

	Subtotal decimal.Decimal
	TaxTotal decimal.Decimal
	Total    decimal.Decimal

	DiscountType  *DiscountType
	DiscountValue *decimal.Decimal

	Status          BudgetStatus
	AcceptanceToken string
	AcceptedAt      *time.Time
	AcceptedByIP    string
	AcceptedByAgent string
	RemindSentAt    *time.Time
	ManualOverride  bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// BudgetItem is one priced line of a budget.
// Total = Subtotal grown by TaxPct; for calculator-synthesized lines the
// subtotal is computed directly by the rule and Quantity is informational.
type BudgetItem struct {
	ID        uuid.UUID
	BudgetID  uuid.UUID
	Concept   string
	Category  string
	Position  int
	Quantity  int
	UnitPrice decimal.Decimal
	TaxPct    decimal.Decimal
	Subtotal  decimal.Decimal
	Total     decimal.Decimal
}

// Parameter is a named, categorized pricing constant. MinRange/MaxRange mark
// the parameter as one rung of a tier ladder; a nil MaxRange means the tier
// is open-ended.
type Parameter struct {
	ID       uuid.UUID
	Category BudgetCategory
	Group    string
	Key      string
	Label    string
	Value    decimal.Decimal
	MinRange *decimal.Decimal
	MaxRange *decimal.Decimal
	Position int
	Active   bool
}

// DeliveryKind classifies a delivery-log entry.
type DeliveryKind string

const (
	DeliverySend           DeliveryKind = "SEND"
	DeliveryRemind         DeliveryKind = "REMIND"
	DeliveryAcceptClient   DeliveryKind = "ACCEPT_CLIENT"
	DeliveryAcceptInternal DeliveryKind = "ACCEPT_INTERNAL"
)

// DeliveryOutcome records whether a delivery attempt reached the relay.
type DeliveryOutcome string

const (
	DeliveryOutcomeSent   DeliveryOutcome = "SENT"
	DeliveryOutcomeFailed DeliveryOutcome = "FAILED"
)

// DeliveryLog records one rendering/delivery attempt for a budget.
type DeliveryLog struct {
	ID        uuid.UUID
	BudgetID  uuid.UUID
	Kind      DeliveryKind
	Recipient string
	Subject   string
	Outcome   DeliveryOutcome
	Detail    string
	CreatedAt time.Time
}
