// Package pricing implements the parameter snapshot, the parameter cache and
// the four category calculators of the budget engine.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/DigitalNexo/Asesoria-la-Llave-V2-sub002/internal/model"
)

// ErrNoTier is returned when a tier lookup finds no parameter whose range
// contains the input magnitude and no open-ended tier exists. This is a
// configuration error and must never be silently priced as zero.
var ErrNoTier = errors.New("no pricing tier configured")

// ErrMissingParameter is returned when a required non-tier parameter is
// absent from the snapshot.
var ErrMissingParameter = errors.New("pricing parameter not configured")

// ErrInvalidInput is returned for malformed calculator input before any
// parameter lookup or persistence happens.
var ErrInvalidInput = errors.New("invalid calculator input")

// Parameter groups shared across categories.
const (
	GroupTramoFacturas    = "TRAMO_FACTURAS"
	GroupTramoAsientos    = "TRAMO_ASIENTOS"
	GroupTramoNominas     = "TRAMO_NOMINAS"
	GroupTramoFacturacion = "TRAMO_FACTURACION"
	GroupTramoCaudal      = "TRAMO_CAUDAL"
	GroupGeneral          = "GENERAL"
	GroupModelos          = "MODELOS"
	GroupServicios        = "SERVICIOS"
)

// Snapshot is an immutable, point-in-time view of the active parameters of
// one category. Calculators receive a snapshot instead of touching storage,
// which keeps them pure and reproducible.
type Snapshot struct {
	category model.BudgetCategory
	byKey    map[string]model.Parameter
	groups   map[string][]model.Parameter
}

// NewSnapshot builds a snapshot from the active parameters of a category.
// Parameters are expected in ladder order (position, then min range).
func NewSnapshot(category model.BudgetCategory, params []model.Parameter) *Snapshot {
	s := &Snapshot{
		category: category,
		byKey:    make(map[string]model.Parameter, len(params)),
		groups:   make(map[string][]model.Parameter),
	}
	for _, p := range params {
		if !p.Active {
			continue
		}
		s.byKey[p.Key] = p
		if p.MinRange != nil {
			s.groups[p.Group] = append(s.groups[p.Group], p)
		}
	}
	return s
}

// Category returns the pricing domain the snapshot belongs to.
func (s *Snapshot) Category() model.BudgetCategory {
	return s.category
}

// Value returns the numeric value of a parameter by key.
func (s *Snapshot) Value(key string) (decimal.Decimal, bool) {
	p, ok := s.byKey[key]
	if !ok {
		return decimal.Decimal{}, false
	}
	return p.Value, true
}

// RequiredValue returns the value of a parameter that the calculation cannot
// proceed without, wrapping ErrMissingParameter when it is absent.
func (s *Snapshot) RequiredValue(key string) (decimal.Decimal, error) {
	v, ok := s.Value(key)
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %s/%s", ErrMissingParameter, s.category, key)
	}
	return v, nil
}

// Tier returns the unique parameter of a group whose range contains the
// magnitude. A parameter with a nil MaxRange is an open-ended tail tier.
// No match wraps ErrNoTier with the group and magnitude for the staff-facing
// error message.
func (s *Snapshot) Tier(group string, magnitude decimal.Decimal) (model.Parameter, error) {
	for _, p := range s.groups[group] {
		if magnitude.LessThan(*p.MinRange) {
			continue
		}
		if p.MaxRange == nil || magnitude.LessThanOrEqual(*p.MaxRange) {
			return p, nil
		}
	}
	return model.Parameter{}, fmt.Errorf("%w: %s/%s for magnitude %s", ErrNoTier, s.category, group, magnitude)
}
