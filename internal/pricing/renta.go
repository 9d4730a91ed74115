package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FamilyUnit is the household composition of a personal-income filing.
type FamilyUnit string

const (
	FamilyMarriage         FamilyUnit = "MATRIMONIO"
	FamilyMarriageChildren FamilyUnit = "MATRIMONIO_HIJOS"
	FamilyOther            FamilyUnit = "OTROS"
)

// Parameter keys of the RENTA category.
const (
	KeyUnidadMatrimonio      = "UNIDAD_FAMILIAR_MATRIMONIO"
	KeyUnidadMatrimonioHijos = "UNIDAD_FAMILIAR_MATRIMONIO_HIJOS"
	KeyUnidadOtros           = "UNIDAD_FAMILIAR_OTROS"
	KeyExtraAutonomo         = "EXTRA_AUTONOMO"
	KeyPrecioInmuebleAlq     = "PRECIO_INMUEBLE_ALQUILADO"
	KeyPrecioVentaInmueble   = "PRECIO_VENTA_INMUEBLE"
	KeyPrecioVentaFinanciera = "PRECIO_VENTA_FINANCIEROS"
	KeyPrecioOtrasGanancias  = "PRECIO_OTRAS_GANANCIAS"
)

// RentaInput describes a personal income-tax filing.
type RentaInput struct {
	FamilyUnit       FamilyUnit `json:"unidadFamiliar"`
	SelfEmployed     bool       `json:"autonomo"`
	RentedProperties int        `json:"inmueblesAlquilados"`
	PropertySales    int        `json:"ventaInmuebles"`
	FinancialSales   int        `json:"ventaFinancieros"`
	OtherGains       int        `json:"otrasGanancias"`

	Discount *Discount `json:"descuento,omitempty"`
}

func (in *RentaInput) validate() error {
	switch in.FamilyUnit {
	case FamilyMarriage, FamilyMarriageChildren, FamilyOther:
	default:
		return fmt.Errorf("%w: unknown family unit %q", ErrInvalidInput, in.FamilyUnit)
	}
	for _, c := range []struct {
		name  string
		count int
	}{
		{"rented properties", in.RentedProperties},
		{"property sales", in.PropertySales},
		{"financial sales", in.FinancialSales},
		{"other gains", in.OtherGains},
	} {
		if c.count < 0 {
			return fmt.Errorf("%w: negative %s count", ErrInvalidInput, c.name)
		}
	}
	return validateDiscount(in.Discount)
}

// perUnit appends a quantity×price line when the count is positive.
func perUnit(b *lineBuilder, snap *Snapshot, key, concept, category string, count int) error {
	if count == 0 {
		return nil
	}
	price, err := snap.RequiredValue(key)
	if err != nil {
		return err
	}
	qty := decimal.NewFromInt(int64(count))
	subtotal := qty.Mul(price)
	b.add(fmt.Sprintf("%s (%d x %s€)", concept, count, price.StringFixed(2)), category, count, price, subtotal)
	return nil
}

// CalculateRenta prices a personal income-tax budget: base fee by family
// unit, self-employment extra and per-unit lines for properties and capital
// gains, then the final discount clamp.
func CalculateRenta(in RentaInput, snap *Snapshot) (*Result, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	b := newLineBuilder(snap)

	var baseKey, baseConcept string
	switch in.FamilyUnit {
	case FamilyMarriage:
		baseKey, baseConcept = KeyUnidadMatrimonio, "Declaración Matrimonio"
	case FamilyMarriageChildren:
		baseKey, baseConcept = KeyUnidadMatrimonioHijos, "Declaración Matrimonio con hijos"
	default:
		baseKey, baseConcept = KeyUnidadOtros, "Declaración Individual/Otros"
	}
	base, err := snap.RequiredValue(baseKey)
	if err != nil {
		return nil, err
	}
	b.addFlat(baseConcept, "BASE_RENTA", base)
	running := base

	if in.SelfEmployed {
		price, err := snap.RequiredValue(KeyExtraAutonomo)
		if err != nil {
			return nil, err
		}
		b.addFlat("Actividad Económica (Autónomo)", "EXTRA_AUTONOMO", price)
		running = running.Add(price)
	}

	units := []struct {
		key, concept, category string
		count                  int
	}{
		{KeyPrecioInmuebleAlq, "Inmuebles alquilados", "EXTRA_INMUEBLES_ALQ", in.RentedProperties},
		{KeyPrecioVentaInmueble, "Venta de inmuebles", "EXTRA_VENTA_INMUEBLES", in.PropertySales},
		{KeyPrecioVentaFinanciera, "Venta de productos financieros/acciones", "EXTRA_VENTA_FINANCIEROS", in.FinancialSales},
		{KeyPrecioOtrasGanancias, "Otras ganancias patrimoniales", "EXTRA_OTRAS_GANANCIAS", in.OtherGains},
	}
	for _, u := range units {
		if err := perUnit(b, snap, u.key, u.concept, u.category, u.count); err != nil {
			return nil, err
		}
		if u.count > 0 {
			if price, ok := snap.Value(u.key); ok {
				running = running.Add(price.Mul(decimal.NewFromInt(int64(u.count))))
			}
		}
	}

	b.applyDiscount(in.Discount, running)

	return b.finish(), nil
}
