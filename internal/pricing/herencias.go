package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Parameter keys of the HERENCIAS category.
const (
	KeyHerederosIncluidos       = "HEREDEROS_INCLUIDOS"
	KeyPrecioHerederoExtra      = "PRECIO_HEREDERO_EXTRA"
	KeyPrecioFincaComunidad     = "PRECIO_FINCA_COMUNIDAD"
	KeyPrecioFincaOtra          = "PRECIO_FINCA_OTRA"
	KeyPrecioProductoFinanciero = "PRECIO_PRODUCTO_FINANCIERO"
	KeyPrecioVehiculo           = "PRECIO_VEHICULO"
	KeyRecargoSinTestamento     = "RECARGO_SIN_TESTAMENTO"
	KeyRecargoSinAcuerdo        = "RECARGO_SIN_ACUERDO"
	KeyPrecioEscritura          = "PRECIO_ESCRITURA"
	KeyDescuentoComercial       = "DESCUENTO_COMERCIAL"
)

// minimum estate value accepted for an inheritance case
var minCaudal = decimal.NewFromInt(20000)

// HerenciasInput describes an inheritance case.
type HerenciasInput struct {
	EstateValue         decimal.Decimal `json:"caudalHereditario"`
	Heirs               int             `json:"herederos"`
	CommunityProperties int             `json:"fincasComunidad"`
	OtherProperties     int             `json:"fincasOtras"`
	FinancialProducts   int             `json:"productosFinancieros"`
	Vehicles            int             `json:"vehiculos"`
	NoWill              bool            `json:"sinTestamento"`
	NoAgreement         bool            `json:"sinAcuerdo"`
	Deed                bool            `json:"escriturar"`
	ApplyDiscount15     bool            `json:"aplicarDescuento15"`

	Discount *Discount `json:"descuento,omitempty"`
}

func (in *HerenciasInput) validate() error {
	if in.EstateValue.LessThan(minCaudal) {
		return fmt.Errorf("%w: estate value below the %s€ minimum", ErrInvalidInput, minCaudal)
	}
	if in.Heirs < 1 {
		return fmt.Errorf("%w: at least one heir required", ErrInvalidInput)
	}
	for _, c := range []struct {
		name  string
		count int
	}{
		{"community properties", in.CommunityProperties},
		{"other properties", in.OtherProperties},
		{"financial products", in.FinancialProducts},
		{"vehicles", in.Vehicles},
	} {
		if c.count < 0 {
			return fmt.Errorf("%w: negative %s count", ErrInvalidInput, c.name)
		}
	}
	return validateDiscount(in.Discount)
}

// CalculateHerencias prices an inheritance-processing budget: base fee by
// estate-value tier, extra heirs, per-asset lines, process surcharges for
// missing will or heir agreement, optional deed service and the commercial
// discount, all clamped at zero.
func CalculateHerencias(in HerenciasInput, snap *Snapshot) (*Result, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	b := newLineBuilder(snap)

	tier, err := snap.Tier(GroupTramoCaudal, in.EstateValue)
	if err != nil {
		return nil, err
	}
	b.addFlat("Tramitación herencia - "+tier.Label, "BASE_HERENCIA", tier.Value)
	running := tier.Value

	included, err := snap.RequiredValue(KeyHerederosIncluidos)
	if err != nil {
		return nil, err
	}
	extraHeirs := in.Heirs - int(included.IntPart())
	if extraHeirs > 0 {
		if err := perUnit(b, snap, KeyPrecioHerederoExtra, "Herederos adicionales", "HEREDEROS_EXTRA", extraHeirs); err != nil {
			return nil, err
		}
		price, _ := snap.Value(KeyPrecioHerederoExtra)
		running = running.Add(price.Mul(decimal.NewFromInt(int64(extraHeirs))))
	}

	assets := []struct {
		key, concept, category string
		count                  int
	}{
		{KeyPrecioFincaComunidad, "Fincas en comunidad de propietarios", "FINCAS_COMUNIDAD", in.CommunityProperties},
		{KeyPrecioFincaOtra, "Otras fincas", "FINCAS_OTRAS", in.OtherProperties},
		{KeyPrecioProductoFinanciero, "Productos financieros", "PRODUCTOS_FINANCIEROS", in.FinancialProducts},
		{KeyPrecioVehiculo, "Vehículos", "VEHICULOS", in.Vehicles},
	}
	for _, a := range assets {
		if err := perUnit(b, snap, a.key, a.concept, a.category, a.count); err != nil {
			return nil, err
		}
		if a.count > 0 {
			if price, ok := snap.Value(a.key); ok {
				running = running.Add(price.Mul(decimal.NewFromInt(int64(a.count))))
			}
		}
	}

	surcharges := []struct {
		key, concept, category string
		apply                  bool
	}{
		{KeyRecargoSinTestamento, "Recargo por tramitación sin testamento", "RECARGO_SIN_TESTAMENTO", in.NoWill},
		{KeyRecargoSinAcuerdo, "Recargo por falta de acuerdo entre herederos", "RECARGO_SIN_ACUERDO", in.NoAgreement},
	}
	for _, s := range surcharges {
		if !s.apply {
			continue
		}
		pct, err := snap.RequiredValue(s.key)
		if err != nil {
			return nil, err
		}
		adj := running.Mul(pct).Div(hundred)
		b.addFlat(fmt.Sprintf("%s (+%s%%)", s.concept, pct.StringFixed(0)), s.category, adj)
		running = running.Add(adj)
	}

	if in.Deed {
		price, err := snap.RequiredValue(KeyPrecioEscritura)
		if err != nil {
			return nil, err
		}
		b.addFlat("Escrituración de la herencia", "ESCRITURA", price)
		running = running.Add(price)
	}

	if in.ApplyDiscount15 {
		pct, err := snap.RequiredValue(KeyDescuentoComercial)
		if err != nil {
			return nil, err
		}
		if pct.IsPositive() {
			amount := running.Mul(pct).Div(hundred)
			b.addFlat(fmt.Sprintf("Descuento comercial (-%s%%)", pct.StringFixed(0)), "DESCUENTO_COMERCIAL", amount.Neg())
			running = running.Sub(amount)
		}
	}

	b.applyDiscount(in.Discount, running)

	return b.finish(), nil
}
