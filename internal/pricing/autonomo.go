package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/DigitalNexo/Asesoria-la-Llave-V2-sub002/internal/model"
)

// Parameter keys of the AUTONOMO category.
const (
	KeyPorcentajeMensual = "PORCENTAJE_MENSUAL"
	KeyPorcentajeEDN     = "PORCENTAJE_EDN"
	KeyPorcentajeModulos = "PORCENTAJE_MODULOS"
	KeyMinimoMensual     = "MINIMO_MENSUAL"
)

// AutonomoInput describes the situation of a self-employed client.
type AutonomoInput struct {
	InvoicesPerMonth int             `json:"facturasMes"`
	PayrollsPerMonth int             `json:"nominasMes"`
	AnnualRevenue    decimal.Decimal `json:"facturacion"`
	Period           Period          `json:"periodo"`
	TaxRegime        TaxRegime       `json:"sistemaTributacion"`

	Model303 bool `json:"modelo303"`
	Model349 bool `json:"modelo349"`
	Model347 bool `json:"modelo347"`
	Model111 bool `json:"modelo111"`
	Model115 bool `json:"modelo115"`
	Model130 bool `json:"modelo130"`
	Model100 bool `json:"modelo100"`

	CertificateRequests  bool `json:"solicitudCertificados"`
	AEATCensus           bool `json:"censosAEAT"`
	NotificationHandling bool `json:"recepcionNotificaciones"`
	INEStatistics        bool `json:"estadisticasINE"`
	GrantRequests        bool `json:"solicitudAyudas"`

	WithPayroll bool `json:"conLaboralSocial"`

	Discount *Discount `json:"descuento,omitempty"`
}

func (in *AutonomoInput) validate() error {
	if in.InvoicesPerMonth < 0 {
		return fmt.Errorf("%w: negative invoices per month", ErrInvalidInput)
	}
	if in.PayrollsPerMonth < 0 {
		return fmt.Errorf("%w: negative payrolls per month", ErrInvalidInput)
	}
	if in.AnnualRevenue.IsNegative() {
		return fmt.Errorf("%w: negative annual revenue", ErrInvalidInput)
	}
	if in.Period != PeriodMonthly && in.Period != PeriodQuarterly {
		return fmt.Errorf("%w: unknown period %q", ErrInvalidInput, in.Period)
	}
	switch in.TaxRegime {
	case RegimeNormal, RegimeESN, RegimeModulos:
	default:
		return fmt.Errorf("%w: unknown tax regime %q", ErrInvalidInput, in.TaxRegime)
	}
	return validateDiscount(in.Discount)
}

func validateDiscount(d *Discount) error {
	if d == nil {
		return nil
	}
	if d.Value.IsNegative() {
		return fmt.Errorf("%w: negative discount value", ErrInvalidInput)
	}
	if d.Type != "" && d.Type != model.DiscountPercentage && d.Type != model.DiscountFixed {
		return fmt.Errorf("%w: unknown discount type %q", ErrInvalidInput, d.Type)
	}
	return nil
}

// fiscal filing and extra service catalogs; prices live in the snapshot under
// the same keys, a missing or zero price skips the line.
var autonomoModelos = []struct {
	key     string
	concept string
	flag    func(*AutonomoInput) bool
}{
	{"MODELO_303", "Modelo 303 - IVA Trimestral", func(in *AutonomoInput) bool { return in.Model303 }},
	{"MODELO_349", "Modelo 349 - Operaciones Intracomunitarias", func(in *AutonomoInput) bool { return in.Model349 }},
	{"MODELO_347", "Modelo 347 - Operaciones Terceras Personas", func(in *AutonomoInput) bool { return in.Model347 }},
	{"MODELO_111", "Modelo 111 - IRPF Trabajadores", func(in *AutonomoInput) bool { return in.Model111 }},
	{"MODELO_115", "Modelo 115 - IRPF Alquileres", func(in *AutonomoInput) bool { return in.Model115 }},
	{"MODELO_130", "Modelo 130 - IRPF Actividades Económicas", func(in *AutonomoInput) bool { return in.Model130 }},
	{"MODELO_100", "Modelo 100 - Declaración Renta Anual", func(in *AutonomoInput) bool { return in.Model100 }},
}

var autonomoServicios = []struct {
	key     string
	concept string
	flag    func(*AutonomoInput) bool
}{
	{"SERVICIO_CERTIFICADOS", "Solicitud de Certificados", func(in *AutonomoInput) bool { return in.CertificateRequests }},
	{"SERVICIO_CENSOS", "Gestión de Censos AEAT", func(in *AutonomoInput) bool { return in.AEATCensus }},
	{"SERVICIO_NOTIFICACIONES", "Gestión de Notificaciones", func(in *AutonomoInput) bool { return in.NotificationHandling }},
	{"SERVICIO_INE", "Estadísticas INE", func(in *AutonomoInput) bool { return in.INEStatistics }},
	{"SERVICIO_AYUDAS", "Solicitud de Ayudas", func(in *AutonomoInput) bool { return in.GrantRequests }},
}

// CalculateAutonomo prices a self-employed budget. Deterministic for a fixed
// snapshot; runs the ordered step sequence: accounting base by invoice tier,
// fiscal filings, extra services, annual revenue multiplier, payroll block,
// period and regime adjustments, final discount clamp and monthly minimum.
func CalculateAutonomo(in AutonomoInput, snap *Snapshot) (*Result, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	b := newLineBuilder(snap)

	// 1. Accounting base by invoices/month tier.
	tier, err := snap.Tier(GroupTramoFacturas, decimal.NewFromInt(int64(in.InvoicesPerMonth)))
	if err != nil {
		return nil, err
	}
	b.addFlat("Contabilidad - "+tier.Label, "BASE_CONTABILIDAD", tier.Value)
	accounting := tier.Value

	// 2-3. Fiscal filings (VAT then IRPF, catalog order).
	for _, m := range autonomoModelos {
		if !m.flag(&in) {
			continue
		}
		price, ok := snap.Value(m.key)
		if !ok || !price.IsPositive() {
			continue
		}
		b.addFlat(m.concept, m.key, price)
		accounting = accounting.Add(price)
	}

	// 4. Extra one-off services.
	for _, s := range autonomoServicios {
		if !s.flag(&in) {
			continue
		}
		price, ok := snap.Value(s.key)
		if !ok || !price.IsPositive() {
			continue
		}
		b.addFlat(s.concept, s.key, price)
		accounting = accounting.Add(price)
	}

	// 5. Annual revenue multiplier over the running accounting total.
	revTier, err := snap.Tier(GroupTramoFacturacion, in.AnnualRevenue)
	if err != nil {
		return nil, err
	}
	if revTier.Value.GreaterThan(one) {
		increment := accounting.Mul(revTier.Value.Sub(one))
		concept := fmt.Sprintf("Recargo por facturación anual - %s (%sx)", revTier.Label, revTier.Value.StringFixed(2))
		b.addFlat(concept, "RECARGO_FACTURACION", increment)
		accounting = accounting.Add(increment)
	}

	// 6. Payroll block, only when contracted and headcount is positive.
	labor := decimal.Zero
	if in.WithPayroll && in.PayrollsPerMonth > 0 {
		payTier, err := snap.Tier(GroupTramoNominas, decimal.NewFromInt(int64(in.PayrollsPerMonth)))
		if err != nil {
			return nil, err
		}
		labor = payTier.Value.Mul(decimal.NewFromInt(int64(in.PayrollsPerMonth)))
		concept := fmt.Sprintf("Laboral/SS - %s (%d x %s€)", payTier.Label, in.PayrollsPerMonth, payTier.Value.StringFixed(2))
		b.add(concept, "NOMINAS", in.PayrollsPerMonth, payTier.Value, labor)
	}

	// 7a. Monthly filing surcharge.
	if in.Period == PeriodMonthly {
		pct, err := snap.RequiredValue(KeyPorcentajeMensual)
		if err != nil {
			return nil, err
		}
		adj := accounting.Mul(pct).Div(hundred)
		b.addFlat(fmt.Sprintf("Recargo por liquidaciones mensuales (+%s%%)", pct.StringFixed(0)), "RECARGO_MENSUAL", adj)
		accounting = accounting.Add(adj)
	}

	// 7b. Tax regime adjustment.
	switch in.TaxRegime {
	case RegimeESN:
		pct, err := snap.RequiredValue(KeyPorcentajeEDN)
		if err != nil {
			return nil, err
		}
		adj := accounting.Mul(pct).Div(hundred)
		b.addFlat(fmt.Sprintf("Recargo por Estimación Directa Normal (+%s%%)", pct.StringFixed(0)), "RECARGO_EDN", adj)
		accounting = accounting.Add(adj)
	case RegimeModulos:
		pct, err := snap.RequiredValue(KeyPorcentajeModulos)
		if err != nil {
			return nil, err
		}
		adj := accounting.Mul(pct.Abs()).Div(hundred)
		b.addFlat(fmt.Sprintf("Descuento por Régimen de Módulos (-%s%%)", pct.Abs().StringFixed(0)), "DESCUENTO_MODULOS", adj.Neg())
		accounting = accounting.Sub(adj)
	}

	// 9-10. Combined total, then the discount stage clamped at zero.
	total := accounting.Add(labor)
	total = b.applyDiscount(in.Discount, total)

	// 11. Monthly minimum top-up.
	if in.Period == PeriodMonthly {
		minimum, err := snap.RequiredValue(KeyMinimoMensual)
		if err != nil {
			return nil, err
		}
		if total.LessThan(minimum) {
			topUp := minimum.Sub(total)
			b.addFlat(fmt.Sprintf("Ajuste mínimo mensual (%s€)", minimum.StringFixed(2)), "MINIMO_MENSUAL", topUp)
		}
	}

	return b.finish(), nil
}
