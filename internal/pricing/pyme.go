package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Parameter keys of the PYME category.
const (
	KeyDescuentoEmprendedor = "DESCUENTO_EMPRENDEDOR"
)

// PymeInput describes the situation of a small-business client.
type PymeInput struct {
	EntriesPerMonth  int             `json:"asientosMes"`
	PayrollsPerMonth int             `json:"nominasMes"`
	AnnualRevenue    decimal.Decimal `json:"facturacion"`
	Period           Period          `json:"periodo"`

	IRPFOnRents          bool `json:"irpfAlquileres"`
	IntraCommunityVAT    bool `json:"ivaIntracomunitario"`
	NotificationHandling bool `json:"notificaciones"`
	INEStatistics        bool `json:"estadisticasINE"`
	Entrepreneur         bool `json:"emprendedor"`

	Discount *Discount `json:"descuento,omitempty"`
}

func (in *PymeInput) validate() error {
	if in.EntriesPerMonth < 0 {
		return fmt.Errorf("%w: negative bookkeeping entries per month", ErrInvalidInput)
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
	return validateDiscount(in.Discount)
}

var pymeServicios = []struct {
	key     string
	concept string
	flag    func(*PymeInput) bool
}{
	{"SERVICIO_IRPF_ALQUILERES", "IRPF sobre Alquileres", func(in *PymeInput) bool { return in.IRPFOnRents }},
	{"SERVICIO_IVA_INTRACOM", "IVA Intracomunitario", func(in *PymeInput) bool { return in.IntraCommunityVAT }},
	{"SERVICIO_NOTIFICACIONES", "Gestión de Notificaciones", func(in *PymeInput) bool { return in.NotificationHandling }},
	{"SERVICIO_INE", "Estadísticas INE", func(in *PymeInput) bool { return in.INEStatistics }},
}

// CalculatePyme prices a small-business budget: accounting base by
// bookkeeping-entry tier, optional services, revenue multiplier, monthly
// surcharge, payroll block, entrepreneur discount and the final discount
// clamp.
func CalculatePyme(in PymeInput, snap *Snapshot) (*Result, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	b := newLineBuilder(snap)

	tier, err := snap.Tier(GroupTramoAsientos, decimal.NewFromInt(int64(in.EntriesPerMonth)))
	if err != nil {
		return nil, err
	}
	b.addFlat("Contabilidad - "+tier.Label, "BASE_CONTABILIDAD", tier.Value)
	accounting := tier.Value

	for _, s := range pymeServicios {
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

	if in.Period == PeriodMonthly {
		pct, err := snap.RequiredValue(KeyPorcentajeMensual)
		if err != nil {
			return nil, err
		}
		adj := accounting.Mul(pct).Div(hundred)
		b.addFlat(fmt.Sprintf("Recargo por liquidaciones mensuales (+%s%%)", pct.StringFixed(0)), "RECARGO_MENSUAL", adj)
		accounting = accounting.Add(adj)
	}

	labor := decimal.Zero
	if in.PayrollsPerMonth > 0 {
		payTier, err := snap.Tier(GroupTramoNominas, decimal.NewFromInt(int64(in.PayrollsPerMonth)))
		if err != nil {
			return nil, err
		}
		labor = payTier.Value.Mul(decimal.NewFromInt(int64(in.PayrollsPerMonth)))
		concept := fmt.Sprintf("Laboral/SS - %s (%d x %s€)", payTier.Label, in.PayrollsPerMonth, payTier.Value.StringFixed(2))
		b.add(concept, "NOMINAS", in.PayrollsPerMonth, payTier.Value, labor)
	}

	total := accounting.Add(labor)

	if in.Entrepreneur {
		pct, err := snap.RequiredValue(KeyDescuentoEmprendedor)
		if err != nil {
			return nil, err
		}
		if pct.IsPositive() {
			amount := total.Mul(pct).Div(hundred)
			b.addFlat(fmt.Sprintf("Descuento emprendedor (-%s%%)", pct.StringFixed(0)), "DESCUENTO_EMPRENDEDOR", amount.Neg())
			total = total.Sub(amount)
		}
	}

	b.applyDiscount(in.Discount, total)

	return b.finish(), nil
}
