package pricing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/DigitalNexo/Asesoria-la-Llave-V2-sub002/internal/model"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func param(key, value string) model.Parameter {
	return model.Parameter{Key: key, Label: key, Value: dec(value), Active: true}
}

func tierParam(group, key, label, value, min string, max *decimal.Decimal) model.Parameter {
	return model.Parameter{
		Group:    group,
		Key:      key,
		Label:    label,
		Value:    dec(value),
		MinRange: decPtr(min),
		MaxRange: max,
		Active:   true,
	}
}

func autonomoSnapshot() *Snapshot {
	params := []model.Parameter{
		tierParam(GroupTramoFacturas, "TF1", "Hasta 25 facturas", "45", "0", decPtr("25")),
		tierParam(GroupTramoFacturas, "TF2", "De 26 a 50 facturas", "60", "26", decPtr("50")),
		tierParam(GroupTramoFacturas, "TF3", "De 51 a 100 facturas", "80", "51", decPtr("100")),
		tierParam(GroupTramoFacturas, "TF4", "Más de 100 facturas", "110", "101", nil),

		tierParam(GroupTramoNominas, "TN1", "Hasta 5 nóminas", "12", "1", decPtr("5")),
		tierParam(GroupTramoNominas, "TN2", "De 6 a 10 nóminas", "10", "6", decPtr("10")),
		tierParam(GroupTramoNominas, "TN3", "Más de 10 nóminas", "8", "11", nil),

		tierParam(GroupTramoFacturacion, "TC1", "Hasta 40.000€", "1.00", "0", decPtr("40000")),
		tierParam(GroupTramoFacturacion, "TC2", "Hasta 100.000€", "1.15", "40000.01", decPtr("100000")),
		tierParam(GroupTramoFacturacion, "TC3", "Hasta 140.000€", "1.30", "100000.01", decPtr("140000")),
		tierParam(GroupTramoFacturacion, "TC4", "Más de 140.000€", "1.50", "140000.01", nil),

		param(KeyPorcentajeMensual, "20"),
		param(KeyPorcentajeEDN, "10"),
		param(KeyPorcentajeModulos, "10"),
		param(KeyMinimoMensual, "60"),
		param(KeyIVAPct, "21"),

		param("MODELO_303", "10"),
		param("MODELO_111", "10"),
		param("SERVICIO_CERTIFICADOS", "5"),
	}
	return NewSnapshot(model.CategoryAutonomo, params)
}

func TestCalculateAutonomo_QuarterlyBase(t *testing.T) {
	snap := autonomoSnapshot()
	in := AutonomoInput{
		InvoicesPerMonth: 30,
		AnnualRevenue:    dec("30000"),
		Period:           PeriodQuarterly,
		TaxRegime:        RegimeNormal,
	}

	r, err := CalculateAutonomo(in, snap)
	if err != nil {
		t.Fatalf("CalculateAutonomo: %v", err)
	}

	if len(r.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(r.Items))
	}
	if !r.Subtotal.Equal(dec("60")) {
		t.Errorf("subtotal = %s, want 60", r.Subtotal)
	}
	if !r.TaxTotal.Equal(dec("12.60")) {
		t.Errorf("tax = %s, want 12.60", r.TaxTotal)
	}
	if !r.Total.Equal(dec("72.60")) {
		t.Errorf("total = %s, want 72.60", r.Total)
	}
}

func TestCalculateAutonomo_MonthlyMinimumTopUp(t *testing.T) {
	snap := autonomoSnapshot()
	in := AutonomoInput{
		InvoicesPerMonth: 10,
		AnnualRevenue:    dec("20000"),
		Period:           PeriodMonthly,
		TaxRegime:        RegimeNormal,
	}

	r, err := CalculateAutonomo(in, snap)
	if err != nil {
		t.Fatalf("CalculateAutonomo: %v", err)
	}

	// 45 base, +20% monthly = 54, topped up to the 60 monthly minimum.
	if !r.Subtotal.Equal(dec("60")) {
		t.Errorf("subtotal = %s, want 60", r.Subtotal)
	}
	last := r.Items[len(r.Items)-1]
	if !last.Subtotal.Equal(dec("6")) {
		t.Errorf("top-up line = %s, want 6", last.Subtotal)
	}
}

func TestCalculateAutonomo_FullScenario(t *testing.T) {
	snap := autonomoSnapshot()
	in := AutonomoInput{
		InvoicesPerMonth: 60,
		PayrollsPerMonth: 5,
		WithPayroll:      true,
		AnnualRevenue:    dec("150000"),
		Period:           PeriodQuarterly,
		TaxRegime:        RegimeESN,
		Discount:         &Discount{Type: model.DiscountPercentage, Value: dec("10")},
	}

	r, err := CalculateAutonomo(in, snap)
	if err != nil {
		t.Fatalf("CalculateAutonomo: %v", err)
	}

	// 80 base, +40 revenue increment, +60 payroll, +12 ESN, -19.20 discount.
	if !r.Subtotal.Equal(dec("172.80")) {
		t.Errorf("subtotal = %s, want 172.80", r.Subtotal)
	}
	if !r.TaxTotal.Equal(dec("36.29")) {
		t.Errorf("tax = %s, want 36.29", r.TaxTotal)
	}
	if !r.Total.Equal(dec("209.09")) {
		t.Errorf("total = %s, want 209.09", r.Total)
	}
	if !r.Total.Equal(r.Subtotal.Add(r.TaxTotal)) {
		t.Errorf("total %s != subtotal %s + tax %s", r.Total, r.Subtotal, r.TaxTotal)
	}
}

func TestCalculateAutonomo_Deterministic(t *testing.T) {
	snap := autonomoSnapshot()
	in := AutonomoInput{
		InvoicesPerMonth: 42,
		AnnualRevenue:    dec("90000"),
		Period:           PeriodMonthly,
		TaxRegime:        RegimeModulos,
		Model303:         true,
		Model111:         true,
	}

	first, err := CalculateAutonomo(in, snap)
	if err != nil {
		t.Fatalf("CalculateAutonomo: %v", err)
	}
	second, err := CalculateAutonomo(in, snap)
	if err != nil {
		t.Fatalf("CalculateAutonomo: %v", err)
	}

	if !first.Total.Equal(second.Total) || len(first.Items) != len(second.Items) {
		t.Fatalf("calculation is not deterministic: %s vs %s", first.Total, second.Total)
	}
}

func TestCalculateAutonomo_NoTier(t *testing.T) {
	snap := NewSnapshot(model.CategoryAutonomo, []model.Parameter{param(KeyIVAPct, "21")})
	in := AutonomoInput{
		InvoicesPerMonth: 10,
		AnnualRevenue:    dec("1000"),
		Period:           PeriodQuarterly,
		TaxRegime:        RegimeNormal,
	}

	_, err := CalculateAutonomo(in, snap)
	if !errors.Is(err, ErrNoTier) {
		t.Fatalf("err = %v, want ErrNoTier", err)
	}
}

func TestCalculateAutonomo_MissingParameter(t *testing.T) {
	params := []model.Parameter{
		tierParam(GroupTramoFacturas, "TF1", "Hasta 25 facturas", "45", "0", nil),
		tierParam(GroupTramoFacturacion, "TC1", "Cualquier facturación", "1.00", "0", nil),
	}
	snap := NewSnapshot(model.CategoryAutonomo, params)
	in := AutonomoInput{
		InvoicesPerMonth: 10,
		AnnualRevenue:    dec("1000"),
		Period:           PeriodMonthly,
		TaxRegime:        RegimeNormal,
	}

	_, err := CalculateAutonomo(in, snap)
	if !errors.Is(err, ErrMissingParameter) {
		t.Fatalf("err = %v, want ErrMissingParameter", err)
	}
}

func TestCalculateAutonomo_InvalidInput(t *testing.T) {
	snap := autonomoSnapshot()
	tests := []struct {
		name string
		in   AutonomoInput
	}{
		{"negative invoices", AutonomoInput{InvoicesPerMonth: -1, Period: PeriodMonthly, TaxRegime: RegimeNormal}},
		{"unknown period", AutonomoInput{Period: "ANUAL", TaxRegime: RegimeNormal}},
		{"unknown regime", AutonomoInput{Period: PeriodMonthly, TaxRegime: "RECARGO"}},
		{"negative discount", AutonomoInput{Period: PeriodMonthly, TaxRegime: RegimeNormal,
			Discount: &Discount{Type: model.DiscountFixed, Value: dec("-5")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := CalculateAutonomo(tt.in, snap); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func rentaSnapshot() *Snapshot {
	params := []model.Parameter{
		param(KeyUnidadMatrimonio, "50"),
		param(KeyUnidadMatrimonioHijos, "60"),
		param(KeyUnidadOtros, "40"),
		param(KeyExtraAutonomo, "20"),
		param(KeyPrecioInmuebleAlq, "15"),
		param(KeyPrecioVentaInmueble, "20"),
		param(KeyPrecioVentaFinanciera, "20"),
		param(KeyPrecioOtrasGanancias, "20"),
		param(KeyIVAPct, "21"),
	}
	return NewSnapshot(model.CategoryRenta, params)
}

func TestCalculateRenta(t *testing.T) {
	snap := rentaSnapshot()
	in := RentaInput{
		FamilyUnit:       FamilyMarriageChildren,
		SelfEmployed:     true,
		RentedProperties: 2,
		PropertySales:    1,
	}

	r, err := CalculateRenta(in, snap)
	if err != nil {
		t.Fatalf("CalculateRenta: %v", err)
	}

	// 60 base + 20 autónomo + 2x15 + 1x20.
	if !r.Subtotal.Equal(dec("130")) {
		t.Errorf("subtotal = %s, want 130", r.Subtotal)
	}
	if !r.Total.Equal(dec("157.30")) {
		t.Errorf("total = %s, want 157.30", r.Total)
	}
}

func TestCalculateRenta_FixedDiscountClampedAtZero(t *testing.T) {
	snap := rentaSnapshot()
	in := RentaInput{
		FamilyUnit: FamilyOther,
		Discount:   &Discount{Type: model.DiscountFixed, Value: dec("1000")},
	}

	r, err := CalculateRenta(in, snap)
	if err != nil {
		t.Fatalf("CalculateRenta: %v", err)
	}

	if !r.Total.IsZero() {
		t.Errorf("total = %s, want 0", r.Total)
	}
	sum := decimal.Zero
	for _, it := range r.Items {
		sum = sum.Add(it.Subtotal)
	}
	if sum.IsNegative() {
		t.Errorf("line sum = %s, want >= 0", sum)
	}
}

func pymeSnapshot() *Snapshot {
	params := []model.Parameter{
		tierParam(GroupTramoAsientos, "TA1", "Hasta 50 asientos", "60", "0", decPtr("50")),
		tierParam(GroupTramoAsientos, "TA2", "De 51 a 150 asientos", "90", "51", decPtr("150")),
		tierParam(GroupTramoAsientos, "TA3", "Más de 150 asientos", "130", "151", nil),

		tierParam(GroupTramoNominas, "TN1", "Hasta 5 nóminas", "12", "1", decPtr("5")),
		tierParam(GroupTramoNominas, "TN2", "Más de 5 nóminas", "10", "6", nil),

		tierParam(GroupTramoFacturacion, "TC1", "Hasta 40.000€", "1.00", "0", decPtr("40000")),
		tierParam(GroupTramoFacturacion, "TC2", "Más de 40.000€", "1.15", "40000.01", nil),

		param(KeyPorcentajeMensual, "20"),
		param(KeyDescuentoEmprendedor, "20"),
		param(KeyIVAPct, "21"),
		param("SERVICIO_IRPF_ALQUILERES", "10"),
	}
	return NewSnapshot(model.CategoryPyme, params)
}

func TestCalculatePyme(t *testing.T) {
	snap := pymeSnapshot()
	in := PymeInput{
		EntriesPerMonth:  100,
		PayrollsPerMonth: 3,
		AnnualRevenue:    dec("30000"),
		Period:           PeriodMonthly,
		IRPFOnRents:      true,
		Entrepreneur:     true,
	}

	r, err := CalculatePyme(in, snap)
	if err != nil {
		t.Fatalf("CalculatePyme: %v", err)
	}

	// 90 base + 10 IRPF = 100, +20% monthly = 120, +36 payroll = 156,
	// -20% entrepreneur = 124.80.
	if !r.Subtotal.Equal(dec("124.80")) {
		t.Errorf("subtotal = %s, want 124.80", r.Subtotal)
	}
	if !r.TaxTotal.Equal(dec("26.21")) {
		t.Errorf("tax = %s, want 26.21", r.TaxTotal)
	}
	if !r.Total.Equal(dec("151.01")) {
		t.Errorf("total = %s, want 151.01", r.Total)
	}
}

func herenciasSnapshot() *Snapshot {
	params := []model.Parameter{
		tierParam(GroupTramoCaudal, "TH1", "Hasta 100.000€", "600", "20000", decPtr("100000")),
		tierParam(GroupTramoCaudal, "TH2", "Hasta 400.000€", "900", "100000.01", decPtr("400000")),
		tierParam(GroupTramoCaudal, "TH3", "Más de 400.000€", "1400", "400000.01", nil),

		param(KeyHerederosIncluidos, "2"),
		param(KeyPrecioHerederoExtra, "150"),
		param(KeyPrecioFincaComunidad, "90"),
		param(KeyPrecioFincaOtra, "90"),
		param(KeyPrecioProductoFinanciero, "60"),
		param(KeyPrecioVehiculo, "60"),
		param(KeyRecargoSinTestamento, "20"),
		param(KeyRecargoSinAcuerdo, "25"),
		param(KeyPrecioEscritura, "300"),
		param(KeyDescuentoComercial, "15"),
		param(KeyIVAPct, "21"),
	}
	return NewSnapshot(model.CategoryHerencias, params)
}

func TestCalculateHerencias(t *testing.T) {
	snap := herenciasSnapshot()
	in := HerenciasInput{
		EstateValue:         dec("50000"),
		Heirs:               4,
		CommunityProperties: 1,
		Vehicles:            1,
		NoWill:              true,
		Deed:                true,
		ApplyDiscount15:     true,
	}

	r, err := CalculateHerencias(in, snap)
	if err != nil {
		t.Fatalf("CalculateHerencias: %v", err)
	}

	// 600 base + 2x150 heirs + 90 + 60 = 1050, +20% no-will = 1260,
	// +300 deed = 1560, -15% = 1326.
	if !r.Subtotal.Equal(dec("1326")) {
		t.Errorf("subtotal = %s, want 1326", r.Subtotal)
	}
	if !r.TaxTotal.Equal(dec("278.46")) {
		t.Errorf("tax = %s, want 278.46", r.TaxTotal)
	}
	if !r.Total.Equal(dec("1604.46")) {
		t.Errorf("total = %s, want 1604.46", r.Total)
	}
}

func TestCalculateHerencias_EstateBelowMinimum(t *testing.T) {
	snap := herenciasSnapshot()
	in := HerenciasInput{EstateValue: dec("19999.99"), Heirs: 1}

	_, err := CalculateHerencias(in, snap)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestSnapshotTier_Boundaries(t *testing.T) {
	snap := autonomoSnapshot()

	tests := []struct {
		magnitude string
		wantValue string
	}{
		{"0", "45"},
		{"25", "45"},
		{"26", "60"},
		{"50", "60"},
		{"51", "80"},
		{"100", "80"},
		{"101", "110"},
		{"10000", "110"},
	}
	for _, tt := range tests {
		tier, err := snap.Tier(GroupTramoFacturas, dec(tt.magnitude))
		if err != nil {
			t.Fatalf("Tier(%s): %v", tt.magnitude, err)
		}
		if !tier.Value.Equal(dec(tt.wantValue)) {
			t.Errorf("Tier(%s) = %s, want %s", tt.magnitude, tier.Value, tt.wantValue)
		}
	}
}

func TestSnapshotSkipsInactiveParameters(t *testing.T) {
	inactive := param("MODELO_303", "10")
	inactive.Active = false
	snap := NewSnapshot(model.CategoryAutonomo, []model.Parameter{inactive})

	if _, ok := snap.Value("MODELO_303"); ok {
		t.Fatal("inactive parameter should be invisible")
	}
}
