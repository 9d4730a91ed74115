package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/DigitalNexo/Asesoria-la-Llave-V2-sub002/internal/repository"
)

var exportHeader = []string{
	"codigo", "categoria", "marca", "cliente", "nif", "email",
	"fecha_emision", "fecha_caducidad", "estado",
	"base_imponible", "iva", "total", "fecha_aceptacion",
}

// ExportCSV writes the budgets matching the filters as CSV. Amounts use two
// decimals and dates are ISO 8601.
func (s *Service) ExportCSV(ctx context.Context, f repository.BudgetFilters, w io.Writer) error {
	budgets, err := s.repo.ListBudgets(ctx, f)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, b := range budgets {
		accepted := ""
		if b.AcceptedAt != nil {
			accepted = b.AcceptedAt.UTC().Format(time.RFC3339)
		}
		row := []string{
			b.Code,
			string(b.Category),
			string(b.Brand),
			b.ClientName,
			b.ClientTaxID,
			b.ClientEmail,
			b.IssueDate.UTC().Format("2006-01-02"),
			b.ExpiresAt.UTC().Format("2006-01-02"),
			string(b.Status),
			b.Subtotal.StringFixed(2),
			b.TaxTotal.StringFixed(2),
			b.Total.StringFixed(2),
			accepted,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %s: %w", b.Code, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
