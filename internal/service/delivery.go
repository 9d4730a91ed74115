package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DigitalNexo/Asesoria-la-Llave-V2-sub002/internal/model"
	"github.com/DigitalNexo/Asesoria-la-Llave-V2-sub002/internal/notify"
)

// acceptanceURL builds the public link the client follows to review and
// accept the budget.
func (s *Service) acceptanceURL(b *model.Budget) string {
	return fmt.Sprintf("%s/public/budgets/%s/accept?t=%s", s.opts.FrontendURL, b.Code, b.AcceptanceToken)
}

// SendBudget renders the budget, emails it to the client and moves a draft
// to SENT. Sending is idempotent for budgets already sent. A delivery
// failure is logged but does not undo the status change.
func (s *Service) SendBudget(ctx context.Context, id uuid.UUID) (*model.Budget, error) {
	b, items, err := s.repo.GetBudgetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s", ErrTerminalState, b.Status)
	}
	if !s.now().UTC().Before(b.ExpiresAt) {
		return nil, ErrExpired
	}

	if err := s.repo.MarkSent(ctx, id); err != nil {
		return nil, err
	}
	b.Status = model.BudgetStatusSent

	subject := fmt.Sprintf("Presupuesto %s - Asesoría La Llave", b.Code)
	msg := notify.Message{
		To:      b.ClientEmail,
		Subject: subject,
		BodyHTML: fmt.Sprintf(
			"<p>Estimado/a %s:</p><p>Le adjuntamos el presupuesto <strong>%s</strong> por un total de <strong>%s €</strong>, válido hasta el %s.</p><p>Puede revisarlo y aceptarlo en el siguiente enlace: <a href=%q>Ver presupuesto</a></p>",
			b.ClientName, b.Code, b.Total.StringFixed(2), b.ExpiresAt.Format("02/01/2006"), s.acceptanceURL(b),
		),
	}
	if pdf, err := s.renderer.RenderBudget(ctx, b, items); err != nil {
		s.logger.Warn("budget render failed", zap.String("code", b.Code), zap.Error(err))
	} else {
		msg.AttachmentName = b.Code + ".pdf"
		msg.Attachment = pdf
	}

	s.deliver(ctx, b, model.DeliverySend, msg)
	return b, nil
}

// RemindBudget sends a manual expiry reminder for a sent budget. The attempt
// lands in the delivery log only; the automatic near-expiry reminder of the
// sweep is unaffected.
func (s *Service) RemindBudget(ctx context.Context, id uuid.UUID) (*model.Budget, error) {
	b, _, err := s.repo.GetBudgetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s", ErrTerminalState, b.Status)
	}
	if !s.now().UTC().Before(b.ExpiresAt) {
		return nil, ErrExpired
	}

	s.remind(ctx, b)
	return b, nil
}

// remind emails the expiry reminder and records the attempt.
func (s *Service) remind(ctx context.Context, b *model.Budget) {
	subject := fmt.Sprintf("Su presupuesto %s caduca pronto", b.Code)
	msg := notify.Message{
		To:      b.ClientEmail,
		Subject: subject,
		BodyHTML: fmt.Sprintf(
			"<p>Estimado/a %s:</p><p>Le recordamos que su presupuesto <strong>%s</strong> por %s € caduca el %s.</p><p>Puede aceptarlo en el siguiente enlace: <a href=%q>Ver presupuesto</a></p>",
			b.ClientName, b.Code, b.Total.StringFixed(2), b.ExpiresAt.Format("02/01/2006"), s.acceptanceURL(b),
		),
	}
	s.deliver(ctx, b, model.DeliveryRemind, msg)
}

// notifyAccepted emails the acceptance confirmation to the client and the
// internal notice to the office. Failures are logged per delivery.
func (s *Service) notifyAccepted(ctx context.Context, b *model.Budget, items []model.BudgetItem) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := notify.Message{
		To:      b.ClientEmail,
		Subject: fmt.Sprintf("Confirmación de aceptación del presupuesto %s", b.Code),
		BodyHTML: fmt.Sprintf(
			"<p>Estimado/a %s:</p><p>Hemos registrado la aceptación de su presupuesto <strong>%s</strong> por un total de %s €. En breve nos pondremos en contacto con usted.</p>",
			b.ClientName, b.Code, b.Total.StringFixed(2),
		),
	}
	if pdf, err := s.renderer.RenderBudget(ctx, b, items); err != nil {
		s.logger.Warn("budget render failed", zap.String("code", b.Code), zap.Error(err))
	} else {
		client.AttachmentName = b.Code + ".pdf"
		client.Attachment = pdf
	}
	s.deliver(ctx, b, model.DeliveryAcceptClient, client)

	internal := notify.Message{
		To:      s.opts.OfficeEmail,
		Subject: fmt.Sprintf("Presupuesto %s aceptado", b.Code),
		BodyHTML: fmt.Sprintf(
			"<p>El cliente %s (%s) ha aceptado el presupuesto <strong>%s</strong> por %s € desde la IP %s.</p>",
			b.ClientName, b.ClientTaxID, b.Code, b.Total.StringFixed(2), b.AcceptedByIP,
		),
	}
	s.deliver(ctx, b, model.DeliveryAcceptInternal, internal)
}

// deliver sends one message and records the attempt in the delivery log.
func (s *Service) deliver(ctx context.Context, b *model.Budget, kind model.DeliveryKind, msg notify.Message) {
	entry := &model.DeliveryLog{
		ID:        uuid.New(),
		BudgetID:  b.ID,
		Kind:      kind,
		Recipient: msg.To,
		Subject:   msg.Subject,
		Outcome:   model.DeliveryOutcomeSent,
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		entry.Outcome = model.DeliveryOutcomeFailed
		entry.Detail = err.Error()
		s.logger.Warn("delivery failed",
			zap.String("code", b.Code),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
	if err := s.repo.CreateDeliveryLog(ctx, entry); err != nil {
		s.logger.Error("record delivery log", zap.String("code", b.Code), zap.Error(err))
	}
}
