// Package notify delivers rendered budget documents to clients and staff
// through two external collaborators: a render service that produces the
// PDF document and a mail relay that sends it.
package notify

import (
	"context"

	"github.com/DigitalNexo/Asesoria-la-Llave-V2-sub002/internal/model"
)

// Renderer produces the printable document for a budget.
type Renderer interface {
	RenderBudget(ctx context.Context, b *model.Budget, items []model.BudgetItem) ([]byte, error)
}

// Message is a single outbound email.
type Message struct {
	To             string `json:"to"`
	Subject        string `json:"subject"`
	BodyHTML       string `json:"bodyHtml"`
	AttachmentName string `json:"attachmentName,omitempty"`
	Attachment     []byte `json:"attachment,omitempty"`
}

// Mailer submits messages to the mail relay.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}
