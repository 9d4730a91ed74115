package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/DigitalNexo/Asesoria-la-Llave-V2-sub002/internal/model"
)

// RenderClient talks to the render service over HTTP.
type RenderClient struct {
	address string
	client  *retryablehttp.Client
}

// NewRenderClient returns a client for the render service at address.
func NewRenderClient(address string, logger *zap.Logger) *RenderClient {
	c := retryablehttp.NewClient()
	c.RetryMax = 3
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 5 * time.Second
	c.Logger = newRetryLogger(logger)
	return &RenderClient{address: address, client: c}
}

type renderRequest struct {
	Budget *model.Budget      `json:"budget"`
	Items  []model.BudgetItem `json:"items"`
}

// RenderBudget asks the render service for a PDF of the budget.
func (c *RenderClient) RenderBudget(ctx context.Context, b *model.Budget, items []model.BudgetItem) ([]byte, error) {
	body, err := json.Marshal(renderRequest{Budget: b, Items: items})
	if err != nil {
		return nil, fmt.Errorf("marshal render request: %w", err)
	}
	url := c.address + "/api/render/budget"
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("render service request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("render service returned status %d", resp.StatusCode)
	}
	pdf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read rendered document: %w", err)
	}
	return pdf, nil
}

// MailClient talks to the mail relay over HTTP.
type MailClient struct {
	address string
	client  *retryablehttp.Client
}

// NewMailClient returns a client for the mail relay at address.
func NewMailClient(address string, logger *zap.Logger) *MailClient {
	c := retryablehttp.NewClient()
	c.RetryMax = 3
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 5 * time.Second
	c.Logger = newRetryLogger(logger)
	return &MailClient{address: address, client: c}
}

// Send submits a message to the relay.
func (c *MailClient) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	url := c.address + "/api/mail/send"
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("mail relay request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("mail relay returned status %d", resp.StatusCode)
	}
	return nil
}

// retryLogger adapts zap to the retryablehttp logger interface.
type retryLogger struct {
	l *zap.SugaredLogger
}

func newRetryLogger(logger *zap.Logger) retryablehttp.LeveledLogger {
	return &retryLogger{l: logger.Sugar()}
}

func (r *retryLogger) Error(msg string, kv ...interface{}) { r.l.Errorw(msg, kv...) }
func (r *retryLogger) Info(msg string, kv ...interface{})  { r.l.Infow(msg, kv...) }
func (r *retryLogger) Debug(msg string, kv ...interface{}) { r.l.Debugw(msg, kv...) }
func (r *retryLogger) Warn(msg string, kv ...interface{})  { r.l.Warnw(msg, kv...) }
