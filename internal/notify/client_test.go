package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/DigitalNexo/Asesoria-la-Llave-V2-sub002/internal/model"
)

func TestRenderClientReturnsDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/render/budget" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req struct {
			Budget *model.Budget `json:"budget"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode render request: %v", err)
		}
		if req.Budget == nil || req.Budget.Code != "AL-2026-0001" {
			t.Errorf("unexpected budget in request: %+v", req.Budget)
		}
		w.Write([]byte("%PDF-1.4"))
	}))
	defer srv.Close()

	c := NewRenderClient(srv.URL, zap.NewNop())
	pdf, err := c.RenderBudget(context.Background(), &model.Budget{Code: "AL-2026-0001"}, nil)
	if err != nil {
		t.Fatalf("RenderBudget: %v", err)
	}
	if string(pdf) != "%PDF-1.4" {
		t.Fatalf("pdf = %q, want %%PDF-1.4", pdf)
	}
}

func TestMailClientAcceptsQueuedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/mail/send" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewMailClient(srv.URL, zap.NewNop())
	err := c.Send(context.Background(), Message{To: "carmen@example.com", Subject: "Presupuesto"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
}

func TestMailClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewMailClient(srv.URL, zap.NewNop())
	if err := c.Send(context.Background(), Message{To: "carmen@example.com"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Fatalf("relay calls = %d, want 2", n)
	}
}

func TestMailClientRejectsClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewMailClient(srv.URL, zap.NewNop())
	if err := c.Send(context.Background(), Message{To: "bad"}); err == nil {
		t.Fatal("expected error for rejected message")
	}
}
