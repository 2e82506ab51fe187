package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tommypurcell/autoscape-api/internal/core/domain"
	"github.com/tommypurcell/autoscape-api/internal/core/ports"
	"github.com/tommypurcell/autoscape-api/internal/core/service"
)

type stubLedger struct {
	balanceFn func(ctx context.Context, p domain.Principal) (int, error)
	grantFn   func(ctx context.Context, principalKey string, amount int) (int, error)
}

func (s *stubLedger) Reserve(context.Context, domain.Principal, int) (string, error) {
	return "", errors.New("not implemented")
}

func (s *stubLedger) Complete(context.Context, string, string) error { return nil }

func (s *stubLedger) Refund(context.Context, string, string) error { return nil }

func (s *stubLedger) Balance(ctx context.Context, p domain.Principal) (int, error) {
	return s.balanceFn(ctx, p)
}

func (s *stubLedger) Grant(ctx context.Context, principalKey string, amount int) (int, error) {
	return s.grantFn(ctx, principalKey, amount)
}

func TestCreditHandler_Balance_Authenticated(t *testing.T) {
	e := newTestEcho()
	ledger := &stubLedger{
		balanceFn: func(_ context.Context, p domain.Principal) (int, error) {
			if p.ID != "user_1" {
				t.Fatalf("unexpected principal: %+v", p)
			}
			return 5, nil
		},
	}
	handler := NewCreditHandler(ledger, service.NewBalanceBroker())

	req := httptest.NewRequest(http.MethodGet, "/v1/credits", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", "user_1")
	c.Set("role", "member")

	if err := handler.Balance(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["balance"] != float64(5) {
		t.Fatalf("expected balance 5, got %v", resp["balance"])
	}
}

func TestCreditHandler_Balance_AnonymousNeedsDevice(t *testing.T) {
	e := newTestEcho()
	handler := NewCreditHandler(&stubLedger{}, service.NewBalanceBroker())

	req := httptest.NewRequest(http.MethodGet, "/v1/credits", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := handler.Balance(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without a device id, got %v", err)
	}
}

func TestCreditHandler_Grant(t *testing.T) {
	e := newTestEcho()
	ledger := &stubLedger{
		grantFn: func(_ context.Context, principalKey string, amount int) (int, error) {
			if principalKey != "user_1" || amount != 10 {
				t.Fatalf("unexpected grant args: %s %d", principalKey, amount)
			}
			return 12, nil
		},
	}
	handler := NewCreditHandler(ledger, service.NewBalanceBroker())

	body := strings.NewReader(`{"principal":"user_1","amount":10}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/credits/grant", body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := handler.Grant(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "12") {
		t.Fatalf("expected new balance in payload: %s", rec.Body.String())
	}
}

func TestCreditHandler_Grant_RejectsNonPositive(t *testing.T) {
	e := newTestEcho()
	handler := NewCreditHandler(&stubLedger{}, service.NewBalanceBroker())

	body := strings.NewReader(`{"principal":"user_1","amount":0}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/credits/grant", body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := handler.Grant(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-positive amount, got %v", err)
	}
}

func TestCreditHandler_Stream(t *testing.T) {
	e := newTestEcho()
	broker := service.NewBalanceBroker()
	ledger := &stubLedger{
		balanceFn: func(context.Context, domain.Principal) (int, error) { return 2, nil },
	}
	handler := NewCreditHandler(ledger, broker)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/v1/credits/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", "user_1")
	c.Set("role", "member")

	done := make(chan error, 1)
	go func() { done <- handler.Stream(c) }()

	// Give the handler time to subscribe and write the snapshot, publish a
	// change, then disconnect the client.
	time.Sleep(50 * time.Millisecond)
	broker.Publish(ports.BalanceEvent{Principal: "user_1", Balance: 1, Cause: "reserve"})
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("stream error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("stream did not stop on client disconnect")
	}

	body := rec.Body.String()
	if !strings.Contains(body, `"cause":"snapshot"`) {
		t.Fatalf("missing snapshot event: %s", body)
	}
	if !strings.Contains(body, `"cause":"reserve"`) {
		t.Fatalf("missing reserve event: %s", body)
	}
	if rec.Header().Get(echo.HeaderContentType) != "text/event-stream" {
		t.Fatalf("unexpected content type: %s", rec.Header().Get(echo.HeaderContentType))
	}
}
