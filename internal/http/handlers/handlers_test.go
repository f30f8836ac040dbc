package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/lnurl-gateway/backend/internal/apperr"
	"github.com/lnurl-gateway/backend/internal/lnurl"
	"github.com/lnurl-gateway/backend/internal/middleware"
	"github.com/lnurl-gateway/backend/internal/models"
	"github.com/lnurl-gateway/backend/internal/repositories"
	"github.com/lnurl-gateway/backend/internal/services"
	"go.uber.org/zap"
)

var nop = zap.NewNop()

type fakeWithdraw struct {
	redeemErr error
	gotK1     string
	gotPR     string
}

func (f *fakeWithdraw) Generate(context.Context) (*services.WithdrawOffer, error) {
	return &services.WithdrawOffer{K1: strings.Repeat("ab", 32)}, nil
}

func (f *fakeWithdraw) Request(_ context.Context, k1 string) (*lnurl.WithdrawRequest, error) {
	return &lnurl.WithdrawRequest{Tag: lnurl.TagWithdraw, K1: k1}, nil
}

func (f *fakeWithdraw) Redeem(_ context.Context, k1, pr string) (*models.Challenge, error) {
	f.gotK1, f.gotPR = k1, pr
	if f.redeemErr != nil {
		return nil, f.redeemErr
	}
	return &models.Challenge{K1: k1}, nil
}

type fakePay struct {
	callbackErr error
	gotAmount   int64
	gotComment  string
	gotFilter   repositories.InvoiceFilter
}

func (f *fakePay) Generate(_ context.Context, b services.PayBounds) (*models.PaymentConfig, error) {
	if b.MinSendableMsat != nil && *b.MinSendableMsat < 1000 {
		return nil, apperr.Validation("minSendable must be at least 1000 msat")
	}
	return &models.PaymentConfig{ID: "cfg-1", MinSendableMsat: 1000, MaxSendableMsat: 2000}, nil
}

func (f *fakePay) Request(_ context.Context, id string) (*lnurl.PayRequest, error) {
	if id != "cfg-1" {
		return nil, apperr.NotFound("Payment not found")
	}
	return &lnurl.PayRequest{Tag: lnurl.TagPay}, nil
}

func (f *fakePay) ResolveAddress(_ context.Context, username string) (*lnurl.PayRequest, error) {
	return &lnurl.PayRequest{Tag: lnurl.TagPay, Metadata: username}, nil
}

func (f *fakePay) Callback(_ context.Context, _ string, amount int64, comment string) (*lnurl.PayValues, *models.InvoiceRecord, error) {
	f.gotAmount, f.gotComment = amount, comment
	if f.callbackErr != nil {
		return nil, nil, f.callbackErr
	}
	return &lnurl.PayValues{PR: "lnbcrt10n1pexample", Routes: []any{}}, &models.InvoiceRecord{}, nil
}

func (f *fakePay) InvoiceStatus(_ context.Context, id uuid.UUID) (*models.InvoiceRecord, error) {
	return &models.InvoiceRecord{ID: id, Paid: true}, nil
}

func (f *fakePay) ListInvoices(_ context.Context, filter repositories.InvoiceFilter) ([]models.InvoiceRecord, error) {
	f.gotFilter = filter
	return nil, nil
}

func (f *fakePay) ListConfigs(context.Context, int, int) ([]models.PaymentConfig, error) {
	return nil, nil
}

type fakeChannel struct {
	gotPrivate bool
	gotCancel  bool
	err        error
}

func (f *fakeChannel) Generate(context.Context) (*services.ChannelOffer, error) {
	return &services.ChannelOffer{}, nil
}

func (f *fakeChannel) Request(_ context.Context, k1 string) (*lnurl.ChannelRequest, error) {
	return &lnurl.ChannelRequest{Tag: lnurl.TagChannel, K1: k1}, nil
}

func (f *fakeChannel) Callback(_ context.Context, k1, _ string, private, cancel bool) (*models.ChannelRequest, error) {
	f.gotPrivate, f.gotCancel = private, cancel
	if f.err != nil {
		return nil, f.err
	}
	return &models.ChannelRequest{K1: k1}, nil
}

func (f *fakeChannel) List(context.Context, *string, int, int) ([]models.ChannelRequest, error) {
	return nil, nil
}

type fakeAuth struct {
	verifyErr error
	verified  bool
}

func (f *fakeAuth) Generate(_ context.Context, action string) (*services.AuthOffer, error) {
	return &services.AuthOffer{Action: action}, nil
}

func (f *fakeAuth) Verify(context.Context, string, string, string) (*models.AuthSession, error) {
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	f.verified = true
	return &models.AuthSession{ID: uuid.New()}, nil
}

func (f *fakeAuth) SessionByK1(context.Context, string) (*services.SessionToken, error) {
	return nil, apperr.NotFound("Session not found")
}

func (f *fakeAuth) Validate(_ context.Context, id uuid.UUID) (*models.AuthSession, error) {
	return &models.AuthSession{ID: id}, nil
}

func (f *fakeAuth) Logout(context.Context, uuid.UUID) error { return nil }

func newTestApp(w *fakeWithdraw, p *fakePay, ch *fakeChannel, a *fakeAuth) *fiber.App {
	app := fiber.New()
	app.Use(middleware.RequestIDMiddleware())

	wh := NewWithdrawHandler(w, nop)
	app.Get("/lnurl/withdraw", wh.Generate)
	app.Get("/lnurl/withdraw/callback", wh.Callback)

	ph := NewPayHandler(p, "https://lnurl.test", nop)
	app.Post("/lnurl/pay", ph.Generate)
	app.Get("/lnurl/pay/:id", ph.Request)
	app.Get("/lnurl/pay/:id/callback", ph.Callback)
	app.Get("/api/v1/invoices", ph.ListInvoices)
	app.Get("/api/v1/invoices/:id/status", ph.InvoiceStatus)

	chh := NewChannelHandler(ch, nop)
	app.Get("/lnurl/channel/callback", chh.Callback)

	ah := NewAuthHandler(a, nop)
	app.Get("/lnurl/auth/callback", ah.Callback)
	app.Get("/api/v1/auth/session", ah.Session)
	return app
}

type reply struct {
	status int
	body   map[string]any
}

func call(t *testing.T, app *fiber.App, method, target, body string) reply {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	out := reply{status: resp.StatusCode, body: map[string]any{}}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out.body); err != nil {
			t.Fatalf("body %q: %v", raw, err)
		}
	}
	return out
}

func TestWithdrawCallback(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   map[string]any
	}{
		{"ok", nil, 200, map[string]any{"status": "OK"}},
		{"used k1", apperr.NotFound(apperr.ReasonInvalidK1), 404, map[string]any{"status": "ERROR", "reason": "Invalid or used k1"}},
		{"out of bounds", apperr.Validation("Amount 1 msat is outside [1000, 2000]"), 400, map[string]any{"status": "ERROR", "reason": "Amount 1 msat is outside [1000, 2000]"}},
		{"node down", apperr.Upstream("Payment failed", errors.New("no route")), 502, map[string]any{"status": "ERROR", "reason": "Payment failed: no route"}},
		{"internal", apperr.Internal("failed to claim challenge", errors.New("pg: conn reset")), 500, map[string]any{"status": "ERROR", "reason": "failed to claim challenge"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &fakeWithdraw{redeemErr: tt.err}
			app := newTestApp(w, &fakePay{}, &fakeChannel{}, &fakeAuth{})

			got := call(t, app, "GET", "/lnurl/withdraw/callback?k1=abc&pr=lnbc1xyz", "")
			if got.status != tt.wantStatus {
				t.Fatalf("status = %d, want %d", got.status, tt.wantStatus)
			}
			for k, v := range tt.wantBody {
				if got.body[k] != v {
					t.Errorf("%s = %v, want %v", k, got.body[k], v)
				}
			}
			if w.gotK1 != "abc" || w.gotPR != "lnbc1xyz" {
				t.Errorf("forwarded k1=%q pr=%q", w.gotK1, w.gotPR)
			}
		})
	}
}

func TestWithdrawGenerateEnvelope(t *testing.T) {
	app := newTestApp(&fakeWithdraw{}, &fakePay{}, &fakeChannel{}, &fakeAuth{})

	got := call(t, app, "GET", "/lnurl/withdraw", "")
	if got.status != 200 || got.body["ok"] != true {
		t.Fatalf("reply = %+v", got)
	}
	data, _ := got.body["data"].(map[string]any)
	if data["k1"] != strings.Repeat("ab", 32) {
		t.Fatalf("data = %v", data)
	}
}

func TestPayCallbackAmountParsing(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
		forwarded  bool
	}{
		{"valid", "amount=1000&comment=hi", 200, true},
		{"missing", "", 400, false},
		{"not a number", "amount=ten", 400, false},
		{"fractional", "amount=1000.5", 400, false},
		{"zero", "amount=0", 400, false},
		{"negative", "amount=-5", 400, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePay{}
			app := newTestApp(&fakeWithdraw{}, p, &fakeChannel{}, &fakeAuth{})

			got := call(t, app, "GET", "/lnurl/pay/cfg-1/callback?"+tt.query, "")
			if got.status != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%v)", got.status, tt.wantStatus, got.body)
			}
			if tt.forwarded {
				if p.gotAmount != 1000 || p.gotComment != "hi" {
					t.Fatalf("forwarded %d %q", p.gotAmount, p.gotComment)
				}
				if got.body["pr"] != "lnbcrt10n1pexample" {
					t.Fatalf("pr = %v", got.body["pr"])
				}
				if routes, ok := got.body["routes"].([]any); !ok || len(routes) != 0 {
					t.Fatalf("routes = %v", got.body["routes"])
				}
			} else if got.body["status"] != "ERROR" {
				t.Fatalf("body = %v", got.body)
			}
		})
	}
}

func TestPayGenerate(t *testing.T) {
	app := newTestApp(&fakeWithdraw{}, &fakePay{}, &fakeChannel{}, &fakeAuth{})

	got := call(t, app, "POST", "/lnurl/pay", "")
	if got.status != fiber.StatusCreated {
		t.Fatalf("status = %d (%v)", got.status, got.body)
	}
	data, _ := got.body["data"].(map[string]any)
	if data["url"] != "https://lnurl.test/lnurl/pay/cfg-1" {
		t.Errorf("url = %v", data["url"])
	}
	code, _ := data["lnurl"].(string)
	if decoded, err := lnurl.Decode(code); err != nil || decoded != data["url"] {
		t.Errorf("lnurl decodes to %q, %v", decoded, err)
	}

	got = call(t, app, "POST", "/lnurl/pay", `{"min_sendable_msat": 10}`)
	if got.status != 400 || got.body["error"] == nil || got.body["request_id"] == nil {
		t.Fatalf("reply = %+v", got)
	}

	got = call(t, app, "POST", "/lnurl/pay", `{not json`)
	if got.status != 400 {
		t.Fatalf("status = %d", got.status)
	}
}

func TestPayRequestNotFound(t *testing.T) {
	app := newTestApp(&fakeWithdraw{}, &fakePay{}, &fakeChannel{}, &fakeAuth{})

	got := call(t, app, "GET", "/lnurl/pay/missing", "")
	if got.status != 404 || got.body["reason"] != "Payment not found" {
		t.Fatalf("reply = %+v", got)
	}
}

func TestListInvoicesFilter(t *testing.T) {
	p := &fakePay{}
	app := newTestApp(&fakeWithdraw{}, p, &fakeChannel{}, &fakeAuth{})

	got := call(t, app, "GET", "/api/v1/invoices?paid=false&payment_id=cfg-1&limit=1000", "")
	if got.status != 200 {
		t.Fatalf("status = %d", got.status)
	}
	f := p.gotFilter
	if f.Paid == nil || *f.Paid || f.PaymentID == nil || *f.PaymentID != "cfg-1" || f.Limit != maxLimit {
		t.Fatalf("filter = %+v", f)
	}

	got = call(t, app, "GET", "/api/v1/invoices?paid=maybe", "")
	if got.status != 400 {
		t.Fatalf("status = %d", got.status)
	}

	got = call(t, app, "GET", "/api/v1/invoices/not-a-uuid/status", "")
	if got.status != 400 {
		t.Fatalf("status = %d", got.status)
	}
}

func TestChannelCallbackFlags(t *testing.T) {
	tests := []struct {
		query       string
		wantPrivate bool
		wantCancel  bool
	}{
		{"k1=a&remoteid=b", false, false},
		{"k1=a&remoteid=b&private=1", true, false},
		{"k1=a&cancel=1", false, true},
		{"k1=a&cancel=true&private=0", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			ch := &fakeChannel{}
			app := newTestApp(&fakeWithdraw{}, &fakePay{}, ch, &fakeAuth{})

			got := call(t, app, "GET", "/lnurl/channel/callback?"+tt.query, "")
			if got.status != 200 || got.body["status"] != "OK" {
				t.Fatalf("reply = %+v", got)
			}
			if ch.gotPrivate != tt.wantPrivate || ch.gotCancel != tt.wantCancel {
				t.Fatalf("private=%v cancel=%v", ch.gotPrivate, ch.gotCancel)
			}
		})
	}
}

func TestAuthCallback(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		verifyErr  error
		wantStatus int
		verified   bool
	}{
		{"ok", "tag=login&k1=a&sig=b&key=c", nil, 200, true},
		{"tag omitted", "k1=a&sig=b&key=c", nil, 200, true},
		{"wrong tag", "tag=withdrawRequest&k1=a&sig=b&key=c", nil, 400, false},
		{"bad signature", "tag=login&k1=a&sig=b&key=c", apperr.Signature(apperr.ReasonInvalidSignature), 400, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &fakeAuth{verifyErr: tt.verifyErr}
			app := newTestApp(&fakeWithdraw{}, &fakePay{}, &fakeChannel{}, a)

			got := call(t, app, "GET", "/lnurl/auth/callback?"+tt.query, "")
			if got.status != tt.wantStatus {
				t.Fatalf("status = %d, want %d", got.status, tt.wantStatus)
			}
			if a.verified != tt.verified {
				t.Fatalf("verified = %v", a.verified)
			}
		})
	}
}

func TestAuthSessionPending(t *testing.T) {
	app := newTestApp(&fakeWithdraw{}, &fakePay{}, &fakeChannel{}, &fakeAuth{})

	got := call(t, app, "GET", "/api/v1/auth/session?k1=abc", "")
	if got.status != 404 || got.body["error"] != "Session not found" {
		t.Fatalf("reply = %+v", got)
	}
}

type fakeAudit struct{ gotType, gotID string }

func (f *fakeAudit) GetByEntity(_ context.Context, entityType, entityID string, _, _ int) ([]models.AuditLog, error) {
	f.gotType, f.gotID = entityType, entityID
	return []models.AuditLog{{Action: "invoice_settled"}}, nil
}

type fakeHealth struct{}

func (fakeHealth) Check(context.Context) *services.HealthReport {
	return &services.HealthReport{Status: services.HealthDegraded}
}

func (fakeHealth) NodeAddress(context.Context) (string, error) { return "bcrt1qxyz", nil }

func TestOpsHandler(t *testing.T) {
	audit := &fakeAudit{}
	h := NewOpsHandler(fakeHealth{}, audit, nop)
	app := fiber.New()
	app.Get("/health", h.Health)
	app.Get("/audit/:type/:id", h.Audit)
	app.Get("/node/address", h.NodeAddress)

	got := call(t, app, "GET", "/health", "")
	if got.status != 200 || got.body["status"] != "degraded" {
		t.Fatalf("health = %+v", got)
	}

	got = call(t, app, "GET", "/audit/invoice/123", "")
	if got.status != 200 || audit.gotType != "invoice" || audit.gotID != "123" {
		t.Fatalf("audit = %+v (%s/%s)", got, audit.gotType, audit.gotID)
	}

	got = call(t, app, "GET", "/audit/wallet/123", "")
	if got.status != 400 {
		t.Fatalf("unknown entity status = %d", got.status)
	}

	got = call(t, app, "GET", "/node/address", "")
	data, _ := got.body["data"].(map[string]any)
	if data["address"] != "bcrt1qxyz" {
		t.Fatalf("address = %+v", got)
	}
}
