package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aid003/SKUF-BOT/internal/config"
	"github.com/aid003/SKUF-BOT/internal/storage"
	"github.com/aid003/SKUF-BOT/internal/transport"
	logx "github.com/aid003/SKUF-BOT/pkg/logx"
)

const testSecret = "top-secret"

type fakeStore struct {
	storage.Store

	users     map[int64]storage.User
	payments  map[string]storage.Payment
	upsertErr error
}

func newFakeStore(ids ...int64) *fakeStore {
	f := &fakeStore{users: map[int64]storage.User{}, payments: map[string]storage.Payment{}}
	for _, id := range ids {
		f.users[id] = storage.User{ID: id}
	}
	return f
}

func (f *fakeStore) GetUser(ctx context.Context, id int64) (storage.User, error) {
	u, ok := f.users[id]
	if !ok {
		return storage.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) UpsertPayment(ctx context.Context, p storage.Payment) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.payments[p.OrderID] = p
	return nil
}

type fakeSender struct {
	texts map[int64]string
	err   error
}

func (f *fakeSender) SendText(ctx context.Context, to int64, text string, opt *transport.SendOptions) error {
	if f.err != nil {
		return f.err
	}
	if f.texts == nil {
		f.texts = make(map[int64]string)
	}
	f.texts[to] = text
	return nil
}

func (f *fakeSender) SendPhoto(ctx context.Context, to int64, fileID, caption string) error {
	return nil
}
func (f *fakeSender) SendVideo(ctx context.Context, to int64, fileID, caption string) error {
	return nil
}
func (f *fakeSender) SendSticker(ctx context.Context, to int64, fileID string) error   { return nil }
func (f *fakeSender) SendVoice(ctx context.Context, to int64, fileID string) error     { return nil }
func (f *fakeSender) SendVideoNote(ctx context.Context, to int64, fileID string) error { return nil }

func newTestServer(store *fakeStore, sender *fakeSender) *Server {
	return New(config.WebhookConfig{Addr: ":0", SecretKey: testSecret}, store, sender, logx.Nop())
}

func signedRequest(t *testing.T, body string) *http.Request {
	t.Helper()
	sig, err := computeSignature([]byte(body), testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/webhook/payment", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Sign", sig)
	return req
}

func TestPaymentSuccess(t *testing.T) {
	store := newFakeStore(777)
	sender := &fakeSender{}
	srv := newTestServer(store, sender)

	body := `{"order_id":"ord-1","amount":"1500.50","status":"success","user_id":"777","payment_method":"ackz"}`
	rr := httptest.NewRecorder()
	srv.router().ServeHTTP(rr, signedRequest(t, body))

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", rr.Code, rr.Body.String())
	}
	p, ok := store.payments["ord-1"]
	if !ok {
		t.Fatal("payment not recorded")
	}
	if p.UserID != 777 || p.Amount != 1500.50 {
		t.Fatalf("payment mismatch: %+v", p)
	}
	if p.Status != storage.PaymentStatusSuccess {
		t.Fatalf("status = %q, want SUCCESS", p.Status)
	}
	if p.Method != storage.PaymentMethodCard {
		t.Fatalf("method = %q, want CARD", p.Method)
	}
	msg, ok := sender.texts[777]
	if !ok {
		t.Fatal("user not notified")
	}
	if !strings.Contains(msg, "1500.5 RUB успешно") {
		t.Fatalf("unexpected notification: %q", msg)
	}
}

func TestPaymentNumericAmountAndPending(t *testing.T) {
	store := newFakeStore(5)
	sender := &fakeSender{}
	srv := newTestServer(store, sender)

	body := `{"order_id":"ord-2","amount":990,"status":"pending","user_id":"5"}`
	rr := httptest.NewRecorder()
	srv.router().ServeHTTP(rr, signedRequest(t, body))

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", rr.Code, rr.Body.String())
	}
	if p := store.payments["ord-2"]; p.Amount != 990 || p.Status != storage.PaymentStatusPending || p.Method != "" {
		t.Fatalf("payment mismatch: %+v", p)
	}
	if !strings.Contains(sender.texts[5], "обрабатывается") {
		t.Fatalf("unexpected notification: %q", sender.texts[5])
	}
}

func TestPaymentBadSignature(t *testing.T) {
	store := newFakeStore(1)
	srv := newTestServer(store, &fakeSender{})

	body := `{"order_id":"ord-3","amount":"10","status":"success","user_id":"1"}`
	req := httptest.NewRequest(http.MethodPost, "/webhook/payment", strings.NewReader(body))
	req.Header.Set("Sign", "deadbeef")

	rr := httptest.NewRecorder()
	srv.router().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", rr.Code)
	}
	if len(store.payments) != 0 {
		t.Fatal("payment recorded despite invalid signature")
	}
}

func TestPaymentSignatureIgnoresKeyOrder(t *testing.T) {
	store := newFakeStore(9)
	srv := newTestServer(store, &fakeSender{})

	// Signed over the canonical (sorted-key) form, delivered shuffled.
	canonical := `{"amount":"10","order_id":"ord-4","status":"success","user_id":"9"}`
	sig, err := computeSignature([]byte(canonical), testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	shuffled := `{"user_id":"9","status":"success","amount":"10","order_id":"ord-4"}`
	req := httptest.NewRequest(http.MethodPost, "/webhook/payment", strings.NewReader(shuffled))
	req.Header.Set("Sign", sig)

	rr := httptest.NewRecorder()
	srv.router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", rr.Code, rr.Body.String())
	}
}

func TestPaymentUnknownUser(t *testing.T) {
	srv := newTestServer(newFakeStore(), &fakeSender{})

	body := `{"order_id":"ord-5","amount":"10","status":"success","user_id":"404"}`
	rr := httptest.NewRecorder()
	srv.router().ServeHTTP(rr, signedRequest(t, body))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d, want 404", rr.Code)
	}
}

func TestPaymentRejectsBadUserID(t *testing.T) {
	srv := newTestServer(newFakeStore(1), &fakeSender{})

	for _, body := range []string{
		`{"order_id":"o","amount":"10","status":"success","user_id":123}`,
		`{"order_id":"o","amount":"10","status":"success","user_id":"12x"}`,
		`{"order_id":"o","amount":"10","status":"success","user_id":"-5"}`,
	} {
		rr := httptest.NewRecorder()
		srv.router().ServeHTTP(rr, signedRequest(t, body))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("body %s: status=%d, want 400", body, rr.Code)
		}
	}
}

func TestPaymentRejectsZeroAmount(t *testing.T) {
	store := newFakeStore(1)
	srv := newTestServer(store, &fakeSender{})

	for _, body := range []string{
		`{"order_id":"o","amount":0,"status":"success","user_id":"1"}`,
		`{"order_id":"o","amount":"0","status":"success","user_id":"1"}`,
		`{"order_id":"o","amount":"-10","status":"success","user_id":"1"}`,
	} {
		rr := httptest.NewRecorder()
		srv.router().ServeHTTP(rr, signedRequest(t, body))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("body %s: status=%d, want 400", body, rr.Code)
		}
	}
	if len(store.payments) != 0 {
		t.Fatal("zero-amount payment recorded")
	}
}

func TestPaymentMissingFields(t *testing.T) {
	srv := newTestServer(newFakeStore(1), &fakeSender{})

	rr := httptest.NewRecorder()
	srv.router().ServeHTTP(rr, signedRequest(t, `{"order_id":"only"}`))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", rr.Code)
	}
}

func TestPaymentNotifyFailureStillOK(t *testing.T) {
	store := newFakeStore(42)
	srv := newTestServer(store, &fakeSender{err: context.DeadlineExceeded})

	body := `{"order_id":"ord-6","amount":"10","status":"error","user_id":"42"}`
	rr := httptest.NewRecorder()
	srv.router().ServeHTTP(rr, signedRequest(t, body))

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", rr.Code)
	}
	if p := store.payments["ord-6"]; p.Status != storage.PaymentStatusError {
		t.Fatalf("status = %q, want ERROR", p.Status)
	}
}

func TestMapPaymentMethod(t *testing.T) {
	srv := newTestServer(newFakeStore(), &fakeSender{})

	cases := map[string]string{
		"ac":      storage.PaymentMethodCard,
		"ACKZ":    storage.PaymentMethodCard,
		"acf":     storage.PaymentMethodCard,
		"sbp":     storage.PaymentMethodSBP,
		"qw":      storage.PaymentMethodQiwi,
		"qiwi":    storage.PaymentMethodQiwi,
		"pc":      storage.PaymentMethodYandex,
		"yandex":  storage.PaymentMethodYandex,
		"paypal":  storage.PaymentMethodPaypal,
		"crypto":  storage.PaymentMethodCrypto,
		"unknown": "",
		"":        "",
	}
	for code, want := range cases {
		if got := srv.mapPaymentMethod(code); got != want {
			t.Fatalf("mapPaymentMethod(%q) = %q, want %q", code, got, want)
		}
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(newFakeStore(), &fakeSender{})

	rr := httptest.NewRecorder()
	srv.router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rr.Code, rr.Body.String())
	}
}

func TestShutdownStopsServer(t *testing.T) {
	srv := newTestServer(newFakeStore(), &fakeSender{})

	done := make(chan error, 1)
	go func() { done <- srv.Start() }()

	time.Sleep(50 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Shutdown")
	}
}
