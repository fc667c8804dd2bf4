package handler_test

import (
	"encoding/csv"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kiloshop/orderform/internal/auth"
	"github.com/kiloshop/orderform/internal/cart"
	"github.com/kiloshop/orderform/internal/catalog"
	"github.com/kiloshop/orderform/internal/handler"
	"github.com/kiloshop/orderform/internal/middleware"
	"github.com/kiloshop/orderform/internal/payment"
	"github.com/kiloshop/orderform/internal/session"
	"github.com/kiloshop/orderform/internal/submit"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func testCatalog(t *testing.T) *catalog.Index {
	t.Helper()
	idx, err := catalog.BuildIndex([]catalog.Entry{
		{Key: "bread", Names: []catalog.Name{{Lang: "en", Name: "Bread"}, {Lang: "it", Name: "Pane"}}, Price: decimal.RequireFromString("8.00")},
		{Key: "cake", Names: []catalog.Name{{Lang: "en", Name: "Cake"}}, Price: decimal.RequireFromString("10.00")},
	})
	if err != nil {
		t.Fatalf("build catalog: %v", err)
	}
	return idx
}

type sessionFixture struct {
	router  http.Handler
	manager *session.Manager
}

// newSessionFixture wires the session routes the way the router does. An
// empty endpoint leaves submission unconfigured.
func newSessionFixture(t *testing.T, endpoint *httptest.Server) *sessionFixture {
	t.Helper()
	opts := session.Options{
		Catalog:  testCatalog(t),
		Delivery: cart.Delivery{Available: true, Fee: decimal.RequireFromString("2.50")},
		Payments: payment.Config{RevolutUser: "la bottega", SatispayTag: "bottega"},
		Submit:   submit.Config{Timeout: 2 * time.Second, LandingURL: "index.html"},
		HasEmail: true,
		TTL:      time.Hour,
	}
	var client submit.Doer
	if endpoint != nil {
		opts.Submit.Endpoint = endpoint.URL
		client = endpoint.Client()
	}
	m := session.NewManager(opts, client, nil, nil, zap.NewNop())

	h := handler.NewSessionHandler(m, testSecret, zap.NewNop())
	r := chi.NewRouter()
	r.Post("/sessions", h.Create)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(testSecret))
		r.Route("/sessions/{sid}", func(r chi.Router) {
			r.Use(middleware.RequireSession)
			h.RegisterRoutes(r)
		})
	})
	return &sessionFixture{router: r, manager: m}
}

// start creates a session and returns its base path and token.
func (f *sessionFixture) start(t *testing.T, body interface{}) (string, string, map[string]interface{}) {
	t.Helper()
	rr := sendJSON(t, f.router, "POST", "/sessions", "", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create session: got %d; body: %s", rr.Code, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	sess := resp["session"].(map[string]interface{})
	return "/sessions/" + sess["id"].(string), resp["token"].(string), sess
}

func firstRowID(t *testing.T, sess map[string]interface{}) string {
	t.Helper()
	rows := sess["rows"].([]interface{})
	if len(rows) == 0 {
		t.Fatal("session has no rows")
	}
	return rows[0].(map[string]interface{})["id"].(string)
}

func fillCustomer(t *testing.T, f *sessionFixture, base, token string) {
	t.Helper()
	rr := sendJSON(t, f.router, "PUT", base+"/customer", token, map[string]string{
		"name":    "Ada",
		"phone":   "+39 333 000",
		"address": "Via Roma 1",
		"email":   "ada@example.com",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("update customer: got %d; body: %s", rr.Code, rr.Body.String())
	}
}

func totalsOf(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	return decodeResponse(t, rr)["totals"].(map[string]interface{})
}

// --- Create / Get ---

func TestCreateSession_DefaultRow(t *testing.T) {
	f := newSessionFixture(t, nil)
	base, token, sess := f.start(t, nil)

	totals := sess["totals"].(map[string]interface{})
	if totals["amount_to_pay"] != "4.00" {
		t.Errorf("amount_to_pay: got %v, want 4.00", totals["amount_to_pay"])
	}

	claims, err := auth.ValidateToken(testSecret, token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if "/sessions/"+claims.SessionID.String() != base {
		t.Errorf("token bound to %s, session at %s", claims.SessionID, base)
	}

	rr := sendJSON(t, f.router, "GET", base, token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get session: got %d", rr.Code)
	}
}

func TestCreateSession_WithSeeds(t *testing.T) {
	f := newSessionFixture(t, nil)
	_, _, sess := f.start(t, map[string]interface{}{
		"items": []map[string]interface{}{{"key": "cake", "qty": 1}, {"key": "bread", "qty": "1.5"}},
	})

	totals := sess["totals"].(map[string]interface{})
	if totals["base"] != "22.00" {
		t.Errorf("base: got %v, want 22.00", totals["base"])
	}
}

func TestCreateSession_ClampsSeedQuantity(t *testing.T) {
	f := newSessionFixture(t, nil)

	req := httptest.NewRequest("POST", "/sessions",
		strings.NewReader(`{"items":[{"key":"bread","qty":1e99999999},{"key":"cake","qty":"1e-99999999"}]}`))
	rr := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.router.ServeHTTP(rr, req)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("create session did not return within 5s")
	}

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	sess := decodeResponse(t, rr)["session"].(map[string]interface{})
	rows := sess["rows"].([]interface{})
	if got := rows[0].(map[string]interface{})["quantity"]; got != "1000.0" {
		t.Errorf("huge seed: got %v, want 1000.0", got)
	}
	if got := rows[1].(map[string]interface{})["quantity"]; got != "0.5" {
		t.Errorf("tiny seed: got %v, want 0.5", got)
	}
}

func TestRowEvent_RejectsExponentQuantity(t *testing.T) {
	f := newSessionFixture(t, nil)
	base, token, sess := f.start(t, nil)
	path := base + "/rows/" + firstRowID(t, sess) + "/events"

	rr := sendJSON(t, f.router, "POST", path, token, map[string]string{"type": "quantity", "value": "1e99999999"})
	if got := totalsOf(t, rr)["base"]; got != "0.00" {
		t.Errorf("base: got %v, want 0.00", got)
	}
}

func TestSessionRoutes_RequireOwnToken(t *testing.T) {
	f := newSessionFixture(t, nil)
	base, _, _ := f.start(t, nil)
	_, otherToken, _ := f.start(t, nil)

	rr := sendJSON(t, f.router, "GET", base, otherToken, nil)
	if rr.Code != http.StatusForbidden {
		t.Errorf("other token: got %d, want %d", rr.Code, http.StatusForbidden)
	}

	rr = sendJSON(t, f.router, "GET", base, "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("no token: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestGetSession_Ended(t *testing.T) {
	f := newSessionFixture(t, nil)
	base, token, _ := f.start(t, nil)

	rr := sendJSON(t, f.router, "DELETE", base, token, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("end session: got %d", rr.Code)
	}
	rr = sendJSON(t, f.router, "GET", base, token, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("ended session: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

// --- Rows ---

func TestRowLifecycle(t *testing.T) {
	f := newSessionFixture(t, nil)
	base, token, sess := f.start(t, nil)
	rowID := firstRowID(t, sess)

	rr := sendJSON(t, f.router, "POST", base+"/rows/"+rowID+"/events", token, map[string]string{"type": "increment"})
	if rr.Code != http.StatusOK {
		t.Fatalf("increment: got %d; body: %s", rr.Code, rr.Body.String())
	}
	if got := totalsOf(t, rr)["base"]; got != "8.00" {
		t.Errorf("base after increment: got %v, want 8.00", got)
	}

	rr = sendJSON(t, f.router, "POST", base+"/rows/"+rowID+"/events", token, map[string]string{"type": "quantity", "value": "2,x"})
	if got := totalsOf(t, rr)["base"]; got != "0.00" {
		t.Errorf("base while typing an unparsed value: got %v, want 0.00", got)
	}
	rr = sendJSON(t, f.router, "POST", base+"/rows/"+rowID+"/events", token, map[string]string{"type": "quantity", "value": "2,4"})
	if got := totalsOf(t, rr)["base"]; got != "19.20" {
		t.Errorf("base while typing: got %v, want 19.20", got)
	}
	rr = sendJSON(t, f.router, "POST", base+"/rows/"+rowID+"/events", token, map[string]string{"type": "blur"})
	resp := decodeResponse(t, rr)
	if got := resp["totals"].(map[string]interface{})["base"]; got != "20.00" {
		t.Errorf("base after blur: got %v, want 20.00", got)
	}
	if got := resp["row"].(map[string]interface{})["quantity"]; got != "2.5" {
		t.Errorf("quantity after blur: got %v, want 2.5", got)
	}

	rr = sendJSON(t, f.router, "POST", base+"/rows", token, map[string]interface{}{"key": "cake"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add row: got %d", rr.Code)
	}
	if got := totalsOf(t, rr)["base"]; got != "25.00" {
		t.Errorf("base after add: got %v, want 25.00", got)
	}

	rr = sendJSON(t, f.router, "DELETE", base+"/rows/"+rowID, token, nil)
	if got := totalsOf(t, rr)["base"]; got != "5.00" {
		t.Errorf("base after remove: got %v, want 5.00", got)
	}
	rr = sendJSON(t, f.router, "DELETE", base+"/rows/"+rowID, token, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("remove twice: got %d, want %d", rr.Code, http.StatusNotFound)
	}

	rr = sendJSON(t, f.router, "DELETE", base+"/rows", token, nil)
	totals := totalsOf(t, rr)
	if totals["base"] != "0.00" || totals["payments_enabled"] != false {
		t.Errorf("after clear: got %v", totals)
	}
}

func TestRowEvent_BadInput(t *testing.T) {
	f := newSessionFixture(t, nil)
	base, token, sess := f.start(t, nil)
	rowID := firstRowID(t, sess)

	tests := []struct {
		name string
		path string
		body interface{}
		want int
	}{
		{"unknown type", base + "/rows/" + rowID + "/events", map[string]string{"type": "shake"}, http.StatusBadRequest},
		{"bad row id", base + "/rows/nope/events", map[string]string{"type": "blur"}, http.StatusBadRequest},
		{"missing row", base + "/rows/" + uuid.NewString() + "/events", map[string]string{"type": "blur"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := sendJSON(t, f.router, "POST", tt.path, token, tt.body)
			if rr.Code != tt.want {
				t.Errorf("status: got %d, want %d; body: %s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestWheelSuppressedWhileFocused(t *testing.T) {
	f := newSessionFixture(t, nil)
	base, token, sess := f.start(t, nil)
	path := base + "/rows/" + firstRowID(t, sess) + "/events"

	rr := sendJSON(t, f.router, "POST", path, token, map[string]string{"type": "wheel"})
	if decodeResponse(t, rr)["suppressed"] == true {
		t.Error("wheel should not be suppressed before focus")
	}

	sendJSON(t, f.router, "POST", path, token, map[string]string{"type": "focus"})
	rr = sendJSON(t, f.router, "POST", path, token, map[string]string{"type": "wheel"})
	resp := decodeResponse(t, rr)
	if resp["suppressed"] != true {
		t.Error("wheel should be suppressed while focused")
	}
	if resp["row"].(map[string]interface{})["quantity"] != "0.5" {
		t.Errorf("wheel changed the quantity: %v", resp["row"])
	}
}

func TestDelivery(t *testing.T) {
	f := newSessionFixture(t, nil)
	base, token, _ := f.start(t, nil)

	rr := sendJSON(t, f.router, "PUT", base+"/delivery", token, map[string]bool{"include": true})
	totals := totalsOf(t, rr)
	if totals["amount_to_pay"] != "6.50" || totals["delivery_included"] != true {
		t.Errorf("with delivery: got %v", totals)
	}
}

// --- Submit ---

func TestSubmit_MissingEndpoint(t *testing.T) {
	f := newSessionFixture(t, nil)
	base, token, _ := f.start(t, nil)

	rr := sendJSON(t, f.router, "POST", base+"/submit", token, nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
	if got := decodeResponse(t, rr)["code"]; got != "missing_endpoint" {
		t.Errorf("code: got %v", got)
	}
}

func TestSubmit_ValidationErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("endpoint should not be called")
	}))
	defer srv.Close()
	f := newSessionFixture(t, srv)

	base, token, sess := f.start(t, nil)
	fillCustomer(t, f, base, token)
	path := base + "/rows/" + firstRowID(t, sess) + "/events"

	sendJSON(t, f.router, "POST", path, token, map[string]string{"type": "quantity", "value": "0.3"})
	rr := sendJSON(t, f.router, "POST", base+"/submit", token, nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusUnprocessableEntity)
	}
	if got := decodeResponse(t, rr)["code"]; got != "quantity_step" {
		t.Errorf("code: got %v", got)
	}

	sendJSON(t, f.router, "POST", path, token, map[string]string{"type": "quantity", "value": "1"})
	sendJSON(t, f.router, "PUT", base+"/customer", token, map[string]string{
		"name": "Ada", "phone": "1", "address": "Via Roma 1", "email": "not-an-email",
	})
	rr = sendJSON(t, f.router, "POST", base+"/submit", token, nil)
	resp := decodeResponse(t, rr)
	if resp["code"] != "email_invalid" || resp["field"] != "email" {
		t.Errorf("email: got %v", resp)
	}
}

func TestSubmit_Success(t *testing.T) {
	var gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"clientAgent":"order-page/1.0"`) {
			t.Errorf("payload missing client agent: %s", body)
		}
		gotAgent = r.Header.Get("Content-Type")
		w.Write([]byte(`{"ok":true,"id":"A-42"}`))
	}))
	defer srv.Close()
	f := newSessionFixture(t, srv)

	base, token, _ := f.start(t, map[string]interface{}{"items": []map[string]interface{}{{"key": "bread", "qty": 1}}})
	fillCustomer(t, f, base, token)

	req := httptest.NewRequest("POST", base+"/submit", strings.NewReader(`{"lang":"it"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", "order-page/1.0")
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["order_id"] != "A-42" || resp["redirect"] != "index.html" {
		t.Errorf("unexpected response %v", resp)
	}
	if gotAgent != submit.ContentType {
		t.Errorf("content type: got %s", gotAgent)
	}
}

func TestSubmit_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("script error"))
	}))
	defer srv.Close()
	f := newSessionFixture(t, srv)

	base, token, _ := f.start(t, map[string]interface{}{"items": []map[string]interface{}{{"key": "cake", "qty": 1}}})
	fillCustomer(t, f, base, token)

	rr := sendJSON(t, f.router, "POST", base+"/submit", token, nil)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadGateway)
	}
	resp := decodeResponse(t, rr)
	if resp["code"] != "http_status" || !strings.Contains(resp["error"].(string), "500") {
		t.Errorf("unexpected error %v", resp)
	}

	rr = sendJSON(t, f.router, "GET", base, token, nil)
	control := decodeResponse(t, rr)["control"].(map[string]interface{})
	if control["disabled"] != false || control["label"] != submit.DefaultIdleLabel {
		t.Errorf("control not restored: %v", control)
	}
}

// --- Snapshot ---

func TestSnapshot_RestoresIntoNewSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true,"id":"A-7"}`))
	}))
	defer srv.Close()
	f := newSessionFixture(t, srv)

	base, token, _ := f.start(t, map[string]interface{}{
		"items": []map[string]interface{}{{"key": "cake", "qty": "1.5"}, {"key": "bread", "qty": 1}},
	})

	rr := sendJSON(t, f.router, "GET", base+"/snapshot", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("snapshot: got %d", rr.Code)
	}
	snapshot := decodeResponse(t, rr)
	items := snapshot["items"].([]interface{})
	if len(items) != 2 || items[0].(map[string]interface{})["qty"] != "1.5" {
		t.Fatalf("unexpected snapshot %v", snapshot)
	}

	_, _, restored := f.start(t, snapshot)
	if got := restored["totals"].(map[string]interface{})["base"]; got != "23.00" {
		t.Errorf("restored base: got %v, want 23.00", got)
	}

	fillCustomer(t, f, base, token)
	rr = sendJSON(t, f.router, "POST", base+"/submit", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("submit: got %d; body: %s", rr.Code, rr.Body.String())
	}
	rr = sendJSON(t, f.router, "GET", base+"/snapshot", token, nil)
	if items := decodeResponse(t, rr)["items"].([]interface{}); len(items) != 0 {
		t.Errorf("snapshot after order: got %v, want empty", items)
	}
}

// --- Export / Payments ---

func TestExport(t *testing.T) {
	f := newSessionFixture(t, nil)
	base, token, _ := f.start(t, nil)

	rr := sendJSON(t, f.router, "GET", base+"/export.csv", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content type: got %s", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "order-") || !strings.HasSuffix(cd, `.csv"`) {
		t.Errorf("content disposition: got %s", cd)
	}

	records, err := csv.NewReader(rr.Body).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records) != 2 || records[1][0] != "Bread / Pane" || records[1][4] != "4.00" {
		t.Errorf("unexpected csv %v", records)
	}
}

func TestPayment(t *testing.T) {
	f := newSessionFixture(t, nil)
	base, token, _ := f.start(t, map[string]interface{}{"items": []map[string]interface{}{{"key": "cake", "qty": 1}}})

	rr := sendJSON(t, f.router, "GET", base+"/payments/revolut", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["url"] != "https://revolut.me/la%20bottega?amount=10.00&currency=EUR" || resp["target"] != "self" {
		t.Errorf("unexpected link %v", resp)
	}

	rr = sendJSON(t, f.router, "GET", base+"/payments/revolut?redirect=1", token, nil)
	if rr.Code != http.StatusFound {
		t.Errorf("redirect: got %d", rr.Code)
	}

	rr = sendJSON(t, f.router, "GET", base+"/payments/satispay", token, nil)
	if decodeResponse(t, rr)["target"] != "blank" {
		t.Error("satispay should open in a new context")
	}

	rr = sendJSON(t, f.router, "GET", base+"/payments/paypal", token, nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("unknown provider: got %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}

	sendJSON(t, f.router, "DELETE", base+"/rows", token, nil)
	rr = sendJSON(t, f.router, "GET", base+"/payments/revolut", token, nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty cart: got %d, want %d", rr.Code, http.StatusUnprocessableEntity)
	}
}
