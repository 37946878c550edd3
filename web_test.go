package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Seednode/partyclient/protocol"
	"github.com/julienschmidt/httprouter"
)

func newTestRouter(t *testing.T) (*Client, *httprouter.Router) {
	t.Helper()

	c, _ := newTestClient(t)
	errs := make(chan error, 64)

	return c, newRouter(c.cfg, c, errs)
}

func do(mux http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	return w
}

func TestServeHealthCheck(t *testing.T) {
	_, mux := newTestRouter(t)

	w := do(mux, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK || w.Body.String() != "Ok\n" {
		t.Errorf("got %d %q", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
}

func TestServeVersion(t *testing.T) {
	_, mux := newTestRouter(t)

	w := do(mux, http.MethodGet, "/version", "")
	if want := "partyclient v" + releaseVersion + "\n"; w.Body.String() != want {
		t.Errorf("got %q, want %q", w.Body.String(), want)
	}
}

func TestServeState(t *testing.T) {
	c, mux := newTestRouter(t)
	c.store.Dispatch(protocol.Welcome{ID: "p1", Username: "Alice"})

	w := do(mux, http.MethodGet, "/state", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var got struct {
		LocalID string `json:"localId"`
		Phase   string `json:"phase"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.LocalID != "p1" || got.Phase != "LOBBY" {
		t.Errorf("got %+v", got)
	}
}

func TestServeQRCode(t *testing.T) {
	c, mux := newTestRouter(t)

	if w := do(mux, http.MethodGet, "/qr", ""); w.Code != http.StatusConflict {
		t.Fatalf("status without room = %d, want 409", w.Code)
	}

	c.store.Dispatch(protocol.RoomCreated{RoomCode: "WXYZ"})

	w := do(mux, http.MethodGet, "/qr", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q", ct)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("body is not a PNG")
	}
}

func TestJoinLink(t *testing.T) {
	cfg := testConfig()
	cfg.joinURL = "https://party.example/play?lang=en"

	got, err := joinLink(cfg, "AB CD")
	if err != nil {
		t.Fatal(err)
	}
	if want := "https://party.example/play?lang=en&room=AB+CD"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestServeTrafficToggle(t *testing.T) {
	c, mux := newTestRouter(t)

	if w := do(mux, http.MethodPut, "/debug/traffic?enabled=true", ""); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !c.bus.Traffic() {
		t.Error("traffic logging not enabled")
	}

	if w := do(mux, http.MethodPut, "/debug/traffic?enabled=maybe", ""); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if !c.bus.Traffic() {
		t.Error("bad request changed the toggle")
	}
}

func TestServeAction(t *testing.T) {
	c, mux := newTestRouter(t)

	if w := do(mux, http.MethodPost, "/actions/start", ""); w.Code != http.StatusAccepted {
		t.Fatalf("start status = %d", w.Code)
	}
	if got := c.bus.Pending(); got != 1 {
		t.Errorf("pending = %d, want 1", got)
	}

	if w := do(mux, http.MethodPost, "/actions/keydown", `{"key":"W"}`); w.Code != http.StatusAccepted {
		t.Fatalf("keydown status = %d", w.Code)
	}
	if got := c.keys.Held(); len(got) != 1 || got[0] != "w" {
		t.Errorf("held = %v", got)
	}

	if w := do(mux, http.MethodPost, "/actions/keydown", `{"key":"q"}`); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad key status = %d, want 422", w.Code)
	}
	if w := do(mux, http.MethodPost, "/actions/dance", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown action status = %d, want 404", w.Code)
	}
	if w := do(mux, http.MethodPost, "/actions/submit", `{`); w.Code != http.StatusBadRequest {
		t.Errorf("bad body status = %d, want 400", w.Code)
	}
}

func TestRealIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"

	if got := realIP(r); got != "10.0.0.1:5555" {
		t.Errorf("got %q", got)
	}

	r.Header.Set("X-Real-IP", "::1")
	if got := realIP(r); got != "[::1]:5555" {
		t.Errorf("got %q", got)
	}
}
