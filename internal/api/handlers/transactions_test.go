package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/harborbank/demo/internal/api/middleware"
	"github.com/harborbank/demo/internal/backend"
	"github.com/harborbank/demo/internal/backend/memory"
	"github.com/harborbank/demo/internal/domain"
	"github.com/harborbank/demo/internal/feed"
	"github.com/harborbank/demo/internal/logger"
	"github.com/harborbank/demo/internal/session"

	"github.com/shopspring/decimal"
)

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

// testEnv wires the full authenticated transaction surface against the
// in-memory table, the way cmd/api does.
type testEnv struct {
	server *httptest.Server
	mgr    *session.Manager
	table  *memory.Table
	hub    *feed.Hub
	token  string
	userID string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logger.NewWithWriter(testWriter{t})

	hub := feed.NewHub(log)
	t.Cleanup(hub.Close)
	table := memory.NewTable(hub)

	mgr := session.NewManager([]byte("test-secret"), time.Hour, log)
	userID, err := mgr.Register("demo@harborbank.dev", "demo1234")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	registry := NewRegistry(table, hub, time.Second, log)
	registry.Bind(mgr)

	txHandler := NewTransactionsHandler(registry, log)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			txHandler.List(w, r)
		case http.MethodPost:
			txHandler.Create(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	server := httptest.NewServer(middleware.Auth(mgr)(mux))
	t.Cleanup(server.Close)
	t.Cleanup(mgr.EndAll)

	_, token, err := mgr.Login("demo@harborbank.dev", "demo1234")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	return &testEnv{server: server, mgr: mgr, table: table, hub: hub, token: token, userID: userID}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.token)
	resp, err := e.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decodeList(t *testing.T, resp *http.Response) []domain.Transaction {
	t.Helper()
	defer resp.Body.Close()
	var txs []domain.Transaction
	if err := json.NewDecoder(resp.Body).Decode(&txs); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	return txs
}

func TestTransactions_CreateThenList(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/transactions", map[string]interface{}{
		"type":       "deposit",
		"amount":     "250.50",
		"account_id": "A1",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	var created domain.Transaction
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	resp.Body.Close()

	if domain.IsTempID(created.ID) {
		t.Errorf("response should carry the confirmed id, got %q", created.ID)
	}
	if created.Status != domain.StatusCompleted {
		t.Errorf("status should default to completed, got %q", created.Status)
	}
	if !created.Amount.Equal(decimal.RequireFromString("250.50")) {
		t.Errorf("amount = %s", created.Amount)
	}

	txs := decodeList(t, env.do(t, http.MethodGet, "/api/transactions", nil))
	if len(txs) != 1 || txs[0].ID != created.ID {
		t.Fatalf("unexpected view after create: %+v", txs)
	}
}

func TestTransactions_ListFiltersByType(t *testing.T) {
	env := newTestEnv(t)

	for _, in := range []map[string]interface{}{
		{"type": "deposit", "amount": "10", "account_id": "A1"},
		{"type": "withdrawal", "amount": "5", "account_id": "A1"},
	} {
		resp := env.do(t, http.MethodPost, "/api/transactions", in)
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create status = %d", resp.StatusCode)
		}
	}

	txs := decodeList(t, env.do(t, http.MethodGet, "/api/transactions?type=deposit", nil))
	if len(txs) != 1 || txs[0].Type != domain.TypeDeposit {
		t.Errorf("filter failed: %+v", txs)
	}
}

func TestTransactions_CreateRejectsInvalidInput(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/transactions", map[string]interface{}{
		"type":       "teleport",
		"amount":     "10",
		"account_id": "A1",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("invalid type: status = %d, want 422", resp.StatusCode)
	}

	// The failed submit must not leave an optimistic entry behind.
	txs := decodeList(t, env.do(t, http.MethodGet, "/api/transactions", nil))
	if len(txs) != 0 {
		t.Errorf("view should stay empty after rejected create: %+v", txs)
	}
}

func TestTransactions_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/api/transactions", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := env.server.Client().Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("missing token: status = %d, want 401", resp.StatusCode)
	}
}

func TestRegistry_SessionLifecycle(t *testing.T) {
	log := logger.NewWithWriter(testWriter{t})
	hub := feed.NewHub(log)
	defer hub.Close()
	table := memory.NewTable(hub)

	mgr := session.NewManager([]byte("test-secret"), time.Hour, log)
	if _, err := mgr.Register("demo@harborbank.dev", "demo1234"); err != nil {
		t.Fatalf("register: %v", err)
	}

	registry := NewRegistry(table, hub, time.Second, log)
	registry.Bind(mgr)

	sess, token, err := mgr.Login("demo@harborbank.dev", "demo1234")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	ss, ok := registry.ForSession(sess.ID)
	if !ok {
		t.Fatal("login should create the session sync")
	}

	// Watchers see notifications until the session ends.
	ch, cancel := ss.Watch()
	defer cancel()
	ss.Notify("info", "hello")
	select {
	case n := <-ch:
		if n.Message != "hello" {
			t.Errorf("unexpected notification: %+v", n)
		}
	case <-time.After(time.Second):
		t.Fatal("watcher never received the notification")
	}

	if err := mgr.Logout(token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, ok := registry.ForSession(sess.ID); ok {
		t.Error("logout should tear down the session sync")
	}
	if _, open := <-ch; open {
		t.Error("watcher channel should be closed on session end")
	}
}

// Seed rows for one user must never leak into another user's view.
func TestRegistry_ViewsAreScopedPerUser(t *testing.T) {
	log := logger.NewWithWriter(testWriter{t})
	hub := feed.NewHub(log)
	defer hub.Close()
	table := memory.NewTable(hub)

	mgr := session.NewManager([]byte("test-secret"), time.Hour, log)
	aliceID, _ := mgr.Register("alice@harborbank.dev", "pw123456")
	if _, err := mgr.Register("bob@harborbank.dev", "pw123456"); err != nil {
		t.Fatalf("register: %v", err)
	}

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	table.Seed([]backend.Row{
		{ID: "a1", UserID: aliceID, Date: &at, Type: "deposit",
			Amount: decimal.NewFromInt(100), Status: "completed", AccountID: "A1"},
	})

	registry := NewRegistry(table, hub, time.Second, log)
	registry.Bind(mgr)

	aliceSess, _, _ := mgr.Login("alice@harborbank.dev", "pw123456")
	bobSess, _, _ := mgr.Login("bob@harborbank.dev", "pw123456")
	defer mgr.EndAll()

	alice, _ := registry.ForSession(aliceSess.ID)
	bob, _ := registry.ForSession(bobSess.ID)

	if got := alice.Syncer.Transactions(nil); len(got) != 1 {
		t.Errorf("alice should see her seed row, got %+v", got)
	}
	if got := bob.Syncer.Transactions(nil); len(got) != 0 {
		t.Errorf("bob should see nothing, got %+v", got)
	}
}
