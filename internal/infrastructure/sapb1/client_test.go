package sapb1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"grnflow/internal/core/apperror"
)

// sapServer is a minimal Service Layer stand-in. Logins hand out
// incrementing session values; handle serves everything under /b1s/v1
// except /Login.
type sapServer struct {
	t          *testing.T
	logins     atomic.Int64
	rejectAuth bool
	handle     func(w http.ResponseWriter, r *http.Request, session string)
}

func (s *sapServer) start() (*httptest.Server, *Client) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/b1s/v1/Login" {
			if s.rejectAuth {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			n := s.logins.Add(1)
			json.NewEncoder(w).Encode(map[string]string{"SessionId": sessionName(n)})
			return
		}
		var session string
		if c, err := r.Cookie("B1SESSION"); err == nil {
			session = c.Value
		}
		s.handle(w, r, session)
	}))
	s.t.Cleanup(srv.Close)

	client := NewClient(Config{
		BaseURL:   srv.URL,
		Username:  "manager",
		Password:  "secret",
		CompanyDB: "TESTDB",
	})
	return srv, client
}

func sessionName(n int64) string {
	return "session-" + string(rune('0'+n))
}

func TestClientLoginStoresSession(t *testing.T) {
	srv := &sapServer{t: t}
	srv.handle = func(w http.ResponseWriter, r *http.Request, session string) {
		if session == "" {
			t.Error("request carried no session cookie")
		}
		json.NewEncoder(w).Encode(map[string]any{"value": []any{}})
	}
	_, client := srv.start()

	var out struct{}
	if err := client.do(context.Background(), http.MethodGet, "/BusinessPartners", nil, nil, &out); err != nil {
		t.Fatalf("do: %v", err)
	}
	if got := srv.logins.Load(); got != 1 {
		t.Fatalf("logins = %d, want 1", got)
	}
}

func TestClientExpiredSessionReloginsOnce(t *testing.T) {
	srv := &sapServer{t: t}
	var calls int
	srv.handle = func(w http.ResponseWriter, r *http.Request, session string) {
		calls++
		// First session is stale; only the re-login session is accepted.
		if session != sessionName(2) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"value": []any{}})
	}
	_, client := srv.start()

	var out struct{}
	if err := client.do(context.Background(), http.MethodGet, "/BusinessPartners", nil, nil, &out); err != nil {
		t.Fatalf("do: %v", err)
	}
	if got := srv.logins.Load(); got != 2 {
		t.Fatalf("logins = %d, want 2 (initial + one re-login)", got)
	}
	if calls != 2 {
		t.Fatalf("data calls = %d, want 2 (original + one retry)", calls)
	}
}

func TestClientPersistentUnauthorizedGivesUp(t *testing.T) {
	srv := &sapServer{t: t}
	var calls int
	srv.handle = func(w http.ResponseWriter, r *http.Request, session string) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}
	_, client := srv.start()

	err := client.do(context.Background(), http.MethodGet, "/BusinessPartners", nil, nil, nil)
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeSAPAuthFailed {
		t.Fatalf("err = %v, want auth failed", err)
	}
	if calls != 2 {
		t.Fatalf("data calls = %d, want exactly 2 (no retry loop)", calls)
	}
}

func TestClientLoginRejectionIsAuthFailure(t *testing.T) {
	srv := &sapServer{t: t, rejectAuth: true}
	srv.handle = func(w http.ResponseWriter, r *http.Request, session string) {
		t.Error("data call should never happen without a session")
	}
	_, client := srv.start()

	err := client.do(context.Background(), http.MethodGet, "/BusinessPartners", nil, nil, nil)
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeSAPAuthFailed {
		t.Fatalf("err = %v, want auth failed", err)
	}
}

func TestClientUnreachableServer(t *testing.T) {
	client := NewClient(Config{
		BaseURL:   "http://127.0.0.1:1",
		Username:  "manager",
		Password:  "secret",
		CompanyDB: "TESTDB",
	})

	err := client.do(context.Background(), http.MethodGet, "/BusinessPartners", nil, nil, nil)
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeSAPUnreachable {
		t.Fatalf("err = %v, want unreachable", err)
	}
}

func TestClientRejectionCarriesStatusAndBody(t *testing.T) {
	srv := &sapServer{t: t}
	srv.handle = func(w http.ResponseWriter, r *http.Request, session string) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":{"value":"Invalid BPL"}}}`))
	}
	_, client := srv.start()

	err := client.do(context.Background(), http.MethodPost, "/PurchaseDeliveryNotes", nil, map[string]string{}, nil)
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeSAPRejected {
		t.Fatalf("err = %v, want rejected", err)
	}
}
