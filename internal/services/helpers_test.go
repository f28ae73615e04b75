package services

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/session"
	"github.com/desertthunder/reelx/internal/shared"
)

// backend is a scripted REST server for client tests.
type backend struct {
	t   *testing.T
	srv *httptest.Server

	mu             sync.Mutex
	validToken     string
	generation     int
	refreshCalls   int
	refreshStatus  int
	refreshBodies  []string
	refreshAuth    []string
	resourceCalls  int
	resourceTokens []string
	alwaysReject   bool
	release        chan struct{}
	logoutCalls    int
	logoutStatus   int

	mux *http.ServeMux
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{t: t, mux: http.NewServeMux()}

	b.mux.HandleFunc("POST /api/auth/refresh", b.handleRefresh)
	b.mux.HandleFunc("POST /api/auth/logout", b.handleLogout)
	b.mux.HandleFunc("GET /api/resource", b.handleResource)
	b.mux.HandleFunc("POST /api/resource", b.handleResource)
	b.mux.HandleFunc("GET /api/boom", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "exploded"})
	})

	b.srv = httptest.NewServer(b.mux)
	t.Cleanup(b.srv.Close)
	return b
}

// with mutates the script under the backend lock.
func (b *backend) with(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn()
}

func (b *backend) baseURL() string { return b.srv.URL + "/api" }

func (b *backend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	b.mu.Lock()
	b.refreshCalls++
	b.refreshBodies = append(b.refreshBodies, string(body))
	b.refreshAuth = append(b.refreshAuth, r.Header.Get("Authorization"))
	release := b.release
	status := b.refreshStatus
	b.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-time.After(5 * time.Second):
			b.t.Error("refresh was never released")
		}
	}

	if status != 0 {
		writeJSON(w, status, map[string]string{"message": "invalid refresh token"})
		return
	}

	b.mu.Lock()
	b.generation++
	b.validToken = fmt.Sprintf("access-%d", b.generation)
	pair := models.TokenPair{
		AccessToken:  b.validToken,
		RefreshToken: fmt.Sprintf("refresh-%d", b.generation),
		ExpiresIn:    900,
	}
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, pair)
}

func (b *backend) handleLogout(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.logoutCalls++
	status := b.logoutStatus
	b.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (b *backend) handleResource(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)

	b.mu.Lock()
	b.resourceCalls++
	b.resourceTokens = append(b.resourceTokens, token)
	ok := !b.alwaysReject && b.validToken != "" && token == b.validToken
	b.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "token expired"})
		return
	}

	var echo map[string]any
	_ = json.NewDecoder(r.Body).Decode(&echo)
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "echo": echo})
}

func (b *backend) counts() (refresh, resource int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refreshCalls, b.resourceCalls
}

// refreshRequests returns the recorded refresh bodies and Authorization headers.
func (b *backend) refreshRequests() (bodies, auth []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.refreshBodies...), append([]string(nil), b.refreshAuth...)
}

func (b *backend) tokens() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.resourceTokens...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// recordingNavigator records every navigation.
type recordingNavigator struct {
	mu     sync.Mutex
	route  string
	visits []string
}

func (n *recordingNavigator) CurrentRoute() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.route
}

func (n *recordingNavigator) Navigate(route string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.route = route
	n.visits = append(n.visits, route)
}

func (n *recordingNavigator) Visits() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.visits...)
}

func newStore(t *testing.T) *session.Store {
	t.Helper()
	return session.NewStore(session.NewMemoryStorage(), shared.NewLogger(io.Discard))
}

func signIn(t *testing.T, store *session.Store, access, refresh string) {
	t.Helper()
	err := store.SetAuth(models.LoginResult{
		User:         &models.User{ID: "u1", Email: "maker@example.com", Role: models.RoleCreator},
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    900,
	})
	if err != nil {
		t.Fatalf("SetAuth failed: %v", err)
	}
}

func newTestClient(t *testing.T, baseURL string, store *session.Store, nav Navigator, mw ...Middleware) *Client {
	t.Helper()
	opts := ClientOptions{
		BaseURL:    baseURL,
		Session:    store,
		Timeout:    5 * time.Second,
		Middleware: mw,
		Logger:     shared.NewLogger(io.Discard),
	}
	if nav != nil {
		opts.Navigator = nav
	}

	c, err := NewClient(opts)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (c *Client) queued() int {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	return len(c.pending)
}
