package auth

import (
	"context"
	"encoding/json"
	"mountains-server/core"
	"mountains-server/sessions"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func newTestGate(t *testing.T, allowedUsers string) (*Gate, core.SessionStore) {
	t.Helper()
	t.Setenv("GITHUB_CLIENT_ID", "test-client")
	t.Setenv("GITHUB_CLIENT_SECRET", "test-secret")
	t.Setenv("GITHUB_REDIRECT_URL", "http://localhost/login/github/callback")
	t.Setenv("GITHUB_ALLOWED_USERS", allowedUsers)

	store := sessions.NewStore()
	return NewGate(store, false), store
}

// fakeProvider stands in for GitHub's token and identity endpoints.
func fakeProvider(t *testing.T, login string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"access_token": "gho_test",
			"token_type":   "bearer",
		})
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"login": login})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func pointGateAt(g *Gate, provider *httptest.Server) {
	g.oauthConfig.Endpoint = oauth2.Endpoint{
		AuthURL:  provider.URL + "/authorize",
		TokenURL: provider.URL + "/token",
	}
	g.userAPIURL = provider.URL + "/user"
}

func callbackRequest() *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/login/github/callback?code=abc&state=xyz", nil)
	r.AddCookie(&http.Cookie{Name: stateCookieName, Value: "xyz"})
	return r
}

func redirectLocation(t *testing.T, rec *httptest.ResponseRecorder) *url.URL {
	t.Helper()
	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected redirect, got status %d", rec.Code)
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("bad redirect location: %v", err)
	}
	return loc
}

// The login redirect must carry the same state value the cookie pins, so the
// callback can verify it round-tripped.
func TestLoginSetsMatchingStateCookie(t *testing.T) {
	gate, _ := newTestGate(t, "alice")

	rec := httptest.NewRecorder()
	gate.HandleLogin(rec, httptest.NewRequest(http.MethodGet, "/login/github", nil))

	loc := redirectLocation(t, rec)
	state := loc.Query().Get("state")
	if state == "" {
		t.Fatal("redirect carries no state parameter")
	}

	var stateCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == stateCookieName {
			stateCookie = c
		}
	}
	if stateCookie == nil {
		t.Fatal("no state cookie set")
	}
	if stateCookie.Value != state {
		t.Errorf("state cookie %q does not match redirect state %q", stateCookie.Value, state)
	}
}

func TestCallbackMintsSessionForAllowedUser(t *testing.T) {
	gate, store := newTestGate(t, "alice,bob")
	pointGateAt(gate, fakeProvider(t, "alice"))

	rec := httptest.NewRecorder()
	gate.HandleCallback(rec, callbackRequest())

	loc := redirectLocation(t, rec)
	if loc.Path != "/" || loc.Query().Get("error") != "" {
		t.Fatalf("expected clean redirect to /, got %q", loc)
	}

	var sessionCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == CookieName {
			sessionCookie = c
		}
	}
	if sessionCookie == nil {
		t.Fatal("no session cookie set")
	}
	if !sessionCookie.HttpOnly || !sessionCookie.Secure || sessionCookie.SameSite != http.SameSiteStrictMode {
		t.Errorf("session cookie attributes wrong: %+v", sessionCookie)
	}

	user, err := store.Validate(context.Background(), sessionCookie.Value)
	if err != nil || user != "alice" {
		t.Errorf("session token does not validate to alice: %q, %v", user, err)
	}
}

func TestCallbackRejectsUserNotOnAllowList(t *testing.T) {
	gate, _ := newTestGate(t, "alice")
	pointGateAt(gate, fakeProvider(t, "mallory"))

	rec := httptest.NewRecorder()
	gate.HandleCallback(rec, callbackRequest())

	loc := redirectLocation(t, rec)
	if got := loc.Query().Get("error"); got != "User mallory not found." {
		t.Errorf("expected a human-readable reason, got %q", got)
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == CookieName {
			t.Error("session cookie must not be set for a rejected user")
		}
	}
}

func TestCallbackWithBadStateRedirectsWithReason(t *testing.T) {
	gate, _ := newTestGate(t, "alice")

	r := httptest.NewRequest(http.MethodGet, "/login/github/callback?code=abc&state=forged", nil)
	r.AddCookie(&http.Cookie{Name: stateCookieName, Value: "legit"})
	rec := httptest.NewRecorder()
	gate.HandleCallback(rec, r)

	loc := redirectLocation(t, rec)
	if loc.Query().Get("error") == "" {
		t.Error("expected an error reason in the redirect")
	}
}

func TestLogoutInvalidatesSession(t *testing.T) {
	gate, store := newTestGate(t, "alice")

	session := core.Session{Token: "tok-123", Username: "alice", CreatedAt: time.Now()}
	if err := store.Put(context.Background(), session); err != nil {
		t.Fatalf("seed session failed: %v", err)
	}
	cookie := &http.Cookie{Name: CookieName, Value: "tok-123"}

	// Authenticated before logout.
	r := httptest.NewRequest(http.MethodGet, "/isauthenticated", nil)
	r.AddCookie(cookie)
	if user, ok := gate.CurrentUser(r); !ok || user != "alice" {
		t.Fatalf("expected alice to be authenticated, got %q, %v", user, ok)
	}

	r = httptest.NewRequest(http.MethodPost, "/logout", nil)
	r.AddCookie(cookie)
	rec := httptest.NewRecorder()
	gate.HandleLogout(rec, r)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout failed with status %d", rec.Code)
	}

	// The removed token must never authenticate again.
	r = httptest.NewRequest(http.MethodGet, "/isauthenticated", nil)
	r.AddCookie(cookie)
	if _, ok := gate.CurrentUser(r); ok {
		t.Error("token still authenticates after logout")
	}

	rec = httptest.NewRecorder()
	gate.HandleIsAuthenticated(rec, r)
	var body struct {
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("bad isauthenticated body: %v", err)
	}
	if body.Success {
		t.Error("isauthenticated still reports success after logout")
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	gate, _ := newTestGate(t, "alice")

	r := httptest.NewRequest(http.MethodPost, "/logout", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: "never-issued"})
	rec := httptest.NewRecorder()
	gate.HandleLogout(rec, r)

	if rec.Code != http.StatusOK {
		t.Errorf("logging out an absent token should succeed, got %d", rec.Code)
	}
}

func TestDevModeAuthenticatesEverything(t *testing.T) {
	t.Setenv("GITHUB_ALLOWED_USERS", "")
	gate := NewGate(sessions.NewStore(), true)

	r := httptest.NewRequest(http.MethodGet, "/isauthenticated", nil)
	user, ok := gate.CurrentUser(r)
	if !ok || user != DevUser {
		t.Errorf("dev mode should authenticate as %q, got %q, %v", DevUser, user, ok)
	}
}

func TestCurrentUserWithoutCookie(t *testing.T) {
	gate, _ := newTestGate(t, "alice")

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := gate.CurrentUser(r); ok {
		t.Error("request without a cookie must not authenticate")
	}
}
