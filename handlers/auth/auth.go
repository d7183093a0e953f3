package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mountains-server/core"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// CookieName is the fixed session cookie name.
const CookieName = "mountain-session"

const stateCookieName = "oauthstate"

// DevUser is the fixed identity every request resolves to in dev mode.
const DevUser = "dev-mode"

// Gate validates sessions and runs the GitHub OAuth login flow. It is the
// precondition in front of every websocket upgrade and every asset/unfurl
// request.
type Gate struct {
	store core.SessionStore
	dev   bool

	oauthConfig *oauth2.Config
	allowed     map[string]bool

	// userAPIURL is the identity endpoint of the OAuth provider. Overridden
	// in tests.
	userAPIURL string
}

// NewGate builds the gate from environment configuration. Dev mode bypasses
// authentication entirely and must never be enabled on a deployed instance.
func NewGate(store core.SessionStore, dev bool) *Gate {
	g := &Gate{
		store: store,
		dev:   dev,
		oauthConfig: &oauth2.Config{
			ClientID:     os.Getenv("GITHUB_CLIENT_ID"),
			ClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
			RedirectURL:  os.Getenv("GITHUB_REDIRECT_URL"),
			Scopes:       []string{"read:user"},
			Endpoint:     github.Endpoint,
		},
		allowed:    make(map[string]bool),
		userAPIURL: "https://api.github.com/user",
	}

	for _, user := range strings.Split(os.Getenv("GITHUB_ALLOWED_USERS"), ",") {
		if user = strings.TrimSpace(user); user != "" {
			g.allowed[user] = true
		}
	}

	if dev {
		logrus.Warn("AUTHENTICATION DISABLED: dev mode is on, every request authenticates as " + DevUser)
		return g
	}
	if g.oauthConfig.ClientID == "" || g.oauthConfig.ClientSecret == "" {
		logrus.Warn("GitHub OAuth credentials are not set. Login will not work.")
	}
	if len(g.allowed) == 0 {
		logrus.Warn("GITHUB_ALLOWED_USERS is empty. Nobody can log in.")
	}
	return g
}

// CurrentUser resolves the session cookie to a username. Lookup has no side
// effects; an invalid or absent cookie yields ok=false with no detail about
// which part failed.
func (g *Gate) CurrentUser(r *http.Request) (string, bool) {
	if g.dev {
		return DevUser, true
	}

	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	user, err := g.store.Validate(r.Context(), cookie.Value)
	if err != nil {
		return "", false
	}
	return user, true
}

// HandleLogin redirects into the GitHub OAuth flow.
func (g *Gate) HandleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := generateStateCookie(w)
	if err != nil {
		logrus.WithError(err).Error("Failed to generate OAuth state")
		redirectWithError(w, r, "Could not start login.")
		return
	}
	http.Redirect(w, r, g.oauthConfig.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// HandleCallback completes the code exchange, checks the allow-list and mints
// a session. Every failure redirects to / with a human-readable error query
// parameter, never an HTTP error.
func (g *Gate) HandleCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || r.FormValue("state") != stateCookie.Value {
		redirectWithError(w, r, "Login session expired, please try again.")
		return
	}

	token, err := g.oauthConfig.Exchange(r.Context(), r.FormValue("code"))
	if err != nil {
		logrus.WithError(err).Error("Failed to exchange OAuth code")
		redirectWithError(w, r, "GitHub credentials non-functional.")
		return
	}

	login, err := g.fetchLogin(r.Context(), token)
	if err != nil {
		logrus.WithError(err).Error("Failed to fetch GitHub identity")
		redirectWithError(w, r, "Could not fetch your GitHub identity.")
		return
	}

	if !g.allowed[login] {
		logrus.WithField("user", login).Warn("Login attempt by user not on the allow-list")
		redirectWithError(w, r, fmt.Sprintf("User %s not found.", login))
		return
	}

	sessionToken, err := mintToken()
	if err != nil {
		logrus.WithError(err).Error("Failed to mint session token")
		redirectWithError(w, r, "Could not create a session.")
		return
	}

	session := core.Session{Token: sessionToken, Username: login, CreatedAt: time.Now()}
	if err := g.store.Put(r.Context(), session); err != nil {
		logrus.WithError(err).Error("Failed to store session")
		redirectWithError(w, r, "Could not create a session.")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sessionToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
	logrus.WithField("user", login).Info("User logged in")
	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

// HandleLogout removes the session record unconditionally and expires the
// cookie. Logging out an already-removed session succeeds.
func (g *Gate) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		if err := g.store.Delete(r.Context(), cookie.Value); err != nil {
			logrus.WithError(err).Error("Failed to delete session")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Logout failed"})
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
	render.JSON(w, r, map[string]bool{"success": true})
}

// HandleIsAuthenticated reports the current session state.
func (g *Gate) HandleIsAuthenticated(w http.ResponseWriter, r *http.Request) {
	user, ok := g.CurrentUser(r)
	var reported any
	if ok {
		reported = user
	}
	render.JSON(w, r, map[string]any{"success": ok, "user": reported})
}

func (g *Gate) fetchLogin(ctx context.Context, token *oauth2.Token) (string, error) {
	client := g.oauthConfig.Client(ctx, token)
	resp, err := client.Get(g.userAPIURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("identity endpoint returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var user struct {
		Login string `json:"login"`
	}
	if err := json.Unmarshal(body, &user); err != nil {
		return "", err
	}
	if user.Login == "" {
		return "", fmt.Errorf("identity response carried no login")
	}
	return user.Login, nil
}

func redirectWithError(w http.ResponseWriter, r *http.Request, reason string) {
	http.Redirect(w, r, "/?error="+url.QueryEscape(reason), http.StatusTemporaryRedirect)
}

func generateStateCookie(w http.ResponseWriter) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	state := base64.URLEncoding.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		Expires:  time.Now().Add(10 * time.Minute),
		HttpOnly: true,
	})
	return state, nil
}

func mintToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
