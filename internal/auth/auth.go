package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc"
	"golang.org/x/oauth2"

	"github.com/kaijie-yu/google-ui/internal/config"
)

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Mode is the way requests are authenticated.
type Mode string

const (
	// ModeBypass accepts every request as the local developer.
	ModeBypass Mode = "bypass"
	// ModeOIDC verifies ID tokens issued by the configured provider.
	ModeOIDC Mode = "oidc"
	// ModeCredentials checks a single static username and password.
	ModeCredentials Mode = "credentials"
)

const devUser = "dev@localhost"

// User identifies the authenticated caller.
type User struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

type userKey struct{}

// WithUser returns a copy of ctx carrying u.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFromContext returns the user stored by RequireAuth.
func UserFromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userKey{}).(User)
	return u, ok
}

// Auth guards the API. Depending on configuration it performs the OpenID
// Connect authorization code flow against an Okta tenant, checks static
// credentials, or lets everything through in development.
type Auth struct {
	mode         Mode
	oauth2Config *oauth2.Config
	verifier     *oidc.IDTokenVerifier
	apiVerifier  *oidc.IDTokenVerifier
	username     string
	password     string
	logger       Logger
}

// New creates a new Auth object using values from the application
// configuration. In OIDC mode it establishes a connection to the provider
// and prepares the ID token verifiers.
func New(ctx context.Context, cfg *config.Config, logger Logger) (*Auth, error) {
	a := &Auth{logger: logger}

	switch {
	case strings.EqualFold(cfg.Environment, "DEV") && cfg.DevModeBypass:
		a.mode = ModeBypass
	case cfg.OIDCEnabled():
		if cfg.Auth.ClientSecret == "" || cfg.Auth.RedirectURL == "" {
			return nil, errors.New("auth configuration is incomplete")
		}

		provider, err := oidc.NewProvider(ctx, cfg.Auth.OktaDomain)
		if err != nil {
			return nil, err
		}

		a.mode = ModeOIDC
		a.oauth2Config = &oauth2.Config{
			ClientID:     cfg.Auth.ClientID,
			ClientSecret: cfg.Auth.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  cfg.Auth.RedirectURL,
			Scopes:       []string{ScopeOpenID, ScopeProfile, ScopeEmail},
		}
		a.verifier = provider.Verifier(&oidc.Config{ClientID: cfg.Auth.ClientID})

		// Access tokens often carry a different audience (e.g. "api://default").
		a.apiVerifier = provider.Verifier(&oidc.Config{SkipClientIDCheck: true})
	default:
		if cfg.Auth.Username == "" || cfg.Auth.Password == "" {
			return nil, errors.New("auth configuration is incomplete: username and password required")
		}
		a.mode = ModeCredentials
		a.username = cfg.Auth.Username
		a.password = cfg.Auth.Password
	}

	a.logger.Info("auth initialized", "mode", a.mode)
	return a, nil
}

// Mode reports how requests are authenticated.
func (a *Auth) Mode() Mode {
	return a.mode
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginHandler starts a session. In OIDC mode it redirects to the
// authorization endpoint with a random state stored in a cookie to mitigate
// CSRF. In credential mode it checks a posted username and password.
func (a *Auth) LoginHandler(w http.ResponseWriter, r *http.Request) {
	switch a.mode {
	case ModeBypass:
		http.Redirect(w, r, "/", http.StatusSeeOther)
	case ModeCredentials:
		a.credentialLogin(w, r)
	default:
		state, err := generateState()
		if err != nil {
			http.Error(w, "failed to generate state", http.StatusInternalServerError)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     "oauthstate",
			Value:    state,
			HttpOnly: true,
			Path:     "/",
			SameSite: http.SameSiteLaxMode,
		})

		http.Redirect(w, r, a.oauth2Config.AuthCodeURL(state), http.StatusTemporaryRedirect)
	}
}

func (a *Auth) credentialLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	} else {
		req.Username = r.FormValue("username")
		req.Password = r.FormValue("password")
	}

	if !a.checkCredentials(req.Username, req.Password) {
		a.logger.Info("login rejected", "username", req.Username)
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(User{Name: req.Username})
}

// CallbackHandler handles the redirect back from Okta. It verifies the state
// parameter, exchanges the code for tokens, validates the ID token, and sets a
// session cookie containing the raw ID token.
func (a *Auth) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	if a.mode != ModeOIDC {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	cookie, err := r.Cookie("oauthstate")
	if err != nil || r.URL.Query().Get("state") != cookie.Value {
		http.Error(w, "invalid state", http.StatusBadRequest)
		return
	}

	token, err := a.oauth2Config.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		a.logger.Error("token exchange failed", "error", err)
		http.Error(w, "token exchange failed", http.StatusInternalServerError)
		return
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		http.Error(w, "no id_token in token response", http.StatusInternalServerError)
		return
	}

	if _, err := a.verifier.Verify(r.Context(), rawIDToken); err != nil {
		http.Error(w, "failed to verify id token", http.StatusUnauthorized)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "id_token",
		Value:    rawIDToken,
		HttpOnly: true,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// RequireAuth is middleware that authenticates the request and stores the
// caller in the request context.
func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var user User

		switch a.mode {
		case ModeBypass:
			user = User{Name: devUser, Email: devUser}
		case ModeCredentials:
			username, password, ok := r.BasicAuth()
			if !ok || !a.checkCredentials(username, password) {
				w.Header().Set("WWW-Authenticate", `Basic realm="autoflow"`)
				http.Error(w, "Invalid credentials", http.StatusUnauthorized)
				return
			}
			user = User{Name: username}
		default:
			var token *oidc.IDToken
			var err error

			// Authorization header first (Swagger and API clients), then the session cookie.
			if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
				rawToken := strings.TrimPrefix(authHeader, "Bearer ")
				token, err = a.apiVerifier.Verify(r.Context(), rawToken)
				if err != nil {
					http.Error(w, "invalid token: "+err.Error(), http.StatusUnauthorized)
					return
				}
			} else {
				cookie, cerr := r.Cookie("id_token")
				if cerr != nil {
					http.Redirect(w, r, "/login", http.StatusSeeOther)
					return
				}
				token, err = a.verifier.Verify(r.Context(), cookie.Value)
				if err != nil {
					http.Error(w, "invalid token: "+err.Error(), http.StatusUnauthorized)
					return
				}
			}

			var claims struct {
				Email string `json:"email"`
				Name  string `json:"name"`
			}
			if err := token.Claims(&claims); err != nil {
				http.Error(w, "failed to parse token claims", http.StatusUnauthorized)
				return
			}
			if claims.Email == "" {
				http.Error(w, "token has no email claim", http.StatusUnauthorized)
				return
			}
			user = User{Name: claims.Name, Email: claims.Email}
			if user.Name == "" {
				user.Name = claims.Email
			}
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// LogoutHandler clears the session cookie and redirects to the home page.
func (a *Auth) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:   "id_token",
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (a *Auth) checkCredentials(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) == 1
	return userOK && passOK
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
