package api

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/AaronLay10/ReelEngine/internal/config"
)

// Role is the privilege attached to a set of operator credentials.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
)

// rank orders roles; a higher rank satisfies every lower requirement.
func (r Role) rank() int {
	switch r {
	case RoleAdmin:
		return 2
	case RoleOperator:
		return 1
	}
	return 0
}

type credential struct {
	role Role
	user string
	pass string
}

type authConfig struct {
	creds []credential
}

// enabled reports whether an admin login exists. Operator-only setups stay open.
func (a *authConfig) enabled() bool {
	if a == nil {
		return false
	}
	for _, c := range a.creds {
		if c.role == RoleAdmin {
			return true
		}
	}
	return false
}

var auth *authConfig

var roleEnv = []struct {
	role Role
	user string
	pass string
}{
	{RoleAdmin, "REEL_ADMIN_USER", "REEL_ADMIN_PASS"},
	{RoleOperator, "REEL_OPERATOR_USER", "REEL_OPERATOR_PASS"},
}

// InitAuth loads operator credentials from REEL_ADMIN_USER/PASS and
// REEL_OPERATOR_USER/PASS (each also readable via *_FILE). A role whose user
// or password is empty gets no login.
func InitAuth() error {
	cfg := &authConfig{}
	for _, e := range roleEnv {
		user, err := config.ResolveSecret(e.user)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", e.user, err)
		}
		pass, err := config.ResolveSecret(e.pass)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", e.pass, err)
		}
		if user != "" && pass != "" {
			cfg.creds = append(cfg.creds, credential{role: e.role, user: user, pass: pass})
		}
	}
	auth = cfg
	return nil
}

// IsAuthEnabled returns true if operator endpoints are gated.
func IsAuthEnabled() bool {
	return auth.enabled()
}

// authenticate resolves the request's basic-auth login to a role, or "" when
// the login is missing or wrong. With auth disabled everyone is admin.
func authenticate(r *http.Request) Role {
	if !auth.enabled() {
		return RoleAdmin
	}
	user, pass, ok := r.BasicAuth()
	if !ok {
		return ""
	}
	for _, c := range auth.creds {
		// both compares always run
		userOK := subtle.ConstantTimeCompare([]byte(user), []byte(c.user))
		passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(c.pass))
		if userOK&passOK == 1 {
			return c.role
		}
	}
	return ""
}

// RequireRole gates a handler behind a login of at least the given role.
func RequireRole(need Role, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := authenticate(r)
		switch {
		case role == "":
			w.Header().Set("WWW-Authenticate", `Basic realm="Reel Engine"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		case role.rank() < need.rank():
			http.Error(w, "Forbidden", http.StatusForbidden)
		default:
			handler(w, r)
		}
	}
}

// RequireAnyRole admits any operator login.
func RequireAnyRole(handler http.HandlerFunc) http.HandlerFunc {
	return RequireRole(RoleOperator, handler)
}

// RequireAdmin admits admin logins only.
func RequireAdmin(handler http.HandlerFunc) http.HandlerFunc {
	return RequireRole(RoleAdmin, handler)
}
