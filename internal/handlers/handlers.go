// Package handlers serves the finance tracker's JSON API.
package handlers

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/Deepanshu2050/subcription-manager/internal/auth"
	"github.com/Deepanshu2050/subcription-manager/internal/budget"
	"github.com/Deepanshu2050/subcription-manager/internal/ledger"
	"github.com/Deepanshu2050/subcription-manager/internal/models"
	"github.com/Deepanshu2050/subcription-manager/internal/storage"
	"github.com/Deepanshu2050/subcription-manager/internal/subscriptions"
)

// Context key type to avoid collisions.
type contextKey string

const (
	// UserContextKey is the context key for the authenticated user.
	UserContextKey contextKey = "user"
	// SessionCookieName is the name of the session cookie.
	SessionCookieName = "session"
	// SessionDuration is how long sessions last (30 days).
	SessionDuration = 30 * 24 * time.Hour
)

// Options configures Handlers.
type Options struct {
	SecureCookie bool
	// Development exposes error detail in 500 responses.
	Development bool
	// Location interprets bare YYYY-MM-DD dates.
	Location *time.Location
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	db            *storage.DB
	ledger        *ledger.Service
	budgets       *budget.Engine
	subscriptions *subscriptions.Registry

	secureCookie bool
	development  bool
	loc          *time.Location
	now          func() time.Time
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *storage.DB, l *ledger.Service, b *budget.Engine, s *subscriptions.Registry, opts Options) *Handlers {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	return &Handlers{
		db:            db,
		ledger:        l,
		budgets:       b,
		subscriptions: s,
		secureCookie:  opts.SecureCookie,
		development:   opts.Development,
		loc:           loc,
		now:           time.Now,
	}
}

// Register adds every API route to mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	protected := func(f http.HandlerFunc) http.Handler { return h.AuthMiddleware(f) }

	mux.HandleFunc("GET /api/health", h.Health)
	mux.HandleFunc("POST /api/auth/login", h.Login)
	mux.HandleFunc("POST /api/auth/logout", h.Logout)
	mux.Handle("GET /api/auth/me", protected(h.Me))

	mux.Handle("GET /api/expenses", protected(h.ListExpenses))
	mux.Handle("POST /api/expenses", protected(h.CreateExpense))
	mux.Handle("GET /api/expenses/summary/{period}", protected(h.ExpenseSummary))
	mux.Handle("GET /api/expenses/export/csv", protected(h.ExportExpenses))
	mux.Handle("GET /api/expenses/{id}", protected(h.GetExpense))
	mux.Handle("PUT /api/expenses/{id}", protected(h.UpdateExpense))
	mux.Handle("DELETE /api/expenses/{id}", protected(h.DeleteExpense))

	mux.Handle("GET /api/subscriptions", protected(h.ListSubscriptions))
	mux.Handle("POST /api/subscriptions", protected(h.CreateSubscription))
	mux.Handle("GET /api/subscriptions/upcoming/{days}", protected(h.UpcomingSubscriptions))
	mux.Handle("GET /api/subscriptions/analysis/cost", protected(h.CostAnalysis))
	mux.Handle("GET /api/subscriptions/{id}", protected(h.GetSubscription))
	mux.Handle("PUT /api/subscriptions/{id}", protected(h.UpdateSubscription))
	mux.Handle("DELETE /api/subscriptions/{id}", protected(h.DeleteSubscription))
	mux.Handle("POST /api/subscriptions/{id}/renew", protected(h.RenewSubscription))

	mux.Handle("GET /api/budgets", protected(h.ListBudgets))
	mux.Handle("POST /api/budgets", protected(h.CreateBudget))
	mux.Handle("GET /api/budgets/current/status", protected(h.CurrentBudgetStatus))
	mux.Handle("GET /api/budgets/check-alerts", protected(h.CheckBudgetAlerts))
	mux.Handle("GET /api/budgets/{id}", protected(h.GetBudget))
	mux.Handle("PUT /api/budgets/{id}", protected(h.UpdateBudget))
	mux.Handle("DELETE /api/budgets/{id}", protected(h.DeleteBudget))

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		failMessage(w, http.StatusNotFound, "Route not found")
	})
}

// GetUserFromContext retrieves the authenticated user from request context.
func GetUserFromContext(r *http.Request) *models.User {
	if user, ok := r.Context().Value(UserContextKey).(*models.User); ok {
		return user
	}
	return nil
}

// sessionToken returns the bearer token, falling back to the session cookie.
// fromCookie reports which one was used.
func sessionToken(r *http.Request) (token string, fromCookie bool) {
	if authz := r.Header.Get("Authorization"); authz != "" {
		if t, found := strings.CutPrefix(authz, "Bearer "); found {
			return strings.TrimSpace(t), false
		}
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		return cookie.Value, true
	}
	return "", false
}

// AuthMiddleware wraps handlers to require authentication.
// It also implements rolling sessions: if a session is past the halfway point
// of its lifetime, it automatically renews the session.
func (h *Handlers) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, fromCookie := sessionToken(r)
		if token == "" {
			failMessage(w, http.StatusUnauthorized, "Not authorized, no token")
			return
		}

		sessionInfo, err := h.db.ValidateSession(r.Context(), token)
		if err != nil {
			if fromCookie {
				h.clearSessionCookie(w)
			}
			failMessage(w, http.StatusUnauthorized, "Not authorized, token failed")
			return
		}

		// Rolling session: renew if past halfway point
		now := time.Now()
		if sessionInfo.ExpiresAt.Sub(now) < SessionDuration/2 {
			newExpiresAt := now.Add(SessionDuration)
			if err := h.db.RenewSession(r.Context(), token, newExpiresAt); err == nil {
				if fromCookie {
					h.setSessionCookie(w, token)
				}
			} else {
				log.Printf("Failed to renew session: %v", err)
			}
		}

		ctx := context.WithValue(r.Context(), UserContextKey, sessionInfo.User)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

// Login exchanges a username and password for a session.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, "", err)
		return
	}

	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		failMessage(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	user, err := h.db.GetUserByUsername(r.Context(), username)
	if err != nil || !auth.CheckPassword(req.Password, user.PasswordHash) {
		failMessage(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	token, err := auth.GenerateSessionToken()
	if err != nil {
		h.fail(w, r, "", err)
		return
	}

	expiresAt := time.Now().Add(SessionDuration)
	if err := h.db.CreateSession(r.Context(), token, user.ID, expiresAt); err != nil {
		h.fail(w, r, "", err)
		return
	}

	h.setSessionCookie(w, token)
	respond(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt, User: user})
}

// Logout ends the caller's session, if any.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if token, _ := sessionToken(r); token != "" {
		if err := h.db.DeleteSession(r.Context(), token); err != nil {
			log.Printf("Failed to delete session: %v", err)
		}
	}
	h.clearSessionCookie(w)
	respondMessage(w, "Logged out")
}

// Me returns the authenticated user.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, GetUserFromContext(r))
}

type healthStatus struct {
	Status   string    `json:"status"`
	Database string    `json:"database"`
	Time     time.Time `json:"time"`
}

// Health reports whether the server and its database are reachable.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	status := healthStatus{Status: "ok", Database: "ok", Time: h.now().UTC()}
	if err := h.db.Ping(r.Context()); err != nil {
		log.Printf("Health check: database unreachable: %v", err)
		status.Status, status.Database = "degraded", "unreachable"
		writeJSON(w, http.StatusServiceUnavailable, envelope{Data: status, Message: "Database unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: status, Message: "Server is running"})
}

func (h *Handlers) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(SessionDuration.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handlers) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
