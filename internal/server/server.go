// Package server exposes the HTTP surface: public token redemption for
// share links and legacy access grants, and the owner-facing API for
// managing links, activity, and push subscriptions.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mgriffe/keepsake/internal/legacy"
	"github.com/mgriffe/keepsake/internal/middleware"
	"github.com/mgriffe/keepsake/internal/notify"
	"github.com/mgriffe/keepsake/internal/share"
	"github.com/mgriffe/keepsake/internal/store"
)

// Redemption endpoints take bearer tokens from anonymous clients, so they
// get a tight per-IP budget.
const (
	redeemLimit  = 10
	redeemWindow = time.Minute
)

type Server struct {
	shares  *share.Service
	links   *store.ShareLinkStore
	monitor *legacy.Monitor
	grants  *store.GrantStore

	pushStore *store.PushStore
	pushSvc   *notify.PushService

	limiter *middleware.RateLimiter
	now     func() time.Time
	logger  *slog.Logger
}

func New(
	shares *share.Service,
	links *store.ShareLinkStore,
	monitor *legacy.Monitor,
	grants *store.GrantStore,
	logger *slog.Logger,
) *Server {
	return &Server{
		shares:  shares,
		links:   links,
		monitor: monitor,
		grants:  grants,
		limiter: middleware.NewRateLimiter(),
		now:     time.Now,
		logger:  logger,
	}
}

// EnablePush registers the push subscription endpoints.
func (s *Server) EnablePush(svc *notify.PushService, subs *store.PushStore) {
	s.pushSvc = svc
	s.pushStore = subs
}

// RateLimiter exposes the limiter for periodic cleanup.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.limiter
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(s.logger.With("component", "http")))

	r.Get("/health", s.health)

	// Public redemption, rate-limited per client IP.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(s.limiter, middleware.RealIP, redeemLimit, redeemWindow))
		r.Get("/s/{token}", s.redeemShare)
		r.Post("/s/{token}", s.redeemShare)
		r.Get("/legacy/{token}", s.redeemLegacy)
	})

	// Owner API. Authentication lives in the outer deployment; the core
	// trusts the forwarded account identity header.
	r.Route("/api", func(r chi.Router) {
		r.Post("/shares", s.createShare)
		r.Get("/shares", s.listShares)
		r.Delete("/shares/{token}", s.revokeShare)
		r.Get("/shares/{token}/check", s.checkShare)
		r.Post("/activity", s.recordActivity)
		if s.pushSvc != nil {
			r.Post("/push/subscribe", s.pushSubscribe)
			r.Get("/push/vapid-key", s.vapidKey)
		}
	})

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// accountID extracts the authenticated owner identity forwarded by the
// deployment's auth layer.
func accountID(r *http.Request) string {
	return r.Header.Get("X-Account-ID")
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
