package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mgriffe/keepsake/internal/legacy"
	"github.com/mgriffe/keepsake/internal/model"
	"github.com/mgriffe/keepsake/internal/share"
)

// shareStatus maps the share sentinels onto HTTP status codes. Revoked and
// expired links both answer 410: the token once existed but is terminally
// gone, which is distinct from a token that never existed.
func shareStatus(err error) int {
	switch {
	case errors.Is(err, share.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, share.ErrRevoked), errors.Is(err, share.ErrExpired):
		return http.StatusGone
	case errors.Is(err, share.ErrPasswordRequired):
		return http.StatusUnauthorized
	case errors.Is(err, share.ErrInvalidPassword),
		errors.Is(err, share.ErrPermissionDenied),
		errors.Is(err, share.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, share.ErrAlreadyRevoked):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeShareError(w http.ResponseWriter, err error) {
	status := shareStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("share request failed", "error", err)
		respondError(w, status, "internal error")
		return
	}
	respondError(w, status, err.Error())
}

type shareView struct {
	CollectionID   string     `json:"collection_id"`
	AccessLevel    string     `json:"access_level"`
	ViewCount      int64      `json:"view_count"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
}

func (s *Server) redeemShare(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	// FormValue covers both the query string and a POSTed password form.
	password := r.FormValue("password")

	link, err := s.shares.Validate(token, password)
	if err != nil {
		s.writeShareError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, shareView{
		CollectionID:   link.CollectionID,
		AccessLevel:    string(link.AccessLevel),
		ViewCount:      link.ViewCount,
		ExpiresAt:      link.ExpiresAt,
		LastAccessedAt: link.LastAccessedAt,
	})
}

func (s *Server) checkShare(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	action := model.AccessLevel(r.URL.Query().Get("action"))
	if action == "" {
		action = model.AccessView
	}
	if err := s.shares.CheckPermission(token, action, r.URL.Query().Get("password")); err != nil {
		s.writeShareError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createShareRequest struct {
	CollectionID   string `json:"collection_id"`
	AccessLevel    string `json:"access_level"`
	ExpiresInHours int    `json:"expires_in_hours"`
	Password       string `json:"password"`
}

type createShareResponse struct {
	Token       string     `json:"token"`
	URL         string     `json:"url"`
	AccessLevel string     `json:"access_level"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

func (s *Server) createShare(w http.ResponseWriter, r *http.Request) {
	owner := accountID(r)
	if owner == "" {
		respondError(w, http.StatusUnauthorized, "missing account identity")
		return
	}
	var req createShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CollectionID == "" {
		respondError(w, http.StatusBadRequest, "collection_id is required")
		return
	}

	link, url, err := s.shares.Create(owner, req.CollectionID, share.CreateOptions{
		AccessLevel: model.AccessLevel(req.AccessLevel),
		ExpiresIn:   time.Duration(req.ExpiresInHours) * time.Hour,
		Password:    req.Password,
	})
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, createShareResponse{
		Token:       link.Token,
		URL:         url,
		AccessLevel: string(link.AccessLevel),
		ExpiresAt:   link.ExpiresAt,
	})
}

func (s *Server) listShares(w http.ResponseWriter, r *http.Request) {
	owner := accountID(r)
	if owner == "" {
		respondError(w, http.StatusUnauthorized, "missing account identity")
		return
	}
	links, err := s.links.ListByOwner(owner)
	if err != nil {
		s.logger.Error("list share links", "owner", owner, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, links)
}

func (s *Server) revokeShare(w http.ResponseWriter, r *http.Request) {
	owner := accountID(r)
	if owner == "" {
		respondError(w, http.StatusUnauthorized, "missing account identity")
		return
	}
	if err := s.shares.Revoke(owner, chi.URLParam(r, "token")); err != nil {
		s.writeShareError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) recordActivity(w http.ResponseWriter, r *http.Request) {
	owner := accountID(r)
	if owner == "" {
		respondError(w, http.StatusUnauthorized, "missing account identity")
		return
	}
	acct, err := s.monitor.RecordActivity(owner)
	if err != nil {
		if errors.Is(err, legacy.ErrAccountNotFound) {
			respondError(w, http.StatusNotFound, "account not found")
			return
		}
		s.logger.Error("record activity", "account", owner, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, acct)
}

type legacyAccessView struct {
	AccountID        string    `json:"account_id"`
	BeneficiaryEmail string    `json:"beneficiary_email"`
	GrantedAt        time.Time `json:"granted_at"`
	ExpiresAt        time.Time `json:"expires_at"`
}

func (s *Server) redeemLegacy(w http.ResponseWriter, r *http.Request) {
	grant, err := s.grants.GetByToken(chi.URLParam(r, "token"))
	if err != nil {
		s.logger.Error("resolve legacy access token", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if grant == nil {
		respondError(w, http.StatusNotFound, "access grant not found")
		return
	}
	if grant.Expired(s.now().UTC()) {
		respondError(w, http.StatusGone, "access grant expired")
		return
	}
	respondJSON(w, http.StatusOK, legacyAccessView{
		AccountID:        grant.AccountID,
		BeneficiaryEmail: grant.BeneficiaryEmail,
		GrantedAt:        grant.GrantedAt,
		ExpiresAt:        grant.ExpiresAt,
	})
}

type pushSubscribeRequest struct {
	Endpoint  string `json:"endpoint"`
	P256dhKey string `json:"p256dh_key"`
	AuthKey   string `json:"auth_key"`
}

func (s *Server) pushSubscribe(w http.ResponseWriter, r *http.Request) {
	owner := accountID(r)
	if owner == "" {
		respondError(w, http.StatusUnauthorized, "missing account identity")
		return
	}
	var req pushSubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Endpoint == "" {
		respondError(w, http.StatusBadRequest, "invalid subscription")
		return
	}
	sub := &model.PushSubscription{
		AccountID: owner,
		Endpoint:  req.Endpoint,
		P256dhKey: req.P256dhKey,
		AuthKey:   req.AuthKey,
		CreatedAt: s.now().UTC(),
	}
	if err := s.pushStore.Put(sub); err != nil {
		s.logger.Error("store push subscription", "account", owner, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"status": "subscribed"})
}

func (s *Server) vapidKey(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"public_key": s.pushSvc.VAPIDPublicKey()})
}
