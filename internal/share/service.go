// Package share owns the lifecycle of capability tokens for shared
// collections: creation, validation, revocation, and expiry cleanup.
package share

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/mgriffe/keepsake/internal/model"
	"github.com/mgriffe/keepsake/internal/store"
	"github.com/mgriffe/keepsake/internal/token"
)

type Service struct {
	links   *store.ShareLinkStore
	baseURL string
	now     func() time.Time
	logger  *slog.Logger
}

func NewService(links *store.ShareLinkStore, baseURL string, logger *slog.Logger) *Service {
	return &Service{
		links:   links,
		baseURL: baseURL,
		now:     time.Now,
		logger:  logger,
	}
}

// CreateOptions control a new link's scope.
type CreateOptions struct {
	AccessLevel model.AccessLevel
	// ExpiresIn of zero means the link never expires passively.
	ExpiresIn time.Duration
	// Password, when set, is stored only as a one-way hash.
	Password string
}

// Create mints a link for the collection and returns it together with the
// public share URL. The token is the sole bearer credential.
func (s *Service) Create(ownerID, collectionID string, opts CreateOptions) (*model.ShareLink, string, error) {
	if opts.AccessLevel == "" {
		opts.AccessLevel = model.AccessView
	}
	if opts.AccessLevel != model.AccessView && opts.AccessLevel != model.AccessDownload {
		return nil, "", fmt.Errorf("create share link: unknown access level %q", opts.AccessLevel)
	}

	tok, err := token.New()
	if err != nil {
		return nil, "", fmt.Errorf("create share link: %w", err)
	}

	now := s.now().UTC()
	link := &model.ShareLink{
		Token:        tok,
		CollectionID: collectionID,
		OwnerID:      ownerID,
		AccessLevel:  opts.AccessLevel,
		CreatedAt:    now,
	}
	if opts.ExpiresIn > 0 {
		expires := now.Add(opts.ExpiresIn)
		link.ExpiresAt = &expires
	}
	if opts.Password != "" {
		hash, err := token.HashPassword(opts.Password)
		if err != nil {
			return nil, "", fmt.Errorf("create share link: %w", err)
		}
		link.PasswordHash = hash
	}

	if err := s.links.Create(link); err != nil {
		return nil, "", err
	}

	s.logger.Info("share link created",
		"owner", ownerID, "collection", collectionID, "level", link.AccessLevel,
		"expires", link.ExpiresAt != nil, "protected", link.PasswordHash != "")

	return link, s.URL(tok), nil
}

// URL builds the public share URL for a token.
func (s *Service) URL(tok string) string {
	return s.baseURL + "/s/" + tok
}

// check runs the ordered validity checks shared by Validate and
// CheckPermission, short-circuiting on the first failure.
func (s *Service) check(tok, password string) (*model.ShareLink, error) {
	link, err := s.links.Get(tok)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, ErrNotFound
	}
	if link.Revoked() {
		return nil, ErrRevoked
	}
	if link.Expired(s.now().UTC()) {
		return nil, ErrExpired
	}
	if link.PasswordHash != "" {
		if password == "" {
			return nil, ErrPasswordRequired
		}
		if !token.CheckPassword(link.PasswordHash, password) {
			return nil, ErrInvalidPassword
		}
	}
	return link, nil
}

// Validate is the sole access-granting path for viewers. On success it
// records the access (view count, last-accessed time) and returns the link.
func (s *Service) Validate(tok, password string) (*model.ShareLink, error) {
	link, err := s.check(tok, password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	link.ViewCount++
	link.LastAccessedAt = &now
	if err := s.links.Update(link); err != nil {
		return nil, fmt.Errorf("record access: %w", err)
	}
	return link, nil
}

// CheckPermission re-runs the validity checks and rejects actions beyond
// the link's access level. It never mutates state.
func (s *Service) CheckPermission(tok string, action model.AccessLevel, password string) error {
	link, err := s.check(tok, password)
	if err != nil {
		return err
	}
	if !link.AccessLevel.Allows(action) {
		return ErrPermissionDenied
	}
	return nil
}

// Revoke terminally invalidates a link. Revoking an already-revoked link
// fails with ErrAlreadyRevoked rather than silently succeeding, so callers
// cannot mistake a no-op for a real revocation.
func (s *Service) Revoke(ownerID, tok string) error {
	link, err := s.links.Get(tok)
	if err != nil {
		return err
	}
	if link == nil {
		return ErrNotFound
	}
	if link.OwnerID != ownerID {
		return ErrUnauthorized
	}
	if link.Revoked() {
		return ErrAlreadyRevoked
	}

	now := s.now().UTC()
	link.RevokedAt = &now
	if err := s.links.Update(link); err != nil {
		return fmt.Errorf("revoke share link: %w", err)
	}
	s.logger.Info("share link revoked", "owner", ownerID, "collection", link.CollectionID)
	return nil
}

// CleanupExpired marks expired-but-unrevoked links as revoked and returns
// the count. The sweep is bookkeeping only: validity is computed at read
// time, so a link is invalid from its expiry regardless of whether the
// sweep has run.
func (s *Service) CleanupExpired() (int, error) {
	now := s.now().UTC()
	cleaned := 0
	cursor := ""
	for {
		links, next, err := s.links.Page(cursor, 0)
		if err != nil {
			return cleaned, err
		}
		for _, link := range links {
			if !link.Expired(now) || link.Revoked() {
				continue
			}
			// Stamped with the sweep time, not the expiry: RevokedAt records
			// when the sweep acted, while ExpiresAt keeps the moment validity
			// actually ended.
			revoked := now
			link.RevokedAt = &revoked
			if err := s.links.Update(link); err != nil {
				s.logger.Error("mark expired link revoked", "collection", link.CollectionID, "error", err)
				continue
			}
			cleaned++
		}
		if next == "" {
			break
		}
		cursor = next
	}
	if cleaned > 0 {
		s.logger.Info("expired share links cleaned up", "count", cleaned)
	}
	return cleaned, nil
}
