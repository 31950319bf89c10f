package store

import (
	"encoding/json"
	"fmt"

	"github.com/mgriffe/keepsake/internal/kv"
	"github.com/mgriffe/keepsake/internal/model"
)

type ShareLinkStore struct {
	kv kv.Store
}

func NewShareLinkStore(s kv.Store) *ShareLinkStore {
	return &ShareLinkStore{kv: s}
}

// Create persists a new link and appends it to the per-collection and
// per-owner indexes so enumeration does not require a full scan.
func (s *ShareLinkStore) Create(link *model.ShareLink) error {
	if link.Token == "" {
		return fmt.Errorf("create share link: empty token")
	}
	if err := putJSON(s.kv, shareKey(link.Token), link); err != nil {
		return err
	}
	if err := s.kv.Set(collectionIndexKey(link.CollectionID, link.Token), []byte(link.Token)); err != nil {
		return fmt.Errorf("index link by collection: %w", err)
	}
	if err := s.kv.Set(ownerIndexKey(link.OwnerID, link.Token), []byte(link.Token)); err != nil {
		return fmt.Errorf("index link by owner: %w", err)
	}
	return nil
}

// Get returns the link for the token, or nil if not found.
func (s *ShareLinkStore) Get(token string) (*model.ShareLink, error) {
	var link model.ShareLink
	ok, err := getJSON(s.kv, shareKey(token), &link)
	if err != nil {
		return nil, fmt.Errorf("get share link: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &link, nil
}

// Update rewrites an existing link record. Indexes are keyed by immutable
// fields and need no maintenance here.
func (s *ShareLinkStore) Update(link *model.ShareLink) error {
	if link.Token == "" {
		return fmt.Errorf("update share link: empty token")
	}
	return putJSON(s.kv, shareKey(link.Token), link)
}

func (s *ShareLinkStore) ListByCollection(collectionID string) ([]*model.ShareLink, error) {
	return s.resolveIndex(collectionIndex + collectionID + ":")
}

func (s *ShareLinkStore) ListByOwner(ownerID string) ([]*model.ShareLink, error) {
	return s.resolveIndex(ownerIndex + ownerID + ":")
}

func (s *ShareLinkStore) resolveIndex(prefix string) ([]*model.ShareLink, error) {
	entries, err := s.kv.GetByPrefix(prefix)
	if err != nil {
		return nil, fmt.Errorf("scan link index: %w", err)
	}
	links := make([]*model.ShareLink, 0, len(entries))
	for _, e := range entries {
		link, err := s.Get(string(e.Value))
		if err != nil {
			return nil, err
		}
		if link == nil {
			continue
		}
		links = append(links, link)
	}
	return links, nil
}

// Page returns one page of all links for the cleanup sweep.
func (s *ShareLinkStore) Page(cursor string, limit int) ([]*model.ShareLink, string, error) {
	entries, next, err := s.kv.Scan(sharePrefix, cursor, limit)
	if err != nil {
		return nil, "", fmt.Errorf("scan share links: %w", err)
	}
	links := make([]*model.ShareLink, 0, len(entries))
	for _, e := range entries {
		var link model.ShareLink
		if err := json.Unmarshal(e.Value, &link); err != nil {
			return nil, "", fmt.Errorf("unmarshal %s: %w", e.Key, err)
		}
		links = append(links, &link)
	}
	return links, next, nil
}
