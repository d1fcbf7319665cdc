package connection_repository

import (
	"context"
	"time"

	"github.com/booksync/quickbooks-connector/internal/domain"
	"github.com/booksync/quickbooks-connector/internal/platform/logger"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedTokenStore decorates a TokenStore with a TTL-bounded read cache.
// The sync pipeline reads the access token on every entity fetch; the
// cache keeps those reads off the database between refreshes.
type CachedTokenStore struct {
	delegate TokenStore
	cache    *expirable.LRU[domain.RealmID, domain.ConnectionRecord]
}

func NewCachedTokenStore(delegate TokenStore, size int, ttl time.Duration) *CachedTokenStore {
	return &CachedTokenStore{
		delegate: delegate,
		cache:    expirable.NewLRU[domain.RealmID, domain.ConnectionRecord](size, nil, ttl),
	}
}

func (s *CachedTokenStore) FindConnectionByRealmID(ctx context.Context, realmID domain.RealmID) (domain.ConnectionRecord, error) {

	if record, ok := s.cache.Get(realmID); ok {
		return record, nil
	}

	record, err := s.delegate.FindConnectionByRealmID(ctx, realmID)
	if err != nil {
		return record, err
	}

	s.cache.Add(realmID, record)

	return record, nil
}

func (s *CachedTokenStore) Upsert(ctx context.Context, record domain.ConnectionRecord) error {

	if err := s.delegate.Upsert(ctx, record); err != nil {
		return err
	}

	s.cache.Add(record.RealmID, record)

	return nil
}

func (s *CachedTokenStore) Delete(ctx context.Context, realmID domain.RealmID) error {

	// Evict first so a failed delete never leaves a stale entry serving
	// reads for a realm the operator asked to disconnect.
	if s.cache.Remove(realmID) {
		logger.Log.Debug("Evicted cached connection for realm ", realmID)
	}

	return s.delegate.Delete(ctx, realmID)
}

func (s *CachedTokenStore) ListRealmIDs(ctx context.Context) ([]domain.RealmID, error) {
	return s.delegate.ListRealmIDs(ctx)
}
