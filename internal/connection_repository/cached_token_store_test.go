package connection_repository

import (
	"context"
	"testing"
	"time"

	"github.com/booksync/quickbooks-connector/internal/domain"
	"github.com/booksync/quickbooks-connector/internal/platform/logger"
)

func init() {
	logger.InitLogger()
}

type countingTokenStore struct {
	records map[domain.RealmID]domain.ConnectionRecord
	finds   int
	deletes int
}

func newCountingTokenStore(records ...domain.ConnectionRecord) *countingTokenStore {
	s := &countingTokenStore{records: make(map[domain.RealmID]domain.ConnectionRecord)}
	for _, record := range records {
		s.records[record.RealmID] = record
	}
	return s
}

func (s *countingTokenStore) FindConnectionByRealmID(ctx context.Context, realmID domain.RealmID) (domain.ConnectionRecord, error) {
	s.finds++
	record, found := s.records[realmID]
	if !found {
		return domain.ConnectionRecord{}, NotFoundError
	}
	return record, nil
}

func (s *countingTokenStore) Upsert(ctx context.Context, record domain.ConnectionRecord) error {
	s.records[record.RealmID] = record
	return nil
}

func (s *countingTokenStore) Delete(ctx context.Context, realmID domain.RealmID) error {
	s.deletes++
	if _, found := s.records[realmID]; !found {
		return NotFoundError
	}
	delete(s.records, realmID)
	return nil
}

func (s *countingTokenStore) ListRealmIDs(ctx context.Context) ([]domain.RealmID, error) {
	var realmIDs []domain.RealmID
	for realmID := range s.records {
		realmIDs = append(realmIDs, realmID)
	}
	return realmIDs, nil
}

func TestCachedReadsSkipTheDelegate(t *testing.T) {
	delegate := newCountingTokenStore(domain.ConnectionRecord{RealmID: "1234567890", AccessToken: "access"})

	store := NewCachedTokenStore(delegate, 10, time.Minute)

	for i := 0; i < 5; i++ {
		record, err := store.FindConnectionByRealmID(context.TODO(), "1234567890")
		if err != nil {
			t.Fatal("unexpected error ", err)
		}
		if record.AccessToken != "access" {
			t.Fatalf("unexpected access token %s", record.AccessToken)
		}
	}

	if delegate.finds != 1 {
		t.Fatalf("expected one delegate read, got %d", delegate.finds)
	}
}

func TestUpsertRefreshesTheCachedRecord(t *testing.T) {
	delegate := newCountingTokenStore(domain.ConnectionRecord{RealmID: "1234567890", AccessToken: "old-access"})

	store := NewCachedTokenStore(delegate, 10, time.Minute)

	// Populate the cache with the old record.
	if _, err := store.FindConnectionByRealmID(context.TODO(), "1234567890"); err != nil {
		t.Fatal("unexpected error ", err)
	}

	updated := domain.ConnectionRecord{RealmID: "1234567890", AccessToken: "new-access"}
	if err := store.Upsert(context.TODO(), updated); err != nil {
		t.Fatal("unexpected error ", err)
	}

	record, err := store.FindConnectionByRealmID(context.TODO(), "1234567890")
	if err != nil {
		t.Fatal("unexpected error ", err)
	}

	if record.AccessToken != "new-access" {
		t.Fatal("a read after upsert returned the stale cached record")
	}
}

func TestDeleteEvictsTheCachedRecord(t *testing.T) {
	delegate := newCountingTokenStore(domain.ConnectionRecord{RealmID: "1234567890", AccessToken: "access"})

	store := NewCachedTokenStore(delegate, 10, time.Minute)

	if _, err := store.FindConnectionByRealmID(context.TODO(), "1234567890"); err != nil {
		t.Fatal("unexpected error ", err)
	}

	if err := store.Delete(context.TODO(), "1234567890"); err != nil {
		t.Fatal("unexpected error ", err)
	}

	if _, err := store.FindConnectionByRealmID(context.TODO(), "1234567890"); err != NotFoundError {
		t.Fatalf("expected NotFoundError after disconnect, got %v", err)
	}
}

func TestNotFoundIsNotCached(t *testing.T) {
	delegate := newCountingTokenStore()

	store := NewCachedTokenStore(delegate, 10, time.Minute)

	store.FindConnectionByRealmID(context.TODO(), "missing")
	store.FindConnectionByRealmID(context.TODO(), "missing")

	if delegate.finds != 2 {
		t.Fatalf("expected misses to pass through every time, got %d delegate reads", delegate.finds)
	}
}
