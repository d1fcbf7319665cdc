package api

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/booksync/quickbooks-connector/internal/connection_repository"
	"github.com/booksync/quickbooks-connector/internal/domain"
	"github.com/booksync/quickbooks-connector/internal/qbo"
)

// Test doubles shared by the handler tests.

type fakeTokenStore struct {
	mu      sync.Mutex
	records map[domain.RealmID]domain.ConnectionRecord
}

func newFakeTokenStore(records ...domain.ConnectionRecord) *fakeTokenStore {
	s := &fakeTokenStore{records: make(map[domain.RealmID]domain.ConnectionRecord)}
	for _, record := range records {
		s.records[record.RealmID] = record
	}
	return s
}

func (s *fakeTokenStore) FindConnectionByRealmID(ctx context.Context, realmID domain.RealmID) (domain.ConnectionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, found := s.records[realmID]
	if !found {
		return domain.ConnectionRecord{}, connection_repository.NotFoundError
	}
	return record, nil
}

func (s *fakeTokenStore) Upsert(ctx context.Context, record domain.ConnectionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[record.RealmID] = record
	return nil
}

func (s *fakeTokenStore) Delete(ctx context.Context, realmID domain.RealmID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, found := s.records[realmID]; !found {
		return connection_repository.NotFoundError
	}
	delete(s.records, realmID)
	return nil
}

func (s *fakeTokenStore) ListRealmIDs(ctx context.Context) ([]domain.RealmID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var realmIDs []domain.RealmID
	for realmID := range s.records {
		realmIDs = append(realmIDs, realmID)
	}
	return realmIDs, nil
}

type fakeCompanyInfoClient struct {
	info qbo.CompanyInfo
	err  error
}

func (c *fakeCompanyInfoClient) CompanyInfo(ctx context.Context, accessToken string, realmID domain.RealmID) (qbo.CompanyInfo, error) {
	if c.err != nil {
		return qbo.CompanyInfo{}, c.err
	}
	return c.info, nil
}

type fakeEntityFetcher struct {
	entity json.RawMessage
	err    error
}

func (f *fakeEntityFetcher) FetchEntity(ctx context.Context, accessToken string, realmID domain.RealmID, kind domain.EntityKind, entityID string) (json.RawMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.entity, nil
}

type fakeEventLog struct {
	mu       sync.Mutex
	appended int
	failed   int
}

func (l *fakeEventLog) Append(ctx context.Context, change domain.EntityChange, payload []byte) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.appended++
	return "event-1", nil
}

func (l *fakeEventLog) MarkProcessed(ctx context.Context, eventID string) error {
	return nil
}

func (l *fakeEventLog) MarkFailed(ctx context.Context, eventID string, message string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failed++
	return nil
}

func (l *fakeEventLog) appendCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.appended
}

type fakeEntityHandler struct {
	mu      sync.Mutex
	kind    domain.EntityKind
	upserts map[string]json.RawMessage
	err     error
}

func newFakeEntityHandler(kind domain.EntityKind) *fakeEntityHandler {
	return &fakeEntityHandler{kind: kind, upserts: make(map[string]json.RawMessage)}
}

func (h *fakeEntityHandler) Kind() domain.EntityKind {
	return h.kind
}

func (h *fakeEntityHandler) Upsert(ctx context.Context, remoteID string, entity json.RawMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.err != nil {
		return h.err
	}
	h.upserts[remoteID] = entity
	return nil
}

func (h *fakeEntityHandler) upsertCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.upserts)
}

var errFakeFailure = errors.New("fake failure")
