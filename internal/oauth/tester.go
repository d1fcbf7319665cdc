package oauth

import (
	"context"

	"github.com/booksync/quickbooks-connector/internal/connection_repository"
	"github.com/booksync/quickbooks-connector/internal/domain"
	"github.com/booksync/quickbooks-connector/internal/platform/logger"
	"github.com/booksync/quickbooks-connector/internal/qbo"

	"github.com/sirupsen/logrus"
)

type companyInfoFetcher interface {
	CompanyInfo(ctx context.Context, accessToken string, realmID domain.RealmID) (qbo.CompanyInfo, error)
}

// Tester validates that the stored access token actually works by making
// one read-only API call.  It never refreshes; a qbo.ErrUnauthorized
// result tells the caller a refresh (or reauthorization) is needed.
type Tester struct {
	store  connection_repository.TokenStore
	client companyInfoFetcher
}

func NewTester(store connection_repository.TokenStore, client companyInfoFetcher) *Tester {
	return &Tester{
		store:  store,
		client: client,
	}
}

func (t *Tester) Test(ctx context.Context, realmID domain.RealmID) (qbo.CompanyInfo, error) {

	log := logger.Log.WithFields(logrus.Fields{"realm_id": realmID})

	record, err := t.store.FindConnectionByRealmID(ctx, realmID)
	if err != nil {
		return qbo.CompanyInfo{}, err
	}

	info, err := t.client.CompanyInfo(ctx, record.AccessToken, realmID)
	if err != nil {
		logger.LogWithError(log, "Connection test failed", err)
		return qbo.CompanyInfo{}, err
	}

	log.Debug("Connection test succeeded")

	return info, nil
}
