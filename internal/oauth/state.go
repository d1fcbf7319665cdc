package oauth

import (
	"context"
	"time"

	"github.com/booksync/quickbooks-connector/internal/config"
	"github.com/booksync/quickbooks-connector/internal/connection_repository"
	"github.com/booksync/quickbooks-connector/internal/domain"
	"github.com/booksync/quickbooks-connector/internal/platform/logger"

	"github.com/sirupsen/logrus"
)

// ConnectionStatus is the operator-facing view of one realm's
// connection.  Status lookups never fail; a store error shows up in the
// Error field with Connected=false.
type ConnectionStatus struct {
	Connected    bool      `json:"connected"`
	CompanyName  string    `json:"company_name,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
	LastRefresh  time.Time `json:"last_refresh,omitempty"`
	NeedsRefresh bool      `json:"needs_refresh"`
	Error        string    `json:"error,omitempty"`
}

type StateAccessor struct {
	store         connection_repository.TokenStore
	refreshBuffer time.Duration
}

func NewStateAccessor(cfg *config.Config, store connection_repository.TokenStore) *StateAccessor {
	return &StateAccessor{
		store:         store,
		refreshBuffer: cfg.TokenRefreshBuffer,
	}
}

func (a *StateAccessor) GetStatus(ctx context.Context, realmID domain.RealmID) ConnectionStatus {

	record, err := a.store.FindConnectionByRealmID(ctx, realmID)
	if err != nil {
		if err != connection_repository.NotFoundError {
			logger.Log.WithFields(logrus.Fields{"error": err, "realm_id": realmID}).Error("Unable to read connection record")
			return ConnectionStatus{Connected: false, Error: err.Error()}
		}
		return ConnectionStatus{Connected: false}
	}

	return ConnectionStatus{
		Connected:    true,
		CompanyName:  record.CompanyName,
		ExpiresAt:    record.ExpiresAt,
		LastRefresh:  record.UpdatedAt,
		NeedsRefresh: needsRefresh(record.ExpiresAt, time.Now(), a.refreshBuffer),
	}
}

// needsRefresh reports whether the token is inside the proactive refresh
// window.  Pure derivation, no network.
func needsRefresh(expiresAt time.Time, now time.Time, buffer time.Duration) bool {
	return expiresAt.Sub(now) < buffer
}
