package connection_repository

import (
	"context"
	"errors"

	"github.com/booksync/quickbooks-connector/internal/domain"
)

// TokenStore is the durable record of each realm's token pair.  The
// refresh engine is the only writer; everything else reads.
type TokenStore interface {
	FindConnectionByRealmID(ctx context.Context, realmID domain.RealmID) (domain.ConnectionRecord, error)

	// Upsert replaces the stored record wholesale.  Partial field
	// updates are not part of this interface on purpose.
	Upsert(ctx context.Context, record domain.ConnectionRecord) error

	Delete(ctx context.Context, realmID domain.RealmID) error

	ListRealmIDs(ctx context.Context) ([]domain.RealmID, error)
}

var NotFoundError = errors.New("connection not found")
