package connection_repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/booksync/quickbooks-connector/internal/config"
	"github.com/booksync/quickbooks-connector/internal/domain"
	"github.com/booksync/quickbooks-connector/internal/platform/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

type SqlTokenStore struct {
	database     *sql.DB
	queryTimeout time.Duration
}

func NewSqlTokenStore(cfg *config.Config, database *sql.DB) (*SqlTokenStore, error) {
	return &SqlTokenStore{
		database:     database,
		queryTimeout: cfg.ConnectionDatabaseQueryTimeout,
	}, nil
}

func (s *SqlTokenStore) FindConnectionByRealmID(ctx context.Context, realmID domain.RealmID) (domain.ConnectionRecord, error) {

	var record domain.ConnectionRecord

	callDurationTimer := prometheus.NewTimer(metrics.sqlConnectionLookupDuration)
	defer callDurationTimer.ObserveDuration()

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	statement, err := s.database.Prepare(
		`SELECT access_token, refresh_token, expires_at, company_name, created_at, updated_at
           FROM connections WHERE realm_id = $1`)
	if err != nil {
		logger.LogError("SQL Prepare failed", err)
		return record, err
	}
	defer statement.Close()

	var companyName sql.NullString

	err = statement.QueryRowContext(ctx, realmID).Scan(
		&record.AccessToken,
		&record.RefreshToken,
		&record.ExpiresAt,
		&companyName,
		&record.CreatedAt,
		&record.UpdatedAt)

	if err != nil {
		if err == sql.ErrNoRows {
			return record, NotFoundError
		}

		logger.LogErrorWithRealmID("SQL query failed", err, realmID)
		return record, err
	}

	record.RealmID = realmID

	if companyName.Valid {
		record.CompanyName = companyName.String
	}

	return record, nil
}

func (s *SqlTokenStore) Upsert(ctx context.Context, record domain.ConnectionRecord) error {

	callDurationTimer := prometheus.NewTimer(metrics.sqlConnectionUpsertDuration)
	defer callDurationTimer.ObserveDuration()

	log := logger.Log.WithFields(logrus.Fields{"realm_id": record.RealmID})

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	// The entire row is replaced in one statement so that a concurrent
	// reader can never observe a new access token next to a stale expiry.
	statement, err := s.database.Prepare(
		`INSERT INTO connections (realm_id, access_token, refresh_token, expires_at, company_name, created_at, updated_at)
           VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
           ON CONFLICT (realm_id) DO UPDATE SET
             access_token = EXCLUDED.access_token,
             refresh_token = EXCLUDED.refresh_token,
             expires_at = EXCLUDED.expires_at,
             company_name = EXCLUDED.company_name,
             updated_at = NOW()`)
	if err != nil {
		logger.LogWithError(log, "SQL Prepare failed", err)
		return err
	}
	defer statement.Close()

	_, err = statement.ExecContext(ctx, record.RealmID, record.AccessToken, record.RefreshToken,
		record.ExpiresAt, record.CompanyName)
	if err != nil {
		logger.LogWithError(log, "SQL query failed", err)
		return err
	}

	log.Debug("Stored connection record")

	return nil
}

func (s *SqlTokenStore) Delete(ctx context.Context, realmID domain.RealmID) error {

	callDurationTimer := prometheus.NewTimer(metrics.sqlConnectionDeleteDuration)
	defer callDurationTimer.ObserveDuration()

	log := logger.Log.WithFields(logrus.Fields{"realm_id": realmID})

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	statement, err := s.database.Prepare("DELETE FROM connections WHERE realm_id = $1")
	if err != nil {
		logger.LogWithError(log, "SQL Prepare failed", err)
		return err
	}
	defer statement.Close()

	result, err := statement.ExecContext(ctx, realmID)
	if err != nil {
		logger.LogWithError(log, "SQL query failed", err)
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		logger.LogWithError(log, "Unable to determine rows affected", err)
		return err
	}

	if rowsAffected == 0 {
		return NotFoundError
	}

	log.Debug("Deleted connection record")

	return nil
}

func (s *SqlTokenStore) ListRealmIDs(ctx context.Context) ([]domain.RealmID, error) {

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	statement, err := s.database.Prepare("SELECT realm_id FROM connections ORDER BY realm_id")
	if err != nil {
		logger.LogError("SQL Prepare failed", err)
		return nil, err
	}
	defer statement.Close()

	rows, err := statement.QueryContext(ctx)
	if err != nil {
		logger.LogError("SQL query failed", err)
		return nil, err
	}
	defer rows.Close()

	var realmIDs []domain.RealmID
	for rows.Next() {
		var realmID domain.RealmID
		if err := rows.Scan(&realmID); err != nil {
			logger.LogError("SQL scan failed.  Skipping row.", err)
			continue
		}
		realmIDs = append(realmIDs, realmID)
	}

	return realmIDs, nil
}
