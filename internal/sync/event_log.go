package sync

import (
	"context"
	"database/sql"
	"time"

	"github.com/booksync/quickbooks-connector/internal/config"
	"github.com/booksync/quickbooks-connector/internal/domain"
	"github.com/booksync/quickbooks-connector/internal/platform/logger"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// EventLog is the append-only audit trail of webhook-reported changes.
// Rows are never deleted; only the processed/error columns flip.
type EventLog interface {
	Append(ctx context.Context, change domain.EntityChange, payload []byte) (string, error)
	MarkProcessed(ctx context.Context, eventID string) error
	MarkFailed(ctx context.Context, eventID string, message string) error
}

type SqlEventLog struct {
	database     *sql.DB
	queryTimeout time.Duration
}

func NewSqlEventLog(cfg *config.Config, database *sql.DB) (*SqlEventLog, error) {
	return &SqlEventLog{
		database:     database,
		queryTimeout: cfg.ConnectionDatabaseQueryTimeout,
	}, nil
}

func (l *SqlEventLog) Append(ctx context.Context, change domain.EntityChange, payload []byte) (string, error) {

	log := logger.Log.WithFields(logrus.Fields{
		"realm_id":    change.RealmID,
		"entity_name": change.Name,
		"entity_id":   change.ID})

	ctx, cancel := context.WithTimeout(ctx, l.queryTimeout)
	defer cancel()

	eventID := uuid.NewString()

	statement, err := l.database.Prepare(
		`INSERT INTO webhook_events (id, realm_id, entity_name, entity_id, operation, payload, processed, created_at)
           VALUES ($1, $2, $3, $4, $5, $6, FALSE, NOW())`)
	if err != nil {
		logger.LogWithError(log, "SQL Prepare failed", err)
		return "", err
	}
	defer statement.Close()

	_, err = statement.ExecContext(ctx, eventID, change.RealmID, change.Name, change.ID, change.Operation, payload)
	if err != nil {
		logger.LogWithError(log, "Unable to append webhook event", err)
		return "", err
	}

	log.WithFields(logrus.Fields{"event_id": eventID}).Debug("Appended webhook event")

	return eventID, nil
}

func (l *SqlEventLog) MarkProcessed(ctx context.Context, eventID string) error {

	ctx, cancel := context.WithTimeout(ctx, l.queryTimeout)
	defer cancel()

	statement, err := l.database.Prepare(
		"UPDATE webhook_events SET processed = TRUE, processed_at = NOW(), error_message = NULL WHERE id = $1")
	if err != nil {
		logger.LogError("SQL Prepare failed", err)
		return err
	}
	defer statement.Close()

	_, err = statement.ExecContext(ctx, eventID)
	if err != nil {
		logger.LogError("Unable to mark webhook event as processed", err)
	}

	return err
}

func (l *SqlEventLog) MarkFailed(ctx context.Context, eventID string, message string) error {

	ctx, cancel := context.WithTimeout(ctx, l.queryTimeout)
	defer cancel()

	statement, err := l.database.Prepare(
		"UPDATE webhook_events SET error_message = $2 WHERE id = $1")
	if err != nil {
		logger.LogError("SQL Prepare failed", err)
		return err
	}
	defer statement.Close()

	_, err = statement.ExecContext(ctx, eventID, message)
	if err != nil {
		logger.LogError("Unable to record webhook event failure", err)
	}

	return err
}
