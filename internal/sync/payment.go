package sync

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/booksync/quickbooks-connector/internal/config"
	"github.com/booksync/quickbooks-connector/internal/domain"
	"github.com/booksync/quickbooks-connector/internal/platform/logger"

	"github.com/sirupsen/logrus"
)

type remotePayment struct {
	TxnDate       string         `json:"TxnDate"`
	TotalAmt      float64        `json:"TotalAmt"`
	UnappliedAmt  float64        `json:"UnappliedAmt"`
	PaymentRefNum string         `json:"PaymentRefNum"`
	SyncToken     string         `json:"SyncToken"`
	CustomerRef   referenceValue `json:"CustomerRef"`
}

type PaymentHandler struct {
	database     *sql.DB
	queryTimeout time.Duration
}

func NewPaymentHandler(cfg *config.Config, database *sql.DB) *PaymentHandler {
	return &PaymentHandler{
		database:     database,
		queryTimeout: cfg.ConnectionDatabaseQueryTimeout,
	}
}

func (h *PaymentHandler) Kind() domain.EntityKind {
	return domain.EntityPayment
}

func (h *PaymentHandler) Upsert(ctx context.Context, remoteID string, entity json.RawMessage) error {

	log := logger.Log.WithFields(logrus.Fields{"entity_name": domain.EntityPayment, "remote_id": remoteID})

	var remote remotePayment
	if err := json.Unmarshal(entity, &remote); err != nil {
		logger.LogWithError(log, "Unable to parse remote payment", err)
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, h.queryTimeout)
	defer cancel()

	statement, err := h.database.Prepare(
		`INSERT INTO quickbooks_payments
           (remote_id, customer_id, txn_date, total_amt, unapplied_amt, reference_number, sync_token, metadata, last_synced_at)
           VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
           ON CONFLICT (remote_id) DO UPDATE SET
             customer_id = EXCLUDED.customer_id,
             txn_date = EXCLUDED.txn_date,
             total_amt = EXCLUDED.total_amt,
             unapplied_amt = EXCLUDED.unapplied_amt,
             reference_number = EXCLUDED.reference_number,
             sync_token = EXCLUDED.sync_token,
             metadata = EXCLUDED.metadata,
             last_synced_at = NOW()`)
	if err != nil {
		logger.LogWithError(log, "SQL Prepare failed", err)
		return err
	}
	defer statement.Close()

	_, err = statement.ExecContext(ctx,
		remoteID,
		nullableString(remote.CustomerRef.Value),
		nullableTime(parseQboDate(remote.TxnDate)),
		remote.TotalAmt,
		remote.UnappliedAmt,
		nullableString(remote.PaymentRefNum),
		remote.SyncToken,
		[]byte(entity))
	if err != nil {
		logger.LogWithError(log, "Unable to upsert payment", err)
		return err
	}

	log.Debug("Synced payment")

	return nil
}
