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

type remoteInvoice struct {
	DocNumber   string         `json:"DocNumber"`
	TxnDate     string         `json:"TxnDate"`
	DueDate     string         `json:"DueDate"`
	TotalAmt    float64        `json:"TotalAmt"`
	Balance     float64        `json:"Balance"`
	EmailStatus string         `json:"EmailStatus"`
	SyncToken   string         `json:"SyncToken"`
	CustomerRef referenceValue `json:"CustomerRef"`
}

type InvoiceHandler struct {
	database     *sql.DB
	queryTimeout time.Duration
}

func NewInvoiceHandler(cfg *config.Config, database *sql.DB) *InvoiceHandler {
	return &InvoiceHandler{
		database:     database,
		queryTimeout: cfg.ConnectionDatabaseQueryTimeout,
	}
}

func (h *InvoiceHandler) Kind() domain.EntityKind {
	return domain.EntityInvoice
}

func (h *InvoiceHandler) Upsert(ctx context.Context, remoteID string, entity json.RawMessage) error {

	log := logger.Log.WithFields(logrus.Fields{"entity_name": domain.EntityInvoice, "remote_id": remoteID})

	var remote remoteInvoice
	if err := json.Unmarshal(entity, &remote); err != nil {
		logger.LogWithError(log, "Unable to parse remote invoice", err)
		return err
	}

	dueDate := parseQboDate(remote.DueDate)
	status := DeriveInvoiceStatus(remote.Balance, remote.TotalAmt, dueDate, remote.EmailStatus, time.Now())

	ctx, cancel := context.WithTimeout(ctx, h.queryTimeout)
	defer cancel()

	statement, err := h.database.Prepare(
		`INSERT INTO quickbooks_invoices
           (remote_id, doc_number, customer_id, txn_date, due_date, total_amt, balance, email_status, status, sync_token, metadata, last_synced_at)
           VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
           ON CONFLICT (remote_id) DO UPDATE SET
             doc_number = EXCLUDED.doc_number,
             customer_id = EXCLUDED.customer_id,
             txn_date = EXCLUDED.txn_date,
             due_date = EXCLUDED.due_date,
             total_amt = EXCLUDED.total_amt,
             balance = EXCLUDED.balance,
             email_status = EXCLUDED.email_status,
             status = EXCLUDED.status,
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
		nullableString(remote.DocNumber),
		nullableString(remote.CustomerRef.Value),
		nullableTime(parseQboDate(remote.TxnDate)),
		nullableTime(dueDate),
		remote.TotalAmt,
		remote.Balance,
		nullableString(remote.EmailStatus),
		status,
		remote.SyncToken,
		[]byte(entity))
	if err != nil {
		logger.LogWithError(log, "Unable to upsert invoice", err)
		return err
	}

	log.WithFields(logrus.Fields{"status": status}).Debug("Synced invoice")

	return nil
}
