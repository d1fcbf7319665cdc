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

type remoteCustomer struct {
	DisplayName      string  `json:"DisplayName"`
	CompanyName      string  `json:"CompanyName"`
	Active           bool    `json:"Active"`
	Balance          float64 `json:"Balance"`
	SyncToken        string  `json:"SyncToken"`
	PrimaryEmailAddr struct {
		Address string `json:"Address"`
	} `json:"PrimaryEmailAddr"`
	PrimaryPhone struct {
		FreeFormNumber string `json:"FreeFormNumber"`
	} `json:"PrimaryPhone"`
}

type CustomerHandler struct {
	database     *sql.DB
	queryTimeout time.Duration
}

func NewCustomerHandler(cfg *config.Config, database *sql.DB) *CustomerHandler {
	return &CustomerHandler{
		database:     database,
		queryTimeout: cfg.ConnectionDatabaseQueryTimeout,
	}
}

func (h *CustomerHandler) Kind() domain.EntityKind {
	return domain.EntityCustomer
}

func (h *CustomerHandler) Upsert(ctx context.Context, remoteID string, entity json.RawMessage) error {

	log := logger.Log.WithFields(logrus.Fields{"entity_name": domain.EntityCustomer, "remote_id": remoteID})

	var remote remoteCustomer
	if err := json.Unmarshal(entity, &remote); err != nil {
		logger.LogWithError(log, "Unable to parse remote customer", err)
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, h.queryTimeout)
	defer cancel()

	statement, err := h.database.Prepare(
		`INSERT INTO quickbooks_customers
           (remote_id, display_name, company_name, email, phone, active, balance, sync_token, metadata, last_synced_at)
           VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
           ON CONFLICT (remote_id) DO UPDATE SET
             display_name = EXCLUDED.display_name,
             company_name = EXCLUDED.company_name,
             email = EXCLUDED.email,
             phone = EXCLUDED.phone,
             active = EXCLUDED.active,
             balance = EXCLUDED.balance,
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
		remote.DisplayName,
		nullableString(remote.CompanyName),
		nullableString(remote.PrimaryEmailAddr.Address),
		nullableString(remote.PrimaryPhone.FreeFormNumber),
		remote.Active,
		remote.Balance,
		remote.SyncToken,
		[]byte(entity))
	if err != nil {
		logger.LogWithError(log, "Unable to upsert customer", err)
		return err
	}

	log.Debug("Synced customer")

	return nil
}
