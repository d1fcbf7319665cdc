package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	"github.com/booksync/quickbooks-connector/internal/config"
	"github.com/booksync/quickbooks-connector/internal/connection_repository"
	"github.com/booksync/quickbooks-connector/internal/controller"
	"github.com/booksync/quickbooks-connector/internal/controller/api"
	"github.com/booksync/quickbooks-connector/internal/oauth"
	"github.com/booksync/quickbooks-connector/internal/platform/db"
	"github.com/booksync/quickbooks-connector/internal/platform/logger"
	"github.com/booksync/quickbooks-connector/internal/platform/utils"
	"github.com/booksync/quickbooks-connector/internal/qbo"
	"github.com/booksync/quickbooks-connector/internal/sync"

	"github.com/gorilla/mux"
)

func startApiServer(listenAddr string) {

	logger.InitLogger()
	defer logger.FlushLogger()

	logger.Log.Info("Starting QuickBooks-Connector api server")

	cfg := config.GetConfig()
	logger.Log.Info("QuickBooks-Connector configuration:\n", cfg)

	database, err := db.InitializeDatabaseConnection(cfg)
	if err != nil {
		logger.LogFatalError("Unable to connect to database", err)
	}

	tokenStore := buildTokenStore(cfg, database)

	qboClient := qbo.NewClient(cfg)

	stateAccessor := oauth.NewStateAccessor(cfg, tokenStore)
	refresher := oauth.NewRefresher(cfg, tokenStore)
	tester := oauth.NewTester(tokenStore, qboClient)

	eventLog, err := sync.NewSqlEventLog(cfg, database)
	if err != nil {
		logger.LogFatalError("Unable to create webhook event log", err)
	}

	registry := sync.NewRegistry(
		sync.NewCustomerHandler(cfg, database),
		sync.NewInvoiceHandler(cfg, database),
		sync.NewPaymentHandler(cfg, database))

	pipeline := sync.NewPipeline(tokenStore, qboClient, eventLog, registry)

	dispatcher, err := sync.NewSyncJobDispatcher(cfg, pipeline)
	if err != nil {
		logger.LogFatalError("Unable to create sync job dispatcher", err)
	}
	pipeline.SetDispatcher(dispatcher)

	payloadArchiver, err := controller.NewPayloadArchiver(cfg.PayloadArchiverImpl, cfg)
	if err != nil {
		logger.LogFatalError("Unable to create payload archiver", err)
	}

	apiMux := mux.NewRouter()

	monitoringServer := api.NewMonitoringServer(apiMux, cfg, database)
	monitoringServer.Routes()

	mgmtServer := api.NewManagementServer(stateAccessor, refresher, tester, tokenStore, apiMux, cfg)
	mgmtServer.Routes()

	webhookReceiver := api.NewWebhookReceiver(pipeline, payloadArchiver, apiMux, cfg)
	webhookReceiver.Routes()

	scheduler := oauth.NewScheduler(cfg, tokenStore, stateAccessor, refresher)
	scheduler.Start()

	apiSrv := utils.StartHTTPServer(listenAddr, "api", apiMux)

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-signalChan
	logger.Log.Info("Received signal to shutdown: ", sig)

	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HttpShutdownTimeout)
	defer cancel()

	utils.ShutdownHTTPServer(ctx, "api", apiSrv)

	logger.Log.Info("QuickBooks-Connector shutting down")
}

func buildTokenStore(cfg *config.Config, database *sql.DB) connection_repository.TokenStore {

	sqlStore, err := connection_repository.NewSqlTokenStore(cfg, database)
	if err != nil {
		logger.LogFatalError("Unable to create token store", err)
	}

	if cfg.ConnectionCacheSize <= 0 {
		return sqlStore
	}

	return connection_repository.NewCachedTokenStore(sqlStore, cfg.ConnectionCacheSize, cfg.ConnectionCacheTTL)
}
