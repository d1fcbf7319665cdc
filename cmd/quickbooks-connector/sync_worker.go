package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/booksync/quickbooks-connector/internal/config"
	"github.com/booksync/quickbooks-connector/internal/domain"
	"github.com/booksync/quickbooks-connector/internal/platform/db"
	"github.com/booksync/quickbooks-connector/internal/platform/logger"
	"github.com/booksync/quickbooks-connector/internal/platform/queue"
	"github.com/booksync/quickbooks-connector/internal/qbo"
	"github.com/booksync/quickbooks-connector/internal/sync"

	kafka "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

func startSyncWorker() {

	logger.InitLogger()
	defer logger.FlushLogger()

	logger.Log.Info("Starting QuickBooks-Connector sync worker")

	cfg := config.GetConfig()
	logger.Log.Info("QuickBooks-Connector configuration:\n", cfg)

	database, err := db.InitializeDatabaseConnection(cfg)
	if err != nil {
		logger.LogFatalError("Unable to connect to database", err)
	}

	tokenStore := buildTokenStore(cfg, database)

	qboClient := qbo.NewClient(cfg)

	eventLog, err := sync.NewSqlEventLog(cfg, database)
	if err != nil {
		logger.LogFatalError("Unable to create webhook event log", err)
	}

	registry := sync.NewRegistry(
		sync.NewCustomerHandler(cfg, database),
		sync.NewInvoiceHandler(cfg, database),
		sync.NewPaymentHandler(cfg, database))

	pipeline := sync.NewPipeline(tokenStore, qboClient, eventLog, registry)

	kafkaReader := queue.StartConsumer(&queue.ConsumerConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaSyncTopic,
		GroupID: cfg.KafkaSyncGroupID,
		SaslConfig: &queue.SaslConfig{
			SaslMechanism: cfg.KafkaSASLMechanism,
			SaslUsername:  cfg.KafkaUsername,
			SaslPassword:  cfg.KafkaPassword,
			KafkaCA:       cfg.KafkaCA,
		},
	})

	ctx, cancel := context.WithCancel(context.Background())

	workerDone := make(chan struct{})
	go consumeSyncJobs(ctx, kafkaReader, pipeline, workerDone)

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-signalChan
	logger.Log.Info("Received signal to shutdown: ", sig)

	cancel()

	if err := kafkaReader.Close(); err != nil {
		logger.LogError("Unable to close kafka reader", err)
	}

	<-workerDone

	logger.Log.Info("QuickBooks-Connector sync worker shutting down")
}

func consumeSyncJobs(ctx context.Context, reader *kafka.Reader, pipeline *sync.Pipeline, done chan struct{}) {
	defer close(done)

	for {
		message, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.LogError("Unable to fetch sync job message", err)
			return
		}

		var job sync.SyncJob
		if err := json.Unmarshal(message.Value, &job); err != nil {
			// A malformed job can never succeed, commit it and move on.
			logger.LogError("Unable to parse sync job message", err)
			commitMessage(ctx, reader, message)
			continue
		}

		change := domain.EntityChange{
			RealmID:   domain.RealmID(job.RealmID),
			Name:      domain.EntityKind(job.EntityName),
			ID:        job.EntityID,
			Operation: domain.Operation(job.Operation),
		}

		// Failures are recorded on the event row by the pipeline, so the
		// job is committed either way.  Redelivery would only repeat the
		// same recorded failure.
		if err := pipeline.ProcessChange(ctx, job.EventID, change); err != nil {
			logger.Log.WithFields(logrus.Fields{"error": err, "event_id": job.EventID}).Warn("Sync job failed")
		}

		commitMessage(ctx, reader, message)
	}
}

func commitMessage(ctx context.Context, reader *kafka.Reader, message kafka.Message) {
	if err := reader.CommitMessages(ctx, message); err != nil {
		logger.LogError("Unable to commit sync job message", err)
	}
}
