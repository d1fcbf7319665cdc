package sync

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/booksync/quickbooks-connector/internal/config"
	"github.com/booksync/quickbooks-connector/internal/domain"
	"github.com/booksync/quickbooks-connector/internal/platform/logger"
	"github.com/booksync/quickbooks-connector/internal/platform/queue"

	kafka "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Dispatcher hands a logged entity change to whatever executes the
// synchronization.
type Dispatcher interface {
	Dispatch(ctx context.Context, eventID string, change domain.EntityChange) error
}

type ChangeProcessor interface {
	ProcessChange(ctx context.Context, eventID string, change domain.EntityChange) error
}

// SyncJob is the message exchanged between the webhook receiver and the
// sync worker when dispatch runs over Kafka.
type SyncJob struct {
	EventID    string `json:"event_id"`
	RealmID    string `json:"realm_id"`
	EntityName string `json:"entity_name"`
	EntityID   string `json:"entity_id"`
	Operation  string `json:"operation"`
}

func NewSyncJobDispatcher(cfg *config.Config, processor ChangeProcessor) (Dispatcher, error) {
	switch cfg.SyncDispatchImpl {
	case "inline":
		return &InlineDispatcher{processor: processor}, nil
	case "kafka":
		kafkaProducerCfg := &queue.ProducerConfig{
			Brokers:    cfg.KafkaBrokers,
			Topic:      cfg.KafkaSyncTopic,
			BatchSize:  cfg.KafkaSyncBatchSize,
			BatchBytes: cfg.KafkaSyncBatchBytes,
			Balancer:   "hash",
			SaslConfig: &queue.SaslConfig{
				SaslMechanism: cfg.KafkaSASLMechanism,
				SaslUsername:  cfg.KafkaUsername,
				SaslPassword:  cfg.KafkaPassword,
				KafkaCA:       cfg.KafkaCA,
			},
		}
		kafkaProducer := queue.StartProducer(kafkaProducerCfg)
		return &KafkaDispatcher{writer: kafkaProducer}, nil
	default:
		return nil, errors.New("Invalid SyncDispatchImpl impl requested: " + cfg.SyncDispatchImpl)
	}
}

// InlineDispatcher runs the synchronization within the webhook request.
// Processing failures are already recorded on the event row, so they are
// swallowed here and the provider is not asked to redeliver.
type InlineDispatcher struct {
	processor ChangeProcessor
}

func (d *InlineDispatcher) Dispatch(ctx context.Context, eventID string, change domain.EntityChange) error {
	d.processor.ProcessChange(ctx, eventID, change)
	return nil
}

// KafkaDispatcher defers the synchronization to the sync worker.  Write
// failures propagate so the receiver returns an error and the provider
// redelivers; the idempotent upsert makes redelivery safe.
type KafkaDispatcher struct {
	writer *kafka.Writer
}

func (d *KafkaDispatcher) Dispatch(ctx context.Context, eventID string, change domain.EntityChange) error {

	job := SyncJob{
		EventID:    eventID,
		RealmID:    string(change.RealmID),
		EntityName: change.Name.String(),
		EntityID:   change.ID,
		Operation:  string(change.Operation),
	}

	message, err := json.Marshal(job)
	if err != nil {
		return err
	}

	logger.Log.WithFields(logrus.Fields{"event_id": eventID, "realm_id": change.RealmID}).Debug("Dispatching sync job to kafka")

	// Keyed by realm so changes from one company stay ordered within
	// a partition.
	return d.writer.WriteMessages(ctx,
		kafka.Message{
			Key:   []byte(change.RealmID),
			Value: message,
		})
}

func (d *KafkaDispatcher) Close() error {
	return d.writer.Close()
}
