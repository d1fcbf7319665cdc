package sync

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/booksync/quickbooks-connector/internal/connection_repository"
	"github.com/booksync/quickbooks-connector/internal/domain"
	"github.com/booksync/quickbooks-connector/internal/platform/logger"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

type EntityFetcher interface {
	FetchEntity(ctx context.Context, accessToken string, realmID domain.RealmID, kind domain.EntityKind, entityID string) (json.RawMessage, error)
}

type pipelineMetrics struct {
	ingestedEventCounter  *prometheus.CounterVec
	processedEventCounter *prometheus.CounterVec
	failedEventCounter    *prometheus.CounterVec
}

var metrics = initializePipelineMetrics()

func initializePipelineMetrics() *pipelineMetrics {
	m := new(pipelineMetrics)

	m.ingestedEventCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quickbooks_connector_webhook_event_ingested_counter",
		Help: "The number of webhook entity changes ingested",
	}, []string{"entity_name"})

	m.processedEventCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quickbooks_connector_webhook_event_processed_counter",
		Help: "The number of webhook entity changes synchronized",
	}, []string{"entity_name"})

	m.failedEventCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quickbooks_connector_webhook_event_failed_counter",
		Help: "The number of webhook entity changes that failed to synchronize",
	}, []string{"entity_name"})

	return m
}

// Pipeline turns authenticated webhook envelopes into audit rows and,
// for registered kinds, idempotent local copies of the remote entities.
type Pipeline struct {
	store      connection_repository.TokenStore
	fetcher    EntityFetcher
	events     EventLog
	registry   *Registry
	dispatcher Dispatcher
}

func NewPipeline(store connection_repository.TokenStore, fetcher EntityFetcher, events EventLog, registry *Registry) *Pipeline {
	return &Pipeline{
		store:    store,
		fetcher:  fetcher,
		events:   events,
		registry: registry,
	}
}

// SetDispatcher wires the dispatch strategy.  The inline dispatcher
// needs the pipeline itself, so this cannot happen in NewPipeline.
func (p *Pipeline) SetDispatcher(dispatcher Dispatcher) {
	p.dispatcher = dispatcher
}

// Ingest appends one event row per entity change and hands registered
// kinds to the dispatcher.  The returned error covers ingestion and
// dispatch only; processing failures are recorded on the event rows.
func (p *Pipeline) Ingest(ctx context.Context, envelope Envelope) error {

	var firstErr error

	for _, notification := range envelope.EventNotifications {
		for _, entity := range notification.DataChangeEvent.Entities {

			change := domain.EntityChange{
				RealmID:   domain.RealmID(notification.RealmID),
				Name:      domain.EntityKind(entity.Name),
				ID:        entity.ID,
				Operation: domain.Operation(entity.Operation),
			}

			log := logger.Log.WithFields(logrus.Fields{
				"realm_id":    change.RealmID,
				"entity_name": change.Name,
				"entity_id":   change.ID,
				"operation":   change.Operation})

			payload, err := json.Marshal(entity)
			if err != nil {
				logger.LogWithError(log, "Unable to marshal entity notification", err)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}

			eventID, err := p.events.Append(ctx, change, payload)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}

			metrics.ingestedEventCounter.With(prometheus.Labels{"entity_name": change.Name.String()}).Inc()

			if _, registered := p.registry.Lookup(change.Name); !registered {
				log.Debug("Entity kind is not synchronized, logged only")
				continue
			}

			if err := p.dispatcher.Dispatch(ctx, eventID, change); err != nil {
				logger.LogWithError(log, "Unable to dispatch sync job", err)
				if firstErr == nil {
					firstErr = err
				}
			}
		}
	}

	return firstErr
}

// ProcessChange performs the fetch/map/upsert for one entity change and
// flips the event row to processed, or records the failure on it.
// Reprocessing the same change converges on the same row.
func (p *Pipeline) ProcessChange(ctx context.Context, eventID string, change domain.EntityChange) error {

	log := logger.Log.WithFields(logrus.Fields{
		"event_id":    eventID,
		"realm_id":    change.RealmID,
		"entity_name": change.Name,
		"entity_id":   change.ID})

	handler, registered := p.registry.Lookup(change.Name)
	if !registered {
		err := errors.New("no handler registered for entity kind " + change.Name.String())
		p.failEvent(ctx, log, eventID, change, err)
		return err
	}

	record, err := p.store.FindConnectionByRealmID(ctx, change.RealmID)
	if err != nil {
		p.failEvent(ctx, log, eventID, change, err)
		return err
	}

	entity, err := p.fetcher.FetchEntity(ctx, record.AccessToken, change.RealmID, change.Name, change.ID)
	if err != nil {
		p.failEvent(ctx, log, eventID, change, err)
		return err
	}

	if err := handler.Upsert(ctx, change.ID, entity); err != nil {
		p.failEvent(ctx, log, eventID, change, err)
		return err
	}

	if err := p.events.MarkProcessed(ctx, eventID); err != nil {
		return err
	}

	metrics.processedEventCounter.With(prometheus.Labels{"entity_name": change.Name.String()}).Inc()

	log.Debug("Processed entity change")

	return nil
}

func (p *Pipeline) failEvent(ctx context.Context, log *logrus.Entry, eventID string, change domain.EntityChange, cause error) {
	logger.LogWithError(log, "Unable to process entity change", cause)

	metrics.failedEventCounter.With(prometheus.Labels{"entity_name": change.Name.String()}).Inc()

	if err := p.events.MarkFailed(ctx, eventID, describeSyncError(cause)); err != nil {
		logger.LogWithError(log, "Unable to record entity change failure", err)
	}
}

// describeSyncError builds the error_message recorded on the event row,
// classifying Postgres failures so operators can separate conflicts from
// transient database trouble.
func describeSyncError(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pgerrcode.IsIntegrityConstraintViolation(string(pqErr.Code)) {
			return "persistence conflict: " + err.Error()
		}
		return "persistence failure: " + err.Error()
	}

	return err.Error()
}
