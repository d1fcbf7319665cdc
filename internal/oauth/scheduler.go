package oauth

import (
	"context"
	"sync"
	"time"

	"github.com/booksync/quickbooks-connector/internal/config"
	"github.com/booksync/quickbooks-connector/internal/domain"
	"github.com/booksync/quickbooks-connector/internal/platform/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

type StatusProvider interface {
	GetStatus(ctx context.Context, realmID domain.RealmID) ConnectionStatus
}

type RefreshRunner interface {
	Refresh(ctx context.Context, realmID domain.RealmID) error
}

type RealmLister interface {
	ListRealmIDs(ctx context.Context) ([]domain.RealmID, error)
}

// realmHealth tracks consecutive refresh failures for one realm:
// healthy -> degraded after the first failure -> alerting once the
// configured threshold is crossed.  A successful refresh resets it.
type realmHealth struct {
	consecutiveFailures int
}

const (
	healthHealthy  = "healthy"
	healthDegraded = "degraded"
	healthAlerting = "alerting"
)

func (h *realmHealth) state(alertThreshold int) string {
	switch {
	case h.consecutiveFailures == 0:
		return healthHealthy
	case h.consecutiveFailures < alertThreshold:
		return healthDegraded
	default:
		return healthAlerting
	}
}

type schedulerMetrics struct {
	tickCounter              prometheus.Counter
	consecutiveFailuresGauge *prometheus.GaugeVec
}

var schedMetrics = initializeSchedulerMetrics()

func initializeSchedulerMetrics() *schedulerMetrics {
	m := new(schedulerMetrics)

	m.tickCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quickbooks_connector_refresh_scheduler_tick_counter",
		Help: "The number of refresh scheduler ticks",
	})

	m.consecutiveFailuresGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "quickbooks_connector_refresh_consecutive_failures",
		Help: "The number of consecutive refresh failures per realm",
	}, []string{"realm_id"})

	return m
}

// Scheduler is the periodic driver that keeps every realm's access token
// inside the refresh buffer.  One instance per process.
type Scheduler struct {
	interval       time.Duration
	alertThreshold int

	realms    RealmLister
	status    StatusProvider
	refresher RefreshRunner

	mu     sync.Mutex
	health map[domain.RealmID]*realmHealth

	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(cfg *config.Config, realms RealmLister, status StatusProvider, refresher RefreshRunner) *Scheduler {
	return &Scheduler{
		interval:       cfg.SchedulerInterval,
		alertThreshold: cfg.SchedulerAlertThreshold,
		realms:         realms,
		status:         status,
		refresher:      refresher,
		health:         make(map[domain.RealmID]*realmHealth),
	}
}

// Start launches the ticker goroutine.  Calling Start on a running
// scheduler is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	logger.Log.Info("Starting token refresh scheduler (interval ", s.interval, ")")

	go s.run(ctx)
}

// Stop cancels the pending tick and waits for the ticker goroutine to
// exit, so no refresh fires after shutdown.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done

	logger.Log.Info("Stopped token refresh scheduler")
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runTick(ctx)
		}
	}
}

func (s *Scheduler) runTick(ctx context.Context) {

	schedMetrics.tickCounter.Inc()

	realmIDs, err := s.realms.ListRealmIDs(ctx)
	if err != nil {
		logger.LogError("Unable to list realms for refresh check", err)
		return
	}

	for _, realmID := range realmIDs {
		s.checkRealm(ctx, realmID)
	}
}

func (s *Scheduler) checkRealm(ctx context.Context, realmID domain.RealmID) {

	log := logger.Log.WithFields(logrus.Fields{"realm_id": realmID})

	status := s.status.GetStatus(ctx, realmID)

	if !status.Connected {
		return
	}

	if !status.NeedsRefresh {
		log.Debug("Token is outside the refresh window")
		return
	}

	err := s.refresher.Refresh(ctx, realmID)

	if err == ErrRefreshInProgress {
		log.Debug("Refresh already in flight, skipping this tick")
		return
	}

	if err != nil {
		s.recordFailure(log, realmID, err)
		return
	}

	s.recordSuccess(realmID)
}

func (s *Scheduler) recordFailure(log *logrus.Entry, realmID domain.RealmID, err error) {
	s.mu.Lock()
	health, found := s.health[realmID]
	if !found {
		health = &realmHealth{}
		s.health[realmID] = health
	}
	health.consecutiveFailures++
	failures := health.consecutiveFailures
	state := health.state(s.alertThreshold)
	s.mu.Unlock()

	schedMetrics.consecutiveFailuresGauge.With(prometheus.Labels{"realm_id": realmID.String()}).Set(float64(failures))

	log = log.WithFields(logrus.Fields{"error": err, "consecutive_failures": failures, "health": state})

	if state == healthAlerting {
		log.Error("Token refresh is failing persistently")
		return
	}

	log.Warn("Token refresh failed, will retry on the next tick")
}

func (s *Scheduler) recordSuccess(realmID domain.RealmID) {
	s.mu.Lock()
	delete(s.health, realmID)
	s.mu.Unlock()

	schedMetrics.consecutiveFailuresGauge.With(prometheus.Labels{"realm_id": realmID.String()}).Set(0)
}

// HealthState reports the current failure state for a realm.
func (s *Scheduler) HealthState(realmID domain.RealmID) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	health, found := s.health[realmID]
	if !found {
		return healthHealthy
	}

	return health.state(s.alertThreshold)
}
