package oauth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/booksync/quickbooks-connector/internal/config"
	"github.com/booksync/quickbooks-connector/internal/connection_repository"
	"github.com/booksync/quickbooks-connector/internal/domain"
	"github.com/booksync/quickbooks-connector/internal/platform/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// ErrRefreshInProgress is returned to a caller that lost the single-flight
// race.  It means "try again later", not "wait for the winner".
var ErrRefreshInProgress = errors.New("token refresh already in progress")

type refresherMetrics struct {
	refreshAttemptCounter   *prometheus.CounterVec
	refreshFailureCounter   *prometheus.CounterVec
	tokenExchangeDuration   prometheus.Histogram
	duplicateRefreshCounter prometheus.Counter
}

var refMetrics = initializeRefresherMetrics()

func initializeRefresherMetrics() *refresherMetrics {
	m := new(refresherMetrics)

	m.refreshAttemptCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quickbooks_connector_token_refresh_attempt_counter",
		Help: "The number of token refresh attempts per realm",
	}, []string{"realm_id"})

	m.refreshFailureCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quickbooks_connector_token_refresh_failure_counter",
		Help: "The number of failed token refresh attempts per realm",
	}, []string{"realm_id"})

	m.tokenExchangeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "quickbooks_connector_token_exchange_duration",
		Help: "The amount of time it took to exchange a refresh token",
	})

	m.duplicateRefreshCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quickbooks_connector_duplicate_refresh_counter",
		Help: "The number of refresh calls rejected by the single-flight guard",
	})

	return m
}

// Refresher exchanges a realm's refresh token for a new token pair and
// persists the result as one whole-record write.  The in-flight guard is
// process-local; it does not protect against a second process instance.
type Refresher struct {
	store           connection_repository.TokenStore
	oauthConfig     *oauth2.Config
	exchangeTimeout time.Duration

	mu       sync.Mutex
	inFlight map[domain.RealmID]struct{}
}

func NewRefresher(cfg *config.Config, store connection_repository.TokenStore) *Refresher {
	return &Refresher{
		store: store,
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.OAuthClientId,
			ClientSecret: cfg.OAuthClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL: cfg.OAuthTokenUrl,
			},
		},
		exchangeTimeout: cfg.TokenExchangeTimeout,
		inFlight:        make(map[domain.RealmID]struct{}),
	}
}

func (r *Refresher) Refresh(ctx context.Context, realmID domain.RealmID) error {

	if !r.tryAcquire(realmID) {
		refMetrics.duplicateRefreshCounter.Inc()
		return ErrRefreshInProgress
	}
	defer r.release(realmID)

	log := logger.Log.WithFields(logrus.Fields{"realm_id": realmID})

	refMetrics.refreshAttemptCounter.With(prometheus.Labels{"realm_id": realmID.String()}).Inc()

	record, err := r.store.FindConnectionByRealmID(ctx, realmID)
	if err != nil {
		logger.LogWithError(log, "Unable to load connection record for refresh", err)
		r.recordFailure(realmID)
		return err
	}

	token, err := r.exchange(ctx, record.RefreshToken)
	if err != nil {
		logger.LogWithError(log, "Token exchange failed", err)
		r.recordFailure(realmID)
		return err
	}

	if token.AccessToken == "" || token.Expiry.IsZero() {
		err = errors.New("token exchange returned an incomplete token")
		logger.LogWithError(log, "Token exchange failed", err)
		r.recordFailure(realmID)
		return err
	}

	// The stored record is only replaced once the exchange has fully
	// succeeded; any failure above leaves the old pair untouched.
	record.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		record.RefreshToken = token.RefreshToken
	}
	record.ExpiresAt = token.Expiry
	record.UpdatedAt = time.Now()

	if err := r.store.Upsert(ctx, record); err != nil {
		logger.LogWithError(log, "Unable to persist refreshed token pair", err)
		r.recordFailure(realmID)
		return err
	}

	log.WithFields(logrus.Fields{"expires_at": record.ExpiresAt}).Info("Refreshed token pair")

	return nil
}

func (r *Refresher) exchange(ctx context.Context, refreshToken string) (*oauth2.Token, error) {

	callDurationTimer := prometheus.NewTimer(refMetrics.tokenExchangeDuration)
	defer callDurationTimer.ObserveDuration()

	ctx, cancel := context.WithTimeout(ctx, r.exchangeTimeout)
	defer cancel()

	// A token source seeded with only the refresh token always performs
	// a real exchange instead of handing back a cached access token.
	tokenSource := r.oauthConfig.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})

	return tokenSource.Token()
}

func (r *Refresher) recordFailure(realmID domain.RealmID) {
	refMetrics.refreshFailureCounter.With(prometheus.Labels{"realm_id": realmID.String()}).Inc()
}

func (r *Refresher) tryAcquire(realmID domain.RealmID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, found := r.inFlight[realmID]; found {
		return false
	}

	r.inFlight[realmID] = struct{}{}
	return true
}

func (r *Refresher) release(realmID domain.RealmID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.inFlight, realmID)
}
