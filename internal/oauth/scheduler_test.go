package oauth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/booksync/quickbooks-connector/internal/config"
	"github.com/booksync/quickbooks-connector/internal/domain"
)

type fakeRealmLister struct {
	realmIDs []domain.RealmID
}

func (l *fakeRealmLister) ListRealmIDs(ctx context.Context) ([]domain.RealmID, error) {
	return l.realmIDs, nil
}

type fakeStatusProvider struct {
	statuses map[domain.RealmID]ConnectionStatus
}

func (p *fakeStatusProvider) GetStatus(ctx context.Context, realmID domain.RealmID) ConnectionStatus {
	return p.statuses[realmID]
}

type fakeRefreshRunner struct {
	mu       sync.Mutex
	err      error
	refreshs map[domain.RealmID]int
}

func newFakeRefreshRunner(err error) *fakeRefreshRunner {
	return &fakeRefreshRunner{err: err, refreshs: make(map[domain.RealmID]int)}
}

func (r *fakeRefreshRunner) Refresh(ctx context.Context, realmID domain.RealmID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshs[realmID]++
	return r.err
}

func (r *fakeRefreshRunner) refreshCount(realmID domain.RealmID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refreshs[realmID]
}

func (r *fakeRefreshRunner) setError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func buildSchedulerFixture(realms []domain.RealmID, statuses map[domain.RealmID]ConnectionStatus, refreshErr error) (*Scheduler, *fakeRefreshRunner) {
	cfg := config.GetConfig()
	cfg.SchedulerInterval = 5 * time.Millisecond
	cfg.SchedulerAlertThreshold = 3

	refresher := newFakeRefreshRunner(refreshErr)
	scheduler := NewScheduler(cfg, &fakeRealmLister{realmIDs: realms}, &fakeStatusProvider{statuses: statuses}, refresher)

	return scheduler, refresher
}

func TestSchedulerRefreshesOnlyRealmsInsideTheWindow(t *testing.T) {

	statuses := map[domain.RealmID]ConnectionStatus{
		"needs-refresh": {Connected: true, NeedsRefresh: true},
		"fresh":         {Connected: true, NeedsRefresh: false},
		"disconnected":  {Connected: false},
	}

	scheduler, refresher := buildSchedulerFixture(
		[]domain.RealmID{"needs-refresh", "fresh", "disconnected"}, statuses, nil)

	scheduler.runTick(context.TODO())

	if refresher.refreshCount("needs-refresh") != 1 {
		t.Fatalf("expected one refresh, got %d", refresher.refreshCount("needs-refresh"))
	}

	if refresher.refreshCount("fresh") != 0 {
		t.Fatal("refreshed a token outside the refresh window")
	}

	if refresher.refreshCount("disconnected") != 0 {
		t.Fatal("refreshed a disconnected realm")
	}
}

func TestSchedulerHealthEscalation(t *testing.T) {

	statuses := map[domain.RealmID]ConnectionStatus{
		"flaky": {Connected: true, NeedsRefresh: true},
	}

	scheduler, refresher := buildSchedulerFixture([]domain.RealmID{"flaky"}, statuses, errors.New("exchange failed"))

	if scheduler.HealthState("flaky") != healthHealthy {
		t.Fatal("expected a new realm to start out healthy")
	}

	scheduler.runTick(context.TODO())
	if scheduler.HealthState("flaky") != healthDegraded {
		t.Fatalf("expected degraded after one failure, got %s", scheduler.HealthState("flaky"))
	}

	scheduler.runTick(context.TODO())
	if scheduler.HealthState("flaky") != healthDegraded {
		t.Fatalf("expected degraded below the threshold, got %s", scheduler.HealthState("flaky"))
	}

	scheduler.runTick(context.TODO())
	if scheduler.HealthState("flaky") != healthAlerting {
		t.Fatalf("expected alerting at the threshold, got %s", scheduler.HealthState("flaky"))
	}

	refresher.setError(nil)

	scheduler.runTick(context.TODO())
	if scheduler.HealthState("flaky") != healthHealthy {
		t.Fatalf("expected a success to reset the health state, got %s", scheduler.HealthState("flaky"))
	}
}

func TestSchedulerSkipsInFlightRefresh(t *testing.T) {

	statuses := map[domain.RealmID]ConnectionStatus{
		"busy": {Connected: true, NeedsRefresh: true},
	}

	scheduler, _ := buildSchedulerFixture([]domain.RealmID{"busy"}, statuses, ErrRefreshInProgress)

	scheduler.runTick(context.TODO())

	// Losing the single-flight race is not a failure.
	if scheduler.HealthState("busy") != healthHealthy {
		t.Fatalf("an in-flight refresh was counted as a failure, health is %s", scheduler.HealthState("busy"))
	}
}

func TestSchedulerStopPreventsFurtherRefreshes(t *testing.T) {

	statuses := map[domain.RealmID]ConnectionStatus{
		"1234567890": {Connected: true, NeedsRefresh: true},
	}

	scheduler, refresher := buildSchedulerFixture([]domain.RealmID{"1234567890"}, statuses, nil)

	scheduler.Start()

	deadline := time.After(5 * time.Second)
	for refresher.refreshCount("1234567890") == 0 {
		select {
		case <-deadline:
			t.Fatal("scheduler never fired")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	scheduler.Stop()

	countAfterStop := refresher.refreshCount("1234567890")
	time.Sleep(50 * time.Millisecond)

	if refresher.refreshCount("1234567890") != countAfterStop {
		t.Fatal("a refresh fired after the scheduler was stopped")
	}
}

func TestSchedulerStopWithoutStart(t *testing.T) {
	scheduler, _ := buildSchedulerFixture(nil, nil, nil)

	// Must not panic or hang.
	scheduler.Stop()
}
