package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Chromeninja/test-squadron-discord-bot-sub002/coordinator"
	"github.com/Chromeninja/test-squadron-discord-bot-sub002/database"
	"github.com/Chromeninja/test-squadron-discord-bot-sub002/models"
	"github.com/Chromeninja/test-squadron-discord-bot-sub002/rsi"
)

type fakeSource struct {
	snaps map[string]*models.VerificationSnapshot
	errs  map[string]error
	calls []string
}

func (f *fakeSource) GetSnapshot(ctx context.Context, userID, handle string, opts rsi.Options) (*models.VerificationSnapshot, error) {
	f.calls = append(f.calls, userID)
	if err, ok := f.errs[userID]; ok {
		return nil, err
	}
	if snap, ok := f.snaps[userID]; ok {
		return snap, nil
	}
	return &models.VerificationSnapshot{UserID: userID, Handle: handle, Status: models.StatusNonMember}, nil
}

type fakeStore struct {
	due        []database.DueUser
	failCounts map[string]int
	scheduled  map[string]time.Time
	storeErr   error
	ops        []string
}

func newFakeStore(due ...database.DueUser) *fakeStore {
	return &fakeStore{
		due:        due,
		failCounts: make(map[string]int),
		scheduled:  make(map[string]time.Time),
	}
}

func (f *fakeStore) GetDueUsers(now time.Time, limit int) ([]database.DueUser, error) {
	f.ops = append(f.ops, "due")
	if len(f.due) > limit {
		return f.due[:limit], nil
	}
	return f.due, nil
}

func (f *fakeStore) GetFailCount(userID string) (int, error) {
	return f.failCounts[userID], nil
}

func (f *fakeStore) SetFailCount(userID string, count int) error {
	f.ops = append(f.ops, fmt.Sprintf("failcount:%s=%d", userID, count))
	f.failCounts[userID] = count
	return nil
}

func (f *fakeStore) ScheduleNextCheck(userID string, at time.Time) error {
	f.ops = append(f.ops, "schedule:"+userID)
	f.scheduled[userID] = at
	return nil
}

func (f *fakeStore) StoreSnapshot(snap *models.VerificationSnapshot) error {
	f.ops = append(f.ops, "store:"+snap.UserID)
	return f.storeErr
}

type fakeSync struct {
	ops     *[]string
	applied []string
}

func (f *fakeSync) Apply(ctx context.Context, snap *models.VerificationSnapshot, batchSize, maxConcurrency int) []SyncResult {
	*f.ops = append(*f.ops, "sync:"+snap.UserID)
	f.applied = append(f.applied, snap.UserID)
	return []SyncResult{{GuildID: "g1"}}
}

type fakeRemediation struct {
	handled []string
}

func (f *fakeRemediation) HandleNotFound(ctx context.Context, userID, handle string) error {
	f.handled = append(f.handled, userID)
	return nil
}

func testConfig() models.AutoRecheckConfig {
	var cfg models.AutoRecheckConfig
	cfg.Enabled = true
	cfg.IntervalHours = 24
	cfg.Batch.RunEveryMinutes = 60
	cfg.Batch.MaxUsersPerRun = 10
	cfg.Backoff.BaseMinutes = 180
	cfg.Backoff.MaxMinutes = 1440
	return cfg
}

func TestBackoffDelay(t *testing.T) {
	cases := []struct {
		failCount int
		want      time.Duration
	}{
		{1, 180 * time.Minute},
		{2, 360 * time.Minute},
		{3, 720 * time.Minute},
		{4, 1440 * time.Minute},
		{10, 1440 * time.Minute},
		{100, 1440 * time.Minute},
		{0, 180 * time.Minute},
	}
	for _, c := range cases {
		if got := BackoffDelay(c.failCount, 180, 1440); got != c.want {
			t.Errorf("BackoffDelay(%d) = %s, want %s", c.failCount, got, c.want)
		}
	}
}

func TestCycleDefersWhenGateHeld(t *testing.T) {
	store := newFakeStore(database.DueUser{UserID: "u1", Handle: "h1"})
	gate := &coordinator.Gate{}
	r := NewRecheck(testConfig(), &fakeSource{}, store, nil, nil, gate)

	gate.Acquire()
	defer gate.Release()

	r.RunCycle(context.Background())
	if len(store.ops) != 0 {
		t.Fatalf("deferred cycle must do nothing, got ops %v", store.ops)
	}
}

func TestNotFoundTriggersRemediation(t *testing.T) {
	store := newFakeStore(database.DueUser{UserID: "u1", Handle: "ghost"})
	source := &fakeSource{errs: map[string]error{
		"u1": fmt.Errorf("citizen page: %w", rsi.ErrHandleNotFound),
	}}
	remediation := &fakeRemediation{}
	r := NewRecheck(testConfig(), source, store, nil, remediation, &coordinator.Gate{})

	r.RunCycle(context.Background())

	if len(remediation.handled) != 1 || remediation.handled[0] != "u1" {
		t.Fatalf("remediation handled %v, want [u1]", remediation.handled)
	}
	// Not-found is not a transient failure: no backoff bookkeeping.
	if store.failCounts["u1"] != 0 {
		t.Fatalf("fail count = %d, want 0", store.failCounts["u1"])
	}
	if _, ok := store.scheduled["u1"]; ok {
		t.Fatal("no retry should be scheduled for a vanished handle")
	}
}

func TestTransientFailureSchedulesBackoff(t *testing.T) {
	store := newFakeStore(database.DueUser{UserID: "u1", Handle: "flaky"})
	store.failCounts["u1"] = 2
	source := &fakeSource{snaps: map[string]*models.VerificationSnapshot{
		"u1": {UserID: "u1", Handle: "flaky", Status: models.StatusNonMember, Error: "fetch failed"},
	}}
	r := NewRecheck(testConfig(), source, store, nil, nil, &coordinator.Gate{})

	now := time.Unix(1700000000, 0)
	r.now = func() time.Time { return now }

	r.RunCycle(context.Background())

	if store.failCounts["u1"] != 3 {
		t.Fatalf("fail count = %d, want 3", store.failCounts["u1"])
	}
	// Third consecutive failure: min(180*2^2, 1440) = 720 minutes.
	want := now.Add(720 * time.Minute)
	if got := store.scheduled["u1"]; !got.Equal(want) {
		t.Fatalf("next retry = %s, want %s", got, want)
	}
}

func TestSuccessAppliesSyncBeforePersisting(t *testing.T) {
	store := newFakeStore(database.DueUser{UserID: "u1", Handle: "Pilot"})
	store.failCounts["u1"] = 2
	snap := &models.VerificationSnapshot{
		UserID: "u1", Handle: "Pilot",
		MainOrgs: []string{"test squadron"},
	}
	snap.Derive()
	source := &fakeSource{snaps: map[string]*models.VerificationSnapshot{"u1": snap}}
	guildSync := &fakeSync{ops: &store.ops}
	r := NewRecheck(testConfig(), source, store, guildSync, nil, &coordinator.Gate{})

	now := time.Unix(1700000000, 0)
	r.now = func() time.Time { return now }

	r.RunCycle(context.Background())

	want := []string{"due", "sync:u1", "store:u1", "failcount:u1=0", "schedule:u1"}
	if fmt.Sprint(store.ops) != fmt.Sprint(want) {
		t.Fatalf("ops = %v, want %v", store.ops, want)
	}
	if got := store.scheduled["u1"]; !got.Equal(now.Add(24 * time.Hour)) {
		t.Fatalf("next check = %s, want %s", got, now.Add(24*time.Hour))
	}
}

func TestPersistConflictSkipsUser(t *testing.T) {
	store := newFakeStore(database.DueUser{UserID: "u1", Handle: "Pilot"})
	store.storeErr = fmt.Errorf("handle taken: %w", database.ErrHandleConflict)
	snap := &models.VerificationSnapshot{UserID: "u1", Handle: "Pilot", MainOrgs: []string{"test squadron"}}
	snap.Derive()
	source := &fakeSource{snaps: map[string]*models.VerificationSnapshot{"u1": snap}}
	r := NewRecheck(testConfig(), source, store, nil, nil, &coordinator.Gate{})

	now := time.Unix(1700000000, 0)
	r.now = func() time.Time { return now }

	r.RunCycle(context.Background())

	// Conflict: logged and skipped, no backoff, fail count untouched.
	if store.failCounts["u1"] != 0 {
		t.Fatalf("fail count = %d, want 0", store.failCounts["u1"])
	}
	// The user is rescheduled at the normal interval, not retried in a loop.
	if got := store.scheduled["u1"]; !got.Equal(now.Add(24 * time.Hour)) {
		t.Fatalf("next check = %s, want %s", got, now.Add(24*time.Hour))
	}
}

func TestCycleProcessesUsersInOrder(t *testing.T) {
	store := newFakeStore(
		database.DueUser{UserID: "u1", Handle: "h1"},
		database.DueUser{UserID: "u2", Handle: "h2"},
		database.DueUser{UserID: "u3", Handle: "h3"},
	)
	source := &fakeSource{}
	r := NewRecheck(testConfig(), source, store, nil, nil, &coordinator.Gate{})

	r.RunCycle(context.Background())

	if fmt.Sprint(source.calls) != fmt.Sprint([]string{"u1", "u2", "u3"}) {
		t.Fatalf("processing order = %v, want [u1 u2 u3]", source.calls)
	}
}
