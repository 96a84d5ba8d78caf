package rsi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Chromeninja/test-squadron-discord-bot-sub002/models"

	"golang.org/x/time/rate"
)

// fakeFetcher serves canned pages and records call concurrency.
type fakeFetcher struct {
	mu          sync.Mutex
	calls       int
	inFlight    int
	maxInFlight int
	delay       time.Duration
	pages       map[string]string
	errs        map[string]error
}

func (f *fakeFetcher) FetchHTML(ctx context.Context, pageURL string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	if err, ok := f.errs[pageURL]; ok {
		return "", err
	}
	return f.pages[pageURL], nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestService(f Fetcher, maxConcurrent int, ttl time.Duration) *Service {
	svc := NewService(f, models.RSIConfig{
		CacheTTLSeconds:       int(ttl / time.Second),
		MaxConcurrentRequests: maxConcurrent,
		MinIntervalSeconds:    1,
	})
	// No spacing in tests; the limiter is exercised separately.
	svc.limiter = rate.NewLimiter(rate.Inf, 1)
	return svc
}

func pagesFor(handle string) map[string]string {
	return map[string]string{
		OrganizationsURL(handle): `<div class="org main"><span class="value">TEST Squadron</span></div>`,
		CitizenURL(handle):       `<p class="entry"><span class="label">Community Moniker</span><span class="value">Ace</span></p>`,
	}
}

func TestGetSnapshotEmptyHandle(t *testing.T) {
	f := &fakeFetcher{}
	svc := newTestService(f, 2, time.Minute)

	snap, err := svc.GetSnapshot(context.Background(), "user1", "   ", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Status != models.StatusNonMember {
		t.Fatalf("status = %q, want non_member", snap.Status)
	}
	if snap.Error == "" {
		t.Fatal("expected an explanatory error on the snapshot")
	}
	if f.callCount() != 0 {
		t.Fatalf("fetcher called %d times, want 0", f.callCount())
	}
}

func TestGetSnapshotCachedWithinTTL(t *testing.T) {
	f := &fakeFetcher{pages: pagesFor("Pilot")}
	svc := newTestService(f, 2, time.Minute)

	first, err := svc.GetSnapshot(context.Background(), "user1", "Pilot", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Status != models.StatusMain {
		t.Fatalf("status = %q, want main", first.Status)
	}
	if first.DisplayMoniker != "Ace" {
		t.Fatalf("moniker = %q, want Ace", first.DisplayMoniker)
	}

	// Same user+handle (different case) within the TTL: no new fetch.
	before := f.callCount()
	second, err := svc.GetSnapshot(context.Background(), "user1", "PILOT", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.callCount() != before {
		t.Fatalf("fetcher called %d more times, want 0", f.callCount()-before)
	}
	if second.Status != first.Status {
		t.Fatalf("cached status = %q, want %q", second.Status, first.Status)
	}
}

func TestGetSnapshotTTLExpiry(t *testing.T) {
	f := &fakeFetcher{pages: pagesFor("Pilot")}
	svc := newTestService(f, 2, time.Minute)

	current := time.Now()
	svc.now = func() time.Time { return current }

	if _, err := svc.GetSnapshot(context.Background(), "user1", "Pilot", Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	current = current.Add(2 * time.Minute)

	before := f.callCount()
	if _, err := svc.GetSnapshot(context.Background(), "user1", "Pilot", Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.callCount() == before {
		t.Fatal("expected a fresh fetch after TTL expiry")
	}
}

func TestGetSnapshotForceRefresh(t *testing.T) {
	f := &fakeFetcher{pages: pagesFor("Pilot")}
	svc := newTestService(f, 2, time.Minute)

	if _, err := svc.GetSnapshot(context.Background(), "user1", "Pilot", Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	before := f.callCount()
	if _, err := svc.GetSnapshot(context.Background(), "user1", "Pilot", Options{ForceRefresh: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.callCount() == before {
		t.Fatal("force refresh should bypass the cache")
	}
}

func TestGetSnapshotConcurrencyBounded(t *testing.T) {
	f := &fakeFetcher{delay: 20 * time.Millisecond, pages: map[string]string{}}
	svc := newTestService(f, 2, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handle := fmt.Sprintf("pilot%d", i)
			svc.GetSnapshot(context.Background(), "user", handle, Options{ForceRefresh: true})
		}(i)
	}
	wg.Wait()

	if f.maxInFlight > 2 {
		t.Fatalf("observed %d concurrent fetches, want at most 2", f.maxInFlight)
	}
}

func TestGetSnapshotHandleNotFound(t *testing.T) {
	f := &fakeFetcher{errs: map[string]error{
		OrganizationsURL("Ghost"): fmt.Errorf("page: %w", ErrHandleNotFound),
	}}
	svc := newTestService(f, 2, time.Minute)

	_, err := svc.GetSnapshot(context.Background(), "user1", "Ghost", Options{})
	if !errors.Is(err, ErrHandleNotFound) {
		t.Fatalf("err = %v, want ErrHandleNotFound", err)
	}

	// Not-found results are never cached: the next call fetches again.
	before := f.callCount()
	svc.GetSnapshot(context.Background(), "user1", "Ghost", Options{})
	if f.callCount() == before {
		t.Fatal("expected a fresh fetch after a not-found result")
	}
}

func TestGetSnapshotTransientErrorNotCached(t *testing.T) {
	f := &fakeFetcher{errs: map[string]error{
		OrganizationsURL("Flaky"): errors.New("connection reset"),
	}}
	svc := newTestService(f, 2, time.Minute)

	snap, err := svc.GetSnapshot(context.Background(), "user1", "Flaky", Options{})
	if err != nil {
		t.Fatalf("transient failures must not propagate, got %v", err)
	}
	if snap.Error == "" || !strings.Contains(snap.Error, "connection reset") {
		t.Fatalf("snapshot error = %q, want the underlying failure", snap.Error)
	}
	if snap.Status != models.StatusNonMember {
		t.Fatalf("status = %q, want non_member", snap.Status)
	}

	before := f.callCount()
	svc.GetSnapshot(context.Background(), "user1", "Flaky", Options{})
	if f.callCount() == before {
		t.Fatal("degraded snapshots must not be cached")
	}
}

func TestGetSnapshotProfileFailureKeepsOrgs(t *testing.T) {
	f := &fakeFetcher{
		pages: map[string]string{
			OrganizationsURL("Pilot"): `<div class="org main"><span class="value">TEST Squadron</span></div>`,
		},
		errs: map[string]error{
			CitizenURL("Pilot"): errors.New("timeout"),
		},
	}
	svc := newTestService(f, 2, time.Minute)

	snap, err := svc.GetSnapshot(context.Background(), "user1", "Pilot", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Error == "" {
		t.Fatal("expected a degraded snapshot")
	}
	if snap.Status != models.StatusMain {
		t.Fatalf("status = %q, want main from the successful orgs fetch", snap.Status)
	}
}
