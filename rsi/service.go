package rsi

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/Chromeninja/test-squadron-discord-bot-sub002/models"

	"golang.org/x/time/rate"
)

// Options modify a single GetSnapshot call.
type Options struct {
	// ForceRefresh bypasses the cache and always performs a live fetch.
	ForceRefresh bool
}

type cacheKey struct {
	userID string
	handle string // lowercased
}

type cacheEntry struct {
	expiresAt time.Time
	snapshot  models.VerificationSnapshot
}

// Service is the single entry point every caller uses to obtain a
// verification snapshot. It owns the snapshot cache, the permit pool bounding
// concurrent fetches, and the limiter enforcing minimum spacing between
// successive outbound requests. One instance is constructed per process and
// injected into the scheduler and the bulk queue, so both compete for the
// same permits.
type Service struct {
	fetcher Fetcher
	ttl     time.Duration
	permits chan struct{}
	limiter *rate.Limiter

	mu    sync.Mutex
	cache map[cacheKey]cacheEntry
	now   func() time.Time
}

// NewService builds the process-wide fetch service from the rsi config
// section. Zero or negative knobs fall back to safe defaults.
func NewService(fetcher Fetcher, cfg models.RSIConfig) *Service {
	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	maxConcurrent := cfg.MaxConcurrentRequests
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}
	minInterval := time.Duration(cfg.MinIntervalSeconds) * time.Second
	if minInterval <= 0 {
		minInterval = time.Second
	}
	return &Service{
		fetcher: fetcher,
		ttl:     ttl,
		permits: make(chan struct{}, maxConcurrent),
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
		cache:   make(map[cacheKey]cacheEntry),
		now:     time.Now,
	}
}

// GetSnapshot returns the verification snapshot for one user, from cache or
// a fresh fetch.
//
// An empty handle means the user never completed initial verification; a
// non_member snapshot with an explanatory error is returned without fetching.
// A handle the site no longer knows is propagated as ErrHandleNotFound and
// never cached. Any other failure is captured into the snapshot's Error field
// and the snapshot is not cached, so the next call retries fresh.
func (s *Service) GetSnapshot(ctx context.Context, userID, handle string, opts Options) (*models.VerificationSnapshot, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		snap := &models.VerificationSnapshot{
			UserID:    userID,
			Status:    models.StatusNonMember,
			CheckedAt: s.now(),
			Error:     "no RSI handle on record; the user has not completed initial verification",
		}
		return snap, nil
	}

	key := cacheKey{userID: userID, handle: strings.ToLower(handle)}
	if !opts.ForceRefresh {
		if snap, ok := s.lookup(key); ok {
			return snap, nil
		}
	}

	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	snap := &models.VerificationSnapshot{
		UserID:    userID,
		Handle:    handle,
		CheckedAt: s.now(),
	}

	orgsRaw, err := s.throttledFetch(ctx, OrganizationsURL(handle))
	if err != nil {
		if errors.Is(err, ErrHandleNotFound) {
			return nil, err
		}
		snap.Error = fmt.Sprintf("organizations page fetch failed: %v", err)
		snap.Derive()
		return snap, nil
	}

	info := ParseOrgs(orgsRaw)
	if info.Main != "" {
		snap.MainOrgs = []string{info.Main}
	}
	snap.AffiliateOrgs = info.Affiliates

	profileRaw, err := s.throttledFetch(ctx, CitizenURL(handle))
	if err != nil {
		if errors.Is(err, ErrHandleNotFound) {
			return nil, err
		}
		snap.Error = fmt.Sprintf("profile page fetch failed: %v", err)
		snap.Derive()
		return snap, nil
	}

	// Moniker extraction failure is non-fatal; the field just stays absent.
	snap.DisplayMoniker = ExtractMoniker(profileRaw)
	if canonical := ExtractHandle(profileRaw); canonical != "" {
		snap.Handle = canonical
	}

	snap.Derive()
	s.store(key, *snap)
	return snap, nil
}

// GetBio fetches the live profile bio for a handle, for token verification.
// Bio checks must see the current page, so the snapshot cache is bypassed,
// but the fetch still goes through the shared permits and spacing.
func (s *Service) GetBio(ctx context.Context, handle string) (string, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return "", fmt.Errorf("empty handle")
	}
	if err := s.acquire(ctx); err != nil {
		return "", err
	}
	defer s.release()

	raw, err := s.throttledFetch(ctx, CitizenURL(handle))
	if err != nil {
		return "", err
	}
	bio, ok := ExtractBio(raw)
	if !ok {
		return "", nil
	}
	return bio, nil
}

// Invalidate drops any cached snapshot for the pair, forcing the next
// GetSnapshot to fetch fresh.
func (s *Service) Invalidate(userID, handle string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, cacheKey{userID: userID, handle: strings.ToLower(strings.TrimSpace(handle))})
}

func (s *Service) acquire(ctx context.Context) error {
	select {
	case s.permits <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) release() {
	<-s.permits
}

func (s *Service) throttledFetch(ctx context.Context, pageURL string) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return s.fetcher.FetchHTML(ctx, pageURL)
}

// lookup returns a copy of a live cache entry. Expired entries are evicted
// lazily here; there is no background sweep.
func (s *Service) lookup(key cacheKey) (*models.VerificationSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.cache[key]
	if !ok {
		return nil, false
	}
	if s.now().After(entry.expiresAt) {
		delete(s.cache, key)
		return nil, false
	}
	snap := entry.snapshot
	return &snap, true
}

func (s *Service) store(key cacheKey, snap models.VerificationSnapshot) {
	if snap.Error != "" {
		log.Printf("refusing to cache degraded snapshot for %s", key.handle)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[key] = cacheEntry{expiresAt: s.now().Add(s.ttl), snapshot: snap}
}
