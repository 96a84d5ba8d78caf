// Package scheduler drives periodic background re-verification of stored
// users, with exponential backoff for users whose rechecks keep failing.
package scheduler

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/Chromeninja/test-squadron-discord-bot-sub002/coordinator"
	"github.com/Chromeninja/test-squadron-discord-bot-sub002/database"
	"github.com/Chromeninja/test-squadron-discord-bot-sub002/models"
	"github.com/Chromeninja/test-squadron-discord-bot-sub002/rsi"
)

// SnapshotSource yields live verification snapshots. Satisfied by *rsi.Service.
type SnapshotSource interface {
	GetSnapshot(ctx context.Context, userID, handle string, opts rsi.Options) (*models.VerificationSnapshot, error)
}

// Store is the persistence contract the recheck cycle consumes.
// Satisfied by *database.VerificationDB.
type Store interface {
	GetDueUsers(now time.Time, limit int) ([]database.DueUser, error)
	GetFailCount(userID string) (int, error)
	SetFailCount(userID string, count int) error
	ScheduleNextCheck(userID string, at time.Time) error
	StoreSnapshot(snap *models.VerificationSnapshot) error
}

// SyncResult is one guild's outcome of applying a snapshot.
type SyncResult struct {
	GuildID string
	Changed bool
	Err     error
}

// GuildSync applies a fresh snapshot to every guild the bot serves. Role
// mutation lives outside this package; the cycle only cares that Apply runs
// before the snapshot is persisted, so diffing sees pre-update data.
type GuildSync interface {
	Apply(ctx context.Context, snap *models.VerificationSnapshot, batchSize, maxConcurrency int) []SyncResult
}

// Remediation is invoked when a stored handle no longer exists on the site.
type Remediation interface {
	HandleNotFound(ctx context.Context, userID, handle string) error
}

// Recheck owns one periodic re-verification cycle.
type Recheck struct {
	cfg         models.AutoRecheckConfig
	source      SnapshotSource
	store       Store
	sync        GuildSync
	remediation Remediation
	gate        *coordinator.Gate
	now         func() time.Time
}

// NewRecheck wires a recheck driver. sync and remediation may be nil; the
// corresponding steps are then skipped.
func NewRecheck(cfg models.AutoRecheckConfig, source SnapshotSource, store Store, guildSync GuildSync, remediation Remediation, gate *coordinator.Gate) *Recheck {
	if cfg.Batch.MaxUsersPerRun <= 0 {
		cfg.Batch.MaxUsersPerRun = 50
	}
	if cfg.Backoff.BaseMinutes <= 0 {
		cfg.Backoff.BaseMinutes = 180
	}
	if cfg.Backoff.MaxMinutes <= 0 {
		cfg.Backoff.MaxMinutes = 1440
	}
	if cfg.IntervalHours <= 0 {
		cfg.IntervalHours = 24
	}
	return &Recheck{
		cfg:         cfg,
		source:      source,
		store:       store,
		sync:        guildSync,
		remediation: remediation,
		gate:        gate,
		now:         time.Now,
	}
}

// RunCycle processes one batch of due users. If a bulk verification job holds
// the gate the entire cycle is skipped; there is no partial processing.
func (r *Recheck) RunCycle(ctx context.Context) {
	if !r.gate.TryAcquire() {
		log.Println("auto-recheck: bulk verification in progress, deferring this cycle")
		return
	}
	defer r.gate.Release()

	now := r.now()
	due, err := r.store.GetDueUsers(now, r.cfg.Batch.MaxUsersPerRun)
	if err != nil {
		log.Printf("auto-recheck: failed to fetch due users: %v", err)
		return
	}
	if len(due) == 0 {
		return
	}
	log.Printf("auto-recheck: processing %d due user(s)", len(due))

	for _, u := range due {
		if ctx.Err() != nil {
			return
		}
		r.processUser(ctx, u)
	}
}

func (r *Recheck) processUser(ctx context.Context, u database.DueUser) {
	snap, err := r.source.GetSnapshot(ctx, u.UserID, u.Handle, rsi.Options{ForceRefresh: true})
	if err != nil {
		if errors.Is(err, rsi.ErrHandleNotFound) {
			log.Printf("auto-recheck: handle %q for user %s no longer exists", u.Handle, u.UserID)
			if r.remediation != nil {
				if remErr := r.remediation.HandleNotFound(ctx, u.UserID, u.Handle); remErr != nil {
					log.Printf("auto-recheck: remediation for user %s failed: %v", u.UserID, remErr)
				}
			}
			return
		}
		r.recordFailure(u.UserID, err.Error())
		return
	}
	if snap.Error != "" {
		r.recordFailure(u.UserID, snap.Error)
		return
	}

	// Apply to guilds before persisting, so the sync's "before" state still
	// reflects pre-update data.
	if r.sync != nil {
		for _, res := range r.sync.Apply(ctx, snap, 10, 3) {
			if res.Err != nil {
				log.Printf("auto-recheck: sync of user %s to guild %s failed: %v", u.UserID, res.GuildID, res.Err)
			}
		}
	}

	if err := r.store.StoreSnapshot(snap); err != nil {
		if errors.Is(err, database.ErrHandleConflict) {
			log.Printf("auto-recheck: skipping user %s, handle conflict: %v", u.UserID, err)
			r.scheduleNext(u.UserID)
			return
		}
		log.Printf("auto-recheck: failed to persist snapshot for user %s: %v", u.UserID, err)
		return
	}

	if err := r.store.SetFailCount(u.UserID, 0); err != nil {
		log.Printf("auto-recheck: failed to reset fail count for user %s: %v", u.UserID, err)
	}
	r.scheduleNext(u.UserID)
}

// recordFailure bumps the user's consecutive fail count and schedules the
// next retry with capped exponential backoff.
func (r *Recheck) recordFailure(userID, reason string) {
	failCount, err := r.store.GetFailCount(userID)
	if err != nil {
		log.Printf("auto-recheck: failed to read fail count for user %s: %v", userID, err)
	}
	failCount++
	if err := r.store.SetFailCount(userID, failCount); err != nil {
		log.Printf("auto-recheck: failed to store fail count for user %s: %v", userID, err)
	}

	delay := BackoffDelay(failCount, r.cfg.Backoff.BaseMinutes, r.cfg.Backoff.MaxMinutes)
	log.Printf("auto-recheck: user %s failed check #%d (%s), next retry in %s", userID, failCount, reason, delay)
	if err := r.store.ScheduleNextCheck(userID, r.now().Add(delay)); err != nil {
		log.Printf("auto-recheck: failed to schedule retry for user %s: %v", userID, err)
	}
}

func (r *Recheck) scheduleNext(userID string) {
	next := r.now().Add(time.Duration(r.cfg.IntervalHours) * time.Hour)
	if err := r.store.ScheduleNextCheck(userID, next); err != nil {
		log.Printf("auto-recheck: failed to schedule next check for user %s: %v", userID, err)
	}
}

// BackoffDelay computes min(base * 2^(failCount-1), max) in minutes.
func BackoffDelay(failCount, baseMinutes, maxMinutes int) time.Duration {
	if failCount < 1 {
		failCount = 1
	}
	exp := failCount - 1
	if exp > 20 { // past this the cap always wins
		exp = 20
	}
	minutes := baseMinutes << exp
	if minutes > maxMinutes || minutes <= 0 {
		minutes = maxMinutes
	}
	return time.Duration(minutes) * time.Minute
}
