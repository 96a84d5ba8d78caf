// Package bulk implements the administrator-triggered bulk re-verification
// queue: a single FIFO queue served by exactly one worker, so at most one
// job ever runs at a time.
package bulk

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Chromeninja/test-squadron-discord-bot-sub002/coordinator"
	"github.com/Chromeninja/test-squadron-discord-bot-sub002/models"
	"github.com/Chromeninja/test-squadron-discord-bot-sub002/rsi"

	"github.com/bwmarrin/discordgo"
)

// ErrQueueFull is returned by Enqueue when the job buffer is saturated.
var ErrQueueFull = errors.New("bulk: job queue is full")

// SnapshotSource yields live verification snapshots. Satisfied by *rsi.Service.
type SnapshotSource interface {
	GetSnapshot(ctx context.Context, userID, handle string, opts rsi.Options) (*models.VerificationSnapshot, error)
}

// Store reads stored verification rows. Satisfied by *database.VerificationDB.
type Store interface {
	LoadSnapshot(userID string) (*models.VerificationSnapshot, error)
}

// Member is the minimal platform identity the queue needs per target.
type Member struct {
	ID       string
	Username string
}

// MemberResolver resolves guilds and members on the chat platform.
type MemberResolver interface {
	GuildName(guildID string) (string, error)
	ResolveMember(guildID, userID string) (*Member, error)
}

// Delivery hands finished job results (and progress) back to the invoker.
type Delivery interface {
	PostSummary(guildID, invokerID, scopeLabel string, embed *discordgo.MessageEmbed, export []byte, filename string) (string, error)
	NotifyProgress(invokerID string, jobID int64, processed, total int) error
	ReportError(invokerID string, jobID int64, err error)
}

// Queue is the single-worker bulk verification queue.
type Queue struct {
	cfg      models.BulkCheckConfig
	source   SnapshotSource
	store    Store
	members  MemberResolver
	delivery Delivery
	gate     *coordinator.Gate

	jobs    chan *models.BulkVerificationJob
	nextID  atomic.Int64
	running atomic.Bool

	cancel context.CancelFunc
	done   chan struct{}

	now   func() time.Time
	sleep func(time.Duration)
}

// NewQueue builds an idle queue. Start must be called before jobs are served.
func NewQueue(cfg models.BulkCheckConfig, source SnapshotSource, store Store, members MemberResolver, delivery Delivery, gate *coordinator.Gate) *Queue {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = cfg.BatchSize
	}
	if cfg.DelayMaxSeconds < cfg.DelayMinSeconds {
		cfg.DelayMaxSeconds = cfg.DelayMinSeconds
	}
	return &Queue{
		cfg:      cfg,
		source:   source,
		store:    store,
		members:  members,
		delivery: delivery,
		gate:     gate,
		jobs:     make(chan *models.BulkVerificationJob, 16),
		now:      time.Now,
		sleep:    time.Sleep,
	}
}

// Start launches the single worker goroutine.
func (q *Queue) Start(ctx context.Context) {
	ctx, q.cancel = context.WithCancel(ctx)
	q.done = make(chan struct{})
	go q.work(ctx)
}

// Stop cancels the worker. An in-flight job is abandoned, not drained; jobs
// are process-local and never durably persisted, so this loses nothing that
// cannot be re-requested.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
		<-q.done
	}
}

// IsRunning reports whether a job is currently inside the critical section.
func (q *Queue) IsRunning() bool {
	return q.running.Load()
}

// Pending returns the number of queued, not yet started jobs.
func (q *Queue) Pending() int {
	return len(q.jobs)
}

// Enqueue creates a job and appends it to the queue. Target IDs are
// deduplicated preserving order. Returns the queued job.
func (q *Queue) Enqueue(guildID string, targetUserIDs []string, invokerID, scopeLabel string, recheckRSI bool) (*models.BulkVerificationJob, error) {
	seen := make(map[string]bool, len(targetUserIDs))
	targets := make([]string, 0, len(targetUserIDs))
	for _, id := range targetUserIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		targets = append(targets, id)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("bulk: no valid target users")
	}

	job := &models.BulkVerificationJob{
		JobID:         q.nextID.Add(1),
		GuildID:       guildID,
		TargetUserIDs: targets,
		InvokerID:     invokerID,
		ScopeLabel:    scopeLabel,
		RecheckRSI:    recheckRSI,
		QueuedAt:      q.now(),
		Errors:        make(map[string]string),
	}

	select {
	case q.jobs <- job:
		return job, nil
	default:
		return nil, ErrQueueFull
	}
}

// work pulls jobs strictly in FIFO order. Nothing a job does may kill the
// worker: every failure is caught and reported to the invoker.
func (q *Queue) work(ctx context.Context) {
	defer close(q.done)
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-q.jobs:
			q.runJob(ctx, job)
		}
	}
}

func (q *Queue) runJob(ctx context.Context, job *models.BulkVerificationJob) {
	q.gate.Acquire()
	q.running.Store(true)
	defer func() {
		q.running.Store(false)
		q.gate.Release()
		if rec := recover(); rec != nil {
			err := fmt.Errorf("bulk job %d panicked: %v", job.JobID, rec)
			log.Printf("%v", err)
			q.delivery.ReportError(job.InvokerID, job.JobID, err)
		}
	}()

	job.StartedAt = q.now()
	log.Printf("bulk: job %d started (%d targets, scope %q)", job.JobID, len(job.TargetUserIDs), job.ScopeLabel)

	guildName, err := q.members.GuildName(job.GuildID)
	if err != nil {
		log.Printf("bulk: job %d cannot resolve guild %s: %v", job.JobID, job.GuildID, err)
		q.delivery.ReportError(job.InvokerID, job.JobID, fmt.Errorf("cannot resolve guild %s: %w", job.GuildID, err))
		return
	}

	total := len(job.TargetUserIDs)
	processed := 0
	lastNotified := 0
	for start := 0; start < total; start += q.cfg.BatchSize {
		if ctx.Err() != nil {
			return
		}
		end := start + q.cfg.BatchSize
		if end > total {
			end = total
		}
		batch := job.TargetUserIDs[start:end]
		job.StatusRows = append(job.StatusRows, q.processBatch(ctx, job, batch)...)
		processed += len(batch)

		lastBatch := end == total
		if processed-lastNotified >= q.cfg.ProgressEvery || lastBatch {
			if err := q.delivery.NotifyProgress(job.InvokerID, job.JobID, processed, total); err != nil {
				log.Printf("bulk: job %d progress notification failed: %v", job.JobID, err)
			}
			lastNotified = processed
		}
		if !lastBatch {
			q.sleep(q.interBatchDelay())
		}
	}

	job.CompletedAt = q.now()
	q.deliver(job, guildName)
}

// processBatch resolves members and builds one status row per target, in
// input order. When the job requests a live recheck, fetches fan out
// concurrently; the shared permit pool bounds them, and results are written
// back by index so completion order never matters.
func (q *Queue) processBatch(ctx context.Context, job *models.BulkVerificationJob, batch []string) []models.BulkStatusRow {
	rows := make([]models.BulkStatusRow, len(batch))
	for i, uid := range batch {
		rows[i] = models.BulkStatusRow{UserID: uid, Status: "unknown"}

		member, err := q.members.ResolveMember(job.GuildID, uid)
		if err != nil {
			job.Errors[uid] = fmt.Sprintf("member resolution failed: %v", err)
			rows[i].Error = job.Errors[uid]
			continue
		}
		rows[i].Username = member.Username

		stored, err := q.store.LoadSnapshot(uid)
		if err != nil {
			job.Errors[uid] = fmt.Sprintf("stored status lookup failed: %v", err)
			rows[i].Error = job.Errors[uid]
			continue
		}
		if stored != nil {
			rows[i].Handle = stored.Handle
			rows[i].Status = string(stored.Status)
			rows[i].Moniker = stored.DisplayMoniker
			rows[i].LastChecked = stored.CheckedAt.UTC().Format(time.RFC3339)
		}
	}

	if !job.RecheckRSI {
		return rows
	}

	var wg sync.WaitGroup
	for i := range rows {
		if rows[i].Error != "" {
			continue
		}
		if rows[i].Handle == "" {
			// No handle on record: report unknown without attempting a fetch.
			rows[i].Status = "unknown"
			rows[i].Error = "no RSI handle on record; user has not completed initial verification"
			continue
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q.recheckRow(ctx, &rows[i])
		}(i)
	}
	wg.Wait()

	for i := range rows {
		if rows[i].Error != "" {
			job.Errors[rows[i].UserID] = rows[i].Error
		}
	}
	return rows
}

// recheckRow refreshes one row from a live fetch. Any failure stays inside
// this row; siblings in the same fan-out are unaffected.
func (q *Queue) recheckRow(ctx context.Context, row *models.BulkStatusRow) {
	defer func() {
		if rec := recover(); rec != nil {
			row.Error = fmt.Sprintf("recheck panicked: %v", rec)
		}
	}()

	snap, err := q.source.GetSnapshot(ctx, row.UserID, row.Handle, rsi.Options{ForceRefresh: true})
	if err != nil {
		if errors.Is(err, rsi.ErrHandleNotFound) {
			row.Status = "unknown"
			row.Error = fmt.Sprintf("handle %q no longer exists on RSI", row.Handle)
			return
		}
		row.Error = fmt.Sprintf("recheck failed: %v", err)
		return
	}
	row.Status = string(snap.Status)
	row.Moniker = snap.DisplayMoniker
	row.LastChecked = snap.CheckedAt.UTC().Format(time.RFC3339)
	if snap.Error != "" {
		row.Error = snap.Error
	}
}

// deliver builds the summary and export and hands both to the delivery
// collaborator. Failures here are reported to the invoker and never escape
// the worker loop.
func (q *Queue) deliver(job *models.BulkVerificationJob, guildName string) {
	embed := BuildSummaryEmbed(job, guildName)
	export, filename, err := BuildExport(job)
	if err != nil {
		log.Printf("bulk: job %d export build failed: %v", job.JobID, err)
		q.delivery.ReportError(job.InvokerID, job.JobID, fmt.Errorf("failed to build export: %w", err))
		return
	}
	channel, err := q.delivery.PostSummary(job.GuildID, job.InvokerID, job.ScopeLabel, embed, export, filename)
	if err != nil {
		log.Printf("bulk: job %d delivery failed: %v", job.JobID, err)
		q.delivery.ReportError(job.InvokerID, job.JobID, fmt.Errorf("failed to deliver results: %w", err))
		return
	}
	log.Printf("bulk: job %d completed in %s, results posted to %s", job.JobID, job.CompletedAt.Sub(job.StartedAt), channel)
}

// interBatchDelay picks a randomized pause so consecutive batches do not
// burst the remote site.
func (q *Queue) interBatchDelay() time.Duration {
	minS := q.cfg.DelayMinSeconds
	maxS := q.cfg.DelayMaxSeconds
	if maxS <= minS {
		return time.Duration(minS) * time.Second
	}
	return time.Duration(minS+rand.Intn(maxS-minS+1)) * time.Second
}
