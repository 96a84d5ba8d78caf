package models

import "time"

// BulkStatusRow is one user's outcome within a bulk verification job.
type BulkStatusRow struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	Handle      string `json:"handle"`
	Status      string `json:"status"` // main | affiliate | non_member | unknown
	Moniker     string `json:"moniker,omitempty"`
	LastChecked string `json:"last_checked,omitempty"`
	Error       string `json:"error,omitempty"`
}

// BulkVerificationJob is one administrator-triggered batch run. Jobs are
// process-local: mutated only by the single worker that owns them and
// discarded after delivery.
type BulkVerificationJob struct {
	JobID         int64
	GuildID       string
	TargetUserIDs []string
	InvokerID     string
	ScopeLabel    string
	RecheckRSI    bool

	QueuedAt    time.Time
	StartedAt   time.Time
	CompletedAt time.Time

	StatusRows []BulkStatusRow
	Errors     map[string]string
}
