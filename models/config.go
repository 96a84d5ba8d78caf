package models

// AutoRecheckConfig mirrors the auto_recheck section of the merged configuration.
type AutoRecheckConfig struct {
	Enabled       bool `json:"enabled" mapstructure:"enabled"`
	IntervalHours int  `json:"interval_hours" mapstructure:"interval_hours"`
	Batch         struct {
		RunEveryMinutes int `json:"run_every_minutes" mapstructure:"run_every_minutes"`
		MaxUsersPerRun  int `json:"max_users_per_run" mapstructure:"max_users_per_run"`
	} `json:"batch" mapstructure:"batch"`
	Backoff struct {
		BaseMinutes int `json:"base_minutes" mapstructure:"base_minutes"`
		MaxMinutes  int `json:"max_minutes" mapstructure:"max_minutes"`
	} `json:"backoff" mapstructure:"backoff"`
}

// RSIConfig mirrors the rsi section: fetch cache and throttling knobs shared
// by every caller in the process.
type RSIConfig struct {
	CacheTTLSeconds       int    `json:"cache_ttl_seconds" mapstructure:"cache_ttl_seconds"`
	MaxConcurrentRequests int    `json:"max_concurrent_requests" mapstructure:"max_concurrent_requests"`
	MinIntervalSeconds    int    `json:"min_interval_seconds" mapstructure:"min_interval_seconds"`
	TargetOrg             string `json:"target_org" mapstructure:"target_org"`
}

// BulkCheckConfig mirrors the bulk_check section.
type BulkCheckConfig struct {
	BatchSize       int `json:"batch_size" mapstructure:"batch_size"`
	DelayMinSeconds int `json:"delay_min_seconds" mapstructure:"delay_min_seconds"`
	DelayMaxSeconds int `json:"delay_max_seconds" mapstructure:"delay_max_seconds"`
	ProgressEvery   int `json:"progress_every" mapstructure:"progress_every"`
}

// CommandsConfig holds the permission lists used by slash command dispatch.
type CommandsConfig struct {
	Auth struct {
		Developers  []string `json:"developers" mapstructure:"developers"`
		AdminsRoles []string `json:"admins_roles" mapstructure:"admins_roles"`
		Guest       []string `json:"guest" mapstructure:"guest"`
	} `json:"auth" mapstructure:"auth"`
}
