package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAnnouncementsExpireSweep unpublishes announcements past expiry.
	TaskAnnouncementsExpireSweep = "announcements:expire_sweep"
	// TaskAnnouncementsWarmup rebuilds a tenant's cached announcement lists.
	TaskAnnouncementsWarmup = "announcements:cache_warmup"
)

// WarmupPayload identifies which tenant's cached lists to rebuild.
type WarmupPayload struct {
	TenantID    string `json:"tenant_id"`
	ResourceTag string `json:"resource_tag"`
}

// NewExpireSweepTask constructs the nightly expiry sweep task.
func NewExpireSweepTask() *asynq.Task {
	return asynq.NewTask(TaskAnnouncementsExpireSweep, nil)
}

// NewWarmupTask constructs a cache warmup task for one tenant.
func NewWarmupTask(payload WarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAnnouncementsWarmup, data), nil
}

// ExpireSweeper flips published off for records past expiry and reports
// which tenants had rows change.
type ExpireSweeper interface {
	UnpublishExpired(ctx context.Context, now time.Time) ([]string, error)
}

// Invalidator drops a tenant's cached list views.
type Invalidator interface {
	Invalidate(ctx context.Context, tenantID, resourceTag string) error
}

// ExpireSweepJob runs the expiry sweep.
type ExpireSweepJob struct {
	sweeper     ExpireSweeper
	invalidator Invalidator
	resourceTag string
	logger      *slog.Logger
}

// NewExpireSweepJob constructs an ExpireSweepJob. invalidator may be nil.
func NewExpireSweepJob(sweeper ExpireSweeper, invalidator Invalidator, resourceTag string, logger *slog.Logger) *ExpireSweepJob {
	return &ExpireSweepJob{sweeper: sweeper, invalidator: invalidator, resourceTag: resourceTag, logger: logger}
}

// Handle processes TaskAnnouncementsExpireSweep. Cached lists of affected
// tenants are dropped so privileged views stop serving a just-expired record
// as published; non-privileged views already filter expiry in the query.
func (j *ExpireSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	tenants, err := j.sweeper.UnpublishExpired(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	if len(tenants) == 0 {
		return nil
	}
	if j.logger != nil {
		j.logger.Info("expire sweep", slog.Int("tenants", len(tenants)))
	}
	if j.invalidator == nil {
		return nil
	}
	for _, tenantID := range tenants {
		// The unpublish is already committed. A failed invalidation only
		// leaves a stale cache until its TTL, so warn instead of retrying
		// the whole sweep.
		if err := j.invalidator.Invalidate(ctx, tenantID, j.resourceTag); err != nil && j.logger != nil {
			j.logger.Warn("expire sweep invalidation", slog.String("tenant", tenantID), slog.Any("error", err))
		}
	}
	return nil
}

// Warmer rebuilds cached list views for one tenant.
type Warmer interface {
	Warm(ctx context.Context, tenantID, resourceTag string) error
}

// WarmupJob rebuilds tenant caches after invalidation.
type WarmupJob struct {
	warmer Warmer
	logger *slog.Logger
}

// NewWarmupJob constructs a WarmupJob.
func NewWarmupJob(warmer Warmer, logger *slog.Logger) *WarmupJob {
	return &WarmupJob{warmer: warmer, logger: logger}
}

// Handle processes TaskAnnouncementsWarmup.
func (j *WarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload WarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.TenantID == "" {
		return asynq.SkipRetry
	}
	if err := j.warmer.Warm(ctx, payload.TenantID, payload.ResourceTag); err != nil {
		if j.logger != nil {
			j.logger.Warn("cache warmup", slog.String("tenant", payload.TenantID), slog.Any("error", err))
		}
		return err
	}
	return nil
}
