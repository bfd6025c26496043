package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type stubSweeper struct {
	tenants []string
	err     error
	calls   int
}

func (s *stubSweeper) UnpublishExpired(ctx context.Context, now time.Time) ([]string, error) {
	s.calls++
	return s.tenants, s.err
}

type stubInvalidator struct {
	calls []string
	err   error
}

func (i *stubInvalidator) Invalidate(ctx context.Context, tenantID, resourceTag string) error {
	i.calls = append(i.calls, tenantID+"/"+resourceTag)
	return i.err
}

type stubWarmer struct {
	calls []string
	err   error
}

func (w *stubWarmer) Warm(ctx context.Context, tenantID, resourceTag string) error {
	w.calls = append(w.calls, tenantID+"/"+resourceTag)
	return w.err
}

func TestExpireSweepJob(t *testing.T) {
	sweeper := &stubSweeper{tenants: []string{"tenant-a"}}
	job := NewExpireSweepJob(sweeper, nil, "announcements", nil)

	require.NoError(t, job.Handle(context.Background(), NewExpireSweepTask()))
	require.Equal(t, 1, sweeper.calls)

	sweeper.err = errors.New("db down")
	require.Error(t, job.Handle(context.Background(), NewExpireSweepTask()))
}

func TestExpireSweepInvalidatesAffectedTenants(t *testing.T) {
	sweeper := &stubSweeper{tenants: []string{"tenant-a", "tenant-b"}}
	invalidator := &stubInvalidator{}
	job := NewExpireSweepJob(sweeper, invalidator, "announcements", nil)

	require.NoError(t, job.Handle(context.Background(), NewExpireSweepTask()))
	require.Equal(t, []string{"tenant-a/announcements", "tenant-b/announcements"}, invalidator.calls)
}

func TestExpireSweepSkipsInvalidationWhenNothingExpired(t *testing.T) {
	invalidator := &stubInvalidator{}
	job := NewExpireSweepJob(&stubSweeper{}, invalidator, "announcements", nil)

	require.NoError(t, job.Handle(context.Background(), NewExpireSweepTask()))
	require.Empty(t, invalidator.calls)
}

func TestExpireSweepToleratesInvalidationFailure(t *testing.T) {
	// The unpublish is committed; a cache left stale until its TTL is not
	// worth retrying the whole sweep.
	sweeper := &stubSweeper{tenants: []string{"tenant-a"}}
	invalidator := &stubInvalidator{err: errors.New("redis down")}
	job := NewExpireSweepJob(sweeper, invalidator, "announcements", nil)

	require.NoError(t, job.Handle(context.Background(), NewExpireSweepTask()))
	require.Equal(t, []string{"tenant-a/announcements"}, invalidator.calls)
}

func TestWarmupJob(t *testing.T) {
	warmer := &stubWarmer{}
	job := NewWarmupJob(warmer, nil)

	task, err := NewWarmupTask(WarmupPayload{TenantID: "tenant-a", ResourceTag: "announcements"})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, []string{"tenant-a/announcements"}, warmer.calls)
}

func TestWarmupJobSkipsBadPayload(t *testing.T) {
	warmer := &stubWarmer{}
	job := NewWarmupJob(warmer, nil)

	// Garbage payloads and empty tenants are dropped, not retried.
	err := job.Handle(context.Background(), asynq.NewTask(TaskAnnouncementsWarmup, []byte("{broken")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	task, buildErr := NewWarmupTask(WarmupPayload{ResourceTag: "announcements"})
	require.NoError(t, buildErr)
	err = job.Handle(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)

	require.Empty(t, warmer.calls)
}
