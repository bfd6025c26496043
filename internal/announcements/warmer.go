package announcements

import (
	"context"
	"encoding/json"

	"github.com/pelita-edu/pelita/internal/shared"
)

// CacheWarmer rebuilds the tenant's default list page after invalidation so
// the first reader does not pay the rebuild cost.
type CacheWarmer struct {
	repo  Repository
	cache ListCache
}

// NewCacheWarmer constructs a CacheWarmer.
func NewCacheWarmer(repo Repository, cache ListCache) *CacheWarmer {
	return &CacheWarmer{repo: repo, cache: cache}
}

// Warm primes the privileged default first page for the tenant. Reader-
// specific views are rebuilt lazily on demand; only the shared admin view is
// worth precomputing.
func (w *CacheWarmer) Warm(ctx context.Context, tenantID, resourceTag string) error {
	if resourceTag != ResourceTag || w.cache == nil {
		return nil
	}

	filter := ListFilter{SortColumn: "published_at", SortDesc: true, PinnedFirst: true}
	_, err := w.cache.GetOrBuild(ctx, tenantID, ResourceTag, listFingerprint(filter, 0, 0), func(ctx context.Context) ([]byte, error) {
		total, err := w.repo.Count(ctx, tenantID, filter)
		if err != nil {
			return nil, err
		}
		pagination := shared.NewPagination(0, 0, total)
		filter.Limit = pagination.PerPage
		filter.Offset = pagination.Offset()
		items, err := w.repo.List(ctx, tenantID, filter)
		if err != nil {
			return nil, err
		}
		if items == nil {
			items = []Announcement{}
		}
		return json.Marshal(&ListAnnouncementsResult{Items: items, Pagination: pagination})
	})
	return err
}
