package announcements

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOrderClauseDefaultPinsFirst(t *testing.T) {
	clause := orderClause(ListFilter{SortColumn: "published_at", SortDesc: true, PinnedFirst: true})
	require.Equal(t,
		"ORDER BY pinned DESC, CASE priority WHEN 'HIGH' THEN 0 WHEN 'NORMAL' THEN 1 ELSE 2 END, published_at DESC NULLS LAST, id DESC",
		clause,
	)
}

func TestOrderClauseExplicitSortOrdersByKeyAlone(t *testing.T) {
	// A caller asking for a title ordering must not have it dominated by
	// the pin and priority buckets.
	clause := orderClause(ListFilter{SortColumn: "title", SortDesc: false})
	require.Equal(t, "ORDER BY title ASC NULLS LAST, id DESC", clause)
}
