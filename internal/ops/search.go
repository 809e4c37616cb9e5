package ops

import (
	"context"
	"strings"

	"github.com/hpungsan/hostgate/internal/config"
	"github.com/hpungsan/hostgate/internal/db"
	"github.com/hpungsan/hostgate/internal/query"
)

// BrowseInput contains parameters shared by the history and rule browsers.
type BrowseInput struct {
	Spec              query.Spec
	Limit             int // default and max from config
	Offset            int
	IncludeDateCounts bool
}

// BrowseOutput is one page of a browser query. Groups is set when GroupBy
// is; Dates when per-day counts were requested.
type BrowseOutput[T any] struct {
	Items      []T                `json:"items"`
	Pagination Pagination         `json:"pagination"`
	Groups     []query.GroupCount `json:"groups,omitempty"`
	Dates      []query.GroupCount `json:"dates,omitempty"`
}

// HistoryPage is one page of URI history.
type HistoryPage = BrowseOutput[db.HistoryRow]

// HostRulePage is one page of host rules.
type HostRulePage = BrowseOutput[db.HostRuleRow]

// SearchHostRules runs a filter/sort/group query over host rules.
func SearchHostRules(ctx context.Context, store *db.Store, qb *query.Builder, cfg *config.Config, input BrowseInput) (*HostRulePage, error) {
	return browse(ctx, store, qb, cfg, query.HostRules, input, store.QueryHostRules)
}

// browse builds the item, count and optional bucket queries for one page.
// Construction faults never reach the store: the Safe builders substitute
// always-empty queries of the same shape.
func browse[T any](ctx context.Context, store *db.Store, qb *query.Builder, cfg *config.Config, t *query.Table, input BrowseInput, load func(context.Context, query.Query) ([]T, error)) (*BrowseOutput[T], error) {
	limit, offset := pageBounds(cfg, input.Limit, input.Offset)

	items, err := load(ctx, qb.SafeItems(t, input.Spec, query.Page{Limit: limit, Offset: offset}))
	if err != nil {
		return nil, err
	}
	total, err := store.CountRows(ctx, qb.SafeCount(t, input.Spec))
	if err != nil {
		return nil, err
	}

	out := &BrowseOutput[T]{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
	}

	if strings.TrimSpace(input.Spec.GroupBy) != "" {
		out.Groups, err = store.GroupCounts(ctx, qb.SafeGroupCounts(t, input.Spec))
		if err != nil {
			return nil, err
		}
	}
	if input.IncludeDateCounts && t.DateColumn != "" {
		out.Dates, err = store.GroupCounts(ctx, qb.SafeDateCounts(t, input.Spec))
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
