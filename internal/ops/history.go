package ops

import (
	"context"

	"github.com/hpungsan/hostgate/internal/config"
	"github.com/hpungsan/hostgate/internal/db"
	"github.com/hpungsan/hostgate/internal/query"
	"github.com/hpungsan/hostgate/internal/watch"
)

// QueryHistory runs a filter/sort/group query over URI history.
func QueryHistory(ctx context.Context, store *db.Store, qb *query.Builder, cfg *config.Config, input BrowseInput) (*HistoryPage, error) {
	return browse(ctx, store, qb, cfg, query.History, input, store.QueryHistory)
}

// WatchHistory streams a history page, re-running the query after every
// history or rule change that alters it.
func WatchHistory(ctx context.Context, store *db.Store, qb *query.Builder, cfg *config.Config, input BrowseInput, onError func(error)) (<-chan *HistoryPage, error) {
	return watch.Observe(ctx, store.Hub(), watch.Source[*HistoryPage]{
		Tables: []string{db.TableHistory, db.TableHostRules},
		Load: func(ctx context.Context) (*HistoryPage, error) {
			return QueryHistory(ctx, store, qb, cfg, input)
		},
		OnError: onError,
	})
}
