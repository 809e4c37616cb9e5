package query

import (
	"fmt"
	"strings"

	"github.com/hpungsan/hostgate/internal/logger"
)

// The Safe variants never hand a malformed query to the store. When
// construction fails or panics they log the fault and return a statically
// safe query with the same output shape and zero rows.

// SafeItems is Items with the always-empty fallback.
func (b *Builder) SafeItems(t *Table, spec Spec, page Page) Query {
	return b.safe("items", t, func() (Query, error) { return b.Items(t, spec, page) }, EmptyItems)
}

// SafeCount is Count with the always-empty fallback.
func (b *Builder) SafeCount(t *Table, spec Spec) Query {
	return b.safe("count", t, func() (Query, error) { return b.Count(t, spec) }, EmptyCount)
}

// SafeGroupCounts is GroupCounts with the always-empty fallback.
func (b *Builder) SafeGroupCounts(t *Table, spec Spec) Query {
	return b.safe("group_counts", t, func() (Query, error) { return b.GroupCounts(t, spec) }, EmptyGroupCounts)
}

// SafeDateCounts is DateCounts with the always-empty fallback.
func (b *Builder) SafeDateCounts(t *Table, spec Spec) Query {
	return b.safe("date_counts", t, func() (Query, error) { return b.DateCounts(t, spec) }, EmptyGroupCounts)
}

func (b *Builder) safe(kind string, t *Table, build func() (Query, error), empty func(*Table) Query) (q Query) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("query construction panicked; substituting empty query",
				logger.String("kind", kind),
				logger.String("table", t.Name),
				logger.Any("panic", r))
			q = empty(t)
		}
	}()

	q, err := build()
	if err != nil {
		b.log.Error("query construction failed; substituting empty query",
			logger.String("kind", kind),
			logger.String("table", t.Name),
			logger.Error(err))
		return empty(t)
	}
	return q
}

// EmptyItems selects the item column set and never matches a row.
func EmptyItems(t *Table) Query {
	return Query{SQL: fmt.Sprintf("SELECT %s, NULL AS %s FROM %s WHERE 0",
		strings.Join(t.Columns, ", "), GroupKeyColumn, t.Name)}
}

// EmptyCount counts nothing.
func EmptyCount(t *Table) Query {
	return Query{SQL: fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE 0", t.Name)}
}

// EmptyGroupCounts yields the (group_key, count) shape with zero rows.
func EmptyGroupCounts(_ *Table) Query {
	return Query{SQL: fmt.Sprintf("SELECT NULL AS %s, 0 AS count WHERE 0", GroupKeyColumn)}
}
