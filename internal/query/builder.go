package query

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hpungsan/hostgate/internal/logger"
)

// DefaultUnknownLabel names the bucket for rows without a group value.
const DefaultUnknownLabel = "Unknown"

// GroupKeyColumn is the trailing column every item query projects.
const GroupKeyColumn = "group_key"

// dayBucket buckets a millisecond timestamp by local calendar day.
const dayBucket = "date(%s / 1000, 'unixepoch', 'localtime')"

// Builder turns a Spec into parameterized queries against a Table.
type Builder struct {
	log          logger.Logger
	unknownLabel string
}

// NewBuilder creates a builder. An empty unknownLabel uses DefaultUnknownLabel.
func NewBuilder(log logger.Logger, unknownLabel string) *Builder {
	if log == nil {
		log = logger.NewNop()
	}
	if strings.TrimSpace(unknownLabel) == "" {
		unknownLabel = DefaultUnknownLabel
	}
	return &Builder{log: log, unknownLabel: unknownLabel}
}

// Items builds the row query: projection, filters, ordering and paging.
func (b *Builder) Items(t *Table, spec Spec, page Page) (Query, error) {
	where, args, err := b.where(t, spec)
	if err != nil {
		return Query{}, err
	}

	group, groupArgs, err := b.groupExpr(t, spec.GroupBy)
	if err != nil {
		return Query{}, err
	}
	orderBy, orderArgs, err := b.orderBy(t, spec, group, groupArgs)
	if err != nil {
		return Query{}, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(t.Columns, ", "))
	var allArgs []any
	if group != "" {
		fmt.Fprintf(&sb, ", %s AS %s", group, GroupKeyColumn)
		allArgs = append(allArgs, groupArgs...)
	} else {
		fmt.Fprintf(&sb, ", NULL AS %s", GroupKeyColumn)
	}
	fmt.Fprintf(&sb, " FROM %s", t.Name)
	sb.WriteString(where)
	allArgs = append(allArgs, args...)
	sb.WriteString(orderBy)
	allArgs = append(allArgs, orderArgs...)

	if page.Limit > 0 {
		sb.WriteString(" LIMIT ? OFFSET ?")
		allArgs = append(allArgs, page.Limit, max(page.Offset, 0))
	}

	return Query{SQL: sb.String(), Args: allArgs}, nil
}

// Count builds SELECT COUNT(*) with the same filter clause as Items. It
// rejects every spec Items rejects, so a page and its total agree.
func (b *Builder) Count(t *Table, spec Spec) (Query, error) {
	if err := b.validate(t, spec); err != nil {
		return Query{}, err
	}
	where, args, err := b.where(t, spec)
	if err != nil {
		return Query{}, err
	}
	return Query{
		SQL:  fmt.Sprintf("SELECT COUNT(*) FROM %s%s", t.Name, where),
		Args: args,
	}, nil
}

// GroupCounts builds per-group counts for spec.GroupBy, ordered like the
// group key in Items.
func (b *Builder) GroupCounts(t *Table, spec Spec) (Query, error) {
	if strings.TrimSpace(spec.GroupBy) == "" {
		return Query{}, fmt.Errorf("group counts require a group field")
	}
	if err := b.validate(t, spec); err != nil {
		return Query{}, err
	}
	where, args, err := b.where(t, spec)
	if err != nil {
		return Query{}, err
	}
	group, groupArgs, err := b.groupExpr(t, spec.GroupBy)
	if err != nil {
		return Query{}, err
	}
	dir, err := groupDirection(spec.GroupDir)
	if err != nil {
		return Query{}, err
	}

	sql := fmt.Sprintf("SELECT %s AS %s, COUNT(*) AS count FROM %s%s GROUP BY %s ORDER BY %s %s",
		group, GroupKeyColumn, t.Name, where, GroupKeyColumn, GroupKeyColumn, dir)
	return Query{SQL: sql, Args: append(groupArgs, args...)}, nil
}

// DateCounts builds per-day counts over the table's date column, newest first.
func (b *Builder) DateCounts(t *Table, spec Spec) (Query, error) {
	if t.DateColumn == "" {
		return Query{}, fmt.Errorf("table %s has no date column", t.Name)
	}
	if err := b.validate(t, spec); err != nil {
		return Query{}, err
	}
	where, args, err := b.where(t, spec)
	if err != nil {
		return Query{}, err
	}
	day := fmt.Sprintf(dayBucket, t.DateColumn)
	sql := fmt.Sprintf("SELECT %s AS %s, COUNT(*) AS count FROM %s%s GROUP BY %s ORDER BY %s DESC",
		day, GroupKeyColumn, t.Name, where, GroupKeyColumn, GroupKeyColumn)
	return Query{SQL: sql, Args: args}, nil
}

// validate checks the sort and group fields and directions that only the
// item query uses.
func (b *Builder) validate(t *Table, spec Spec) error {
	group, groupArgs, err := b.groupExpr(t, spec.GroupBy)
	if err != nil {
		return err
	}
	_, _, err = b.orderBy(t, spec, group, groupArgs)
	return err
}

// where builds the filter clause, including its leading " WHERE".
func (b *Builder) where(t *Table, spec Spec) (string, []any, error) {
	var (
		conds []string
		args  []any
	)

	if term := strings.TrimSpace(spec.Search); term != "" && len(t.Searchable) > 0 {
		pattern := "%" + escapeLike(term) + "%"
		ors := make([]string, len(t.Searchable))
		for i, col := range t.Searchable {
			ors[i] = col + ` LIKE ? ESCAPE '\'`
			args = append(args, pattern)
		}
		conds = append(conds, "("+strings.Join(ors, " OR ")+")")
	}

	for _, dim := range sortedDimensions(spec.Filters) {
		values := cleanValues(spec.Filters[dim])
		if len(values) == 0 {
			continue
		}
		col, ok := t.Dimensions[dim]
		if !ok {
			return "", nil, fmt.Errorf("table %s cannot filter by %s", t.Name, dim)
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
		conds = append(conds, fmt.Sprintf("%s IN (%s)", col, placeholders))
		for _, v := range values {
			args = append(args, v)
		}
	}

	if r := spec.DateRange; r != nil && t.DateColumn != "" {
		if r.Start > r.End {
			b.log.Warn("ignoring inverted date range",
				logger.String("table", t.Name),
				logger.Int64("start", r.Start),
				logger.Int64("end", r.End))
		} else {
			conds = append(conds, t.DateColumn+" BETWEEN ? AND ?")
			args = append(args, r.Start, r.End)
		}
	}

	for i, frag := range spec.Advanced {
		fragSQL := strings.TrimSpace(frag.SQL)
		if fragSQL == "" {
			return "", nil, fmt.Errorf("advanced filter %d is empty", i)
		}
		if n := strings.Count(fragSQL, "?"); n != len(frag.Args) {
			return "", nil, fmt.Errorf("advanced filter %d has %d placeholders but %d args", i, n, len(frag.Args))
		}
		conds = append(conds, "("+fragSQL+")")
		args = append(args, frag.Args...)
	}

	if len(conds) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// groupExpr resolves a group field. Empty field means no grouping.
func (b *Builder) groupExpr(t *Table, field string) (string, []any, error) {
	field = strings.ToLower(strings.TrimSpace(field))
	if field == "" {
		return "", nil, nil
	}
	g, ok := t.Groups[field]
	if !ok {
		return "", nil, fmt.Errorf("table %s cannot group by %q", t.Name, field)
	}
	switch {
	case g.day:
		return fmt.Sprintf(dayBucket, g.expr), nil, nil
	case g.nullable:
		return fmt.Sprintf("COALESCE(%s, ?)", g.expr), []any{b.unknownLabel}, nil
	default:
		return g.expr, nil, nil
	}
}

// orderBy builds the ordering: group key first, then the requested sort with
// absent values last, then identity descending as the final tie-break.
func (b *Builder) orderBy(t *Table, spec Spec, group string, groupArgs []any) (string, []any, error) {
	field := strings.ToLower(strings.TrimSpace(spec.SortField))
	if field == "" {
		field = t.DefaultSort
	}
	key, ok := t.Sorts[field]
	if !ok {
		return "", nil, fmt.Errorf("table %s cannot sort by %q", t.Name, field)
	}

	dir, err := ParseDirection(string(spec.SortDir))
	if err != nil {
		return "", nil, err
	}
	if dir == "" {
		dir = t.DefaultDir
		if field != t.DefaultSort {
			dir = Asc
		}
	}

	var (
		keys []string
		args []any
	)
	if group != "" {
		gdir, err := groupDirection(spec.GroupDir)
		if err != nil {
			return "", nil, err
		}
		keys = append(keys, group+" "+string(gdir))
		args = append(args, groupArgs...)
	}
	if key.nullable {
		keys = append(keys, fmt.Sprintf("CASE WHEN %s IS NULL THEN 1 ELSE 0 END", key.expr))
	}
	keys = append(keys, key.expr+" "+string(dir))
	if key.expr != t.IDColumn {
		keys = append(keys, t.IDColumn+" DESC")
	}

	return " ORDER BY " + strings.Join(keys, ", "), args, nil
}

// groupDirection defaults to ascending; it never inherits the item sort
// direction.
func groupDirection(d Direction) (Direction, error) {
	dir, err := ParseDirection(string(d))
	if err != nil {
		return "", err
	}
	if dir == "" {
		return Asc, nil
	}
	return dir, nil
}

// escapeLike escapes LIKE wildcards so the term matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// cleanValues trims values and drops blanks and duplicates, keeping order.
func cleanValues(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// sortedDimensions gives map iteration a fixed order so identical specs
// produce identical SQL.
func sortedDimensions(filters map[Dimension][]string) []Dimension {
	dims := make([]Dimension, 0, len(filters))
	for d := range filters {
		dims = append(dims, d)
	}
	slices.Sort(dims)
	return dims
}
