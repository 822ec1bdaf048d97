package store

import (
	"fmt"
	"strings"
)

// Query narrows and orders the rows an Adapter reads. Conditions are SQL
// fragments with ? placeholders; values only ever travel as arguments.
// The zero Query matches every row.
type Query struct {
	where   []string
	args    []any
	groupBy []string
	orderBy []string
	limit   int
}

// Where starts a Query with one condition.
func Where(cond string, args ...any) Query {
	return Query{}.And(cond, args...)
}

// And adds a condition joined with AND.
func (q Query) And(cond string, args ...any) Query {
	q.where = append(append([]string(nil), q.where...), "("+cond+")")
	q.args = append(append([]any(nil), q.args...), args...)
	return q
}

// OrderBy appends ordering terms such as "name" or "timestamp DESC".
func (q Query) OrderBy(terms ...string) Query {
	q.orderBy = append(append([]string(nil), q.orderBy...), terms...)
	return q
}

// GroupBy appends grouping columns.
func (q Query) GroupBy(cols ...string) Query {
	q.groupBy = append(append([]string(nil), q.groupBy...), cols...)
	return q
}

// Limit caps the number of rows; 0 means no limit.
func (q Query) Limit(n int) Query {
	q.limit = n
	return q
}

// whereClause renders " WHERE ..." or "".
func (q Query) whereClause() string {
	if len(q.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.where, " AND ")
}

// tail renders the grouping, ordering and limit clauses.
func (q Query) tail() string {
	var b strings.Builder
	if len(q.groupBy) > 0 {
		b.WriteString(" GROUP BY " + strings.Join(q.groupBy, ", "))
	}
	if len(q.orderBy) > 0 {
		b.WriteString(" ORDER BY " + strings.Join(q.orderBy, ", "))
	}
	if q.limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.limit)
	}
	return b.String()
}

// placeholders returns "?, ?, ?" for n values.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// in builds "col IN (?, ...)" with the matching arguments.
func in(col string, values []string) (string, []any) {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return fmt.Sprintf("%s IN (%s)", col, placeholders(len(values))), args
}
