package sqlstore

import (
	"strconv"
	"strings"
)

// dialect holds what differs between SQLite and PostgreSQL.
type dialect struct {
	name   string
	driver string
	// dayExpr truncates a timestamp column to a YYYY-MM-DD string.
	dayExpr func(column string) string
	// numbered placeholders ($1, $2...) instead of "?"
	numbered bool
}

var (
	sqliteDialect = dialect{
		name:    "sqlite",
		driver:  "sqlite3",
		dayExpr: func(c string) string { return "date(" + c + ")" },
	}
	postgresDialect = dialect{
		name:     "postgres",
		driver:   "pgx",
		dayExpr:  func(c string) string { return "to_char(" + c + " AT TIME ZONE 'UTC', 'YYYY-MM-DD')" },
		numbered: true,
	}
)

// rebind rewrites "?" placeholders for the dialect. Queries never contain a
// literal question mark.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
