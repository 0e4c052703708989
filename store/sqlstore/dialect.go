package sqlstore

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect selects placeholder syntax and migration flavor.
type Dialect int

const (
	// Postgres uses $n placeholders; open with the "pgx" driver.
	Postgres Dialect = iota
	// SQLite uses ? placeholders; open with the "sqlite" driver.
	SQLite
)

// ParseDialect maps a backend name to a Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return 0, fmt.Errorf("sqlstore: unknown dialect %q", name)
	}
}

// DriverName is the database/sql driver registered for d.
func (d Dialect) DriverName() string {
	if d == Postgres {
		return "pgx"
	}
	return "sqlite"
}

func (d Dialect) gooseName() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite3"
}

// rebind rewrites ? placeholders into $n for Postgres. Queries in this
// package never contain literal question marks.
func (d Dialect) rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
