package sqlstore

import (
	"database/sql"
	"strconv"
	"strings"
)

// Dialect hides the differences between the supported database drivers.
type Dialect interface {
	Name() string
	DriverName() string
	DSN(cfg DialectConfig) string
	// RewriteQuery converts ? placeholders to the driver's syntax.
	RewriteQuery(query string) string
	ConfigureConnection(db *sql.DB) error
	IsUniqueViolation(err error) bool
	MigrationsDir() string
}

type DialectConfig struct {
	Path string // sqlite
	URL  string // postgres
}

func NewDialect(driver string) (Dialect, bool) {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3", "":
		return NewSQLiteDialect(), true
	case "postgres", "postgresql":
		return NewPostgresDialect(), true
	}
	return nil, false
}

// rewritePlaceholdersToNumbered turns ? into $1, $2, ... skipping quoted text.
func rewritePlaceholdersToNumbered(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
