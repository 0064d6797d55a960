package database

import (
	"strconv"
	"strings"
)

// Driver represents a database backend type.
type Driver string

const (
	// DriverPostgres represents PostgreSQL database.
	DriverPostgres Driver = "postgres"
	// DriverSQLite represents SQLite database.
	DriverSQLite Driver = "sqlite"
)

// String returns the string representation of the driver.
func (d Driver) String() string {
	return string(d)
}

// DetectDriver parses a connection string and returns the driver type.
// Returns DriverSQLite for empty URLs to enable zero-config local mode.
func DetectDriver(url string) Driver {
	if url == "" {
		return DriverSQLite
	}

	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return DriverPostgres
	}

	if strings.HasPrefix(url, "sqlite://") ||
		strings.HasPrefix(url, "file:") ||
		strings.HasSuffix(url, ".db") ||
		strings.HasSuffix(url, ".sqlite") ||
		strings.HasSuffix(url, ".sqlite3") {
		return DriverSQLite
	}

	// Default to PostgreSQL for backward compatibility
	return DriverPostgres
}

// IsValid returns true if the driver is a known type.
func (d Driver) IsValid() bool {
	switch d {
	case DriverPostgres, DriverSQLite:
		return true
	default:
		return false
	}
}

// Rebind rewrites '?' placeholders into the driver's native form. Repositories
// write queries once with '?' and PostgreSQL receives $1, $2, ...
// Question marks inside single-quoted literals are left alone.
func (d Driver) Rebind(query string) string {
	if d != DriverPostgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n, quoted := 0, false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			quoted = !quoted
		case c == '?' && !quoted:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// ForUpdate returns the row-locking suffix for SELECT statements. SQLite
// serialises writers itself and has no equivalent clause.
func (d Driver) ForUpdate() string {
	if d == DriverPostgres {
		return " FOR UPDATE"
	}
	return ""
}

// PathFromURL extracts a SQLite file path from a sqlite:// or file: URL.
func PathFromURL(url string) string {
	switch {
	case strings.HasPrefix(url, "sqlite://"):
		return strings.TrimPrefix(url, "sqlite://")
	case strings.HasPrefix(url, "file:"):
		return strings.TrimPrefix(url, "file:")
	default:
		return url
	}
}
