package database

import (
	"fmt"
	"time"
)

// timeLayout is fixed width and always UTC so that SQLite text timestamps
// compare correctly as strings.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// TimeArg converts t into a query argument for the driver. PostgreSQL takes
// native timestamps; SQLite stores fixed-width UTC text.
func (d Driver) TimeArg(t time.Time) any {
	if d == DriverPostgres {
		return t.UTC()
	}
	return t.UTC().Format(timeLayout)
}

// NullTimeArg is TimeArg for optional timestamps; nil becomes SQL NULL.
func (d Driver) NullTimeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return d.TimeArg(*t)
}

// Timestamp scans a timestamp column from either driver.
type Timestamp struct {
	Time  time.Time
	Valid bool
}

// Scan implements sql.Scanner.
func (ts *Timestamp) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*ts = Timestamp{}
		return nil
	case time.Time:
		*ts = Timestamp{Time: v.UTC(), Valid: true}
		return nil
	case string:
		return ts.parse(v)
	case []byte:
		return ts.parse(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Timestamp", src)
	}
}

func (ts *Timestamp) parse(s string) error {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	*ts = Timestamp{Time: t.UTC(), Valid: true}
	return nil
}

// Ptr returns nil for NULL and a pointer to the time otherwise.
func (ts Timestamp) Ptr() *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}
