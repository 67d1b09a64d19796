package sqlite

import (
	"database/sql"
	"time"
)

// timeFromUnix converts Unix timestamp to time.Time
func timeFromUnix(timestamp int64) time.Time {
	return time.Unix(timestamp, 0).UTC()
}

// nullUnix converts an optional time to a nullable Unix timestamp
func nullUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

// timePtr converts a nullable Unix timestamp back to an optional time
func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := timeFromUnix(v.Int64)
	return &t
}

// boolToInt converts bool to int for SQLite
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
