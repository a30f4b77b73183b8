package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"taskmirror/internal/task/repository"
	"taskmirror/pkg/log"
)

type implRepository struct {
	db  *sql.DB
	l   log.Logger
	loc *time.Location
}

// New creates a SQLite-backed Repository for the task domain. loc is the
// reference location used to derive scheduled datetimes from a stored date
// plus default time; it must match the location the recurrence engine uses.
func New(db *sql.DB, l log.Logger, loc *time.Location) repository.Repository {
	if db == nil {
		panic("task/repository/sqlite: db is required")
	}
	if loc == nil {
		loc = time.UTC
	}
	return &implRepository{db: db, l: l, loc: loc}
}

// dsn is a helper to return a method-scoped context string for logging.
func (r *implRepository) dsn(method string) string {
	return fmt.Sprintf("task/repository/sqlite.%s", method)
}

const (
	dateFormat     = "2006-01-02"
	datetimeFormat = time.RFC3339
)

func fmtDate(t time.Time) string {
	return t.UTC().Format(dateFormat)
}

func parseDate(s string) time.Time {
	t, _ := time.Parse(dateFormat, s)
	return t
}

func fmtNullableDate(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: fmtDate(t), Valid: true}
}

func fmtTime(t time.Time) string {
	return t.Format(datetimeFormat)
}

func fmtNullableTime(t *time.Time) sql.NullString {
	if t == nil || t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: fmtTime(*t), Valid: true}
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(datetimeFormat, s)
	return t
}

func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(datetimeFormat, s.String)
	if err != nil {
		return nil
	}
	return &t
}

// isUniqueViolation reports whether err is a SQLite unique constraint
// failure. The driver exposes no typed error for this, so the message is
// matched.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
