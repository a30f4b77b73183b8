package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"taskmirror/internal/calsync/repository"
	"taskmirror/pkg/log"
)

type implRepository struct {
	db *sql.DB
	l  log.Logger
}

// New creates a SQLite-backed Repository for the sync domain.
func New(db *sql.DB, l log.Logger) repository.Repository {
	if db == nil {
		panic("calsync/repository/sqlite: db is required")
	}
	return &implRepository{db: db, l: l}
}

func (r *implRepository) dsn(method string) string {
	return fmt.Sprintf("calsync/repository/sqlite.%s", method)
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
