package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Storage failure classes reported by Dump and consulted when deciding whether
// a checkout or cart write may be retried with a fresh unit of work.
const (
	ClassSerialization   = "serialization_failure"
	ClassDeadlock        = "deadlock"
	ClassLockTimeout     = "lock_not_available"
	ClassUniqueViolation = "unique_violation"
	ClassCheckViolation  = "check_violation"
	ClassForeignKey      = "foreign_key_violation"
	ClassSQLiteBusy      = "sqlite_busy"
	ClassUnclassified    = ""
)

var pgClasses = map[string]struct {
	class     string
	retryable bool
}{
	"40001": {ClassSerialization, true},
	"40P01": {ClassDeadlock, true},
	"55P03": {ClassLockTimeout, true},
	"23505": {ClassUniqueViolation, false},
	"23514": {ClassCheckViolation, false},
	"23503": {ClassForeignKey, false},
}

// ErrorDump is a log-friendly breakdown of an error chain. Stock and order
// writes that fail inside a unit of work are dumped with their Postgres
// diagnostics so oversell guards (check_violation) and lock aborts are told
// apart in the logs.
type ErrorDump struct {
	TopMessage string `json:"top_message"`
	Code       Code   `json:"code,omitempty"`

	Chain []string `json:"chain,omitempty"`

	Class     string `json:"class,omitempty"`
	Retryable bool   `json:"retryable"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGColumn     string `json:"pg_column,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{
		TopMessage: err.Error(),
	}

	if te := As(err); te != nil {
		d.Code = te.Code()
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pgxErr):
		d.PGCode = pgxErr.Code
		d.PGConstraint = pgxErr.ConstraintName
		d.PGTable = pgxErr.TableName
		d.PGColumn = pgxErr.ColumnName
		d.PGDetail = pgxErr.Detail
		d.PGMessage = pgxErr.Message
	case errors.As(err, &pqErr):
		d.PGCode = string(pqErr.Code)
		d.PGConstraint = pqErr.Constraint
		d.PGTable = pqErr.Table
		d.PGColumn = pqErr.Column
		d.PGDetail = pqErr.Detail
		d.PGMessage = pqErr.Message
	}

	d.Class, d.Retryable = Classify(err)
	return d
}

// PGCode extracts the SQLSTATE from a pgx or lib/pq error anywhere in the
// chain, or "" when there is none.
func PGCode(err error) string {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// Classify names the storage failure behind err and reports whether a new
// unit of work may succeed. SQLite lock contention in tests and local runs
// counts as retryable like a Postgres serialization abort.
func Classify(err error) (class string, retryable bool) {
	if err == nil {
		return ClassUnclassified, false
	}
	if c, ok := pgClasses[PGCode(err)]; ok {
		return c.class, c.retryable
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "database is locked"), strings.Contains(msg, "database table is locked"):
		return ClassSQLiteBusy, true
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return ClassUniqueViolation, false
	case strings.Contains(msg, "CHECK constraint failed"):
		return ClassCheckViolation, false
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return ClassForeignKey, false
	}
	return ClassUnclassified, false
}
