// Package shared holds small cross-cutting helpers.
package shared

import "strings"

// IsSQLiteConflictError reports whether the error is a SQLite concurrency
// failure (SQLITE_BUSY or "database is locked"). Both mean another
// connection holds the write lock and the statement is worth retrying;
// everything else is a real failure. Matched on the message because the
// pure-Go driver does not export stable sentinel errors for these.
func IsSQLiteConflictError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
