package sqlitedb

import (
	"errors"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// IsFull reports whether err comes from SQLite running out of pages.
func IsFull(err error) bool {
	if err == nil {
		return false
	}
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		return serr.Code()&0xff == sqlite3.SQLITE_FULL
	}
	// migrate wraps driver errors without Unwrap
	return strings.Contains(err.Error(), "database or disk is full")
}
