// Package trace provides transparent SQL tracing for modernc.org/sqlite.
//
// It registers a "sqlite-trace" driver that wraps the standard "sqlite"
// driver and logs every Exec and Query through slog. Open the audit store
// with it to see its SQL:
//
//	db, err := dbopen.Open("audit.db", dbopen.WithDriver(trace.DriverName))
//
// Levels are adaptive: Debug normally, Warn above SlowThreshold, Error on
// failure. The request's trace ID is attached when the context carries one.
package trace

import (
	"database/sql"
	"time"

	sqlite "modernc.org/sqlite"
)

// DriverName is the database/sql name of the tracing driver.
const DriverName = "sqlite-trace"

// SlowThreshold is the duration above which a statement is logged at Warn.
var SlowThreshold = 100 * time.Millisecond

func init() {
	sql.Register(DriverName, &TracingDriver{
		Driver: &sqlite.Driver{},
	})
}
