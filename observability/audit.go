// Package observability records an audit trail of edit requests in SQLite.
//
// Writes are batched on a background goroutine so a slow or failing audit
// store never delays an HTTP response.
package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hazyhaar/doodle/idgen"
	"github.com/hazyhaar/doodle/kit"
)

// AuditEntry is a single operation record in the audit trail.
type AuditEntry struct {
	EntryID       string    `json:"entry_id"`
	Timestamp     time.Time `json:"timestamp"`
	ComponentName string    `json:"component"` // e.g. "editproxy", "mcp"
	OperationType string    `json:"operation"` // e.g. "edit", "edit2"
	RequestID     string    `json:"request_id,omitempty"`

	Parameters   string `json:"parameters"` // JSON
	Result       string `json:"result,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	DurationMs   int64  `json:"duration_ms"`

	Status string `json:"status"` // "success", "rejected", "error"
}

// AuditFilter controls query results from the audit log.
type AuditFilter struct {
	OperationType string
	Status        string
	Limit         int // default 100
	Offset        int
	OrderDir      string // "ASC" or "DESC"
}

// AuditLogger persists audit entries asynchronously.
type AuditLogger struct {
	db       *sql.DB
	newID    idgen.Generator
	interval time.Duration
	ch       chan *AuditEntry
	stop     chan struct{}
	done     chan struct{}
}

// AuditOption configures an AuditLogger.
type AuditOption func(*AuditLogger)

// WithAuditIDGenerator sets a custom ID generator for audit entry IDs.
func WithAuditIDGenerator(gen idgen.Generator) AuditOption {
	return func(a *AuditLogger) { a.newID = gen }
}

// WithFlushInterval sets how often buffered entries are written. Default 5s.
func WithFlushInterval(d time.Duration) AuditOption {
	return func(a *AuditLogger) { a.interval = d }
}

// NewAuditLogger creates an async audit logger. Recommended bufferSize: 1000.
func NewAuditLogger(db *sql.DB, bufferSize int, opts ...AuditOption) *AuditLogger {
	a := &AuditLogger{
		db:       db,
		newID:    idgen.Prefixed("aud_", idgen.Default),
		interval: 5 * time.Second,
		ch:       make(chan *AuditEntry, bufferSize),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(a)
	}
	go a.flushLoop()
	return a
}

// Log inserts an audit entry synchronously.
func (a *AuditLogger) Log(ctx context.Context, entry *AuditEntry) error {
	a.fillDefaults(entry)
	return a.insert(ctx, entry)
}

// LogAsync queues an entry for async persistence.
// Falls back to a synchronous insert if the buffer is full.
func (a *AuditLogger) LogAsync(entry *AuditEntry) {
	a.fillDefaults(entry)
	select {
	case a.ch <- entry:
	default:
		slog.Warn("audit buffer full, sync fallback", "operation", entry.OperationType)
		if err := a.insert(entryContext(context.Background(), entry), entry); err != nil {
			slog.Error("audit: sync fallback failed", "error", err)
		}
	}
}

// NewAuditEntry builds an AuditEntry from operation parameters, result and
// error. Params and result are marshalled to JSON. The entry ID is assigned
// when the entry is logged.
func NewAuditEntry(component, operation string, params, result any, err error, duration time.Duration) *AuditEntry {
	entry := &AuditEntry{
		Timestamp:     time.Now(),
		ComponentName: component,
		OperationType: operation,
		DurationMs:    duration.Milliseconds(),
	}
	if params != nil {
		if b, e := json.Marshal(params); e == nil {
			entry.Parameters = string(b)
		}
	}
	if result != nil {
		if b, e := json.Marshal(result); e == nil {
			entry.Result = string(b)
		}
	}
	if err != nil {
		entry.ErrorMessage = err.Error()
	}
	return entry
}

// Query returns audit entries matching the filter, newest first by default.
func (a *AuditLogger) Query(ctx context.Context, f AuditFilter) ([]*AuditEntry, error) {
	q := `SELECT entry_id, timestamp, component_name, operation_type, request_id,
		parameters, result, error_code, error_message, duration_ms, status
		FROM audit_log WHERE 1=1`
	var args []any

	if f.OperationType != "" {
		q += " AND operation_type = ?"
		args = append(args, f.OperationType)
	}
	if f.Status != "" {
		q += " AND status = ?"
		args = append(args, f.Status)
	}

	orderDir := "DESC"
	if f.OrderDir != "" {
		switch strings.ToUpper(f.OrderDir) {
		case "ASC", "DESC":
			orderDir = strings.ToUpper(f.OrderDir)
		default:
			return nil, fmt.Errorf("invalid order_dir: %q", f.OrderDir)
		}
	}
	q += " ORDER BY timestamp " + orderDir + ", entry_id " + orderDir

	limit := 100
	if f.Limit > 0 {
		limit = f.Limit
	}
	q += " LIMIT ?"
	args = append(args, limit)
	if f.Offset > 0 {
		q += " OFFSET ?"
		args = append(args, f.Offset)
	}

	rows, err := a.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	entries := []*AuditEntry{}
	for rows.Next() {
		var e AuditEntry
		var ts int64
		var requestID, result, errorCode, errorMessage sql.NullString
		var durationMs sql.NullInt64

		if err := rows.Scan(
			&e.EntryID, &ts, &e.ComponentName, &e.OperationType, &requestID,
			&e.Parameters, &result, &errorCode, &errorMessage, &durationMs, &e.Status,
		); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Timestamp = time.Unix(ts, 0)
		e.RequestID = requestID.String
		e.Result = result.String
		e.ErrorCode = errorCode.String
		e.ErrorMessage = errorMessage.String
		e.DurationMs = durationMs.Int64
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// Close drains the buffer and stops the flush goroutine.
func (a *AuditLogger) Close() error {
	close(a.stop)
	<-a.done
	return nil
}

func (a *AuditLogger) fillDefaults(e *AuditEntry) {
	if e.EntryID == "" {
		e.EntryID = a.newID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if e.Parameters == "" {
		e.Parameters = "{}"
	}
	if e.Status == "" {
		if e.ErrorMessage != "" {
			e.Status = "error"
		} else {
			e.Status = "success"
		}
	}
}

func (a *AuditLogger) flushLoop() {
	defer close(a.done)
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	batch := make([]*AuditEntry, 0, 100)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		tx, err := a.db.BeginTx(ctx, nil)
		if err != nil {
			slog.Error("audit: begin tx", "error", err)
			return
		}
		stmt, err := tx.PrepareContext(ctx, insertSQL)
		if err != nil {
			tx.Rollback()
			slog.Error("audit: prepare", "error", err)
			return
		}
		defer stmt.Close()

		for _, e := range batch {
			if _, err := stmt.ExecContext(entryContext(ctx, e), entryArgs(e)...); err != nil {
				slog.Error("audit: insert", "error", err, "entry_id", e.EntryID)
			}
		}
		if err := tx.Commit(); err != nil {
			slog.Error("audit: commit", "error", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-a.stop:
			for {
				select {
				case e := <-a.ch:
					batch = append(batch, e)
				default:
					flush()
					return
				}
			}
		case e := <-a.ch:
			batch = append(batch, e)
			if len(batch) >= 100 {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

const insertSQL = `INSERT INTO audit_log
	(entry_id, timestamp, component_name, operation_type, request_id,
	 parameters, result, error_code, error_message, duration_ms, status)
	VALUES (?,?,?,?,?,?,?,?,?,?,?)`

func entryArgs(e *AuditEntry) []any {
	return []any{
		e.EntryID, e.Timestamp.Unix(), e.ComponentName, e.OperationType, e.RequestID,
		e.Parameters, e.Result, e.ErrorCode, e.ErrorMessage, e.DurationMs, e.Status,
	}
}

func (a *AuditLogger) insert(ctx context.Context, e *AuditEntry) error {
	_, err := a.db.ExecContext(entryContext(ctx, e), insertSQL, entryArgs(e)...)
	return err
}

// entryContext carries the entry's request ID so traced drivers can tie the
// INSERT back to the request that produced it.
func entryContext(ctx context.Context, e *AuditEntry) context.Context {
	if e.RequestID == "" || kit.GetRequestID(ctx) == e.RequestID {
		return ctx
	}
	return kit.WithRequestID(ctx, e.RequestID)
}
