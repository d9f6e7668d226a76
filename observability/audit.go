package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ileri/atelier/idgen"
)

// AuditEntry records one CMS mutation.
type AuditEntry struct {
	EntryID       string
	Timestamp     time.Time
	ComponentName string // "reconcile", "session"
	OperationType string // "add_item", "publish_settings", ...
	UserID        string
	Parameters    string // JSON
	ErrorMessage  string
	DurationMs    int64
	Status        string // "success" or "error"
}

// AuditLogger persists entries asynchronously in batches.
type AuditLogger struct {
	db    *sql.DB
	newID idgen.Generator
	ch    chan *AuditEntry
	stop  chan struct{}
	done  chan struct{}
}

// NewAuditLogger starts the flush goroutine. Close drains it.
func NewAuditLogger(db *sql.DB, bufferSize int) *AuditLogger {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	a := &AuditLogger{
		db:    db,
		newID: idgen.Prefixed("audit_", idgen.Default),
		ch:    make(chan *AuditEntry, bufferSize),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go a.flushLoop()
	return a
}

// Record queues an entry describing one operation. params is marshalled to
// JSON. When the buffer is full the entry is written synchronously.
func (a *AuditLogger) Record(component, operation, user string, params any, err error, d time.Duration) {
	if a == nil {
		return
	}
	e := &AuditEntry{
		EntryID:       a.newID(),
		Timestamp:     time.Now(),
		ComponentName: component,
		OperationType: operation,
		UserID:        user,
		Parameters:    "{}",
		DurationMs:    d.Milliseconds(),
		Status:        "success",
	}
	if params != nil {
		if b, merr := json.Marshal(params); merr == nil {
			e.Parameters = string(b)
		}
	}
	if err != nil {
		e.Status = "error"
		e.ErrorMessage = err.Error()
	}

	select {
	case a.ch <- e:
	default:
		slog.Warn("observability: audit buffer full, writing synchronously", "operation", operation)
		if err := a.insert(context.Background(), a.db, e); err != nil {
			slog.Error("observability: audit insert failed", "error", err)
		}
	}
}

// Recent returns the newest entries first.
func (a *AuditLogger) Recent(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := a.db.QueryContext(ctx, `SELECT entry_id, timestamp, component_name, operation_type,
		COALESCE(user_id,''), parameters, COALESCE(error_message,''), COALESCE(duration_ms,0), status
		FROM audit_log ORDER BY timestamp DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("observability: query audit log: %w", err)
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var ts int64
		if err := rows.Scan(&e.EntryID, &ts, &e.ComponentName, &e.OperationType,
			&e.UserID, &e.Parameters, &e.ErrorMessage, &e.DurationMs, &e.Status); err != nil {
			return nil, fmt.Errorf("observability: scan audit entry: %w", err)
		}
		e.Timestamp = time.Unix(ts, 0)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close flushes pending entries and stops the goroutine. Safe on nil.
func (a *AuditLogger) Close() error {
	if a == nil {
		return nil
	}
	close(a.stop)
	<-a.done
	return nil
}

func (a *AuditLogger) flushLoop() {
	defer close(a.done)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	batch := make([]*AuditEntry, 0, 64)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx := context.Background()
		tx, err := a.db.BeginTx(ctx, nil)
		if err != nil {
			slog.Error("observability: audit begin", "error", err)
			batch = batch[:0]
			return
		}
		for _, e := range batch {
			if err := a.insert(ctx, tx, e); err != nil {
				slog.Error("observability: audit insert", "error", err, "entry_id", e.EntryID)
			}
		}
		if err := tx.Commit(); err != nil {
			slog.Error("observability: audit commit", "error", err)
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
			if len(batch) >= 64 {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (a *AuditLogger) insert(ctx context.Context, db execer, e *AuditEntry) error {
	_, err := db.ExecContext(ctx, `INSERT INTO audit_log
		(entry_id, timestamp, component_name, operation_type, user_id,
		 parameters, error_message, duration_ms, status)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		e.EntryID, e.Timestamp.Unix(), e.ComponentName, e.OperationType, e.UserID,
		e.Parameters, e.ErrorMessage, e.DurationMs, e.Status)
	return err
}
