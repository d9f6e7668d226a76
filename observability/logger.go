// Package observability carries the ambient instrumentation of the
// storefront: the process logger, the business-event log and CMS audit
// trail kept in a dedicated SQLite database, and the Prometheus collectors
// exported on /metrics.
package observability

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ileri/atelier/idgen"
)

// NewLogger builds the process logger. format is "json" (default) or
// "text"; level is one of debug, info, warn, error (default info). The
// logger is also installed as slog.Default.
func NewLogger(level, format string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var h slog.Handler
	if strings.EqualFold(format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	l := slog.New(h)
	slog.SetDefault(l)
	return l
}

// ParseLevel maps a level name to slog.Level. Unknown names are Info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// BusinessEvent is a domain-level event to record.
type BusinessEvent struct {
	EventType   string // "order", "appointment", "session", "analysis"
	ServiceName string
	EntityType  string
	EntityID    string
	UserID      string
	Action      string
	Details     string // optional JSON
	Success     bool
}

// EventLogger writes business events.
type EventLogger struct {
	db    *sql.DB
	newID idgen.Generator
	now   func() time.Time
}

// EventLoggerOption configures an EventLogger.
type EventLoggerOption func(*EventLogger)

// WithEventIDGenerator sets a custom ID generator for event IDs.
func WithEventIDGenerator(gen idgen.Generator) EventLoggerOption {
	return func(l *EventLogger) { l.newID = gen }
}

// NewEventLogger creates a logger backed by the observability database.
func NewEventLogger(db *sql.DB, opts ...EventLoggerOption) *EventLogger {
	l := &EventLogger{
		db:    db,
		newID: idgen.Prefixed("evt_", idgen.Default),
		now:   time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// LogEvent records a business event. Failures are logged, never returned:
// a broken observability store must not fail a checkout.
func (l *EventLogger) LogEvent(ctx context.Context, event BusinessEvent) {
	if l == nil {
		return
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO business_event_logs (
			event_id, event_type, service_name, entity_type, entity_id,
			user_id, action, details, success, created_at
		) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		l.newID(), event.EventType, event.ServiceName, event.EntityType, event.EntityID,
		event.UserID, event.Action, event.Details, event.Success, l.now().Unix())
	if err != nil {
		slog.Error("observability: event log failed", "error", err, "event_type", event.EventType)
	}
}

// RequestLog is one served HTTP request.
type RequestLog struct {
	Method    string
	Path      string
	Status    int
	Duration  time.Duration
	UserID    string
	IP        string
	UserAgent string
}

// LogRequest records r in http_request_logs. Failures are logged only.
func (l *EventLogger) LogRequest(ctx context.Context, r RequestLog) {
	if l == nil {
		return
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO http_request_logs (method, path, status_code, duration_ms, user_id, ip_address, user_agent, created_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		r.Method, r.Path, r.Status, r.Duration.Milliseconds(), r.UserID, r.IP, r.UserAgent, l.now().Unix())
	if err != nil {
		slog.Warn("observability: request log failed", "error", err, "path", r.Path)
	}
}

// RecentEvents returns the latest events of eventType, newest first. An
// empty eventType matches all.
func (l *EventLogger) RecentEvents(ctx context.Context, eventType string, limit int) ([]BusinessEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT event_type, service_name, COALESCE(entity_type,''), COALESCE(entity_id,''),
		COALESCE(user_id,''), action, COALESCE(details,''), success
		FROM business_event_logs`
	var args []any
	if eventType != "" {
		q += ` WHERE event_type = ?`
		args = append(args, eventType)
	}
	q += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("observability: query events: %w", err)
	}
	defer rows.Close()

	var out []BusinessEvent
	for rows.Next() {
		var e BusinessEvent
		if err := rows.Scan(&e.EventType, &e.ServiceName, &e.EntityType, &e.EntityID,
			&e.UserID, &e.Action, &e.Details, &e.Success); err != nil {
			return nil, fmt.Errorf("observability: scan event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// RetentionConfig specifies per-table retention in days. Zero keeps forever.
type RetentionConfig struct {
	HTTPLogsDays   int
	EventLogsDays  int
	AuditLogsDays  int
	RunVacuumAfter bool
}

// Cleanup deletes records older than the retention thresholds.
func Cleanup(ctx context.Context, db *sql.DB, cfg RetentionConfig) error {
	now := time.Now().Unix()
	targets := []struct {
		query string
		days  int
	}{
		{"DELETE FROM http_request_logs WHERE created_at < ?", cfg.HTTPLogsDays},
		{"DELETE FROM business_event_logs WHERE created_at < ?", cfg.EventLogsDays},
		{"DELETE FROM audit_log WHERE timestamp < ?", cfg.AuditLogsDays},
	}
	for _, t := range targets {
		if t.days <= 0 {
			continue
		}
		cutoff := now - int64(t.days*86400)
		if _, err := db.ExecContext(ctx, t.query, cutoff); err != nil {
			return fmt.Errorf("observability: cleanup: %w", err)
		}
	}
	if cfg.RunVacuumAfter {
		if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
			return fmt.Errorf("observability: vacuum: %w", err)
		}
	}
	return nil
}
