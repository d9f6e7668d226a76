package shield

import (
	"context"
	"database/sql"
	"encoding/json"
	"html"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// DefaultMaintenanceMessage is shown when no message is configured.
const DefaultMaintenanceMessage = "We are refreshing the boutique. Please come back in a few minutes."

// MaintenanceMode answers 503 while the flag in the maintenance table is
// set. The flag is cached in memory; Reload keeps it fresh when another
// process flips it.
type MaintenanceMode struct {
	db      *sql.DB
	active  atomic.Bool
	message atomic.Value // string
	exclude []string
}

// NewMaintenanceMode reads the flag once. Paths under excludePrefixes are
// never blocked.
func NewMaintenanceMode(db *sql.DB, excludePrefixes ...string) *MaintenanceMode {
	m := &MaintenanceMode{db: db, exclude: excludePrefixes}
	m.message.Store(DefaultMaintenanceMessage)
	m.reload()
	return m
}

// Active reports whether maintenance mode is currently on.
func (m *MaintenanceMode) Active() bool { return m.active.Load() }

// Message returns the current maintenance message.
func (m *MaintenanceMode) Message() string {
	s, _ := m.message.Load().(string)
	return s
}

// Set turns maintenance on or off. An empty message keeps the default.
func (m *MaintenanceMode) Set(ctx context.Context, active bool, message string) error {
	flag := 0
	if active {
		flag = 1
	}
	if _, err := m.db.ExecContext(ctx,
		`INSERT INTO maintenance (id, active, message) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET active = excluded.active, message = excluded.message`,
		flag, message); err != nil {
		return err
	}
	m.reload()
	return nil
}

// Reload re-reads the flag every interval until ctx is cancelled.
func (m *MaintenanceMode) Reload(ctx context.Context, interval time.Duration) {
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			m.reload()
		}
	}
}

func (m *MaintenanceMode) reload() {
	var active int
	var message string
	err := m.db.QueryRow(`SELECT active, message FROM maintenance WHERE id = 1`).Scan(&active, &message)
	if err != nil {
		// Table missing or empty: maintenance off.
		if m.active.Load() {
			slog.Info("maintenance: flag cleared (table missing or empty)")
		}
		m.active.Store(false)
		return
	}

	was := m.active.Swap(active == 1)
	if message == "" {
		message = DefaultMaintenanceMessage
	}
	m.message.Store(message)

	if active == 1 && !was {
		slog.Warn("maintenance: mode ENABLED", "message", message)
	} else if active != 1 && was {
		slog.Info("maintenance: mode DISABLED")
	}
}

// Middleware blocks requests while maintenance is on: API paths get a JSON
// body, everything else a small HTML page.
func (m *MaintenanceMode) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.active.Load() {
			next.ServeHTTP(w, r)
			return
		}
		for _, prefix := range m.exclude {
			if strings.HasPrefix(r.URL.Path, prefix) {
				next.ServeHTTP(w, r)
				return
			}
		}

		w.Header().Set("Retry-After", "300")
		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"error": "maintenance", "message": m.Message()})
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(maintenancePage(m.Message())))
	})
}

func maintenancePage(message string) string {
	return `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Maintenance</title>
<style>
  body { font-family: Georgia, serif; display: flex; align-items: center;
         justify-content: center; min-height: 100vh; margin: 0; background: #faf7f2; color: #333; }
  .box { text-align: center; max-width: 480px; padding: 2rem; }
  h1 { font-size: 1.5rem; margin-bottom: .5rem; color: #b08d57; }
  p  { color: #666; }
</style>
</head>
<body>
<div class="box">
  <h1>Maintenance</h1>
  <p>` + html.EscapeString(message) + `</p>
</div>
</body>
</html>`
}
