package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ileri/atelier/auth"
	"github.com/ileri/atelier/shield"
)

const (
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = livePongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
}

func viewLang(r *http.Request) string {
	if lang := r.URL.Query().Get("lang"); lang != "" {
		return lang
	}
	return "tr"
}

func (s *Server) handleSite(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.rec.View(viewLang(r), isAdmin(r)))
}

// handleLive streams the site view over a websocket: the current view on
// connect, then the latest view after every reconciled change.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	lang, private := viewLang(r), isAdmin(r)
	log := shield.GetLogger(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("httpapi: websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	if s.metrics != nil {
		s.metrics.LiveClients.Inc()
		defer s.metrics.LiveClients.Dec()
	}

	updates, cancel := s.rec.Watch()
	defer cancel()

	// The reader only exists to notice the client going away and to
	// handle pongs.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(livePongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(livePongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(livePingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-closed:
			return
		case cfg, ok := <-updates:
			if !ok {
				return
			}
			cfg = cfg.Localize(lang)
			if !private {
				cfg = cfg.WithoutPrivate()
			}
			conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := conn.WriteJSON(cfg); err != nil {
				log.Debug("httpapi: live client gone", "error", err)
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type loginResponse struct {
	Identity  auth.Identity `json:"identity"`
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expiresAt"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var cred auth.Credential
	if !s.decode(w, r, &cred) {
		return
	}
	id, err := s.gate.Login(r.Context(), cred)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, errors.New("invalid username or password"))
		return
	}
	if err != nil {
		fail(w, r, err)
		return
	}
	token, err := s.auth.Issue(id)
	if err != nil {
		fail(w, r, err)
		return
	}
	ttl := s.auth.TTL()
	auth.SetTokenCookie(w, token, int(ttl.Seconds()), s.secureCookie || r.TLS != nil)
	writeJSON(w, http.StatusOK, loginResponse{Identity: id, Token: token, ExpiresAt: time.Now().Add(ttl).UTC()})
}

// handleLogout ends the process-wide session, which also revokes every
// token issued so far. Without an admin token it only drops the cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearTokenCookie(w)
	if !isAdmin(r) {
		writeJSON(w, http.StatusOK, map[string]bool{"authenticated": false})
		return
	}
	if err := s.gate.Logout(r.Context()); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.gate.Status())
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if !isAdmin(r) {
		writeJSON(w, http.StatusOK, map[string]bool{"authenticated": false})
		return
	}
	writeJSON(w, http.StatusOK, s.gate.Status())
}
