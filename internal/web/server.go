// Package web provides the local HTTP UI for the thermostat daemon.
package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/thermostat/internal/control"
	"github.com/sweeney/thermostat/internal/logger"
	"github.com/sweeney/thermostat/internal/status"
)

// Live feed timing.
const (
	feedInterval = 1 * time.Second
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	maxMsgSize   = 1 << 12
)

// SetpointRequester accepts setpoint changes from the UI.
type SetpointRequester interface {
	RequestSetpoint(r control.SetpointRequest) error
}

// Server serves the status page, setpoint form, live feed, and metrics.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	setpoints  SetpointRequester
	log        *logger.Logger

	upgrader     websocket.Upgrader
	feedInterval time.Duration
}

// New creates a Server reading state from tracker. A nil setpoints makes the
// UI read-only; a nil gatherer disables /metrics.
func New(addr string, tracker *status.Tracker, setpoints SetpointRequester, gatherer prometheus.Gatherer, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{
		tracker:      tracker,
		setpoints:    setpoints,
		log:          log,
		feedInterval: feedInterval,
		upgrader: websocket.Upgrader{
			// The UI is served from this host; other origins get nothing.
			CheckOrigin: sameHost,
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/setpoint", s.handleSetpoint)
	mux.HandleFunc("/ws", s.handleWS)
	if gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server. Open live feeds are not
// tracked by http.Server and end when their connections close.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, snap, s.setpoints != nil); err != nil {
		s.log.Warnw("render status page", "err", err)
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleSetpoint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.setpoints == nil {
		writeError(w, http.StatusServiceUnavailable, "setpoint changes disabled")
		return
	}

	req, err := parseSetpointForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.setpoints.RequestSetpoint(req); err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, control.ErrMailboxFull) {
			code = http.StatusServiceUnavailable
		}
		s.log.Warnw("setpoint request refused", "err", err)
		writeError(w, code, err.Error())
		return
	}

	s.log.Infow("setpoint request accepted", "remote", r.RemoteAddr)
	if r.FormValue("redirect") != "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusAccepted, setpointResponse{Accepted: true})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debugw("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go readUntilClosed(conn, done)

	feed := time.NewTicker(s.feedInterval)
	ping := time.NewTicker(pingPeriod)
	defer feed.Stop()
	defer ping.Stop()

	if err := s.sendStatus(conn); err != nil {
		return
	}
	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-feed.C:
			if err := s.sendStatus(conn); err != nil {
				s.log.Debugw("websocket write failed", "err", err)
				return
			}
		}
	}
}

func (s *Server) sendStatus(conn *websocket.Conn) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, status.FormatCompactJSON(s.tracker.Snapshot()))
}

// readUntilClosed drains client frames so control messages are handled and
// closes done when the peer goes away.
func readUntilClosed(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func sameHost(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return originHost(origin) == r.Host
}
