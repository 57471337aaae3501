// Package web serves the climate agent's status page, its JSON views and a
// websocket stream of status snapshots.
package web

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/sweeney/climate-agent/internal/logger"
	"github.com/sweeney/climate-agent/internal/status"
	"github.com/sweeney/climate-agent/internal/store"
)

// HistorySource serves the hourly means of one date.
type HistorySource interface {
	Day(ctx context.Context, date string) (store.Day, error)
}

// Server is the read-only HTTP front of a status.Tracker.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	history    HistorySource
	log        *logger.Logger
}

// New creates a Server that reads state from the given tracker and serves
// /api/history from history.
func New(addr string, tracker *status.Tracker, history HistorySource, log *logger.Logger) *Server {
	s := &Server{tracker: tracker, history: history, log: log.Component("web")}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /index.html", s.handleIndex)
	mux.HandleFunc("GET /index.json", s.handleJSON)
	mux.HandleFunc("GET /api/latest", s.handleLatest)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /ws", s.handleWS)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// ListenAndServe blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on ln.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, s.tracker.Snapshot()); err != nil {
		s.log.Warnw("render index", "err", err)
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, status.FormatJSON(s.tracker.Snapshot()))
}

// handleLatest answers 503 until the first successful reading.
func (s *Server) handleLatest(w http.ResponseWriter, _ *http.Request) {
	snap := s.tracker.Snapshot()
	if snap.Latest == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, []byte(`{"error":"no reading yet"}`))
		return
	}
	s.writeJSON(w, http.StatusOK, formatLatest(*snap.Latest))
}

// handleHistory answers 400 unless date is a valid YYYY-MM-DD.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if _, err := time.Parse(store.DateLayout, date); err != nil {
		s.writeJSON(w, http.StatusBadRequest, []byte(`{"error":"invalid date parameter, expected YYYY-MM-DD"}`))
		return
	}

	day, err := s.history.Day(r.Context(), date)
	if err != nil {
		s.log.Warnw("history read failed", "date", date, "err", err)
		s.writeJSON(w, http.StatusInternalServerError, []byte(`{"error":"history unavailable"}`))
		return
	}
	s.writeJSON(w, http.StatusOK, formatHistory(day))
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(body); err != nil {
		s.log.Debugw("write response", "err", err)
	}
}
