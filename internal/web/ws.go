package web

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sweeney/climate-agent/internal/status"
)

const (
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = (pongWait * 9) / 10
	refreshPeriod = 5 * time.Second
	maxMsgSize    = 1 << 10
)

var upgrader = websocket.Upgrader{
	// Served on the LAN to the status page only.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS streams a status JSON document on every change, and at least
// every refreshPeriod so the countdown stays current.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debugw("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// The reader only drains control frames and notices the close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	refresh := time.NewTicker(refreshPeriod)
	ping := time.NewTicker(pingPeriod)
	defer func() {
		refresh.Stop()
		ping.Stop()
	}()

	for {
		changed := s.tracker.Changed()
		if err := s.sendSnapshot(conn); err != nil {
			s.log.Debugw("ws write failed", "err", err)
			return
		}

		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-changed:
		case <-refresh.C:
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) sendSnapshot(conn *websocket.Conn) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, status.FormatJSON(s.tracker.Snapshot()))
}
