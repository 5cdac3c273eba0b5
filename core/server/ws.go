package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/adalundhe/crews/core/session"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// Frame is one websocket message. Type is "log" for a log line and "status"
// for the final run state.
type Frame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type statusData struct {
	State     string `json:"state"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
}

// handleRunStream replays the run's log backlog, follows new lines until the
// run finishes and ends with a status frame.
func (s *Server) handleRunStream(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	if m := s.config.Metrics; m != nil {
		m.WSConnectionsActive.Inc()
		defer m.WSConnectionsActive.Dec()
	}

	backlog, lines, cancel := run.Log.Subscribe()
	defer cancel()

	gone := make(chan struct{})
	go readPump(conn, gone)

	send := func(f Frame) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(f); err != nil {
			s.logger.Debug("websocket write failed", "run", run.ID, "error", err)
			return false
		}
		return true
	}

	for _, line := range backlog {
		if !send(Frame{Type: "log", Data: line}) {
			return
		}
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for lines != nil {
		select {
		case line, open := <-lines:
			if !open {
				lines = nil
				continue
			}
			if !send(Frame{Type: "log", Data: line}) {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-gone:
			return
		}
	}

	select {
	case <-run.Done():
	case <-gone:
		return
	}

	if !send(Frame{Type: "status", Data: runStatus(run)}) {
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"),
		time.Now().Add(writeWait))
}

func runStatus(run *session.Run) statusData {
	snap := run.Snapshot()
	return statusData{State: snap.State, Error: snap.Error, ErrorKind: snap.ErrorKind}
}

// readPump drains client frames so pongs and close messages are handled.
func readPump(conn *websocket.Conn, gone chan<- struct{}) {
	defer close(gone)

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
