package devserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/desertthunder/reelx/internal/realtime"
)

const writeTimeout = 10 * time.Second

// socket serialises writes; gorilla connections allow one concurrent writer.
type socket struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *socket) write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(v)
}

// hub tracks open sockets per user.
type hub struct {
	mu      sync.Mutex
	sockets map[string]map[*socket]struct{}
	logger  *log.Logger
}

func newHub(logger *log.Logger) *hub {
	return &hub{sockets: make(map[string]map[*socket]struct{}), logger: logger}
}

func (h *hub) add(userID string, s *socket) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sockets[userID] == nil {
		h.sockets[userID] = make(map[*socket]struct{})
	}
	h.sockets[userID][s] = struct{}{}
}

func (h *hub) remove(userID string, s *socket) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sockets[userID], s)
	if len(h.sockets[userID]) == 0 {
		delete(h.sockets, userID)
	}
}

// count returns the number of open sockets for userID.
func (h *hub) count(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sockets[userID])
}

// send delivers an event to every socket of userID and reports how many accepted it.
func (h *hub) send(userID, event string, data any) int {
	raw, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("failed to encode event", "event", event, "error", err)
		return 0
	}
	env := realtime.Envelope{Event: event, Data: raw}

	h.mu.Lock()
	targets := make([]*socket, 0, len(h.sockets[userID]))
	for s := range h.sockets[userID] {
		targets = append(targets, s)
	}
	h.mu.Unlock()

	sent := 0
	for _, s := range targets {
		if err := s.write(env); err != nil {
			h.logger.Warn("push failed", "user", userID, "error", err)
			s.conn.Close()
			continue
		}
		sent++
	}
	return sent
}

// closeAll drops every socket, used on shutdown.
func (h *hub) closeAll() {
	h.mu.Lock()
	var all []*socket
	for _, set := range h.sockets {
		for s := range set {
			all = append(all, s)
		}
	}
	h.mu.Unlock()

	for _, s := range all {
		s.conn.Close()
	}
}

func newUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(*http.Request) bool { return true },
	}
}
