// notify.go — Per-user websocket fan-out.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const (
	clientBuffer = 16
	writeTimeout = 5 * time.Second
)

type event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type client struct {
	send chan []byte
}

// hub maps an identity to its set of live connections. Connections are
// added on accept and removed when their handler returns.
type hub struct {
	mu    sync.Mutex
	conns map[string]map[*client]struct{}
}

func newHub() *hub {
	return &hub{conns: make(map[string]map[*client]struct{})}
}

func (h *hub) add(user string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.conns[user]
	if !ok {
		set = make(map[*client]struct{})
		h.conns[user] = set
	}
	set[c] = struct{}{}
}

func (h *hub) remove(user string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.conns[user]
	delete(set, c)
	if len(set) == 0 {
		delete(h.conns, user)
	}
}

func (h *hub) connections(user string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns[user])
}

// notify queues an event for every connection of user and returns how many
// accepted it. A connection whose buffer is full misses the event.
func (h *hub) notify(user, name string, data any) int {
	msg, err := json.Marshal(event{Event: name, Data: data})
	if err != nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for c := range h.conns[user] {
		select {
		case c.send <- msg:
			n++
		default:
		}
	}
	return n
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("user", p.Username).Msg("websocket accept failed")
		return
	}
	defer conn.CloseNow()

	c := &client{send: make(chan []byte, clientBuffer)}
	s.hub.add(p.Username, c)
	defer s.hub.remove(p.Username, c)
	s.log.Debug().Str("user", p.Username).Msg("websocket connected")

	// Clients only listen; CloseRead handles control frames and cancels
	// ctx once the peer goes away.
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			s.log.Debug().Str("user", p.Username).Msg("websocket disconnected")
			return
		case msg := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
