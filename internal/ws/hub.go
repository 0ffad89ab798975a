// Package ws pushes full session snapshots to connected clients over
// websockets. One room per join code; every state change broadcasts the
// whole snapshot and clients replace their copy, latest write wins.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/quipcourt/quipcourt/internal/game"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second
	sendBuffer = 8
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// room tracks the highest snapshot sequence it has delivered and keeps
// that frame around for clients that register with an older pull.
type room struct {
	clients map[*client]bool
	lastSeq uint64
	last    []byte
}

type Hub struct {
	mu       sync.Mutex
	rooms    map[string]*room
	upgrader websocket.Upgrader
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]*room),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Publish implements game.Notifier. Frames are produced in sequence order
// but delivered on independent goroutines, so a frame arriving here with a
// sequence at or below the room's latest is stale and dropped; latest
// write wins. Slow consumers get old frames dropped rather than blocking
// the broadcast; the next frame is always a full snapshot anyway.
func (h *Hub) Publish(code string, snapshot *game.Snapshot) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		log.Error().Err(err).Str("code", code).Msg("snapshot marshal failed")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	rm := h.rooms[code]
	if rm == nil {
		return
	}
	if snapshot.Seq <= rm.lastSeq {
		log.Debug().Str("code", code).Uint64("seq", snapshot.Seq).Uint64("last", rm.lastSeq).Msg("stale snapshot dropped")
		return
	}
	rm.lastSeq = snapshot.Seq
	rm.last = payload

	for c := range rm.clients {
		for {
			select {
			case c.send <- payload:
			default:
				// buffer full: drop the oldest frame and retry
				select {
				case <-c.send:
				default:
				}
				continue
			}
			break
		}
	}
}

// Serve upgrades the request and attaches it to the session's room. The
// client is registered before its first frame is chosen, and that frame
// is the fresher of the caller's pulled snapshot and whatever the room
// broadcast in the meantime, so nothing falls into the join window.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, code string, initial *game.Snapshot) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	rm := h.rooms[code]
	if rm == nil {
		rm = &room{clients: make(map[*client]bool)}
		h.rooms[code] = rm
	}
	rm.clients[c] = true

	first := rm.last
	if initial != nil && initial.Seq >= rm.lastSeq {
		if payload, err := json.Marshal(initial); err == nil {
			first = payload
			rm.lastSeq = initial.Seq
			rm.last = payload
		}
	}
	if first != nil {
		c.send <- first
	}
	h.mu.Unlock()

	go c.writePump()
	c.readPump(func() { h.drop(code, c) })
}

func (h *Hub) drop(code string, c *client) {
	h.mu.Lock()
	if rm := h.rooms[code]; rm != nil {
		delete(rm.clients, c)
		if len(rm.clients) == 0 {
			delete(h.rooms, code)
		}
	}
	h.mu.Unlock()
	close(c.send)
}

// readPump only watches for close and keeps the pong deadline fresh;
// clients never send state upstream on this socket.
func (c *client) readPump(onClose func()) {
	defer func() {
		onClose()
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
