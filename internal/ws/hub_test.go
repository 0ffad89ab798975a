package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quipcourt/quipcourt/internal/game"
)

func frame(t *testing.T, s *game.Snapshot) []byte {
	t.Helper()
	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func readFrame(t *testing.T, conn *websocket.Conn) *game.Snapshot {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var snap game.Snapshot
	if err := json.Unmarshal(msg, &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return &snap
}

func TestPublishDropsStaleFrames(t *testing.T) {
	h := NewHub()
	c := &client{send: make(chan []byte, sendBuffer)}
	h.rooms["ABCD"] = &room{clients: map[*client]bool{c: true}}

	// frames are produced in order but can be delivered in reverse
	h.Publish("ABCD", &game.Snapshot{Seq: 2})
	h.Publish("ABCD", &game.Snapshot{Seq: 1})

	if got := len(c.send); got != 1 {
		t.Fatalf("expected exactly 1 delivered frame, got %d", got)
	}
	var snap game.Snapshot
	if err := json.Unmarshal(<-c.send, &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if snap.Seq != 2 {
		t.Fatalf("stale frame replaced the newer one: got seq %d", snap.Seq)
	}
}

func TestPublishWithoutRoomIsANoop(t *testing.T) {
	h := NewHub()
	h.Publish("ZZZZ", &game.Snapshot{Seq: 1})
	if len(h.rooms) != 0 {
		t.Fatal("publishing to an empty hub should not create rooms")
	}
}

func TestServeSendsInitialSnapshot(t *testing.T) {
	h := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.Serve(w, r, "ABCD", &game.Snapshot{Seq: 1})
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if snap := readFrame(t, conn); snap.Seq != 1 {
		t.Fatalf("expected the pulled snapshot first, got seq %d", snap.Seq)
	}
}

// A broadcast can land between the caller's snapshot pull and the
// websocket registration; the client must start from the fresher frame.
func TestServePrefersNewerRoomFrame(t *testing.T) {
	h := NewHub()
	h.rooms["ABCD"] = &room{
		clients: make(map[*client]bool),
		lastSeq: 5,
		last:    frame(t, &game.Snapshot{Seq: 5}),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.Serve(w, r, "ABCD", &game.Snapshot{Seq: 3})
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if snap := readFrame(t, conn); snap.Seq != 5 {
		t.Fatalf("expected the room's newer frame (seq 5), got seq %d", snap.Seq)
	}
}

func TestServeThenPublishReachesClient(t *testing.T) {
	h := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.Serve(w, r, "ABCD", &game.Snapshot{Seq: 1})
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	readFrame(t, conn) // initial

	h.Publish("ABCD", &game.Snapshot{Seq: 2})
	if snap := readFrame(t, conn); snap.Seq != 2 {
		t.Fatalf("expected the broadcast frame, got seq %d", snap.Seq)
	}
}
