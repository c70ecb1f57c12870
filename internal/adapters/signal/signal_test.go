package signal

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/teamscreen/teamscreen/internal/app"
	"github.com/teamscreen/teamscreen/internal/config"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) string {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		ReadLimit:       32768,
		PingPeriod:      54 * time.Second,
		DefaultCapacity: 5,
		MaxCapacity:     16,
		ChatBurst:       20,
		ChatInterval:    10 * time.Second,
	}
	if mutate != nil {
		mutate(cfg)
	}

	coord := app.NewCoordinator(app.NewRoomManager(cfg.DefaultCapacity, cfg.MaxCapacity))
	ctrl := NewController(coord, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		ctrl.HandleSignal(ctx, c)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// expect reads frames until one of the wanted kind arrives. Frames of
// other kinds are skipped; per-connection ordering makes this safe.
func expect(t *testing.T, conn *websocket.Conn, kind string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %q: %v", kind, err)
		}
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("bad frame %q: %v", data, err)
		}
		if m["type"] == kind {
			return m
		}
	}
}

func expectNothing(t *testing.T, conn *websocket.Conn, wait time.Duration) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(wait))
	if _, data, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected silence, got %s", data)
	}
}

func TestSignalRoomFlow(t *testing.T) {
	url := newTestServer(t, nil)

	bob := dial(t, url)
	bobID, _ := expect(t, bob, "welcome")["id"].(string)
	if bobID == "" {
		t.Fatal("welcome without id")
	}

	send(t, bob, map[string]any{"type": "create_room", "roomId": "r1", "nickname": "Bob"})
	if got := expect(t, bob, "room_created"); got["roomId"] != "r1" {
		t.Fatalf("room_created wrong: %v", got)
	}
	snap := expect(t, bob, "all_users")
	if users, _ := snap["users"].([]any); len(users) != 0 {
		t.Fatalf("creator snapshot should be empty: %v", snap)
	}

	alice := dial(t, url)
	aliceID, _ := expect(t, alice, "welcome")["id"].(string)
	send(t, alice, map[string]any{"type": "join_room", "roomId": "r1", "nickname": "Alice"})

	snap = expect(t, alice, "all_users")
	users, _ := snap["users"].([]any)
	if len(users) != 1 {
		t.Fatalf("alice should see bob in the snapshot: %v", snap)
	}
	entry, _ := users[0].(map[string]any)
	if entry["id"] != bobID || entry["nickname"] != "Bob" {
		t.Fatalf("snapshot entry wrong: %v", entry)
	}

	joined := expect(t, bob, "user_joined")
	if joined["id"] != aliceID || joined["nickname"] != "Alice" {
		t.Fatalf("user_joined wrong: %v", joined)
	}

	// negotiation relay, payloads opaque
	send(t, alice, map[string]any{"type": "offer", "to": bobID, "sdp": map[string]any{"type": "offer", "sdp": "v=0"}})
	offer := expect(t, bob, "getOffer")
	if offer["senderId"] != aliceID || offer["senderNickname"] != "Alice" {
		t.Fatalf("getOffer wrong: %v", offer)
	}
	send(t, bob, map[string]any{"type": "answer", "to": aliceID, "sdp": map[string]any{"type": "answer", "sdp": "v=0"}})
	if got := expect(t, alice, "getAnswer"); got["senderId"] != bobID {
		t.Fatalf("getAnswer wrong: %v", got)
	}
	send(t, alice, map[string]any{"type": "candidate", "to": bobID, "candidate": map[string]any{"candidate": "cand"}})
	if got := expect(t, bob, "getCandidate"); got["senderId"] != aliceID {
		t.Fatalf("getCandidate wrong: %v", got)
	}
	send(t, bob, map[string]any{"type": "request_offer", "to": aliceID})
	if got := expect(t, alice, "request_offer"); got["requesterId"] != bobID {
		t.Fatalf("request_offer wrong: %v", got)
	}

	// presence reaches the peer, not the toggler
	send(t, alice, map[string]any{"type": "screen_share_status", "isSharing": true})
	status := expect(t, bob, "user_screen_share_status")
	if status["userId"] != aliceID || status["isSharing"] != true {
		t.Fatalf("share status wrong: %v", status)
	}

	// chat echoes to everyone including the sender
	send(t, bob, map[string]any{"type": "send_message", "message": "hi"})
	for _, conn := range []*websocket.Conn{bob, alice} {
		msg := expect(t, conn, "receive_message")
		if msg["senderId"] != bobID || msg["message"] != "hi" || msg["nickname"] != "Bob" {
			t.Fatalf("chat wrong: %v", msg)
		}
	}

	// dropping the socket behaves like leaving
	alice.Close()
	if got := expect(t, bob, "user_exit"); got["id"] != aliceID {
		t.Fatalf("user_exit wrong: %v", got)
	}
}

func TestSignalJoinUnknownRoom(t *testing.T) {
	url := newTestServer(t, nil)
	conn := dial(t, url)
	expect(t, conn, "welcome")
	send(t, conn, map[string]any{"type": "join_room", "roomId": "missing", "nickname": "x"})
	expect(t, conn, "room_not_found")
}

func TestSignalRoomFull(t *testing.T) {
	url := newTestServer(t, nil)

	owner := dial(t, url)
	expect(t, owner, "welcome")
	send(t, owner, map[string]any{"type": "create_room", "roomId": "tiny", "capacity": 2, "nickname": "o"})
	expect(t, owner, "all_users")

	second := dial(t, url)
	expect(t, second, "welcome")
	send(t, second, map[string]any{"type": "join_room", "roomId": "tiny", "nickname": "s"})
	expect(t, second, "all_users")

	third := dial(t, url)
	expect(t, third, "welcome")
	send(t, third, map[string]any{"type": "join_room", "roomId": "tiny", "nickname": "t"})
	expect(t, third, "room_full")
}

func TestSignalLeaveRoom(t *testing.T) {
	url := newTestServer(t, nil)

	a := dial(t, url)
	expect(t, a, "welcome")
	send(t, a, map[string]any{"type": "create_room", "roomId": "r", "nickname": "a"})
	expect(t, a, "all_users")

	b := dial(t, url)
	bID, _ := expect(t, b, "welcome")["id"].(string)
	send(t, b, map[string]any{"type": "join_room", "roomId": "r", "nickname": "b"})
	expect(t, b, "all_users")
	expect(t, a, "user_joined")

	send(t, b, map[string]any{"type": "leave_room"})
	if got := expect(t, a, "user_exit"); got["id"] != bID {
		t.Fatalf("user_exit wrong: %v", got)
	}
}

func TestSignalPingPong(t *testing.T) {
	url := newTestServer(t, nil)
	conn := dial(t, url)
	expect(t, conn, "welcome")
	send(t, conn, map[string]any{"type": "ping"})
	expect(t, conn, "pong")
}

func TestSignalChatFloodDropped(t *testing.T) {
	url := newTestServer(t, func(cfg *config.Config) {
		cfg.ChatBurst = 2
		cfg.ChatInterval = time.Minute
	})

	conn := dial(t, url)
	expect(t, conn, "welcome")
	send(t, conn, map[string]any{"type": "create_room", "roomId": "r", "nickname": "spam"})
	expect(t, conn, "all_users")

	for i := 0; i < 3; i++ {
		send(t, conn, map[string]any{"type": "send_message", "message": "x"})
	}
	expect(t, conn, "receive_message")
	expect(t, conn, "receive_message")
	expectNothing(t, conn, 300*time.Millisecond)
}
