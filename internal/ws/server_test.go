package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"chip-ledger/internal/game"
)

func newTestGateway(t *testing.T) (string, *game.Store) {
	t.Helper()
	store := game.NewStore(0)
	srv := NewServer(store)
	ts := httptest.NewServer(http.HandlerFunc(srv.HandleWS))
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http"), store
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func read(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	return msg
}

func expectType(t *testing.T, conn *websocket.Conn, want string) map[string]any {
	t.Helper()
	msg := read(t, conn)
	if msg["type"] != want {
		t.Fatalf("message type = %v, want %s (full: %v)", msg["type"], want, msg)
	}
	return msg
}

// expectSilence must be the last read on its connection: an expired read
// deadline poisons the websocket for further reads.
func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	if _, data, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected no message, got %s", data)
	}
}

func waitForRoomGone(t *testing.T, store *game.Store, code string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for store.RoomExists(code) {
		if time.Now().After(deadline) {
			t.Fatalf("room %s still live", code)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func players(t *testing.T, msg map[string]any) []any {
	t.Helper()
	list, ok := msg["players"].([]any)
	if !ok {
		t.Fatalf("no players array in %v", msg)
	}
	return list
}

func TestCreateRoomRepliesToCreatorOnly(t *testing.T) {
	url, _ := newTestGateway(t)
	c1 := dial(t, url)

	send(t, c1, map[string]any{"type": "create_room", "player_name": "Alice"})
	msg := expectType(t, c1, "room_joined")

	code, _ := msg["room_code"].(string)
	if !roomCodePattern.MatchString(code) {
		t.Fatalf("room code %q malformed", code)
	}
	player, _ := msg["player"].(map[string]any)
	if player["id"] == "" || player["chips"].(float64) != 1000 {
		t.Fatalf("unexpected creator player: %v", player)
	}
	if len(players(t, msg)) != 1 || msg["pot"].(float64) != 0 {
		t.Fatalf("unexpected room state: %v", msg)
	}
}

func TestJoinBetAndWinBroadcast(t *testing.T) {
	url, _ := newTestGateway(t)
	c1 := dial(t, url)
	c2 := dial(t, url)

	send(t, c1, map[string]any{"type": "create_room", "player_name": "Alice"})
	rj1 := expectType(t, c1, "room_joined")
	code := rj1["room_code"].(string)
	aliceID := rj1["player"].(map[string]any)["id"].(string)

	send(t, c2, map[string]any{"type": "join_room", "room_code": code, "player_name": "Bob", "player_id": "p_bob"})
	rj2 := expectType(t, c2, "room_joined")
	if len(players(t, rj2)) != 2 {
		t.Fatalf("joiner sees %d players", len(players(t, rj2)))
	}
	up := expectType(t, c1, "update_game")
	if len(players(t, up)) != 2 {
		t.Fatalf("creator update has %d players", len(players(t, up)))
	}

	send(t, c2, map[string]any{"type": "action_bet", "room_code": code, "player_id": "p_bob", "amount": 100})
	for _, conn := range []*websocket.Conn{c1, c2} {
		up := expectType(t, conn, "update_game")
		if up["pot"].(float64) != 100 {
			t.Fatalf("pot = %v after bet", up["pot"])
		}
	}

	send(t, c1, map[string]any{"type": "action_win", "room_code": code, "winner_id": aliceID})
	for _, conn := range []*websocket.Conn{c1, c2} {
		up := expectType(t, conn, "update_game")
		if up["pot"].(float64) != 0 {
			t.Fatalf("pot = %v after round end", up["pot"])
		}
		for _, raw := range players(t, up) {
			p := raw.(map[string]any)
			switch p["name"] {
			case "Alice":
				if p["chips"].(float64) != 1100 {
					t.Fatalf("Alice chips = %v, want 1100", p["chips"])
				}
			case "Bob":
				if p["chips"].(float64) != 900 {
					t.Fatalf("Bob chips = %v, want 900", p["chips"])
				}
			}
		}
	}
}

func TestNameTakenIsUnicast(t *testing.T) {
	url, _ := newTestGateway(t)
	c1 := dial(t, url)
	c2 := dial(t, url)

	send(t, c1, map[string]any{"type": "create_room", "player_name": "Alice"})
	rj := expectType(t, c1, "room_joined")
	code := rj["room_code"].(string)

	send(t, c2, map[string]any{"type": "join_room", "room_code": code, "player_name": "ALICE"})
	nt := expectType(t, c2, "name_taken")
	if nt["message"] != "name_taken" {
		t.Fatalf("message = %v", nt["message"])
	}
	expectSilence(t, c1)
}

func TestActionErrorIsUnicast(t *testing.T) {
	url, _ := newTestGateway(t)
	c1 := dial(t, url)
	c2 := dial(t, url)

	send(t, c1, map[string]any{"type": "create_room", "player_name": "Alice"})
	rj := expectType(t, c1, "room_joined")
	code := rj["room_code"].(string)

	send(t, c2, map[string]any{"type": "join_room", "room_code": code, "player_name": "Bob", "player_id": "p_bob"})
	expectType(t, c2, "room_joined")
	expectType(t, c1, "update_game")

	send(t, c2, map[string]any{"type": "action_bet", "room_code": code, "player_id": "p_bob", "amount": 5000})
	errMsg := expectType(t, c2, "error")
	if errMsg["message"] != "insufficient_chips" {
		t.Fatalf("message = %v", errMsg["message"])
	}
	expectSilence(t, c1)
}

func TestReconnectReplacesStaleConnection(t *testing.T) {
	url, _ := newTestGateway(t)
	c1 := dial(t, url)
	c2 := dial(t, url)

	send(t, c1, map[string]any{"type": "create_room", "player_name": "Alice"})
	rj := expectType(t, c1, "room_joined")
	code := rj["room_code"].(string)

	send(t, c2, map[string]any{"type": "join_room", "room_code": code, "player_name": "Bob", "player_id": "p_bob"})
	expectType(t, c2, "room_joined")
	expectType(t, c1, "update_game")

	// same durable id on a fresh connection: a reconnect
	c3 := dial(t, url)
	send(t, c3, map[string]any{"type": "join_room", "room_code": code, "player_name": "Bob", "player_id": "p_bob"})
	rj3 := expectType(t, c3, "room_joined")
	if len(players(t, rj3)) != 2 {
		t.Fatalf("reconnect duplicated a player: %v", rj3)
	}

	// the stale connection is closed by the takeover
	_ = c2.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := c2.ReadMessage(); err == nil {
		t.Fatal("stale connection still readable after takeover")
	}

	// nobody else hears about a reconnect
	expectSilence(t, c1)
}

func TestMovingRoomsDropsOldSubscription(t *testing.T) {
	url, _ := newTestGateway(t)
	c1 := dial(t, url)
	c2 := dial(t, url)

	send(t, c1, map[string]any{"type": "create_room", "player_name": "Alice"})
	rj := expectType(t, c1, "room_joined")
	firstCode := rj["room_code"].(string)

	send(t, c2, map[string]any{"type": "join_room", "room_code": firstCode, "player_name": "Carol", "player_id": "p_carol"})
	expectType(t, c2, "room_joined")
	expectType(t, c1, "update_game")

	// c1 moves to a fresh room; its old subscription must move with it
	send(t, c1, map[string]any{"type": "create_room", "player_name": "Alice"})
	rj2 := expectType(t, c1, "room_joined")
	if rj2["room_code"].(string) == firstCode {
		t.Fatalf("second create reused code %s", firstCode)
	}

	// activity in the old room must not reach the moved connection
	send(t, c2, map[string]any{"type": "action_bet", "room_code": firstCode, "player_id": "p_carol", "amount": 100})
	up := expectType(t, c2, "update_game")
	if up["pot"].(float64) != 100 {
		t.Fatalf("pot = %v after bet", up["pot"])
	}
	expectSilence(t, c1)
}

func TestLeaveOnBehalfReleasesEvictedConnection(t *testing.T) {
	url, _ := newTestGateway(t)
	c1 := dial(t, url)
	c2 := dial(t, url)

	send(t, c1, map[string]any{"type": "create_room", "player_name": "Alice"})
	rj := expectType(t, c1, "room_joined")
	code := rj["room_code"].(string)

	send(t, c2, map[string]any{"type": "join_room", "room_code": code, "player_name": "Bob", "player_id": "p_bob"})
	expectType(t, c2, "room_joined")
	expectType(t, c1, "update_game")

	// Alice removes Bob by explicit id: Bob's connection loses its
	// subscription, Alice's keeps both subscription and identity
	send(t, c1, map[string]any{"type": "leave_room", "room_code": code, "player_id": "p_bob"})
	up := expectType(t, c1, "update_game")
	if len(players(t, up)) != 1 {
		t.Fatalf("update has %d players after removal", len(players(t, up)))
	}

	// player_id omitted: the sender's own binding must have survived
	send(t, c1, map[string]any{"type": "action_bet", "room_code": code, "amount": 50})
	bet := expectType(t, c1, "update_game")
	if bet["pot"].(float64) != 50 {
		t.Fatalf("pot = %v after bet", bet["pot"])
	}
	expectSilence(t, c2)
}

func TestLeaveRoomAndRoomDeletion(t *testing.T) {
	url, store := newTestGateway(t)
	c1 := dial(t, url)
	c2 := dial(t, url)

	send(t, c1, map[string]any{"type": "create_room", "player_name": "Alice"})
	rj := expectType(t, c1, "room_joined")
	code := rj["room_code"].(string)

	send(t, c2, map[string]any{"type": "join_room", "room_code": code, "player_name": "Bob", "player_id": "p_bob"})
	expectType(t, c2, "room_joined")
	expectType(t, c1, "update_game")

	send(t, c2, map[string]any{"type": "leave_room", "room_code": code, "player_id": "p_bob"})
	up := expectType(t, c1, "update_game")
	if len(players(t, up)) != 1 {
		t.Fatalf("survivor update has %d players", len(players(t, up)))
	}
	logs, _ := up["logs"].([]any)
	if len(logs) == 0 || !strings.Contains(logs[len(logs)-1].(string), "Bob left") {
		t.Fatalf("expected leave log, got %v", logs)
	}

	// last leave deletes the room; player_id omitted to exercise the
	// connection-bound identity fallback
	send(t, c1, map[string]any{"type": "leave_room", "room_code": code})
	waitForRoomGone(t, store, code)

	// rejoining the code lands in a brand-new room with no memory
	c3 := dial(t, url)
	send(t, c3, map[string]any{"type": "join_room", "room_code": code, "player_name": "Zed"})
	rj3 := expectType(t, c3, "room_joined")
	if len(players(t, rj3)) != 1 || rj3["pot"].(float64) != 0 {
		t.Fatalf("recreated room carries state: %v", rj3)
	}
	if logs, _ := rj3["logs"].([]any); len(logs) != 1 {
		t.Fatalf("recreated room carries logs: %v", logs)
	}
}
