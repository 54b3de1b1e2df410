// table-bot is a headless player for soak-testing the gateway: it creates
// or joins a room and pokes at the pot with random checks, small bets and
// the occasional fold until the connection drops.
package main

import (
	"encoding/json"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type outbound struct {
	Type       string `json:"type"`
	RoomCode   string `json:"room_code,omitempty"`
	PlayerName string `json:"player_name,omitempty"`
	PlayerID   string `json:"player_id,omitempty"`
	Amount     int64  `json:"amount,omitempty"`
}

type roomJoined struct {
	Type     string `json:"type"`
	RoomCode string `json:"room_code"`
	Player   struct {
		ID    string `json:"id"`
		Chips int64  `json:"chips"`
	} `json:"player"`
}

func main() {
	wsURL := getenv("WS_URL", "ws://localhost:8080/ws")
	roomCode := os.Getenv("ROOM_CODE")
	name := getenv("PLAYER_NAME", "table-bot")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	if roomCode == "" {
		writeMsg(conn, outbound{Type: "create_room", PlayerName: name})
	} else {
		writeMsg(conn, outbound{Type: "join_room", RoomCode: roomCode, PlayerName: name})
	}

	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	var playerID string

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var base struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &base); err != nil {
			continue
		}
		switch base.Type {
		case "room_joined":
			var joined roomJoined
			if err := json.Unmarshal(data, &joined); err != nil {
				continue
			}
			roomCode = joined.RoomCode
			playerID = joined.Player.ID
			log.Printf("seated in %s as %s with %d chips", roomCode, playerID, joined.Player.Chips)
		case "update_game":
			time.Sleep(2 * time.Second)
			writeMsg(conn, decide(rnd, roomCode, playerID))
		case "name_taken":
			log.Fatalf("name %q already seated in %s", name, roomCode)
		case "error":
			log.Printf("rejected: %s", data)
		}
	}
}

func decide(rnd *rand.Rand, roomCode, playerID string) outbound {
	switch rnd.Intn(10) {
	case 0:
		return outbound{Type: "action_fold", RoomCode: roomCode, PlayerID: playerID}
	case 1, 2, 3:
		return outbound{Type: "action_bet", RoomCode: roomCode, PlayerID: playerID, Amount: int64(5 * (1 + rnd.Intn(10)))}
	default:
		// check
		return outbound{Type: "action_bet", RoomCode: roomCode, PlayerID: playerID}
	}
}

func writeMsg(conn *websocket.Conn, v outbound) {
	payload, _ := json.Marshal(v)
	_ = conn.WriteMessage(websocket.TextMessage, payload)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
