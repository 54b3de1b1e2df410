package ws

import "chip-ledger/internal/game"

// Inbound messages. Every frame carries a "type" field used for dispatch.

type CreateRoomMessage struct {
	Type       string `json:"type"`
	PlayerName string `json:"player_name"`
}

type JoinRoomMessage struct {
	Type       string `json:"type"`
	RoomCode   string `json:"room_code"`
	PlayerName string `json:"player_name"`
	PlayerID   string `json:"player_id,omitempty"`
}

// ActionMessage covers action_bet, action_fold, action_take, action_win
// and leave_room. PlayerID is optional; when absent the gateway falls back
// to the identity bound to the connection at join time.
type ActionMessage struct {
	Type     string `json:"type"`
	RoomCode string `json:"room_code"`
	PlayerID string `json:"player_id,omitempty"`
	Amount   int64  `json:"amount,omitempty"`
	WinnerID string `json:"winner_id,omitempty"`
}

// Outbound messages.

// RoomJoined goes to the joining connection only. Player echoes back the
// durable id so clients that joined without one can persist it for
// reconnects.
type RoomJoined struct {
	Type     string            `json:"type"`
	RoomCode string            `json:"room_code"`
	Player   game.PlayerView   `json:"player"`
	Players  []game.PlayerView `json:"players"`
	Logs     []string          `json:"logs"`
	Pot      int64             `json:"pot"`
}

// UpdateGame is the room-wide broadcast after every successful mutation.
type UpdateGame struct {
	Type    string            `json:"type"`
	Players []game.PlayerView `json:"players"`
	Logs    []string          `json:"logs"`
	Pot     int64             `json:"pot"`
}

// ErrorMessage is unicast to the requester; Type is "error" or, for the
// join name collision, "name_taken" so clients can special-case it.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
