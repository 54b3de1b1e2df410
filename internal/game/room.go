package game

import (
	"strings"
	"sync"

	"chip-ledger/internal/ledger"
)

const DefaultStartingChips int64 = 1000

// RoomCodeLength is fixed: codes are four letters A-Z, normalized to
// uppercase for every lookup.
const RoomCodeLength = 4

// Player is keyed by a durable, client-retained id. The id outlives any
// single connection, which is what makes reconnects work.
type Player struct {
	ID         string
	Name       string
	Chips      int64
	CurrentBet int64
	Folded     bool
}

// Room holds one table's shared state. Players stay in join order. All
// mutation happens under mu so two actions in the same room apply as a
// strict sequence.
type Room struct {
	mu      sync.Mutex
	Code    string
	Players []*Player
	Pot     int64
	Journal *ledger.Log
}

func newRoom(code string) *Room {
	return &Room{Code: code, Journal: ledger.New()}
}

func (r *Room) playerByID(id string) *Player {
	for _, p := range r.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *Room) playerByName(name string) *Player {
	for _, p := range r.Players {
		if strings.EqualFold(p.Name, name) {
			return p
		}
	}
	return nil
}

// PlayerView is the JSON shape of a player inside snapshots.
type PlayerView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Chips      int64  `json:"chips"`
	CurrentBet int64  `json:"current_bet"`
	Folded     bool   `json:"folded"`
}

// Snapshot is a deep copy of a room's visible state, safe to marshal and
// broadcast after the room lock is released.
type Snapshot struct {
	RoomCode string       `json:"room_code"`
	Players  []PlayerView `json:"players"`
	Logs     []string     `json:"logs"`
	Pot      int64        `json:"pot"`
}

func viewOf(p *Player) PlayerView {
	return PlayerView{
		ID:         p.ID,
		Name:       p.Name,
		Chips:      p.Chips,
		CurrentBet: p.CurrentBet,
		Folded:     p.Folded,
	}
}

// snapshot copies the room state. Caller holds r.mu.
func (r *Room) snapshot() Snapshot {
	players := make([]PlayerView, 0, len(r.Players))
	for _, p := range r.Players {
		players = append(players, viewOf(p))
	}
	return Snapshot{
		RoomCode: r.Code,
		Players:  players,
		Logs:     r.Journal.Strings(),
		Pot:      r.Pot,
	}
}
