package game

import (
	"strings"
	"sync"
)

// Store owns the room table. The table is guarded by mu; membership changes
// (join, leave) take the write lock so a create-on-the-same-code race can
// never produce two rooms, while chip actions take the read lock to pin the
// room and then serialize on the room's own mutex. Lock order is always
// store before room.
type Store struct {
	mu            sync.RWMutex
	rooms         map[string]*Room
	startingChips int64
}

func NewStore(startingChips int64) *Store {
	if startingChips <= 0 {
		startingChips = DefaultStartingChips
	}
	return &Store{
		rooms:         make(map[string]*Room),
		startingChips: startingChips,
	}
}

// NormalizeCode maps any user-supplied room code to its canonical form.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

type JoinResult struct {
	Room      Snapshot
	Player    PlayerView
	Reconnect bool
}

// Join adds playerID to the room, creating the room if absent. A player id
// already present is a reconnect: nothing changes and nothing is logged.
// A new id whose name collides (case-insensitively) with a different
// player fails with ErrNameTaken.
func (s *Store) Join(code, playerID, name string) (JoinResult, error) {
	code = NormalizeCode(code)

	s.mu.Lock()
	room, ok := s.rooms[code]
	if !ok {
		room = newRoom(code)
		s.rooms[code] = room
	}
	room.mu.Lock()
	s.mu.Unlock()
	defer room.mu.Unlock()

	if existing := room.playerByID(playerID); existing != nil {
		return JoinResult{Room: room.snapshot(), Player: viewOf(existing), Reconnect: true}, nil
	}
	if other := room.playerByName(name); other != nil {
		return JoinResult{}, ErrNameTaken
	}

	player := &Player{ID: playerID, Name: name, Chips: s.startingChips}
	room.Players = append(room.Players, player)
	room.Journal.Appendf("%s joined the table.", name)

	return JoinResult{Room: room.snapshot(), Player: viewOf(player)}, nil
}

// Bet moves amount from the player's stack into the pot. It services
// check (amount 0), call, raise and all-in alike; the caller decides the
// amount, nothing here knows betting order.
func (s *Store) Bet(code, playerID string, amount int64) (Snapshot, error) {
	room, err := s.roomByCode(code)
	if err != nil {
		return Snapshot{}, err
	}
	room.mu.Lock()
	defer room.mu.Unlock()

	p := room.playerByID(playerID)
	if p == nil {
		return Snapshot{}, ErrPlayerNotFound
	}
	if p.Folded {
		return Snapshot{}, ErrPlayerFolded
	}
	if amount < 0 {
		return Snapshot{}, ErrInvalidAmount
	}
	if amount > p.Chips {
		return Snapshot{}, ErrInsufficientChips
	}

	p.Chips -= amount
	p.CurrentBet += amount
	room.Pot += amount

	switch {
	case amount == 0:
		room.Journal.Appendf("%s checked.", p.Name)
	case p.Chips == 0:
		room.Journal.Appendf("%s went ALL IN.", p.Name)
	default:
		room.Journal.Appendf("%s bet %d.", p.Name, amount)
	}
	return room.snapshot(), nil
}

// Fold marks the player folded. No chips move. Folding twice is harmless.
func (s *Store) Fold(code, playerID string) (Snapshot, error) {
	room, err := s.roomByCode(code)
	if err != nil {
		return Snapshot{}, err
	}
	room.mu.Lock()
	defer room.mu.Unlock()

	p := room.playerByID(playerID)
	if p == nil {
		return Snapshot{}, ErrPlayerNotFound
	}
	p.Folded = true
	room.Journal.Appendf("%s FOLDED.", p.Name)
	return room.snapshot(), nil
}

// Take moves amount back from the pot to the player. The cap is the pot,
// not the player's own stake: this is the undo-a-mistake escape hatch, so
// a player may pull out more than they put in. CurrentBet shrinks by at
// most what they had committed.
func (s *Store) Take(code, playerID string, amount int64) (Snapshot, error) {
	room, err := s.roomByCode(code)
	if err != nil {
		return Snapshot{}, err
	}
	room.mu.Lock()
	defer room.mu.Unlock()

	p := room.playerByID(playerID)
	if p == nil {
		return Snapshot{}, ErrPlayerNotFound
	}
	if p.Folded {
		return Snapshot{}, ErrPlayerFolded
	}
	if amount < 0 {
		return Snapshot{}, ErrInvalidAmount
	}
	if amount > room.Pot {
		return Snapshot{}, ErrPotExceeded
	}

	room.Pot -= amount
	p.Chips += amount
	if takeBack := min(amount, p.CurrentBet); takeBack > 0 {
		p.CurrentBet -= takeBack
	}

	room.Journal.Appendf("%s took back %d chips from the pot.", p.Name, amount)
	return room.snapshot(), nil
}

// EndRound awards the whole pot to the winner and starts a fresh betting
// round: pot to zero, every CurrentBet to zero, everyone unfolded.
func (s *Store) EndRound(code, winnerID string) (Snapshot, error) {
	room, err := s.roomByCode(code)
	if err != nil {
		return Snapshot{}, err
	}
	room.mu.Lock()
	defer room.mu.Unlock()

	winner := room.playerByID(winnerID)
	if winner == nil {
		return Snapshot{}, ErrWinnerNotFound
	}
	if winner.Folded {
		return Snapshot{}, ErrPlayerFolded
	}

	pot := room.Pot
	winner.Chips += pot
	room.Pot = 0
	for _, p := range room.Players {
		p.CurrentBet = 0
		p.Folded = false
	}

	room.Journal.Appendf("🏆 %s won the pot of %d!", winner.Name, pot)
	return room.snapshot(), nil
}

// Leave removes the player for good (an intentional exit, not a dropped
// connection — those keep the player seated for reconnection). The second
// return is true when the room emptied and was deleted.
func (s *Store) Leave(code, playerID string) (Snapshot, bool, error) {
	code = NormalizeCode(code)

	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[code]
	if !ok {
		return Snapshot{}, false, ErrRoomNotFound
	}
	room.mu.Lock()
	defer room.mu.Unlock()

	idx := -1
	for i, p := range room.Players {
		if p.ID == playerID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Snapshot{}, false, ErrPlayerNotFound
	}

	removed := room.Players[idx]
	room.Players = append(room.Players[:idx], room.Players[idx+1:]...)
	if len(room.Players) == 0 {
		delete(s.rooms, code)
		return Snapshot{}, true, nil
	}

	room.Journal.Appendf("%s left.", removed.Name)
	return room.snapshot(), false, nil
}

func (s *Store) RoomExists(code string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rooms[NormalizeCode(code)]
	return ok
}

func (s *Store) RoomCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// RoomInfo is the lobby listing shape.
type RoomInfo struct {
	RoomCode    string `json:"room_code"`
	PlayerCount int    `json:"players"`
	Pot         int64  `json:"pot"`
}

func (s *Store) ListRooms() []RoomInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RoomInfo, 0, len(s.rooms))
	for _, room := range s.rooms {
		room.mu.Lock()
		out = append(out, RoomInfo{
			RoomCode:    room.Code,
			PlayerCount: len(room.Players),
			Pot:         room.Pot,
		})
		room.mu.Unlock()
	}
	return out
}

func (s *Store) roomByCode(code string) (*Room, error) {
	s.mu.RLock()
	room, ok := s.rooms[NormalizeCode(code)]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}
