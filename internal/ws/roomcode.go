package ws

import (
	"math/rand"

	"chip-ledger/internal/game"
)

const roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// 26^4 codes against tens of live rooms: a bounded retry never exhausts in
// practice, the cap just keeps the gateway from spinning if it ever would.
const maxCodeAttempts = 64

func randomRoomCode() string {
	b := make([]byte, game.RoomCodeLength)
	for i := range b {
		b[i] = roomCodeAlphabet[rand.Intn(len(roomCodeAlphabet))]
	}
	return string(b)
}

func (s *Server) mintRoomCode() (string, bool) {
	for i := 0; i < maxCodeAttempts; i++ {
		code := randomRoomCode()
		if !s.store.RoomExists(code) {
			return code, true
		}
	}
	return "", false
}
