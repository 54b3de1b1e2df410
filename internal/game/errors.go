package game

import "errors"

// Validation failures returned by Store operations. None are fatal: a
// failed operation leaves the room untouched, and the gateway relays the
// code to the requesting connection only.
var (
	ErrRoomNotFound      = errors.New("room_not_found")
	ErrPlayerNotFound    = errors.New("player_not_found")
	ErrWinnerNotFound    = errors.New("winner_not_found")
	ErrNameTaken         = errors.New("name_taken")
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrInsufficientChips = errors.New("insufficient_chips")
	ErrPotExceeded       = errors.New("pot_exceeded")
	ErrPlayerFolded      = errors.New("player_folded")
)
