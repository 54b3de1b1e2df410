package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"

	"chip-ledger/internal/game"
)

// Client is one websocket connection. The connection id is purely a
// routing handle; the durable player id bound at join time is the only
// state key, which is what lets a player drop and come back.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	// guarded by Server.mu
	playerID string
	roomCode string
}

type Server struct {
	store    *game.Store
	upgrader websocket.Upgrader

	mu         sync.Mutex
	rooms      map[string]map[*Client]bool
	byPlayerID map[string]*Client
}

func NewServer(store *game.Store) *Server {
	return &Server{
		store:      store,
		upgrader:   websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		rooms:      map[string]map[*Client]bool{},
		byPlayerID: map[string]*Client{},
	}
}

func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := &Client{id: uuid.NewString(), conn: conn, send: make(chan []byte, 16)}
	log.Debug().Str("conn_id", client.id).Msg("connection open")

	go s.writeLoop(client)
	s.readLoop(client)
}

func (s *Server) readLoop(c *Client) {
	defer func() {
		s.disconnect(c)
		_ = c.conn.Close()
	}()

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var base struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg, &base); err != nil {
			continue
		}
		switch base.Type {
		case "create_room":
			var create CreateRoomMessage
			if err := json.Unmarshal(msg, &create); err != nil {
				continue
			}
			s.handleCreateRoom(c, create)
		case "join_room":
			var join JoinRoomMessage
			if err := json.Unmarshal(msg, &join); err != nil {
				continue
			}
			s.handleJoinRoom(c, join)
		case "action_bet", "action_fold", "action_take", "action_win":
			var action ActionMessage
			if err := json.Unmarshal(msg, &action); err != nil {
				continue
			}
			s.handleAction(c, base.Type, action)
		case "leave_room":
			var leave ActionMessage
			if err := json.Unmarshal(msg, &leave); err != nil {
				continue
			}
			s.handleLeave(c, leave)
		}
	}
}

func (s *Server) writeLoop(c *Client) {
	for msg := range c.send {
		_ = c.conn.WriteMessage(websocket.TextMessage, msg)
	}
}

func (s *Server) handleCreateRoom(c *Client, msg CreateRoomMessage) {
	code, ok := s.mintRoomCode()
	if !ok {
		s.sendError(c, "no_free_room_code")
		return
	}
	playerID := ulid.Make().String()
	res, err := s.store.Join(code, playerID, msg.PlayerName)
	if err != nil {
		s.sendError(c, err.Error())
		return
	}
	s.bind(c, res.Room.RoomCode, playerID)
	s.sendRoomJoined(c, res)
	log.Info().Str("room", res.Room.RoomCode).Str("player", msg.PlayerName).Msg("room created")
}

func (s *Server) handleJoinRoom(c *Client, msg JoinRoomMessage) {
	playerID := msg.PlayerID
	if playerID == "" {
		// No durable id from the client: mint one and hand it back in
		// room_joined. Reconnects only work if the client keeps it.
		playerID = ulid.Make().String()
	}

	res, err := s.store.Join(msg.RoomCode, playerID, msg.PlayerName)
	if errors.Is(err, game.ErrNameTaken) {
		s.sendJSON(c, ErrorMessage{Type: "name_taken", Message: err.Error()})
		return
	}
	if err != nil {
		s.sendError(c, err.Error())
		return
	}

	s.bind(c, res.Room.RoomCode, playerID)
	s.sendRoomJoined(c, res)
	if !res.Reconnect {
		s.broadcastExcept(res.Room.RoomCode, res.Room, c)
	}
	log.Info().
		Str("room", res.Room.RoomCode).
		Str("player", msg.PlayerName).
		Bool("reconnect", res.Reconnect).
		Msg("player joined")
}

func (s *Server) handleAction(c *Client, typ string, msg ActionMessage) {
	playerID := s.resolvePlayerID(c, msg.PlayerID)

	var snap game.Snapshot
	var err error
	switch typ {
	case "action_bet":
		snap, err = s.store.Bet(msg.RoomCode, playerID, msg.Amount)
	case "action_fold":
		snap, err = s.store.Fold(msg.RoomCode, playerID)
	case "action_take":
		snap, err = s.store.Take(msg.RoomCode, playerID, msg.Amount)
	case "action_win":
		winnerID := msg.WinnerID
		if winnerID == "" {
			winnerID = playerID
		}
		snap, err = s.store.EndRound(msg.RoomCode, winnerID)
	}
	if err != nil {
		log.Debug().Str("type", typ).Str("room", msg.RoomCode).Err(err).Msg("action rejected")
		s.sendError(c, err.Error())
		return
	}
	s.broadcast(game.NormalizeCode(msg.RoomCode), snap)
}

func (s *Server) handleLeave(c *Client, msg ActionMessage) {
	playerID := s.resolvePlayerID(c, msg.PlayerID)

	snap, deleted, err := s.store.Leave(msg.RoomCode, playerID)
	if err != nil {
		s.sendError(c, err.Error())
		return
	}
	s.unbindPlayer(playerID)
	if !deleted {
		s.broadcast(game.NormalizeCode(msg.RoomCode), snap)
	}
	log.Info().Str("room", msg.RoomCode).Bool("room_deleted", deleted).Msg("player left")
}

// resolvePlayerID prefers the explicit id in the message and falls back to
// the identity bound to this connection.
func (s *Server) resolvePlayerID(c *Client, explicit string) string {
	if explicit != "" {
		return explicit
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.playerID
}

// bind subscribes the connection to its room's broadcast group and claims
// the durable player id. A connection holds at most one subscription, so
// binding again first releases the old room and id. If the new id is
// already bound to another live connection that one is stale (the player
// reconnected): it gets closed and this connection takes over.
func (s *Server) bind(c *Client, code, playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.unbindLocked(c)
	if old := s.byPlayerID[playerID]; old != nil && old != c {
		s.dropLocked(old)
		log.Debug().Str("conn_id", old.id).Msg("stale connection replaced")
	}

	c.playerID = playerID
	c.roomCode = code
	s.byPlayerID[playerID] = c
	subs := s.rooms[code]
	if subs == nil {
		subs = map[*Client]bool{}
		s.rooms[code] = subs
	}
	subs[c] = true
}

// unbindPlayer releases whichever connection holds the departed player's
// id. That is usually the sender, but a leave_room carrying another
// player's id must release that player's connection, not the sender's. An
// unbound id (the player already disconnected) releases nothing.
func (s *Server) unbindPlayer(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cl := s.byPlayerID[playerID]; cl != nil {
		s.unbindLocked(cl)
	}
}

func (s *Server) unbindLocked(c *Client) {
	if subs := s.rooms[c.roomCode]; subs != nil {
		delete(subs, c)
		if len(subs) == 0 {
			delete(s.rooms, c.roomCode)
		}
	}
	if c.playerID != "" && s.byPlayerID[c.playerID] == c {
		delete(s.byPlayerID, c.playerID)
	}
	c.playerID = ""
	c.roomCode = ""
}

// disconnect handles a closed connection. The player stays seated in the
// room so they can reconnect; other players are not alerted.
func (s *Server) disconnect(c *Client) {
	s.mu.Lock()
	s.unbindLocked(c)
	s.mu.Unlock()
	safeClose(c.send)
	log.Debug().Str("conn_id", c.id).Msg("connection closed")
}

// dropLocked forcibly evicts a client. Caller holds s.mu.
func (s *Server) dropLocked(c *Client) {
	s.unbindLocked(c)
	safeClose(c.send)
	_ = c.conn.Close()
}

func (s *Server) broadcast(code string, snap game.Snapshot) {
	s.fanOut(code, snap, nil)
}

func (s *Server) broadcastExcept(code string, snap game.Snapshot, skip *Client) {
	s.fanOut(code, snap, skip)
}

func (s *Server) fanOut(code string, snap game.Snapshot, skip *Client) {
	msg, _ := json.Marshal(UpdateGame{
		Type:    "update_game",
		Players: snap.Players,
		Logs:    snap.Logs,
		Pot:     snap.Pot,
	})
	s.mu.Lock()
	defer s.mu.Unlock()
	for cl := range s.rooms[code] {
		if cl == skip {
			continue
		}
		select {
		case cl.send <- msg:
		default:
			// a subscriber that can't keep up loses its connection, not
			// everyone else their update
			s.dropLocked(cl)
		}
	}
}

func (s *Server) sendRoomJoined(c *Client, res game.JoinResult) {
	s.sendJSON(c, RoomJoined{
		Type:     "room_joined",
		RoomCode: res.Room.RoomCode,
		Player:   res.Player,
		Players:  res.Room.Players,
		Logs:     res.Room.Logs,
		Pot:      res.Room.Pot,
	})
}

func (s *Server) sendError(c *Client, message string) {
	s.sendJSON(c, ErrorMessage{Type: "error", Message: message})
}

func (s *Server) sendJSON(c *Client, v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		return
	}
	safeSend(c.send, msg)
}

func safeClose(ch chan []byte) {
	defer func() {
		_ = recover()
	}()
	close(ch)
}

func safeSend(ch chan []byte, msg []byte) {
	defer func() {
		_ = recover()
	}()
	select {
	case ch <- msg:
	default:
	}
}
