package main

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsClient wraps one connection with a write mutex; gorilla allows only one
// concurrent writer.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// hub fans events out to topic subscribers. Delivery is best-effort to the
// currently connected set only; there is no durability across reconnects.
type hub struct {
	mu     sync.Mutex
	topics map[string]map[*wsClient]struct{}
}

func newHub() *hub {
	return &hub{topics: make(map[string]map[*wsClient]struct{})}
}

func (h *hub) subscribe(topic string, c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[*wsClient]struct{})
		h.topics[topic] = subs
	}
	subs[c] = struct{}{}
}

func (h *hub) unsubscribe(topic string, c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.topics[topic]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
}

func (h *hub) broadcast(topic string, v any) {
	h.mu.Lock()
	subs := make([]*wsClient, 0, len(h.topics[topic]))
	for c := range h.topics[topic] {
		subs = append(subs, c)
	}
	h.mu.Unlock()

	for _, c := range subs {
		// A dead client errors here and is dropped by its own read loop.
		_ = c.send(v)
	}
}

// matchmakingMsg is the client frame on /ws/matchmaking.
type matchmakingMsg struct {
	Action string `json:"action"` // join | cancel
	UserID string `json:"userId"`
}

// handleMatchmakingWS owns one connection's queue membership. Closing the
// connection cancels any outstanding queue entry.
func (s *server) handleMatchmakingWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("matchmaking upgrade")
		return
	}
	client := &wsClient{conn: conn}

	var joinedUser string
	defer func() {
		if joinedUser != "" {
			s.mm.Cancel(joinedUser)
			s.hub.unsubscribe(userTopic(joinedUser), client)
		}
		conn.Close()
	}()

	for {
		var msg matchmakingMsg
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Action {
		case "join":
			if msg.UserID == "" || joinedUser != "" {
				continue
			}
			joinedUser = msg.UserID
			s.hub.subscribe(userTopic(joinedUser), client)
			s.mm.Enqueue(joinedUser)
			s.log.Info().Str("user_id", joinedUser).Int("waiting", s.mm.Waiting()).Msg("queue join")
		case "cancel":
			if joinedUser == "" {
				continue
			}
			s.mm.Cancel(joinedUser)
			s.hub.unsubscribe(userTopic(joinedUser), client)
			s.log.Info().Str("user_id", joinedUser).Msg("queue cancel")
			joinedUser = ""
		}
	}
}

// gameMsg is the client frame on /ws/game.
type gameMsg struct {
	Action   string `json:"action"` // join | submit
	MatchID  string `json:"matchId"`
	UserID   string `json:"userId"`
	Code     string `json:"code"`
	Language string `json:"language"`
}

type gameError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// handleGameWS subscribes one player to their match topic and relays
// submissions. A dropped connection forfeits the match for that player.
func (s *server) handleGameWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("game upgrade")
		return
	}
	client := &wsClient{conn: conn}

	var joinedMatch, joinedUser string
	defer func() {
		if joinedMatch != "" {
			s.hub.unsubscribe(matchTopic(joinedMatch), client)
			if sess, ok := s.sessionByID(joinedMatch); ok {
				sess.Disconnect(joinedUser)
			}
		}
		conn.Close()
	}()

	for {
		var msg gameMsg
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Action {
		case "join":
			if msg.MatchID == "" || msg.UserID == "" || joinedMatch != "" {
				continue
			}
			if _, ok := s.sessionByID(msg.MatchID); !ok {
				_ = client.send(gameError{Type: "ERROR", Error: "unknown match"})
				continue
			}
			joinedMatch = msg.MatchID
			joinedUser = msg.UserID
			s.hub.subscribe(matchTopic(joinedMatch), client)
		case "submit":
			sess, ok := s.sessionByID(msg.MatchID)
			if !ok {
				_ = client.send(gameError{Type: "ERROR", Error: "unknown match"})
				continue
			}
			if err := sess.Submit(msg.UserID, msg.Code, msg.Language); err != nil {
				_ = client.send(gameError{Type: "ERROR", Error: err.Error()})
			}
		}
	}
}
