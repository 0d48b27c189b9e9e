package main

import (
	"math/rand"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Urasica/code-clash-arena/arena/queue"
	"github.com/Urasica/code-clash-arena/arena/session"
	"github.com/Urasica/code-clash-arena/game"
	"github.com/Urasica/code-clash-arena/orchestrator"
	"github.com/Urasica/code-clash-arena/rules"
	"github.com/Urasica/code-clash-arena/store"
)

// server holds the shared state of the arena binary: the AI-mode match
// registry, the PvP session table, the matchmaking queue, the websocket hub
// and the replay sink.
type server struct {
	log     zerolog.Logger
	cfg     orchestrator.Config
	workDir string

	hub  *hub
	mm   *queue.Queue
	sink *replaySink

	mu       sync.Mutex
	pending  map[string]rules.MapData    // AI-mode matches awaiting run
	sessions map[string]*session.Session // PvP matches by ID
	rng      *rand.Rand                  // map generation, guarded by mu
}

func newServer(cfg orchestrator.Config, workDir, replayDir string, archived *store.ArchivedLog, log zerolog.Logger) *server {
	s := &server{
		log:     log,
		cfg:     cfg,
		workDir: workDir,
		hub:     newHub(),
		sink: &replaySink{
			dir:      replayDir,
			archived: archived,
			log:      log,
		},
		pending:  make(map[string]rules.MapData),
		sessions: make(map[string]*session.Session),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	s.mm = queue.New(s.onPaired)
	return s
}

// newMatch generates a fresh match ID and map.
func (s *server) newMatch() (string, rules.MapData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matchID := uuid.NewString()
	m := rules.GenerateMap(s.cfg.Rules, s.rng)
	return matchID, m
}

func (s *server) takePending(matchID string) (rules.MapData, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.pending[matchID]
	if ok {
		delete(s.pending, matchID)
	}
	return m, ok
}

func (s *server) addPending(matchID string, m rules.MapData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[matchID] = m
}

func (s *server) sessionByID(matchID string) (*session.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[matchID]
	return sess, ok
}

// pairedNotice is pushed to each matched user's topic.
type pairedNotice struct {
	Type    string        `json:"type"`
	MatchID string        `json:"matchId"`
	MapData rules.MapData `json:"mapData"`
	MyRole  string        `json:"myRole"`
}

// onPaired runs from the queue's pairing pass: it creates the match and
// session, then notifies both users on their own topics.
func (s *server) onPaired(p queue.Pair) {
	matchID, m := s.newMatch()

	sess := session.New(matchID, p.First, p.Second, s.cfg, m,
		s.workDir, rand.New(rand.NewSource(time.Now().UnixNano())), s.log,
		func(ev session.Event) { s.hub.broadcast(matchTopic(matchID), ev) },
		s.sink.persist,
	)

	s.mu.Lock()
	s.sessions[matchID] = sess
	s.mu.Unlock()

	s.log.Info().
		Str("match_id", matchID).
		Str("p1", p.First).
		Str("p2", p.Second).
		Msg("players paired")

	s.hub.broadcast(userTopic(p.First), pairedNotice{
		Type: "MATCHED", MatchID: matchID, MapData: m, MyRole: game.P1.String(),
	})
	s.hub.broadcast(userTopic(p.Second), pairedNotice{
		Type: "MATCHED", MatchID: matchID, MapData: m, MyRole: game.P2.String(),
	})
}

// replaySink persists finished replays. Failures are logged, never surfaced
// to the match path: serving does not depend on storage.
type replaySink struct {
	dir      string
	archived *store.ArchivedLog
	log      zerolog.Logger
}

func (rs *replaySink) persist(replay *game.ReplayLog) {
	if rs.archived.Has(replay.MatchID) {
		return
	}
	rows := store.FlattenReplay(replay)
	if len(rows) == 0 {
		return
	}
	path := filepath.Join(rs.dir, replay.MatchID+".parquet")
	if err := store.WriteReplayParquet(path, rows); err != nil {
		rs.log.Error().Err(err).Str("match_id", replay.MatchID).Msg("persist replay")
		return
	}
	if err := rs.archived.Add(replay.MatchID); err != nil {
		rs.log.Error().Err(err).Str("match_id", replay.MatchID).Msg("record archived match")
	}
}

func userTopic(userID string) string   { return "user:" + userID }
func matchTopic(matchID string) string { return "match:" + matchID }
