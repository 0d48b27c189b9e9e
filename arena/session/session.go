// Package session coordinates one player-versus-player match from pairing to
// result broadcast.
//
// A session is a single mutex-serialized struct. Submissions, disconnects and
// the deadline timer all funnel through the same lock, and exactly one of them
// gets to finish the match: whichever terminal path runs first wins, the rest
// become no-ops.
package session

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Urasica/code-clash-arena/game"
	"github.com/Urasica/code-clash-arena/orchestrator"
	"github.com/Urasica/code-clash-arena/rules"
	"github.com/Urasica/code-clash-arena/strategy"
)

// Event types pushed onto the match topic.
const (
	EventNotification = "NOTIFICATION"
	EventResult       = "RESULT"
	EventError        = "ERROR"
)

// MsgPlayerSubmitted announces a first-time submission, carrying the role.
const MsgPlayerSubmitted = "PLAYER_SUBMITTED"

// Event is the envelope broadcast to everyone subscribed to the match.
type Event struct {
	Type    string          `json:"type"`
	Message string          `json:"message,omitempty"`
	Role    string          `json:"role,omitempty"`
	Result  *game.ReplayLog `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// DefaultSubmissionTimeout bounds how long a session waits for both codes.
const DefaultSubmissionTimeout = 600 * time.Second

type submission struct {
	userID    string
	submitted bool
	code      string
	lang      strategy.Language
}

// Session is one PvP match. Create with New; all methods are safe for
// concurrent use.
type Session struct {
	matchID string
	cfg     orchestrator.Config
	mapData rules.MapData
	workDir string
	rng     *rand.Rand
	log     zerolog.Logger

	broadcast func(Event)
	persist   func(*game.ReplayLog)

	mu      sync.Mutex
	players [2]submission
	started bool
	done    bool
	timer   *time.Timer
	cancel  context.CancelFunc
}

// New builds a session for the two paired users and starts the submission
// deadline timer. The first user plays as p1. broadcast delivers events to
// the match topic; persist receives the finished replay and may be nil.
func New(matchID string, userP1, userP2 string, cfg orchestrator.Config, mapData rules.MapData,
	workDir string, rng *rand.Rand, log zerolog.Logger,
	broadcast func(Event), persist func(*game.ReplayLog)) *Session {

	s := &Session{
		matchID:   matchID,
		cfg:       cfg,
		mapData:   mapData,
		workDir:   workDir,
		rng:       rng,
		log:       log.With().Str("match_id", matchID).Logger(),
		broadcast: broadcast,
		persist:   persist,
	}
	s.players[game.P1] = submission{userID: userP1}
	s.players[game.P2] = submission{userID: userP2}
	s.timer = time.AfterFunc(DefaultSubmissionTimeout, s.expire)
	return s
}

// MatchID returns the session's match identifier.
func (s *Session) MatchID() string { return s.matchID }

// Done reports whether the match has reached a terminal state.
func (s *Session) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Submit records one side's code. A repeat submission from the same user is
// ignored. The second distinct submission triggers exactly one match run.
func (s *Session) Submit(userID, code, language string) error {
	lang, err := strategy.ParseLanguage(language)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return fmt.Errorf("match %s already finished", s.matchID)
	}

	side, ok := s.sideOf(userID)
	if !ok {
		return fmt.Errorf("user %s is not part of match %s", userID, s.matchID)
	}
	if s.players[side].submitted {
		return nil
	}

	s.players[side].submitted = true
	s.players[side].code = code
	s.players[side].lang = lang
	s.broadcast(Event{Type: EventNotification, Message: MsgPlayerSubmitted, Role: side.String()})
	s.log.Info().Str("role", side.String()).Str("language", lang.String()).Msg("player submitted")

	if s.players[game.P1].submitted && s.players[game.P2].submitted && !s.started {
		s.started = true
		s.timer.Stop()
		go s.run()
	}
	return nil
}

// Disconnect forfeits the match in favor of the side still connected. After a
// terminal state it is a no-op: a finished match cannot be forfeited.
func (s *Session) Disconnect(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return
	}
	side, ok := s.sideOf(userID)
	if !ok {
		return
	}

	s.log.Info().Str("role", side.String()).Msg("player disconnected, forfeiting")
	s.finishLocked(orchestrator.AbortedLog(
		s.matchID, side.Other().String(), game.ReasonDisconnected, "", ""))
}

// expire fires when the submission deadline passes with the match not started.
func (s *Session) expire() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done || s.started {
		return
	}

	winner := game.WinnerDraw
	if s.players[game.P1].submitted {
		winner = game.WinnerP1
	} else if s.players[game.P2].submitted {
		winner = game.WinnerP2
	}
	s.log.Info().Str("winner", winner).Msg("submission deadline expired")
	s.finishLocked(orchestrator.AbortedLog(
		s.matchID, winner, game.ReasonSubmissionTimeout, "", ""))
}

// run prepares both strategies and drives the orchestrator. It executes off
// the session lock; only the terminal broadcast re-enters it.
func (s *Session) run() {
	s.mu.Lock()
	p1 := s.players[game.P1]
	p2 := s.players[game.P2]
	s.mu.Unlock()

	procP1, errP1 := s.prepare(game.P1, p1)
	procP2, errP2 := s.prepare(game.P2, p2)

	if errP1 != nil || errP2 != nil {
		if procP1 != nil {
			procP1.Close()
		}
		if procP2 != nil {
			procP2.Close()
		}
		s.finishCompileFailure(errP1, errP2)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.mu.Lock()
	if s.done {
		// Forfeited between submission and startup.
		s.mu.Unlock()
		procP1.Close()
		procP2.Close()
		return
	}
	s.cancel = cancel
	s.mu.Unlock()

	orch := orchestrator.New(s.matchID, s.cfg, s.mapData, procP1, procP2, s.rng)
	result := orch.Run(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.finishLocked(result)
}

func (s *Session) prepare(side game.Side, sub submission) (*strategy.Process, *strategy.StepError) {
	dir := filepath.Join(s.workDir, s.matchID, side.String())
	proc, stepErr, err := strategy.Prepare(dir, sub.lang, sub.code)
	if err != nil {
		// Engine-side failure (template, filesystem). Present it like a
		// compile failure so the users get a terminal event.
		return nil, &strategy.StepError{Kind: strategy.KindCompile, Message: err.Error()}
	}
	return proc, stepErr
}

func (s *Session) finishCompileFailure(errP1, errP2 *strategy.StepError) {
	winner := game.WinnerDraw
	var msgP1, msgP2 string
	if errP1 != nil {
		msgP1 = errP1.Message
		winner = game.WinnerP2
	}
	if errP2 != nil {
		msgP2 = errP2.Message
		winner = game.WinnerP1
	}
	if errP1 != nil && errP2 != nil {
		winner = game.WinnerDraw
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}

	s.broadcast(Event{Type: EventError, Error: firstNonEmpty(msgP1, msgP2)})
	s.log.Info().Str("winner", winner).Msg("compile failure aborted match")
	s.finishLocked(orchestrator.AbortedLog(
		s.matchID, winner, game.ReasonCompileError, msgP1, msgP2))
}

// finishLocked publishes the terminal result exactly once. Callers hold s.mu.
func (s *Session) finishLocked(result *game.ReplayLog) {
	s.done = true
	s.timer.Stop()
	if s.cancel != nil {
		s.cancel()
	}

	s.broadcast(Event{Type: EventResult, Result: result})
	s.log.Info().
		Str("winner", result.Winner).
		Str("reason", result.Reason).
		Int32("turns", result.TotalTurns).
		Msg("match finished")

	if s.persist != nil {
		go s.persist(result)
	}
}

func (s *Session) sideOf(userID string) (game.Side, bool) {
	for side := game.P1; side <= game.P2; side++ {
		if s.players[side].userID == userID {
			return side, true
		}
	}
	return game.P1, false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
