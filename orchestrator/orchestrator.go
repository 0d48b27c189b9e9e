// Package orchestrator drives one match: it requests an action from each side
// concurrently under independent deadlines, feeds both actions into the
// simulator, and assembles the replay log until a termination condition hits.
//
// One Run corresponds to one logical task; many runs execute in parallel for
// independent matches with no shared mutable state between them.
package orchestrator

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/Urasica/code-clash-arena/bots"
	"github.com/Urasica/code-clash-arena/game"
	"github.com/Urasica/code-clash-arena/rules"
	"github.com/Urasica/code-clash-arena/strategy"
)

// Player is one side's decision source: a prepared strategy process or a
// builtin bot. Step must respect the ctx deadline and always return a usable
// action. Close releases any resources and is called on every exit path.
type Player interface {
	Step(ctx context.Context, ts game.TurnState) (rules.Action, *strategy.StepError)
	Close() error
}

// BotPlayer adapts a builtin decider to the Player interface. Bots never fail
// and hold no resources.
func BotPlayer(d bots.Decider) Player {
	return botPlayer{d: d}
}

type botPlayer struct {
	d bots.Decider
}

func (b botPlayer) Step(_ context.Context, ts game.TurnState) (rules.Action, *strategy.StepError) {
	return b.d.Decide(ts), nil
}

func (b botPlayer) Close() error { return nil }

// Config bounds one orchestrator run.
type Config struct {
	Rules rules.Config

	// TurnTimeout is the per-side, per-turn deadline. One side stalling never
	// delays the other beyond its own deadline.
	TurnTimeout time.Duration

	// MatchTimeout is the wall-clock budget for the whole match. Zero means
	// no budget.
	MatchTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Rules:        rules.DefaultConfig(),
		TurnTimeout:  2 * time.Second,
		MatchTimeout: 600 * time.Second,
	}
}

// Orchestrator runs a single match to completion.
type Orchestrator struct {
	cfg     Config
	matchID string
	mapData rules.MapData
	players [2]Player
	rng     *rand.Rand
	now     func() time.Time
}

// New builds an orchestrator in the Initialized state. rng drives coin
// regeneration; give bots their own seeded RNGs, since both sides decide
// concurrently. Fixed seeds yield a byte-identical replay.
func New(matchID string, cfg Config, m rules.MapData, p1, p2 Player, rng *rand.Rand) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		matchID: matchID,
		mapData: m,
		players: [2]Player{p1, p2},
		rng:     rng,
		now:     time.Now,
	}
}

// Run executes the turn loop and returns the replay log. Both players are
// closed before Run returns, whatever the exit path. Cancelling ctx finishes
// the match with the standing scores.
func (o *Orchestrator) Run(ctx context.Context) *game.ReplayLog {
	defer o.players[game.P1].Close()
	defer o.players[game.P2].Close()

	state := rules.NewMatchState(o.matchID, o.cfg.Rules, o.mapData)
	state.Status = game.Running
	if o.cfg.MatchTimeout > 0 {
		state.Deadline = o.now().Add(o.cfg.MatchTimeout)
	}

	logs := make([]game.TurnSnapshot, 0, o.cfg.Rules.MaxTurns+1)
	logs = append(logs, state.Snapshot("START", "START"))

	for {
		if ctx.Err() != nil {
			return o.finish(state, logs, rules.Outcome{
				Done:   true,
				Winner: rules.WinnerByScore(state),
				Reason: game.ReasonTimeLimit,
			})
		}

		acts := o.collectActions(ctx, state)

		next, snap := rules.Advance(state, acts[game.P1], acts[game.P2], o.cfg.Rules, o.rng)
		logs = append(logs, snap)
		state = next

		if out := rules.CheckTermination(state, o.cfg.Rules, o.now()); out.Done {
			return o.finish(state, logs, out)
		}
	}
}

// collectActions queries both sides concurrently, each under its own timeout,
// and applies failure bookkeeping to the pre-turn state so the simulator
// carries it forward.
func (o *Orchestrator) collectActions(ctx context.Context, state *game.MatchState) [2]rules.Action {
	var (
		mu   sync.Mutex
		acts [2]rules.Action
		errs [2]*strategy.StepError
		wg   sync.WaitGroup
	)

	for side := game.P1; side <= game.P2; side++ {
		wg.Add(1)
		go func(side game.Side) {
			defer wg.Done()

			stepCtx := ctx
			if o.cfg.TurnTimeout > 0 {
				var cancel context.CancelFunc
				stepCtx, cancel = context.WithTimeout(ctx, o.cfg.TurnTimeout)
				defer cancel()
			}

			act, stepErr := o.players[side].Step(stepCtx, state.TurnStateFor(side))

			mu.Lock()
			acts[side] = act
			errs[side] = stepErr
			mu.Unlock()
		}(side)
	}
	wg.Wait()

	for side := game.P1; side <= game.P2; side++ {
		player := &state.Players[side]
		if errs[side] == nil {
			player.Failures = 0
			continue
		}
		player.Failures++
		player.LastError = errs[side].Error()
		if errs[side].Fatal {
			player.Alive = false
		}
	}

	return acts
}

func (o *Orchestrator) finish(state *game.MatchState, logs []game.TurnSnapshot, out rules.Outcome) *game.ReplayLog {
	state.Status = game.Finished
	return &game.ReplayLog{
		MatchID:     o.matchID,
		Winner:      out.Winner,
		Reason:      out.Reason,
		FinalScores: state.CurrentScores(),
		TotalTurns:  int32(len(logs) - 1),
		Logs:        logs,
		P1Error:     state.Players[game.P1].LastError,
		P2Error:     state.Players[game.P2].LastError,
	}
}

// AbortedLog is the replay of a match that never simulated a turn, e.g. a
// pre-match compile failure or a forfeit before both submissions arrived.
func AbortedLog(matchID, winner, reason, p1Err, p2Err string) *game.ReplayLog {
	return &game.ReplayLog{
		MatchID: matchID,
		Winner:  winner,
		Reason:  reason,
		P1Error: p1Err,
		P2Error: p2Err,
	}
}
