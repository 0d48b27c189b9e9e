// Package rules implements the land-grab transition function.
//
// Advance is pure apart from the explicit RNG parameter, so callers can choose
// deterministic replays (seeded RNG) or live randomness. It must never be
// invoked concurrently for the same state.
package rules

import (
	"math/rand"
	"time"

	"github.com/Urasica/code-clash-arena/game"
)

// Action is one per-turn decision.
type Action int

const (
	Stay Action = iota
	MoveUp
	MoveDown
	MoveLeft
	MoveRight
)

var actionTokens = map[Action]string{
	Stay:      "STAY",
	MoveUp:    "MOVE_UP",
	MoveDown:  "MOVE_DOWN",
	MoveLeft:  "MOVE_LEFT",
	MoveRight: "MOVE_RIGHT",
}

func (a Action) String() string {
	if tok, ok := actionTokens[a]; ok {
		return tok
	}
	return "STAY"
}

// ParseAction maps a wire token to an action. Anything unrecognized is not an
// action: callers resolve it to Stay and record the failure.
func ParseAction(token string) (Action, bool) {
	switch token {
	case "MOVE_UP":
		return MoveUp, true
	case "MOVE_DOWN":
		return MoveDown, true
	case "MOVE_LEFT":
		return MoveLeft, true
	case "MOVE_RIGHT":
		return MoveRight, true
	case "STAY":
		return Stay, true
	}
	return Stay, false
}

// Delta returns the position change of the action.
// MOVE_UP decreases Y: (0,0) is top-left.
func (a Action) Delta() (dx, dy int32) {
	switch a {
	case MoveUp:
		return 0, -1
	case MoveDown:
		return 0, 1
	case MoveLeft:
		return -1, 0
	case MoveRight:
		return 1, 0
	}
	return 0, 0
}

// Moves lists the four movement actions in a stable order.
var Moves = []Action{MoveUp, MoveDown, MoveLeft, MoveRight}

// Config holds the simulation knobs. Zero values are not usable; start from
// DefaultConfig.
type Config struct {
	BoardSize    int32
	MaxTurns     int32
	WallRatio    float64
	InitialCoins int
	CoinMinimum  int // regenerate up to this many live coins
	CoinBonus    int32

	// FailureThreshold eliminates a player once its consecutive-failure
	// counter reaches this value. 0 means never auto-eliminate.
	FailureThreshold int32
}

func DefaultConfig() Config {
	return Config{
		BoardSize:        15,
		MaxTurns:         50,
		WallRatio:        0.2,
		InitialCoins:     5,
		CoinMinimum:      3,
		CoinBonus:        5,
		FailureThreshold: 0,
	}
}

// Advance applies both actions to the state and returns the next state plus
// its snapshot. Both transitions are computed from the same pre-turn snapshot:
// neither player sees the other's move first.
//
// When both players move into the identical cell, both occupy it and both
// claims apply; the claims run in fixed player order, so the shared cell ends
// owned by P2. There is deliberately no blocking rule beyond that.
func Advance(state *game.MatchState, actP1, actP2 Action, cfg Config, rng *rand.Rand) (*game.MatchState, game.TurnSnapshot) {
	next := state.Clone()
	next.Turn++

	walls := next.WallSet()

	// 1+2. Intended cells from the shared pre-turn positions, applied together.
	acts := [2]Action{actP1, actP2}
	for side := game.P1; side <= game.P2; side++ {
		target := intendedCell(state.Players[side].Pos, acts[side])
		if next.InBounds(target) {
			if _, wall := walls[target]; !wall {
				next.Players[side].Pos = target
			}
		}
		// Illegal move: position unchanged, no error.
	}

	// 3. Territory claim, stealing allowed. Fixed order (see doc comment).
	next.SetOwner(next.Players[game.P1].Pos, game.OwnedByP1)
	next.SetOwner(next.Players[game.P2].Pos, game.OwnedByP2)

	// 4. Coin pickup. Both players landing on the same coin are both credited;
	// the coin is removed once.
	remaining := next.Coins[:0]
	for _, c := range next.Coins {
		hit := false
		for side := game.P1; side <= game.P2; side++ {
			if next.Players[side].Pos == c {
				next.Players[side].Coins++
				hit = true
			}
		}
		if !hit {
			remaining = append(remaining, c)
		}
	}
	next.Coins = remaining

	// 5. Regenerate up to the configured minimum.
	replenishCoins(next, cfg.CoinMinimum, rng)

	// 6. Recompute scores.
	recomputeScores(next, cfg)

	return next, next.Snapshot(actP1.String(), actP2.String())
}

func intendedCell(pos game.Point, act Action) game.Point {
	dx, dy := act.Delta()
	return game.Point{X: pos.X + dx, Y: pos.Y + dy}
}

func recomputeScores(state *game.MatchState, cfg Config) {
	var tilesP1, tilesP2 int32
	for _, o := range state.Cells {
		switch o {
		case game.OwnedByP1:
			tilesP1++
		case game.OwnedByP2:
			tilesP2++
		}
	}
	state.Players[game.P1].Score = tilesP1 + cfg.CoinBonus*state.Players[game.P1].Coins
	state.Players[game.P2].Score = tilesP2 + cfg.CoinBonus*state.Players[game.P2].Coins
}

// Outcome is a termination decision.
type Outcome struct {
	Done   bool
	Winner string
	Reason string
}

// CheckTermination evaluates the stop conditions after a simulated step.
// Elimination by the failure threshold is a forfeit: the surviving side wins
// regardless of score. All other endings award victory to the higher score.
func CheckTermination(state *game.MatchState, cfg Config, now time.Time) Outcome {
	if cfg.FailureThreshold > 0 {
		for side := game.P1; side <= game.P2; side++ {
			if state.Players[side].Failures >= cfg.FailureThreshold {
				return Outcome{Done: true, Winner: side.Other().String(), Reason: game.ReasonEliminated}
			}
		}
	}

	if state.Turn >= cfg.MaxTurns {
		return Outcome{Done: true, Winner: WinnerByScore(state), Reason: game.ReasonMaxTurns}
	}
	if !state.Deadline.IsZero() && now.After(state.Deadline) {
		return Outcome{Done: true, Winner: WinnerByScore(state), Reason: game.ReasonTimeLimit}
	}
	return Outcome{}
}

// WinnerByScore compares the current scores; ties are a draw.
func WinnerByScore(state *game.MatchState) string {
	scores := state.CurrentScores()
	switch {
	case scores.P1 > scores.P2:
		return game.WinnerP1
	case scores.P2 > scores.P1:
		return game.WinnerP2
	}
	return game.WinnerDraw
}
