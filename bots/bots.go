// Package bots provides the builtin opponents. Each bot is a pure decision
// function over the turn state; randomness comes from the RNG injected at
// construction so seeded matches replay identically.
package bots

import (
	"fmt"
	"math/rand"

	"github.com/Urasica/code-clash-arena/game"
	"github.com/Urasica/code-clash-arena/rules"
)

// Decider is the builtin counterpart of a strategy process: one action per
// turn, no external process, never fails.
type Decider interface {
	Decide(ts game.TurnState) rules.Action
}

// ForDifficulty maps the public difficulty names onto bot tiers.
func ForDifficulty(difficulty string, rng *rand.Rand) (Decider, error) {
	switch difficulty {
	case "easy":
		return &Random{Rng: rng}, nil
	case "normal":
		return &Greedy{Rng: rng}, nil
	case "hard":
		return &Pathfinder{Rng: rng}, nil
	}
	return nil, fmt.Errorf("unknown difficulty %q", difficulty)
}

// Random picks uniformly among the four move directions.
type Random struct {
	Rng *rand.Rand
}

func (b *Random) Decide(game.TurnState) rules.Action {
	return rules.Moves[b.Rng.Intn(len(rules.Moves))]
}

// Greedy walks straight at the first coin in the list, closing the X gap
// before the Y gap (candidate order Right, Left, Down, Up). With no coins it
// behaves like Random. It does not route around walls.
type Greedy struct {
	Rng *rand.Rand
}

func (b *Greedy) Decide(ts game.TurnState) rules.Action {
	if len(ts.Coins) == 0 {
		return rules.Moves[b.Rng.Intn(len(rules.Moves))]
	}

	target := ts.Coins[0]
	switch {
	case target.X > ts.MyPos.X:
		return rules.MoveRight
	case target.X < ts.MyPos.X:
		return rules.MoveLeft
	case target.Y > ts.MyPos.Y:
		return rules.MoveDown
	case target.Y < ts.MyPos.Y:
		return rules.MoveUp
	}
	return rules.Stay
}

// Pathfinder breadth-first searches the free (non-wall) cells for the nearest
// reachable coin and emits the first step of the shortest path. If no coin is
// reachable it falls back to Random.
type Pathfinder struct {
	Rng *rand.Rand
}

func (b *Pathfinder) Decide(ts game.TurnState) rules.Action {
	if act, ok := firstStepToCoin(ts); ok {
		return act
	}
	return rules.Moves[b.Rng.Intn(len(rules.Moves))]
}

func firstStepToCoin(ts game.TurnState) (rules.Action, bool) {
	if len(ts.Coins) == 0 {
		return rules.Stay, false
	}

	walls := make(map[game.Point]struct{}, len(ts.Walls))
	for _, w := range ts.Walls {
		walls[w] = struct{}{}
	}
	coins := make(map[game.Point]struct{}, len(ts.Coins))
	for _, c := range ts.Coins {
		coins[c] = struct{}{}
	}

	type node struct {
		pos   game.Point
		first rules.Action // first step taken from the start; Stay at the root
	}

	visited := map[game.Point]struct{}{ts.MyPos: {}}
	queue := []node{{pos: ts.MyPos, first: rules.Stay}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if _, ok := coins[cur.pos]; ok && cur.first != rules.Stay {
			return cur.first, true
		}

		for _, act := range rules.Moves {
			dx, dy := act.Delta()
			next := game.Point{X: cur.pos.X + dx, Y: cur.pos.Y + dy}
			if next.X < 0 || next.X >= ts.BoardSize || next.Y < 0 || next.Y >= ts.BoardSize {
				continue
			}
			if _, wall := walls[next]; wall {
				continue
			}
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = struct{}{}
			first := cur.first
			if first == rules.Stay {
				first = act
			}
			queue = append(queue, node{pos: next, first: first})
		}
	}

	return rules.Stay, false
}
