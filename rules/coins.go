package rules

import (
	"math/rand"

	"github.com/Urasica/code-clash-arena/game"
)

// replenishCoins spawns coins on random free cells until the live count
// reaches minimum, or no free cell remains. A cell is free if it is on the
// board and holds no wall, no coin and no player. Ownership does not matter:
// coins may appear on claimed territory.
func replenishCoins(state *game.MatchState, minimum int, rng *rand.Rand) {
	if minimum <= 0 || len(state.Coins) >= minimum {
		return
	}
	if rng == nil {
		return
	}

	occupied := make(map[game.Point]struct{}, len(state.Walls)+len(state.Coins)+2)
	for _, w := range state.Walls {
		occupied[w] = struct{}{}
	}
	for _, c := range state.Coins {
		occupied[c] = struct{}{}
	}
	occupied[state.Players[game.P1].Pos] = struct{}{}
	occupied[state.Players[game.P2].Pos] = struct{}{}

	free := make([]game.Point, 0, int(state.Size*state.Size)-len(occupied))
	for y := int32(0); y < state.Size; y++ {
		for x := int32(0); x < state.Size; x++ {
			p := game.Point{X: x, Y: y}
			if _, ok := occupied[p]; ok {
				continue
			}
			free = append(free, p)
		}
	}

	for len(state.Coins) < minimum && len(free) > 0 {
		i := rng.Intn(len(free))
		state.Coins = append(state.Coins, free[i])
		free[i] = free[len(free)-1]
		free = free[:len(free)-1]
	}
}
