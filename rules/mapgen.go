package rules

import (
	"math/rand"

	"github.com/Urasica/code-clash-arena/game"
)

// MapData is the seedable map-generator output handed to clients when a match
// is created and consumed by NewMatchState.
type MapData struct {
	Walls []game.Point `json:"walls"`
	Coins []game.Point `json:"coins"`
}

// GenerateMap places walls and initial coins. The cells around both starting
// corners stay clear so neither player can spawn boxed in, and wall layouts
// that disconnect the two starting corners are rerolled: a sealed-off player
// would lose the match at generation time. The same seed always yields the
// same map.
func GenerateMap(cfg Config, rng *rand.Rand) MapData {
	n := cfg.BoardSize
	protected := map[game.Point]struct{}{
		{X: 0, Y: 0}:         {},
		{X: 1, Y: 0}:         {},
		{X: 0, Y: 1}:         {},
		{X: n - 1, Y: n - 1}: {},
		{X: n - 2, Y: n - 1}: {},
		{X: n - 1, Y: n - 2}: {},
	}

	var wallSet map[game.Point]struct{}
	var walls []game.Point
	for {
		wallSet = make(map[game.Point]struct{})
		walls = make([]game.Point, 0)
		attempts := int(float64(n*n) * cfg.WallRatio)
		for i := 0; i < attempts; i++ {
			w := game.Point{X: rng.Int31n(n), Y: rng.Int31n(n)}
			if _, ok := protected[w]; ok {
				continue
			}
			if _, ok := wallSet[w]; ok {
				continue
			}
			wallSet[w] = struct{}{}
			walls = append(walls, w)
		}
		if cornersConnected(wallSet, n) {
			break
		}
	}

	coinSet := make(map[game.Point]struct{})
	coins := make([]game.Point, 0, cfg.InitialCoins)
	for len(coins) < cfg.InitialCoins {
		c := game.Point{X: rng.Int31n(n), Y: rng.Int31n(n)}
		if _, ok := wallSet[c]; ok {
			continue
		}
		if _, ok := coinSet[c]; ok {
			continue
		}
		if _, ok := protected[c]; ok {
			continue
		}
		coinSet[c] = struct{}{}
		coins = append(coins, c)
	}

	return MapData{Walls: walls, Coins: coins}
}

// cornersConnected reports whether (0,0) can reach (n-1,n-1) over non-wall
// cells.
func cornersConnected(walls map[game.Point]struct{}, n int32) bool {
	start := game.Point{X: 0, Y: 0}
	goal := game.Point{X: n - 1, Y: n - 1}

	visited := map[game.Point]struct{}{start: {}}
	queue := []game.Point{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == goal {
			return true
		}
		for _, act := range Moves {
			dx, dy := act.Delta()
			next := game.Point{X: cur.X + dx, Y: cur.Y + dy}
			if next.X < 0 || next.X >= n || next.Y < 0 || next.Y >= n {
				continue
			}
			if _, wall := walls[next]; wall {
				continue
			}
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = struct{}{}
			queue = append(queue, next)
		}
	}
	return false
}

// NewMatchState builds the turn-0 state: players at opposite corners with
// their starting cells pre-claimed, scores computed, status Created.
func NewMatchState(matchID string, cfg Config, m MapData) *game.MatchState {
	n := cfg.BoardSize
	state := &game.MatchState{
		MatchID: matchID,
		Size:    n,
		Walls:   append([]game.Point(nil), m.Walls...),
		Coins:   append([]game.Point(nil), m.Coins...),
		Cells:   make([]game.Ownership, n*n),
		Turn:    0,
		Status:  game.Created,
	}

	state.Players[game.P1] = game.PlayerState{Pos: game.Point{X: 0, Y: 0}, Alive: true}
	state.Players[game.P2] = game.PlayerState{Pos: game.Point{X: n - 1, Y: n - 1}, Alive: true}
	state.SetOwner(state.Players[game.P1].Pos, game.OwnedByP1)
	state.SetOwner(state.Players[game.P2].Pos, game.OwnedByP2)
	recomputeScores(state, cfg)

	return state
}
