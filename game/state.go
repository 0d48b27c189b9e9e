// Package game defines the core state types for the land-grab arena.
//
// These types represent the minimal state needed for simulation and replay
// logging. The state is designed to be efficiently clonable so the simulator
// can stay pure: every turn produces a fresh state plus an immutable snapshot.
package game

import (
	"fmt"
	"time"
)

// Point is a board coordinate.
// (0,0) is the top-left cell: MOVE_UP decreases Y, MOVE_DOWN increases Y.
type Point struct {
	X int32
	Y int32
}

// MarshalJSON encodes a point as the wire form [x,y].
func (p Point) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("[%d,%d]", p.X, p.Y)), nil
}

// UnmarshalJSON accepts the wire form [x,y].
func (p *Point) UnmarshalJSON(data []byte) error {
	var x, y int32
	if _, err := fmt.Sscanf(string(data), "[%d,%d]", &x, &y); err != nil {
		return fmt.Errorf("invalid point %q: %w", data, err)
	}
	p.X, p.Y = x, y
	return nil
}

// Ownership tags one board cell. Wall cells are tracked separately and never
// carry ownership.
type Ownership int8

const (
	Unowned Ownership = iota
	OwnedByP1
	OwnedByP2
)

// Side identifies one of the two players.
type Side int

const (
	P1 Side = iota
	P2
)

func (s Side) String() string {
	if s == P1 {
		return "p1"
	}
	return "p2"
}

// Other returns the opposing side.
func (s Side) Other() Side {
	if s == P1 {
		return P2
	}
	return P1
}

// Owned returns the ownership tag claimed by this side.
func (s Side) Owned() Ownership {
	if s == P1 {
		return OwnedByP1
	}
	return OwnedByP2
}

// Status is the match lifecycle state.
type Status int8

const (
	Created Status = iota
	AwaitingSubmissions
	Running
	Finished
	Aborted
)

// PlayerState is the mutable per-player portion of a match.
type PlayerState struct {
	Pos       Point
	Alive     bool
	Score     int32
	Coins     int32 // coins collected so far
	Failures  int32 // consecutive failed turns (timeout/crash)
	LastError string
}

// Scores is the score pair as it appears on the wire and in snapshots.
type Scores struct {
	P1 int32 `json:"p1"`
	P2 int32 `json:"p2"`
}

// MatchState is the complete state of one match between two players.
//
// Cells holds one ownership tag per board cell in row-major order; walls are a
// fixed subset of cells, immutable for the match's lifetime. Mutated only by
// the simulator; everything handed outward is a snapshot copy.
type MatchState struct {
	MatchID  string
	Size     int32
	Walls    []Point
	Coins    []Point
	Cells    []Ownership // Size*Size, row-major
	Players  [2]PlayerState
	Turn     int32
	Status   Status
	Deadline time.Time
}

// InBounds reports whether p lies on the board.
func (s *MatchState) InBounds(p Point) bool {
	return p.X >= 0 && p.X < s.Size && p.Y >= 0 && p.Y < s.Size
}

// OwnerAt returns the ownership tag at p. Out-of-bounds cells are Unowned.
func (s *MatchState) OwnerAt(p Point) Ownership {
	if !s.InBounds(p) {
		return Unowned
	}
	return s.Cells[p.Y*s.Size+p.X]
}

// SetOwner claims the cell at p. No-op out of bounds.
func (s *MatchState) SetOwner(p Point, o Ownership) {
	if !s.InBounds(p) {
		return
	}
	s.Cells[p.Y*s.Size+p.X] = o
}

// WallSet returns the walls as a lookup set.
func (s *MatchState) WallSet() map[Point]struct{} {
	set := make(map[Point]struct{}, len(s.Walls))
	for _, w := range s.Walls {
		set[w] = struct{}{}
	}
	return set
}

// CurrentScores returns both players' scores.
func (s *MatchState) CurrentScores() Scores {
	return Scores{P1: s.Players[P1].Score, P2: s.Players[P2].Score}
}

// Clone performs a deep copy of the match state.
func (s *MatchState) Clone() *MatchState {
	if s == nil {
		return nil
	}

	out := &MatchState{
		MatchID:  s.MatchID,
		Size:     s.Size,
		Players:  s.Players,
		Turn:     s.Turn,
		Status:   s.Status,
		Deadline: s.Deadline,
	}

	if len(s.Walls) > 0 {
		out.Walls = make([]Point, len(s.Walls))
		copy(out.Walls, s.Walls)
	}
	if len(s.Coins) > 0 {
		out.Coins = make([]Point, len(s.Coins))
		copy(out.Coins, s.Coins)
	}
	if len(s.Cells) > 0 {
		out.Cells = make([]Ownership, len(s.Cells))
		copy(out.Cells, s.Cells)
	}

	return out
}

// TurnState is the per-turn view serialized to one strategy. MyPos/EnemyPos
// are relative to the receiving side; everything else is shared.
type TurnState struct {
	Turn      int32         `json:"turn"`
	BoardSize int32         `json:"board_size"`
	MyPos     Point         `json:"my_pos"`
	EnemyPos  Point         `json:"enemy_pos"`
	Coins     []Point       `json:"coins"`
	Walls     []Point       `json:"walls"`
	Board     [][]Ownership `json:"board"`
	Scores    Scores        `json:"scores"`
}

// TurnStateFor builds the view of the state seen by one side.
func (s *MatchState) TurnStateFor(side Side) TurnState {
	return TurnState{
		Turn:      s.Turn,
		BoardSize: s.Size,
		MyPos:     s.Players[side].Pos,
		EnemyPos:  s.Players[side.Other()].Pos,
		Coins:     append([]Point(nil), s.Coins...),
		Walls:     append([]Point(nil), s.Walls...),
		Board:     s.BoardRows(),
		Scores:    s.CurrentScores(),
	}
}

// BoardRows copies the ownership grid into [y][x] rows.
func (s *MatchState) BoardRows() [][]Ownership {
	rows := make([][]Ownership, s.Size)
	for y := int32(0); y < s.Size; y++ {
		rows[y] = make([]Ownership, s.Size)
		copy(rows[y], s.Cells[y*s.Size:(y+1)*s.Size])
	}
	return rows
}
