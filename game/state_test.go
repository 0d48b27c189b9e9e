package game

import (
	"encoding/json"
	"testing"
)

func TestPointWireFormat(t *testing.T) {
	data, err := json.Marshal(Point{X: 3, Y: 7})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[3,7]" {
		t.Fatalf("marshal=%s want=[3,7]", data)
	}

	var p Point
	if err := json.Unmarshal([]byte("[12,0]"), &p); err != nil {
		t.Fatal(err)
	}
	if p != (Point{X: 12, Y: 0}) {
		t.Fatalf("unmarshal=%v", p)
	}

	if err := json.Unmarshal([]byte(`{"x":1}`), &p); err == nil {
		t.Fatal("object form accepted")
	}
}

func newState() *MatchState {
	s := &MatchState{
		MatchID: "m1",
		Size:    4,
		Walls:   []Point{{X: 1, Y: 1}},
		Coins:   []Point{{X: 2, Y: 2}},
		Cells:   make([]Ownership, 16),
	}
	s.Players[P1] = PlayerState{Pos: Point{X: 0, Y: 0}, Alive: true}
	s.Players[P2] = PlayerState{Pos: Point{X: 3, Y: 3}, Alive: true}
	s.SetOwner(s.Players[P1].Pos, OwnedByP1)
	s.SetOwner(s.Players[P2].Pos, OwnedByP2)
	return s
}

func TestClone_IsDeep(t *testing.T) {
	s := newState()
	c := s.Clone()

	c.Coins[0] = Point{X: 0, Y: 3}
	c.SetOwner(Point{X: 2, Y: 0}, OwnedByP1)
	c.Players[P1].Score = 99

	if s.Coins[0] != (Point{X: 2, Y: 2}) {
		t.Fatalf("coin mutated through clone: %v", s.Coins[0])
	}
	if s.OwnerAt(Point{X: 2, Y: 0}) != Unowned {
		t.Fatal("cells shared with clone")
	}
	if s.Players[P1].Score != 0 {
		t.Fatal("player state shared with clone")
	}
}

func TestTurnStateFor_SwapsPerspective(t *testing.T) {
	s := newState()

	tsP1 := s.TurnStateFor(P1)
	tsP2 := s.TurnStateFor(P2)

	if tsP1.MyPos != s.Players[P1].Pos || tsP1.EnemyPos != s.Players[P2].Pos {
		t.Fatalf("p1 view: my=%v enemy=%v", tsP1.MyPos, tsP1.EnemyPos)
	}
	if tsP2.MyPos != s.Players[P2].Pos || tsP2.EnemyPos != s.Players[P1].Pos {
		t.Fatalf("p2 view: my=%v enemy=%v", tsP2.MyPos, tsP2.EnemyPos)
	}

	// The view is a copy: mutating it must not leak back.
	tsP1.Coins[0] = Point{X: 0, Y: 0}
	tsP1.Board[3][3] = Unowned
	if s.Coins[0] != (Point{X: 2, Y: 2}) || s.OwnerAt(Point{X: 3, Y: 3}) != OwnedByP2 {
		t.Fatal("turn state shares memory with match state")
	}
}

func TestTurnStateJSONShape(t *testing.T) {
	s := newState()
	data, err := json.Marshal(s.TurnStateFor(P1))
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"turn", "board_size", "my_pos", "enemy_pos", "coins", "walls", "board", "scores"} {
		if _, ok := decoded[key]; !ok {
			t.Fatalf("wire payload missing %q", key)
		}
	}
	if string(decoded["my_pos"]) != "[0,0]" {
		t.Fatalf("my_pos=%s", decoded["my_pos"])
	}
}

func TestSnapshot_CapturesCurrentState(t *testing.T) {
	s := newState()
	s.Turn = 4

	snap := s.Snapshot("MOVE_RIGHT", "STAY")
	if snap.Turn != 4 || snap.P1.Act != "MOVE_RIGHT" || snap.P2.Act != "STAY" {
		t.Fatalf("snap=%+v", snap)
	}

	// Later mutation of the state must not alter the snapshot.
	s.SetOwner(Point{X: 0, Y: 0}, OwnedByP2)
	s.Coins = nil
	if snap.Board[0][0] != OwnedByP1 || len(snap.Coins) != 1 {
		t.Fatal("snapshot shares memory with match state")
	}
}

func TestSideHelpers(t *testing.T) {
	if P1.Other() != P2 || P2.Other() != P1 {
		t.Fatal("Other is wrong")
	}
	if P1.Owned() != OwnedByP1 || P2.Owned() != OwnedByP2 {
		t.Fatal("Owned is wrong")
	}
	if P1.String() != "p1" || P2.String() != "p2" {
		t.Fatal("String is wrong")
	}
}
