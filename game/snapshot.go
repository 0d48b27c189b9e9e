package game

// Winner values as they appear in results and replays.
const (
	WinnerP1   = "p1"
	WinnerP2   = "p2"
	WinnerDraw = "draw"
)

// Termination reasons attached to a finished or aborted match.
const (
	ReasonMaxTurns          = "MAX_TURNS"
	ReasonTimeLimit         = "TIME_LIMIT"
	ReasonEliminated        = "ELIMINATED"
	ReasonCompileError      = "COMPILE_ERROR"
	ReasonDisconnected      = "OPPONENT_DISCONNECTED"
	ReasonSubmissionTimeout = "SUBMISSION_TIMEOUT"
)

// PlayerSnapshot is one player's portion of a turn snapshot.
type PlayerSnapshot struct {
	Act   string `json:"act"`
	Pos   Point  `json:"pos"`
	Alive bool   `json:"alive"`
}

// TurnSnapshot is an immutable record of the world after one simulated step.
// Snapshot 0 records the initial world with both acts set to "START".
type TurnSnapshot struct {
	Turn   int32          `json:"turn"`
	P1     PlayerSnapshot `json:"p1"`
	P2     PlayerSnapshot `json:"p2"`
	Coins  []Point        `json:"coins"`
	Walls  []Point        `json:"walls"`
	Board  [][]Ownership  `json:"board"`
	Scores Scores         `json:"scores"`
}

// ReplayLog is the ordered snapshot sequence of a completed match plus its
// outcome. It is the unit handed to viewers and to the persistence sink.
type ReplayLog struct {
	MatchID     string         `json:"match_id"`
	Winner      string         `json:"winner"`
	Reason      string         `json:"reason,omitempty"`
	FinalScores Scores         `json:"final_scores"`
	TotalTurns  int32          `json:"total_turns"`
	Logs        []TurnSnapshot `json:"logs"`
	P1Error     string         `json:"p1_error,omitempty"`
	P2Error     string         `json:"p2_error,omitempty"`
}

// Snapshot captures the current state as an immutable turn record.
// acts are the action tokens each side resolved to this turn.
func (s *MatchState) Snapshot(actP1, actP2 string) TurnSnapshot {
	return TurnSnapshot{
		Turn:   s.Turn,
		P1:     PlayerSnapshot{Act: actP1, Pos: s.Players[P1].Pos, Alive: s.Players[P1].Alive},
		P2:     PlayerSnapshot{Act: actP2, Pos: s.Players[P2].Pos, Alive: s.Players[P2].Alive},
		Coins:  append([]Point(nil), s.Coins...),
		Walls:  append([]Point(nil), s.Walls...),
		Board:  s.BoardRows(),
		Scores: s.CurrentScores(),
	}
}
