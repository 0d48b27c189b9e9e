// Package store persists finished replays as Parquet for offline analysis.
//
// One match flattens to one row per recorded turn. Match-level fields (winner,
// reason, final scores) repeat on every row and rely on dictionary encoding,
// which keeps single-file queries join-free.
package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"github.com/Urasica/code-clash-arena/game"
)

// ReplayTurnRow is a single (match, turn) snapshot in long-term storage.
//
// Turn 0 is the initial world with both acts set to "START". Ownership is the
// row-major board grid: 0 unowned, 1 player one, 2 player two. Wall and coin
// coordinates are split into parallel x/y columns for column-level compression.
type ReplayTurnRow struct {
	MatchID string `parquet:"match_id,dict"`
	Turn    int32  `parquet:"turn"`
	Size    int32  `parquet:"size"`

	P1Act   string `parquet:"p1_act,dict"`
	P1X     int32  `parquet:"p1_x"`
	P1Y     int32  `parquet:"p1_y"`
	P1Alive bool   `parquet:"p1_alive"`
	P1Score int32  `parquet:"p1_score"`

	P2Act   string `parquet:"p2_act,dict"`
	P2X     int32  `parquet:"p2_x"`
	P2Y     int32  `parquet:"p2_y"`
	P2Alive bool   `parquet:"p2_alive"`
	P2Score int32  `parquet:"p2_score"`

	CoinX []int32 `parquet:"coin_x"`
	CoinY []int32 `parquet:"coin_y"`
	WallX []int32 `parquet:"wall_x"`
	WallY []int32 `parquet:"wall_y"`

	Ownership []int32 `parquet:"ownership"`

	Winner     string `parquet:"winner,dict"`
	Reason     string `parquet:"reason,dict"`
	TotalTurns int32  `parquet:"total_turns"`

	P1Error string `parquet:"p1_error,dict,optional"`
	P2Error string `parquet:"p2_error,dict,optional"`
}

// FlattenReplay converts one replay log into storage rows, one per snapshot.
func FlattenReplay(log *game.ReplayLog) []ReplayTurnRow {
	rows := make([]ReplayTurnRow, 0, len(log.Logs))
	for _, snap := range log.Logs {
		size := int32(len(snap.Board))

		row := ReplayTurnRow{
			MatchID: log.MatchID,
			Turn:    snap.Turn,
			Size:    size,

			P1Act:   snap.P1.Act,
			P1X:     snap.P1.Pos.X,
			P1Y:     snap.P1.Pos.Y,
			P1Alive: snap.P1.Alive,
			P1Score: snap.Scores.P1,

			P2Act:   snap.P2.Act,
			P2X:     snap.P2.Pos.X,
			P2Y:     snap.P2.Pos.Y,
			P2Alive: snap.P2.Alive,
			P2Score: snap.Scores.P2,

			Winner:     log.Winner,
			Reason:     log.Reason,
			TotalTurns: log.TotalTurns,

			P1Error: log.P1Error,
			P2Error: log.P2Error,
		}

		row.CoinX, row.CoinY = splitPoints(snap.Coins)
		row.WallX, row.WallY = splitPoints(snap.Walls)

		row.Ownership = make([]int32, 0, size*size)
		for _, boardRow := range snap.Board {
			for _, o := range boardRow {
				row.Ownership = append(row.Ownership, int32(o))
			}
		}

		rows = append(rows, row)
	}
	return rows
}

func splitPoints(pts []game.Point) (xs, ys []int32) {
	xs = make([]int32, len(pts))
	ys = make([]int32, len(pts))
	for i, p := range pts {
		xs[i] = p.X
		ys[i] = p.Y
	}
	return xs, ys
}

// WriteReplayParquet writes rows to outPath via a temp file and atomic rename.
func WriteReplayParquet(outPath string, rows []ReplayTurnRow) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmpPath := outPath + ".tmp"
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", "replay_turn_v1"),
	); err != nil {
		return fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("rename parquet: %w", err)
	}
	return nil
}
