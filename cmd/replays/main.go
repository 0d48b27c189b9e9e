// Command replays inspects stored replay parquet files with DuckDB.
//
// Usage:
//
//	replays list [-dir replays] [-limit 50]
//	replays show [-dir replays] -match <id>
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/Urasica/code-clash-arena/game"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	switch os.Args[1] {
	case "list":
		fs := flag.NewFlagSet("list", flag.ExitOnError)
		dir := fs.String("dir", "replays", "Replay parquet directory")
		limit := fs.Int("limit", 50, "Maximum matches to list")
		_ = fs.Parse(os.Args[2:])
		runList(*dir, *limit)
	case "show":
		fs := flag.NewFlagSet("show", flag.ExitOnError)
		dir := fs.String("dir", "replays", "Replay parquet directory")
		matchID := fs.String("match", "", "Match ID to dump")
		_ = fs.Parse(os.Args[2:])
		if *matchID == "" {
			log.Fatal("show requires -match")
		}
		runShow(*dir, *matchID)
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: replays <list|show> [flags]")
	os.Exit(2)
}

// openReplayDB builds an in-memory DuckDB with a turns view over every
// parquet file under dir, skipping in-flight files in tmp/.
func openReplayDB(dir string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, err
	}

	glob := filepath.Join(dir, "**", "*.parquet")
	glob = strings.ReplaceAll(glob, "'", "''")

	sqlText := `CREATE OR REPLACE VIEW turns AS
		SELECT * FROM read_parquet(['` + glob + `'], filename=true, union_by_name=true)
		WHERE NOT contains(filename, '/tmp/')`
	if _, err := db.Exec(sqlText); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create turns view: %w", err)
	}
	return db, nil
}

func runList(dir string, limit int) {
	db, err := openReplayDB(dir)
	if err != nil {
		log.Fatalf("open replay db: %v", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(context.Background(),
		`SELECT
			match_id,
			MAX(turn)::INTEGER AS turns,
			MIN(size)::INTEGER AS size,
			MIN(winner)::VARCHAR AS winner,
			MIN(reason)::VARCHAR AS reason,
			MAX(p1_score)::INTEGER AS p1_score,
			MAX(p2_score)::INTEGER AS p2_score
		FROM turns
		GROUP BY match_id
		ORDER BY match_id
		LIMIT ?`, limit)
	if err != nil {
		log.Fatalf("query matches: %v", err)
	}
	defer rows.Close()

	fmt.Printf("%-40s %6s %5s %-6s %-22s %9s\n", "MATCH", "TURNS", "SIZE", "WINNER", "REASON", "SCORE")
	count := 0
	for rows.Next() {
		var matchID, winner, reason string
		var turns, size, scoreP1, scoreP2 int32
		if err := rows.Scan(&matchID, &turns, &size, &winner, &reason, &scoreP1, &scoreP2); err != nil {
			log.Fatalf("scan match: %v", err)
		}
		fmt.Printf("%-40s %6d %5d %-6s %-22s %4d-%-4d\n", matchID, turns, size, winner, reason, scoreP1, scoreP2)
		count++
	}
	if err := rows.Err(); err != nil {
		log.Fatalf("iterate matches: %v", err)
	}
	fmt.Printf("\n%d matches\n", count)
}

func runShow(dir, matchID string) {
	db, err := openReplayDB(dir)
	if err != nil {
		log.Fatalf("open replay db: %v", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(context.Background(),
		`SELECT turn::INTEGER, size::INTEGER,
			p1_act, p1_x::INTEGER, p1_y::INTEGER, p1_alive, p1_score::INTEGER,
			p2_act, p2_x::INTEGER, p2_y::INTEGER, p2_alive, p2_score::INTEGER,
			coin_x, coin_y, wall_x, wall_y, ownership
		FROM turns
		WHERE match_id = ?
		ORDER BY turn ASC`, matchID)
	if err != nil {
		log.Fatalf("query turns: %v", err)
	}
	defer rows.Close()

	enc := json.NewEncoder(os.Stdout)
	found := false
	for rows.Next() {
		var (
			turn, size                 int32
			actP1, actP2               string
			xP1, yP1, xP2, yP2         int32
			aliveP1, aliveP2           bool
			scoreP1, scoreP2           int32
			coinX, coinY, wallX, wallY any
			ownership                  any
		)
		if err := rows.Scan(&turn, &size,
			&actP1, &xP1, &yP1, &aliveP1, &scoreP1,
			&actP2, &xP2, &yP2, &aliveP2, &scoreP2,
			&coinX, &coinY, &wallX, &wallY, &ownership); err != nil {
			log.Fatalf("scan turn: %v", err)
		}
		found = true

		snap := game.TurnSnapshot{
			Turn:   turn,
			P1:     game.PlayerSnapshot{Act: actP1, Pos: game.Point{X: xP1, Y: yP1}, Alive: aliveP1},
			P2:     game.PlayerSnapshot{Act: actP2, Pos: game.Point{X: xP2, Y: yP2}, Alive: aliveP2},
			Coins:  zipPoints(asInt32Slice(coinX), asInt32Slice(coinY)),
			Walls:  zipPoints(asInt32Slice(wallX), asInt32Slice(wallY)),
			Board:  boardRows(asInt32Slice(ownership), size),
			Scores: game.Scores{P1: scoreP1, P2: scoreP2},
		}
		if err := enc.Encode(snap); err != nil {
			log.Fatalf("encode snapshot: %v", err)
		}
	}
	if err := rows.Err(); err != nil {
		log.Fatalf("iterate turns: %v", err)
	}
	if !found {
		log.Fatalf("no turns found for match %s", matchID)
	}
}

// asInt32Slice converts DuckDB list values, which scan as []any of assorted
// integer widths, into []int32.
func asInt32Slice(v any) []int32 {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]int32, 0, len(list))
	for _, e := range list {
		switch n := e.(type) {
		case int32:
			out = append(out, n)
		case int64:
			out = append(out, int32(n))
		case int:
			out = append(out, int32(n))
		case float64:
			out = append(out, int32(n))
		}
	}
	return out
}

func zipPoints(xs, ys []int32) []game.Point {
	n := len(xs)
	if len(ys) < n {
		n = len(ys)
	}
	pts := make([]game.Point, n)
	for i := 0; i < n; i++ {
		pts[i] = game.Point{X: xs[i], Y: ys[i]}
	}
	return pts
}

func boardRows(flat []int32, size int32) [][]game.Ownership {
	if size <= 0 || int32(len(flat)) < size*size {
		return nil
	}
	rows := make([][]game.Ownership, size)
	for y := int32(0); y < size; y++ {
		row := make([]game.Ownership, size)
		for x := int32(0); x < size; x++ {
			row[x] = game.Ownership(flat[y*size+x])
		}
		rows[y] = row
	}
	return rows
}
