// Command arena serves the code-battle backend: REST endpoints for matches
// against builtin bots, websocket channels for matchmaking and PvP sessions,
// and a Parquet replay sink.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/Urasica/code-clash-arena/orchestrator"
	"github.com/Urasica/code-clash-arena/store"
)

func main() {
	addr := flag.String("addr", getEnvOrDefault("ARENA_ADDR", ":8080"), "HTTP listen address")
	replayDir := flag.String("replay-dir", getEnvOrDefault("REPLAY_DIR", "replays"), "Directory for replay .parquet files")
	logPath := flag.String("log-path", getEnvOrDefault("ARCHIVED_LOG", "replays/archived_matches.log"), "Append-only log of match IDs already persisted")
	workDir := flag.String("work-dir", getEnvOrDefault("WORK_DIR", "work"), "Directory for strategy build workspaces")
	turnTimeout := flag.Duration("turn-timeout", getEnvDurationOrDefault("TURN_TIMEOUT", 2*time.Second), "Per-side per-turn strategy deadline")
	matchTimeout := flag.Duration("match-timeout", getEnvDurationOrDefault("MATCH_TIMEOUT", 600*time.Second), "Wall-clock budget per match")

	flag.Parse()

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	archived, err := store.OpenArchivedLog(*logPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("open archived log")
	}
	defer archived.Close()

	cfg := orchestrator.DefaultConfig()
	cfg.TurnTimeout = *turnTimeout
	cfg.MatchTimeout = *matchTimeout

	srv := newServer(cfg, *workDir, *replayDir, archived, logger)
	go srv.mm.Run(context.Background(), time.Second)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/match/land-grab/start", srv.handleStart)
	mux.HandleFunc("POST /api/match/land-grab/compile", srv.handleCompile)
	mux.HandleFunc("POST /api/match/land-grab/run", srv.handleRun)
	mux.HandleFunc("/ws/matchmaking", srv.handleMatchmakingWS)
	mux.HandleFunc("/ws/game", srv.handleGameWS)

	logger.Info().
		Str("addr", *addr).
		Str("replay_dir", *replayDir).
		Int("archived", archived.Count()).
		Msg("arena listening")

	if err := http.ListenAndServe(*addr, mux); err != nil {
		logger.Fatal().Err(err).Msg("http server")
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
