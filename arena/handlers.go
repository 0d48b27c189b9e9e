package main

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"path/filepath"
	"time"

	"github.com/Urasica/code-clash-arena/bots"
	"github.com/Urasica/code-clash-arena/game"
	"github.com/Urasica/code-clash-arena/orchestrator"
	"github.com/Urasica/code-clash-arena/strategy"
)

// startResponse carries the generated map so the client can show the board
// before any code is submitted.
type startResponse struct {
	MatchID string       `json:"matchId"`
	Walls   []game.Point `json:"walls"`
	Coins   []game.Point `json:"coins"`
}

func (s *server) handleStart(w http.ResponseWriter, r *http.Request) {
	matchID, m := s.newMatch()
	s.addPending(matchID, m)

	s.log.Info().Str("match_id", matchID).Msg("ai match created")
	writeJSON(w, http.StatusOK, startResponse{MatchID: matchID, Walls: m.Walls, Coins: m.Coins})
}

type compileRequest struct {
	MatchID  string `json:"matchId"`
	UserCode string `json:"userCode"`
	Language string `json:"language"`
}

type compileResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (s *server) handleCompile(w http.ResponseWriter, r *http.Request) {
	var req compileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	lang, err := strategy.ParseLanguage(req.Language)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	dir := filepath.Join(s.workDir, req.MatchID, "compile")
	stepErr, err := strategy.Compile(dir, lang, req.UserCode)
	if err != nil {
		s.log.Error().Err(err).Str("match_id", req.MatchID).Msg("compile check")
		http.Error(w, "compile check failed", http.StatusInternalServerError)
		return
	}
	if stepErr != nil {
		writeJSON(w, http.StatusOK, compileResponse{Status: "error", Error: stepErr.Message})
		return
	}
	writeJSON(w, http.StatusOK, compileResponse{Status: "ok"})
}

type runRequest struct {
	MatchID    string `json:"matchId"`
	UserCode   string `json:"userCode"`
	Language   string `json:"language"`
	Difficulty string `json:"difficulty"`
}

// handleRun plays the submitted code against a builtin bot and returns the
// full replay. The match must come from a prior start call; each match runs
// once.
func (s *server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	lang, err := strategy.ParseLanguage(req.Language)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m, ok := s.takePending(req.MatchID)
	if !ok {
		http.Error(w, "unknown match", http.StatusNotFound)
		return
	}

	dir := filepath.Join(s.workDir, req.MatchID, "p1")
	proc, stepErr, err := strategy.Prepare(dir, lang, req.UserCode)
	if err != nil {
		s.log.Error().Err(err).Str("match_id", req.MatchID).Msg("prepare strategy")
		http.Error(w, "prepare strategy failed", http.StatusInternalServerError)
		return
	}
	if stepErr != nil {
		replay := orchestrator.AbortedLog(req.MatchID, game.WinnerP2, game.ReasonCompileError, stepErr.Message, "")
		go s.sink.persist(replay)
		writeJSON(w, http.StatusOK, replay)
		return
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	decider, err := bots.ForDifficulty(req.Difficulty, rng)
	if err != nil {
		proc.Close()
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	bot := orchestrator.BotPlayer(decider)

	orch := orchestrator.New(req.MatchID, s.cfg, m, proc, bot, rng)
	replay := orch.Run(r.Context())

	s.log.Info().
		Str("match_id", req.MatchID).
		Str("difficulty", req.Difficulty).
		Str("winner", replay.Winner).
		Int32("turns", replay.TotalTurns).
		Msg("ai match finished")

	go s.sink.persist(replay)
	writeJSON(w, http.StatusOK, replay)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
