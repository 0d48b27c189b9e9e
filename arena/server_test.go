package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Urasica/code-clash-arena/orchestrator"
	"github.com/Urasica/code-clash-arena/store"
)

func newTestServer(t *testing.T) (*server, *httptest.Server) {
	t.Helper()
	dir := t.TempDir()

	archived, err := store.OpenArchivedLog(filepath.Join(dir, "archived.log"))
	require.NoError(t, err)
	t.Cleanup(func() { archived.Close() })

	srv := newServer(orchestrator.DefaultConfig(), filepath.Join(dir, "work"), filepath.Join(dir, "replays"), archived, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.mm.Run(ctx, 5*time.Millisecond)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/match/land-grab/start", srv.handleStart)
	mux.HandleFunc("POST /api/match/land-grab/compile", srv.handleCompile)
	mux.HandleFunc("POST /api/match/land-grab/run", srv.handleRun)
	mux.HandleFunc("/ws/matchmaking", srv.handleMatchmakingWS)
	mux.HandleFunc("/ws/game", srv.handleGameWS)

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return srv, ts
}

func TestHandleStart_ReturnsPlayableMap(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/match/land-grab/start", "application/json", bytes.NewReader(nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got startResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.NotEmpty(t, got.MatchID)
	assert.NotEmpty(t, got.Walls)
	assert.Len(t, got.Coins, 5)

	// A second start is a different match.
	resp2, err := http.Post(ts.URL+"/api/match/land-grab/start", "application/json", bytes.NewReader(nil))
	require.NoError(t, err)
	defer resp2.Body.Close()
	var got2 startResponse
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&got2))
	assert.NotEqual(t, got.MatchID, got2.MatchID)
}

func TestHandleRun_UnknownMatch(t *testing.T) {
	_, ts := newTestServer(t)

	body, _ := json.Marshal(runRequest{MatchID: "nope", UserCode: "x", Language: "python", Difficulty: "easy"})
	resp, err := http.Post(ts.URL+"/api/match/land-grab/run", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func dialWS(t *testing.T, ts *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readNotice(t *testing.T, conn *websocket.Conn) pairedNotice {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var notice pairedNotice
	require.NoError(t, conn.ReadJSON(&notice))
	return notice
}

func TestMatchmaking_PairsTwoPlayers(t *testing.T) {
	srv, ts := newTestServer(t)

	alice := dialWS(t, ts, "/ws/matchmaking")
	bob := dialWS(t, ts, "/ws/matchmaking")

	require.NoError(t, alice.WriteJSON(matchmakingMsg{Action: "join", UserID: "alice"}))
	// Make sure alice is queued before bob joins, so roles are stable.
	require.Eventually(t, func() bool { return srv.mm.Contains("alice") },
		2*time.Second, 10*time.Millisecond)
	require.NoError(t, bob.WriteJSON(matchmakingMsg{Action: "join", UserID: "bob"}))

	aliceNotice := readNotice(t, alice)
	bobNotice := readNotice(t, bob)

	assert.Equal(t, "MATCHED", aliceNotice.Type)
	assert.Equal(t, aliceNotice.MatchID, bobNotice.MatchID)
	assert.Equal(t, "p1", aliceNotice.MyRole)
	assert.Equal(t, "p2", bobNotice.MyRole)
	assert.NotEmpty(t, aliceNotice.MapData.Coins)

	// The paired match has a live session.
	_, ok := srv.sessionByID(aliceNotice.MatchID)
	assert.True(t, ok)
	assert.Equal(t, 0, srv.mm.Waiting())
}

func TestMatchmaking_DisconnectCancelsQueueEntry(t *testing.T) {
	srv, ts := newTestServer(t)

	alice := dialWS(t, ts, "/ws/matchmaking")
	require.NoError(t, alice.WriteJSON(matchmakingMsg{Action: "join", UserID: "alice"}))
	require.Eventually(t, func() bool { return srv.mm.Contains("alice") },
		2*time.Second, 10*time.Millisecond)

	alice.Close()
	require.Eventually(t, func() bool { return srv.mm.Waiting() == 0 },
		2*time.Second, 10*time.Millisecond)
}

func TestGameWS_DisconnectForfeits(t *testing.T) {
	srv, ts := newTestServer(t)

	alice := dialWS(t, ts, "/ws/matchmaking")
	bob := dialWS(t, ts, "/ws/matchmaking")
	require.NoError(t, alice.WriteJSON(matchmakingMsg{Action: "join", UserID: "alice"}))
	require.Eventually(t, func() bool { return srv.mm.Contains("alice") },
		2*time.Second, 10*time.Millisecond)
	require.NoError(t, bob.WriteJSON(matchmakingMsg{Action: "join", UserID: "bob"}))
	matchID := readNotice(t, alice).MatchID
	readNotice(t, bob)

	aliceGame := dialWS(t, ts, "/ws/game")
	require.NoError(t, aliceGame.WriteJSON(gameMsg{Action: "join", MatchID: matchID, UserID: "alice"}))
	require.NoError(t, aliceGame.WriteJSON(gameMsg{
		Action: "submit", MatchID: matchID, UserID: "alice",
		Code: "def strategy(my_pos, coins, walls, board_size):\n    return 'STAY'\n", Language: "python",
	}))

	// The submitted notification proves the join was processed.
	require.NoError(t, aliceGame.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	require.NoError(t, aliceGame.ReadJSON(&ev))
	assert.Equal(t, "NOTIFICATION", ev.Type)
	assert.Equal(t, "PLAYER_SUBMITTED", ev.Message)

	sess, ok := srv.sessionByID(matchID)
	require.True(t, ok)
	aliceGame.Close()
	require.Eventually(t, func() bool { return sess.Done() },
		2*time.Second, 20*time.Millisecond)
}
