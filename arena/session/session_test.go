package session

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Urasica/code-clash-arena/game"
	"github.com/Urasica/code-clash-arena/orchestrator"
	"github.com/Urasica/code-clash-arena/rules"
)

// eventRecorder captures broadcasts and persisted replays for assertions.
type eventRecorder struct {
	mu        sync.Mutex
	events    []Event
	replays   []*game.ReplayLog
	persisted chan struct{}
}

func newRecorder() *eventRecorder {
	return &eventRecorder{persisted: make(chan struct{}, 8)}
}

func (r *eventRecorder) broadcast(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) persist(replay *game.ReplayLog) {
	r.mu.Lock()
	r.replays = append(r.replays, replay)
	r.mu.Unlock()
	r.persisted <- struct{}{}
}

func (r *eventRecorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *eventRecorder) lastResult(t *testing.T) *game.ReplayLog {
	t.Helper()
	for _, ev := range r.snapshot() {
		if ev.Type == EventResult {
			return ev.Result
		}
	}
	t.Fatal("no RESULT event broadcast")
	return nil
}

func newTestSession(t *testing.T, rec *eventRecorder) *Session {
	t.Helper()
	cfg := orchestrator.DefaultConfig()
	return New("match-1", "alice", "bob", cfg, rules.MapData{},
		t.TempDir(), nil, zerolog.Nop(), rec.broadcast, rec.persist)
}

func TestSubmit_NotifiesOnce(t *testing.T) {
	rec := newRecorder()
	s := newTestSession(t, rec)

	require.NoError(t, s.Submit("alice", "code", "python"))
	events := rec.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, EventNotification, events[0].Type)
	assert.Equal(t, MsgPlayerSubmitted, events[0].Message)
	assert.Equal(t, "p1", events[0].Role)

	// Duplicate submission from the same player changes nothing.
	require.NoError(t, s.Submit("alice", "other code", "python"))
	assert.Len(t, rec.snapshot(), 1)
	assert.False(t, s.Done())
}

func TestSubmit_RejectsOutsiders(t *testing.T) {
	rec := newRecorder()
	s := newTestSession(t, rec)

	err := s.Submit("mallory", "code", "python")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not part of match")
	assert.Empty(t, rec.snapshot())
}

func TestSubmit_RejectsUnknownLanguage(t *testing.T) {
	rec := newRecorder()
	s := newTestSession(t, rec)

	err := s.Submit("alice", "code", "fortran")
	require.Error(t, err)
	assert.Empty(t, rec.snapshot())
}

func TestDisconnect_ForfeitsForTheConnectedSide(t *testing.T) {
	rec := newRecorder()
	s := newTestSession(t, rec)

	require.NoError(t, s.Submit("bob", "code", "python"))
	s.Disconnect("alice")

	require.True(t, s.Done())
	result := rec.lastResult(t)
	assert.Equal(t, game.WinnerP2, result.Winner)
	assert.Equal(t, game.ReasonDisconnected, result.Reason)
	assert.Equal(t, int32(0), result.TotalTurns)

	<-rec.persisted
	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.replays, 1)
	assert.Equal(t, "match-1", rec.replays[0].MatchID)
}

func TestDisconnect_AfterFinishIsNoOp(t *testing.T) {
	rec := newRecorder()
	s := newTestSession(t, rec)

	s.Disconnect("alice")
	require.True(t, s.Done())
	countAfterFirst := len(rec.snapshot())

	s.Disconnect("bob")
	assert.Len(t, rec.snapshot(), countAfterFirst, "a finished match cannot be forfeited again")
}

func TestDisconnect_UnknownUserIsNoOp(t *testing.T) {
	rec := newRecorder()
	s := newTestSession(t, rec)

	s.Disconnect("mallory")
	assert.False(t, s.Done())
	assert.Empty(t, rec.snapshot())
}

func TestSubmit_AfterFinishFails(t *testing.T) {
	rec := newRecorder()
	s := newTestSession(t, rec)

	s.Disconnect("alice")
	err := s.Submit("bob", "code", "python")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already finished")
}

func TestExpire_NeitherSubmittedIsADraw(t *testing.T) {
	rec := newRecorder()
	s := newTestSession(t, rec)

	s.expire()

	require.True(t, s.Done())
	result := rec.lastResult(t)
	assert.Equal(t, game.WinnerDraw, result.Winner)
	assert.Equal(t, game.ReasonSubmissionTimeout, result.Reason)
}

func TestExpire_FavorsTheSubmittedSide(t *testing.T) {
	rec := newRecorder()
	s := newTestSession(t, rec)

	require.NoError(t, s.Submit("alice", "code", "python"))
	s.expire()

	result := rec.lastResult(t)
	assert.Equal(t, game.WinnerP1, result.Winner)
	assert.Equal(t, game.ReasonSubmissionTimeout, result.Reason)
}
