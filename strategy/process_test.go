package strategy

import (
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/Urasica/code-clash-arena/game"
	"github.com/Urasica/code-clash-arena/rules"
)

func requireTool(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available", name)
	}
}

// startShell runs a shell script as the strategy process, bypassing the
// compile step so the pipe and kill paths can be driven directly.
func startShell(t *testing.T, script string) *Process {
	t.Helper()
	requireTool(t, "sh")
	p, stepErr, err := start([]string{"sh", "-c", script})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if stepErr != nil {
		t.Fatalf("start: %v", stepErr)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func testTurnState() game.TurnState {
	return game.TurnState{
		Turn:      1,
		BoardSize: 5,
		MyPos:     game.Point{X: 0, Y: 0},
		EnemyPos:  game.Point{X: 4, Y: 4},
		Coins:     []game.Point{{X: 2, Y: 2}},
	}
}

func TestStep_UnknownTokenKeepsProcessAlive(t *testing.T) {
	p := startShell(t, `read l; echo FOO; read l; echo MOVE_UP`)

	act, stepErr := p.Step(context.Background(), testTurnState())
	if act != rules.Stay {
		t.Fatalf("act=%v want=STAY", act)
	}
	if stepErr == nil || stepErr.Kind != KindCrash {
		t.Fatalf("stepErr=%v want RuntimeCrash", stepErr)
	}
	if stepErr.Fatal {
		t.Fatal("an answered turn must not kill the process")
	}
	if !strings.Contains(stepErr.Message, "FOO") {
		t.Fatalf("message=%q should quote the bad token", stepErr.Message)
	}
	if p.Dead() {
		t.Fatal("process marked dead after a wrong token")
	}

	// The same process answers the next turn normally.
	act, stepErr = p.Step(context.Background(), testTurnState())
	if act != rules.MoveUp || stepErr != nil {
		t.Fatalf("act=%v stepErr=%v want MOVE_UP on the next turn", act, stepErr)
	}
}

func TestStep_ProcessExitIsFatal(t *testing.T) {
	p := startShell(t, `read l; echo boom >&2; exit 3`)

	act, stepErr := p.Step(context.Background(), testTurnState())
	if act != rules.Stay {
		t.Fatalf("act=%v want=STAY", act)
	}
	if stepErr == nil || stepErr.Kind != KindCrash || !stepErr.Fatal {
		t.Fatalf("stepErr=%v want a fatal RuntimeCrash", stepErr)
	}
	if !p.Dead() {
		t.Fatal("process still marked alive after exit")
	}

	// Later steps resolve immediately without touching the pipes.
	act, stepErr = p.Step(context.Background(), testTurnState())
	if act != rules.Stay || stepErr == nil || !stepErr.Fatal {
		t.Fatalf("act=%v stepErr=%v after termination", act, stepErr)
	}
	if !strings.Contains(stepErr.Message, "terminated") {
		t.Fatalf("message=%q", stepErr.Message)
	}

	// Close reaps the process; by then stderr is fully captured.
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := p.stderr.String(); !strings.Contains(got, "boom") {
		t.Fatalf("stderr=%q want the crash output captured", got)
	}
}

func TestStep_TimeoutKillsProcess(t *testing.T) {
	// Reads the state line, then blocks without ever answering.
	p := startShell(t, `read a; read b`)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	act, stepErr := p.Step(ctx, testTurnState())
	elapsed := time.Since(start)

	if act != rules.Stay {
		t.Fatalf("act=%v want=STAY", act)
	}
	if stepErr == nil || stepErr.Kind != KindTimeout || !stepErr.Fatal {
		t.Fatalf("stepErr=%v want a fatal TimeoutError", stepErr)
	}
	if !p.Dead() {
		t.Fatal("process still marked alive after a deadline miss")
	}
	if elapsed > 2*time.Second {
		t.Fatalf("step took %v, deadline not enforced", elapsed)
	}

	// The killed process reaps promptly.
	done := make(chan struct{})
	go func() {
		p.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("close did not reap the killed process")
	}
}

func TestPrepareAndStep_PythonRoundTrip(t *testing.T) {
	requireTool(t, "python3")

	userCode := "def strategy(my_pos, coins, walls, board_size):\n    return 'MOVE_UP'\n"
	p, stepErr, err := Prepare(t.TempDir(), Python, userCode)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if stepErr != nil {
		t.Fatalf("prepare: %v", stepErr)
	}
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	act, stepErr := p.Step(ctx, testTurnState())
	if act != rules.MoveUp || stepErr != nil {
		t.Fatalf("act=%v stepErr=%v want MOVE_UP", act, stepErr)
	}
}

func TestCompile_ReportsPythonSyntaxError(t *testing.T) {
	requireTool(t, "python3")

	stepErr, err := Compile(t.TempDir(), Python, "def strategy(:\n")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if stepErr == nil || stepErr.Kind != KindCompile {
		t.Fatalf("stepErr=%v want CompileError", stepErr)
	}
	if stepErr.Message == "" {
		t.Fatal("compiler output not carried into the descriptor")
	}
}
