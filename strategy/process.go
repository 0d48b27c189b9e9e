package strategy

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Urasica/code-clash-arena/game"
	"github.com/Urasica/code-clash-arena/rules"
)

// CompileTimeout bounds the pre-match build/validate step.
const CompileTimeout = 15 * time.Second

// stderrLimit caps how much strategy stderr we keep for diagnostics.
const stderrLimit = 4096

// Compile validates the user code for the given language without starting a
// process. The injected runner source is written under dir. A build or syntax
// failure returns a StepError of KindCompile carrying the tool output
// verbatim.
func Compile(dir string, lang Language, userCode string) (*StepError, error) {
	_, stepErr, err := build(dir, lang, userCode)
	return stepErr, err
}

// Prepare compiles the user code and starts its long-lived process. On
// success the returned Process is ready for Step calls and must be closed by
// the caller on every exit path.
func Prepare(dir string, lang Language, userCode string) (*Process, *StepError, error) {
	runCmd, stepErr, err := build(dir, lang, userCode)
	if stepErr != nil || err != nil {
		return nil, stepErr, err
	}
	return start(runCmd)
}

// build writes the injected runner source, runs the language's compile or
// syntax check, and returns the argv that executes the strategy.
func build(dir string, lang Language, userCode string) ([]string, *StepError, error) {
	tmpl, err := runnerTemplate(lang)
	if err != nil {
		return nil, nil, err
	}
	source := strings.Replace(tmpl, "%USER_CODE%", userCode, 1)

	srcPath := filepath.Join(dir, "strategy"+lang.Ext())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create strategy dir: %w", err)
	}
	if err := os.WriteFile(srcPath, []byte(source), 0o644); err != nil {
		return nil, nil, fmt.Errorf("write strategy source: %w", err)
	}

	binPath := filepath.Join(dir, "strategy-bin")

	var check []string
	var run []string
	switch lang {
	case Python:
		check = []string{"python3", "-m", "py_compile", srcPath}
		run = []string{"python3", "-u", srcPath}
	case JavaScript:
		check = []string{"node", "--check", srcPath}
		run = []string{"node", srcPath}
	case C:
		check = []string{"gcc", "-O2", "-o", binPath, srcPath, "-lm"}
		run = []string{binPath}
	case CPP:
		check = []string{"g++", "-O2", "-std=c++17", "-o", binPath, srcPath}
		run = []string{binPath}
	default:
		return nil, nil, fmt.Errorf("unsupported language %v", lang)
	}

	ctx, cancel := context.WithTimeout(context.Background(), CompileTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, check[0], check[1:]...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			msg = err.Error()
		}
		return nil, &StepError{Kind: KindCompile, Message: msg}, nil
	}

	return run, nil, nil
}

func start(argv []string) (*Process, *StepError, error) {
	cmd := exec.Command(argv[0], argv[1:]...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr := &boundedBuffer{limit: stderrLimit}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, &StepError{Kind: KindCompile, Message: fmt.Sprintf("start strategy: %v", err)}, nil
	}

	p := &Process{
		cmd:    cmd,
		stdin:  stdin,
		stderr: stderr,
		lines:  make(chan string, 1),
	}
	go p.readLines(stdout)

	return p, nil, nil
}

// Process is one running strategy subprocess. All methods are safe for the
// single orchestrator goroutine driving the side; Close may additionally be
// called from cleanup paths and is idempotent.
type Process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *boundedBuffer
	lines  chan string

	mu     sync.Mutex
	dead   bool
	closed bool
}

func (p *Process) readLines(r io.Reader) {
	defer close(p.lines)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024)
	for scanner.Scan() {
		p.lines <- scanner.Text()
	}
}

// Dead reports whether the process has been terminated. Steps against a dead
// process resolve to STAY immediately.
func (p *Process) Dead() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dead
}

// Step sends the turn state and waits for one action line until the ctx
// deadline. Failures never return a zero action: the caller always gets a
// usable move plus an optional descriptor.
//
// A wrong token leaves the process running (it did answer). A missed deadline
// or a dead pipe kills the process: a late answer would desync every turn
// after it.
func (p *Process) Step(ctx context.Context, ts game.TurnState) (rules.Action, *StepError) {
	if p.Dead() {
		return rules.Stay, &StepError{Kind: KindCrash, Message: "strategy process terminated", Fatal: true}
	}

	payload, err := json.Marshal(ts)
	if err != nil {
		// Engine-side fault, not the strategy's.
		return rules.Stay, &StepError{Kind: KindProtocol, Message: fmt.Sprintf("encode turn state: %v", err)}
	}

	if _, err := p.stdin.Write(append(payload, '\n')); err != nil {
		p.kill()
		return rules.Stay, &StepError{Kind: KindCrash, Message: p.crashMessage("broken pipe"), Fatal: true}
	}

	select {
	case line, ok := <-p.lines:
		if !ok {
			p.kill()
			return rules.Stay, &StepError{Kind: KindCrash, Message: p.crashMessage("no response"), Fatal: true}
		}
		token := strings.TrimSpace(line)
		act, ok2 := rules.ParseAction(token)
		if !ok2 {
			return rules.Stay, &StepError{Kind: KindCrash, Message: fmt.Sprintf("unexpected output %q", token)}
		}
		return act, nil
	case <-ctx.Done():
		p.kill()
		return rules.Stay, &StepError{Kind: KindTimeout, Message: "no action within the turn deadline", Fatal: true}
	}
}

// crashMessage folds captured stderr into the descriptor so users see their
// own tracebacks.
func (p *Process) crashMessage(fallback string) string {
	if tail := strings.TrimSpace(p.stderr.String()); tail != "" {
		return tail
	}
	return fallback
}

func (p *Process) kill() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dead {
		return
	}
	p.dead = true
	_ = p.stdin.Close()
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
}

// Close terminates the process and reaps it. Safe to call multiple times and
// required on every exit path so no subprocess outlives its match.
func (p *Process) Close() error {
	p.kill()

	p.mu.Lock()
	alreadyClosed := p.closed
	p.closed = true
	p.mu.Unlock()
	if alreadyClosed {
		return nil
	}

	// Drain the reader so its goroutine exits, then reap.
	for range p.lines {
	}
	_ = p.cmd.Wait()
	return nil
}

// boundedBuffer keeps at most limit bytes of whatever is written to it.
type boundedBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (b *boundedBuffer) Write(data []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(data)
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(data) > room {
			data = data[:room]
		}
		b.buf.Write(data)
	}
	return n, nil
}

func (b *boundedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
