// Command simulate plays batches of bot-vs-bot matches across a worker pool,
// streams the replays into parquet batch files, and shows progress in a
// terminal dashboard.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Urasica/code-clash-arena/bots"
	"github.com/Urasica/code-clash-arena/orchestrator"
	"github.com/Urasica/code-clash-arena/rules"
	"github.com/Urasica/code-clash-arena/store"
)

var totalTurns atomic.Int64
var totalMatches atomic.Int64

type MatchUpdate struct {
	WorkerID int
	MatchID  string
	Winner   string
	Turns    int32
	ScoreP1  int32
	ScoreP2  int32
}

type matchWriteRequest struct {
	rows []store.ReplayTurnRow
}

type model struct {
	matchesPlayed int
	winsP1        int
	winsP2        int
	draws         int
	turns         int64
	startTime     time.Time
	recentMatches []string
	updates       chan MatchUpdate
}

func initialModel(updates chan MatchUpdate) model {
	return model{
		startTime: time.Now(),
		updates:   updates,
	}
}

type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m model) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.updates), tickCmd())
}

func waitForUpdate(updates chan MatchUpdate) tea.Cmd {
	return func() tea.Msg {
		return <-updates
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case TickMsg:
		m.turns = totalTurns.Load()
		return m, tickCmd()
	case MatchUpdate:
		m.matchesPlayed++
		switch msg.Winner {
		case "p1":
			m.winsP1++
		case "p2":
			m.winsP2++
		default:
			m.draws++
		}
		logMsg := fmt.Sprintf("Worker %d: Winner %s, Turns %d, Score %d-%d",
			msg.WorkerID, msg.Winner, msg.Turns, msg.ScoreP1, msg.ScoreP2)
		m.recentMatches = append([]string{logMsg}, m.recentMatches...)
		if len(m.recentMatches) > 10 {
			m.recentMatches = m.recentMatches[:10]
		}
		return m, waitForUpdate(m.updates)
	}
	return m, nil
}

func (m model) View() string {
	duration := time.Since(m.startTime)
	matchesPerSec := float64(m.matchesPlayed) / duration.Seconds()
	turnsPerSec := float64(m.turns) / duration.Seconds()
	if duration.Seconds() < 1 {
		matchesPerSec = 0
		turnsPerSec = 0
	}

	s := fmt.Sprintf("Matches Played: %d\n", m.matchesPlayed)
	s += fmt.Sprintf("P1 Wins:        %d\n", m.winsP1)
	s += fmt.Sprintf("P2 Wins:        %d\n", m.winsP2)
	s += fmt.Sprintf("Draws:          %d\n", m.draws)
	s += fmt.Sprintf("Total Turns:    %d\n", m.turns)
	s += fmt.Sprintf("Duration:       %s\n", duration.Round(time.Second))
	s += fmt.Sprintf("Matches/Sec:    %.2f\n", matchesPerSec)
	s += fmt.Sprintf("Turns/Sec:      %.2f\n\n", turnsPerSec)

	s += "Recent Matches:\n"
	for _, r := range m.recentMatches {
		s += r + "\n"
	}

	s += "\nPress q to quit.\n"
	return s
}

func main() {
	outDir := flag.String("out-dir", "data/simulated", "Output directory for replay parquet batches")
	workers := flag.Int("workers", 8, "Number of match workers")
	matchesPerFlush := flag.Int("matches-per-flush", 50, "Number of matches to buffer per parquet flush")
	maxMatches := flag.Int64("max-matches", 0, "If > 0, stop after this many matches (across all workers)")
	p1Tier := flag.String("p1", "hard", "Player one bot tier (easy, normal, hard)")
	p2Tier := flag.String("p2", "normal", "Player two bot tier (easy, normal, hard)")
	seed := flag.Int64("seed", 0, "Base RNG seed; 0 uses the current time. Same seed, same matches.")
	tui := flag.Bool("tui", true, "Show the dashboard (disable for plain log output)")
	flag.Parse()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	baseSeed := *seed
	if baseSeed == 0 {
		baseSeed = time.Now().UnixNano()
	}

	if *tui {
		// Keep worker logs off the terminal while the dashboard owns it.
		f, err := os.OpenFile("simulate.log", os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
		if err != nil {
			log.Fatalf("error opening log file: %v", err)
		}
		defer f.Close()
		log.SetOutput(f)
	}

	for _, tier := range []string{*p1Tier, *p2Tier} {
		if _, err := bots.ForDifficulty(tier, rand.New(rand.NewSource(1))); err != nil {
			log.Fatalf("invalid bot tier: %v", err)
		}
	}

	log.Printf("Starting simulation: workers=%d p1=%s p2=%s seed=%d", *workers, *p1Tier, *p2Tier, baseSeed)

	updates := make(chan MatchUpdate, *workers)
	writeReqs := make(chan matchWriteRequest, (*workers)*4)

	writerDone := make(chan struct{})
	go func() {
		parquetWriterLoop(*outDir, *matchesPerFlush, writeReqs)
		close(writerDone)
	}()

	// No subprocess players here, so per-turn deadlines are unnecessary.
	cfg := orchestrator.DefaultConfig()
	cfg.TurnTimeout = 0
	cfg.MatchTimeout = 0

	// Each match gets its own seed so results are reproducible regardless of
	// which worker picks it up.
	var nextMatch atomic.Int64

	var workerWG sync.WaitGroup
	for i := 0; i < *workers; i++ {
		workerWG.Add(1)
		go func(workerID int) {
			defer workerWG.Done()
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				matchNum := nextMatch.Add(1)
				if *maxMatches > 0 && matchNum > *maxMatches {
					cancel()
					return
				}

				// Separate RNG per bot: both sides decide concurrently, and
				// rand.Rand is not safe for concurrent use.
				matchSeed := baseSeed + matchNum
				rng := rand.New(rand.NewSource(matchSeed))
				matchID := fmt.Sprintf("sim-%d-%d", baseSeed, matchNum)

				m := rules.GenerateMap(cfg.Rules, rng)
				botP1, _ := bots.ForDifficulty(*p1Tier, rand.New(rand.NewSource(matchSeed+1)))
				botP2, _ := bots.ForDifficulty(*p2Tier, rand.New(rand.NewSource(matchSeed+2)))
				orch := orchestrator.New(matchID, cfg, m,
					orchestrator.BotPlayer(botP1), orchestrator.BotPlayer(botP2), rng)
				replay := orch.Run(ctx)

				totalTurns.Add(int64(replay.TotalTurns))
				totalMatches.Add(1)

				writeReqs <- matchWriteRequest{rows: store.FlattenReplay(replay)}

				// Avoid blocking shutdown if the UI stops consuming.
				select {
				case updates <- MatchUpdate{
					WorkerID: workerID,
					MatchID:  matchID,
					Winner:   replay.Winner,
					Turns:    replay.TotalTurns,
					ScoreP1:  replay.FinalScores.P1,
					ScoreP2:  replay.FinalScores.P2,
				}:
				default:
				}
			}
		}(i)
	}

	if *tui {
		p := tea.NewProgram(initialModel(updates), tea.WithAltScreen())
		go func() {
			workerWG.Wait()
			p.Quit()
		}()
		if _, err := p.Run(); err != nil {
			log.Fatal(err)
		}
		cancel()
	} else {
		runPlain(ctx, updates, &workerWG)
	}

	workerWG.Wait()
	close(writeReqs)
	<-writerDone
	log.Printf("Shutdown complete: final parquet flush done (matches=%d)", totalMatches.Load())
}

func runPlain(ctx context.Context, updates chan MatchUpdate, workerWG *sync.WaitGroup) {
	startTime := time.Now()
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("Shutdown requested; waiting for workers to finish current matches...")
			workerWG.Wait()
			return
		case update := <-updates:
			log.Printf("Worker %d: Winner %s, Turns %d, Score %d-%d",
				update.WorkerID, update.Winner, update.Turns, update.ScoreP1, update.ScoreP2)
		case <-ticker.C:
			duration := time.Since(startTime)
			turns := totalTurns.Load()
			matches := totalMatches.Load()
			log.Printf("Stats: Matches/s: %.2f, Turns/s: %.2f",
				float64(matches)/duration.Seconds(), float64(turns)/duration.Seconds())
		}
	}
}

func parquetWriterLoop(outDir string, matchesPerFlush int, in <-chan matchWriteRequest) {
	if matchesPerFlush <= 0 {
		matchesPerFlush = 50
	}

	var w *store.BatchWriter

	flush := func(label string) {
		if w == nil {
			return
		}
		outPath, rows, matches, err := w.Finalize()
		w = nil
		if err != nil {
			log.Printf("Parquet %s failed: %v", label, err)
			return
		}
		if rows > 0 {
			log.Printf("Parquet %s ok: %s (matches=%d rows=%d)", label, outPath, matches, rows)
		}
	}

	for req := range in {
		if len(req.rows) == 0 {
			continue
		}

		if w == nil {
			var err error
			w, err = store.NewBatchWriter(outDir)
			if err != nil {
				log.Printf("Parquet batch open failed: %v", err)
				continue
			}
		}

		if err := w.WriteRows(req.rows); err != nil {
			log.Printf("Parquet write failed (rows=%d): %v", len(req.rows), err)
			flush("flush")
			continue
		}
		w.NoteMatchWritten()

		if w.BufferedMatches() >= matchesPerFlush {
			flush("flush")
		}
	}

	flush("final flush")
}
