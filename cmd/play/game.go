package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"trivia-quiz/internal/domain"
	"trivia-quiz/internal/service"
)

const pollInterval = 100 * time.Millisecond

var optionLetters = []string{"A", "B", "C", "D"}

// game drives one Session from terminal input
type game struct {
	session   *service.Session
	countdown *service.Countdown
	lines     <-chan string
	quit      chan struct{}
	inputDone <-chan struct{}
	out       io.Writer
}

func newGame(session *service.Session, in io.Reader, out io.Writer, tick time.Duration) *game {
	quit := make(chan struct{})
	lines, inputDone := readLines(in, quit)
	return &game{
		session:   session,
		countdown: service.NewCountdown(tick, session.Tick),
		lines:     lines,
		quit:      quit,
		inputDone: inputDone,
		out:       out,
	}
}

// readLines feeds trimmed input lines to a channel that closes at EOF or
// once quit is closed. done is closed when the reader goroutine exits.
func readLines(in io.Reader, quit <-chan struct{}) (lines <-chan string, done <-chan struct{}) {
	out := make(chan string)
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		defer close(out)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case out <- strings.TrimSpace(scanner.Text()):
			case <-quit:
				return
			}
		}
	}()
	return out, exited
}

func (g *game) play(ctx context.Context, cfg domain.QuizConfig) error {
	defer close(g.quit)
	defer g.countdown.Stop()

	for {
		fmt.Fprintf(g.out, "\n📥 Loading %s (%s)...\n", domain.CategoryName(cfg.CategoryID), cfg.Difficulty)
		if err := g.session.Start(ctx, cfg); err != nil {
			return err
		}
		if g.session.State().Origin == domain.OriginFallback {
			fmt.Fprintln(g.out, "⚠️ Open Trivia DB unavailable, using the built-in question bank.")
		}
		g.countdown.Rearm()

		quit, err := g.runQuestions(ctx)
		if err != nil || quit {
			g.session.Reset()
			return err
		}

		g.printSummary()
		fmt.Fprint(g.out, "\nPlay again? [y/N]: ")
		line, ok := g.readLine(ctx)
		if !ok || !strings.EqualFold(line, "y") {
			fmt.Fprintln(g.out, "👋 Bye!")
			return nil
		}
	}
}

// runQuestions plays until the session finishes. quit is true when the
// player typed q or input ended.
func (g *game) runQuestions(ctx context.Context) (quit bool, err error) {
	poll := time.NewTicker(pollInterval)
	defer poll.Stop()

	shown := -1
	warned := false
	for {
		state := g.session.State()
		if state.Phase != domain.PhaseActive {
			return false, nil
		}
		current, _ := state.Current()

		if state.CurrentIndex != shown {
			if shown >= 0 && shown < len(state.History) && !state.History[shown].Answered() {
				g.printTimeout(state.Questions[shown])
			}
			shown = state.CurrentIndex
			warned = false
			g.printQuestion(state, current)
		}

		if !warned && state.TimeLeft <= 10 {
			fmt.Fprintf(g.out, "⏱  %ds left\n", state.TimeLeft)
			warned = true
		}

		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case <-poll.C:
		case line, ok := <-g.lines:
			if !ok || strings.EqualFold(line, "q") {
				return true, nil
			}
			option, valid := optionFor(current, line)
			if !valid {
				fmt.Fprintln(g.out, "Please answer with A, B, C or D (q to quit).")
				continue
			}
			q, recorded := g.session.SubmitAnswerTo(current.ID, option)
			if !recorded {
				// the countdown moved on before the answer arrived
				continue
			}
			g.printReveal(q)

			fmt.Fprint(g.out, "Press Enter to continue...")
			if _, ok := g.readLine(ctx); !ok {
				return true, nil
			}
			if _, err := g.session.AdvanceFrom(current.ID); err != nil {
				return false, err
			}
			if g.session.Phase() == domain.PhaseActive {
				g.countdown.Rearm()
			}
		}
	}
}

func (g *game) readLine(ctx context.Context) (string, bool) {
	select {
	case <-ctx.Done():
		return "", false
	case line, ok := <-g.lines:
		return line, ok
	}
}

// optionFor maps a letter to the question's option text
func optionFor(q domain.Question, input string) (string, bool) {
	for i, letter := range optionLetters {
		if i < len(q.Options) && strings.EqualFold(input, letter) {
			return q.Options[i], true
		}
	}
	return "", false
}

func (g *game) printQuestion(state domain.SessionState, q domain.Question) {
	fmt.Fprintf(g.out, "\n[%d/%d]  Score: %d  Time: %ds\n", state.CurrentIndex+1, len(state.Questions), state.Score, state.TimeLeft)
	fmt.Fprintln(g.out, q.Question)
	for i, opt := range q.Options {
		fmt.Fprintf(g.out, "  %s) %s\n", optionLetters[i], opt)
	}
	fmt.Fprint(g.out, "> ")
}

func (g *game) printReveal(q domain.Question) {
	if q.IsCorrect {
		fmt.Fprintf(g.out, "✅ Correct! (%ds)\n", q.TimeTaken)
		return
	}
	fmt.Fprintf(g.out, "❌ Wrong. The answer was: %s\n", q.CorrectAnswer)
}

func (g *game) printTimeout(q domain.Question) {
	fmt.Fprintf(g.out, "\n⏰ Time's up! The answer was: %s\n", q.CorrectAnswer)
}

func (g *game) printSummary() {
	records := g.session.Records()
	if len(records) == 0 {
		return
	}
	last := records[0]
	stats := g.session.Stats()

	fmt.Fprintln(g.out, "\n========================================")
	fmt.Fprintf(g.out, "🏁 %s (%s)\n", last.CategoryName, last.Difficulty)
	fmt.Fprintf(g.out, "Score: %d/%d (%d%%)\n", last.Score, last.Total, last.Percentage)
	fmt.Fprintf(g.out, "Correct: %d  Wrong: %d  Avg time: %ds\n", stats.CorrectCount, stats.WrongCount, stats.AverageTimeTaken)
	fmt.Fprintln(g.out, domain.PerformanceMessage(last.Percentage))
	fmt.Fprintln(g.out, "========================================")

	fmt.Fprintln(g.out, "Recent games:")
	for _, r := range records {
		fmt.Fprintf(g.out, "  %s  %-20s %-6s %3d/%d\n", r.Timestamp.Format("2006-01-02 15:04"), r.CategoryName, r.Difficulty, r.Score, r.Total)
	}
}
