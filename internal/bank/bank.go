// Package bank holds the bundled question set used when the remote source is unavailable.
package bank

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"trivia-quiz/internal/domain"
)

//go:embed questions.json
var defaultQuestionsJSON []byte

type entry struct {
	Question      string   `json:"question"`
	CorrectAnswer string   `json:"correct_answer"`
	Options       []string `json:"options"`
}

// Bank is an immutable pool of general-knowledge questions
type Bank struct {
	entries []entry
}

// Default loads the embedded question set
func Default() (*Bank, error) {
	return Load(defaultQuestionsJSON)
}

// MustDefault is Default for program start-up; the embedded data is validated by tests
func MustDefault() *Bank {
	b, err := Default()
	if err != nil {
		panic(err)
	}
	return b
}

// Load parses a JSON array of questions and validates every entry
func Load(data []byte) (*Bank, error) {
	var entries []entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse question bank: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("question bank is empty")
	}

	for i, e := range entries {
		if e.Question == "" {
			return nil, fmt.Errorf("question bank entry %d: question is empty", i)
		}
		if len(e.Options) != domain.OptionsPerQuestion {
			return nil, fmt.Errorf("question bank entry %d: expected %d options, got %d", i, domain.OptionsPerQuestion, len(e.Options))
		}
		if !contains(e.Options, e.CorrectAnswer) {
			return nil, fmt.Errorf("question bank entry %d: correct answer %q is not an option", i, e.CorrectAnswer)
		}
	}

	return &Bank{entries: entries}, nil
}

// Size is the number of distinct questions in the bank
func (b *Bank) Size() int {
	return len(b.entries)
}

// Draw picks n questions. Questions are not repeated until the whole pool has
// been used; each drawn question gets an independently shuffled option order.
func (b *Bank) Draw(rng domain.Randomizer, n int) []domain.RawQuestion {
	if n <= 0 || len(b.entries) == 0 {
		return nil
	}

	out := make([]domain.RawQuestion, 0, n)
	for len(out) < n {
		order := make([]int, len(b.entries))
		for i := range order {
			order[i] = i
		}
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})

		for _, idx := range order {
			if len(out) == n {
				break
			}
			e := b.entries[idx]
			out = append(out, domain.RawQuestion{
				Question:      e.Question,
				CorrectAnswer: e.CorrectAnswer,
				Options:       domain.ShuffleStrings(rng, e.Options),
			})
		}
	}
	return out
}

func contains(options []string, s string) bool {
	for _, o := range options {
		if o == s {
			return true
		}
	}
	return false
}
