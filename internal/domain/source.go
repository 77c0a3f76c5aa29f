package domain

import "context"

// RawQuestion is a question as delivered by a source, before it is placed in a session.
// Options already contains the correct answer, in display order.
type RawQuestion struct {
	Question      string
	CorrectAnswer string
	Options       []string
}

// QuestionSource fetches question sets for a config
type QuestionSource interface {
	// FetchQuestions returns up to amount questions. Any failure, including an
	// empty result, is reported as an error wrapping ErrSourceUnavailable.
	FetchQuestions(ctx context.Context, cfg QuizConfig, amount int) ([]RawQuestion, error)
}

// Randomizer is the randomness a session needs. *rand.Rand satisfies it.
type Randomizer interface {
	Intn(n int) int
	Shuffle(n int, swap func(i, j int))
}

// ShuffleStrings returns a shuffled copy of in
func ShuffleStrings(rng Randomizer, in []string) []string {
	out := append([]string(nil), in...)
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}
