package domain

import "math"

// Stats aggregates a session's history
type Stats struct {
	CorrectCount     int `json:"correct_count"`
	WrongCount       int `json:"wrong_count"`
	AverageTimeTaken int `json:"average_time_taken_seconds"`
}

// ComputeStats summarizes history. It has no side effects.
func ComputeStats(history []Question) Stats {
	var stats Stats
	if len(history) == 0 {
		return stats
	}

	total := 0
	for _, q := range history {
		if q.IsCorrect {
			stats.CorrectCount++
		}
		total += q.TimeTaken
	}
	stats.WrongCount = len(history) - stats.CorrectCount
	stats.AverageTimeTaken = int(math.Round(float64(total) / float64(len(history))))
	return stats
}

// TimeBonus is the extra award for answering with timeLeft seconds remaining
func TimeBonus(timeLeft int) int {
	if timeLeft <= 0 {
		return 0
	}
	return timeLeft / 3
}

// AnswerPoints is the full award for a correct answer
func AnswerPoints(timeLeft int) int {
	return PointsPerQuestion + TimeBonus(timeLeft)
}

// Percentage rounds score/total to a whole percent within [0, 100]
func Percentage(score, total int) int {
	if total <= 0 || score <= 0 {
		return 0
	}
	p := int(math.Round(float64(score) / float64(total) * 100))
	if p > 100 {
		return 100
	}
	return p
}

// PerformanceMessage is the summary line shown on the results screen
func PerformanceMessage(percentage int) string {
	switch {
	case percentage >= 90:
		return "Excellent! You are an expert!"
	case percentage >= 70:
		return "Very good! You have good knowledge!"
	case percentage >= 50:
		return "Good, but can be better!"
	default:
		return "Keep trying! You can do better!"
	}
}

// RandomConfig picks a catalog category and a difficulty at random
func RandomConfig(rng Randomizer) QuizConfig {
	c := Categories[rng.Intn(len(Categories))]
	d := Difficulties[rng.Intn(len(Difficulties))]
	return QuizConfig{CategoryID: c.ID, Difficulty: d}
}
