package domain

import (
	"strings"
	"time"
)

const (
	// QuestionsPerGame is the size of every question set.
	QuestionsPerGame = 20
	// SecondsPerQuestion is the countdown each question starts with.
	SecondsPerQuestion = 30
	// PointsPerQuestion is the base award for a correct answer.
	PointsPerQuestion = 10
	// MaxScore is the fixed denominator used for percentages.
	MaxScore = QuestionsPerGame * PointsPerQuestion
	// MaxGameRecords bounds the most-recent-first record log.
	MaxGameRecords = 5
	// OptionsPerQuestion is the number of choices shown for each question.
	OptionsPerQuestion = 4
)

// Difficulty is the question difficulty requested from the source
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Difficulties lists every accepted difficulty in display order
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// ParseDifficulty converts user input into a Difficulty
func ParseDifficulty(s string) (Difficulty, error) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(s))); d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d, nil
	default:
		return "", NewInvalidDifficultyError(s)
	}
}

// Valid reports whether d is one of the known difficulties
func (d Difficulty) Valid() bool {
	_, err := ParseDifficulty(string(d))
	return err == nil
}

// Category is a trivia category offered to players
type Category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// Categories is the fixed catalog of playable categories. IDs match Open Trivia DB.
var Categories = []Category{
	{ID: 9, Name: "General Knowledge", Icon: "🧠"},
	{ID: 18, Name: "Computer Science", Icon: "💻"},
	{ID: 22, Name: "Geography", Icon: "🌍"},
	{ID: 23, Name: "History", Icon: "📜"},
	{ID: 17, Name: "Science", Icon: "🔬"},
	{ID: 21, Name: "Sports", Icon: "⚽"},
	{ID: 10, Name: "Books", Icon: "📚"},
	{ID: 11, Name: "Movies", Icon: "🎬"},
	{ID: 12, Name: "Music", Icon: "🎵"},
	{ID: 15, Name: "Video Games", Icon: "🎮"},
}

// DefaultCategoryID is General Knowledge
const DefaultCategoryID = 9

// LookupCategory finds a catalog entry by ID
func LookupCategory(id int) (Category, bool) {
	for _, c := range Categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// CategoryName returns the display name for id, or "Unknown"
func CategoryName(id int) string {
	if c, ok := LookupCategory(id); ok {
		return c.Name
	}
	return "Unknown"
}

// QuizConfig selects which questions a session plays
type QuizConfig struct {
	CategoryID int        `json:"category_id"`
	Difficulty Difficulty `json:"difficulty"`
}

// DefaultQuizConfig is General Knowledge on easy
func DefaultQuizConfig() QuizConfig {
	return QuizConfig{CategoryID: DefaultCategoryID, Difficulty: DifficultyEasy}
}

// Validate checks the config against the category catalog
func (c QuizConfig) Validate() error {
	if _, ok := LookupCategory(c.CategoryID); !ok {
		return NewInvalidCategoryError(c.CategoryID)
	}
	if !c.Difficulty.Valid() {
		return NewInvalidDifficultyError(string(c.Difficulty))
	}
	return nil
}

// Question is one multiple-choice question in a session.
// UserAnswer is nil until the question is answered; an expired or skipped
// question keeps a nil answer with IsCorrect false.
type Question struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	CorrectAnswer string   `json:"correct_answer"`
	Options       []string `json:"options"`
	UserAnswer    *string  `json:"user_answer,omitempty"`
	IsCorrect     bool     `json:"is_correct"`
	TimeTaken     int      `json:"time_taken_seconds"`
}

// Clone returns a deep copy so snapshots never alias session state
func (q Question) Clone() Question {
	out := q
	out.Options = append([]string(nil), q.Options...)
	if q.UserAnswer != nil {
		a := *q.UserAnswer
		out.UserAnswer = &a
	}
	return out
}

// Answered reports whether the player picked an option
func (q Question) Answered() bool {
	return q.UserAnswer != nil
}

// Phase is the lifecycle stage of a session
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseActive
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseActive:
		return "active"
	case PhaseFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// MarshalText lets phases appear as strings in JSON
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// QuestionOrigin records where a session's questions came from
type QuestionOrigin string

const (
	OriginNone     QuestionOrigin = ""
	OriginRemote   QuestionOrigin = "opentdb"
	OriginFallback QuestionOrigin = "fallback"
)

// SessionState is a read-only snapshot of a session
type SessionState struct {
	Phase        Phase          `json:"phase"`
	Config       QuizConfig     `json:"config"`
	Questions    []Question     `json:"questions"`
	CurrentIndex int            `json:"current_index"`
	Score        int            `json:"score"`
	TimeLeft     int            `json:"time_left_seconds"`
	Answered     bool           `json:"answered"`
	History      []Question     `json:"history"`
	Origin       QuestionOrigin `json:"origin,omitempty"`
}

// Current returns the question at CurrentIndex, if any
func (s SessionState) Current() (Question, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Questions) {
		return Question{}, false
	}
	return s.Questions[s.CurrentIndex], true
}

// GameRecord summarizes one completed play-through
type GameRecord struct {
	Score        int        `json:"score"`
	Total        int        `json:"total"`
	Percentage   int        `json:"percentage"`
	Timestamp    time.Time  `json:"timestamp"`
	CategoryName string     `json:"category"`
	Difficulty   Difficulty `json:"difficulty"`
	Questions    []Question `json:"questions"`
}

// PrependRecord puts r at the front of log and keeps at most limit entries
func PrependRecord(log []GameRecord, r GameRecord, limit int) []GameRecord {
	out := make([]GameRecord, 0, limit)
	out = append(out, r)
	for _, old := range log {
		if len(out) >= limit {
			break
		}
		out = append(out, old)
	}
	return out
}
