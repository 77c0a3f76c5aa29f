package dto

import "time"

// CategoryResponse represents a category in the API response
// @Description Category information
type CategoryResponse struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// CategoriesResponse lists everything a player can pick before starting
type CategoriesResponse struct {
	Categories   []CategoryResponse `json:"categories"`
	Difficulties []string           `json:"difficulties"`
}

// CreateSessionRequest
// @Description Request body for creating a session. player_id groups game records across sessions.
type CreateSessionRequest struct {
	PlayerID string `json:"player_id,omitempty"`
}

type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
	PlayerID  string `json:"player_id,omitempty"`
}

// StartSessionRequest selects the questions for a game
// @Description Either category_id and difficulty, or random=true
type StartSessionRequest struct {
	CategoryID int    `json:"category_id"`
	Difficulty string `json:"difficulty"`
	Random     bool   `json:"random"`
}

// AdvanceRequest is the optional body of an advance request
// @Description question_id is optional; when set and the question already timed out, the session is left as it is
type AdvanceRequest struct {
	QuestionID string `json:"question_id,omitempty"`
}

// AnswerRequest represents a user's answer in the API request
// @Description question_id is optional; when set, an answer to a question that already timed out is ignored
type AnswerRequest struct {
	Option     string `json:"option"`
	QuestionID string `json:"question_id,omitempty"`
}

// QuestionResponse is a question as shown to the player.
// CorrectAnswer and IsCorrect are only filled in once the question is answered or expired.
type QuestionResponse struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	UserAnswer    *string  `json:"user_answer,omitempty"`
	CorrectAnswer string   `json:"correct_answer,omitempty"`
	IsCorrect     *bool    `json:"is_correct,omitempty"`
	TimeTaken     *int     `json:"time_taken_seconds,omitempty"`
}

// SessionStateResponse
// @Description Snapshot of a quiz session
type SessionStateResponse struct {
	SessionID      string             `json:"session_id"`
	Phase          string             `json:"phase"`
	CategoryID     int                `json:"category_id"`
	CategoryName   string             `json:"category_name"`
	Difficulty     string             `json:"difficulty"`
	Origin         string             `json:"origin,omitempty"`
	CurrentIndex   int                `json:"current_index"`
	TotalQuestions int                `json:"total_questions"`
	Score          int                `json:"score"`
	MaxScore       int                `json:"max_score"`
	TimeLeft       int                `json:"time_left_seconds"`
	Answered       bool               `json:"answered"`
	Current        *QuestionResponse  `json:"current,omitempty"`
	History        []QuestionResponse `json:"history"`
	Percentage     *int               `json:"percentage,omitempty"`
	Message        string             `json:"message,omitempty"`
}

// AnswerResponse reports the outcome of an answer submission
type AnswerResponse struct {
	Recorded bool             `json:"recorded"`
	Question QuestionResponse `json:"question"`
	Score    int              `json:"score"`
}

// StatsResponse
// @Description Statistics over the answers recorded so far
type StatsResponse struct {
	CorrectCount     int    `json:"correct_count"`
	WrongCount       int    `json:"wrong_count"`
	AverageTimeTaken int    `json:"average_time_taken_seconds"`
	Score            int    `json:"score"`
	MaxScore         int    `json:"max_score"`
	Percentage       int    `json:"percentage"`
	Message          string `json:"message"`
}

// GameRecordResponse summarizes one completed game
type GameRecordResponse struct {
	Score        int                `json:"score"`
	Total        int                `json:"total"`
	Percentage   int                `json:"percentage"`
	Timestamp    time.Time          `json:"timestamp"`
	CategoryName string             `json:"category"`
	Difficulty   string             `json:"difficulty"`
	Questions    []QuestionResponse `json:"questions"`
}

type RecordsResponse struct {
	Records []GameRecordResponse `json:"records"`
}

// HealthResponse
type HealthResponse struct {
	Status string `json:"status"`
	Redis  string `json:"redis"`
}
