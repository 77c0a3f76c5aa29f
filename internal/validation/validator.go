package validation

import (
	"regexp"
	"strings"

	"trivia-quiz/internal/domain"
	"trivia-quiz/internal/util"
)

const (
	maxOptionLength   = 500
	maxPlayerIDLength = 64
)

var validPlayerID = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Validator provides request validation functionality
type Validator struct{}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateSessionID checks that id is a ULID
func (v *Validator) ValidateSessionID(id string) domain.ValidationErrors {
	var errors domain.ValidationErrors

	if strings.TrimSpace(id) == "" {
		errors = append(errors, domain.NewMissingFieldError("session_id"))
	} else if !util.IsULID(id) {
		errors = append(errors, domain.NewInvalidFormatError("session_id", id))
	}

	return errors
}

// ValidatePlayerID validates an optional player ID
func (v *Validator) ValidatePlayerID(playerID string) domain.ValidationErrors {
	var errors domain.ValidationErrors

	if playerID == "" {
		return errors
	}
	if len(playerID) > maxPlayerIDLength {
		errors = append(errors, domain.NewOutOfRangeError("player_id", len(playerID), 1, maxPlayerIDLength))
	} else if !validPlayerID.MatchString(playerID) {
		errors = append(errors, domain.NewInvalidFormatError("player_id", playerID))
	}

	return errors
}

// ValidateStartRequest validates the game selection. A random start ignores
// the other fields.
func (v *Validator) ValidateStartRequest(categoryID int, difficulty string, random bool) domain.ValidationErrors {
	var errors domain.ValidationErrors

	if random {
		return errors
	}

	if categoryID == 0 {
		errors = append(errors, domain.NewMissingFieldError("category_id"))
	} else if _, ok := domain.LookupCategory(categoryID); !ok {
		errors = append(errors, domain.ValidationError{
			Field:   "category_id",
			Message: "unknown category",
			Value:   categoryID,
		})
	}

	if strings.TrimSpace(difficulty) == "" {
		errors = append(errors, domain.NewMissingFieldError("difficulty"))
	} else if _, err := domain.ParseDifficulty(difficulty); err != nil {
		errors = append(errors, domain.ValidationError{
			Field:   "difficulty",
			Message: "must be one of easy, medium, hard",
			Value:   difficulty,
		})
	}

	return errors
}

// ValidateAnswerRequest validates the submitted option and optional question ID
func (v *Validator) ValidateAnswerRequest(option, questionID string) domain.ValidationErrors {
	var errors domain.ValidationErrors

	if strings.TrimSpace(option) == "" {
		errors = append(errors, domain.NewMissingFieldError("option"))
	} else if len(option) > maxOptionLength {
		errors = append(errors, domain.NewOutOfRangeError("option", len(option), 1, maxOptionLength))
	}

	if len(questionID) > maxPlayerIDLength {
		errors = append(errors, domain.NewOutOfRangeError("question_id", len(questionID), 0, maxPlayerIDLength))
	}

	return errors
}

// ValidateAdvanceRequest validates the optional question ID of an advance
func (v *Validator) ValidateAdvanceRequest(questionID string) domain.ValidationErrors {
	var errors domain.ValidationErrors
	if len(questionID) > maxPlayerIDLength {
		errors = append(errors, domain.NewOutOfRangeError("question_id", len(questionID), 0, maxPlayerIDLength))
	}
	return errors
}
