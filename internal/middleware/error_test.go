package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"trivia-quiz/internal/domain"
	"trivia-quiz/internal/util"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newErrorApp(err error) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	app.Get("/", func(c *fiber.Ctx) error { return err })
	return app
}

func TestErrorHandler_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", domain.NewSessionNotFoundError("abc"), http.StatusNotFound, "SESSION_NOT_FOUND"},
		{"invalid phase", domain.NewInvalidPhaseError("start", domain.PhaseActive), http.StatusConflict, "INVALID_PHASE"},
		{"stale", domain.ErrStaleSession, http.StatusConflict, "STALE_SESSION"},
		{"invalid category", domain.NewInvalidCategoryError(3), http.StatusBadRequest, "INVALID_CATEGORY"},
		{"invalid input", domain.NewInvalidInputError("bad"), http.StatusBadRequest, "INVALID_INPUT"},
		{"source", domain.NewSourceUnavailableError("down", nil), http.StatusServiceUnavailable, "SOURCE_UNAVAILABLE"},
		{"internal", domain.NewInternalError("oops", errors.New("disk")), http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"wrapped", errors.Join(errors.New("ctx"), domain.NewSessionNotFoundError("x")), http.StatusNotFound, "SESSION_NOT_FOUND"},
		{"fiber", fiber.ErrMethodNotAllowed, http.StatusMethodNotAllowed, "HTTP_ERROR"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := newErrorApp(tt.err).Test(httptest.NewRequest(http.MethodGet, "/", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var body ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantStatus, body.Status)
		})
	}
}

func TestErrorHandler_Details(t *testing.T) {
	resp, err := newErrorApp(domain.NewInvalidPhaseError("advance", domain.PhaseIdle)).
		Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "idle", body.Details["phase"])
}

func TestErrorHandler_ValidationErrors(t *testing.T) {
	verrs := domain.ValidationErrors{domain.NewMissingFieldError("option")}
	resp, err := newErrorApp(verrs).Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body ValidationErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "VALIDATION_ERROR", body.Code)
	require.Len(t, body.Errors, 1)
	assert.Equal(t, "option", body.Errors[0].Field)
}

func TestValidateSessionID(t *testing.T) {
	vm := NewValidationMiddleware()
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	app.Get("/sessions/:id", vm.ValidateSessionID(), func(c *fiber.Ctx) error {
		return c.SendString(SessionID(c))
	})

	id := util.NewULID()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/sessions/"+id, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, id, string(body))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/sessions/nope", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
