package handler

import (
	"context"
	"strings"
	"time"

	"trivia-quiz/internal/domain"
	"trivia-quiz/internal/dto"
	"trivia-quiz/internal/logger"
	"trivia-quiz/internal/middleware"
	"trivia-quiz/internal/service"
	"trivia-quiz/internal/validation"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const healthCheckTimeout = 2 * time.Second

// HealthChecker reports whether a backing store is reachable
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// SessionHandler handles quiz session HTTP requests
type SessionHandler struct {
	service   service.SessionService
	validator *validation.Validator
	health    HealthChecker
}

// NewSessionHandler creates a new SessionHandler. health may be nil when no cache is configured.
func NewSessionHandler(service service.SessionService, health HealthChecker) *SessionHandler {
	return &SessionHandler{
		service:   service,
		validator: validation.NewValidator(),
		health:    health,
	}
}

// RegisterRoutes mounts the session API on router
func (h *SessionHandler) RegisterRoutes(router fiber.Router, vm *middleware.ValidationMiddleware) {
	router.Get("/health", h.Health)
	router.Get("/categories", h.GetCategories)
	router.Post("/sessions", h.CreateSession)

	sessions := router.Group("/sessions/:id", vm.ValidateSessionID())
	sessions.Get("", h.GetSession)
	sessions.Delete("", h.DeleteSession)
	sessions.Post("/start", h.StartSession)
	sessions.Post("/answer", h.SubmitAnswer)
	sessions.Post("/advance", h.Advance)
	sessions.Post("/reset", h.Reset)
	sessions.Get("/stats", h.GetStats)
	sessions.Get("/records", h.GetRecords)
}

// Health godoc
// @Summary Health check
// @Description Reports service health and Redis connectivity
// @Tags system
// @Produce json
// @Success 200 {object} dto.HealthResponse
// @Failure 503 {object} dto.HealthResponse
// @Router /health [get]
func (h *SessionHandler) Health(c *fiber.Ctx) error {
	resp := dto.HealthResponse{Status: "ok", Redis: "disabled"}
	if h.health == nil {
		return c.JSON(resp)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), healthCheckTimeout)
	defer cancel()
	if err := h.health.Ping(ctx); err != nil {
		logger.Get().Warn("Health check failed", zap.Error(err))
		resp.Status = "degraded"
		resp.Redis = "unreachable"
		return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
	}
	resp.Redis = "ok"
	return c.JSON(resp)
}

// GetCategories godoc
// @Summary List quiz categories
// @Description Returns the playable categories and difficulties
// @Tags categories
// @Produce json
// @Success 200 {object} dto.CategoriesResponse
// @Router /categories [get]
func (h *SessionHandler) GetCategories(c *fiber.Ctx) error {
	categories := h.service.Categories()
	resp := dto.CategoriesResponse{
		Categories:   make([]dto.CategoryResponse, 0, len(categories)),
		Difficulties: make([]string, 0, len(domain.Difficulties)),
	}
	for _, cat := range categories {
		resp.Categories = append(resp.Categories, dto.CategoryResponse{ID: cat.ID, Name: cat.Name, Icon: cat.Icon})
	}
	for _, d := range domain.Difficulties {
		resp.Difficulties = append(resp.Difficulties, string(d))
	}
	return c.JSON(resp)
}

// CreateSession godoc
// @Summary Create a quiz session
// @Description Creates an idle session. Game records saved for player_id are loaded into it.
// @Tags sessions
// @Accept json
// @Produce json
// @Param request body dto.CreateSessionRequest false "Player"
// @Success 201 {object} dto.CreateSessionResponse
// @Failure 400 {object} middleware.ValidationErrorResponse
// @Router /sessions [post]
func (h *SessionHandler) CreateSession(c *fiber.Ctx) error {
	var req dto.CreateSessionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return domain.NewInvalidInputError("invalid request body")
		}
	}
	req.PlayerID = strings.TrimSpace(req.PlayerID)
	if errs := h.validator.ValidatePlayerID(req.PlayerID); len(errs) > 0 {
		return errs
	}

	id, err := h.service.Create(c.UserContext(), req.PlayerID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.CreateSessionResponse{
		SessionID: id,
		PlayerID:  req.PlayerID,
	})
}

// GetSession godoc
// @Summary Get session state
// @Description The correct answer of the current question is hidden until it is answered
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} dto.SessionStateResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /sessions/{id} [get]
func (h *SessionHandler) GetSession(c *fiber.Ctx) error {
	id := middleware.SessionID(c)
	st, err := h.service.State(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(toStateResponse(id, st))
}

// StartSession godoc
// @Summary Start a game
// @Description Loads 20 questions for the chosen category and difficulty (or a random pick) and starts the countdown
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body dto.StartSessionRequest true "Game selection"
// @Success 200 {object} dto.SessionStateResponse
// @Failure 400 {object} middleware.ValidationErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Router /sessions/{id}/start [post]
func (h *SessionHandler) StartSession(c *fiber.Ctx) error {
	var req dto.StartSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.NewInvalidInputError("invalid request body")
	}
	if errs := h.validator.ValidateStartRequest(req.CategoryID, req.Difficulty, req.Random); len(errs) > 0 {
		return errs
	}

	var cfg domain.QuizConfig
	if req.Random {
		cfg = h.service.RandomConfig()
	} else {
		difficulty, err := domain.ParseDifficulty(req.Difficulty)
		if err != nil {
			return err
		}
		cfg = domain.QuizConfig{CategoryID: req.CategoryID, Difficulty: difficulty}
	}

	id := middleware.SessionID(c)
	st, err := h.service.Start(c.UserContext(), id, cfg)
	if err != nil {
		return err
	}
	return c.JSON(toStateResponse(id, st))
}

// SubmitAnswer godoc
// @Summary Answer the current question
// @Description Records the answer once; repeated answers report recorded=false
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body dto.AnswerRequest true "Answer"
// @Success 200 {object} dto.AnswerResponse
// @Failure 400 {object} middleware.ValidationErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Router /sessions/{id}/answer [post]
func (h *SessionHandler) SubmitAnswer(c *fiber.Ctx) error {
	var req dto.AnswerRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.NewInvalidInputError("invalid request body")
	}
	if errs := h.validator.ValidateAnswerRequest(req.Option, req.QuestionID); len(errs) > 0 {
		return errs
	}

	id := middleware.SessionID(c)
	q, recorded, err := h.service.Answer(c.UserContext(), id, req.QuestionID, req.Option)
	if err != nil {
		return err
	}
	st, err := h.service.State(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(dto.AnswerResponse{
		Recorded: recorded,
		Question: toQuestionResponse(q, q.Answered() || recorded),
		Score:    st.Score,
	})
}

// Advance godoc
// @Summary Move to the next question
// @Description An unanswered question is recorded as missed. After the last question the game finishes.
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Param request body dto.AdvanceRequest false "Question being left"
// @Success 200 {object} dto.SessionStateResponse
// @Failure 400 {object} middleware.ValidationErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Router /sessions/{id}/advance [post]
func (h *SessionHandler) Advance(c *fiber.Ctx) error {
	var req dto.AdvanceRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return domain.NewInvalidInputError("invalid request body")
		}
	}
	if errs := h.validator.ValidateAdvanceRequest(req.QuestionID); len(errs) > 0 {
		return errs
	}

	id := middleware.SessionID(c)
	st, err := h.service.Advance(c.UserContext(), id, req.QuestionID)
	if err != nil {
		return err
	}
	return c.JSON(toStateResponse(id, st))
}

// Reset godoc
// @Summary Reset the session
// @Description Returns the session to idle. Game records are kept.
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} dto.SessionStateResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /sessions/{id}/reset [post]
func (h *SessionHandler) Reset(c *fiber.Ctx) error {
	id := middleware.SessionID(c)
	if err := h.service.Reset(c.UserContext(), id); err != nil {
		return err
	}
	st, err := h.service.State(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(toStateResponse(id, st))
}

// GetStats godoc
// @Summary Session statistics
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} dto.StatsResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /sessions/{id}/stats [get]
func (h *SessionHandler) GetStats(c *fiber.Ctx) error {
	id := middleware.SessionID(c)
	stats, err := h.service.Stats(c.UserContext(), id)
	if err != nil {
		return err
	}
	st, err := h.service.State(c.UserContext(), id)
	if err != nil {
		return err
	}
	percentage := domain.Percentage(st.Score, domain.MaxScore)
	return c.JSON(dto.StatsResponse{
		CorrectCount:     stats.CorrectCount,
		WrongCount:       stats.WrongCount,
		AverageTimeTaken: stats.AverageTimeTaken,
		Score:            st.Score,
		MaxScore:         domain.MaxScore,
		Percentage:       percentage,
		Message:          domain.PerformanceMessage(percentage),
	})
}

// GetRecords godoc
// @Summary Recent game records
// @Description Up to five completed games, newest first
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} dto.RecordsResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /sessions/{id}/records [get]
func (h *SessionHandler) GetRecords(c *fiber.Ctx) error {
	records, err := h.service.Records(c.UserContext(), middleware.SessionID(c))
	if err != nil {
		return err
	}
	resp := dto.RecordsResponse{Records: make([]dto.GameRecordResponse, 0, len(records))}
	for _, r := range records {
		resp.Records = append(resp.Records, dto.GameRecordResponse{
			Score:        r.Score,
			Total:        r.Total,
			Percentage:   r.Percentage,
			Timestamp:    r.Timestamp,
			CategoryName: r.CategoryName,
			Difficulty:   string(r.Difficulty),
			Questions:    toQuestionResponses(r.Questions),
		})
	}
	return c.JSON(resp)
}

// DeleteSession godoc
// @Summary Delete a session
// @Tags sessions
// @Param id path string true "Session ID"
// @Success 204
// @Failure 404 {object} middleware.ErrorResponse
// @Router /sessions/{id} [delete]
func (h *SessionHandler) DeleteSession(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), middleware.SessionID(c)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func toStateResponse(id string, st domain.SessionState) dto.SessionStateResponse {
	resp := dto.SessionStateResponse{
		SessionID:      id,
		Phase:          st.Phase.String(),
		CategoryID:     st.Config.CategoryID,
		CategoryName:   domain.CategoryName(st.Config.CategoryID),
		Difficulty:     string(st.Config.Difficulty),
		Origin:         string(st.Origin),
		CurrentIndex:   st.CurrentIndex,
		TotalQuestions: len(st.Questions),
		Score:          st.Score,
		MaxScore:       domain.MaxScore,
		TimeLeft:       st.TimeLeft,
		Answered:       st.Answered,
		History:        toQuestionResponses(st.History),
	}
	if st.Phase == domain.PhaseActive {
		if q, ok := st.Current(); ok {
			cur := toQuestionResponse(q, st.Answered)
			resp.Current = &cur
		}
	}
	if st.Phase == domain.PhaseFinished {
		p := domain.Percentage(st.Score, domain.MaxScore)
		resp.Percentage = &p
		resp.Message = domain.PerformanceMessage(p)
	}
	return resp
}

// toQuestionResponse hides the outcome fields until reveal is true
func toQuestionResponse(q domain.Question, reveal bool) dto.QuestionResponse {
	resp := dto.QuestionResponse{
		ID:       q.ID,
		Question: q.Question,
		Options:  append([]string(nil), q.Options...),
	}
	if !reveal {
		return resp
	}
	if q.UserAnswer != nil {
		a := *q.UserAnswer
		resp.UserAnswer = &a
	}
	correct := q.IsCorrect
	taken := q.TimeTaken
	resp.CorrectAnswer = q.CorrectAnswer
	resp.IsCorrect = &correct
	resp.TimeTaken = &taken
	return resp
}

func toQuestionResponses(qs []domain.Question) []dto.QuestionResponse {
	out := make([]dto.QuestionResponse, 0, len(qs))
	for _, q := range qs {
		out = append(out, toQuestionResponse(q, true))
	}
	return out
}
