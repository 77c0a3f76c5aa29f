package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"trivia-quiz/internal/bank"
	"trivia-quiz/internal/domain"
	"trivia-quiz/internal/logger"
	"trivia-quiz/internal/util"

	"go.uber.org/zap"
)

// SessionOption configures a Session
type SessionOption func(*Session)

// WithRandomizer replaces the default time-seeded random source
func WithRandomizer(rng domain.Randomizer) SessionOption {
	return func(s *Session) {
		s.rng = rng
	}
}

// WithClock sets the time source used for question IDs and record timestamps
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		s.now = now
	}
}

// WithRecords seeds the game-record log, newest first
func WithRecords(records []domain.GameRecord) SessionOption {
	return func(s *Session) {
		s.records = copyRecords(records, domain.MaxGameRecords)
	}
}

// WithOnFinish registers a callback that receives every completed game.
// It runs outside the session lock.
func WithOnFinish(fn func(domain.GameRecord)) SessionOption {
	return func(s *Session) {
		s.onFinish = fn
	}
}

// WithLogger overrides the global logger
func WithLogger(l *zap.Logger) SessionOption {
	return func(s *Session) {
		s.logger = l
	}
}

// Session is one player's quiz state machine: Idle, Loading, Active, Finished.
// All methods are safe for concurrent use.
type Session struct {
	mu sync.Mutex

	source   domain.QuestionSource
	bank     *bank.Bank
	rng      domain.Randomizer
	now      func() time.Time
	logger   *zap.Logger
	onFinish func(domain.GameRecord)

	phase        domain.Phase
	config       domain.QuizConfig
	questions    []domain.Question
	currentIndex int
	score        int
	timeLeft     int
	answered     bool
	history      []domain.Question
	origin       domain.QuestionOrigin
	records      []domain.GameRecord

	// startToken is bumped by every Start and Reset so a fetch that
	// completes late can tell it no longer owns the session.
	startToken  uint64
	cancelFetch context.CancelFunc
}

// NewSession creates an idle session. A nil source plays from the bank only;
// a nil bank uses the embedded question set.
func NewSession(source domain.QuestionSource, questionBank *bank.Bank, opts ...SessionOption) *Session {
	s := &Session{
		source:   source,
		bank:     questionBank,
		now:      time.Now,
		phase:    domain.PhaseIdle,
		config:   domain.DefaultQuizConfig(),
		timeLeft: domain.SecondsPerQuestion,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = util.NewLockedRand(0)
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.bank == nil {
		s.bank = bank.MustDefault()
	}
	return s
}

// Start loads a question set for cfg and begins play. It is allowed from
// Idle or Finished. The remote source is tried first; any failure or short
// result falls back to the bank, so Start only fails on a bad config, a
// phase conflict, or a Reset that happened while loading.
func (s *Session) Start(ctx context.Context, cfg domain.QuizConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.phase == domain.PhaseLoading || s.phase == domain.PhaseActive {
		phase := s.phase
		s.mu.Unlock()
		return domain.NewInvalidPhaseError("start", phase)
	}
	s.clearLocked()
	s.config = cfg
	s.phase = domain.PhaseLoading
	s.startToken++
	token := s.startToken
	fetchCtx, cancel := context.WithCancel(ctx)
	s.cancelFetch = cancel
	s.mu.Unlock()

	raw, origin := s.loadQuestions(fetchCtx, cfg)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startToken != token || s.phase != domain.PhaseLoading {
		s.logger.Debug("Discarding question set for a stale start",
			zap.Uint64("token", token),
			zap.Uint64("current_token", s.startToken))
		return domain.ErrStaleSession
	}

	stamp := s.now().UnixMilli()
	questions := make([]domain.Question, len(raw))
	for i, r := range raw {
		questions[i] = domain.Question{
			ID:            fmt.Sprintf("%d-%d", stamp, i),
			Question:      r.Question,
			CorrectAnswer: r.CorrectAnswer,
			Options:       append([]string(nil), r.Options...),
		}
	}

	s.questions = questions
	s.currentIndex = 0
	s.score = 0
	s.history = make([]domain.Question, 0, len(questions))
	s.timeLeft = domain.SecondsPerQuestion
	s.answered = false
	s.origin = origin
	s.cancelFetch = nil
	s.phase = domain.PhaseActive

	s.logger.Info("Quiz session started",
		zap.Int("category_id", cfg.CategoryID),
		zap.String("difficulty", string(cfg.Difficulty)),
		zap.String("origin", string(origin)),
		zap.Int("questions", len(questions)))
	return nil
}

// loadQuestions never fails: the bank backs every remote failure
func (s *Session) loadQuestions(ctx context.Context, cfg domain.QuizConfig) ([]domain.RawQuestion, domain.QuestionOrigin) {
	if s.source != nil {
		raw, err := s.source.FetchQuestions(ctx, cfg, domain.QuestionsPerGame)
		switch {
		case err != nil:
			s.logger.Warn("Question source unavailable, using fallback bank",
				zap.Int("category_id", cfg.CategoryID),
				zap.String("difficulty", string(cfg.Difficulty)),
				zap.Error(err))
		case len(raw) < domain.QuestionsPerGame:
			s.logger.Warn("Question source returned too few questions, using fallback bank",
				zap.Int("received", len(raw)),
				zap.Int("expected", domain.QuestionsPerGame))
		default:
			return raw[:domain.QuestionsPerGame], domain.OriginRemote
		}
	}
	return s.bank.Draw(s.rng, domain.QuestionsPerGame), domain.OriginFallback
}

// Tick counts the current question down by one second. When the clock runs
// out on an unanswered question it is recorded as missed and play advances.
// The return value tells a scheduler whether to keep ticking.
func (s *Session) Tick() bool {
	s.mu.Lock()
	if s.phase != domain.PhaseActive || s.answered {
		s.mu.Unlock()
		return false
	}

	if s.timeLeft > 0 {
		s.timeLeft--
	}
	var record *domain.GameRecord
	if s.timeLeft == 0 {
		s.logger.Debug("Question timed out", zap.Int("index", s.currentIndex))
		record = s.advanceLocked()
	}
	active := s.phase == domain.PhaseActive
	s.mu.Unlock()

	s.notifyFinish(record)
	return active
}

// SubmitAnswer records option as the answer to the current question and
// returns the updated question. The second result is false when nothing was
// recorded because the session is not Active or the question is already answered.
func (s *Session) SubmitAnswer(option string) (domain.Question, bool) {
	return s.SubmitAnswerTo("", option)
}

// SubmitAnswerTo is SubmitAnswer guarded by a question ID. If questionID is
// set and play has already moved past that question, nothing is recorded.
func (s *Session) SubmitAnswerTo(questionID, option string) (domain.Question, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.currentLocked()
	if s.phase != domain.PhaseActive || s.answered || (questionID != "" && current.ID != questionID) {
		if ok {
			return current.Clone(), false
		}
		return domain.Question{}, false
	}

	q := &s.questions[s.currentIndex]
	answer := option
	q.UserAnswer = &answer
	q.IsCorrect = option == q.CorrectAnswer
	q.TimeTaken = domain.SecondsPerQuestion - s.timeLeft
	if q.IsCorrect {
		s.score += domain.AnswerPoints(s.timeLeft)
		if s.score > domain.MaxScore {
			s.score = domain.MaxScore
		}
	}
	s.answered = true
	s.history = append(s.history, q.Clone())
	return q.Clone(), true
}

// Advance moves to the next question, or finishes the game after the last
// one. An unanswered question is recorded as missed first.
func (s *Session) Advance() error {
	_, err := s.AdvanceFrom("")
	return err
}

// AdvanceFrom is Advance guarded by a question ID. If questionID is set and
// play has already moved past that question, nothing happens and advanced
// is false.
func (s *Session) AdvanceFrom(questionID string) (advanced bool, err error) {
	s.mu.Lock()
	if s.phase != domain.PhaseActive {
		phase := s.phase
		s.mu.Unlock()
		return false, domain.NewInvalidPhaseError("advance", phase)
	}
	if current, _ := s.currentLocked(); questionID != "" && current.ID != questionID {
		s.mu.Unlock()
		return false, nil
	}
	record := s.advanceLocked()
	s.mu.Unlock()

	s.notifyFinish(record)
	return true, nil
}

// advanceLocked returns the finished game's record, or nil if play continues
func (s *Session) advanceLocked() *domain.GameRecord {
	if !s.answered {
		q := &s.questions[s.currentIndex]
		q.UserAnswer = nil
		q.IsCorrect = false
		q.TimeTaken = domain.SecondsPerQuestion - s.timeLeft
		s.history = append(s.history, q.Clone())
	}

	if s.currentIndex < len(s.questions)-1 {
		s.currentIndex++
		s.answered = false
		s.timeLeft = domain.SecondsPerQuestion
		return nil
	}

	record := domain.GameRecord{
		Score:        s.score,
		Total:        domain.MaxScore,
		Percentage:   domain.Percentage(s.score, domain.MaxScore),
		Timestamp:    s.now(),
		CategoryName: domain.CategoryName(s.config.CategoryID),
		Difficulty:   s.config.Difficulty,
		Questions:    cloneQuestions(s.history),
	}
	s.records = domain.PrependRecord(s.records, record, domain.MaxGameRecords)
	s.phase = domain.PhaseFinished
	s.answered = true

	s.logger.Info("Quiz session finished",
		zap.Int("score", record.Score),
		zap.Int("percentage", record.Percentage),
		zap.String("category", record.CategoryName))
	return &record
}

func (s *Session) notifyFinish(record *domain.GameRecord) {
	if record == nil || s.onFinish == nil {
		return
	}
	r := *record
	r.Questions = cloneQuestions(record.Questions)
	s.onFinish(r)
}

// Reset returns the session to Idle from any phase. An in-flight fetch is
// cancelled and its result will be discarded. Config and records survive.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.startToken++
	if s.cancelFetch != nil {
		s.cancelFetch()
		s.cancelFetch = nil
	}
	s.clearLocked()
	s.phase = domain.PhaseIdle
}

func (s *Session) clearLocked() {
	s.questions = nil
	s.history = nil
	s.currentIndex = 0
	s.score = 0
	s.timeLeft = domain.SecondsPerQuestion
	s.answered = false
	s.origin = domain.OriginNone
}

// Phase returns the current lifecycle phase
func (s *Session) Phase() domain.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// State returns a deep copy of the session
func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return domain.SessionState{
		Phase:        s.phase,
		Config:       s.config,
		Questions:    cloneQuestions(s.questions),
		CurrentIndex: s.currentIndex,
		Score:        s.score,
		TimeLeft:     s.timeLeft,
		Answered:     s.answered,
		History:      cloneQuestions(s.history),
		Origin:       s.origin,
	}
}

// Stats summarizes the answers recorded so far
func (s *Session) Stats() domain.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.ComputeStats(s.history)
}

// Records returns the game-record log, newest first
func (s *Session) Records() []domain.GameRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyRecords(s.records, domain.MaxGameRecords)
}

func (s *Session) currentLocked() (domain.Question, bool) {
	if s.currentIndex < 0 || s.currentIndex >= len(s.questions) {
		return domain.Question{}, false
	}
	return s.questions[s.currentIndex], true
}

func cloneQuestions(in []domain.Question) []domain.Question {
	if in == nil {
		return nil
	}
	out := make([]domain.Question, len(in))
	for i, q := range in {
		out[i] = q.Clone()
	}
	return out
}

func copyRecords(in []domain.GameRecord, limit int) []domain.GameRecord {
	n := len(in)
	if n > limit {
		n = limit
	}
	out := make([]domain.GameRecord, n)
	for i := 0; i < n; i++ {
		out[i] = in[i]
		out[i].Questions = cloneQuestions(in[i].Questions)
	}
	return out
}
