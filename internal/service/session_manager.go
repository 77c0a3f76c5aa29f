package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"trivia-quiz/internal/bank"
	"trivia-quiz/internal/domain"
	"trivia-quiz/internal/logger"
	"trivia-quiz/internal/util"

	"go.uber.org/zap"
)

const recordPersistTimeout = 5 * time.Second

// SessionService is what the HTTP handlers need from the session layer
type SessionService interface {
	Categories() []domain.Category
	RandomConfig() domain.QuizConfig
	Create(ctx context.Context, playerID string) (string, error)
	Start(ctx context.Context, id string, cfg domain.QuizConfig) (domain.SessionState, error)
	Answer(ctx context.Context, id string, questionID string, option string) (domain.Question, bool, error)
	Advance(ctx context.Context, id string, questionID string) (domain.SessionState, error)
	Reset(ctx context.Context, id string) error
	State(ctx context.Context, id string) (domain.SessionState, error)
	Stats(ctx context.Context, id string) (domain.Stats, error)
	Records(ctx context.Context, id string) ([]domain.GameRecord, error)
	Delete(ctx context.Context, id string) error
}

// ManagerConfig holds the timing knobs for hosted sessions
type ManagerConfig struct {
	TickInterval    time.Duration
	IdleTTL         time.Duration
	JanitorInterval time.Duration
}

type managedSession struct {
	session   *Session
	countdown *Countdown
	playerID  string
	lastSeen  atomic.Int64
}

func (ms *managedSession) touch(now time.Time) {
	ms.lastSeen.Store(now.UnixNano())
}

// SessionManager hosts many sessions keyed by ULID, each with its own countdown
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*managedSession

	source domain.QuestionSource
	bank   *bank.Bank
	store  RecordStore
	rng    domain.Randomizer
	now    func() time.Time
	cfg    ManagerConfig
}

// NewSessionManager wires the session layer. source may be nil for bank-only play.
func NewSessionManager(source domain.QuestionSource, questionBank *bank.Bank, store RecordStore, rng domain.Randomizer, cfg ManagerConfig) *SessionManager {
	if store == nil {
		store = NewMemoryRecordStore()
	}
	if rng == nil {
		rng = util.NewLockedRand(0)
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}
	if cfg.JanitorInterval <= 0 {
		cfg.JanitorInterval = time.Minute
	}
	if questionBank == nil {
		questionBank = bank.MustDefault()
	}
	return &SessionManager{
		sessions: make(map[string]*managedSession),
		source:   source,
		bank:     questionBank,
		store:    store,
		rng:      rng,
		now:      time.Now,
		cfg:      cfg,
	}
}

// SetClock replaces the clock used for idle tracking and record timestamps
func (m *SessionManager) SetClock(now func() time.Time) {
	m.now = now
}

func (m *SessionManager) Categories() []domain.Category {
	return append([]domain.Category(nil), domain.Categories...)
}

func (m *SessionManager) RandomConfig() domain.QuizConfig {
	return domain.RandomConfig(m.rng)
}

// Create registers a new idle session. Records saved for playerID are loaded
// into it; an empty playerID makes the session its own player.
func (m *SessionManager) Create(ctx context.Context, playerID string) (string, error) {
	id := util.NewULID()
	if playerID == "" {
		playerID = id
	}

	records, err := m.store.List(ctx, playerID)
	if err != nil {
		logger.Get().Warn("Failed to load game records, starting with an empty log",
			zap.String("playerID", playerID), zap.Error(err))
		records = nil
	}

	ms := &managedSession{playerID: playerID}
	ms.session = NewSession(m.source, m.bank,
		WithRandomizer(m.rng),
		WithClock(m.now),
		WithRecords(records),
		WithOnFinish(func(r domain.GameRecord) { m.persist(playerID, r) }),
	)
	ms.countdown = NewCountdown(m.cfg.TickInterval, ms.session.Tick)
	ms.touch(m.now())

	m.mu.Lock()
	m.sessions[id] = ms
	m.mu.Unlock()

	logger.Get().Info("Session created", zap.String("sessionID", id), zap.String("playerID", playerID))
	return id, nil
}

func (m *SessionManager) persist(playerID string, record domain.GameRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), recordPersistTimeout)
	defer cancel()
	if err := m.store.Append(ctx, playerID, record); err != nil {
		logger.Get().Error("Failed to persist game record", zap.String("playerID", playerID), zap.Error(err))
	}
}

func (m *SessionManager) get(id string) (*managedSession, error) {
	m.mu.RLock()
	ms, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, domain.NewSessionNotFoundError(id)
	}
	ms.touch(m.now())
	return ms, nil
}

// Start loads questions and arms the countdown
func (m *SessionManager) Start(ctx context.Context, id string, cfg domain.QuizConfig) (domain.SessionState, error) {
	ms, err := m.get(id)
	if err != nil {
		return domain.SessionState{}, err
	}
	if err := ms.session.Start(ctx, cfg); err != nil {
		return domain.SessionState{}, err
	}
	ms.countdown.Rearm()
	return ms.session.State(), nil
}

// Answer submits option for the current question. recorded is false when the
// question was already answered, or when questionID is set and play has moved on.
func (m *SessionManager) Answer(_ context.Context, id string, questionID string, option string) (domain.Question, bool, error) {
	ms, err := m.get(id)
	if err != nil {
		return domain.Question{}, false, err
	}
	q, recorded := ms.session.SubmitAnswerTo(questionID, option)
	if !recorded {
		if phase := ms.session.Phase(); phase != domain.PhaseActive {
			return domain.Question{}, false, domain.NewInvalidPhaseError("answer", phase)
		}
	}
	return q, recorded, nil
}

// Advance moves to the next question and restarts its countdown. When
// questionID is set and the countdown already moved past that question the
// session is left as it is. The countdown is stopped first so a tick left
// over from the previous question cannot land on the new one.
func (m *SessionManager) Advance(_ context.Context, id string, questionID string) (domain.SessionState, error) {
	ms, err := m.get(id)
	if err != nil {
		return domain.SessionState{}, err
	}
	ms.countdown.Stop()
	if _, err := ms.session.AdvanceFrom(questionID); err != nil {
		return domain.SessionState{}, err
	}
	if ms.session.Phase() == domain.PhaseActive {
		ms.countdown.Rearm()
	}
	return ms.session.State(), nil
}

func (m *SessionManager) Reset(_ context.Context, id string) error {
	ms, err := m.get(id)
	if err != nil {
		return err
	}
	ms.session.Reset()
	ms.countdown.Stop()
	return nil
}

func (m *SessionManager) State(_ context.Context, id string) (domain.SessionState, error) {
	ms, err := m.get(id)
	if err != nil {
		return domain.SessionState{}, err
	}
	return ms.session.State(), nil
}

func (m *SessionManager) Stats(_ context.Context, id string) (domain.Stats, error) {
	ms, err := m.get(id)
	if err != nil {
		return domain.Stats{}, err
	}
	return ms.session.Stats(), nil
}

func (m *SessionManager) Records(_ context.Context, id string) ([]domain.GameRecord, error) {
	ms, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return ms.session.Records(), nil
}

// Delete stops and forgets a session. An anonymous session's records are
// keyed by its own ID and nothing can reach them afterwards, so they are
// cleared as well.
func (m *SessionManager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	ms, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return domain.NewSessionNotFoundError(id)
	}
	ms.session.Reset()
	ms.countdown.Stop()

	if ms.playerID == id {
		if err := m.store.Clear(ctx, id); err != nil {
			logger.Get().Warn("Failed to clear records of deleted session", zap.String("sessionID", id), zap.Error(err))
		}
	}
	logger.Get().Info("Session deleted", zap.String("sessionID", id), zap.String("playerID", ms.playerID))
	return nil
}

// Len returns the number of hosted sessions
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// EvictIdle removes sessions nobody has touched within IdleTTL of now
func (m *SessionManager) EvictIdle(now time.Time) int {
	cutoff := now.Add(-m.cfg.IdleTTL).UnixNano()

	var evicted []*managedSession
	m.mu.Lock()
	for id, ms := range m.sessions {
		if ms.lastSeen.Load() < cutoff {
			evicted = append(evicted, ms)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, ms := range evicted {
		ms.session.Reset()
		ms.countdown.Stop()
	}
	if len(evicted) > 0 {
		logger.Get().Info("Evicted idle sessions", zap.Int("count", len(evicted)))
	}
	return len(evicted)
}

// RunJanitor evicts idle sessions every JanitorInterval until ctx is done
func (m *SessionManager) RunJanitor(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.JanitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.EvictIdle(m.now())
		}
	}
}

// Shutdown stops every countdown
func (m *SessionManager) Shutdown() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*managedSession)
	m.mu.Unlock()

	for _, ms := range sessions {
		ms.countdown.Stop()
	}
}
