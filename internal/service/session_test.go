package service_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"trivia-quiz/internal/bank"
	"trivia-quiz/internal/domain"
	"trivia-quiz/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSource is a scripted domain.QuestionSource
type stubSource struct {
	mu        sync.Mutex
	questions []domain.RawQuestion
	err       error
	calls     int
	lastCfg   domain.QuizConfig
	lastCount int

	started chan struct{} // closed when a fetch begins, if set
	release chan struct{} // fetch blocks until closed, if set
}

func (s *stubSource) FetchQuestions(ctx context.Context, cfg domain.QuizConfig, amount int) ([]domain.RawQuestion, error) {
	s.mu.Lock()
	s.calls++
	s.lastCfg = cfg
	s.lastCount = amount
	started, release := s.started, s.release
	s.mu.Unlock()

	if started != nil {
		close(started)
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.questions, nil
}

func rawQuestions(n int) []domain.RawQuestion {
	out := make([]domain.RawQuestion, n)
	for i := range out {
		out[i] = domain.RawQuestion{
			Question:      fmt.Sprintf("Question %d?", i),
			CorrectAnswer: fmt.Sprintf("right %d", i),
			Options: []string{
				fmt.Sprintf("wrong a %d", i),
				fmt.Sprintf("right %d", i),
				fmt.Sprintf("wrong b %d", i),
				fmt.Sprintf("wrong c %d", i),
			},
		}
	}
	return out
}

func fixedClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newTestSession(t *testing.T, src domain.QuestionSource, opts ...service.SessionOption) *service.Session {
	t.Helper()
	b, err := bank.Default()
	require.NoError(t, err)
	base := []service.SessionOption{
		service.WithRandomizer(rand.New(rand.NewSource(7))),
		service.WithClock(fixedClock()),
	}
	return service.NewSession(src, b, append(base, opts...)...)
}

func answerCurrent(t *testing.T, s *service.Session, correct bool) domain.Question {
	t.Helper()
	q, ok := s.State().Current()
	require.True(t, ok)
	option := q.CorrectAnswer
	if !correct {
		for _, o := range q.Options {
			if o != q.CorrectAnswer {
				option = o
				break
			}
		}
	}
	answered, recorded := s.SubmitAnswer(option)
	require.True(t, recorded)
	return answered
}

func assertHistoryInvariant(t *testing.T, st domain.SessionState) {
	t.Helper()
	if st.Phase != domain.PhaseActive {
		return
	}
	want := st.CurrentIndex
	if st.Answered {
		want++
	}
	assert.Len(t, st.History, want)
}

func TestSession_NewIsIdle(t *testing.T) {
	s := newTestSession(t, &stubSource{})
	st := s.State()
	assert.Equal(t, domain.PhaseIdle, st.Phase)
	assert.Equal(t, domain.DefaultQuizConfig(), st.Config)
	assert.Equal(t, domain.SecondsPerQuestion, st.TimeLeft)
	assert.Empty(t, st.Questions)
	assert.Empty(t, s.Records())
}

func TestSession_AllCorrectScenario(t *testing.T) {
	src := &stubSource{questions: rawQuestions(domain.QuestionsPerGame)}
	var finished []domain.GameRecord
	s := newTestSession(t, src, service.WithOnFinish(func(r domain.GameRecord) {
		finished = append(finished, r)
	}))

	cfg := domain.QuizConfig{CategoryID: 9, Difficulty: domain.DifficultyEasy}
	require.NoError(t, s.Start(context.Background(), cfg))

	st := s.State()
	assert.Equal(t, domain.PhaseActive, st.Phase)
	assert.Equal(t, domain.OriginRemote, st.Origin)
	assert.Len(t, st.Questions, domain.QuestionsPerGame)
	assert.Equal(t, cfg, src.lastCfg)
	assert.Equal(t, domain.QuestionsPerGame, src.lastCount)

	prev := 0
	for i := 0; i < domain.QuestionsPerGame; i++ {
		q := answerCurrent(t, s, true)
		assert.True(t, q.IsCorrect)
		assert.Equal(t, 0, q.TimeTaken)

		st := s.State()
		assert.GreaterOrEqual(t, st.Score, prev, "score never decreases")
		assert.LessOrEqual(t, st.Score, domain.MaxScore)
		prev = st.Score
		assertHistoryInvariant(t, st)

		require.NoError(t, s.Advance())
	}

	st = s.State()
	assert.Equal(t, domain.PhaseFinished, st.Phase)
	assert.Equal(t, 200, st.Score)
	assert.Len(t, st.History, domain.QuestionsPerGame)

	records := s.Records()
	require.Len(t, records, 1)
	assert.Equal(t, 200, records[0].Score)
	assert.Equal(t, 200, records[0].Total)
	assert.Equal(t, 100, records[0].Percentage)
	assert.Equal(t, "General Knowledge", records[0].CategoryName)
	assert.Len(t, records[0].Questions, domain.QuestionsPerGame)

	require.Len(t, finished, 1)
	assert.Equal(t, records[0].Score, finished[0].Score)

	stats := s.Stats()
	assert.Equal(t, domain.Stats{CorrectCount: 20, WrongCount: 0, AverageTimeTaken: 0}, stats)
}

func TestSession_QuestionIDsAndOptions(t *testing.T) {
	s := newTestSession(t, &stubSource{questions: rawQuestions(domain.QuestionsPerGame)})
	require.NoError(t, s.Start(context.Background(), domain.DefaultQuizConfig()))

	seen := make(map[string]bool)
	for _, q := range s.State().Questions {
		assert.Regexp(t, `^\d+-\d+$`, q.ID)
		assert.False(t, seen[q.ID])
		seen[q.ID] = true
		assert.Len(t, q.Options, domain.OptionsPerQuestion)
		assert.Contains(t, q.Options, q.CorrectAnswer)
		assert.Nil(t, q.UserAnswer)
	}
}

func TestSession_ScoreUsesTimeBonus(t *testing.T) {
	s := newTestSession(t, &stubSource{questions: rawQuestions(domain.QuestionsPerGame)})
	require.NoError(t, s.Start(context.Background(), domain.DefaultQuizConfig()))

	for i := 0; i < 4; i++ {
		assert.True(t, s.Tick())
	}
	assert.Equal(t, 26, s.State().TimeLeft)

	q := answerCurrent(t, s, true)
	assert.Equal(t, 4, q.TimeTaken)
	// 10 + floor(26/3)
	assert.Equal(t, 18, s.State().Score)

	require.NoError(t, s.Advance())
	for i := 0; i < 29; i++ {
		s.Tick()
	}
	answerCurrent(t, s, true)
	// 1 second left: no bonus
	assert.Equal(t, 28, s.State().Score)

	var bonus int
	for _, h := range s.State().History {
		if h.IsCorrect {
			bonus += domain.TimeBonus(domain.SecondsPerQuestion - h.TimeTaken)
		}
	}
	stats := s.Stats()
	assert.Equal(t, 10*stats.CorrectCount+bonus, s.State().Score)
}

func TestSession_SubmitAnswerIsIdempotent(t *testing.T) {
	s := newTestSession(t, &stubSource{questions: rawQuestions(domain.QuestionsPerGame)})
	require.NoError(t, s.Start(context.Background(), domain.DefaultQuizConfig()))

	first := answerCurrent(t, s, true)
	before := s.State()

	again, recorded := s.SubmitAnswer("wrong a 0")
	assert.False(t, recorded)
	assert.Equal(t, first.UserAnswer, again.UserAnswer)

	after := s.State()
	assert.Equal(t, before.Score, after.Score)
	assert.Len(t, after.History, len(before.History))
	assert.True(t, after.History[0].IsCorrect)
}

func TestSession_SubmitAnswerOutsideActive(t *testing.T) {
	s := newTestSession(t, &stubSource{questions: rawQuestions(domain.QuestionsPerGame)})
	_, recorded := s.SubmitAnswer("anything")
	assert.False(t, recorded)
	assert.Empty(t, s.State().History)
}

func TestSession_TimerExpiryRecordsMiss(t *testing.T) {
	s := newTestSession(t, &stubSource{questions: rawQuestions(domain.QuestionsPerGame)})
	require.NoError(t, s.Start(context.Background(), domain.DefaultQuizConfig()))

	for i := 0; i < domain.SecondsPerQuestion-1; i++ {
		require.True(t, s.Tick())
		assertHistoryInvariant(t, s.State())
	}
	assert.Equal(t, 1, s.State().TimeLeft)
	assert.Empty(t, s.State().History)

	assert.True(t, s.Tick(), "play continues on the next question")

	st := s.State()
	require.Len(t, st.History, 1)
	missed := st.History[0]
	assert.Nil(t, missed.UserAnswer)
	assert.False(t, missed.IsCorrect)
	assert.Equal(t, domain.SecondsPerQuestion, missed.TimeTaken)
	assert.Equal(t, 0, st.Score)
	assert.Equal(t, 1, st.CurrentIndex)
	assert.Equal(t, domain.SecondsPerQuestion, st.TimeLeft)
	assert.False(t, st.Answered)
	assertHistoryInvariant(t, st)
}

func TestSession_TickAfterAnswerIsNoop(t *testing.T) {
	s := newTestSession(t, &stubSource{questions: rawQuestions(domain.QuestionsPerGame)})
	require.NoError(t, s.Start(context.Background(), domain.DefaultQuizConfig()))
	s.Tick()
	answerCurrent(t, s, false)

	before := s.State()
	assert.False(t, s.Tick())
	after := s.State()
	assert.Equal(t, before.TimeLeft, after.TimeLeft)
	assert.Len(t, after.History, 1)
}

func TestSession_TickWhenIdle(t *testing.T) {
	s := newTestSession(t, nil)
	assert.False(t, s.Tick())
	assert.Equal(t, domain.SecondsPerQuestion, s.State().TimeLeft)
}

func TestSession_TimeoutOnLastQuestionFinishes(t *testing.T) {
	s := newTestSession(t, &stubSource{questions: rawQuestions(domain.QuestionsPerGame)})
	require.NoError(t, s.Start(context.Background(), domain.DefaultQuizConfig()))
	for i := 0; i < domain.QuestionsPerGame-1; i++ {
		answerCurrent(t, s, false)
		require.NoError(t, s.Advance())
	}

	var last bool
	for i := 0; i < domain.SecondsPerQuestion; i++ {
		last = s.Tick()
	}
	assert.False(t, last)
	st := s.State()
	assert.Equal(t, domain.PhaseFinished, st.Phase)
	assert.Len(t, st.History, domain.QuestionsPerGame)
	require.Len(t, s.Records(), 1)
	assert.Equal(t, 0, s.Records()[0].Percentage)
}

func TestSession_WrongAnswerThenAdvance(t *testing.T) {
	s := newTestSession(t, &stubSource{questions: rawQuestions(domain.QuestionsPerGame)})
	require.NoError(t, s.Start(context.Background(), domain.DefaultQuizConfig()))

	q := answerCurrent(t, s, false)
	assert.False(t, q.IsCorrect)
	require.NoError(t, s.Advance())

	st := s.State()
	require.Len(t, st.History, 1)
	assert.False(t, st.History[0].IsCorrect)
	require.NotNil(t, st.History[0].UserAnswer)
	assert.Equal(t, 0, st.Score)
	assert.Equal(t, 1, st.CurrentIndex)
	assertHistoryInvariant(t, st)
}

func TestSession_AdvanceWithoutAnswerRecordsSkip(t *testing.T) {
	s := newTestSession(t, &stubSource{questions: rawQuestions(domain.QuestionsPerGame)})
	require.NoError(t, s.Start(context.Background(), domain.DefaultQuizConfig()))
	s.Tick()
	s.Tick()
	require.NoError(t, s.Advance())

	st := s.State()
	require.Len(t, st.History, 1)
	assert.Nil(t, st.History[0].UserAnswer)
	assert.Equal(t, 2, st.History[0].TimeTaken)
	assertHistoryInvariant(t, st)
}

func TestSession_AdvanceOutsideActive(t *testing.T) {
	s := newTestSession(t, nil)
	err := s.Advance()
	assert.ErrorIs(t, err, domain.ErrInvalidPhase)

	advanced, err := s.AdvanceFrom("any")
	assert.False(t, advanced)
	assert.ErrorIs(t, err, domain.ErrInvalidPhase)
}

func TestSession_AdvanceFromAfterExpiryKeepsNextQuestion(t *testing.T) {
	s := newTestSession(t, &stubSource{questions: rawQuestions(domain.QuestionsPerGame)})
	require.NoError(t, s.Start(context.Background(), domain.DefaultQuizConfig()))

	first, ok := s.State().Current()
	require.True(t, ok)
	for i := 0; i < domain.SecondsPerQuestion; i++ {
		s.Tick()
	}

	// the timer already moved on; a late advance for the first question is dropped
	advanced, err := s.AdvanceFrom(first.ID)
	require.NoError(t, err)
	assert.False(t, advanced)

	st := s.State()
	assert.Equal(t, 1, st.CurrentIndex)
	require.Len(t, st.History, 1)
	assert.Equal(t, domain.SecondsPerQuestion, st.History[0].TimeTaken)
	assert.Equal(t, domain.SecondsPerQuestion, st.TimeLeft)
	assertHistoryInvariant(t, st)

	second, ok := st.Current()
	require.True(t, ok)
	advanced, err = s.AdvanceFrom(second.ID)
	require.NoError(t, err)
	assert.True(t, advanced)
	assert.Equal(t, 2, s.State().CurrentIndex)
}

func TestSession_FallbackOnSourceError(t *testing.T) {
	src := &stubSource{err: domain.NewSourceUnavailableError("boom", errors.New("dial tcp: refused"))}
	s := newTestSession(t, src)
	require.NoError(t, s.Start(context.Background(), domain.QuizConfig{CategoryID: 18, Difficulty: domain.DifficultyHard}))

	st := s.State()
	assert.Equal(t, domain.PhaseActive, st.Phase)
	assert.Equal(t, domain.OriginFallback, st.Origin)
	require.Len(t, st.Questions, domain.QuestionsPerGame)

	seen := make(map[string]bool)
	for _, q := range st.Questions {
		assert.False(t, seen[q.Question], "bank questions are not repeated within a game")
		seen[q.Question] = true
		assert.Len(t, q.Options, domain.OptionsPerQuestion)
		assert.Contains(t, q.Options, q.CorrectAnswer)
	}
	assert.Equal(t, 0, st.Score)
	assert.Equal(t, 0, st.CurrentIndex)
	assert.Equal(t, domain.SecondsPerQuestion, st.TimeLeft)

	// plays exactly like the remote path
	for i := 0; i < domain.QuestionsPerGame; i++ {
		answerCurrent(t, s, true)
		require.NoError(t, s.Advance())
	}
	assert.Equal(t, domain.PhaseFinished, s.Phase())
	assert.Equal(t, 100, s.Records()[0].Percentage)
}

func TestSession_FallbackOnShortOrEmptyResult(t *testing.T) {
	for _, n := range []int{0, 5, domain.QuestionsPerGame - 1} {
		t.Run(fmt.Sprintf("%d questions", n), func(t *testing.T) {
			s := newTestSession(t, &stubSource{questions: rawQuestions(n)})
			require.NoError(t, s.Start(context.Background(), domain.DefaultQuizConfig()))
			st := s.State()
			assert.Equal(t, domain.OriginFallback, st.Origin)
			assert.Len(t, st.Questions, domain.QuestionsPerGame)
		})
	}
}

func TestSession_ExtraQuestionsAreTrimmed(t *testing.T) {
	s := newTestSession(t, &stubSource{questions: rawQuestions(domain.QuestionsPerGame + 5)})
	require.NoError(t, s.Start(context.Background(), domain.DefaultQuizConfig()))
	assert.Len(t, s.State().Questions, domain.QuestionsPerGame)
	assert.Equal(t, domain.OriginRemote, s.State().Origin)
}

func TestSession_NilSourceUsesBank(t *testing.T) {
	s := newTestSession(t, nil)
	require.NoError(t, s.Start(context.Background(), domain.DefaultQuizConfig()))
	assert.Equal(t, domain.OriginFallback, s.State().Origin)
	assert.Len(t, s.State().Questions, domain.QuestionsPerGame)
}

func TestSession_StartRejections(t *testing.T) {
	s := newTestSession(t, &stubSource{questions: rawQuestions(domain.QuestionsPerGame)})

	err := s.Start(context.Background(), domain.QuizConfig{CategoryID: 999, Difficulty: domain.DifficultyEasy})
	assert.ErrorIs(t, err, domain.NewInvalidCategoryError(999))
	assert.Equal(t, domain.PhaseIdle, s.Phase())

	err = s.Start(context.Background(), domain.QuizConfig{CategoryID: 9, Difficulty: "extreme"})
	var de *domain.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domain.CodeInvalidDifficulty, de.Code)

	require.NoError(t, s.Start(context.Background(), domain.DefaultQuizConfig()))
	err = s.Start(context.Background(), domain.DefaultQuizConfig())
	assert.ErrorIs(t, err, domain.ErrInvalidPhase)
	assert.Equal(t, domain.PhaseActive, s.Phase())
}

func TestSession_StartFromFinished(t *testing.T) {
	s := newTestSession(t, &stubSource{questions: rawQuestions(domain.QuestionsPerGame)})
	require.NoError(t, s.Start(context.Background(), domain.DefaultQuizConfig()))
	for i := 0; i < domain.QuestionsPerGame; i++ {
		require.NoError(t, s.Advance())
	}
	require.Equal(t, domain.PhaseFinished, s.Phase())

	require.NoError(t, s.Start(context.Background(), domain.DefaultQuizConfig()))
	st := s.State()
	assert.Equal(t, domain.PhaseActive, st.Phase)
	assert.Empty(t, st.History)
	assert.Equal(t, 0, st.CurrentIndex)
	assert.Len(t, s.Records(), 1)
}

func TestSession_ResetDuringLoadingIsStale(t *testing.T) {
	src := &stubSource{
		questions: rawQuestions(domain.QuestionsPerGame),
		started:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	s := newTestSession(t, src)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Start(context.Background(), domain.DefaultQuizConfig())
	}()

	<-src.started
	assert.Equal(t, domain.PhaseLoading, s.Phase())
	assert.ErrorIs(t, s.Start(context.Background(), domain.DefaultQuizConfig()), domain.ErrInvalidPhase)

	s.Reset()
	close(src.release)

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, domain.ErrStaleSession)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Reset")
	}
	st := s.State()
	assert.Equal(t, domain.PhaseIdle, st.Phase)
	assert.Empty(t, st.Questions)
}

func TestSession_ResetKeepsRecordsAndConfig(t *testing.T) {
	s := newTestSession(t, &stubSource{questions: rawQuestions(domain.QuestionsPerGame)})
	cfg := domain.QuizConfig{CategoryID: 23, Difficulty: domain.DifficultyMedium}
	require.NoError(t, s.Start(context.Background(), cfg))
	for i := 0; i < domain.QuestionsPerGame; i++ {
		answerCurrent(t, s, i%2 == 0)
		require.NoError(t, s.Advance())
	}
	require.NoError(t, s.Start(context.Background(), cfg))
	answerCurrent(t, s, true)

	s.Reset()
	st := s.State()
	assert.Equal(t, domain.PhaseIdle, st.Phase)
	assert.Empty(t, st.Questions)
	assert.Empty(t, st.History)
	assert.Equal(t, 0, st.Score)
	assert.Equal(t, 0, st.CurrentIndex)
	assert.Equal(t, cfg, st.Config)
	require.Len(t, s.Records(), 1)
	assert.Equal(t, "History", s.Records()[0].CategoryName)
	assert.Equal(t, domain.DifficultyMedium, s.Records()[0].Difficulty)
}

func TestSession_RecordLogKeepsNewestFive(t *testing.T) {
	s := newTestSession(t, nil)
	for game := 0; game < domain.MaxGameRecords+1; game++ {
		require.NoError(t, s.Start(context.Background(), domain.DefaultQuizConfig()))
		for i := 0; i < domain.QuestionsPerGame; i++ {
			// game n answers n questions correctly at full time
			answerIf(t, s, i < game)
			require.NoError(t, s.Advance())
		}
	}

	records := s.Records()
	require.Len(t, records, domain.MaxGameRecords)
	// game 0 scored 0 and was evicted; newest (game 5) is first
	assert.Equal(t, 100, records[0].Score)
	assert.Equal(t, 20, records[len(records)-1].Score)
	for i := 1; i < len(records); i++ {
		assert.True(t, records[i-1].Timestamp.After(records[i].Timestamp))
	}
}

func answerIf(t *testing.T, s *service.Session, answer bool) {
	t.Helper()
	if answer {
		answerCurrent(t, s, true)
	}
}

func TestSession_WithRecordsSeedsLog(t *testing.T) {
	seed := make([]domain.GameRecord, 7)
	for i := range seed {
		seed[i] = domain.GameRecord{Score: i}
	}
	s := newTestSession(t, nil, service.WithRecords(seed))
	records := s.Records()
	require.Len(t, records, domain.MaxGameRecords)
	assert.Equal(t, 0, records[0].Score)
}

func TestSession_StateIsACopy(t *testing.T) {
	s := newTestSession(t, &stubSource{questions: rawQuestions(domain.QuestionsPerGame)})
	require.NoError(t, s.Start(context.Background(), domain.DefaultQuizConfig()))
	answerCurrent(t, s, true)

	st := s.State()
	st.Questions[0].Options[0] = "tampered"
	*st.History[0].UserAnswer = "tampered"
	st.Score = -1

	fresh := s.State()
	assert.NotEqual(t, "tampered", fresh.Questions[0].Options[0])
	assert.NotEqual(t, "tampered", *fresh.History[0].UserAnswer)
	assert.Equal(t, 20, fresh.Score)
}

func TestSession_ConcurrentTickAndAnswer(t *testing.T) {
	s := newTestSession(t, &stubSource{questions: rawQuestions(domain.QuestionsPerGame)})
	require.NoError(t, s.Start(context.Background(), domain.DefaultQuizConfig()))
	for i := 0; i < domain.SecondsPerQuestion-1; i++ {
		s.Tick()
	}
	first, _ := s.State().Current()

	// one second left: the answer and the expiring tick race
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.Tick()
	}()
	go func() {
		defer wg.Done()
		s.SubmitAnswerTo(first.ID, "right 0")
	}()
	wg.Wait()

	st := s.State()
	require.Len(t, st.History, 1, "exactly one decisive event is recorded")
	assertHistoryInvariant(t, st)
	if st.History[0].Answered() {
		assert.Equal(t, 0, st.CurrentIndex)
		assert.Equal(t, 10, st.Score)
	} else {
		assert.Equal(t, 1, st.CurrentIndex)
		assert.Equal(t, 0, st.Score)
	}
}

func TestSession_SubmitAnswerToStaleQuestion(t *testing.T) {
	s := newTestSession(t, &stubSource{questions: rawQuestions(domain.QuestionsPerGame)})
	require.NoError(t, s.Start(context.Background(), domain.DefaultQuizConfig()))
	first, _ := s.State().Current()
	require.NoError(t, s.Advance())

	q, recorded := s.SubmitAnswerTo(first.ID, "right 0")
	assert.False(t, recorded)
	assert.NotEqual(t, first.ID, q.ID)
	assert.Len(t, s.State().History, 1)

	_, recorded = s.SubmitAnswerTo(q.ID, q.CorrectAnswer)
	assert.True(t, recorded)
}
