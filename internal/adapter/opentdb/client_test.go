package opentdb

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"trivia-quiz/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const twoQuestionsJSON = `{
	"response_code": 0,
	"results": [
		{
			"type": "multiple",
			"difficulty": "easy",
			"category": "General Knowledge",
			"question": "What does &quot;HTTP&quot; stand for?",
			"correct_answer": "Hypertext Transfer Protocol",
			"incorrect_answers": ["Hyperlink Text Protocol", "Host Transfer Protocol", "Home Tool Protocol"]
		},
		{
			"type": "multiple",
			"difficulty": "easy",
			"category": "General Knowledge",
			"question": "Which of these is &#039;Rock &amp; Roll&#039;?",
			"correct_answer": "Elvis",
			"incorrect_answers": ["Bach", "Mozart", "Chopin"]
		}
	]
}`

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	fixed := time.UnixMilli(1700000000000)
	c, err := NewClient(serverURL, 2*time.Second, rand.New(rand.NewSource(3)), zap.NewNop(),
		WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)
	return c
}

func TestNewClient(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	c, err := NewClient("", time.Second, rng, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.baseURL)

	_, err = NewClient("::not a url", time.Second, rng, nil)
	assert.Error(t, err)

	_, err = NewClient(DefaultBaseURL, time.Second, nil, nil)
	assert.ErrorContains(t, err, "requires a randomizer")
}

func TestClient_FetchQuestions_Success(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"amount":     q.Get("amount"),
			"category":   q.Get("category"),
			"difficulty": q.Get("difficulty"),
			"type":       q.Get("type"),
			"timestamp":  q.Get("timestamp"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(twoQuestionsJSON))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	questions, err := c.FetchQuestions(context.Background(),
		domain.QuizConfig{CategoryID: 9, Difficulty: domain.DifficultyEasy}, 20)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"amount":     "20",
		"category":   "9",
		"difficulty": "easy",
		"type":       "multiple",
		"timestamp":  "1700000000000",
	}, gotQuery)

	require.Len(t, questions, 2)
	assert.Equal(t, `What does "HTTP" stand for?`, questions[0].Question)
	assert.Equal(t, "Hypertext Transfer Protocol", questions[0].CorrectAnswer)
	assert.ElementsMatch(t,
		[]string{"Hypertext Transfer Protocol", "Hyperlink Text Protocol", "Host Transfer Protocol", "Home Tool Protocol"},
		questions[0].Options)
	assert.Equal(t, "Which of these is 'Rock & Roll'?", questions[1].Question)
	assert.Len(t, questions[1].Options, domain.OptionsPerQuestion)
	assert.Contains(t, questions[1].Options, "Elvis")
}

func TestClient_FetchQuestions_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		errText string
	}{
		{"server error", http.StatusInternalServerError, `oops`, "status 500"},
		{"malformed json", http.StatusOK, `{"response_code": 0, "results": [`, "failed to decode"},
		{"no results code", http.StatusOK, `{"response_code": 1, "results": []}`, "not enough questions"},
		{"rate limited", http.StatusOK, `{"response_code": 5, "results": []}`, "rate limited"},
		{"unknown code", http.StatusOK, `{"response_code": 42, "results": []}`, "unknown response code"},
		{"empty results", http.StatusOK, `{"response_code": 0, "results": []}`, "no questions"},
		{
			"boolean question slipped in",
			http.StatusOK,
			`{"response_code": 0, "results": [{"question": "q", "correct_answer": "True", "incorrect_answers": ["False"]}]}`,
			"malformed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := newTestClient(t, srv.URL)
			questions, err := c.FetchQuestions(context.Background(), domain.DefaultQuizConfig(), 20)
			assert.Nil(t, questions)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrSourceUnavailable))
			assert.Contains(t, err.Error(), tt.errText)
		})
	}
}

func TestClient_FetchQuestions_ContextCanceled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := newTestClient(t, srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.FetchQuestions(ctx, domain.DefaultQuizConfig(), 20)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSourceUnavailable))
	assert.True(t, errors.Is(err, context.Canceled))
}
