// Package opentdb fetches multiple-choice question sets from the Open Trivia DB API.
package opentdb

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"trivia-quiz/internal/domain"

	"go.uber.org/zap"
)

// DefaultBaseURL is the public Open Trivia DB endpoint
const DefaultBaseURL = "https://opentdb.com/api.php"

// Response codes documented by Open Trivia DB
const (
	codeSuccess          = 0
	codeNoResults        = 1
	codeInvalidParameter = 2
	codeTokenNotFound    = 3
	codeTokenEmpty       = 4
	codeRateLimit        = 5
)

var responseCodeText = map[int]string{
	codeNoResults:        "not enough questions for the query",
	codeInvalidParameter: "invalid parameter",
	codeTokenNotFound:    "session token not found",
	codeTokenEmpty:       "session token exhausted",
	codeRateLimit:        "rate limited",
}

type apiResponse struct {
	ResponseCode int         `json:"response_code"`
	Results      []apiResult `json:"results"`
}

type apiResult struct {
	Type             string   `json:"type"`
	Difficulty       string   `json:"difficulty"`
	Category         string   `json:"category"`
	Question         string   `json:"question"`
	CorrectAnswer    string   `json:"correct_answer"`
	IncorrectAnswers []string `json:"incorrect_answers"`
}

// Client implements domain.QuestionSource over HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
	rng        domain.Randomizer
	now        func() time.Time
	logger     *zap.Logger
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithClock sets the clock used for the cache-busting timestamp
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates an Open Trivia DB client. rng shuffles the answer options.
func NewClient(baseURL string, timeout time.Duration, rng domain.Randomizer, logger *zap.Logger, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid opentdb base URL %q: %w", baseURL, err)
	}
	if rng == nil {
		return nil, fmt.Errorf("opentdb client requires a randomizer")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		rng:        rng,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchQuestions implements domain.QuestionSource
func (c *Client) FetchQuestions(ctx context.Context, cfg domain.QuizConfig, amount int) ([]domain.RawQuestion, error) {
	reqURL := c.requestURL(cfg, amount)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, domain.NewSourceUnavailableError("failed to build opentdb request", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewSourceUnavailableError("opentdb request failed", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("opentdb response",
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
		zap.Int("category", cfg.CategoryID),
		zap.String("difficulty", string(cfg.Difficulty)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, domain.NewSourceUnavailableError(fmt.Sprintf("opentdb returned status %d", resp.StatusCode), nil)
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, domain.NewSourceUnavailableError("failed to decode opentdb response", err)
	}

	if body.ResponseCode != codeSuccess {
		reason, ok := responseCodeText[body.ResponseCode]
		if !ok {
			reason = "unknown response code"
		}
		return nil, domain.NewSourceUnavailableError(
			fmt.Sprintf("opentdb response code %d: %s", body.ResponseCode, reason), nil)
	}
	if len(body.Results) == 0 {
		return nil, domain.NewSourceUnavailableError("opentdb returned no questions", nil)
	}

	questions := make([]domain.RawQuestion, 0, len(body.Results))
	for i, r := range body.Results {
		q, err := c.toRawQuestion(r)
		if err != nil {
			return nil, domain.NewSourceUnavailableError(fmt.Sprintf("opentdb result %d is malformed", i), err)
		}
		questions = append(questions, q)
	}
	return questions, nil
}

func (c *Client) requestURL(cfg domain.QuizConfig, amount int) string {
	params := url.Values{}
	params.Set("amount", strconv.Itoa(amount))
	params.Set("category", strconv.Itoa(cfg.CategoryID))
	params.Set("difficulty", string(cfg.Difficulty))
	params.Set("type", "multiple")
	params.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
	return c.baseURL + "?" + params.Encode()
}

func (c *Client) toRawQuestion(r apiResult) (domain.RawQuestion, error) {
	if r.Question == "" || r.CorrectAnswer == "" {
		return domain.RawQuestion{}, fmt.Errorf("question or correct answer is empty")
	}
	if len(r.IncorrectAnswers) != domain.OptionsPerQuestion-1 {
		return domain.RawQuestion{}, fmt.Errorf("expected %d incorrect answers, got %d",
			domain.OptionsPerQuestion-1, len(r.IncorrectAnswers))
	}

	correct := html.UnescapeString(r.CorrectAnswer)
	options := make([]string, 0, domain.OptionsPerQuestion)
	for _, a := range r.IncorrectAnswers {
		options = append(options, html.UnescapeString(a))
	}
	options = append(options, correct)

	return domain.RawQuestion{
		Question:      html.UnescapeString(r.Question),
		CorrectAnswer: correct,
		Options:       domain.ShuffleStrings(c.rng, options),
	}, nil
}

// Static assertion to ensure Client implements QuestionSource
var _ domain.QuestionSource = (*Client)(nil)
