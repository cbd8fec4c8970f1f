package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"quiz-session-engine/internal/auth"
	"quiz-session-engine/internal/domain"
)

const (
	untitledQuiz       = "Untitled Quiz"
	missingDescription = "No description provided"
)

// APIError is a non-2xx answer from the catalog.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Sprintf("catalog request failed with status %d", e.StatusCode)
	}
	return e.Message
}

// Client reads quiz definitions from the remote catalog over HTTP, forwarding the
// caller's bearer token.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:8081"
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

// flexID accepts ids encoded as either JSON strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

type optionDTO struct {
	ID         flexID `json:"id"`
	AnswerText string `json:"answerText"`
	IsCorrect  bool   `json:"isCorrect"`
}

type questionDTO struct {
	ID           flexID      `json:"id"`
	QuestionText string      `json:"questionText"`
	Options      []optionDTO `json:"options"`
}

type quizDTO struct {
	ID          flexID        `json:"id"`
	Title       string        `json:"title"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	TimeLimit   int           `json:"timeLimit"`
	Questions   []questionDTO `json:"questions"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *Client) LoadQuiz(ctx context.Context, quizID string) (domain.QuizDefinition, error) {
	var payload quizDTO
	if err := c.doJSON(ctx, "/api/quizzes/"+url.PathEscape(quizID), &payload); err != nil {
		return domain.QuizDefinition{}, err
	}

	def := domain.QuizDefinition{
		ID:          string(payload.ID),
		Title:       titleOf(payload),
		Description: payload.Description,
		TimeLimit:   payload.TimeLimit,
		Questions:   make([]domain.Question, 0, len(payload.Questions)),
	}
	if def.ID == "" {
		def.ID = quizID
	}
	for _, q := range payload.Questions {
		question := domain.Question{ID: string(q.ID), Text: q.QuestionText}
		for _, o := range q.Options {
			question.Options = append(question.Options, domain.Option{
				ID:      string(o.ID),
				Text:    o.AnswerText,
				Correct: o.IsCorrect,
			})
		}
		def.Questions = append(def.Questions, question)
	}
	return def, nil
}

func (c *Client) ListQuizzes(ctx context.Context) ([]domain.QuizSummary, error) {
	var payload []quizDTO
	if err := c.doJSON(ctx, "/api/quizzes/all", &payload); err != nil {
		return nil, err
	}
	out := make([]domain.QuizSummary, 0, len(payload))
	for _, q := range payload {
		description := q.Description
		if description == "" {
			description = missingDescription
		}
		out = append(out, domain.QuizSummary{ID: string(q.ID), Title: titleOf(q), Description: description})
	}
	return out, nil
}

func titleOf(q quizDTO) string {
	switch {
	case q.Title != "":
		return q.Title
	case q.Name != "":
		return q.Name
	default:
		return untitledQuiz
	}
}

func (c *Client) doJSON(ctx context.Context, path string, responseBody any) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	request.Header.Set("Accept", "application/json")
	if identity, ok := auth.FromContext(ctx); ok && identity.Token != "" {
		request.Header.Set("Authorization", "Bearer "+identity.Token)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	defer response.Body.Close()

	if response.StatusCode == http.StatusNotFound {
		return domain.ErrQuizNotFound
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		apiErr := &APIError{StatusCode: response.StatusCode}
		var payload errorResponse
		if err := json.NewDecoder(response.Body).Decode(&payload); err == nil {
			apiErr.Message = strings.TrimSpace(payload.Error)
			if apiErr.Message == "" {
				apiErr.Message = strings.TrimSpace(payload.Message)
			}
		}
		if apiErr.Message == "" {
			apiErr.Message = response.Status
		}
		if IsUnauthorized(apiErr) {
			log.Printf("catalog rejected forwarded credentials for %s: %s", path, apiErr.Message)
		}
		return fmt.Errorf("%w: %w", domain.ErrTransport, apiErr)
	}

	if err := json.NewDecoder(response.Body).Decode(responseBody); err != nil {
		return fmt.Errorf("%w: decode catalog response: %w", domain.ErrInvalidQuiz, err)
	}
	return nil
}

// IsUnauthorized reports whether err came from a 401/403 catalog response.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
}
