package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/avvvet/naturalcheck/internal/models"
)

// ChatClient defines the interface for chat-completion providers
type ChatClient interface {
	Send(ctx context.Context, cfg models.AnalysisConfig, conv models.Conversation) (*ChatCompletionResponse, error)
}

// ChatCompletionRequest is the wire body sent to {endpoint}/chat/completions.
type ChatCompletionRequest struct {
	Model       string           `json:"model"`
	Messages    []models.Message `json:"messages"`
	Temperature float64          `json:"temperature"`
}

// ChatCompletionResponse is the provider envelope. Only the first choice's
// content is consumed.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
}

type Choice struct {
	Index        int             `json:"index"`
	Message      ResponseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

type ResponseMessage struct {
	Role    string  `json:"role"`
	Content *string `json:"content"`
}

// FirstContent returns the first choice's message content. ok is false when
// there are no choices or the content is null.
func (r *ChatCompletionResponse) FirstContent() (content string, ok bool) {
	if r == nil || len(r.Choices) == 0 || r.Choices[0].Message.Content == nil {
		return "", false
	}
	return *r.Choices[0].Message.Content, true
}

var (
	// ErrAuth matches HTTP errors caused by a rejected or missing API key.
	ErrAuth = errors.New("authentication failed")

	// ErrMalformedResponse indicates a 2xx reply whose envelope could not be decoded.
	ErrMalformedResponse = errors.New("malformed chat completion response")

	// ErrNoContent means the reply had no choices or a null message content.
	ErrNoContent = errors.New("response contained no message content")
)

// TransportError is a network-level failure: DNS, dial, TLS, timeout or
// connection reset. No HTTP status was received.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPError is a non-2xx response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	body := strings.TrimSpace(e.Body)
	const max = 512
	if len(body) > max {
		cut := max
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut] + "..."
	}
	if body == "" {
		return fmt.Sprintf("http %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, body)
}

// Is makes errors.Is(err, ErrAuth) hold for 401 and 403.
func (e *HTTPError) Is(target error) bool {
	return target == ErrAuth &&
		(e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden)
}
