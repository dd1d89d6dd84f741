package models

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// AnalysisConfig is the per-call configuration of one analysis. It is read
// once when Analyze starts and never mutated by the core.
type AnalysisConfig struct {
	Endpoint    string  `json:"endpoint"`
	APIKey      string  `json:"api_key,omitempty"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	Language    string  `json:"language"`
	MaxAttempts int     `json:"max_attempts"`
}

// HasAPIKey reports whether requests should carry a bearer token.
func (c AnalysisConfig) HasAPIKey() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// Validate checks the configuration before it is handed to the core.
func (c AnalysisConfig) Validate() error {
	endpoint := strings.TrimSpace(c.Endpoint)
	if endpoint == "" {
		return errors.New("endpoint is required")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid endpoint scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("endpoint has no host")
	}
	if strings.TrimSpace(c.Model) == "" {
		return errors.New("model is required")
	}
	if c.Temperature < 0 || c.Temperature > 1 {
		return fmt.Errorf("temperature %.2f out of range [0,1]", c.Temperature)
	}
	if c.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts must be >= 0, got %d", c.MaxAttempts)
	}
	return nil
}

// Role is the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func SystemMessage(content string) Message    { return Message{Role: RoleSystem, Content: content} }
func UserMessage(content string) Message      { return Message{Role: RoleUser, Content: content} }
func AssistantMessage(content string) Message { return Message{Role: RoleAssistant, Content: content} }

// Conversation is an ordered, append-only message sequence owned by a single
// analysis run.
type Conversation []Message

// Snapshot returns a copy that is safe to hand out after the run ends.
func (c Conversation) Snapshot() Conversation {
	out := make(Conversation, len(c))
	copy(out, c)
	return out
}

type Suggestion struct {
	ImprovedText string `json:"improved_text"`
	Explanation  string `json:"explanation"`
}

// Verdict is the model's judgement. Suggestions is empty when IsNatural is true.
type Verdict struct {
	IsNatural   bool         `json:"natural"`
	Suggestions []Suggestion `json:"suggestions"`
}

// FailureKind tags why an attempt or a whole analysis failed.
type FailureKind string

const (
	FailureTransport        FailureKind = "TRANSPORT_ERROR"
	FailureHTTP             FailureKind = "HTTP_ERROR"
	FailureParse            FailureKind = "PARSE_ERROR"
	FailureInvalidJSON      FailureKind = "INVALID_JSON"
	FailureExhaustedRetries FailureKind = "EXHAUSTED_RETRIES"
	FailureNetwork          FailureKind = "NETWORK_ERROR"
)

// Failure is the terminal failure of an analysis. Conversation is the full
// transcript including every corrective exchange.
type Failure struct {
	Kind         FailureKind  `json:"kind"`
	LastKind     FailureKind  `json:"last_kind,omitempty"`
	Detail       string       `json:"detail,omitempty"`
	Attempts     int          `json:"attempts"`
	Conversation Conversation `json:"conversation"`
}

func (f *Failure) Error() string {
	if f.Detail == "" {
		return fmt.Sprintf("analysis failed: %s after %d attempt(s)", f.Kind, f.Attempts)
	}
	return fmt.Sprintf("analysis failed: %s after %d attempt(s): %s", f.Kind, f.Attempts, f.Detail)
}

// Outcome holds exactly one of Verdict or Failure.
type Outcome struct {
	Verdict *Verdict `json:"verdict,omitempty"`
	Failure *Failure `json:"failure,omitempty"`
}

func Success(v Verdict) Outcome { return Outcome{Verdict: &v} }

func Failed(f Failure) Outcome { return Outcome{Failure: &f} }

func (o Outcome) OK() bool { return o.Verdict != nil && o.Failure == nil }

// CatalogEntry describes one model offered by a provider.
type CatalogEntry struct {
	ID              string  `json:"id"`
	DisplayName     string  `json:"display_name"`
	PromptPrice     *string `json:"prompt_price,omitempty"`
	CompletionPrice *string `json:"completion_price,omitempty"`
}

// ProbeResult is the result of a one-shot connectivity check.
type ProbeResult struct {
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}
