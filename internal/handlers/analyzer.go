package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/avvvet/naturalcheck/internal/llm"
	"github.com/avvvet/naturalcheck/internal/models"
	"github.com/avvvet/naturalcheck/internal/prompts"
)

// DefaultRetryDelay is the pause between attempts.
const DefaultRetryDelay = 500 * time.Millisecond

// Analyzer runs the correction loop: it sends the conversation, and on an
// invalid reply feeds the reply back with a correction request, up to
// MaxAttempts+1 tries. It keeps no per-call state.
type Analyzer struct {
	client     llm.ChatClient
	log        logrus.FieldLogger
	retryDelay time.Duration
}

type Option func(*Analyzer)

// WithRetryDelay overrides the pause between attempts (0 disables it).
func WithRetryDelay(d time.Duration) Option {
	return func(a *Analyzer) {
		if d >= 0 {
			a.retryDelay = d
		}
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(a *Analyzer) {
		if logger != nil {
			a.log = logger
		}
	}
}

func NewAnalyzer(client llm.ChatClient, opts ...Option) *Analyzer {
	a := &Analyzer{
		client:     client,
		log:        logrus.StandardLogger(),
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// analysisState is owned by one Analyze call and threaded through each attempt.
type analysisState struct {
	conversation models.Conversation
	attempt      int
	lastKind     models.FailureKind
	lastErr      error
}

func (s *analysisState) record(kind models.FailureKind, err error) {
	s.lastKind = kind
	s.lastErr = err
}

func (s *analysisState) failure(kind models.FailureKind) models.Outcome {
	f := models.Failure{
		Kind:         kind,
		LastKind:     s.lastKind,
		Attempts:     s.attempt + 1,
		Conversation: s.conversation.Snapshot(),
	}
	if s.lastErr != nil {
		f.Detail = s.lastErr.Error()
	}
	return models.Failed(f)
}

// attemptResult says what the loop does after one attempt.
type attemptResult int

const (
	attemptRetry attemptResult = iota
	attemptSucceeded
	attemptAbort
)

// Analyze checks text for naturalness with the model configured in cfg.
//
// The returned error is non-nil only when ctx is cancelled; the outcome is
// then discarded. Every other failure is reported through Outcome.Failure.
func (a *Analyzer) Analyze(ctx context.Context, cfg models.AnalysisConfig, text string) (models.Outcome, error) {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 0 {
		maxAttempts = 0
	}
	state := &analysisState{
		conversation: prompts.InitialConversation(text, cfg.Language),
	}
	logger := a.log.WithFields(logrus.Fields{
		"model":        cfg.Model,
		"max_attempts": maxAttempts,
	})

	for state.attempt = 0; state.attempt <= maxAttempts; state.attempt++ {
		if state.attempt > 0 {
			if err := a.wait(ctx); err != nil {
				return models.Outcome{}, err
			}
		}

		verdict, result := a.runAttempt(ctx, cfg, state)
		if err := ctx.Err(); err != nil {
			return models.Outcome{}, err
		}

		switch result {
		case attemptSucceeded:
			logger.WithField("attempts", state.attempt+1).Info("Analysis succeeded")
			return models.Success(verdict), nil
		case attemptAbort:
			logger.WithError(state.lastErr).Warn("Analysis aborted on network error")
			return state.failure(models.FailureNetwork), nil
		}
		logger.WithFields(logrus.Fields{
			"attempt": state.attempt + 1,
			"kind":    state.lastKind,
		}).WithError(state.lastErr).Debug("Attempt failed")
	}

	// the loop leaves attempt one past the last try
	state.attempt = maxAttempts
	logger.WithField("last_kind", state.lastKind).Warn("Analysis exhausted retries")
	return state.failure(models.FailureExhaustedRetries), nil
}

// runAttempt performs one request/response cycle and updates state.
func (a *Analyzer) runAttempt(ctx context.Context, cfg models.AnalysisConfig, state *analysisState) (models.Verdict, attemptResult) {
	resp, err := a.client.Send(ctx, cfg, state.conversation)
	if err != nil {
		var transportErr *llm.TransportError
		var httpErr *llm.HTTPError
		switch {
		case errors.As(err, &transportErr):
			state.record(models.FailureTransport, err)
			return models.Verdict{}, attemptAbort
		case errors.As(err, &httpErr):
			state.record(models.FailureHTTP, err)
		default:
			state.record(models.FailureParse, err)
		}
		return models.Verdict{}, attemptRetry
	}

	content, ok := resp.FirstContent()
	if !ok {
		state.record(models.FailureParse, llm.ErrNoContent)
		return models.Verdict{}, attemptRetry
	}

	verdict, err := prompts.DecodeVerdict(prompts.ExtractJSON(content))
	if err == nil {
		return verdict, attemptSucceeded
	}

	reply := content
	if strings.TrimSpace(reply) == "" {
		reply = prompts.NoContentPlaceholder
	}
	state.conversation = append(state.conversation,
		models.AssistantMessage(reply),
		models.UserMessage(prompts.CorrectionPrompt),
	)
	state.record(models.FailureInvalidJSON, err)
	return models.Verdict{}, attemptRetry
}

func (a *Analyzer) wait(ctx context.Context) error {
	if a.retryDelay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(a.retryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
