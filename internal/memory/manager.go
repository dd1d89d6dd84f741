package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/memory"

	"github.com/avvvet/naturalcheck/internal/models"
)

// Manager records failed analyses as bug-report transcripts and renders
// them back as plain text.
type Manager struct {
	store Store
	log   logrus.FieldLogger
	now   func() time.Time
}

func NewManager(store Store, logger logrus.FieldLogger) *Manager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Manager{
		store: store,
		log:   logger,
		now:   time.Now,
	}
}

// RecordFailure stores the failure's conversation under a new report id.
// The API key is never part of the record.
func (m *Manager) RecordFailure(ctx context.Context, cfg models.AnalysisConfig, failure *models.Failure) (string, error) {
	if failure == nil {
		return "", fmt.Errorf("no failure to record")
	}

	t := &Transcript{
		ID:          uuid.NewString(),
		Model:       cfg.Model,
		Endpoint:    cfg.Endpoint,
		Language:    cfg.Language,
		FailureKind: failure.Kind,
		LastKind:    failure.LastKind,
		Detail:      failure.Detail,
		Attempts:    failure.Attempts,
		Messages:    failure.Conversation.Snapshot(),
		CreatedAt:   m.now().UTC(),
	}
	if err := m.store.SaveTranscript(ctx, t); err != nil {
		return "", err
	}

	m.log.WithFields(logrus.Fields{
		"report_id": t.ID,
		"kind":      t.FailureKind,
		"messages":  len(t.Messages),
	}).Info("Saved failure transcript")
	return t.ID, nil
}

func (m *Manager) Load(ctx context.Context, reportID string) (*Transcript, error) {
	if _, err := uuid.Parse(reportID); err != nil {
		return nil, fmt.Errorf("%w: invalid report id %q", ErrTranscriptNotFound, reportID)
	}
	return m.store.LoadTranscript(ctx, reportID)
}

// Render loads a transcript and formats it for a bug report.
func (m *Manager) Render(ctx context.Context, reportID string) (string, error) {
	t, err := m.Load(ctx, reportID)
	if err != nil {
		return "", err
	}
	return FormatTranscript(ctx, t)
}

// Discard deletes a transcript. Unknown or expired ids report
// ErrTranscriptNotFound.
func (m *Manager) Discard(ctx context.Context, reportID string) error {
	exists, err := m.store.TranscriptExists(ctx, reportID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrTranscriptNotFound, reportID)
	}
	if err := m.store.DeleteTranscript(ctx, reportID); err != nil {
		return err
	}
	m.log.WithField("report_id", reportID).Info("Discarded failure transcript")
	return nil
}

// FormatTranscript renders a header followed by one role-prefixed block per
// message, in conversation order.
func FormatTranscript(ctx context.Context, t *Transcript) (string, error) {
	buf, err := loadBuffer(ctx, t.Messages)
	if err != nil {
		return "", err
	}
	messages, err := buf.ChatHistory.Messages(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get messages: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Report: %s\n", t.ID)
	fmt.Fprintf(&b, "Created: %s\n", t.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Endpoint: %s\n", t.Endpoint)
	fmt.Fprintf(&b, "Model: %s\n", t.Model)
	if t.Language != "" {
		fmt.Fprintf(&b, "Language: %s\n", t.Language)
	}
	fmt.Fprintf(&b, "Failure: %s", t.FailureKind)
	if t.LastKind != "" && t.LastKind != t.FailureKind {
		fmt.Fprintf(&b, " (last: %s)", t.LastKind)
	}
	fmt.Fprintf(&b, " after %d attempt(s)\n", t.Attempts)
	if t.Detail != "" {
		fmt.Fprintf(&b, "Detail: %s\n", t.Detail)
	}
	b.WriteString("\n")

	if len(messages) == 0 {
		b.WriteString("No conversation recorded.\n")
		return b.String(), nil
	}
	for _, msg := range messages {
		switch m := msg.(type) {
		case schema.HumanChatMessage:
			fmt.Fprintf(&b, "User: %s\n", m.Content)
		case schema.AIChatMessage:
			fmt.Fprintf(&b, "Assistant: %s\n", m.Content)
		case schema.SystemChatMessage:
			fmt.Fprintf(&b, "System: %s\n", m.Content)
		}
	}
	return b.String(), nil
}

func loadBuffer(ctx context.Context, conv models.Conversation) (*memory.ConversationBuffer, error) {
	buf := memory.NewConversationBuffer()
	for _, msg := range conv {
		var chatMsg schema.ChatMessage

		switch msg.Role {
		case models.RoleUser:
			chatMsg = schema.HumanChatMessage{Content: msg.Content}
		case models.RoleAssistant:
			chatMsg = schema.AIChatMessage{Content: msg.Content}
		case models.RoleSystem:
			chatMsg = schema.SystemChatMessage{Content: msg.Content}
		default:
			continue
		}

		if err := buf.ChatHistory.AddMessage(ctx, chatMsg); err != nil {
			return nil, fmt.Errorf("failed to add message to buffer: %w", err)
		}
	}
	return buf, nil
}
