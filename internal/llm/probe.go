package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/avvvet/naturalcheck/internal/models"
)

const (
	probeSystemMessage = "You are a helpful assistant."
	probeUserMessage   = "This is a test. OK?"
)

// ProbeConnection sends one fixed conversation through client and reports
// whether the configuration works. It never retries and never returns an
// error; a cancelled ctx shows up as a failed probe.
func ProbeConnection(ctx context.Context, client ChatClient, cfg models.AnalysisConfig) models.ProbeResult {
	conv := models.Conversation{
		models.SystemMessage(probeSystemMessage),
		models.UserMessage(probeUserMessage),
	}
	resp, err := client.Send(ctx, cfg, conv)
	if err != nil {
		return models.ProbeResult{OK: false, Detail: describeProbeError(err)}
	}
	if _, ok := resp.FirstContent(); !ok {
		return models.ProbeResult{OK: false, Detail: ErrNoContent.Error()}
	}
	return models.ProbeResult{OK: true}
}

func describeProbeError(err error) string {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		detail := fmt.Sprintf("HTTP %d: %s", httpErr.StatusCode, httpErr.Body)
		if errors.Is(err, ErrAuth) {
			detail += " (check the API key)"
		}
		return detail
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return fmt.Sprintf("%T: %v", transportErr.Err, transportErr.Err)
	}
	return fmt.Sprintf("%T: %v", err, err)
}
