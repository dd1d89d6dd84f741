package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/naturalcheck/internal/llm"
	"github.com/avvvet/naturalcheck/internal/memory"
	"github.com/avvvet/naturalcheck/internal/models"
	"github.com/avvvet/naturalcheck/internal/profile"
)

var defaultConfig = models.AnalysisConfig{
	Endpoint:    "https://openrouter.ai/api/v1",
	Model:       "deepseek/deepseek-chat-v3-0324:free",
	Temperature: 0.7,
	Language:    "Japanese",
	MaxAttempts: 3,
}

type fakeAnalyzer struct {
	outcome models.Outcome
	err     error
	gotCfg  models.AnalysisConfig
	gotText string
	calls   int
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, cfg models.AnalysisConfig, text string) (models.Outcome, error) {
	f.calls++
	f.gotCfg = cfg
	f.gotText = text
	return f.outcome, f.err
}

type fakeChat struct {
	content *string
	err     error
}

func (f *fakeChat) Send(ctx context.Context, cfg models.AnalysisConfig, conv models.Conversation) (*llm.ChatCompletionResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatCompletionResponse{
		Choices: []llm.Choice{{Message: llm.ResponseMessage{Role: "assistant", Content: f.content}}},
	}, nil
}

type fakeCatalog struct {
	entries []models.CatalogEntry
	err     error
}

func (f *fakeCatalog) ListModels(ctx context.Context, cfg models.AnalysisConfig) ([]models.CatalogEntry, error) {
	return f.entries, f.err
}

type fakeProfiles map[string]profile.Profile

func (f fakeProfiles) Get(ctx context.Context, id string) (profile.Profile, error) {
	p, ok := f[id]
	if !ok {
		return profile.Profile{}, fmt.Errorf("%w: %s", profile.ErrNotFound, id)
	}
	return p, nil
}

type fakeReports struct {
	saved   []*models.Failure
	texts   map[string]string
	saveErr error
}

func (f *fakeReports) RecordFailure(ctx context.Context, cfg models.AnalysisConfig, failure *models.Failure) (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	f.saved = append(f.saved, failure)
	return "report-1", nil
}

func (f *fakeReports) Render(ctx context.Context, reportID string) (string, error) {
	text, ok := f.texts[reportID]
	if !ok {
		return "", memory.ErrTranscriptNotFound
	}
	return text, nil
}

func newService(deps ServiceDeps) *Service {
	logger, _ := test.NewNullLogger()
	deps.Logger = logger
	deps.Defaults = defaultConfig
	deps.Timeout = time.Second
	return NewService(deps)
}

func strPtr(s string) *string { return &s }

func TestHandleAnalyzeSuccess(t *testing.T) {
	analyzer := &fakeAnalyzer{outcome: models.Success(models.Verdict{IsNatural: true, Suggestions: []models.Suggestion{}})}
	svc := newService(ServiceDeps{Analyzer: analyzer})

	raw := svc.HandleAnalyze(context.Background(), []byte(`{"request_id":"r1","text":"こんにちは"}`))

	var resp models.AnalyzeResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	assert.Equal(t, "r1", resp.RequestID)
	assert.Equal(t, models.StatusOK, resp.Status)
	require.NotNil(t, resp.Verdict)
	assert.True(t, resp.Verdict.IsNatural)
	assert.Nil(t, resp.Failure)
	assert.Equal(t, defaultConfig, analyzer.gotCfg)
	assert.Equal(t, "こんにちは", analyzer.gotText)
}

func TestHandleAnalyzeFailureStoresReport(t *testing.T) {
	failure := models.Failure{
		Kind:         models.FailureExhaustedRetries,
		LastKind:     models.FailureInvalidJSON,
		Attempts:     4,
		Conversation: models.Conversation{models.UserMessage("x")},
	}
	reports := &fakeReports{}
	svc := newService(ServiceDeps{Analyzer: &fakeAnalyzer{outcome: models.Failed(failure)}, Reports: reports})

	raw := svc.HandleAnalyze(context.Background(), []byte(`{"text":"x"}`))

	var resp models.AnalyzeResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	assert.Equal(t, models.StatusFailed, resp.Status)
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, "report-1", resp.ReportID)
	require.NotNil(t, resp.Failure)
	assert.Equal(t, models.FailureExhaustedRetries, resp.Failure.Kind)
	assert.Equal(t, 4, resp.Failure.Attempts)
	require.Len(t, reports.saved, 1)
}

func TestHandleAnalyzeReportSaveFailureStillReplies(t *testing.T) {
	failure := models.Failure{Kind: models.FailureNetwork, Attempts: 1}
	reports := &fakeReports{saveErr: errors.New("redis down")}
	svc := newService(ServiceDeps{Analyzer: &fakeAnalyzer{outcome: models.Failed(failure)}, Reports: reports})

	var resp models.AnalyzeResponse
	require.NoError(t, json.Unmarshal(svc.HandleAnalyze(context.Background(), []byte(`{"text":"x"}`)), &resp))
	assert.Equal(t, models.StatusFailed, resp.Status)
	assert.Empty(t, resp.ReportID)
}

func TestHandleAnalyzeBadRequests(t *testing.T) {
	cases := map[string]string{
		"malformed json":   `{"text":`,
		"blank text":       `{"text":"   "}`,
		"invalid endpoint": `{"text":"x","config":{"endpoint":"ftp://x","model":"m","temperature":0.5}}`,
		"empty model":      `{"text":"x","config":{"endpoint":"https://x","model":"","temperature":0.5}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			analyzer := &fakeAnalyzer{}
			svc := newService(ServiceDeps{Analyzer: analyzer})

			var resp models.AnalyzeResponse
			require.NoError(t, json.Unmarshal(svc.HandleAnalyze(context.Background(), []byte(body)), &resp))
			assert.Equal(t, models.StatusError, resp.Status)
			require.NotNil(t, resp.ErrorCode)
			assert.Equal(t, models.ErrorBadRequest, *resp.ErrorCode)
			assert.Zero(t, analyzer.calls)
		})
	}
}

func TestHandleAnalyzeResolvesProfile(t *testing.T) {
	p := profile.Profile{
		ID: "p1", Name: "local", Endpoint: "http://localhost:11434/v1", Model: "llama3",
		Temperature: 0, Language: "English", MaxAttempts: 1,
	}
	analyzer := &fakeAnalyzer{outcome: models.Success(models.Verdict{IsNatural: true})}
	svc := newService(ServiceDeps{Analyzer: analyzer, Profiles: fakeProfiles{"p1": p}})

	var resp models.AnalyzeResponse
	require.NoError(t, json.Unmarshal(svc.HandleAnalyze(context.Background(), []byte(`{"profile_id":"p1","text":"hi"}`)), &resp))
	assert.Equal(t, models.StatusOK, resp.Status)
	assert.Equal(t, p.Config(), analyzer.gotCfg)

	require.NoError(t, json.Unmarshal(svc.HandleAnalyze(context.Background(), []byte(`{"profile_id":"nope","text":"hi"}`)), &resp))
	assert.Equal(t, models.StatusError, resp.Status)
	assert.Equal(t, models.ErrorProfileNotFound, *resp.ErrorCode)
}

func TestHandleAnalyzeInlineConfigWins(t *testing.T) {
	analyzer := &fakeAnalyzer{outcome: models.Success(models.Verdict{IsNatural: true})}
	svc := newService(ServiceDeps{Analyzer: analyzer, Profiles: fakeProfiles{}})

	body := `{"profile_id":"missing","text":"hi","config":{"endpoint":"https://api.example.com/v1","model":"m","temperature":0.2,"language":"French","max_attempts":0}}`
	var resp models.AnalyzeResponse
	require.NoError(t, json.Unmarshal(svc.HandleAnalyze(context.Background(), []byte(body)), &resp))
	assert.Equal(t, models.StatusOK, resp.Status)
	assert.Equal(t, "French", analyzer.gotCfg.Language)
	assert.Equal(t, 0, analyzer.gotCfg.MaxAttempts)
}

func TestHandleAnalyzeCancelled(t *testing.T) {
	svc := newService(ServiceDeps{Analyzer: &fakeAnalyzer{err: context.DeadlineExceeded}})

	var resp models.AnalyzeResponse
	require.NoError(t, json.Unmarshal(svc.HandleAnalyze(context.Background(), []byte(`{"text":"x"}`)), &resp))
	assert.Equal(t, models.StatusError, resp.Status)
	assert.Equal(t, models.ErrorUpstream, *resp.ErrorCode)
	assert.Nil(t, resp.Failure)
}

func TestHandleProbe(t *testing.T) {
	svc := newService(ServiceDeps{Chat: &fakeChat{content: strPtr("OK")}})
	var resp models.ProbeResponse
	require.NoError(t, json.Unmarshal(svc.HandleProbe(context.Background(), []byte(`{}`)), &resp))
	assert.Equal(t, models.StatusOK, resp.Status)
	require.NotNil(t, resp.Result)
	assert.True(t, resp.Result.OK)

	svc = newService(ServiceDeps{Chat: &fakeChat{err: &llm.HTTPError{StatusCode: 401, Body: "bad key"}}})
	require.NoError(t, json.Unmarshal(svc.HandleProbe(context.Background(), []byte(`{}`)), &resp))
	assert.Equal(t, models.StatusOK, resp.Status)
	assert.False(t, resp.Result.OK)
	assert.Contains(t, resp.Result.Detail, "401")
}

func TestHandleModelsFiltersAndSearches(t *testing.T) {
	catalog := &fakeCatalog{entries: []models.CatalogEntry{
		{ID: "deepseek/deepseek-chat-v3-0324:free", DisplayName: "DeepSeek V3 (free)", PromptPrice: strPtr("0"), CompletionPrice: strPtr("0")},
		{ID: "openai/gpt-4o", DisplayName: "GPT-4o", PromptPrice: strPtr("0.0000025"), CompletionPrice: strPtr("0.00001")},
		{ID: "meta/llama:free", DisplayName: "Llama (free)", PromptPrice: strPtr("0"), CompletionPrice: strPtr("0")},
	}}
	svc := newService(ServiceDeps{Catalog: catalog})

	var resp models.ModelsResponse
	require.NoError(t, json.Unmarshal(svc.HandleModels(context.Background(), []byte(`{}`)), &resp))
	assert.Equal(t, models.StatusOK, resp.Status)
	assert.Len(t, resp.Models, 3)

	require.NoError(t, json.Unmarshal(svc.HandleModels(context.Background(), []byte(`{"free_only":true,"query":"DEEPSEEK"}`)), &resp))
	require.Len(t, resp.Models, 1)
	assert.Equal(t, "deepseek/deepseek-chat-v3-0324:free", resp.Models[0].ID)
}

func TestHandleModelsUpstreamError(t *testing.T) {
	svc := newService(ServiceDeps{Catalog: &fakeCatalog{err: &llm.HTTPError{StatusCode: 500, Body: "boom"}}})

	var resp models.ModelsResponse
	require.NoError(t, json.Unmarshal(svc.HandleModels(context.Background(), []byte(`{}`)), &resp))
	assert.Equal(t, models.StatusError, resp.Status)
	assert.Equal(t, models.ErrorUpstream, *resp.ErrorCode)
}

func TestHandleReport(t *testing.T) {
	reports := &fakeReports{texts: map[string]string{"r1": "Report: r1\n"}}
	svc := newService(ServiceDeps{Reports: reports})

	var resp models.ReportResponse
	require.NoError(t, json.Unmarshal(svc.HandleReport(context.Background(), []byte(`{"report_id":"r1"}`)), &resp))
	assert.Equal(t, models.StatusOK, resp.Status)
	assert.Equal(t, "Report: r1\n", resp.Transcript)

	require.NoError(t, json.Unmarshal(svc.HandleReport(context.Background(), []byte(`{"report_id":"r2"}`)), &resp))
	assert.Equal(t, models.StatusError, resp.Status)
	assert.Equal(t, models.ErrorReportNotFound, *resp.ErrorCode)

	require.NoError(t, json.Unmarshal(svc.HandleReport(context.Background(), []byte(`{}`)), &resp))
	assert.Equal(t, models.ErrorBadRequest, *resp.ErrorCode)
}
