package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/avvvet/naturalcheck/internal/llm"
	"github.com/avvvet/naturalcheck/internal/memory"
	"github.com/avvvet/naturalcheck/internal/models"
	"github.com/avvvet/naturalcheck/internal/profile"
)

type Analyzer interface {
	Analyze(ctx context.Context, cfg models.AnalysisConfig, text string) (models.Outcome, error)
}

type CatalogLister interface {
	ListModels(ctx context.Context, cfg models.AnalysisConfig) ([]models.CatalogEntry, error)
}

type ProfileGetter interface {
	Get(ctx context.Context, id string) (profile.Profile, error)
}

type Reporter interface {
	RecordFailure(ctx context.Context, cfg models.AnalysisConfig, failure *models.Failure) (string, error)
	Render(ctx context.Context, reportID string) (string, error)
}

// Service turns request payloads into response payloads. It has no NATS
// dependency so every handler can be exercised directly.
type Service struct {
	analyzer Analyzer
	chat     llm.ChatClient
	catalog  CatalogLister
	profiles ProfileGetter
	reports  Reporter
	defaults models.AnalysisConfig
	timeout  time.Duration
	log      logrus.FieldLogger
}

type ServiceDeps struct {
	Analyzer Analyzer
	Chat     llm.ChatClient
	Catalog  CatalogLister
	Profiles ProfileGetter
	Reports  Reporter
	Defaults models.AnalysisConfig
	Timeout  time.Duration
	Logger   logrus.FieldLogger
}

func NewService(deps ServiceDeps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		analyzer: deps.Analyzer,
		chat:     deps.Chat,
		catalog:  deps.Catalog,
		profiles: deps.Profiles,
		reports:  deps.Reports,
		defaults: deps.Defaults,
		timeout:  deps.Timeout,
		log:      logger,
	}
}

// requestError carries an error code for the reply envelope.
type requestError struct {
	code string
	msg  string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) *requestError {
	return &requestError{code: models.ErrorBadRequest, msg: fmt.Sprintf(format, args...)}
}

func codeFor(err error) (string, string) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		return reqErr.code, reqErr.msg
	}
	return models.ErrorInternal, err.Error()
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// resolveConfig picks the inline config, then the named profile, then the
// service default, and validates the result.
func (s *Service) resolveConfig(ctx context.Context, profileID string, inline *models.AnalysisConfig) (models.AnalysisConfig, error) {
	var cfg models.AnalysisConfig
	switch {
	case inline != nil:
		cfg = *inline
	case profileID != "":
		if s.profiles == nil {
			return cfg, &requestError{code: models.ErrorProfileNotFound, msg: "profiles are not available"}
		}
		p, err := s.profiles.Get(ctx, profileID)
		if errors.Is(err, profile.ErrNotFound) {
			return cfg, &requestError{code: models.ErrorProfileNotFound, msg: err.Error()}
		}
		if err != nil {
			return cfg, fmt.Errorf("failed to load profile: %w", err)
		}
		cfg = p.Config()
	default:
		cfg = s.defaults
	}
	if err := cfg.Validate(); err != nil {
		return cfg, badRequest("invalid configuration: %v", err)
	}
	return cfg, nil
}

func (s *Service) HandleAnalyze(ctx context.Context, data []byte) []byte {
	var req models.AnalyzeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.log.WithError(err).Warn("Error parsing analyze request")
		return s.analyzeError("", badRequest("invalid request format"))
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	logger := s.log.WithField("request_id", req.RequestID)

	if strings.TrimSpace(req.Text) == "" {
		return s.analyzeError(req.RequestID, badRequest("text is required"))
	}
	cfg, err := s.resolveConfig(ctx, req.ProfileID, req.Config)
	if err != nil {
		logger.WithError(err).Warn("Rejected analyze request")
		return s.analyzeError(req.RequestID, err)
	}

	logger.WithField("model", cfg.Model).Info("Processing analyze request")

	actx, cancel := s.withTimeout(ctx)
	defer cancel()

	outcome, err := s.analyzer.Analyze(actx, cfg, req.Text)
	if err != nil {
		logger.WithError(err).Warn("Analysis cancelled")
		return s.analyzeError(req.RequestID, &requestError{code: models.ErrorUpstream, msg: err.Error()})
	}

	resp := models.AnalyzeResponse{RequestID: req.RequestID}
	if outcome.OK() {
		resp.Status = models.StatusOK
		resp.Verdict = outcome.Verdict
		return encode(resp)
	}

	resp.Status = models.StatusFailed
	resp.Failure = outcome.Failure
	if s.reports != nil {
		// the report is stored with a fresh context so a timed-out analysis still gets one
		sctx, scancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer scancel()
		reportID, err := s.reports.RecordFailure(sctx, cfg, outcome.Failure)
		if err != nil {
			logger.WithError(err).Error("Failed to save failure transcript")
		} else {
			resp.ReportID = reportID
		}
	}
	return encode(resp)
}

func (s *Service) analyzeError(requestID string, err error) []byte {
	code, msg := codeFor(err)
	return encode(models.AnalyzeResponse{
		RequestID:    requestID,
		Status:       models.StatusError,
		ErrorCode:    &code,
		ErrorMessage: &msg,
	})
}

func (s *Service) HandleProbe(ctx context.Context, data []byte) []byte {
	var req models.ConfigRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return probeError(badRequest("invalid request format"))
	}
	cfg, err := s.resolveConfig(ctx, req.ProfileID, req.Config)
	if err != nil {
		return probeError(err)
	}

	pctx, cancel := s.withTimeout(ctx)
	defer cancel()

	result := llm.ProbeConnection(pctx, s.chat, cfg)
	s.log.WithFields(logrus.Fields{"model": cfg.Model, "ok": result.OK}).Info("Connection probe finished")
	return encode(models.ProbeResponse{Status: models.StatusOK, Result: &result})
}

func probeError(err error) []byte {
	code, msg := codeFor(err)
	return encode(models.ProbeResponse{Status: models.StatusError, ErrorCode: &code, ErrorMessage: &msg})
}

func (s *Service) HandleModels(ctx context.Context, data []byte) []byte {
	var req models.ConfigRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return modelsError(badRequest("invalid request format"))
	}
	cfg, err := s.resolveConfig(ctx, req.ProfileID, req.Config)
	if err != nil {
		return modelsError(err)
	}

	mctx, cancel := s.withTimeout(ctx)
	defer cancel()

	entries, err := s.catalog.ListModels(mctx, cfg)
	if err != nil {
		s.log.WithError(err).Warn("Model catalog fetch failed")
		return modelsError(&requestError{code: models.ErrorUpstream, msg: err.Error()})
	}
	if req.FreeOnly {
		entries = llm.FilterFree(entries)
	}
	entries = llm.SearchCatalog(entries, req.Query)
	if entries == nil {
		entries = []models.CatalogEntry{}
	}
	return encode(models.ModelsResponse{Status: models.StatusOK, Models: entries})
}

func modelsError(err error) []byte {
	code, msg := codeFor(err)
	return encode(models.ModelsResponse{Status: models.StatusError, ErrorCode: &code, ErrorMessage: &msg})
}

func (s *Service) HandleReport(ctx context.Context, data []byte) []byte {
	var req models.ReportRequest
	if err := json.Unmarshal(data, &req); err != nil || req.ReportID == "" {
		return reportError(badRequest("report_id is required"))
	}
	if s.reports == nil {
		return reportError(&requestError{code: models.ErrorReportNotFound, msg: "reports are not available"})
	}

	text, err := s.reports.Render(ctx, req.ReportID)
	if errors.Is(err, memory.ErrTranscriptNotFound) {
		return reportError(&requestError{code: models.ErrorReportNotFound, msg: err.Error()})
	}
	if err != nil {
		s.log.WithError(err).Error("Failed to render transcript")
		return reportError(err)
	}
	return encode(models.ReportResponse{Status: models.StatusOK, Transcript: text})
}

func reportError(err error) []byte {
	code, msg := codeFor(err)
	return encode(models.ReportResponse{Status: models.StatusError, ErrorCode: &code, ErrorMessage: &msg})
}

func encode(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// only reachable with unsupported float values in a verdict
		return []byte(fmt.Sprintf(`{"status":%q,"error_code":%q}`, models.StatusError, models.ErrorInternal))
	}
	return data
}
