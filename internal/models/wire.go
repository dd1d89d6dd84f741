package models

// NATS request for an analysis. Either ProfileID or Config selects the
// provider settings; Config wins when both are set.
type AnalyzeRequest struct {
	RequestID string          `json:"request_id,omitempty"`
	ProfileID string          `json:"profile_id,omitempty"`
	Config    *AnalysisConfig `json:"config,omitempty"`
	Text      string          `json:"text"`
}

// NATS response for an analysis
type AnalyzeResponse struct {
	RequestID    string   `json:"request_id"`
	Status       string   `json:"status"` // "OK", "FAILED", "ERROR"
	Verdict      *Verdict `json:"verdict,omitempty"`
	Failure      *Failure `json:"failure,omitempty"`
	ReportID     string   `json:"report_id,omitempty"`
	ErrorCode    *string  `json:"error_code,omitempty"`
	ErrorMessage *string  `json:"error_message,omitempty"`
}

// ConfigRequest is used by the probe and models subjects.
type ConfigRequest struct {
	ProfileID string          `json:"profile_id,omitempty"`
	Config    *AnalysisConfig `json:"config,omitempty"`
	FreeOnly  bool            `json:"free_only,omitempty"`
	Query     string          `json:"query,omitempty"`
}

type ProbeResponse struct {
	Status       string       `json:"status"`
	Result       *ProbeResult `json:"result,omitempty"`
	ErrorCode    *string      `json:"error_code,omitempty"`
	ErrorMessage *string      `json:"error_message,omitempty"`
}

type ModelsResponse struct {
	Status       string         `json:"status"`
	Models       []CatalogEntry `json:"models,omitempty"`
	ErrorCode    *string        `json:"error_code,omitempty"`
	ErrorMessage *string        `json:"error_message,omitempty"`
}

type ReportRequest struct {
	ReportID string `json:"report_id"`
}

type ReportResponse struct {
	Status       string  `json:"status"`
	Transcript   string  `json:"transcript,omitempty"`
	ErrorCode    *string `json:"error_code,omitempty"`
	ErrorMessage *string `json:"error_message,omitempty"`
}

// Status constants
const (
	StatusOK     = "OK"
	StatusFailed = "FAILED"
	StatusError  = "ERROR"
)

// Error codes
const (
	ErrorBadRequest      = "BAD_REQUEST"
	ErrorProfileNotFound = "PROFILE_NOT_FOUND"
	ErrorReportNotFound  = "REPORT_NOT_FOUND"
	ErrorUpstream        = "UPSTREAM_FAILED"
	ErrorInternal        = "INTERNAL_ERROR"
)
