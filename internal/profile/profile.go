package profile

import (
	"errors"
	"strings"

	"github.com/avvvet/naturalcheck/internal/models"
)

var ErrNotFound = errors.New("profile not found")

// Profile is a named set of provider settings.
type Profile struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Endpoint    string  `json:"endpoint"`
	APIKey      string  `json:"api_key,omitempty"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	Language    string  `json:"language"`
	MaxAttempts int     `json:"max_attempts"`
}

// FromConfig builds a profile carrying cfg's settings.
func FromConfig(id, name string, cfg models.AnalysisConfig) Profile {
	return Profile{
		ID:          id,
		Name:        name,
		Endpoint:    cfg.Endpoint,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		Language:    cfg.Language,
		MaxAttempts: cfg.MaxAttempts,
	}
}

func (p Profile) Config() models.AnalysisConfig {
	return models.AnalysisConfig{
		Endpoint:    p.Endpoint,
		APIKey:      p.APIKey,
		Model:       p.Model,
		Temperature: p.Temperature,
		Language:    p.Language,
		MaxAttempts: p.MaxAttempts,
	}
}

func (p Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("profile name is required")
	}
	return p.Config().Validate()
}

// Masked returns a copy safe to display: the API key keeps only its last
// four characters.
func (p Profile) Masked() Profile {
	p.APIKey = MaskKey(p.APIKey)
	return p
}

func MaskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
