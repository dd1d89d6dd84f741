package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/avvvet/naturalcheck/internal/models"
)

// modelsResponse is the body of GET {endpoint}/models.
type modelsResponse struct {
	Data []struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Pricing *struct {
			Prompt     *string `json:"prompt"`
			Completion *string `json:"completion"`
		} `json:"pricing"`
	} `json:"data"`
}

// ListModels fetches the provider's model list. Every call issues a new
// request; nothing is cached. The API key is sent when configured.
func (c *HTTPClient) ListModels(ctx context.Context, cfg models.AnalysisConfig) ([]models.CatalogEntry, error) {
	endpoint, err := JoinEndpoint(cfg.Endpoint, ModelsPath)
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, http.MethodGet, endpoint, bearerToken(cfg), nil)
	if err != nil {
		return nil, err
	}

	var resp modelsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse models response: %w", err)
	}

	entries := make([]models.CatalogEntry, 0, len(resp.Data))
	for _, m := range resp.Data {
		entry := models.CatalogEntry{
			ID:          m.ID,
			DisplayName: strings.TrimSpace(m.Name),
		}
		if entry.DisplayName == "" {
			entry.DisplayName = m.ID
		}
		if m.Pricing != nil {
			entry.PromptPrice = m.Pricing.Prompt
			entry.CompletionPrice = m.Pricing.Completion
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// FilterFree keeps entries whose prompt and completion prices are both zero.
func FilterFree(entries []models.CatalogEntry) []models.CatalogEntry {
	out := make([]models.CatalogEntry, 0, len(entries))
	for _, e := range entries {
		if isZeroPrice(e.PromptPrice) && isZeroPrice(e.CompletionPrice) {
			out = append(out, e)
		}
	}
	return out
}

func isZeroPrice(p *string) bool {
	if p == nil {
		return false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(*p), 64)
	return err == nil && v == 0
}

// SearchCatalog matches query case-insensitively against id and display name.
// An empty query returns entries unchanged.
func SearchCatalog(entries []models.CatalogEntry, query string) []models.CatalogEntry {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return entries
	}
	out := make([]models.CatalogEntry, 0, len(entries))
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.ID), query) ||
			strings.Contains(strings.ToLower(e.DisplayName), query) {
			out = append(out, e)
		}
	}
	return out
}
