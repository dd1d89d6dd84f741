package llm

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	ChatCompletionsPath = "chat/completions"
	ModelsPath          = "models"
)

// JoinEndpoint appends path to the configured base URL. Trailing slashes on
// base and leading slashes on path are normalized, and any version segment
// already in base (e.g. /v1, /api/v1) is preserved.
func JoinEndpoint(base, path string) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return "", fmt.Errorf("build url: empty base")
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("build url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("build url: %q is not absolute", base)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	path = strings.Trim(path, "/")
	if path == "" {
		return u.String(), nil
	}
	return u.JoinPath(path).String(), nil
}
