package llm

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

const maxTracedBody = 64 * 1024

// traceTransport logs requests and responses at debug level. The
// Authorization header is replaced by a fingerprint before logging.
type traceTransport struct {
	next http.RoundTripper
	log  logrus.FieldLogger
}

func (t *traceTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var reqBody []byte
	if req.GetBody != nil {
		if rc, err := req.GetBody(); err == nil {
			reqBody, _ = io.ReadAll(io.LimitReader(rc, maxTracedBody+1))
			rc.Close()
		}
	}
	t.log.WithFields(logrus.Fields{
		"method":  req.Method,
		"url":     req.URL.String(),
		"headers": redactHeaders(req.Header),
		"body":    truncate(reqBody),
	}).Debug("LLM request")

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		t.log.WithFields(logrus.Fields{
			"method": req.Method,
			"url":    req.URL.String(),
		}).WithError(err).Debug("LLM request failed")
		return nil, err
	}

	respBody, err := peekBody(&resp.Body)
	if err != nil {
		resp.Body.Close()
		return nil, err
	}
	t.log.WithFields(logrus.Fields{
		"method":  req.Method,
		"url":     req.URL.String(),
		"status":  resp.StatusCode,
		"headers": redactHeaders(resp.Header),
		"body":    truncate(respBody),
	}).Debug("LLM response")
	return resp, nil
}

// peekBody reads at most maxTracedBody+1 bytes of *body and replaces it
// with a reader that yields those bytes followed by the unread remainder,
// so size limits downstream still see the whole stream.
func peekBody(body *io.ReadCloser) ([]byte, error) {
	if *body == nil || *body == http.NoBody {
		return nil, nil
	}
	orig := *body
	data, err := io.ReadAll(io.LimitReader(orig, maxTracedBody+1))
	if err != nil {
		return nil, err
	}
	*body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(data), orig), orig}
	return data, nil
}

func redactHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if strings.EqualFold(k, "Authorization") {
			out[k] = redactAuthorization(strings.Join(v, ","))
			continue
		}
		out[k] = strings.Join(v, ",")
	}
	return out
}

// redactAuthorization never returns any fragment of the credential.
func redactAuthorization(value string) string {
	token := strings.TrimSpace(strings.TrimPrefix(value, "Bearer "))
	if token == "" {
		return "[REDACTED]"
	}
	return "Bearer [REDACTED fingerprint=" + KeyFingerprint(token) + "]"
}

// KeyFingerprint is a short sha256 prefix that identifies a key without exposing it.
func KeyFingerprint(key string) string {
	if key == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:4])
}

func truncate(body []byte) string {
	if len(body) > maxTracedBody {
		return string(body[:maxTracedBody]) + "...(truncated)"
	}
	return string(body)
}
