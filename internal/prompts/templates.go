package prompts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"

	"github.com/avvvet/naturalcheck/internal/models"
)

const systemTemplate = `You are a %s language naturalness checker. When given text, check if it sounds natural to native speakers of %s. You always answer with a single JSON object and nothing else.`

const userTemplate = `Check whether the following %s text sounds natural to a native speaker.

If it sounds natural, respond:

{ "natural": true, "suggestions": [] }

If it could be improved, respond:

{ "natural": false, "suggestions": [ { "improved_text": "A more natural version of the text", "explanation": "Explain briefly why this is better." } ] }

Respond only with pure JSON. No explanation outside the JSON.

You absolutely MUST NOT respond in any other way.

Here is the text to check:
%s`

// CorrectionPrompt is appended as a user turn after an invalid reply.
const CorrectionPrompt = "Your response is not valid. Please try again and make sure to reply with valid JSON as instructed."

// NoContentPlaceholder stands in for an empty assistant reply in the transcript.
const NoContentPlaceholder = "No response content"

// BuildSystemMessage returns the system turn for the target language.
func BuildSystemMessage(language string) string {
	return fmt.Sprintf(systemTemplate, language, language)
}

// BuildUserPrompt embeds text verbatim after the output instructions.
func BuildUserPrompt(text, language string) string {
	return fmt.Sprintf(userTemplate, language, text)
}

// InitialConversation is the system + user pair every analysis starts from.
func InitialConversation(text, language string) models.Conversation {
	return models.Conversation{
		models.SystemMessage(BuildSystemMessage(language)),
		models.UserMessage(BuildUserPrompt(text, language)),
	}
}

var fencedJSON = regexp.MustCompile("(?is)```json\\s*(.*?)\\s*```")

// ExtractJSON returns the interior of the first ```json fenced block, or the
// raw text unchanged when there is none. Well-formedness is not checked here.
func ExtractJSON(raw string) string {
	if m := fencedJSON.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return raw
}

var (
	ErrMissingNatural   = errors.New("verdict: missing \"natural\" field")
	ErrNaturalWithFixes = errors.New("verdict: natural text must not carry suggestions")
)

type verdictPayload struct {
	Natural     *bool               `json:"natural"`
	Suggestions []models.Suggestion `json:"suggestions"`
}

// DecodeVerdict parses payload into a Verdict and rejects shapes the prompt
// does not allow. Any error here means the reply needs correcting.
func DecodeVerdict(payload string) (models.Verdict, error) {
	var p verdictPayload
	dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
	if err := dec.Decode(&p); err != nil {
		return models.Verdict{}, fmt.Errorf("failed to parse JSON: %w", err)
	}
	// only whitespace may follow the object
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return models.Verdict{}, errors.New("failed to parse JSON: trailing data after object")
	}
	if p.Natural == nil {
		return models.Verdict{}, ErrMissingNatural
	}
	if *p.Natural && len(p.Suggestions) > 0 {
		return models.Verdict{}, ErrNaturalWithFixes
	}
	if p.Suggestions == nil {
		p.Suggestions = []models.Suggestion{}
	}
	return models.Verdict{IsNatural: *p.Natural, Suggestions: p.Suggestions}, nil
}
