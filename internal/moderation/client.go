// Package moderation is a thin gateway over the external text-analysis
// service. The service is a black box with a fixed contract; the gateway
// fails closed, so a submission is never stored unmoderated.
package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	appErrors "github.com/noah-isme/campus-voice-api/pkg/errors"
)

// Verdict is the structured moderation outcome for one submission.
type Verdict struct {
	IsAppropriate bool   `json:"is_appropriate"`
	RewrittenText string `json:"rewritten_text"`
	UrgencyScore  int    `json:"urgency_score"`
	Summary       string `json:"summary"`
}

// Client calls the moderation service over HTTP.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// NewClient builds a moderation client with a bounded timeout. The timeout is
// the total budget for one submission's moderation call; expiry aborts the
// whole submission.
func NewClient(baseURL, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Moderate sends raw submission text for analysis and returns the verdict.
// Any transport, timeout, status, or parse failure maps to
// ErrModerationUnavailable; the caller must not create an issue in that case.
func (c *Client) Moderate(ctx context.Context, rawText string) (*Verdict, error) {
	reqBody := generateRequest{
		Model:  c.model,
		Prompt: buildPrompt(rawText),
		Stream: false,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to marshal moderation request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build moderation request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrModerationUnavailable.Code, appErrors.ErrModerationUnavailable.Status, "moderation request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, appErrors.Wrap(
			fmt.Errorf("moderation service returned status %d: %s", resp.StatusCode, string(body)),
			appErrors.ErrModerationUnavailable.Code, appErrors.ErrModerationUnavailable.Status, "moderation service error")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrModerationUnavailable.Code, appErrors.ErrModerationUnavailable.Status, "failed to read moderation response")
	}

	var genResp generateResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrModerationUnavailable.Code, appErrors.ErrModerationUnavailable.Status, "malformed moderation response")
	}

	verdictJSON, err := extractJSON(genResp.Response)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrModerationUnavailable.Code, appErrors.ErrModerationUnavailable.Status, "no verdict in moderation response")
	}

	var verdict Verdict
	if err := json.Unmarshal([]byte(verdictJSON), &verdict); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrModerationUnavailable.Code, appErrors.ErrModerationUnavailable.Status, "malformed moderation verdict")
	}

	if verdict.UrgencyScore < 0 {
		verdict.UrgencyScore = 0
	}
	if verdict.UrgencyScore > 100 {
		verdict.UrgencyScore = 100
	}
	if verdict.RewrittenText == "" {
		verdict.RewrittenText = rawText
	}
	if verdict.Summary == "" {
		verdict.Summary = truncate(verdict.RewrittenText, 100)
	}

	return &verdict, nil
}

func buildPrompt(text string) string {
	return fmt.Sprintf(`You are a moderation assistant for a campus grievance platform. Check the feedback for abuse, threats, or inappropriate content and rewrite it in a neutral professional tone.

Feedback: %q

Respond ONLY with a valid JSON object containing:
1. is_appropriate: boolean (false if the text contains abuse or threats)
2. rewritten_text: neutral professional version of the feedback
3. urgency_score: integer 0-100 based on severity
4. summary: brief summary of at most ten words`, text)
}

// extractJSON pulls the first JSON object out of a model reply that may wrap
// it in markdown fences or prose.
func extractJSON(response string) (string, error) {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	response = strings.TrimSpace(response)

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("no JSON object found in response")
	}

	candidate := response[start : end+1]
	var js json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &js); err != nil {
		return "", fmt.Errorf("extracted text is not valid JSON: %w", err)
	}
	return candidate, nil
}

// truncate cuts s to at most n runes so the fallback summary never splits a
// multibyte character.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
