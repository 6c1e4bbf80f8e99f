// Package ai talks to an OpenAI-compatible chat-completions API for draft
// parsing, subject suggestion and reply generation. The provider is an
// external collaborator; this client stays deliberately thin.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Client is an OpenAI-compatible chat completions client
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// Draft is a structured email produced from free-form text
type Draft struct {
	To      string `json:"to"`
	Cc      string `json:"cc,omitempty"`
	Subject string `json:"subject"`
	Content string `json:"content"`
}

// New creates an AI client. An empty API key yields a disabled client;
// callers check Enabled before use.
func New(baseURL, apiKey, model string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "ai"),
	}
}

// Enabled reports whether an API key is configured
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// ParseEmail turns free-form text into a structured draft. Tone and
// language steer the generated subject and body.
func (c *Client) ParseEmail(ctx context.Context, text, tone, language string) (*Draft, error) {
	if tone == "" {
		tone = "professional"
	}
	if language == "" {
		language = "English"
	}

	system := "You convert free-form text into a structured email. " +
		"Respond with a single JSON object with keys to, cc, subject, content. " +
		"content is an HTML body. Use empty strings for unknown fields. No other text."
	user := fmt.Sprintf("Tone: %s\nLanguage: %s\nText:\n%s", tone, language, text)

	out, err := c.chatComplete(ctx, system, user)
	if err != nil {
		return nil, err
	}

	draft := &Draft{}
	if err := json.Unmarshal([]byte(stripFences(out)), draft); err != nil {
		return nil, fmt.Errorf("model returned malformed draft JSON: %w", err)
	}
	return draft, nil
}

// SuggestSubject proposes a subject line for an email body
func (c *Client) SuggestSubject(ctx context.Context, content string) (string, error) {
	system := "You write concise email subject lines. " +
		"Respond with the subject only, no quotes, at most 10 words."
	out, err := c.chatComplete(ctx, system, content)
	if err != nil {
		return "", err
	}
	return strings.Trim(strings.TrimSpace(out), `"`), nil
}

// GenerateReply drafts a reply to a received email, optionally steered by
// an instruction from the user.
func (c *Client) GenerateReply(ctx context.Context, original, instruction string) (string, error) {
	system := "You draft polite, concise email replies as HTML. " +
		"Respond with the reply body only."
	user := "Original email:\n" + original
	if instruction != "" {
		user += "\n\nInstruction: " + instruction
	}
	return c.chatComplete(ctx, system, user)
}

// ReplyIntent labels returned by ClassifyReply
const (
	IntentInterested    = "interested"
	IntentNotInterested = "not_interested"
	IntentQuestion      = "question"
	IntentAutoReply     = "auto_reply"
	IntentOther         = "other"
)

// ClassifyReply labels the intent of a received reply
func (c *Client) ClassifyReply(ctx context.Context, text string) (string, error) {
	system := "Classify the intent of an email reply. Respond with exactly one of: " +
		"interested, not_interested, question, auto_reply, other."
	out, err := c.chatComplete(ctx, system, text)
	if err != nil {
		return "", err
	}

	label := strings.ToLower(strings.TrimSpace(out))
	switch label {
	case IntentInterested, IntentNotInterested, IntentQuestion, IntentAutoReply, IntentOther:
		return label, nil
	default:
		c.logger.Warn("unrecognized intent label from model", "label", label)
		return IntentOther, nil
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *Client) chatComplete(ctx context.Context, system, user string) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("ai client is not configured")
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("chat API returned %d: %s", resp.StatusCode, data)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("chat API error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat API returned no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}

// stripFences removes a markdown code fence the model may wrap JSON in
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
