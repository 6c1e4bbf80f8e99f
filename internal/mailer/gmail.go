package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const gmailAPIBase = "https://gmail.googleapis.com/gmail/v1"

// GmailAPISender delivers mail via the Gmail REST API. Access tokens are
// minted from the stored refresh token on demand; the oauth2 transport
// handles caching and renewal.
type GmailAPISender struct {
	oauth   oauth2.Config
	baseURL string
	timeout time.Duration
	logger  *slog.Logger
}

// NewGmailAPISender creates a Gmail API sender. The client credentials are
// the same OAuth app used for sign-in.
func NewGmailAPISender(clientID, clientSecret string, timeout time.Duration, logger *slog.Logger) *GmailAPISender {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &GmailAPISender{
		oauth: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
		},
		baseURL: gmailAPIBase,
		timeout: timeout,
		logger:  logger.With("component", "gmail_api"),
	}
}

// SetBaseURL overrides the API endpoint, for tests
func (s *GmailAPISender) SetBaseURL(url string) {
	s.baseURL = url
}

type gmailSendRequest struct {
	Raw string `json:"raw"`
}

type gmailSendResponse struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

// Send delivers one email. The per-call timeout bounds the whole exchange,
// token refresh included.
func (s *GmailAPISender) Send(ctx context.Context, email *OutgoingEmail) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ts, err := s.tokenSource(ctx, email)
	if err != nil {
		return err
	}

	raw := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(buildMIME(email))
	body, err := json.Marshal(gmailSendRequest{Raw: raw})
	if err != nil {
		return fmt.Errorf("failed to marshal send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/users/me/messages/send", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := oauth2.NewClient(ctx, ts)
	resp, err := client.Do(req)
	if err != nil {
		return &DeliveryError{Temporary: true, Message: fmt.Sprintf("gmail api request failed: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return classifyStatus(resp.StatusCode, string(data))
	}

	var sent gmailSendResponse
	if err := json.NewDecoder(resp.Body).Decode(&sent); err != nil {
		return fmt.Errorf("failed to decode send response: %w", err)
	}

	s.logger.Debug("message accepted by gmail", "provider_id", sent.ID, "thread_id", sent.ThreadID, "to", email.To)
	return nil
}

func (s *GmailAPISender) tokenSource(ctx context.Context, email *OutgoingEmail) (oauth2.TokenSource, error) {
	switch {
	case email.AccessToken != "":
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: email.AccessToken}), nil
	case email.RefreshToken != "":
		return s.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: email.RefreshToken}), nil
	default:
		return nil, &DeliveryError{Temporary: false, Message: "no gmail credential available"}
	}
}

func classifyStatus(status int, body string) error {
	msg := fmt.Sprintf("gmail api returned %d: %s", status, body)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &DeliveryError{Temporary: false, Message: msg}
	case status == http.StatusTooManyRequests || status >= 500:
		return &DeliveryError{Temporary: true, Message: msg}
	default:
		return &DeliveryError{Temporary: false, Message: msg}
	}
}
