package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const gmailSMTPAddr = "smtp.gmail.com:587"

// GmailSMTPSender delivers mail through smtp.gmail.com using XOAUTH2.
// It exists for deployments where the Gmail REST API is blocked; both
// transports authenticate with the same OAuth credential.
type GmailSMTPSender struct {
	oauth   oauth2.Config
	addr    string
	timeout time.Duration
	logger  *slog.Logger
}

// NewGmailSMTPSender creates a Gmail SMTP sender
func NewGmailSMTPSender(clientID, clientSecret string, timeout time.Duration, logger *slog.Logger) *GmailSMTPSender {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &GmailSMTPSender{
		oauth: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
		},
		addr:    gmailSMTPAddr,
		timeout: timeout,
		logger:  logger.With("component", "gmail_smtp"),
	}
}

// Send delivers one email over a fresh SMTP connection. Gmail rejects
// pipelined reuse across accounts, so no connection pooling is attempted.
func (s *GmailSMTPSender) Send(ctx context.Context, email *OutgoingEmail) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	token, err := s.accessToken(ctx, email)
	if err != nil {
		return err
	}

	dialer := net.Dialer{Timeout: s.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return &DeliveryError{Temporary: true, Message: fmt.Sprintf("failed to connect to %s: %v", s.addr, err)}
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	host, _, _ := net.SplitHostPort(s.addr)
	c, err := smtp.NewClientStartTLS(conn, &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12})
	if err != nil {
		conn.Close()
		return &DeliveryError{Temporary: true, Message: fmt.Sprintf("STARTTLS failed: %v", err)}
	}
	defer c.Close()

	if err := c.Auth(newXOAuth2Client(email.From, token)); err != nil {
		return &DeliveryError{Temporary: false, Message: fmt.Sprintf("XOAUTH2 auth failed: %v", err)}
	}

	if err := c.Mail(email.From, nil); err != nil {
		return smtpError("MAIL FROM", err)
	}
	for _, rcpt := range recipients(email) {
		if err := c.Rcpt(rcpt, nil); err != nil {
			return smtpError("RCPT TO "+rcpt, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return smtpError("DATA", err)
	}
	if _, err := w.Write(buildMIME(email)); err != nil {
		w.Close()
		return &DeliveryError{Temporary: true, Message: fmt.Sprintf("failed to write message body: %v", err)}
	}
	if err := w.Close(); err != nil {
		return smtpError("message submission", err)
	}

	s.logger.Debug("message accepted by gmail smtp", "from", email.From, "to", email.To)
	return c.Quit()
}

func (s *GmailSMTPSender) accessToken(ctx context.Context, email *OutgoingEmail) (string, error) {
	if email.AccessToken != "" {
		return email.AccessToken, nil
	}
	if email.RefreshToken == "" {
		return "", &DeliveryError{Temporary: false, Message: "no gmail credential available"}
	}

	token, err := s.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: email.RefreshToken}).Token()
	if err != nil {
		return "", &DeliveryError{Temporary: false, Message: fmt.Sprintf("failed to refresh access token: %v", err)}
	}
	return token.AccessToken, nil
}

// xoauth2Client implements the XOAUTH2 mechanism Gmail requires; it is
// not among the clients go-sasl ships.
type xoauth2Client struct {
	username string
	token    string
}

func newXOAuth2Client(username, token string) sasl.Client {
	return &xoauth2Client{username: username, token: token}
}

func (c *xoauth2Client) Start() (string, []byte, error) {
	ir := []byte("user=" + c.username + "\x01auth=Bearer " + c.token + "\x01\x01")
	return "XOAUTH2", ir, nil
}

// Next handles the failure path: the server sends a base64 JSON status
// blob and expects an empty line before issuing the final reply.
func (c *xoauth2Client) Next(challenge []byte) ([]byte, error) {
	return []byte{}, nil
}

func smtpError(op string, err error) error {
	// 4xx responses are transient by definition; everything else permanent
	temporary := false
	if smtpErr, ok := err.(*smtp.SMTPError); ok {
		temporary = smtpErr.Code >= 400 && smtpErr.Code < 500
	}
	return &DeliveryError{Temporary: temporary, Message: fmt.Sprintf("%s failed: %v", op, err)}
}
