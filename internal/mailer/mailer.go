// Package mailer delivers outbound email through the user's Gmail account,
// either via the Gmail REST API or via smtp.gmail.com with XOAUTH2.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"strings"
	"time"
)

// OutgoingEmail is one composed email ready for delivery. To, Cc and Bcc
// hold a single address or a comma-delimited list. Exactly one of
// AccessToken or RefreshToken must be set.
type OutgoingEmail struct {
	From    string
	To      string
	Cc      string
	Bcc     string
	Subject string
	HTML    string

	AccessToken  string
	RefreshToken string
}

// Sender delivers a single email
type Sender interface {
	Send(ctx context.Context, email *OutgoingEmail) error
}

// DeliveryError represents a delivery error with type information
type DeliveryError struct {
	Temporary bool
	Message   string
}

func (e *DeliveryError) Error() string {
	return e.Message
}

// buildMIME renders the RFC 5322 message with an HTML body
func buildMIME(email *OutgoingEmail) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "From: %s\r\n", email.From)
	fmt.Fprintf(&buf, "To: %s\r\n", email.To)
	if email.Cc != "" {
		fmt.Fprintf(&buf, "Cc: %s\r\n", email.Cc)
	}
	fmt.Fprintf(&buf, "Subject: %s\r\n", encodeHeader(email.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(email.HTML)

	return buf.Bytes()
}

// encodeHeader Q-encodes a header value when it is not plain ASCII
func encodeHeader(s string) string {
	for _, r := range s {
		if r > 127 {
			return mime.QEncoding.Encode("utf-8", s)
		}
	}
	return s
}

// recipients returns every envelope recipient (to, cc, bcc), split and
// trimmed. Bcc appears in the envelope only, never in the headers.
func recipients(email *OutgoingEmail) []string {
	var all []string
	for _, field := range []string{email.To, email.Cc, email.Bcc} {
		for _, addr := range strings.Split(field, ",") {
			addr = strings.TrimSpace(addr)
			if addr != "" {
				all = append(all, addr)
			}
		}
	}
	return all
}
