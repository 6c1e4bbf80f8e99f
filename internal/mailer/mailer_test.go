package mailer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestBuildMIME(t *testing.T) {
	email := &OutgoingEmail{
		From:    "me@example.com",
		To:      "a@x.com, b@x.com",
		Cc:      "c@x.com",
		Bcc:     "hidden@x.com",
		Subject: "Hello",
		HTML:    "<p>Body</p>",
	}

	raw := string(buildMIME(email))

	for _, want := range []string{
		"From: me@example.com\r\n",
		"To: a@x.com, b@x.com\r\n",
		"Cc: c@x.com\r\n",
		"Subject: Hello\r\n",
		"Content-Type: text/html; charset=UTF-8\r\n",
		"<p>Body</p>",
	} {
		if !strings.Contains(raw, want) {
			t.Errorf("MIME output missing %q", want)
		}
	}

	// Bcc must not leak into the headers
	if strings.Contains(raw, "hidden@x.com") {
		t.Error("Bcc address leaked into message headers")
	}
}

func TestBuildMIMEEncodesUnicodeSubject(t *testing.T) {
	email := &OutgoingEmail{
		From:    "me@example.com",
		To:      "a@x.com",
		Subject: "Grüße",
		HTML:    "x",
	}

	raw := string(buildMIME(email))

	if strings.Contains(raw, "Subject: Grüße") {
		t.Error("expected non-ASCII subject to be encoded")
	}
	if !strings.Contains(raw, "Subject: =?utf-8?q?") {
		t.Errorf("expected Q-encoded subject, got:\n%s", raw)
	}
}

func TestRecipients(t *testing.T) {
	email := &OutgoingEmail{
		To:  "a@x.com, b@x.com",
		Cc:  " c@x.com ",
		Bcc: "",
	}

	got := recipients(email)

	want := []string{"a@x.com", "b@x.com", "c@x.com"}
	if len(got) != len(want) {
		t.Fatalf("expected %d recipients, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("recipient %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestXOAuth2ClientInitialResponse(t *testing.T) {
	mech, ir, err := newXOAuth2Client("me@example.com", "tok-1").Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if mech != "XOAUTH2" {
		t.Errorf("mechanism = %q, want XOAUTH2", mech)
	}
	want := "user=me@example.com\x01auth=Bearer tok-1\x01\x01"
	if string(ir) != want {
		t.Errorf("initial response = %q, want %q", ir, want)
	}

	// The error challenge is answered with an empty line.
	resp, err := newXOAuth2Client("me@example.com", "tok-1").Next([]byte(`{"status":"400"}`))
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if len(resp) != 0 {
		t.Errorf("challenge response should be empty, got %q", resp)
	}
}

func TestGmailAPISenderSend(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody gmailSendRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		json.NewEncoder(w).Encode(gmailSendResponse{ID: "msg-1", ThreadID: "thr-1"})
	}))
	defer srv.Close()

	sender := NewGmailAPISender("cid", "secret", time.Second, testLogger())
	sender.SetBaseURL(srv.URL)

	email := &OutgoingEmail{
		From:        "me@example.com",
		To:          "a@x.com",
		Subject:     "Hi",
		HTML:        "<p>Body</p>",
		AccessToken: "at-123",
	}
	if err := sender.Send(context.Background(), email); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotPath != "/users/me/messages/send" {
		t.Errorf("unexpected path %s", gotPath)
	}
	if gotAuth != "Bearer at-123" {
		t.Errorf("unexpected auth header %q", gotAuth)
	}

	decoded, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(gotBody.Raw)
	if err != nil {
		t.Fatalf("raw field is not base64url: %v", err)
	}
	if !strings.Contains(string(decoded), "Subject: Hi") {
		t.Error("raw message missing subject header")
	}
}

func TestGmailAPISenderNoCredential(t *testing.T) {
	sender := NewGmailAPISender("cid", "secret", time.Second, testLogger())

	err := sender.Send(context.Background(), &OutgoingEmail{From: "a", To: "b", Subject: "s", HTML: "h"})
	if err == nil {
		t.Fatal("expected error for missing credential")
	}

	var de *DeliveryError
	if !errors.As(err, &de) {
		t.Fatalf("expected DeliveryError, got %T", err)
	}
	if de.Temporary {
		t.Error("missing credential should be permanent")
	}
}

func TestGmailAPISenderErrorClassification(t *testing.T) {
	tests := []struct {
		status    int
		temporary bool
	}{
		{http.StatusUnauthorized, false},
		{http.StatusForbidden, false},
		{http.StatusBadRequest, false},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))

		sender := NewGmailAPISender("cid", "secret", time.Second, testLogger())
		sender.SetBaseURL(srv.URL)

		err := sender.Send(context.Background(), &OutgoingEmail{
			From: "a@x.com", To: "b@x.com", Subject: "s", HTML: "h", AccessToken: "at",
		})
		srv.Close()

		if err == nil {
			t.Errorf("status %d: expected error", tt.status)
			continue
		}
		var de *DeliveryError
		if !errors.As(err, &de) {
			t.Errorf("status %d: expected DeliveryError, got %T", tt.status, err)
			continue
		}
		if de.Temporary != tt.temporary {
			t.Errorf("status %d: temporary = %v, want %v", tt.status, de.Temporary, tt.temporary)
		}
	}
}
