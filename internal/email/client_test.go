package email

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testServer(t *testing.T, received *postmarkEmail, gotToken *string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*gotToken = r.Header.Get("X-Postmark-Server-Token")
		if err := json.NewDecoder(r.Body).Decode(received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"MessageID": "test-id"}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestSendAuthCode(t *testing.T) {
	var received postmarkEmail
	var gotToken string
	server := testServer(t, &received, &gotToken)

	client := NewClient("test-token", "noreply@example.com", "https://habitloop.test",
		WithAPIURL(server.URL), WithHTTPClient(server.Client()))

	if err := client.SendAuthCode("alice@example.com", "123456", "login"); err != nil {
		t.Fatalf("send auth code: %v", err)
	}

	if gotToken != "test-token" {
		t.Errorf("server token = %q, want %q", gotToken, "test-token")
	}
	if received.To != "alice@example.com" {
		t.Errorf("To = %q", received.To)
	}
	if !strings.Contains(received.TextBody, "123456") {
		t.Errorf("text body missing code: %q", received.TextBody)
	}
	if !strings.Contains(received.Subject, "Sign in") {
		t.Errorf("subject = %q", received.Subject)
	}
}

func TestSendInvite(t *testing.T) {
	var received postmarkEmail
	var gotToken string
	server := testServer(t, &received, &gotToken)

	client := NewClient("test-token", "noreply@example.com", "https://habitloop.test",
		WithAPIURL(server.URL), WithHTTPClient(server.Client()))

	if err := client.SendInvite("bob@example.com", "tok-1", "Morning crew", "Alice"); err != nil {
		t.Fatalf("send invite: %v", err)
	}

	if !strings.Contains(received.TextBody, "https://habitloop.test/invites/accept?token=tok-1") {
		t.Errorf("text body missing link: %q", received.TextBody)
	}
	if !strings.Contains(received.Subject, "Morning crew") {
		t.Errorf("subject = %q", received.Subject)
	}
}

func TestSendUnconfigured(t *testing.T) {
	client := NewClient("", "noreply@example.com", "https://habitloop.test")
	if err := client.SendAuthCode("alice@example.com", "123456", "login"); err == nil {
		t.Error("expected error when unconfigured")
	}
}
