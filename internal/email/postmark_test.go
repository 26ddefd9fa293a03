package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testClient(cfg Config, serverURL string) *Client {
	return NewClient(cfg, WithHTTPClient(&http.Client{
		Transport: &rewriteTransport{base: http.DefaultTransport, target: serverURL},
	}))
}

func TestSendInvite(t *testing.T) {
	var received postmarkEmail
	var gotToken, gotPath string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Postmark-Server-Token")
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"MessageID": "test-id"}`))
	}))
	defer server.Close()

	client := testClient(Config{
		ServerToken: "test-token",
		FromEmail:   "noreply@example.com",
		AppURL:      "https://smartcart.test",
	}, server.URL)

	err := client.SendInvite(context.Background(), "bob@example.com", "Alice", "Smith Family", "AB12CD")
	if err != nil {
		t.Fatalf("send invite: %v", err)
	}

	if gotToken != "test-token" {
		t.Errorf("server token = %q, want %q", gotToken, "test-token")
	}
	if gotPath != "/email" {
		t.Errorf("path = %q, want /email", gotPath)
	}
	if received.To != "bob@example.com" {
		t.Errorf("To = %q, want %q", received.To, "bob@example.com")
	}
	if received.From != "noreply@example.com" {
		t.Errorf("From = %q, want %q", received.From, "noreply@example.com")
	}
	if received.Subject != "Alice invited you to Smith Family on SmartCart" {
		t.Errorf("Subject = %q", received.Subject)
	}
	if !strings.Contains(received.TextBody, "AB12CD") {
		t.Errorf("text body missing invite code: %q", received.TextBody)
	}
	if !strings.Contains(received.TextBody, "https://smartcart.test/join?code=AB12CD") {
		t.Errorf("text body missing join link: %q", received.TextBody)
	}
}

func TestSendInviteEscapesHTML(t *testing.T) {
	var received postmarkEmail
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := testClient(Config{ServerToken: "t", FromEmail: "noreply@example.com"}, server.URL)
	if err := client.SendInvite(context.Background(), "bob@example.com", "", "<b>Lab</b>", "ZZZZZZ"); err != nil {
		t.Fatalf("send invite: %v", err)
	}
	if strings.Contains(received.HtmlBody, "<b>Lab</b>") {
		t.Errorf("household name not escaped: %q", received.HtmlBody)
	}
	if !strings.HasPrefix(received.Subject, "Someone invited you") {
		t.Errorf("Subject = %q", received.Subject)
	}
	if strings.Contains(received.TextBody, "Join here") {
		t.Error("join link rendered without an app URL")
	}
}

func TestSendInviteNotConfigured(t *testing.T) {
	client := NewClient(Config{FromEmail: "noreply@example.com"})

	err := client.SendInvite(context.Background(), "alice@example.com", "Bob", "Home", "AB12CD")
	if err == nil {
		t.Fatal("expected error for unconfigured client")
	}
}

func TestSendInviteAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := testClient(Config{ServerToken: "test-token", FromEmail: "noreply@example.com"}, server.URL)

	err := client.SendInvite(context.Background(), "alice@example.com", "Bob", "Home", "AB12CD")
	if err == nil {
		t.Fatal("expected error for API failure")
	}
}

func TestConfigured(t *testing.T) {
	c1 := NewClient(Config{ServerToken: "token", FromEmail: "from@test.com"})
	if !c1.Configured() {
		t.Error("expected Configured() = true")
	}

	c2 := NewClient(Config{FromEmail: "from@test.com"})
	if c2.Configured() {
		t.Error("expected Configured() = false without token")
	}

	c3 := NewClient(Config{ServerToken: "token"})
	if c3.Configured() {
		t.Error("expected Configured() = false without sender")
	}
}

// rewriteTransport redirects all requests to a test server URL.
type rewriteTransport struct {
	base   http.RoundTripper
	target string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = "http"
	req.URL.Host = t.target[len("http://"):]
	return t.base.RoundTrip(req)
}
