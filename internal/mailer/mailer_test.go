package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/opencivic/memberhub/internal/config"
	"github.com/opencivic/memberhub/internal/pkg/httpretry"
	"github.com/opencivic/memberhub/internal/service/campaign"
)

func testMessage() campaign.Message {
	return campaign.Message{
		To:        "pat@example.org",
		ToName:    "Pat Jones",
		FromEmail: "news@example.org",
		FromName:  "Civic Org",
		Subject:   "Hello",
		HTML:      "<p>Hi</p>",
	}
}

func TestSend(t *testing.T) {
	var gotAuth string
	var gotBody sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(sendResponse{MessageID: "msg-123"})
	}))
	defer srv.Close()

	client := New(config.MailConfig{BaseURL: srv.URL, APIKey: "key-1", TimeoutSeconds: 5}, nil)

	id, err := client.Send(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if id != "msg-123" {
		t.Fatalf("expected provider message id, got %q", id)
	}
	if gotAuth != "Bearer key-1" {
		t.Fatalf("wrong auth header: %q", gotAuth)
	}
	if gotBody.To.Email != "pat@example.org" || gotBody.Subject != "Hello" {
		t.Fatalf("unexpected payload: %+v", gotBody)
	}
}

func TestSendProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(sendResponse{Error: "invalid recipient"})
	}))
	defer srv.Close()

	client := New(config.MailConfig{BaseURL: srv.URL, APIKey: "key-1"}, http.DefaultClient)

	_, err := client.Send(context.Background(), testMessage())
	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if perr.StatusCode != http.StatusUnprocessableEntity || perr.Message != "invalid recipient" {
		t.Fatalf("unexpected provider error: %+v", perr)
	}
}

func TestSendRetriesServerErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(sendResponse{MessageID: "msg-ok"})
	}))
	defer srv.Close()

	doer := httpretry.NewRetryClient(http.DefaultClient, 3).WithBaseDelay(time.Millisecond)
	client := New(config.MailConfig{BaseURL: srv.URL, APIKey: "key-1", TimeoutSeconds: 5}, doer)

	id, err := client.Send(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("send after retries: %v", err)
	}
	if id != "msg-ok" || attempts != 3 {
		t.Fatalf("expected success on attempt 3, got id=%q attempts=%d", id, attempts)
	}
}
