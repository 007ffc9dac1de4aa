package forum

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestTokenSource_RenewsAfterExpiry(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&requests, 1)
		fmt.Fprintf(w, `{"access_token":"tok-%d","token_type":"Bearer","expires_in":3600}`, n)
	}))
	defer server.Close()

	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	tokens := NewTokenSource(server.Client(), server.URL, "id", "secret", "test", clock)

	first, err := tokens.Token(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if first != "tok-1" {
		t.Errorf("Expected 'tok-1', got '%s'", first)
	}

	clock.Advance(30 * time.Minute)
	if again, _ := tokens.Token(context.Background()); again != "tok-1" {
		t.Errorf("Expected cached 'tok-1', got '%s'", again)
	}

	clock.Advance(30 * time.Minute)
	renewed, err := tokens.Token(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if renewed != "tok-2" {
		t.Errorf("Expected renewed 'tok-2', got '%s'", renewed)
	}
}

func TestTokenSource_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	tokens := NewTokenSource(server.Client(), server.URL, "id", "wrong", "test", nil)
	if _, err := tokens.Token(context.Background()); err == nil {
		t.Error("Expected error for rejected credentials")
	}

	var unset *TokenSource
	if unset.Configured() {
		t.Error("Expected nil token source to be unconfigured")
	}
}
