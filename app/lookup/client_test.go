package lookup

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

type staticToken string

func (s staticToken) Token(context.Context) (string, error) {
	return string(s), nil
}

type failingToken struct{}

func (failingToken) Token(context.Context) (string, error) {
	return "", errors.New("no credentials")
}

func newTestClient(server *httptest.Server, maxRetries int) *Client {
	return NewClient(server.Client(), staticToken("tok"), Options{
		BaseURL:    server.URL,
		UserAgent:  "test",
		MaxRetries: maxRetries,
		Timeout:    time.Second,
	})
}

func TestClient_LookupUsername(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/users/7562902" || r.URL.Query().Get("key") != "id" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"id":7562902,"username":"mrekk"}`)
	}))
	defer server.Close()

	name, err := newTestClient(server, 0).LookupUsername(context.Background(), 7562902)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if name != "mrekk" {
		t.Errorf("Expected 'mrekk', got '%s'", name)
	}
}

func TestClient_LookupUsername_RetriesOnThrottle(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"id":1,"username":"peppy"}`)
	}))
	defer server.Close()

	name, err := newTestClient(server, 3).LookupUsername(context.Background(), 1)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if name != "peppy" {
		t.Errorf("Expected 'peppy', got '%s'", name)
	}
	if n := atomic.LoadInt32(&requests); n != 3 {
		t.Errorf("Expected 3 requests, got %d", n)
	}
}

func TestClient_LookupUsername_GivesUpAfterMaxRetries(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	if _, err := newTestClient(server, 2).LookupUsername(context.Background(), 1); err == nil {
		t.Fatal("Expected error after exhausting retries")
	}
	if n := atomic.LoadInt32(&requests); n != 3 {
		t.Errorf("Expected 3 requests, got %d", n)
	}
}

func TestClient_LookupUsername_NotFound(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestClient(server, 3).LookupUsername(context.Background(), 404)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if n := atomic.LoadInt32(&requests); n != 1 {
		t.Errorf("Expected no retries for 404, got %d requests", n)
	}
}

func TestClient_LookupUsername_TokenFailure(t *testing.T) {
	client := NewClient(http.DefaultClient, failingToken{}, Options{BaseURL: "http://127.0.0.1:1"})

	if _, err := client.LookupUsername(context.Background(), 1); err == nil {
		t.Error("Expected error when no token is available")
	}
}
