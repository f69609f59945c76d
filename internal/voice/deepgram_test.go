package voice

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Token key-123" {
			t.Errorf("Unexpected auth header %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "audio/webm" {
			t.Errorf("Unexpected content type %q", got)
		}
		w.Write([]byte(`{"results":{"channels":[{"alternatives":[{"transcript":"play some jazz"}]}]}}`))
	}))
	defer srv.Close()

	d := &DeepgramClient{apiKey: "key-123", url: srv.URL, client: &http.Client{Timeout: time.Second}}
	got, err := d.Transcribe(context.Background(), []byte{1, 2, 3}, "audio/webm")
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if got != "play some jazz" {
		t.Errorf("Unexpected transcript %q", got)
	}
}

func TestTranscribe_EmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":{"channels":[]}}`))
	}))
	defer srv.Close()

	d := &DeepgramClient{apiKey: "k", url: srv.URL, client: &http.Client{Timeout: time.Second}}
	got, err := d.Transcribe(context.Background(), nil, "")
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if got != "" {
		t.Errorf("Expected empty transcript, got %q", got)
	}
}

func TestTranscribe_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	d := &DeepgramClient{apiKey: "k", url: srv.URL, client: &http.Client{Timeout: time.Second}}
	if _, err := d.Transcribe(context.Background(), nil, ""); err == nil {
		t.Fatal("Expected error for HTTP 401")
	}
}
