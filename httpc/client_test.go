package httpc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClientDoReturnsAnyStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusLocked)
		w.Write([]byte("busy"))
	}))
	defer server.Close()

	client := New(DefaultConfig())
	defer client.Close()

	resp, err := client.Do(context.Background(), http.MethodGet, server.URL, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusLocked {
		t.Errorf("status = %d, want 423", resp.StatusCode)
	}
	if resp.Success() {
		t.Error("Success() should be false for 423")
	}
	if string(resp.Body) != "busy" {
		t.Errorf("body = %q, want %q", resp.Body, "busy")
	}
}

func TestClientDoSetsHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("AccessKey"); got != "secret" {
			t.Errorf("AccessKey = %q, want %q", got, "secret")
		}
		if ua := r.Header.Get("User-Agent"); !strings.HasPrefix(ua, "streamup/") {
			t.Errorf("User-Agent = %q, want streamup prefix", ua)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(DefaultConfig())
	defer client.Close()

	_, err := client.Do(context.Background(), http.MethodGet, server.URL, nil, map[string]string{
		"AccessKey": "secret",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClientDoOKConvertsErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := New(DefaultConfig())
	defer client.Close()

	_, err := client.DoOK(context.Background(), http.MethodGet, server.URL, nil, nil)
	httpErr, ok := err.(*HTTPError)
	if !ok {
		t.Fatalf("error = %T, want *HTTPError", err)
	}
	if httpErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", httpErr.StatusCode)
	}
}

func TestClientDoTransportError(t *testing.T) {
	client := New(DefaultConfig())
	defer client.Close()

	// Port 1 on loopback, nothing listens there.
	_, err := client.Do(context.Background(), http.MethodGet, "http://127.0.0.1:1", nil, nil)
	if err == nil {
		t.Fatal("expected transport error")
	}
	if !IsNetworkLoss(err) {
		t.Errorf("IsNetworkLoss(%v) = false, want true", err)
	}
}
