package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateChangeRequest(t *testing.T) {
	var got ChangeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/change-requests" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Errorf("unexpected authorization header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"url": "https://host.example/cr/42"})
	}))
	defer srv.Close()

	host := NewHTTPHost(srv.URL, "secret")
	url, err := host.CreateChangeRequest(context.Background(), ChangeRequest{
		Branch: "conductor/task1",
		Target: "main",
		Title:  "Add rate limiting",
	})
	if err != nil {
		t.Fatalf("CreateChangeRequest: %v", err)
	}
	if url != "https://host.example/cr/42" {
		t.Errorf("unexpected url %q", url)
	}
	if got.Branch != "conductor/task1" || got.Target != "main" {
		t.Errorf("unexpected request body: %+v", got)
	}
}

func TestCreateChangeRequestErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrAuthFailed},
		{"forbidden", http.StatusForbidden, ErrAuthFailed},
		{"missing branch", http.StatusNotFound, ErrNotFound},
		{"throttled", http.StatusTooManyRequests, ErrRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := NewHTTPHost(srv.URL, "").CreateChangeRequest(context.Background(), ChangeRequest{Branch: "b"})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCreateChangeRequestUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTTPHost(srv.URL, "").CreateChangeRequest(context.Background(), ChangeRequest{Branch: "b"})
	if err == nil {
		t.Fatal("expected error for 502 response")
	}
}
