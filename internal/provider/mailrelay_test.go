package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
)

func TestMailRelayAdapterSendSuccess(t *testing.T) {
	t.Parallel()

	var gotBody relayRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}

		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}

		w.Header().Set("X-Message-ID", "relay-msg-1")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	adapter, err := NewMailRelayAdapter(server.URL)
	if err != nil {
		t.Fatalf("NewMailRelayAdapter() error = %v", err)
	}

	result, err := adapter.Send(context.Background(), "a@real.com", "Schedule update", "Doors open at 9.")
	if err != nil {
		t.Fatalf("Send() unexpected error: %v", err)
	}

	if result.StatusCode != http.StatusAccepted {
		t.Fatalf("StatusCode = %d, want %d", result.StatusCode, http.StatusAccepted)
	}
	if result.MessageID != "relay-msg-1" {
		t.Fatalf("MessageID = %q, want %q", result.MessageID, "relay-msg-1")
	}

	if gotBody.To != "a@real.com" {
		t.Fatalf("request.to = %q, want %q", gotBody.To, "a@real.com")
	}
	if gotBody.Subject != "Schedule update" {
		t.Fatalf("request.subject = %q, want %q", gotBody.Subject, "Schedule update")
	}
	if gotBody.Body != "Doors open at 9." {
		t.Fatalf("request.body = %q, want %q", gotBody.Body, "Doors open at 9.")
	}
}

func TestMailRelayAdapterSendStatusClassification(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		statusCode    int
		wantTransient bool
	}{
		{name: "too many requests is transient", statusCode: http.StatusTooManyRequests, wantTransient: true},
		{name: "bad request is permanent", statusCode: http.StatusBadRequest, wantTransient: false},
		{name: "internal server error is transient", statusCode: http.StatusInternalServerError, wantTransient: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.statusCode)
				_, _ = w.Write([]byte("relay failed"))
			}))
			defer server.Close()

			adapter, err := NewMailRelayAdapter(server.URL)
			if err != nil {
				t.Fatalf("NewMailRelayAdapter() error = %v", err)
			}

			_, err = adapter.Send(context.Background(), "a@real.com", "subject", "body")
			if err == nil {
				t.Fatal("expected error")
			}

			if got := IsTransient(err); got != tc.wantTransient {
				t.Fatalf("IsTransient() = %v, want %v", got, tc.wantTransient)
			}

			var providerErr *Error
			if !errors.As(err, &providerErr) {
				t.Fatalf("expected provider.Error, got %T", err)
			}
			if providerErr.StatusCode != tc.statusCode {
				t.Fatalf("StatusCode = %d, want %d", providerErr.StatusCode, tc.statusCode)
			}
		})
	}
}

func TestMailRelayAdapterSendTimeoutIsTransient(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := resty.New()
	client.SetTimeout(30 * time.Millisecond)

	adapter, err := NewMailRelayAdapterWithClient(server.URL, client)
	if err != nil {
		t.Fatalf("NewMailRelayAdapterWithClient() error = %v", err)
	}

	_, err = adapter.Send(context.Background(), "a@real.com", "subject", "body")
	if err == nil {
		t.Fatal("expected timeout error")
	}

	if !IsTransient(err) {
		t.Fatalf("IsTransient() = false, want true (err=%v)", err)
	}
}

func TestMailRelayAdapterEmptyAddress(t *testing.T) {
	t.Parallel()

	adapter, err := NewMailRelayAdapter("http://relay.local/send")
	if err != nil {
		t.Fatalf("NewMailRelayAdapter() error = %v", err)
	}

	_, err = adapter.Send(context.Background(), "  ", "subject", "body")
	if err == nil {
		t.Fatal("expected error for empty address")
	}
	if IsTransient(err) {
		t.Fatal("empty address should be a permanent failure")
	}
}
