package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/fraudguard/honeytrap/internal/domain"
)

func testReport() Report {
	return Report{
		SessionID:              "sess-42",
		ScamDetected:           true,
		TotalMessagesExchanged: 6,
		ExtractedIntelligence: domain.Intelligence{
			UPIIDs: []string{"fraud@ybl"},
		},
		AgentNotes: "threshold met",
	}
}

func TestDispatchDeliversFirstAttempt(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	var got Report
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if key := r.Header.Get("x-api-key"); key != "secret-key" {
			t.Errorf("x-api-key = %q", key)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	NewHTTPDispatcher(srv.URL, "secret-key", nil).Dispatch(testReport())

	if n := calls.Load(); n != 1 {
		t.Fatalf("server called %d times, want 1", n)
	}
	if got.SessionID != "sess-42" || !got.ScamDetected {
		t.Fatalf("delivered report = %+v", got)
	}
	if len(got.ExtractedIntelligence.UPIIDs) != 1 {
		t.Fatalf("intelligence not delivered: %+v", got.ExtractedIntelligence)
	}
}

func TestDispatchRetriesUntilSuccess(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated) // 201 counts as delivered
	}))
	defer srv.Close()

	NewHTTPDispatcher(srv.URL, "", nil).Dispatch(testReport())

	if n := calls.Load(); n != 3 {
		t.Fatalf("server called %d times, want 3", n)
	}
}

func TestDispatchGivesUpAfterBudget(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	NewHTTPDispatcher(srv.URL, "", nil).Dispatch(testReport())

	if n := calls.Load(); n != 3 {
		t.Fatalf("server called %d times, want exactly the retry budget of 3", n)
	}
}

func TestNoopDispatcher(t *testing.T) {
	t.Parallel()

	// Must not panic or block.
	Noop{}.Dispatch(testReport())
}
