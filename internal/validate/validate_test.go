package validate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/felixgeelhaar/moor/internal/errors"
)

func TestProbeOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Hello from the container"))
	}))
	defer srv.Close()

	var p Prober
	report, err := p.Probe(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if report.Verdict != VerdictOK {
		t.Errorf("Verdict = %d, want VerdictOK", report.Verdict)
	}
	if report.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d", report.StatusCode)
	}
}

func TestProbeRedirectCountsAsOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusFound)
	}))
	defer srv.Close()

	p := Prober{Client: &http.Client{
		// Surface the redirect itself rather than chasing it.
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		Timeout:       5 * time.Second,
	}}
	report, err := p.Probe(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if report.Verdict != VerdictOK {
		t.Errorf("Verdict = %d, want VerdictOK for a 302", report.Verdict)
	}
}

func TestProbeBadStatusIsWarning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	var p Prober
	report, err := p.Probe(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("a received status must not be an error, got %v", err)
	}
	if report.Verdict != VerdictWarn {
		t.Errorf("Verdict = %d, want VerdictWarn", report.Verdict)
	}
	if report.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d", report.StatusCode)
	}
}

func TestProbeUnreachableIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	url := srv.URL
	srv.Close() // nothing listening anymore

	var p Prober
	report, err := p.Probe(context.Background(), url)
	if err == nil {
		t.Fatal("expected error for a closed listener")
	}
	if errors.CodeOf(err) != errors.ErrCodeValidateUnreachable {
		t.Errorf("error code = %s, want %s", errors.CodeOf(err), errors.ErrCodeValidateUnreachable)
	}
	if report.Verdict != VerdictFatal {
		t.Errorf("Verdict = %d, want VerdictFatal", report.Verdict)
	}
}

func TestProbeWithRetryExhaustsOnUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	var p Prober
	report, err := p.ProbeWithRetry(context.Background(), url, 2)
	if err == nil {
		t.Fatal("expected error after exhausting retries against a dead listener")
	}
	if errors.CodeOf(err) != errors.ErrCodeValidateUnreachable {
		t.Errorf("error code = %s, want %s", errors.CodeOf(err), errors.ErrCodeValidateUnreachable)
	}
	if report.Verdict != VerdictFatal {
		t.Errorf("Verdict = %d, want VerdictFatal", report.Verdict)
	}
}

func TestProbeWithRetrySingleAttempt(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	var p Prober
	report, err := p.ProbeWithRetry(context.Background(), srv.URL, 1)
	if err != nil {
		t.Fatalf("ProbeWithRetry() error = %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("attempts = %d, want exactly 1", calls.Load())
	}
	if report.Verdict != VerdictWarn {
		t.Errorf("Verdict = %d, want VerdictWarn", report.Verdict)
	}
}

func TestProbeWithRetryStopsOnReceivedStatus(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	var p Prober
	report, err := p.ProbeWithRetry(context.Background(), srv.URL, 5)
	if err != nil {
		t.Fatalf("ProbeWithRetry() error = %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("attempts = %d; a received status must not be retried", calls.Load())
	}
	if report.Verdict != VerdictWarn {
		t.Errorf("Verdict = %d, want VerdictWarn", report.Verdict)
	}
}
