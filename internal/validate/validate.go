// Package validate probes the deployed service through the reverse proxy and
// classifies the result.
package validate

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/felixgeelhaar/moor/internal/errors"
)

// Verdict classifies one probe.
type Verdict int

const (
	// VerdictOK means the service answered with a 2xx or 3xx status
	VerdictOK Verdict = iota
	// VerdictWarn means the service answered, but with an unexpected status.
	// The proxy and container are wired; the application itself may be unhappy.
	VerdictWarn
	// VerdictFatal means no connection could be made at all
	VerdictFatal
)

// Report is the outcome of probing one URL.
type Report struct {
	URL        string
	StatusCode int
	Verdict    Verdict
	Detail     string
}

// Prober issues single-attempt HTTP probes. The zero value uses a short
// per-request timeout; a freshly reloaded proxy racing a freshly started
// container surfaces as a warning, not a retry loop.
type Prober struct {
	Client *http.Client
}

func (p *Prober) client() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	return &http.Client{Timeout: 10 * time.Second}
}

// Probe performs one GET against the URL. A connection-level failure yields a
// fatal VALIDATE error; any received status code yields a Report.
func (p *Prober) Probe(ctx context.Context, url string) (Report, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Report{URL: url, Verdict: VerdictFatal},
			errors.Wrap(errors.ErrCodeValidateUnreachable, "build probe request", err)
	}

	resp, err := p.client().Do(req)
	if err != nil {
		return Report{URL: url, Verdict: VerdictFatal, Detail: err.Error()},
			errors.Wrap(errors.ErrCodeValidateUnreachable,
				fmt.Sprintf("no response from %s", url), err).
				WithSuggestion("Check that the container is running and nginx was reloaded")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	report := Report{URL: url, StatusCode: resp.StatusCode}
	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		report.Verdict = VerdictOK
		report.Detail = fmt.Sprintf("HTTP %d", resp.StatusCode)
	} else {
		report.Verdict = VerdictWarn
		report.Detail = fmt.Sprintf("service reachable but returned HTTP %d", resp.StatusCode)
	}
	return report, nil
}

// ProbeWithRetry retries connection-level failures with exponential backoff,
// up to maxAttempts. Status-code warnings are returned immediately; only the
// unreachable case is worth waiting out. maxAttempts <= 1 degenerates to a
// single probe.
func (p *Prober) ProbeWithRetry(ctx context.Context, url string, maxAttempts uint64) (Report, error) {
	if maxAttempts <= 1 {
		return p.Probe(ctx, url)
	}

	var report Report
	backoff := retry.WithMaxRetries(maxAttempts-1, retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		report, err = p.Probe(ctx, url)
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	return report, err
}
