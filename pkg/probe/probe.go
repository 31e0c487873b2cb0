package probe

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

// TimeoutMessage is the error message recorded when the probe deadline
// elapses before a response arrives. Downstream consumers (health snapshot,
// alert templates) match on it.
const TimeoutMessage = "Request timeout"

const userAgent = "Pulse-Monitor/1.0"

// Outcome classifies a single probe. LatencyMs is always populated, even on
// failure, so windowed aggregates stay well-defined.
type Outcome struct {
	StatusCode   int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
}

// Executor performs one bounded HTTP GET per call. It holds no per-check
// state and is safe for concurrent use by the worker pool.
type Executor struct {
	client *http.Client
}

func NewExecutor() *Executor {
	// Per-request deadlines come from each check's timeout; the transport
	// only bounds connection setup.
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConnsPerHost: 4,
	}
	return &Executor{
		client: &http.Client{Transport: transport},
	}
}

// Run executes one GET against url with a hard deadline. A response with the
// wrong status code is still a response: StatusCode is recorded and Success
// is false. No response at all records StatusCode 0. The executor never
// retries; retry policy belongs to the queue layer.
func (e *Executor) Run(ctx context.Context, url string, timeout time.Duration, expectedStatus int) Outcome {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	out := Outcome{}

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, url, nil)
	if err != nil {
		out.LatencyMs = time.Since(start).Milliseconds()
		out.ErrorMessage = err.Error()
		return out
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := e.client.Do(req)
	out.LatencyMs = time.Since(start).Milliseconds()

	if err != nil {
		if isTimeout(err) {
			out.ErrorMessage = TimeoutMessage
		} else {
			out.ErrorMessage = err.Error()
		}
		return out
	}
	defer resp.Body.Close()

	out.StatusCode = resp.StatusCode
	out.Success = resp.StatusCode == expectedStatus
	return out
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
