package source

import (
	"context"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/sidkik/packsync/pkg/errors"
	"github.com/sidkik/packsync/pkg/version"
)

// DefaultBackoff is the retry schedule for transient HTTP failures.
var DefaultBackoff = wait.Backoff{
	Duration: 500 * time.Millisecond,
	Factor:   2,
	Jitter:   0.1,
	Steps:    4,
}

// HTTPSource fetches http and https locations.
type HTTPSource struct {
	Client  *http.Client
	Backoff wait.Backoff
}

// NewHTTPSource returns an HTTPSource with the default retry schedule.
func NewHTTPSource() *HTTPSource {
	return &HTTPSource{
		Client:  &http.Client{Timeout: 5 * time.Minute},
		Backoff: DefaultBackoff,
	}
}

// Resolve implements Source.
func (s *HTTPSource) Resolve(base, rel string) (string, error) {
	return Resolve(base, rel)
}

// Open implements Source. Connection errors, 5xx and 429 responses are
// retried according to the Backoff. The response body is returned
// unbuffered, so failures while streaming it are not retried.
func (s *HTTPSource) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	var body io.ReadCloser
	var lastErr error
	err := wait.ExponentialBackoff(s.Backoff, func() (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		resp, err := s.get(ctx, location)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			lastErr = err
			log.WithError(err).WithField("url", location).Debug("Retrying request")
			return false, nil
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			body = resp.Body
			return true, nil
		}
		resp.Body.Close()

		statusErr := errors.HTTPStatusError{URL: location, Status: resp.Status, Code: resp.StatusCode}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			lastErr = statusErr
			log.WithError(statusErr).WithField("url", location).Debug("Retrying request")
			return false, nil
		}
		return false, statusErr
	})

	switch {
	case body != nil:
		return body, nil
	case ctx.Err() != nil:
		return nil, ctx.Err()
	}

	if _, permanent := err.(errors.HTTPStatusError); !permanent && lastErr != nil {
		return nil, lastErr
	}
	return nil, err
}

func (s *HTTPSource) get(ctx context.Context, location string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, location, nil)
	if err != nil {
		return nil, errors.WithContext(err, "new request")
	}
	req = req.WithContext(ctx)
	req.Header.Set("User-Agent", "packsync/"+version.Version)

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	return client.Do(req)
}
