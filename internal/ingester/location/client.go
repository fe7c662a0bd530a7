package location

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/airportmatch/nearestairport/internal/common/ctxlog"
	"github.com/airportmatch/nearestairport/internal/common/pipelineerrors"
	"github.com/airportmatch/nearestairport/internal/ingester/metrics"
	"github.com/airportmatch/nearestairport/internal/ingester/model"
)

// Responses are a few dozen bytes; anything far larger is not a location.
const maxResponseBytes = 64 * 1024

// Gate bounds the number of requests in flight against the location service.
// *semaphore.Weighted satisfies it.
type Gate interface {
	Acquire(ctx context.Context, n int64) error
	Release(n int64)
}

// NewGate returns an admission gate admitting at most limit concurrent requests.
func NewGate(limit int) Gate {
	return semaphore.NewWeighted(int64(limit))
}

// NewLimiter returns a limiter allowing requestsPerSecond requests per second, or an unlimited limiter if
// requestsPerSecond is not positive.
func NewLimiter(requestsPerSecond float64) *rate.Limiter {
	if requestsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := int(requestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

// Client fetches user coordinates from the location service.
type Client struct {
	baseUrl        *url.URL
	httpClient     *http.Client
	gate           Gate
	limiter        *rate.Limiter
	retryLimit     uint
	retryBackoff   time.Duration
	requestTimeout time.Duration
	metrics        *metrics.Metrics
}

// NewClient creates a client for the location service rooted at baseUrl. retryLimit is the total number of
// attempts made for a user, retryBackoff the fixed delay between attempts and requestTimeout the deadline of each
// individual request (zero for none).
func NewClient(
	baseUrl string,
	httpClient *http.Client,
	gate Gate,
	limiter *rate.Limiter,
	retryLimit uint,
	retryBackoff time.Duration,
	requestTimeout time.Duration,
	m *metrics.Metrics,
) (*Client, error) {
	parsed, err := url.Parse(baseUrl)
	if err != nil {
		return nil, errors.WithMessagef(err, "invalid location service url %s", baseUrl)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, errors.Errorf("invalid location service url %s: scheme must be http or https", baseUrl)
	}
	if retryLimit < 1 {
		return nil, errors.Errorf("retry limit must be at least 1, got %d", retryLimit)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if limiter == nil {
		limiter = NewLimiter(0)
	}
	return &Client{
		baseUrl:        parsed,
		httpClient:     httpClient,
		gate:           gate,
		limiter:        limiter,
		retryLimit:     retryLimit,
		retryBackoff:   retryBackoff,
		requestTimeout: requestTimeout,
		metrics:        m,
	}, nil
}

// Fetch returns the coordinates of userId. Transient failures are retried up to the retry limit with a fixed
// delay; if the last attempt still fails the transient cause is returned wrapped in a permanent FetchError.
// Permanent failures are returned straight away. Every returned error is a *pipelineerrors.FetchError.
func (c *Client) Fetch(ctx *ctxlog.Context, userId int64) (model.UserCoordinate, error) {
	var coordinate model.UserCoordinate
	var attempts uint
	err := retry.Do(
		func() error {
			attempts++
			var err error
			coordinate, err = c.fetchOnce(ctx, userId)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(c.retryLimit),
		retry.Delay(c.retryBackoff),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(pipelineerrors.IsTransient),
		retry.OnRetry(func(n uint, err error) {
			if n+1 < c.retryLimit {
				ctx.Log.WithError(err).Debugf("User %d: %s after attempt %d", userId, model.JobRetry, n+1)
			}
		}),
	)
	if err == nil {
		return coordinate, nil
	}

	var fetchErr *pipelineerrors.FetchError
	if !errors.As(err, &fetchErr) {
		// the context ended while waiting to retry
		fetchErr = pipelineerrors.NewPermanent(userId, err)
	}
	fetchErr.Attempts = attempts
	if fetchErr.Kind == pipelineerrors.Transient {
		fetchErr.Kind = pipelineerrors.Permanent
		fetchErr.Exhausted = true
	}
	return model.UserCoordinate{}, fetchErr
}

func (c *Client) fetchOnce(ctx *ctxlog.Context, userId int64) (model.UserCoordinate, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return model.UserCoordinate{}, pipelineerrors.NewPermanent(userId, errors.WithStack(err))
	}
	if err := c.gate.Acquire(ctx, 1); err != nil {
		return model.UserCoordinate{}, pipelineerrors.NewPermanent(userId, errors.WithStack(err))
	}
	defer c.gate.Release(1)

	var reqCtx context.Context = ctx
	if c.requestTimeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	start := time.Now()
	body, statusCode, err := c.get(reqCtx, userId)
	c.metrics.RecordLocationRequest(statusCode, time.Since(start))
	if err != nil {
		c.metrics.RecordFetchFailure(pipelineerrors.Transient)
		return model.UserCoordinate{}, pipelineerrors.NewTransient(userId, err)
	}

	switch {
	case statusCode >= http.StatusInternalServerError || statusCode == http.StatusTooManyRequests:
		c.metrics.RecordFetchFailure(pipelineerrors.Transient)
		return model.UserCoordinate{}, pipelineerrors.NewTransient(userId, errors.Errorf("location service returned %d", statusCode))
	case statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices:
		c.metrics.RecordFetchFailure(pipelineerrors.Permanent)
		return model.UserCoordinate{}, pipelineerrors.NewPermanent(userId, errors.Errorf("location service returned %d", statusCode))
	}

	coordinate, err := ParseLocation(userId, body)
	if err != nil {
		c.metrics.RecordFetchFailure(pipelineerrors.Permanent)
		return model.UserCoordinate{}, pipelineerrors.NewPermanent(userId, err)
	}
	return coordinate, nil
}

func (c *Client) get(ctx context.Context, userId int64) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.locationUrl(userId), nil)
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, errors.WithMessage(err, "reading location response")
	}
	return body, resp.StatusCode, nil
}

func (c *Client) locationUrl(userId int64) string {
	return c.baseUrl.JoinPath("locations", strconv.FormatInt(userId, 10)).String()
}

func (c *Client) String() string {
	return fmt.Sprintf("location client %s (attempts=%d, backoff=%s)", c.baseUrl, c.retryLimit, c.retryBackoff)
}
