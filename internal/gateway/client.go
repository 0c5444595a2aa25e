package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	CodeTimeout           = "gateway_timeout"
	CodeUnavailable       = "gateway_unavailable"
	CodeMalformedResponse = "gateway_malformed_response"

	maxResponseSize = 4 << 20
)

var (
	ErrUnknownCredentialSet = errors.New("unknown credential set")
	ErrMalformedResponse    = errors.New("malformed gateway response")
	errServerStatus         = errors.New("gateway server error")
)

type Credentials struct {
	APIKey    string
	SecretKey string
	BaseURL   string
}

type Options struct {
	Credentials map[domain.CredentialSet]Credentials
	Timeout     time.Duration
	Locale      string
	Currency    string
	// MaxFailures consecutive transport failures open the breaker for OpenTimeout.
	MaxFailures uint32
	OpenTimeout time.Duration
	HTTPClient  *http.Client
	Logger      logrus.FieldLogger
}

// Client talks to the hosted payment gateway. It is safe for concurrent use.
type Client struct {
	creds    map[domain.CredentialSet]Credentials
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker[[]byte]
	timeout  time.Duration
	locale   string
	currency string
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxFailures == 0 {
		opts.MaxFailures = 5
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = 30 * time.Second
	}
	if opts.Currency == "" {
		opts.Currency = "TRY"
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	maxFailures := opts.MaxFailures
	log := opts.Logger
	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "payment-gateway",
		Timeout: opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// the per-call timeout surfaces as DeadlineExceeded; Canceled only comes from the caller
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{"breaker": name, "from": from.String(), "to": to.String()}).
				Warn("circuit breaker state changed")
		},
	})

	creds := make(map[domain.CredentialSet]Credentials, len(opts.Credentials))
	for set, c := range opts.Credentials {
		c.BaseURL = strings.TrimRight(c.BaseURL, "/")
		creds[set] = c
	}

	return &Client{
		creds:    creds,
		http:     httpClient,
		breaker:  breaker,
		timeout:  opts.Timeout,
		locale:   opts.Locale,
		currency: opts.Currency,
		log:      log,
		now:      time.Now,
	}
}

// Secret returns the secret key of a credential set; callback signatures are checked with it.
func (c *Client) Secret(set domain.CredentialSet) (string, bool) {
	creds, ok := c.creds[set]
	if !ok || creds.SecretKey == "" {
		return "", false
	}
	return creds.SecretKey, true
}

// do posts req as JSON to path and decodes the body into resp. Only transport failures and
// 5xx answers count against the breaker; business failures come back as 200 with status=failure.
func (c *Client) do(ctx context.Context, set domain.CredentialSet, path string, req, resp any) error {
	creds, ok := c.creds[set]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCredentialSet, set)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode gateway request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.breaker.Execute(func() ([]byte, error) {
		httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, creds.BaseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "application/json")
		c.authorize(httpReq, creds, path, body)

		res, err := c.http.Do(httpReq)
		if err != nil {
			return nil, err
		}
		defer res.Body.Close()

		data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseSize))
		if err != nil {
			return nil, err
		}
		if res.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("%w: status %d", errServerStatus, res.StatusCode)
		}
		return data, nil
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(raw, resp); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return nil
}

// transportResult turns a failed call into an Error result. The call is never retried.
func (c *Client) transportResult(op, conversationID string, err error) domain.PaymentResult {
	code, message := classify(err)
	c.log.WithFields(logrus.Fields{
		"operation":       op,
		"conversation_id": conversationID,
		"code":            code,
	}).WithError(err).Error("payment gateway call failed")
	return domain.ErrorResult(conversationID, code, message)
}

func classify(err error) (string, string) {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return CodeTimeout, "payment gateway did not respond in time"
	case errors.Is(err, ErrMalformedResponse):
		return CodeMalformedResponse, "payment gateway returned an unreadable response"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return CodeUnavailable, "payment gateway is temporarily unavailable"
	default:
		return CodeUnavailable, "payment gateway is unavailable"
	}
}
