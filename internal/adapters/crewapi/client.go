// Package crewapi is the typed client for the crew PHP REST API. Loosely
// typed payloads are coerced into domain records here and nowhere else.
package crewapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"crewportal/internal/adapters/http/perf"
	"crewportal/internal/domain/crew"
	"crewportal/internal/domain/flight"
)

// Endpoint paths, relative to the base URL.
const (
	EndpointRegisterStart = "register/start"
	EndpointSetPassword   = "auth/set-password"
	EndpointLogin         = "auth/login"
	EndpointCrewExists    = "crew/exists"
	EndpointMemberStatus  = "member/status"
	EndpointFetchProfile  = "crew/profile"
	EndpointSaveProfile   = "crew/profile/" // + section
	EndpointNextFlight    = "flights/next"
)

// DefaultTimeout is the per-request ceiling when none is configured.
const DefaultTimeout = 15 * time.Second

// maxBody caps how much of a response is read.
const maxBody = 1 << 20

// Options configures a Client.
type Options struct {
	BaseURL           string
	HTTPClient        *http.Client
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	Collector         *perf.Collector
}

// Client calls the crew API. It is safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	timeout    time.Duration
	limiter    *rate.Limiter
	collector  *perf.Collector
}

// New creates a Client.
// PRE: opts.BaseURL is an absolute http(s) URL
// POST: zero values fall back to http.DefaultClient, DefaultTimeout and no rate limit
func New(opts Options) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Host == "" || (base.Scheme != "http" && base.Scheme != "https") {
		return nil, fmt.Errorf("crew api: invalid base url %q", opts.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	c := &Client{
		baseURL:    base,
		httpClient: opts.HTTPClient,
		timeout:    opts.Timeout,
		limiter:    rate.NewLimiter(rate.Inf, 0),
		collector:  opts.Collector,
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return c, nil
}

// post sends body as JSON to endpoint and decodes the response into out.
// The request is bounded by the client timeout and the upstream rate limit.
// An empty token sends no Authorization header.
func (c *Client) post(ctx context.Context, endpoint, token string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("crew api %s: %w", endpoint, err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("crew api %s: encode request: %w", endpoint, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL.JoinPath(endpoint).String(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("crew api %s: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(req)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	c.record(endpoint, status, start)
	if err != nil {
		slog.Warn("crew_api_unreachable", "endpoint", endpoint, "error", err)
		return fmt.Errorf("crew api %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("crew api %s: read response: %w", endpoint, err)
	}

	var env envelope
	var decodeErr error
	if len(bytes.TrimSpace(raw)) > 0 {
		decodeErr = json.Unmarshal(raw, &env)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || env.rejected() {
		apiErr := &APIError{
			Endpoint: endpoint,
			Status:   resp.StatusCode,
			Code:     string(env.Code),
			Message:  env.text(),
		}
		slog.Info("crew_api_rejected", "endpoint", endpoint, "status", apiErr.Status, "code", apiErr.Code)
		return apiErr
	}
	if decodeErr != nil {
		return fmt.Errorf("%w: %s: %v", ErrDecode, endpoint, decodeErr)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDecode, endpoint, err)
	}
	return nil
}

func (c *Client) record(endpoint string, status int, start time.Time) {
	if c.collector == nil {
		return
	}
	c.collector.Record(perf.Entry{
		Kind:       perf.KindUpstream,
		Path:       endpoint,
		StatusCode: status,
		DurationMs: float64(time.Since(start).Microseconds()) / 1000.0,
		Timestamp:  start,
	})
}

// RegisterStart asks the API to create the account and send the
// verification email.
// POST: nil means the email is on its way
func (c *Client) RegisterStart(ctx context.Context, req RegisterRequest) error {
	return c.post(ctx, EndpointRegisterStart, "", req, nil)
}

// SetPassword sets the first password of a verified account.
func (c *Client) SetPassword(ctx context.Context, username, password string) error {
	return c.post(ctx, EndpointSetPassword, "", SetPasswordRequest{Username: username, Password: password}, nil)
}

// Login authenticates and returns the tokens and the merged user record.
// POST: on success AccessToken is non-empty
func (c *Client) Login(ctx context.Context, creds Credentials) (LoginResult, error) {
	var resp loginResponse
	if err := c.post(ctx, EndpointLogin, "", creds, &resp); err != nil {
		return LoginResult{}, err
	}
	if resp.AccessToken == "" {
		return LoginResult{}, fmt.Errorf("%w: %s: missing accessToken", ErrDecode, EndpointLogin)
	}
	return LoginResult{
		AccessToken:  string(resp.AccessToken),
		RefreshToken: string(resp.RefreshToken),
		User:         resp.toUser(creds.Username),
	}, nil
}

// CrewExists reports whether a crew record exists for psn.
func (c *Client) CrewExists(ctx context.Context, token, psn string) (bool, error) {
	var resp existsResponse
	if err := c.post(ctx, EndpointCrewExists, token, psnRequest{PSN: psn}, &resp); err != nil {
		return false, err
	}
	return bool(resp.Exists), nil
}

// MemberStatus returns the server's next_step for psn; "" when absent.
func (c *Client) MemberStatus(ctx context.Context, token, psn string) (string, error) {
	var resp statusResponse
	if err := c.post(ctx, EndpointMemberStatus, token, psnRequest{PSN: psn}, &resp); err != nil {
		return "", err
	}
	return string(resp.NextStep), nil
}

// FetchProfile returns the crew record for psn, or nil when the server has none.
func (c *Client) FetchProfile(ctx context.Context, token, psn string) (*crew.Member, error) {
	var resp profileResponse
	if err := c.post(ctx, EndpointFetchProfile, token, psnRequest{PSN: psn}, &resp); err != nil {
		return nil, err
	}
	return resp.Member.toMember(psn), nil
}

// SaveProfile posts one wizard section as a flat record including psn.
func (c *Client) SaveProfile(ctx context.Context, token, psn string, section crew.Section, record map[string]string) error {
	body := make(map[string]string, len(record)+1)
	for k, v := range record {
		body[k] = v
	}
	body["psn"] = psn
	return c.post(ctx, EndpointSaveProfile+string(section), token, body, nil)
}

// NextFlight returns the next duty flight of psn; the zero Flight when none
// is scheduled. Cancelling ctx aborts the call.
func (c *Client) NextFlight(ctx context.Context, token, psn string) (flight.Flight, error) {
	var resp nextFlightResponse
	if err := c.post(ctx, EndpointNextFlight, token, psnRequest{PSN: psn}, &resp); err != nil {
		return flight.Flight{}, err
	}
	return resp.Flight.toFlight(), nil
}

// IsTransient reports whether err is a timeout, cancellation or transport
// failure rather than a server verdict.
func IsTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500
	}
	return err != nil && !errors.Is(err, ErrDecode)
}
