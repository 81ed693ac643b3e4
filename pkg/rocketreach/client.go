// Package rocketreach is a minimal client for the RocketReach person and
// company lookup API.
package rocketreach

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultBaseURL   = "https://api.rocketreach.co/api/v2"
	defaultUserAgent = "contact-enricher/1.0"
	lookupPath       = "/profile-company/lookup"

	notFoundMessage = "Person not found in RocketReach database"
)

// Client looks up people and their employers.
type Client interface {
	Lookup(ctx context.Context, q LookupQuery) (*LookupResponse, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *httpClient) {
		c.userAgent = ua
	}
}

type httpClient struct {
	apiKey    string
	baseURL   string
	userAgent string
	http      *http.Client
}

// NewClient creates a RocketReach API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:    apiKey,
		baseURL:   defaultBaseURL,
		userAgent: defaultUserAgent,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Lookup(ctx context.Context, q LookupQuery) (*LookupResponse, error) {
	params := q.Values()
	if len(params) == 0 {
		return nil, eris.New("rocketreach: lookup query has no identifiers")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+lookupPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "rocketreach: create request")
	}
	httpReq.Header.Set("Api-Key", c.apiKey)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{Err: eris.Wrap(err, "send request")}
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Err: eris.Wrap(err, "read response")}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &LookupResponse{NotFound: true, Message: errorMessage(respBody, notFoundMessage), Raw: respBody}, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &RateLimitError{
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Message:    errorMessage(respBody, "too many requests"),
		}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "invalid API key: " + errorMessage(respBody, http.StatusText(resp.StatusCode))}
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(respBody, "API request failed")}
	}

	return decodeLookup(respBody)
}

// decodeLookup accepts both the nested {"profile": .., "company": ..} shape
// and a flat profile carrying current_employer_* fields.
func decodeLookup(body []byte) (*LookupResponse, error) {
	var envelope struct {
		Profile *Profile `json:"profile"`
		Company *Company `json:"company"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &APIError{StatusCode: http.StatusOK, Message: "invalid JSON response: " + err.Error()}
	}

	out := &LookupResponse{Raw: body, Profile: envelope.Profile, Company: envelope.Company}
	if out.Profile == nil {
		var flat Profile
		if err := json.Unmarshal(body, &flat); err != nil {
			return nil, &APIError{StatusCode: http.StatusOK, Message: "invalid JSON response: " + err.Error()}
		}
		out.Profile = &flat
	}

	if out.Profile.empty() {
		return &LookupResponse{NotFound: true, Message: notFoundMessage, Raw: body}, nil
	}

	if out.Company == nil && out.Profile.CurrentEmployer != "" {
		out.Company = &Company{
			ID:      out.Profile.CurrentEmployerID,
			Name:    out.Profile.CurrentEmployer,
			Domain:  out.Profile.CurrentEmployerDomain,
			Website: out.Profile.CurrentEmployerWebsite,
		}
	}
	return out, nil
}

// errorMessage pulls a human-readable message out of an error body.
func errorMessage(body []byte, fallback string) string {
	var e struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil {
		for _, s := range []string{e.Detail, e.Message, e.Error} {
			if s != "" {
				return s
			}
		}
	}
	if s := string(bytes.TrimSpace(body)); s != "" && len(s) <= 200 && !strings.HasPrefix(s, "{") {
		return s
	}
	return fallback
}

func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
