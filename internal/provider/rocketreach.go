package provider

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/contact-enricher/internal/config"
	"github.com/sells-group/contact-enricher/internal/model"
	"github.com/sells-group/contact-enricher/internal/resilience"
	"github.com/sells-group/contact-enricher/pkg/rocketreach"
)

// RocketReachName is the provider identifier.
const RocketReachName = "rocketreach"

// RocketReach adapts the RocketReach API to Client. Calls are rate limited,
// guarded by a circuit breaker and bounded by the configured timeout.
type RocketReach struct {
	api     rocketreach.Client
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	timeout time.Duration
	tracer  trace.Tracer
}

// NewRocketReach builds an adapter from config using the HTTP client.
func NewRocketReach(cfg config.ProviderConfig, opts ...rocketreach.Option) *RocketReach {
	base := []rocketreach.Option{rocketreach.WithTimeout(cfg.Timeout())}
	if cfg.BaseURL != "" {
		base = append(base, rocketreach.WithBaseURL(cfg.BaseURL))
	}
	api := rocketreach.NewClient(cfg.APIKey, append(base, opts...)...)
	return NewRocketReachWithAPI(api, cfg)
}

// NewRocketReachWithAPI wraps an existing API client.
func NewRocketReachWithAPI(api rocketreach.Client, cfg config.ProviderConfig) *RocketReach {
	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		burst := int(math.Ceil(cfg.RateLimitRPS))
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}
	return &RocketReach{
		api:     api,
		limiter: limiter,
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:             RocketReachName,
			FailureThreshold: cfg.CircuitFailureThreshold,
			ResetTimeout:     time.Duration(cfg.CircuitResetSecs) * time.Second,
			ShouldTrip:       shouldTrip,
		}),
		timeout: cfg.Timeout(),
		tracer:  otel.Tracer("github.com/sells-group/contact-enricher/internal/provider"),
	}
}

func (r *RocketReach) Name() string  { return RocketReachName }
func (r *RocketReach) Enabled() bool { return true }

// Breaker exposes the circuit state for health reporting.
func (r *RocketReach) Breaker() *resilience.CircuitBreaker { return r.breaker }

func (r *RocketReach) LookupByEmail(ctx context.Context, email string) (*Response, error) {
	return r.lookup(ctx, StrategyEmail, rocketreach.LookupQuery{Email: email})
}

func (r *RocketReach) LookupByLinkedIn(ctx context.Context, linkedInURL string) (*Response, error) {
	return r.lookup(ctx, StrategyLinkedIn, rocketreach.LookupQuery{LinkedInURL: linkedInURL})
}

func (r *RocketReach) LookupByNameAndCompany(ctx context.Context, name, company string) (*Response, error) {
	return r.lookup(ctx, StrategyNameCompany, rocketreach.LookupQuery{Name: name, CurrentEmployer: company})
}

func (r *RocketReach) lookup(ctx context.Context, s Strategy, q rocketreach.LookupQuery) (*Response, error) {
	ctx, span := r.tracer.Start(ctx, "rocketreach.lookup",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("enrich.strategy", s.String())),
	)
	defer span.End()

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			err = &Error{Kind: ErrNetwork, Err: eris.Wrap(err, "rate limiter wait")}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	start := time.Now()
	resp, err := resilience.Call(r.breaker, func() (*rocketreach.LookupResponse, error) {
		callCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		return r.api.Lookup(callCtx, q)
	})
	if err != nil {
		err = translate(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		zap.L().Debug("rocketreach: lookup failed",
			zap.String("strategy", s.String()),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, err
	}

	if resp.NotFound {
		span.SetAttributes(attribute.Bool("enrich.found", false))
		return NotFoundResponse(resp.Message), nil
	}
	span.SetAttributes(attribute.Bool("enrich.found", true))
	person, company := convert(resp)
	return FoundResponse(person, company, resp.Raw), nil
}

// translate maps client failures onto the provider failure kinds.
func translate(err error) error {
	var (
		rl     *rocketreach.RateLimitError
		netErr *rocketreach.NetworkError
		apiErr *rocketreach.APIError
	)
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		return &Error{Kind: ErrNetwork, Err: eris.Wrap(err, "rocketreach temporarily unavailable")}
	case errors.As(err, &rl):
		return &Error{Kind: ErrRateLimited, Err: err, RetryAfter: rl.RetryAfter}
	case errors.As(err, &netErr):
		return &Error{Kind: ErrNetwork, Err: err}
	case errors.As(err, &apiErr):
		return &APIError{Status: apiErr.StatusCode, Message: apiErr.Message}
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return &Error{Kind: ErrNetwork, Err: err}
	default:
		return &APIError{Message: err.Error()}
	}
}

// shouldTrip counts transport failures, throttling and 5xx responses against
// the breaker. Rejected requests and malformed bodies do not.
func shouldTrip(err error) bool {
	var (
		rl     *rocketreach.RateLimitError
		netErr *rocketreach.NetworkError
		apiErr *rocketreach.APIError
	)
	switch {
	case errors.Is(err, context.Canceled):
		return false
	case errors.As(err, &rl), errors.As(err, &netErr):
		return true
	case errors.As(err, &apiErr):
		return resilience.IsTransientHTTPStatus(apiErr.StatusCode)
	}
	return resilience.IsTransient(err)
}

func convert(resp *rocketreach.LookupResponse) (model.Person, *model.Organization) {
	var person model.Person
	if p := resp.Profile; p != nil {
		person = model.Person{
			ID:          string(p.ID),
			Name:        p.Name,
			Title:       p.CurrentTitle,
			Location:    p.Location,
			LinkedInURL: p.LinkedInURL,
			Emails:      values(p.Emails),
			Phones:      values(p.Phones),
		}
	}

	c := resp.Company
	if c == nil {
		return person, nil
	}
	return person, &model.Organization{
		ID:            string(c.ID),
		Name:          c.Name,
		Domain:        c.Domain,
		Website:       c.Website,
		Industry:      c.Industry,
		EmployeeCount: c.Employees(),
		Location:      c.Location,
	}
}

func values(points []rocketreach.ContactPoint) []string {
	out := make([]string, 0, len(points))
	for _, p := range points {
		if v := strings.TrimSpace(p.Value); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// FromConfig returns the RocketReach adapter when credentials are present and
// the Disabled null provider otherwise.
func FromConfig(cfg config.ProviderConfig) Client {
	if !cfg.Configured() {
		return NewDisabled(false)
	}
	return NewRocketReach(cfg)
}
