package provider

import (
	"context"

	"github.com/rotisserie/eris"
)

// Lookup runs strategy s against c. Auto walks Precedence, skipping families
// the identity has no data for, and stops at the first definitive response.
// Errors are returned as soon as they occur without trying further families.
// The returned strategy is the one that produced the response.
//
// A response carrying neither a match nor a not-found answer is never
// returned; it becomes an APIError once no family is left to try.
func Lookup(ctx context.Context, c Client, s Strategy, id Identity) (*Response, Strategy, error) {
	if s != StrategyAuto {
		if _, err := id.Resolve(s); err != nil {
			return nil, s, err
		}
		resp, err := dispatch(ctx, c, s, id)
		if err != nil {
			return nil, s, err
		}
		if !resp.Definitive() {
			return nil, s, errEmptyResponse()
		}
		return resp, s, nil
	}

	tried := StrategyAuto
	for _, p := range Precedence {
		if !id.Has(p) {
			continue
		}
		resp, err := dispatch(ctx, c, p, id)
		if err != nil {
			return nil, p, err
		}
		if resp.Definitive() {
			return resp, p, nil
		}
		tried = p
	}
	if tried != StrategyAuto {
		return nil, tried, errEmptyResponse()
	}
	if _, err := id.Resolve(StrategyAuto); err != nil {
		return nil, StrategyAuto, err
	}
	return nil, StrategyAuto, errEmptyResponse()
}

func errEmptyResponse() error {
	return &APIError{Message: "empty provider response"}
}

func dispatch(ctx context.Context, c Client, s Strategy, id Identity) (*Response, error) {
	switch s {
	case StrategyEmail:
		return c.LookupByEmail(ctx, id.Email)
	case StrategyLinkedIn:
		return c.LookupByLinkedIn(ctx, id.LinkedInURL)
	case StrategyNameCompany:
		return c.LookupByNameAndCompany(ctx, id.FullName(), id.Company)
	}
	return nil, eris.Errorf("provider: cannot dispatch strategy %q", s)
}
