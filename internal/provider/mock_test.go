package provider

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/contact-enricher/pkg/rocketreach"
)

// --- Client Mock ---

type mockClient struct {
	mock.Mock
}

func (m *mockClient) Name() string  { return "mock" }
func (m *mockClient) Enabled() bool { return true }

func (m *mockClient) LookupByEmail(ctx context.Context, email string) (*Response, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Response), args.Error(1)
}

func (m *mockClient) LookupByLinkedIn(ctx context.Context, linkedInURL string) (*Response, error) {
	args := m.Called(ctx, linkedInURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Response), args.Error(1)
}

func (m *mockClient) LookupByNameAndCompany(ctx context.Context, name, company string) (*Response, error) {
	args := m.Called(ctx, name, company)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Response), args.Error(1)
}

// --- RocketReach API Mock ---

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) Lookup(ctx context.Context, q rocketreach.LookupQuery) (*rocketreach.LookupResponse, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rocketreach.LookupResponse), args.Error(1)
}
