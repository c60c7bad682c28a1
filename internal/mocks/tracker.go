package mocks

import (
	"context"

	"github.com/brettbedarf/issuefs"
	"github.com/stretchr/testify/mock"
)

// MockTracker implements issuefs.Tracker for testing across packages
type MockTracker struct {
	mock.Mock
}

func (m *MockTracker) Search(ctx context.Context, query string, opts issuefs.QueryOptions) ([]*issuefs.Issue, error) {
	args := m.Called(ctx, query, opts)

	// Handle function return types (for complex tests)
	if fn, ok := args.Get(0).(func(context.Context, string, issuefs.QueryOptions) []*issuefs.Issue); ok {
		return fn(ctx, query, opts), args.Error(1)
	}

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*issuefs.Issue), args.Error(1)
}

func (m *MockTracker) GetIssue(ctx context.Context, id string, opts issuefs.QueryOptions) (*issuefs.Issue, error) {
	args := m.Called(ctx, id, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*issuefs.Issue), args.Error(1)
}

func (m *MockTracker) GetComments(ctx context.Context, id string, opts issuefs.QueryOptions) ([]issuefs.Comment, error) {
	args := m.Called(ctx, id, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]issuefs.Comment), args.Error(1)
}

func (m *MockTracker) Version(ctx context.Context) issuefs.VersionInfo {
	args := m.Called(ctx)
	return args.Get(0).(issuefs.VersionInfo)
}

var _ issuefs.Tracker = (*MockTracker)(nil)
