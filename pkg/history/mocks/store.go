// Code generated manually. DO NOT EDIT.

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/williamokano/web_deployer/pkg/history"
)

// MockStore is a mock implementation of the history.Store interface
type MockStore struct {
	mock.Mock
}

// Append provides a mock function with given fields: ctx, rec
func (m *MockStore) Append(ctx context.Context, rec history.Record) error {
	ret := m.Called(ctx, rec)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, history.Record) error); ok {
		r0 = rf(ctx, rec)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// List provides a mock function with given fields: ctx, project
func (m *MockStore) List(ctx context.Context, project string) ([]history.Record, error) {
	ret := m.Called(ctx, project)

	var r0 []history.Record
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) ([]history.Record, error)); ok {
		return rf(ctx, project)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) []history.Record); ok {
		r0 = rf(ctx, project)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]history.Record)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, project)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Prune provides a mock function with given fields: ctx, project, keep
func (m *MockStore) Prune(ctx context.Context, project string, keep int) (int, error) {
	ret := m.Called(ctx, project, keep)

	var r0 int
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, int) (int, error)); ok {
		return rf(ctx, project, keep)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string, int) int); ok {
		r0 = rf(ctx, project, keep)
	} else {
		r0 = ret.Get(0).(int)
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, int) error); ok {
		r1 = rf(ctx, project, keep)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Close provides a mock function with given fields:
func (m *MockStore) Close() error {
	ret := m.Called()

	var r0 error
	if rf, ok := ret.Get(0).(func() error); ok {
		r0 = rf()
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// NewMockStore creates a new instance of MockStore
func NewMockStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockStore {
	mock_1 := &MockStore{}
	mock_1.Mock.Test(t)

	t.Cleanup(func() { mock_1.AssertExpectations(t) })

	return mock_1
}
