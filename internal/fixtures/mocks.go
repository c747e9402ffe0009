// Package fixtures holds testify mocks shared by package tests.
package fixtures

import (
	"context"

	"github.com/amirasaad/ledger/pkg/dto"
	"github.com/stretchr/testify/mock"
)

type testingT interface {
	mock.TestingT
	Cleanup(func())
}

// MockSnapshotStore is a mock repository.SnapshotStore.
type MockSnapshotStore struct {
	mock.Mock
}

// NewMockSnapshotStore creates a mock whose expectations are asserted on cleanup.
func NewMockSnapshotStore(t testingT) *MockSnapshotStore {
	m := &MockSnapshotStore{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockSnapshotStore) Save(ctx context.Context, data []byte) error {
	args := m.Called(ctx, data)
	return args.Error(0)
}

func (m *MockSnapshotStore) Load(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

// MockAuthenticator is a mock auth.Authenticator.
type MockAuthenticator struct {
	mock.Mock
}

// NewMockAuthenticator creates a mock whose expectations are asserted on cleanup.
func NewMockAuthenticator(t testingT) *MockAuthenticator {
	m := &MockAuthenticator{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockAuthenticator) Authenticate(ctx context.Context, username, credential string) (dto.UserRead, error) {
	args := m.Called(ctx, username, credential)
	u, _ := args.Get(0).(dto.UserRead)
	return u, args.Error(1)
}
