package iocache

import (
	"github.com/huangsam/stablelint/internal/contract"
	"github.com/huangsam/stablelint/schema"
	"github.com/stretchr/testify/mock"
)

// MockStoreManager is a mock implementation of StoreManager for testing.
type MockStoreManager struct {
	mock.Mock
}

var _ contract.StoreManager = &MockStoreManager{} // Compile-time check

// GetFindingStore implements the StoreManager interface.
func (m *MockStoreManager) GetFindingStore() contract.FindingStore {
	ret := m.Called()
	store, _ := ret.Get(0).(contract.FindingStore)
	return store
}

// MockFindingStore is a mock implementation of FindingStore for testing.
type MockFindingStore struct {
	mock.Mock
}

var _ contract.FindingStore = &MockFindingStore{} // Compile-time check

// Save implements the FindingStore interface.
func (m *MockFindingStore) Save(file string, findings []schema.TrackedFinding) error {
	args := m.Called(file, findings)
	return args.Error(0)
}

// Read implements the FindingStore interface.
func (m *MockFindingStore) Read(file string) ([]schema.TrackedFinding, bool, error) {
	args := m.Called(file)
	findings, _ := args.Get(0).([]schema.TrackedFinding)
	return findings, args.Bool(1), args.Error(2)
}

// Contains implements the FindingStore interface.
func (m *MockFindingStore) Contains(file string) (bool, error) {
	args := m.Called(file)
	return args.Bool(0), args.Error(1)
}

// Delete implements the FindingStore interface.
func (m *MockFindingStore) Delete(file string) error {
	args := m.Called(file)
	return args.Error(0)
}

// Clear implements the FindingStore interface.
func (m *MockFindingStore) Clear() error {
	args := m.Called()
	return args.Error(0)
}

// GetStatus implements the FindingStore interface.
func (m *MockFindingStore) GetStatus() (schema.StoreStatus, error) {
	args := m.Called()
	status, _ := args.Get(0).(schema.StoreStatus)
	return status, args.Error(1)
}

// Close implements the FindingStore interface.
func (m *MockFindingStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
