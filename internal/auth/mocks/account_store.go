// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package mocks provides testify mocks of the auth collaborator interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/holomush/credauth/internal/auth"
)

// MockAccountStore is a mock of auth.AccountStore.
type MockAccountStore struct {
	mock.Mock
}

var _ auth.AccountStore = (*MockAccountStore)(nil)

// NewMockAccountStore creates a MockAccountStore that asserts its
// expectations when the test ends.
func NewMockAccountStore(t testingT) *MockAccountStore {
	m := &MockAccountStore{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func accountOrNil(v any) *auth.Account {
	if v == nil {
		return nil
	}
	return v.(*auth.Account) //nolint:forcetypeassert // mock return
}

// FindByEmail provides a mock function.
func (_m *MockAccountStore) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	ret := _m.Called(ctx, email)
	return accountOrNil(ret.Get(0)), ret.Error(1)
}

// FindByID provides a mock function.
func (_m *MockAccountStore) FindByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	ret := _m.Called(ctx, id)
	return accountOrNil(ret.Get(0)), ret.Error(1)
}

// FindByResetToken provides a mock function.
func (_m *MockAccountStore) FindByResetToken(ctx context.Context, tokenHash string) (*auth.Account, error) {
	ret := _m.Called(ctx, tokenHash)
	return accountOrNil(ret.Get(0)), ret.Error(1)
}

// UpsertUnverified provides a mock function.
func (_m *MockAccountStore) UpsertUnverified(ctx context.Context, signup auth.UnverifiedSignup) (*auth.Account, bool, error) {
	ret := _m.Called(ctx, signup)
	return accountOrNil(ret.Get(0)), ret.Bool(1), ret.Error(2)
}

// Create provides a mock function.
func (_m *MockAccountStore) Create(ctx context.Context, account *auth.Account) error {
	ret := _m.Called(ctx, account)
	return ret.Error(0)
}

// MarkVerified provides a mock function.
func (_m *MockAccountStore) MarkVerified(ctx context.Context, id ulid.ULID, codeHash string, at time.Time) error {
	ret := _m.Called(ctx, id, codeHash, at)
	return ret.Error(0)
}

// SetResetToken provides a mock function.
func (_m *MockAccountStore) SetResetToken(ctx context.Context, id ulid.ULID, tokenHash string, expiresAt time.Time) error {
	ret := _m.Called(ctx, id, tokenHash, expiresAt)
	return ret.Error(0)
}

// ConsumeResetToken provides a mock function.
func (_m *MockAccountStore) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, at time.Time) error {
	ret := _m.Called(ctx, tokenHash, passwordHash, at)
	return ret.Error(0)
}

// UpdatePasswordHash provides a mock function.
func (_m *MockAccountStore) UpdatePasswordHash(ctx context.Context, id ulid.ULID, passwordHash string) error {
	ret := _m.Called(ctx, id, passwordHash)
	return ret.Error(0)
}

// Delete provides a mock function.
func (_m *MockAccountStore) Delete(ctx context.Context, id ulid.ULID) (bool, error) {
	ret := _m.Called(ctx, id)
	return ret.Bool(0), ret.Error(1)
}
