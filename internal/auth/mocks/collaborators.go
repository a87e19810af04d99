// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package mocks

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/holomush/credauth/internal/auth"
)

type testingT interface {
	mock.TestingT
	Cleanup(func())
}

// MockNotificationGateway is a mock of auth.NotificationGateway.
type MockNotificationGateway struct {
	mock.Mock
}

var _ auth.NotificationGateway = (*MockNotificationGateway)(nil)

// NewMockNotificationGateway creates a MockNotificationGateway.
func NewMockNotificationGateway(t testingT) *MockNotificationGateway {
	m := &MockNotificationGateway{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// SendVerificationCode provides a mock function.
func (_m *MockNotificationGateway) SendVerificationCode(ctx context.Context, email, code string) error {
	return _m.Called(ctx, email, code).Error(0)
}

// SendResetLink provides a mock function.
func (_m *MockNotificationGateway) SendResetLink(ctx context.Context, email, link string) error {
	return _m.Called(ctx, email, link).Error(0)
}

// MockCredentialHasher is a mock of auth.CredentialHasher.
type MockCredentialHasher struct {
	mock.Mock
}

var _ auth.CredentialHasher = (*MockCredentialHasher)(nil)

// NewMockCredentialHasher creates a MockCredentialHasher.
func NewMockCredentialHasher(t testingT) *MockCredentialHasher {
	m := &MockCredentialHasher{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Hash provides a mock function.
func (_m *MockCredentialHasher) Hash(plaintext string) (string, error) {
	ret := _m.Called(plaintext)
	return ret.String(0), ret.Error(1)
}

// Compare provides a mock function.
func (_m *MockCredentialHasher) Compare(plaintext, hash string) (bool, error) {
	ret := _m.Called(plaintext, hash)
	return ret.Bool(0), ret.Error(1)
}

// NeedsUpgrade provides a mock function.
func (_m *MockCredentialHasher) NeedsUpgrade(hash string) bool {
	return _m.Called(hash).Bool(0)
}

// MockSecretGenerator is a mock of auth.SecretGenerator.
type MockSecretGenerator struct {
	mock.Mock
}

var _ auth.SecretGenerator = (*MockSecretGenerator)(nil)

// NewMockSecretGenerator creates a MockSecretGenerator.
func NewMockSecretGenerator(t testingT) *MockSecretGenerator {
	m := &MockSecretGenerator{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// VerificationCode provides a mock function.
func (_m *MockSecretGenerator) VerificationCode() (string, error) {
	ret := _m.Called()
	return ret.String(0), ret.Error(1)
}

// ResetToken provides a mock function.
func (_m *MockSecretGenerator) ResetToken() (string, error) {
	ret := _m.Called()
	return ret.String(0), ret.Error(1)
}

// MockSessionIssuer is a mock of auth.SessionIssuer.
type MockSessionIssuer struct {
	mock.Mock
}

var _ auth.SessionIssuer = (*MockSessionIssuer)(nil)

// NewMockSessionIssuer creates a MockSessionIssuer.
func NewMockSessionIssuer(t testingT) *MockSessionIssuer {
	m := &MockSessionIssuer{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Issue provides a mock function.
func (_m *MockSessionIssuer) Issue(accountID ulid.ULID) (auth.Session, error) {
	ret := _m.Called(accountID)
	session, _ := ret.Get(0).(auth.Session) //nolint:errcheck // zero value when unset
	return session, ret.Error(1)
}

// Verify provides a mock function.
func (_m *MockSessionIssuer) Verify(token string) (ulid.ULID, error) {
	ret := _m.Called(token)
	id, _ := ret.Get(0).(ulid.ULID) //nolint:errcheck // zero value when unset
	return id, ret.Error(1)
}
