package account

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/crossx-exchange/crossx/internal/apperrors"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	svc, err := New(db, zap.NewNop())
	require.NoError(t, err)
	return svc
}

func TestRegisterAndValidateCredentials(t *testing.T) {
	svc := newTestService(t)
	require.NoError(t, svc.Register("alice", "hunter2"))

	assert.NoError(t, svc.ValidateCredentials("alice", "hunter2"))
}

func TestValidateCredentialsRejectsWrongPassword(t *testing.T) {
	svc := newTestService(t)
	require.NoError(t, svc.Register("alice", "hunter2"))

	err := svc.ValidateCredentials("alice", "wrong")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrBadCredentials))
}

func TestValidateCredentialsRejectsUnknownUser(t *testing.T) {
	svc := newTestService(t)
	err := svc.ValidateCredentials("nobody", "whatever")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrUserNotFound))
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	svc := newTestService(t)
	require.NoError(t, svc.Register("alice", "hunter2"))
	assert.Error(t, svc.Register("alice", "otherpass"))
}

func TestUpdatePasswordReplacesHash(t *testing.T) {
	svc := newTestService(t)
	require.NoError(t, svc.Register("alice", "hunter2"))

	require.NoError(t, svc.UpdatePassword("alice", "hunter2", "newpass"))

	assert.Error(t, svc.ValidateCredentials("alice", "hunter2"))
	assert.NoError(t, svc.ValidateCredentials("alice", "newpass"))
}

func TestUpdatePasswordRejectsWrongOldPassword(t *testing.T) {
	svc := newTestService(t)
	require.NoError(t, svc.Register("alice", "hunter2"))

	err := svc.UpdatePassword("alice", "wrongold", "newpass")
	require.Error(t, err)
	assert.NoError(t, svc.ValidateCredentials("alice", "hunter2"), "password must be unchanged")
}
