package services

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pawhaven/pawhaven/internal/models"
	apperrors "github.com/pawhaven/pawhaven/pkg/errors"
)

func newUserService(t *testing.T, env *testEnv) *UserService {
	t.Helper()
	verification := newVerificationService(t, env)
	svc, err := NewUserService(env.db, verification)
	require.NoError(t, err)
	return svc
}

func TestUserService_RegisterSendsVerification(t *testing.T) {
	env := newTestEnv(t)
	svc := newUserService(t, env)

	email := uuid.NewString() + "@example.com"
	user, err := svc.Register(context.Background(), RegisterInput{
		Name:     "Robin",
		Email:    "  " + strings.ToUpper(email) + "  ",
		Password: "correct horse battery",
	})
	require.NoError(t, err)
	require.Equal(t, email, user.Email)
	require.False(t, user.EmailVerified)
	require.False(t, user.IsAdmin)

	require.EqualValues(t, 1, env.verificationCount(t, user.ID))
	require.EqualValues(t, 1, env.emailLogCount(t, user.ID))
	require.Len(t, env.mailer.messages(), 1)
}

func TestUserService_RegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	svc := newUserService(t, env)

	email := uuid.NewString() + "@example.com"
	_, err := svc.Register(context.Background(), RegisterInput{
		Name:     "Robin",
		Email:    email,
		Password: "correct horse battery",
	})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), RegisterInput{
		Name:     "Other Robin",
		Email:    email,
		Password: "correct horse battery",
	})
	require.Error(t, err)
	require.Equal(t, "BAD_REQUEST", apperrors.FromError(err).Code)
}

func TestUserService_RegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	svc := newUserService(t, env)

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:    uuid.NewString() + "@example.com",
		Password: "correct horse battery",
	})
	require.Error(t, err)

	_, err = svc.Register(context.Background(), RegisterInput{
		Name:     "Robin",
		Email:    uuid.NewString() + "@example.com",
		Password: "short",
	})
	require.Error(t, err)
}

func TestUserService_Authenticate(t *testing.T) {
	env := newTestEnv(t)
	svc := newUserService(t, env)

	email := uuid.NewString() + "@example.com"
	created, err := svc.Register(context.Background(), RegisterInput{
		Name:     "Robin",
		Email:    email,
		Password: "correct horse battery",
	})
	require.NoError(t, err)

	user, err := svc.Authenticate(context.Background(), email, "correct horse battery")
	require.NoError(t, err)
	require.Equal(t, created.ID, user.ID)

	_, err = svc.Authenticate(context.Background(), email, "wrong password")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = svc.Authenticate(context.Background(), uuid.NewString()+"@example.com", "correct horse battery")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestUserService_AuthenticateInactiveAccount(t *testing.T) {
	env := newTestEnv(t)
	svc := newUserService(t, env)

	email := uuid.NewString() + "@example.com"
	created, err := svc.Register(context.Background(), RegisterInput{
		Name:     "Robin",
		Email:    email,
		Password: "correct horse battery",
	})
	require.NoError(t, err)

	require.NoError(t, env.db.Model(&models.User{}).
		Where("id = ?", created.ID).
		Update("is_active", false).Error)

	_, err = svc.Authenticate(context.Background(), email, "correct horse battery")
	require.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestUserService_GetByID(t *testing.T) {
	env := newTestEnv(t)
	svc := newUserService(t, env)
	user := env.createUser(t)

	got, err := svc.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, user.Email, got.Email)

	_, err = svc.GetByID(context.Background(), uuid.NewString())
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}
