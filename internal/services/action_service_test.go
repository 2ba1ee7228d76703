package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pawhaven/pawhaven/internal/models"
	apperrors "github.com/pawhaven/pawhaven/pkg/errors"
)

type actionFixture struct {
	env            *testEnv
	cities         *CityService
	actions        *ActionService
	creator        models.User
	recipient      models.User
	city           *CityDTO
	notificationID string
}

// setupActionFixture creates a city through the normal flow so the recipient
// admin ends up with a city_created notification carrying the unapprove action.
func setupActionFixture(t *testing.T) *actionFixture {
	t.Helper()

	env := newTestEnv(t)
	cities := newCityService(t, env)
	notifications := newNotificationService(t, env)
	actions, err := NewActionService(env.db, notifications)
	require.NoError(t, err)

	creator := env.createUser(t, func(u *models.User) { u.IsAdmin = true })
	recipient := env.createUser(t, func(u *models.User) { u.IsAdmin = true })

	city, err := cities.Create(context.Background(), CreateCityInput{
		Name:        "Ogdenville-" + uuid.NewString(),
		CreatedByID: creator.ID,
	})
	require.NoError(t, err)

	rows := env.notificationsFor(t, recipient.ID)
	require.Len(t, rows, 1)

	return &actionFixture{
		env:            env,
		cities:         cities,
		actions:        actions,
		creator:        creator,
		recipient:      recipient,
		city:           city,
		notificationID: rows[0].ID,
	}
}

func TestActionService_ExecuteUnapprovesCity(t *testing.T) {
	f := setupActionFixture(t)

	result, err := f.actions.Execute(context.Background(), ExecuteActionInput{
		NotificationID: f.notificationID,
		ActionName:     models.ActionUnapproveCity,
		ActingUserID:   f.recipient.ID,
	})
	require.NoError(t, err)
	require.EqualValues(t, 0, result.UnreadBellCount)
	require.True(t, result.Notification.IsRead)

	var city models.City
	require.NoError(t, f.env.db.First(&city, "id = ?", f.city.ID).Error)
	require.Nil(t, city.ApprovedAt)

	// The descriptor is disabled in place, other payload keys survive.
	var row models.Notification
	require.NoError(t, f.env.db.First(&row, "id = ?", f.notificationID).Error)
	require.NotNil(t, row.ReadAt)
	require.Equal(t, f.city.ID, row.DataMap()["city_id"])

	action, err := row.Action()
	require.NoError(t, err)
	require.True(t, action.Disabled)
}

func TestActionService_ExecuteTwiceIsRejected(t *testing.T) {
	f := setupActionFixture(t)

	_, err := f.actions.Execute(context.Background(), ExecuteActionInput{
		NotificationID: f.notificationID,
		ActionName:     models.ActionUnapproveCity,
		ActingUserID:   f.recipient.ID,
	})
	require.NoError(t, err)

	_, err = f.actions.Execute(context.Background(), ExecuteActionInput{
		NotificationID: f.notificationID,
		ActionName:     models.ActionUnapproveCity,
		ActingUserID:   f.recipient.ID,
	})
	require.ErrorIs(t, err, ErrActionDisabled)
}

func TestActionService_NonAdminForbidden(t *testing.T) {
	f := setupActionFixture(t)

	// Demote the recipient before executing.
	require.NoError(t, f.env.db.Model(&models.User{}).
		Where("id = ?", f.recipient.ID).
		Update("is_admin", false).Error)

	_, err := f.actions.Execute(context.Background(), ExecuteActionInput{
		NotificationID: f.notificationID,
		ActionName:     models.ActionUnapproveCity,
		ActingUserID:   f.recipient.ID,
	})
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	// Nothing changed.
	var city models.City
	require.NoError(t, f.env.db.First(&city, "id = ?", f.city.ID).Error)
	require.NotNil(t, city.ApprovedAt)

	var row models.Notification
	require.NoError(t, f.env.db.First(&row, "id = ?", f.notificationID).Error)
	require.Nil(t, row.ReadAt)
}

func TestActionService_UnknownActorForbidden(t *testing.T) {
	f := setupActionFixture(t)

	_, err := f.actions.Execute(context.Background(), ExecuteActionInput{
		NotificationID: f.notificationID,
		ActionName:     models.ActionUnapproveCity,
		ActingUserID:   uuid.NewString(),
	})
	require.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestActionService_ForeignNotificationNotFound(t *testing.T) {
	f := setupActionFixture(t)

	// The creator is an admin but does not own the recipient's notification.
	_, err := f.actions.Execute(context.Background(), ExecuteActionInput{
		NotificationID: f.notificationID,
		ActionName:     models.ActionUnapproveCity,
		ActingUserID:   f.creator.ID,
	})
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestActionService_WrongActionName(t *testing.T) {
	f := setupActionFixture(t)

	_, err := f.actions.Execute(context.Background(), ExecuteActionInput{
		NotificationID: f.notificationID,
		ActionName:     "approve_city",
		ActingUserID:   f.recipient.ID,
	})
	require.Error(t, err)
	require.Equal(t, "BAD_REQUEST", apperrors.FromError(err).Code)
}

func TestActionService_NotificationWithoutAction(t *testing.T) {
	f := setupActionFixture(t)

	_, err := f.env.dispatcher.Dispatch(context.Background(), DispatchInput{
		UserID:  f.recipient.ID,
		Message: "Plain message with nothing to execute.",
	})
	require.NoError(t, err)

	var plain models.Notification
	require.NoError(t, f.env.db.
		Where("user_id = ? AND message = ?", f.recipient.ID, "Plain message with nothing to execute.").
		First(&plain).Error)

	_, err = f.actions.Execute(context.Background(), ExecuteActionInput{
		NotificationID: plain.ID,
		ActionName:     models.ActionUnapproveCity,
		ActingUserID:   f.recipient.ID,
	})
	require.ErrorIs(t, err, ErrNoExecutableAction)
}
