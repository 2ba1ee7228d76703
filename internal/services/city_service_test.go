package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pawhaven/pawhaven/internal/models"
	apperrors "github.com/pawhaven/pawhaven/pkg/errors"
)

func newCityService(t *testing.T, env *testEnv) *CityService {
	t.Helper()
	svc, err := NewCityService(env.db, env.dispatcher)
	require.NoError(t, err)
	return svc
}

func TestCityService_CreateApprovesAndNotifiesOtherAdmins(t *testing.T) {
	env := newTestEnv(t)
	svc := newCityService(t, env)

	creator := env.createUser(t, func(u *models.User) { u.IsAdmin = true })
	otherAdmin := env.createUser(t, func(u *models.User) { u.IsAdmin = true })
	regular := env.createUser(t)

	name := "Springfield-" + uuid.NewString()
	city, err := svc.Create(context.Background(), CreateCityInput{Name: name, CreatedByID: creator.ID})
	require.NoError(t, err)
	require.Equal(t, name, city.Name)
	require.NotNil(t, city.ApprovedAt)

	// Only the other admin is notified, in-app only, with the unapprove action.
	require.EqualValues(t, 0, env.notificationCount(t, creator.ID))
	require.EqualValues(t, 0, env.notificationCount(t, regular.ID))

	rows := env.notificationsFor(t, otherAdmin.ID)
	require.Len(t, rows, 1)
	require.Equal(t, string(models.TypeCityCreated), rows[0].Type)
	require.Equal(t, models.ChannelInApp, rows[0].Channel())
	require.EqualValues(t, 0, env.emailLogCount(t, otherAdmin.ID))

	action, err := rows[0].Action()
	require.NoError(t, err)
	require.Equal(t, models.ActionUnapproveCity, action.Kind)
	require.Equal(t, city.ID, action.CityID)
	require.False(t, action.Disabled)
}

func TestCityService_CreateDuplicateName(t *testing.T) {
	env := newTestEnv(t)
	svc := newCityService(t, env)
	admin := env.createUser(t, func(u *models.User) { u.IsAdmin = true })

	name := "Shelbyville-" + uuid.NewString()
	_, err := svc.Create(context.Background(), CreateCityInput{Name: name, CreatedByID: admin.ID})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateCityInput{Name: name, CreatedByID: admin.ID})
	require.Error(t, err)
	require.Equal(t, "BAD_REQUEST", apperrors.FromError(err).Code)
}

func TestCityService_CreateRequiresName(t *testing.T) {
	env := newTestEnv(t)
	svc := newCityService(t, env)
	admin := env.createUser(t, func(u *models.User) { u.IsAdmin = true })

	_, err := svc.Create(context.Background(), CreateCityInput{Name: "   ", CreatedByID: admin.ID})
	require.Error(t, err)
}

func TestCityService_List(t *testing.T) {
	env := newTestEnv(t)
	svc := newCityService(t, env)
	admin := env.createUser(t, func(u *models.User) { u.IsAdmin = true })

	suffix := uuid.NewString()
	for _, name := range []string{"B-" + suffix, "A-" + suffix} {
		_, err := svc.Create(context.Background(), CreateCityInput{Name: name, CreatedByID: admin.ID})
		require.NoError(t, err)
	}

	cities, err := svc.List(context.Background())
	require.NoError(t, err)

	var names []string
	for _, city := range cities {
		if city.Name == "A-"+suffix || city.Name == "B-"+suffix {
			names = append(names, city.Name)
		}
	}
	require.Equal(t, []string{"A-" + suffix, "B-" + suffix}, names)
}
