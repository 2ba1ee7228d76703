package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	iauth "github.com/pawhaven/pawhaven/internal/auth"
	"github.com/pawhaven/pawhaven/internal/cache"
	"github.com/pawhaven/pawhaven/internal/database/testutil"
	"github.com/pawhaven/pawhaven/internal/models"
	"github.com/pawhaven/pawhaven/internal/services"
)

type apiFixture struct {
	db     *gorm.DB
	jwt    *iauth.JWTService
	router *gin.Engine
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "router-test-secret", Issuer: "pawhaven"})
	require.NoError(t, err)

	guard, err := services.NewWindowGuard(cache.NewDatabaseStore(db))
	require.NoError(t, err)
	prefs, err := services.NewPreferenceService(db)
	require.NoError(t, err)
	dispatcher, err := services.NewDispatcher(db, prefs, guard)
	require.NoError(t, err)
	verification, err := services.NewVerificationService(db, dispatcher, guard)
	require.NoError(t, err)
	users, err := services.NewUserService(db, verification)
	require.NoError(t, err)
	notifications, err := services.NewNotificationService(db)
	require.NoError(t, err)
	actions, err := services.NewActionService(db, notifications)
	require.NoError(t, err)
	cities, err := services.NewCityService(db, dispatcher)
	require.NoError(t, err)
	telegramSvc, err := services.NewTelegramService(db, prefs, nil)
	require.NoError(t, err)

	router, err := NewRouter(Dependencies{
		DB:              db,
		JWT:             jwtSvc,
		Users:           users,
		Verification:    verification,
		Notifications:   notifications,
		Actions:         actions,
		Cities:          cities,
		Telegram:        telegramSvc,
		TelegramBotName: "pawhaven_bot",
	})
	require.NoError(t, err)

	return &apiFixture{db: db, jwt: jwtSvc, router: router}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.True(t, envelope.Success, "body: %s", rec.Body.String())
	return envelope.Data
}

func (f *apiFixture) tokenFor(t *testing.T, userID string, admin bool) string {
	t.Helper()
	token, err := f.jwt.GenerateAccessToken(iauth.AccessTokenInput{UserID: userID, IsAdmin: admin})
	require.NoError(t, err)
	return token
}

func TestRouter_RegisterLoginAndBell(t *testing.T) {
	f := newAPIFixture(t)
	email := uuid.NewString() + "@example.com"

	rec := f.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"name":     "Robin",
		"email":    email,
		"password": "correct horse battery",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    email,
		"password": "correct horse battery",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decodeData(t, rec)
	token, _ := data["access_token"].(string)
	require.NotEmpty(t, token)

	// The verification email row is email-tagged, so the bell stays empty.
	rec = f.do(t, http.MethodGet, "/api/notifications/unified", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data = decodeData(t, rec)
	require.EqualValues(t, 0, data["unread_bell_count"])
	require.Empty(t, data["bell_notifications"])

	// The legacy unfiltered listing still shows it.
	rec = f.do(t, http.MethodGet, "/api/notifications", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_LoginRejectsBadCredentials(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    uuid.NewString() + "@example.com",
		"password": "whatever12",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_ProtectedRoutesRequireToken(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/notifications/unified", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/notifications/unified", "garbage-token", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_CityCreationIsAdminOnly(t *testing.T) {
	f := newAPIFixture(t)

	admin := models.User{Name: "Admin", Email: uuid.NewString() + "@example.com", Password: "x", IsActive: true, IsAdmin: true}
	require.NoError(t, f.db.Create(&admin).Error)
	regular := models.User{Name: "Member", Email: uuid.NewString() + "@example.com", Password: "x", IsActive: true}
	require.NoError(t, f.db.Create(&regular).Error)

	name := "Capital City-" + uuid.NewString()

	rec := f.do(t, http.MethodPost, "/api/cities", f.tokenFor(t, regular.ID, false), gin.H{"name": name})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/cities", f.tokenFor(t, admin.ID, true), gin.H{"name": name})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/cities", f.tokenFor(t, regular.ID, false), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), name)
}

func TestRouter_NotificationActionFlow(t *testing.T) {
	f := newAPIFixture(t)

	creator := models.User{Name: "Creator", Email: uuid.NewString() + "@example.com", Password: "x", IsActive: true, IsAdmin: true}
	require.NoError(t, f.db.Create(&creator).Error)
	recipient := models.User{Name: "Recipient", Email: uuid.NewString() + "@example.com", Password: "x", IsActive: true, IsAdmin: true}
	require.NoError(t, f.db.Create(&recipient).Error)

	rec := f.do(t, http.MethodPost, "/api/cities", f.tokenFor(t, creator.ID, true),
		gin.H{"name": "North Haverbrook-" + uuid.NewString()})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	recipientToken := f.tokenFor(t, recipient.ID, true)
	rec = f.do(t, http.MethodGet, "/api/notifications/unified", recipientToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	require.EqualValues(t, 1, data["unread_bell_count"])

	bell, _ := data["bell_notifications"].([]any)
	require.Len(t, bell, 1)
	first, _ := bell[0].(map[string]any)
	notificationID, _ := first["id"].(string)
	require.NotEmpty(t, notificationID)

	path := fmt.Sprintf("/api/notifications/%s/actions/%s", notificationID, models.ActionUnapproveCity)
	rec = f.do(t, http.MethodPost, path, recipientToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data = decodeData(t, rec)
	require.EqualValues(t, 0, data["unread_bell_count"])

	// Running it again conflicts.
	rec = f.do(t, http.MethodPost, path, recipientToken, nil)
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
}

func TestRouter_MarkAllReadEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	user := models.User{Name: "Reader", Email: uuid.NewString() + "@example.com", Password: "x", IsActive: true}
	require.NoError(t, f.db.Create(&user).Error)
	token := f.tokenFor(t, user.ID, false)

	rec := f.do(t, http.MethodPost, "/api/notifications/mark-all-read", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/notifications/mark-as-read", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRouter_MarkSingleNotificationRead(t *testing.T) {
	f := newAPIFixture(t)

	owner := models.User{Name: "Owner", Email: uuid.NewString() + "@example.com", Password: "x", IsActive: true}
	require.NoError(t, f.db.Create(&owner).Error)
	stranger := models.User{Name: "Stranger", Email: uuid.NewString() + "@example.com", Password: "x", IsActive: true}
	require.NoError(t, f.db.Create(&stranger).Error)

	row := models.Notification{
		UserID:  owner.ID,
		Message: "A new pet is waiting for you",
		Data:    datatypes.JSON([]byte(`{"channel":"in_app"}`)),
	}
	require.NoError(t, f.db.Create(&row).Error)

	token := f.tokenFor(t, owner.ID, false)

	rec := f.do(t, http.MethodPost, "/api/notifications/"+row.ID+"/read", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decodeData(t, rec)
	require.Equal(t, true, data["is_read"])

	var stored models.Notification
	require.NoError(t, f.db.First(&stored, "id = ?", row.ID).Error)
	require.NotNil(t, stored.ReadAt)

	// Ownership is enforced: another user's token sees a 404, not the row.
	rec = f.do(t, http.MethodPost, "/api/notifications/"+row.ID+"/read", f.tokenFor(t, stranger.ID, false), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/notifications/"+uuid.NewString()+"/read", token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_TelegramWebhookAlwaysAcknowledges(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/telegram", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"ok":true`)

	rec2 := f.do(t, http.MethodPost, "/api/webhooks/telegram", "", gin.H{
		"update_id": 1,
		"message":   gin.H{"text": "/start unknown-token", "chat": gin.H{"id": 5}},
	})
	require.Equal(t, http.StatusOK, rec2.Code)
}

func TestRouter_TelegramLinkEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	user := models.User{Name: "Linker", Email: uuid.NewString() + "@example.com", Password: "x", IsActive: true}
	require.NoError(t, f.db.Create(&user).Error)

	rec := f.do(t, http.MethodPost, "/api/telegram/link", f.tokenFor(t, user.ID, false), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	data := decodeData(t, rec)
	token, _ := data["token"].(string)
	require.NotEmpty(t, token)
	require.Contains(t, data["deep_link"], "https://t.me/pawhaven_bot?start=")
}

func TestRouter_HealthAndNotFound(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = f.do(t, http.MethodGet, "/no/such/route", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_VerifyEmailEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	email := uuid.NewString() + "@example.com"

	rec := f.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"name":     "Verifier",
		"email":    email,
		"password": "correct horse battery",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	data := decodeData(t, rec)
	user, _ := data["user"].(map[string]any)
	userID, _ := user["id"].(string)
	require.NotEmpty(t, userID)

	// Without a configured base URL the dispatched link is the raw token.
	var row models.Notification
	require.NoError(t, f.db.
		Where("user_id = ? AND type = ?", userID, string(models.TypeEmailVerification)).
		First(&row).Error)

	rec = f.do(t, http.MethodPost, "/api/auth/verify-email", "", gin.H{"token": row.Link})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/auth/verify-email", "", gin.H{"token": row.Link})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
