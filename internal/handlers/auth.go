package handlers

import (
	goerrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	iauth "github.com/pawhaven/pawhaven/internal/auth"
	"github.com/pawhaven/pawhaven/internal/middleware"
	"github.com/pawhaven/pawhaven/internal/services"
	"github.com/pawhaven/pawhaven/pkg/errors"
	"github.com/pawhaven/pawhaven/pkg/response"
)

// AuthHandler exposes registration, login, and email verification endpoints.
type AuthHandler struct {
	users        *services.UserService
	verification *services.VerificationService
	jwt          *iauth.JWTService
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(users *services.UserService, verification *services.VerificationService, jwt *iauth.JWTService) (*AuthHandler, error) {
	if users == nil {
		return nil, goerrors.New("auth handler: user service is required")
	}
	if verification == nil {
		return nil, goerrors.New("auth handler: verification service is required")
	}
	if jwt == nil {
		return nil, goerrors.New("auth handler: jwt service is required")
	}
	return &AuthHandler{
		users:        users,
		verification: verification,
		jwt:          jwt,
	}, nil
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// Register creates a new account and sends the verification email.
func (h *AuthHandler) Register(c *gin.Context) {
	var payload registerRequest
	if !bindAndValidate(c, &payload) {
		return
	}

	user, err := h.users.Register(requestContext(c), services.RegisterInput{
		Name:     payload.Name,
		Email:    payload.Email,
		Password: payload.Password,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"user": user})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login authenticates credentials and issues an access token.
func (h *AuthHandler) Login(c *gin.Context) {
	var payload loginRequest
	if !bindAndValidate(c, &payload) {
		return
	}

	user, err := h.users.Authenticate(requestContext(c), payload.Email, payload.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	token, err := h.jwt.GenerateAccessToken(iauth.AccessTokenInput{
		UserID:  user.ID,
		IsAdmin: user.IsAdmin,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"user":         user,
		"access_token": token,
	})
}

// ResendVerification re-dispatches the verification email for the caller.
// Inside the resend window this is a silent no-op.
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	if err := h.verification.Send(requestContext(c), userID); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"sent": true})
}

type verifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

// VerifyEmail consumes a verification token.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var payload verifyEmailRequest
	if !bindAndValidate(c, &payload) {
		return
	}

	user, err := h.verification.Verify(requestContext(c), payload.Token)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"verified": true,
		"user_id":  user.ID,
	})
}
