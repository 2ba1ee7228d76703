package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/pawhaven/pawhaven/internal/auth"
	"github.com/pawhaven/pawhaven/internal/models"
	apperrors "github.com/pawhaven/pawhaven/pkg/errors"
)

// UserDTO is the API-friendly account payload.
type UserDTO struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	IsAdmin       bool      `json:"is_admin"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
}

// RegisterInput defines attributes required to create an account.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// UserService manages account registration and authentication.
type UserService struct {
	db           *gorm.DB
	verification *VerificationService
}

// NewUserService constructs a UserService.
func NewUserService(db *gorm.DB, verification *VerificationService) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	if verification == nil {
		return nil, errors.New("user service: verification service is required")
	}
	return &UserService{db: db, verification: verification}, nil
}

// Register creates the account and dispatches the verification notification.
// Transport problems do not fail registration; persistence problems do.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*UserDTO, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	email := strings.TrimSpace(strings.ToLower(input.Email))
	if name == "" {
		return nil, apperrors.NewBadRequest("name is required")
	}
	if email == "" {
		return nil, apperrors.NewBadRequest("email is required")
	}
	if len(input.Password) < 8 {
		return nil, apperrors.NewBadRequest("password must be at least 8 characters")
	}

	hashed, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("user service: hash password: %w", err)
	}

	user := models.User{
		Name:     name,
		Email:    email,
		Password: hashed,
		IsActive: true,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.NewBadRequest("email already registered")
		}
		return nil, fmt.Errorf("user service: create user: %w", err)
	}

	if err := s.verification.Send(ctx, user.ID); err != nil {
		return nil, err
	}

	dto := mapUser(user)
	return &dto, nil
}

// Authenticate validates credentials, returning the account on success.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*UserDTO, error) {
	ctx = ensureContext(ctx)
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, apperrors.ErrInvalidCredentials
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("user service: load user: %w", err)
	}
	if !user.IsActive {
		return nil, apperrors.ErrForbidden
	}
	if !auth.CheckPassword(user.Password, password) {
		return nil, apperrors.ErrInvalidCredentials
	}

	dto := mapUser(user)
	return &dto, nil
}

// GetByID loads a single account.
func (s *UserService) GetByID(ctx context.Context, userID string) (*UserDTO, error) {
	ctx = ensureContext(ctx)
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", strings.TrimSpace(userID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("user service: load user: %w", err)
	}
	dto := mapUser(user)
	return &dto, nil
}

func mapUser(user models.User) UserDTO {
	return UserDTO{
		ID:            user.ID,
		Name:          user.Name,
		Email:         user.Email,
		IsAdmin:       user.IsAdmin,
		EmailVerified: user.EmailVerifiedAt != nil,
		CreatedAt:     user.CreatedAt,
	}
}
