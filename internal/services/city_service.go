package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/pawhaven/pawhaven/internal/models"
	apperrors "github.com/pawhaven/pawhaven/pkg/errors"
)

// CityDTO is the API-friendly city payload.
type CityDTO struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	ApprovedAt *time.Time `json:"approved_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

// CreateCityInput defines attributes for the admin city-create flow.
type CreateCityInput struct {
	Name        string
	CreatedByID string
}

// CityService manages locations. Creating a city approves it immediately and
// notifies the other admins with an embedded unapprove action.
type CityService struct {
	db         *gorm.DB
	dispatcher *Dispatcher
	now        func() time.Time
}

// NewCityService constructs a CityService.
func NewCityService(db *gorm.DB, dispatcher *Dispatcher) (*CityService, error) {
	if db == nil {
		return nil, errors.New("city service: db is required")
	}
	if dispatcher == nil {
		return nil, errors.New("city service: dispatcher is required")
	}
	return &CityService{db: db, dispatcher: dispatcher, now: time.Now}, nil
}

// Create persists an approved city and fans a city_created notification out
// to every other admin. Notification failures are aggregated, not short-circuited.
func (s *CityService) Create(ctx context.Context, input CreateCityInput) (*CityDTO, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("city name is required")
	}
	creatorID := strings.TrimSpace(input.CreatedByID)
	if creatorID == "" {
		return nil, errors.New("city service: creator id is required")
	}

	now := s.now().UTC()
	city := models.City{
		Name:        name,
		CreatedByID: creatorID,
		ApprovedAt:  &now,
	}
	if err := s.db.WithContext(ctx).Create(&city).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.NewBadRequest("city name already exists")
		}
		return nil, fmt.Errorf("city service: create city: %w", err)
	}

	var admins []models.User
	if err := s.db.WithContext(ctx).
		Where("is_admin = ? AND id <> ?", true, creatorID).
		Find(&admins).Error; err != nil {
		return nil, fmt.Errorf("city service: load admins: %w", err)
	}

	var notifyErr error
	for _, admin := range admins {
		_, err := s.dispatcher.Dispatch(ctx, DispatchInput{
			UserID:  admin.ID,
			Type:    models.TypeCityCreated,
			Message: fmt.Sprintf("City %q was created.", city.Name),
			Data:    map[string]any{"city_id": city.ID},
			Action: &models.ActionDescriptor{
				Kind:   models.ActionUnapproveCity,
				Label:  "Unapprove",
				CityID: city.ID,
			},
		})
		if err != nil {
			notifyErr = multierr.Append(notifyErr, fmt.Errorf("city service: notify admin %s: %w", admin.ID, err))
		}
	}
	if notifyErr != nil {
		return nil, notifyErr
	}

	dto := mapCity(city)
	return &dto, nil
}

// List returns all cities ordered by name.
func (s *CityService) List(ctx context.Context) ([]CityDTO, error) {
	ctx = ensureContext(ctx)

	var rows []models.City
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("city service: list cities: %w", err)
	}

	items := make([]CityDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapCity(row))
	}
	return items, nil
}

func mapCity(city models.City) CityDTO {
	return CityDTO{
		ID:         city.ID,
		Name:       city.Name,
		ApprovedAt: city.ApprovedAt,
		CreatedAt:  city.CreatedAt,
	}
}
