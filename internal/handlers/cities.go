package handlers

import (
	goerrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pawhaven/pawhaven/internal/middleware"
	"github.com/pawhaven/pawhaven/internal/services"
	"github.com/pawhaven/pawhaven/pkg/errors"
	"github.com/pawhaven/pawhaven/pkg/response"
)

// CityHandler exposes the city management endpoints.
type CityHandler struct {
	cities *services.CityService
}

// NewCityHandler constructs a CityHandler.
func NewCityHandler(cities *services.CityService) (*CityHandler, error) {
	if cities == nil {
		return nil, goerrors.New("city handler: city service is required")
	}
	return &CityHandler{cities: cities}, nil
}

type createCityRequest struct {
	Name string `json:"name" validate:"required,min=2,max=120"`
}

// Create registers an approved city and notifies the other admins.
func (h *CityHandler) Create(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var payload createCityRequest
	if !bindAndValidate(c, &payload) {
		return
	}

	city, err := h.cities.Create(requestContext(c), services.CreateCityInput{
		Name:        payload.Name,
		CreatedByID: userID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, city)
}

// List returns all cities.
func (h *CityHandler) List(c *gin.Context) {
	cities, err := h.cities.List(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, cities)
}
