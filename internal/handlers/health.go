package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/pawhaven/pawhaven/pkg/response"
)

// HealthHandler reports service liveness and database reachability.
type HealthHandler struct {
	db *gorm.DB
}

// NewHealthHandler constructs a HealthHandler.
func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Check responds with the service status.
func (h *HealthHandler) Check(c *gin.Context) {
	status := "ok"
	dbStatus := "ok"

	if h.db != nil {
		sqlDB, err := h.db.DB()
		if err != nil || sqlDB.PingContext(requestContext(c)) != nil {
			status = "degraded"
			dbStatus = "unreachable"
		}
	}

	response.Success(c, http.StatusOK, gin.H{
		"status":   status,
		"database": dbStatus,
	})
}
