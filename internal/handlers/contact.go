package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/petrealm/pet-realm/internal/models"
)

type ContactHandler struct {
	DB *gorm.DB
}

func (h *ContactHandler) CreateContact(c echo.Context) error {
	var req struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Message string `json:"message"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Name == "" || req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name and message required")
	}
	if !strings.Contains(req.Email, "@") {
		return echo.NewHTTPError(http.StatusBadRequest, "valid email required")
	}

	contact := models.Contact{
		Name:    req.Name,
		Email:   req.Email,
		Message: req.Message,
	}
	if err := h.DB.Create(&contact).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusCreated, contact)
}
