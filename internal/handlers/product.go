package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/petrealm/pet-realm/internal/models"
	"github.com/petrealm/pet-realm/internal/mykafka"
	"github.com/petrealm/pet-realm/internal/storage"
)

type ProductHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
	Assets   storage.BlobStore
}

// visibleProducts scopes a query to what the public catalog shows:
// available, not soft-deleted, and belonging to a verified active shop.
func visibleProducts(db *gorm.DB) *gorm.DB {
	return db.Model(&models.Product{}).
		Joins("JOIN shops ON shops.id = products.shop_id").
		Where("products.is_available = ? AND products.deleted_at IS NULL", true).
		Where("shops.is_verified = ? AND shops.is_active = ? AND shops.deleted_at IS NULL", true, true)
}

func (h *ProductHandler) GetProducts(c echo.Context) error {
	page, offset, limit := pageParams(c)

	q := visibleProducts(h.DB)
	if category := c.QueryParam("category"); category != "" {
		q = q.Where("products.category = ?", category)
	}
	if search := c.QueryParam("q"); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(products.name) LIKE ? OR LOWER(products.description) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	var items []models.Product
	if err := q.Order("products.created_at DESC").
		Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, pagedResponse(items, page, limit, total))
}

func (h *ProductHandler) GetProduct(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var product models.Product
	if err := h.DB.Where("id = ? AND deleted_at IS NULL", id).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, product)
}
