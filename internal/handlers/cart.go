package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/petrealm/pet-realm/internal/models"
)

type CartHandler struct {
	DB *gorm.DB
}

func (h *CartHandler) GetCart(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}

	var items []models.CartItem
	if err := h.DB.Where("user_id = ?", actor.ID).Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, items)
}

func (h *CartHandler) AddToCart(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}

	var req struct {
		ProductID uint `json:"product_id"`
		Quantity  uint `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Quantity < 1 {
		req.Quantity = 1
	}

	product, httpErr := h.purchasableProduct(req.ProductID)
	if httpErr != nil {
		return httpErr
	}

	var item models.CartItem
	tx := h.DB.Where("user_id = ? AND product_id = ?", actor.ID, req.ProductID).First(&item)
	if tx.Error == nil {
		next := item.Quantity + req.Quantity
		if int(next) > product.Stock {
			return echo.NewHTTPError(http.StatusBadRequest, "out of stock")
		}
		item.Quantity = next
		if err := h.DB.Save(&item).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
		return c.JSON(http.StatusOK, item)
	}
	if !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	if int(req.Quantity) > product.Stock {
		return echo.NewHTTPError(http.StatusBadRequest, "out of stock")
	}

	newItem := models.CartItem{
		UserID:    actor.ID,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
	}
	if err := h.DB.Create(&newItem).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, newItem)
}

// SetQuantity replaces an item's quantity. Availability and stock are
// re-checked against the product as it is now, not as it was at add time.
func (h *CartHandler) SetQuantity(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}

	id, convErr := strconv.Atoi(c.Param("id"))
	if convErr != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req struct {
		Quantity uint `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil || req.Quantity < 1 {
		return echo.NewHTTPError(http.StatusBadRequest, "quantity must be >= 1")
	}

	var item models.CartItem
	if err := h.DB.Where("id = ? AND user_id = ?", id, actor.ID).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "item not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	product, httpErr := h.purchasableProduct(item.ProductID)
	if httpErr != nil {
		return httpErr
	}
	if int(req.Quantity) > product.Stock {
		return echo.NewHTTPError(http.StatusBadRequest, "out of stock")
	}

	item.Quantity = req.Quantity
	if err := h.DB.Save(&item).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, item)
}

func (h *CartHandler) DeleteFromCart(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}

	id, convErr := strconv.Atoi(c.Param("id"))
	if convErr != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	if err := h.DB.Where("id = ? AND user_id = ?", id, actor.ID).
		Delete(&models.CartItem{}).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.NoContent(http.StatusNoContent)
}

// purchasableProduct 404s unknown ids and 400s deleted/unavailable ones,
// so a stale cart row cannot resurrect a product the seller pulled.
func (h *CartHandler) purchasableProduct(id uint) (*models.Product, *echo.HTTPError) {
	var product models.Product
	if err := h.DB.First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	if !product.IsAvailable || product.DeletedAt != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "product unavailable")
	}
	return &product, nil
}
