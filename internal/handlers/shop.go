package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/petrealm/pet-realm/internal/models"
	"github.com/petrealm/pet-realm/internal/mykafka"
	"github.com/petrealm/pet-realm/internal/storage"
)

const maxImageSize = 5 << 20 // 5 MiB

var imageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

type ShopHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
	Assets   storage.BlobStore
}

func (h *ShopHandler) GetShops(c echo.Context) error {
	page, offset, limit := pageParams(c)

	q := h.DB.Model(&models.Shop{}).
		Where("is_verified = ? AND is_active = ? AND deleted_at IS NULL", true, true)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	var shops []models.Shop
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&shops).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, pagedResponse(shops, page, limit, total))
}

func (h *ShopHandler) GetShop(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var shop models.Shop
	if err := h.DB.Where("id = ? AND deleted_at IS NULL", id).First(&shop).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "shop not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, shop)
}

func (h *ShopHandler) GetShopProducts(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	page, offset, limit := pageParams(c)

	q := visibleProducts(h.DB).Where("products.shop_id = ?", id)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	var items []models.Product
	if err := q.Order("products.created_at DESC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, pagedResponse(items, page, limit, total))
}

// myShop loads the authenticated seller's shop; every seller-scope
// operation below goes through it.
func (h *ShopHandler) myShop(c echo.Context) (*models.Shop, error) {
	actor, err := actorFromContext(c)
	if err != nil {
		return nil, err
	}

	var shop models.Shop
	if err := h.DB.Where("owner_id = ? AND deleted_at IS NULL", actor.ID).First(&shop).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "shop not found")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return &shop, nil
}

func (h *ShopHandler) CreateShop(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Island      string `json:"island"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name required")
	}

	var existing models.Shop
	if err := h.DB.Where("owner_id = ? AND deleted_at IS NULL", actor.ID).First(&existing).Error; err == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "shop already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	shop := models.Shop{
		OwnerID:     actor.ID,
		Name:        req.Name,
		Description: req.Description,
		Island:      req.Island,
		IsActive:    true,
	}
	if err := h.DB.Create(&shop).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusCreated, shop)
}

func (h *ShopHandler) GetMyShop(c echo.Context) error {
	shop, err := h.myShop(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, shop)
}

func (h *ShopHandler) UpdateShop(c echo.Context) error {
	shop, err := h.myShop(c)
	if err != nil {
		return err
	}

	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		Island      *string `json:"island"`
		IsActive    *bool   `json:"is_active"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if req.Name != nil {
		if *req.Name == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "name required")
		}
		shop.Name = *req.Name
	}
	if req.Description != nil {
		shop.Description = *req.Description
	}
	if req.Island != nil {
		shop.Island = *req.Island
	}
	if req.IsActive != nil {
		shop.IsActive = *req.IsActive
	}

	if err := h.DB.Save(shop).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, shop)
}

func (h *ShopHandler) UploadShopLogo(c echo.Context) error {
	shop, err := h.myShop(c)
	if err != nil {
		return err
	}

	key, err := h.storeImage(c, "image", "shops")
	if err != nil {
		return err
	}

	if err := h.DB.Model(shop).Update("logo_key", key).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, echo.Map{"logo_url": h.Assets.PublicURL(key)})
}

func (h *ShopHandler) CreateProduct(c echo.Context) error {
	shop, err := h.myShop(c)
	if err != nil {
		return err
	}

	var req struct {
		Name        string  `json:"name"`
		Description string  `json:"description"`
		Price       float64 `json:"price"`
		Stock       int     `json:"stock"`
		Category    string  `json:"category"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name required")
	}
	if req.Price < 0 || req.Stock < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "price and stock must be >= 0")
	}

	product := models.Product{
		ShopID:      shop.ID,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		Category:    req.Category,
		IsAvailable: true,
	}
	if err := h.DB.Create(&product).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	h.publish(c, map[string]interface{}{
		"type":       "product_created",
		"product_id": product.ID,
		"shop_id":    shop.ID,
		"name":       product.Name,
	})

	return c.JSON(http.StatusCreated, product)
}

func (h *ShopHandler) PatchProduct(c echo.Context) error {
	shop, product, err := h.myProduct(c)
	if err != nil {
		return err
	}

	var req struct {
		Name        *string  `json:"name"`
		Description *string  `json:"description"`
		Price       *float64 `json:"price"`
		Stock       *int     `json:"stock"`
		Category    *string  `json:"category"`
		IsAvailable *bool    `json:"is_available"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Price != nil {
		if *req.Price < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "price must be >= 0")
		}
		product.Price = *req.Price
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "stock must be >= 0")
		}
		product.Stock = *req.Stock
	}
	if req.Category != nil {
		product.Category = *req.Category
	}
	if req.IsAvailable != nil {
		product.IsAvailable = *req.IsAvailable
	}

	if err := h.DB.Save(product).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	h.publish(c, map[string]interface{}{
		"type":       "product_updated",
		"product_id": product.ID,
		"shop_id":    shop.ID,
	})

	return c.JSON(http.StatusOK, product)
}

func (h *ShopHandler) DeleteProduct(c echo.Context) error {
	shop, product, err := h.myProduct(c)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if err := h.DB.Model(product).Update("deleted_at", now).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	h.publish(c, map[string]interface{}{
		"type":       "product_deleted",
		"product_id": product.ID,
		"shop_id":    shop.ID,
	})

	return c.NoContent(http.StatusNoContent)
}

func (h *ShopHandler) UploadProductImage(c echo.Context) error {
	_, product, err := h.myProduct(c)
	if err != nil {
		return err
	}

	key, err := h.storeImage(c, "image", "products")
	if err != nil {
		return err
	}

	if err := h.DB.Model(product).Update("image_key", key).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, echo.Map{"image_url": h.Assets.PublicURL(key)})
}

func (h *ShopHandler) myProduct(c echo.Context) (*models.Shop, *models.Product, error) {
	shop, err := h.myShop(c)
	if err != nil {
		return nil, nil, err
	}

	id, convErr := strconv.Atoi(c.Param("id"))
	if convErr != nil || id <= 0 {
		return nil, nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var product models.Product
	if err := h.DB.Where("id = ? AND shop_id = ? AND deleted_at IS NULL", id, shop.ID).
		First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return nil, nil, echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return shop, &product, nil
}

// storeImage validates the multipart upload against the public-image
// limits (jpeg/png, 5 MiB) and writes it under a random key.
func (h *ShopHandler) storeImage(c echo.Context, field, prefix string) (string, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("multipart field %q required", field))
	}
	if fh.Size > maxImageSize {
		return "", echo.NewHTTPError(http.StatusBadRequest, "image exceeds 5 MiB")
	}

	contentType := fh.Header.Get("Content-Type")
	ext, ok := imageTypes[contentType]
	if !ok {
		return "", echo.NewHTTPError(http.StatusBadRequest, "image must be jpeg or png")
	}
	if h.Assets == nil {
		return "", echo.NewHTTPError(http.StatusInternalServerError, "storage not configured")
	}

	src, err := fh.Open()
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, "cannot read upload")
	}
	defer src.Close()

	key := path.Join(prefix, uuid.NewString()+ext)
	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()
	if err := h.Assets.Put(ctx, key, src, contentType); err != nil {
		return "", echo.NewHTTPError(http.StatusInternalServerError, "storage not configured")
	}
	return key, nil
}

func (h *ShopHandler) publish(c echo.Context, event map[string]interface{}) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "product_events", fmt.Sprint(event["product_id"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}
