package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/petrealm/pet-realm/internal/models"
)

func decodePage(t *testing.T, body []byte) (items []models.Product, total int64) {
	t.Helper()
	var resp struct {
		Data []models.Product `json:"data"`
		Meta struct {
			Total int64 `json:"total"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp.Data, resp.Meta.Total
}

func TestGetProductsFiltersVisibility(t *testing.T) {
	env := newTestEnv(t)
	shop, _ := env.seedMarketplace()

	now := time.Now()
	hiddenShop := models.Shop{OwnerID: 2, Name: "Unverified", IsVerified: false, IsActive: true}
	require.NoError(t, env.DB.Create(&hiddenShop).Error)

	// Visible product already seeded; add ones that must be filtered out.
	require.NoError(t, env.DB.Create(&models.Product{
		ShopID: shop.ID, Name: "Unavailable toy", Price: 5, Stock: 3, IsAvailable: false,
	}).Error)
	require.NoError(t, env.DB.Create(&models.Product{
		ShopID: shop.ID, Name: "Deleted bowl", Price: 5, Stock: 3, IsAvailable: true, DeletedAt: &now,
	}).Error)
	require.NoError(t, env.DB.Create(&models.Product{
		ShopID: hiddenShop.ID, Name: "Ghost product", Price: 5, Stock: 3, IsAvailable: true,
	}).Error)

	rec, c := env.doJSONRequest(http.MethodGet, "/api/products", nil)
	require.NoError(t, env.Product.GetProducts(c))
	require.Equal(t, http.StatusOK, rec.Code)

	items, total := decodePage(t, rec.Body.Bytes())
	require.EqualValues(t, 1, total)
	require.Len(t, items, 1)
	require.Equal(t, "Cat food", items[0].Name)
}

func TestGetProductsSearchAndCategory(t *testing.T) {
	env := newTestEnv(t)
	shop, _ := env.seedMarketplace()

	require.NoError(t, env.DB.Create(&models.Product{
		ShopID: shop.ID, Name: "Dog Leash", Description: "Strong nylon leash",
		Price: 25, Stock: 4, Category: "accessories", IsAvailable: true,
	}).Error)

	// Case-insensitive substring match on name/description.
	rec, c := env.doJSONRequest(http.MethodGet, "/api/products?q=LEASH", nil)
	require.NoError(t, env.Product.GetProducts(c))
	items, total := decodePage(t, rec.Body.Bytes())
	require.EqualValues(t, 1, total)
	require.Equal(t, "Dog Leash", items[0].Name)

	rec2, c2 := env.doJSONRequest(http.MethodGet, "/api/products?category=food", nil)
	require.NoError(t, env.Product.GetProducts(c2))
	items2, total2 := decodePage(t, rec2.Body.Bytes())
	require.EqualValues(t, 1, total2)
	require.Equal(t, "Cat food", items2[0].Name)
}

func TestGetProduct(t *testing.T) {
	env := newTestEnv(t)
	_, product := env.seedMarketplace()

	rec, c := env.doJSONRequest(http.MethodGet, "/api/products/1", nil)
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, env.Product.GetProduct(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, product.Name, got.Name)

	// Soft-deleted products 404.
	now := time.Now()
	require.NoError(t, env.DB.Model(&models.Product{}).Where("id = ?", product.ID).
		Update("deleted_at", now).Error)

	_, c2 := env.doJSONRequest(http.MethodGet, "/api/products/1", nil)
	c2.SetParamNames("id")
	c2.SetParamValues("1")
	err := env.Product.GetProduct(c2)
	require.Equal(t, http.StatusNotFound, httpErrorCode(t, err))
}

func TestGetShopsHidesUnverified(t *testing.T) {
	env := newTestEnv(t)
	env.seedMarketplace()

	require.NoError(t, env.DB.Create(&models.Shop{
		OwnerID: 2, Name: "Pending Shop", IsVerified: false, IsActive: true,
	}).Error)

	rec, c := env.doJSONRequest(http.MethodGet, "/api/shops", nil)
	require.NoError(t, env.Shop.GetShops(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []models.Shop `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	require.Equal(t, "Paws Male", resp.Data[0].Name)
}
