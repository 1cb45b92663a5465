package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/petrealm/pet-realm/internal/config"
	"github.com/petrealm/pet-realm/internal/models"
	"github.com/petrealm/pet-realm/internal/mykafka"
	"github.com/petrealm/pet-realm/internal/order"
	"github.com/petrealm/pet-realm/internal/storage"
)

type testEnv struct {
	T     *testing.T
	E     *echo.Echo
	DB    *gorm.DB
	Blobs *storage.MemoryStore

	Auth    *AuthHandler
	Cart    *CartHandler
	Shop    *ShopHandler
	Product *ProductHandler
	Order   *OrderHandler
	Contact *ContactHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))

	prod := mykafka.NewProducer(nil)
	blobs := storage.NewMemoryStore()
	svc := &order.Service{
		Repo:     &order.GormRepo{DB: db},
		Blobs:    blobs,
		Producer: prod,
	}

	return &testEnv{
		T:     t,
		E:     echo.New(),
		DB:    db,
		Blobs: blobs,

		Auth:    &AuthHandler{DB: db, JWTSecret: []byte("test-secret"), RefreshSecret: []byte("test-refresh"), Producer: prod},
		Cart:    &CartHandler{DB: db},
		Shop:    &ShopHandler{DB: db, Producer: prod, Assets: blobs},
		Product: &ProductHandler{DB: db, Producer: prod, Assets: blobs},
		Order:   &OrderHandler{Svc: svc},
		Contact: &ContactHandler{DB: db},
	}
}

func (env *testEnv) doJSONRequest(method, path string, body interface{}) (*httptest.ResponseRecorder, echo.Context) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(env.T, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	return rec, c
}

func (env *testEnv) doMultipartRequest(method, path, field, filename, contentType string, payload []byte) (*httptest.ResponseRecorder, echo.Context) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	hdr.Set("Content-Type", contentType)
	part, err := w.CreatePart(hdr)
	require.NoError(env.T, err)
	_, err = io.Copy(part, bytes.NewReader(payload))
	require.NoError(env.T, err)
	require.NoError(env.T, w.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	return rec, c
}

func asUser(c echo.Context, id uint, role string) {
	c.Set("userID", id)
	c.Set("role", role)
}

// seedMarketplace creates buyer 1, seller 2, a verified shop and a product.
func (env *testEnv) seedMarketplace() (models.Shop, models.Product) {
	buyer := models.User{Email: "buyer@example.com", PasswordHash: "x", Name: "Buyer", Role: "buyer"}
	seller := models.User{Email: "seller@example.com", PasswordHash: "x", Name: "Seller", Role: "seller"}
	require.NoError(env.T, env.DB.Create(&buyer).Error)
	require.NoError(env.T, env.DB.Create(&seller).Error)

	shop := models.Shop{OwnerID: seller.ID, Name: "Paws Male", IsVerified: true, IsActive: true}
	require.NoError(env.T, env.DB.Create(&shop).Error)

	product := models.Product{
		ShopID: shop.ID, Name: "Cat food", Description: "Dry food 2kg",
		Price: 40, Stock: 10, Category: "food", IsAvailable: true,
	}
	require.NoError(env.T, env.DB.Create(&product).Error)
	return shop, product
}

func httpErrorCode(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected *echo.HTTPError, got %v", err)
	return he.Code
}
