package order

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/petrealm/pet-realm/internal/models"
	"github.com/petrealm/pet-realm/internal/mykafka"
	"github.com/petrealm/pet-realm/internal/storage"
)

func newTestService(t *testing.T) (*Service, *gorm.DB, *storage.MemoryStore) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Shop{}, &models.Product{},
		&models.CartItem{}, &models.Order{}, &models.OrderItem{},
	))

	blobs := storage.NewMemoryStore()
	svc := &Service{
		Repo:     &GormRepo{DB: db},
		Blobs:    blobs,
		Producer: mykafka.NewProducer(nil),
	}
	return svc, db, blobs
}

// seedOrder creates customer 1, seller 2 with shop 1, and one PENDING order.
func seedOrder(t *testing.T, db *gorm.DB) *models.Order {
	t.Helper()

	customer := models.User{Email: "buyer@example.com", PasswordHash: "x", Name: "Buyer", Role: "buyer"}
	seller := models.User{Email: "seller@example.com", PasswordHash: "x", Name: "Seller", Role: "seller"}
	require.NoError(t, db.Create(&customer).Error)
	require.NoError(t, db.Create(&seller).Error)

	shop := models.Shop{OwnerID: seller.ID, Name: "Paws Male", IsVerified: true, IsActive: true}
	require.NoError(t, db.Create(&shop).Error)

	o := models.Order{
		OrderNumber:   "PR-1-test",
		UserID:        customer.ID,
		ShopID:        shop.ID,
		Status:        string(StatusPending),
		PaymentStatus: string(PaymentPending),
		Total:         150,
	}
	require.NoError(t, db.Create(&o).Error)
	return &o
}

var (
	customerActor = Actor{ID: 1, Role: "buyer"}
	sellerActor   = Actor{ID: 2, Role: "seller"}
	strangerActor = Actor{ID: 99, Role: "buyer"}
)

func TestTransitionFollowsTable(t *testing.T) {
	svc, db, _ := newTestService(t)
	o := seedOrder(t, db)
	ctx := context.Background()

	// PENDING only allows CONFIRMED/CANCELLED.
	_, err := svc.Transition(ctx, o.ID, StatusPreparing, sellerActor)
	require.ErrorIs(t, err, ErrInvalidTransition)

	got, err := svc.Transition(ctx, o.ID, StatusConfirmed, sellerActor)
	require.NoError(t, err)
	require.Equal(t, string(StatusConfirmed), got.Status)

	got, err = svc.Transition(ctx, o.ID, StatusPreparing, sellerActor)
	require.NoError(t, err)
	require.Equal(t, string(StatusPreparing), got.Status)

	// PREPARING only allows READY_FOR_PICKUP/OUT_FOR_DELIVERY.
	_, err = svc.Transition(ctx, o.ID, StatusPickedUp, sellerActor)
	require.ErrorIs(t, err, ErrInvalidTransition)

	var stored models.Order
	require.NoError(t, db.First(&stored, o.ID).Error)
	require.Equal(t, string(StatusPreparing), stored.Status)
}

func TestTransitionAuthorization(t *testing.T) {
	svc, db, _ := newTestService(t)
	o := seedOrder(t, db)
	ctx := context.Background()

	_, err := svc.Transition(ctx, o.ID, StatusConfirmed, customerActor)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Transition(ctx, o.ID, StatusConfirmed, strangerActor)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Transition(ctx, 4242, StatusConfirmed, sellerActor)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTransitionUnknownStatus(t *testing.T) {
	svc, db, _ := newTestService(t)
	o := seedOrder(t, db)

	_, err := svc.Transition(context.Background(), o.ID, Status("SHIPPED"), sellerActor)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestUploadReceiptValidation(t *testing.T) {
	svc, db, blobs := newTestService(t)
	o := seedOrder(t, db)
	ctx := context.Background()

	_, err := svc.UploadReceipt(ctx, o.ID, customerActor, Receipt{
		ContentType: "image/gif", Size: 128, Body: bytes.NewReader([]byte("x")),
	})
	require.ErrorIs(t, err, ErrInvalidReceipt)

	_, err = svc.UploadReceipt(ctx, o.ID, customerActor, Receipt{
		ContentType: "image/png", Size: MaxReceiptSize + 1, Body: bytes.NewReader([]byte("x")),
	})
	require.ErrorIs(t, err, ErrInvalidReceipt)

	// Rejected before any blob store contact.
	require.Equal(t, 0, blobs.Len())

	_, err = svc.UploadReceipt(ctx, o.ID, sellerActor, Receipt{
		ContentType: "image/png", Size: 128, Body: bytes.NewReader([]byte("x")),
	})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestUploadReceiptStorageUnavailable(t *testing.T) {
	svc, db, _ := newTestService(t)
	o := seedOrder(t, db)
	svc.Blobs = nil

	_, err := svc.UploadReceipt(context.Background(), o.ID, customerActor, Receipt{
		ContentType: "image/png", Size: 128, Body: bytes.NewReader([]byte("x")),
	})
	require.ErrorIs(t, err, ErrStorageUnavailable)

	// The order row stays untouched when the upload never happened.
	var stored models.Order
	require.NoError(t, db.First(&stored, o.ID).Error)
	require.Empty(t, stored.ReceiptURL)
	require.Nil(t, stored.ReceiptUploadedAt)
}

func TestReceiptThenVerifyFlow(t *testing.T) {
	svc, db, blobs := newTestService(t)
	o := seedOrder(t, db)
	ctx := context.Background()

	// Verification before any receipt fails.
	_, err := svc.VerifyPayment(ctx, o.ID, sellerActor)
	require.ErrorIs(t, err, ErrNoReceiptUploaded)

	payload := bytes.Repeat([]byte{0x89}, 2048)
	got, err := svc.UploadReceipt(ctx, o.ID, customerActor, Receipt{
		ContentType: "image/png", Size: int64(len(payload)), Body: bytes.NewReader(payload),
	})
	require.NoError(t, err)
	require.NotEmpty(t, got.ReceiptURL)
	require.NotNil(t, got.ReceiptUploadedAt)
	require.Equal(t, string(PaymentPending), got.PaymentStatus)
	require.Equal(t, 1, blobs.Len())

	// Customers cannot verify their own payment.
	_, err = svc.VerifyPayment(ctx, o.ID, customerActor)
	require.ErrorIs(t, err, ErrForbidden)

	got, err = svc.VerifyPayment(ctx, o.ID, sellerActor)
	require.NoError(t, err)
	require.Equal(t, string(PaymentVerified), got.PaymentStatus)
	require.NotNil(t, got.ReceiptVerifiedAt)

	// Exactly once: the second call always fails, never double-applies.
	_, err = svc.VerifyPayment(ctx, o.ID, sellerActor)
	require.ErrorIs(t, err, ErrAlreadyVerified)

	var stored models.Order
	require.NoError(t, db.First(&stored, o.ID).Error)
	require.Equal(t, string(PaymentVerified), stored.PaymentStatus)
}

func TestGetDualScope(t *testing.T) {
	svc, db, _ := newTestService(t)
	o := seedOrder(t, db)
	ctx := context.Background()

	_, err := svc.Get(ctx, o.ID, customerActor)
	require.NoError(t, err)
	_, err = svc.Get(ctx, o.ID, sellerActor)
	require.NoError(t, err)

	_, err = svc.Get(ctx, o.ID, strangerActor)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Get(ctx, 4242, strangerActor)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestResolveReceiptURL(t *testing.T) {
	svc, db, blobs := newTestService(t)
	o := seedOrder(t, db)
	ctx := context.Background()

	require.Nil(t, svc.ResolveReceiptURL(ctx, o))

	payload := []byte("receipt")
	got, err := svc.UploadReceipt(ctx, o.ID, customerActor, Receipt{
		ContentType: "application/pdf", Size: int64(len(payload)), Body: bytes.NewReader(payload),
	})
	require.NoError(t, err)

	url := svc.ResolveReceiptURL(ctx, got)
	require.NotNil(t, url)
	require.Contains(t, *url, got.ReceiptURL)

	// A signing failure degrades to nil instead of failing the read.
	blobs.SignErr = errors.New("sign failure")
	require.Nil(t, svc.ResolveReceiptURL(ctx, got))

	// Legacy literal paths pass through untouched.
	legacy := &models.Order{ReceiptURL: "/uploads/receipts/old.png"}
	url = svc.ResolveReceiptURL(ctx, legacy)
	require.NotNil(t, url)
	require.Equal(t, "/uploads/receipts/old.png", *url)
}

func TestSoftDeleteHidesFromListsOnly(t *testing.T) {
	svc, db, _ := newTestService(t)
	o := seedOrder(t, db)
	ctx := context.Background()

	require.ErrorIs(t, svc.SoftDelete(ctx, o.ID, sellerActor), ErrForbidden)
	require.NoError(t, svc.SoftDelete(ctx, o.ID, customerActor))

	orders, total, err := svc.ListForCustomer(ctx, customerActor.ID, 10, 0)
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, orders)

	// Still reachable by direct id lookup for authorized parties.
	got, err := svc.Get(ctx, o.ID, customerActor)
	require.NoError(t, err)
	require.NotNil(t, got.DeletedAt)
}

func TestSoftDeleteOnlyBeforeFulfillment(t *testing.T) {
	svc, db, _ := newTestService(t)
	o := seedOrder(t, db)
	ctx := context.Background()

	_, err := svc.Transition(ctx, o.ID, StatusConfirmed, sellerActor)
	require.NoError(t, err)

	err = svc.SoftDelete(ctx, o.ID, customerActor)
	require.ErrorIs(t, err, ErrValidation)
}

func TestCreateFromCart(t *testing.T) {
	svc, db, _ := newTestService(t)
	seedOrder(t, db) // gives us users and shop 1

	shop2 := models.Shop{OwnerID: 2, Name: "Second Shop", IsVerified: true, IsActive: true}
	require.NoError(t, db.Create(&shop2).Error)

	p1 := models.Product{ShopID: 1, Name: "Cat food", Price: 40, Stock: 10, IsAvailable: true}
	p2 := models.Product{ShopID: shop2.ID, Name: "Leash", Price: 25, Stock: 5, IsAvailable: true}
	require.NoError(t, db.Create(&p1).Error)
	require.NoError(t, db.Create(&p2).Error)

	require.NoError(t, db.Create(&models.CartItem{UserID: 1, ProductID: p1.ID, Quantity: 2}).Error)
	require.NoError(t, db.Create(&models.CartItem{UserID: 1, ProductID: p2.ID, Quantity: 1}).Error)

	orders, err := svc.CreateFromCart(context.Background(), 1, "call on arrival")
	require.NoError(t, err)
	require.Len(t, orders, 2)

	totals := map[uint]float64{}
	for _, o := range orders {
		require.Equal(t, string(StatusPending), o.Status)
		require.Equal(t, string(PaymentPending), o.PaymentStatus)
		require.NotEmpty(t, o.OrderNumber)
		totals[o.ShopID] = o.Total
	}
	require.Equal(t, float64(80), totals[1])
	require.Equal(t, float64(25), totals[shop2.ID])

	// Stock decremented and cart cleared.
	var stored models.Product
	require.NoError(t, db.First(&stored, p1.ID).Error)
	require.Equal(t, 8, stored.Stock)

	var count int64
	require.NoError(t, db.Model(&models.CartItem{}).Where("user_id = ?", 1).Count(&count).Error)
	require.Zero(t, count)
}

func TestCreateFromCartRejectsBadStock(t *testing.T) {
	svc, db, _ := newTestService(t)
	seedOrder(t, db)
	ctx := context.Background()

	_, err := svc.CreateFromCart(ctx, 1, "")
	require.ErrorIs(t, err, ErrEmptyCart)

	p := models.Product{ShopID: 1, Name: "Aquarium", Price: 500, Stock: 1, IsAvailable: true}
	require.NoError(t, db.Create(&p).Error)
	require.NoError(t, db.Create(&models.CartItem{UserID: 1, ProductID: p.ID, Quantity: 3}).Error)

	_, err = svc.CreateFromCart(ctx, 1, "")
	require.ErrorIs(t, err, ErrOutOfStock)

	// Nothing committed: stock intact, cart intact.
	var stored models.Product
	require.NoError(t, db.First(&stored, p.ID).Error)
	require.Equal(t, 1, stored.Stock)

	now := time.Now()
	require.NoError(t, db.Model(&models.Product{}).Where("id = ?", p.ID).
		Update("deleted_at", now).Error)
	require.NoError(t, db.Model(&models.CartItem{}).Where("user_id = ?", 1).
		Update("quantity", 1).Error)

	_, err = svc.CreateFromCart(ctx, 1, "")
	require.ErrorIs(t, err, ErrProductUnavailable)
}
