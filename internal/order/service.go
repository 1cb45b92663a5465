package order

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/petrealm/pet-realm/internal/logging"
	"github.com/petrealm/pet-realm/internal/models"
	"github.com/petrealm/pet-realm/internal/mykafka"
	"github.com/petrealm/pet-realm/internal/storage"
)

const (
	MaxReceiptSize = 10 << 20 // 10 MiB

	receiptURLTTL = time.Hour
)

// receiptTypes maps the allowed receipt content types to the stored file
// extension. Checked before any blob store call.
var receiptTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"application/pdf": ".pdf",
}

// Service owns the order status state machine, the payment-verification
// workflow and the ownership rules gating every order operation.
type Service struct {
	Repo     *GormRepo
	Blobs    storage.BlobStore
	Producer *mykafka.Producer
}

// Receipt is the uploaded proof-of-payment file as received from the
// multipart form, before validation.
type Receipt struct {
	ContentType string
	Size        int64
	Body        io.Reader
}

// Get fetches a single order for the dual-scope read rule: the owning
// customer or the owning shop's seller, everyone else is Forbidden.
func (svc *Service) Get(ctx context.Context, id uint, actor Actor) (*models.Order, error) {
	o, err := svc.Repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	ownerID, err := svc.Repo.ShopOwnerID(ctx, o.ShopID)
	if err != nil {
		return nil, err
	}
	if !CanRead(actor, o, ownerID) {
		return nil, ErrForbidden
	}
	return o, nil
}

// Transition moves the order along the status graph. Only the owning
// shop's seller may call it; any target outside the allowed set for the
// current status fails with ErrInvalidTransition.
func (svc *Service) Transition(ctx context.Context, id uint, next Status, actor Actor) (*models.Order, error) {
	if !next.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, string(next))
	}

	o, err := svc.Repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	ownerID, err := svc.Repo.ShopOwnerID(ctx, o.ShopID)
	if err != nil {
		return nil, err
	}
	if !OwnsShop(actor, ownerID) {
		return nil, ErrForbidden
	}

	from := Status(o.Status)
	if !CanTransition(from, next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, next)
	}

	if err := svc.Repo.UpdateStatus(ctx, id, from, next); err != nil {
		return nil, err
	}
	o.Status = string(next)

	svc.publish(ctx, "order_events", o.ID, map[string]interface{}{
		"type":     "order_status_changed",
		"order_id": o.ID,
		"from":     string(from),
		"to":       string(next),
	})

	return o, nil
}

// UploadReceipt validates and stores a proof-of-payment file for the
// order's customer. The blob is written first and the order row only
// updated once the write succeeded, so a failed upload never leaves a
// dangling reference.
func (svc *Service) UploadReceipt(ctx context.Context, id uint, actor Actor, r Receipt) (*models.Order, error) {
	o, err := svc.Repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !IsCustomer(actor, o) {
		return nil, ErrForbidden
	}

	ext, ok := receiptTypes[r.ContentType]
	if !ok {
		return nil, fmt.Errorf("%w: content type %q not allowed", ErrInvalidReceipt, r.ContentType)
	}
	if r.Size <= 0 || r.Size > MaxReceiptSize {
		return nil, fmt.Errorf("%w: file exceeds 10 MiB", ErrInvalidReceipt)
	}
	if svc.Blobs == nil {
		return nil, ErrStorageUnavailable
	}

	// Key derived from a random identifier, never from user input.
	key := "receipts/" + uuid.NewString() + ext
	if err := svc.Blobs.Put(ctx, key, r.Body, r.ContentType); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	now := time.Now().UTC()
	if err := svc.Repo.AttachReceipt(ctx, id, key, now); err != nil {
		return nil, err
	}
	o.ReceiptURL = key
	o.ReceiptUploadedAt = &now

	svc.publish(ctx, "order_events", o.ID, map[string]interface{}{
		"type":     "order_receipt_uploaded",
		"order_id": o.ID,
	})

	return o, nil
}

// VerifyPayment marks the payment VERIFIED, once, after a receipt exists.
func (svc *Service) VerifyPayment(ctx context.Context, id uint, actor Actor) (*models.Order, error) {
	o, err := svc.Repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	ownerID, err := svc.Repo.ShopOwnerID(ctx, o.ShopID)
	if err != nil {
		return nil, err
	}
	if !OwnsShop(actor, ownerID) {
		return nil, ErrForbidden
	}
	if o.ReceiptURL == "" {
		return nil, ErrNoReceiptUploaded
	}
	if PaymentStatus(o.PaymentStatus) == PaymentVerified {
		return nil, ErrAlreadyVerified
	}

	now := time.Now().UTC()
	if err := svc.Repo.MarkPaymentVerified(ctx, id, now); err != nil {
		return nil, err
	}
	o.PaymentStatus = string(PaymentVerified)
	o.ReceiptVerifiedAt = &now

	svc.publish(ctx, "order_events", o.ID, map[string]interface{}{
		"type":     "order_payment_verified",
		"order_id": o.ID,
	})

	return o, nil
}

// ResolveReceiptURL returns a 1-hour signed URL for the stored receipt, or
// nil when there is none. Legacy literal paths are returned untouched. A
// signing failure degrades to nil instead of failing the whole read.
func (svc *Service) ResolveReceiptURL(ctx context.Context, o *models.Order) *string {
	if o.ReceiptURL == "" {
		return nil
	}
	if isLegacyReceiptPath(o.ReceiptURL) {
		v := o.ReceiptURL
		return &v
	}
	if svc.Blobs == nil {
		return nil
	}
	url, err := svc.Blobs.SignedGetURL(ctx, o.ReceiptURL, receiptURLTTL)
	if err != nil {
		logging.FromContext(ctx).Warn("receipt_sign_error",
			slog.Uint64("order_id", uint64(o.ID)), slog.Any("error", err))
		return nil
	}
	return &url
}

func isLegacyReceiptPath(s string) bool {
	return strings.HasPrefix(s, "/") || strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// SoftDelete hides the customer's own order from list views. Only orders
// that have not entered fulfillment can be removed.
func (svc *Service) SoftDelete(ctx context.Context, id uint, actor Actor) error {
	o, err := svc.Repo.GetOrder(ctx, id)
	if err != nil {
		return err
	}
	if !IsCustomer(actor, o) {
		return ErrForbidden
	}
	st := Status(o.Status)
	if st != StatusPending && st != StatusCancelled {
		return fmt.Errorf("%w: cannot remove an order in %s", ErrValidation, st)
	}
	return svc.Repo.SoftDelete(ctx, id, time.Now().UTC())
}

// CreateFromCart turns the user's cart into orders, one per shop, in a
// single transaction: availability and stock are re-validated, prices are
// snapshotted, stock is decremented and the cart cleared.
func (svc *Service) CreateFromCart(ctx context.Context, userID uint, note string) ([]models.Order, error) {
	var created []models.Order

	err := svc.Repo.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var items []models.CartItem
		if err := tx.Where("user_id = ?", userID).Find(&items).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrEmptyCart
		}

		byShop := make(map[uint][]models.OrderItem)
		totals := make(map[uint]float64)

		for _, item := range items {
			var p models.Product
			if err := tx.First(&p, item.ProductID).Error; err != nil {
				return fmt.Errorf("%w: product %d", ErrProductUnavailable, item.ProductID)
			}
			if !p.IsAvailable || p.DeletedAt != nil {
				return fmt.Errorf("%w: %s", ErrProductUnavailable, p.Name)
			}
			if int(item.Quantity) > p.Stock {
				return fmt.Errorf("%w: %s has %d left", ErrOutOfStock, p.Name, p.Stock)
			}

			res := tx.Model(&models.Product{}).
				Where("id = ? AND stock >= ?", p.ID, item.Quantity).
				Update("stock", gorm.Expr("stock - ?", item.Quantity))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("%w: %s", ErrOutOfStock, p.Name)
			}

			line := models.OrderItem{
				ProductID: p.ID,
				Name:      p.Name,
				UnitPrice: p.Price,
				Quantity:  item.Quantity,
				LineTotal: p.Price * float64(item.Quantity),
			}
			byShop[p.ShopID] = append(byShop[p.ShopID], line)
			totals[p.ShopID] += line.LineTotal
		}

		for shopID, lines := range byShop {
			o := models.Order{
				OrderNumber:   newOrderNumber(),
				UserID:        userID,
				ShopID:        shopID,
				Status:        string(StatusPending),
				PaymentStatus: string(PaymentPending),
				Total:         totals[shopID],
				Note:          note,
				Items:         lines,
			}
			if err := tx.Create(&o).Error; err != nil {
				return err
			}
			created = append(created, o)
		}

		return tx.Where("user_id = ?", userID).Delete(&models.CartItem{}).Error
	})
	if err != nil {
		return nil, err
	}

	for i := range created {
		svc.publish(ctx, "order_events", created[i].ID, map[string]interface{}{
			"type":         "order_created",
			"order_id":     created[i].ID,
			"order_number": created[i].OrderNumber,
			"shop_id":      created[i].ShopID,
			"total":        created[i].Total,
		})
	}

	return created, nil
}

func (svc *Service) ListForCustomer(ctx context.Context, userID uint, limit, offset int) ([]models.Order, int64, error) {
	return svc.Repo.ListForCustomer(ctx, userID, limit, offset)
}

// ListForShop lists a shop's orders for its owning seller.
func (svc *Service) ListForShop(ctx context.Context, shopID uint, actor Actor, limit, offset int) ([]models.Order, int64, error) {
	ownerID, err := svc.Repo.ShopOwnerID(ctx, shopID)
	if err != nil {
		return nil, 0, err
	}
	if !OwnsShop(actor, ownerID) {
		return nil, 0, ErrForbidden
	}
	return svc.Repo.ListForShop(ctx, shopID, limit, offset)
}

func (svc *Service) publish(ctx context.Context, topic string, orderID uint, event map[string]interface{}) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := svc.Producer.PublishEvent(pubCtx, topic, fmt.Sprint(orderID), event); err != nil {
		logging.FromContext(ctx).Error("kafka_publish_error", slog.Any("error", err))
	}
}

func newOrderNumber() string {
	buf := make([]byte, 2)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("PR-%d-%s", time.Now().Unix(), hex.EncodeToString(buf))
}
