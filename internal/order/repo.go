package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/petrealm/pet-realm/internal/models"
)

type GormRepo struct {
	DB *gorm.DB
}

// GetOrder fetches by id including soft-deleted rows: the soft-delete
// marker hides an order from list views only, not from direct lookups.
func (r *GormRepo) GetOrder(ctx context.Context, id uint) (*models.Order, error) {
	var o models.Order
	if err := r.DB.WithContext(ctx).Preload("Items").First(&o, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *GormRepo) ShopOwnerID(ctx context.Context, shopID uint) (uint, error) {
	var shop models.Shop
	if err := r.DB.WithContext(ctx).Select("id", "owner_id").First(&shop, shopID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return shop.OwnerID, nil
}

// UpdateStatus performs the conditional single-row update that makes
// concurrent transitions safe: the WHERE clause pins the expected current
// status, so the losing writer affects zero rows.
func (r *GormRepo) UpdateStatus(ctx context.Context, id uint, from, to Status) error {
	res := r.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, string(from)).
		Update("status", string(to))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: order moved from %s concurrently", ErrInvalidTransition, from)
	}
	return nil
}

func (r *GormRepo) AttachReceipt(ctx context.Context, id uint, key string, at time.Time) error {
	return r.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"receipt_url":         key,
			"receipt_uploaded_at": at,
		}).Error
}

// MarkPaymentVerified flips paymentStatus PENDING -> VERIFIED exactly once;
// the guard on the current value makes the second concurrent caller lose.
func (r *GormRepo) MarkPaymentVerified(ctx context.Context, id uint, at time.Time) error {
	res := r.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", id, string(PaymentPending)).
		Updates(map[string]interface{}{
			"payment_status":      string(PaymentVerified),
			"receipt_verified_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyVerified
	}
	return nil
}

func (r *GormRepo) SoftDelete(ctx context.Context, id uint, at time.Time) error {
	return r.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Update("deleted_at", at).Error
}

func (r *GormRepo) ListForCustomer(ctx context.Context, userID uint, limit, offset int) ([]models.Order, int64, error) {
	q := r.DB.WithContext(ctx).Model(&models.Order{}).
		Where("user_id = ? AND deleted_at IS NULL", userID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	if err := q.Preload("Items").Order("created_at DESC").
		Limit(limit).Offset(offset).Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *GormRepo) ListForShop(ctx context.Context, shopID uint, limit, offset int) ([]models.Order, int64, error) {
	q := r.DB.WithContext(ctx).Model(&models.Order{}).
		Where("shop_id = ? AND deleted_at IS NULL", shopID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	if err := q.Preload("Items").Order("created_at DESC").
		Limit(limit).Offset(offset).Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}
