package models

import (
	"time"
)

type User struct {
	ID              uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Email           string     `gorm:"unique;not null"          json:"email"`
	PasswordHash    string     `gorm:"not null"                 json:"-"`
	Name            string     `gorm:"not null"                 json:"name"`
	Role            string     `gorm:"not null;default:buyer"   json:"role"`
	EmailVerifiedAt *time.Time `json:"email_verified_at"`
	CreatedAt       time.Time  `json:"created_at"`
}

type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"          json:"id"`
	Token     string    `gorm:"unique;not null"     json:"token"`
	UserID    uint      `gorm:"index;not null"      json:"user_id"`
	Role      string    `gorm:"not null"            json:"role"`
	ExpiresAt time.Time `gorm:"not null"            json:"expires_at"`
	Revoked   bool      `gorm:"default:false"       json:"revoked"`
}

// AuthToken is a one-shot token mailed to the user for email verification
// or password reset. Consumed by stamping UsedAt.
type AuthToken struct {
	ID        uint       `gorm:"primaryKey"       json:"id"`
	Token     string     `gorm:"unique;not null"  json:"-"`
	UserID    uint       `gorm:"index;not null"   json:"user_id"`
	Purpose   string     `gorm:"not null"         json:"purpose"`
	ExpiresAt time.Time  `gorm:"not null"         json:"expires_at"`
	UsedAt    *time.Time `json:"used_at"`
}

type Shop struct {
	ID          uint       `gorm:"primaryKey"       json:"id"`
	OwnerID     uint       `gorm:"index;not null"   json:"owner_id"`
	Name        string     `gorm:"not null"         json:"name"`
	Description string     `json:"description"`
	Island      string     `json:"island"`
	LogoKey     string     `json:"logo_key"`
	IsVerified  bool       `gorm:"default:false"    json:"is_verified"`
	IsActive    bool       `gorm:"default:true"     json:"is_active"`
	DeletedAt   *time.Time `gorm:"index"            json:"deleted_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

type Product struct {
	ID          uint       `gorm:"primaryKey"       json:"id"`
	ShopID      uint       `gorm:"index;not null"   json:"shop_id"`
	Name        string     `gorm:"not null"         json:"name"`
	Description string     `json:"description"`
	Price       float64    `gorm:"not null"         json:"price"`
	Stock       int        `gorm:"not null;default:0;check:stock>=0" json:"stock"`
	Category    string     `gorm:"index"            json:"category"`
	ImageKey    string     `json:"image_key"`
	IsAvailable bool       `gorm:"default:true"     json:"is_available"`
	DeletedAt   *time.Time `gorm:"index"            json:"deleted_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Purchasable reports whether the product can go into a cart or an order
// right now. Re-checked at every mutation, never cached from add time.
func (p *Product) Purchasable() bool {
	return p.IsAvailable && p.DeletedAt == nil && p.Stock > 0
}

type CartItem struct {
	ID        uint `gorm:"primaryKey"                  json:"id"`
	UserID    uint `gorm:"index;not null"              json:"user_id"`
	ProductID uint `gorm:"not null"                    json:"product_id"`
	Quantity  uint `gorm:"default:1;check:quantity>0"  json:"quantity"`
}

type Order struct {
	ID                uint        `gorm:"primaryKey"      json:"id"`
	OrderNumber       string      `gorm:"unique;not null" json:"order_number"`
	UserID            uint        `gorm:"index;not null"  json:"user_id"`
	ShopID            uint        `gorm:"index;not null"  json:"shop_id"`
	Status            string      `gorm:"not null"        json:"status"`
	PaymentStatus     string      `gorm:"not null"        json:"payment_status"`
	Total             float64     `gorm:"not null"        json:"total"`
	Note              string      `json:"note"`
	ReceiptURL        string      `json:"-"`
	ReceiptUploadedAt *time.Time  `json:"receipt_uploaded_at"`
	ReceiptVerifiedAt *time.Time  `json:"receipt_verified_at"`
	CreatedAt         time.Time   `json:"created_at"`
	DeletedAt         *time.Time  `gorm:"index" json:"deleted_at"`
	Items             []OrderItem `gorm:"foreignKey:OrderID" json:"items"`
}

// OrderItem snapshots the product name and unit price at checkout time so
// later catalog edits never change a placed order's total.
type OrderItem struct {
	ID        uint    `gorm:"primaryKey"     json:"id"`
	OrderID   uint    `gorm:"index;not null" json:"order_id"`
	ProductID uint    `gorm:"not null"       json:"product_id"`
	Name      string  `gorm:"not null"       json:"name"`
	UnitPrice float64 `gorm:"not null"       json:"unit_price"`
	Quantity  uint    `gorm:"not null"       json:"quantity"`
	LineTotal float64 `gorm:"not null"       json:"line_total"`
}

type Contact struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null"   json:"name"`
	Email     string    `gorm:"not null"   json:"email"`
	Message   string    `gorm:"not null"   json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
