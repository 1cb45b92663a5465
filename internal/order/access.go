package order

import "github.com/petrealm/pet-realm/internal/models"

// Actor is the authenticated identity an operation runs as.
type Actor struct {
	ID   uint
	Role string
}

// IsCustomer grants customer-scope: reading your own order, uploading your
// own receipt, soft-deleting your own order.
func IsCustomer(actor Actor, o *models.Order) bool {
	return actor.ID != 0 && actor.ID == o.UserID
}

// OwnsShop grants shop-scope: status transitions, payment verification and
// the shop's order listing.
func OwnsShop(actor Actor, shopOwnerID uint) bool {
	return actor.ID != 0 && actor.ID == shopOwnerID
}

// CanRead is the dual-scope read rule: the owning customer or the owning
// shop's seller may fetch a single order, nobody else.
func CanRead(actor Actor, o *models.Order, shopOwnerID uint) bool {
	return IsCustomer(actor, o) || OwnsShop(actor, shopOwnerID)
}
