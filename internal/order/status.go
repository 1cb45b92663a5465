package order

// Status is the fulfillment state of an order. The set is closed: anything
// not listed here is rejected at request parsing and at persistence reads.
type Status string

const (
	StatusPending        Status = "PENDING"
	StatusConfirmed      Status = "CONFIRMED"
	StatusPreparing      Status = "PREPARING"
	StatusReadyForPickup Status = "READY_FOR_PICKUP"
	StatusOutForDelivery Status = "OUT_FOR_DELIVERY"
	StatusPickedUp       Status = "PICKED_UP"
	StatusDelivered      Status = "DELIVERED"
	StatusCancelled      Status = "CANCELLED"
)

// PaymentStatus tracks manual payment verification, independent of Status.
// It moves PENDING -> VERIFIED exactly once.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentVerified PaymentStatus = "VERIFIED"
)

// allowedTransitions is the exhaustive transition table. Terminal states map
// to an empty set; a missing key means the state itself is unknown.
var allowedTransitions = map[Status][]Status{
	StatusPending:        {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusPreparing, StatusCancelled},
	StatusPreparing:      {StatusReadyForPickup, StatusOutForDelivery},
	StatusReadyForPickup: {StatusPickedUp},
	StatusOutForDelivery: {StatusDelivered},
	StatusPickedUp:       {},
	StatusDelivered:      {},
	StatusCancelled:      {},
}

func ParseStatus(s string) (Status, bool) {
	st := Status(s)
	_, ok := allowedTransitions[st]
	return st, ok
}

func (s Status) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

func (s Status) Terminal() bool {
	next, ok := allowedTransitions[s]
	return ok && len(next) == 0
}

// CanTransition reports whether from -> to is in the table. Unknown states
// on either side are never allowed.
func CanTransition(from, to Status) bool {
	next, ok := allowedTransitions[from]
	if !ok || !to.Valid() {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}
