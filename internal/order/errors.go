package order

import "errors"

var (
	ErrValidation         = errors.New("validation")          // 400
	ErrNotFound           = errors.New("not found")           // 404
	ErrForbidden          = errors.New("forbidden")           // 403
	ErrInvalidTransition  = errors.New("invalid transition")  // 400
	ErrNoReceiptUploaded  = errors.New("no receipt uploaded") // 400
	ErrAlreadyVerified    = errors.New("already verified")    // 400
	ErrInvalidReceipt     = errors.New("invalid receipt")     // 400
	ErrStorageUnavailable = errors.New("storage unavailable") // 500
	ErrOutOfStock         = errors.New("out of stock")        // 400
	ErrProductUnavailable = errors.New("product unavailable") // 400
	ErrEmptyCart          = errors.New("cart is empty")       // 400
)
