package utils

import "errors"

// Common application errors used across services. The message doubles as
// the API error code.
var (
	ErrInvalidToken       = errors.New("INVALID_TOKEN")
	ErrInvalidCredentials = errors.New("INVALID_CREDENTIALS")
	ErrEmailTaken         = errors.New("EMAIL_TAKEN")
	ErrAccountDisabled    = errors.New("ACCOUNT_DISABLED")
	ErrForbidden          = errors.New("FORBIDDEN")
	ErrValidation         = errors.New("VALIDATION_ERROR")

	ErrCategoryNotFound   = errors.New("CATEGORY_NOT_FOUND")
	ErrProductNotFound    = errors.New("PRODUCT_NOT_FOUND")
	ErrProductUnavailable = errors.New("PRODUCT_UNAVAILABLE")
	ErrProductInUse       = errors.New("PRODUCT_IN_USE")

	ErrCredentialNotFound = errors.New("CREDENTIAL_NOT_FOUND")
	ErrCredentialAssigned = errors.New("CREDENTIAL_ASSIGNED")

	ErrOrderNotFound           = errors.New("ORDER_NOT_FOUND")
	ErrAlreadyDelivered        = errors.New("ALREADY_DELIVERED")
	ErrOutOfStock              = errors.New("OUT_OF_STOCK")
	ErrInvalidStatus           = errors.New("INVALID_STATUS")
	ErrInvalidStatusTransition = errors.New("INVALID_STATUS_TRANSITION")
	ErrReceiptTooLarge         = errors.New("RECEIPT_TOO_LARGE")
	ErrReceiptType             = errors.New("RECEIPT_TYPE_NOT_ALLOWED")
	ErrStorageDisabled         = errors.New("STORAGE_DISABLED")
)
