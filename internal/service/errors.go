package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Skotchmaster/online_shop/internal/payment"
)

var (
	ErrValidation               = errors.New("validation")                 // 400
	ErrNotFound                 = errors.New("not found")                  // 404
	ErrConflict                 = errors.New("conflict")                   // 409
	ErrInsufficientStock        = errors.New("insufficient stock")         // 400
	ErrPaymentRejected          = errors.New("payment rejected")           // 400
	ErrUnsupportedPaymentMethod = errors.New("unsupported payment method") // 400
	ErrReconciliation           = errors.New("reconciliation required")    // 500
)

type InsufficientStockError struct {
	ProductID uuid.UUID
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available %d, requested %d", e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

type PaymentRejectedError struct {
	Method  payment.Method
	Message string
}

func (e *PaymentRejectedError) Error() string {
	return fmt.Sprintf("payment rejected: %s", e.Message)
}

func (e *PaymentRejectedError) Is(target error) bool { return target == ErrPaymentRejected }

// ReconciliationError means the customer was charged but no order exists.
type ReconciliationError struct {
	ItemID        uuid.UUID
	TransactionID string
	Cause         error
}

func (e *ReconciliationError) Error() string {
	if errors.Is(e.Cause, payment.ErrChargeUncertain) {
		return fmt.Sprintf("payment %s did not settle; reconciliation %s opened: %v",
			e.TransactionID, e.ItemID, e.Cause)
	}
	return fmt.Sprintf("payment %s captured but the order could not be saved; reconciliation %s opened: %v",
		e.TransactionID, e.ItemID, e.Cause)
}

func (e *ReconciliationError) Is(target error) bool { return target == ErrReconciliation }

func (e *ReconciliationError) Unwrap() error { return e.Cause }
