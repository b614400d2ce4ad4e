package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Method string

const MethodCard Method = "card"

var (
	ErrUnsupportedMethod   = errors.New("unsupported payment method")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrAmountOutOfRange    = errors.New("amount out of range")
	ErrChargeUncertain     = errors.New("charge outcome uncertain")
)

// MaxAmount is the largest amount a numeric(12,2) order total can hold.
var MaxAmount = decimal.New(999999999999, -2)

// UncertainChargeError is returned when the processor accepted the charge
// but it has not settled either way. Money may still move.
type UncertainChargeError struct {
	TransactionID string
	Status        string
}

func (e *UncertainChargeError) Error() string {
	return fmt.Sprintf("charge %s left in status %s", e.TransactionID, e.Status)
}

func (e *UncertainChargeError) Is(target error) bool { return target == ErrChargeUncertain }

// ParseMethod maps a request tag onto the closed set of methods.
func ParseMethod(tag string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(tag))) {
	case MethodCard:
		return MethodCard, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMethod, tag)
	}
}

type Card struct {
	Number   string
	CVV      string
	ExpMonth int
	ExpYear  int
	Holder   string
}

type ChargeRequest struct {
	// Reference is echoed to the processor so a charge can be traced back
	// to the order it paid for.
	Reference   string
	Amount      decimal.Decimal
	Currency    string
	Description string
	Card        *Card
}

type ChargeResult struct {
	Success       bool
	TransactionID string
	Message       string
}

type TransactionStatus string

const (
	StatusSucceeded TransactionStatus = "succeeded"
	StatusPending   TransactionStatus = "pending"
	StatusFailed    TransactionStatus = "failed"
	StatusUnknown   TransactionStatus = "unknown"
)

// Processor charges one payment method. Implementations never touch local
// state; a declined charge is a result with Success=false, while err is kept
// for transport and protocol faults.
type Processor interface {
	Method() Method
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	QueryTransaction(ctx context.Context, transactionID string) (TransactionStatus, error)
}

type Registry struct {
	processors map[Method]Processor
}

func NewRegistry(processors ...Processor) *Registry {
	r := &Registry{processors: make(map[Method]Processor, len(processors))}
	for _, p := range processors {
		r.processors[p.Method()] = p
	}
	return r
}

func (r *Registry) Get(m Method) (Processor, error) {
	p, ok := r.processors[m]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, m)
	}
	return p, nil
}

// MinorUnits converts a 2-decimal amount into cents. Amounts below zero or
// above MaxAmount are rejected rather than truncated.
func MinorUnits(amount decimal.Decimal) (int64, error) {
	if amount.IsNegative() || amount.GreaterThan(MaxAmount) {
		return 0, fmt.Errorf("%w: %s", ErrAmountOutOfRange, amount.String())
	}
	return amount.Shift(2).Round(0).IntPart(), nil
}
