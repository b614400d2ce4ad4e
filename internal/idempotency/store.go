package idempotency

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type State int

const (
	// StateClaimed means the caller now owns the key and must Complete or
	// Release it.
	StateClaimed State = iota
	StateInProgress
	StateCompleted
)

type Result struct {
	State   State
	OrderID uuid.UUID
}

var ErrNotClaimed = errors.New("idempotency key not claimed")

type Store interface {
	Claim(ctx context.Context, key string) (Result, error)
	Complete(ctx context.Context, key string, orderID uuid.UUID) error
	Release(ctx context.Context, key string) error
}

// Key scopes a client supplied key to its owner.
func Key(userID uuid.UUID, clientKey string) string {
	return fmt.Sprintf("idem:%s:%s", userID, clientKey)
}
