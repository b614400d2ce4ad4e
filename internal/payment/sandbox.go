package payment

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

const (
	SandboxDeclinedCard          = "4000000000000002"
	SandboxInsufficientFundsCard = "4000000000009995"
)

// SandboxGateway approves every card except the two well-known decline
// numbers. It never leaves the process.
type SandboxGateway struct {
	mu           sync.Mutex
	transactions map[string]TransactionStatus
}

func NewSandboxGateway() *SandboxGateway {
	return &SandboxGateway{transactions: make(map[string]TransactionStatus)}
}

func (g *SandboxGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch req.Card.Number {
	case SandboxDeclinedCard:
		return &ChargeResult{Success: false, Message: "card declined"}, nil
	case SandboxInsufficientFundsCard:
		return &ChargeResult{Success: false, Message: "insufficient funds"}, nil
	}

	id := "sbx_" + uuid.NewString()
	g.mu.Lock()
	g.transactions[id] = StatusSucceeded
	g.mu.Unlock()

	return &ChargeResult{Success: true, TransactionID: id, Message: "approved"}, nil
}

func (g *SandboxGateway) QueryTransaction(_ context.Context, transactionID string) (TransactionStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.transactions[transactionID]
	if !ok {
		return StatusUnknown, ErrTransactionNotFound
	}
	return st, nil
}
