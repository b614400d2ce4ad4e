package payment

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// CardGateway is the remote side of card payments.
type CardGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	QueryTransaction(ctx context.Context, transactionID string) (TransactionStatus, error)
}

type CardProcessor struct {
	gateway CardGateway
	now     func() time.Time
}

func NewCardProcessor(gateway CardGateway) *CardProcessor {
	return &CardProcessor{gateway: gateway, now: time.Now}
}

func (p *CardProcessor) Method() Method { return MethodCard }

func (p *CardProcessor) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if err := ValidateCard(req.Card, p.now()); err != nil {
		return &ChargeResult{Success: false, Message: err.Error()}, nil
	}
	if !req.Amount.IsPositive() {
		return &ChargeResult{Success: false, Message: "amount must be positive"}, nil
	}
	if req.Amount.GreaterThan(MaxAmount) {
		return &ChargeResult{Success: false, Message: "amount exceeds the maximum charge"}, nil
	}
	card := *req.Card
	card.Number = digitsOnly(card.Number)
	req.Card = &card
	return p.gateway.Charge(ctx, req)
}

func (p *CardProcessor) QueryTransaction(ctx context.Context, transactionID string) (TransactionStatus, error) {
	return p.gateway.QueryTransaction(ctx, transactionID)
}

// ValidateCard checks the number (Luhn), expiry, CVV and holder.
func ValidateCard(c *Card, now time.Time) error {
	if c == nil {
		return fmt.Errorf("card details are required")
	}
	number := digitsOnly(c.Number)
	if len(number) < 12 || len(number) > 19 || !luhn(number) {
		return fmt.Errorf("invalid card number")
	}
	if c.ExpMonth < 1 || c.ExpMonth > 12 {
		return fmt.Errorf("invalid expiry month")
	}
	// a card is valid through the last day of its expiry month
	expires := time.Date(c.ExpYear, time.Month(c.ExpMonth)+1, 1, 0, 0, 0, 0, time.UTC)
	if !now.UTC().Before(expires) {
		return fmt.Errorf("card expired")
	}
	if l := len(c.CVV); l < 3 || l > 4 || digitsOnly(c.CVV) != c.CVV {
		return fmt.Errorf("invalid cvv")
	}
	if strings.TrimSpace(c.Holder) == "" {
		return fmt.Errorf("card holder is required")
	}
	return nil
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		} else if r != ' ' && r != '-' {
			return ""
		}
	}
	return b.String()
}

func luhn(number string) bool {
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		d := int(number[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
