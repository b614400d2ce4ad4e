package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/Skotchmaster/online_shop/internal/models"
)

type Type string

const (
	OrderCompleted         Type = "order_completed"
	ReconciliationRequired Type = "reconciliation_required"
)

type Event struct {
	Type           Type                       `json:"type"`
	OccurredAt     time.Time                  `json:"occurred_at"`
	UserID         uuid.UUID                  `json:"user_id"`
	OrderID        uuid.UUID                  `json:"order_id"`
	Order          *models.Order              `json:"order,omitempty"`
	Reconciliation *models.ReconciliationItem `json:"reconciliation,omitempty"`
}

func NewOrderCompleted(o *models.Order) Event {
	return Event{
		Type:       OrderCompleted,
		OccurredAt: time.Now().UTC(),
		UserID:     o.UserID,
		OrderID:    o.ID,
		Order:      o,
	}
}

func NewReconciliationRequired(item *models.ReconciliationItem) Event {
	return Event{
		Type:           ReconciliationRequired,
		OccurredAt:     time.Now().UTC(),
		UserID:         item.UserID,
		OrderID:        item.OrderID,
		Reconciliation: item,
	}
}

type Sink interface {
	Publish(ctx context.Context, ev Event) error
}

// Fanout publishes to every sink, even after a failure, and returns the
// combined error.
type Fanout []Sink

func (f Fanout) Publish(ctx context.Context, ev Event) error {
	var err error
	for _, s := range f {
		err = multierr.Append(err, s.Publish(ctx, ev))
	}
	return err
}
