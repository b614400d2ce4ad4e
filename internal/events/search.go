package events

import (
	"context"
	"time"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/Skotchmaster/online_shop/internal/es"
	"github.com/Skotchmaster/online_shop/internal/models"
)

const OrdersIndex = "orders"

type orderDocument struct {
	ID            string              `json:"id"`
	Number        string              `json:"number"`
	UserID        string              `json:"user_id"`
	Status        models.OrderStatus  `json:"status"`
	TotalAmount   string              `json:"total_amount"`
	Currency      string              `json:"currency"`
	PaymentMethod string              `json:"payment_method"`
	Description   string              `json:"description,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	Items         []orderItemDocument `json:"items"`
}

type orderItemDocument struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name,omitempty"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

// SearchSink keeps the orders index in step with completed orders. Other
// event types are ignored.
type SearchSink struct {
	Client *elasticsearch.Client
	Index  string
}

func (s *SearchSink) Publish(ctx context.Context, ev Event) error {
	if ev.Type != OrderCompleted || ev.Order == nil {
		return nil
	}
	index := s.Index
	if index == "" {
		index = OrdersIndex
	}
	doc := toOrderDocument(ev.Order)
	return es.IndexDocument(ctx, s.Client, index, doc.ID, doc)
}

func toOrderDocument(o *models.Order) orderDocument {
	doc := orderDocument{
		ID:            o.ID.String(),
		Number:        o.Number,
		UserID:        o.UserID.String(),
		Status:        o.Status,
		TotalAmount:   o.TotalAmount.StringFixed(2),
		Currency:      o.Currency,
		PaymentMethod: o.PaymentMethod,
		Description:   o.Description,
		CreatedAt:     o.CreatedAt,
		Items:         make([]orderItemDocument, 0, len(o.Items)),
	}
	for _, it := range o.Items {
		item := orderItemDocument{
			ProductID: it.ProductID.String(),
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.StringFixed(2),
		}
		if it.Product != nil {
			item.Name = it.Product.Name
		}
		doc.Items = append(doc.Items, item)
	}
	return doc
}
