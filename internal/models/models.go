package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderStatus string

// Only COMPLETED is written by checkout; the rest are reserved for
// cancellation and deferred-payment flows.
const (
	OrderStatusPending       OrderStatus = "PENDING"
	OrderStatusCompleted     OrderStatus = "COMPLETED"
	OrderStatusCanceled      OrderStatus = "CANCELED"
	OrderStatusPaymentFailed OrderStatus = "PAYMENT_FAILED"
)

type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"        json:"id"`
	Username  string    `gorm:"uniqueIndex;size:64;not null" json:"username"`
	Role      string    `gorm:"size:16;not null"            json:"role"`
	CreatedAt time.Time `                                   json:"created_at"`
	UpdatedAt time.Time `                                   json:"updated_at"`
}

type Product struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"              json:"id"`
	Name        string          `gorm:"size:255;not null"                 json:"name"`
	Description string          `gorm:"type:text"                         json:"description"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null"       json:"price"`
	Stock       int             `gorm:"not null;default:0;check:stock >= 0" json:"stock"`
	CreatedAt   time.Time       `                                         json:"created_at"`
	UpdatedAt   time.Time       `                                         json:"updated_at"`
}

type Order struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"                   json:"id"`
	Number        string          `gorm:"size:32;uniqueIndex;not null"           json:"number"`
	UserID        uuid.UUID       `gorm:"type:uuid;index;not null"               json:"user_id"`
	Status        OrderStatus     `gorm:"size:32;not null"                       json:"status"`
	TotalAmount   decimal.Decimal `gorm:"type:numeric(12,2);not null"            json:"total_amount"`
	Currency      string          `gorm:"size:3;not null"                        json:"currency"`
	TransactionID *string         `gorm:"size:128"                               json:"transaction_id"`
	PaymentMethod string          `gorm:"size:32;not null"                       json:"payment_method"`
	Description   string          `gorm:"type:text"                              json:"description"`
	Items         []OrderItem     `gorm:"constraint:OnDelete:CASCADE"            json:"items"`
	CreatedAt     time.Time       `gorm:"index"                                  json:"created_at"`
	UpdatedAt     time.Time       `                                              json:"updated_at"`
}

type OrderItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"             json:"id"`
	OrderID   uuid.UUID       `gorm:"type:uuid;index;not null"         json:"order_id"`
	ProductID uuid.UUID       `gorm:"type:uuid;index;not null"         json:"product_id"`
	Product   *Product        `gorm:"foreignKey:ProductID"              json:"product,omitempty"`
	LineNo    int             `gorm:"not null"                         json:"line_no"`
	Quantity  int             `gorm:"not null;check:quantity > 0"      json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:numeric(12,2);not null"      json:"unit_price"`
	Subtotal  decimal.Decimal `gorm:"type:numeric(12,2);not null"      json:"subtotal"`
	CreatedAt time.Time       `                                        json:"created_at"`
	UpdatedAt time.Time       `                                        json:"updated_at"`
}

// ReconciliationItem records a charge that succeeded without a matching order.
type ReconciliationItem struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"        json:"id"`
	UserID        uuid.UUID       `gorm:"type:uuid;index;not null"    json:"user_id"`
	OrderID       uuid.UUID       `gorm:"type:uuid;not null"          json:"order_id"`
	TransactionID string          `gorm:"size:128;index;not null"     json:"transaction_id"`
	PaymentMethod string          `gorm:"size:32;not null"            json:"payment_method"`
	Amount        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Currency      string          `gorm:"size:3;not null"             json:"currency"`
	Reason        string          `gorm:"type:text;not null"          json:"reason"`
	Resolved      bool            `gorm:"not null;default:false;index" json:"resolved"`
	CreatedAt     time.Time       `                                   json:"created_at"`
	UpdatedAt     time.Time       `                                   json:"updated_at"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

func (r *ReconciliationItem) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func All() []any {
	return []any{&User{}, &Product{}, &Order{}, &OrderItem{}, &ReconciliationItem{}}
}
