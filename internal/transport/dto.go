package transport

import "github.com/google/uuid"

type CreateOrderItem struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity"   validate:"required,min=1,max=10000"`
}

type CardDetails struct {
	Number   string `json:"number"    validate:"required,credit_card"`
	CVV      string `json:"cvv"       validate:"required,numeric,min=3,max=4"`
	ExpMonth int    `json:"exp_month" validate:"required,min=1,max=12"`
	ExpYear  int    `json:"exp_year"  validate:"required,min=2000,max=2100"`
	Holder   string `json:"holder"    validate:"required,max=128"`
}

type PaymentRequest struct {
	Method string       `json:"method" validate:"required,oneof=card"`
	Card   *CardDetails `json:"card"   validate:"required_if=Method card"`
}

type CreateOrderRequest struct {
	Items       []CreateOrderItem `json:"items"       validate:"required,min=1,dive"`
	Payment     PaymentRequest    `json:"payment"     validate:"required"`
	Currency    string            `json:"currency"    validate:"omitempty,len=3,alpha"`
	Description string            `json:"description" validate:"max=500"`
}
