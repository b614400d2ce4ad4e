package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
)

// StripeGateway charges cards through PaymentIntents. Raw card numbers are
// only accepted by Stripe test-mode keys or PCI-approved accounts.
type StripeGateway struct {
	api *client.API
}

func NewStripeGateway(secretKey string, backends *stripe.Backends) (*StripeGateway, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("stripe secret key is empty")
	}
	api := &client.API{}
	api.Init(secretKey, backends)
	return &StripeGateway{api: api}, nil
}

func (g *StripeGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	cents, err := MinorUnits(req.Amount)
	if err != nil {
		return nil, err
	}

	pmParams := &stripe.PaymentMethodParams{
		Type: stripe.String(string(stripe.PaymentMethodTypeCard)),
		Card: &stripe.PaymentMethodCardParams{
			Number:   stripe.String(req.Card.Number),
			ExpMonth: stripe.Int64(int64(req.Card.ExpMonth)),
			ExpYear:  stripe.Int64(int64(req.Card.ExpYear)),
			CVC:      stripe.String(req.Card.CVV),
		},
		BillingDetails: &stripe.PaymentMethodBillingDetailsParams{
			Name: stripe.String(req.Card.Holder),
		},
	}
	pmParams.Context = ctx

	pm, err := g.api.PaymentMethods.New(pmParams)
	if err != nil {
		return declineOrError(err)
	}

	piParams := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(cents),
		Currency:           stripe.String(strings.ToLower(req.Currency)),
		PaymentMethod:      stripe.String(pm.ID),
		PaymentMethodTypes: stripe.StringSlice([]string{string(stripe.PaymentMethodTypeCard)}),
		Confirm:            stripe.Bool(true),
	}
	if req.Description != "" {
		piParams.Description = stripe.String(req.Description)
	}
	piParams.Context = ctx
	piParams.AddMetadata("reference", req.Reference)
	piParams.SetIdempotencyKey(req.Reference)

	pi, err := g.api.PaymentIntents.New(piParams)
	if err != nil {
		return declineOrError(err)
	}

	return intentOutcome(pi, func(id string) error {
		params := &stripe.PaymentIntentCancelParams{}
		params.Context = ctx
		_, err := g.api.PaymentIntents.Cancel(id, params)
		return err
	})
}

// intentOutcome maps a confirmed PaymentIntent onto a charge result. An
// intent that has not succeeded is canceled before it is reported as a
// decline; one that cannot be canceled, or is still processing, is an
// UncertainChargeError so the caller can reconcile it.
func intentOutcome(pi *stripe.PaymentIntent, cancel func(id string) error) (*ChargeResult, error) {
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return &ChargeResult{Success: true, TransactionID: pi.ID, Message: "approved"}, nil
	case stripe.PaymentIntentStatusCanceled:
		return &ChargeResult{Success: false, Message: "payment canceled"}, nil
	case stripe.PaymentIntentStatusProcessing:
		return nil, &UncertainChargeError{TransactionID: pi.ID, Status: string(pi.Status)}
	}

	if err := cancel(pi.ID); err != nil {
		return nil, fmt.Errorf("cancel %s: %v: %w", pi.ID, err,
			&UncertainChargeError{TransactionID: pi.ID, Status: string(pi.Status)})
	}
	return &ChargeResult{Success: false, Message: "payment not completed: " + string(pi.Status)}, nil
}

func (g *StripeGateway) QueryTransaction(ctx context.Context, transactionID string) (TransactionStatus, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := g.api.PaymentIntents.Get(transactionID, params)
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) && se.HTTPStatusCode == 404 {
			return StatusUnknown, ErrTransactionNotFound
		}
		return StatusUnknown, fmt.Errorf("stripe: %w", err)
	}
	return stripeStatus(pi.Status), nil
}

func stripeStatus(s stripe.PaymentIntentStatus) TransactionStatus {
	switch s {
	case stripe.PaymentIntentStatusSucceeded:
		return StatusSucceeded
	case stripe.PaymentIntentStatusProcessing,
		stripe.PaymentIntentStatusRequiresAction,
		stripe.PaymentIntentStatusRequiresCapture,
		stripe.PaymentIntentStatusRequiresConfirmation:
		return StatusPending
	case stripe.PaymentIntentStatusCanceled, stripe.PaymentIntentStatusRequiresPaymentMethod:
		return StatusFailed
	default:
		return StatusUnknown
	}
}

// declineOrError turns card errors into a declined result; everything else
// stays an error.
func declineOrError(err error) (*ChargeResult, error) {
	var se *stripe.Error
	if errors.As(err, &se) && se.Type == stripe.ErrorTypeCard {
		msg := se.Msg
		if msg == "" {
			msg = "card declined"
		}
		return &ChargeResult{Success: false, Message: msg}, nil
	}
	return nil, fmt.Errorf("stripe: %w", err)
}
