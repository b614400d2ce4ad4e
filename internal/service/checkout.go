package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/Skotchmaster/online_shop/internal/events"
	"github.com/Skotchmaster/online_shop/internal/idempotency"
	"github.com/Skotchmaster/online_shop/internal/metrics"
	"github.com/Skotchmaster/online_shop/internal/models"
	"github.com/Skotchmaster/online_shop/internal/payment"
	"github.com/Skotchmaster/online_shop/internal/repo"
	"github.com/Skotchmaster/online_shop/pkg/logging"
)

// MaxLineQuantity caps a single line so quantity sums stay far from int
// overflow.
const MaxLineQuantity = 10000

const (
	publishTimeout   = 5 * time.Second
	bookkeepTimeout  = 5 * time.Second
	tracerName       = "github.com/Skotchmaster/online_shop/internal/service"
	outcomeCompleted = "completed"
)

type CheckoutConfig struct {
	PaymentTimeout    time.Duration
	PersistTimeout    time.Duration
	PersistMaxRetries int
	PersistBackoff    time.Duration
	DefaultCurrency   string
}

func (c CheckoutConfig) withDefaults() CheckoutConfig {
	if c.PaymentTimeout <= 0 {
		c.PaymentTimeout = 10 * time.Second
	}
	if c.PersistTimeout <= 0 {
		c.PersistTimeout = 15 * time.Second
	}
	if c.PersistMaxRetries < 0 {
		c.PersistMaxRetries = 0
	}
	if c.PersistBackoff <= 0 {
		c.PersistBackoff = 50 * time.Millisecond
	}
	if c.DefaultCurrency == "" {
		c.DefaultCurrency = "USD"
	}
	return c
}

type LineItem struct {
	ProductID uuid.UUID
	Quantity  int
}

type PaymentDetails struct {
	Method string
	Card   *payment.Card
}

type CreateOrderInput struct {
	Items          []LineItem
	Payment        PaymentDetails
	Currency       string
	Description    string
	IdempotencyKey string
}

type CreateOrderResult struct {
	Order *models.Order
	// Replayed is set when an earlier request with the same idempotency key
	// already created Order.
	Replayed bool
}

// CheckoutService turns a cart into a paid, persisted order. Optional
// collaborators may be nil.
type CheckoutService struct {
	Repo        *repo.GormRepo
	Payments    *payment.Registry
	Idempotency idempotency.Store
	Events      events.Sink
	Metrics     *metrics.Metrics
	Tracer      trace.Tracer
	Config      CheckoutConfig
}

func NewCheckoutService(r *repo.GormRepo, payments *payment.Registry, cfg CheckoutConfig) *CheckoutService {
	return &CheckoutService{
		Repo:     r,
		Payments: payments,
		Tracer:   otel.Tracer(tracerName),
		Config:   cfg.withDefaults(),
	}
}

type pricedLine struct {
	product   *models.Product
	lineNo    int
	quantity  int
	unitPrice decimal.Decimal
	subtotal  decimal.Decimal
}

func (s *CheckoutService) tracer() trace.Tracer {
	if s.Tracer == nil {
		return otel.Tracer(tracerName)
	}
	return s.Tracer
}

func (s *CheckoutService) CreateOrder(ctx context.Context, userID uuid.UUID, in CreateOrderInput) (*CreateOrderResult, error) {
	start := time.Now()
	ctx, span := s.tracer().Start(ctx, "checkout.create_order",
		trace.WithAttributes(attribute.String("user_id", userID.String()), attribute.Int("lines", len(in.Items))))
	defer span.End()

	res, err := s.createOrder(ctx, userID, in)

	outcome := checkoutOutcome(res, err)
	s.Metrics.ObserveCheckout(outcome, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	return res, err
}

func (s *CheckoutService) createOrder(ctx context.Context, userID uuid.UUID, in CreateOrderInput) (*CreateOrderResult, error) {
	cfg := s.Config.withDefaults()
	l := logging.FromContext(ctx).With("svc", "checkout", "user_id", userID)

	currency, err := validateInput(in, cfg.DefaultCurrency)
	if err != nil {
		return nil, err
	}
	method, err := payment.ParseMethod(in.Payment.Method)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedPaymentMethod, in.Payment.Method)
	}
	processor, err := s.Payments.Get(method)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedPaymentMethod, in.Payment.Method)
	}

	var idemKey string
	releaseKey := false
	if in.IdempotencyKey != "" && s.Idempotency != nil {
		idemKey = idempotency.Key(userID, in.IdempotencyKey)
		claim, err := s.Idempotency.Claim(ctx, idemKey)
		if err != nil {
			return nil, fmt.Errorf("claim idempotency key: %w", err)
		}
		switch claim.State {
		case idempotency.StateInProgress:
			return nil, fmt.Errorf("%w: a request with this idempotency key is in progress", ErrConflict)
		case idempotency.StateCompleted:
			order, err := s.Repo.GetOrderForUser(ctx, claim.OrderID, userID)
			if err != nil {
				return nil, fmt.Errorf("load replayed order: %w", err)
			}
			l.Info("checkout_replayed", "order_id", order.ID)
			return &CreateOrderResult{Order: order, Replayed: true}, nil
		}
		releaseKey = true
		defer func() {
			if !releaseKey {
				return
			}
			relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bookkeepTimeout)
			defer cancel()
			if err := s.Idempotency.Release(relCtx, idemKey); err != nil {
				l.Warn("idempotency_release_failed", "error", err)
			}
		}()
	}

	if _, err := s.Repo.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %s not found", ErrNotFound, userID)
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	lines, total, err := s.priceLines(ctx, in.Items)
	if err != nil {
		return nil, err
	}

	orderID := uuid.New()
	charge, err := s.charge(ctx, processor, cfg.PaymentTimeout, payment.ChargeRequest{
		Reference:   orderID.String(),
		Amount:      total,
		Currency:    currency,
		Description: in.Description,
		Card:        in.Payment.Card,
	})
	var uncertain *payment.UncertainChargeError
	if errors.As(err, &uncertain) {
		// Money may have moved; keep the key claimed and hand it to operators.
		releaseKey = false
		txID := uncertain.TransactionID
		return nil, s.reconcile(ctx, l, &models.Order{
			ID:            orderID,
			UserID:        userID,
			TotalAmount:   total,
			Currency:      currency,
			TransactionID: &txID,
			PaymentMethod: string(method),
		}, err)
	}
	if err != nil {
		l.Warn("checkout_payment_rejected", "order_id", orderID, "error", err)
		return nil, err
	}

	// Money has moved. From here the key stays claimed unless completed.
	releaseKey = false

	txID := charge.TransactionID
	order := &models.Order{
		ID:            orderID,
		UserID:        userID,
		Status:        models.OrderStatusCompleted,
		TotalAmount:   total,
		Currency:      currency,
		TransactionID: &txID,
		PaymentMethod: string(method),
		Description:   in.Description,
		Items:         make([]models.OrderItem, 0, len(lines)),
	}
	for _, ln := range lines {
		order.Items = append(order.Items, models.OrderItem{
			ProductID: ln.product.ID,
			LineNo:    ln.lineNo,
			Quantity:  ln.quantity,
			UnitPrice: ln.unitPrice,
			Subtotal:  ln.subtotal,
		})
	}

	if err := s.persist(ctx, cfg, order); err != nil {
		return nil, s.reconcile(ctx, l, order, err)
	}

	detached := context.WithoutCancel(ctx)
	saved, err := s.Repo.GetOrderForUser(detached, order.ID, userID)
	if err != nil {
		l.Warn("checkout_reload_failed", "order_id", order.ID, "error", err)
		saved = order
	}

	l.Info("checkout_completed", "order_id", saved.ID, "number", saved.Number, "total", saved.TotalAmount.StringFixed(2), "currency", saved.Currency)

	s.publish(detached, l, events.NewOrderCompleted(saved))
	if idemKey != "" {
		cctx, cancel := context.WithTimeout(detached, bookkeepTimeout)
		if err := s.Idempotency.Complete(cctx, idemKey, saved.ID); err != nil {
			l.Warn("idempotency_complete_failed", "error", err)
		}
		cancel()
	}

	return &CreateOrderResult{Order: saved}, nil
}

func validateInput(in CreateOrderInput, defaultCurrency string) (string, error) {
	if len(in.Items) == 0 {
		return "", fmt.Errorf("%w: at least one item is required", ErrValidation)
	}
	for i, it := range in.Items {
		if it.ProductID == uuid.Nil {
			return "", fmt.Errorf("%w: items[%d].product_id is required", ErrValidation, i)
		}
		if it.Quantity < 1 {
			return "", fmt.Errorf("%w: items[%d].quantity must be >= 1", ErrValidation, i)
		}
		if it.Quantity > MaxLineQuantity {
			return "", fmt.Errorf("%w: items[%d].quantity must be <= %d", ErrValidation, i, MaxLineQuantity)
		}
	}
	return NormalizeCurrency(in.Currency, defaultCurrency)
}

// priceLines loads every product in input order and freezes its current
// price. Nothing is written.
func (s *CheckoutService) priceLines(ctx context.Context, items []LineItem) ([]pricedLine, decimal.Decimal, error) {
	lines := make([]pricedLine, 0, len(items))
	subtotals := make([]decimal.Decimal, 0, len(items))
	requested := make(map[uuid.UUID]int, len(items))

	for i, it := range items {
		product, err := s.Repo.GetProduct(ctx, it.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, decimal.Decimal{}, fmt.Errorf("%w: product %s not found", ErrNotFound, it.ProductID)
			}
			return nil, decimal.Decimal{}, fmt.Errorf("load product %s: %w", it.ProductID, err)
		}

		// requested never exceeds Stock, so the subtraction cannot wrap.
		already := requested[product.ID]
		if it.Quantity > product.Stock-already {
			wanted := already + it.Quantity
			if wanted < already {
				wanted = math.MaxInt
			}
			return nil, decimal.Decimal{}, &InsufficientStockError{
				ProductID: product.ID,
				Available: product.Stock,
				Requested: wanted,
			}
		}
		requested[product.ID] = already + it.Quantity

		sub := LineSubtotal(product.Price, it.Quantity)
		lines = append(lines, pricedLine{
			product:   product,
			lineNo:    i + 1,
			quantity:  it.Quantity,
			unitPrice: product.Price,
			subtotal:  sub,
		})
		subtotals = append(subtotals, sub)
	}

	total := OrderTotal(subtotals)
	if total.GreaterThan(payment.MaxAmount) {
		return nil, decimal.Decimal{}, fmt.Errorf("%w: order total %s exceeds %s", ErrValidation, total.StringFixed(2), payment.MaxAmount.StringFixed(2))
	}
	return lines, total, nil
}

func (s *CheckoutService) charge(ctx context.Context, p payment.Processor, timeout time.Duration, req payment.ChargeRequest) (*payment.ChargeResult, error) {
	ctx, span := s.tracer().Start(ctx, "checkout.charge",
		trace.WithAttributes(attribute.String("method", string(p.Method())), attribute.String("reference", req.Reference)))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	res, err := p.Charge(ctx, req)

	var uncertain *payment.UncertainChargeError
	switch {
	case errors.As(err, &uncertain):
		s.Metrics.ObservePayment(string(p.Method()), "uncertain", time.Since(start))
		span.RecordError(err)
		return nil, err
	case err != nil:
		s.Metrics.ObservePayment(string(p.Method()), "error", time.Since(start))
		span.RecordError(err)
		msg := "payment processor unavailable"
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "payment processor timed out"
		}
		return nil, &PaymentRejectedError{Method: p.Method(), Message: msg}
	case res == nil:
		s.Metrics.ObservePayment(string(p.Method()), "error", time.Since(start))
		return nil, &PaymentRejectedError{Method: p.Method(), Message: "empty response from payment processor"}
	case !res.Success:
		s.Metrics.ObservePayment(string(p.Method()), "declined", time.Since(start))
		msg := res.Message
		if msg == "" {
			msg = "payment declined"
		}
		return nil, &PaymentRejectedError{Method: p.Method(), Message: msg}
	case res.TransactionID == "":
		s.Metrics.ObservePayment(string(p.Method()), "error", time.Since(start))
		return nil, &PaymentRejectedError{Method: p.Method(), Message: "payment processor returned no transaction id"}
	}

	s.Metrics.ObservePayment(string(p.Method()), "approved", time.Since(start))
	span.SetAttributes(attribute.String("transaction_id", res.TransactionID))
	return res, nil
}

type stockDecrement struct {
	productID uuid.UUID
	quantity  int
}

// stockRaceError is a post-payment stock check that failed: the product
// sold out or vanished between pricing and persisting.
type stockRaceError struct {
	productID uuid.UUID
	quantity  int
}

func (e *stockRaceError) Error() string {
	return fmt.Sprintf("stock for product %s no longer covers %d units", e.productID, e.quantity)
}

// decrementsFor sums quantities per product and sorts by id so concurrent
// checkouts lock rows in the same order.
func decrementsFor(items []models.OrderItem) []stockDecrement {
	byID := make(map[uuid.UUID]int, len(items))
	for _, it := range items {
		byID[it.ProductID] += it.Quantity
	}
	out := make([]stockDecrement, 0, len(byID))
	for id, q := range byID {
		out = append(out, stockDecrement{productID: id, quantity: q})
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].productID[:], out[j].productID[:]) < 0
	})
	return out
}

// persist applies stock decrements and writes the order in one transaction.
// It runs detached from the caller so a dropped connection cannot leave a
// charge half recorded.
func (s *CheckoutService) persist(ctx context.Context, cfg CheckoutConfig, order *models.Order) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.PersistTimeout)
	defer cancel()
	ctx, span := s.tracer().Start(ctx, "checkout.persist", trace.WithAttributes(attribute.String("order_id", order.ID.String())))
	defer span.End()

	decrements := decrementsFor(order.Items)
	backoff := retry.WithMaxRetries(uint64(cfg.PersistMaxRetries), retry.NewExponential(cfg.PersistBackoff))

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			s.Metrics.IncPersistRetry()
			logging.FromContext(ctx).Warn("checkout_persist_retry", "order_id", order.ID, "attempt", attempt)
		}

		err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
			for _, d := range decrements {
				ok, err := tx.DecrementStock(ctx, d.productID, d.quantity)
				if err != nil {
					return err
				}
				if !ok {
					return &stockRaceError{productID: d.productID, quantity: d.quantity}
				}
			}
			return tx.CreateOrder(ctx, order)
		})
		if err == nil {
			return nil
		}
		if isPermanent(err) {
			return err
		}
		return retry.RetryableError(err)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
	}
	return err
}

func isPermanent(err error) bool {
	var race *stockRaceError
	return errors.As(err, &race) ||
		errors.Is(err, repo.ErrOrderNumberExhausted) ||
		errors.Is(err, gorm.ErrDuplicatedKey) ||
		errors.Is(err, gorm.ErrForeignKeyViolated) ||
		errors.Is(err, gorm.ErrCheckConstraintViolated) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// reconcile records a charge that has no order and returns the error the
// caller sees.
func (s *CheckoutService) reconcile(ctx context.Context, l *slog.Logger, order *models.Order, cause error) error {
	txID := ""
	if order.TransactionID != nil {
		txID = *order.TransactionID
	}
	item := &models.ReconciliationItem{
		ID:            uuid.New(),
		UserID:        order.UserID,
		OrderID:       order.ID,
		TransactionID: txID,
		PaymentMethod: order.PaymentMethod,
		Amount:        order.TotalAmount,
		Currency:      order.Currency,
		Reason:        cause.Error(),
	}

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bookkeepTimeout)
	defer cancel()
	if err := s.Repo.CreateReconciliationItem(rctx, item); err != nil {
		l.Error("reconciliation_record_failed", "reconciliation_item", item.ID, "transaction_id", txID, "error", err)
	}

	l.Error("reconciliation_required",
		"reconciliation_item", item.ID,
		"order_id", order.ID,
		"transaction_id", txID,
		"amount", order.TotalAmount.StringFixed(2),
		"currency", order.Currency,
		"error", cause,
	)
	s.Metrics.IncReconciliation()
	s.publish(context.WithoutCancel(ctx), l, events.NewReconciliationRequired(item))

	return &ReconciliationError{ItemID: item.ID, TransactionID: txID, Cause: cause}
}

func (s *CheckoutService) publish(ctx context.Context, l *slog.Logger, ev events.Event) {
	if s.Events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := s.Events.Publish(ctx, ev); err != nil {
		l.Warn("event_publish_failed", "type", ev.Type, "order_id", ev.OrderID, "error", err)
	}
}

func checkoutOutcome(res *CreateOrderResult, err error) string {
	switch {
	case err == nil && res != nil && res.Replayed:
		return "replayed"
	case err == nil:
		return outcomeCompleted
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrUnsupportedPaymentMethod):
		return "unsupported_method"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrPaymentRejected):
		return "payment_rejected"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrReconciliation):
		return "reconciliation"
	default:
		return "error"
	}
}
