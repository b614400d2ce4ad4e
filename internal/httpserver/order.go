package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/online_shop/internal/payment"
	"github.com/Skotchmaster/online_shop/internal/service"
	"github.com/Skotchmaster/online_shop/internal/transport"
	"github.com/Skotchmaster/online_shop/internal/util"
	"github.com/Skotchmaster/online_shop/pkg/logging"
	middleware "github.com/Skotchmaster/online_shop/pkg/middleware/auth"
)

const (
	HeaderIdempotencyKey    = "Idempotency-Key"
	HeaderIdempotentReplay  = "Idempotent-Replay"
	maxIdempotencyKeyLength = 128
)

type OrderHTTP struct {
	Checkout *service.CheckoutService
	Query    *service.QueryService
}

func (h *OrderHTTP) GetID(c echo.Context) (uuid.UUID, error) {
	s, ok := c.Get(middleware.CtxUserID).(string)
	if !ok || s == "" {
		return uuid.Nil, errors.New("unauthorized")
	}

	userID, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, errors.New("unauthorized")
	}

	return userID, nil
}

func (h *OrderHTTP) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.create_order")

	userID, err := h.GetID(c)
	if err != nil {
		l.Warn("create_order_error", "status", 401, "reason", "unauthorized", "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var req transport.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("create_order_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		msg := validationMessage(err)
		l.Warn("create_order_error", "status", 400, "reason", msg, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, msg)
	}

	key := strings.TrimSpace(c.Request().Header.Get(HeaderIdempotencyKey))
	if len(key) > maxIdempotencyKeyLength {
		l.Warn("create_order_error", "status", 400, "reason", "idempotency key too long")
		return echo.NewHTTPError(http.StatusBadRequest, "Idempotency-Key must be at most 128 characters")
	}

	res, err := h.Checkout.CreateOrder(ctx, userID, toCreateOrderInput(req, key))
	if err != nil {
		return serviceError(l, "create_order_error", err)
	}

	if res.Replayed {
		c.Response().Header().Set(HeaderIdempotentReplay, "true")
		l.Info("create_order_replayed", "order_id", res.Order.ID)
		return c.JSON(http.StatusOK, res.Order)
	}

	l.Info("create_order_success", "order_id", res.Order.ID, "number", res.Order.Number)
	return c.JSON(http.StatusCreated, res.Order)
}

func toCreateOrderInput(req transport.CreateOrderRequest, key string) service.CreateOrderInput {
	in := service.CreateOrderInput{
		Items:          make([]service.LineItem, 0, len(req.Items)),
		Payment:        service.PaymentDetails{Method: req.Payment.Method},
		Currency:       req.Currency,
		Description:    req.Description,
		IdempotencyKey: key,
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, service.LineItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	if card := req.Payment.Card; card != nil {
		in.Payment.Card = &payment.Card{
			Number:   card.Number,
			CVV:      card.CVV,
			ExpMonth: card.ExpMonth,
			ExpYear:  card.ExpYear,
			Holder:   card.Holder,
		}
	}
	return in
}

func (h *OrderHTTP) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list_orders")

	userID, err := h.GetID(c)
	if err != nil {
		l.Warn("list_orders_error", "status", 401, "reason", "unauthorized", "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	page, ok := util.ParsePositive(c.QueryParam("page"), 1)
	if !ok {
		l.Warn("list_orders_error", "status", 400, "reason", "invalid page", "page", c.QueryParam("page"))
		return echo.NewHTTPError(http.StatusBadRequest, "page must be a positive integer")
	}
	size, ok := util.ParsePositive(c.QueryParam("page_size"), util.DefaultPageSize)
	if !ok {
		l.Warn("list_orders_error", "status", 400, "reason", "invalid page_size", "page_size", c.QueryParam("page_size"))
		return echo.NewHTTPError(http.StatusBadRequest, "page_size must be a positive integer")
	}

	res, err := h.Query.ListOrders(ctx, userID, page, size)
	if err != nil {
		return serviceError(l, "list_orders_error", err)
	}

	return c.JSON(http.StatusOK, res)
}

func (h *OrderHTTP) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get_order")

	userID, err := h.GetID(c)
	if err != nil {
		l.Warn("get_order_error", "status", 401, "reason", "unauthorized", "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		// a malformed id can't name anyone's order
		l.Warn("get_order_error", "status", 404, "reason", "malformed id", "error", err)
		return echo.NewHTTPError(http.StatusNotFound, "order not found")
	}

	order, err := h.Query.GetOrder(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			l.Warn("get_order_error", "status", 404, "reason", "order not found", "order_id", orderID)
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		return serviceError(l, "get_order_error", err)
	}

	return c.JSON(http.StatusOK, order)
}
