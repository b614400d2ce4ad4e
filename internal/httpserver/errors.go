package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/online_shop/internal/payment"
	"github.com/Skotchmaster/online_shop/internal/service"
)

// serviceError maps a service error onto an HTTP error and logs it under
// event. Client errors log at WARN, server errors at ERROR.
func serviceError(l *slog.Logger, event string, err error) error {
	status, msg := http.StatusInternalServerError, "internal error"

	var recErr *service.ReconciliationError
	switch {
	case errors.As(err, &recErr) && errors.Is(err, payment.ErrChargeUncertain):
		msg = fmt.Sprintf("payment %s has not settled and no order was created; support reference %s",
			recErr.TransactionID, recErr.ItemID)
	case errors.As(err, &recErr):
		msg = fmt.Sprintf("payment %s was captured but the order could not be saved; support reference %s",
			recErr.TransactionID, recErr.ItemID)
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrUnsupportedPaymentMethod),
		errors.Is(err, service.ErrInsufficientStock),
		errors.Is(err, service.ErrPaymentRejected):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, service.ErrConflict):
		status, msg = http.StatusConflict, err.Error()
	}

	if status >= http.StatusInternalServerError {
		l.Error(event, "status", status, "reason", msg, "error", err)
	} else {
		l.Warn(event, "status", status, "reason", msg, "error", err)
	}
	return echo.NewHTTPError(status, msg)
}
