package httpserver

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/online_shop/internal/service"
	"github.com/Skotchmaster/online_shop/internal/util"
	"github.com/Skotchmaster/online_shop/pkg/logging"
)

type ReconciliationHTTP struct {
	Svc *service.ReconciliationService
}

func (h *ReconciliationHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "reconciliation.list")

	page, ok := util.ParsePositive(c.QueryParam("page"), 1)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "page must be a positive integer")
	}
	size, ok := util.ParsePositive(c.QueryParam("page_size"), util.DefaultPageSize)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "page_size must be a positive integer")
	}
	resolved := false
	if v := c.QueryParam("resolved"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "resolved must be true or false")
		}
		resolved = b
	}

	res, err := h.Svc.List(ctx, resolved, page, size)
	if err != nil {
		return serviceError(l, "reconciliation_list_error", err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *ReconciliationHTTP) Resolve(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "reconciliation.resolve")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		l.Warn("reconciliation_resolve_error", "status", 400, "reason", "invalid id", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	item, err := h.Svc.Resolve(ctx, id)
	if err != nil {
		return serviceError(l, "reconciliation_resolve_error", err)
	}
	return c.JSON(http.StatusOK, item)
}
