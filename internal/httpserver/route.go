package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/Skotchmaster/online_shop/internal/metrics"
	"github.com/Skotchmaster/online_shop/internal/middleware/csrf"
	"github.com/Skotchmaster/online_shop/pkg/db"
	middleware "github.com/Skotchmaster/online_shop/pkg/middleware/auth"
)

type Deps struct {
	OrderHandler          *OrderHTTP
	ReconciliationHandler *ReconciliationHTTP
	JWTSecret             []byte
	DB                    *gorm.DB
	Metrics               *metrics.Metrics
	Gatherer              prometheus.Gatherer
}

func Register(e *echo.Echo, d *Deps) {
	e.Validator = NewValidator()
	if d.Metrics != nil {
		e.Use(d.Metrics.Middleware())
	}

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.DB == nil {
			return c.NoContent(http.StatusOK)
		}
		if err := db.Ping(c.Request().Context(), d.DB); err != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable")
		}
		return c.NoContent(http.StatusOK)
	})
	if d.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler(d.Gatherer)))
	}

	csrfMW := csrf.Middleware(csrf.DefaultConfig())

	orders := e.Group("/orders", middleware.RequireAuth(d.JWTSecret), csrfMW)
	orders.POST("", d.OrderHandler.CreateOrder)
	orders.GET("", d.OrderHandler.ListOrders)
	orders.GET("/:id", d.OrderHandler.GetOrder)

	if d.ReconciliationHandler != nil {
		admin := e.Group("/admin/reconciliation", middleware.RequireAuth(d.JWTSecret), middleware.RequireRole([]string{"admin"}), csrfMW)
		admin.GET("", d.ReconciliationHandler.List)
		admin.POST("/:id/resolve", d.ReconciliationHandler.Resolve)
	}
}
