package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tolusimi/naiabook/api"
	"github.com/tolusimi/naiabook/config"
	"github.com/tolusimi/naiabook/internal/checkout"
	"github.com/tolusimi/naiabook/internal/metrics"
	"github.com/tolusimi/naiabook/internal/service/booking"
	"github.com/tolusimi/naiabook/internal/service/flights"
	"github.com/tolusimi/naiabook/internal/service/payments"
)

type Services struct {
	Flights  flights.FlightUseCase
	Checkout checkout.CheckoutUseCase
	Bookings booking.BookingUseCase
	Payments payments.PaymentUseCase
}

// Run starts the HTTP server and blocks until the context is cancelled or
// the server fails.
func Run(ctx context.Context, cfg *config.Config, svcs Services) error {
	metrics.Register()

	router := NewRouter(svcs)
	srv := &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func NewRouter(svcs Services) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), metrics.GinMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := router.Group("/api/v1")
	api.NewFlightHandler(svcs.Flights).Register(v1.Group("/flights"))
	api.NewCheckoutHandler(svcs.Checkout).Register(v1.Group("/checkout"))
	api.NewBookingHandler(svcs.Bookings).Register(v1.Group("/bookings"))
	api.NewPaymentHandler(svcs.Payments).Register(v1.Group("/payments"))

	return router
}
