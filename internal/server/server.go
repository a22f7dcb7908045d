package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"creditslot/internal/auth"
	"creditslot/internal/booking"
	"creditslot/internal/config"
	"creditslot/internal/conversion"
	"creditslot/internal/event"
	"creditslot/internal/payout"
	"creditslot/internal/user"
	"creditslot/internal/wallet"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Users       *user.Handler
	Conversions *conversion.Handler
	Events      *event.Handler
	Wallet      *wallet.Handler
	Bookings    *booking.Handler
	Payouts     *payout.Handler
}

// System carries the dependencies of the unauthenticated and operator endpoints.
type System struct {
	Checks map[string]Check
	Queue  QueueStats
}

type Server struct {
	router *gin.Engine
	http   *http.Server
}

func New(cfg *config.Config, h Handlers, sys System) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLoggingMiddleware())
	router.Use(MetricsMiddleware())
	router.Use(corsMiddleware())

	router.GET("/health", Health(sys.Checks))
	router.GET("/metrics", Metrics())

	authMiddleware := auth.AuthMiddleware(cfg.JWTSecret)
	limit := RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst)

	protected := router.Group("/")
	protected.Use(authMiddleware, limit)
	{
		protected.GET("/me", h.Users.GetMe)
		protected.GET("/conversions/active", h.Conversions.ActiveRate)

		protected.GET("/slots/:slotID", h.Events.GetSlot)
		protected.GET("/slots/:slotID/prices", h.Events.GetPrices)
		protected.GET("/slots/:slotID/availability", h.Events.Availability)
		protected.GET("/slots/:slotID/payout", h.Payouts.GetForSlot)

		protected.GET("/wallet", h.Wallet.GetBalance)
		protected.GET("/wallet/transactions", h.Wallet.ListTransactions)

		protected.POST("/slots/:slotID/bookings", h.Bookings.Reserve)
		protected.GET("/bookings", h.Bookings.ListMine)
		protected.GET("/bookings/:bookingID", h.Bookings.Get)
		protected.POST("/bookings/:bookingID/cancel", h.Bookings.Cancel)
	}

	merchant := router.Group("/merchant")
	merchant.Use(authMiddleware, auth.RequireRole(auth.RoleMerchant, auth.RoleAdmin))
	{
		merchant.GET("/payouts", h.Payouts.ListMine)
	}

	admin := router.Group("/admin")
	admin.Use(authMiddleware, auth.RequireRole(auth.RoleAdmin))
	{
		admin.POST("/conversions", h.Conversions.Create)
		admin.POST("/wallets/grants", h.Wallet.Grant)
		admin.GET("/wallets/:walletID/audit", h.Wallet.Audit)

		admin.GET("/bookings/:bookingID", h.Bookings.Get)
		admin.POST("/bookings/:bookingID/cancel", h.Bookings.AdminCancel)
		admin.GET("/slots/:slotID/bookings", h.Bookings.ListBySlot)

		admin.POST("/slots/:slotID/payout", h.Payouts.Calculate)
		admin.GET("/payouts", h.Payouts.List)
		admin.POST("/payouts/scan", h.Payouts.Scan)
		admin.POST("/payouts/release", h.Payouts.Release)
		admin.POST("/payouts/:payoutID/paid", h.Payouts.MarkPaid)

		admin.GET("/notifications/queue", QueueLength(sys.Queue))
	}

	return &Server{
		router: router,
		http: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, Idempotency-Key, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
