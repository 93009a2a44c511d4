package handlers

import (
	"net/http"

	"storefront/internal/logger"
	"storefront/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const statusOK = "ok"

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services     *service.Service
	log          *logger.Logger
	metrics      *Metrics
	secureCookie bool
	currency     string
}

// Option customizes a Handler.
type Option func(*Handler)

// WithMetrics enables request instrumentation and the /metrics endpoint.
func WithMetrics(m *Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithSecureCookies marks session and flash cookies Secure (HTTPS only).
func WithSecureCookies(secure bool) Option {
	return func(h *Handler) { h.secureCookie = secure }
}

// WithCurrency sets the currency code shown next to catalog prices.
func WithCurrency(code string) Option {
	return func(h *Handler) { h.currency = code }
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger, opts ...Option) *Handler {
	h := &Handler{services: services, log: log}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if h.metrics != nil {
		router.Use(h.metrics.instrument)
	}
	router.Use(h.requestLogger, h.userIdMiddleware)
	router.SetHTMLTemplate(pageTemplates)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", h.health)
	if h.metrics != nil {
		router.GET("/metrics", h.metrics.handler())
	}

	h.registerPageRoutes(router)
	h.registerAPIRoutes(router)

	// Provider callbacks carry no session; they are authenticated by signature.
	router.POST("/webhooks/payment", h.paymentWebhook)

	router.GET("/ws/orders/:id", h.requireUserJSON, h.wsOrderStatus)

	return router
}

func (h *Handler) registerPageRoutes(r *gin.Engine) {
	r.GET("/", h.index)

	r.GET("/login", h.showLogin)
	r.POST("/login", h.login)
	r.GET("/logout", h.requireUser, h.logout)
	r.GET("/register", h.showRegister)
	r.POST("/register", h.register)

	r.GET("/checkout/:product_id", h.requireUser, h.checkout)

	order := r.Group("/order")
	{
		order.GET("/success", h.orderSuccess)
		order.GET("/cancel", h.orderCancel)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.GET("/products", h.apiListProducts)
		api.GET("/orders/:id", h.requireUserJSON, h.apiGetOrder)
	}
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}
