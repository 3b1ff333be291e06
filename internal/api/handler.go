package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"storefront/internal/analytics"
	"storefront/internal/auth"
	"storefront/internal/models"
	"storefront/internal/service"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// AuthService is the account surface the handlers call
type AuthService interface {
	Register(ctx context.Context, req *service.RegisterRequest) (*service.AuthResponse, error)
	Login(ctx context.Context, req *service.LoginRequest) (*service.AuthResponse, error)
	Me(ctx context.Context, p auth.Principal) (*models.User, error)
	UpdateProfile(ctx context.Context, p auth.Principal, req *service.UpdateProfileRequest) (*models.User, error)
	ChangePassword(ctx context.Context, p auth.Principal, req *service.ChangePasswordRequest) error
	BecomeSeller(ctx context.Context, p auth.Principal, req *service.BecomeSellerRequest) (*models.User, error)
	ResolvePrincipal(ctx context.Context, token string) (auth.Principal, error)
}

// ProductService is the catalogue surface the handlers call
type ProductService interface {
	List(ctx context.Context, q *service.ListProductsQuery) (*service.ProductList, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Product, error)
	Create(ctx context.Context, p auth.Principal, req *service.CreateProductRequest) (*models.Product, error)
	Update(ctx context.Context, p auth.Principal, id uuid.UUID, req *service.UpdateProductRequest) (*models.Product, error)
	Delete(ctx context.Context, p auth.Principal, id uuid.UUID) error
	AddReview(ctx context.Context, p auth.Principal, id uuid.UUID, req *service.AddReviewRequest) (*models.Product, error)
	Stats(ctx context.Context, p auth.Principal) (*store.ProductStats, error)
}

// OrderService is the order surface the handlers call
type OrderService interface {
	Create(ctx context.Context, p auth.Principal, req *service.CreateOrderRequest) (*models.Order, error)
	Get(ctx context.Context, p auth.Principal, id uuid.UUID) (*models.Order, error)
	ListMine(ctx context.Context, p auth.Principal) ([]models.Order, error)
	ListAll(ctx context.Context, p auth.Principal) ([]models.Order, error)
	ListForSeller(ctx context.Context, p auth.Principal) ([]models.Order, error)
	MarkDelivered(ctx context.Context, p auth.Principal, id uuid.UUID) (*models.Order, error)
}

// PaymentService is the checkout surface the handlers call
type PaymentService interface {
	CreateExternalOrder(ctx context.Context, p auth.Principal, req *service.CreatePaymentOrderRequest) (*service.PaymentOrder, error)
	Verify(ctx context.Context, p auth.Principal, req *service.VerifyPaymentRequest) (*models.Order, error)
	Key() string
}

// SellerService is the dashboard surface the handlers call
type SellerService interface {
	DashboardStats(ctx context.Context, p auth.Principal) (*analytics.Summary, error)
}

// Pinger is a dependency checked by the readiness endpoint
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services bundles everything the router dispatches to
type Services struct {
	Auth     AuthService
	Products ProductService
	Orders   OrderService
	Payments PaymentService
	Seller   SellerService
}

// Handler contains HTTP handlers
type Handler struct {
	auth     AuthService
	products ProductService
	orders   OrderService
	payments PaymentService
	seller   SellerService

	readiness   map[string]Pinger
	frontendURL string
	logger      *zap.Logger
}

// NewHandler creates a new HTTP handler. readiness names the dependencies
// pinged by /ready.
func NewHandler(svc Services, frontendURL string, readiness map[string]Pinger) *Handler {
	return &Handler{
		auth:        svc.Auth,
		products:    svc.Products,
		orders:      svc.Orders,
		payments:    svc.Payments,
		seller:      svc.Seller,
		readiness:   readiness,
		frontendURL: frontendURL,
		logger:      util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{h.frontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	authed := h.authenticate()

	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/register", h.register)
		authRoutes.POST("/login", h.login)
		authRoutes.GET("/me", authed, h.me)
		authRoutes.PUT("/updateprofile", authed, h.updateProfile)
		authRoutes.PUT("/changepassword", authed, h.changePassword)
		authRoutes.PUT("/become-seller", authed, requireRole(models.RoleCustomer), h.becomeSeller)
	}

	products := api.Group("/products", authed)
	{
		products.GET("", h.listProducts)
		products.GET("/stats", requireRole(models.RoleAdmin), h.productStats)
		products.GET("/:id", h.getProduct)
		products.POST("", requireRole(models.RoleSeller), h.createProduct)
		products.PUT("/:id", requireRole(models.RoleSeller, models.RoleAdmin), h.updateProduct)
		products.DELETE("/:id", requireRole(models.RoleSeller, models.RoleAdmin), h.deleteProduct)
		products.POST("/:id/reviews", h.addReview)
	}

	orders := api.Group("/orders", authed)
	{
		orders.POST("", requireRole(models.RoleCustomer), h.createOrder)
		orders.GET("", h.myOrders)
		orders.GET("/admin/all", requireRole(models.RoleAdmin), h.allOrders)
		orders.GET("/sellerOrder", requireRole(models.RoleSeller), h.sellerOrders)
		orders.GET("/:id", h.getOrder)
		orders.PUT("/:id/deliver", requireRole(models.RoleAdmin), h.markDelivered)
	}

	api.GET("/seller/stats", authed, requireRole(models.RoleSeller), h.sellerStats)

	payments := api.Group("/payment")
	{
		payments.GET("/key", h.paymentKey)
		payments.POST("/create-order", authed, h.createPaymentOrder)
		payments.POST("/verify", authed, h.verifyPayment)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready only when every dependency answers
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := make(gin.H, len(h.readiness))
	status := http.StatusOK
	for name, dep := range h.readiness {
		if err := dep.Ping(ctx); err != nil {
			h.logger.Warn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
			checks[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not ready"
	}
	c.JSON(status, gin.H{
		"status": state,
		"checks": checks,
		"time":   time.Now().Unix(),
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
