package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/joshua0006/pineapple-tours--1--sub006/appctx"
	"github.com/joshua0006/pineapple-tours--1--sub006/config"
	"github.com/joshua0006/pineapple-tours--1--sub006/correlation"
	"github.com/joshua0006/pineapple-tours--1--sub006/kvstore"
	"github.com/joshua0006/pineapple-tours--1--sub006/middlewares"
	"github.com/joshua0006/pineapple-tours--1--sub006/pickups"
	"github.com/joshua0006/pineapple-tours--1--sub006/rezdy"
	"github.com/joshua0006/pineapple-tours--1--sub006/session"
	"github.com/joshua0006/pineapple-tours--1--sub006/tourcache"
	"github.com/joshua0006/pineapple-tours--1--sub006/utils"
)

// app bundles the ephemeral-state layer so handlers receive explicit
// dependencies instead of reaching for globals. rezdyClient is nil when
// REZDY_API_KEY is unset; the affected routes fail with a config error while
// the rest of the site keeps serving.
type app struct {
	logger      *logrus.Logger
	bookings    *correlation.Store
	sessions    *session.Store
	cache       *tourcache.Manager
	rezdyClient *rezdy.Client
	pickupIndex *pickups.Index
	resolver    *pickups.Resolver
}

type checkoutRequest struct {
	OrderNumber  string              `json:"orderNumber"`
	ContactName  string              `json:"contactName" validate:"required"`
	ContactEmail string              `json:"contactEmail" validate:"required,email"`
	ContactPhone string              `json:"contactPhone"`
	ProductCode  string              `json:"productCode" validate:"required"`
	TotalAmount  float64             `json:"totalAmount" validate:"gte=0"`
	Guests       []correlation.Guest `json:"guests"`
}

func checkoutHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req checkoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if err := utils.ValidateStruct(req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		orderNumber := strings.TrimSpace(req.OrderNumber)
		if orderNumber == "" {
			orderNumber = newOrderNumber()
		}

		payload := correlation.BookingPayload{
			OrderNumber:  orderNumber,
			ContactName:  strings.TrimSpace(req.ContactName),
			ContactEmail: strings.TrimSpace(req.ContactEmail),
			ContactPhone: utils.NormalizePhoneNumber(req.ContactPhone, utils.CountryCode),
			ProductCode:  strings.TrimSpace(req.ProductCode),
			TotalAmount:  req.TotalAmount,
			Guests:       req.Guests,
		}
		a.bookings.Store(c.Request.Context(), orderNumber, payload)

		c.JSON(http.StatusCreated, gin.H{"orderNumber": orderNumber})
	}
}

// confirmHandler is the payment-return leg: the gateway redirects the
// customer back with the order number it was given at checkout.
func confirmHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderNumber := c.Query("orderNumber")
		payload, err := a.bookings.RetrieveWithFallbacks(c.Request.Context(), orderNumber)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		a.bookings.Remove(c.Request.Context(), payload.OrderNumber)
		c.JSON(http.StatusOK, payload)
	}
}

type paymentWebhook struct {
	OrderNumber string `json:"orderNumber"`
	Status      string `json:"status"`
}

func paymentWebhookHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var hook paymentWebhook
		if err := c.ShouldBindJSON(&hook); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		payload, err := a.bookings.RetrieveWithFallbacks(c.Request.Context(), hook.OrderNumber)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		if strings.EqualFold(hook.Status, "success") {
			a.bookings.Remove(c.Request.Context(), payload.OrderNumber)
		}
		c.JSON(http.StatusOK, gin.H{"orderNumber": payload.OrderNumber, "processed": true})
	}
}

// serveCached wires the X-Cache/X-Cache-Key/Cache-Control headers so cache
// behavior is observable without a dedicated API.
func serveCached[T any](c *gin.Context, a *app, entity tourcache.EntityType, cacheKey string, fetch func(ctx context.Context) (T, error)) {
	if a.rezdyClient == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "booking platform not configured"})
		return
	}
	value, hit, err := tourcache.GetOrFetch(c.Request.Context(), a.cache, entity, cacheKey, fetch)
	if err != nil {
		config.LogError(a.logger, "server.go", "serveCached", string(entity), cacheKey, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "booking platform unavailable"})
		return
	}
	if hit {
		c.Header("X-Cache", "HIT")
	} else {
		c.Header("X-Cache", "MISS")
	}
	c.Header("X-Cache-Key", cacheKey)
	c.Header("Cache-Control", "public, max-age="+maxAge(a.cache.TTL(entity)))
	c.JSON(http.StatusOK, value)
}

func categoriesHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		serveCached(c, a, tourcache.EntityCategories, tourcache.Key(tourcache.EntityCategories, "visible"), func(ctx context.Context) ([]rezdy.Category, error) {
			return a.rezdyClient.GetCategories(ctx)
		})
	}
}

func toursHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		if categoryID, ok := intQuery(c, "categoryId"); ok {
			serveCached(c, a, tourcache.EntityProducts, tourcache.Key(tourcache.EntityProducts, "category", strconv.Itoa(categoryID)), func(ctx context.Context) ([]rezdy.Product, error) {
				return a.rezdyClient.GetCategoryProducts(ctx, categoryID)
			})
			return
		}
		serveCached(c, a, tourcache.EntityProducts, tourcache.Key(tourcache.EntityProducts, "all"), func(ctx context.Context) ([]rezdy.Product, error) {
			return a.rezdyClient.SearchProducts(ctx, 100)
		})
	}
}

func tourDetailHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		productCode := c.Param("code")
		serveCached(c, a, tourcache.EntityTour, tourcache.Key(tourcache.EntityTour, productCode), func(ctx context.Context) (*rezdy.Product, error) {
			return a.rezdyClient.GetProduct(ctx, productCode)
		})
	}
}

func availabilityHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		productCode := c.Query("productCode")
		startTime := c.Query("startTimeLocal")
		endTime := c.Query("endTimeLocal")
		if productCode == "" || startTime == "" || endTime == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "productCode, startTimeLocal and endTimeLocal are required"})
			return
		}
		cacheKey := tourcache.Key(tourcache.EntityAvailability, productCode, startTime, endTime)
		serveCached(c, a, tourcache.EntityAvailability, cacheKey, func(ctx context.Context) ([]rezdy.AvailabilitySession, error) {
			return a.rezdyClient.GetAvailability(ctx, productCode, startTime, endTime)
		})
	}
}

func pickupsHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		resolution := a.resolver.Resolve(c.Request.Context(), c.Param("code"))
		c.JSON(http.StatusOK, resolution)
	}
}

func pickupStatsHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"stats":    a.pickupIndex.Stats(),
			"metadata": a.pickupIndex.Metadata(),
		})
	}
}

func pickupRefreshHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := a.pickupIndex.RefreshIndex()
		if err != nil {
			config.LogError(a.logger, "server.go", "pickupRefreshHandler", "rebuild", nil, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "index rebuild failed"})
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func loginHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if err := utils.ValidateStruct(req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		adminEmail := config.AdminEmail()
		adminHash := config.AdminPasswordHash()
		if adminEmail == "" || adminHash == "" {
			config.LogError(a.logger, "server.go", "loginHandler", "credentials", nil, utils.ErrConfigMissing)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "login not configured"})
			return
		}
		if !strings.EqualFold(req.Email, adminEmail) || utils.ComparePassword(adminHash, req.Password) != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		sess, err := a.sessions.CreateSession(c.Request.Context(), adminEmail)
		if err != nil {
			config.LogError(a.logger, "server.go", "loginHandler", "create session", nil, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create session"})
			return
		}

		c.SetSameSite(http.SameSiteStrictMode)
		c.SetCookie(middlewares.SessionCookieName, sess.ID, int(config.SessionTTL().Seconds()), "/", "", false, true)
		c.JSON(http.StatusOK, gin.H{"subject": sess.Subject, "expiresAt": sess.ExpiresAt})
	}
}

func logoutHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, err := c.Cookie(middlewares.SessionCookieName); err == nil && id != "" {
			a.sessions.DeleteSession(c.Request.Context(), id)
		}
		c.SetSameSite(http.SameSiteStrictMode)
		c.SetCookie(middlewares.SessionCookieName, "", -1, "/", "", false, true)
		c.Status(http.StatusNoContent)
	}
}

func meHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		subject, ok := appctx.GetString(c.Request.Context(), appctx.ContextKeySubject)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"subject": subject})
	}
}

func cacheHealthHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, a.cache.HealthStatus())
	}
}

func cacheMetricsHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, a.cache.PerformanceMetrics())
	}
}

func cacheWarmHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := a.cache.InitializeCache(c.Request.Context()); err != nil {
			status := http.StatusBadGateway
			if errors.Is(err, utils.ErrConfigMissing) {
				status = http.StatusInternalServerError
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		if categoryID, ok := intQuery(c, "categoryId"); ok {
			if err := a.cache.PreloadCategory(c.Request.Context(), categoryID); err != nil {
				c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"warmed": true})
	}
}

func bookingStatsHandler(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, a.bookings.Stats())
	}
}

func newRouter(a *app) *gin.Engine {
	r := gin.New()
	r.Use(middlewares.RequestIdMiddleware())

	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type")
	corsConfig.AddExposeHeaders("X-Cache", "X-Cache-Key", "X-Request-Id")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	r.Use(middlewares.SessionMiddleware(a.sessions))
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	api := r.Group("/api")
	{
		api.POST("/bookings/checkout", checkoutHandler(a))
		api.GET("/bookings/confirm", confirmHandler(a))
		api.POST("/webhooks/payment", paymentWebhookHandler(a))

		api.GET("/categories", categoriesHandler(a))
		api.GET("/tours", toursHandler(a))
		api.GET("/tours/:code", tourDetailHandler(a))
		api.GET("/availability", availabilityHandler(a))
		api.GET("/pickups/:code", pickupsHandler(a))

		api.POST("/auth/login", loginHandler(a))
		api.POST("/auth/logout", logoutHandler(a))
		api.GET("/auth/me", meHandler())
	}

	admin := r.Group("/api/admin", middlewares.RequireSession())
	{
		admin.GET("/pickups/stats", pickupStatsHandler(a))
		admin.POST("/pickups/refresh", pickupRefreshHandler(a))
		admin.GET("/cache/health", cacheHealthHandler(a))
		admin.GET("/cache/metrics", cacheMetricsHandler(a))
		admin.POST("/cache/warm", cacheWarmHandler(a))
		admin.GET("/bookings/stats", bookingStatsHandler(a))
	}

	return r
}

func main() {
	config.LoadEnv()
	logger := config.NewLogger()

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Durable backend: redis when configured, in-process otherwise. Sessions
	// and the correlation write-through share it.
	var kv kvstore.KV
	if addr := config.RedisAddress(); addr != "" {
		client, err := config.NewRedisClient(context.Background(), addr)
		if err != nil {
			logger.WithFields(logrus.Fields{"field": "redis"}).Warn("redis unavailable, falling back to in-process store: " + err.Error())
			kv = kvstore.NewMemoryKV()
		} else {
			defer client.Close()
			kv = kvstore.NewRedisKV(client)
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "redis"}).Warn("REDIS_ADDRESS not set; sessions will not survive restarts")
		kv = kvstore.NewMemoryKV()
	}

	var rezdyClient *rezdy.Client
	if apiKey := config.RezdyAPIKey(); apiKey != "" {
		client, err := rezdy.NewClient(config.RezdyBaseURL(), apiKey)
		if err != nil {
			config.LogError(logger, "server.go", "main", "rezdy client", nil, err)
		} else {
			rezdyClient = client
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "rezdy"}).Warn("REZDY_API_KEY not set; catalog routes will return errors")
	}

	a := &app{
		logger:   logger,
		bookings: correlation.NewStore(logger, kv),
		sessions: session.NewStore(kv, config.SessionTTL()),
	}
	defer a.bookings.Shutdown()

	a.cache = tourcache.NewManager(fetcherOrNil(rezdyClient), logger)
	a.rezdyClient = rezdyClient

	a.pickupIndex = pickups.NewIndex(config.PickupDataDir(), logger)
	if _, err := a.pickupIndex.RefreshIndex(); err != nil {
		logger.WithFields(logrus.Fields{"field": "pickups"}).Warn("initial pickup index build failed: " + err.Error())
	}
	a.resolver = pickups.NewResolver(a.pickupIndex, pickupFallback(a), logger)

	srv := &http.Server{
		Addr:    ":" + config.Port(),
		Handler: newRouter(a),
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	// Warm the category cache after the port is open so startup probes pass
	// even when the booking platform is slow.
	if rezdyClient != nil {
		go func() {
			warmCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if err := a.cache.InitializeCache(warmCtx); err != nil {
				logger.WithFields(logrus.Fields{"field": "tourcache"}).Warn("startup warm failed: " + err.Error())
			}
		}()
	}

	logger.WithFields(logrus.Fields{"port": config.Port()}).Info("server started")

	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("shutdown: " + err.Error())
	}
}

// pickupFallback routes the single-product upstream lookup through the cache
// manager, so repeated misses inside the pickup ttl cost one upstream call.
func pickupFallback(a *app) pickups.UpstreamFunc {
	return func(ctx context.Context, productCode string) ([]rezdy.PickupLocation, error) {
		if a.rezdyClient == nil {
			return nil, utils.ErrConfigMissing
		}
		locations, _, err := tourcache.GetOrFetch(ctx, a.cache, tourcache.EntityPickups, tourcache.Key(tourcache.EntityPickups, productCode), func(ctx context.Context) ([]rezdy.PickupLocation, error) {
			return a.rezdyClient.GetProductPickups(ctx, productCode)
		})
		return locations, err
	}
}

func fetcherOrNil(client *rezdy.Client) tourcache.Fetcher {
	if client == nil {
		return nil
	}
	return client
}

func newOrderNumber() string {
	return "ORD-" + strings.ToUpper(strings.Split(uuid.NewString(), "-")[0])
}

func intQuery(c *gin.Context, name string) (int, bool) {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func maxAge(ttl time.Duration) string {
	return strconv.Itoa(int(ttl.Seconds()))
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
