package http

import (
	"time"

	"readearn/internal/http/handlers"
	"readearn/internal/http/middleware"
	"readearn/internal/ws"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouteConfig holds the limits applied by RegisterRoutes.
type RouteConfig struct {
	AllowedOrigin  string
	APIRateLimit   int
	APIRateWindow  time.Duration
	AuthRateLimit  int
	AuthRateWindow time.Duration
	// per session
	GiftRateLimit    int
	PublishRateLimit int
	ActionWindow     time.Duration
}

func (rc *RouteConfig) defaults() {
	if rc.APIRateLimit <= 0 {
		rc.APIRateLimit = 60
	}
	if rc.APIRateWindow <= 0 {
		rc.APIRateWindow = time.Minute
	}
	if rc.AuthRateLimit <= 0 {
		rc.AuthRateLimit = 5
	}
	if rc.AuthRateWindow <= 0 {
		rc.AuthRateWindow = time.Minute
	}
	if rc.GiftRateLimit <= 0 {
		rc.GiftRateLimit = 10
	}
	if rc.PublishRateLimit <= 0 {
		rc.PublishRateLimit = 5
	}
	if rc.ActionWindow <= 0 {
		rc.ActionWindow = time.Minute
	}
}

// NewEngine builds the gin engine with the common middleware.
func NewEngine(allowedOrigin string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.SessionHeader, middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if allowedOrigin != "" {
		corsCfg.AllowOrigins = []string{allowedOrigin}
	} else {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	}
	r.Use(cors.New(corsCfg))
	return r
}

func RegisterRoutes(r *gin.Engine, h *handlers.Handler, health *handlers.HealthHandler, hub *ws.Hub, rc RouteConfig) {
	rc.defaults()

	// Health checks (no rate limiting)
	r.GET("/health", health.Health)
	r.GET("/healthz", health.Liveness)
	r.GET("/readyz", health.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// session events
	r.GET("/ws", h.WS(hub))

	v1 := r.Group("/api/v1")
	v1.Use(middleware.RedisRateLimit(rc.APIRateLimit, rc.APIRateWindow))

	v1.POST("/auth/login", middleware.RedisRateLimit(rc.AuthRateLimit, rc.AuthRateWindow), h.Login)

	api := v1.Group("")
	api.Use(middleware.Session())
	{
		api.POST("/auth/logout", h.Logout)
		api.GET("/me", h.Me)
		api.GET("/me/articles", h.MyArticles)
		api.GET("/me/activity", h.MyActivity)

		// Articles
		api.GET("/articles", h.ListArticles)
		api.POST("/articles", h.CreateDraft)
		api.GET("/articles/:slug", h.GetArticle)
		api.POST("/articles/:slug/like", h.ToggleLike)
		api.POST("/articles/:slug/bookmark", h.ToggleBookmark)

		// Reading sessions
		giftRL := middleware.ActionRateLimit("gift", rc.GiftRateLimit, rc.ActionWindow)
		reading := api.Group("/reading")
		{
			reading.GET("/:slug", h.ReadingState)
			reading.DELETE("/:slug", h.CloseReading)
			reading.POST("/:slug/start", h.StartReading)
			reading.POST("/:slug/collect", h.CollectReward)
			reading.POST("/:slug/gift", giftRL, h.GiftPoints)
			reading.POST("/:slug/cancel", h.CancelReading)
		}

		// Wallet
		wallet := api.Group("/wallet")
		{
			wallet.GET("", h.GetWallet)
			wallet.GET("/transactions", h.Transactions)
			wallet.POST("/convert", h.ConvertPoints)
			wallet.POST("/deposit", h.RequestDeposit)
			wallet.POST("/withdraw", h.RequestWithdrawal)
			wallet.GET("/requests", h.PaymentRequests)
		}

		// Publishing
		publishRL := middleware.ActionRateLimit("publish", rc.PublishRateLimit, rc.ActionWindow)
		api.GET("/publish/balance", h.PublishBalance)
		api.POST("/publish/:id", publishRL, h.RequestPublish)

		// Moderation
		admin := api.Group("/admin")
		{
			admin.GET("/articles/pending", h.PendingArticles)
			admin.POST("/articles/:id/moderate", h.ModerateArticle)
			admin.GET("/payments/pending", h.PendingPayments)
			admin.POST("/payments/:id/approve", h.ApprovePayment)
			admin.POST("/payments/:id/reject", h.RejectPayment)
		}
	}
}
