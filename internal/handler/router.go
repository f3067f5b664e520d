package handler

import (
	"casinoledger/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *gin.Engine {
	r := gin.New()

	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	h := NewHandler(db, rdb, cfg)

	api := r.Group("/api/v1")
	api.Use(ActorMiddleware())
	{
		session := api.Group("/session")
		{
			session.POST("/open", h.OpenSession)
			session.GET("/detail", h.GetSession)
			session.GET("/seats", h.ListSeats)
			session.POST("/close", h.CloseSession)
			session.POST("/seat/name", h.SetPlayerName)
		}

		purchase := api.Group("/purchase")
		{
			purchase.POST("/create", h.CreatePurchase)
			purchase.GET("/list", h.ListPurchases)
		}

		credit := api.Group("/credit")
		{
			credit.GET("/seat", h.GetSeatCredit)
			credit.POST("/close", h.CloseCredit)
		}

		adjustment := api.Group("/adjustment")
		{
			adjustment.POST("/create", h.CreateAdjustment)
			adjustment.GET("/detail", h.GetAdjustment)
			adjustment.GET("/list", h.ListAdjustments)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
