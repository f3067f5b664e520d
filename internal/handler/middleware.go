package handler

import (
	"log"
	"strconv"
	"time"

	"casinoledger/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	actorHeader     = "X-User-ID"
	actorContextKey = "actor_id"
)

// LoggerMiddleware 日志中间件
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if query != "" {
			path = path + "?" + query
		}

		log.Printf("[HTTP] %d | %13v | %15s | %-7s %s | actor=%d",
			status,
			latency,
			c.ClientIP(),
			c.Request.Method,
			path,
			ActorID(c),
		)
	}
}

// RecoveryMiddleware 恢复中间件，防止 panic 导致服务崩溃
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("[PANIC] %v", err)
				c.AbortWithStatusJSON(500, gin.H{
					"code":    response.CodeServerError,
					"message": "服务器内部错误",
				})
			}
		}()
		c.Next()
	}
}

// CORSMiddleware 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-Request-ID, "+actorHeader)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// ActorMiddleware 从 X-User-ID 读取操作员 ID
//
// 鉴权由网关完成，这里只做解析：缺失或不是正整数时拒绝请求
func ActorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID, err := strconv.ParseInt(c.GetHeader(actorHeader), 10, 64)
		if err != nil || actorID <= 0 {
			response.Error(c, response.CodeUnauthorized, "缺少或非法的 "+actorHeader)
			c.Abort()
			return
		}
		c.Set(actorContextKey, actorID)
		c.Next()
	}
}

// ActorID 当前请求的操作员，未经过 ActorMiddleware 时为 0
func ActorID(c *gin.Context) int64 {
	return c.GetInt64(actorContextKey)
}
