package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"otp-auth/internal/service"
)

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(logger *zap.Logger, authH *AuthHandler, jwtSvc *service.JWTService) *gin.Engine {
	r := gin.New()

	// Cada request se aísla con Recovery: un pánico responde 500 sin
	// tumbar el proceso.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery())

	r.GET("/", authH.Health)
	r.POST("/login", authH.Login)
	r.POST("/verify-otp", authH.VerifyOTP)

	auth := r.Group("/auth")
	auth.POST("/refresh", authH.RefreshToken)
	auth.POST("/logout", authH.Logout)

	r.GET("/me", JWTAuthMiddleware(jwtSvc), authH.Me)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
