package http

import (
	"github.com/gin-gonic/gin"

	appsvc "gemmachat/internal/app"
	"gemmachat/internal/bootstrap"
	"gemmachat/internal/transport/http/handler"
	"gemmachat/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/health", healthHandler.Check)

	authService := app.AuthService
	chatService := appsvc.NewChatService(app.ModelClient, app.UsagePublisher)

	authHandler := handler.NewAuthHandler(authService)
	chatHandler := handler.NewChatHandler(chatService)
	employeeHandler := handler.NewEmployeeHandler(app.EmployeeClient)
	usageHandler := handler.NewUsageHandler(app.UsageCounter)

	sessionAuth := middleware.SessionAuth(authService)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/logout", sessionAuth, authHandler.Logout)
	authGroup.GET("/me", sessionAuth, authHandler.Me)

	v1.POST("/chat", sessionAuth, chatHandler.Chat)
	v1.GET("/search", sessionAuth, employeeHandler.Search)
	v1.GET("/usage", sessionAuth, usageHandler.Today)

	return router
}
