package routes

import (
	"net/http"
	"os"
	"strings"

	"callalert-backend/config"
	"callalert-backend/controllers"
	"callalert-backend/services"
	"callalert-backend/utils"
	"callalert-backend/ws"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func SetupRouter(db *gorm.DB, hub *ws.Hub, creds *services.CredentialService, calendar *services.CalendarService) *gin.Engine {
	r := gin.Default()

	origins := []string{"http://localhost:3000"}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		origins = strings.Split(env, ",")
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	r.Use(config.RequestLogger())

	authController := controllers.NewAuthController(db, creds)
	eventController := controllers.NewEventController(db, creds, calendar)
	callbackController := controllers.NewCallbackController(hub)

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Server is up and running")
	})

	auth := r.Group("/auth")
	{
		auth.POST("/register", authController.Register)
		auth.POST("/login", authController.Login)
		auth.GET("/google", authController.GoogleAuth)
		auth.GET("/google/callback", authController.GoogleCallback)
		auth.GET("/me", utils.AuthMiddleware(), authController.Me)
	}

	events := r.Group("/events")
	events.Use(utils.AuthMiddleware())
	{
		events.POST("", eventController.CreateEvent)
		events.GET("", eventController.ListEvents)
	}

	// Provider-initiated webhook; correlated to observers by phone number.
	r.POST("/twilio/status-callback", callbackController.TwilioStatusCallback)

	// Observer connections for live reminder results.
	r.GET("/ws", hub.ServeWS)

	return r
}
