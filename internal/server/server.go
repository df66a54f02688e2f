package server

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	"edvora.com/lms/internal/middleware"
	"edvora.com/lms/pkg/cache"
	"edvora.com/lms/pkg/mailer"
	"edvora.com/lms/pkg/storage"

	courseHttp "edvora.com/lms/internal/modules/course/delivery/http"
	courseRepo "edvora.com/lms/internal/modules/course/repository"
	courseService "edvora.com/lms/internal/modules/course/service"

	notiHttp "edvora.com/lms/internal/modules/notification/delivery/http"
	notifRepo "edvora.com/lms/internal/modules/notification/repository"
	notifService "edvora.com/lms/internal/modules/notification/service"

	orderHttp "edvora.com/lms/internal/modules/order/delivery/http"
	orderRepo "edvora.com/lms/internal/modules/order/repository"
	orderService "edvora.com/lms/internal/modules/order/service"

	searchService "edvora.com/lms/internal/modules/search/service"

	userHttp "edvora.com/lms/internal/modules/user/delivery/http"
	userRepo "edvora.com/lms/internal/modules/user/repository"
	userService "edvora.com/lms/internal/modules/user/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/meilisearch/meilisearch-go"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

type Server struct {
	engine      *gin.Engine
	db          *gorm.DB
	redisClient *redis.Client
	cron        *cron.Cron
}

func NewServer(db *gorm.DB, redisClient *redis.Client) *Server {
	sessions := cache.NewStore(redisClient)

	imageStorage, err := storage.NewCloudinaryStorage()
	if err != nil {
		log.Fatalf("failed to initialize cloudinary storage: %v", err)
	}

	mail, err := mailer.NewSMTPMailer()
	if err != nil {
		log.Fatalf("failed to initialize mailer: %v", err)
	}

	// Initialize Meilisearch
	meiliHost := os.Getenv("MEILISEARCH_HOST")
	if meiliHost == "" {
		meiliHost = "http://localhost:7700"
	}
	if !strings.HasPrefix(meiliHost, "http") {
		meiliHost = "http://" + meiliHost + ":7700"
	}

	meiliClient := meilisearch.New(meiliHost, meilisearch.WithAPIKey(os.Getenv("MEILI_MASTER_KEY")))
	meiliSvc := searchService.NewMeiliSearchService(meiliClient)

	usersRepository := userRepo.NewUserRepository(db)
	userSvc := userService.NewService(usersRepository, sessions, imageStorage, mail)
	userHandler := userHttp.NewUserHandler(userSvc)

	// Notification Module
	notificationRepository := notifRepo.NewNotificationRepository(db)
	notificationSvc := notifService.NewNotificationService(notificationRepository, redisClient)
	notificationHandler := notiHttp.NewNotificationHandler(notificationSvc, redisClient)

	coursesRepository := courseRepo.NewCourseRepository(db)
	courseSvc := courseService.NewService(coursesRepository, sessions, imageStorage, mail, notificationSvc, meiliSvc)
	courseHandler := courseHttp.NewCourseHandler(courseSvc)

	ordersRepository := orderRepo.NewOrderRepository(db)
	orderSvc := orderService.NewService(ordersRepository, coursesRepository, usersRepository, sessions, mail, notificationSvc)
	orderHandler := orderHttp.NewOrderHandler(orderSvc)

	// Nightly cleanup of read notifications past the retention window.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("0 0 * * *", func() {
		deleted, err := notificationSvc.PruneRead(context.Background())
		if err != nil {
			log.Printf("notification cleanup failed: %v", err)
			return
		}
		log.Printf("notification cleanup removed %d read notifications", deleted)
	}); err != nil {
		log.Fatalf("failed to schedule notification cleanup: %v", err)
	}
	scheduler.Start()

	router := gin.New()

	setupCORS(router)

	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	authMiddleware := middleware.NewAuthMiddleware(sessions)

	api := router.Group("/api/v1")

	// Public routes (no auth required)
	{
		api.POST("/registration", userHandler.Register)
		api.POST("/activate-user", userHandler.Activate)
		api.POST("/login", userHandler.Login)
		api.POST("/social-auth", userHandler.SocialAuth)
		api.GET("/refresh", userHandler.Refresh)

		api.GET("/get-course/:id", courseHandler.GetCourse)
		api.GET("/get-courses", courseHandler.GetCourses)
	}

	// Protected routes (apply auth middleware explicitly)
	protected := api.Group("")
	protected.Use(authMiddleware.RequireAuth())
	{
		protected.GET("/logout", userHandler.Logout)
		protected.GET("/me", userHandler.Me)
		protected.PUT("/update-user-info", userHandler.UpdateInfo)
		protected.PUT("/update-user-password", userHandler.UpdatePassword)
		protected.PUT("/update-user-avatar", userHandler.UpdateAvatar)

		protected.GET("/get-course-content/:id", courseHandler.GetCourseContent)
		protected.PUT("/add-question", courseHandler.AddQuestion)
		protected.PUT("/add-answer", courseHandler.AddAnswer)
		protected.PUT("/add-review/:id", courseHandler.AddReview)

		protected.POST("/create-order", orderHandler.CreateOrder)

		// Admin routes
		adminGroup := protected.Group("")
		adminGroup.Use(authMiddleware.RequireAdmin())
		{
			adminGroup.GET("/get-users", userHandler.GetAllUsers)
			adminGroup.PUT("/update-user", userHandler.UpdateRole)

			adminGroup.POST("/create-course", courseHandler.CreateCourse)
			adminGroup.PUT("/edit-course/:id", courseHandler.EditCourse)
			adminGroup.GET("/get-all-courses", courseHandler.GetAllCourses)
			adminGroup.PUT("/add-reply", courseHandler.AddReviewReply)

			adminGroup.GET("/get-orders", orderHandler.GetAllOrders)

			adminGroup.GET("/get-all-notification", notificationHandler.GetNotifications)
			adminGroup.PUT("/update-notification/:id", notificationHandler.MarkAsRead)
			adminGroup.GET("/notifications/ws", notificationHandler.HandleWebSocket)
		}
	}

	return &Server{
		engine:      router,
		db:          db,
		redisClient: redisClient,
		cron:        scheduler,
	}
}

func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

func setupCORS(router *gin.Engine) {
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	var origins []string
	if allowedOrigins != "" {
		origins = strings.Split(allowedOrigins, ",")
	} else {
		origins = []string{"http://localhost:3000"}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
