package server

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/vmquan2200/edufinai/internal/clock"
	"github.com/vmquan2200/edufinai/internal/config"
	"github.com/vmquan2200/edufinai/internal/middleware"
	"github.com/vmquan2200/edufinai/internal/scheduler"

	challengeHttp "github.com/vmquan2200/edufinai/internal/modules/challenge/delivery/http"
	challengeRepo "github.com/vmquan2200/edufinai/internal/modules/challenge/repository"
	challengeService "github.com/vmquan2200/edufinai/internal/modules/challenge/service"

	badgeHttp "github.com/vmquan2200/edufinai/internal/modules/badge/delivery/http"
	badgeRepo "github.com/vmquan2200/edufinai/internal/modules/badge/repository"
	badgeService "github.com/vmquan2200/edufinai/internal/modules/badge/service"

	leaderboardHttp "github.com/vmquan2200/edufinai/internal/modules/leaderboard/delivery/http"
	leaderboardRepo "github.com/vmquan2200/edufinai/internal/modules/leaderboard/repository"
	leaderboardService "github.com/vmquan2200/edufinai/internal/modules/leaderboard/service"

	lessonRepo "github.com/vmquan2200/edufinai/internal/modules/lessonscore/repository"
	lessonService "github.com/vmquan2200/edufinai/internal/modules/lessonscore/service"

	notifHttp "github.com/vmquan2200/edufinai/internal/modules/notification/delivery/http"
	notifRepo "github.com/vmquan2200/edufinai/internal/modules/notification/repository"
	notifService "github.com/vmquan2200/edufinai/internal/modules/notification/service"

	rewardHttp "github.com/vmquan2200/edufinai/internal/modules/reward/delivery/http"
	rewardRepo "github.com/vmquan2200/edufinai/internal/modules/reward/repository"
	rewardService "github.com/vmquan2200/edufinai/internal/modules/reward/service"

	userRepo "github.com/vmquan2200/edufinai/internal/modules/user/repository"
)

type Server struct {
	engine      *gin.Engine
	db          *gorm.DB
	redisClient *redis.Client
	scheduler   *scheduler.Scheduler
}

func NewServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) *Server {
	clk := clock.System()

	users := userRepo.NewUserRepository(db)

	// Notification Module
	notificationRepository := notifRepo.NewNotificationRepository(db)
	notificationSvc := notifService.NewNotificationService(notificationRepository, redisClient, cfg.NotifyTimeout)
	notificationHandler := notifHttp.NewNotificationHandler(notificationSvc)

	// Leaderboard Module
	leaderboardIndex := leaderboardRepo.NewRedisIndex(redisClient)
	leaderboardSvc := leaderboardService.NewLeaderboardService(leaderboardIndex, users, clk, cfg.ResetTimezone)
	leaderboardHandler := leaderboardHttp.NewLeaderboardHandler(leaderboardSvc)

	// Reward Module
	lessonScoreRepository := lessonRepo.NewLessonScoreRepository(db)
	lessonScoreSvc := lessonService.NewLessonScoreService(lessonScoreRepository)

	rewardRepository := rewardRepo.NewRewardRepository(db)
	rewardSvc := rewardService.NewRewardService(rewardRepository, lessonScoreSvc, leaderboardSvc)
	rewardHandler := rewardHttp.NewRewardHandler(rewardSvc)

	// Badge Module
	badgeRepository := badgeRepo.NewBadgeRepository(db)
	badgeSvc := badgeService.NewBadgeService(badgeRepository, clk)
	badgeHandler := badgeHttp.NewBadgeHandler(badgeSvc)

	// Challenge Module
	challenges := challengeRepo.NewChallengeRepository(db)
	progress := challengeRepo.NewProgressRepository(db)

	tracker := challengeService.NewProgressTracker(
		challenges, progress, rewardSvc, badgeSvc, notificationSvc, clk, cfg.ResetTimezone,
	)
	challengeSvc := challengeService.NewChallengeService(challenges)
	challengeHandler := challengeHttp.NewChallengeHandler(tracker, challengeSvc)

	// Scheduled challenge resets
	resetSvc := scheduler.NewResetService(progress, redisClient, clk, cfg.ResetTimezone)
	resetScheduler := scheduler.NewScheduler(resetSvc, cfg.ResetTimezone)
	resetScheduler.Start()

	router := gin.New()

	setupCORS(router, cfg.AllowedOrigins)

	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	authMiddleware := middleware.NewAuthMiddleware(users, cfg.JWTSecret)

	api := router.Group("/api")

	protected := api.Group("")
	protected.Use(authMiddleware.RequireAuth())
	{
		// Admin routes
		adminGroup := protected.Group("/admin")
		adminGroup.Use(authMiddleware.RequireAdmin())
		{
			adminGroup.POST("/challenges", challengeHandler.CreateChallenge)
			adminGroup.GET("/challenges", challengeHandler.ListChallenges)
			adminGroup.PUT("/challenges/:id", challengeHandler.UpdateChallenge)
			adminGroup.PUT("/challenges/:id/approval", challengeHandler.SetApproval)
		}

		// Event ingestion
		protected.POST("/events", challengeHandler.PostEvent)

		// Reward routes
		protected.POST("/rewards", rewardHandler.GrantReward)
		protected.GET("/rewards/me", rewardHandler.GetMyRewards)
		protected.GET("/rewards/summary", rewardHandler.GetSummary)

		// Badge routes
		protected.GET("/badges/me", badgeHandler.GetMyBadges)

		// Leaderboard routes
		protected.GET("/leaderboard", leaderboardHandler.GetTop)
		protected.GET("/leaderboard/me", leaderboardHandler.GetMyRank)

		// Challenge progress routes
		protected.GET("/challenges/progress", challengeHandler.GetActiveProgress)
		protected.GET("/challenges/progress/completed", challengeHandler.GetCompletedProgress)
		protected.GET("/challenges/progress/summary", challengeHandler.GetSummary)
		protected.GET("/challenges/:id/progress", challengeHandler.GetProgress)

		// Notification routes
		protected.GET("/notifications", notificationHandler.GetNotifications)
		protected.GET("/notifications/unread-count", notificationHandler.GetUnreadCount)
		protected.PUT("/notifications/:id/read", notificationHandler.MarkAsRead)
	}

	return &Server{
		engine:      router,
		db:          db,
		redisClient: redisClient,
		scheduler:   resetScheduler,
	}
}

func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

// Stop halts the background reset scheduler.
func (s *Server) Stop() {
	s.scheduler.Stop()
}

func setupCORS(router *gin.Engine, allowedOrigins string) {
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
