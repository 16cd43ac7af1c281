package main

import (
	"log"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/vmquan2200/edufinai/internal/config"
	"github.com/vmquan2200/edufinai/internal/entity"
	"github.com/vmquan2200/edufinai/internal/server"
	"github.com/vmquan2200/edufinai/pkg/database"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	db := database.Connect()
	if err := migrate(db); err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	if err := seedBadges(db); err != nil {
		log.Fatalf("failed to seed badges: %v", err)
	}

	if cfg.AppEnv == "development" {
		if err := seedAdminUser(db); err != nil {
			log.Fatalf("failed to seed admin user: %v", err)
		}
		if err := seedSampleChallenges(db); err != nil {
			log.Fatalf("failed to seed sample challenges: %v", err)
		}
	}

	redisClient := database.ConnectRedis(cfg.RedisURL)

	srv := server.NewServer(cfg, db, redisClient)
	defer srv.Stop()

	if err := srv.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server exited with error: %v", err)
	}
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&entity.User{},
		&entity.Challenge{},
		&entity.ChallengeApprovalLog{},
		&entity.UserChallengeProgress{},
		&entity.RewardRecord{},
		&entity.UserScoreSummary{},
		&entity.LessonScoreState{},
		&entity.AttemptRecord{},
		&entity.BadgeDefinition{},
		&entity.BadgeAward{},
		&entity.Notification{},
	)
}

func seedBadges(db *gorm.DB) error {
	defaultBadges := []entity.BadgeDefinition{
		{Code: "quiz_master", Name: "Quiz Master", Description: "Completed a quiz challenge"},
		{Code: "saver_starter", Name: "Saver Starter", Description: "Completed a first savings goal"},
		{Code: "streak_keeper", Name: "Streak Keeper", Description: "Kept a daily learning streak alive"},
		{Code: "perfect_score", Name: "Perfect Score", Description: "Answered every question correctly"},
	}

	for _, badge := range defaultBadges {
		var count int64
		if err := db.Model(&entity.BadgeDefinition{}).
			Where("code = ?", badge.Code).
			Count(&count).Error; err != nil {
			return err
		}

		if count == 0 {
			if err := db.Create(&badge).Error; err != nil {
				return err
			}
		}
	}

	return nil
}

func seedAdminUser(db *gorm.DB) error {
	var count int64
	if err := db.Model(&entity.User{}).
		Where("email = ?", "admin@edufinai.local").
		Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Println("Admin user already exists, skipping seed")
		return nil
	}

	password := "admin123"
	hashedPasswordBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	adminUser := entity.User{
		Username:     "admin",
		Email:        "admin@edufinai.local",
		PasswordHash: string(hashedPasswordBytes),
		Role:         entity.RoleAdmin,
	}

	return db.Create(&adminUser).Error
}

func seedSampleChallenges(db *gorm.DB) error {
	var count int64
	if err := db.Model(&entity.Challenge{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	three := 3
	five := 5
	samples := []entity.Challenge{
		{
			Title:           "Daily Quiz",
			Description:     "Finish a quiz today",
			Type:            entity.ChallengeTypeQuiz,
			Scope:           entity.ScopeDaily,
			RuleSpec:        `{"event_type":"quiz_completed"}`,
			RewardScore:     20,
			RewardBadgeCode: "quiz_master",
			ApprovalStatus:  entity.ApprovalApproved,
		},
		{
			Title:             "Weekly Scholar",
			Description:       "Finish three lessons this week",
			Type:              entity.ChallengeTypeGoal,
			Scope:             entity.ScopeWeekly,
			TargetValue:       &three,
			RuleSpec:          `{"event_type":"lesson_completed"}`,
			RewardScore:       50,
			MaxProgressPerDay: 1,
			ApprovalStatus:    entity.ApprovalApproved,
		},
		{
			Title:           "Savings Streak",
			Description:     "Record five savings deposits this month",
			Type:            entity.ChallengeTypeGoal,
			Scope:           entity.ScopeMonthly,
			TargetValue:     &five,
			RuleSpec:        `{"event_type":"savings_deposit"}`,
			RewardScore:     100,
			RewardBadgeCode: "saver_starter",
			ApprovalStatus:  entity.ApprovalApproved,
		},
	}

	for _, challenge := range samples {
		challenge.Active = true
		if err := db.Create(&challenge).Error; err != nil {
			return err
		}
	}

	return nil
}
