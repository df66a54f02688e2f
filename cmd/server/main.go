package main

import (
	"log"

	"edvora.com/lms/internal/config"
	"edvora.com/lms/internal/entity"
	"edvora.com/lms/internal/server"
	"edvora.com/lms/pkg/cache"
	"edvora.com/lms/pkg/database"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db := database.Connect()
	if err := migrate(db); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	if cfg.AppEnv == "development" {
		if err := seedAdminUser(db); err != nil {
			log.Fatalf("failed to seed admin user: %v", err)
		}
	}

	redisClient := cache.NewClient()
	if redisClient == nil {
		log.Println("redis unavailable, sessions and live notifications disabled")
	}

	srv := server.NewServer(db, redisClient)

	if err := srv.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server exited with error: %v", err)
	}
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&entity.User{},
		&entity.Course{},
		&entity.Order{},
		&entity.Notification{},
	)
}

func seedAdminUser(db *gorm.DB) error {
	var count int64
	if err := db.Model(&entity.User{}).
		Where("email = ?", "admin@edvora.com").
		Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Println("Admin user already exists, skipping seed")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := entity.User{
		Name:         "Administrator",
		Email:        "admin@edvora.com",
		PasswordHash: string(hash),
		Role:         entity.RoleAdmin,
		IsVerified:   true,
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}

	log.Println("Seeded development admin user admin@edvora.com")
	return nil
}
