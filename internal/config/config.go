package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv         string
	Port           string
	AllowedOrigins string

	DatabaseURL string
	RedisURL    string

	AccessTokenSecret     string
	RefreshTokenSecret    string
	ActivationTokenSecret string
	AccessTokenTTL        time.Duration
	RefreshTokenTTL       time.Duration

	SMTPHost     string
	SMTPPort     string
	SMTPMail     string
	SMTPPassword string

	MeiliSearchHost string
	MeiliMasterKey  string

	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
}

func Load() (*Config, error) {
	// Don't fail if .env doesn't exist (might be prod env vars)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "http://localhost:3000"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		AccessTokenSecret:     getEnv("ACCESS_TOKEN_SECRET", "change-me"),
		RefreshTokenSecret:    getEnv("REFRESH_TOKEN_SECRET", "change-me-too"),
		ActivationTokenSecret: getEnv("ACTIVATION_TOKEN_SECRET", "change-me-as-well"),
		AccessTokenTTL:        5 * time.Minute,
		RefreshTokenTTL:       7 * 24 * time.Hour,

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getEnv("SMTP_PORT", "587"),
		SMTPMail:     os.Getenv("SMTP_MAIL"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),

		MeiliSearchHost: getEnv("MEILISEARCH_HOST", "http://localhost:7700"),
		MeiliMasterKey:  os.Getenv("MEILI_MASTER_KEY"),

		CloudinaryCloudName:    os.Getenv("CLOUDINARY_CLOUD_NAME"),
		CloudinaryAPIKey:       os.Getenv("CLOUDINARY_API_KEY"),
		CloudinaryAPISecret:    os.Getenv("CLOUDINARY_API_SECRET"),
		CloudinaryUploadFolder: getEnv("CLOUDINARY_UPLOAD_FOLDER", "edvora"),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
