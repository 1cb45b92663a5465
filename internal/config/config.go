package config

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/petrealm/pet-realm/internal/models"
)

type Config struct {
	PORT               string
	DB_HOST            string
	DB_PORT            string
	DB_USER            string
	DB_PASSWORD        string
	DB_NAME            string
	JWT_SECRET         string
	REFRESH_SECRET     string
	KAFKA_ADDRESS      string
	REDIS_ADDR         string
	ES_URL             string
	ES_USER            string
	ES_PASSWORD        string
	AWS_REGION         string
	S3_RECEIPTS_BUCKET string
	S3_ASSETS_BUCKET   string
	S3_PUBLIC_BASE_URL string
	LOG_LEVEL          string
	APP_BASE_URL       string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	config := &Config{
		PORT:               getDefault("PORT", "8080"),
		DB_HOST:            os.Getenv("DB_HOST"),
		DB_PORT:            os.Getenv("DB_PORT"),
		DB_USER:            os.Getenv("DB_USER"),
		DB_PASSWORD:        os.Getenv("DB_PASSWORD"),
		DB_NAME:            os.Getenv("DB_NAME"),
		JWT_SECRET:         os.Getenv("JWT_SECRET"),
		REFRESH_SECRET:     os.Getenv("REFRESH_SECRET"),
		KAFKA_ADDRESS:      os.Getenv("KAFKA_ADDRESS"),
		REDIS_ADDR:         os.Getenv("REDIS_ADDR"),
		ES_URL:             os.Getenv("ES_URL"),
		ES_USER:            os.Getenv("ES_USER"),
		ES_PASSWORD:        os.Getenv("ES_PASSWORD"),
		AWS_REGION:         getDefault("AWS_REGION", "ap-south-1"),
		S3_RECEIPTS_BUCKET: os.Getenv("S3_RECEIPTS_BUCKET"),
		S3_ASSETS_BUCKET:   os.Getenv("S3_ASSETS_BUCKET"),
		S3_PUBLIC_BASE_URL: os.Getenv("S3_PUBLIC_BASE_URL"),
		LOG_LEVEL:          getDefault("LOG_LEVEL", "info"),
		APP_BASE_URL:       getDefault("APP_BASE_URL", "http://localhost:3000"),
	}

	return config, nil
}

func getDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func InitDB() (*gorm.DB, error) {
	configuration, _ := LoadConfig()

	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		configuration.DB_USER,
		configuration.DB_PASSWORD,
		configuration.DB_HOST,
		configuration.DB_PORT,
		configuration.DB_NAME,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.AuthToken{},
		&models.Shop{},
		&models.Product{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
		&models.Contact{},
	)
}
