package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	Port        string
	Environment string

	// Database
	DBDriver   string // postgres or sqlite
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPath     string // sqlite file path

	// Brokerage API
	KISBaseURL   string
	KISAppKey    string
	KISAppSecret string

	// Instruments to collect, split the same way the brokerage accounts are
	DomesticTickers []string
	OverseasTickers []string

	// Scheduling
	RunMode             string // collect or analyze
	SyncIntervalMin     int
	AnalysisIntervalMin int
	FetchDelayMS        int

	// Auth
	JWTSecret     string
	AdminUsername string
	AdminPassword string

	// Optional MongoDB mirror
	MongoURI string
}

// LoadConfig loads environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		DBDriver:   getEnv("DB_DRIVER", "postgres"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "stock_collector"),
		DBPath:     getEnv("DB_PATH", "data/stock_collector.db"),

		KISBaseURL:   getEnv("KIS_BASE_URL", "https://openapi.koreainvestment.com:9443"),
		KISAppKey:    getEnv("KIS_APP_KEY", ""),
		KISAppSecret: getEnv("KIS_APP_SECRET", ""),

		DomesticTickers: splitTickers(getEnv("DOMESTIC_TICKERS", "")),
		OverseasTickers: splitTickers(getEnv("OVERSEAS_TICKERS", "")),

		RunMode:             getEnv("RUN_MODE", "analyze"),
		SyncIntervalMin:     getEnvInt("SYNC_INTERVAL_MIN", 1),
		AnalysisIntervalMin: getEnvInt("ANALYSIS_INTERVAL_MIN", 5),
		FetchDelayMS:        getEnvInt("FETCH_DELAY_MS", 500),

		JWTSecret:     getEnv("JWT_SECRET", "your-secret-key"),
		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		MongoURI: getEnv("MONGODB_URI", ""),
	}

	return config, nil
}

// Tickers returns the combined domestic and overseas ticker list
func (c *Config) Tickers() []string {
	tickers := make([]string, 0, len(c.DomesticTickers)+len(c.OverseasTickers))
	tickers = append(tickers, c.DomesticTickers...)
	tickers = append(tickers, c.OverseasTickers...)
	return tickers
}

// InitDB initializes the database connection
func InitDB(cfg *Config) (*gorm.DB, error) {
	var logLevel logger.LogLevel
	if cfg.Environment == "production" {
		logLevel = logger.Error
	} else {
		logLevel = logger.Warn
	}
	gormCfg := &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	}

	var db *gorm.DB
	var err error

	switch cfg.DBDriver {
	case "sqlite":
		log.Printf("Connecting to sqlite database: path=%s", cfg.DBPath)
		db, err = gorm.Open(sqlite.Open(cfg.DBPath), gormCfg)
	default:
		log.Printf("Connecting to database: host=%s port=%s user=%s dbname=%s",
			maskHost(cfg.DBHost), cfg.DBPort, cfg.DBUser, cfg.DBName)

		dsn := fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort,
		)
		db, err = gorm.Open(postgres.Open(dsn), gormCfg)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection with ping
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	log.Println("Database connection verified successfully")
	return db, nil
}

// maskHost masks host for logging, preserving domain structure
func maskHost(host string) string {
	if len(host) <= 3 {
		return "***"
	}
	if len(host) <= 15 {
		return host[:3] + "***"
	}
	return host[:8] + "***" + host[len(host)-10:]
}

func splitTickers(raw string) []string {
	if raw == "" {
		return nil
	}
	var tickers []string
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			tickers = append(tickers, t)
		}
	}
	return tickers
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid value for %s: %q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}
