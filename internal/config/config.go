package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	AppPort    string
	AppEnv     string

	JWTSecret string

	GatewayBaseURL   string
	GatewayKeyID     string
	GatewayKeySecret string
	// VerificationMode selects the payment verification policy:
	// "strict" (default) or "bypass" for deterministic test wiring.
	VerificationMode string

	InvoiceDir    string
	FileURLSecret string
	FileURLTTL    time.Duration

	ReconcileInterval time.Duration
	ReconcileStaleAge time.Duration
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBPort:     os.Getenv("DB_PORT"),
		AppPort:    os.Getenv("APP_PORT"),
		AppEnv:     os.Getenv("APP_ENV"),

		JWTSecret: os.Getenv("SECRET_KEY"),

		GatewayBaseURL:   getEnv("GATEWAY_BASE_URL", "https://api.razorpay.com/v1"),
		GatewayKeyID:     os.Getenv("RAZORPAY_KEY_ID"),
		GatewayKeySecret: os.Getenv("RAZORPAY_KEY_SECRET"),
		VerificationMode: getEnv("PAYMENT_VERIFICATION", "strict"),

		InvoiceDir:    getEnv("INVOICE_DIR", "./data/invoices"),
		FileURLSecret: os.Getenv("FILE_URL_SECRET"),
		FileURLTTL:    getDuration("FILE_URL_TTL", 15*time.Minute),

		ReconcileInterval: getDuration("RECONCILE_INTERVAL", 5*time.Minute),
		ReconcileStaleAge: getDuration("RECONCILE_STALE_AGE", 30*time.Minute),
	}

	if cfg.DBHost == "" {
		log.Fatal("Environment variables not loaded properly")
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
