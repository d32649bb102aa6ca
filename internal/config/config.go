package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	JWTSecret   string
	MongoURI    string
	DBName      string
	SkipAuth    bool
	Environment string
	AppId       string

	// NATS event bus; empty disables bus integration.
	NatsURL string

	// Postgres warehouse DSN for audit archiving; empty disables it.
	WarehouseDSN string

	// LLM validator endpoint; the rules validator substitutes when unset.
	LLMValidatorURL string
	LLMAPIKey       string

	// Approval task window used when no SLA comes out of the decision tables.
	DefaultSLA time.Duration

	// Cron expression for the escalation/timeout sweep.
	EscalationSweepCron string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	} else {
		log.Println("Loaded .env file successfully")
	}

	slaHours, err := strconv.Atoi(getEnv("DEFAULT_SLA_HOURS", "48"))
	if err != nil || slaHours <= 0 {
		slaHours = 48
	}

	return &Config{
		Port:                getEnv("PORT", "8080"),
		JWTSecret:           getEnv("JWT_SECRET", "secret"),
		MongoURI:            getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:              getEnv("DB_NAME", "bank-approvals"),
		SkipAuth:            getEnv("SKIP_AUTH", "false") == "true",
		Environment:         getEnv("ENVIRONMENT", "development"),
		AppId:               getEnv("APP_ID", "bank-approvals"),
		NatsURL:             getEnv("NATS_URL", ""),
		WarehouseDSN:        getEnv("WAREHOUSE_DSN", ""),
		LLMValidatorURL:     getEnv("LLM_VALIDATOR_URL", ""),
		LLMAPIKey:           getEnv("LLM_API_KEY", ""),
		DefaultSLA:          time.Duration(slaHours) * time.Hour,
		EscalationSweepCron: getEnv("ESCALATION_SWEEP_CRON", "@every 1m"),
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
