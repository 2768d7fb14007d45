package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/md-rashed-zaman/bayscheduler/libs/config"
	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/consumer"
)

type settings struct {
	Service     string
	LogLevel    string
	Port        string
	GRPCPort    string
	DatabaseURL string

	SlotStep      time.Duration
	MaxWorkers    int
	SearchBudget  time.Duration
	MinConfidence float64
	Location      *time.Location

	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	ConversationTTL time.Duration

	KafkaBrokers string
	KafkaGroupID string
	StockTopic   string

	RateLimitPerMinute int
	RateLimitFailOpen  bool
	RequestTimeout     time.Duration
	BodyLimit          int64
	CORSOrigins        []string
}

func loadSettings() (settings, error) {
	var s settings
	var err error

	s.Service = config.String("SERVICE_NAME", "scheduling-service")
	s.LogLevel = config.String("LOG_LEVEL", "info")
	if s.Port, err = config.Port("PORT", "8085"); err != nil {
		return s, err
	}
	if s.GRPCPort, err = config.Port("GRPC_PORT", "9095"); err != nil {
		return s, err
	}
	if s.DatabaseURL, err = config.RequiredString("DATABASE_URL"); err != nil {
		return s, err
	}

	if s.SlotStep, err = config.Minutes("SLOT_STEP_MINUTES", 30*time.Minute); err != nil {
		return s, err
	}
	if s.MaxWorkers, err = config.PositiveInt("SEARCH_MAX_WORKERS", 8); err != nil {
		return s, err
	}
	if s.SearchBudget, err = config.Millis("SEARCH_BUDGET_MS", 3*time.Second); err != nil {
		return s, err
	}
	if s.MinConfidence, err = config.Ratio("SELECTION_MIN_CONFIDENCE", 0.8); err != nil {
		return s, err
	}
	tz := config.String("DEFAULT_TIMEZONE", "Asia/Ho_Chi_Minh")
	if s.Location, err = time.LoadLocation(tz); err != nil {
		return s, fmt.Errorf("DEFAULT_TIMEZONE: %w", err)
	}

	s.RedisAddr = config.String("REDIS_ADDR", "")
	s.RedisPassword = config.String("REDIS_PASSWORD", "")
	raw := config.String("REDIS_DB", "0")
	if s.RedisDB, err = strconv.Atoi(raw); err != nil || s.RedisDB < 0 {
		return s, fmt.Errorf("REDIS_DB must be a non-negative integer (got %q)", raw)
	}
	if s.ConversationTTL, err = config.Minutes("CONVERSATION_TTL_MINUTES", 30*time.Minute); err != nil {
		return s, err
	}

	s.KafkaBrokers = config.String("KAFKA_BROKERS", "")
	s.KafkaGroupID = config.String("KAFKA_GROUP_ID", s.Service)
	s.StockTopic = config.String("KAFKA_STOCK_TOPIC", consumer.TopicStockUpdated)

	if s.RateLimitPerMinute, err = config.PositiveInt("RATE_LIMIT_PER_MINUTE", 120); err != nil {
		return s, err
	}
	s.RateLimitFailOpen = config.Bool("RATE_LIMIT_FAIL_OPEN", true)
	seconds, err := config.PositiveInt("REQUEST_TIMEOUT_SECONDS", 10)
	if err != nil {
		return s, err
	}
	s.RequestTimeout = time.Duration(seconds) * time.Second
	limit, err := config.PositiveInt("REQUEST_BODY_LIMIT_BYTES", 1<<20)
	if err != nil {
		return s, err
	}
	s.BodyLimit = int64(limit)
	s.CORSOrigins = config.List("CORS_ALLOWED_ORIGINS")
	return s, nil
}
