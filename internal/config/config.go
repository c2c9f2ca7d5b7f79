package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ccc-cruise/service-promo/internal/domain/capacity"
	"github.com/ccc-cruise/service-promo/internal/domain/promo"
	"github.com/spf13/viper"
)

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN builds the GORM/pgx connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// URL builds the migration connection URL.
func (c DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// KafkaConfig holds Kafka broker settings.
type KafkaConfig struct {
	Brokers     []string
	GroupPrefix string
}

// JWTConfig holds admin token settings.
type JWTConfig struct {
	Secret string
}

// ServiceConfig holds all configuration for the promo service.
type ServiceConfig struct {
	Port         string
	AppEnv       string
	DBConfig     DatabaseConfig
	KafkaConfig  KafkaConfig
	JWTConfig    JWTConfig
	RedisAddr    string
	RedisDB      int
	CapacityCaps []capacity.Counter
}

// Load reads configuration from environment variables and returns a
// ServiceConfig. Every key has a development-friendly default except the
// JWT secret outside development.
func Load() (*ServiceConfig, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVICE_PORT", "8086")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "promo")
	v.SetDefault("DB_PASSWORD", "promo")
	v.SetDefault("DB_NAME", "promo")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_GROUP_PREFIX", "ccc-cruise.")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("PROMO_CAPS", "")

	appEnv := v.GetString("APP_ENV")
	secret := v.GetString("JWT_SECRET")
	if secret == "" {
		if appEnv != "development" {
			return nil, fmt.Errorf("JWT_SECRET is required outside development")
		}
		secret = "dev-secret"
	}

	caps, err := parseCaps(v.GetString("PROMO_CAPS"))
	if err != nil {
		return nil, err
	}

	return &ServiceConfig{
		Port:   ":" + strings.TrimPrefix(v.GetString("SERVICE_PORT"), ":"),
		AppEnv: appEnv,
		DBConfig: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		KafkaConfig: KafkaConfig{
			Brokers:     strings.Split(v.GetString("KAFKA_BROKERS"), ","),
			GroupPrefix: v.GetString("KAFKA_GROUP_PREFIX"),
		},
		JWTConfig:    JWTConfig{Secret: secret},
		RedisAddr:    v.GetString("REDIS_ADDR"),
		RedisDB:      v.GetInt("REDIS_DB"),
		CapacityCaps: caps,
	}, nil
}

// parseCaps decodes the PROMO_CAPS JSON document, e.g.
// {"BALCONY":{"artist":40,"early_bird":80},"INTERIOR":{"artist":20}}.
func parseCaps(raw string) ([]capacity.Counter, error) {
	if raw == "" {
		return nil, nil
	}

	var byCategory map[string]map[string]int
	if err := json.Unmarshal([]byte(raw), &byCategory); err != nil {
		return nil, fmt.Errorf("invalid PROMO_CAPS: %w", err)
	}

	var counters []capacity.Counter
	for category, byType := range byCategory {
		for codeType, limit := range byType {
			t := promo.CodeType(codeType)
			if !t.Valid() {
				return nil, fmt.Errorf("invalid PROMO_CAPS code type: %s", codeType)
			}
			if limit < 0 {
				return nil, fmt.Errorf("invalid PROMO_CAPS cap for %s/%s", category, codeType)
			}
			counters = append(counters, capacity.Counter{
				Category: strings.ToUpper(category),
				CodeType: t,
				Cap:      limit,
			})
		}
	}
	return counters, nil
}
