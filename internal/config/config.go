package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DBDriver          string
	DBDSN             string
	SQLitePath        string
	RedisAddr         string
	ReportCacheTTL    time.Duration
	HTTPAddr          string
	OtelEndpoint      string
	KafkaBrokers      []string
	KafkaTopicPrefix  string
	KafkaGroupID      string
	AlertTopic        string
	Bridges           []string
	ReconcileInterval time.Duration
	CounterstakeCoef  uint64
	StrictFlow        bool
	LogLevel          string
	LogFormat         string
	LogFile           string
	ReconcileRate     float64
}

type EnvSource interface {
	Lookup(key string) (string, bool)
}

type EnvMap map[string]string

func (e EnvMap) Lookup(key string) (string, bool) {
	value, ok := e[key]
	return value, ok
}

func FromEnviron() EnvSource {
	env := make(EnvMap)
	for _, entry := range os.Environ() {
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		env[parts[0]] = parts[1]
	}
	return env
}

func Load(source EnvSource) (Config, error) {
	if source == nil {
		return Config{}, errors.New("env source is required")
	}

	dbDriver := lookupDefault(source, "DB_DRIVER", "sqlite")
	if dbDriver != "sqlite" && dbDriver != "mysql" {
		return Config{}, fmt.Errorf("invalid DB_DRIVER %q: want mysql or sqlite", dbDriver)
	}
	dbDSN := lookupDefault(source, "DB_DSN", "root:@tcp(127.0.0.1:3306)/bridgewatch?parseTime=true&multiStatements=true")
	sqlitePath := lookupDefault(source, "SQLITE_PATH", "bridgewatch.db")

	redisAddr := ""
	if raw, ok := source.Lookup("REDIS_ADDR"); ok {
		redisAddr = strings.TrimSpace(raw)
	}
	cacheTTL, err := parseDurationEnv(source, "REPORT_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return Config{}, err
	}

	otelEndpoint, _ := source.Lookup("OTEL_EXPORTER_OTLP_ENDPOINT")
	otelEndpoint = strings.TrimSpace(otelEndpoint)

	kafkaBrokers, err := parseList(source, "KAFKA_BROKERS", "localhost:9092")
	if err != nil {
		return Config{}, err
	}
	kafkaTopicPrefix := lookupDefault(source, "KAFKA_TOPIC_PREFIX", "bridgewatch")
	kafkaGroupID := lookupDefault(source, "KAFKA_GROUP_ID", "bridgewatch-reconciler")
	alertTopic := lookupDefault(source, "ALERT_TOPIC", kafkaTopicPrefix+"-alerts")

	bridges, err := parseList(source, "BRIDGES", "")
	if err != nil {
		bridges = nil
	}

	interval, err := parseDurationEnv(source, "RECONCILE_INTERVAL", time.Minute)
	if err != nil {
		return Config{}, err
	}
	if interval <= 0 {
		return Config{}, errors.New("RECONCILE_INTERVAL must be positive")
	}
	coef, err := parseUintEnv(source, "COUNTERSTAKE_COEF", 150)
	if err != nil {
		return Config{}, err
	}
	if coef < 100 {
		return Config{}, fmt.Errorf("COUNTERSTAKE_COEF must be at least 100, got %d", coef)
	}
	strict, err := parseBoolEnv(source, "STRICT_FLOW", false)
	if err != nil {
		return Config{}, err
	}

	rate := 5.0
	if raw, ok := source.Lookup("RECONCILE_RATE_LIMIT"); ok && strings.TrimSpace(raw) != "" {
		rate, err = strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil || rate <= 0 {
			return Config{}, fmt.Errorf("invalid RECONCILE_RATE_LIMIT %q", raw)
		}
	}

	return Config{
		DBDriver:          dbDriver,
		DBDSN:             dbDSN,
		SQLitePath:        sqlitePath,
		RedisAddr:         redisAddr,
		ReportCacheTTL:    cacheTTL,
		HTTPAddr:          lookupDefault(source, "HTTP_ADDR", ":8080"),
		OtelEndpoint:      otelEndpoint,
		KafkaBrokers:      kafkaBrokers,
		KafkaTopicPrefix:  kafkaTopicPrefix,
		KafkaGroupID:      kafkaGroupID,
		AlertTopic:        alertTopic,
		Bridges:           bridges,
		ReconcileInterval: interval,
		CounterstakeCoef:  coef,
		StrictFlow:        strict,
		LogLevel:          lookupDefault(source, "LOG_LEVEL", "info"),
		LogFormat:         lookupDefault(source, "LOG_FORMAT", "text"),
		LogFile:           lookupDefault(source, "LOG_FILE", ""),
		ReconcileRate:     rate,
	}, nil
}

// ClaimsTopic and TransfersTopic are derived from the topic prefix.
func (c Config) ClaimsTopic() string { return c.KafkaTopicPrefix + "-claims" }

func (c Config) TransfersTopic() string { return c.KafkaTopicPrefix + "-transfers" }

func lookupDefault(source EnvSource, key, defaultValue string) string {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return defaultValue
	}
	return strings.TrimSpace(raw)
}

func parseUintEnv(source EnvSource, key string, defaultValue uint64) (uint64, error) {
	raw, ok := source.Lookup(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func parseBoolEnv(source EnvSource, key string, defaultValue bool) (bool, error) {
	raw, ok := source.Lookup(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func parseDurationEnv(source EnvSource, key string, defaultValue time.Duration) (time.Duration, error) {
	raw, ok := source.Lookup(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	duration, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return duration, nil
}

func parseList(source EnvSource, key string, defaultValue string) ([]string, error) {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		raw = defaultValue
	}
	items := strings.Split(raw, ",")
	var values []string
	for _, item := range items {
		value := strings.TrimSpace(item)
		if value == "" {
			continue
		}
		values = append(values, value)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s is required", key)
	}
	return values, nil
}
