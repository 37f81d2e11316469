package config

import (
	"fmt"
	"os"

	"lifesignal-data/internal/common/config"
)

// Config lifesignal-data 服务配置
type Config struct {
	Database  config.DatabaseConfig
	Redis     config.RedisConfig
	MQTT      config.MQTTConfig
	Push      config.PushConfig
	Telephony config.TelephonyConfig

	HTTP struct {
		Addr string
	}

	Auth struct {
		// HS256 会话令牌签名密钥
		Secret string
	}

	Events struct {
		Stream string // Redis Stream 名称
	}

	// DBEnabled=false 时使用内存文档存储（本地调试 / 测试）
	DBEnabled   bool
	MQTTEnabled bool

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置（环境变量 + 默认值）
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = 5432
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "lifesignal")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = 10
	cfg.Database.MaxIdle = 5
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "lifesignal-data")
	cfg.MQTT.QoS = 1
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.Push.Endpoint = getEnv("PUSH_ENDPOINT", "https://fcm.googleapis.com/fcm/send")
	cfg.Push.LoadFromEnv("PUSH")

	cfg.Telephony.Endpoint = getEnv("TELEPHONY_ENDPOINT", "https://api.telnyx.com")
	cfg.Telephony.LoadFromEnv("TELEPHONY")

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Auth.Secret = os.Getenv("AUTH_SECRET")
	if cfg.Auth.Secret == "" {
		return nil, fmt.Errorf("AUTH_SECRET is required")
	}

	cfg.Events.Stream = getEnv("EVENTS_STREAM", "lifesignal:events")

	cfg.DBEnabled = getEnv("DB_ENABLED", "true") == "true"
	cfg.MQTTEnabled = getEnv("MQTT_ENABLED", "false") == "true"

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
