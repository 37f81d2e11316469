package config

import (
	"fmt"
	"os"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT配置
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// PushConfig 推送服务配置（FCM legacy multicast API）
type PushConfig struct {
	Endpoint  string
	ServerKey string
}

// TelephonyConfig 外呼服务配置（Telnyx v2）
type TelephonyConfig struct {
	Endpoint     string
	APIKey       string
	FromNumber   string
	ConnectionID string
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// LoadFromEnv 从环境变量加载数据库配置
func (c *DatabaseConfig) LoadFromEnv(prefix string) {
	if host := os.Getenv(prefix + "_HOST"); host != "" {
		c.Host = host
	}
	if port := os.Getenv(prefix + "_PORT"); port != "" {
		fmt.Sscanf(port, "%d", &c.Port)
	}
	if user := os.Getenv(prefix + "_USER"); user != "" {
		c.User = user
	}
	if password := os.Getenv(prefix + "_PASSWORD"); password != "" {
		c.Password = password
	}
	if database := os.Getenv(prefix + "_DATABASE"); database != "" {
		c.Database = database
	}
	if sslMode := os.Getenv(prefix + "_SSLMODE"); sslMode != "" {
		c.SSLMode = sslMode
	}
}

// LoadFromEnv 从环境变量加载Redis配置
func (c *RedisConfig) LoadFromEnv(prefix string) {
	if addr := os.Getenv(prefix + "_ADDR"); addr != "" {
		c.Addr = addr
	}
	if password := os.Getenv(prefix + "_PASSWORD"); password != "" {
		c.Password = password
	}
	if db := os.Getenv(prefix + "_DB"); db != "" {
		fmt.Sscanf(db, "%d", &c.DB)
	}
}

// LoadFromEnv 从环境变量加载MQTT配置
func (c *MQTTConfig) LoadFromEnv(prefix string) {
	if broker := os.Getenv(prefix + "_BROKER"); broker != "" {
		c.Broker = broker
	}
	if clientID := os.Getenv(prefix + "_CLIENT_ID"); clientID != "" {
		c.ClientID = clientID
	}
	if username := os.Getenv(prefix + "_USERNAME"); username != "" {
		c.Username = username
	}
	if password := os.Getenv(prefix + "_PASSWORD"); password != "" {
		c.Password = password
	}
}

// LoadFromEnv 从环境变量加载推送配置
func (c *PushConfig) LoadFromEnv(prefix string) {
	if endpoint := os.Getenv(prefix + "_ENDPOINT"); endpoint != "" {
		c.Endpoint = endpoint
	}
	if key := os.Getenv(prefix + "_SERVER_KEY"); key != "" {
		c.ServerKey = key
	}
}

// LoadFromEnv 从环境变量加载外呼配置
func (c *TelephonyConfig) LoadFromEnv(prefix string) {
	if endpoint := os.Getenv(prefix + "_ENDPOINT"); endpoint != "" {
		c.Endpoint = endpoint
	}
	if key := os.Getenv(prefix + "_API_KEY"); key != "" {
		c.APIKey = key
	}
	if from := os.Getenv(prefix + "_FROM_NUMBER"); from != "" {
		c.FromNumber = from
	}
	if conn := os.Getenv(prefix + "_CONNECTION_ID"); conn != "" {
		c.ConnectionID = conn
	}
}
