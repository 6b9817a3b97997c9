package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Env  string `mapstructure:"env"`
	Port int    `mapstructure:"port"`
}

type HistoryConfig struct {
	Backend    string `mapstructure:"backend"` // "memory" or "mongo"
	MaxEntries int    `mapstructure:"max_entries"`
}

type MongoConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

type KafkaConfig struct {
	Brokers          []string `mapstructure:"brokers"`
	TopicMessageSent string   `mapstructure:"topic_message_sent"`
}

type WSConfig struct {
	PingIntervalSeconds  int   `mapstructure:"ping_interval_seconds"`
	WriteDeadlineSeconds int   `mapstructure:"write_deadline_seconds"`
	ReadDeadlineSeconds  int   `mapstructure:"read_deadline_seconds"`
	MaxMessageSizeBytes  int64 `mapstructure:"max_message_size_bytes"`
	SendBuffer           int   `mapstructure:"send_buffer"`
}

type ChatConfig struct {
	RatePerMinute int `mapstructure:"rate_per_minute"`
	RateBurst     int `mapstructure:"rate_burst"`
}

type Config struct {
	App      AppConfig     `mapstructure:"app"`
	History  HistoryConfig `mapstructure:"history"`
	Mongo    MongoConfig   `mapstructure:"mongo"`
	Redis    RedisConfig   `mapstructure:"redis"`
	Kafka    KafkaConfig   `mapstructure:"kafka"`
	WS       WSConfig      `mapstructure:"ws"`
	Chat     ChatConfig    `mapstructure:"chat"`
	LogLevel string        `mapstructure:"log_level"`

	// derived
	PingInterval  time.Duration
	WriteDeadline time.Duration
	ReadDeadline  time.Duration
}

// Load reads an optional yaml file, then environment overrides
// (CHAT_APP_PORT, CHAT_MONGO_URI, ...). An empty path means defaults plus
// environment only; a named file that is missing is an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	c.PingInterval = time.Duration(c.WS.PingIntervalSeconds) * time.Second
	c.WriteDeadline = time.Duration(c.WS.WriteDeadlineSeconds) * time.Second
	c.ReadDeadline = time.Duration(c.WS.ReadDeadlineSeconds) * time.Second
	return &c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", 8080)
	v.SetDefault("history.backend", "memory")
	v.SetDefault("history.max_entries", 1000)
	v.SetDefault("mongo.database", "church")
	v.SetDefault("mongo.collection", "chat_messages")
	v.SetDefault("redis.channel", "chat.broadcast")
	v.SetDefault("kafka.topic_message_sent", "chat.message-sent")
	v.SetDefault("ws.ping_interval_seconds", 25)
	v.SetDefault("ws.write_deadline_seconds", 10)
	v.SetDefault("ws.read_deadline_seconds", 60)
	v.SetDefault("ws.max_message_size_bytes", 65536)
	v.SetDefault("ws.send_buffer", 256)
	v.SetDefault("chat.rate_per_minute", 120)
	v.SetDefault("chat.rate_burst", 10)
	v.SetDefault("log_level", "info")
}
