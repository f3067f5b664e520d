package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Business BusinessConfig `mapstructure:"business"`
	Credit   CreditConfig   `mapstructure:"credit"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	CreditSettled string `mapstructure:"credit_settled"`
	SessionClosed string `mapstructure:"session_closed"`
}

type BusinessConfig struct {
	MaxRetryCount    int `mapstructure:"max_retry_count"`
	LockTTLSeconds   int `mapstructure:"lock_ttl_seconds"`
	DefaultSeatCount int `mapstructure:"default_seat_count"`
}

// CreditConfig 欠款结清相关配置
//
// CommentTemplate 支持占位符 {player} {table} {date}，SeatFallback 支持 {seat}
//
// RejectOverSettlement 默认关闭：结清金额超过欠款时只记录告警；config.yaml 中开启
type CreditConfig struct {
	CommentTemplate      string `mapstructure:"comment_template"`
	SeatFallback         string `mapstructure:"seat_fallback"`
	UnknownTable         string `mapstructure:"unknown_table"`
	DateLayout           string `mapstructure:"date_layout"`
	RejectOverSettlement bool   `mapstructure:"reject_over_settlement"`
}

const (
	DefaultCommentTemplate = "Долг ({player}) - {table} - {date}"
	DefaultSeatFallback    = "Seat {seat}"
	DefaultUnknownTable    = "Unknown"
	DefaultDateLayout      = "02.01.2006"
)

// DefaultCreditConfig 返回默认的欠款配置
func DefaultCreditConfig() CreditConfig {
	return CreditConfig{
		CommentTemplate:      DefaultCommentTemplate,
		SeatFallback:         DefaultSeatFallback,
		UnknownTable:         DefaultUnknownTable,
		DateLayout:           DefaultDateLayout,
		RejectOverSettlement: false,
	}
}

// WithDefaults 用默认值补全空字段
func (c CreditConfig) WithDefaults() CreditConfig {
	d := DefaultCreditConfig()
	if c.CommentTemplate == "" {
		c.CommentTemplate = d.CommentTemplate
	}
	if c.SeatFallback == "" {
		c.SeatFallback = d.SeatFallback
	}
	if c.UnknownTable == "" {
		c.UnknownTable = d.UnknownTable
	}
	if c.DateLayout == "" {
		c.DateLayout = d.DateLayout
	}
	return c
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("kafka.topic.credit_settled", "casino.credit.settled")
	v.SetDefault("kafka.topic.session_closed", "casino.session.closed")
	v.SetDefault("business.max_retry_count", 5)
	v.SetDefault("business.lock_ttl_seconds", 30)
	v.SetDefault("business.default_seat_count", 24)
	v.SetDefault("credit.comment_template", DefaultCommentTemplate)
	v.SetDefault("credit.seat_fallback", DefaultSeatFallback)
	v.SetDefault("credit.unknown_table", DefaultUnknownTable)
	v.SetDefault("credit.date_layout", DefaultDateLayout)
	v.SetDefault("credit.reject_over_settlement", false)
}

// Load 读取并解析配置文件
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, err
	}
	config.Credit = config.Credit.WithDefaults()
	return config, nil
}

// LoadConfig 加载配置文件，失败直接退出
func LoadConfig(configPath string) *Config {
	config, err := Load(configPath)
	if err != nil {
		log.Fatalf("加载配置文件失败: %v", err)
	}

	return config
}
