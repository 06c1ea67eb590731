package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the restaurant system
type Config struct {
	Database      DatabaseConfig
	RabbitMQ      RabbitMQConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Server        ServerConfig
	Orders        OrdersConfig
	Payments      PaymentsConfig
	Notifications NotificationsConfig
	Storage       StorageConfig
	Log           LogConfig
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// RabbitMQConfig holds RabbitMQ connection configuration
type RabbitMQConfig struct {
	Host     string
	Port     int
	User     string
	Password string
}

// RedisConfig holds the pub/sub connection used for realtime channels
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// KafkaConfig holds the CRM event sink configuration
type KafkaConfig struct {
	Brokers  []string
	CRMTopic string
	Enabled  bool
}

type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
}

// OrdersConfig holds lifecycle engine settings
type OrdersConfig struct {
	TaxRate                 float64
	DefaultRequiresApproval bool
}

type PaymentsConfig struct {
	Timeout time.Duration
}

// NotificationsConfig lists the dispatchers fanned out to
type NotificationsConfig struct {
	Drivers []string
}

type StorageConfig struct {
	Driver string
}

type LogConfig struct {
	Level string
}

// Default returns a config with every optional value filled in
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Host: "localhost", Port: 5432, User: "restaurant_user", Database: "restaurant_db"},
		RabbitMQ: RabbitMQConfig{Host: "localhost", Port: 5672, User: "guest", Password: "guest"},
		Redis:    RedisConfig{Addr: "localhost:6379"},
		Kafka:    KafkaConfig{Brokers: []string{"localhost:9092"}, CRMTopic: "crm-events"},
		Server:   ServerConfig{Port: 3000, ShutdownTimeout: 10 * time.Second},
		Orders:   OrdersConfig{TaxRate: 0.19, DefaultRequiresApproval: true},
		Payments: PaymentsConfig{Timeout: 10 * time.Second},
		Notifications: NotificationsConfig{
			Drivers: []string{"rabbitmq"},
		},
		Storage: StorageConfig{Driver: "postgres"},
		Log:     LogConfig{Level: "debug"},
	}
}

// Load reads configuration from a YAML file, then applies .env and environment overrides
func Load(filename string) (*Config, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	config := Default()
	scanner := bufio.NewScanner(file)

	var currentSection string

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasSuffix(line, ":") && !strings.Contains(line, " ") {
			currentSection = strings.TrimSuffix(line, ":")
			continue
		}

		if strings.Contains(line, ":") {
			parts := strings.SplitN(line, ":", 2)
			key := strings.TrimSpace(parts[0])
			value := unquote(strings.TrimSpace(parts[1]))

			if err := config.setValue(currentSection, key, value); err != nil {
				return nil, fmt.Errorf("failed to set config value %s.%s: %w", currentSection, key, err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// setValue sets a configuration value based on section and key
func (c *Config) setValue(section, key, value string) error {
	switch section {
	case "database":
		return c.setDatabaseValue(key, value)
	case "rabbitmq":
		return c.setRabbitMQValue(key, value)
	case "redis":
		return c.setRedisValue(key, value)
	case "kafka":
		return c.setKafkaValue(key, value)
	case "server":
		return c.setServerValue(key, value)
	case "orders":
		return c.setOrdersValue(key, value)
	case "payments":
		return c.setPaymentsValue(key, value)
	case "notifications":
		return c.setNotificationsValue(key, value)
	case "storage":
		return c.setStorageValue(key, value)
	case "log":
		return c.setLogValue(key, value)
	default:
		return fmt.Errorf("unknown section: %s", section)
	}
}

func (c *Config) setDatabaseValue(key, value string) error {
	switch key {
	case "host":
		c.Database.Host = value
	case "port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid port value: %w", err)
		}
		c.Database.Port = port
	case "user":
		c.Database.User = value
	case "password":
		c.Database.Password = value
	case "database":
		c.Database.Database = value
	default:
		return fmt.Errorf("unknown database key: %s", key)
	}
	return nil
}

func (c *Config) setRabbitMQValue(key, value string) error {
	switch key {
	case "host":
		c.RabbitMQ.Host = value
	case "port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid port value: %w", err)
		}
		c.RabbitMQ.Port = port
	case "user":
		c.RabbitMQ.User = value
	case "password":
		c.RabbitMQ.Password = value
	default:
		return fmt.Errorf("unknown rabbitmq key: %s", key)
	}
	return nil
}

func (c *Config) setRedisValue(key, value string) error {
	switch key {
	case "addr":
		c.Redis.Addr = value
	case "password":
		c.Redis.Password = value
	case "db":
		db, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid db value: %w", err)
		}
		c.Redis.DB = db
	default:
		return fmt.Errorf("unknown redis key: %s", key)
	}
	return nil
}

func (c *Config) setKafkaValue(key, value string) error {
	switch key {
	case "brokers":
		c.Kafka.Brokers = splitList(value)
	case "crm_topic":
		c.Kafka.CRMTopic = value
	case "enabled":
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid enabled value: %w", err)
		}
		c.Kafka.Enabled = enabled
	default:
		return fmt.Errorf("unknown kafka key: %s", key)
	}
	return nil
}

func (c *Config) setServerValue(key, value string) error {
	switch key {
	case "port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid port value: %w", err)
		}
		c.Server.Port = port
	case "shutdown_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid shutdown_timeout value: %w", err)
		}
		c.Server.ShutdownTimeout = d
	default:
		return fmt.Errorf("unknown server key: %s", key)
	}
	return nil
}

func (c *Config) setOrdersValue(key, value string) error {
	switch key {
	case "tax_rate":
		rate, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid tax_rate value: %w", err)
		}
		c.Orders.TaxRate = rate
	case "default_requires_approval":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid default_requires_approval value: %w", err)
		}
		c.Orders.DefaultRequiresApproval = v
	default:
		return fmt.Errorf("unknown orders key: %s", key)
	}
	return nil
}

func (c *Config) setPaymentsValue(key, value string) error {
	switch key {
	case "timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid timeout value: %w", err)
		}
		c.Payments.Timeout = d
	default:
		return fmt.Errorf("unknown payments key: %s", key)
	}
	return nil
}

func (c *Config) setNotificationsValue(key, value string) error {
	switch key {
	case "drivers":
		c.Notifications.Drivers = splitList(value)
	default:
		return fmt.Errorf("unknown notifications key: %s", key)
	}
	return nil
}

func (c *Config) setStorageValue(key, value string) error {
	switch key {
	case "driver":
		c.Storage.Driver = value
	default:
		return fmt.Errorf("unknown storage key: %s", key)
	}
	return nil
}

func (c *Config) setLogValue(key, value string) error {
	switch key {
	case "level":
		c.Log.Level = value
	default:
		return fmt.Errorf("unknown log key: %s", key)
	}
	return nil
}

// envOverrides maps environment variables onto section/key pairs
var envOverrides = []struct {
	env, section, key string
}{
	{"DB_HOST", "database", "host"},
	{"DB_PORT", "database", "port"},
	{"DB_USER", "database", "user"},
	{"DB_PASSWORD", "database", "password"},
	{"DB_NAME", "database", "database"},
	{"RABBITMQ_HOST", "rabbitmq", "host"},
	{"RABBITMQ_PORT", "rabbitmq", "port"},
	{"RABBITMQ_USER", "rabbitmq", "user"},
	{"RABBITMQ_PASSWORD", "rabbitmq", "password"},
	{"REDIS_ADDR", "redis", "addr"},
	{"REDIS_PASSWORD", "redis", "password"},
	{"KAFKA_BROKERS", "kafka", "brokers"},
	{"KAFKA_ENABLED", "kafka", "enabled"},
	{"SERVER_PORT", "server", "port"},
	{"TAX_RATE", "orders", "tax_rate"},
	{"PAYMENT_TIMEOUT", "payments", "timeout"},
	{"NOTIFICATION_DRIVERS", "notifications", "drivers"},
	{"STORAGE_DRIVER", "storage", "driver"},
	{"LOG_LEVEL", "log", "level"},
}

func (c *Config) applyEnv() error {
	for _, o := range envOverrides {
		value, ok := os.LookupEnv(o.env)
		if !ok || value == "" {
			continue
		}
		if err := c.setValue(o.section, o.key, value); err != nil {
			return fmt.Errorf("invalid %s: %w", o.env, err)
		}
	}
	return nil
}

// Validate checks value ranges and driver names
func (c *Config) Validate() error {
	if c.Orders.TaxRate < 0 || c.Orders.TaxRate >= 1 {
		return fmt.Errorf("orders.tax_rate must be in [0, 1), got %v", c.Orders.TaxRate)
	}
	if c.Payments.Timeout <= 0 {
		return fmt.Errorf("payments.timeout must be positive")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be positive")
	}
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown storage.driver: %s", c.Storage.Driver)
	}
	for _, d := range c.Notifications.Drivers {
		switch d {
		case "rabbitmq", "redis", "none":
		default:
			return fmt.Errorf("unknown notifications driver: %s", d)
		}
	}
	return nil
}

// DatabaseURL returns a PostgreSQL connection URL
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port, c.Database.Database)
}

// RabbitMQURL returns an AMQP connection URL
func (c *Config) RabbitMQURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/",
		c.RabbitMQ.User, c.RabbitMQ.Password, c.RabbitMQ.Host, c.RabbitMQ.Port)
}

// HasDriver reports whether a notification driver is enabled
func (c *Config) HasDriver(name string) bool {
	for _, d := range c.Notifications.Drivers {
		if d == name {
			return true
		}
	}
	return false
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func unquote(value string) string {
	if len(value) >= 2 && (value[0] == '"' && value[len(value)-1] == '"' || value[0] == '\'' && value[len(value)-1] == '\'') {
		return value[1 : len(value)-1]
	}
	return value
}
