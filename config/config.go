package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	mu sync.Mutex `yaml:"-"`

	Namespace string `yaml:"namespace"`
	StationID string `yaml:"station_id"`

	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Web       WebConfig       `yaml:"web"`
	Messaging MessagingConfig `yaml:"messaging"`
	Import    ImportConfig    `yaml:"import"`
	Stations  StationsConfig  `yaml:"stations"`
}

// DatabaseConfig selects the document store backend.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver"` // "sqlite" or "postgres"
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// RedisConfig defines the occupancy cache. An empty address disables it.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// WebConfig defines the web server settings.
type WebConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	SessionSecret string `yaml:"session_secret"`
	AdminUser     string `yaml:"admin_user"`
	AdminPassword string `yaml:"admin_password"`
	RateLimit     string `yaml:"rate_limit"` // limiter format, e.g. "60-M"
}

// MessagingConfig defines the messaging backend used by station terminals.
type MessagingConfig struct {
	Enabled             bool          `yaml:"enabled"`
	Backend             string        `yaml:"backend"` // "mqtt" or "kafka"
	MQTT                MQTTConfig    `yaml:"mqtt"`
	Kafka               KafkaConfig   `yaml:"kafka"`
	TerminalTopic       string        `yaml:"terminal_topic"`
	EventsTopic         string        `yaml:"events_topic"`
	OutboxDrainInterval time.Duration `yaml:"outbox_drain_interval"`
	HeartbeatInterval   time.Duration `yaml:"heartbeat_interval"`
}

// MQTTConfig defines MQTT broker settings.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
}

// KafkaConfig defines Kafka broker settings.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	GroupID string   `yaml:"group_id"`
}

// ImportConfig controls spreadsheet import parsing and commit batching.
type ImportConfig struct {
	MachineColumn  string        `yaml:"machine_column"`
	OrderColumn    string        `yaml:"order_column"`
	ItemColumn     string        `yaml:"item_column"`
	DescColumn     string        `yaml:"desc_column"`
	DateColumn     string        `yaml:"date_column"`
	WeekColumn     string        `yaml:"week_column"`
	CodeColumn     string        `yaml:"code_column"`
	PlanColumn     string        `yaml:"plan_column"`
	LeadTimeDays   int           `yaml:"lead_time_days"`
	BatchSize      int           `yaml:"batch_size"`
	SessionTTL     time.Duration `yaml:"session_ttl"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
}

// StationsConfig lists the machines shown on the dashboard tiles.
type StationsConfig struct {
	Machines []string `yaml:"machines"`
}

// Defaults returns a Config with sane defaults.
func Defaults() *Config {
	return &Config{
		Namespace: "fpi",
		StationID: "planner",
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{Path: "fpiff.db"},
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "fpiff",
				User:     "fpiff",
				SSLMode:  "disable",
			},
		},
		Redis: RedisConfig{
			Address: "localhost:6379",
		},
		Web: WebConfig{
			Host:      "0.0.0.0",
			Port:      8090,
			AdminUser: "admin",
			RateLimit: "120-M",
		},
		Messaging: MessagingConfig{
			Enabled:             true,
			Backend:             "mqtt",
			TerminalTopic:       "fpiff/terminals",
			EventsTopic:         "fpiff/events",
			OutboxDrainInterval: 5 * time.Second,
			HeartbeatInterval:   60 * time.Second,
			MQTT: MQTTConfig{
				Broker:   "localhost",
				Port:     1883,
				ClientID: "fpiff-planner",
			},
			Kafka: KafkaConfig{
				Brokers: []string{"localhost:9092"},
				GroupID: "fpiff-planner",
			},
		},
		Import: ImportConfig{
			MachineColumn:  "Machine",
			OrderColumn:    "order",
			ItemColumn:     "Manufactured Item",
			DescColumn:     "Item Desc",
			DateColumn:     "datum",
			WeekColumn:     "Week",
			CodeColumn:     "code",
			PlanColumn:     "Plan",
			LeadTimeDays:   14,
			BatchSize:      400,
			SessionTTL:     30 * time.Minute,
			MaxUploadBytes: 16 << 20,
		},
		Stations: StationsConfig{
			Machines: []string{"4010", "4011", "4012", "4013", "4020", "MAZAK"},
		},
	}
}

// Load reads a YAML config file. If the file doesn't exist, defaults are used.
// Environment overrides (and an optional .env file) are applied last.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}
	_ = godotenv.Load()
	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}

// ApplyEnv overrides selected settings from FPIFF_* variables.
func (c *Config) ApplyEnv(getenv func(string) string) {
	setString := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	setString("FPIFF_DATABASE_DRIVER", &c.Database.Driver)
	setString("FPIFF_SQLITE_PATH", &c.Database.SQLite.Path)
	setString("FPIFF_POSTGRES_HOST", &c.Database.Postgres.Host)
	setString("FPIFF_POSTGRES_PASSWORD", &c.Database.Postgres.Password)
	setString("FPIFF_REDIS_ADDRESS", &c.Redis.Address)
	setString("FPIFF_REDIS_PASSWORD", &c.Redis.Password)
	setString("FPIFF_SESSION_SECRET", &c.Web.SessionSecret)
	setString("FPIFF_ADMIN_PASSWORD", &c.Web.AdminPassword)
	setString("FPIFF_MESSAGING_BACKEND", &c.Messaging.Backend)
	setString("FPIFF_MQTT_BROKER", &c.Messaging.MQTT.Broker)
	if v := getenv("FPIFF_KAFKA_BROKERS"); v != "" {
		c.Messaging.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getenv("FPIFF_WEB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Web.Port = port
		}
	}
}

// Save writes the config to a YAML file.
func (c *Config) Save(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// NodeID identifies this planner instance on the message bus.
func (c *Config) NodeID() string {
	return c.Namespace + "." + c.StationID
}

// Lock acquires the config mutex for multi-step mutations.
func (c *Config) Lock() { c.mu.Lock() }

// Unlock releases the config mutex.
func (c *Config) Unlock() { c.mu.Unlock() }
