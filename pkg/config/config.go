package config

import (
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		RateLimitRPS    float64       `yaml:"rate_limit_rps" default:"10"`
		RateLimitBurst  int           `yaml:"rate_limit_burst" default:"20"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Logging struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"logging"`
	Exchange struct {
		FuturesBaseURL string        `yaml:"futures_base_url" default:"https://fapi.binance.com" validate:"required,url"`
		SpotBaseURL    string        `yaml:"spot_base_url" default:"https://api.binance.com" validate:"required,url"`
		Symbols        []string      `yaml:"symbols" default:"[\"BTCUSDT\",\"ETHUSDT\",\"BNBUSDT\",\"SOLUSDT\",\"XRPUSDT\",\"ADAUSDT\"]"`
		SpotSymbols    []string      `yaml:"spot_symbols"`
		Timeout        time.Duration `yaml:"timeout" default:"10s"`
		MaxAttempts    int           `yaml:"max_attempts" default:"3" validate:"gte=1,lte=10"`
		RateLimitRPS   float64       `yaml:"rate_limit_rps" default:"10"`
		ProxyEnabled   bool          `yaml:"proxy_enabled"`
	} `yaml:"exchange"`
	Polling struct {
		Tickers       time.Duration `yaml:"tickers" default:"30s"`
		Depth         time.Duration `yaml:"depth" default:"10s"`
		Institutional time.Duration `yaml:"institutional" default:"60s"`
		DepthLimit    int           `yaml:"depth_limit" default:"100" validate:"gte=5,lte=1000"`
		WallMultiple  float64       `yaml:"wall_multiple" default:"5"`
	} `yaml:"polling"`
	Learning struct {
		Store               string  `yaml:"store" default:"sqlite" validate:"oneof=memory sqlite postgres"`
		DSN                 string  `yaml:"dsn" default:"file:marketradar.db?_pragma=busy_timeout(5000)"`
		RetentionDays       int     `yaml:"retention_days" default:"30" validate:"gte=1"`
		MinPredictions      int     `yaml:"min_predictions" default:"10" validate:"gte=1"`
		LearningRate        float64 `yaml:"learning_rate" default:"0.1" validate:"gt=0,lte=1"`
		ConfidenceThreshold float64 `yaml:"confidence_threshold" default:"0.6" validate:"gte=0,lte=1"`
	} `yaml:"learning"`
	Preferences struct {
		Backend string `yaml:"backend" default:"memory" validate:"oneof=memory redis"`
		Redis   struct {
			Host     string `yaml:"host" default:"localhost"`
			Port     int    `yaml:"port" default:"6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix" default:"marketradar"`
		} `yaml:"redis"`
	} `yaml:"preferences"`
	Alerts struct {
		Backend      string        `yaml:"backend" default:"none" validate:"oneof=none kafka clickhouse"`
		BufferSize   int           `yaml:"buffer_size" default:"500"`
		Kafka        struct {
			Brokers      []string      `yaml:"brokers"`
			Topic        string        `yaml:"topic" default:"radar.alerts"`
			RequiredAcks int           `yaml:"required_acks" default:"-1"`
			Compression  string        `yaml:"compression" default:"gzip"`
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"1s"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"kafka"`
		ClickHouse struct {
			Host             string        `yaml:"host" default:"localhost"`
			Port             int           `yaml:"port" default:"9000"`
			Database         string        `yaml:"database" default:"marketradar"`
			User             string        `yaml:"user" default:"default"`
			Password         string        `yaml:"password"`
			UseHTTP          bool          `yaml:"use_http"`
			AsyncInsert      bool          `yaml:"async_insert"`
			DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
			ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
			MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
		} `yaml:"clickhouse"`
	} `yaml:"alerts"`
}

// envOverrides are read from RADAR_* variables and win over the YAML file.
type envOverrides struct {
	Environment    string   `envconfig:"ENVIRONMENT"`
	Symbols        []string `envconfig:"SYMBOLS"`
	SpotSymbols    []string `envconfig:"SPOT_SYMBOLS"`
	FuturesBaseURL string   `envconfig:"FUTURES_BASE_URL"`
	SpotBaseURL    string   `envconfig:"SPOT_BASE_URL"`
	LearningStore  string   `envconfig:"LEARNING_STORE"`
	LearningDSN    string   `envconfig:"LEARNING_DSN"`
	Preferences    string   `envconfig:"PREFERENCES_BACKEND"`
	RedisHost      string   `envconfig:"REDIS_HOST"`
	RedisPassword  string   `envconfig:"REDIS_PASSWORD"`
	AlertsBackend  string   `envconfig:"ALERTS_BACKEND"`
	KafkaBrokers   []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic     string   `envconfig:"KAFKA_TOPIC"`
	LogLevel       string   `envconfig:"LOG_LEVEL"`
	Port           int      `envconfig:"PORT"`
}

const envPrefix = "RADAR"

var validate = validator.New()

// Default returns a configuration populated only from struct defaults.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

// Load reads a YAML file on top of the defaults and validates the result.
func Load(path string) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML (when the file exists) and applies RADAR_* overrides.
func LoadWithEnv(path string) (*Config, error) {
	var (
		c   *Config
		err error
	)
	if _, statErr := os.Stat(path); statErr == nil {
		c, err = Load(path)
	} else {
		c, err = Default()
	}
	if err != nil {
		return nil, err
	}

	var o envOverrides
	if err := envconfig.Process(envPrefix, &o); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}
	c.apply(o)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) apply(o envOverrides) {
	if o.Environment != "" {
		c.Environment = o.Environment
	}
	if len(o.Symbols) > 0 {
		c.Exchange.Symbols = o.Symbols
	}
	if len(o.SpotSymbols) > 0 {
		c.Exchange.SpotSymbols = o.SpotSymbols
	}
	if o.FuturesBaseURL != "" {
		c.Exchange.FuturesBaseURL = o.FuturesBaseURL
	}
	if o.SpotBaseURL != "" {
		c.Exchange.SpotBaseURL = o.SpotBaseURL
	}
	if o.LearningStore != "" {
		c.Learning.Store = o.LearningStore
	}
	if o.LearningDSN != "" {
		c.Learning.DSN = o.LearningDSN
	}
	if o.Preferences != "" {
		c.Preferences.Backend = o.Preferences
	}
	if o.RedisHost != "" {
		c.Preferences.Redis.Host = o.RedisHost
	}
	if o.RedisPassword != "" {
		c.Preferences.Redis.Password = o.RedisPassword
	}
	if o.AlertsBackend != "" {
		c.Alerts.Backend = o.AlertsBackend
	}
	if len(o.KafkaBrokers) > 0 {
		c.Alerts.Kafka.Brokers = o.KafkaBrokers
	}
	if o.KafkaTopic != "" {
		c.Alerts.Kafka.Topic = o.KafkaTopic
	}
	if o.LogLevel != "" {
		c.Logging.Level = o.LogLevel
	}
	if o.Port > 0 {
		c.Server.Port = o.Port
	}
}

// Validate checks struct tags first, then cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if len(c.Exchange.Symbols) == 0 && len(c.Exchange.SpotSymbols) == 0 {
		return fmt.Errorf("exchange.symbols cannot be empty")
	}
	if c.Learning.Store != "memory" && c.Learning.DSN == "" {
		return fmt.Errorf("learning.dsn is required for store '%s'", c.Learning.Store)
	}
	if c.Alerts.Backend == "kafka" && len(c.Alerts.Kafka.Brokers) == 0 {
		return fmt.Errorf("alerts.kafka.brokers cannot be empty when alerts.backend is 'kafka'")
	}
	if c.Polling.Tickers <= 0 || c.Polling.Depth <= 0 || c.Polling.Institutional <= 0 {
		return fmt.Errorf("polling intervals must be positive")
	}
	return nil
}
