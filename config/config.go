package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Broker   BrokerConfig   `mapstructure:"broker"`
	Relay    RelayConfig    `mapstructure:"relay"`
	Breaker  BreakerConfig  `mapstructure:"breaker"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Cluster  ClusterConfig  `mapstructure:"cluster"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// BrokerConfig contains MQTT broker connection configuration
type BrokerConfig struct {
	Address        string `mapstructure:"address"`
	ClientIDPrefix string `mapstructure:"client_id_prefix"`
	ConnectTimeout int    `mapstructure:"connect_timeout"`
	PublishTimeout int    `mapstructure:"publish_timeout"`
	QoS            int    `mapstructure:"qos"`
}

// RelayConfig contains relay loop configuration
type RelayConfig struct {
	Strategy     string `mapstructure:"strategy"`
	IngressTopic string `mapstructure:"ingress_topic"`
	EgressTopic  string `mapstructure:"egress_topic"`
	PollInterval int    `mapstructure:"poll_interval_ms"`
}

// BreakerConfig contains admission controller configuration
type BreakerConfig struct {
	FailureThreshold int `mapstructure:"failure_threshold"`
	SuccessThreshold int `mapstructure:"success_threshold"`
	ResetTimeout     int `mapstructure:"reset_timeout"`
}

// RetryConfig contains retry buffer configuration
type RetryConfig struct {
	Interval int `mapstructure:"interval"`
	Capacity int `mapstructure:"capacity"`
}

// PipelineConfig contains processing pipeline configuration
type PipelineConfig struct {
	FaultCadence int `mapstructure:"fault_cadence"`
}

// ClusterConfig contains clustering configuration
type ClusterConfig struct {
	NodeID            string   `mapstructure:"node_id"`
	SeedID            string   `mapstructure:"seed_id"`
	Peers             []string `mapstructure:"peers"`
	FailureCheckEvery int      `mapstructure:"failure_check_every"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// MetricsConfig contains metrics configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// LoadConfig loads configuration from file and environment
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/mqrelay")
	}

	// Set defaults
	setDefaults()

	// Read environment variables
	viper.AutomaticEnv()
	viper.SetEnvPrefix("MQRELAY")

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Broker defaults
	viper.SetDefault("broker.address", "tcp://localhost:1883")
	viper.SetDefault("broker.client_id_prefix", "mqrelay")
	viper.SetDefault("broker.connect_timeout", 10)
	viper.SetDefault("broker.publish_timeout", 5)
	viper.SetDefault("broker.qos", 1)

	// Relay defaults
	viper.SetDefault("relay.strategy", "breaker")
	viper.SetDefault("relay.ingress_topic", "iot/input")
	viper.SetDefault("relay.egress_topic", "iot/data")
	viper.SetDefault("relay.poll_interval_ms", 100)

	// Breaker defaults
	viper.SetDefault("breaker.failure_threshold", 3)
	viper.SetDefault("breaker.success_threshold", 2)
	viper.SetDefault("breaker.reset_timeout", 10)

	// Retry defaults
	viper.SetDefault("retry.interval", 5)
	viper.SetDefault("retry.capacity", 0)

	// Pipeline defaults
	viper.SetDefault("pipeline.fault_cadence", 5)

	// Cluster defaults
	viper.SetDefault("cluster.node_id", "node1")
	viper.SetDefault("cluster.seed_id", "node1")
	viper.SetDefault("cluster.peers", []string{"node1", "node2", "node3"})
	viper.SetDefault("cluster.failure_check_every", 10)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.development", false)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.port", 8080)
	viper.SetDefault("metrics.path", "/metrics")
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	switch config.Relay.Strategy {
	case "breaker", "pipeline", "cluster":
	default:
		return fmt.Errorf("relay.strategy must be one of breaker, pipeline, cluster; got %q", config.Relay.Strategy)
	}

	if config.Broker.Address == "" {
		return fmt.Errorf("broker.address is required")
	}

	if config.Broker.QoS < 0 || config.Broker.QoS > 2 {
		return fmt.Errorf("broker.qos must be between 0 and 2")
	}

	if config.Relay.IngressTopic == "" || config.Relay.EgressTopic == "" {
		return fmt.Errorf("relay.ingress_topic and relay.egress_topic are required")
	}

	if config.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("breaker.failure_threshold must be at least 1")
	}

	if config.Breaker.SuccessThreshold < 1 {
		return fmt.Errorf("breaker.success_threshold must be at least 1")
	}

	if config.Retry.Capacity < 0 {
		return fmt.Errorf("retry.capacity must not be negative")
	}

	if config.Relay.Strategy == "cluster" {
		if config.Cluster.NodeID == "" {
			return fmt.Errorf("cluster.node_id is required for the cluster strategy")
		}
		if len(config.Cluster.Peers) == 0 {
			return fmt.Errorf("cluster.peers must not be empty for the cluster strategy")
		}
	}

	if config.Metrics.Enabled && (config.Metrics.Port < 1 || config.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port must be between 1 and 65535")
	}

	return nil
}

// GetDefaultConfig returns a default configuration
func GetDefaultConfig() *Config {
	setDefaults()

	var config Config
	viper.Unmarshal(&config)
	validateConfig(&config)

	return &config
}

// PollInterval returns the relay poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Relay.PollInterval) * time.Millisecond
}

// ResetTimeout returns the breaker reset timeout as a duration.
func (c *Config) ResetTimeout() time.Duration {
	return time.Duration(c.Breaker.ResetTimeout) * time.Second
}

// RetryInterval returns the retry buffer drain interval as a duration.
func (c *Config) RetryInterval() time.Duration {
	return time.Duration(c.Retry.Interval) * time.Second
}
