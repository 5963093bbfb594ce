package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Namespace NamespaceConfig `yaml:"namespace"`
	Topics    TopicsConfig    `yaml:"topics"`
	Limits    LimitsConfig    `yaml:"limits"`
	Offsets   OffsetsConfig   `yaml:"offsets"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	KafkaAddr      string `yaml:"kafka_addr"`
	HTTPAddr       string `yaml:"http_addr"`
	BrokerID       int32  `yaml:"broker_id"`
	AdvertisedHost string `yaml:"advertised_host"`
	AdvertisedPort int32  `yaml:"advertised_port"`
}

type StorageConfig struct {
	DataDir    string        `yaml:"data_dir"`
	GCInterval time.Duration `yaml:"gc_interval"`
}

// NamespaceConfig names the backend tenant and namespace that
// unqualified client topic names are placed under.
type NamespaceConfig struct {
	Tenant    string `yaml:"tenant"`
	Namespace string `yaml:"namespace"`
}

type TopicsConfig struct {
	AutoCreate               bool  `yaml:"auto_create"`
	DefaultPartitions        int32 `yaml:"default_partitions"`
	DefaultReplicationFactor int16 `yaml:"default_replication_factor"`
	DeleteEnable             bool  `yaml:"delete_enable"`
}

type LimitsConfig struct {
	MaxConnections int `yaml:"max_connections"`
	MaxMessageSize int `yaml:"max_message_size"`
	MaxFetchBytes  int `yaml:"max_fetch_bytes"`
}

type OffsetsConfig struct {
	RetentionTime time.Duration `yaml:"retention_time"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			KafkaAddr:      ":9092",
			HTTPAddr:       ":8080",
			BrokerID:       1,
			AdvertisedHost: "localhost",
			AdvertisedPort: 9092,
		},
		Storage: StorageConfig{
			DataDir:    "./data",
			GCInterval: 5 * time.Minute,
		},
		Namespace: NamespaceConfig{
			Tenant:    "public",
			Namespace: "default",
		},
		Topics: TopicsConfig{
			AutoCreate:               true,
			DefaultPartitions:        1,
			DefaultReplicationFactor: 1,
			DeleteEnable:             true,
		},
		Limits: LimitsConfig{
			MaxConnections: 100,
			MaxMessageSize: 5 << 20,  // 5MB
			MaxFetchBytes:  10 << 20, // 10MB
		},
		Offsets: OffsetsConfig{
			RetentionTime: 24 * time.Hour,
			SweepInterval: 1 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads config from file, environment, with defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	cfg.loadFromEnv()

	return cfg, nil
}

func (c *Config) loadFromEnv() {
	if v := os.Getenv("KAFGATE_KAFKA_ADDR"); v != "" {
		c.Server.KafkaAddr = v
	}
	if v := os.Getenv("KAFGATE_HTTP_ADDR"); v != "" {
		c.Server.HTTPAddr = v
	}
	if v := os.Getenv("KAFGATE_ADVERTISED_HOST"); v != "" {
		c.Server.AdvertisedHost = v
	}
	if v := os.Getenv("KAFGATE_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("KAFGATE_TENANT"); v != "" {
		c.Namespace.Tenant = v
	}
	if v := os.Getenv("KAFGATE_NAMESPACE"); v != "" {
		c.Namespace.Namespace = v
	}
	if v := os.Getenv("KAFGATE_DEFAULT_PARTITIONS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil && n > 0 {
			c.Topics.DefaultPartitions = int32(n)
		}
	}
	if v := os.Getenv("KAFGATE_OFFSET_RETENTION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Offsets.RetentionTime = d
		}
	}
	if v := os.Getenv("KAFGATE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}
