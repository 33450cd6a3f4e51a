// Package config loads application settings from an optional YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment key, e.g. JURIS_ELASTICSEARCH_INDEX_NAME.
const EnvPrefix = "JURIS"

// ErrMissingSetting is returned by Validate when a required setting is absent.
var ErrMissingSetting = errors.New("missing required setting")

// Config mirrors configs/config.yaml.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Log           LogConfig           `mapstructure:"log"`
	Database      DatabaseConfig      `mapstructure:"database"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Model         ModelConfig         `mapstructure:"model"`
	HTTP          HTTPConfig          `mapstructure:"http"`
	Retry         RetryConfig         `mapstructure:"retry"`
	Retrieval     RetrievalConfig     `mapstructure:"retrieval"`
	Ingestion     IngestionConfig     `mapstructure:"ingestion"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig is optional; an empty DSN disables ingestion run history.
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig guards the admin endpoints. An empty secret leaves them open.
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
	// MaxAttempts bounds how often a failing ingestion task is redelivered.
	MaxAttempts int `mapstructure:"max_attempts"`
}

// ElasticsearchConfig describes the vector index. APIKey takes precedence over
// Username/Password when both are set.
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	APIKey    string `mapstructure:"api_key"`
	IndexName string `mapstructure:"index_name"`
}

type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	// BucketName receives uploads whose request names no container.
	BucketName string `mapstructure:"bucket_name"`
	// ImageBucket stores images extracted during ingestion.
	ImageBucket string `mapstructure:"image_bucket"`
}

// ModelConfig covers the chat, embedding and vision deployments of one
// OpenAI-compatible endpoint. Provider is "azure" or "openai".
type ModelConfig struct {
	Provider            string `mapstructure:"provider"`
	Endpoint            string `mapstructure:"endpoint"`
	APIKey              string `mapstructure:"api_key"`
	APIVersion          string `mapstructure:"api_version"`
	ChatDeployment      string `mapstructure:"chat_deployment"`
	EmbeddingDeployment string `mapstructure:"embedding_deployment"`
	VisionDeployment    string `mapstructure:"vision_deployment"`
	Dimensions          int    `mapstructure:"dimensions"`
	// RequestsPerSecond throttles every call to the endpoint; <= 0 disables it.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// HTTPConfig bounds the connection pool shared by every outbound client.
type HTTPConfig struct {
	MaxIdleConns        int           `mapstructure:"max_idle_conns"`
	MaxIdleConnsPerHost int           `mapstructure:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `mapstructure:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `mapstructure:"idle_conn_timeout"`
	ConnMaxLifetime     time.Duration `mapstructure:"conn_max_lifetime"`
}

type RetryConfig struct {
	MaxRetries int           `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
	Multiplier float64       `mapstructure:"multiplier"`
	MaxDelay   time.Duration `mapstructure:"max_delay"`
	MaxJitter  time.Duration `mapstructure:"max_jitter"`
}

type RetrievalConfig struct {
	TopK          int           `mapstructure:"top_k"`
	SearchTimeout time.Duration `mapstructure:"search_timeout"`
}

type IngestionConfig struct {
	ChunkMaxChars    int `mapstructure:"chunk_max_chars"`
	EmbeddingWorkers int `mapstructure:"embedding_workers"`
}

// RateLimitConfig limits /api/ask per client IP. Requests <= 0 disables it.
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

func setDefaults(v *viper.Viper) {
	defaults := map[string]interface{}{
		"server.port":                  "8080",
		"server.mode":                  "release",
		"log.level":                    "info",
		"log.format":                   "json",
		"log.output_path":              "",
		"database.mysql.dsn":           "",
		"database.redis.addr":          "",
		"database.redis.password":      "",
		"database.redis.db":            0,
		"jwt.secret":                   "",
		"kafka.brokers":                "",
		"kafka.topic":                  "jurisdiction-ingestion",
		"kafka.group_id":               "juris-rag-go-consumer",
		"kafka.max_attempts":           3,
		"elasticsearch.addresses":      "",
		"elasticsearch.username":       "",
		"elasticsearch.password":       "",
		"elasticsearch.api_key":        "",
		"elasticsearch.index_name":     "",
		"minio.endpoint":               "",
		"minio.access_key_id":          "",
		"minio.secret_access_key":      "",
		"minio.use_ssl":                false,
		"minio.bucket_name":            "legal-documents",
		"minio.image_bucket":           "legal-images",
		"model.provider":               "azure",
		"model.endpoint":               "",
		"model.api_key":                "",
		"model.api_version":            "2024-06-01",
		"model.chat_deployment":        "",
		"model.embedding_deployment":   "",
		"model.vision_deployment":      "",
		"model.dimensions":             1536,
		"model.requests_per_second":    0.0,
		"http.max_idle_conns":          100,
		"http.max_idle_conns_per_host": 20,
		"http.max_conns_per_host":      50,
		"http.idle_conn_timeout":       90 * time.Second,
		"http.conn_max_lifetime":       5 * time.Minute,
		"retry.max_retries":            2,
		"retry.base_delay":             400 * time.Millisecond,
		"retry.multiplier":             2.0,
		"retry.max_delay":              5 * time.Second,
		"retry.max_jitter":             200 * time.Millisecond,
		"retrieval.top_k":              15,
		"retrieval.search_timeout":     15 * time.Second,
		"ingestion.chunk_max_chars":    2000,
		"ingestion.embedding_workers":  4,
		"rate_limit.requests":          60,
		"rate_limit.window":            time.Minute,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// Load reads configPath when it exists, then overlays the environment. A .env
// file in the working directory is loaded first.
func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Validate reports every missing required setting in one error.
func (c *Config) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"elasticsearch.addresses", c.Elasticsearch.Addresses},
		{"elasticsearch.index_name", c.Elasticsearch.IndexName},
		{"model.endpoint", c.Model.Endpoint},
		{"model.api_key", c.Model.APIKey},
		{"model.chat_deployment", c.Model.ChatDeployment},
		{"model.embedding_deployment", c.Model.EmbeddingDeployment},
		{"minio.endpoint", c.MinIO.Endpoint},
		{"minio.access_key_id", c.MinIO.AccessKeyID},
		{"minio.secret_access_key", c.MinIO.SecretAccessKey},
		{"kafka.brokers", c.Kafka.Brokers},
		{"database.redis.addr", c.Database.Redis.Addr},
	}
	var missing []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, envName(r.key))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingSetting, strings.Join(missing, ", "))
	}
	if c.Model.Dimensions <= 0 {
		return fmt.Errorf("%w: %s must be positive", ErrMissingSetting, envName("model.dimensions"))
	}
	return nil
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
