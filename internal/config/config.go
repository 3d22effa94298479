package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Valkey   ValkeyConfig
	MinIO    MinIOConfig
	S3       S3Config
	MCP      MCPConfig
	Analyzer AnalyzerConfig
	Batch    BatchConfig
	Render   RenderConfig
	Worker   WorkerConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type ValkeyConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type S3Config struct {
	Region   string // S3_REGION
	Bucket   string // S3_BUCKET
	Prefix   string // S3_PREFIX
	Endpoint string // S3_ENDPOINT (for MinIO/LocalStack compatibility)
}

type MCPConfig struct {
	Addr string
}

// AnalyzerConfig tunes the trigger body analyzer.
type AnalyzerConfig struct {
	CaseClauseIndent int // columns a WHEN/ELSE may sit deeper than its CASE
	MaxDepth         int
}

type BatchConfig struct {
	InputDir  string
	OutputDir string
	Workers   int
	Pattern   string
	Render    bool
}

type RenderConfig struct {
	MappingFile string
	Dialect     string
	Indent      int
}

type WorkerConfig struct {
	ConsumerID   string
	WorkDir      string
	JobStatusTTL time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; variables already set win.
func Load() (*Config, error) {
	_ = godotenv.Load() // ignore error if .env missing

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT_SECS", 30*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT_SECS", 60*time.Second),
		},
		Database: DatabaseConfig{
			Enabled:  getEnvBool("DB_ENABLED", false),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "trigconv"),
			Password: getEnv("DB_PASSWORD", "trigconv"),
			Name:     getEnv("DB_NAME", "trigconv"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 10)),
			MinConns: int32(getEnvInt("DB_MIN_CONNS", 2)),
		},
		Valkey: ValkeyConfig{
			Addr:     getEnv("VALKEY_ADDR", ""),
			Password: getEnv("VALKEY_PASSWORD", ""),
			DB:       getEnvInt("VALKEY_DB", 0),
			CacheTTL: getEnvDuration("VALKEY_CACHE_TTL_SECS", 24*time.Hour),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", "trigconv"),
			SecretKey: getEnv("MINIO_SECRET_KEY", "trigconv123"),
			Bucket:    getEnv("MINIO_BUCKET", "trigconv"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		S3: S3Config{
			Region:   getEnv("S3_REGION", ""),
			Bucket:   getEnv("S3_BUCKET", ""),
			Prefix:   getEnv("S3_PREFIX", ""),
			Endpoint: getEnv("S3_ENDPOINT", ""),
		},
		MCP: MCPConfig{
			Addr: getEnv("MCP_ADDR", ":8090"),
		},
		Analyzer: AnalyzerConfig{
			CaseClauseIndent: getEnvInt("ANALYZER_CASE_CLAUSE_INDENT", 3),
			MaxDepth:         getEnvInt("ANALYZER_MAX_DEPTH", 64),
		},
		Batch: BatchConfig{
			InputDir:  getEnv("BATCH_INPUT_DIR", "triggers"),
			OutputDir: getEnv("BATCH_OUTPUT_DIR", "analysis"),
			Workers:   getEnvInt("BATCH_WORKERS", 4),
			Pattern:   getEnv("BATCH_PATTERN", `^trigger(\d+)\.sql$`),
			Render:    getEnvBool("BATCH_RENDER", true),
		},
		Render: RenderConfig{
			MappingFile: getEnv("MAPPING_FILE", ""),
			Dialect:     getEnv("RENDER_DIALECT", "postgresql"),
			Indent:      getEnvInt("RENDER_INDENT", 2),
		},
		Worker: WorkerConfig{
			ConsumerID:   getEnv("WORKER_CONSUMER_ID", hostname()),
			WorkDir:      getEnv("WORKER_WORK_DIR", ""),
			JobStatusTTL: getEnvDuration("JOB_STATUS_TTL_SECS", 7*24*time.Hour),
		},
	}

	if cfg.Batch.Workers < 1 {
		return nil, fmt.Errorf("BATCH_WORKERS must be at least 1, got %d", cfg.Batch.Workers)
	}
	if cfg.Analyzer.MaxDepth < 1 {
		return nil, fmt.Errorf("ANALYZER_MAX_DEPTH must be at least 1, got %d", cfg.Analyzer.MaxDepth)
	}
	return cfg, nil
}

func hostname() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return "worker-" + h
	}
	return "worker-1"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration reads a whole number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return time.Duration(i) * time.Second
		}
	}
	return fallback
}
