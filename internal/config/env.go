package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	RedisURL    string
	StreamName  string
	StreamGroup string

	GeminiAPIKey  string
	GeminiModel   string
	GeminiTimeout time.Duration

	MaxUploadMB  int
	JobTTL       time.Duration
	KeepTmpFiles bool

	BlobStore    string // "local" or "s3"
	TmpDir       string
	AwsRegion    string
	AwsAccessKey string
	AwsSecretKey string
	BucketName   string

	WorkerConcurrency   int
	WorkerTimeout       time.Duration
	ClaimBlock          time.Duration
	VisibilityTimeout   time.Duration
	MaxDeliveryAttempts int
	ReapInterval        time.Duration

	ComparePollInterval time.Duration
	ComparePollAttempts int

	Port        string
	LogLevel    string
	MetricsAddr string
}

// LoadConfig loads the environment variables and returns the config
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),
		StreamName:  getEnv("STREAM_NAME", "doc_jobs"),
		StreamGroup: getEnv("STREAM_GROUP", "doc_workers"),

		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModel:   getEnv("GEMINI_MODEL_ID", "gemini-2.0-flash"),
		GeminiTimeout: getEnvSeconds("GEMINI_TIMEOUT_SECONDS", 120),

		MaxUploadMB:  getEnvInt("MAX_UPLOAD_MB", 25),
		JobTTL:       getEnvSeconds("JOB_TTL_SECONDS", 86400),
		KeepTmpFiles: getEnvBool("KEEP_TMP_FILES", false),

		BlobStore:    getEnv("BLOB_STORE", "local"),
		TmpDir:       getEnv("TMP_DIR", filepath.Join(os.TempDir(), "docstream")),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		BucketName:   getEnv("BUCKET_NAME", "docstream-uploads"),

		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 2),
		WorkerTimeout:     getEnvSeconds("WORKER_TIMEOUT_SECONDS", 300),
		ClaimBlock:        getEnvSeconds("CLAIM_BLOCK_SECONDS", 5),
		// Default stays above WORKER_TIMEOUT_SECONDS so a slow job is not
		// reclaimed while its owner is still working on it.
		VisibilityTimeout:   getEnvSeconds("VISIBILITY_TIMEOUT_SECONDS", 330),
		MaxDeliveryAttempts: getEnvInt("MAX_DELIVERY_ATTEMPTS", 3),
		ReapInterval:        getEnvSeconds("REAP_INTERVAL_SECONDS", 15),

		ComparePollInterval: getEnvMillis("COMPARE_POLL_INTERVAL_MS", 2000),
		ComparePollAttempts: getEnvInt("COMPARE_POLL_ATTEMPTS", 90),

		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		MetricsAddr: getEnv("METRICS_ADDR", ":2112"),
	}

	if cfg.GeminiAPIKey == "" {
		log.Printf("WARN: GEMINI_API_KEY not set, AI parsing and summarization disabled")
	}

	return cfg
}

// MaxUploadBytes is the upload size ceiling in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("WARN: %s=%q not a bool, using default %v", key, v, def)
		return def
	}
	return b
}

func getEnvSeconds(key string, def int) time.Duration {
	return time.Duration(getEnvInt(key, def)) * time.Second
}

func getEnvMillis(key string, def int) time.Duration {
	return time.Duration(getEnvInt(key, def)) * time.Millisecond
}
