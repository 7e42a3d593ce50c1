package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	GigaChat GigaChatConfig
	Storage  StorageConfig
	Pipeline PipelineConfig
	API      APIConfig
	Logger   LoggerConfig
}

type LoggerConfig struct {
	Level string
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type GigaChatConfig struct {
	APIKey             string
	Scope              string
	InsecureSkipVerify bool
}

type StorageConfig struct {
	Bucket string
	// AuditPages persists rendered page images next to the source document
	// for debugging extraction issues.
	AuditPages bool
}

type PipelineConfig struct {
	// PageWorkers bounds concurrent per-page vision calls for one document.
	PageWorkers int
	// PageTimeout applies to each individual extraction attempt.
	PageTimeout time.Duration
	// PageRetries is the number of additional attempts for a failed page.
	PageRetries int
	// DateOrder resolves slash-formatted dates: "MDY" (01/15/2024) or
	// "DMY" (15/01/2024).
	DateOrder string
}

type APIConfig struct {
	// Key protects the document endpoints. Empty disables the check.
	Key string
}

func Load() (*Config, error) {
	// Try to load .env file from current directory or project root
	envFiles := []string{".env", "../.env", "../../.env"}
	for _, envFile := range envFiles {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}
	// No .env file is fine, environment variables still apply (Docker/K8s).

	readTimeout, _ := strconv.Atoi(getEnv("SERVER_READ_TIMEOUT", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("SERVER_WRITE_TIMEOUT", "30"))
	pageWorkers, _ := strconv.Atoi(getEnv("PIPELINE_PAGE_WORKERS", "4"))
	pageTimeout, _ := strconv.Atoi(getEnv("PIPELINE_PAGE_TIMEOUT", "60"))
	pageRetries, _ := strconv.Atoi(getEnv("PIPELINE_PAGE_RETRIES", "1"))
	insecureSkipVerify := getEnv("GIGACHAT_INSECURE_SKIP_VERIFY", "false") == "true"
	auditPages := getEnv("STORAGE_AUDIT_PAGES", "false") == "true"

	dateOrder := getEnv("PIPELINE_DATE_ORDER", "MDY")
	if dateOrder != "MDY" && dateOrder != "DMY" {
		dateOrder = "MDY"
	}
	if pageWorkers < 1 {
		pageWorkers = 1
	}

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  time.Duration(readTimeout) * time.Second,
			WriteTimeout: time.Duration(writeTimeout) * time.Second,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "finsight"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		GigaChat: GigaChatConfig{
			APIKey:             getEnv("GIGACHAT_API_KEY", ""),
			Scope:              getEnv("GIGACHAT_SCOPE", "GIGACHAT_API_PERS"),
			InsecureSkipVerify: insecureSkipVerify,
		},
		Storage: StorageConfig{
			Bucket:     getEnv("STORAGE_BUCKET", ""),
			AuditPages: auditPages,
		},
		Pipeline: PipelineConfig{
			PageWorkers: pageWorkers,
			PageTimeout: time.Duration(pageTimeout) * time.Second,
			PageRetries: pageRetries,
			DateOrder:   dateOrder,
		},
		API: APIConfig{
			Key: getEnv("API_KEY", ""),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
