/**
 * Configuration for the OCR Worker
 *
 * Loads configuration from environment variables. Constructed once at
 * process start and read-only for the process lifetime.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds worker configuration
type Config struct {
	// Redis (result cache + job queue)
	RedisURL  string
	QueueName string

	// Engine selection policy
	PrimaryEngine     string
	FallbackEngines   []string
	EnableFallback    bool
	QualityThreshold  float64
	CostOptimization  bool
	LocalPriority     bool
	BudgetPerDocument float64

	// Mistral cloud engine
	MistralAPIKey  string
	MistralModel   string
	MistralBaseURL string
	MistralTimeout int // seconds

	// Local engines
	EasyOCRLanguages []string
	EasyOCRRunner    string
	EasyOCRGPU       bool
	RapidOCRRunner   string
	TesseractPSM     string

	// Worker limits
	MaxConcurrentRequests int
	ProcessingTimeout     int // milliseconds
	MaxFileSize           int64

	// Result cache
	CacheResults    bool
	CacheTTLSeconds int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		RedisURL:  getEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		QueueName: getEnvOrDefault("OCR_QUEUE_NAME", "ocr:jobs"),

		PrimaryEngine:     getEnvOrDefault("PRIMARY_OCR_ENGINE", "easyocr"),
		FallbackEngines:   getEnvAsSliceOrDefault("FALLBACK_OCR_ENGINES", []string{"tesseract"}),
		EnableFallback:    getEnvAsBoolOrDefault("ENABLE_OCR_FALLBACK", true),
		QualityThreshold:  getEnvAsFloatOrDefault("OCR_QUALITY_THRESHOLD", 0.7),
		CostOptimization:  getEnvAsBoolOrDefault("COST_OPTIMIZATION", false),
		LocalPriority:     getEnvAsBoolOrDefault("LOCAL_OCR_PRIORITY", true),
		BudgetPerDocument: getEnvAsFloatOrDefault("BUDGET_PER_DOCUMENT", 1.0),

		MistralAPIKey:  getEnvOrDefault("MISTRAL_API_KEY", ""),
		MistralModel:   getEnvOrDefault("MISTRAL_MODEL", "mistral-ocr-latest"),
		MistralBaseURL: getEnvOrDefault("MISTRAL_BASE_URL", ""),
		MistralTimeout: getEnvAsIntOrDefault("MISTRAL_TIMEOUT", 300),

		EasyOCRLanguages: getEnvAsSliceOrDefault("EASYOCR_LANGUAGES", []string{"en"}),
		EasyOCRRunner:    getEnvOrDefault("EASYOCR_RUNNER", "easyocr-runner"),
		EasyOCRGPU:       getEnvAsBoolOrDefault("EASYOCR_GPU", false),
		RapidOCRRunner:   getEnvOrDefault("RAPIDOCR_RUNNER", "rapidocr-runner"),
		TesseractPSM:     getEnvOrDefault("TESSERACT_PSM", "6"),

		MaxConcurrentRequests: getEnvAsIntOrDefault("MAX_CONCURRENT_REQUESTS", 5),
		ProcessingTimeout:     getEnvAsIntOrDefault("PROCESSING_TIMEOUT", 300000), // 5 minutes
		MaxFileSize:           getEnvAsInt64OrDefault("MAX_FILE_SIZE", 104857600), // 100MB

		CacheResults:    getEnvAsBoolOrDefault("CACHE_RESULTS", true),
		CacheTTLSeconds: getEnvAsIntOrDefault("CACHE_TTL_SECONDS", 3600),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.QualityThreshold < 0 || c.QualityThreshold > 1 {
		return fmt.Errorf("OCR_QUALITY_THRESHOLD must be between 0 and 1, got %v", c.QualityThreshold)
	}

	if c.BudgetPerDocument < 0 {
		return fmt.Errorf("BUDGET_PER_DOCUMENT must not be negative, got %v", c.BudgetPerDocument)
	}

	if c.MaxConcurrentRequests < 1 || c.MaxConcurrentRequests > 100 {
		return fmt.Errorf("MAX_CONCURRENT_REQUESTS must be between 1 and 100, got %d", c.MaxConcurrentRequests)
	}

	if c.MaxFileSize < 1024 || c.MaxFileSize > 10737418240 { // 1KB to 10GB
		return fmt.Errorf("MAX_FILE_SIZE must be between 1KB and 10GB, got %d", c.MaxFileSize)
	}

	if c.MistralTimeout < 1 {
		return fmt.Errorf("MISTRAL_TIMEOUT must be positive, got %d", c.MistralTimeout)
	}

	return nil
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsInt64OrDefault gets environment variable as int64 or returns default
func getEnvAsInt64OrDefault(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsFloatOrDefault gets environment variable as float64 or returns default
func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsBoolOrDefault gets environment variable as bool or returns default
func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsSliceOrDefault gets environment variable as a comma-separated
// list or returns default
func getEnvAsSliceOrDefault(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	parts := strings.Split(valueStr, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}
