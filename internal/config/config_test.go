package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.Equal(t, "ocr:jobs", cfg.QueueName)
	assert.Equal(t, "easyocr", cfg.PrimaryEngine)
	assert.Equal(t, []string{"tesseract"}, cfg.FallbackEngines)
	assert.True(t, cfg.EnableFallback)
	assert.InDelta(t, 0.7, cfg.QualityThreshold, 1e-9)
	assert.False(t, cfg.CostOptimization)
	assert.True(t, cfg.LocalPriority)
	assert.Equal(t, 5, cfg.MaxConcurrentRequests)
	assert.Equal(t, 300000, cfg.ProcessingTimeout)
	assert.Equal(t, int64(104857600), cfg.MaxFileSize)
	assert.True(t, cfg.CacheResults)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("PRIMARY_OCR_ENGINE", "mistral")
	t.Setenv("FALLBACK_OCR_ENGINES", "easyocr, tesseract ,rapidocr")
	t.Setenv("OCR_QUALITY_THRESHOLD", "0.85")
	t.Setenv("COST_OPTIMIZATION", "true")
	t.Setenv("LOCAL_OCR_PRIORITY", "false")
	t.Setenv("MAX_CONCURRENT_REQUESTS", "12")
	t.Setenv("EASYOCR_LANGUAGES", "en,de,fr")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "mistral", cfg.PrimaryEngine)
	assert.Equal(t, []string{"easyocr", "tesseract", "rapidocr"}, cfg.FallbackEngines)
	assert.InDelta(t, 0.85, cfg.QualityThreshold, 1e-9)
	assert.True(t, cfg.CostOptimization)
	assert.False(t, cfg.LocalPriority)
	assert.Equal(t, 12, cfg.MaxConcurrentRequests)
	assert.Equal(t, []string{"en", "de", "fr"}, cfg.EasyOCRLanguages)
}

func TestLoadConfigMalformedValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("OCR_QUALITY_THRESHOLD", "very high")
	t.Setenv("MAX_CONCURRENT_REQUESTS", "lots")
	t.Setenv("ENABLE_OCR_FALLBACK", "yes please")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.InDelta(t, 0.7, cfg.QualityThreshold, 1e-9)
	assert.Equal(t, 5, cfg.MaxConcurrentRequests)
	assert.True(t, cfg.EnableFallback)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			RedisURL:              "redis://localhost:6379",
			QualityThreshold:      0.7,
			MaxConcurrentRequests: 5,
			MaxFileSize:           104857600,
			MistralTimeout:        300,
		}
	}

	testCases := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"missing redis url", func(c *Config) { c.RedisURL = "" }, false},
		{"threshold above one", func(c *Config) { c.QualityThreshold = 1.5 }, false},
		{"threshold negative", func(c *Config) { c.QualityThreshold = -0.1 }, false},
		{"threshold at bounds", func(c *Config) { c.QualityThreshold = 1.0 }, true},
		{"negative budget", func(c *Config) { c.BudgetPerDocument = -1 }, false},
		{"zero concurrency", func(c *Config) { c.MaxConcurrentRequests = 0 }, false},
		{"excessive concurrency", func(c *Config) { c.MaxConcurrentRequests = 101 }, false},
		{"file size too small", func(c *Config) { c.MaxFileSize = 512 }, false},
		{"file size too large", func(c *Config) { c.MaxFileSize = 11 << 30 }, false},
		{"zero mistral timeout", func(c *Config) { c.MistralTimeout = 0 }, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
