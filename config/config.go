package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/apex/log"
	"github.com/joho/godotenv"
)

type Config struct {
	// Server configuration
	Port      string
	GinMode   string
	LogLevel  string
	LogFormat string

	// LLM configuration
	LLMProvider        string
	LLMModel           string
	OpenAIAPIKey       string
	OpenAIBaseURL      string
	GeminiAPIKey       string
	GeminiBaseURL      string
	AnthropicAPIKey    string
	AnthropicMaxTokens int
	OllamaHost         string

	// PDF extraction
	PDFExtractor     string
	UnidocLicenseKey string

	// Optional directory watched for dropped PDFs
	WatchDir string
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first when present.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found, relying on environment variables.")
	}

	return &Config{
		Port:               getEnv("PORT", "8000"),
		GinMode:            getEnv("GIN_MODE", ""),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "text")),
		LLMProvider:        strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
		LLMModel:           getEnv("LLM_MODEL", ""),
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:      getEnv("OPENAI_BASE_URL", ""),
		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
		GeminiBaseURL:      getEnv("GEMINI_BASE_URL", ""),
		AnthropicAPIKey:    getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicMaxTokens: getEnvInt("ANTHROPIC_MAX_TOKENS", 1024),
		OllamaHost:         getEnv("OLLAMA_HOST", "http://localhost:11434"),
		PDFExtractor:       strings.ToLower(getEnv("PDF_EXTRACTOR", "auto")),
		UnidocLicenseKey:   getEnv("UNIDOC_LICENSE_KEY", ""),
		WatchDir:           getEnv("WATCH_DIR", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v := getEnv(key, "")
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warnf("Invalid integer for %s: %q, using %d", key, v, defaultValue)
		return defaultValue
	}
	return n
}
