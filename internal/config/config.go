package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string
	DataDir       string

	// Webhook coordination
	ChatDeadline           time.Duration
	ChatCallbackEnabled    bool
	ChatCallbackAck        bool
	ChatRequireCallbackURL bool
	CallbackTimeout        time.Duration
	ChatRateLimit          float64
	ChatRateBurst          int

	// ReplyLog storage
	ReplyLogBackend string
	ReplyLogPath    string
	ReplyLogScope   string
	ReplyLogTable   string
	ReplyLogTTL     time.Duration
	RedisAddr       string
	RedisPassword   string
	RedisTLS        bool
	DatabaseURL     string

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Language model
	LLMProvider         string
	LLMFallbackProvider string
	LLMModel            string
	LLMTimeout          time.Duration
	OpenAIAPIKey        string
	OpenAIBaseURL       string
	BedrockModelID      string
	GeminiAPIKey        string
	GeminiModelID       string

	// Retrieval and search
	EmbeddingModel   string
	EmbeddingAPIKey  string
	EmbeddingBaseURL string
	IndexPath        string
	RAGTopK          int
	SearchMaxResults int
	SearchBaseURL    string

	// Daily report
	NewsAPIKey          string
	KakaoAccessToken    string
	KakaoAPIBaseURL     string
	ReportS3Bucket      string
	SendGridAPIKey      string
	SendGridFromEmail   string
	SESFromEmail        string
	ReportEmailTo       string
	ReportScheduleAt    string
	ReportTimezone      string
	ReportRetryAttempts int
	ReportRetryDelay    time.Duration
	// ReportEmbedded runs the daily schedule inside the API process so both
	// share the single-writer document index.
	ReportEmbedded bool
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DataDir:       getEnv("DATA_DIR", "./data"),

		ChatDeadline:           getEnvAsDuration("CHAT_DEADLINE", 3500*time.Millisecond),
		ChatCallbackEnabled:    getEnvAsBool("CHAT_CALLBACK_ENABLED", true),
		ChatCallbackAck:        getEnvAsBool("CHAT_CALLBACK_ACK", false),
		ChatRequireCallbackURL: getEnvAsBool("CHAT_REQUIRE_CALLBACK_URL", true),
		CallbackTimeout:        getEnvAsDuration("CALLBACK_TIMEOUT", 10*time.Second),
		ChatRateLimit:          getEnvAsFloat("CHAT_RATE_LIMIT", 0),
		ChatRateBurst:          getEnvAsInt("CHAT_RATE_BURST", 10),

		ReplyLogBackend: strings.ToLower(strings.TrimSpace(getEnv("REPLYLOG_BACKEND", "file"))),
		ReplyLogPath:    getEnv("REPLYLOG_PATH", "./botlog.txt"),
		ReplyLogScope:   strings.ToLower(strings.TrimSpace(getEnv("REPLYLOG_SCOPE", "global"))),
		ReplyLogTable:   getEnv("REPLYLOG_TABLE", "reply_log"),
		ReplyLogTTL:     getEnvAsDuration("REPLYLOG_TTL", 24*time.Hour),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisTLS:        getEnvAsBool("REDIS_TLS", false),
		DatabaseURL:     getEnv("DATABASE_URL", ""),

		AWSRegion:           getEnv("AWS_REGION", "ap-northeast-2"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		LLMProvider:         strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "openai"))),
		LLMFallbackProvider: strings.ToLower(strings.TrimSpace(getEnv("LLM_FALLBACK_PROVIDER", ""))),
		LLMModel:            getEnv("LLM_MODEL", "llama-3.1-8b-instant"),
		LLMTimeout:          getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:       getEnv("OPENAI_BASE_URL", "https://api.groq.com/openai/v1"),
		BedrockModelID:      getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:       getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),

		EmbeddingModel:   getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingAPIKey:  getEnv("EMBEDDING_API_KEY", ""),
		EmbeddingBaseURL: getEnv("EMBEDDING_BASE_URL", ""),
		IndexPath:        getEnv("INDEX_PATH", "./db/index"),
		RAGTopK:          getEnvAsInt("RAG_TOP_K", 4),
		SearchMaxResults: getEnvAsInt("SEARCH_MAX_RESULTS", 5),
		SearchBaseURL:    getEnv("SEARCH_BASE_URL", "https://html.duckduckgo.com/html/"),

		NewsAPIKey:          getEnv("NEWS_API_KEY", ""),
		KakaoAccessToken:    getEnv("KAKAO_ACCESS_TOKEN", ""),
		KakaoAPIBaseURL:     getEnv("KAKAO_API_BASE_URL", "https://kapi.kakao.com"),
		ReportS3Bucket:      getEnv("REPORT_S3_BUCKET", ""),
		SendGridAPIKey:      getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail:   getEnv("SENDGRID_FROM_EMAIL", ""),
		SESFromEmail:        getEnv("SES_FROM_EMAIL", ""),
		ReportEmailTo:       getEnv("REPORT_EMAIL_TO", ""),
		ReportScheduleAt:    getEnv("REPORT_SCHEDULE_AT", "07:30"),
		ReportTimezone:      getEnv("REPORT_TIMEZONE", "Asia/Seoul"),
		ReportRetryAttempts: getEnvAsInt("REPORT_RETRY_ATTEMPTS", 3),
		ReportRetryDelay:    getEnvAsDuration("REPORT_RETRY_DELAY", 30*time.Second),
		ReportEmbedded:      getEnvAsBool("REPORT_EMBEDDED", false),
	}
}

// EmbeddingKey returns the API key used for embeddings, falling back to the chat key.
func (c *Config) EmbeddingKey() string {
	if strings.TrimSpace(c.EmbeddingAPIKey) != "" {
		return c.EmbeddingAPIKey
	}
	return c.OpenAIAPIKey
}

// ReportLocation resolves REPORT_TIMEZONE, falling back to the local zone.
func (c *Config) ReportLocation() *time.Location {
	if loc, err := time.LoadLocation(strings.TrimSpace(c.ReportTimezone)); err == nil {
		return loc
	}
	return time.Local
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
