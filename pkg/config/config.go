package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	LLM       LLMConfig
	Analysis  AnalysisConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLSec   int
}

type LLMConfig struct {
	Enabled     bool
	Model       string
	APIKey      string
	Temperature float32
	MaxTokens   int
	TimeoutSec  int
}

// AnalysisConfig carries every knob the analysis core exposes to callers:
// sampling, cache sizing, the clarification gate, and per-analyzer parameters.
type AnalysisConfig struct {
	SamplingThreshold  int     // row count above which sampling activates
	TargetSampleSize   int     // rows kept once sampling activates
	CacheCapacity      int     // bounded result cache entries
	ConfidenceGate     float64 // below this the parser asks for clarification
	ZScoreThreshold    float64
	IQRMultiplier      float64
	MovingAvgWindow    int
	MinContributionPct float64 // categories below this fold into "Others"
	OnTargetTolerance  float64 // percentage band treated as on-target
}

type RateLimitConfig struct {
	MaxRequestsPerMinute int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/data-agent")

	viper.SetEnvPrefix("DATA_AGENT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 33554432)

	viper.SetDefault("sqlite.path", "./data/datagent.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttlSec", 3600)

	viper.SetDefault("llm.enabled", false)
	viper.SetDefault("llm.model", "gpt-4")
	viper.SetDefault("llm.temperature", 0.3)
	viper.SetDefault("llm.maxTokens", 512)
	viper.SetDefault("llm.timeoutSec", 30)

	viper.SetDefault("analysis.samplingThreshold", 100000)
	viper.SetDefault("analysis.targetSampleSize", 10000)
	viper.SetDefault("analysis.cacheCapacity", 50)
	viper.SetDefault("analysis.confidenceGate", 0.72)
	viper.SetDefault("analysis.zScoreThreshold", 2.0)
	viper.SetDefault("analysis.iqrMultiplier", 1.5)
	viper.SetDefault("analysis.movingAvgWindow", 3)
	viper.SetDefault("analysis.minContributionPct", 2.0)
	viper.SetDefault("analysis.onTargetTolerance", 2.0)

	viper.SetDefault("ratelimit.maxRequestsPerMinute", 60)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
