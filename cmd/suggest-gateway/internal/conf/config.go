package conf

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Generator     GeneratorConfig     `mapstructure:"generator"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTPPort        int           `mapstructure:"http_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	TrustedProxies  []string      `mapstructure:"trusted_proxies"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Backend       string        `mapstructure:"backend"` // memory | redis
	Window        time.Duration `mapstructure:"window"`
	Max           int           `mapstructure:"max"`
	KeyPrefix     string        `mapstructure:"key_prefix"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// CacheConfig 响应缓存配置
type CacheConfig struct {
	Backend    string        `mapstructure:"backend"` // memory | redis
	TTL        time.Duration `mapstructure:"ttl"`
	MaxEntries int           `mapstructure:"max_entries"`
	KeyPrefix  string        `mapstructure:"key_prefix"`
}

// GeneratorConfig 生成服务配置
type GeneratorConfig struct {
	Provider       string               `mapstructure:"provider"` // http | anthropic | static
	BaseURL        string               `mapstructure:"base_url"`
	Model          string               `mapstructure:"model"`
	APIKey         string               `mapstructure:"api_key"`
	Timeout        time.Duration        `mapstructure:"timeout"`
	MaxTokens      int                  `mapstructure:"max_tokens"`
	StaticResponse string               `mapstructure:"static_response"`
	Breaker        CircuitBreakerConfig `mapstructure:"breaker"`
}

// CircuitBreakerConfig 熔断器配置
type CircuitBreakerConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxRequests uint32        `mapstructure:"max_requests"`
	Interval    time.Duration `mapstructure:"interval"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MinRequests uint32        `mapstructure:"min_requests"`
	Threshold   float64       `mapstructure:"threshold"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	PoolSize    int           `mapstructure:"pool_size"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// ObservabilityConfig 可观测性配置
type ObservabilityConfig struct {
	OTELEndpoint   string  `mapstructure:"otel_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	ServiceVersion string  `mapstructure:"service_version"`
	Environment    string  `mapstructure:"environment"`
	EnableTrace    bool    `mapstructure:"enable_trace"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
	LogLevel       string  `mapstructure:"log_level"`
	LogFormat      string  `mapstructure:"log_format"`
}

// setDefaults 默认值
// 每个键都需要注册，AutomaticEnv 才能在 Unmarshal 时覆盖
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 35*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.trusted_proxies", []string{})

	v.SetDefault("rate_limit.backend", "memory")
	v.SetDefault("rate_limit.window", time.Minute)
	v.SetDefault("rate_limit.max", 15)
	v.SetDefault("rate_limit.key_prefix", "rl")
	v.SetDefault("rate_limit.sweep_interval", 5*time.Minute)

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", 10*time.Minute)
	v.SetDefault("cache.max_entries", 200)
	v.SetDefault("cache.key_prefix", "suggest")

	v.SetDefault("generator.provider", "http")
	v.SetDefault("generator.base_url", "")
	v.SetDefault("generator.api_key", "")
	v.SetDefault("generator.static_response", "")
	v.SetDefault("generator.model", "gemini-2.5-flash")
	v.SetDefault("generator.timeout", 25*time.Second)
	v.SetDefault("generator.max_tokens", 2048)
	v.SetDefault("generator.breaker.enabled", true)
	v.SetDefault("generator.breaker.max_requests", 3)
	v.SetDefault("generator.breaker.interval", 10*time.Second)
	v.SetDefault("generator.breaker.timeout", 30*time.Second)
	v.SetDefault("generator.breaker.min_requests", 5)
	v.SetDefault("generator.breaker.threshold", 0.6)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", 5*time.Second)

	v.SetDefault("observability.service_name", "suggest-gateway")
	v.SetDefault("observability.service_version", "1.0.0")
	v.SetDefault("observability.environment", "development")
	v.SetDefault("observability.otel_endpoint", "localhost:4317")
	v.SetDefault("observability.enable_trace", false)
	v.SetDefault("observability.sampling_rate", 1.0)
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.log_format", "json")
}

// Load 加载配置
// configPath 为空时按约定路径查找；找不到配置文件时只使用默认值与环境变量
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("suggest-gateway")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
		v.AddConfigPath("../../configs")
	}

	// 环境变量：SUGGEST_RATE_LIMIT_MAX=20
	v.SetEnvPrefix("SUGGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// 从环境变量覆盖敏感配置
	if key := os.Getenv("GENERATOR_API_KEY"); key != "" {
		config.Generator.APIKey = key
	}
	if config.Generator.Provider == "anthropic" {
		if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
			config.Generator.APIKey = key
		}
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		config.Redis.Password = password
	}
	if endpoint := os.Getenv("OTEL_ENDPOINT"); endpoint != "" {
		config.Observability.OTELEndpoint = endpoint
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate 校验配置组合
func (c *Config) Validate() error {
	switch c.RateLimit.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("rate_limit.backend: unsupported %q", c.RateLimit.Backend)
	}
	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("cache.backend: unsupported %q", c.Cache.Backend)
	}
	if (c.RateLimit.Backend == "redis" || c.Cache.Backend == "redis") && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when a redis backend is selected")
	}
	switch c.Generator.Provider {
	case "http":
		if c.Generator.BaseURL == "" {
			return fmt.Errorf("generator.base_url is required for the http provider")
		}
	case "anthropic", "static":
	default:
		return fmt.Errorf("generator.provider: unsupported %q", c.Generator.Provider)
	}
	if c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit.max and rate_limit.window must be positive")
	}
	if c.Cache.TTL <= 0 || c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache.ttl and cache.max_entries must be positive")
	}
	return nil
}

// UsesRedis 是否需要 Redis 连接
func (c *Config) UsesRedis() bool {
	return c.RateLimit.Backend == "redis" || c.Cache.Backend == "redis"
}
