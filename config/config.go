package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Session    SessionConfig    `yaml:"session"`
	Redis      RedisConfig      `yaml:"redis"`
	Minio      MinioConfig      `yaml:"minio"`
	Generation GenerationConfig `yaml:"generation"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
}

type ServerConfig struct {
	Port                int `yaml:"port"`
	WriteTimeoutSeconds int `yaml:"write_timeout_seconds"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SessionConfig controls visitor sessions and their tokens
type SessionConfig struct {
	Store            string `yaml:"store"` // memory, redis
	TokenSecret      string `yaml:"token_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
	IdleMinutes      int    `yaml:"idle_minutes"`
	MaxSessions      int    `yaml:"max_sessions"`
	SweepSchedule    string `yaml:"sweep_schedule"`
	LockSeconds      int    `yaml:"lock_seconds"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// MinioConfig configures the optional archive of uploads and exports
type MinioConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	Bucket     string `yaml:"bucket"`
	Region     string `yaml:"region"`
	UseSSL     bool   `yaml:"use_ssl"`
	ExpireDays int    `yaml:"expire_days"`
}

type GenerationConfig struct {
	Provider        string         `yaml:"provider"`    // gemini, deepseek
	Temperature     *float32       `yaml:"temperature"` // unset means DefaultTemperature
	MaxOutputTokens int            `yaml:"max_output_tokens"`
	TimeoutSeconds  int            `yaml:"timeout_seconds"`
	Gemini          ProviderConfig `yaml:"gemini"`
	DeepSeek        ProviderConfig `yaml:"deepseek"`
}

type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

type AnalysisConfig struct {
	Endpoint string `yaml:"endpoint"`
	// Empty means a sibling of Endpoint: extract-clauses, compliance-check
	ClausesEndpoint    string `yaml:"clauses_endpoint"`
	ComplianceEndpoint string `yaml:"compliance_endpoint"`
	TimeoutSeconds     int    `yaml:"timeout_seconds"`
}

// ClausesURL returns the clause extraction endpoint
func (a *AnalysisConfig) ClausesURL() string {
	if a.ClausesEndpoint != "" {
		return a.ClausesEndpoint
	}
	return siblingURL(a.Endpoint, "extract-clauses")
}

// ComplianceURL returns the compliance check endpoint
func (a *AnalysisConfig) ComplianceURL() string {
	if a.ComplianceEndpoint != "" {
		return a.ComplianceEndpoint
	}
	return siblingURL(a.Endpoint, "compliance-check")
}

// siblingURL replaces the last path segment of endpoint with name
func siblingURL(endpoint, name string) string {
	base, err := url.Parse(endpoint)
	if err != nil {
		return ""
	}
	return base.ResolveReference(&url.URL{Path: name}).String()
}

type RateLimitConfig struct {
	Requests      int `yaml:"requests"`
	WindowSeconds int `yaml:"window_seconds"`
	// Limit applied to generate and analyze calls per session
	CostlyRequests int `yaml:"costly_requests"`
}

const (
	ProviderGemini   = "gemini"
	ProviderDeepSeek = "deepseek"

	StoreMemory = "memory"
	StoreRedis  = "redis"

	DefaultTemperature float32 = 0.7
)

var GlobalConfig *Config

// Load reads the YAML file at path, then applies .env and environment overrides.
// A missing .env file is not an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)

	GlobalConfig = &cfg
	return &cfg, nil
}

// Default returns a configuration with every default applied and env overrides read
func Default() *Config {
	var cfg Config
	_ = godotenv.Load()
	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg
}

func applyEnv(cfg *Config) {
	overrideString(&cfg.Generation.Gemini.APIKey, "GEMINI_API_KEY")
	overrideString(&cfg.Generation.DeepSeek.APIKey, "DEEPSEEK_API_KEY")
	overrideString(&cfg.Generation.Provider, "CONTRACTIQ_GENERATION_PROVIDER")
	overrideString(&cfg.Session.TokenSecret, "CONTRACTIQ_TOKEN_SECRET")
	overrideString(&cfg.Analysis.Endpoint, "CONTRACTIQ_ANALYSIS_ENDPOINT")
	overrideString(&cfg.Redis.Addr, "CONTRACTIQ_REDIS_ADDR")
}

func overrideString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.WriteTimeoutSeconds == 0 {
		cfg.Server.WriteTimeoutSeconds = 180
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Session.Store == "" {
		cfg.Session.Store = StoreMemory
	}
	if cfg.Session.TokenExpireHours == 0 {
		cfg.Session.TokenExpireHours = 24
	}
	if cfg.Session.IdleMinutes == 0 {
		cfg.Session.IdleMinutes = 120
	}
	if cfg.Session.MaxSessions == 0 {
		cfg.Session.MaxSessions = 1000
	}
	if cfg.Session.SweepSchedule == "" {
		cfg.Session.SweepSchedule = "@every 5m"
	}
	if cfg.Session.LockSeconds == 0 {
		cfg.Session.LockSeconds = 300
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "contractiq:"
	}
	if cfg.Minio.ExpireDays == 0 {
		cfg.Minio.ExpireDays = 7
	}
	if cfg.Minio.Region == "" {
		cfg.Minio.Region = "us-east-1"
	}
	if cfg.Generation.Provider == "" {
		cfg.Generation.Provider = ProviderGemini
	}
	if cfg.Generation.Temperature == nil {
		t := DefaultTemperature
		cfg.Generation.Temperature = &t
	}
	if cfg.Generation.MaxOutputTokens == 0 {
		cfg.Generation.MaxOutputTokens = 4000
	}
	if cfg.Generation.Gemini.Model == "" {
		cfg.Generation.Gemini.Model = "gemini-2.0-flash"
	}
	if cfg.Generation.DeepSeek.Model == "" {
		cfg.Generation.DeepSeek.Model = "deepseek-chat"
	}
	if cfg.Generation.DeepSeek.BaseURL == "" {
		cfg.Generation.DeepSeek.BaseURL = "https://api.deepseek.com"
	}
	if cfg.Analysis.Endpoint == "" {
		cfg.Analysis.Endpoint = "http://127.0.0.1:8001/analyze-document"
	}
	if cfg.RateLimit.Requests == 0 {
		cfg.RateLimit.Requests = 100
	}
	if cfg.RateLimit.WindowSeconds == 0 {
		cfg.RateLimit.WindowSeconds = 60
	}
	if cfg.RateLimit.CostlyRequests == 0 {
		cfg.RateLimit.CostlyRequests = 10
	}
}

// placeholder values shipped in sample .env files
var placeholderKeys = []string{"your_gemini_api_key_here", "your_deepseek_api_key_here", "changeme"}

// HasKey reports whether the key is set to something other than a placeholder
func (p ProviderConfig) HasKey() bool {
	key := strings.TrimSpace(p.APIKey)
	if key == "" {
		return false
	}
	for _, placeholder := range placeholderKeys {
		if strings.EqualFold(key, placeholder) {
			return false
		}
	}
	return true
}

// SamplingTemperature returns the configured temperature, zero included
func (g *GenerationConfig) SamplingTemperature() float32 {
	if g.Temperature == nil {
		return DefaultTemperature
	}
	return *g.Temperature
}

// ActiveProvider returns the settings of the selected generation provider
func (g GenerationConfig) ActiveProvider() (ProviderConfig, error) {
	switch g.Provider {
	case ProviderGemini:
		return g.Gemini, nil
	case ProviderDeepSeek:
		return g.DeepSeek, nil
	}
	return ProviderConfig{}, fmt.Errorf("unknown generation provider %q", g.Provider)
}

// Validate checks the settings the server cannot start without
func (c *Config) Validate() error {
	provider, err := c.Generation.ActiveProvider()
	if err != nil {
		return err
	}
	if !provider.HasKey() {
		return fmt.Errorf("generation provider %q has no API key configured", c.Generation.Provider)
	}
	switch c.Session.Store {
	case StoreMemory:
	case StoreRedis:
		if c.Redis.Addr == "" {
			return errors.New("session store redis requires redis.addr")
		}
	default:
		return fmt.Errorf("unknown session store %q", c.Session.Store)
	}
	if c.Session.TokenSecret == "" {
		return errors.New("session.token_secret is required")
	}
	if c.Minio.Enabled && (c.Minio.Endpoint == "" || c.Minio.Bucket == "") {
		return errors.New("minio archive requires endpoint and bucket")
	}
	return nil
}
