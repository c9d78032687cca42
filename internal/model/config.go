package model

import "time"

// DefaultUserAgent is a desktop browser UA; several news sites refuse obvious bots
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// Config holds all runtime settings. Loaded by viper (mapstructure tags) and
// printed by `config show` (yaml tags).
type Config struct {
	HTTP         HTTPConfig        `yaml:"http" mapstructure:"http"`
	Concurrency  ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitConfig   `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Parser       ParserConfig      `yaml:"parser" mapstructure:"parser"`
	Matcher      MatcherConfig     `yaml:"matcher" mapstructure:"matcher"`
	Cache        CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Server       ServerConfig      `yaml:"server" mapstructure:"server"`
	Log          LogConfig         `yaml:"log" mapstructure:"log"`
}

// HTTPConfig controls page fetching
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	MaxRedirects  int           `yaml:"max_redirects" mapstructure:"max_redirects"`
	MaxRetries    int           `yaml:"max_retries" mapstructure:"max_retries"` // Extra attempts on 429/5xx and connection errors
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
}

// ConcurrencyConfig bounds in-flight verifications per request
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// RateLimitConfig is the per-host politeness limit. RequestsPerSecond <= 0 disables it.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// ParserConfig sets the report parser's lookahead windows, in lines
type ParserConfig struct {
	EntityLookahead int `yaml:"entity_lookahead" mapstructure:"entity_lookahead"`
	FieldWindow     int `yaml:"field_window" mapstructure:"field_window"`
}

// MatcherConfig sets evidence excerpt sizes, in characters
type MatcherConfig struct {
	PreviewLength   int `yaml:"preview_length" mapstructure:"preview_length"`
	ProximityWindow int `yaml:"proximity_window" mapstructure:"proximity_window"`
	Margin          int `yaml:"margin" mapstructure:"margin"`
}

// CacheConfig controls the per-request URL memo
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// ServerConfig is used by `negcheck serve`
type ServerConfig struct {
	Addr           string        `yaml:"addr" mapstructure:"addr"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes" mapstructure:"max_upload_bytes"`
	WriteTimeout   time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

// LogConfig controls structured logging
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	File   string `yaml:"file,omitempty" mapstructure:"file"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() Config {
	return Config{
		HTTP: HTTPConfig{
			Timeout:      15 * time.Second,
			UserAgent:    DefaultUserAgent,
			MaxBodyBytes: 1_500_000,
			MaxRedirects: 5,
			MaxRetries:   2,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 2,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 4,
			BurstSize:         4,
		},
		Parser: ParserConfig{
			EntityLookahead: 5,
			FieldWindow:     30,
		},
		Matcher: MatcherConfig{
			PreviewLength:   300,
			ProximityWindow: 300,
			Margin:          40,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     10 * time.Minute,
		},
		Server: ServerConfig{
			Addr:           ":4000",
			MaxUploadBytes: 50 << 20,
			WriteTimeout:   5 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
