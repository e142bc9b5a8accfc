package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Google    GoogleConfig    `yaml:"google" mapstructure:"google"`
	Jina      JinaConfig      `yaml:"jina" mapstructure:"jina"`
	Hunter    HunterConfig    `yaml:"hunter" mapstructure:"hunter"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini    GeminiConfig    `yaml:"gemini" mapstructure:"gemini"`
	Proposal  ProposalConfig  `yaml:"proposal" mapstructure:"proposal"`
	FTP       FTPConfig       `yaml:"ftp" mapstructure:"ftp"`
	Discovery DiscoveryConfig `yaml:"discovery" mapstructure:"discovery"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig selects the lead sink backend.
type StoreConfig struct {
	// Driver is one of csv, sqlite, postgres, notion.
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	NotionToken string `yaml:"notion_token" mapstructure:"notion_token"`
	NotionDB    string `yaml:"notion_db" mapstructure:"notion_db"`
}

// GoogleConfig holds Google Places settings.
type GoogleConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// JinaConfig holds Jina Search settings used for website and social discovery.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// HunterConfig holds Hunter.io settings.
type HunterConfig struct {
	Key              string  `yaml:"key" mapstructure:"key"`
	BaseURL          string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit        float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	FailureThreshold int     `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	CooldownSecs     int     `yaml:"cooldown_secs" mapstructure:"cooldown_secs"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	Model   string `yaml:"model" mapstructure:"model"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ProposalConfig selects the proposal generator backend.
type ProposalConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"`
}

// FTPConfig holds hosting sandbox upload credentials.
type FTPConfig struct {
	Host        string `yaml:"host" mapstructure:"host"`
	User        string `yaml:"user" mapstructure:"user"`
	Password    string `yaml:"password" mapstructure:"password"`
	Root        string `yaml:"root" mapstructure:"root"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// DiscoveryConfig configures the pivot scan.
type DiscoveryConfig struct {
	Locations          []string `yaml:"locations" mapstructure:"locations"`
	Keywords           []string `yaml:"keywords" mapstructure:"keywords"`
	TargetCount        int      `yaml:"target_count" mapstructure:"target_count"`
	MaxIterations      int      `yaml:"max_iterations" mapstructure:"max_iterations"`
	Profile            string   `yaml:"profile" mapstructure:"profile"`
	MinSignal          float64  `yaml:"min_signal" mapstructure:"min_signal"`
	ProfilesPath       string   `yaml:"profiles_path" mapstructure:"profiles_path"`
	MaxPagesPerPivot   int      `yaml:"max_pages_per_pivot" mapstructure:"max_pages_per_pivot"`
	EnrichConcurrency  int      `yaml:"enrich_concurrency" mapstructure:"enrich_concurrency"`
	DirectoryBlocklist []string `yaml:"directory_blocklist" mapstructure:"directory_blocklist"`
}

// RetryConfig configures provider retries.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// ServerConfig configures the HTTP trigger server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("BRANDLIFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "csv")
	v.SetDefault("store.path", "leads.csv")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("google.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("google.rate_limit", 10)
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("hunter.base_url", "https://api.hunter.io/v2")
	v.SetDefault("hunter.rate_limit", 5)
	v.SetDefault("hunter.failure_threshold", 5)
	v.SetDefault("hunter.cooldown_secs", 60)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("proposal.provider", "anthropic")
	v.SetDefault("ftp.root", "/public_html")
	v.SetDefault("ftp.timeout_secs", 30)
	v.SetDefault("discovery.locations", []string{"Phoenix, AZ", "Scottsdale, AZ", "Tempe, AZ"})
	v.SetDefault("discovery.keywords", []string{"Cosmetic Dentistry", "Custom Cabinetry", "Med Spa"})
	v.SetDefault("discovery.target_count", 10)
	v.SetDefault("discovery.max_iterations", 20)
	v.SetDefault("discovery.profile", "volume")
	v.SetDefault("discovery.max_pages_per_pivot", 1)
	v.SetDefault("discovery.enrich_concurrency", 5)
	v.SetDefault("discovery.directory_blocklist", []string{
		"yelp.com", "facebook.com", "instagram.com", "linkedin.com",
		"yellowpages.com", "bbb.org", "mapquest.com", "angi.com", "thumbtack.com",
	})
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 10000)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the settings a command needs are present. The scan
// itself runs without provider keys (enrichment degrades to tagged guesses),
// so only the candidate source and sink are required there.
func (c *Config) Validate(command string) error {
	var missing []string
	switch command {
	case "scan", "serve":
		if c.Google.Key == "" {
			missing = append(missing, "google.key")
		}
		missing = append(missing, c.storeMissing()...)
	case "leads":
		missing = append(missing, c.storeMissing()...)
	case "propose":
		missing = append(missing, c.storeMissing()...)
		switch c.Proposal.Provider {
		case "anthropic":
			if c.Anthropic.Key == "" {
				missing = append(missing, "anthropic.key")
			}
		case "gemini":
			if c.Gemini.Key == "" {
				missing = append(missing, "gemini.key")
			}
		default:
			return eris.Errorf("config: unknown proposal provider %q", c.Proposal.Provider)
		}
	case "deploy":
		if c.FTP.Host == "" {
			missing = append(missing, "ftp.host")
		}
		if c.FTP.User == "" {
			missing = append(missing, "ftp.user")
		}
	default:
		return eris.Errorf("config: unknown command %q", command)
	}

	if command == "serve" && c.Server.Port <= 0 {
		missing = append(missing, "server.port (must be > 0)")
	}
	if command == "scan" || command == "serve" {
		if n := c.Discovery.EnrichConcurrency; n < 1 || n > 50 {
			missing = append(missing, "discovery.enrich_concurrency (must be between 1 and 50)")
		}
	}

	if len(missing) > 0 {
		return eris.Errorf("config: missing required settings for %s: %s", command, strings.Join(missing, ", "))
	}
	return nil
}

func (c *Config) storeMissing() []string {
	switch c.Store.Driver {
	case "csv", "sqlite":
		if c.Store.Path == "" {
			return []string{"store.path"}
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return []string{"store.database_url"}
		}
	case "notion":
		var out []string
		if c.Store.NotionToken == "" {
			out = append(out, "store.notion_token")
		}
		if c.Store.NotionDB == "" {
			out = append(out, "store.notion_db")
		}
		return out
	default:
		return []string{"store.driver (csv|sqlite|postgres|notion)"}
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
