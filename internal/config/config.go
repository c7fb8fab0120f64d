package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server      ServerConfig      `toml:"server"`      // HTTP server settings
	Logging     LoggingConfig     `toml:"logging"`     // Application logging settings
	Airports    AirportsConfig    `toml:"airports"`    // Airport registry sources
	Controllers ControllersConfig `toml:"controllers"` // Controller persona service settings
	ATCChat     ATCChatConfig     `toml:"atc_chat"`    // Conversation and chat provider settings
	OpenAI      OpenAIConfig      `toml:"openai"`      // OpenAI-compatible chat completion settings
	Gemini      GeminiConfig      `toml:"gemini"`      // Gemini chat settings
	Proximity   ProximityConfig   `toml:"proximity"`   // Nearest-airport poller settings
	Narration   NarrationConfig   `toml:"narration"`   // Banner durations sent to the overlay
	Weather     WeatherConfig     `toml:"wx"`          // METAR fetching and caching settings
	Storage     StorageConfig     `toml:"storage"`     // Radio log archive settings
	Templating  TemplatingConfig  `toml:"templating"`  // Prompt template settings
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port               int      `toml:"port"`                  // HTTP port for the server
	Host               string   `toml:"host"`                  // Host address to bind to (127.0.0.1 keeps the add-on local)
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`  // Origins allowed for CORS requests (the game's origin, or ["*"])
	ReadTimeoutSecs    int      `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs   int      `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout)
	IdleTimeoutSecs    int      `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
	StaticFilesDir     string   `toml:"static_files_dir"`      // Optional directory with the overlay script and sounds
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level      string `toml:"level"`        // Log level: "debug", "info", "warn", or "error"
	Format     string `toml:"format"`       // Log format: "json" (structured) or "console" (human-readable)
	File       string `toml:"file"`         // Optional rotating log file
	MaxSizeMB  int    `toml:"max_size_mb"`  // Rotate after this many megabytes
	MaxBackups int    `toml:"max_backups"`  // Rotated files to keep
	MaxAgeDays int    `toml:"max_age_days"` // Days to keep rotated files
	Compress   bool   `toml:"compress"`     // Gzip rotated files
}

// AirportsConfig points at the static airport registry
type AirportsConfig struct {
	DBPath       string   `toml:"db_path"`       // OurAirports-format CSV
	MetadataPath string   `toml:"metadata_path"` // Optional {ICAO: {name}} JSON, names override the CSV
	Types        []string `toml:"types"`         // Airport types to keep from the CSV (empty = all)
	ICAOOnly     bool     `toml:"icao_only"`     // Keep only four-letter alphabetic idents
}

// ControllersConfig contains persona service settings
type ControllersConfig struct {
	PersonaURL            string `toml:"persona_url"`             // randomuser.me compatible endpoint
	Gender                string `toml:"gender"`                  // Gender filter passed to the persona service
	Nationalities         string `toml:"nationalities"`           // Comma separated nationality filter
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"` // HTTP timeout for one persona fetch
	RetryCooldownSeconds  int    `toml:"retry_cooldown_seconds"`  // Ignore resolves for a failed key until this elapses
	CacheSize             int    `toml:"cache_size"`              // Resolved personas kept in memory
}

// ATCChatConfig contains conversation settings
type ATCChatConfig struct {
	Provider           string  `toml:"provider"`             // "openai" or "gemini"
	RangeKm            float64 `toml:"range_km"`             // Maximum distance to the contacted airport
	MaxHistoryMessages int     `toml:"max_history_messages"` // Context cap, the intro is always kept (0 = unbounded)
	Temperature        float64 `toml:"temperature"`          // Response randomness (0.0-2.0)
	MaxResponseTokens  int     `toml:"max_response_tokens"`  // Maximum tokens in a reply
	TimeoutSeconds     int     `toml:"timeout_seconds"`      // Deadline for one chat completion
	GuestCallsign      string  `toml:"guest_callsign"`       // Callsign used when the pilot is not logged in
	GuestName          string  `toml:"guest_name"`           // Name used when the pilot is not logged in
}

// OpenAIConfig contains OpenAI-compatible chat completion settings.
// BaseURL lets the add-on talk to a proxy or a self-hosted server.
type OpenAIConfig struct {
	BaseURL    string `toml:"base_url"`    // Default: https://api.openai.com
	APIKey     string `toml:"api_key"`     // Falls back to OPENAI_API_KEY
	Model      string `toml:"model"`       // Chat model
	MaxRetries int    `toml:"max_retries"` // Retries on transport errors and 5xx

	ChatCompletionsPath string `toml:"chat_completions_path"` // Default: /v1/chat/completions
}

// GeminiConfig contains Gemini settings
type GeminiConfig struct {
	APIKey string `toml:"api_key"` // Falls back to GEMINI_API_KEY
	Model  string `toml:"model"`   // e.g. gemini-2.0-flash
}

// ProximityConfig controls the background nearest-airport poller
type ProximityConfig struct {
	Enabled        bool `toml:"enabled"`          // Run the poller
	PollIntervalMs int  `toml:"poll_interval_ms"` // Tick interval in milliseconds
}

// NarrationConfig controls how long the overlay shows each banner
type NarrationConfig struct {
	ATCBannerSeconds    int `toml:"atc_banner_seconds"`
	PilotBannerSeconds  int `toml:"pilot_banner_seconds"`
	NoticeBannerSeconds int `toml:"notice_banner_seconds"`
}

// WeatherConfig contains METAR fetching settings
type WeatherConfig struct {
	Enabled               bool   `toml:"enabled"`                 // Add the latest METAR to situational updates
	APIBaseURL            string `toml:"api_base_url"`            // Base URL for the aviationweather.gov style API
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"` // HTTP request timeout in seconds
	MaxRetries            int    `toml:"max_retries"`             // Maximum number of retry attempts for failed requests
	CacheExpiryMinutes    int    `toml:"cache_expiry_minutes"`    // How long a fetched METAR is reused
	CacheSize             int    `toml:"cache_size"`              // Airports kept in the METAR cache
}

// StorageConfig contains radio log configuration
type StorageConfig struct {
	Enabled        bool   `toml:"enabled"`          // Archive transmissions to SQLite
	SQLiteBasePath string `toml:"sqlite_base_path"` // Directory for database files (geofs-atc-YYYY-MM-DD.db)
}

// TemplatingConfig contains prompt template settings
type TemplatingConfig struct {
	OverrideDir     string `toml:"override_dir"`     // Directory whose intro.tmpl / update.tmpl replace the built-ins
	ReloadTemplates bool   `toml:"reload_templates"` // Whether to reload templates from disk (development mode)
}

// Load loads the configuration from the specified file path
func Load(path string) (*Config, error) {
	var config Config

	// Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	// Read the config file
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.applyEnv()

	return &config, nil
}

// LoadDotEnv loads a .env file from the working directory, if there is one.
// Variables already set in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	existing := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// applyEnv fills empty secrets from the environment
func (c *Config) applyEnv() {
	if c.OpenAI.APIKey == "" {
		c.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Gemini.APIKey == "" {
		c.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	}
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	// List of paths to check in order of preference
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // Conventional location in configs/ folder
		"config.toml",         // Root directory
	}

	// Remove duplicates while preserving order
	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// Validate validates the configuration and fills in defaults
func (c *Config) Validate() error {
	// Server
	if c.Server.Port == 0 {
		c.Server.Port = 8787
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if len(c.Server.CORSAllowedOrigins) == 0 {
		c.Server.CORSAllowedOrigins = []string{"https://www.geo-fs.com", "https://geo-fs.com"}
	}
	if c.Server.StaticFilesDir != "" {
		if _, err := os.Stat(c.Server.StaticFilesDir); os.IsNotExist(err) {
			return fmt.Errorf("static files directory does not exist: %s", c.Server.StaticFilesDir)
		}
	}

	// Logging
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}
	if c.Logging.File != "" && c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = 10
	}

	// Airports
	if c.Airports.DBPath == "" {
		return fmt.Errorf("airports.db_path is required")
	}

	if err := c.validateControllers(); err != nil {
		return err
	}
	if err := c.validateChat(); err != nil {
		return err
	}

	// Proximity
	if c.Proximity.PollIntervalMs <= 0 {
		c.Proximity.PollIntervalMs = 500
	}

	// Narration
	if c.Narration.ATCBannerSeconds <= 0 {
		c.Narration.ATCBannerSeconds = 15
	}
	if c.Narration.PilotBannerSeconds <= 0 {
		c.Narration.PilotBannerSeconds = 10
	}
	if c.Narration.NoticeBannerSeconds <= 0 {
		c.Narration.NoticeBannerSeconds = 10
	}

	c.validateWeather()

	// Storage
	if c.Storage.Enabled && c.Storage.SQLiteBasePath == "" {
		c.Storage.SQLiteBasePath = "data"
	}

	return nil
}

func (c *Config) validateControllers() error {
	if c.Controllers.PersonaURL == "" {
		c.Controllers.PersonaURL = "https://randomuser.me/api/"
	}
	if c.Controllers.Gender == "" {
		c.Controllers.Gender = "male"
	}
	if c.Controllers.Nationalities == "" {
		c.Controllers.Nationalities = "au,br,ca,ch,de,us,dk,fr,gb,in,mx,nl,no,nz,rs,tr,ua,us"
	}
	if c.Controllers.RequestTimeoutSeconds <= 0 {
		c.Controllers.RequestTimeoutSeconds = 10
	}
	if c.Controllers.RetryCooldownSeconds < 0 {
		return fmt.Errorf("invalid controllers.retry_cooldown_seconds: %d (must be >= 0)", c.Controllers.RetryCooldownSeconds)
	}
	if c.Controllers.RetryCooldownSeconds == 0 {
		c.Controllers.RetryCooldownSeconds = 60
	}
	if c.Controllers.CacheSize <= 0 {
		c.Controllers.CacheSize = 256
	}
	return nil
}

func (c *Config) validateChat() error {
	c.ATCChat.Provider = strings.ToLower(strings.TrimSpace(c.ATCChat.Provider))
	if c.ATCChat.Provider == "" {
		c.ATCChat.Provider = "openai"
	}
	if c.ATCChat.RangeKm <= 0 {
		c.ATCChat.RangeKm = 100
	}
	if c.ATCChat.MaxHistoryMessages < 0 {
		return fmt.Errorf("invalid atc_chat.max_history_messages: %d (must be >= 0)", c.ATCChat.MaxHistoryMessages)
	}
	if c.ATCChat.Temperature < 0 || c.ATCChat.Temperature > 2 {
		return fmt.Errorf("invalid atc_chat.temperature: %f", c.ATCChat.Temperature)
	}
	if c.ATCChat.TimeoutSeconds <= 0 {
		c.ATCChat.TimeoutSeconds = 30
	}
	if c.ATCChat.GuestCallsign == "" {
		c.ATCChat.GuestCallsign = "Foo"
	}
	if c.ATCChat.GuestName == "" {
		c.ATCChat.GuestName = "not known"
	}

	switch c.ATCChat.Provider {
	case "openai":
		if c.OpenAI.BaseURL == "" {
			c.OpenAI.BaseURL = "https://api.openai.com"
		}
		c.OpenAI.BaseURL = strings.TrimRight(c.OpenAI.BaseURL, "/")
		if c.OpenAI.Model == "" {
			c.OpenAI.Model = "gpt-4o-mini"
		}
		if c.OpenAI.MaxRetries < 0 {
			c.OpenAI.MaxRetries = 0
		}
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("openai.api_key (or OPENAI_API_KEY) is required when atc_chat.provider is openai")
		}
	case "gemini":
		if c.Gemini.Model == "" {
			c.Gemini.Model = "gemini-2.0-flash"
		}
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("gemini.api_key (or GEMINI_API_KEY) is required when atc_chat.provider is gemini")
		}
	default:
		return fmt.Errorf("invalid atc_chat.provider: %s (must be 'openai' or 'gemini')", c.ATCChat.Provider)
	}
	return nil
}

func (c *Config) validateWeather() {
	if c.Weather.APIBaseURL == "" {
		c.Weather.APIBaseURL = "https://aviationweather.gov/api/data"
	}
	if c.Weather.RequestTimeoutSeconds <= 0 {
		c.Weather.RequestTimeoutSeconds = 10
	}
	if c.Weather.MaxRetries < 0 {
		c.Weather.MaxRetries = 0
	}
	if c.Weather.CacheExpiryMinutes <= 0 {
		c.Weather.CacheExpiryMinutes = 15
	}
	if c.Weather.CacheSize <= 0 {
		c.Weather.CacheSize = 64
	}
}
