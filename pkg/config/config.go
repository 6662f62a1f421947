// Package config holds the immutable root configuration for sessiondiff.
// It is populated once at startup from environment variables and an optional
// config file, and passed by reference into each component. Per-host policy
// files form an explicit override layer applied to a copy of the base
// configuration; process-wide state is never mutated after startup.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration structure for the entire application.
type Config struct {
	TargetURL      string `mapstructure:"target_url"`
	Accounts       int    `mapstructure:"accounts"`
	MaxConcurrency int    `mapstructure:"max_concurrency"`
	KeepAlive      bool   `mapstructure:"keep_alive"`

	Logger      LoggerConfig      `mapstructure:"logger"`
	Browser     BrowserConfig     `mapstructure:"browser"`
	Navigation  NavigationConfig  `mapstructure:"navigation"`
	Capture     CaptureConfig     `mapstructure:"capture"`
	Fingerprint FingerprintConfig `mapstructure:"fingerprint"`
	Cookies     CookieConfig      `mapstructure:"cookies"`
	Policy      PolicyConfig      `mapstructure:"policy"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Auth        AuthConfig        `mapstructure:"auth"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	AddSource   bool   `mapstructure:"add_source"`
	ServiceName string `mapstructure:"service_name"`
	LogFile     string `mapstructure:"log_file"`
	MaxSize     int    `mapstructure:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAge      int    `mapstructure:"max_age"`
	Compress    bool   `mapstructure:"compress"`
}

// BrowserConfig describes the identity surface of one browser context.
type BrowserConfig struct {
	Headless          bool    `mapstructure:"headless"`
	ViewportWidth     int     `mapstructure:"viewport_width"`
	ViewportHeight    int     `mapstructure:"viewport_height"`
	UserAgent         string  `mapstructure:"user_agent"`
	Locale            string  `mapstructure:"locale"`
	Timezone          string  `mapstructure:"timezone"`
	DeviceScaleFactor float64 `mapstructure:"device_scale_factor"`
	IsMobile          bool    `mapstructure:"is_mobile"`
	HasTouch          bool    `mapstructure:"has_touch"`
}

// NavigationConfig bounds navigation and the optional readiness wait.
type NavigationConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	ReadySelector string        `mapstructure:"ready_selector"`
}

// CaptureConfig feeds the network capture recorder. CustomHeaders is a JSON
// object of header name to value; a malformed value degrades to no extra
// headers. Include/Exclude are glob patterns over request URLs.
type CaptureConfig struct {
	AcceptLanguage string   `mapstructure:"accept_language"`
	CustomHeaders  string   `mapstructure:"custom_headers"`
	Include        []string `mapstructure:"include"`
	Exclude        []string `mapstructure:"exclude"`
}

// FingerprintConfig selects which fingerprint surfaces are observed and,
// when observed in use, patched.
type FingerprintConfig struct {
	Detect              bool          `mapstructure:"detect"`
	ObservationWindow   time.Duration `mapstructure:"observation_window"`
	SpoofWebGL          bool          `mapstructure:"spoof_webgl"`
	SpoofCanvas         bool          `mapstructure:"spoof_canvas"`
	SpoofAudio          bool          `mapstructure:"spoof_audio"`
	WebGLVendor         string        `mapstructure:"webgl_vendor"`
	WebGLRenderer       string        `mapstructure:"webgl_renderer"`
	RemoveWebdriver     bool          `mapstructure:"remove_webdriver"`
	HardwareConcurrency int           `mapstructure:"hardware_concurrency"`
	DeviceMemory        int           `mapstructure:"device_memory"`
}

// CookieConfig points at the stored cookie set seeded before navigation.
type CookieConfig struct {
	File string `mapstructure:"file"`
}

// PolicyConfig points at the per-host override directory.
type PolicyConfig struct {
	Dir string `mapstructure:"dir"`
}

// StorageConfig controls persisted browser state and capture artifacts.
type StorageConfig struct {
	ProfileDir   string `mapstructure:"profile_dir"`
	ArtifactsDir string `mapstructure:"artifacts_dir"`
	Export       bool   `mapstructure:"export"`
}

// AuthConfig carries the optional login token seeded into local storage
// after the first navigation.
type AuthConfig struct {
	LoginToken string `mapstructure:"login_token"`
}

// SetDefaults registers every documented key with its default (zero-valued
// where no default exists) so the application can run with nothing but a
// target URL. Viper only resolves environment variables for keys it already
// knows about, so a key left unregistered here would be invisible to
// SESSIONDIFF_* env configuration.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("target_url", "")
	v.SetDefault("accounts", 1)
	v.SetDefault("max_concurrency", 3)
	v.SetDefault("keep_alive", false)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "sessiondiff")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", false)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.viewport_width", 1920)
	v.SetDefault("browser.viewport_height", 1080)
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.locale", "")
	v.SetDefault("browser.timezone", "")
	v.SetDefault("browser.device_scale_factor", 1.0)
	v.SetDefault("browser.is_mobile", false)
	v.SetDefault("browser.has_touch", false)

	v.SetDefault("navigation.timeout", 60*time.Second)
	v.SetDefault("navigation.ready_selector", "")

	v.SetDefault("capture.accept_language", "")
	v.SetDefault("capture.custom_headers", "")
	v.SetDefault("capture.include", []string{})
	v.SetDefault("capture.exclude", []string{})

	v.SetDefault("fingerprint.detect", false)
	v.SetDefault("fingerprint.observation_window", 2*time.Second)
	v.SetDefault("fingerprint.spoof_webgl", false)
	v.SetDefault("fingerprint.spoof_canvas", false)
	v.SetDefault("fingerprint.spoof_audio", false)
	v.SetDefault("fingerprint.webgl_vendor", "Intel Inc.")
	v.SetDefault("fingerprint.webgl_renderer", "Intel Iris OpenGL Engine")
	v.SetDefault("fingerprint.remove_webdriver", false)
	v.SetDefault("fingerprint.hardware_concurrency", 0)
	v.SetDefault("fingerprint.device_memory", 0)

	v.SetDefault("cookies.file", "cookies.json")
	v.SetDefault("policy.dir", "policies")
	v.SetDefault("storage.profile_dir", "profiles")
	v.SetDefault("storage.artifacts_dir", "artifacts")
	v.SetDefault("storage.export", false)
	v.SetDefault("auth.login_token", "")
}

// Load unmarshals and validates the configuration from Viper.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the invariants the rest of the system relies on.
func (c *Config) Validate() error {
	if c.TargetURL == "" {
		return fmt.Errorf("target_url is required")
	}
	if c.Accounts < 1 {
		return fmt.Errorf("accounts must be at least 1, got %d", c.Accounts)
	}
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("max_concurrency must be positive, got %d", c.MaxConcurrency)
	}
	if c.Navigation.Timeout <= 0 {
		return fmt.Errorf("navigation.timeout must be positive, got %s", c.Navigation.Timeout)
	}
	return nil
}
