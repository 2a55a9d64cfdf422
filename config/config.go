// Package config loads the timetables server configuration: built-in
// defaults, then an optional YAML file, then environment variables.
// The result is validated before use.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Render modes.
const (
	ModeBrowser = "browser" // headless Chrome
	ModeHTTP    = "http"    // plain GET, no script execution
	ModeFile    = "file"    // saved page on disk
	ModeAuto    = "auto"    // plain GET, falling back to Chrome
)

// Config is the server configuration.
type Config struct {
	Port          string `yaml:"port" validate:"required,numeric"`
	RefreshSecret string `yaml:"refresh_secret"`

	TimetableURL string        `yaml:"timetable_url" validate:"required,url"`
	RenderMode   string        `yaml:"render_mode" validate:"oneof=browser http file auto"`
	ChromeURL    string        `yaml:"chrome_url"`
	HTMLFile     string        `yaml:"html_file" validate:"required_if=RenderMode file"`
	UserAgent    string        `yaml:"user_agent"`
	NavTimeout   time.Duration `yaml:"nav_timeout" validate:"gt=0"`
	SettleDelay  time.Duration `yaml:"settle_delay" validate:"gte=0"`

	MaxRetries       int           `yaml:"max_retries" validate:"gte=0,lte=10"`
	BreakerThreshold int           `yaml:"breaker_threshold" validate:"gte=1"`
	BreakerReset     time.Duration `yaml:"breaker_reset" validate:"gt=0"`

	CacheTTL        time.Duration `yaml:"cache_ttl" validate:"gt=0"`
	PassTimeout     time.Duration `yaml:"pass_timeout" validate:"gt=0"`
	RefreshInterval time.Duration `yaml:"refresh_interval" validate:"gte=0"`
	RefreshLead     time.Duration `yaml:"refresh_lead" validate:"gte=0"`

	ImageBaseURL  string `yaml:"image_base_url" validate:"required,url"`
	CatalogFile   string `yaml:"catalog_file"`
	SnapshotDB    string `yaml:"snapshot_db"`
	KeepSnapshots int    `yaml:"keep_snapshots" validate:"gte=0"`

	AllowedOrigins []string `yaml:"allowed_origins" validate:"min=1,dive,url"`
	RateLimit      int      `yaml:"rate_limit" validate:"gte=0"`
	MCPEnabled     bool     `yaml:"mcp_enabled"`
	LogLevel       string   `yaml:"log_level" validate:"oneof=debug info warn error"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Port:             "3000",
		TimetableURL:     "https://mykonosbus.com/bus-timetables/",
		RenderMode:       ModeBrowser,
		NavTimeout:       60 * time.Second,
		SettleDelay:      20 * time.Second,
		MaxRetries:       2,
		BreakerThreshold: 3,
		BreakerReset:     5 * time.Minute,
		CacheTTL:         time.Hour,
		PassTimeout:      90 * time.Second,
		RefreshLead:      5 * time.Minute,
		ImageBaseURL:     "https://mykonosbusmap.com/images/",
		KeepSnapshots:    24,
		AllowedOrigins:   []string{"https://mykonosbusmap.com"},
		RateLimit:        60,
		LogLevel:         "info",
	}
}

// Load builds the configuration. path may be empty; when set, the YAML file
// must exist. Environment variables override file values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New()

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("config: invalid: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config: invalid: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	var errs []error
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v := getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	num := func(key string, dst *int) {
		if v := getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	str("PORT", &c.Port)
	str("REFRESH_SECRET", &c.RefreshSecret)
	str("TIMETABLE_URL", &c.TimetableURL)
	str("RENDER_MODE", &c.RenderMode)
	str("CHROME_URL", &c.ChromeURL)
	str("HTML_FILE", &c.HTMLFile)
	str("USER_AGENT", &c.UserAgent)
	dur("NAV_TIMEOUT", &c.NavTimeout)
	dur("SETTLE_DELAY", &c.SettleDelay)
	num("MAX_RETRIES", &c.MaxRetries)
	num("BREAKER_THRESHOLD", &c.BreakerThreshold)
	dur("BREAKER_RESET", &c.BreakerReset)
	dur("CACHE_TTL", &c.CacheTTL)
	dur("PASS_TIMEOUT", &c.PassTimeout)
	dur("REFRESH_INTERVAL", &c.RefreshInterval)
	dur("REFRESH_LEAD", &c.RefreshLead)
	str("IMAGE_BASE_URL", &c.ImageBaseURL)
	str("CATALOG_FILE", &c.CatalogFile)
	str("SNAPSHOT_DB", &c.SnapshotDB)
	num("KEEP_SNAPSHOTS", &c.KeepSnapshots)
	num("RATE_LIMIT", &c.RateLimit)
	str("LOG_LEVEL", &c.LogLevel)

	if v := getenv("ALLOWED_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.AllowedOrigins = origins
	}
	if v := getenv("MCP_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: MCP_ENABLED: %w", err))
		} else {
			c.MCPEnabled = b
		}
	}
	c.LogLevel = strings.ToLower(c.LogLevel)
	c.RenderMode = strings.ToLower(c.RenderMode)
	return errors.Join(errs...)
}
