// Package config holds the typed configuration tree: defaults, YAML
// overlay, environment overrides, and .env credential loading.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/exbridge/exbridge/errs"
	"github.com/exbridge/exbridge/internal/schema"
	"github.com/exbridge/exbridge/internal/sign"
)

// Environment identifies the runtime environment.
type Environment string

const (
	// EnvDev marks the development environment.
	EnvDev Environment = "dev"
	// EnvStaging marks the staging environment.
	EnvStaging Environment = "staging"
	// EnvProd marks the production environment.
	EnvProd Environment = "prod"
)

// Duration wraps time.Duration so YAML can carry "30s"-style values.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts to time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Credentials captures API credentials for one exchange.
type Credentials struct {
	APIKey     string `yaml:"api_key"`
	APISecret  string `yaml:"api_secret"`
	Passphrase string `yaml:"passphrase"`
}

// Schema converts to the canonical credential type.
func (c Credentials) Schema() schema.Credential {
	return schema.NewCredential(c.APIKey, c.APISecret, c.Passphrase)
}

// LogSettings selects the shared logger's level, format and destination.
type LogSettings struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// StreamSettings tunes one exchange's websocket session.
type StreamSettings struct {
	PublicURL         string   `yaml:"public_url"`
	PrivateURL        string   `yaml:"private_url"`
	PingInterval      Duration `yaml:"ping_interval"`
	PongTimeout       Duration `yaml:"pong_timeout"`
	ReconnectDelay    Duration `yaml:"reconnect_delay"`
	KeepAliveInterval Duration `yaml:"keepalive_interval"`
	// ControlRate caps subscribe/unsubscribe messages per second.
	ControlRate float64 `yaml:"control_rate"`
}

// ExchangeSettings aggregates one exchange's transport, stream and
// credential configuration.
type ExchangeSettings struct {
	RESTBaseURL    string         `yaml:"rest_base_url"`
	HTTPTimeout    Duration       `yaml:"http_timeout"`
	RateLimit      float64        `yaml:"rate_limit"`
	Burst          int            `yaml:"burst"`
	OrderbookDepth int            `yaml:"orderbook_depth"`
	SignScheme     string         `yaml:"sign_scheme"`
	Stream         StreamSettings `yaml:"stream"`
	Credentials    Credentials    `yaml:"credentials"`
}

// Scheme resolves the configured signing scheme.
func (e ExchangeSettings) Scheme() sign.Scheme {
	return sign.Scheme(strings.TrimSpace(e.SignScheme))
}

// Settings is the configuration tree.
type Settings struct {
	Environment Environment                 `yaml:"environment"`
	Log         LogSettings                 `yaml:"log"`
	Exchanges   map[string]ExchangeSettings `yaml:"exchanges"`
}

// Default returns the baseline configuration.
func Default() Settings {
	return Settings{
		Environment: EnvProd,
		Log:         LogSettings{Level: "info", Format: "json", Output: "stdout"},
		Exchanges: map[string]ExchangeSettings{
			"binance": {
				RESTBaseURL:    "https://api.binance.com",
				HTTPTimeout:    Duration(10 * time.Second),
				RateLimit:      20,
				Burst:          40,
				OrderbookDepth: 20,
				SignScheme:     string(sign.SchemeHMACSHA256Hex),
				Stream: StreamSettings{
					PublicURL:         "wss://stream.binance.com:9443/ws",
					PrivateURL:        "wss://stream.binance.com:9443/ws",
					PingInterval:      Duration(time.Minute),
					PongTimeout:       Duration(10 * time.Second),
					ReconnectDelay:    Duration(5 * time.Second),
					KeepAliveInterval: Duration(30 * time.Minute),
					ControlRate:       4,
				},
			},
			"okx": {
				RESTBaseURL:    "https://www.okx.com",
				HTTPTimeout:    Duration(10 * time.Second),
				RateLimit:      10,
				Burst:          20,
				OrderbookDepth: 20,
				SignScheme:     string(sign.SchemeHMACSHA256Base64),
				Stream: StreamSettings{
					PublicURL:         "wss://ws.okx.com:8443/ws/v5/public",
					PrivateURL:        "wss://ws.okx.com:8443/ws/v5/private",
					PingInterval:      Duration(25 * time.Second),
					PongTimeout:       Duration(10 * time.Second),
					ReconnectDelay:    Duration(5 * time.Second),
					KeepAliveInterval: Duration(30 * time.Minute),
					ControlRate:       4,
				},
			},
		},
	}
}

// Load builds the effective settings: defaults, optional YAML overlay,
// then environment overrides. An empty path skips the overlay.
func Load(path string) (Settings, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Settings{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Settings{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Settings{}, err
	}
	return cfg, nil
}

// LoadDotenv reads credentials from a .env file into the process
// environment, so applyEnv picks them up. A missing file is not an error.
func LoadDotenv(path string) error {
	if strings.TrimSpace(path) == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

// applyEnv overrides settings from the environment: EXBRIDGE_ENV for the
// environment, and <EXCHANGE>_API_KEY / _API_SECRET / _PASSPHRASE /
// _REST_BASE_URL per exchange.
func (s *Settings) applyEnv() {
	if env := strings.TrimSpace(os.Getenv("EXBRIDGE_ENV")); env != "" {
		s.Environment = Environment(strings.ToLower(env))
	}
	for name, ex := range s.Exchanges {
		prefix := strings.ToUpper(name)
		if v := strings.TrimSpace(os.Getenv(prefix + "_API_KEY")); v != "" {
			ex.Credentials.APIKey = v
		}
		if v := strings.TrimSpace(os.Getenv(prefix + "_API_SECRET")); v != "" {
			ex.Credentials.APISecret = v
		}
		if v := strings.TrimSpace(os.Getenv(prefix + "_PASSPHRASE")); v != "" {
			ex.Credentials.Passphrase = v
		}
		if v := strings.TrimSpace(os.Getenv(prefix + "_REST_BASE_URL")); v != "" {
			ex.RESTBaseURL = v
		}
		s.Exchanges[name] = ex
	}
}

// Validate checks the tree for unusable values.
func (s Settings) Validate() error {
	switch s.Environment {
	case EnvDev, EnvStaging, EnvProd:
	default:
		return errs.New("", errs.KindBadRequest,
			errs.WithMessage("unknown environment "+string(s.Environment)))
	}
	for name, ex := range s.Exchanges {
		if strings.TrimSpace(ex.RESTBaseURL) == "" {
			return errs.New(name, errs.KindBadRequest,
				errs.WithMessage("rest_base_url required"))
		}
		if ex.RateLimit < 0 || ex.Burst < 0 {
			return errs.New(name, errs.KindBadRequest,
				errs.WithMessage("rate limit settings must be non-negative"))
		}
		if ex.Stream.ReconnectDelay.Std() < 0 {
			return errs.New(name, errs.KindBadRequest,
				errs.WithMessage("reconnect_delay must be non-negative"))
		}
	}
	return nil
}

// Exchange returns one exchange's settings.
func (s Settings) Exchange(name string) (ExchangeSettings, bool) {
	ex, ok := s.Exchanges[strings.ToLower(strings.TrimSpace(name))]
	return ex, ok
}
