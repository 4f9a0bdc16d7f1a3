// Package config reads the settings shared by the commands from the
// environment, optionally seeded from .env files.
package config

import (
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	identity "github.com/t11e/go-identity"
)

// DefaultEnvFiles are read, when present, before the environment is parsed.
// Variables already set in the environment win.
var DefaultEnvFiles = []string{".env", ".env.local"}

type Config struct {
	APIURL      string        `env:"IDENTITY_API_URL" envDefault:"http://127.0.0.1:44388"`
	AccessToken string        `env:"IDENTITY_ACCESS_TOKEN"`
	Tenant      string        `env:"IDENTITY_TENANT"`
	HTTPTimeout time.Duration `env:"IDENTITY_HTTP_TIMEOUT" envDefault:"30s"`
	MaxRetries  int           `env:"IDENTITY_MAX_RETRIES" envDefault:"3"`
	LogLevel    string        `env:"LOG_LEVEL" envDefault:"warn"`
	StubAddr    string        `env:"IDENTITY_STUB_ADDR" envDefault:"127.0.0.1:44388"`
}

// LoadEnv loads the files of envFiles that exist and returns how many did.
func LoadEnv(envFiles []string) (int, error) {
	existing := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if info, err := os.Stat(file); err == nil && !info.IsDir() {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// Load parses the configuration. With no envFiles, DefaultEnvFiles are used.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = DefaultEnvFiles
	}
	if _, err := LoadEnv(envFiles); err != nil {
		return nil, errors.Wrap(err, "loading env files")
	}
	var c Config
	if err := env.Parse(&c); err != nil {
		return nil, errors.Wrap(err, "parsing environment")
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	if c.MaxRetries < 0 {
		return errors.Errorf("IDENTITY_MAX_RETRIES must be non-negative, got %d", c.MaxRetries)
	}
	if c.HTTPTimeout <= 0 {
		return errors.Errorf("IDENTITY_HTTP_TIMEOUT must be positive, got %s", c.HTTPTimeout)
	}
	if _, err := c.URL(); err != nil {
		return err
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrapf(err, "invalid LOG_LEVEL %q", c.LogLevel)
	}
	return nil
}

func (c *Config) URL() (url.URL, error) {
	u, err := url.Parse(c.APIURL)
	if err != nil {
		return url.URL{}, errors.Wrapf(err, "invalid IDENTITY_API_URL %q", c.APIURL)
	}
	if u.Scheme == "" || u.Host == "" {
		return url.URL{}, errors.Errorf("invalid IDENTITY_API_URL %q", c.APIURL)
	}
	return *u, nil
}

// Logger builds a production logger writing to stderr at LogLevel.
func (c *Config) Logger() (*zap.SugaredLogger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid LOG_LEVEL %q", c.LogLevel)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := zc.Build()
	if err != nil {
		return nil, errors.Wrap(err, "building logger")
	}
	return logger.Sugar(), nil
}

// Client opens an identity client from the configuration.
func (c *Config) Client(logger *zap.SugaredLogger) (*identity.Client, error) {
	u, err := c.URL()
	if err != nil {
		return nil, err
	}
	return identity.Open(u,
		identity.WithHTTPClient(&http.Client{Timeout: c.HTTPTimeout}),
		identity.WithLogger(logger),
		identity.WithAccessToken(c.AccessToken),
		identity.WithTenant(c.Tenant),
		identity.WithMaxRetries(c.MaxRetries))
}
