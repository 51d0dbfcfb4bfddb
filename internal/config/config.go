package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tunetrail/tunetrail/internal/validation"
)

type Config struct {
	App struct {
		// dev | staging | prod | test
		Env      string `yaml:"app_env"`
		LogLevel string `yaml:"log_level"`
		Version  string `yaml:"version"`
	} `yaml:"app"`

	Server struct {
		Addr            string        `yaml:"addr"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Storage struct {
		// postgres | memory
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxConns        int32         `yaml:"max_conns"`
			MinConns        int32         `yaml:"min_conns"`
			ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
			// Migrate aplica las migraciones embebidas al arrancar.
			Migrate bool `yaml:"migrate"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		// memory | redis
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	JWT struct {
		Secret    string        `yaml:"secret"`
		AccessTTL time.Duration `yaml:"access_ttl"`
	} `yaml:"jwt"`

	Session struct {
		TTL time.Duration `yaml:"ttl"`
	} `yaml:"session"`

	Security struct {
		// base64(32 bytes); cifra los tokens OAuth en reposo.
		SecretBoxMasterKey string `yaml:"secretbox_master_key"`
		// default | fast (solo tests/dev)
		PasswordHashing string `yaml:"password_hashing"`
	} `yaml:"security"`

	Rate struct {
		Enabled bool `yaml:"enabled"`
		Login   struct {
			Limit  int           `yaml:"limit"`
			Window time.Duration `yaml:"window"`
		} `yaml:"login"`
	} `yaml:"rate"`

	Upstream struct {
		MaxRetries     int           `yaml:"max_retries"`
		AttemptTimeout time.Duration `yaml:"attempt_timeout"`
	} `yaml:"upstream"`

	Spotify struct {
		ClientID     string   `yaml:"client_id"`
		ClientSecret string   `yaml:"client_secret"`
		RedirectURI  string   `yaml:"redirect_uri"`
		Scopes       []string `yaml:"scopes"`
		AccountsURL  string   `yaml:"accounts_url"`
		APIURL       string   `yaml:"api_url"`
		// StateCheck exige el state emitido por /auth/spotify/authorize.
		StateCheck   bool          `yaml:"state_check"`
		SafetyMargin time.Duration `yaml:"safety_margin"`
	} `yaml:"spotify"`

	Deezer struct {
		Enabled bool   `yaml:"enabled"`
		APIURL  string `yaml:"api_url"`
	} `yaml:"deezer"`

	Overpass struct {
		Enabled bool   `yaml:"enabled"`
		APIURL  string `yaml:"api_url"`
	} `yaml:"overpass"`
}

// Load lee el YAML (si existe), aplica defaults y luego overrides por env.
// path vacío o archivo inexistente = solo defaults + env.
func Load(path string) (*Config, error) {
	var c Config
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &c); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, err
		}
	}

	c.applyDefaults()
	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	// cubre el peor caso de reintentos contra Spotify
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 2 * time.Minute
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "tunetrail:"
	}
	if c.JWT.AccessTTL == 0 {
		c.JWT.AccessTTL = 15 * time.Minute
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = 7 * 24 * time.Hour
	}
	if c.Security.PasswordHashing == "" {
		c.Security.PasswordHashing = "default"
	}
	if c.Rate.Login.Limit == 0 {
		c.Rate.Login.Limit = 10
	}
	if c.Rate.Login.Window == 0 {
		c.Rate.Login.Window = time.Minute
	}
	if c.Upstream.MaxRetries == 0 {
		c.Upstream.MaxRetries = 3
	}
	if c.Upstream.AttemptTimeout == 0 {
		c.Upstream.AttemptTimeout = 10 * time.Second
	}
	if len(c.Spotify.Scopes) == 0 {
		c.Spotify.Scopes = []string{"user-read-private", "user-read-email"}
	}
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}
func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

// applyEnvOverrides: pisa el YAML con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.App.LogLevel = strings.ToLower(v)
	}
	if v, ok := getEnvStr("SERVICE_VERSION"); ok {
		c.App.Version = v
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvDur("SERVER_SHUTDOWN_TIMEOUT"); ok {
		c.Server.ShutdownTimeout = v
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = strings.ToLower(v)
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_CONNS"); ok {
		c.Storage.Postgres.MaxConns = int32(v)
	}
	if v, ok := getEnvBool("POSTGRES_MIGRATE"); ok {
		c.Storage.Postgres.Migrate = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = strings.ToLower(v)
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
		// REDIS_ADDR solo ya implica redis
		if _, explicit := getEnvStr("CACHE_KIND"); !explicit {
			c.Cache.Kind = "redis"
		}
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}

	// JWT / SESSION
	if v, ok := getEnvStr("JWT_SECRET"); ok {
		c.JWT.Secret = v
	}
	if v, ok := getEnvDur("ACCESS_TTL"); ok {
		c.JWT.AccessTTL = v
	}
	if v, ok := getEnvDur("SESSION_TTL"); ok {
		c.Session.TTL = v
	}

	// SECURITY
	if v, ok := getEnvStr("SECRETBOX_MASTER_KEY"); ok {
		c.Security.SecretBoxMasterKey = v
	}
	if v, ok := getEnvStr("PASSWORD_HASHING"); ok {
		c.Security.PasswordHashing = strings.ToLower(v)
	}

	// RATE
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvInt("RATE_LOGIN_LIMIT"); ok {
		c.Rate.Login.Limit = v
	}
	if v, ok := getEnvDur("RATE_LOGIN_WINDOW"); ok {
		c.Rate.Login.Window = v
	}

	// UPSTREAM
	if v, ok := getEnvInt("UPSTREAM_MAX_RETRIES"); ok {
		c.Upstream.MaxRetries = v
	}
	if v, ok := getEnvDur("UPSTREAM_ATTEMPT_TIMEOUT"); ok {
		c.Upstream.AttemptTimeout = v
	}

	// SPOTIFY
	if v, ok := getEnvStr("SPOTIFY_CLIENT_ID"); ok {
		c.Spotify.ClientID = v
	}
	if v, ok := getEnvStr("SPOTIFY_CLIENT_SECRET"); ok {
		c.Spotify.ClientSecret = v
	}
	if v, ok := getEnvStr("SPOTIFY_REDIRECT_URI"); ok {
		c.Spotify.RedirectURI = v
	}
	if v, ok := getEnvCSV("SPOTIFY_SCOPES"); ok && len(v) > 0 {
		c.Spotify.Scopes = v
	}
	if v, ok := getEnvBool("SPOTIFY_STATE_CHECK"); ok {
		c.Spotify.StateCheck = v
	}

	// CATALOG PROVIDERS
	if v, ok := getEnvBool("DEEZER_ENABLED"); ok {
		c.Deezer.Enabled = v
	}
	if v, ok := getEnvStr("DEEZER_API_URL"); ok {
		c.Deezer.APIURL = v
	}
	if v, ok := getEnvBool("OVERPASS_ENABLED"); ok {
		c.Overpass.Enabled = v
	}
	if v, ok := getEnvStr("OVERPASS_API_URL"); ok {
		c.Overpass.APIURL = v
	}
}

// Validate junta todos los problemas en un solo error.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) { problems = append(problems, fmt.Sprintf(format, args...)) }

	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			add("storage.dsn is required for the postgres driver")
		}
	default:
		add("storage.driver %q not supported (postgres|memory)", c.Storage.Driver)
	}
	switch c.Cache.Kind {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.Cache.Redis.Addr) == "" {
			add("cache.redis.addr is required for the redis cache")
		}
	default:
		add("cache.kind %q not supported (redis|memory)", c.Cache.Kind)
	}
	if strings.TrimSpace(c.JWT.Secret) == "" {
		add("jwt.secret (JWT_SECRET) is required")
	}
	if strings.TrimSpace(c.Security.SecretBoxMasterKey) == "" {
		add("security.secretbox_master_key (SECRETBOX_MASTER_KEY) is required")
	}
	if c.Security.PasswordHashing != "default" && c.Security.PasswordHashing != "fast" {
		add("security.password_hashing %q not supported (default|fast)", c.Security.PasswordHashing)
	}
	for _, sc := range c.Spotify.Scopes {
		if !validation.ValidScopeName(sc) {
			add("spotify.scopes: %q is not a valid scope name", sc)
		}
	}
	if c.Upstream.MaxRetries < 1 {
		add("upstream.max_retries must be >= 1")
	}
	if c.Rate.Enabled && (c.Rate.Login.Limit < 1 || c.Rate.Login.Window <= 0) {
		add("rate.login needs a positive limit and window")
	}
	if strings.EqualFold(c.App.Env, "prod") && c.Security.PasswordHashing == "fast" {
		add("fast password hashing is not allowed in prod")
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// SpotifyConfigured indica si hay credenciales para hablar con Spotify.
func (c *Config) SpotifyConfigured() bool {
	return c.Spotify.ClientID != "" && c.Spotify.ClientSecret != ""
}
