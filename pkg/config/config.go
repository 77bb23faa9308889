package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Barcode      BarcodeConfig
	Scan         ScanConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOCKTRACE_APP_ENV" required:"true"`
	Port         string `envconfig:"STOCKTRACE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOCKTRACE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOCKTRACE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"STOCKTRACE_DB_DSN"`
	Driver string `envconfig:"STOCKTRACE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STOCKTRACE_DB_HOST"`
	LegacyPort     int    `envconfig:"STOCKTRACE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOCKTRACE_DB_USER"`
	LegacyPassword string `envconfig:"STOCKTRACE_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOCKTRACE_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOCKTRACE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOCKTRACE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOCKTRACE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOCKTRACE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOCKTRACE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// RedisConfig is optional: when URL and Address are both empty the API runs
// without idempotency replay protection.
type RedisConfig struct {
	URL          string        `envconfig:"STOCKTRACE_REDIS_URL"`
	Address      string        `envconfig:"STOCKTRACE_REDIS_ADDR"`
	Password     string        `envconfig:"STOCKTRACE_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOCKTRACE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOCKTRACE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOCKTRACE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOCKTRACE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOCKTRACE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOCKTRACE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a redis endpoint was configured at all.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

// BarcodeConfig holds label rendering defaults. Scale is the narrow element
// width in pixels; wide elements are always three times the narrow width.
type BarcodeConfig struct {
	BarHeight int `envconfig:"STOCKTRACE_BARCODE_BAR_HEIGHT" default:"60"`
	Scale     int `envconfig:"STOCKTRACE_BARCODE_SCALE" default:"2"`
	MaxScale  int `envconfig:"STOCKTRACE_BARCODE_MAX_SCALE" default:"10"`
}

// ScanConfig tunes the best-effort optical decode ensemble. The confidence
// values are operator-tunable weights, not a decoding contract.
type ScanConfig struct {
	ZxingCommand    string        `envconfig:"STOCKTRACE_SCAN_ZXING_COMMAND" default:"zxing"`
	ZxingConfidence float64       `envconfig:"STOCKTRACE_SCAN_ZXING_CONFIDENCE" default:"0.95"`
	QuircCommand    string        `envconfig:"STOCKTRACE_SCAN_QUIRC_COMMAND" default:"quirc"`
	QuircConfidence float64       `envconfig:"STOCKTRACE_SCAN_QUIRC_CONFIDENCE" default:"0.90"`
	APIEndpoint     string        `envconfig:"STOCKTRACE_SCAN_API_ENDPOINT"`
	APIConfidence   float64       `envconfig:"STOCKTRACE_SCAN_API_CONFIDENCE" default:"0.85"`
	Timeout         time.Duration `envconfig:"STOCKTRACE_SCAN_TIMEOUT" default:"10s"`
	MaxUploadMB     int           `envconfig:"STOCKTRACE_SCAN_MAX_UPLOAD_MB" default:"10"`

	RateLimitWindow time.Duration `envconfig:"STOCKTRACE_SCAN_RATE_LIMIT_WINDOW" default:"1m"`
	RateLimitPerIP  int           `envconfig:"STOCKTRACE_SCAN_RATE_LIMIT_PER_IP" default:"120"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"STOCKTRACE_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
