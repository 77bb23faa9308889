package config

// EnvPrefix namespaces every environment variable the service reads.
const EnvPrefix = "STOCKTRACE"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv = "STOCKTRACE_APP_ENV"
	EnvPort   = "STOCKTRACE_APP_PORT"

	EnvDBDSN  = "STOCKTRACE_DB_DSN"
	EnvDBHost = "STOCKTRACE_DB_HOST"
	EnvDBUser = "STOCKTRACE_DB_USER"
	EnvDBName = "STOCKTRACE_DB_NAME"

	EnvRedisURL = "STOCKTRACE_REDIS_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
