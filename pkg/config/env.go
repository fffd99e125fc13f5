package config

const (
	EnvPrefix = "STOCKFLOW"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv            = "STOCKFLOW_APP_ENV"
	EnvPort              = "STOCKFLOW_APP_PORT"
	EnvDBDSN             = "STOCKFLOW_DB_DSN"
	EnvDBHost            = "STOCKFLOW_DB_HOST"
	EnvDBUser            = "STOCKFLOW_DB_USER"
	EnvDBName            = "STOCKFLOW_DB_NAME"
	EnvRedisURL          = "STOCKFLOW_REDIS_URL"
	EnvJWTSecret         = "STOCKFLOW_JWT_SECRET"
	EnvJWTIssuer         = "STOCKFLOW_JWT_ISSUER"
	EnvCutoffTime        = "STOCKFLOW_CUTOFF_TIME"
	EnvLogisticsTimezone = "STOCKFLOW_LOGISTICS_TIMEZONE"
	EnvGCPProjectID      = "STOCKFLOW_GCP_PROJECT_ID"
	EnvTopicOverrides    = "STOCKFLOW_PUBSUB_TOPIC_OVERRIDES"

	defaultCutoffTime = "17:00"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
