package config

import (
	"medflow-service/internal/pkg/utils"

	"github.com/joho/godotenv"
)

func init() {
	godotenv.Load()
}

func NewDriverConfig() *DriverConfig {
	return &DriverConfig{
		MongoDB: MongoDB{
			Port:       utils.GetEnvString("MONGODB_PORT", "27017"),
			Host:       utils.GetEnvString("MONGODB_HOST", "localhost"),
			DbName:     utils.GetEnvString("MONGODB_DB_NAME", "medflow"),
			Username:   utils.GetEnvString("MONGODB_USERNAME", "defaultUsername"),
			Password:   utils.GetEnvString("MONGODB_PASSWORD", "defaultPassword"),
			ReplicaSet: utils.GetEnvString("MONGODB_REPLICA_SET", ""),
		},
		Redis: Redis{
			Host:     utils.GetEnvString("REDIS_HOST", "localhost"),
			Port:     utils.GetEnvString("REDIS_PORT", "6379"),
			Password: utils.GetEnvString("REDIS_PASSWORD", ""),
		},
		RabbitMQ: RabbitMQ{
			Port:     utils.GetEnvString("RABBITMQ_PORT", "5672"),
			Host:     utils.GetEnvString("RABBITMQ_HOST", "localhost"),
			Username: utils.GetEnvString("RABBITMQ_USERNAME", "defaultUsername"),
			Password: utils.GetEnvString("RABBITMQ_PASSWORD", "defaultPassword"),
		},
		Logger: Logger{
			Level:               utils.GetEnvString("LOGGER_LEVEL", "debug"),
			OutputFileName:      utils.GetEnvString("LOGGER_OUTPUT_FILENAME", "logger.log"),
			OutputErrorFileName: utils.GetEnvString("LOGGER_OUTPUT_ERROR_FILENAME", "logger_error.log"),
		},
	}
}

func NewInternalConfig() *InternalConfig {
	return &InternalConfig{
		App: App{
			Env:                      utils.GetEnvString("APP_ENV", "development"),
			Port:                     utils.GetEnvString("APP_PORT", ":8080"),
			Version:                  utils.GetEnvString("APP_VERSION", "v1"),
			Timezone:                 utils.GetEnvString("APP_TIMEZONE", "Africa/Algiers"),
			EndpointPrefix:           utils.GetEnvString("APP_ENDPOINT_PREFIX", "api"),
			MaxRequests:              utils.GetEnvInt("APP_MAX_REQUEST", 100),
			ShutdownTimeoutInSeconds: utils.GetEnvInt("APP_SHUTDOWN_TIMEOUT_IN_SECONDS", 10),
		},
		Billing: Billing{
			LedgerCurrency:    utils.GetEnvString("BILLING_LEDGER_CURRENCY", "DZD"),
			ReferenceCurrency: utils.GetEnvString("BILLING_REFERENCE_CURRENCY", "DZD"),
			StaticRates: map[string]float64{
				"EUR_DZD": utils.GetEnvFloat("BILLING_STATIC_RATE_EUR_DZD", 145.0),
				"USD_DZD": utils.GetEnvFloat("BILLING_STATIC_RATE_USD_DZD", 134.0),
			},
			PaymentTxMaxAttempts:     utils.GetEnvInt("BILLING_PAYMENT_TX_MAX_ATTEMPTS", 3),
			ApprovalLockTTLInSeconds: utils.GetEnvInt("BILLING_APPROVAL_LOCK_TTL_IN_SECONDS", 10),
			LiveEventQueue:           utils.GetEnvString("BILLING_LIVE_EVENT_QUEUE", "medflow.live_updates"),
			NotificationQueue:        utils.GetEnvString("BILLING_NOTIFICATION_QUEUE", "medflow.notifications"),
		},
	}
}
