package config

type (
	DriverConfig struct {
		MongoDB  MongoDB
		Redis    Redis
		RabbitMQ RabbitMQ
		Logger   Logger
	}

	InternalConfig struct {
		App     App
		Billing Billing
	}

	MongoDB struct {
		Port     string
		Host     string
		DbName   string
		Username string
		Password string
		// ReplicaSet empty means standalone: transactions fall back to
		// sequential best-effort execution.
		ReplicaSet string
	}
	Redis struct {
		Host     string
		Port     string
		Password string
	}
	RabbitMQ struct {
		Port     string
		Host     string
		Username string
		Password string
	}
	Logger struct {
		Level               string
		OutputFileName      string
		OutputErrorFileName string
	}

	App struct {
		Env                      string
		Port                     string
		Version                  string
		Timezone                 string
		EndpointPrefix           string
		MaxRequests              int
		ShutdownTimeoutInSeconds int
	}

	Billing struct {
		LedgerCurrency    string
		ReferenceCurrency string
		// StaticRates holds "FROM_TO" -> rate fallbacks used when the live
		// rate feed has nothing cached.
		StaticRates              map[string]float64
		PaymentTxMaxAttempts     int
		ApprovalLockTTLInSeconds int
		LiveEventQueue           string
		NotificationQueue        string
	}
)
